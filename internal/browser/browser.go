// Package browser drives the event site through headless Chrome. It owns a
// small pool of browser contexts, one per worker lane plus a spare the
// listing walk dedicates to itself, and implements both the listing walk and
// the per-profile extract/act operations.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/augustalabs/summit-outreach/internal/session"
)

// Options configures the browser pool.
type Options struct {
	Instances int
	Headless  bool
	UserAgent string
	// Timeout bounds a single navigate-and-interact operation.
	Timeout time.Duration
}

// Browser holds a fixed pool of authenticated Chrome contexts. Contexts are
// checked out per operation so two lanes never drive the same instance at
// once.
type Browser struct {
	pool    chan context.Context
	cancels []context.CancelFunc
	timeout time.Duration
}

// New launches the pool and injects the session cookies into every instance.
func New(opts Options, cookies []session.Cookie) (*Browser, error) {
	if opts.Instances <= 0 {
		return nil, fmt.Errorf("browser pool needs at least one instance, got %d", opts.Instances)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0 Safari/537.36"
	}

	b := &Browser{
		pool:    make(chan context.Context, opts.Instances),
		timeout: opts.Timeout,
	}

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)

	for i := 0; i < opts.Instances; i++ {
		allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
		browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
		b.cancels = append(b.cancels, browserCancel, allocatorCancel)

		startCtx, startCancel := context.WithTimeout(browserCtx, opts.Timeout)
		err := chromedp.Run(startCtx, chromedp.Navigate("about:blank"))
		startCancel()
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("start browser instance %d: %w", i, err)
		}

		if err := injectCookies(browserCtx, opts.Timeout, cookies); err != nil {
			b.Close()
			return nil, fmt.Errorf("authenticate browser instance %d: %w", i, err)
		}

		b.pool <- browserCtx
		log.Printf("browser instance=%d started headless=%t", i, opts.Headless)
	}

	return b, nil
}

// Close tears down every instance. Safe to call after a partial New failure.
func (b *Browser) Close() {
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

// Instance is one browser context checked out of the pool for good. Page
// state such as navigation and scroll position lives in the instance, so a
// caller whose operations build on each other must hold one instead of going
// through the rotating pool.
type Instance struct {
	ctx     context.Context
	timeout time.Duration
}

// Dedicate removes an instance from the pool permanently. The instance stays
// alive until Close tears the pool down.
func (b *Browser) Dedicate() (*Instance, error) {
	select {
	case browserCtx := <-b.pool:
		return &Instance{ctx: browserCtx, timeout: b.timeout}, nil
	default:
		return nil, errors.New("no free browser instance to dedicate")
	}
}

func (i *Instance) run(ctx context.Context, tasks ...chromedp.Action) error {
	return runOn(i.ctx, ctx, i.timeout, tasks)
}

// acquire checks an instance out of the pool, honouring caller cancellation.
func (b *Browser) acquire(ctx context.Context) (context.Context, func(), error) {
	select {
	case browserCtx := <-b.pool:
		release := func() { b.pool <- browserCtx }
		return browserCtx, release, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// run executes tasks on a checked-out instance and returns it to the pool.
func (b *Browser) run(ctx context.Context, tasks ...chromedp.Action) error {
	browserCtx, release, err := b.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return runOn(browserCtx, ctx, b.timeout, tasks)
}

// runOn executes tasks on one instance with the operation timeout, cancelling
// early if the caller's context ends first.
func runOn(browserCtx, ctx context.Context, timeout time.Duration, tasks []chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(opCtx, tasks...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// injectCookies loads the exported session into one instance over the CDP
// network domain.
func injectCookies(browserCtx context.Context, timeout time.Duration, cookies []session.Cookie) error {
	ctx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx, network.Enable()); err != nil {
		return fmt.Errorf("enable network domain: %w", err)
	}

	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(sameSite(c.SameSite))
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				param = param.WithExpires(&expires)
			}
			if err := param.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

func sameSite(s string) network.CookieSameSite {
	switch s {
	case "Strict", "strict":
		return network.CookieSameSiteStrict
	case "Lax", "lax":
		return network.CookieSameSiteLax
	case "None", "none":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}
