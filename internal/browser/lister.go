package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/augustalabs/summit-outreach/internal/pipeline"
)

// Lister walks the attendee listing. The site loads results with infinite
// scroll rather than numbered pages, so each call scrolls once more and
// returns every profile link currently in the document; the collector's
// freshness check turns "a scroll added nothing" into end-of-listing.
//
// Scroll position and the loaded listing live in the browser, so every pass
// must hit the same instance: the walker owns one dedicated instance for its
// whole lifetime rather than going through the rotating pool, where a later
// pass could scroll an instance that was never navigated.
type Lister struct {
	instance     *Instance
	discoveryURL string
	scrollDelay  time.Duration
}

// NewLister builds a listing walker rooted at discoveryURL. It claims one
// browser instance from the pool for good, so the pool must be sized with a
// spare beyond what the worker lanes need.
func NewLister(browser *Browser, discoveryURL string) (*Lister, error) {
	instance, err := browser.Dedicate()
	if err != nil {
		return nil, fmt.Errorf("listing walker: %w", err)
	}
	return &Lister{
		instance:     instance,
		discoveryURL: discoveryURL,
		scrollDelay:  2 * time.Second,
	}, nil
}

const collectLinksJS = `Array.from(document.querySelectorAll('a[href*="/profiles/"]')).map(a => a.href)`

// NextPage returns the profile links visible after the page'th scroll pass.
func (l *Lister) NextPage(ctx context.Context, page int) ([]pipeline.ProfileRef, error) {
	tasks := []chromedp.Action{}
	if page <= 1 {
		tasks = append(tasks,
			chromedp.Navigate(l.discoveryURL),
			chromedp.WaitReady("body"),
			chromedp.Sleep(l.scrollDelay),
		)
	} else {
		tasks = append(tasks,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(l.scrollDelay),
		)
	}

	var hrefs []string
	tasks = append(tasks, chromedp.Evaluate(collectLinksJS, &hrefs))

	if err := l.instance.run(ctx, tasks...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pipeline.Transient(pipeline.StepDiscover, fmt.Errorf("walk listing: %w", err))
	}

	refs := make([]pipeline.ProfileRef, 0, len(hrefs))
	for _, href := range hrefs {
		if ref, ok := refFromURL(href); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// refFromURL derives the stable profile identifier from a listing link,
// dropping any query string.
func refFromURL(href string) (pipeline.ProfileRef, bool) {
	const marker = "/profiles/"
	idx := strings.Index(href, marker)
	if idx < 0 {
		return pipeline.ProfileRef{}, false
	}
	if q := strings.IndexByte(href, '?'); q >= 0 {
		href = href[:q]
	}
	id := href[idx+len(marker):]
	if id == "" || strings.Contains(id, "/") {
		return pipeline.ProfileRef{}, false
	}
	return pipeline.ProfileRef{ProfileID: id, ProfileURL: href}, true
}
