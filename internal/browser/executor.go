package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/augustalabs/summit-outreach/internal/entity"
	"github.com/augustalabs/summit-outreach/internal/pipeline"
)

// Executor implements profile extraction and the meeting request flow on a
// live browser session.
type Executor struct {
	browser *Browser
}

// NewExecutor wraps a browser pool as a pipeline executor.
func NewExecutor(browser *Browser) *Executor {
	return &Executor{browser: browser}
}

// Extract navigates to the profile page and parses its attributes from the
// main content block.
func (e *Executor) Extract(ctx context.Context, ref pipeline.ProfileRef) (entity.Profile, error) {
	var mainText, communitiesText string
	err := e.browser.run(ctx,
		chromedp.Navigate(ref.ProfileURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(time.Second),
		chromedp.Text("main", &mainText, chromedp.ByQuery),
		chromedp.Evaluate(communitiesJS, &communitiesText),
	)
	if err != nil {
		if ctx.Err() != nil {
			return entity.Profile{}, ctx.Err()
		}
		return entity.Profile{}, pipeline.Transient(pipeline.StepExtract, fmt.Errorf("load profile %s: %w", ref.ProfileID, err))
	}

	profile, err := parseProfile(mainText, communitiesText)
	if err != nil {
		// An empty or truncated page usually means the site served a
		// placeholder; worth another visit.
		return entity.Profile{}, pipeline.Transient(pipeline.StepExtract, fmt.Errorf("parse profile %s: %w", ref.ProfileID, err))
	}
	return profile, nil
}

const communitiesJS = `(document.querySelector('tab[aria-label="Communities"]') || {textContent: ''}).textContent || ''`

// parseProfile splits the main content into its fixed line layout: badge,
// name, title, company, bio, location, industry.
func parseProfile(mainText, communitiesText string) (entity.Profile, error) {
	var lines []string
	for _, line := range strings.Split(mainText, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return entity.Profile{}, errors.New("page has no attendee content")
	}

	at := func(i int) string {
		if i < len(lines) {
			return lines[i]
		}
		return ""
	}
	profile := entity.Profile{
		Badge:    at(0),
		Name:     at(1),
		Title:    at(2),
		Company:  at(3),
		Bio:      at(4),
		Location: at(5),
		Industry: at(6),
	}

	for _, c := range strings.Split(communitiesText, "\n") {
		if c = strings.TrimSpace(c); c != "" {
			profile.Communities = append(profile.Communities, c)
		}
	}
	return profile, nil
}

// Act sends the meeting request: open the modal, pick the first location and
// time slot, fill the message and submit. A missing or disabled request
// button is permanent; the page will look the same on every retry.
func (e *Executor) Act(ctx context.Context, ref pipeline.ProfileRef, message string) error {
	var buttonState string
	err := e.browser.run(ctx,
		chromedp.Navigate(ref.ProfileURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(requestButtonStateJS, &buttonState),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return pipeline.Transient(pipeline.StepAct, fmt.Errorf("load profile %s: %w", ref.ProfileID, err))
	}

	switch buttonState {
	case "missing":
		return pipeline.PermanentFailure(pipeline.StepAct, fmt.Errorf("profile %s has no request button", ref.ProfileID))
	case "disabled":
		return pipeline.PermanentFailure(pipeline.StepAct, fmt.Errorf("request button disabled for %s, meeting limit reached or already requested", ref.ProfileID))
	}

	err = e.browser.run(ctx,
		chromedp.Evaluate(clickRequestButtonJS, nil),
		chromedp.WaitVisible(`[role="dialog"]`, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(pickLocationJS, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(pickSlotJS, nil),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(fillMessageJS(message), nil),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(clickSendJS, nil),
		chromedp.Sleep(2*time.Second),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return pipeline.Transient(pipeline.StepAct, fmt.Errorf("drive request modal for %s: %w", ref.ProfileID, err))
	}
	return nil
}

const requestButtonStateJS = `(() => {
    const btn = Array.from(document.querySelectorAll('button'))
        .find(b => b.textContent.includes('Request Meeting'));
    if (!btn) return 'missing';
    if (btn.disabled || btn.hasAttribute('disabled')) return 'disabled';
    return 'enabled';
})()`

const clickRequestButtonJS = `Array.from(document.querySelectorAll('button'))
    .find(b => b.textContent.includes('Request Meeting')).click()`

const pickLocationJS = `(() => {
    const label = document.querySelector('label[for="location_3407"]');
    if (label) { label.click(); return; }
    const link = document.querySelector('a[href*="load_location_slots"]');
    if (link) link.click();
})()`

const pickSlotJS = `(() => {
    const card = document.querySelector('.slot-card');
    if (card) { card.click(); return; }
    const label = document.querySelector('label[for^="location_time_slot_"]');
    if (label) label.click();
})()`

const clickSendJS = `(() => {
    const btn = Array.from(document.querySelectorAll('button'))
        .find(b => b.textContent.includes('Send request'));
    if (!btn) throw new Error('send button not found');
    btn.click();
})()`

// fillMessageJS sets the textarea value and fires an input event so the
// form's framework notices the change.
func fillMessageJS(message string) string {
	quoted := strings.NewReplacer(
		`\`, `\\`,
		"`", "\\`",
		`$`, `\$`,
	).Replace(message)
	return `(() => {
    const field = document.querySelector('textarea[name="description"]');
    if (!field) throw new Error('message field not found');
    field.value = ` + "`" + quoted + "`" + `;
    field.dispatchEvent(new Event('input', {bubbles: true}));
})()`
}
