// api/schemas/browser.go
package schemas

import (
	"context"
	"time"
)

// BrowserPage is the capability surface the engine requires from a live
// page. internal/browser implements it over chromedp; tests use
// hand-written fakes. Every method honors ctx cancellation.
type BrowserPage interface {
	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// Content returns the full serialized document.
	Content(ctx context.Context) (string, error)

	// InnerHTML returns the element's inner HTML, truncated to at most
	// maxBytes when maxBytes > 0.
	InnerHTML(ctx context.Context, selector string, maxBytes int) (string, error)

	// Evaluate runs a JavaScript expression and decodes its JSON result
	// into out. A nil out discards the result.
	Evaluate(ctx context.Context, expr string, out any) error

	// Click dispatches a click on the first element matching selector.
	Click(ctx context.Context, selector string) error

	// Focus moves keyboard focus to the element.
	Focus(ctx context.Context, selector string) error

	// Fill sets an input-like element's value, clearing any prior value,
	// and fires the framework-visible input events.
	Fill(ctx context.Context, selector, value string) error

	// SelectOption picks an option inside a native <select> by value,
	// falling back to visible text, and dispatches change+input.
	SelectOption(ctx context.Context, selector, value string) error

	// SendKey dispatches a single named key (e.g. "Enter", " ",
	// "ArrowDown") to the focused element.
	SendKey(ctx context.Context, key string) error

	// TypeText types the text into the focused element key by key.
	TypeText(ctx context.Context, text string) error

	// WaitVisible blocks until the selector matches a visible element.
	WaitVisible(ctx context.Context, selector string) error

	// Sleep pauses for d, returning early with ctx.Err() on cancel.
	Sleep(ctx context.Context, d time.Duration) error
}
