// internal/browser/page.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/config"
)

// Default per-operation timeout for element interactions. Navigation
// carries its own, longer timeout from the configuration.
const interactionTimeout = 30 * time.Second

// Page drives a single browser tab over CDP and implements
// schemas.BrowserPage.
type Page struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig

	onClose   func()
	closeOnce sync.Once
}

var _ schemas.BrowserPage = (*Page)(nil)

func newPage(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Page {
	pageID := uuid.New().String()
	return &Page{
		id:     pageID,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(zap.String("page_id", pageID)),
		cfg:    cfg,
	}
}

// ID returns the unique identifier for this tab.
func (p *Page) ID() string {
	return p.id
}

// Close releases the tab. Safe to call more than once.
func (p *Page) Close() {
	p.closeOnce.Do(func() {
		p.logger.Debug("Closing browser tab.")
		p.cancel()
		if p.onClose != nil {
			p.onClose()
		}
	})
}

// run executes chromedp actions under both the tab lifetime and the
// caller's context, with a per-operation timeout on top.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	combinedCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()

	opCtx, opCancel := context.WithTimeout(combinedCtx, timeout)
	defer opCancel()

	return chromedp.Run(opCtx, actions...)
}

// Navigate loads the URL and waits for the page to settle.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating", zap.String("url", url))

	opCtx, opCancel := CombineContext(p.ctx, ctx)
	defer opCancel()

	navTimeout := p.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	// Settle: wait for the body, then give late scripts a beat.
	if err := chromedp.Run(navCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if opCtx.Err() != nil {
			return opCtx.Err()
		}
		p.logger.Debug("WaitReady failed after navigation (non-critical).", zap.Error(err))
	}
	if p.cfg.PostLoadWait > 0 {
		if err := p.Sleep(opCtx, p.cfg.PostLoadWait); err != nil {
			return err
		}
	}
	return nil
}

// Content returns the full serialized document.
func (p *Page) Content(ctx context.Context) (string, error) {
	var content string
	if err := p.run(ctx, interactionTimeout, chromedp.OuterHTML("html", &content, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page content: %w", err)
	}
	return content, nil
}

// InnerHTML returns the inner HTML of the first element matching the
// selector, truncated to maxBytes when maxBytes > 0.
func (p *Page) InnerHTML(ctx context.Context, selector string, maxBytes int) (string, error) {
	slice := ""
	if maxBytes > 0 {
		slice = fmt.Sprintf(".slice(0, %d)", maxBytes)
	}
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return null;
		return el.innerHTML%s;
	})()`, jsString(selector), slice)

	var html *string
	if err := p.run(ctx, interactionTimeout, chromedp.Evaluate(js, &html)); err != nil {
		return "", fmt.Errorf("reading inner HTML of %q: %w", selector, err)
	}
	if html == nil {
		return "", fmt.Errorf("element not found: %q", selector)
	}
	return *html, nil
}

// Evaluate runs the expression and unmarshals its result into out.
// A nil out discards the result.
func (p *Page) Evaluate(ctx context.Context, expr string, out any) error {
	if err := p.run(ctx, interactionTimeout, chromedp.Evaluate(expr, out)); err != nil {
		return fmt.Errorf("evaluating script: %w", err)
	}
	return nil
}

// Click scrolls the element into view, waits for visibility, and
// clicks it.
func (p *Page) Click(ctx context.Context, selector string) error {
	p.logger.Debug("Clicking element", zap.String("selector", selector))

	err := p.run(ctx, interactionTimeout, chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	})
	if err != nil {
		return fmt.Errorf("click failed for selector %q: %w", selector, err)
	}
	return nil
}

// Focus gives the element keyboard focus.
func (p *Page) Focus(ctx context.Context, selector string) error {
	if err := p.run(ctx, interactionTimeout, chromedp.Focus(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("focus failed for selector %q: %w", selector, err)
	}
	return nil
}

// Fill clears the element and types the value into it.
func (p *Page) Fill(ctx context.Context, selector, value string) error {
	p.logger.Debug("Filling element", zap.String("selector", selector), zap.Int("value_length", len(value)))

	timeout := interactionTimeout + time.Duration(len(value)/10)*time.Second
	if timeout > 3*time.Minute {
		timeout = 3 * time.Minute
	}

	err := p.run(ctx, timeout, chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	})
	if err != nil {
		return fmt.Errorf("fill failed for selector %q: %w", selector, err)
	}
	return nil
}

// SelectOption selects the option matching value in a native select
// element, falling back to matching the visible option text, and
// dispatches change and input so framework listeners fire.
func (p *Page) SelectOption(ctx context.Context, selector, value string) error {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el || el.tagName.toLowerCase() !== 'select') {
			return { success: false, error: 'element is not a select' };
		}
		const target = %s;
		let match = null;
		for (const option of el.options) {
			if (option.value === target) { match = option; break; }
		}
		if (!match) {
			for (const option of el.options) {
				if (option.text.trim() === target.trim()) { match = option; break; }
			}
		}
		if (!match) {
			return { success: false, error: 'no option matches: ' + target };
		}
		el.selectedIndex = match.index;
		el.value = match.value;
		match.selected = true;
		el.dispatchEvent(new Event('change', { bubbles: true }));
		el.dispatchEvent(new Event('input', { bubbles: true }));
		return { success: true };
	})()`, jsString(selector), jsString(value))

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := p.run(ctx, interactionTimeout, chromedp.Evaluate(js, &result)); err != nil {
		return fmt.Errorf("select failed for selector %q: %w", selector, err)
	}
	if !result.Success {
		return fmt.Errorf("select failed for selector %q: %s", selector, result.Error)
	}
	return nil
}

// SendKey dispatches a single key to the focused element. Named keys
// like Enter and Escape are translated to their key codes.
func (p *Page) SendKey(ctx context.Context, key string) error {
	if err := p.run(ctx, interactionTimeout, chromedp.KeyEvent(translateKey(key))); err != nil {
		return fmt.Errorf("sending key %q: %w", key, err)
	}
	return nil
}

// TypeText types into whatever element currently holds focus.
func (p *Page) TypeText(ctx context.Context, text string) error {
	if err := p.run(ctx, interactionTimeout, chromedp.KeyEvent(text)); err != nil {
		return fmt.Errorf("typing text: %w", err)
	}
	return nil
}

// WaitVisible blocks until the element is visible or the context ends.
func (p *Page) WaitVisible(ctx context.Context, selector string) error {
	if err := p.run(ctx, interactionTimeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for %q: %w", selector, err)
	}
	return nil
}

// Sleep pauses for the duration, honoring context cancellation.
func (p *Page) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// translateKey maps named keys to their CDP key codes. Anything else
// is sent literally.
func translateKey(key string) string {
	switch key {
	case "Enter":
		return kb.Enter
	case "Tab":
		return kb.Tab
	case "Escape":
		return kb.Escape
	case "ArrowDown":
		return kb.ArrowDown
	case "ArrowUp":
		return kb.ArrowUp
	case "Backspace":
		return kb.Backspace
	default:
		return key
	}
}

// jsString encodes a Go string as a JavaScript string literal, so
// selectors and values can be embedded in scripts safely.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
