// internal/dropdown/service.go

// Package dropdown realizes values inside dropdown widgets: classify
// the widget with the oracle, execute the advised interaction
// strategy, validate the outcome, and recover from failures.
package dropdown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/events"
)

// Element HTML passed to the oracle is capped at this many bytes.
const elementHTMLCap = 5000

// Loading indicators get at most this long to settle, each.
const indicatorWait = 5 * time.Second

var (
	// ErrOptionNotFound means the widget opened but no option matched
	// the requested value.
	ErrOptionNotFound = errors.New("dropdown option not found")
	// ErrAllStrategiesFailed means every interaction strategy in a
	// multi-step sequence failed.
	ErrAllStrategiesFailed = errors.New("all interaction strategies failed")
)

// Advisor is the oracle surface the engine consumes.
type Advisor interface {
	ClassifyDropdown(ctx context.Context, selector, elementHTML, surroundingContext string) (*schemas.DropdownAnalysis, error)
	DetectDynamicLoading(ctx context.Context, pageHTML, selector string) (*schemas.LoadingStrategy, error)
	AnalyzeSelectionFailure(ctx context.Context, pageHTML, selector, attemptedValue, errorMessage string) (*schemas.FailureAnalysis, error)
	MatchOption(ctx context.Context, dropdownHTML, userValue, fieldContext string) (*schemas.OptionMatch, error)
}

// Engine drives a single page's dropdowns.
type Engine struct {
	page    schemas.BrowserPage
	advisor Advisor
	events  *events.Broadcaster
	logger  *zap.Logger

	// multiStepDelay separates attempts inside a MultiStep sequence.
	multiStepDelay time.Duration
	// openWait is the pause after clicking a trigger open.
	openWait time.Duration
}

// NewEngine wires the dropdown engine. broadcaster may be nil.
func NewEngine(page schemas.BrowserPage, advisor Advisor, broadcaster *events.Broadcaster, logger *zap.Logger) *Engine {
	if broadcaster == nil {
		broadcaster = events.NewBroadcaster(logger, 1)
	}
	return &Engine{
		page:           page,
		advisor:        advisor,
		events:         broadcaster,
		logger:         logger.Named("dropdown"),
		multiStepDelay: 500 * time.Millisecond,
		openWait:       300 * time.Millisecond,
	}
}

// jsEncode marshals a value into a JavaScript-safe literal for
// embedding in evaluated expressions.
func jsEncode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// AnalyzeAndSelect classifies the dropdown, handles dynamic loading,
// and executes the advised interaction strategy for the value.
func (e *Engine) AnalyzeAndSelect(ctx context.Context, selector, value, fieldName string) error {
	e.events.Info(fmt.Sprintf("Using AI-backed dropdown detection for field %q", fieldName), "", fieldName)

	elementHTML, surrounding, err := e.extractContext(ctx, selector)
	if err != nil {
		return fmt.Errorf("extracting dropdown context for %q: %w", selector, err)
	}

	analysis, err := e.advisor.ClassifyDropdown(ctx, selector, elementHTML, surrounding)
	if err != nil {
		return fmt.Errorf("analyzing dropdown %q: %w", selector, err)
	}

	e.logger.Info("Dropdown analysis ready",
		zap.String("field", fieldName),
		zap.String("type", string(analysis.Kind)),
		zap.String("strategy", string(analysis.Strategy)),
		zap.Float64("confidence", analysis.Confidence))

	if analysis.IsDynamic {
		if err := e.awaitDynamicOptions(ctx, selector); err != nil {
			return err
		}
	}

	return e.execute(ctx, analysis.Strategy, selector, value, fieldName, analysis)
}

// extractContext pulls the element's inner HTML plus a JSON summary of
// its parent, siblings, and attributes for the classification prompt.
func (e *Engine) extractContext(ctx context.Context, selector string) (string, string, error) {
	elementHTML, err := e.page.InnerHTML(ctx, selector, elementHTMLCap)
	if err != nil {
		return "", "", err
	}

	contextJS := fmt.Sprintf(`(() => {
		const element = document.querySelector(%s);
		if (!element) return '';
		const parent = element.parentElement;
		const context = {
			parent: parent ? parent.outerHTML.slice(0, %d) : '',
			siblings: Array.from(parent?.children || [])
				.filter(el => el !== element)
				.slice(0, 3)
				.map(el => el.outerHTML.slice(0, 500)),
			attributes: Array.from(element.attributes).map(attr => attr.name + '=' + attr.value),
			classes: element.className,
			id: element.id
		};
		return JSON.stringify(context);
	})()`, jsEncode(selector), elementHTMLCap)

	var surrounding string
	if err := e.page.Evaluate(ctx, contextJS, &surrounding); err != nil {
		// Context is advisory; classification proceeds without it.
		e.logger.Debug("Failed to extract surrounding context",
			zap.String("selector", selector), zap.Error(err))
		surrounding = ""
	}
	return elementHTML, surrounding, nil
}

// awaitDynamicOptions consults the oracle's loading strategy, fires
// the trigger actions, and waits out the load.
func (e *Engine) awaitDynamicOptions(ctx context.Context, selector string) error {
	e.events.Info("Dropdown loads options dynamically; resolving load strategy", "", "")

	pageHTML, err := e.page.Content(ctx)
	if err != nil {
		return fmt.Errorf("reading page for loading analysis: %w", err)
	}

	strategy, err := e.advisor.DetectDynamicLoading(ctx, pageHTML, selector)
	if err != nil {
		return fmt.Errorf("analyzing dynamic loading for %q: %w", selector, err)
	}
	if !strategy.HasDynamicLoading {
		return nil
	}

	for _, trigger := range strategy.TriggerConditions {
		switch trigger {
		case "click", "hover":
			if err := e.page.Click(ctx, selector); err != nil {
				e.logger.Debug("Loading trigger click failed", zap.Error(err))
			}
		case "focus":
			if err := e.page.Focus(ctx, selector); err != nil {
				e.logger.Debug("Loading trigger focus failed", zap.Error(err))
			}
		}
	}

	if strategy.EstimatedWaitMs > 0 {
		if err := e.page.Sleep(ctx, time.Duration(strategy.EstimatedWaitMs)*time.Millisecond); err != nil {
			return err
		}
	}

	for _, indicator := range strategy.LoadingIndicators {
		waitCtx, cancel := context.WithTimeout(ctx, indicatorWait)
		if err := e.page.WaitVisible(waitCtx, indicator); err != nil && ctx.Err() != nil {
			cancel()
			return ctx.Err()
		}
		cancel()
	}
	return nil
}
