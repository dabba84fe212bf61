// internal/dropdown/strategies.go
package dropdown

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
)

// multiStepOrder is the fixed sequence MultiStep walks through. It
// never contains MultiStep itself.
var multiStepOrder = []schemas.InteractionStrategy{
	schemas.StrategyClickToOpen,
	schemas.StrategyTypeToSearch,
	schemas.StrategyKeyboardNavigation,
	schemas.StrategyDirectSelect,
}

// execute dispatches one interaction strategy. The enumeration is
// closed; an unknown variant is a programming error surfaced as such.
func (e *Engine) execute(ctx context.Context, strategy schemas.InteractionStrategy, selector, value, fieldName string, analysis *schemas.DropdownAnalysis) error {
	e.events.Info(fmt.Sprintf("Executing %s strategy for %q", strategy, fieldName), "", fieldName)

	switch strategy {
	case schemas.StrategyDirectSelect:
		return e.directSelect(ctx, selector, value, fieldName)
	case schemas.StrategyClickToOpen:
		return e.clickToOpen(ctx, selector, value, fieldName, analysis)
	case schemas.StrategyKeyboardNavigation:
		return e.keyboardNavigation(ctx, selector, value, fieldName)
	case schemas.StrategyTypeToSearch:
		return e.typeToSearch(ctx, selector, value, fieldName)
	case schemas.StrategyMultiStep:
		return e.multiStep(ctx, selector, value, fieldName, analysis)
	default:
		return fmt.Errorf("unknown interaction strategy %q", strategy)
	}
}

// directSelect asks the oracle which option realizes the value, then
// selects it natively, falling back to the raw value.
func (e *Engine) directSelect(ctx context.Context, selector, value, fieldName string) error {
	dropdownHTML, err := e.page.InnerHTML(ctx, selector, elementHTMLCap)
	if err != nil {
		return fmt.Errorf("reading dropdown %q: %w", selector, err)
	}

	match, err := e.advisor.MatchOption(ctx, dropdownHTML, value, fieldName)
	if err != nil {
		return fmt.Errorf("matching option for %q: %w", fieldName, err)
	}

	e.events.Info(fmt.Sprintf("AI recommended option %q (confidence %.0f%%)",
		match.RecommendedOption, match.Confidence*100), "", fieldName)

	if err := e.page.SelectOption(ctx, selector, match.RecommendedOption); err == nil {
		e.events.Info(fmt.Sprintf("Selected %q in dropdown %q", match.RecommendedOption, fieldName), "", fieldName)
		return nil
	}

	// The recommendation missed; fall back to the raw value.
	if err := e.page.SelectOption(ctx, selector, value); err != nil {
		return fmt.Errorf("direct select of %q failed: %w", value, err)
	}
	return nil
}

// clickToOpen clicks the trigger, waits for the options to render, and
// clicks the option matching the oracle's recommendation.
func (e *Engine) clickToOpen(ctx context.Context, selector, value, fieldName string, analysis *schemas.DropdownAnalysis) error {
	trigger := selector
	container := selector
	if analysis != nil {
		if analysis.TriggerSelector != "" {
			trigger = analysis.TriggerSelector
		}
		if analysis.OptionsContainer != "" {
			container = analysis.OptionsContainer
		}
	}

	if err := e.page.Click(ctx, trigger); err != nil {
		return fmt.Errorf("clicking dropdown trigger %q: %w", trigger, err)
	}
	if err := e.page.Sleep(ctx, e.openWait); err != nil {
		return err
	}

	optionsHTML, err := e.page.InnerHTML(ctx, container, elementHTMLCap)
	if err != nil {
		return fmt.Errorf("reading options container %q: %w", container, err)
	}
	match, err := e.advisor.MatchOption(ctx, optionsHTML, value, fieldName)
	if err != nil {
		return fmt.Errorf("matching option for %q: %w", fieldName, err)
	}

	clickJS := fmt.Sprintf(`(() => {
		const container = document.querySelector(%s);
		if (!container) return false;
		const target = %s;
		const needle = %s;
		const options = container.querySelectorAll('div, li, span, a');
		for (const option of options) {
			if (option.textContent?.trim() === target ||
				option.getAttribute('value') === target ||
				option.textContent?.trim().toLowerCase().includes(needle)) {
				option.click();
				return true;
			}
		}
		return false;
	})()`, jsEncode(container), jsEncode(match.RecommendedOption), jsEncode(strings.ToLower(value)))

	var clicked bool
	if err := e.page.Evaluate(ctx, clickJS, &clicked); err != nil {
		return fmt.Errorf("clicking option in %q: %w", container, err)
	}
	if !clicked {
		return fmt.Errorf("%w: %q in %q", ErrOptionNotFound, value, container)
	}

	e.events.Info(fmt.Sprintf("Clicked option %q in dropdown %q", match.RecommendedOption, fieldName), "", fieldName)
	return nil
}

// keyboardNavigation opens the widget with Space, narrows with the
// value's first character, and commits with Enter.
func (e *Engine) keyboardNavigation(ctx context.Context, selector, value, fieldName string) error {
	if err := e.page.Focus(ctx, selector); err != nil {
		return fmt.Errorf("focusing dropdown %q: %w", selector, err)
	}
	if err := e.page.SendKey(ctx, " "); err != nil {
		return fmt.Errorf("opening dropdown %q: %w", selector, err)
	}
	if err := e.page.Sleep(ctx, 200*time.Millisecond); err != nil {
		return err
	}

	if value != "" {
		if err := e.page.TypeText(ctx, value[:1]); err != nil {
			return fmt.Errorf("typing into dropdown %q: %w", selector, err)
		}
		if err := e.page.Sleep(ctx, 300*time.Millisecond); err != nil {
			return err
		}
	}

	if err := e.page.SendKey(ctx, "Enter"); err != nil {
		return fmt.Errorf("committing dropdown %q: %w", selector, err)
	}
	e.logger.Debug("Keyboard navigation completed", zap.String("field", fieldName))
	return nil
}

// typeToSearch looks for a search input inside the widget and types
// the value there; without one it types into the widget itself.
func (e *Engine) typeToSearch(ctx context.Context, selector, value, fieldName string) error {
	searchJS := fmt.Sprintf(`(() => {
		const dropdown = document.querySelector(%s);
		if (!dropdown) return '';
		const input = dropdown.querySelector('input[type="text"], input[type="search"], input:not([type])');
		if (!input) return '';
		if (input.id) return '#' + input.id;
		if (input.name) return %s + ' input[name="' + input.name + '"]';
		return %s + ' input';
	})()`, jsEncode(selector), jsEncode(selector), jsEncode(selector))

	var searchSelector string
	if err := e.page.Evaluate(ctx, searchJS, &searchSelector); err != nil {
		searchSelector = ""
	}

	if searchSelector != "" {
		if err := e.page.Fill(ctx, searchSelector, value); err != nil {
			return fmt.Errorf("filling search input %q: %w", searchSelector, err)
		}
		if err := e.page.Sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
		if err := e.page.SendKey(ctx, "Enter"); err != nil {
			return fmt.Errorf("committing search in %q: %w", selector, err)
		}
	} else {
		if err := e.page.Click(ctx, selector); err != nil {
			return fmt.Errorf("clicking dropdown %q: %w", selector, err)
		}
		if err := e.page.TypeText(ctx, value); err != nil {
			return fmt.Errorf("typing into dropdown %q: %w", selector, err)
		}
		if err := e.page.Sleep(ctx, 300*time.Millisecond); err != nil {
			return err
		}
		if err := e.page.SendKey(ctx, "Enter"); err != nil {
			return fmt.Errorf("committing dropdown %q: %w", selector, err)
		}
	}

	e.logger.Debug("Type-to-search completed", zap.String("field", fieldName))
	return nil
}

// multiStep walks the fixed strategy order until one succeeds. It
// never re-enters itself.
func (e *Engine) multiStep(ctx context.Context, selector, value, fieldName string, analysis *schemas.DropdownAnalysis) error {
	e.events.Info(fmt.Sprintf("Executing multi-step interaction for complex dropdown %q", fieldName), "", fieldName)

	var lastErr error
	for _, strategy := range multiStepOrder {
		if strategy == schemas.StrategyMultiStep {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		e.events.Info(fmt.Sprintf("Trying %s as part of multi-step approach", strategy), "", fieldName)
		lastErr = e.execute(ctx, strategy, selector, value, fieldName, analysis)
		if lastErr == nil {
			return nil
		}
		e.logger.Debug("Multi-step strategy failed",
			zap.String("strategy", string(strategy)),
			zap.Error(lastErr))

		// The settle delay follows every failed strategy, the last one
		// included, before the failure is reported.
		if err := e.page.Sleep(ctx, e.multiStepDelay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w for dropdown %q: %v", ErrAllStrategiesFailed, fieldName, lastErr)
}
