// internal/dropdown/validate.go
package dropdown

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/retry"
)

// ErrValidationFailed means a selection attempt completed but the
// widget's selected value did not match what was requested.
var ErrValidationFailed = errors.New("dropdown selection validation failed")

// ErrRecoveryFailed means every oracle-suggested alternative selector
// also failed.
var ErrRecoveryFailed = errors.New("all failure recovery attempts failed")

// Validator performs selection with mandatory post-attempt validation
// and bounded, backed-off retries. It is the deterministic fallback
// used when the AI-guided path fails.
type Validator struct {
	page    schemas.BrowserPage
	advisor Advisor
	logger  *zap.Logger

	attempts int
	backoff  retry.Backoff
}

// NewValidator builds a validator running the given number of attempts
// per strategy.
func NewValidator(page schemas.BrowserPage, advisor Advisor, attempts int, logger *zap.Logger) *Validator {
	if attempts < 1 {
		attempts = 3
	}
	return &Validator{
		page:     page,
		advisor:  advisor,
		logger:   logger.Named("validator"),
		attempts: attempts,
		backoff:  retry.DefaultBackoff,
	}
}

type selectionStrategy struct {
	name string
	run  func(ctx context.Context, selector, value string) error
}

// SelectWithValidation tries the native strategy, then the click-based
// strategy, each with bounded retries. Every attempt that reports
// success is validated against the widget's actual selected value; an
// unvalidated success counts as a failure.
func (v *Validator) SelectWithValidation(ctx context.Context, selector, value, fieldName string) error {
	strategies := []selectionStrategy{
		{name: "native", run: v.nativeSelect},
		{name: "click-based", run: v.clickBasedSelect},
	}

	var strategyErrs []error
	for _, strategy := range strategies {
		v.logger.Debug("Trying selection strategy",
			zap.String("strategy", strategy.name),
			zap.String("field", fieldName))

		err := retry.Do(ctx, v.attempts, v.backoff, func(ctx context.Context, attempt int) error {
			if err := strategy.run(ctx, selector, value); err != nil {
				return err
			}
			ok, err := v.Validate(ctx, selector, value)
			if err != nil {
				return fmt.Errorf("validating attempt %d: %w", attempt, err)
			}
			if !ok {
				return fmt.Errorf("attempt %d: %w", attempt, ErrValidationFailed)
			}
			return nil
		})
		if err == nil {
			v.logger.Info("Dropdown selection validated",
				zap.String("strategy", strategy.name),
				zap.String("field", fieldName),
				zap.String("value", value))
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		strategyErrs = append(strategyErrs, fmt.Errorf("%s: %w", strategy.name, err))
	}

	return fmt.Errorf("all selection strategies failed for %q: %w", fieldName, errors.Join(strategyErrs...))
}

// nativeSelect uses the page's select-option primitive, which matches
// by value and falls back to visible text.
func (v *Validator) nativeSelect(ctx context.Context, selector, value string) error {
	return v.page.SelectOption(ctx, selector, value)
}

// clickBasedSelect opens the widget like a user would, then sets the
// matching option through the DOM and dispatches change and input so
// framework listeners observe the selection.
func (v *Validator) clickBasedSelect(ctx context.Context, selector, value string) error {
	if err := v.page.Click(ctx, selector); err != nil {
		return fmt.Errorf("opening dropdown %q: %w", selector, err)
	}
	if err := v.page.Sleep(ctx, v.backoff.Min); err != nil {
		return err
	}

	js := fmt.Sprintf(`(() => {
		const selectElement = document.querySelector(%s);
		if (!selectElement || !selectElement.options) {
			return { success: false, error: 'dropdown not found or not a select' };
		}
		const targetValue = %s;
		let targetOption = null;
		for (let i = 0; i < selectElement.options.length; i++) {
			const option = selectElement.options[i];
			if (option.text.toLowerCase().trim() === targetValue.toLowerCase().trim()) {
				targetOption = option;
				break;
			}
			if (option.text.toLowerCase().includes(targetValue.toLowerCase())) {
				targetOption = option;
			}
		}
		if (!targetOption) {
			return { success: false, error: 'option not found: ' + targetValue };
		}
		selectElement.selectedIndex = targetOption.index;
		selectElement.value = targetOption.value;
		targetOption.selected = true;
		selectElement.dispatchEvent(new Event('change', { bubbles: true }));
		selectElement.dispatchEvent(new Event('input', { bubbles: true }));
		return { success: true, selectedValue: targetOption.value, selectedText: targetOption.text };
	})()`, jsEncode(selector), jsEncode(value))

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := v.page.Evaluate(ctx, js, &result); err != nil {
		return fmt.Errorf("click-based selection on %q: %w", selector, err)
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", ErrOptionNotFound, result.Error)
	}
	return nil
}

// Validate reads the widget's currently selected option and compares
// it with what was requested, by value or visible text.
func (v *Validator) Validate(ctx context.Context, selector, expected string) (bool, error) {
	js := fmt.Sprintf(`(() => {
		const element = document.querySelector(%s);
		if (element && element.tagName.toLowerCase() === 'select') {
			const selected = element.options[element.selectedIndex];
			return selected ? { value: selected.value, text: selected.text.trim() } : null;
		}
		return null;
	})()`, jsEncode(selector))

	var selected *struct {
		Value string `json:"value"`
		Text  string `json:"text"`
	}
	if err := v.page.Evaluate(ctx, js, &selected); err != nil {
		return false, fmt.Errorf("reading selected option of %q: %w", selector, err)
	}
	if selected == nil {
		return false, nil
	}
	return selected.Value == expected || selected.Text == expected, nil
}

// Recover asks the oracle why the selection failed and retries with
// each suggested alternative selector using a plain native select.
func (v *Validator) Recover(ctx context.Context, selector, attemptedValue, failure, fieldName string) error {
	v.logger.Info("Analyzing dropdown selection failure",
		zap.String("field", fieldName),
		zap.String("selector", selector))

	pageHTML, err := v.page.Content(ctx)
	if err != nil {
		return fmt.Errorf("reading page for failure analysis: %w", err)
	}

	analysis, err := v.advisor.AnalyzeSelectionFailure(ctx, pageHTML, selector, attemptedValue, failure)
	if err != nil {
		return fmt.Errorf("analyzing selection failure for %q: %w", selector, err)
	}

	v.logger.Info("Failure analysis",
		zap.String("likely_cause", analysis.LikelyCause),
		zap.Float64("confidence", analysis.Confidence),
		zap.Strings("alternatives", analysis.AlternativeSelectors))

	for _, alt := range analysis.AlternativeSelectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := v.page.SelectOption(ctx, alt, attemptedValue); err != nil {
			v.logger.Debug("Alternative selector failed",
				zap.String("selector", alt), zap.Error(err))
			continue
		}
		v.logger.Info("Alternative selector worked", zap.String("selector", alt))
		return nil
	}
	return fmt.Errorf("%w for %q", ErrRecoveryFailed, fieldName)
}
