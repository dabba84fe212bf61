// internal/orchestrator/orchestrator.go

// Package orchestrator drives the field-fill loop: one page, URLs
// processed strictly in order, one profile field at a time. Components
// are injected through interfaces so the loop is testable without a
// browser or an upstream model.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/config"
	"github.com/xkilldash9x/autoform/internal/events"
	"github.com/xkilldash9x/autoform/internal/mapping"
	"github.com/xkilldash9x/autoform/internal/profile"
)

// Resolver yields selector candidates and mapping metadata for a
// profile field.
type Resolver interface {
	Resolve(ctx context.Context, pageURL, profileField string) []string
	FieldDefinition(pageURL, profileField string) *schemas.FieldDefinition
}

// DropdownEngine is the AI-guided dropdown path.
type DropdownEngine interface {
	AnalyzeAndSelect(ctx context.Context, selector, value, fieldName string) error
}

// DropdownValidator is the deterministic dropdown fallback and its
// failure recovery.
type DropdownValidator interface {
	SelectWithValidation(ctx context.Context, selector, value, fieldName string) error
	Recover(ctx context.Context, selector, attemptedValue, failure, fieldName string) error
}

// Orchestrator coordinates resolution, interaction, and tallying for
// a fill run.
type Orchestrator struct {
	page      schemas.BrowserPage
	resolver  Resolver
	engine    DropdownEngine
	validator DropdownValidator
	events    *events.Broadcaster
	logger    *zap.Logger
	cfg       config.RunConfig

	limiter *rate.Limiter
}

// New builds an orchestrator from fully configured components.
func New(
	page schemas.BrowserPage,
	resolver Resolver,
	engine DropdownEngine,
	validator DropdownValidator,
	broadcaster *events.Broadcaster,
	cfg config.RunConfig,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if page == nil || resolver == nil || engine == nil || validator == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}

	interFieldDelay := cfg.InterFieldDelay
	if interFieldDelay <= 0 {
		interFieldDelay = 50 * time.Millisecond
	}

	return &Orchestrator{
		page:      page,
		resolver:  resolver,
		engine:    engine,
		validator: validator,
		events:    broadcaster,
		logger:    logger.Named("orchestrator"),
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Every(interFieldDelay), 1),
	}, nil
}

// Run processes the URLs in order, filling every non-empty profile
// field on each. Field and URL failures are recorded and skipped over;
// the run itself only stops on context cancellation or RunHandle.Stop.
// The returned handle holds the per-URL tallies.
func (o *Orchestrator) Run(ctx context.Context, urls []string, prof *profile.Profile) (*RunHandle, error) {
	handle := newRunHandle()
	defer handle.finish()

	o.logger.Info("Starting fill run",
		zap.String("run_id", handle.ID()),
		zap.Int("urls", len(urls)),
		zap.String("profile", prof.Name))

	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return handle, err
		}
		if handle.Stopped() {
			o.logger.Info("Run stopped between URLs", zap.String("run_id", handle.ID()))
			return handle, nil
		}

		handle.setCurrentURL(url)
		summary := o.processURL(ctx, handle, url, prof)
		handle.addSummary(summary)

		o.events.Info(fmt.Sprintf("Completed %s: %d/%d fields filled",
			url, summary.Filled, summary.Total), url, "")
	}

	o.logger.Info("Fill run complete", zap.String("run_id", handle.ID()))
	return handle, nil
}

// processURL navigates to one URL and fills every profile field.
func (o *Orchestrator) processURL(ctx context.Context, handle *RunHandle, url string, prof *profile.Profile) URLSummary {
	summary := URLSummary{URL: url, Total: len(prof.Fields)}

	o.events.Info("Navigating to "+url, url, "")
	if err := o.page.Navigate(ctx, url); err != nil {
		o.logger.Error("Navigation failed", zap.String("url", url), zap.Error(err))
		o.events.Error("Navigation failed: "+err.Error(), url, "")
		summary.Error = err.Error()
		return summary
	}

	for _, field := range prof.FieldNames() {
		if ctx.Err() != nil || handle.Stopped() {
			return summary
		}

		value, _ := prof.Value(field)
		if value == "" {
			o.logger.Debug("Skipping empty field", zap.String("field", field))
			summary.Skipped++
			continue
		}

		// Inter-field pacing so the target site is not hammered.
		if err := o.limiter.Wait(ctx); err != nil {
			return summary
		}

		if o.fillField(ctx, url, field, value) {
			summary.Filled++
		} else {
			summary.Failed++
			o.events.Error(fmt.Sprintf("Could not fill field %q", field), url, field)
		}
	}
	return summary
}

// fillField tries every candidate selector for one field until one
// succeeds, bounded by the per-field timeout.
func (o *Orchestrator) fillField(ctx context.Context, url, field, value string) bool {
	fieldCtx, cancel := context.WithTimeout(ctx, o.cfg.FieldTimeout)
	defer cancel()

	selectors := o.resolver.Resolve(fieldCtx, url, field)
	def := o.resolver.FieldDefinition(url, field)

	o.logger.Debug("Filling field",
		zap.String("field", field),
		zap.Int("candidates", len(selectors)))

	for _, selector := range selectors {
		if fieldCtx.Err() != nil {
			o.logger.Warn("Field timed out", zap.String("field", field))
			return false
		}

		var err error
		if isDropdownLike(selector) {
			err = o.fillDropdown(fieldCtx, selector, value, field, def)
		} else {
			err = o.plainFill(fieldCtx, selector, value)
		}
		if err == nil {
			o.events.Info(fmt.Sprintf("Filled %q via %s", field, selector), url, field)
			// Give the page a beat to react before the next field.
			if o.cfg.PostFillDelay > 0 {
				_ = o.page.Sleep(ctx, o.cfg.PostFillDelay)
			}
			return true
		}
		o.logger.Debug("Selector attempt failed",
			zap.String("field", field),
			zap.String("selector", selector),
			zap.Error(err))
	}
	return false
}

// fillDropdown runs the AI-guided path first; when that errors it
// falls back to validated selection with the mapping's value aliases
// applied, and finally to oracle-driven recovery.
func (o *Orchestrator) fillDropdown(ctx context.Context, selector, value, field string, def *schemas.FieldDefinition) error {
	aiErr := o.engine.AnalyzeAndSelect(ctx, selector, value, field)
	if aiErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return aiErr
	}
	o.logger.Debug("AI dropdown path failed, falling back to validator",
		zap.String("field", field), zap.Error(aiErr))

	normalized := mapping.NormalizeValue(def, value)
	valErr := o.validator.SelectWithValidation(ctx, selector, normalized, field)
	if valErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return valErr
	}

	if recErr := o.validator.Recover(ctx, selector, normalized, valErr.Error(), field); recErr != nil {
		return fmt.Errorf("dropdown fill failed: %w", recErr)
	}
	return nil
}

// plainFill writes the value into a non-dropdown element under the
// per-selector fill timeout.
func (o *Orchestrator) plainFill(ctx context.Context, selector, value string) error {
	fillCtx, cancel := context.WithTimeout(ctx, o.cfg.FillTimeout)
	defer cancel()
	return o.page.Fill(fillCtx, selector, value)
}

// isDropdownLike classifies a selector string as dropdown handling
// territory.
func isDropdownLike(selector string) bool {
	lowered := strings.ToLower(selector)
	return strings.Contains(lowered, "select[") ||
		strings.Contains(lowered, "dropdown") ||
		strings.Contains(lowered, "combobox") ||
		strings.Contains(lowered, "listbox")
}
