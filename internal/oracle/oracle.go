// internal/oracle/oracle.go

// Package oracle wraps the language-model boundary that classifies
// dropdown widgets and advises on failures. Responses are strictly
// typed; anything that does not decode is a hard error.
package oracle

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/config"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Oracle answers structural questions about dropdowns by consulting an
// LLM. Classification results are cached for the lifetime of the
// instance, keyed by a content fingerprint of the element, and
// concurrent misses for the same fingerprint collapse into a single
// upstream call.
type Oracle struct {
	llm    schemas.LLMClient
	cfg    config.OracleConfig
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[uint64]*schemas.DropdownAnalysis
	group singleflight.Group
}

// New creates an Oracle backed by the given LLM client.
func New(llm schemas.LLMClient, cfg config.OracleConfig, logger *zap.Logger) *Oracle {
	return &Oracle{
		llm:    llm,
		cfg:    cfg,
		logger: logger.Named("oracle"),
		cache:  make(map[uint64]*schemas.DropdownAnalysis),
	}
}

// fingerprint hashes the selector plus the element's normalized HTML
// with FNV-1a. Whitespace runs collapse to a single space so that
// server-side reformatting does not defeat the cache, and the HTML is
// capped at the configured snippet limit before hashing so the key
// matches what a prompt would actually contain.
func (o *Oracle) fingerprint(selector, elementHTML string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(selector))
	h.Write([]byte{0})
	h.Write([]byte(o.normalizeHTML(elementHTML)))
	return h.Sum64()
}

func (o *Oracle) normalizeHTML(s string) string {
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	if limit := o.cfg.HTMLSnippetLimit; limit > 0 && len(s) > limit {
		s = s[:limit]
	}
	return s
}

// ClassifyDropdown asks what kind of dropdown the element is and how
// to interact with it. Identical elements hit the in-process cache;
// concurrent first requests share one upstream call.
func (o *Oracle) ClassifyDropdown(ctx context.Context, selector, elementHTML, surroundingContext string) (*schemas.DropdownAnalysis, error) {
	fp := o.fingerprint(selector, elementHTML)

	o.mu.RLock()
	cached, ok := o.cache[fp]
	o.mu.RUnlock()
	if ok {
		o.logger.Debug("Classification cache hit",
			zap.String("selector", selector),
			zap.Uint64("fingerprint", fp))
		return cached, nil
	}

	v, err, _ := o.group.Do(strconv.FormatUint(fp, 16), func() (any, error) {
		analysis, err := o.classifyUpstream(ctx, selector, elementHTML, surroundingContext)
		if err != nil {
			return nil, err
		}
		o.mu.Lock()
		o.cache[fp] = analysis
		o.mu.Unlock()
		return analysis, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*schemas.DropdownAnalysis), nil
}

func (o *Oracle) classifyUpstream(ctx context.Context, selector, elementHTML, surroundingContext string) (*schemas.DropdownAnalysis, error) {
	raw, err := o.generate(ctx, classifyPrompt(o.normalizeHTML(elementHTML), o.normalizeHTML(surroundingContext)))
	if err != nil {
		return nil, fmt.Errorf("classifying dropdown %q: %w", selector, err)
	}
	analysis, err := parseJSONResponse[schemas.DropdownAnalysis](raw)
	if err != nil {
		return nil, fmt.Errorf("classifying dropdown %q: %w", selector, err)
	}
	if err := analysis.Normalize(); err != nil {
		return nil, fmt.Errorf("classifying dropdown %q: %w: %v", selector, ErrMalformedResponse, err)
	}

	o.logger.Info("Dropdown classified",
		zap.String("selector", selector),
		zap.String("type", string(analysis.Kind)),
		zap.String("strategy", string(analysis.Strategy)),
		zap.Float64("confidence", analysis.Confidence))
	return analysis, nil
}

// DetectDynamicLoading asks whether the dropdown's options are loaded
// asynchronously and how to wait them out.
func (o *Oracle) DetectDynamicLoading(ctx context.Context, pageHTML, selector string) (*schemas.LoadingStrategy, error) {
	raw, err := o.generate(ctx, loadingPrompt(o.normalizeHTML(pageHTML), selector))
	if err != nil {
		return nil, fmt.Errorf("detecting dynamic loading for %q: %w", selector, err)
	}
	strategy, err := parseJSONResponse[schemas.LoadingStrategy](raw)
	if err != nil {
		return nil, fmt.Errorf("detecting dynamic loading for %q: %w", selector, err)
	}
	return strategy, nil
}

// AnalyzeSelectionFailure asks for a post-mortem of a failed selection
// attempt, including alternative selectors worth trying.
func (o *Oracle) AnalyzeSelectionFailure(ctx context.Context, pageHTML, selector, attemptedValue, errorMessage string) (*schemas.FailureAnalysis, error) {
	raw, err := o.generate(ctx, failurePrompt(o.normalizeHTML(pageHTML), selector, attemptedValue, errorMessage))
	if err != nil {
		return nil, fmt.Errorf("analyzing selection failure for %q: %w", selector, err)
	}
	analysis, err := parseJSONResponse[schemas.FailureAnalysis](raw)
	if err != nil {
		return nil, fmt.Errorf("analyzing selection failure for %q: %w", selector, err)
	}
	if analysis.RetryStrategy != "" && !analysis.RetryStrategy.Valid() {
		return nil, fmt.Errorf("analyzing selection failure for %q: %w: unknown retry strategy %q",
			selector, ErrMalformedResponse, analysis.RetryStrategy)
	}
	analysis.Confidence = schemas.ClampConfidence(analysis.Confidence)
	return analysis, nil
}

// MatchOption asks which option inside the dropdown best realizes the
// user's raw value.
func (o *Oracle) MatchOption(ctx context.Context, dropdownHTML, userValue, fieldContext string) (*schemas.OptionMatch, error) {
	raw, err := o.generate(ctx, matchPrompt(o.normalizeHTML(dropdownHTML), userValue, fieldContext))
	if err != nil {
		return nil, fmt.Errorf("matching option for %q: %w", userValue, err)
	}
	match, err := parseJSONResponse[schemas.OptionMatch](raw)
	if err != nil {
		return nil, fmt.Errorf("matching option for %q: %w", userValue, err)
	}
	match.Confidence = schemas.ClampConfidence(match.Confidence)
	return match, nil
}

// CacheSize reports how many classifications are cached.
func (o *Oracle) CacheSize() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.cache)
}

func (o *Oracle) generate(ctx context.Context, prompt string) (string, error) {
	return o.llm.Generate(ctx, schemas.GenerationRequest{
		Prompt:      prompt,
		Model:       o.cfg.Model,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	})
}
