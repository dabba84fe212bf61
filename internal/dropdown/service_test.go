package dropdown

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
)

func newTestEngine(page *fakePage, advisor *fakeAdvisor) *Engine {
	return NewEngine(page, advisor, nil, zap.NewNop())
}

func analysisWith(strategy schemas.InteractionStrategy) *schemas.DropdownAnalysis {
	return &schemas.DropdownAnalysis{
		Kind:       schemas.KindCustomDiv,
		Strategy:   strategy,
		Confidence: 0.9,
	}
}

func TestAnalyzeAndSelectDirectSelect(t *testing.T) {
	page := newFakePage()
	page.innerHTML["#country"] = `<option value="ca">Canada</option>`
	advisor := &fakeAdvisor{
		analysis: analysisWith(schemas.StrategyDirectSelect),
		match:    &schemas.OptionMatch{RecommendedOption: "Canada", Confidence: 0.95},
	}
	e := newTestEngine(page, advisor)

	err := e.AnalyzeAndSelect(context.Background(), "#country", "Canada", "country")
	require.NoError(t, err)
	assert.Contains(t, page.callLog(), "select:#country=Canada")
	assert.Equal(t, 1, advisor.classifyCalls)
}

func TestDirectSelectFallsBackToRawValue(t *testing.T) {
	advisor := &fakeAdvisor{
		match: &schemas.OptionMatch{RecommendedOption: "Canadia", Confidence: 0.4},
	}
	firstCall := true
	page := &scriptedSelectPage{fakePage: newFakePage(), selectFn: func(selector, value string) error {
		if firstCall {
			firstCall = false
			return errors.New("no option Canadia")
		}
		return nil
	}}
	page.innerHTML["#country"] = "<option>Canada</option>"
	e := NewEngine(page, advisor, nil, zap.NewNop())

	err := e.directSelect(context.Background(), "#country", "Canada", "country")
	require.NoError(t, err)
	assert.Contains(t, page.callLog(), "select:#country=Canadia")
	assert.Contains(t, page.callLog(), "select:#country=Canada")
}

// scriptedSelectPage overrides SelectOption with a custom function.
type scriptedSelectPage struct {
	*fakePage
	selectFn func(selector, value string) error
}

func (s *scriptedSelectPage) SelectOption(ctx context.Context, selector, value string) error {
	s.record("select:" + selector + "=" + value)
	return s.selectFn(selector, value)
}

func TestClickToOpen(t *testing.T) {
	t.Run("clicks the recommended option", func(t *testing.T) {
		page := newFakePage()
		page.innerHTML[".options"] = `<li>Canada</li>`
		page.evaluateFn = func(expr string, out any) error {
			if strings.Contains(expr, "querySelectorAll") {
				setJSON(t, out, true)
			}
			return nil
		}
		advisor := &fakeAdvisor{match: &schemas.OptionMatch{RecommendedOption: "Canada"}}
		e := newTestEngine(page, advisor)

		analysis := analysisWith(schemas.StrategyClickToOpen)
		analysis.TriggerSelector = ".trigger"
		analysis.OptionsContainer = ".options"

		err := e.clickToOpen(context.Background(), "#dd", "Canada", "country", analysis)
		require.NoError(t, err)
		assert.Contains(t, page.callLog(), "click:.trigger")
	})

	t.Run("reports ErrOptionNotFound when nothing matches", func(t *testing.T) {
		page := newFakePage()
		page.evaluateFn = func(expr string, out any) error {
			if strings.Contains(expr, "querySelectorAll") {
				setJSON(t, out, false)
			}
			return nil
		}
		advisor := &fakeAdvisor{match: &schemas.OptionMatch{RecommendedOption: "Atlantis"}}
		e := newTestEngine(page, advisor)

		err := e.clickToOpen(context.Background(), "#dd", "Atlantis", "country", analysisWith(schemas.StrategyClickToOpen))
		require.ErrorIs(t, err, ErrOptionNotFound)
	})
}

func TestKeyboardNavigation(t *testing.T) {
	page := newFakePage()
	e := newTestEngine(page, &fakeAdvisor{})

	err := e.keyboardNavigation(context.Background(), "#dd", "Canada", "country")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"focus:#dd",
		"key: ",
		"type:C",
		"key:Enter",
	}, page.callLog())
}

func TestTypeToSearch(t *testing.T) {
	t.Run("uses a nested search input when present", func(t *testing.T) {
		page := newFakePage()
		page.evaluateFn = func(expr string, out any) error {
			if strings.Contains(expr, "search") {
				setJSON(t, out, "#dd-search")
			}
			return nil
		}
		e := newTestEngine(page, &fakeAdvisor{})

		err := e.typeToSearch(context.Background(), "#dd", "Canada", "country")
		require.NoError(t, err)
		assert.Contains(t, page.callLog(), "fill:#dd-search=Canada")
		assert.Contains(t, page.callLog(), "key:Enter")
	})

	t.Run("falls back to typing into the widget", func(t *testing.T) {
		page := newFakePage()
		page.evaluateFn = func(expr string, out any) error {
			setJSON(t, out, "")
			return nil
		}
		e := newTestEngine(page, &fakeAdvisor{})

		err := e.typeToSearch(context.Background(), "#dd", "Canada", "country")
		require.NoError(t, err)
		assert.Contains(t, page.callLog(), "click:#dd")
		assert.Contains(t, page.callLog(), "type:Canada")
	})
}

func TestMultiStep(t *testing.T) {
	t.Run("walks the fixed order and stops at first success", func(t *testing.T) {
		page := newFakePage()
		// ClickToOpen fails at the trigger click, TypeToSearch fails at
		// the commit key, KeyboardNavigation succeeds.
		page.clickErr["#dd"] = errors.New("not clickable")
		page.evaluateFn = func(expr string, out any) error {
			if strings.Contains(expr, "search") {
				setJSON(t, out, "")
			}
			return nil
		}
		e := newTestEngine(page, &fakeAdvisor{match: &schemas.OptionMatch{RecommendedOption: "x"}})

		err := e.multiStep(context.Background(), "#dd", "Canada", "country", analysisWith(schemas.StrategyMultiStep))
		require.NoError(t, err)

		log := page.callLog()
		// ClickToOpen and TypeToSearch both hit click:#dd and fail;
		// KeyboardNavigation then runs focus/space/type/enter.
		assert.Contains(t, log, "focus:#dd")
		assert.NotContains(t, log, "select:#dd=Canada", "DirectSelect must not run once an earlier strategy succeeds")
	})

	t.Run("fails with ErrAllStrategiesFailed when everything fails", func(t *testing.T) {
		page := newFakePage()
		page.clickErr["#dd"] = errors.New("not clickable")
		page.focusErr = errors.New("not focusable")
		page.innerHTMLErr = errors.New("gone")
		page.evaluateFn = func(expr string, out any) error {
			setJSON(t, out, "")
			return nil
		}
		e := newTestEngine(page, &fakeAdvisor{matchErr: errors.New("oracle down")})

		err := e.multiStep(context.Background(), "#dd", "Canada", "country", analysisWith(schemas.StrategyMultiStep))
		require.ErrorIs(t, err, ErrAllStrategiesFailed)

		// Every failed strategy is followed by the settle delay, the
		// final one included. Each strategy above fails before its own
		// internal pauses, so only the inter-attempt delays remain.
		sleeps := page.sleepDurations()
		require.Len(t, sleeps, 4)
		for _, d := range sleeps {
			assert.Equal(t, e.multiStepDelay, d)
		}
	})
}

func TestDynamicLoadingChoreography(t *testing.T) {
	page := newFakePage()
	page.content = "<html><select id='dd'></select></html>"
	advisor := &fakeAdvisor{
		analysis: func() *schemas.DropdownAnalysis {
			a := analysisWith(schemas.StrategyDirectSelect)
			a.IsDynamic = true
			return a
		}(),
		loading: &schemas.LoadingStrategy{
			HasDynamicLoading: true,
			TriggerConditions: []string{"focus", "click"},
			EstimatedWaitMs:   10,
			LoadingIndicators: []string{".spinner"},
		},
		match: &schemas.OptionMatch{RecommendedOption: "Canada"},
	}
	e := newTestEngine(page, advisor)

	err := e.AnalyzeAndSelect(context.Background(), "#dd", "Canada", "country")
	require.NoError(t, err)

	log := page.callLog()
	assert.Contains(t, log, "focus:#dd")
	assert.Contains(t, log, "click:#dd")
	assert.Contains(t, log, "waitVisible:.spinner")
	assert.Contains(t, log, "select:#dd=Canada")
}

func TestAnalyzeAndSelectPropagatesClassifyError(t *testing.T) {
	page := newFakePage()
	advisor := &fakeAdvisor{analysisErr: errors.New("malformed response")}
	e := newTestEngine(page, advisor)

	err := e.AnalyzeAndSelect(context.Background(), "#dd", "Canada", "country")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed response")
}
