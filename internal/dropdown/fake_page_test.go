package dropdown

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/autoform/api/schemas"
)

// fakePage is a scriptable in-memory stand-in for a live page. Sleep
// is instant so tests stay fast.
type fakePage struct {
	mu    sync.Mutex
	calls []string

	navigateErr   error
	content       string
	contentErr    error
	innerHTML     map[string]string
	innerHTMLErr  error
	evaluateFn    func(expr string, out any) error
	clickErr      map[string]error
	focusErr      error
	fillErr       error
	selectErr     map[string]error
	sendKeyErr    error
	typeTextErr   error
	waitVisible   error
	sleeps        []time.Duration
}

func newFakePage() *fakePage {
	return &fakePage{
		innerHTML: make(map[string]string),
		clickErr:  make(map[string]error),
		selectErr: make(map[string]error),
	}
}

func (f *fakePage) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakePage) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	f.record("navigate:" + url)
	return f.navigateErr
}

func (f *fakePage) Content(ctx context.Context) (string, error) {
	f.record("content")
	return f.content, f.contentErr
}

func (f *fakePage) InnerHTML(ctx context.Context, selector string, maxBytes int) (string, error) {
	f.record("innerHTML:" + selector)
	if f.innerHTMLErr != nil {
		return "", f.innerHTMLErr
	}
	return f.innerHTML[selector], nil
}

func (f *fakePage) Evaluate(ctx context.Context, expr string, out any) error {
	f.record("evaluate")
	if f.evaluateFn != nil {
		return f.evaluateFn(expr, out)
	}
	return nil
}

func (f *fakePage) Click(ctx context.Context, selector string) error {
	f.record("click:" + selector)
	return f.clickErr[selector]
}

func (f *fakePage) Focus(ctx context.Context, selector string) error {
	f.record("focus:" + selector)
	return f.focusErr
}

func (f *fakePage) Fill(ctx context.Context, selector, value string) error {
	f.record("fill:" + selector + "=" + value)
	return f.fillErr
}

func (f *fakePage) SelectOption(ctx context.Context, selector, value string) error {
	f.record("select:" + selector + "=" + value)
	return f.selectErr[selector]
}

func (f *fakePage) SendKey(ctx context.Context, key string) error {
	f.record("key:" + key)
	return f.sendKeyErr
}

func (f *fakePage) TypeText(ctx context.Context, text string) error {
	f.record("type:" + text)
	return f.typeTextErr
}

func (f *fakePage) WaitVisible(ctx context.Context, selector string) error {
	f.record("waitVisible:" + selector)
	return f.waitVisible
}

// Sleep is instant but remembers the requested durations, kept out of
// the call log so exact-sequence assertions stay focused on actions.
func (f *fakePage) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fakePage) sleepDurations() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

var _ schemas.BrowserPage = (*fakePage)(nil)

// setJSON copies v into an Evaluate output pointer via JSON, the same
// way the real page decodes evaluation results.
func setJSON(t *testing.T, out, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out))
}

// fakeAdvisor returns canned oracle answers.
type fakeAdvisor struct {
	analysis    *schemas.DropdownAnalysis
	analysisErr error
	loading     *schemas.LoadingStrategy
	loadingErr  error
	failure     *schemas.FailureAnalysis
	failureErr  error
	match       *schemas.OptionMatch
	matchErr    error

	classifyCalls int
	matchCalls    int
}

func (f *fakeAdvisor) ClassifyDropdown(ctx context.Context, selector, elementHTML, surroundingContext string) (*schemas.DropdownAnalysis, error) {
	f.classifyCalls++
	return f.analysis, f.analysisErr
}

func (f *fakeAdvisor) DetectDynamicLoading(ctx context.Context, pageHTML, selector string) (*schemas.LoadingStrategy, error) {
	return f.loading, f.loadingErr
}

func (f *fakeAdvisor) AnalyzeSelectionFailure(ctx context.Context, pageHTML, selector, attemptedValue, errorMessage string) (*schemas.FailureAnalysis, error) {
	return f.failure, f.failureErr
}

func (f *fakeAdvisor) MatchOption(ctx context.Context, dropdownHTML, userValue, fieldContext string) (*schemas.OptionMatch, error) {
	f.matchCalls++
	return f.match, f.matchErr
}
