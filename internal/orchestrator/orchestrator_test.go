// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/config"
	"github.com/xkilldash9x/autoform/internal/profile"
)

// stubPage records fills and navigations; everything is instant.
type stubPage struct {
	mu          sync.Mutex
	calls       []string
	navigateErr map[string]error
	fillErr     map[string]error
}

func newStubPage() *stubPage {
	return &stubPage{
		navigateErr: make(map[string]error),
		fillErr:     make(map[string]error),
	}
}

func (p *stubPage) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *stubPage) callLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *stubPage) Navigate(ctx context.Context, url string) error {
	p.record("navigate:" + url)
	return p.navigateErr[url]
}

func (p *stubPage) Content(ctx context.Context) (string, error) { return "", nil }
func (p *stubPage) InnerHTML(ctx context.Context, selector string, maxBytes int) (string, error) {
	return "", nil
}
func (p *stubPage) Evaluate(ctx context.Context, expr string, out any) error { return nil }
func (p *stubPage) Click(ctx context.Context, selector string) error         { return nil }
func (p *stubPage) Focus(ctx context.Context, selector string) error         { return nil }

func (p *stubPage) Fill(ctx context.Context, selector, value string) error {
	p.record("fill:" + selector + "=" + value)
	return p.fillErr[selector]
}

func (p *stubPage) SelectOption(ctx context.Context, selector, value string) error { return nil }
func (p *stubPage) SendKey(ctx context.Context, key string) error                  { return nil }
func (p *stubPage) TypeText(ctx context.Context, text string) error                { return nil }
func (p *stubPage) WaitVisible(ctx context.Context, selector string) error         { return nil }
func (p *stubPage) Sleep(ctx context.Context, d time.Duration) error               { return ctx.Err() }

var _ schemas.BrowserPage = (*stubPage)(nil)

// stubResolver maps field names to fixed selector lists.
type stubResolver struct {
	selectors map[string][]string
	defs      map[string]*schemas.FieldDefinition
}

func (r *stubResolver) Resolve(ctx context.Context, pageURL, profileField string) []string {
	if s, ok := r.selectors[profileField]; ok {
		return s
	}
	return []string{"input[name=\"" + profileField + "\"]"}
}

func (r *stubResolver) FieldDefinition(pageURL, profileField string) *schemas.FieldDefinition {
	return r.defs[profileField]
}

type stubEngine struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (e *stubEngine) AnalyzeAndSelect(ctx context.Context, selector, value, fieldName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, selector+"="+value)
	return e.err
}

type stubValidator struct {
	mu           sync.Mutex
	selectCalls  []string
	recoverCalls []string
	selectErr    error
	recoverErr   error
}

func (v *stubValidator) SelectWithValidation(ctx context.Context, selector, value, fieldName string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selectCalls = append(v.selectCalls, selector+"="+value)
	return v.selectErr
}

func (v *stubValidator) Recover(ctx context.Context, selector, attemptedValue, failure, fieldName string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.recoverCalls = append(v.recoverCalls, selector+"="+attemptedValue)
	return v.recoverErr
}

func testRunConfig() config.RunConfig {
	return config.RunConfig{
		FieldTimeout:      10 * time.Second,
		FillTimeout:       5 * time.Second,
		InterFieldDelay:   time.Millisecond,
		PostFillDelay:     0,
		SelectionAttempts: 3,
	}
}

func newTestOrchestrator(t *testing.T, page *stubPage, resolver Resolver, engine DropdownEngine, validator DropdownValidator) *Orchestrator {
	t.Helper()
	o, err := New(page, resolver, engine, validator, nil, testRunConfig(), zap.NewNop())
	require.NoError(t, err)
	return o
}

func TestRunFillsNonEmptyFieldsAndSkipsEmptyOnes(t *testing.T) {
	page := newStubPage()
	resolver := &stubResolver{
		selectors: map[string][]string{
			"firstName": {"input[name=\"firstName\"]"},
			"lastName":  {"input[name=\"lastName\"]"},
			"country":   {"select[name=\"country\"]"},
		},
	}
	prof := &profile.Profile{
		Name:   "default",
		Fields: map[string]string{"firstName": "John", "lastName": "Doe", "country": ""},
	}

	o := newTestOrchestrator(t, page, resolver, &stubEngine{}, &stubValidator{})
	handle, err := o.Run(context.Background(), []string{"https://example.com/signup"}, prof)
	require.NoError(t, err)

	state := handle.Snapshot()
	require.Len(t, state.Summaries, 1)
	summary := state.Summaries[0]
	assert.Equal(t, 2, summary.Filled)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 3, summary.Total)
	assert.True(t, state.Done)

	log := page.callLog()
	assert.Contains(t, log, "fill:input[name=\"firstName\"]=John")
	assert.Contains(t, log, "fill:input[name=\"lastName\"]=Doe")
}

func TestDropdownPathFallsBackToValidatorThenRecovery(t *testing.T) {
	resolver := &stubResolver{
		selectors: map[string][]string{"country": {"select[name=\"country\"]"}},
		defs: map[string]*schemas.FieldDefinition{
			"country": {ValueAliases: map[string]string{"US": "United States"}},
		},
	}
	prof := &profile.Profile{Name: "p", Fields: map[string]string{"country": "US"}}

	t.Run("AI success needs no fallback", func(t *testing.T) {
		engine := &stubEngine{}
		validator := &stubValidator{}
		o := newTestOrchestrator(t, newStubPage(), resolver, engine, validator)

		handle, err := o.Run(context.Background(), []string{"https://example.com"}, prof)
		require.NoError(t, err)
		assert.Equal(t, 1, handle.Snapshot().Summaries[0].Filled)
		assert.Empty(t, validator.selectCalls)
	})

	t.Run("AI failure falls back with the normalized value", func(t *testing.T) {
		engine := &stubEngine{err: errors.New("oracle down")}
		validator := &stubValidator{}
		o := newTestOrchestrator(t, newStubPage(), resolver, engine, validator)

		handle, err := o.Run(context.Background(), []string{"https://example.com"}, prof)
		require.NoError(t, err)
		assert.Equal(t, 1, handle.Snapshot().Summaries[0].Filled)
		require.Len(t, validator.selectCalls, 1)
		assert.Equal(t, "select[name=\"country\"]=United States", validator.selectCalls[0])
		assert.Empty(t, validator.recoverCalls)
	})

	t.Run("validator failure triggers recovery", func(t *testing.T) {
		engine := &stubEngine{err: errors.New("oracle down")}
		validator := &stubValidator{selectErr: errors.New("option not found")}
		o := newTestOrchestrator(t, newStubPage(), resolver, engine, validator)

		handle, err := o.Run(context.Background(), []string{"https://example.com"}, prof)
		require.NoError(t, err)
		assert.Equal(t, 1, handle.Snapshot().Summaries[0].Filled)
		require.Len(t, validator.recoverCalls, 1)
	})

	t.Run("recovery failure counts the field as failed", func(t *testing.T) {
		engine := &stubEngine{err: errors.New("oracle down")}
		validator := &stubValidator{
			selectErr:  errors.New("option not found"),
			recoverErr: errors.New("all recovery attempts failed"),
		}
		o := newTestOrchestrator(t, newStubPage(), resolver, engine, validator)

		handle, err := o.Run(context.Background(), []string{"https://example.com"}, prof)
		require.NoError(t, err)
		summary := handle.Snapshot().Summaries[0]
		assert.Equal(t, 0, summary.Filled)
		assert.Equal(t, 1, summary.Failed)
	})
}

func TestNavigationFailureDoesNotAbortTheRun(t *testing.T) {
	page := newStubPage()
	page.navigateErr["https://down.example.com"] = errors.New("connection refused")
	prof := &profile.Profile{Name: "p", Fields: map[string]string{"email": "jo@example.com"}}

	o := newTestOrchestrator(t, page, &stubResolver{}, &stubEngine{}, &stubValidator{})
	handle, err := o.Run(context.Background(),
		[]string{"https://down.example.com", "https://up.example.com"}, prof)
	require.NoError(t, err)

	state := handle.Snapshot()
	require.Len(t, state.Summaries, 2)
	assert.NotEmpty(t, state.Summaries[0].Error)
	assert.Equal(t, 0, state.Summaries[0].Filled)
	assert.Equal(t, 1, state.Summaries[1].Filled)
}

func TestFieldFailureContinuesWithRemainingFields(t *testing.T) {
	page := newStubPage()
	page.fillErr["input[name=\"phone\"]"] = errors.New("not fillable")
	resolver := &stubResolver{selectors: map[string][]string{
		"phone": {"input[name=\"phone\"]"},
		"email": {"input[name=\"email\"]"},
	}}
	prof := &profile.Profile{Name: "p", Fields: map[string]string{
		"phone": "555-0100",
		"email": "jo@example.com",
	}}

	o := newTestOrchestrator(t, page, resolver, &stubEngine{}, &stubValidator{})
	handle, err := o.Run(context.Background(), []string{"https://example.com"}, prof)
	require.NoError(t, err)

	summary := handle.Snapshot().Summaries[0]
	assert.Equal(t, 1, summary.Filled)
	assert.Equal(t, 1, summary.Failed)
}

func TestCanceledContextProcessesNothing(t *testing.T) {
	page := newStubPage()
	prof := &profile.Profile{Name: "p", Fields: map[string]string{"email": "jo@example.com"}}

	o := newTestOrchestrator(t, page, &stubResolver{}, &stubEngine{}, &stubValidator{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	handle, err := o.Run(ctx, []string{"https://example.com"}, prof)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, handle.Snapshot().Summaries)
	assert.Empty(t, page.callLog())
}

func TestRunHandleStop(t *testing.T) {
	h := newRunHandle()
	assert.False(t, h.Stopped())
	h.Stop()
	h.Stop()
	assert.True(t, h.Stopped())
}

func TestIsDropdownLike(t *testing.T) {
	cases := []struct {
		selector string
		want     bool
	}{
		{"select[name='country']", true},
		{"div.dropdown-menu", true},
		{"[role='combobox']", true},
		{"ul[role='listbox']", true},
		{"input[name='email']", false},
		{"#selector", false},
	}
	for _, tc := range cases {
		t.Run(tc.selector, func(t *testing.T) {
			assert.Equal(t, tc.want, isDropdownLike(tc.selector))
		})
	}
}
