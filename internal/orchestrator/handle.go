// internal/orchestrator/handle.go
package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// URLSummary is the end-of-run tally for one processed URL.
type URLSummary struct {
	URL     string `json:"url"`
	Filled  int    `json:"filled"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	Total   int    `json:"total"`
	// Error is set when the URL could not be processed at all, e.g. a
	// navigation failure. Field-level failures land in Failed instead.
	Error string `json:"error,omitempty"`
}

// RunState is a point-in-time snapshot of a run's progress.
type RunState struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at,omitzero"`
	CurrentURL string       `json:"current_url,omitempty"`
	Processed  int          `json:"processed"`
	Summaries  []URLSummary `json:"summaries"`
	Done       bool         `json:"done"`
}

// RunHandle identifies one fill run and carries its observable state
// and cooperative stop signal. The run loop checks the stop signal
// between URLs and between fields; an in-flight browser operation is
// never interrupted.
type RunHandle struct {
	id string

	mu    sync.RWMutex
	state RunState

	stopOnce sync.Once
	stop     chan struct{}
}

func newRunHandle() *RunHandle {
	id := uuid.New().String()
	return &RunHandle{
		id: id,
		state: RunState{
			ID:        id,
			StartedAt: time.Now(),
		},
		stop: make(chan struct{}),
	}
}

// ID returns the run's unique identifier.
func (h *RunHandle) ID() string {
	return h.id
}

// Stop requests cooperative cancellation. Safe to call any number of
// times, from any goroutine.
func (h *RunHandle) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Stopped reports whether a stop has been requested.
func (h *RunHandle) Stopped() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

// Snapshot returns a copy of the run's current state.
func (h *RunHandle) Snapshot() RunState {
	h.mu.RLock()
	defer h.mu.RUnlock()

	state := h.state
	state.Summaries = append([]URLSummary(nil), h.state.Summaries...)
	return state
}

func (h *RunHandle) setCurrentURL(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.CurrentURL = url
}

func (h *RunHandle) addSummary(summary URLSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Summaries = append(h.state.Summaries, summary)
	h.state.Processed++
}

func (h *RunHandle) finish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.CurrentURL = ""
	h.state.FinishedAt = time.Now()
	h.state.Done = true
}
