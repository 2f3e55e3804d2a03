package pipeline

import (
	"sync"
	"time"
)

// State is the phase a pipeline run is in.
type State string

const (
	StateIdle            State = "idle"
	StateScanning        State = "scanning"
	StateConverting      State = "converting"
	StateManifestWriting State = "manifest_writing"
)

// RunStatus is the final (or current) status of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusPartial   RunStatus = "partial" // completed, some documents skipped or failed
	StatusFailed    RunStatus = "failed"  // aborted on a fatal error
)

// Trigger names the lifecycle hook that started a run.
type Trigger string

const (
	TriggerBuild       Trigger = "build"
	TriggerServerStart Trigger = "server_start"
	TriggerWatch       Trigger = "watch"
	TriggerAPI         Trigger = "api"
)

// Run tracks the state of a single pipeline run.
type Run struct {
	mu sync.Mutex

	id        string
	trigger   Trigger
	state     State
	status    RunStatus
	startedAt time.Time
	endedAt   time.Time
	documents []DocumentResult
	manifest  []string
	err       string
}

func newRun(trigger Trigger) *Run {
	return &Run{
		id:        newRunID(),
		trigger:   trigger,
		state:     StateIdle,
		status:    StatusRunning,
		startedAt: time.Now(),
	}
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

func (r *Run) addResult(res DocumentResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = append(r.documents, res)
}

func (r *Run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateIdle
	r.status = StatusFailed
	r.err = err.Error()
	r.endedAt = time.Now()
}

func (r *Run) complete(manifest []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateIdle
	r.manifest = manifest
	r.status = StatusCompleted
	for _, d := range r.documents {
		if d.Outcome == OutcomeSkipped || d.Outcome == OutcomeFailed {
			r.status = StatusPartial
			break
		}
	}
	r.endedAt = time.Now()
}

// Counts tallies document outcomes of a run.
type Counts struct {
	Converted int `json:"converted"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RunSnapshot is a read-only, JSON-safe copy of run state.
type RunSnapshot struct {
	ID         string           `json:"run_id"`
	Trigger    Trigger          `json:"trigger"`
	State      State            `json:"state"`
	Status     RunStatus        `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Counts     Counts           `json:"counts"`
	Documents  []DocumentResult `json:"documents"`
	Manifest   []string         `json:"manifest"`
	Error      string           `json:"error,omitempty"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := RunSnapshot{
		ID:        r.id,
		Trigger:   r.trigger,
		State:     r.state,
		Status:    r.status,
		StartedAt: r.startedAt,
		Documents: append([]DocumentResult{}, r.documents...),
		Manifest:  append([]string{}, r.manifest...),
		Error:     r.err,
	}
	if !r.endedAt.IsZero() {
		ended := r.endedAt
		snap.FinishedAt = &ended
	}
	for _, d := range r.documents {
		switch d.Outcome {
		case OutcomeConverted:
			snap.Counts.Converted++
		case OutcomeUnchanged:
			snap.Counts.Unchanged++
		case OutcomeSkipped:
			snap.Counts.Skipped++
		case OutcomeFailed:
			snap.Counts.Failed++
		}
	}
	return snap
}

// RunStore keeps the most recent runs, oldest evicted first.
type RunStore struct {
	mu    sync.Mutex
	runs  []*Run
	limit int
}

func NewRunStore(limit int) *RunStore {
	if limit <= 0 {
		limit = 20
	}
	return &RunStore{limit: limit}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	if len(s.runs) > s.limit {
		s.runs = s.runs[len(s.runs)-s.limit:]
	}
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.id == id {
			return r
		}
	}
	return nil
}

// Latest returns the most recently started run, or nil.
func (s *RunStore) Latest() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) == 0 {
		return nil
	}
	return s.runs[len(s.runs)-1]
}

// List returns snapshots, newest first.
func (s *RunStore) List() []RunSnapshot {
	s.mu.Lock()
	runs := append([]*Run(nil), s.runs...)
	s.mu.Unlock()

	out := make([]RunSnapshot, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, runs[i].Snapshot())
	}
	return out
}
