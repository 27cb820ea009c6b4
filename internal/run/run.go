package run

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/probelab/webpilot/internal/brain"
	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// injectQueueSize bounds pending manual actions; the channel is the only
// shared path between the control surface and the execution loop.
const injectQueueSize = 16

// Run is the live state of one test run. The record inside is mutated only
// under the lock and only by the state machine and executor.
type Run struct {
	mu     sync.Mutex
	record types.TestRun

	approveCh chan struct{}
	approved  bool
	inject    chan injectedAction
	stuck     bool
	sinks     []Sink

	lastKnown map[string]page.Element
	shots     map[int][]byte
}

type injectedAction struct {
	action brain.Action
	manual bool
}

// New creates a pending run.
func New(url string, opts types.RunOptions) *Run {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 25
	}
	if opts.VisualDiff.Threshold <= 0 {
		opts.VisualDiff.Threshold = 1.0
	}
	return &Run{
		record: types.TestRun{
			ID:        uuid.NewString(),
			URL:       url,
			Options:   opts,
			Status:    types.StatusPending,
			CreatedAt: time.Now(),
		},
		approveCh: make(chan struct{}),
		inject:    make(chan injectedAction, injectQueueSize),
		lastKnown: map[string]page.Element{},
		shots:     map[int][]byte{},
	}
}

// ID returns the run identifier.
func (r *Run) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record.ID
}

// Snapshot returns a copy of the run record safe to hand to callers.
func (r *Run) Snapshot() types.TestRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record
	rec.Steps = append([]types.Step{}, r.record.Steps...)
	return rec
}

// Status returns the current lifecycle state.
func (r *Run) Status() types.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record.Status
}

// Paused reports the orthogonal pause flag.
func (r *Run) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record.Paused
}

// AddSink subscribes an event receiver.
func (r *Run) AddSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// RemoveSink unsubscribes a receiver. Sinks must detach on disconnect or
// they accumulate on the run for its whole lifetime.
func (r *Run) RemoveSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.sinks {
		if existing == s {
			r.sinks = append(r.sinks[:i], r.sinks[i+1:]...)
			return
		}
	}
}

func (r *Run) publish(ev Event) {
	r.mu.Lock()
	ev.RunID = r.record.ID
	sinks := append([]Sink{}, r.sinks...)
	r.mu.Unlock()
	for _, s := range sinks {
		s.Publish(ev)
	}
}

// transition moves the run through the state machine.
func (r *Run) transition(to types.Status) error {
	r.mu.Lock()
	from := r.record.Status
	if !CanTransition(from, to) {
		r.mu.Unlock()
		return transitionError(from, to)
	}
	r.record.Status = to
	if to.Terminal() {
		now := time.Now()
		r.record.EndedAt = &now
		r.record.Paused = false
	}
	if to == types.StatusRunning && r.record.StartedAt == nil {
		now := time.Now()
		r.record.StartedAt = &now
	}
	paused := r.record.Paused
	r.mu.Unlock()
	r.publish(Event{Type: EventStatus, Status: to, Paused: paused})
	return nil
}

// Pause sets the pause flag. Only meaningful while diagnosing or running.
func (r *Run) Pause() error {
	r.mu.Lock()
	status := r.record.Status
	if status != types.StatusDiagnosing && status != types.StatusRunning {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotPausable, status)
	}
	r.record.Paused = true
	r.mu.Unlock()
	r.publish(Event{Type: EventStatus, Status: status, Paused: true})
	return nil
}

// Resume clears the pause flag.
func (r *Run) Resume() error {
	r.mu.Lock()
	if r.record.Status.Terminal() {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunTerminal, r.record.Status)
	}
	r.record.Paused = false
	status := r.record.Status
	r.mu.Unlock()
	r.publish(Event{Type: EventStatus, Status: status, Paused: false})
	return nil
}

// Cancel moves any non-terminal run to cancelled. Idempotent and safe to
// call concurrently with the execution loop, which observes the status at
// the next step boundary.
func (r *Run) Cancel() error {
	r.mu.Lock()
	if r.record.Status == types.StatusCancelled {
		r.mu.Unlock()
		return nil
	}
	if r.record.Status.Terminal() {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunTerminal, r.record.Status)
	}
	r.record.Status = types.StatusCancelled
	now := time.Now()
	r.record.EndedAt = &now
	r.record.Paused = false
	r.mu.Unlock()
	r.publish(Event{Type: EventStatus, Status: types.StatusCancelled})
	return nil
}

// Approve clears the approval gate. Valid only in waiting_approval.
func (r *Run) Approve() error {
	r.mu.Lock()
	if r.record.Status != types.StatusWaitingApproval {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotAwaitingApproval, r.record.Status)
	}
	if !r.approved {
		r.approved = true
		close(r.approveCh)
	}
	r.mu.Unlock()
	return nil
}

// InjectAction queues a manual action for the execution loop. It is
// consumed at the next loop cycle, ahead of the automated decider, and is
// tagged as a teaching moment when the run is currently stuck.
func (r *Run) InjectAction(a brain.Action) error {
	r.mu.Lock()
	if r.record.Status.Terminal() {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunTerminal, r.record.Status)
	}
	if r.stuck {
		if a.Metadata == nil {
			a.Metadata = &brain.ActionMetadata{}
		}
		a.Metadata.IsTeachingMoment = true
	}
	r.mu.Unlock()
	select {
	case r.inject <- injectedAction{action: a, manual: true}:
	default:
		return fmt.Errorf("action queue full")
	}
	r.publish(Event{Type: EventActionQueued, Message: a.Type})
	return nil
}

// GetStep returns step n (1-based).
func (r *Run) GetStep(n int) (types.Step, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.record.Steps {
		if s.StepNumber == n {
			return s, true
		}
	}
	return types.Step{}, false
}

// Progress returns the latest diagnosis progress.
func (r *Run) Progress() *types.DiagnosisProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record.DiagnosisProgress == nil {
		return nil
	}
	p := *r.record.DiagnosisProgress
	return &p
}

// Screenshot returns the stored screenshot for a step.
func (r *Run) Screenshot(step int) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.shots[step]
	return img, ok
}

func (r *Run) setProgress(p types.DiagnosisProgress) {
	r.mu.Lock()
	r.record.DiagnosisProgress = &p
	r.mu.Unlock()
}

func (r *Run) setDiagnosis(d *types.DiagnosisResult) {
	r.mu.Lock()
	r.record.Diagnosis = d
	r.mu.Unlock()
}

func (r *Run) setError(msg string) {
	r.mu.Lock()
	r.record.Error = msg
	r.mu.Unlock()
}

// appendStep records a completed step. Steps are never rewritten; the one
// exception is attaching a screenshot URL after upload.
func (r *Run) appendStep(s types.Step, shot []byte) {
	r.mu.Lock()
	r.record.Steps = append(r.record.Steps, s)
	r.record.CurrentStep = s.StepNumber
	if shot != nil {
		r.shots[s.StepNumber] = shot
	}
	r.mu.Unlock()
	step := s
	r.publish(Event{Type: EventStepRecorded, Step: &step})
}

func (r *Run) setStuck(v bool) {
	r.mu.Lock()
	r.stuck = v
	r.mu.Unlock()
}

func (r *Run) isStuck() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stuck
}

// Manager tracks live runs and the shared baseline store.
type Manager struct {
	mu        sync.Mutex
	runs      map[string]*Run
	Baselines *BaselineStore
}

// NewManager returns an empty manager with its own baseline store.
func NewManager() *Manager {
	return &Manager{runs: map[string]*Run{}, Baselines: NewBaselineStore()}
}

// Create registers a pending run.
func (m *Manager) Create(url string, opts types.RunOptions) *Run {
	r := New(url, opts)
	m.mu.Lock()
	m.runs[r.ID()] = r
	m.mu.Unlock()
	return r
}

// Get looks a run up by ID.
func (m *Manager) Get(id string) (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	return r, ok
}

// List snapshots every known run.
func (m *Manager) List() []types.TestRun {
	m.mu.Lock()
	runs := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	m.mu.Unlock()
	out := make([]types.TestRun, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.Snapshot())
	}
	return out
}

// ApproveBaseline designates the run's screenshot for stepNumber as the
// new baseline for that (runID, stepNumber).
func (m *Manager) ApproveBaseline(runID string, stepNumber int) error {
	r, ok := m.Get(runID)
	if !ok {
		return fmt.Errorf("unknown run %q", runID)
	}
	img, ok := r.Screenshot(stepNumber)
	if !ok {
		return fmt.Errorf("run %s has no screenshot for step %d", runID, stepNumber)
	}
	m.Baselines.Approve(runID, stepNumber, img)
	return nil
}
