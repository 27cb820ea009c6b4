package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/probelab/webpilot/internal/brain"
	"github.com/probelab/webpilot/internal/diagnose"
	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/telemetry"
	"github.com/probelab/webpilot/internal/types"
)

const (
	// pollInterval drives the pause/stuck wait loops. Control commands
	// only take effect at step boundaries, so a coarse poll is fine.
	pollInterval = 50 * time.Millisecond
	// stepTimeout bounds a single page interaction.
	stepTimeout = 10 * time.Second
)

// Executor drives a run through its whole lifecycle against one page.
// Zero-value fields fall back to the default diagnoser set and, per run
// mode, a scripted or monkey decider.
type Executor struct {
	Manager          *Manager
	Brain            brain.Brain
	Diagnosers       []diagnose.Diagnoser
	DiagnoserTimeout time.Duration
	// Design, when set, is handed to the telemetry collector so visual
	// checks compare the page against the expected design.
	Design *telemetry.DesignSpec

	// now is swapped in tests to control the time budget.
	now func() time.Time
}

// NewExecutor builds an executor bound to a manager's baseline store.
func NewExecutor(m *Manager) *Executor {
	return &Executor{Manager: m, now: time.Now}
}

// Execute runs r against p: queue, diagnose, gate on approval, then step
// until a completion condition. It returns once the run is terminal; the
// caller typically invokes it on its own goroutine per run.
func (e *Executor) Execute(ctx context.Context, r *Run, p page.Page) error {
	if e.now == nil {
		e.now = time.Now
	}
	if err := r.transition(types.StatusQueued); err != nil {
		return err
	}
	if err := r.transition(types.StatusDiagnosing); err != nil {
		return err
	}
	if err := p.Navigate(ctx, r.Snapshot().URL); err != nil {
		return e.fail(r, fmt.Errorf("navigate: %w", err))
	}

	collector := telemetry.Attach(p)
	collector.Design = e.Design
	defer collector.Detach()

	diagnosis, err := e.diagnose(ctx, r, p, collector)
	if err != nil {
		return e.fail(r, err)
	}
	if diagnosis == nil { // cancelled mid-diagnosis
		return nil
	}
	r.setDiagnosis(diagnosis)

	if err := r.transition(types.StatusWaitingApproval); err != nil {
		return err
	}
	approved, err := e.awaitApproval(ctx, r, diagnosis)
	if err != nil {
		return e.fail(r, err)
	}
	if !approved { // cancelled at the gate
		return nil
	}

	if err := r.transition(types.StatusRunning); err != nil {
		return err
	}
	return e.stepLoop(ctx, r, p, collector)
}

// diagnose runs the analyzer session, honoring pause between diagnosers.
// A nil result with nil error means the run was cancelled.
func (e *Executor) diagnose(ctx context.Context, r *Run, p page.Page, collector *telemetry.Collector) (*types.DiagnosisResult, error) {
	diagnosers := e.Diagnosers
	if diagnosers == nil {
		diagnosers = diagnose.DefaultSet()
	}
	var opts []diagnose.Option
	if e.DiagnoserTimeout > 0 {
		opts = append(opts, diagnose.WithDiagnoserTimeout(e.DiagnoserTimeout))
	}
	session := diagnose.NewSession(diagnosers, opts...)
	onProgress := func(prog types.DiagnosisProgress) {
		r.setProgress(prog)
	}
	for {
		result, err := session.Run(ctx, p, r.Paused, onProgress)
		if err == nil {
			result.ComprehensiveTests = collector.Collect(ctx)
			return result, nil
		}
		if !errors.Is(err, diagnose.ErrInterrupted) {
			return nil, err
		}
		// Paused between diagnosers; hold position until resume or cancel.
		if !e.waitWhilePaused(ctx, r) {
			return nil, ctx.Err()
		}
		if r.Status() == types.StatusCancelled {
			return nil, nil
		}
	}
}

// awaitApproval applies the run's approval policy. It returns false with a
// nil error when the run was cancelled while waiting.
func (e *Executor) awaitApproval(ctx context.Context, r *Run, diagnosis *types.DiagnosisResult) (bool, error) {
	policy := r.Snapshot().Options.Approval
	switch policy.Mode {
	case types.ApprovalAuto:
		return true, nil
	case types.ApprovalAutoOnClean:
		if len(diagnosis.HighRiskAreas) <= policy.MaxBlockers {
			return true, nil
		}
		// Blockers above the budget fall through to a manual wait.
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.approveCh:
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			if r.Status() == types.StatusCancelled {
				return false, nil
			}
		}
	}
}

// stepLoop executes actions until a completion condition: the decider has
// nothing left, the step ceiling is hit, the time budget expires, or the
// run is cancelled or fails. Pause and cancel are honored strictly at step
// boundaries.
func (e *Executor) stepLoop(ctx context.Context, r *Run, p page.Page, collector *telemetry.Collector) error {
	snap := r.Snapshot()
	opts := snap.Options
	decider := e.Brain
	if decider == nil {
		decider = brain.NewMonkey(1)
	}
	deadline := time.Time{}
	if opts.TimeBudget > 0 {
		deadline = e.now().Add(opts.TimeBudget)
	}

	var lastStep *types.Step
	for stepNum := 1; ; stepNum++ {
		if r.Status() == types.StatusCancelled {
			return nil
		}
		if !e.waitWhilePaused(ctx, r) {
			return e.fail(r, ctx.Err())
		}
		if r.Status() == types.StatusCancelled {
			return nil
		}
		if stepNum > opts.MaxSteps || (!deadline.IsZero() && e.now().After(deadline)) {
			return r.transition(types.StatusCompleted)
		}

		action, manual, err := e.nextAction(ctx, r, p, decider, stepNum, lastStep)
		if err != nil {
			if errors.Is(err, brain.ErrNoAction) {
				return r.transition(types.StatusCompleted)
			}
			return e.fail(r, fmt.Errorf("select action for step %d: %w", stepNum, err))
		}
		// A pause or cancel that landed while the decider was thinking
		// still blocks the step: selection is not execution.
		if !e.waitWhilePaused(ctx, r) {
			return e.fail(r, ctx.Err())
		}
		if r.Status() == types.StatusCancelled {
			return nil
		}

		step, fatal := e.performStep(ctx, r, p, action, manual, stepNum, decider.Mode())
		if fatal {
			e.recordStep(ctx, r, p, collector, step, opts)
			return e.fail(r, fmt.Errorf("step %d: %s", stepNum, step.Error))
		}
		if step == nil { // cancelled while stuck
			return nil
		}
		e.recordStep(ctx, r, p, collector, step, opts)
		lastStep = step
	}
}

// nextAction prefers a queued injected action over the automated decider.
func (e *Executor) nextAction(ctx context.Context, r *Run, p page.Page, decider brain.Brain, stepNum int, lastStep *types.Step) (brain.Action, bool, error) {
	select {
	case inj := <-r.inject:
		return inj.action, inj.manual, nil
	default:
	}

	els, err := p.Query(ctx, interactiveSelector)
	if err != nil {
		els = nil
	}
	snap := r.Snapshot()
	obs := brain.Observation{
		URL:        snap.URL,
		StepNumber: stepNum,
		Elements:   els,
		LastStep:   lastStep,
		Diagnosis:  snap.Diagnosis,
	}
	if lastStep != nil {
		obs.RecentError = lastStep.Error
	}
	action, err := decider.SelectNextAction(ctx, obs)
	return action, false, err
}

// performStep resolves and executes one action. On healing exhaustion it
// either fails the run (FailOnStuck) or blocks on an ai_stuck event until
// a manual action arrives; that action is executed as this step and tagged
// as a teaching moment. A nil step with fatal=false means cancellation.
func (e *Executor) performStep(ctx context.Context, r *Run, p page.Page, action brain.Action, manual bool, stepNum int, mode types.StepMode) (*types.Step, bool) {
	step := &types.Step{
		StepNumber: stepNum,
		Action:     action.Type,
		Target:     action.Selector,
		Value:      action.Value,
		Timestamp:  time.Now(),
		Mode:       mode,
	}
	if manual {
		step.Mode = types.ModeLLM
		if action.Metadata != nil {
			step.TeachingMoment = action.Metadata.IsTeachingMoment
		}
	}

	err := e.applyAction(ctx, r, p, action, step, manual)
	if err == nil {
		step.Success = true
		return step, false
	}
	step.Error = err.Error()

	if !errors.Is(err, ErrHealingExhausted) {
		// Ordinary action failure: the step is recorded as failed and the
		// run continues; the decider sees the error on its next turn.
		return step, false
	}
	if r.Snapshot().Options.FailOnStuck {
		return step, true
	}

	// Stuck: announce, then block until a human supplies the next move.
	r.setStuck(true)
	r.publish(Event{
		Type:    EventAIStuck,
		Message: fmt.Sprintf("no element matches %q and every healing strategy failed", action.Selector),
	})
	inj, ok := e.awaitInjection(ctx, r)
	r.setStuck(false)
	if !ok {
		return nil, false
	}

	step.Action = inj.action.Type
	step.Target = inj.action.Selector
	step.Value = inj.action.Value
	step.Mode = types.ModeLLM
	if inj.action.Metadata != nil {
		step.TeachingMoment = inj.action.Metadata.IsTeachingMoment
	}
	if err := e.applyAction(ctx, r, p, inj.action, step, true); err != nil {
		step.Error = err.Error()
		return step, false
	}
	step.Error = ""
	step.Success = true
	return step, false
}

// applyAction executes a single page interaction with the step timeout.
// Automated selector actions go through the self-healing chain; manual
// actions use their selector verbatim.
func (e *Executor) applyAction(ctx context.Context, r *Run, p page.Page, action brain.Action, step *types.Step, manual bool) error {
	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()

	selector := action.Selector
	if !manual && selector != "" && (action.Type == "click" || action.Type == "type") {
		res, err := resolveTarget(ctx, p, selector, r.lastKnownCopy())
		if err != nil {
			return err
		}
		selector = res.selector
		step.SelfHealing = res.healing
		if step.SelfHealing != nil {
			step.Target = selector
		}
	}

	switch action.Type {
	case "click":
		if err := p.Click(ctx, selector); err != nil {
			return fmt.Errorf("click %s: %w", selector, err)
		}
	case "type":
		if err := p.Type(ctx, selector, action.Value); err != nil {
			return fmt.Errorf("type into %s: %w", selector, err)
		}
	case "navigate":
		if err := p.Navigate(ctx, action.Value); err != nil {
			return fmt.Errorf("navigate to %s: %w", action.Value, err)
		}
	case "scroll":
		script := fmt.Sprintf("window.scrollBy(0, %d)", scrollAmount(action))
		if err := p.Evaluate(ctx, script, nil); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
	case "wait":
		select {
		case <-time.After(waitDuration(action)):
		case <-ctx.Done():
			return ctx.Err()
		}
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}

	if selector != "" {
		e.rememberPosition(ctx, r, p, selector)
	}
	return nil
}

// recordStep screenshots the page, runs the visual diff, appends the step
// and publishes the page state.
func (e *Executor) recordStep(ctx context.Context, r *Run, p page.Page, collector *telemetry.Collector, step *types.Step, opts types.RunOptions) {
	shot, err := p.Screenshot(ctx)
	if err != nil {
		shot = nil
	}
	if shot != nil && opts.VisualDiff.Enabled {
		step.VisualDiff = e.diffStep(r, step.StepNumber, shot, opts.VisualDiff)
	}
	r.appendStep(*step, shot)
	if e.Manager != nil && shot != nil {
		e.Manager.Baselines.Put(r.ID(), step.StepNumber, shot)
	}

	snap := r.Snapshot()
	consoleErrs, networkErrs := collector.Counts()
	r.publish(Event{
		Type:          EventPageState,
		URL:           snap.URL,
		Screenshot:    shot,
		ConsoleErrors: consoleErrs,
		NetworkErrors: networkErrs,
	})
}

// diffStep compares a step screenshot against the baseline run's approved
// image for the same step number. No baseline means no difference.
func (e *Executor) diffStep(r *Run, stepNum int, shot []byte, opts types.VisualDiffOptions) *types.VisualDiff {
	if e.Manager == nil {
		return nil
	}
	baseRun := opts.BaselineRunID
	if baseRun == "" {
		baseRun = r.ID()
	}
	baseline, ok := e.Manager.Baselines.Get(baseRun, stepNum)
	if !ok {
		return nil
	}
	pct := CompareScreenshots(baseline, shot)
	return &types.VisualDiff{
		HasDifference:  pct > opts.Threshold,
		DiffPercentage: pct,
		BaselineRunID:  baseRun,
		Threshold:      opts.Threshold,
	}
}

// rememberPosition caches the element's geometry for the positional
// healing strategy.
func (e *Executor) rememberPosition(ctx context.Context, r *Run, p page.Page, selector string) {
	els, err := p.Query(ctx, selector)
	if err != nil || len(els) == 0 {
		return
	}
	r.mu.Lock()
	r.lastKnown[selector] = els[0]
	r.mu.Unlock()
}

// awaitInjection blocks until a manual action arrives. Returns ok=false on
// cancellation or context expiry.
func (e *Executor) awaitInjection(ctx context.Context, r *Run) (injectedAction, bool) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case inj := <-r.inject:
			return inj, true
		case <-ctx.Done():
			return injectedAction{}, false
		case <-ticker.C:
			if r.Status() == types.StatusCancelled {
				return injectedAction{}, false
			}
		}
	}
}

// waitWhilePaused blocks while the pause flag is set. Returns false only
// when the context expires.
func (e *Executor) waitWhilePaused(ctx context.Context, r *Run) bool {
	for r.Paused() {
		if r.Status().Terminal() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
	return true
}

// fail moves the run to failed unless it already reached a terminal state.
func (e *Executor) fail(r *Run, err error) error {
	if err == nil {
		err = errors.New("run failed")
	}
	if r.Status().Terminal() {
		return err
	}
	r.setError(err.Error())
	if terr := r.transition(types.StatusFailed); terr != nil {
		return err
	}
	return err
}

func (r *Run) lastKnownCopy() map[string]page.Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]page.Element, len(r.lastKnown))
	for k, v := range r.lastKnown {
		out[k] = v
	}
	return out
}

func scrollAmount(a brain.Action) int {
	if a.Coordinates != nil && a.Coordinates.Y != 0 {
		return int(a.Coordinates.Y)
	}
	return 600
}

func waitDuration(a brain.Action) time.Duration {
	if d, err := time.ParseDuration(a.Value); err == nil && d > 0 && d <= stepTimeout {
		return d
	}
	return time.Second
}
