package diagnose

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// ErrInterrupted is returned when a session is paused between diagnosers.
// The session keeps its place; calling Run again resumes with the next
// undiagnosed analyzer.
var ErrInterrupted = errors.New("diagnosis interrupted")

// milestones map diagnosis phases to percent thresholds so the progress bar
// moves smoothly even though diagnosers vary wildly in cost.
var milestones = []struct {
	label string
	until float64 // percent when the milestone completes
}{
	{"Session initialization", 8},
	{"Snapshot capture", 20},
	{"Component and blocker analysis", 65},
	{"Navigation exploration", 85},
	{"Summary compilation", 100},
}

// recommendedByType maps a passing diagnoser to the test it unlocks.
var recommendedByType = map[string]string{
	"Login":         "Login flow test",
	"Signup":        "Registration flow test",
	"Form":          "Form fill-and-submit test",
	"Navigation":    "Navigation crawl test",
	"Visual":        "Visual regression test",
	"Accessibility": "Accessibility audit",
	"RageBait":      "Edge-case gauntlet",
}

// Session drives one run's diagnosis. It is resumable: pause between
// diagnosers, then call Run again.
type Session struct {
	diagnosers  []Diagnoser
	timeout     time.Duration
	completed   []types.TestTypeDiagnosis
	next        int
	lastPercent float64
	totalSteps  int
}

// Option configures a Session.
type Option func(*Session)

// WithDiagnoserTimeout bounds each diagnoser; a hung analyzer is abandoned
// and recorded as a limitation.
func WithDiagnoserTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// NewSession creates a diagnosis session over the given analyzer set.
func NewSession(diagnosers []Diagnoser, opts ...Option) *Session {
	s := &Session{diagnosers: diagnosers, timeout: 30 * time.Second}
	for _, d := range diagnosers {
		s.totalSteps += len(d.Steps())
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Completed returns how many diagnosers have finished, for resume bookkeeping.
func (s *Session) Completed() int { return s.next }

// Run executes remaining diagnosers in declared order against one page.
// interrupt is polled between diagnosers (never mid-diagnoser); a true
// return yields ErrInterrupted with position retained. onProgress receives
// monotonically non-decreasing percent updates.
func (s *Session) Run(ctx context.Context, p page.Page, interrupt func() bool, onProgress func(types.DiagnosisProgress)) (*types.DiagnosisResult, error) {
	if onProgress == nil {
		onProgress = func(types.DiagnosisProgress) {}
	}
	if interrupt == nil {
		interrupt = func() bool { return false }
	}

	if s.next == 0 {
		s.report(onProgress, 0, "Session initialization", 0, 1, "Attaching to page")
	}

	for ; s.next < len(s.diagnosers); s.next++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("diagnosis aborted: %w", err)
		}
		if interrupt() {
			return nil, ErrInterrupted
		}
		d := s.diagnosers[s.next]
		steps := d.Steps()
		s.report(onProgress, s.doneSteps(), d.TestType(), 0, len(steps), steps[0])
		diag := Run(ctx, d, p, s.timeout)
		s.completed = append(s.completed, diag)
		s.report(onProgress, s.doneSteps()+len(steps), d.TestType(), len(steps), len(steps), steps[len(steps)-1])
	}

	result := s.merge()
	s.report(onProgress, s.totalSteps, "Summary compilation", 1, 1, "Compiling diagnosis")
	return result, nil
}

// doneSteps counts planned sub-steps of already-completed diagnosers.
func (s *Session) doneSteps() int {
	n := 0
	for i := 0; i < len(s.completed); i++ {
		n += len(s.diagnosers[i].Steps())
	}
	return n
}

func (s *Session) report(onProgress func(types.DiagnosisProgress), done int, label string, sub, subTotal int, subLabel string) {
	percent := s.percentFor(done)
	if percent < s.lastPercent {
		percent = s.lastPercent
	}
	s.lastPercent = percent
	onProgress(types.DiagnosisProgress{
		Step:          done,
		TotalSteps:    s.totalSteps,
		StepLabel:     label,
		SubStep:       sub,
		TotalSubSteps: subTotal,
		SubStepLabel:  subLabel,
		Percent:       percent,
	})
}

// percentFor maps raw step counts through the milestone thresholds: the
// first two milestones cover session setup, the analysis band stretches
// over the diagnoser steps, and the tail is reserved for summary work.
func (s *Session) percentFor(done int) float64 {
	if s.totalSteps == 0 {
		return 100
	}
	frac := float64(done) / float64(s.totalSteps)
	// Setup milestones complete as soon as the first diagnoser reports.
	start, end := milestones[1].until, milestones[len(milestones)-2].until
	if done == 0 {
		return milestones[0].until
	}
	if done >= s.totalSteps {
		return 100
	}
	return start + frac*(end-start)
}

// merge folds per-diagnoser findings into one DiagnosisResult. Components
// are de-duplicated by (selector, name); hard blockers promote into
// high-risk areas via the blockerClasses table.
func (s *Session) merge() *types.DiagnosisResult {
	result := &types.DiagnosisResult{Diagnoses: s.completed}
	seenCan := map[[2]string]bool{}
	seenCannot := map[[2]string]bool{}
	seenSelector := map[string]bool{}

	for _, diag := range s.completed {
		for _, item := range diag.CanTest {
			key := [2]string{item.Selector, item.Name}
			if seenCan[key] {
				continue
			}
			seenCan[key] = true
			result.TestableComponents = append(result.TestableComponents, item)
		}
		for _, item := range diag.CannotTest {
			key := [2]string{item.Selector, item.Name}
			if seenCannot[key] {
				continue
			}
			seenCannot[key] = true
			result.NonTestableComponents = append(result.NonTestableComponents, item)

			rule := blockerClasses[item.BlockerClass]
			if rule.Promote {
				result.HighRiskAreas = append(result.HighRiskAreas, types.HighRiskArea{
					Name:                       item.Name,
					Selector:                   item.Selector,
					Reason:                     item.Reason,
					Risk:                       rule.Risk,
					BlockerClass:               item.BlockerClass,
					RequiresManualIntervention: rule.Manual,
				})
				if item.Selector != "" && !seenSelector[item.Selector] {
					seenSelector[item.Selector] = true
					result.BlockedSelectors = append(result.BlockedSelectors, item.Selector)
				}
			}
		}
		if diag.Narrative.Passed {
			if rec, ok := recommendedByType[diag.TestType]; ok {
				result.RecommendedTests = append(result.RecommendedTests, rec)
			}
		}
	}
	sort.Strings(result.BlockedSelectors)
	result.Summary = summarize(result)
	return result
}

func summarize(r *types.DiagnosisResult) string {
	return fmt.Sprintf("%d testable component(s), %d non-testable, %d high-risk area(s); %d recommended test(s)",
		len(r.TestableComponents), len(r.NonTestableComponents), len(r.HighRiskAreas), len(r.RecommendedTests))
}
