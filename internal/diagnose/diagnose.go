// Package diagnose inspects a live page and classifies what can and cannot
// be automated. Diagnosers are additive: the orchestrator runs whatever the
// set contains, so new analyzers slot in without touching run logic.
package diagnose

import (
	"context"
	"fmt"
	"time"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// Blocker classes. Diagnosers tag cannotTest entries with one of these so
// promotion to high-risk areas is a table lookup, not string matching.
const (
	BlockerCaptcha         = "captcha"
	BlockerMFA             = "mfa"
	BlockerOAuth           = "oauth"
	BlockerPayment         = "payment"
	BlockerVerification    = "verification"
	BlockerExternalContent = "external_content"
	BlockerCrossOrigin     = "cross_origin"
	BlockerAutoplay        = "autoplay"
	BlockerServerSession   = "server_session"
	BlockerAnalysisLimit   = "analysis_limitation"
)

type blockerRule struct {
	Promote bool
	Risk    types.RiskLevel
	Manual  bool
}

// blockerClasses is the explicit promotion table: which blocker classes
// become run-level high-risk areas, at what risk grade.
var blockerClasses = map[string]blockerRule{
	BlockerCaptcha:         {Promote: true, Risk: types.RiskHigh, Manual: true},
	BlockerMFA:             {Promote: true, Risk: types.RiskHigh, Manual: true},
	BlockerPayment:         {Promote: true, Risk: types.RiskHigh, Manual: true},
	BlockerVerification:    {Promote: true, Risk: types.RiskHigh, Manual: true},
	BlockerOAuth:           {Promote: true, Risk: types.RiskMedium, Manual: true},
	BlockerExternalContent: {Promote: true, Risk: types.RiskMedium, Manual: true},
	BlockerCrossOrigin:     {Promote: true, Risk: types.RiskMedium, Manual: true},
	// Soft limitations stay at the diagnoser level.
	BlockerAutoplay:      {},
	BlockerServerSession: {},
	BlockerAnalysisLimit: {},
}

// HardBlocker reports whether a blocker class promotes to a high-risk area.
func HardBlocker(class string) bool {
	return blockerClasses[class].Promote
}

// Diagnoser analyzes one concern on a live page.
//
// Implementations must never return an error for page-content reasons; the
// Run wrapper absorbs failures into a single "<Domain> Analysis Limitation"
// cannotTest entry so the orchestrator never aborts because one diagnoser
// failed.
type Diagnoser interface {
	TestType() string
	// Steps declares the planned sub-phases up front so progress can be
	// computed before execution.
	Steps() []string
	Diagnose(ctx context.Context, p page.Page) (types.TestTypeDiagnosis, error)
}

// DefaultSet returns the seven stock diagnosers in their fixed run order.
func DefaultSet() []Diagnoser {
	return []Diagnoser{
		&LoginDiagnoser{},
		&SignupDiagnoser{},
		&FormDiagnoser{},
		&NavigationDiagnoser{},
		&VisualDiagnoser{},
		&AccessibilityDiagnoser{},
		&RageBaitDiagnoser{},
	}
}

// Run executes one diagnoser with the never-throw contract: panics, errors
// and timeouts all collapse into a limitation entry on the result.
func Run(ctx context.Context, d Diagnoser, p page.Page, timeout time.Duration) types.TestTypeDiagnosis {
	start := time.Now()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		diag types.TestTypeDiagnosis
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("diagnoser panic: %v", r)}
			}
		}()
		diag, err := d.Diagnose(ctx, p)
		ch <- outcome{diag: diag, err: err}
	}()

	var diag types.TestTypeDiagnosis
	select {
	case out := <-ch:
		if out.err != nil {
			diag = limitation(d, out.err)
		} else {
			diag = out.diag
		}
	case <-ctx.Done():
		// Hung diagnoser: abandon it and record the limitation.
		diag = limitation(d, fmt.Errorf("analysis timed out: %w", ctx.Err()))
	}

	diag.TestType = d.TestType()
	if len(diag.Steps) == 0 {
		diag.Steps = d.Steps()
	}
	diag.Duration = time.Since(start)
	return diag
}

func limitation(d Diagnoser, err error) types.TestTypeDiagnosis {
	diag := types.TestTypeDiagnosis{
		TestType: d.TestType(),
		Steps:    d.Steps(),
		CannotTest: []types.CheckItem{{
			Name:         fmt.Sprintf("%s Analysis Limitation", d.TestType()),
			Reason:       fmt.Sprintf("analysis could not complete: %v", err),
			BlockerClass: BlockerAnalysisLimit,
		}},
	}
	diag.Narrative = buildNarrative(d.TestType(), diag.CanTest, diag.CannotTest, nil)
	return diag
}
