// Package report renders diagnosis and run results for terminals and for
// machine consumption.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/probelab/webpilot/internal/output"
	"github.com/probelab/webpilot/internal/types"
)

// WriteJSON emits the full run record as indented JSON.
func WriteJSON(w io.Writer, run types.TestRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

// WriteDiagnosisJSON emits only the diagnosis section.
func WriteDiagnosisJSON(w io.Writer, d *types.DiagnosisResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// PrintDiagnosis renders a diagnosis for a terminal.
func PrintDiagnosis(p *output.Printer, url string, d *types.DiagnosisResult) {
	p.Appf("Diagnosis for %s", url)
	p.Detail(d.Summary)

	for _, diag := range d.Diagnoses {
		verdict := p.Pass
		if !diag.Narrative.Passed {
			verdict = p.Fail
		}
		verdict(fmt.Sprintf("%s (%s)", diag.TestType, diag.Duration.Round(time.Millisecond)))
		p.Detailf("    %s %s", diag.Narrative.What, diag.Narrative.Result)
		for _, item := range diag.CannotTest {
			p.Detailf("    cannot test: %s (%s)", item.Name, item.Reason)
		}
	}

	if len(d.HighRiskAreas) > 0 {
		p.App("High-risk areas")
		for _, area := range d.HighRiskAreas {
			line := fmt.Sprintf("%s [%s] %s", area.Name, area.Risk, area.Reason)
			if area.RequiresManualIntervention {
				line += " (needs a human)"
			}
			p.Warn(line)
		}
	}

	if len(d.RecommendedTests) > 0 {
		p.App("Recommended tests")
		for _, t := range d.RecommendedTests {
			p.Detail(t)
		}
	}

	if d.ComprehensiveTests != nil {
		printComprehensive(p, d.ComprehensiveTests)
	}
}

func printComprehensive(p *output.Printer, r *types.ComprehensiveTestResults) {
	p.App("Page health")
	p.Detailf("console errors: %d, network errors: %d",
		len(r.ConsoleErrors), len(r.NetworkErrors))
	if r.Performance != nil {
		p.Detailf("load: %.0fms, FCP: %.0fms, TBT: %.0fms",
			r.Performance.LoadTimeMs, r.Performance.FirstContentfulPaint, r.Performance.TotalBlockingTimeMs)
	}
	p.Detailf("accessibility issues: %d, visual issues: %d, security issues: %d",
		len(r.Accessibility), len(r.Visual), len(r.Security))
	line := fmt.Sprintf("WCAG score %d (level %s)", r.WCAG.Score, r.WCAG.Level)
	switch {
	case r.WCAG.Level == types.WCAGLevelNone:
		p.Fail(line)
	case r.WCAG.Score < 80:
		p.Warn(line)
	default:
		p.Pass(line)
	}
	for _, note := range r.CollectionNotes {
		p.Warn(note)
	}
}

// PrintTrackers lists every classified third-party dependency with the
// request URLs that revealed it. Enabled via the tracker-debug config key.
func PrintTrackers(p *output.Printer, deps []types.ThirdPartyDependency) {
	if len(deps) == 0 {
		return
	}
	p.App("Third-party dependencies")
	for _, dep := range deps {
		line := fmt.Sprintf("%s [%s] privacy risk %s", dep.Domain, dep.Category, dep.PrivacyRisk)
		if dep.PrivacyRisk == types.RiskHigh {
			p.Warn(line)
		} else {
			p.Detail(line)
		}
		for _, src := range dep.Sources {
			p.Detailf("    %s", src)
		}
	}
}

// PrintRun renders the executed steps and outcome of a finished run.
func PrintRun(p *output.Printer, run types.TestRun) {
	p.Appf("Run %s against %s: %s", run.ID, run.URL, run.Status)
	if run.Error != "" {
		p.Fail(run.Error)
	}
	for _, step := range run.Steps {
		label := fmt.Sprintf("step %d: %s %s", step.StepNumber, step.Action, step.Target)
		if step.Value != "" {
			label += fmt.Sprintf(" %q", step.Value)
		}
		switch {
		case !step.Success:
			p.Fail(label + ": " + step.Error)
		case step.SelfHealing != nil:
			p.Warn(fmt.Sprintf("%s (healed via %s from %s)",
				label, step.SelfHealing.Strategy, step.SelfHealing.OriginalSelector))
		default:
			p.Pass(label)
		}
		if step.TeachingMoment {
			p.Detail("    manual correction recorded as teaching moment")
		}
		if step.VisualDiff != nil && step.VisualDiff.HasDifference {
			p.Warn(fmt.Sprintf("    visual diff %.2f%% exceeds threshold %.2f%%",
				step.VisualDiff.DiffPercentage, step.VisualDiff.Threshold))
		}
	}
}
