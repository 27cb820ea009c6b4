package telemetry

import (
	"math"

	"github.com/probelab/webpilot/internal/types"
)

// ComputeWCAGScore folds check counts into the 0-100 score and conformance
// level. Level thresholds run on warning/critical ratios:
// AAA needs zero critical and <10% warnings, AA zero critical and <20%
// warnings, A tolerates <10% critical; everything else scores "none".
func ComputeWCAGScore(passed, failed, warnings int) types.WCAGScore {
	total := passed + failed + warnings
	score := 100
	if total > 0 {
		score = int(math.Round(float64(passed) / float64(total) * 100))
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	level := types.WCAGLevelNone
	if total == 0 {
		level = types.WCAGLevelAAA
	} else {
		warnRatio := float64(warnings) / float64(total)
		critRatio := float64(failed) / float64(total)
		switch {
		case failed == 0 && warnRatio < 0.10:
			level = types.WCAGLevelAAA
		case failed == 0 && warnRatio < 0.20:
			level = types.WCAGLevelAA
		case critRatio < 0.10:
			level = types.WCAGLevelA
		}
	}
	return types.WCAGScore{
		Level:    level,
		Score:    score,
		Passed:   passed,
		Failed:   failed,
		Warnings: warnings,
	}
}

// scoreFromIssues derives the run's WCAG score from the accessibility and
// DOM-health findings: critical findings fail, warnings warn, and every
// audited-but-clean dimension counts as a pass.
func scoreFromIssues(issues []types.AccessibilityIssue, health types.DOMHealth) types.WCAGScore {
	failed, warnings := 0, 0
	for _, issue := range issues {
		switch issue.Severity {
		case types.SeverityCritical:
			failed++
		case types.SeverityWarning:
			warnings++
		}
	}
	warnings += len(health.MissingAltText) + len(health.MissingFormLabels)

	// Audited dimensions: labels, contrast, keyboard, alt text, form
	// labels, hidden elements. A dimension with no findings passed.
	passed := 0
	byType := map[string]bool{}
	for _, issue := range issues {
		byType[issue.Type] = true
	}
	for _, dim := range []string{"missing-aria-label", "low-contrast", "keyboard-trap"} {
		if !byType[dim] {
			passed++
		}
	}
	if len(health.MissingAltText) == 0 {
		passed++
	}
	if len(health.MissingFormLabels) == 0 {
		passed++
	}
	if len(health.HiddenElements) == 0 {
		passed++
	}
	return ComputeWCAGScore(passed, failed, warnings)
}
