package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/probelab/webpilot/internal/output"
	"github.com/probelab/webpilot/internal/types"
)

func plainPrinter(t *testing.T) (*output.Printer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
	buf := &bytes.Buffer{}
	return output.NewPrinter(buf), buf
}

func sampleDiagnosis() *types.DiagnosisResult {
	return &types.DiagnosisResult{
		Summary: "2 of 3 test types available",
		Diagnoses: []types.TestTypeDiagnosis{
			{
				TestType: "Login",
				Narrative: types.Narrative{
					What:   "Checked the login form.",
					Result: "Username, password and submit are reachable.",
					Passed: true,
				},
				Duration: 120 * time.Millisecond,
			},
			{
				TestType: "Signup",
				Narrative: types.Narrative{
					What:   "Looked for a signup flow.",
					Result: "Cannot automate signup testing.",
					Passed: false,
				},
				CannotTest: []types.CheckItem{
					{Name: "CAPTCHA detected", Reason: "cannot be solved"},
				},
			},
		},
		HighRiskAreas: []types.HighRiskArea{
			{Name: "CAPTCHA", Risk: types.RiskHigh, Reason: "blocks automation", RequiresManualIntervention: true},
		},
		RecommendedTests: []string{"Login"},
	}
}

func TestPrintDiagnosisRendersVerdicts(t *testing.T) {
	p, buf := plainPrinter(t)

	PrintDiagnosis(p, "https://example.com", sampleDiagnosis())
	got := buf.String()

	require.Contains(t, got, "Diagnosis for https://example.com")
	require.Contains(t, got, "✓ Login (120ms)")
	require.Contains(t, got, "✗ Signup")
	require.Contains(t, got, "cannot test: CAPTCHA detected (cannot be solved)")
	require.Contains(t, got, "High-risk areas")
	require.Contains(t, got, "(needs a human)")
	require.Contains(t, got, "Recommended tests")
}

func TestPrintDiagnosisIncludesPageHealth(t *testing.T) {
	p, buf := plainPrinter(t)

	d := sampleDiagnosis()
	d.ComprehensiveTests = &types.ComprehensiveTestResults{
		ConsoleErrors: []types.ConsoleEntry{{Text: "boom"}},
		Performance: &types.PerformanceMetrics{
			LoadTimeMs:           812,
			FirstContentfulPaint: 431,
			TotalBlockingTimeMs:  90,
		},
		WCAG:            types.WCAGScore{Score: 72, Level: types.WCAGLevelAA},
		CollectionNotes: []string{"performance capture unavailable"},
	}
	PrintDiagnosis(p, "https://example.com", d)
	got := buf.String()

	require.Contains(t, got, "Page health")
	require.Contains(t, got, "console errors: 1")
	require.Contains(t, got, "load: 812ms, FCP: 431ms, TBT: 90ms")
	require.Contains(t, got, "! WCAG score 72 (level AA)")
	require.Contains(t, got, "! performance capture unavailable")
}

func TestPrintTrackersListsDependencies(t *testing.T) {
	p, buf := plainPrinter(t)

	PrintTrackers(p, []types.ThirdPartyDependency{
		{
			Domain:      "www.google-analytics.com",
			Category:    types.ThirdPartyAnalytics,
			PrivacyRisk: types.RiskHigh,
			Sources:     []string{"https://www.google-analytics.com/analytics.js"},
		},
		{
			Domain:      "cdn.example.net",
			Category:    types.ThirdPartyCDN,
			PrivacyRisk: types.RiskLow,
		},
	})
	got := buf.String()

	require.Contains(t, got, "Third-party dependencies")
	require.Contains(t, got, "! www.google-analytics.com [analytics] privacy risk high")
	require.Contains(t, got, "https://www.google-analytics.com/analytics.js")
	require.Contains(t, got, "cdn.example.net [cdn] privacy risk low")
}

func TestPrintTrackersSkipsEmptyList(t *testing.T) {
	p, buf := plainPrinter(t)

	PrintTrackers(p, nil)
	require.Empty(t, buf.String())
}

func TestPrintRunRendersSteps(t *testing.T) {
	p, buf := plainPrinter(t)

	run := types.TestRun{
		ID:     "run-1",
		URL:    "https://example.com",
		Status: types.StatusCompleted,
		Steps: []types.Step{
			{StepNumber: 1, Action: "click", Target: "#go", Success: true},
			{
				StepNumber: 2, Action: "click", Target: "button.primary", Success: true,
				SelfHealing: &types.SelfHealing{
					Strategy:         "text-content",
					OriginalSelector: "#login-submit",
				},
			},
			{
				StepNumber: 3, Action: "click", Target: "#fix", Success: true,
				TeachingMoment: true,
				VisualDiff:     &types.VisualDiff{HasDifference: true, DiffPercentage: 4.2, Threshold: 1.0},
			},
			{StepNumber: 4, Action: "type", Target: "#email", Value: "a@b.c", Success: false, Error: "detached"},
		},
	}
	PrintRun(p, run)
	got := buf.String()

	require.Contains(t, got, "Run run-1 against https://example.com: completed")
	require.Contains(t, got, "✓ step 1: click #go")
	require.Contains(t, got, "healed via text-content from #login-submit")
	require.Contains(t, got, "teaching moment")
	require.Contains(t, got, "visual diff 4.20% exceeds threshold 1.00%")
	require.Contains(t, got, `✗ step 4: type #email "a@b.c": detached`)
}

func TestWriteJSONRoundTrips(t *testing.T) {
	t.Parallel()

	run := types.TestRun{ID: "run-2", URL: "https://example.com", Status: types.StatusFailed, Error: "navigate: refused"}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteJSON(buf, run))

	var back types.TestRun
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	require.Equal(t, run.ID, back.ID)
	require.Equal(t, run.Error, back.Error)
}
