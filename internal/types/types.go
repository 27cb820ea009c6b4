// Package types defines the shared data model for webpilot runs.
package types

import "time"

// Status is the lifecycle state of a test run.
type Status string

const (
	StatusPending         Status = "pending"
	StatusQueued          Status = "queued"
	StatusDiagnosing      Status = "diagnosing"
	StatusWaitingApproval Status = "waiting_approval"
	StatusRunning         Status = "running"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

// Terminal reports whether a run in this status can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StepMode records which decision source produced a step.
type StepMode string

const (
	ModeLLM         StepMode = "llm"
	ModeSpeculative StepMode = "speculative"
	ModeMonkey      StepMode = "monkey"
)

// ApprovalMode controls how the approval gate is cleared.
type ApprovalMode string

const (
	ApprovalManual      ApprovalMode = "manual"
	ApprovalAuto        ApprovalMode = "auto"
	ApprovalAutoOnClean ApprovalMode = "auto_on_clean"
)

// ApprovalPolicy decides whether a diagnosed run may start executing without
// a human sign-off.
type ApprovalPolicy struct {
	Mode        ApprovalMode `json:"mode" yaml:"mode"`
	MaxBlockers int          `json:"maxBlockers" yaml:"max-blockers"`
}

// VisualDiffOptions configures per-step screenshot regression.
type VisualDiffOptions struct {
	Enabled       bool    `json:"enabled" yaml:"enabled"`
	BaselineRunID string  `json:"baselineRunId,omitempty" yaml:"baseline-run-id"`
	Threshold     float64 `json:"threshold" yaml:"threshold"` // percent, default 1.0
}

// DeviceProfile describes the emulated device for a run.
type DeviceProfile struct {
	Name      string `json:"name" yaml:"name"`
	Width     int    `json:"width" yaml:"width"`
	Height    int    `json:"height" yaml:"height"`
	UserAgent string `json:"userAgent,omitempty" yaml:"user-agent"`
	Mobile    bool   `json:"mobile" yaml:"mobile"`
}

// RunOptions are the per-run knobs supplied on submission.
type RunOptions struct {
	MaxSteps   int               `json:"maxSteps"`
	TimeBudget time.Duration     `json:"timeBudget"`
	TestMode   StepMode          `json:"testMode"`
	VisualDiff VisualDiffOptions `json:"visualDiff"`
	Approval   ApprovalPolicy    `json:"approvalPolicy"`
	Device     DeviceProfile     `json:"device"`
	// FailOnStuck fails the run when the self-healing chain is exhausted
	// instead of raising an ai_stuck event and waiting for intervention.
	FailOnStuck bool `json:"failOnStuck"`
}

// SelfHealing records how a step's target selector was re-resolved.
type SelfHealing struct {
	Strategy         string `json:"strategy"`
	OriginalSelector string `json:"originalSelector,omitempty"`
	HealedSelector   string `json:"healedSelector"`
	Note             string `json:"note,omitempty"`
}

// VisualDiff records the screenshot comparison for one step.
type VisualDiff struct {
	HasDifference  bool    `json:"hasDifference"`
	DiffPercentage float64 `json:"diffPercentage"`
	DiffImageURL   string  `json:"diffImageUrl,omitempty"`
	BaselineRunID  string  `json:"baselineRunId,omitempty"`
	Threshold      float64 `json:"threshold"`
}

// Step is one executed action. Steps are append-only; after creation only a
// late-arriving ScreenshotURL may be attached.
type Step struct {
	StepNumber    int          `json:"stepNumber"`
	Action        string       `json:"action"`
	Target        string       `json:"target,omitempty"`
	Value         string       `json:"value,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
	ScreenshotURL string       `json:"screenshotUrl,omitempty"`
	Success       bool         `json:"success"`
	Error         string       `json:"error,omitempty"`
	Mode          StepMode     `json:"mode"`
	SelfHealing   *SelfHealing `json:"selfHealing,omitempty"`
	VisualDiff    *VisualDiff  `json:"visualDiff,omitempty"`
	// TeachingMoment marks a manually injected correction that followed an
	// ai_stuck event.
	TeachingMoment bool `json:"teachingMoment,omitempty"`
}

// CheckItem is one testable or non-testable finding from a diagnoser.
type CheckItem struct {
	Name         string `json:"name"`
	Selector     string `json:"selector,omitempty"`
	Reason       string `json:"reason"`
	ElementCount int    `json:"elementCount,omitempty"`
	// BlockerClass tags hard blockers (captcha, mfa, payment, ...) so the
	// orchestrator can promote them without string matching. Empty for
	// ordinary findings.
	BlockerClass string `json:"blockerClass,omitempty"`
}

// Narrative is the human-readable judgment derived from a diagnoser's
// findings. It is recomputed from canTest/cannotTest, never hand-authored.
type Narrative struct {
	What   string `json:"what"`
	How    string `json:"how"`
	Why    string `json:"why"`
	Result string `json:"result"`
	Passed bool   `json:"passed"`
}

// TestTypeDiagnosis is the output of a single diagnoser.
type TestTypeDiagnosis struct {
	TestType   string        `json:"testType"`
	Steps      []string      `json:"steps"`
	CanTest    []CheckItem   `json:"canTest"`
	CannotTest []CheckItem   `json:"cannotTest"`
	Duration   time.Duration `json:"duration"`
	Narrative  Narrative     `json:"narrative"`
}

// RiskLevel grades a high-risk area.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// HighRiskArea is a promoted hard blocker that needs a human.
type HighRiskArea struct {
	Name                       string    `json:"name"`
	Selector                   string    `json:"selector,omitempty"`
	Reason                     string    `json:"reason"`
	Risk                       RiskLevel `json:"risk"`
	BlockerClass               string    `json:"blockerClass"`
	RequiresManualIntervention bool      `json:"requiresManualIntervention"`
}

// DiagnosisResult is the merged output of the diagnoser pipeline.
type DiagnosisResult struct {
	Summary               string                    `json:"summary"`
	TestableComponents    []CheckItem               `json:"testableComponents"`
	NonTestableComponents []CheckItem               `json:"nonTestableComponents"`
	RecommendedTests      []string                  `json:"recommendedTests"`
	BlockedSelectors      []string                  `json:"blockedSelectors"`
	HighRiskAreas         []HighRiskArea            `json:"highRiskAreas"`
	Diagnoses             []TestTypeDiagnosis       `json:"diagnoses"`
	ComprehensiveTests    *ComprehensiveTestResults `json:"comprehensiveTests,omitempty"`
}

// DiagnosisProgress reports incremental diagnosis progress for polling UIs.
// Percent is monotonically non-decreasing within a run.
type DiagnosisProgress struct {
	Step          int     `json:"step"`
	TotalSteps    int     `json:"totalSteps"`
	StepLabel     string  `json:"stepLabel"`
	SubStep       int     `json:"subStep"`
	TotalSubSteps int     `json:"totalSubSteps"`
	SubStepLabel  string  `json:"subStepLabel"`
	Percent       float64 `json:"percent"`
}

// TestRun is the record of one run. It is mutated exclusively by the state
// machine and step executor and becomes immutable once terminal.
type TestRun struct {
	ID                string             `json:"id"`
	URL               string             `json:"url"`
	Build             string             `json:"build,omitempty"`
	Options           RunOptions         `json:"options"`
	Status            Status             `json:"status"`
	Paused            bool               `json:"paused"`
	CurrentStep       int                `json:"currentStep"`
	DiagnosisProgress *DiagnosisProgress `json:"diagnosisProgress,omitempty"`
	Diagnosis         *DiagnosisResult   `json:"diagnosis,omitempty"`
	Steps             []Step             `json:"steps"`
	Error             string             `json:"error,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	StartedAt         *time.Time         `json:"startedAt,omitempty"`
	EndedAt           *time.Time         `json:"endedAt,omitempty"`
}
