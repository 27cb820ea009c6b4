package types

import "time"

// ConsoleEntry is one captured console message, in order of occurrence.
type ConsoleEntry struct {
	Level     string    `json:"level"`
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NetworkEntry is one captured failed or error HTTP exchange.
type NetworkEntry struct {
	URL        string        `json:"url"`
	Method     string        `json:"method"`
	Status     int           `json:"status"`
	Failed     bool          `json:"failed"`
	ErrorText  string        `json:"errorText,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	ResourceTy string        `json:"resourceType,omitempty"`
}

// ResourceTiming is one entry from the resource timing buffer.
type ResourceTiming struct {
	Name         string  `json:"name"`
	DurationMs   float64 `json:"durationMs"`
	TransferSize int64   `json:"transferSize"`
	Initiator    string  `json:"initiator"`
}

// PerformanceMetrics holds load timing and Core Web Vitals, all derived once
// per capture call.
type PerformanceMetrics struct {
	LoadTimeMs            float64          `json:"loadTimeMs"`
	DOMContentLoadedMs    float64          `json:"domContentLoadedMs"`
	TimeToFirstByteMs     float64          `json:"timeToFirstByteMs"`
	FirstContentfulPaint  float64          `json:"firstContentfulPaintMs"`
	LargestContentful     float64          `json:"largestContentfulPaintMs"`
	FirstInputDelayMs     float64          `json:"firstInputDelayMs"`
	CumulativeLayoutShift float64          `json:"cumulativeLayoutShift"`
	TimeToInteractiveMs   float64          `json:"timeToInteractiveMs"`
	TotalBlockingTimeMs   float64          `json:"totalBlockingTimeMs"`
	ResourceCount         int              `json:"resourceCount"`
	SlowResources         []ResourceTiming `json:"slowResources,omitempty"`
	DuplicateResources    []string         `json:"duplicateResources,omitempty"`
}

// IssueSeverity grades telemetry findings.
type IssueSeverity string

const (
	SeverityInfo     IssueSeverity = "info"
	SeverityWarning  IssueSeverity = "warning"
	SeverityCritical IssueSeverity = "critical"
)

// AccessibilityIssue is one WCAG/usability finding.
type AccessibilityIssue struct {
	Type     string        `json:"type"`
	Selector string        `json:"selector,omitempty"`
	Message  string        `json:"message"`
	Severity IssueSeverity `json:"severity"`
	WCAG     string        `json:"wcag,omitempty"`
}

// VisualIssue is one layout/rendering finding.
type VisualIssue struct {
	Type     string        `json:"type"`
	Selector string        `json:"selector,omitempty"`
	Message  string        `json:"message"`
	Severity IssueSeverity `json:"severity"`
}

// DOMHealthIssue is one structural DOM finding with the causing condition.
type DOMHealthIssue struct {
	Type      string `json:"type"`
	Selector  string `json:"selector,omitempty"`
	Condition string `json:"condition"`
	Message   string `json:"message"`
}

// DOMHealth aggregates structural DOM findings.
type DOMHealth struct {
	MissingAltText    []DOMHealthIssue `json:"missingAltText,omitempty"`
	MissingFormLabels []DOMHealthIssue `json:"missingFormLabels,omitempty"`
	HiddenElements    []DOMHealthIssue `json:"hiddenElements,omitempty"`
}

// SecurityIssue is one page-level security finding.
type SecurityIssue struct {
	Type     string        `json:"type"`
	Message  string        `json:"message"`
	Severity IssueSeverity `json:"severity"`
	Evidence string        `json:"evidence,omitempty"`
}

// SEOIssue is one search-optimization finding.
type SEOIssue struct {
	Type     string        `json:"type"`
	Message  string        `json:"message"`
	Severity IssueSeverity `json:"severity"`
}

// ThirdPartyCategory classifies an external dependency's purpose.
type ThirdPartyCategory string

const (
	ThirdPartyAnalytics   ThirdPartyCategory = "analytics"
	ThirdPartyAdvertising ThirdPartyCategory = "advertising"
	ThirdPartyCDN         ThirdPartyCategory = "cdn"
	ThirdPartyWidget      ThirdPartyCategory = "widget"
	ThirdPartySocial      ThirdPartyCategory = "social"
	ThirdPartyPayment     ThirdPartyCategory = "payment"
	ThirdPartyUnknown     ThirdPartyCategory = "unknown"
)

// ThirdPartyDependency is one classified cross-origin resource host.
type ThirdPartyDependency struct {
	Domain      string             `json:"domain"`
	Category    ThirdPartyCategory `json:"category"`
	PrivacyRisk RiskLevel          `json:"privacyRisk"`
	Sources     []string           `json:"sources"`
}

// WCAGLevel is the achieved conformance level.
type WCAGLevel string

const (
	WCAGLevelAAA  WCAGLevel = "AAA"
	WCAGLevelAA   WCAGLevel = "AA"
	WCAGLevelA    WCAGLevel = "A"
	WCAGLevelNone WCAGLevel = "none"
)

// WCAGScore summarizes accessibility check outcomes.
type WCAGScore struct {
	Level    WCAGLevel `json:"level"`
	Score    int       `json:"score"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
	Warnings int       `json:"warnings"`
}

// ComprehensiveTestResults aggregates every telemetry signal collected over a
// run. It is mutated incrementally while the run is live and immutable once
// attached to a completed diagnosis or run.
type ComprehensiveTestResults struct {
	ConsoleErrors   []ConsoleEntry         `json:"consoleErrors"`
	NetworkErrors   []NetworkEntry         `json:"networkErrors"`
	Performance     *PerformanceMetrics    `json:"performance,omitempty"`
	Accessibility   []AccessibilityIssue   `json:"accessibility"`
	Visual          []VisualIssue          `json:"visual"`
	DOMHealth       DOMHealth              `json:"domHealth"`
	Security        []SecurityIssue        `json:"security"`
	SEO             []SEOIssue             `json:"seo"`
	ThirdParties    []ThirdPartyDependency `json:"thirdParties"`
	WCAG            WCAGScore              `json:"wcagScore"`
	CollectedAt     time.Time              `json:"collectedAt"`
	CollectionNotes []string               `json:"collectionNotes,omitempty"`
}
