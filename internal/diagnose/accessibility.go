package diagnose

import (
	"context"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// AccessibilityDiagnoser reports which accessibility properties are
// measurable on this page. Autoplay media is the one non-testable case: it
// requires user interaction policies the automation cannot reproduce.
type AccessibilityDiagnoser struct{}

func (d *AccessibilityDiagnoser) TestType() string { return "Accessibility" }

func (d *AccessibilityDiagnoser) Steps() []string {
	return []string{
		"Session initialization",
		"ARIA coverage scan",
		"Structure and focus audit",
		"Contrast capability check",
		"Summary compilation",
	}
}

var accessibilityProbes = []probe{
	{name: "ARIA coverage", selector: `[aria-label], [aria-labelledby], [role]`, can: true,
		reason: "ARIA usage can be audited"},
	{name: "Label associations", selector: `label[for]`, can: true,
		reason: "label-to-input wiring can be verified"},
	{name: "Alt text", selector: `img[alt]`, can: true,
		reason: "alternative text coverage can be measured"},
	{name: "Heading structure", selector: `h1, h2, h3`, can: true,
		reason: "heading hierarchy can be validated"},
	{name: "Skip links", selector: `a[href^="#"][class*="skip"], a.skip-link`, can: true,
		reason: "skip navigation can be followed"},
	{name: "Focusable elements", selector: `a[href], button, input, select, textarea, [tabindex]`, can: true,
		reason: "focus order can be walked with the keyboard"},
	{name: "Autoplay media", selector: `video[autoplay], audio[autoplay]`,
		can: false, blocker: BlockerAutoplay,
		reason: "autoplay behavior depends on user-gesture policies automation cannot reproduce"},
}

// capabilityScript reports whether contrast and Core Web Vitals measurement
// primitives exist in this browser context.
const capabilityScript = `(() => { /* a11yCapabilities */
	return {
		contrast: typeof window.getComputedStyle === 'function',
		vitals: typeof PerformanceObserver === 'function' &&
			PerformanceObserver.supportedEntryTypes &&
			PerformanceObserver.supportedEntryTypes.includes('largest-contentful-paint'),
	};
})()`

func (d *AccessibilityDiagnoser) Diagnose(ctx context.Context, p page.Page) (types.TestTypeDiagnosis, error) {
	can, cannot, err := runProbes(ctx, p, accessibilityProbes)
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	var caps struct {
		Contrast bool `json:"contrast"`
		Vitals   bool `json:"vitals"`
	}
	if err := p.Evaluate(ctx, capabilityScript, &caps); err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	if caps.Contrast {
		can = append(can, types.CheckItem{
			Name:   "Contrast measurement",
			Reason: "computed styles expose color pairs for WCAG ratio checks",
		})
	}
	if caps.Vitals {
		can = append(can, types.CheckItem{
			Name:   "Core Web Vitals measurement",
			Reason: "performance observers expose LCP/CLS entries",
		})
	}
	diag := types.TestTypeDiagnosis{CanTest: can, CannotTest: cannot}
	diag.Narrative = buildNarrative(d.TestType(), can, cannot, nil)
	return diag, nil
}
