package telemetry

import (
	"context"
	"fmt"
	"math"

	"github.com/probelab/webpilot/internal/types"
)

// ariaScript finds interactive elements with no accessible name and
// keyboard traps, and samples text color pairs for contrast checks.
// Background color resolves by walking ancestors until a non-transparent
// background is found.
const ariaScript = `(() => { /* a11yAudit */
	const missing = [];
	const traps = [];
	const samples = [];
	const describe = el => el.tagName.toLowerCase() +
		(el.id ? '#' + el.id : '') +
		(el.className && typeof el.className === 'string' ? '.' + el.className.split(' ')[0] : '');
	document.querySelectorAll('a, button, input, select, textarea, [role="button"]').forEach(el => {
		const text = (el.innerText || el.value || '').trim();
		const labelled = el.getAttribute('aria-label') || el.getAttribute('aria-labelledby') || el.getAttribute('title');
		if (!text && !labelled) missing.push(describe(el));
		if (el.getAttribute('tabindex') === '-1') traps.push(describe(el));
	});
	const parseColor = c => {
		const m = c.match(/rgba?\(([\d.]+),\s*([\d.]+),\s*([\d.]+)(?:,\s*([\d.]+))?\)/);
		if (!m) return null;
		return { r: +m[1], g: +m[2], b: +m[3], a: m[4] === undefined ? 1 : +m[4] };
	};
	const resolveBackground = el => {
		let node = el;
		while (node && node !== document.documentElement) {
			const bg = parseColor(window.getComputedStyle(node).backgroundColor);
			if (bg && bg.a > 0) return bg;
			node = node.parentElement;
		}
		return { r: 255, g: 255, b: 255, a: 1 };
	};
	document.querySelectorAll('p, span, a, h1, h2, h3, h4, li, td, label, button').forEach(el => {
		if (!el.innerText || !el.innerText.trim()) return;
		if (samples.length >= 200) return;
		const style = window.getComputedStyle(el);
		const fg = parseColor(style.color);
		if (!fg) return;
		const bg = resolveBackground(el);
		const size = parseFloat(style.fontSize) || 16;
		const weight = parseInt(style.fontWeight, 10) || 400;
		samples.push({
			selector: describe(el),
			fg: [fg.r, fg.g, fg.b],
			bg: [bg.r, bg.g, bg.b],
			large: size >= 24 || (size >= 18.66 && weight >= 700),
		});
	});
	return { missing, traps, samples };
})()`

type a11yRaw struct {
	Missing []string `json:"missing"`
	Traps   []string `json:"traps"`
	Samples []struct {
		Selector string     `json:"selector"`
		FG       [3]float64 `json:"fg"`
		BG       [3]float64 `json:"bg"`
		Large    bool       `json:"large"`
	} `json:"samples"`
}

// CheckAccessibility runs the label, contrast and keyboard-trap audits.
func (c *Collector) CheckAccessibility(ctx context.Context) ([]types.AccessibilityIssue, error) {
	var raw a11yRaw
	if err := c.page.Evaluate(ctx, ariaScript, &raw); err != nil {
		return nil, err
	}
	var issues []types.AccessibilityIssue
	for _, sel := range raw.Missing {
		issues = append(issues, types.AccessibilityIssue{
			Type:     "missing-aria-label",
			Selector: sel,
			Message:  "interactive element has no text, aria-label or title",
			Severity: types.SeverityCritical,
			WCAG:     "4.1.2",
		})
	}
	for _, sel := range raw.Traps {
		issues = append(issues, types.AccessibilityIssue{
			Type:     "keyboard-trap",
			Selector: sel,
			Message:  `interactive element removed from tab order with tabindex="-1"`,
			Severity: types.SeverityWarning,
			WCAG:     "2.1.1",
		})
	}
	for _, s := range raw.Samples {
		ratio := ContrastRatio(RGB{s.FG[0], s.FG[1], s.FG[2]}, RGB{s.BG[0], s.BG[1], s.BG[2]})
		if PassesContrastAA(ratio, s.Large) {
			continue
		}
		issues = append(issues, types.AccessibilityIssue{
			Type:     "low-contrast",
			Selector: s.Selector,
			Message:  fmt.Sprintf("contrast ratio %.2f:1 is below the %.1f:1 AA minimum", ratio, aaMinimum(s.Large)),
			Severity: types.SeverityCritical,
			WCAG:     "1.4.3",
		})
	}
	return issues, nil
}

// RGB is a color in 0-255 channel space.
type RGB struct {
	R, G, B float64
}

// RelativeLuminance implements the WCAG formula
// L = 0.2126·R' + 0.7152·G' + 0.0722·B' with sRGB gamma correction.
func RelativeLuminance(c RGB) float64 {
	lin := func(ch float64) float64 {
		ch /= 255
		if ch <= 0.03928 {
			return ch / 12.92
		}
		return math.Pow((ch+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}

// ContrastRatio returns (Lmax+0.05)/(Lmin+0.05); argument order is
// irrelevant.
func ContrastRatio(a, b RGB) float64 {
	la, lb := RelativeLuminance(a), RelativeLuminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

func aaMinimum(large bool) float64 {
	if large {
		return 3.0
	}
	return 4.5
}

// PassesContrastAA applies the 4.5:1 normal / 3:1 large-text AA thresholds.
func PassesContrastAA(ratio float64, large bool) bool {
	return ratio >= aaMinimum(large)
}

// PassesContrastAAA applies the 7:1 normal / 4.5:1 large-text AAA
// thresholds.
func PassesContrastAAA(ratio float64, large bool) bool {
	if large {
		return ratio >= 4.5
	}
	return ratio >= 7.0
}
