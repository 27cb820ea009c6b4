package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/probelab/webpilot/internal/types"
)

// Layout-shift significance thresholds from the CLS scoring bands.
const (
	shiftSignificant = 0.1
	shiftHigh        = 0.25
)

// DesignSpec is the optional expected-design input for spec comparison.
type DesignSpec struct {
	PrimaryColor string `yaml:"primary-color" json:"primaryColor"`
	FontFamily   string `yaml:"font-family" json:"fontFamily"`
}

// visualScript gathers layout shifts, overflowing text, alignment groups
// and visible bounding boxes in one pass.
const visualScript = `(() => { /* visualAudit */
	const describe = el => el.tagName.toLowerCase() +
		(el.id ? '#' + el.id : '') +
		(el.className && typeof el.className === 'string' ? '.' + el.className.split(' ')[0] : '');
	const shifts = performance.getEntriesByType('layout-shift')
		.filter(s => !s.hadRecentInput)
		.map(s => s.value);
	const overflow = [];
	document.querySelectorAll('p, span, a, h1, h2, h3, div, td, li').forEach(el => {
		const style = window.getComputedStyle(el);
		if (style.textOverflow === 'ellipsis' && el.scrollWidth > el.clientWidth) {
			overflow.push(describe(el));
		}
	});
	const alignGroups = [];
	document.querySelectorAll('div, section, ul, form').forEach(el => {
		const aligns = new Set();
		let textChildren = 0;
		for (const child of el.children) {
			if (child.innerText && child.innerText.trim()) {
				textChildren++;
				aligns.add(window.getComputedStyle(child).textAlign);
			}
		}
		if (textChildren >= 2) {
			alignGroups.push({ selector: describe(el), aligns: [...aligns] });
		}
	});
	const boxes = [];
	const all = [...document.querySelectorAll('body *')];
	all.forEach((el, i) => {
		const style = window.getComputedStyle(el);
		const rect = el.getBoundingClientRect();
		if (style.display === 'none' || style.visibility === 'hidden' || rect.width === 0 || rect.height === 0) return;
		if (boxes.length >= 300) return;
		const chain = [];
		let node = el.parentElement;
		while (node) { const idx = all.indexOf(node); if (idx >= 0) chain.push(idx); node = node.parentElement; }
		boxes.push({ index: i, selector: describe(el), x: rect.x, y: rect.y, w: rect.width, h: rect.height, chain });
	});
	const body = window.getComputedStyle(document.body);
	return { shifts, overflow, alignGroups, boxes, bodyColor: body.color, bodyFont: body.fontFamily };
})()`

// Box is one visible element's bounding rectangle with its ancestor chain.
type Box struct {
	Index    int     `json:"index"`
	Selector string  `json:"selector"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	W        float64 `json:"w"`
	H        float64 `json:"h"`
	Chain    []int   `json:"chain"`
}

type visualRaw struct {
	Shifts      []float64 `json:"shifts"`
	Overflow    []string  `json:"overflow"`
	AlignGroups []struct {
		Selector string   `json:"selector"`
		Aligns   []string `json:"aligns"`
	} `json:"alignGroups"`
	Boxes     []Box  `json:"boxes"`
	BodyColor string `json:"bodyColor"`
	BodyFont  string `json:"bodyFont"`
}

// CheckVisual runs the layout and rendering audits. Vision-model findings,
// when a model is attached, are appended after the programmatic ones.
func (c *Collector) CheckVisual(ctx context.Context) ([]types.VisualIssue, error) {
	var raw visualRaw
	if err := c.page.Evaluate(ctx, visualScript, &raw); err != nil {
		return nil, err
	}
	var issues []types.VisualIssue

	for _, v := range raw.Shifts {
		if v < shiftSignificant {
			continue
		}
		severity := types.SeverityWarning
		if v >= shiftHigh {
			severity = types.SeverityCritical
		}
		issues = append(issues, types.VisualIssue{
			Type:     "layout-shift",
			Message:  fmt.Sprintf("layout shift of %.3f during load", v),
			Severity: severity,
		})
	}
	for _, sel := range raw.Overflow {
		issues = append(issues, types.VisualIssue{
			Type:     "text-overflow",
			Selector: sel,
			Message:  "text is truncated by ellipsis styling",
			Severity: types.SeverityWarning,
		})
	}
	for _, g := range raw.AlignGroups {
		if len(g.Aligns) > 1 {
			issues = append(issues, types.VisualIssue{
				Type:     "alignment-inconsistency",
				Selector: g.Selector,
				Message:  fmt.Sprintf("sibling text blocks disagree on text-align: %s", strings.Join(g.Aligns, ", ")),
				Severity: types.SeverityInfo,
			})
		}
	}
	for _, pair := range FindOverlaps(raw.Boxes) {
		issues = append(issues, types.VisualIssue{
			Type:     "element-overlap",
			Selector: pair[0].Selector,
			Message:  fmt.Sprintf("element overlaps %s", pair[1].Selector),
			Severity: types.SeverityWarning,
		})
	}
	issues = append(issues, c.designSpecIssues(raw)...)
	issues = append(issues, c.stateIssues(ctx)...)

	if c.Vision != nil {
		shot, err := c.page.Screenshot(ctx)
		if err == nil {
			if extra, verr := c.Vision.Review(ctx, shot); verr == nil {
				issues = append(issues, extra...)
			}
		}
	}
	return issues, nil
}

// FindOverlaps reports pairwise bounding-box intersections among visible
// elements, skipping ancestor/descendant pairs. O(n²) over the sampled
// boxes, which the script bounds per page.
func FindOverlaps(boxes []Box) [][2]Box {
	var out [][2]Box
	for i := 0; i < len(boxes); i++ {
		for j := i + 1; j < len(boxes); j++ {
			a, b := boxes[i], boxes[j]
			if related(a, b) || !intersects(a, b) {
				continue
			}
			out = append(out, [2]Box{a, b})
		}
	}
	return out
}

func related(a, b Box) bool {
	for _, idx := range a.Chain {
		if idx == b.Index {
			return true
		}
	}
	for _, idx := range b.Chain {
		if idx == a.Index {
			return true
		}
	}
	return false
}

func intersects(a, b Box) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H
}

func (c *Collector) designSpecIssues(raw visualRaw) []types.VisualIssue {
	if c.Design == nil {
		return nil
	}
	var issues []types.VisualIssue
	if c.Design.PrimaryColor != "" {
		want, okWant := NormalizeHex(c.Design.PrimaryColor)
		got, okGot := NormalizeCSSColor(raw.BodyColor)
		if okWant && okGot && want != got {
			issues = append(issues, types.VisualIssue{
				Type:     "design-spec-color",
				Message:  fmt.Sprintf("body color %s does not match spec primary color %s", got, want),
				Severity: types.SeverityInfo,
			})
		}
	}
	if c.Design.FontFamily != "" &&
		!strings.Contains(strings.ToLower(raw.BodyFont), strings.ToLower(c.Design.FontFamily)) {
		issues = append(issues, types.VisualIssue{
			Type:     "design-spec-font",
			Message:  fmt.Sprintf("body font %q does not include spec family %q", raw.BodyFont, c.Design.FontFamily),
			Severity: types.SeverityInfo,
		})
	}
	return issues
}

// stateProbeLimit caps how many elements the pseudo-state sweep touches;
// each probe costs a full evaluate round-trip with a settle delay.
const stateProbeLimit = 5

// stateIssues samples visible interactive elements and verifies each shows
// a hover or focus affordance. Probe failures are skipped: an element that
// cannot be probed is not an element with a missing state.
func (c *Collector) stateIssues(ctx context.Context) []types.VisualIssue {
	els, err := c.page.Query(ctx, "a, button, input, select, textarea")
	if err != nil {
		return nil
	}
	var issues []types.VisualIssue
	probed := 0
	for _, el := range els {
		if !el.Visible || el.Selector == "" {
			continue
		}
		if probed >= stateProbeLimit {
			break
		}
		probed++
		state := "hover"
		switch el.Tag {
		case "input", "select", "textarea":
			state = "focus"
		}
		issue, err := c.VerifyStateChange(ctx, el.Selector, state)
		if err != nil || issue == nil {
			continue
		}
		issues = append(issues, *issue)
	}
	return issues
}

// hoverFocusScript snapshots the style channels a pseudo-state should
// change, before and after triggering the state.
const hoverFocusScript = `(() => { /* %s:%s */
	const el = document.querySelector(%q);
	if (!el) return null;
	const read = () => {
		const s = window.getComputedStyle(el);
		return { background: s.backgroundColor, color: s.color, border: s.border, outline: s.outline, boxShadow: s.boxShadow };
	};
	const before = read();
	if (%q === 'focus') { el.focus(); }
	else { el.dispatchEvent(new MouseEvent('mouseover', { bubbles: true })); el.classList.add('__wp_hover'); }
	return new Promise(resolve => setTimeout(() => resolve({ before, after: read() }), 120));
})()`

type stateSnapshot struct {
	Background string `json:"background"`
	Color      string `json:"color"`
	Border     string `json:"border"`
	Outline    string `json:"outline"`
	BoxShadow  string `json:"boxShadow"`
}

// VerifyStateChange triggers a hover or focus pseudo-state on selector and
// reports a missing-state issue when no style channel changed.
func (c *Collector) VerifyStateChange(ctx context.Context, selector, state string) (*types.VisualIssue, error) {
	script := fmt.Sprintf(hoverFocusScript, "stateVerify", state, selector, state)
	var result *struct {
		Before stateSnapshot `json:"before"`
		After  stateSnapshot `json:"after"`
	}
	if err := c.page.Evaluate(ctx, script, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("no element matches %q", selector)
	}
	if result.Before != result.After {
		return nil, nil
	}
	return &types.VisualIssue{
		Type:     "missing-" + state + "-state",
		Selector: selector,
		Message:  fmt.Sprintf("no visible style change on %s", state),
		Severity: types.SeverityWarning,
	}, nil
}
