package telemetry

import (
	"context"

	"github.com/probelab/webpilot/internal/types"
)

// domHealthScript inventories structural problems with the condition that
// caused each finding.
const domHealthScript = `(() => { /* domHealth */
	const describe = el => el.tagName.toLowerCase() +
		(el.id ? '#' + el.id : '') +
		(el.className && typeof el.className === 'string' ? '.' + el.className.split(' ')[0] : '');
	const missingAlt = [];
	document.querySelectorAll('img').forEach(img => {
		if (!img.hasAttribute('alt')) missingAlt.push(describe(img));
	});
	const missingLabels = [];
	document.querySelectorAll('input:not([type="hidden"]):not([type="submit"]):not([type="button"]), textarea, select').forEach(el => {
		const hasFor = el.id && document.querySelector('label[for="' + el.id + '"]');
		const hasAria = el.getAttribute('aria-label') || el.getAttribute('aria-labelledby');
		const hasPlaceholder = el.getAttribute('placeholder');
		if (!hasFor && !hasAria && !hasPlaceholder) missingLabels.push(describe(el));
	});
	const hidden = [];
	document.querySelectorAll('button, a[href], input, [role="button"]').forEach(el => {
		const style = window.getComputedStyle(el);
		const rect = el.getBoundingClientRect();
		let condition = '';
		if (style.display === 'none') condition = 'display:none';
		else if (style.visibility === 'hidden') condition = 'visibility:hidden';
		else if (parseFloat(style.opacity) === 0) condition = 'opacity:0';
		else if (rect.width === 0 || rect.height === 0) condition = 'zero dimensions';
		if (condition) hidden.push({ selector: describe(el), condition });
	});
	return { missingAlt, missingLabels, hidden };
})()`

type domHealthRaw struct {
	MissingAlt    []string `json:"missingAlt"`
	MissingLabels []string `json:"missingLabels"`
	Hidden        []struct {
		Selector  string `json:"selector"`
		Condition string `json:"condition"`
	} `json:"hidden"`
}

// CheckDOMHealth reports missing alt text, unlabeled form fields and hidden
// interactive elements, each with the causing condition for diagnostics.
func (c *Collector) CheckDOMHealth(ctx context.Context) (types.DOMHealth, error) {
	var raw domHealthRaw
	if err := c.page.Evaluate(ctx, domHealthScript, &raw); err != nil {
		return types.DOMHealth{}, err
	}
	var health types.DOMHealth
	for _, sel := range raw.MissingAlt {
		health.MissingAltText = append(health.MissingAltText, types.DOMHealthIssue{
			Type:      "missing-alt",
			Selector:  sel,
			Condition: "img without alt attribute",
			Message:   "image has no alternative text",
		})
	}
	for _, sel := range raw.MissingLabels {
		health.MissingFormLabels = append(health.MissingFormLabels, types.DOMHealthIssue{
			Type:      "missing-label",
			Selector:  sel,
			Condition: "no <label for>, aria-label, or placeholder",
			Message:   "form field has no programmatic label",
		})
	}
	for _, h := range raw.Hidden {
		health.HiddenElements = append(health.HiddenElements, types.DOMHealthIssue{
			Type:      "hidden-interactive",
			Selector:  h.Selector,
			Condition: h.Condition,
			Message:   "interactive element is present but not visible",
		})
	}
	return health, nil
}
