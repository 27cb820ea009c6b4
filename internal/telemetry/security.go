package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/probelab/webpilot/internal/types"
)

// securityScript gathers page-level security signals: the CSP meta tag,
// insecure sub-resources, inline script bodies and POST form token fields.
const securityScript = `(() => { /* securityAudit */
	const hasCSP = !!document.querySelector('meta[http-equiv="Content-Security-Policy"]');
	const httpsPage = location.protocol === 'https:';
	const insecure = [];
	document.querySelectorAll('script[src], link[href], img[src], iframe[src]').forEach(el => {
		const src = el.src || el.href || '';
		if (src.startsWith('http://')) insecure.push(src);
	});
	const inline = [...document.querySelectorAll('script:not([src])')].map(s => s.textContent.slice(0, 5000));
	let postFormsWithoutToken = 0;
	document.querySelectorAll('form[method="post" i]').forEach(f => {
		const token = f.querySelector('input[name*="csrf" i], input[name*="token" i], input[name="_token"]');
		if (!token) postFormsWithoutToken++;
	});
	return { hasCSP, httpsPage, insecure, inline, postFormsWithoutToken };
})()`

type securityRaw struct {
	HasCSP                bool     `json:"hasCSP"`
	HTTPSPage             bool     `json:"httpsPage"`
	Insecure              []string `json:"insecure"`
	Inline                []string `json:"inline"`
	PostFormsWithoutToken int      `json:"postFormsWithoutToken"`
}

// CheckSecurity reports missing CSP, mixed content, inline-XSS patterns and
// CSRF-token absence.
func (c *Collector) CheckSecurity(ctx context.Context) ([]types.SecurityIssue, error) {
	var raw securityRaw
	if err := c.page.Evaluate(ctx, securityScript, &raw); err != nil {
		return nil, err
	}
	var issues []types.SecurityIssue
	if !raw.HasCSP {
		issues = append(issues, types.SecurityIssue{
			Type:     "missing-csp",
			Message:  "no Content-Security-Policy meta tag found",
			Severity: types.SeverityWarning,
		})
	}
	if raw.HTTPSPage {
		for _, src := range raw.Insecure {
			issues = append(issues, types.SecurityIssue{
				Type:     "mixed-content",
				Message:  "insecure sub-resource on an HTTPS page",
				Severity: types.SeverityCritical,
				Evidence: src,
			})
		}
	}
	for _, body := range raw.Inline {
		if LooksLikeXSSSink(body) {
			issues = append(issues, types.SecurityIssue{
				Type:     "inline-xss-pattern",
				Message:  "inline script combines innerHTML with location or cookie access",
				Severity: types.SeverityCritical,
				Evidence: excerpt(body),
			})
		}
	}
	if raw.PostFormsWithoutToken > 0 {
		issues = append(issues, types.SecurityIssue{
			Type:     "missing-csrf-token",
			Message:  fmt.Sprintf("%d POST form(s) have no CSRF token field", raw.PostFormsWithoutToken),
			Severity: types.SeverityWarning,
		})
	}
	return issues, nil
}

// LooksLikeXSSSink is the heuristic from the audit: innerHTML writes fed by
// location or document.cookie reads.
func LooksLikeXSSSink(script string) bool {
	if !strings.Contains(script, "innerHTML") {
		return false
	}
	return strings.Contains(script, "location") || strings.Contains(script, "document.cookie")
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 160 {
		return s[:157] + "..."
	}
	return s
}
