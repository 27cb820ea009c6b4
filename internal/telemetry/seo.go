package telemetry

import (
	"context"
	"fmt"

	"github.com/probelab/webpilot/internal/types"
)

const (
	maxTitleLen       = 60
	maxDescriptionLen = 160
)

const seoScript = `(() => { /* seoAudit */
	const desc = document.querySelector('meta[name="description"]');
	return {
		title: document.title || '',
		description: desc ? (desc.getAttribute('content') || '') : '',
		hasDescription: !!desc,
		hasCanonical: !!document.querySelector('link[rel="canonical"]'),
		hasStructuredData: !!document.querySelector('script[type="application/ld+json"]'),
	};
})()`

type seoRaw struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	HasDescription    bool   `json:"hasDescription"`
	HasCanonical      bool   `json:"hasCanonical"`
	HasStructuredData bool   `json:"hasStructuredData"`
}

// CheckSEO audits title, meta description, canonical link and JSON-LD
// presence.
func (c *Collector) CheckSEO(ctx context.Context) ([]types.SEOIssue, error) {
	var raw seoRaw
	if err := c.page.Evaluate(ctx, seoScript, &raw); err != nil {
		return nil, err
	}
	return EvaluateSEO(raw.Title, raw.Description, raw.HasDescription, raw.HasCanonical, raw.HasStructuredData), nil
}

// EvaluateSEO applies the length and presence rules to extracted metadata.
func EvaluateSEO(title, description string, hasDescription, hasCanonical, hasStructuredData bool) []types.SEOIssue {
	var issues []types.SEOIssue
	switch {
	case title == "":
		issues = append(issues, types.SEOIssue{
			Type: "missing-title", Message: "page has no title", Severity: types.SeverityCritical,
		})
	case len(title) > maxTitleLen:
		issues = append(issues, types.SEOIssue{
			Type:     "long-title",
			Message:  fmt.Sprintf("title is %d characters; search engines truncate after %d", len(title), maxTitleLen),
			Severity: types.SeverityWarning,
		})
	}
	switch {
	case !hasDescription:
		issues = append(issues, types.SEOIssue{
			Type: "missing-description", Message: "page has no meta description", Severity: types.SeverityWarning,
		})
	case len(description) > maxDescriptionLen:
		issues = append(issues, types.SEOIssue{
			Type:     "long-description",
			Message:  fmt.Sprintf("meta description is %d characters; snippets truncate after %d", len(description), maxDescriptionLen),
			Severity: types.SeverityInfo,
		})
	}
	if !hasCanonical {
		issues = append(issues, types.SEOIssue{
			Type: "missing-canonical", Message: "no canonical link element", Severity: types.SeverityInfo,
		})
	}
	if !hasStructuredData {
		issues = append(issues, types.SEOIssue{
			Type: "missing-structured-data", Message: "no JSON-LD structured data", Severity: types.SeverityInfo,
		})
	}
	return issues
}
