package telemetry

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/probelab/webpilot/internal/types"
)

// knownDomains classifies third-party hosts by suffix match. Extend via
// config: entries merged into this table before classification.
var knownDomains = map[string]types.ThirdPartyCategory{
	"google-analytics.com":   types.ThirdPartyAnalytics,
	"googletagmanager.com":   types.ThirdPartyAnalytics,
	"segment.com":            types.ThirdPartyAnalytics,
	"mixpanel.com":           types.ThirdPartyAnalytics,
	"hotjar.com":             types.ThirdPartyAnalytics,
	"doubleclick.net":        types.ThirdPartyAdvertising,
	"googlesyndication.com":  types.ThirdPartyAdvertising,
	"adnxs.com":              types.ThirdPartyAdvertising,
	"criteo.com":             types.ThirdPartyAdvertising,
	"cloudflare.com":         types.ThirdPartyCDN,
	"cloudfront.net":         types.ThirdPartyCDN,
	"jsdelivr.net":           types.ThirdPartyCDN,
	"unpkg.com":              types.ThirdPartyCDN,
	"cdnjs.cloudflare.com":   types.ThirdPartyCDN,
	"akamaized.net":          types.ThirdPartyCDN,
	"intercom.io":            types.ThirdPartyWidget,
	"zendesk.com":            types.ThirdPartyWidget,
	"drift.com":              types.ThirdPartyWidget,
	"facebook.net":           types.ThirdPartySocial,
	"facebook.com":           types.ThirdPartySocial,
	"twitter.com":            types.ThirdPartySocial,
	"platform.linkedin.com":  types.ThirdPartySocial,
	"youtube.com":            types.ThirdPartySocial,
	"stripe.com":             types.ThirdPartyPayment,
	"paypal.com":             types.ThirdPartyPayment,
	"braintreegateway.com":   types.ThirdPartyPayment,
	"checkout.shopify.com":   types.ThirdPartyPayment,
}

const thirdPartyScript = `(() => { /* thirdPartyAudit */
	const out = [];
	document.querySelectorAll('script[src], link[href], iframe[src]').forEach(el => {
		const src = el.src || el.href || '';
		if (!src) return;
		try {
			const u = new URL(src, location.href);
			if (u.origin !== location.origin) out.push(u.href);
		} catch (e) {}
	});
	return out;
})()`

// CheckThirdParties extracts cross-origin script/link/iframe sources and
// classifies each host.
func (c *Collector) CheckThirdParties(ctx context.Context) ([]types.ThirdPartyDependency, error) {
	var sources []string
	if err := c.page.Evaluate(ctx, thirdPartyScript, &sources); err != nil {
		return nil, err
	}
	return ClassifySources(sources), nil
}

// ClassifySources groups cross-origin URLs by host and assigns category and
// privacy risk.
func ClassifySources(sources []string) []types.ThirdPartyDependency {
	byDomain := map[string]*types.ThirdPartyDependency{}
	for _, src := range sources {
		u, err := url.Parse(src)
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.ToLower(u.Host)
		dep, ok := byDomain[host]
		if !ok {
			category := Classify(host)
			dep = &types.ThirdPartyDependency{
				Domain:      host,
				Category:    category,
				PrivacyRisk: PrivacyRisk(category),
			}
			byDomain[host] = dep
		}
		dep.Sources = append(dep.Sources, src)
	}
	deps := make([]types.ThirdPartyDependency, 0, len(byDomain))
	for _, dep := range byDomain {
		deps = append(deps, *dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Domain < deps[j].Domain })
	return deps
}

// Classify matches a host against the known-domain table by suffix.
func Classify(host string) types.ThirdPartyCategory {
	host = strings.ToLower(host)
	for domain, category := range knownDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) || strings.HasSuffix(host, domain) {
			return category
		}
	}
	return types.ThirdPartyUnknown
}

// PrivacyRisk grades a category: trackers high, identity-adjacent medium,
// everything else low.
func PrivacyRisk(category types.ThirdPartyCategory) types.RiskLevel {
	switch category {
	case types.ThirdPartyAnalytics, types.ThirdPartyAdvertising:
		return types.RiskHigh
	case types.ThirdPartySocial, types.ThirdPartyPayment:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// MergeKnownDomains adds config-supplied classifications to the table.
func MergeKnownDomains(extra map[string]string) {
	for domain, category := range extra {
		knownDomains[strings.ToLower(domain)] = types.ThirdPartyCategory(category)
	}
}
