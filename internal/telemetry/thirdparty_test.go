package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probelab/webpilot/internal/types"
)

func TestClassifyKnownAndUnknownHosts(t *testing.T) {
	t.Parallel()

	require.Equal(t, types.ThirdPartyAnalytics, Classify("www.google-analytics.com"))
	require.Equal(t, types.ThirdPartyAdvertising, Classify("stats.g.doubleclick.net"))
	require.Equal(t, types.ThirdPartyPayment, Classify("js.stripe.com"))
	require.Equal(t, types.ThirdPartyCDN, Classify("d1234.cloudfront.net"))
	require.Equal(t, types.ThirdPartyUnknown, Classify("api.example.com"))
}

func TestClassifySourcesGroupsByHost(t *testing.T) {
	t.Parallel()

	deps := ClassifySources([]string{
		"https://www.google-analytics.com/analytics.js",
		"https://www.google-analytics.com/collect?v=1",
		"https://js.stripe.com/v3/",
		"not a url",
	})
	require.Len(t, deps, 2)

	byDomain := map[string]types.ThirdPartyDependency{}
	for _, d := range deps {
		byDomain[d.Domain] = d
	}
	ga := byDomain["www.google-analytics.com"]
	require.Equal(t, types.ThirdPartyAnalytics, ga.Category)
	require.Equal(t, types.RiskHigh, ga.PrivacyRisk)
	require.Len(t, ga.Sources, 2)

	stripe := byDomain["js.stripe.com"]
	require.Equal(t, types.ThirdPartyPayment, stripe.Category)
	require.Equal(t, types.RiskMedium, stripe.PrivacyRisk)
}

func TestPrivacyRiskGrading(t *testing.T) {
	t.Parallel()

	require.Equal(t, types.RiskHigh, PrivacyRisk(types.ThirdPartyAnalytics))
	require.Equal(t, types.RiskHigh, PrivacyRisk(types.ThirdPartyAdvertising))
	require.Equal(t, types.RiskMedium, PrivacyRisk(types.ThirdPartySocial))
	require.Equal(t, types.RiskLow, PrivacyRisk(types.ThirdPartyCDN))
	require.Equal(t, types.RiskLow, PrivacyRisk(types.ThirdPartyUnknown))
}

func TestMergeKnownDomains(t *testing.T) {
	MergeKnownDomains(map[string]string{"internal-metrics.example": "analytics"})
	require.Equal(t, types.ThirdPartyAnalytics, Classify("internal-metrics.example"))
}
