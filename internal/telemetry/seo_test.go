package telemetry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probelab/webpilot/internal/types"
)

func seoTypes(issues []types.SEOIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Type)
	}
	return out
}

func TestEvaluateSEOCleanPage(t *testing.T) {
	t.Parallel()

	issues := EvaluateSEO("Webpilot", "An automated page testing engine.", true, true, true)
	require.Empty(t, issues)
}

func TestEvaluateSEOMissingTitleIsCritical(t *testing.T) {
	t.Parallel()

	issues := EvaluateSEO("", "desc", true, true, true)
	require.Len(t, issues, 1)
	require.Equal(t, "missing-title", issues[0].Type)
	require.Equal(t, types.SeverityCritical, issues[0].Severity)
}

func TestEvaluateSEOLengthRules(t *testing.T) {
	t.Parallel()

	longTitle := strings.Repeat("t", maxTitleLen+1)
	longDesc := strings.Repeat("d", maxDescriptionLen+1)
	issues := EvaluateSEO(longTitle, longDesc, true, false, false)
	typesSeen := seoTypes(issues)
	require.Contains(t, typesSeen, "long-title")
	require.Contains(t, typesSeen, "long-description")
	require.Contains(t, typesSeen, "missing-canonical")
	require.Contains(t, typesSeen, "missing-structured-data")

	// Exactly at the limit is fine.
	issues = EvaluateSEO(strings.Repeat("t", maxTitleLen), strings.Repeat("d", maxDescriptionLen), true, true, true)
	require.Empty(t, issues)
}

func TestLooksLikeXSSSink(t *testing.T) {
	t.Parallel()

	require.True(t, LooksLikeXSSSink(`el.innerHTML = location.hash.slice(1)`))
	require.True(t, LooksLikeXSSSink(`node.innerHTML = document.cookie`))
	require.False(t, LooksLikeXSSSink(`el.innerHTML = "<b>static</b>"`))
	require.False(t, LooksLikeXSSSink(`console.log(location.href)`))
}
