package diagnose

import (
	"context"
	"fmt"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// NavigationDiagnoser maps the explorable navigation surface. External and
// downloadable destinations are non-testable because their content cannot
// be verified from this page.
type NavigationDiagnoser struct{}

func (d *NavigationDiagnoser) TestType() string { return "Navigation" }

func (d *NavigationDiagnoser) Steps() []string {
	return []string{
		"Session initialization",
		"Link inventory",
		"Menu and control scan",
		"Navigation exploration",
		"SPA routing detection",
		"Summary compilation",
	}
}

var navigationProbes = []probe{
	{name: "Internal links", selector: `a[href^="/"], a[href^="#"], a[href^="./"], a[href^="../"]`, can: true,
		reason: "same-origin destinations can be followed and verified"},
	{name: "Navigation menus", selector: `nav, [role="navigation"]`, can: true,
		reason: "menu structure can be walked"},
	{name: "Search", selector: `input[type="search"], form[role="search"]`, can: true,
		reason: "search entry accepts scripted queries"},
	{name: "Breadcrumbs", selector: `.breadcrumb, .breadcrumbs, [aria-label*="breadcrumb"]`, can: true,
		reason: "breadcrumb trail encodes location for assertions"},
	{name: "Pagination", selector: `.pagination, [aria-label*="pagination"], [rel="next"]`, can: true,
		reason: "page controls can be stepped through"},
	{name: "Tabs", selector: `[role="tab"]`, can: true,
		reason: "tab switches stay on-page and can be asserted"},
	{name: "Downloadable file links", selector: `a[download], a[href$=".pdf"], a[href$=".zip"], a[href$=".csv"]`,
		can: false, blocker: BlockerExternalContent,
		reason: "downloaded content cannot be verified in the page"},
}

// spaDetectScript sniffs client-side routing: framework mount points or
// hydration globals mean pushState navigation is in play.
const spaDetectScript = `(() => { /* spaDetect */
	return !!(window.history && window.history.pushState &&
		(window.__NEXT_DATA__ || window.___gatsby || window.__NUXT__ ||
		document.querySelector('[data-reactroot], [ng-version], #app, #root')));
})()`

// externalLinkScript counts anchors pointing off-origin.
const externalLinkScript = `(() => { /* externalLinks */
	let n = 0;
	document.querySelectorAll('a[href]').forEach(a => {
		try { if (new URL(a.href, location.href).origin !== location.origin) n++; } catch (e) {}
	});
	return n;
})()`

func (d *NavigationDiagnoser) Diagnose(ctx context.Context, p page.Page) (types.TestTypeDiagnosis, error) {
	can, cannot, err := runProbes(ctx, p, navigationProbes)
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	spa, err := evalBool(ctx, p, spaDetectScript)
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	if spa {
		can = append(can, types.CheckItem{
			Name:   "SPA routing",
			Reason: "client-side routing detected; history transitions can be asserted",
		})
	}
	external, err := evalInt(ctx, p, externalLinkScript)
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	if external > 0 {
		cannot = append(cannot, types.CheckItem{
			Name:         "External links",
			Reason:       fmt.Sprintf("%d link(s) leave the origin; destination content cannot be verified", external),
			ElementCount: external,
			BlockerClass: BlockerExternalContent,
		})
	}
	diag := types.TestTypeDiagnosis{CanTest: can, CannotTest: cannot}
	diag.Narrative = buildNarrative(d.TestType(), can, cannot, nil)
	return diag, nil
}
