package diagnose

import (
	"context"
	"fmt"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// VisualDiagnoser classifies what rendering can be asserted on. Canvas,
// video and WebGL content is unobservable pixel soup; cross-origin iframes
// additionally promote to high-risk areas.
type VisualDiagnoser struct{}

func (d *VisualDiagnoser) TestType() string { return "Visual" }

func (d *VisualDiagnoser) Steps() []string {
	return []string{
		"Session initialization",
		"Snapshot capture",
		"Media inventory",
		"Layout container scan",
		"Summary compilation",
	}
}

var visualProbes = []probe{
	{name: "Images", selector: `img`, can: true,
		reason: "image presence, dimensions and alt text can be asserted"},
	{name: "SEO meta tags", selector: `meta[name="description"], meta[property^="og:"]`, can: true,
		reason: "metadata presence can be asserted"},
	{name: "Canvas content", selector: `canvas`, can: false,
		reason: "canvas pixels carry no inspectable structure"},
	{name: "Video content", selector: `video`, can: false,
		reason: "frame content cannot be asserted"},
}

// layoutScript counts grid and flex containers from computed style.
const layoutScript = `(() => { /* layoutContainers */
	let n = 0;
	document.querySelectorAll('div, main, section, ul').forEach(el => {
		const display = window.getComputedStyle(el).display;
		if (display === 'grid' || display === 'flex') n++;
	});
	return n;
})()`

// crossOriginFrameScript counts iframes whose src is off-origin.
const crossOriginFrameScript = `(() => { /* crossOriginFrames */
	let n = 0;
	document.querySelectorAll('iframe[src]').forEach(f => {
		try { if (new URL(f.src, location.href).origin !== location.origin) n++; } catch (e) {}
	});
	return n;
})()`

func (d *VisualDiagnoser) Diagnose(ctx context.Context, p page.Page) (types.TestTypeDiagnosis, error) {
	can, cannot, err := runProbes(ctx, p, visualProbes)
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	layouts, err := evalInt(ctx, p, layoutScript)
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	if layouts > 0 {
		can = append(can, types.CheckItem{
			Name:         "Layout containers",
			Reason:       "grid/flex geometry can be asserted",
			ElementCount: layouts,
		})
	}
	frames, err := evalInt(ctx, p, crossOriginFrameScript)
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	if frames > 0 {
		cannot = append(cannot, types.CheckItem{
			Name:         "Cross-origin iframes",
			Reason:       fmt.Sprintf("%d frame(s) render third-party content this page cannot observe", frames),
			ElementCount: frames,
			BlockerClass: BlockerCrossOrigin,
		})
	}
	diag := types.TestTypeDiagnosis{CanTest: can, CannotTest: cannot}
	diag.Narrative = buildNarrative(d.TestType(), can, cannot, nil)
	return diag, nil
}
