package diagnose

import (
	"context"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// probe is one selector-backed detection. A probe with can=false that
// matches becomes a cannotTest entry carrying its blocker class.
type probe struct {
	name     string
	selector string
	reason   string
	can      bool
	blocker  string
}

// runProbes executes probes in declared order. The first page error aborts
// the scan; the Run wrapper turns it into an analysis limitation.
func runProbes(ctx context.Context, p page.Page, probes []probe) (can, cannot []types.CheckItem, err error) {
	for _, pr := range probes {
		els, qerr := p.Query(ctx, pr.selector)
		if qerr != nil {
			return nil, nil, qerr
		}
		if len(els) == 0 {
			continue
		}
		item := types.CheckItem{
			Name:         pr.name,
			Selector:     pr.selector,
			Reason:       pr.reason,
			ElementCount: len(els),
		}
		if pr.can {
			can = append(can, item)
		} else {
			item.BlockerClass = pr.blocker
			cannot = append(cannot, item)
		}
	}
	return can, cannot, nil
}

func evalBool(ctx context.Context, p page.Page, script string) (bool, error) {
	var v bool
	if err := p.Evaluate(ctx, script, &v); err != nil {
		return false, err
	}
	return v, nil
}

func evalString(ctx context.Context, p page.Page, script string) (string, error) {
	var v string
	if err := p.Evaluate(ctx, script, &v); err != nil {
		return "", err
	}
	return v, nil
}

func evalInt(ctx context.Context, p page.Page, script string) (int, error) {
	var v int
	if err := p.Evaluate(ctx, script, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// keywordScript builds a script that returns the first keyword present in
// the page's visible text, or "". The marker string keys scripted fakes.
func keywordScript(marker string, words []string) string {
	list := ""
	for i, w := range words {
		if i > 0 {
			list += ","
		}
		list += `"` + w + `"`
	}
	return `(() => { /* ` + marker + ` */
	const words = [` + list + `];
	const text = (document.body && document.body.innerText || '').toLowerCase();
	for (const w of words) { if (text.includes(w)) return w; }
	return '';
})()`
}
