package diagnose

import (
	"context"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// RageBaitDiagnoser probes the edge cases that make real users rage: back
// button abuse, unload guards, pathological input, modal traps. Server-side
// session expiry over WebSocket is the one thing it cannot simulate.
type RageBaitDiagnoser struct{}

func (d *RageBaitDiagnoser) TestType() string { return "RageBait" }

func (d *RageBaitDiagnoser) Steps() []string {
	return []string{
		"Session initialization",
		"Browser behavior probes",
		"Input boundary probes",
		"UI trap probes",
		"Summary compilation",
	}
}

var rageBaitProbes = []probe{
	{name: "Enter-key submission", selector: `form input[type="text"], form input[type="email"], form input[type="search"]`,
		can: true, reason: "Enter inside a form exercises implicit submission"},
	{name: "Special-character and overflow input", selector: `input[type="text"], textarea`,
		can: true, reason: "text inputs accept hostile strings and oversized payloads"},
	{name: "Numeric boundary input", selector: `input[type="number"]`,
		can: true, reason: "min/max/step boundaries can be violated deliberately"},
	{name: "Modal escape", selector: `[role="dialog"], .modal, dialog`,
		can: true, reason: "Escape, backdrop clicks and focus traps can be exercised"},
	{name: "Session timeout UI", selector: `[class*="session-expir"], [class*="timeout"], [id*="session-warning"]`,
		can: true, reason: "idle-timeout warnings can be awaited and asserted"},
}

// behaviorScript inspects window-level behaviors in one pass.
const behaviorScript = `(() => { /* rageBehaviors */
	return {
		historyApi: !!(window.history && typeof window.history.pushState === 'function'),
		beforeUnload: typeof window.onbeforeunload === 'function',
		storage: (() => { try { localStorage.setItem('__wp','1'); localStorage.removeItem('__wp'); return true; } catch (e) { return false; } })(),
		infiniteScroll: document.documentElement.scrollHeight > window.innerHeight * 3,
		copyProtection: typeof document.oncopy === 'function' || typeof document.onselectstart === 'function',
		contextMenuOverride: typeof document.oncontextmenu === 'function',
		webSocket: !!window.__wpWebSocketSeen,
	};
})()`

type rageBehaviors struct {
	HistoryAPI          bool `json:"historyApi"`
	BeforeUnload        bool `json:"beforeUnload"`
	Storage             bool `json:"storage"`
	InfiniteScroll      bool `json:"infiniteScroll"`
	CopyProtection      bool `json:"copyProtection"`
	ContextMenuOverride bool `json:"contextMenuOverride"`
	WebSocket           bool `json:"webSocket"`
}

func (d *RageBaitDiagnoser) Diagnose(ctx context.Context, p page.Page) (types.TestTypeDiagnosis, error) {
	can, cannot, err := runProbes(ctx, p, rageBaitProbes)
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	var b rageBehaviors
	if err := p.Evaluate(ctx, behaviorScript, &b); err != nil {
		return types.TestTypeDiagnosis{}, err
	}

	addCan := func(ok bool, name, reason string) {
		if ok {
			can = append(can, types.CheckItem{Name: name, Reason: reason})
		}
	}
	addCan(b.HistoryAPI, "History API abuse", "back/forward spam and pushState loops can be driven")
	addCan(b.BeforeUnload, "beforeunload guard", "unload prompts can be triggered and dismissed")
	addCan(b.Storage, "Storage persistence", "local/session storage survival across reloads can be asserted")
	addCan(b.InfiniteScroll, "Infinite scroll", "scroll exhaustion and loading sentinels can be driven")
	addCan(b.CopyProtection, "Copy protection", "clipboard and selection interference can be provoked")
	addCan(b.ContextMenuOverride, "Context-menu override", "right-click hijacking can be asserted")

	if b.WebSocket {
		cannot = append(cannot, types.CheckItem{
			Name:         "WebSocket session expiry",
			Reason:       "server-side expiry over a live socket cannot be simulated from the client",
			BlockerClass: BlockerServerSession,
		})
	}
	diag := types.TestTypeDiagnosis{CanTest: can, CannotTest: cannot}
	diag.Narrative = buildNarrative(d.TestType(), can, cannot, nil)
	return diag, nil
}
