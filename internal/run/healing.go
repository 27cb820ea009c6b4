package run

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// ErrHealingExhausted means every fallback strategy failed; the step needs
// manual intervention.
var ErrHealingExhausted = errors.New("self-healing exhausted all strategies")

// resolution is the outcome of target resolution. Healing is nil when the
// exact selector matched.
type resolution struct {
	selector string
	healing  *types.SelfHealing
}

var tokenSplit = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// selectorTokens extracts the identifying words from a CSS selector, e.g.
// "#login-submit" becomes ["login", "submit"].
func selectorTokens(selector string) []string {
	var tokens []string
	for _, t := range tokenSplit.Split(selector, -1) {
		t = strings.ToLower(t)
		switch t {
		case "", "input", "button", "a", "div", "span", "type", "submit", "text":
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// interactiveSelector is the candidate pool healing strategies search.
const interactiveSelector = `a, button, input, select, textarea, [role="button"], [onclick]`

// resolveTarget finds an element for selector, walking the fallback chain:
// exact match, then text-content match, then attribute match, then
// relative-position match. lastKnown supplies the element's previous
// on-screen position for the positional strategy.
func resolveTarget(ctx context.Context, p page.Page, selector string, lastKnown map[string]page.Element) (resolution, error) {
	els, err := p.Query(ctx, selector)
	if err == nil && len(els) > 0 {
		return resolution{selector: selector}, nil
	}

	candidates, cerr := p.Query(ctx, interactiveSelector)
	if cerr != nil || len(candidates) == 0 {
		return resolution{}, ErrHealingExhausted
	}
	tokens := selectorTokens(selector)

	if healed, ok := matchByText(candidates, tokens); ok {
		return resolution{selector: healed.Selector, healing: &types.SelfHealing{
			Strategy:         "text-content",
			OriginalSelector: selector,
			HealedSelector:   healed.Selector,
			Note:             fmt.Sprintf("matched element text %q", strings.TrimSpace(healed.Text)),
		}}, nil
	}
	if healed, ok := matchByAttribute(candidates, tokens); ok {
		return resolution{selector: healed.Selector, healing: &types.SelfHealing{
			Strategy:         "attribute",
			OriginalSelector: selector,
			HealedSelector:   healed.Selector,
			Note:             "matched id/name/data attribute",
		}}, nil
	}
	if prev, ok := lastKnown[selector]; ok {
		if healed, ok := matchByPosition(candidates, prev); ok {
			return resolution{selector: healed.Selector, healing: &types.SelfHealing{
				Strategy:         "relative-position",
				OriginalSelector: selector,
				HealedSelector:   healed.Selector,
				Note:             "matched nearest element to last known position",
			}}, nil
		}
	}
	return resolution{}, ErrHealingExhausted
}

func matchByText(candidates []page.Element, tokens []string) (page.Element, bool) {
	for _, el := range candidates {
		if !el.Visible || el.Text == "" {
			continue
		}
		text := strings.ToLower(el.Text)
		for _, t := range tokens {
			if strings.Contains(text, t) {
				return el, true
			}
		}
	}
	return page.Element{}, false
}

func matchByAttribute(candidates []page.Element, tokens []string) (page.Element, bool) {
	for _, el := range candidates {
		if !el.Visible {
			continue
		}
		for name, value := range el.Attrs {
			if name != "id" && name != "name" && !strings.HasPrefix(name, "data-") {
				continue
			}
			value = strings.ToLower(value)
			for _, t := range tokens {
				if strings.Contains(value, t) {
					return el, true
				}
			}
		}
	}
	return page.Element{}, false
}

// matchByPosition picks the visible candidate of the same tag nearest to
// the element's last known center, within a 200px radius.
func matchByPosition(candidates []page.Element, prev page.Element) (page.Element, bool) {
	const maxDistance = 200.0
	px, py := prev.X+prev.Width/2, prev.Y+prev.Height/2
	best := page.Element{}
	bestDist := maxDistance
	found := false
	for _, el := range candidates {
		if !el.Visible || (prev.Tag != "" && el.Tag != prev.Tag) {
			continue
		}
		cx, cy := el.X+el.Width/2, el.Y+el.Height/2
		dist := math.Hypot(cx-px, cy-py)
		if dist < bestDist {
			best, bestDist, found = el, dist, true
		}
	}
	return best, found
}
