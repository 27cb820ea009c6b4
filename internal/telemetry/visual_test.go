package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probelab/webpilot/internal/page"
)

func TestFindOverlapsDetectsIntersections(t *testing.T) {
	t.Parallel()

	boxes := []Box{
		{Index: 0, Selector: "div#a", X: 0, Y: 0, W: 100, H: 100},
		{Index: 1, Selector: "div#b", X: 50, Y: 50, W: 100, H: 100},
		{Index: 2, Selector: "div#c", X: 500, Y: 500, W: 10, H: 10},
	}
	overlaps := FindOverlaps(boxes)
	require.Len(t, overlaps, 1)
	require.Equal(t, "div#a", overlaps[0][0].Selector)
	require.Equal(t, "div#b", overlaps[0][1].Selector)
}

func TestFindOverlapsSkipsAncestors(t *testing.T) {
	t.Parallel()

	// Child sits inside parent; the chain marks them related.
	boxes := []Box{
		{Index: 0, Selector: "div#parent", X: 0, Y: 0, W: 200, H: 200},
		{Index: 1, Selector: "span#child", X: 10, Y: 10, W: 50, H: 20, Chain: []int{0}},
	}
	require.Empty(t, FindOverlaps(boxes))
}

func TestFindOverlapsTouchingEdgesDoNotIntersect(t *testing.T) {
	t.Parallel()

	boxes := []Box{
		{Index: 0, X: 0, Y: 0, W: 100, H: 100},
		{Index: 1, X: 100, Y: 0, W: 100, H: 100},
	}
	require.Empty(t, FindOverlaps(boxes))
}

// stateResult scripts the pseudo-state probe on a fake page.
func stateResult(before, after string) func(out any) error {
	return func(out any) error {
		payload := fmt.Sprintf(
			`{"before":{"background":%q},"after":{"background":%q}}`, before, after)
		return json.Unmarshal([]byte(payload), out)
	}
}

func TestVerifyStateChangeFlagsUnresponsiveElements(t *testing.T) {
	t.Parallel()

	f := page.NewFake().Add("#btn", "button", 1)
	f.EvalResults["stateVerify"] = stateResult("red", "red")
	c := Attach(f)
	defer c.Detach()

	issue, err := c.VerifyStateChange(context.Background(), "#btn", "hover")
	require.NoError(t, err)
	require.NotNil(t, issue)
	require.Equal(t, "missing-hover-state", issue.Type)
	require.Equal(t, "#btn", issue.Selector)
}

func TestVerifyStateChangePassesWhenStyleReacts(t *testing.T) {
	t.Parallel()

	f := page.NewFake().Add("#btn", "button", 1)
	f.EvalResults["stateVerify"] = stateResult("red", "blue")
	c := Attach(f)
	defer c.Detach()

	issue, err := c.VerifyStateChange(context.Background(), "#btn", "hover")
	require.NoError(t, err)
	require.Nil(t, issue)
}

func TestVerifyStateChangeErrorsOnMissingElement(t *testing.T) {
	t.Parallel()

	f := page.NewFake() // no stateVerify script: the probe resolves to null
	c := Attach(f)
	defer c.Detach()

	_, err := c.VerifyStateChange(context.Background(), "#ghost", "focus")
	require.Error(t, err)
}

func TestCheckVisualVerifiesInteractiveStates(t *testing.T) {
	t.Parallel()

	f := page.NewFake().
		AddElement("button", page.Element{Selector: "#static-btn", Tag: "button", Visible: true}).
		AddElement("input", page.Element{Selector: "#email", Tag: "input", Visible: true}).
		AddElement("a", page.Element{Selector: "#hidden-link", Tag: "a", Visible: false})
	f.EvalResults["stateVerify"] = stateResult("red", "red")
	c := Attach(f)
	defer c.Detach()

	issues, err := c.CheckVisual(context.Background())
	require.NoError(t, err)

	byType := map[string][]string{}
	for _, is := range issues {
		byType[is.Type] = append(byType[is.Type], is.Selector)
	}
	require.Equal(t, []string{"#static-btn"}, byType["missing-hover-state"])
	require.Equal(t, []string{"#email"}, byType["missing-focus-state"])
}

func TestCheckVisualStateSweepStopsAtLimit(t *testing.T) {
	t.Parallel()

	f := page.NewFake()
	for i := 0; i < stateProbeLimit*2; i++ {
		f.AddElement("button", page.Element{
			Selector: fmt.Sprintf("#b%d", i), Tag: "button", Visible: true,
		})
	}
	f.EvalResults["stateVerify"] = stateResult("red", "red")
	c := Attach(f)
	defer c.Detach()

	issues, err := c.CheckVisual(context.Background())
	require.NoError(t, err)
	count := 0
	for _, is := range issues {
		if is.Type == "missing-hover-state" {
			count++
		}
	}
	require.Equal(t, stateProbeLimit, count)
}
