package brain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

func TestScriptedReplaysThenStops(t *testing.T) {
	t.Parallel()

	b := NewScripted(
		Action{Type: "click", Selector: "#a"},
		Action{Type: "type", Selector: "#b", Value: "hello"},
	)
	require.Equal(t, types.ModeSpeculative, b.Mode())

	a, err := b.SelectNextAction(context.Background(), Observation{})
	require.NoError(t, err)
	require.Equal(t, "#a", a.Selector)

	a, err = b.SelectNextAction(context.Background(), Observation{})
	require.NoError(t, err)
	require.Equal(t, "hello", a.Value)

	_, err = b.SelectNextAction(context.Background(), Observation{})
	require.ErrorIs(t, err, ErrNoAction)
	// Exhaustion is sticky.
	_, err = b.SelectNextAction(context.Background(), Observation{})
	require.ErrorIs(t, err, ErrNoAction)
}

func TestMonkeyOnlyTouchesVisibleInteractiveElements(t *testing.T) {
	t.Parallel()

	obs := Observation{Elements: []page.Element{
		{Selector: "#hidden", Tag: "button", Visible: false},
		{Selector: ".prose", Tag: "p", Visible: true},
		{Selector: "#ok", Tag: "button", Visible: true},
	}}
	b := NewMonkey(42)
	for i := 0; i < 20; i++ {
		a, err := b.SelectNextAction(context.Background(), obs)
		require.NoError(t, err)
		require.Equal(t, "#ok", a.Selector)
		require.Equal(t, "click", a.Type)
	}
}

func TestMonkeyTypesIntoFields(t *testing.T) {
	t.Parallel()

	obs := Observation{Elements: []page.Element{
		{Selector: "#name", Tag: "input", Visible: true},
	}}
	a, err := NewMonkey(1).SelectNextAction(context.Background(), obs)
	require.NoError(t, err)
	require.Equal(t, "type", a.Type)
	require.NotEmpty(t, a.Value)
}

func TestMonkeyIsDeterministicPerSeed(t *testing.T) {
	t.Parallel()

	obs := Observation{Elements: []page.Element{
		{Selector: "#a", Tag: "button", Visible: true},
		{Selector: "#b", Tag: "a", Visible: true},
		{Selector: "#c", Tag: "select", Visible: true},
	}}
	pick := func(seed int64) []string {
		b := NewMonkey(seed)
		var out []string
		for i := 0; i < 10; i++ {
			a, err := b.SelectNextAction(context.Background(), obs)
			require.NoError(t, err)
			out = append(out, a.Selector)
		}
		return out
	}
	require.Equal(t, pick(7), pick(7))
}

func TestMonkeyStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	_, err := NewMonkey(1).SelectNextAction(context.Background(), Observation{})
	require.ErrorIs(t, err, ErrNoAction)
}
