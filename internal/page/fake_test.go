package page

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeQueryExactBeforeUnion(t *testing.T) {
	t.Parallel()

	f := NewFake().
		Add("#a", "button", 1).
		Add("#b", "a", 2).
		AddElement("#a, #b", Element{Selector: "#exact", Tag: "div", Visible: true})

	// An exact key wins over splitting the comma list.
	els, err := f.Query(context.Background(), "#a, #b")
	require.NoError(t, err)
	require.Len(t, els, 1)
	require.Equal(t, "#exact", els[0].Selector)

	// Without an exact key, comma selectors union their parts.
	els, err = f.Query(context.Background(), "#b, #a")
	require.NoError(t, err)
	require.Len(t, els, 3)

	// Unknown selectors match nothing, without error.
	els, err = f.Query(context.Background(), "#missing")
	require.NoError(t, err)
	require.Empty(t, els)
}

func TestFakeInjectedFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	f := NewFake().Add("#a", "button", 1)
	f.FailSelectors["#a"] = boom
	f.FailScripts["perf"] = boom
	f.ClickErr["#a"] = boom

	_, err := f.Query(context.Background(), "#a")
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, f.Evaluate(context.Background(), "capture perf data", nil), boom)
	require.ErrorIs(t, f.Click(context.Background(), "#a"), boom)
	// Actions on unregistered elements fail like a detached node.
	require.Error(t, f.Click(context.Background(), "#ghost"))
	require.Error(t, f.Type(context.Background(), "#ghost", "x"))
}

func TestFakeRecordsInteractions(t *testing.T) {
	t.Parallel()

	f := NewFake().Add("#btn", "button", 1).Add("#email", "input", 1)
	require.NoError(t, f.Navigate(context.Background(), "https://example.com"))
	require.NoError(t, f.Click(context.Background(), "#btn"))
	require.NoError(t, f.Type(context.Background(), "#email", "a@b.c"))

	require.Equal(t, []string{"https://example.com"}, f.NavigatedTo)
	require.Equal(t, []string{"#btn"}, f.Clicked)
	require.Equal(t, "a@b.c", f.Typed["#email"])

	shot, err := f.Screenshot(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, shot)

	require.NoError(t, f.Close())
	require.True(t, f.Closed())
}

func TestFakeEventFanout(t *testing.T) {
	t.Parallel()

	f := NewFake()
	var console []ConsoleEvent
	var network []NetworkEvent
	f.OnConsole(func(ev ConsoleEvent) { console = append(console, ev) })
	f.OnNetwork(func(ev NetworkEvent) { network = append(network, ev) })

	f.EmitConsole("error", "boom")
	f.EmitNetwork(NetworkEvent{URL: "https://api.example.com", Status: 500})

	require.Len(t, console, 1)
	require.Equal(t, "boom", console[0].Text)
	require.Len(t, network, 1)
	require.False(t, network[0].Timestamp.IsZero())
}

func TestFakeEvaluateFillsMatchingScript(t *testing.T) {
	t.Parallel()

	f := NewFake()
	f.EvalResults["document.title"] = func(out any) error {
		p, ok := out.(*string)
		require.True(t, ok)
		*p = "Example"
		return nil
	}
	var title string
	require.NoError(t, f.Evaluate(context.Background(), "return document.title", &title))
	require.Equal(t, "Example", title)

	// Unmatched scripts are a no-op, matching a page with nothing to report.
	var other string
	require.NoError(t, f.Evaluate(context.Background(), "unrelated()", &other))
	require.Empty(t, other)
}
