package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probelab/webpilot/internal/page"
)

func TestCollectorBuffersErrorsOnly(t *testing.T) {
	t.Parallel()

	f := page.NewFake()
	c := Attach(f)
	defer c.Detach()

	f.EmitConsole("error", "Uncaught TypeError: x is undefined")
	f.EmitConsole("warning", "deprecated API")
	f.EmitConsole("log", "just chatter")
	f.EmitNetwork(page.NetworkEvent{URL: "https://example.com/api", Status: 500})
	f.EmitNetwork(page.NetworkEvent{URL: "https://example.com/ok", Status: 200})
	f.EmitNetwork(page.NetworkEvent{URL: "https://example.com/err", Failed: true, ErrorText: "net::ERR_FAILED"})

	consoleErrs, networkErrs := c.Counts()
	require.Equal(t, 2, consoleErrs) // error + warning, not log
	require.Equal(t, 2, networkErrs) // 500 + failed, not 200
}

func TestAppendBoundedDropsOldest(t *testing.T) {
	t.Parallel()

	var buf []int
	for i := 0; i < maxBufferedEntries+10; i++ {
		buf = appendBounded(buf, i)
	}
	require.Len(t, buf, maxBufferedEntries)
	require.Equal(t, 10, buf[0])
}

func TestCollectIsolatesFailingChecks(t *testing.T) {
	t.Parallel()

	f := page.NewFake()
	// The performance script fails; everything else returns zero values.
	f.FailScripts["perfCapture"] = errors.New("CDP session lost")
	c := Attach(f)
	defer c.Detach()

	results := c.Collect(context.Background())
	require.NotNil(t, results)
	require.Nil(t, results.Performance)
	require.Len(t, results.CollectionNotes, 1)
	require.Contains(t, results.CollectionNotes[0], "performance check failed")
	require.NotZero(t, results.CollectedAt)
	// A page with nothing to report scores clean.
	require.Equal(t, 0, results.WCAG.Failed)
}

func TestCollectCarriesPassiveBuffers(t *testing.T) {
	t.Parallel()

	f := page.NewFake()
	c := Attach(f)
	defer c.Detach()
	f.EmitConsole("error", "boom")

	results := c.Collect(context.Background())
	require.Len(t, results.ConsoleErrors, 1)
	require.Equal(t, "boom", results.ConsoleErrors[0].Text)
}
