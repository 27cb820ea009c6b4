package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probelab/webpilot/internal/config"
	"github.com/probelab/webpilot/internal/diagnose"
	"github.com/probelab/webpilot/internal/types"
)

func TestDefaultConfigIsCoherent(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, config.Validate(cfg))
	require.NotEmpty(t, cfg.Devices, "defaults must ship at least one device profile")

	for _, d := range cfg.Devices {
		resolved, err := cfg.Device(d.Name)
		require.NoError(t, err, "device %s must resolve by name", d.Name)
		require.Equal(t, d, resolved)
	}

	// The unnamed lookup must land on a real profile.
	first, err := cfg.Device("")
	require.NoError(t, err)
	require.Equal(t, cfg.Devices[0], first)

	opts := cfg.RunOptions()
	require.Positive(t, opts.MaxSteps)
	require.Positive(t, opts.TimeBudget)
	switch opts.Approval.Mode {
	case types.ApprovalManual, types.ApprovalAuto, types.ApprovalAutoOnClean:
	default:
		t.Fatalf("defaults produce unknown approval mode %q", opts.Approval.Mode)
	}
}

func TestDefaultDiagnoserSetIsCoherent(t *testing.T) {
	set := diagnose.DefaultSet()
	require.NotEmpty(t, set)

	seen := map[string]bool{}
	for _, d := range set {
		name := d.TestType()
		require.NotEmpty(t, strings.TrimSpace(name), "every diagnoser must name its test type")
		require.False(t, seen[name], "duplicate diagnoser %s", name)
		seen[name] = true
		require.NotEmpty(t, d.Steps(), "diagnoser %s must declare its analysis steps", name)
	}
}
