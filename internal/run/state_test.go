package run

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probelab/webpilot/internal/types"
)

func TestCanTransitionHappyPath(t *testing.T) {
	t.Parallel()

	chain := []types.Status{
		types.StatusPending,
		types.StatusQueued,
		types.StatusDiagnosing,
		types.StatusWaitingApproval,
		types.StatusRunning,
		types.StatusCompleted,
	}
	for i := 1; i < len(chain); i++ {
		require.True(t, CanTransition(chain[i-1], chain[i]), "%s -> %s", chain[i-1], chain[i])
	}
}

func TestCanTransitionRejectsSkipsAndReversals(t *testing.T) {
	t.Parallel()

	require.False(t, CanTransition(types.StatusPending, types.StatusRunning))
	require.False(t, CanTransition(types.StatusQueued, types.StatusWaitingApproval))
	// The approval gate opens once; running never returns to it.
	require.False(t, CanTransition(types.StatusRunning, types.StatusWaitingApproval))
	require.False(t, CanTransition(types.StatusRunning, types.StatusDiagnosing))
}

func TestCancelReachableFromEveryNonTerminalState(t *testing.T) {
	t.Parallel()

	for _, from := range []types.Status{
		types.StatusPending, types.StatusQueued, types.StatusDiagnosing,
		types.StatusWaitingApproval, types.StatusRunning,
	} {
		require.True(t, CanTransition(from, types.StatusCancelled), "from %s", from)
	}
	for _, from := range []types.Status{
		types.StatusCompleted, types.StatusFailed, types.StatusCancelled,
	} {
		require.False(t, CanTransition(from, types.StatusCancelled), "from %s", from)
		require.False(t, CanTransition(from, types.StatusRunning), "from %s", from)
	}
}

func TestRunCancelIsIdempotent(t *testing.T) {
	t.Parallel()

	r := New("https://example.com", types.RunOptions{})
	require.NoError(t, r.Cancel())
	require.Equal(t, types.StatusCancelled, r.Status())
	// A second cancel is a no-op, not an error.
	require.NoError(t, r.Cancel())

	snap := r.Snapshot()
	require.NotNil(t, snap.EndedAt)
	require.False(t, snap.Paused)
}

func TestRunPauseOnlyWhileActive(t *testing.T) {
	t.Parallel()

	r := New("https://example.com", types.RunOptions{})
	require.ErrorIs(t, r.Pause(), ErrNotPausable)

	require.NoError(t, r.transition(types.StatusQueued))
	require.NoError(t, r.transition(types.StatusDiagnosing))
	require.NoError(t, r.Pause())
	require.True(t, r.Paused())
	require.NoError(t, r.Resume())
	require.False(t, r.Paused())
}

func TestRunApproveOutsideGateFails(t *testing.T) {
	t.Parallel()

	r := New("https://example.com", types.RunOptions{})
	require.ErrorIs(t, r.Approve(), ErrNotAwaitingApproval)
}

func TestRunTerminalRecordIsFrozen(t *testing.T) {
	t.Parallel()

	r := New("https://example.com", types.RunOptions{})
	require.NoError(t, r.Cancel())
	require.ErrorIs(t, r.transition(types.StatusRunning), ErrRunTerminal)
	require.ErrorIs(t, r.Resume(), ErrRunTerminal)
	require.Error(t, r.InjectAction(actionClick("#go")))
}
