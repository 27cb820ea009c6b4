// Package run owns the test-run lifecycle: the status state machine, the
// step executor with its self-healing chain, visual regression against
// approved baselines, and the multi-run manager.
package run

import (
	"errors"
	"fmt"

	"github.com/probelab/webpilot/internal/types"
)

var (
	// ErrInvalidTransition rejects a status change the machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrRunTerminal rejects any mutation of a finished run.
	ErrRunTerminal = errors.New("run is terminal")
	// ErrNotPausable rejects pause outside diagnosing/running.
	ErrNotPausable = errors.New("run is not in a pausable state")
	// ErrNotAwaitingApproval rejects approval outside the gate.
	ErrNotAwaitingApproval = errors.New("run is not awaiting approval")
)

// validTransitions is the closed transition table. running never returns to
// waiting_approval: the gate opens once. cancelled is reachable from every
// non-terminal state and handled separately.
var validTransitions = map[types.Status][]types.Status{
	types.StatusPending:         {types.StatusQueued},
	types.StatusQueued:          {types.StatusDiagnosing},
	types.StatusDiagnosing:      {types.StatusWaitingApproval, types.StatusFailed},
	types.StatusWaitingApproval: {types.StatusRunning, types.StatusFailed},
	types.StatusRunning:         {types.StatusCompleted, types.StatusFailed},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to types.Status) bool {
	if from.Terminal() {
		return false
	}
	if to == types.StatusCancelled {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transitionError(from, to types.Status) error {
	if from.Terminal() {
		return fmt.Errorf("%w: %s", ErrRunTerminal, from)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
