// Package brain defines the action-selection port. The production brain is
// an external LLM service; this package carries the contract plus the
// fallback deciders the executor uses when no brain is attached.
package brain

import (
	"context"
	"errors"
	"math/rand"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// ErrNoAction signals the decider has nothing left worth doing; the
// executor treats it as goal satisfaction, not failure.
var ErrNoAction = errors.New("no further action")

// Action is one decided interaction.
type Action struct {
	Type        string          `json:"type"` // click, type, navigate, scroll, wait
	Selector    string          `json:"selector,omitempty"`
	Coordinates *Point          `json:"coordinates,omitempty"`
	Value       string          `json:"value,omitempty"`
	Metadata    *ActionMetadata `json:"metadata,omitempty"`
}

// Point is a viewport coordinate target for selector-less actions.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ActionMetadata carries intervention context on injected actions.
type ActionMetadata struct {
	IsTeachingMoment bool   `json:"isTeachingMoment"`
	UserIntent       string `json:"userIntent,omitempty"`
	PreCondition     string `json:"preCondition,omitempty"`
}

// Observation is what a decider sees before choosing the next action.
type Observation struct {
	URL         string
	StepNumber  int
	Elements    []page.Element
	LastStep    *types.Step
	Diagnosis   *types.DiagnosisResult
	Screenshot  []byte
	RecentError string
}

// Brain selects the next action for a run.
type Brain interface {
	Mode() types.StepMode
	SelectNextAction(ctx context.Context, obs Observation) (Action, error)
}

// Scripted replays a fixed action sequence, then reports ErrNoAction. Used
// for deterministic speculative runs and in tests.
type Scripted struct {
	Actions []Action
	next    int
	mode    types.StepMode
}

// NewScripted builds a scripted decider in speculative mode.
func NewScripted(actions ...Action) *Scripted {
	return &Scripted{Actions: actions, mode: types.ModeSpeculative}
}

func (s *Scripted) Mode() types.StepMode { return s.mode }

func (s *Scripted) SelectNextAction(_ context.Context, _ Observation) (Action, error) {
	if s.next >= len(s.Actions) {
		return Action{}, ErrNoAction
	}
	a := s.Actions[s.next]
	s.next++
	return a, nil
}

// Monkey picks a random visible interactive element each step. Seeded so a
// run can be replayed.
type Monkey struct {
	rng *rand.Rand
}

// NewMonkey builds a seeded random decider.
func NewMonkey(seed int64) *Monkey {
	return &Monkey{rng: rand.New(rand.NewSource(seed))}
}

func (m *Monkey) Mode() types.StepMode { return types.ModeMonkey }

func (m *Monkey) SelectNextAction(_ context.Context, obs Observation) (Action, error) {
	var candidates []page.Element
	for _, el := range obs.Elements {
		if !el.Visible {
			continue
		}
		switch el.Tag {
		case "a", "button", "input", "select", "textarea":
			candidates = append(candidates, el)
		}
	}
	if len(candidates) == 0 {
		return Action{}, ErrNoAction
	}
	el := candidates[m.rng.Intn(len(candidates))]
	if el.Tag == "input" || el.Tag == "textarea" {
		return Action{Type: "type", Selector: el.Selector, Value: "webpilot probe"}, nil
	}
	return Action{Type: "click", Selector: el.Selector}, nil
}
