package run

import "github.com/probelab/webpilot/internal/types"

// EventType tags events pushed to live observers.
type EventType string

const (
	EventStatus       EventType = "test_status"
	EventPageState    EventType = "page_state"
	EventStepRecorded EventType = "step_recorded"
	EventAIStuck      EventType = "ai_stuck"
	EventActionQueued EventType = "action_queued"
)

// Event is one observation pushed to subscribed channels.
type Event struct {
	Type          EventType    `json:"type"`
	RunID         string       `json:"runId"`
	Status        types.Status `json:"status,omitempty"`
	Paused        bool         `json:"paused,omitempty"`
	Step          *types.Step  `json:"step,omitempty"`
	Message       string       `json:"message,omitempty"`
	URL           string       `json:"url,omitempty"`
	Screenshot    []byte       `json:"screenshot,omitempty"`
	ConsoleErrors int          `json:"consoleErrors,omitempty"`
	NetworkErrors int          `json:"networkErrors,omitempty"`
}

// Sink receives run events. Publish must not block the execution loop;
// implementations drop rather than stall.
type Sink interface {
	Publish(Event)
}
