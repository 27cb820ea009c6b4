// Package control is the live channel between a running test and an
// observing client: run events stream out, intervention commands stream
// in. The two directions never share a queue, and only the execution side
// consumes commands.
package control

import (
	"encoding/json"
	"fmt"

	"github.com/probelab/webpilot/internal/brain"
	"github.com/probelab/webpilot/internal/types"
)

// MessageType tags messages on the live channel.
type MessageType string

// Server-to-client message types.
const (
	MsgConnected    MessageType = "connected"
	MsgTestStatus   MessageType = "test_status"
	MsgPageState    MessageType = "page_state"
	MsgStepRecorded MessageType = "step_recorded"
	MsgAIStuck      MessageType = "ai_stuck"
	MsgActionQueued MessageType = "action_queued"
	MsgPong         MessageType = "pong"
	MsgError        MessageType = "error"
)

// Client-to-server message types.
const (
	MsgPing         MessageType = "ping"
	MsgPause        MessageType = "pause"
	MsgResume       MessageType = "resume"
	MsgCancel       MessageType = "cancel"
	MsgApprove      MessageType = "approve"
	MsgInjectAction MessageType = "inject_action"
)

// Message is the wire format for both directions. Fields beyond Type are
// populated per message kind.
type Message struct {
	Type  MessageType `json:"type"`
	RunID string      `json:"runId,omitempty"`

	// test_status
	Status types.Status `json:"status,omitempty"`
	Paused bool         `json:"paused,omitempty"`

	// page_state
	URL           string `json:"url,omitempty"`
	Screenshot    []byte `json:"screenshot,omitempty"`
	ConsoleErrors int    `json:"consoleErrors,omitempty"`
	NetworkErrors int    `json:"networkErrors,omitempty"`

	// step_recorded
	Step *types.Step `json:"step,omitempty"`

	// ai_stuck, action_queued, error
	Message string `json:"message,omitempty"`

	// inject_action
	Action *brain.Action `json:"action,omitempty"`
}

// Decode parses a raw inbound frame and rejects frames without a known
// client message type.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("malformed control message: %w", err)
	}
	switch msg.Type {
	case MsgPing, MsgPause, MsgResume, MsgCancel, MsgApprove, MsgInjectAction:
	default:
		return Message{}, fmt.Errorf("unknown control message type %q", msg.Type)
	}
	if msg.Type == MsgInjectAction && msg.Action == nil {
		return Message{}, fmt.Errorf("inject_action without an action")
	}
	return msg, nil
}
