package control

import (
	"fmt"

	"github.com/probelab/webpilot/internal/run"
)

// outboundBuffer bounds the event queue toward the client. When the client
// cannot keep up, the oldest events are dropped; the run never stalls on a
// slow observer.
const outboundBuffer = 64

// Channel couples a run to one live client. It implements run.Sink for the
// outbound direction and translates inbound client commands into run
// control calls. Command effects land at the run's next step boundary.
type Channel struct {
	run *run.Run
	out chan Message

	// Logf reports dropped or rejected frames. Defaults to discard.
	Logf func(format string, args ...any)
}

// NewChannel attaches a channel to a run and announces the connection.
func NewChannel(r *run.Run) *Channel {
	ch := &Channel{
		run:  r,
		out:  make(chan Message, outboundBuffer),
		Logf: func(string, ...any) {},
	}
	snap := r.Snapshot()
	ch.push(Message{Type: MsgConnected, RunID: snap.ID, Status: snap.Status, Paused: snap.Paused})
	r.AddSink(ch)
	return ch
}

// Outbound is the stream of messages for the client.
func (c *Channel) Outbound() <-chan Message {
	return c.out
}

// Close detaches the channel from its run. Messages already queued stay
// readable; nothing new arrives.
func (c *Channel) Close() {
	c.run.RemoveSink(c)
}

// Publish converts a run event into an outbound message. Never blocks.
func (c *Channel) Publish(ev run.Event) {
	msg := Message{RunID: ev.RunID}
	switch ev.Type {
	case run.EventStatus:
		msg.Type = MsgTestStatus
		msg.Status = ev.Status
		msg.Paused = ev.Paused
	case run.EventPageState:
		msg.Type = MsgPageState
		msg.URL = ev.URL
		msg.Screenshot = ev.Screenshot
		msg.ConsoleErrors = ev.ConsoleErrors
		msg.NetworkErrors = ev.NetworkErrors
	case run.EventStepRecorded:
		msg.Type = MsgStepRecorded
		msg.Step = ev.Step
	case run.EventAIStuck:
		msg.Type = MsgAIStuck
		msg.Message = ev.Message
	case run.EventActionQueued:
		msg.Type = MsgActionQueued
		msg.Message = ev.Message
	default:
		return
	}
	c.push(msg)
}

// push enqueues an outbound message, evicting the oldest on overflow.
func (c *Channel) push(msg Message) {
	for {
		select {
		case c.out <- msg:
			return
		default:
		}
		select {
		case dropped := <-c.out:
			c.Logf("control: dropping %s event for slow client", dropped.Type)
		default:
		}
	}
}

// Handle processes one raw inbound frame. Malformed or unknown frames are
// logged and answered with an error message, never fatal to the run.
func (c *Channel) Handle(raw []byte) {
	msg, err := Decode(raw)
	if err != nil {
		c.Logf("control: %v", err)
		c.push(Message{Type: MsgError, RunID: c.run.ID(), Message: err.Error()})
		return
	}
	if err := c.apply(msg); err != nil {
		c.Logf("control: %s rejected: %v", msg.Type, err)
		c.push(Message{Type: MsgError, RunID: c.run.ID(), Message: err.Error()})
	}
}

func (c *Channel) apply(msg Message) error {
	switch msg.Type {
	case MsgPing:
		c.push(Message{Type: MsgPong, RunID: c.run.ID()})
		return nil
	case MsgPause:
		return c.run.Pause()
	case MsgResume:
		return c.run.Resume()
	case MsgCancel:
		return c.run.Cancel()
	case MsgApprove:
		return c.run.Approve()
	case MsgInjectAction:
		return c.run.InjectAction(*msg.Action)
	default:
		return fmt.Errorf("unhandled message type %q", msg.Type)
	}
}
