package control

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/probelab/webpilot/internal/brain"
	"github.com/probelab/webpilot/internal/run"
	"github.com/probelab/webpilot/internal/types"
)

func drain(t *testing.T, ch *Channel) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case msg := <-ch.Outbound():
			out = append(out, msg)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func TestChannelAnnouncesConnection(t *testing.T) {
	t.Parallel()

	r := run.New("https://example.com", types.RunOptions{})
	ch := NewChannel(r)

	msgs := drain(t, ch)
	require.NotEmpty(t, msgs)
	require.Equal(t, MsgConnected, msgs[0].Type)
	require.Equal(t, r.ID(), msgs[0].RunID)
	require.Equal(t, types.StatusPending, msgs[0].Status)
}

func TestChannelStreamsRunEventsInOrder(t *testing.T) {
	t.Parallel()

	r := run.New("https://example.com", types.RunOptions{})
	ch := NewChannel(r)
	drain(t, ch) // discard the connected frame

	require.NoError(t, r.Cancel())
	msgs := drain(t, ch)
	require.Len(t, msgs, 1)
	require.Equal(t, MsgTestStatus, msgs[0].Type)
	require.Equal(t, types.StatusCancelled, msgs[0].Status)
}

func TestChannelPingPong(t *testing.T) {
	t.Parallel()

	r := run.New("https://example.com", types.RunOptions{})
	ch := NewChannel(r)
	drain(t, ch)

	ch.Handle([]byte(`{"type":"ping"}`))
	msgs := drain(t, ch)
	require.Len(t, msgs, 1)
	require.Equal(t, MsgPong, msgs[0].Type)
}

func TestChannelMalformedFramesAreNotFatal(t *testing.T) {
	t.Parallel()

	r := run.New("https://example.com", types.RunOptions{})
	var logged []string
	ch := NewChannel(r)
	ch.Logf = func(format string, args ...any) {
		logged = append(logged, format)
	}
	drain(t, ch)

	ch.Handle([]byte(`{not json`))
	ch.Handle([]byte(`{"type":"reboot_server"}`))
	ch.Handle([]byte(`{"type":"inject_action"}`)) // action missing

	msgs := drain(t, ch)
	require.Len(t, msgs, 3)
	for _, msg := range msgs {
		require.Equal(t, MsgError, msg.Type)
	}
	require.Len(t, logged, 3)
	// The run is untouched.
	require.Equal(t, types.StatusPending, r.Status())
}

func TestChannelRejectedCommandsSurfaceErrors(t *testing.T) {
	t.Parallel()

	r := run.New("https://example.com", types.RunOptions{})
	ch := NewChannel(r)
	drain(t, ch)

	// Pause is invalid while pending.
	ch.Handle([]byte(`{"type":"pause"}`))
	msgs := drain(t, ch)
	require.Len(t, msgs, 1)
	require.Equal(t, MsgError, msgs[0].Type)
	require.Contains(t, msgs[0].Message, "not in a pausable state")
}

func TestChannelInjectActionRoundTrip(t *testing.T) {
	t.Parallel()

	r := run.New("https://example.com", types.RunOptions{})
	ch := NewChannel(r)
	drain(t, ch)

	frame, err := json.Marshal(Message{
		Type:   MsgInjectAction,
		Action: &brain.Action{Type: "click", Selector: "#next"},
	})
	require.NoError(t, err)
	ch.Handle(frame)

	msgs := drain(t, ch)
	require.Len(t, msgs, 1)
	require.Equal(t, MsgActionQueued, msgs[0].Type)
	require.Equal(t, "click", msgs[0].Message)
}

func TestDecodeAcceptsOnlyClientTypes(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"type":"test_status"}`))
	require.Error(t, err)

	msg, err := Decode([]byte(`{"type":"approve","runId":"abc"}`))
	require.NoError(t, err)
	require.Equal(t, MsgApprove, msg.Type)
	require.Equal(t, "abc", msg.RunID)
}

func TestChannelCloseDetachesFromRun(t *testing.T) {
	t.Parallel()

	r := run.New("https://example.com", types.RunOptions{})
	ch := NewChannel(r)
	drain(t, ch)

	ch.Close()
	require.NoError(t, r.Cancel())
	require.Empty(t, drain(t, ch), "a closed channel must not receive run events")

	// A reconnect gets its own channel and the stream again.
	ch2 := NewChannel(r)
	msgs := drain(t, ch2)
	require.Len(t, msgs, 1)
	require.Equal(t, MsgConnected, msgs[0].Type)
	require.Equal(t, types.StatusCancelled, msgs[0].Status)
}

func TestChannelDropsOldestWhenClientStalls(t *testing.T) {
	t.Parallel()

	r := run.New("https://example.com", types.RunOptions{})
	ch := NewChannel(r)

	// Nobody reads; flood well past the buffer. push must not block.
	for i := 0; i < outboundBuffer*3; i++ {
		ch.Publish(run.Event{Type: run.EventAIStuck, RunID: r.ID(), Message: "stuck"})
	}
	msgs := drain(t, ch)
	require.Len(t, msgs, outboundBuffer)
}
