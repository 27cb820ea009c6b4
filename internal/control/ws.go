package control

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/probelab/webpilot/internal/run"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The channel carries no credentials and the server is a local tool;
	// cross-origin dashboards are expected.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades the request and bridges the socket to a run's control
// channel. It returns when the client disconnects; the run keeps going,
// a dropped observer never terminates a test.
func ServeWS(w http.ResponseWriter, req *http.Request, r *run.Run, logf func(string, ...any)) error {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch := NewChannel(r)
	defer ch.Close()
	if logf != nil {
		ch.Logf = logf
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case msg := <-ch.Outbound():
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	// Reads have no deadline: a silent client that sends no pings stays
	// connected, and a missed ping never fails the run.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		ch.Handle(raw)
	}
	close(stop)
	<-done
	return nil
}
