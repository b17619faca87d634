package surface

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader accepts connections from any origin; npcworld's event stream is
// a read-only diagnostic feed, not a credentialed API, so it does not gate
// on Origin the way a browser-facing app would.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const streamPingInterval = 30 * time.Second

// handleEventStream upgrades to a websocket and relays every event whose
// topic matches the caller's "pattern" query parameter (default "/#", i.e.
// everything) until the connection closes (component H, §6 "Scaling").
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "/#"
	}
	events, unsubscribe, err := s.d.Bus.Subscribe(pattern, 32)
	if err != nil {
		writeError(w, err)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.d.Log.Warnw("surface: websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(streamFrame{Topic: e.Topic, Payload: e.Payload}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

type streamFrame struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}
