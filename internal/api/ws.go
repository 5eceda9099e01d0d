package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// WSMessage is the frame format of the live delivery feed.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DeliveriesWSHandler streams delivery records of the calling organization as
// they are recorded. Clients may send {"type":"ping"} and get a pong back.
func (s *Server) DeliveriesWSHandler(w http.ResponseWriter, r *http.Request) {
	org := orgID(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// gorilla connections support one concurrent writer
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}

	ch := s.Broker.Subscribe(org)
	defer s.Broker.Unsubscribe(org, ch)
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case rec, ok := <-ch:
				if !ok {
					return
				}
				payload, _ := json.Marshal(rec)
				if err := write(WSMessage{Type: "delivery", Payload: payload}); err != nil {
					return
				}
			case <-ticker.C:
				if err := write(WSMessage{Type: "ping"}); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	_ = write(WSMessage{Type: "connection_ack"})
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "ping":
			_ = write(WSMessage{Type: "pong"})
		case "pong":
		default:
			// ignore
		}
	}
	close(done)
}
