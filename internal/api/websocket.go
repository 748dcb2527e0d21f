package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Relic999/aester-dex/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEnvelope tags each relayed event with its topic.
type wsEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// websocket relays signal, position, log and bar events to the dashboard.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	topics := []events.Event{
		events.EventSignal,
		events.EventPositionChange,
		events.EventLog,
		events.EventBarClose,
	}

	merged := make(chan wsEnvelope, 256)
	done := make(chan struct{})
	defer close(done)

	for _, topic := range topics {
		stream, unsub := s.Bus.Subscribe(topic, 64)
		defer unsub()
		go func(topic events.Event, stream <-chan any) {
			for msg := range stream {
				select {
				case merged <- wsEnvelope{Event: string(topic), Payload: msg}:
				case <-done:
					return
				}
			}
		}(topic, stream)
	}

	for env := range merged {
		if err := conn.WriteJSON(env); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
