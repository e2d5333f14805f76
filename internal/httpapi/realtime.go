package httpapi

import (
	"log"
	"net/http"
	"time"

	"qms/ticket-queue/internal/hub"
	"qms/ticket-queue/internal/telemetry"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/igm/sockjs-go/sockjs"
)

const (
	transportWebSocket = "websocket"
	transportSockJS    = "sockjs"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket serves the live event stream. The connection starts on the
// general stream and may send {"category_id": N} at any time to rescope.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	client := h.attach(transportWebSocket)
	defer h.detach(client, transportWebSocket)
	go writePump(conn, client.Send)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.applySubscribe(client, msg)
	}
}

// writePump owns all writes to conn. It exits when send is closed or a
// write fails, closing the connection so the read loop ends too.
func writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) sockjsHandler() http.Handler {
	return sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		client := h.attach(transportSockJS)
		defer h.detach(client, transportSockJS)

		go func() {
			for msg := range client.Send {
				if err := session.Send(string(msg)); err != nil {
					return
				}
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			h.applySubscribe(client, []byte(msg))
		}
	})
}

func (h *Handler) attach(transport string) *hub.Client {
	client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, h.sendBuffer)}
	h.hub.Register(client)
	telemetry.LiveConnections.WithLabelValues(transport).Inc()
	return client
}

func (h *Handler) detach(client *hub.Client, transport string) {
	h.hub.Unregister(client)
	telemetry.LiveConnections.WithLabelValues(transport).Dec()
}

// applySubscribe rescopes client. Anything that is not a scoping message is
// ignored.
func (h *Handler) applySubscribe(client *hub.Client, msg []byte) {
	parsed, ok := hub.ParseSubscribe(msg)
	if !ok {
		return
	}
	h.hub.Subscribe(client, parsed.Scope())
}
