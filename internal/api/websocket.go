package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridworks-sim/gridworks/internal/events"
	"github.com/gridworks-sim/gridworks/internal/factory"
)

const (
	// Number of recent events to send on connection
	recentEventsCount = 50

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for now (no auth requirement)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var wsClients int64

var wsClientSeq uint64

// WSClientCount returns the number of connected WebSocket clients.
func WSClientCount() int {
	return int(atomic.LoadInt64(&wsClients))
}

// dragMessage is the inbound message envelope. Clients drive conveyor
// drags over the same socket that streams events back.
type dragMessage struct {
	Type     string        `json:"type"`
	Origin   int           `json:"origin,omitempty"`
	Delta    *factory.Vec2 `json:"delta,omitempty"`
	Terminal *int          `json:"terminal,omitempty"`
}

// dragReply is sent back to the client after each drag message.
type dragReply struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Cells int    `json:"cells,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleDragMessage dispatches one inbound drag message for a client.
func handleDragMessage(clientID string, raw []byte) dragReply {
	var msg dragMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return dragReply{Type: "drag.error", Error: "invalid JSON"}
	}

	if engine == nil {
		return dragReply{Type: "drag.error", Error: "engine not ready"}
	}

	switch msg.Type {
	case "drag.start":
		if err := engine.DragStart(clientID, factory.MachineID(msg.Origin)); err != nil {
			return dragReply{Type: "drag.start", Error: err.Error()}
		}
		return dragReply{Type: "drag.start", OK: true}

	case "drag.update":
		if msg.Delta == nil {
			return dragReply{Type: "drag.update", Error: "delta required"}
		}
		n, err := engine.DragUpdate(clientID, *msg.Delta)
		if err != nil {
			return dragReply{Type: "drag.update", Error: err.Error()}
		}
		return dragReply{Type: "drag.update", OK: true, Cells: n}

	case "drag.end":
		var terminal factory.MachineID
		hasTerminal := msg.Terminal != nil
		if hasTerminal {
			terminal = factory.MachineID(*msg.Terminal)
		}
		if err := engine.DragEnd(clientID, terminal, hasTerminal); err != nil {
			return dragReply{Type: "drag.end", Error: err.Error()}
		}
		return dragReply{Type: "drag.end", OK: true}

	case "drag.cancel":
		engine.DragCancel(clientID)
		return dragReply{Type: "drag.cancel", OK: true}

	default:
		return dragReply{Type: "drag.error", Error: "unknown message type"}
	}
}

// wsEventsHandler handles WebSocket connections: live event streaming
// out, drag gesture messages in.
func wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	atomic.AddInt64(&wsClients, 1)
	defer atomic.AddInt64(&wsClients, -1)

	clientID := fmt.Sprintf("ws-%d", atomic.AddUint64(&wsClientSeq, 1))

	// Subscribe to events
	sub := events.Subscribe()

	// Send recent events immediately
	recent := events.RecentEvents(recentEventsCount)
	for _, e := range recent {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("ws write recent event failed: %v", err)
			events.Unsubscribe(sub)
			conn.Close()
			return
		}
	}

	done := make(chan struct{})
	replies := make(chan dragReply, 8)

	// Reader goroutine - handles pongs, close messages, and drag input
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if len(raw) == 0 {
				continue
			}
			reply := handleDragMessage(clientID, raw)
			select {
			case replies <- reply:
			default:
				// Writer is wedged; the drop surfaces as a missing ack.
			}
		}
	}()

	// Writer goroutine - sends events, drag replies, and pings
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	closeConn := func() {
		if engine != nil {
			engine.DragCancel(clientID)
		}
		events.Unsubscribe(sub)
		conn.Close()
	}

	for {
		select {
		case <-done:
			// Reader detected close
			closeConn()
			return

		case reply := <-replies:
			data, err := json.Marshal(reply)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				closeConn()
				return
			}

		case e, ok := <-sub:
			if !ok {
				// Subscriber channel closed
				conn.Close()
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("ws write event failed: %v", err)
				closeConn()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				closeConn()
				return
			}
		}
	}
}
