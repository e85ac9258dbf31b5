package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zulandar/agenthud/internal/hub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 20 // image payloads may be inline data URLs
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Local dashboards are served from file:// and tauri:// origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (r *routes) handleWS(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.JSON(http.StatusOK, gin.H{"service": "agent-hud", "websocket": "/ws"})
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	q := hub.NewQueue(r.sendBuffer)
	conn, err := r.hub.Attach(c.Request.Context(), q)
	if err != nil {
		ws.Close()
		return
	}
	r.log.Debug("websocket attached", "conn_id", conn.ID(), "remote", ws.RemoteAddr().String())

	go writePump(ws, q)
	r.readPump(ws, conn)
	r.hub.Release(conn)
	q.Close()
}

// readPump forwards inbound frames to the hub until the socket fails.
func (r *routes) readPump(ws *websocket.Conn, conn *hub.Conn) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.log.Debug("websocket read", "conn_id", conn.ID(), "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		r.hub.Deliver(conn, raw)
	}
}

// writePump drains the connection's send queue and keeps it alive with
// pings. It owns all writes to ws.
func writePump(ws *websocket.Conn, q *hub.Queue) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()
	for {
		select {
		case <-q.Ready():
			frames, open := q.Drain()
			for _, frame := range frames {
				_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			}
			if !open {
				_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
