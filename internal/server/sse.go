package server

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/agenthud/internal/hub"
	"github.com/zulandar/agenthud/internal/protocol"
)

const sseHeartbeat = 15 * time.Second

var registerObserverFrame = []byte(`{"type":"` + protocol.TypeRegisterObserver + `"}`)

// handleEvents streams hub events as SSE. The stream is attached to the hub
// as an ordinary observer, so it gets the same ack, replay and live events.
func (r *routes) handleEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	q := hub.NewQueue(r.sendBuffer)
	conn, err := r.hub.Attach(ctx, q)
	if err != nil {
		return
	}
	defer func() {
		r.hub.Release(conn)
		q.Close()
	}()
	r.hub.Deliver(conn, registerObserverFrame)

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.Ready():
			frames, open := q.Drain()
			for _, frame := range frames {
				f, err := protocol.ParseFrame(frame)
				if err != nil {
					continue
				}
				writeSSE(c.Writer, f.Type, frame)
			}
			c.Writer.Flush()
			if !open {
				return
			}
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", []byte(fmt.Sprintf(`{"timestamp":%q}`, time.Now().UTC().Format(time.RFC3339))))
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single SSE event whose data is already JSON.
func writeSSE(w io.Writer, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
