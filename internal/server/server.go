// Package server exposes the hub over HTTP: the WebSocket endpoint, a small
// REST API and a Server-Sent Events observer stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/agenthud/internal/hub"
	"github.com/zulandar/agenthud/internal/models"
)

// ErrNoFreePort is returned when no port in the range can be bound.
var ErrNoFreePort = errors.New("server: no free port in range")

// JournalReader serves the journal endpoints. It is optional.
type JournalReader interface {
	RecentRequests(ctx context.Context, limit int) ([]models.RequestRecord, error)
}

// StartOpts holds configuration for the hub server.
type StartOpts struct {
	Hub        *hub.Hub
	Journal    JournalReader
	Host       string
	MinPort    int
	MaxPort    int
	SendBuffer int
	Logger     *slog.Logger
	Out        io.Writer
}

// Listen binds the first free port in min..max on host.
func Listen(host string, min, max int) (net.Listener, int, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	for port := min; port <= max; port++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, fmt.Errorf("%w %d..%d on %s", ErrNoFreePort, min, max, host)
}

// Start binds a port, serves until ctx is cancelled, then shuts down
// gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Hub == nil {
		return fmt.Errorf("server: hub is required")
	}
	if opts.MinPort <= 0 {
		opts.MinPort = 8080
	}
	if opts.MaxPort < opts.MinPort {
		opts.MaxPort = opts.MinPort
	}

	ln, port, err := Listen(opts.Host, opts.MinPort, opts.MaxPort)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(RouterOpts{
		Hub:        opts.Hub,
		Journal:    opts.Journal,
		Port:       port,
		SendBuffer: opts.SendBuffer,
		Logger:     opts.Logger,
	})
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Agent HUD hub listening on ws://%s/ws\n", ln.Addr())
	}

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
