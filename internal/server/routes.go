package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/agenthud/internal/hub"
	"github.com/zulandar/agenthud/internal/models"
)

const defaultSendBuffer = 64

// RouterOpts configures NewRouter.
type RouterOpts struct {
	Hub        *hub.Hub
	Journal    JournalReader
	Port       int
	SendBuffer int
	Logger     *slog.Logger
}

type routes struct {
	hub        *hub.Hub
	journal    JournalReader
	port       int
	sendBuffer int
	log        *slog.Logger
}

// NewRouter builds the gin engine serving the hub.
func NewRouter(opts RouterOpts) *gin.Engine {
	r := &routes{
		hub:        opts.Hub,
		journal:    opts.Journal,
		port:       opts.Port,
		sendBuffer: opts.SendBuffer,
		log:        opts.Logger,
	}
	if r.sendBuffer <= 0 {
		r.sendBuffer = defaultSendBuffer
	}
	if r.log == nil {
		r.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r.log = r.log.With("component", "server")

	router := gin.New()
	router.Use(gin.Recovery())

	// WebSocket clients connect at the root as well as /ws.
	router.GET("/", r.handleWS)
	router.GET("/ws", r.handleWS)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/port", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"port": r.port})
	})
	api.GET("/agents", r.handleAgents)
	api.GET("/requests", r.handleRequests)
	api.DELETE("/requests", r.handleClearRequests)
	api.POST("/requests/:id/response", r.handleRespond)
	api.GET("/content", r.handleContent)
	api.GET("/content/latest", r.handleLatestContent)
	api.GET("/events", r.handleEvents)
	api.GET("/journal/requests", r.handleJournalRequests)
	return router
}

func (r *routes) snapshot(c *gin.Context) (hub.Snapshot, bool) {
	snap, err := r.hub.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return hub.Snapshot{}, false
	}
	return snap, true
}

func (r *routes) handleAgents(c *gin.Context) {
	if snap, ok := r.snapshot(c); ok {
		c.JSON(http.StatusOK, snap.Agents)
	}
}

func (r *routes) handleRequests(c *gin.Context) {
	snap, ok := r.snapshot(c)
	if !ok {
		return
	}
	reqs := snap.Requests
	if status := c.Query("status"); status != "" {
		filtered := make([]models.HumanInputRequest, 0, len(reqs))
		for _, req := range reqs {
			if string(req.Status) == status || (status == "pending" && req.Pending()) ||
				(status == "completed" && req.Status == models.RequestCompleted) {
				filtered = append(filtered, req)
			}
		}
		reqs = filtered
	}
	c.JSON(http.StatusOK, reqs)
}

type respondBody struct {
	Response          string `json:"response" binding:"required"`
	AdditionalContext string `json:"additionalContext"`
}

func (r *routes) handleRespond(c *gin.Context) {
	var body respondBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	err := r.hub.Resolve(c.Request.Context(), id, body.Response, body.AdditionalContext)
	switch {
	case errors.Is(err, hub.ErrUnknownRequest):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown request " + id})
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"requestId": id, "status": string(models.RequestCompleted)})
	}
}

func (r *routes) handleClearRequests(c *gin.Context) {
	if err := r.hub.ClearRequests(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *routes) handleContent(c *gin.Context) {
	if snap, ok := r.snapshot(c); ok {
		c.JSON(http.StatusOK, snap.Content)
	}
}

func (r *routes) handleLatestContent(c *gin.Context) {
	snap, ok := r.snapshot(c)
	if !ok {
		return
	}
	if snap.Latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no content yet"})
		return
	}
	c.JSON(http.StatusOK, snap.Latest)
}

func (r *routes) handleJournalRequests(c *gin.Context) {
	if r.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	recs, err := r.journal.RecentRequests(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, recs)
}
