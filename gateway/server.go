package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Server wires the Gateway onto a gin.Engine, implementing §6's HTTP
// intake/polling/streaming/result/submit routes.
type Server struct {
	gw     *Gateway
	engine *gin.Engine
}

// NewServer builds a Server with its routes already registered.
func NewServer(gw *Gateway) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{gw: gw, engine: engine}
	engine.POST("/api/query", s.handleQuery)
	engine.GET("/api/get_status/:id", s.handleGetStatus)
	engine.GET("/api/stream_result/:id", s.handleStreamResult)
	engine.POST("/api/result", s.handleResult)
	engine.POST("/submit", s.handleSubmit)
	return s
}

// Handler returns the underlying http.Handler for use with
// http.ListenAndServe.
func (s *Server) Handler() http.Handler { return s.engine }

type queryRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := uuid.NewString()
	if err := s.gw.Submit(c.Request.Context(), requestID, req.Text); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"request_id": requestID, "status": StatusPending})
}

type submitRequest struct {
	Text      string `json:"text" binding:"required"`
	RequestID string `json:"request_id" binding:"required"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.gw.Submit(c.Request.Context(), req.RequestID, req.Text); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (s *Server) handleGetStatus(c *gin.Context) {
	requestID := c.Param("id")
	status, text, ok := s.gw.GetStatus(requestID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown request_id"})
		return
	}

	body := gin.H{"status": status}
	if status != StatusPending {
		body["text"] = text
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleStreamResult(c *gin.Context) {
	requestID := c.Param("id")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	ch, cancel, ok := s.gw.Subscribe(requestID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown request_id"})
		return
	}
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	status, text, known := s.gw.GetStatus(requestID)
	if known && status != StatusPending {
		writeSSEEvent(c.Writer, flusher, sseEvent{Text: text, Status: status})
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-ch:
			if !open {
				return
			}
			writeSSEEvent(c.Writer, flusher, event)
			if event.Status != StatusPending {
				return
			}
		}
	}
}

type resultRequest struct {
	Text      string `json:"text" binding:"required"`
	RequestID string `json:"request_id" binding:"required"`
	Type      int    `json:"type"`
}

func (s *Server) handleResult(c *gin.Context) {
	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.gw.HandleResult(req.RequestID, req.Text, req.Type)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
