package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meridianlabs/ioa/crawler"
	"github.com/meridianlabs/ioa/ledger"
)

// CrawlAdmin wires the crawler admin routes (§6 "Crawler admin") onto
// a Server: seeding, queue draining, and queue-length reporting.
type CrawlAdmin struct {
	crawler *crawler.Crawler
	chunks  *ledger.ChunkStore
}

// NewCrawlAdmin wires crawl admin routes against one Crawler instance
// and the ChunkStore backing its queue.
func NewCrawlAdmin(c *crawler.Crawler, chunks *ledger.ChunkStore) *CrawlAdmin {
	return &CrawlAdmin{crawler: c, chunks: chunks}
}

// Register mounts the admin routes on s's engine.
func (a *CrawlAdmin) Register(s *Server) {
	s.engine.POST("/crawl", a.handleCrawl)
	s.engine.POST("/clear-queue", a.handleClearQueue)
	s.engine.GET("/queue-size", a.handleQueueSize)
}

type crawlRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

func (a *CrawlAdmin) handleCrawl(c *gin.Context) {
	var req crawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.crawler.Seed(c.Request.Context(), req.URLs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted", "count": len(req.URLs)})
}

func (a *CrawlAdmin) handleClearQueue(c *gin.Context) {
	drained, err := a.chunks.ClearQueue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "drained": drained})
}

func (a *CrawlAdmin) handleQueueSize(c *gin.Context) {
	n, err := a.chunks.QueueLen(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue_size": n})
}
