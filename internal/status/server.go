// Package status is the harness-facing HTTP front end over a running
// broker: health, handshake state, queue inspection and injection.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/simctl/internal/broker"
	"github.com/danmuck/simctl/internal/observability"
	"github.com/danmuck/simctl/internal/queue"
	"github.com/danmuck/simctl/internal/wire"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	ID      string
	Addr    string
	Started time.Time

	broker *broker.Broker
	router *gin.Engine
	logger zerolog.Logger
}

func New(id, addr string, b *broker.Broker, corsOrigins []string, logger zerolog.Logger) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		ID:      id,
		Addr:    addr,
		Started: time.Now(),
		broker:  b,
		router:  r,
		logger:  logger,
	}
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Started).String(),
			"node":    s.ID,
			"version": "0.0.1",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.broker.Snapshot())
	})

	s.router.GET("/queues/:name", func(c *gin.Context) {
		q, ok := s.queueByName(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue"})
			return
		}
		msgs := q.Snapshot()
		urls := make([]string, 0, len(msgs))
		for _, m := range msgs {
			text, err := wire.MessageToURL(m)
			if err != nil {
				// Keep one entry per queued message so depth and the
				// listing never disagree.
				s.logger.Warn().Err(err).Str("queue", c.Param("name")).Msg("queued message not encodable")
				text = "error: " + err.Error()
			}
			urls = append(urls, text)
		}
		c.JSON(http.StatusOK, gin.H{
			"name":     c.Param("name"),
			"depth":    len(msgs),
			"messages": urls,
		})
	})

	s.router.POST("/queues/:name", func(c *gin.Context) {
		q, ok := s.queueByName(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue"})
			return
		}
		var body struct {
			Segments [][]string `json:"segments"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		segs := make([]wire.Segment, 0, len(body.Segments))
		for _, fields := range body.Segments {
			segs = append(segs, wire.NewSegment(fields...))
		}
		if err := q.Push(queue.SegmentsElement(segs)); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, queue.ErrInvalidQueueElement) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"depth": q.Len()})
	})

	s.router.POST("/queues/:name/clear", func(c *gin.Context) {
		q, ok := s.queueByName(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue"})
			return
		}
		q.Clear()
		c.JSON(http.StatusOK, gin.H{"depth": 0})
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.router,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) queueByName(name string) (*queue.MessageQueue, bool) {
	switch name {
	case "incoming":
		return s.broker.Incoming, true
	case "outgoing":
		return s.broker.Outgoing, true
	default:
		return nil, false
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
