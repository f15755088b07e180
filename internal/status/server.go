// Package status exposes a local HTTP view of a running primary: health,
// role snapshot, recently received argument batches, and metrics.
package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/soloctl/internal/observability"
)

const defaultRecentLimit = 20

// maxRecentBatches bounds server memory across a long-lived primary.
const maxRecentBatches = 256

// Config configures the status endpoint.
type Config struct {
	AppName string
	Addr    string
}

// receivedBatch is one retained argument batch with its arrival time.
type receivedBatch struct {
	ReceivedAt time.Time `json:"received_at"`
	Arguments  []string  `json:"arguments"`
}

// Server serves the primary's status routes. It records batches itself by
// subscribing to the coordinator's argument stream via Observe.
type Server struct {
	cfg     Config
	engine  *gin.Engine
	started time.Time

	mu      sync.Mutex
	batches []receivedBatch
	total   uint64
}

// New constructs the status server and its routes.
func New(cfg Config, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(observability.RequestLogger(logger))
	engine.Use(observability.RequestMetricsMiddleware(cfg.AppName))

	s := &Server{
		cfg:     cfg,
		engine:  engine,
		started: time.Now(),
		batches: make([]receivedBatch, 0),
	}
	s.registerRoutes()
	return s
}

// Observe records one received argument batch; wire it to the coordinator's
// argument stream.
func (s *Server) Observe(batch []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.batches = append(s.batches, receivedBatch{ReceivedAt: time.Now(), Arguments: batch})
	if len(s.batches) > maxRecentBatches {
		s.batches = s.batches[len(s.batches)-maxRecentBatches:]
	}
}

// RecentBatches returns a bounded, newest-last view of received batches.
func (s *Server) RecentBatches(limit int) []receivedBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if len(s.batches) <= limit {
		out := make([]receivedBatch, len(s.batches))
		copy(out, s.batches)
		return out
	}
	out := make([]receivedBatch, limit)
	copy(out, s.batches[len(s.batches)-limit:])
	return out
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"app":    s.cfg.AppName,
			"uptime": time.Since(s.started).String(),
		})
	})

	s.engine.GET("/status", func(c *gin.Context) {
		s.mu.Lock()
		total := s.total
		s.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{
			"app":              s.cfg.AppName,
			"role":             "primary",
			"started_at":       s.started,
			"batches_received": total,
		})
	})

	s.engine.GET("/batches/recent", func(c *gin.Context) {
		limit := defaultRecentLimit
		if raw := c.Query("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				limit = v
			}
		}
		c.JSON(http.StatusOK, gin.H{"batches": s.RecentBatches(limit)})
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return <-errCh
	}
}
