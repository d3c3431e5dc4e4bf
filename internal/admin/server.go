// Package admin serves a daemon's read-only HTTP status surface.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Connicpu/boop/internal/auth"
	"github.com/Connicpu/boop/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var ErrListen = errors.New("admin: listen failed")

const shutdownTimeout = 5 * time.Second

// Config wires the server to the daemon it reports on.
type Config struct {
	Node        string
	Addr        string
	Version     string
	CorsOrigins []string
	Status      func() any
	Ready       func() bool

	// Token, when set, is required as a bearer token on /status and /metrics.
	Token string
}

type Server struct {
	cfg      Config
	router   *gin.Engine
	appeared time.Time

	mu sync.Mutex
	ln net.Listener
}

func New(cfg Config) *Server {
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	observability.RegisterMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AdminRequests(cfg.Node, log.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{cfg: cfg, router: r, appeared: time.Now()}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.Node,
			"version": s.cfg.Version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.cfg.Ready == nil || s.cfg.Ready()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.Node,
		})
	})

	private := s.router.Group("")
	if s.cfg.Token != "" {
		private.Use(auth.Middleware(auth.StaticToken(s.cfg.Token)))
	}

	private.GET("/status", func(c *gin.Context) {
		if s.cfg.Status == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no status source"})
			return
		}
		c.JSON(http.StatusOK, s.cfg.Status())
	})

	private.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Listen binds the configured address. Serve calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrListen, s.cfg.Addr, err)
	}
	s.ln = ln
	return nil
}

// Addr is the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve handles requests until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Str("node", s.cfg.Node).Msg("admin: shutdown")
		}
	})
	defer stop()

	log.Info().Str("node", s.cfg.Node).Stringer("addr", ln.Addr()).Msg("admin: serving")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
