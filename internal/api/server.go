// Package api serves the paper engine to the dashboard: JSON endpoints
// under /api/paper, a websocket event stream and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/papertrader/paper"
)

type Config struct {
	Addr string
	// RateLimit is command requests per second; zero disables limiting.
	RateLimit      float64
	RateLimitBurst int
}

type Server struct {
	eng     *paper.Engine
	log     *zap.Logger
	limiter *rate.Limiter
	router  *gin.Engine
	addr    string
}

func New(eng *paper.Engine, cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		eng:    eng,
		log:    log.Named("api"),
		router: gin.New(),
		addr:   cfg.Addr,
	}
	if cfg.RateLimit > 0 {
		burst := max(cfg.RateLimitBurst, 1)
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(gin.Recovery(), s.requestLog())

	p := r.Group("/api/paper")
	p.GET("/status", s.status)
	p.GET("/summary", s.summary)
	p.GET("/trades", s.trades)
	p.GET("/performance", s.performance)
	p.GET("/ws", s.stream)

	cmd := p.Group("", s.rateLimit())
	cmd.POST("/exit", s.exit)
	cmd.POST("/partial-exit", s.partialExit)
	cmd.POST("/start", s.start)
	cmd.POST("/stop", s.stop)

	p.POST("/signals", s.postSignal)
	p.POST("/candles", s.postCandle)
	p.POST("/ticks", s.postTick)

	r.GET("/metrics", gin.WrapH(s.eng.Metrics().Handler()))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is done and then shuts down, giving
// in-flight requests a few seconds to finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard api listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.log.Warn("command rate limited", zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, result{Success: false, Message: "too many requests"})
			return
		}
		c.Next()
	}
}
