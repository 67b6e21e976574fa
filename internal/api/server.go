package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"mindpattern/internal/classifier"
	"mindpattern/internal/config"
	"mindpattern/internal/domain"
	"mindpattern/internal/redis"
	"mindpattern/internal/storage"
)

// StrategyHeader names the strategy that produced a prediction.
const StrategyHeader = "X-Prediction-Strategy"

type Resolver interface {
	Resolve(ctx context.Context, text string) (*classifier.Result, error)
	Validate(text string) error
	Status() classifier.Status
	Labels() []classifier.Label
}

type Analyzer interface {
	Analyze(ctx context.Context, sub domain.Submission) (*domain.Analysis, error)
}

type SessionStore interface {
	Create(ctx context.Context, id string) (*redis.Session, error)
	Touch(ctx context.Context, id string) (*redis.Session, error)
	Append(ctx context.Context, id string, a domain.Analysis) error
	History(ctx context.Context, id string, limit int) ([]domain.Analysis, error)
	Delete(ctx context.Context, id string) error
}

type Server struct {
	echo     *echo.Echo
	cfg      config.ServerConfig
	resolver Resolver
	analyzer Analyzer
	sessions SessionStore
	repo     storage.AnalysisRepository
	sse      *SSEBroker
}

type Option func(*Server)

// WithSessions enables the session endpoints.
func WithSessions(store SessionStore) Option {
	return func(s *Server) { s.sessions = store }
}

// WithRepository enables the analysis history endpoints.
func WithRepository(repo storage.AnalysisRepository) Option {
	return func(s *Server) { s.repo = repo }
}

// WithBroker streams analyses from b on /api/events.
func WithBroker(b *SSEBroker) Option {
	return func(s *Server) { s.sse = b }
}

func NewServer(cfg config.ServerConfig, resolver Resolver, analyzer Analyzer, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  cfg.AllowOrigins,
		ExposeHeaders: []string{StrategyHeader},
	}))

	s := &Server{
		echo:     e,
		cfg:      cfg,
		resolver: resolver,
		analyzer: analyzer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sse == nil {
		s.sse = NewSSEBroker()
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	var timeout []echo.MiddlewareFunc
	if s.cfg.RequestTimeout > 0 {
		timeout = append(timeout, middleware.ContextTimeout(s.cfg.RequestTimeout))
	}

	s.echo.GET("/health", s.health)
	s.echo.GET("/model-info", s.modelInfo)
	s.echo.POST("/predict", s.predict, timeout...)
	s.echo.POST("/api/analyze", s.analyze, timeout...)
	s.echo.GET("/api/events", s.events)

	if s.sessions != nil {
		s.echo.POST("/api/sessions", s.createSession)
		s.echo.POST("/api/sessions/:id/analyze", s.analyzeInSession, timeout...)
		s.echo.GET("/api/sessions/:id/history", s.sessionHistory)
		s.echo.DELETE("/api/sessions/:id", s.deleteSession)
	}

	if s.repo != nil {
		s.echo.GET("/api/analyses", s.getAnalyses)
		s.echo.GET("/api/analyses/:id", s.getAnalysis)
		s.echo.GET("/api/stats", s.stats)
	}
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Broadcast(msg string) {
	s.sse.Broadcast(msg)
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}
