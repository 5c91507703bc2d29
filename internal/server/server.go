// Package server exposes the deck pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ppiankov/deckcheck/internal/llm"
	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/pipeline"
	"github.com/ppiankov/deckcheck/internal/slides"
)

// Runner is the pipeline surface the HTTP API needs
type Runner interface {
	ProcessSlide(ctx context.Context, in model.SlideInput) (model.Slide, error)
	ProcessDeck(ctx context.Context, inputs []model.SlideInput) ([]model.Slide, error)
	SynthesizeQuestions(ctx context.Context, slides []model.Slide) ([]string, error)
	Backends() []string
}

// Options configures the HTTP API
type Options struct {
	// ConfigErr, when set, is reported by every API route as a 500; it is
	// used when the pipeline could not be built (e.g. missing API key)
	ConfigErr      error
	AllowedOrigins []string
	MaxUploadBytes int64
	RetryAfter     time.Duration // Advertised when a rate limit carries no hint
	Logger         *zap.Logger
}

// Server is the HTTP API
type Server struct {
	runner Runner
	opts   Options
	router *gin.Engine
	logger *zap.Logger
}

// New builds the router. runner may be nil only when opts.ConfigErr is set.
func New(runner Runner, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 60 * time.Second
	}
	if runner == nil && opts.ConfigErr == nil {
		opts.ConfigErr = &llm.ConfigError{Setting: "llm.provider", Reason: "no pipeline configured"}
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(Logger(opts.Logger))
	router.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	s := &Server{runner: runner, opts: opts, router: router, logger: opts.Logger}
	s.registerRoutes()
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Retry-After", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	api.GET("/health", s.health)

	guarded := api.Group("", s.requireRunner)
	guarded.POST("/verify-slide", s.verifySlide)
	guarded.POST("/verify", s.verifyDeck)
	guarded.POST("/generate-questions", s.generateQuestions)
	api.POST("/slides", s.extractSlides)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requireRunner(c *gin.Context) {
	if s.opts.ConfigErr != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": s.opts.ConfigErr.Error()})
		return
	}
	c.Next()
}

// setRetryAfter advertises the backend's hint, or the default wait, in whole seconds
func (s *Server) setRetryAfter(c *gin.Context, err error) {
	wait, ok := llm.RetryAfter(err)
	if !ok {
		wait = s.opts.RetryAfter
	}
	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
}

// internalError reports a failure that is not the client's fault
func (s *Server) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	msg := "Internal server error"
	if llm.IsConfigError(err) {
		msg = err.Error()
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// inputMessage renders a rejected input for API clients
func inputMessage(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrInvalidSlideNumber):
		return "Slide number is required"
	case errors.Is(err, pipeline.ErrEmptySlide):
		return "Either image or text is required"
	default:
		return err.Error()
	}
}

// extractSlides turns an uploaded PDF into slide inputs
func (s *Server) extractSlides(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A PDF file is required in the \"file\" field"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.internalError(c, err)
		return
	}
	defer func() { _ = f.Close() }()

	inputs, err := slides.FromReader(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read PDF: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slides": inputs})
}
