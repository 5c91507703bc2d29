package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ppiankov/deckcheck/internal/llm"
	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/pipeline"
)

const (
	msgDeckRateLimit      = "Rate limit exceeded. Please wait a moment and try again, or process fewer slides at once."
	msgQuestionsRateLimit = "Rate limit exceeded. Please wait a moment and try again."
)

type verifyDeckRequest struct {
	Slides []model.SlideInput `json:"slides"`
}

type questionsRequest struct {
	Slides []model.Slide `json:"slides"`
}

// GET /api/health
func (s *Server) health(c *gin.Context) {
	if s.opts.ConfigErr != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "misconfigured", "error": s.opts.ConfigErr.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "verification_backends": s.runner.Backends()})
}

// POST /api/verify-slide
func (s *Server) verifySlide(c *gin.Context) {
	var in model.SlideInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	slide, err := s.runner.ProcessSlide(c.Request.Context(), in)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, slide)
	case pipeline.IsInputError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": inputMessage(err)})
	case llm.IsRateLimit(err):
		s.logger.Warn("slide rate limited",
			zap.Int("slide", in.SlideNumber),
			zap.Int("facts", len(slide.Facts)))
		s.setRetryAfter(c, err)
		c.JSON(http.StatusTooManyRequests, slide)
	default:
		s.internalError(c, err)
	}
}

// POST /api/verify
func (s *Server) verifyDeck(c *gin.Context) {
	var req verifyDeckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.Slides) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No slides provided"})
		return
	}

	done, err := s.runner.ProcessDeck(c.Request.Context(), req.Slides)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"slides": done})
	case pipeline.IsInputError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": inputMessage(err)})
	case llm.IsRateLimit(err):
		s.setRetryAfter(c, err)
		c.JSON(http.StatusTooManyRequests, gin.H{"error": msgDeckRateLimit, "slides": done})
	default:
		s.internalError(c, err)
	}
}

// POST /api/generate-questions
func (s *Server) generateQuestions(c *gin.Context) {
	var req questionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.Slides) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Slides are required"})
		return
	}

	questions, err := s.runner.SynthesizeQuestions(c.Request.Context(), req.Slides)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"questions": questions})
	case llm.IsRateLimit(err):
		s.setRetryAfter(c, err)
		c.JSON(http.StatusTooManyRequests, gin.H{"error": msgQuestionsRateLimit})
	default:
		s.internalError(c, err)
	}
}
