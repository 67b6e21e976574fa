package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"mindpattern/internal/classifier"
	"mindpattern/internal/domain"
	"mindpattern/internal/model"
)

type textRequest struct {
	Text string `json:"text"`
}

// prediction is the response contract shared by every prediction endpoint.
type prediction struct {
	TopPattern       string         `json:"topPattern"`
	ConfidenceScores []domain.Score `json:"confidenceScores"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ok":     true,
		"labels": s.resolver.Labels(),
	})
}

type modelInfo struct {
	classifier.Status
	HybridLoaded   bool               `json:"hybrid_model_loaded"`
	StandardLoaded bool               `json:"standard_model_loaded"`
	Labels         []classifier.Label `json:"available_labels"`
}

func (s *Server) modelInfo(c echo.Context) error {
	st := s.resolver.Status()
	info := modelInfo{Status: st, Labels: s.resolver.Labels()}

	for _, ss := range st.Strategies {
		switch ss.Name {
		case model.HybridName:
			info.HybridLoaded = ss.Loaded
		case model.SingleName:
			info.StandardLoaded = ss.Loaded
		}
	}

	return c.JSON(http.StatusOK, info)
}

// predict answers from the resolver alone; nothing is recorded.
func (s *Server) predict(c echo.Context) error {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	result, err := s.resolver.Resolve(c.Request().Context(), req.Text)
	if err != nil {
		return predictionError(c, err)
	}

	log.Printf("[PREDICT] %s via %s", result.TopPattern, result.Strategy)
	c.Response().Header().Set(StrategyHeader, result.Strategy)
	return c.JSON(http.StatusOK, result)
}

// analyze is predict plus history, live events and alerts.
func (s *Server) analyze(c echo.Context) error {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	a, err := s.record(c, domain.Submission{Text: req.Text, Source: domain.SourceAPI})
	if a == nil {
		return predictionError(c, err)
	}

	c.Response().Header().Set(StrategyHeader, a.Strategy)
	return c.JSON(http.StatusOK, prediction{TopPattern: a.TopPattern, ConfidenceScores: a.ConfidenceScores})
}

// record runs sub through the analyzer. A failure to persist is logged but
// still yields the analysis.
func (s *Server) record(c echo.Context, sub domain.Submission) (*domain.Analysis, error) {
	sub.ID = uuid.NewString()
	sub.CreatedAt = time.Now().UTC()

	a, err := s.analyzer.Analyze(c.Request().Context(), sub)
	if a != nil && err != nil {
		log.Printf("[ERROR] analyze %s: %v", sub.ID, err)
	}
	return a, err
}

func predictionError(c echo.Context, err error) error {
	var invalid *classifier.ErrValidation
	if errors.As(err, &invalid) {
		return errorJSON(c, http.StatusBadRequest, "Text is too short")
	}

	log.Printf("[ERROR] predict: %v", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error":  "Inference error",
		"detail": err.Error(),
	})
}
