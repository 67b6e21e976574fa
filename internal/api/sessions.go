package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"mindpattern/internal/domain"
	"mindpattern/internal/redis"
)

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) createSession(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	session, err := s.sessions.Create(c.Request().Context(), req.SessionID)
	if err != nil {
		log.Printf("[ERROR] create session: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, map[string]string{"sessionId": session.ID})
}

func (s *Server) analyzeInSession(c echo.Context) error {
	id := c.Param("id")

	var req textRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := s.resolver.Validate(req.Text); err != nil {
		return predictionError(c, err)
	}

	ctx := c.Request().Context()
	if _, err := s.sessions.Touch(ctx, id); err != nil {
		return sessionError(c, err)
	}

	a, err := s.record(c, domain.Submission{SessionID: id, Text: req.Text, Source: domain.SourceSession})
	if a == nil {
		return predictionError(c, err)
	}

	if err := s.sessions.Append(ctx, id, *a); err != nil {
		return sessionError(c, err)
	}

	c.Response().Header().Set(StrategyHeader, a.Strategy)
	return c.JSON(http.StatusOK, map[string]any{
		"analysis":  a,
		"sessionId": id,
	})
}

func (s *Server) sessionHistory(c echo.Context) error {
	analyses, err := s.sessions.History(c.Request().Context(), c.Param("id"), 0)
	if err != nil {
		return sessionError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"analyses": analyses})
}

func (s *Server) deleteSession(c echo.Context) error {
	err := s.sessions.Delete(c.Request().Context(), c.Param("id"))
	if err != nil && !errors.Is(err, redis.ErrNotFound) {
		log.Printf("[ERROR] delete session: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Session cleared"})
}

func sessionError(c echo.Context, err error) error {
	if errors.Is(err, redis.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "Session not found")
	}
	log.Printf("[ERROR] session: %v", err)
	return errorJSON(c, http.StatusInternalServerError, "Server error")
}
