package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func queryInt(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func (s *Server) getAnalyses(c echo.Context) error {
	limit := min(queryInt(c, "limit", defaultPageSize), maxPageSize)
	if limit == 0 {
		limit = defaultPageSize
	}
	offset := queryInt(c, "offset", 0)

	analyses, err := s.repo.FindAll(c.Request().Context(), limit, offset)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, analyses)
}

func (s *Server) getAnalysis(c echo.Context) error {
	a, err := s.repo.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if a == nil {
		return errorJSON(c, http.StatusNotFound, "not found")
	}
	return c.JSON(http.StatusOK, a)
}

// stats counts analyses over the last ?days, or all of them.
func (s *Server) stats(c echo.Context) error {
	var since time.Time
	if days := queryInt(c, "days", 0); days > 0 {
		since = time.Now().UTC().AddDate(0, 0, -days)
	}

	st, err := s.repo.Stats(c.Request().Context(), since)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}
