package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/chimera/internal/llm"
	"github.com/mohammad-safakhou/chimera/internal/pipeline"
	"github.com/mohammad-safakhou/chimera/internal/session"
)

// ChatHandler serves the public chat and session endpoints.
type ChatHandler struct {
	Pipeline *pipeline.Pipeline
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
	g.GET("/stats", h.stats)
	g.GET("/sessions/:id", h.session)
	g.DELETE("/sessions/:id", h.clear)
	g.GET("/sessions/:id/summary", h.summary)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	reply, err := h.Pipeline.HandleMessage(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyMessage) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, reply)
}

func (h *ChatHandler) stats(c echo.Context) error {
	s, err := h.Pipeline.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}

// session returns the stored state with contact details masked.
func (h *ChatHandler) session(c echo.Context) error {
	st, err := h.Pipeline.Session(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, st.Mask())
}

func (h *ChatHandler) clear(c echo.Context) error {
	ok, err := h.Pipeline.Clear(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"cleared": ok})
}

func (h *ChatHandler) summary(c echo.Context) error {
	out, err := h.Pipeline.Summary(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, llm.ErrDisabled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "summaries need a configured language model")
	case err != nil:
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"session_id": c.Param("id"), "summary": out})
}

func sessionError(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
