package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/chimera/internal/audit"
	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/knowledge"
	"github.com/mohammad-safakhou/chimera/internal/runtime"
	"github.com/mohammad-safakhou/chimera/internal/store"
)

// AdminHandler serves operator endpoints behind JWT auth.
type AdminHandler struct {
	Ingester *knowledge.Ingester
	Registry *capability.Registry
	Store    *store.Store
	Redis    *redis.Client
	Audit    string
	Logger   *log.Logger
}

// Register mounts the admin routes. Without a secret every route answers 503.
func (h *AdminHandler) Register(g *echo.Group, secret []byte) {
	if len(secret) == 0 {
		g.Any("/*", func(echo.Context) error {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "admin api disabled: no jwt secret configured")
		})
		return
	}
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("/capabilities", h.capabilities)
	g.GET("/knowledge", h.knowledgeStatus)
	g.POST("/knowledge", h.addKnowledge, runtime.RequireScopes(runtime.ScopeKnowledge))
	g.POST("/knowledge/search", h.searchKnowledge)
	g.GET("/leads", h.leads)
	g.GET("/analytics/events", h.eventCounts)
	g.GET("/audit", h.auditTail, runtime.RequireScopes(runtime.ScopeAudit))
}

func (h *AdminHandler) capabilities(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"checksum":  h.Registry.Checksum(),
		"contracts": h.Registry.Contracts(),
	})
}

func (h *AdminHandler) knowledgeStatus(c echo.Context) error {
	if h.Ingester == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "knowledge base not loaded")
	}
	idx := h.Ingester.Index()
	return c.JSON(http.StatusOK, map[string]any{"chunks": idx.Count(), "sources": idx.Sources()})
}

type knowledgeRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

func (h *AdminHandler) addKnowledge(c echo.Context) error {
	if h.Ingester == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "knowledge base not loaded")
	}
	var req knowledgeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	ctx := c.Request().Context()
	var (
		n   int
		err error
	)
	switch {
	case strings.TrimSpace(req.URL) != "":
		n, err = h.Ingester.AddURL(ctx, req.URL)
	case strings.TrimSpace(req.Text) != "":
		n, err = h.Ingester.AddText(ctx, req.Text, req.Source)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "text or url required")
	}
	if err != nil {
		if errors.Is(err, knowledge.ErrDisallowed) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if sub, ok := runtime.SubjectFromContext(ctx); ok {
		h.Logger.Printf("%s added %d chunks", sub, n)
	}
	return c.JSON(http.StatusCreated, map[string]int{"added": n, "total": h.Ingester.Index().Count()})
}

func (h *AdminHandler) searchKnowledge(c echo.Context) error {
	if h.Ingester == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "knowledge base not loaded")
	}
	var req struct {
		Query string `json:"query"`
		N     int    `json:"n"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	hits, err := h.Ingester.Index().Hits(c.Request().Context(), req.Query, req.N)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if hits == nil {
		hits = []knowledge.Hit{}
	}
	return c.JSON(http.StatusOK, hits)
}

func (h *AdminHandler) leads(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "persistence not configured")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.Store.ListLeads(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.LeadRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *AdminHandler) eventCounts(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "persistence not configured")
	}
	counts, err := h.Store.EventCounts(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, counts)
}

func (h *AdminHandler) auditTail(c echo.Context) error {
	if h.Redis == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "audit stream not configured")
	}
	n, _ := strconv.ParseInt(c.QueryParam("n"), 10, 64)
	msgs, err := audit.Tail(c.Request().Context(), h.Redis, h.Audit, n)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]any, len(msgs))
	for i, m := range msgs {
		out[i] = map[string]any{"id": m.ID, "envelope": m.Envelope}
	}
	return c.JSON(http.StatusOK, out)
}
