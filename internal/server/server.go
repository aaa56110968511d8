// Package server exposes the assistant over HTTP with echo.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mohammad-safakhou/chimera/config"
	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/knowledge"
	"github.com/mohammad-safakhou/chimera/internal/pipeline"
	"github.com/mohammad-safakhou/chimera/internal/runtime"
	"github.com/mohammad-safakhou/chimera/internal/store"
)

// Deps are the collaborators behind the HTTP API. Store, Redis, Telemetry and
// JWTSecret are optional; the routes that need them answer 503 when absent.
type Deps struct {
	Config    *config.Config
	Pipeline  *pipeline.Pipeline
	Ingester  *knowledge.Ingester
	Registry  *capability.Registry
	Store     *store.Store
	Redis     *redis.Client
	Telemetry *runtime.Telemetry
	JWTSecret []byte
	Logger    *log.Logger
}

// New builds the echo instance with every route mounted.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = log.New(os.Stdout, "[HTTP] ", log.LstdFlags)
	}
	if d.Registry == nil {
		d.Registry = capability.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = errorHandler(d.Logger)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(d.Telemetry.MetricsHandler()))

	api := e.Group("/api")
	ch := &ChatHandler{Pipeline: d.Pipeline}
	ch.Register(api)

	ah := &AdminHandler{
		Ingester: d.Ingester,
		Registry: d.Registry,
		Store:    d.Store,
		Redis:    d.Redis,
		Audit:    auditStream(d.Config),
		Logger:   d.Logger,
	}
	ah.Register(api.Group("/admin"), d.JWTSecret)
	return e
}

func auditStream(cfg *config.Config) string {
	if cfg == nil || cfg.Audit.Stream == "" {
		return "chimera:audit"
	}
	return cfg.Audit.Stream
}

// errorHandler renders every failure as {"error": msg} and logs it.
func errorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]string{"error": msg})
		}
	}
}

// Run serves e on addr until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, e *echo.Echo, addr string) error {
	if addr == "" {
		addr = ":10001"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(e, "chimera.http"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
