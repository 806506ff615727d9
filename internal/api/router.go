// Package api assembles the HTTP surface: Echo instance, middleware, and
// Huma-registered routes.
package api

import (
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calebmorten/pwc-deal-tracker/internal/api/handlers"
	"github.com/calebmorten/pwc-deal-tracker/internal/api/middleware"
	"github.com/calebmorten/pwc-deal-tracker/internal/engine"
	"github.com/calebmorten/pwc-deal-tracker/internal/store"
)

// Deps carries everything the router needs.
type Deps struct {
	Store  store.Store
	Engine *engine.Engine
	Logger *slog.Logger
}

// NewRouter builds the Echo instance with middleware, operational endpoints,
// and all API routes registered.
func NewRouter(d Deps) *echo.Echo {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(log))
	e.Use(middleware.RequestLog(log))
	e.Use(middleware.Metrics())

	health := handlers.NewHealthHandler(d.Store)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	cfg := huma.DefaultConfig("PWC Deal Tracker API", "1.0.0")
	cfg.Info.Description = "Listing ingestion, deduplication, and market valuation for personal watercraft."
	api := humaecho.New(e, cfg)

	handlers.RegisterListingRoutes(api, handlers.NewListingsHandler(d.Store))
	handlers.RegisterImportRoutes(api, handlers.NewImportHandler(d.Engine, d.Store))
	handlers.RegisterAnalyzeRoutes(api, handlers.NewAnalyzeHandler(d.Engine))
	handlers.RegisterConflictRoutes(api, handlers.NewConflictsHandler(d.Store))
	handlers.RegisterDuplicateRoutes(api, handlers.NewDuplicatesHandler(d.Store))
	handlers.RegisterTrendRoutes(api, handlers.NewTrendsHandler(d.Store, d.Engine))
	handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(d.Store))
	handlers.RegisterSystemStateRoutes(api, handlers.NewSystemStateHandler(d.Store))

	return e
}
