// Package app wires the application: engine, reference table, services and
// the HTTP router, from a Config and a logger supplied by main().
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gloodata/ext-go-demography/internal/api"
	"github.com/gloodata/ext-go-demography/internal/config"
	"github.com/gloodata/ext-go-demography/internal/engine"
	"github.com/gloodata/ext-go-demography/internal/middleware"
	"github.com/gloodata/ext-go-demography/internal/reference"
	"github.com/gloodata/ext-go-demography/internal/service/stats"
)

// Deps holds what main() must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// App is the fully wired application.
type App struct {
	Engine    *engine.Engine
	Reference *reference.Set
	Stats     *stats.Service
	Handler   *api.Handler
}

// New loads the country reference, opens the engine over the artifact path
// and wires the services. The artifact itself may not exist yet — data
// queries report service-unavailable until the merge pipeline has run.
func New(deps Deps) (*App, error) {
	cfg := deps.Cfg

	ref, err := reference.Load(cfg.CountriesPath)
	if err != nil {
		return nil, fmt.Errorf("load country reference: %w", err)
	}
	if ref.Skipped() > 0 {
		deps.Logger.Warn("reference rows skipped", "skipped", ref.Skipped(), "path", cfg.CountriesPath)
	}
	deps.Logger.Info("country reference loaded", "countries", ref.Len())

	eng, err := engine.Open(cfg.ArtifactPath, deps.Logger.With("component", "engine"))
	if err != nil {
		return nil, err
	}

	statsSvc := stats.New(eng, ref, deps.Logger.With("component", "stats"))
	handler := api.NewHandler(statsSvc, deps.Logger.With("component", "api"))

	return &App{Engine: eng, Reference: ref, Stats: statsSvc, Handler: handler}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	return a.Engine.Close()
}

// Router assembles the chi router with the full middleware stack.
func (a *App) Router(cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger.With("component", "http")))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	a.Handler.Routes(r)
	return r
}
