package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger, countries geoip.CountryResolver) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger, countries),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.IPAllowlist(cfg.AppEnv, cfg.AllowedIPs, logger),
	)

	r.Get("/health", app.Health)
	r.Get("/styles", app.Styles)
	r.Get("/aspect-ratios", app.AspectRatios)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", app.CreateJob)
		r.Get("/{job_id}", app.GetJob)
	})

	// Finished collages are served straight off disk; the reaper prunes
	// this directory on its own schedule.
	fileServer := http.FileServer(http.Dir(cfg.OutputDir))
	r.Handle("/output/*", http.StripPrefix("/output/", fileServer))

	return r
}
