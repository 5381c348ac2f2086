// Package api is the HTTP facade: it translates query-string parameters
// into typed query parameters, dispatches to the stats service, and shapes
// JSON responses for the visualization host. No query logic lives here.
package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gloodata/ext-go-demography/internal/domain"
	"github.com/gloodata/ext-go-demography/internal/service/stats"
)

// Handler holds the HTTP handlers for the demography API.
type Handler struct {
	stats  *stats.Service
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(statsSvc *stats.Service, logger *slog.Logger) *Handler {
	return &Handler{stats: statsSvc, logger: logger}
}

// Routes mounts the API routes on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/countries", h.ListCountries)
		r.Get("/countries/{code}", h.GetCountry)
		r.Get("/population/by-year", h.PopulationByYear)
		r.Get("/population/pyramid", h.PopulationPyramid)
		r.Get("/fertility/trend", h.FertilityTrend)
		r.Get("/fertility/by-year", h.FertilityByCountry)
	})
}

// Health reports liveness. It succeeds even before the first merge run;
// data endpoints return 503 until an artifact exists.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListCountries returns the country reference table ordered by name.
func (h *Handler) ListCountries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"countries": h.stats.Countries()})
}

// GetCountry resolves one country by alpha-3, alpha-2 or name.
func (h *Handler) GetCountry(w http.ResponseWriter, r *http.Request) {
	c, err := h.stats.CountryInfo(chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// PopulationByYear serves the population time series.
func (h *Handler) PopulationByYear(w http.ResponseWriter, r *http.Request) {
	p, err := paramsFromQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rows, err := h.stats.PopulationByYear(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// PopulationPyramid serves the per-band population breakdown for one year.
func (h *Handler) PopulationPyramid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := paramsFromQuery(q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	year, err := intQueryDefault(q, "year", domain.MaxYear)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rows, err := h.stats.PopulationPyramid(r.Context(), p, year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "rows": rows})
}

// FertilityTrend serves the fertility time series.
func (h *Handler) FertilityTrend(w http.ResponseWriter, r *http.Request) {
	p, err := paramsFromQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rows, err := h.stats.FertilityTrend(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// FertilityByCountry serves per-country fertility for one year (area map).
func (h *Handler) FertilityByCountry(w http.ResponseWriter, r *http.Request) {
	year, err := intQueryDefault(r.URL.Query(), "year", domain.MaxYear)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rows, err := h.stats.FertilityByCountry(r.Context(), year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "rows": rows})
}

// paramsFromQuery translates query-string values into stats.Params.
// Country codes come from repeated country= values, each of which may also
// be a comma-separated list.
func paramsFromQuery(q url.Values) (stats.Params, error) {
	var p stats.Params

	for _, raw := range q["country"] {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				p.Countries = append(p.Countries, c)
			}
		}
	}
	p.Region = strings.TrimSpace(q.Get("region"))

	if v := q.Get("sex"); v != "" {
		sex, err := domain.ParseSex(v)
		if err != nil {
			return p, err
		}
		p.Sex = &sex
	}

	var err error
	if p.YearFrom, err = intQueryOpt(q, "from"); err != nil {
		return p, err
	}
	if p.YearTo, err = intQueryOpt(q, "to"); err != nil {
		return p, err
	}
	if p.AgeFrom, err = intQueryOpt(q, "age_from"); err != nil {
		return p, err
	}
	if p.AgeTo, err = intQueryOpt(q, "age_to"); err != nil {
		return p, err
	}

	return p, p.Validate()
}

func intQueryOpt(q url.Values, key string) (*int, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, domain.ErrValidation("parameter %q must be an integer, got %q", key, v)
	}
	return &n, nil
}

func intQueryDefault(q url.Values, key string, def int) (int, error) {
	n, err := intQueryOpt(q, key)
	if err != nil {
		return 0, err
	}
	if n == nil {
		return def, nil
	}
	return *n, nil
}
