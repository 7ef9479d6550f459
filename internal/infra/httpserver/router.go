package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appaudit "github.com/bryanwahyu/codeguardian/internal/application/audit"
	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
	"github.com/bryanwahyu/codeguardian/internal/domain/catalog"
	"github.com/bryanwahyu/codeguardian/internal/middleware"
)

type Router struct {
	svc     *appaudit.Service
	catalog *catalog.Catalog
}

// Options carries the optional middleware wiring for the HTTP surface.
type Options struct {
	APIKeys        map[string]string // empty = auth disabled
	RateCapacity   int
	RateRefill     int
	HealthCheckers map[string]middleware.HealthChecker
}

func NewRouter(svc *appaudit.Service, cat *catalog.Catalog, opts Options) http.Handler {
	r := &Router{svc: svc, catalog: cat}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(opts.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	}
	if opts.RateCapacity > 0 {
		mux.Use(middleware.RateLimitMiddleware(opts.RateCapacity, opts.RateRefill))
	}

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/security/analyze", r.wrap(r.handleAnalyze))
		rt.Post("/security/batch-analyze", r.wrap(r.handleBatchAnalyze))
		rt.Get("/security/vulnerability-types", r.wrap(r.handleVulnerabilityTypes))
		rt.Get("/reports/latest", r.wrap(r.handleLatest))
		rt.Get("/reports/{id}", r.wrap(r.handleGet))
		rt.Get("/summary", r.wrap(r.handleSummary))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, sql.ErrNoRows):
			writeError(w, http.StatusNotFound, "not found")
		case errors.Is(err, domain.ErrCodeTooLarge):
			middleware.IncrementAnalysesRejected()
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, domain.ErrEmptyCode),
			errors.Is(err, domain.ErrUnsupportedLanguage),
			errors.Is(err, domain.ErrBatchEmpty),
			errors.Is(err, domain.ErrBatchTooLarge):
			middleware.IncrementAnalysesRejected()
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			var bad badRequestError
			if errors.As(err, &bad) {
				writeError(w, http.StatusBadRequest, bad.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

type scanRequestBody struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	FileName string `json:"file_name"`
}

func (b scanRequestBody) toDomain() (domain.ScanRequest, error) {
	if err := middleware.ValidateFileName(b.FileName); err != nil {
		return domain.ScanRequest{}, badRequestError{err}
	}
	return domain.ScanRequest{
		Code:     b.Code,
		Language: b.Language,
		FileName: middleware.SanitizeString(b.FileName),
	}, nil
}

// POST /v1/security/analyze
// Body: {"code": "...", "language": "python", "file_name": "app.py"}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body scanRequestBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequestError{err}
	}

	scanReq, err := body.toDomain()
	if err != nil {
		return err
	}

	middleware.IncrementAnalyses()
	middleware.IncrementAnalysesRunning()
	defer middleware.DecrementAnalysesRunning()

	report, err := r.svc.Analyze(req.Context(), scanReq)
	if err != nil {
		return err
	}
	if !report.AIEnhanced {
		middleware.IncrementAnalysesDegraded()
	}

	return writeJSON(w, report)
}

// POST /v1/security/batch-analyze
// Body: {"items": [{"code": "...", "language": "...", "file_name": "..."}]}
func (r *Router) handleBatchAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Items []scanRequestBody `json:"items"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequestError{err}
	}

	reqs := make([]domain.ScanRequest, 0, len(body.Items))
	for _, item := range body.Items {
		scanReq, err := item.toDomain()
		if err != nil {
			return err
		}
		reqs = append(reqs, scanReq)
	}

	middleware.IncrementAnalyses()
	middleware.IncrementAnalysesRunning()
	defer middleware.DecrementAnalysesRunning()

	results, err := r.svc.AnalyzeBatch(req.Context(), reqs)
	if err != nil {
		return err
	}

	return writeJSON(w, map[string]any{
		"total":   len(results),
		"results": results,
	})
}

// GET /v1/security/vulnerability-types
// Lists the signatures the static matcher knows about.
func (r *Router) handleVulnerabilityTypes(w http.ResponseWriter, req *http.Request) error {
	type entry struct {
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		Category    string   `json:"category"`
		Severity    string   `json:"severity"`
		CWEID       string   `json:"cwe_id,omitempty"`
		OWASP       string   `json:"owasp_category,omitempty"`
		Description string   `json:"description,omitempty"`
		Languages   []string `json:"languages,omitempty"`
	}

	out := make([]entry, 0, r.catalog.Len())
	for _, p := range r.catalog.Patterns() {
		e := entry{
			ID:          p.ID,
			Title:       p.Title,
			Category:    string(p.Category),
			Severity:    string(p.Severity),
			CWEID:       p.CWEID,
			OWASP:       p.OWASP,
			Description: p.Description,
		}
		for lang := range p.Languages {
			e.Languages = append(e.Languages, lang)
		}
		sort.Strings(e.Languages)
		out = append(out, e)
	}

	return writeJSON(w, map[string]any{
		"total": len(out),
		"types": out,
	})
}

// GET /v1/reports/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	limit = middleware.ValidateLimit(limit)

	list, err := r.svc.Latest(req.Context(), limit)
	if err != nil {
		return err
	}

	return writeJSON(w, list)
}

// GET /v1/reports/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateReportID(id); err != nil {
		return badRequestError{err}
	}

	report, err := r.svc.Get(req.Context(), domain.ReportID(id))
	if err != nil {
		return err
	}

	return writeJSON(w, report)
}

// GET /v1/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))
	days = middleware.ValidateDays(days)

	summary, err := r.svc.Summary(req.Context(), days)
	if err != nil {
		return err
	}

	return writeJSON(w, summary)
}
