package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kirillkom/rx-crosscheck/internal/config"
	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/core/ports"
	"github.com/kirillkom/rx-crosscheck/internal/core/usecase"
)

const maxRequestBodyBytes = 1 << 20

// EvaluationService is the inbound surface the router needs.
type EvaluationService interface {
	ports.PrescriptionEvaluator
	ports.EvaluationSubmitter
	ports.EvaluationReader
}

type Router struct {
	service        EvaluationService
	archive        ports.ReportArchive
	spec           *openapi3.T
	metricsHandler http.Handler

	authToken          string
	rateLimitRPS       float64
	rateLimitBurst     int
	maxInFlight        int
	backpressureWait   time.Duration
	corsAllowedOrigins []string
}

// RouterOption configures optional router collaborators.
type RouterOption func(*Router)

func WithReportArchive(archive ports.ReportArchive) RouterOption {
	return func(rt *Router) {
		rt.archive = archive
	}
}

func WithOpenAPISpec(spec *openapi3.T) RouterOption {
	return func(rt *Router) {
		rt.spec = spec
	}
}

func WithMetricsHandler(handler http.Handler) RouterOption {
	return func(rt *Router) {
		rt.metricsHandler = handler
	}
}

func NewRouter(cfg config.Config, service EvaluationService, opts ...RouterOption) *Router {
	rt := &Router{
		service:            service,
		authToken:          cfg.APIAuthToken,
		rateLimitRPS:       cfg.APIRateLimitRPS,
		rateLimitBurst:     cfg.APIRateLimitBurst,
		maxInFlight:        cfg.APIMaxInFlight,
		backpressureWait:   time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond,
		corsAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(requestIDMiddleware, accessLogMiddleware)
	if len(rt.corsAllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.corsAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader, "Retry-After"},
			MaxAge:         300,
		}))
	}

	mux.Get("/healthz", rt.healthz)
	if rt.metricsHandler != nil {
		mux.Method(http.MethodGet, "/metrics", rt.metricsHandler)
	}
	if rt.spec != nil {
		mux.Get("/openapi.json", rt.openAPIDocument)
	}

	validate := requestValidator{doc: rt.spec}.middleware
	mux.Group(func(r chi.Router) {
		r.Use(bearerAuthMiddleware(rt.authToken), limitBodyMiddleware)
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.rateLimitRPS, rt.rateLimitBurst)
		})
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.maxInFlight, rt.backpressureWait)
		})

		r.With(validate).Post("/v1/evaluations", rt.evaluate)
		r.With(validate).Post("/v1/evaluations/async", rt.submit)
		r.With(validate).Get("/v1/evaluations/{id}", rt.getEvaluation)
		r.With(validate).Get("/v1/evaluations/{id}/report", rt.getReport)
		r.With(validate).Get("/v1/reviews/pending", rt.listPendingReview)
	})
	return mux
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.spec)
}

func (rt *Router) evaluate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeEvaluationRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	evaluation, err := rt.service.Evaluate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEvaluationResponse(evaluation))
}

func (rt *Router) submit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeEvaluationRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	evaluation, err := rt.service.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/evaluations/"+evaluation.ID)
	writeJSON(w, http.StatusAccepted, newEvaluationResponse(evaluation))
}

func (rt *Router) getEvaluation(w http.ResponseWriter, r *http.Request) {
	evaluation, err := rt.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEvaluationResponse(evaluation))
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request) {
	if rt.archive == nil {
		writeError(w, r, domain.WrapError(domain.ErrConfiguration, "open report", errors.New("report archive is disabled")))
		return
	}
	report, err := rt.archive.Open(r.Context(), usecase.ArchiveKey(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer report.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, report); err != nil {
		slog.Warn("report_stream_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	}
}

func (rt *Router) listPendingReview(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse limit", err))
			return
		}
		limit = parsed
	}
	items, err := rt.service.ListPendingReview(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]evaluationResponse, 0, len(items))
	for i := range items {
		out = append(out, newEvaluationResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func limitBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func decodeEvaluationRequest(r *http.Request) (domain.EvaluationRequest, error) {
	var req domain.EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.EvaluationRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode evaluation request", err)
	}
	return req, nil
}

type evaluationResponse struct {
	*domain.Evaluation
	InProgress bool `json:"in_progress"`
}

func newEvaluationResponse(evaluation *domain.Evaluation) evaluationResponse {
	return evaluationResponse{
		Evaluation: evaluation,
		InProgress: evaluation.InProgress(),
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
