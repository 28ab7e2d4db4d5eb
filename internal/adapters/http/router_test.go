package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/rx-crosscheck/internal/adapters/http/openapi"
	"github.com/kirillkom/rx-crosscheck/internal/config"
	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

type serviceFake struct {
	evaluateErr error
	submitErr   error
	getErr      error
	pending     []domain.Evaluation
	lastLimit   int
	lastReq     domain.EvaluationRequest
}

func (f *serviceFake) Evaluate(_ context.Context, req domain.EvaluationRequest) (*domain.Evaluation, error) {
	f.lastReq = req
	if f.evaluateErr != nil {
		return nil, f.evaluateErr
	}
	return &domain.Evaluation{
		ID:      "eval-1",
		Status:  domain.EvaluationCompleted,
		Request: req,
		Result: &domain.EvaluationResult{
			Comparison: domain.ComparisonResult{NeedsHumanReview: true, ScoreDifference: 40, Agreement: domain.AgreementLow},
		},
	}, nil
}

func (f *serviceFake) Submit(_ context.Context, req domain.EvaluationRequest) (*domain.Evaluation, error) {
	f.lastReq = req
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &domain.Evaluation{ID: "eval-2", Status: domain.EvaluationQueued, Request: req}, nil
}

func (f *serviceFake) Get(_ context.Context, id string) (*domain.Evaluation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &domain.Evaluation{ID: id, Status: domain.EvaluationInProgress}, nil
}

func (f *serviceFake) ListPendingReview(_ context.Context, limit int) ([]domain.Evaluation, error) {
	f.lastLimit = limit
	return f.pending, nil
}

type archiveFake struct {
	reports map[string]string
}

func (f archiveFake) Save(context.Context, string, io.Reader) error { return nil }

func (f archiveFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.reports[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrEvaluationNotFound, "open archived report", errors.New(key))
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func newTestHandler(t *testing.T, cfg config.Config, service EvaluationService, opts ...RouterOption) http.Handler {
	t.Helper()
	spec, err := openapi.Load()
	if err != nil {
		t.Fatalf("openapi.Load() error = %v", err)
	}
	opts = append([]RouterOption{WithOpenAPISpec(spec)}, opts...)
	return NewRouter(cfg, service, opts...).Handler()
}

const validBody = `{
  "prescription": {
    "diagnosis": "Acute otitis media",
    "medications": [{"name": "Amoxicillin", "route": "oral", "dose": "500", "unit": "mg", "singleDose": false, "frequency": "8", "frequencyUnit": "hours"}]
  },
  "patient": {"name": "Ana Ruiz", "birthDate": "1990-04-12", "weightKg": 62, "allergies": [], "priorMedications": []}
}`

func postJSON(handler http.Handler, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	return res
}

func TestEvaluateReturnsCompletedEvaluation(t *testing.T) {
	service := &serviceFake{}
	handler := newTestHandler(t, config.Config{}, service)

	res := postJSON(handler, "/v1/evaluations", validBody)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var body struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		InProgress bool   `json:"in_progress"`
		Result     struct {
			Comparison struct {
				NeedsHumanReview bool `json:"needsHumanReview"`
			} `json:"comparison"`
		} `json:"result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ID != "eval-1" || body.Status != "completed" || body.InProgress {
		t.Fatalf("unexpected response %+v", body)
	}
	if !body.Result.Comparison.NeedsHumanReview {
		t.Fatalf("expected needsHumanReview in response")
	}
	if service.lastReq.Prescription.Medications[0].Name != "Amoxicillin" {
		t.Fatalf("request not decoded: %+v", service.lastReq)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestEvaluateRejectsBodyFailingOpenAPISchema(t *testing.T) {
	service := &serviceFake{}
	handler := newTestHandler(t, config.Config{}, service)

	res := postJSON(handler, "/v1/evaluations", `{"prescription": {"diagnosis": "Flu", "medications": []}}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if service.lastReq.Prescription.Diagnosis != "" {
		t.Fatalf("service must not be called for schema violations")
	}
}

func TestEvaluateMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid input", err: domain.WrapError(domain.ErrInvalidInput, "validate", errors.New("diagnosis too short")), want: http.StatusBadRequest},
		{name: "provider failure", err: domain.WrapError(domain.ErrProviderCall, "reviewer openai", errors.New("503")), want: http.StatusBadGateway},
		{name: "malformed output", err: domain.WrapError(domain.ErrMalformedResponse, "normalize", errors.New("no json")), want: http.StatusBadGateway},
		{name: "temporary", err: domain.WrapError(domain.ErrTemporary, "openai chat", errors.New("timeout")), want: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(t, config.Config{}, &serviceFake{evaluateErr: tc.err})
			res := postJSON(handler, "/v1/evaluations", validBody)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
			var body errorResponse
			_ = json.NewDecoder(res.Body).Decode(&body)
			if body.Error == "" || body.RequestID == "" {
				t.Fatalf("expected error and request id, got %+v", body)
			}
		})
	}
}

func TestSubmitReturnsAccepted(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &serviceFake{})

	res := postJSON(handler, "/v1/evaluations/async", validBody)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if loc := res.Header().Get("Location"); loc != "/v1/evaluations/eval-2" {
		t.Fatalf("unexpected Location %q", loc)
	}
	var body map[string]any
	_ = json.NewDecoder(res.Body).Decode(&body)
	if body["in_progress"] != true {
		t.Fatalf("queued evaluation must report in_progress, got %v", body)
	}
}

func TestSubmitWithoutQueueReturns503(t *testing.T) {
	service := &serviceFake{submitErr: domain.WrapError(domain.ErrConfiguration, "submit", errors.New("message queue is not configured"))}
	handler := newTestHandler(t, config.Config{}, service)

	res := postJSON(handler, "/v1/evaluations/async", validBody)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestGetEvaluation(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &serviceFake{})
	res := get(handler, "/v1/evaluations/eval-7")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"in_progress":true`) {
		t.Fatalf("expected in-progress signal, got %s", res.Body.String())
	}

	missing := newTestHandler(t, config.Config{}, &serviceFake{getErr: domain.WrapError(domain.ErrEvaluationNotFound, "get", errors.New("id=x"))})
	if res := get(missing, "/v1/evaluations/x"); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetReportStreamsArchive(t *testing.T) {
	archive := archiveFake{reports: map[string]string{"evaluations/eval-1.json": `{"id":"eval-1"}`}}
	handler := newTestHandler(t, config.Config{}, &serviceFake{}, WithReportArchive(archive))

	res := get(handler, "/v1/evaluations/eval-1/report")
	if res.Code != http.StatusOK || res.Body.String() != `{"id":"eval-1"}` {
		t.Fatalf("unexpected report response %d %q", res.Code, res.Body.String())
	}
	if res := get(handler, "/v1/evaluations/other/report"); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing report, got %d", res.Code)
	}

	disabled := newTestHandler(t, config.Config{}, &serviceFake{})
	if res := get(disabled, "/v1/evaluations/eval-1/report"); res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without archive, got %d", res.Code)
	}
}

func TestListPendingReviewPassesLimit(t *testing.T) {
	service := &serviceFake{pending: []domain.Evaluation{{ID: "eval-1", Status: domain.EvaluationCompleted}}}
	handler := newTestHandler(t, config.Config{}, service)

	res := get(handler, "/v1/reviews/pending?limit=5")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if service.lastLimit != 5 {
		t.Fatalf("expected limit 5, got %d", service.lastLimit)
	}
	var body struct {
		Items []map[string]any `json:"items"`
	}
	_ = json.NewDecoder(res.Body).Decode(&body)
	if len(body.Items) != 1 || body.Items[0]["id"] != "eval-1" {
		t.Fatalf("unexpected items %+v", body.Items)
	}

	if res := get(handler, "/v1/reviews/pending?limit=abc"); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric limit, got %d", res.Code)
	}
}

func TestBearerAuthProtectsAPIRoutes(t *testing.T) {
	handler := newTestHandler(t, config.Config{APIAuthToken: "secret"}, &serviceFake{})

	if res := postJSON(handler, "/v1/evaluations", validBody); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}
	if res := postJSON(handler, "/v1/evaluations", validBody, "Authorization", "Bearer wrong"); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", res.Code)
	}
	if res := postJSON(handler, "/v1/evaluations", validBody, "Authorization", "Bearer secret"); res.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", res.Code)
	}
	if res := get(handler, "/healthz"); res.Code != http.StatusOK {
		t.Fatalf("healthz must stay public, got %d", res.Code)
	}
}

func TestOpenAPIDocumentIsServed(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &serviceFake{})
	res := get(handler, "/openapi.json")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var doc map[string]any
	if err := json.NewDecoder(bytes.NewReader(res.Body.Bytes())).Decode(&doc); err != nil {
		t.Fatalf("decode openapi: %v", err)
	}
	paths, _ := doc["paths"].(map[string]any)
	if _, ok := paths["/v1/evaluations"]; !ok {
		t.Fatalf("expected /v1/evaluations in document")
	}
}

func TestMetricsHandlerIsMounted(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("rxcheck_evaluation_total 0\n"))
	})
	handler := newTestHandler(t, config.Config{}, &serviceFake{}, WithMetricsHandler(metricsHandler))
	res := get(handler, "/metrics")
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "rxcheck_evaluation_total") {
		t.Fatalf("unexpected metrics response %d %q", res.Code, res.Body.String())
	}
}
