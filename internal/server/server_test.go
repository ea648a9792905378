package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/emi-optimizer/internal/metrics"
	"github.com/iwvelando/emi-optimizer/pkg/amortization"
	"github.com/iwvelando/emi-optimizer/pkg/constants"
	"github.com/iwvelando/emi-optimizer/pkg/optimization"
	"github.com/iwvelando/emi-optimizer/pkg/testutil"
	"go.uber.org/zap"
)

const planYAML = `
loan:
  principal: 500000
  annualRate: 9
  durationMonths: 60
  startMonth: 3
  startYear: 2025
events:
  - kind: prepayment
    month: 6
    amount: 50000
preferences:
  prepaymentFrequency: annually
  preferredPrepaymentMonth: 2
`

func newTestHandler(t *testing.T, opts Options) *Handler {
	t.Helper()
	h := NewHandler(zap.NewNop(), opts)
	t.Cleanup(h.Close)
	return h
}

func postJSON(t *testing.T, h http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func personalLoan() amortization.LoanParameters {
	return amortization.LoanParameters{Principal: 100000, AnnualRate: 10, DurationMonths: 12, StartMonth: 0, StartYear: 2025}
}

func TestHandleScheduleSuccess(t *testing.T) {
	h := newTestHandler(t, Options{})

	rr := postJSON(t, h, "/api/schedule", personalLoan())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp amortization.Amortization
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Schedule) != 12 {
		t.Fatalf("expected 12 months, got %d", len(resp.Schedule))
	}
	if resp.EMI != 8791.59 {
		t.Errorf("expected EMI 8791.59, got %.2f", resp.EMI)
	}
	if resp.Schedule[11].ClosingBalance != 0 {
		t.Errorf("expected final closing balance 0, got %.2f", resp.Schedule[11].ClosingBalance)
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a request ID header")
	}
}

func TestHandleScheduleKeepsRequestID(t *testing.T) {
	h := newTestHandler(t, Options{})

	body, _ := json.Marshal(personalLoan())
	req := httptest.NewRequest(http.MethodPost, "/api/schedule", bytes.NewReader(body))
	req.Header.Set(RequestIDHeader, "req-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("expected request ID req-123, got %q", got)
	}
}

func TestHandleScheduleErrors(t *testing.T) {
	h := newTestHandler(t, Options{})

	tests := []struct {
		name       string
		payload    interface{}
		status     int
		kind       string
		field      string
		errorMatch string
	}{
		{
			name:    "Zero principal",
			payload: amortization.LoanParameters{Principal: 0, AnnualRate: 10, DurationMonths: 12, StartYear: 2025},
			status:  http.StatusBadRequest,
			kind:    "validation",
			field:   "principal",
		},
		{
			name:    "Unbounded duration",
			payload: amortization.LoanParameters{Principal: 1, DurationMonths: 1 << 45, StartYear: 2025},
			status:  http.StatusBadRequest,
			kind:    "validation",
			field:   "durationMonths",
		},
		{
			name:    "Numeric instability",
			payload: amortization.LoanParameters{Principal: 100000, AnnualRate: 1e-15, DurationMonths: 12, StartYear: 2025},
			status:  http.StatusUnprocessableEntity,
			kind:    "numeric_instability",
		},
		{
			name:       "Unknown field",
			payload:    map[string]interface{}{"principal": 1000, "bogus": true},
			status:     http.StatusBadRequest,
			kind:       "decode",
			errorMatch: "bogus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, h, "/api/schedule", tt.payload)
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			resp := decodeError(t, rr)
			if resp.Kind != tt.kind {
				t.Errorf("expected kind %q, got %q", tt.kind, resp.Kind)
			}
			if tt.field != "" && resp.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, resp.Field)
			}
			if tt.errorMatch != "" && !strings.Contains(resp.Error, tt.errorMatch) {
				t.Errorf("expected error containing %q, got %q", tt.errorMatch, resp.Error)
			}
		})
	}
}

func TestHandleSimulate(t *testing.T) {
	h := newTestHandler(t, Options{})

	rr := postJSON(t, h, "/api/simulate", map[string]interface{}{
		"loan": personalLoan(),
		"events": []amortization.Event{
			amortization.Prepayment(3, 30000),
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp simulateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Simulation.ActualDurationMonths >= len(resp.Baseline.Schedule) {
		t.Errorf("expected a shorter loan, got %d months vs baseline %d",
			resp.Simulation.ActualDurationMonths, len(resp.Baseline.Schedule))
	}
	if resp.Comparison.InterestSaved <= 0 {
		t.Errorf("expected interest saved, got %.2f", resp.Comparison.InterestSaved)
	}
	if resp.Comparison.TenureReducedMonths != len(resp.Baseline.Schedule)-resp.Simulation.ActualDurationMonths {
		t.Errorf("inconsistent tenure reduction %d", resp.Comparison.TenureReducedMonths)
	}
}

func TestHandleSimulateRejectsInvalidEvents(t *testing.T) {
	h := newTestHandler(t, Options{})

	rr := postJSON(t, h, "/api/simulate", map[string]interface{}{
		"loan":   personalLoan(),
		"events": []amortization.Event{amortization.Prepayment(-1, 1000)},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decodeError(t, rr); resp.Field != "events" {
		t.Errorf("expected field events, got %q", resp.Field)
	}
}

func TestHandleSuggestions(t *testing.T) {
	h := newTestHandler(t, Options{})

	rr := postJSON(t, h, "/api/suggestions", map[string]interface{}{
		"loan": amortization.LoanParameters{Principal: 500000, AnnualRate: 9, DurationMonths: 60, StartMonth: 3, StartYear: 2025},
		"preferences": map[string]interface{}{
			"prepaymentFrequency":      "annually",
			"preferredPrepaymentMonth": 2,
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp suggestionsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Baseline == nil || resp.Baseline.TenureMonths != 60 {
		t.Fatalf("expected a 60 month baseline, got %+v", resp.Baseline)
	}
	if len(resp.Suggestions) == 0 || len(resp.Suggestions) > constants.MaxSuggestions {
		t.Fatalf("expected 1-%d suggestions, got %d", constants.MaxSuggestions, len(resp.Suggestions))
	}
	if testutil.FindSentinel(resp.Suggestions) != nil {
		t.Fatal("expected real suggestions, got a sentinel")
	}
	if testutil.FindSuggestion(resp.Suggestions, optimization.RecurringPrepayment) == nil {
		t.Error("expected a recurring prepayment suggestion")
	}
	for i := 1; i < len(resp.Suggestions); i++ {
		if resp.Suggestions[i].Score > resp.Suggestions[i-1].Score {
			t.Errorf("suggestions not sorted by score at %d", i)
		}
	}
}

func TestHandleSuggestionsNoLoan(t *testing.T) {
	h := newTestHandler(t, Options{})

	rr := postJSON(t, h, "/api/suggestions", map[string]interface{}{
		"loan": amortization.LoanParameters{Principal: 0, AnnualRate: 9, DurationMonths: 60, StartYear: 2025},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp suggestionsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Baseline != nil {
		t.Errorf("expected no baseline for an invalid loan, got %+v", resp.Baseline)
	}
	sentinel := testutil.FindSentinel(resp.Suggestions)
	if sentinel == nil || sentinel.Sentinel != optimization.SentinelNoLoan {
		t.Fatalf("expected the no-loan sentinel, got %+v", resp.Suggestions)
	}
}

func TestHandleSuggestionsInvalidPreferences(t *testing.T) {
	h := newTestHandler(t, Options{})

	rr := postJSON(t, h, "/api/suggestions", map[string]interface{}{
		"loan":        personalLoan(),
		"preferences": map[string]interface{}{"preferredPrepaymentMonth": 14},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decodeError(t, rr); resp.Field != "preferences" {
		t.Errorf("expected field preferences, got %q", resp.Field)
	}
}

func TestHandlePlanRawYAML(t *testing.T) {
	h := newTestHandler(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/plan", strings.NewReader(planYAML))
	req.Header.Set("Content-Type", "application/yaml")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp planResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Baseline.Schedule) != 60 {
		t.Fatalf("expected 60 month baseline, got %d", len(resp.Baseline.Schedule))
	}
	if resp.Baseline.Schedule[0].Label != "Apr 2025" {
		t.Errorf("expected first label Apr 2025, got %s", resp.Baseline.Schedule[0].Label)
	}
	if !strings.HasPrefix(resp.CSV, `"month","date"`) || !strings.Contains(resp.CSV, `"Apr 2025"`) {
		t.Errorf("expected CSV schedule, got %q", resp.CSV)
	}
	if resp.Simulation == nil || resp.Simulation.Comparison.InterestSaved <= 0 {
		t.Fatalf("expected a simulation with interest saved, got %+v", resp.Simulation)
	}
	if len(resp.Suggestions) == 0 {
		t.Fatal("expected suggestions")
	}
	if resp.Duration == "" {
		t.Error("expected duration in response")
	}
}

func TestHandlePlanUpload(t *testing.T) {
	h := newTestHandler(t, Options{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "config.yaml")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.WriteString(part, planYAML); err != nil {
		t.Fatalf("failed to write form data: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/plan", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandlePlanMissingFile(t *testing.T) {
	h := newTestHandler(t, Options{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("other", "value"); err != nil {
		t.Fatalf("failed to write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/plan", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Error != "missing configuration file" {
		t.Errorf("unexpected error %q", resp.Error)
	}
}

func TestHandlePlanInvalidInput(t *testing.T) {
	h := newTestHandler(t, Options{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"Empty body", "", http.StatusBadRequest},
		{"Invalid YAML", "loan: [unterminated", http.StatusBadRequest},
		{"Invalid loan", "loan:\n  principal: 0\n  durationMonths: 12\n", http.StatusBadRequest},
		{"Unknown event kind", "loan:\n  principal: 1000\n  annualRate: 5\n  durationMonths: 12\nevents:\n  - kind: refund\n    month: 1\n    amount: 5\n", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/plan", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRequestTooLarge(t *testing.T) {
	h := newTestHandler(t, Options{MaxUploadSize: 16})

	req := httptest.NewRequest(http.MethodPost, "/api/plan", strings.NewReader(planYAML))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, Options{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/schedule"},
		{http.MethodGet, "/api/simulate"},
		{http.MethodGet, "/api/suggestions"},
		{http.MethodGet, "/api/plan"},
		{http.MethodPost, "/api/version"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != http.StatusMethodNotAllowed {
				t.Fatalf("expected status 405, got %d", rr.Code)
			}
			if rr.Header().Get("Allow") == "" {
				t.Error("expected an Allow header")
			}
		})
	}
}

func TestHandleVersion(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		expected string
	}{
		{"Explicit version", " v1.2.3 ", "v1.2.3"},
		{"Default version", "", "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, Options{Version: tt.version})
			req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}
			var resp map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["version"] != tt.expected {
				t.Errorf("expected version %q, got %q", tt.expected, resp["version"])
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	rl := RateLimitConfig{Requests: 2, Window: "1h", window: time.Hour}
	h := newTestHandler(t, Options{RateLimit: rl})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Kind != "rate_limit" {
		t.Errorf("expected kind rate_limit, got %q", resp.Kind)
	}

	// metrics are not rate limited
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics status 200, got %d", rr.Code)
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	defer rl.stop()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("10.0.0.1") {
		t.Fatal("expected first request to pass")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("expected second request to be limited")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("expected other clients to have their own bucket")
	}

	now = now.Add(time.Minute)
	if !rl.allow("10.0.0.1") {
		t.Fatal("expected bucket to refill after the window")
	}

	now = now.Add(2 * time.Hour)
	rl.cleanup()
	rl.mu.Lock()
	remaining := len(rl.clients)
	rl.mu.Unlock()
	if remaining != 0 {
		t.Errorf("expected idle buckets to be cleaned up, got %d", remaining)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := clientIP(req); got != "192.0.2.1" {
		t.Errorf("expected 192.0.2.1, got %s", got)
	}
	req.RemoteAddr = "no-port"
	if got := clientIP(req); got != "no-port" {
		t.Errorf("expected no-port, got %s", got)
	}
}

func TestMetricsRecordRequests(t *testing.T) {
	m := metrics.New()
	h := newTestHandler(t, Options{Metrics: m})

	postJSON(t, h, "/api/schedule", personalLoan())
	postJSON(t, h, "/api/suggestions", map[string]interface{}{"loan": personalLoan()})

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	for _, want := range []string{
		`emi_optimizer_http_requests_total{code="200",route="/api/schedule"} 1`,
		`emi_optimizer_http_requests_total{code="404",route="other"} 1`,
		`emi_optimizer_candidates_evaluated_total{family="emi-increase"}`,
		`emi_optimizer_search_duration_seconds_count 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}
