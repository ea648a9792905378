package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/emi-optimizer/internal/config"
	"github.com/iwvelando/emi-optimizer/internal/metrics"
	"github.com/iwvelando/emi-optimizer/internal/optimizer"
	"github.com/iwvelando/emi-optimizer/pkg/amortization"
	"github.com/iwvelando/emi-optimizer/pkg/constants"
	"github.com/iwvelando/emi-optimizer/pkg/mathutil"
	"github.com/iwvelando/emi-optimizer/pkg/optimization"
	"github.com/iwvelando/emi-optimizer/pkg/output"
	"go.uber.org/zap"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

var knownRoutes = map[string]struct{}{
	"/api/schedule":    {},
	"/api/simulate":    {},
	"/api/suggestions": {},
	"/api/plan":        {},
	"/api/version":     {},
	"/metrics":         {},
}

// Options tunes the handler. Zero values select defaults.
type Options struct {
	MaxUploadSize int64
	Version       string
	RateLimit     RateLimitConfig
	Metrics       *metrics.Metrics
}

// Handler serves the loan API.
type Handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
	calculator    *amortization.Calculator
	runner        *optimizer.Runner
	metrics       *metrics.Metrics
	limiter       *rateLimiter
	now           func() time.Time
	root          http.Handler
}

// NewHandler constructs the HTTP handler that serves the schedule, simulation
// and suggestion API together with Prometheus metrics.
func NewHandler(logger *zap.Logger, opts Options) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxUploadSize := opts.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	h := &Handler{
		logger:        logger,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
		calculator:    amortization.NewCalculator(logger),
		runner:        optimizer.NewRunner(logger).WithRecorder(m),
		metrics:       m,
		now:           time.Now,
	}
	if opts.RateLimit.Requests > 0 && opts.RateLimit.WindowDuration() > 0 {
		h.limiter = newRateLimiter(opts.RateLimit.Requests, opts.RateLimit.WindowDuration())
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/schedule", h.handleSchedule)
	mux.HandleFunc("/api/simulate", h.handleSimulate)
	mux.HandleFunc("/api/suggestions", h.handleSuggestions)
	mux.HandleFunc("/api/plan", h.handlePlan)
	mux.HandleFunc("/api/version", h.handleVersion)
	mux.Handle("/metrics", m.Handler())

	h.root = h.withRequestID(h.withMetrics(h.withRateLimit(mux)))
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

// Close releases background resources held by the handler.
func (h *Handler) Close() {
	if h.limiter != nil {
		h.limiter.stop()
	}
}

type simulateRequest struct {
	Loan    amortization.LoanParameters `json:"loan"`
	BaseEMI float64                     `json:"baseEmi,omitempty"`
	Events  []amortization.Event        `json:"events"`
}

type suggestionsRequest struct {
	Loan        amortization.LoanParameters `json:"loan"`
	Preferences *optimization.Preferences   `json:"preferences,omitempty"`
}

type comparison struct {
	InterestSaved       float64 `json:"interestSaved"`
	TenureReducedMonths int     `json:"tenureReducedMonths"`
}

type simulateResponse struct {
	Baseline   amortization.Amortization     `json:"baseline"`
	Simulation amortization.SimulationResult `json:"simulation"`
	Comparison comparison                    `json:"comparison"`
}

type baselineSummary struct {
	EMI           float64 `json:"emi"`
	TotalInterest float64 `json:"totalInterest"`
	TenureMonths  int     `json:"tenureMonths"`
}

type suggestionsResponse struct {
	Baseline    *baselineSummary          `json:"baseline,omitempty"`
	Suggestions []optimization.Suggestion `json:"suggestions"`
	Duration    string                    `json:"duration"`
}

type planResponse struct {
	Warnings    []string                  `json:"warnings,omitempty"`
	Baseline    amortization.Amortization `json:"baseline"`
	CSV         string                    `json:"csv"`
	Simulation  *simulateResponse         `json:"simulation,omitempty"`
	Suggestions []optimization.Suggestion `json:"suggestions"`
	Duration    string                    `json:"duration"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSchedule"
	if !h.requireMethod(w, r, http.MethodPost, op) {
		return
	}

	var params amortization.LoanParameters
	if !h.decodeJSON(w, r, &params, op) {
		return
	}

	result, err := h.calculator.Amortize(params)
	if err != nil {
		h.respondCalculationError(w, err, op)
		return
	}

	h.logger.Info("schedule computed",
		zap.String("op", op),
		zap.String("requestId", w.Header().Get(RequestIDHeader)),
		zap.Int("months", len(result.Schedule)),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSimulate"
	if !h.requireMethod(w, r, http.MethodPost, op) {
		return
	}

	var req simulateRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	if err := amortization.ValidateEvents(req.Events); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation", Field: "events"}, op)
		return
	}

	resp, err := h.simulate(req.Loan, req.BaseEMI, req.Events)
	if err != nil {
		h.respondCalculationError(w, err, op)
		return
	}

	h.logger.Info("simulation computed",
		zap.String("op", op),
		zap.String("requestId", w.Header().Get(RequestIDHeader)),
		zap.Int("events", len(req.Events)),
		zap.Int("months", resp.Simulation.ActualDurationMonths),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSuggestions"
	if !h.requireMethod(w, r, http.MethodPost, op) {
		return
	}

	start := time.Now()
	var req suggestionsRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}

	prefs := optimization.DefaultPreferences()
	if req.Preferences != nil {
		prefs = *req.Preferences
		prefs.Normalize()
	}

	suggestions, err := h.runner.Suggest(req.Loan, prefs)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation", Field: "preferences"}, op)
		return
	}

	resp := suggestionsResponse{
		Baseline:    h.summarize(req.Loan),
		Suggestions: suggestions,
		Duration:    time.Since(start).String(),
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	const op = "server.handlePlan"
	if !h.requireMethod(w, r, http.MethodPost, op) {
		return
	}

	start := time.Now()
	data, ok := h.readPlanBody(w, r, op)
	if !ok {
		return
	}

	cfg, err := config.LoadConfigurationFromReader(bytes.NewReader(data))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "decode"}, op)
		return
	}
	warnings := cfg.ValidateConfiguration()

	params := cfg.LoanParameters(h.now())
	baseline, err := h.calculator.Amortize(params)
	if err != nil {
		h.respondCalculationError(w, err, op)
		return
	}
	warnings = append(warnings, baseline.Warnings...)

	events, err := cfg.SimulationEvents()
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation", Field: "events"}, op)
		return
	}

	resp := planResponse{
		Warnings: warnings,
		Baseline: baseline,
		CSV:      output.CsvString(baseline.Schedule),
	}
	if len(events) > 0 {
		sim, err := h.simulate(params, 0, events)
		if err != nil {
			h.respondCalculationError(w, err, op)
			return
		}
		resp.Simulation = sim
	}

	resp.Suggestions, err = h.runner.Suggest(params, cfg.Preferences)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation", Field: "preferences"}, op)
		return
	}
	resp.Duration = time.Since(start).String()

	h.logger.Info("plan computed",
		zap.String("op", op),
		zap.String("requestId", w.Header().Get(RequestIDHeader)),
		zap.Int("warnings", len(warnings)),
		zap.Int("suggestions", len(resp.Suggestions)),
		zap.String("duration", resp.Duration),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !h.requireMethod(w, r, http.MethodGet, "server.handleVersion") {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// readPlanBody accepts either a multipart upload in the "file" field or a
// raw YAML body.
func (h *Handler) readPlanBody(w http.ResponseWriter, r *http.Request, op string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			h.respondBodyError(w, err, "failed to parse upload", op)
			return nil, false
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, errorResponse{Error: "missing configuration file", Kind: "decode"}, op)
			return nil, false
		}
		defer func() {
			if closeErr := file.Close(); closeErr != nil {
				h.logger.Warn("failed to close uploaded file",
					zap.String("op", op),
					zap.Error(closeErr),
				)
			}
		}()
		data, err := io.ReadAll(file)
		if err != nil {
			h.respondErrorWithOp(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("failed to read configuration: %v", err)}, op)
			return nil, false
		}
		return data, true
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		h.respondBodyError(w, err, "failed to read configuration", op)
		return nil, false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		h.respondErrorWithOp(w, http.StatusBadRequest, errorResponse{Error: "missing configuration", Kind: "decode"}, op)
		return nil, false
	}
	return data, true
}

func (h *Handler) simulate(params amortization.LoanParameters, baseEMI float64, events []amortization.Event) (*simulateResponse, error) {
	baseline, err := h.calculator.Amortize(params)
	if err != nil {
		return nil, err
	}
	if baseEMI <= 0 {
		if baseEMI, err = h.calculator.ComputeEMI(params); err != nil {
			return nil, err
		}
	}

	sim := h.calculator.Simulate(params, baseEMI, events)
	sim.TotalInterest = mathutil.Round(sim.TotalInterest)
	return &simulateResponse{
		Baseline:   baseline,
		Simulation: sim,
		Comparison: comparison{
			InterestSaved:       mathutil.Round(baseline.Schedule.TotalInterest() - sim.Schedule.TotalInterest()),
			TenureReducedMonths: baseline.Schedule.Tenure() - sim.ActualDurationMonths,
		},
	}, nil
}

func (h *Handler) summarize(params amortization.LoanParameters) *baselineSummary {
	result, err := h.calculator.Amortize(params)
	if err != nil {
		return nil
	}
	return &baselineSummary{
		EMI:           result.EMI,
		TotalInterest: result.Schedule.TotalInterest(),
		TenureMonths:  result.Schedule.Tenure(),
	}
}

func (h *Handler) requireMethod(w http.ResponseWriter, r *http.Request, method, op string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	h.respondErrorWithOp(w, http.StatusMethodNotAllowed, errorResponse{Error: http.StatusText(http.StatusMethodNotAllowed)}, op)
	return false
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		h.respondBodyError(w, err, "failed to decode request", op)
		return false
	}
	return true
}

func (h *Handler) respondBodyError(w http.ResponseWriter, err error, msg, op string) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error: fmt.Sprintf("request exceeds limit of %d bytes", h.maxUploadSize),
		}, op)
		return
	}
	h.respondErrorWithOp(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("%s: %v", msg, err), Kind: "decode"}, op)
}

// respondCalculationError maps loan validation failures to 400 and EMI
// computation failures to 422.
func (h *Handler) respondCalculationError(w http.ResponseWriter, err error, op string) {
	var validationErr *amortization.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.respondErrorWithOp(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation", Field: validationErr.Field}, op)
	case errors.Is(err, amortization.ErrNumericInstability):
		h.respondErrorWithOp(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Kind: "numeric_instability"}, op)
	default:
		h.respondErrorWithOp(w, http.StatusInternalServerError, errorResponse{Error: err.Error()}, op)
	}
}

func (h *Handler) respondErrorWithOp(w http.ResponseWriter, status int, resp errorResponse, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.String("requestId", w.Header().Get(RequestIDHeader)),
		zap.Int("status", status),
		zap.String("error", resp.Error),
	)

	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if _, ok := knownRoutes[route]; !ok {
			route = "other"
		}
		elapsed := time.Since(start)
		h.metrics.ObserveRequest(route, rec.status, elapsed)
		h.logger.Debug("request served",
			zap.String("op", "server.withMetrics"),
			zap.String("requestId", w.Header().Get(RequestIDHeader)),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
		)
	})
}

func (h *Handler) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && strings.HasPrefix(r.URL.Path, "/api/") && !h.limiter.allow(clientIP(r)) {
			h.respondErrorWithOp(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Kind: "rate_limit"}, "server.withRateLimit")
			return
		}
		next.ServeHTTP(w, r)
	})
}
