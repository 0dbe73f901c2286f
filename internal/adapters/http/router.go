package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/benefit-finder/internal/config"
	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/core/ports"
	"github.com/kirillkom/benefit-finder/internal/observability/metrics"
)

const (
	serviceName      = "api"
	maxImportBytes   = 64 << 20
	backpressureWait = 250 * time.Millisecond
)

type Router struct {
	cfg      config.Config
	searcher ports.BenefitSearcher
	reader   ports.BenefitReader
	importer ports.BenefitImporter
	metrics  *metrics.HTTPServerMetrics
}

// NewRouter wires the HTTP surface. importer and httpMetrics may be nil.
func NewRouter(
	cfg config.Config,
	searcher ports.BenefitSearcher,
	reader ports.BenefitReader,
	importer ports.BenefitImporter,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		searcher: searcher,
		reader:   reader,
		importer: importer,
		metrics:  httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/benefits/search", rt.searchBenefits)
	api.HandleFunc("GET /v1/benefits/{service_id}", rt.getBenefit)
	if rt.importer != nil {
		api.HandleFunc("POST /v1/benefits/import", rt.importBenefits)
	}

	var guarded http.Handler = openAPIValidationMiddleware(api)
	guarded = backpressureMiddleware(guarded, rt.cfg.APIMaxInFlight, backpressureWait)
	guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(slog.Default(), handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) searchBenefits(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, r, http.StatusBadRequest, "question is required")
		return
	}

	ctx := r.Context()
	if rt.cfg.APIRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.cfg.APIRequestTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := rt.searcher.Search(ctx, req)
	if err != nil {
		rt.writeDomainError(w, r, "search", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(serviceName, "search", len(result.Ranked), result.Degraded, time.Since(start))
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getBenefit(w http.ResponseWriter, r *http.Request) {
	var serviceID string
	err := runtime.BindStyledParameterWithOptions("simple", "service_id", r.PathValue("service_id"), &serviceID, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid service_id: "+err.Error())
		return
	}

	benefit, err := rt.reader.GetByServiceID(r.Context(), serviceID)
	if err != nil {
		rt.writeDomainError(w, r, "get benefit", err)
		return
	}
	writeJSON(w, http.StatusOK, benefit)
}

func (rt *Router) importBenefits(w http.ResponseWriter, r *http.Request) {
	body, closeBody, err := importBody(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	defer closeBody()

	report, err := rt.importer.Import(r.Context(), body)
	if err != nil {
		rt.writeDomainError(w, r, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// importBody accepts a multipart "file" field or the raw request body.
func importBody(w http.ResponseWriter, r *http.Request) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, nil, errors.New("multipart field 'file' is required")
		}
		return file, func() { _ = file.Close() }, nil
	}
	return r.Body, func() {}, nil
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"operation", operation,
			"error", err,
		)
	}
	writeError(w, r, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestIDFromContext(r.Context()),
	})
}
