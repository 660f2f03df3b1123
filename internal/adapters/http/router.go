package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mhxia/finsight/internal/config"
	"github.com/mhxia/finsight/internal/core/domain"
	"github.com/mhxia/finsight/internal/core/ports"
	"github.com/mhxia/finsight/internal/observability/metrics"
)

type Router struct {
	cfg config.Config

	ingest     ports.ReportIngestor
	retriever  ports.ContextRetriever
	query      ports.ReportQueryService
	indicators ports.IndicatorRetriever
	reports    ports.ReportReader
	jobs       ports.JobStore
	admin      ports.IndexAdmin

	httpMetrics *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingest ports.ReportIngestor,
	retriever ports.ContextRetriever,
	query ports.ReportQueryService,
	indicators ports.IndicatorRetriever,
	reports ports.ReportReader,
	jobs ports.JobStore,
	admin ports.IndexAdmin,
) *Router {
	return &Router{
		cfg:         cfg,
		ingest:      ingest,
		retriever:   retriever,
		query:       query,
		indicators:  indicators,
		reports:     reports,
		jobs:        jobs,
		admin:       admin,
		httpMetrics: metrics.NewHTTPServerMetrics("api"),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.httpMetrics.Handler())
	mux.HandleFunc("/v1/reports", rt.reportsCollection)
	mux.HandleFunc("/v1/reports/", rt.reportsItem)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/query", rt.answerQuestion)
	mux.HandleFunc("/v1/indicators", rt.retrieveIndicators)
	mux.HandleFunc("/v1/index/stats", rt.indexStats)

	// Zero-valued limits disable the corresponding gate.
	var handler http.Handler = mux
	if rt.cfg.APIMaxInflight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInflight, backpressureWait)
	}
	if rt.cfg.APIRateLimitRPS > 0 && rt.cfg.APIRateLimitBurst > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	handler = rt.httpMetrics.Middleware("api", handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) reportsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadReport(w, r)
	case http.MethodGet:
		rt.listReports(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadReport(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	report, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, report)
}

func (rt *Router) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := rt.reports.List(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// reportsItem dispatches /v1/reports/{id} and /v1/reports/{id}/jobs.
func (rt *Router) reportsItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/reports/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "report id is required"})
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		rt.getReport(w, r, id)
	case sub == "" && r.Method == http.MethodDelete:
		rt.deleteReport(w, r, id)
	case sub == "jobs" && r.Method == http.MethodGet:
		rt.listReportJobs(w, r, id)
	case sub == "" || sub == "jobs":
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request, id string) {
	report, err := rt.reports.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) deleteReport(w http.ResponseWriter, r *http.Request, id string) {
	if err := rt.admin.RemoveReport(r.Context(), id); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listReportJobs(w http.ResponseWriter, r *http.Request, id string) {
	jobs, err := rt.jobs.ListJobsByReport(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query    string               `json:"query"`
		TopK     int                  `json:"top_k"`
		Strategy string               `json:"strategy"`
		Filter   domain.ContextFilter `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = rt.cfg.RetrieveTopK
	}

	start := time.Now()
	strategy := domain.NormalizeStrategy(req.Strategy)
	candidates := rt.retriever.Retrieve(r.Context(), req.Query, domain.RetrieveOptions{
		TopK:     req.TopK,
		Strategy: strategy,
		Filter:   req.Filter,
	})
	rt.httpMetrics.RecordRetrievalObservation("api", "retrieve", len(candidates), time.Since(start))
	rt.httpMetrics.RecordRetrievalStrategy("api", "retrieve", resolvedStrategy(strategy, candidates))

	writeJSON(w, http.StatusOK, map[string]any{"results": candidates})
}

func (rt *Router) answerQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string               `json:"question"`
		TopK     int                  `json:"top_k"`
		Filter   domain.ContextFilter `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = rt.cfg.RetrieveTopK
	}

	start := time.Now()
	answer, err := rt.query.Answer(r.Context(), req.Question, req.TopK, req.Filter)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	rt.httpMetrics.RecordRetrievalObservation("api", "query", len(answer.Sources), time.Since(start))

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) retrieveIndicators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Indicators []string             `json:"indicators"`
		Filter     domain.ContextFilter `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	results, err := rt.indicators.RetrieveIndicators(r.Context(), req.Indicators, req.Filter)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) indexStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.retriever.Stats(r.Context()))
}

// resolvedStrategy reports the strategy that actually served the request.
// auto resolves per candidate, so read it off the first result.
func resolvedStrategy(requested domain.Strategy, candidates []domain.ScoredCandidate) string {
	if requested != domain.StrategyAuto {
		return string(requested)
	}
	if len(candidates) > 0 {
		return string(candidates[0].Strategy)
	}
	return string(requested)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
