// Package api exposes the survey services over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/soaringjerry/surveyd/internal/middleware"
	"github.com/soaringjerry/surveyd/internal/services"
)

// SummaryCache is implemented by the summarizer; deleted surveys are evicted.
type SummaryCache interface {
	Forget(surveyID string)
}

// Deps wires the router. Summaries, SubmitLimiter and Ping are optional.
type Deps struct {
	Surveys   *services.SurveyRepository
	Lifecycle *services.LifecycleManager
	Responses *services.ResponseValidator
	Stats     *services.StatisticsAggregator
	Exporter  *services.Exporter

	Summaries     SummaryCache
	SubmitLimiter *middleware.IPRateLimiter
	Ping          func(ctx context.Context) error
	Logger        *slog.Logger

	Commit    string
	BuildTime string
}

type Router struct {
	Deps
	logger *slog.Logger
}

func NewRouter(d Deps) *Router {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{Deps: d, logger: logger.With("component", "api")}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /surveys", rt.handleListSurveys)
	mux.HandleFunc("POST /surveys", rt.handleCreateSurvey)
	mux.HandleFunc("GET /surveys/{id}", rt.handleGetSurvey)
	mux.HandleFunc("PUT /surveys/{id}", rt.handleUpdateSurvey)
	mux.HandleFunc("DELETE /surveys/{id}", rt.handleDeleteSurvey)
	mux.Handle("POST /surveys/{id}/responses", rt.limitSubmissions(http.HandlerFunc(rt.handleSubmitResponse)))
	mux.HandleFunc("GET /surveys/{id}/results", rt.handleResults)
	mux.HandleFunc("GET /surveys/{id}/export", rt.handleExport)
	mux.HandleFunc("POST /surveys/{id}/verify", rt.handleVerify)
	mux.HandleFunc("GET /health", rt.handleHealth)
	mux.HandleFunc("GET /version", rt.handleVersion)
}

func (rt *Router) limitSubmissions(next http.Handler) http.Handler {
	if rt.SubmitLimiter == nil {
		return next
	}
	return rt.SubmitLimiter.Wrap(next, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, envelope{
			Message: localized(r, "error.rate_limit"),
			Error:   "rate limited",
		})
	})
}
