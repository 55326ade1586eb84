package api

import (
	"net/http"

	"github.com/soaringjerry/surveyd/internal/middleware"
	"github.com/soaringjerry/surveyd/internal/models"
	"github.com/soaringjerry/surveyd/internal/services"
	"github.com/soaringjerry/surveyd/internal/utils"
)

func localized(r *http.Request, key string) string {
	return utils.T(middleware.LocaleFromContext(r.Context()), key)
}

// GET /surveys?includeInactive=bool
//
// A storage outage degrades to an empty list flagged as a fallback so that
// listing pages keep rendering.
func (rt *Router) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	list, err := rt.Surveys.List(r.Context(), queryBool(r, "includeInactive"))
	if err != nil {
		if services.IsCode(err, services.ErrorPersistence) {
			rt.logger.WarnContext(r.Context(), "serving survey list fallback", "error", err)
			writeJSON(w, http.StatusOK, envelope{
				Success:  true,
				Data:     []*models.Survey{},
				Message:  localized(r, "list.fallback"),
				Fallback: true,
			})
			return
		}
		rt.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Survey{}
	}
	writeOK(w, r, http.StatusOK, list, "")
}

// POST /surveys
func (rt *Router) handleCreateSurvey(w http.ResponseWriter, r *http.Request) {
	cmd, err := parseCreate(w, r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	sv, err := rt.Surveys.Create(r.Context(), cmd)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusCreated, sv, "survey.created")
}

// GET /surveys/{id}
func (rt *Router) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	sv, err := rt.Surveys.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, sv, "")
}

// PUT /surveys/{id}
func (rt *Router) handleUpdateSurvey(w http.ResponseWriter, r *http.Request) {
	cmd, cred, err := parseUpdate(w, r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	sv, err := rt.Lifecycle.Update(r.Context(), r.PathValue("id"), cmd, cred)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, sv, "survey.updated")
}

// DELETE /surveys/{id}
func (rt *Router) handleDeleteSurvey(w http.ResponseWriter, r *http.Request) {
	cred, err := parsePassword(w, r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := rt.Lifecycle.Delete(r.Context(), id, cred); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.Summaries != nil {
		rt.Summaries.Forget(id)
	}
	writeOK(w, r, http.StatusOK, nil, "survey.deleted")
}

// POST /surveys/{id}/responses
func (rt *Router) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	cmd, err := parseSubmit(w, r, r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	resp, err := rt.Responses.Submit(r.Context(), cmd)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusCreated, map[string]string{"responseId": resp.ID}, "response.recorded")
}

// GET /surveys/{id}/results?password=&includeRaw=
//
// Supplying any credential asks for raw responses; a wrong one is refused
// rather than silently downgraded to aggregates.
func (rt *Router) handleResults(w http.ResponseWriter, r *http.Request) {
	cred := credential(r, "")
	q := services.ResultsQuery{
		IncludeRaw: !cred.Empty() || queryBool(r, "includeRaw"),
		Credential: cred,
	}
	res, err := rt.Stats.Results(r.Context(), r.PathValue("id"), q)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, res, "")
}

// GET /surveys/{id}/export?format=long|wide
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = services.ExportLong
	}
	res, err := rt.Exporter.ExportCSV(r.Context(), services.ExportParams{
		SurveyID:   r.PathValue("id"),
		Format:     format,
		Credential: credential(r, ""),
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		rt.logger.WarnContext(r.Context(), "write export", "error", err)
	}
}

// POST /surveys/{id}/verify
func (rt *Router) handleVerify(w http.ResponseWriter, r *http.Request) {
	cred, err := parsePassword(w, r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	tok, err := rt.Lifecycle.Verify(r.Context(), r.PathValue("id"), cred.Password)
	if se, ok := services.AsServiceError(err); ok && se.Code == services.ErrorForbidden {
		// wrong password reports success=false with 200
		writeJSON(w, http.StatusOK, envelope{Message: localized(r, "verify.failed"), Error: se.Message})
		return
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var data any
	if tok != "" {
		data = map[string]string{"token": tok}
	}
	writeOK(w, r, http.StatusOK, data, "verify.ok")
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	data := map[string]any{
		"name":       "surveyd",
		"locale":     locale,
		"commit":     rt.Commit,
		"build_time": rt.BuildTime,
		"store":      "ok",
	}
	if rt.Ping != nil {
		if err := rt.Ping(r.Context()); err != nil {
			rt.logger.WarnContext(r.Context(), "health check: store unreachable", "error", err)
			data["store"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, envelope{Data: data, Message: localized(r, "error.persistence")})
			return
		}
	}
	writeOK(w, r, http.StatusOK, data, "health.ok")
}

func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeOK(w, r, http.StatusOK, map[string]string{"commit": rt.Commit, "build_time": rt.BuildTime}, "")
}
