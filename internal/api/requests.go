package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/soaringjerry/surveyd/internal/middleware"
	"github.com/soaringjerry/surveyd/internal/models"
	"github.com/soaringjerry/surveyd/internal/services"
)

const maxBodyBytes = 1 << 20

// requestError reports a body that could not be parsed at all. Field-level
// problems are left to the services.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

type surveyBody struct {
	Title            *string            `json:"title"`
	Description      *string            `json:"description"`
	Questions        *[]models.Question `json:"questions"`
	IsActive         *bool              `json:"isActive"`
	CreationPassword string             `json:"creationPassword"`
	Password         string             `json:"password"`
}

type passwordBody struct {
	Password string `json:"password"`
}

type answerBody struct {
	QuestionID string          `json:"questionId"`
	Value      json.RawMessage `json:"value"`
}

type responseBody struct {
	RespondentInfo map[string]json.RawMessage `json:"respondentInfo"`
	Answers        []answerBody               `json:"answers"`
}

// decodeBody reads a JSON object from the request. An empty body is
// accepted when allowEmpty is set and leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF) && allowEmpty:
			return nil
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		case errors.As(err, &tooBig):
			return badRequest("request body exceeds %d bytes", tooBig.Limit)
		default:
			return badRequest("invalid JSON: %v", err)
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// credential collects the caller's proof of ownership. A password may come
// from the body, the X-Survey-Password header or the password query
// parameter; a token from the Authorization header.
func credential(r *http.Request, bodyPassword string) services.Credential {
	pw := bodyPassword
	if pw == "" {
		pw = r.Header.Get("X-Survey-Password")
	}
	if pw == "" {
		pw = r.URL.Query().Get("password")
	}
	return services.Credential{Password: pw, Token: middleware.BearerFromContext(r.Context())}
}

func parseCreate(w http.ResponseWriter, r *http.Request) (services.CreateSurveyCommand, error) {
	var body surveyBody
	if err := decodeBody(w, r, &body, false); err != nil {
		return services.CreateSurveyCommand{}, err
	}
	cmd := services.CreateSurveyCommand{
		CreationPassword: body.CreationPassword,
		IsActive:         body.IsActive,
	}
	if cmd.CreationPassword == "" {
		cmd.CreationPassword = body.Password
	}
	if body.Title != nil {
		cmd.Title = *body.Title
	}
	if body.Description != nil {
		cmd.Description = *body.Description
	}
	if body.Questions != nil {
		cmd.Questions = *body.Questions
	}
	return cmd, nil
}

func parseUpdate(w http.ResponseWriter, r *http.Request) (services.UpdateSurveyCommand, services.Credential, error) {
	var body surveyBody
	if err := decodeBody(w, r, &body, false); err != nil {
		return services.UpdateSurveyCommand{}, services.Credential{}, err
	}
	cmd := services.UpdateSurveyCommand{
		Title:       body.Title,
		Description: body.Description,
		Questions:   body.Questions,
		IsActive:    body.IsActive,
	}
	return cmd, credential(r, body.Password), nil
}

// parsePassword reads the optional {password} body of delete and verify.
func parsePassword(w http.ResponseWriter, r *http.Request) (services.Credential, error) {
	var body passwordBody
	if err := decodeBody(w, r, &body, true); err != nil {
		return services.Credential{}, err
	}
	return credential(r, body.Password), nil
}

func parseSubmit(w http.ResponseWriter, r *http.Request, surveyID string) (services.SubmitResponseCommand, error) {
	var body responseBody
	if err := decodeBody(w, r, &body, false); err != nil {
		return services.SubmitResponseCommand{}, err
	}
	cmd := services.SubmitResponseCommand{
		SurveyID:       surveyID,
		RespondentInfo: stringifyInfo(body.RespondentInfo),
		Answers:        make([]services.RawAnswer, 0, len(body.Answers)),
	}
	for _, a := range body.Answers {
		cmd.Answers = append(cmd.Answers, services.RawAnswer{QuestionID: a.QuestionID, Value: a.Value})
	}
	return cmd, nil
}

// stringifyInfo flattens respondent info to strings. Scalars keep their
// textual form, nulls are dropped and nested values stay as compact JSON.
func stringifyInfo(in map[string]json.RawMessage) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, raw := range in {
		v := strings.TrimSpace(string(raw))
		switch {
		case v == "" || v == "null":
			continue
		case v[0] == '"':
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				out[k] = s
			}
		case v == "true" || v == "false":
			b, _ := strconv.ParseBool(v)
			out[k] = strconv.FormatBool(b)
		default:
			var buf bytes.Buffer
			if err := json.Compact(&buf, raw); err == nil {
				out[k] = buf.String()
			}
		}
	}
	return out
}

func queryBool(r *http.Request, key string) bool {
	b, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && b
}
