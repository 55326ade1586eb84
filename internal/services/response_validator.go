package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/surveyd/internal/models"
)

// RawAnswer is an inbound answer whose value has not been decoded yet. The
// value's shape depends on the question it answers.
type RawAnswer struct {
	QuestionID string
	Value      json.RawMessage
}

// SubmitResponseCommand transports the parsed request into the validator.
type SubmitResponseCommand struct {
	SurveyID       string
	RespondentInfo map[string]string
	Answers        []RawAnswer
}

// ResponseValidator checks a submission against its survey and persists it.
type ResponseValidator struct {
	surveys     SurveyStore
	responses   ResponseStore
	logger      *slog.Logger
	now         func() time.Time
	idGenerator func() string
}

func NewResponseValidator(store Store, logger *slog.Logger) *ResponseValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseValidator{
		surveys:     store,
		responses:   store,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: uuid.NewString,
	}
}

// Submit validates cmd and stores the response. Checks run in order: the
// survey must exist, be active, every answer must decode for its question
// type and every required question must be answered.
func (v *ResponseValidator) Submit(ctx context.Context, cmd SubmitResponseCommand) (*models.Response, error) {
	sv, err := loadSurvey(ctx, v.surveys, v.logger, cmd.SurveyID)
	if err != nil {
		return nil, err
	}
	if !sv.IsActive {
		return nil, NewInactiveError(msgSurveyInactive)
	}

	answers, err := decodeAnswers(sv, cmd.Answers)
	if err != nil {
		return nil, err
	}
	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		answered[a.QuestionID] = true
	}
	var missing []string
	for _, q := range sv.Questions {
		if q.Required && !answered[q.ID] {
			missing = append(missing, q.ID)
		}
	}
	if len(missing) > 0 {
		return nil, NewInvalidError("missing required answers: "+strings.Join(missing, ", "), missing...)
	}

	resp := &models.Response{
		ID:             v.idGenerator(),
		SurveyID:       sv.ID,
		RespondentInfo: cleanRespondentInfo(cmd.RespondentInfo),
		Answers:        answers,
		CreatedAt:      v.now(),
	}
	if err := v.responses.InsertResponse(ctx, resp); err != nil {
		v.logger.ErrorContext(ctx, "insert response", "survey_id", sv.ID, "error", err)
		return nil, NewPersistenceError("store response", err)
	}
	v.logger.InfoContext(ctx, "response stored", "survey_id", sv.ID, "response_id", resp.ID, "answers", len(resp.Answers))
	return resp, nil
}

// decodeAnswers turns raw answers into typed values. Answers to unknown
// questions, repeated answers to the same question and empty values are
// dropped; values of the wrong shape fail the whole submission.
func decodeAnswers(sv *models.Survey, raw []RawAnswer) ([]models.Answer, error) {
	out := make([]models.Answer, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	var bad fieldErrors
	for _, ra := range raw {
		qid := strings.TrimSpace(ra.QuestionID)
		q, ok := sv.Question(qid)
		if !ok || seen[qid] {
			continue
		}
		seen[qid] = true
		val, err := models.DecodeAnswerValue(q.Type, ra.Value)
		if errors.Is(err, models.ErrNoValue) {
			continue
		}
		if err != nil {
			bad.add(qid)
			continue
		}
		if val.Empty() {
			continue
		}
		if val.Kind == models.AnswerChoice || val.Kind == models.AnswerMultiChoice {
			val = trimChoices(val)
		}
		out = append(out, models.Answer{QuestionID: qid, Value: val})
	}
	if err := bad.err("invalid answer values"); err != nil {
		return nil, err
	}
	return out, nil
}

func trimChoices(v models.AnswerValue) models.AnswerValue {
	if v.Kind == models.AnswerChoice {
		v.Text = strings.TrimSpace(v.Text)
		return v
	}
	out := make([]string, 0, len(v.Choices))
	seen := make(map[string]bool, len(v.Choices))
	for _, c := range v.Choices {
		if c = strings.TrimSpace(c); c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	v.Choices = out
	return v
}

func cleanRespondentInfo(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
