package services

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/soaringjerry/surveyd/internal/models"
)

// UpdateSurveyCommand carries a partial update. Nil fields are left as stored.
type UpdateSurveyCommand struct {
	Title       *string
	Description *string
	Questions   *[]models.Question
	IsActive    *bool
}

// TokenSigner issues an admin token scoped to a survey.
type TokenSigner func(surveyID string) (string, error)

// LifecycleManager runs the password-gated operations on an existing survey.
type LifecycleManager struct {
	surveys   SurveyStore
	responses ResponseStore
	guard     *PasswordGuard
	sign      TokenSigner
	audit     *AuditLog
	logger    *slog.Logger
	now       func() time.Time
}

func NewLifecycleManager(store Store, guard *PasswordGuard, sign TokenSigner, logger *slog.Logger) *LifecycleManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleManager{
		surveys:   store,
		responses: store,
		guard:     guard,
		sign:      sign,
		audit:     NewAuditLog(logger),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Update merges cmd into the stored survey after authorizing cred. On any
// failure the stored survey is left untouched.
func (m *LifecycleManager) Update(ctx context.Context, id string, cmd UpdateSurveyCommand, cred Credential) (*models.Survey, error) {
	sv, err := loadSurvey(ctx, m.surveys, m.logger, id)
	if err != nil {
		return nil, err
	}
	grant, err := m.guard.Authorize(ctx, sv.ID, sv.PasswordHash, cred)
	if err != nil {
		return nil, err
	}

	next := sv.Clone()
	var bad fieldErrors
	if cmd.Title != nil {
		next.Title = strings.TrimSpace(*cmd.Title)
		if next.Title == "" {
			bad.add("title")
		}
	}
	if cmd.Description != nil {
		next.Description = strings.TrimSpace(*cmd.Description)
		if next.Description == "" {
			bad.add("description")
		}
	}
	if cmd.Questions != nil {
		existing := make(map[string]bool, len(sv.Questions))
		for _, q := range sv.Questions {
			existing[q.ID] = true
		}
		questions, qbad := normalizeQuestions(*cmd.Questions, existing)
		bad = append(bad, qbad...)
		next.Questions = questions
	}
	if cmd.IsActive != nil {
		next.IsActive = *cmd.IsActive
	}
	if err := bad.err("missing or invalid fields"); err != nil {
		return nil, err
	}

	next.UpdatedAt = m.now()
	ok, err := m.surveys.ReplaceSurvey(ctx, next)
	if err != nil {
		m.logger.ErrorContext(ctx, "replace survey", "survey_id", id, "error", err)
		return nil, NewPersistenceError("update survey", err)
	}
	if !ok {
		return nil, NewNotFoundError(msgSurveyNotFound)
	}
	m.audit.Record(ctx, AuditEntry{Time: next.UpdatedAt, Actor: string(grant), Action: "survey.update", Target: id})
	return next.Sanitized(), nil
}

// Delete removes the survey and then its responses. The two deletes are not
// atomic: if the second fails the survey is still gone and the leftover
// responses are reclaimed by the orphan sweeper.
func (m *LifecycleManager) Delete(ctx context.Context, id string, cred Credential) error {
	sv, err := loadSurvey(ctx, m.surveys, m.logger, id)
	if err != nil {
		return err
	}
	grant, err := m.guard.Authorize(ctx, sv.ID, sv.PasswordHash, cred)
	if err != nil {
		return err
	}
	ok, err := m.surveys.DeleteSurvey(ctx, id)
	if err != nil {
		m.logger.ErrorContext(ctx, "delete survey", "survey_id", id, "error", err)
		return NewPersistenceError("delete survey", err)
	}
	if !ok {
		return NewNotFoundError(msgSurveyNotFound)
	}
	n, err := m.responses.DeleteResponses(ctx, id)
	if err != nil {
		m.logger.WarnContext(ctx, "survey deleted but responses remain", "survey_id", id, "error", err)
	}
	m.audit.Record(ctx, AuditEntry{Time: m.now(), Actor: string(grant), Action: "survey.delete", Target: id, Note: pluralize(n, "response")})
	return nil
}

// Verify checks the survey password and returns an admin token for it.
func (m *LifecycleManager) Verify(ctx context.Context, id, password string) (string, error) {
	sv, err := loadSurvey(ctx, m.surveys, m.logger, id)
	if err != nil {
		return "", err
	}
	if _, err := m.guard.Authorize(ctx, sv.ID, sv.PasswordHash, Credential{Password: password}); err != nil {
		return "", err
	}
	if m.sign == nil {
		return "", nil
	}
	tok, err := m.sign(sv.ID)
	if err != nil {
		m.logger.ErrorContext(ctx, "sign admin token", "survey_id", id, "error", err)
		return "", err
	}
	return tok, nil
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
