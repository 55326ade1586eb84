package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/surveyd/internal/models"
)

// CreateSurveyCommand is the typed input of SurveyRepository.Create.
type CreateSurveyCommand struct {
	Title            string
	Description      string
	Questions        []models.Question
	CreationPassword string
	IsActive         *bool
}

// SurveyRepository creates and reads surveys. It owns id and timestamp
// assignment.
type SurveyRepository struct {
	store       SurveyStore
	guard       *PasswordGuard
	logger      *slog.Logger
	now         func() time.Time
	idGenerator func() string
}

func NewSurveyRepository(store SurveyStore, guard *PasswordGuard, logger *slog.Logger) *SurveyRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SurveyRepository{
		store:       store,
		guard:       guard,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: uuid.NewString,
	}
}

func (s *SurveyRepository) Create(ctx context.Context, cmd CreateSurveyCommand) (*models.Survey, error) {
	var bad fieldErrors
	if strings.TrimSpace(cmd.Title) == "" {
		bad.add("title")
	}
	if strings.TrimSpace(cmd.Description) == "" {
		bad.add("description")
	}
	questions, qbad := normalizeQuestions(cmd.Questions, nil)
	bad = append(bad, qbad...)
	if cmd.CreationPassword == "" || len(cmd.CreationPassword) > maxPasswordBytes {
		bad.add("creationPassword")
	}
	if err := bad.err("missing or invalid fields"); err != nil {
		return nil, err
	}

	hash, err := s.guard.Hash(cmd.CreationPassword)
	if err != nil {
		if _, ok := AsServiceError(err); ok {
			return nil, NewInvalidError("invalid creationPassword", "creationPassword")
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	active := true
	if cmd.IsActive != nil {
		active = *cmd.IsActive
	}
	sv := &models.Survey{
		ID:           s.idGenerator(),
		Title:        strings.TrimSpace(cmd.Title),
		Description:  strings.TrimSpace(cmd.Description),
		Questions:    questions,
		IsActive:     active,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.InsertSurvey(ctx, sv); err != nil {
		s.logger.ErrorContext(ctx, "insert survey", "error", err)
		return nil, NewPersistenceError("create survey", err)
	}
	s.logger.InfoContext(ctx, "survey created", "survey_id", sv.ID, "questions", len(sv.Questions))
	return sv.Sanitized(), nil
}

// Get returns the sanitized survey with the given id.
func (s *SurveyRepository) Get(ctx context.Context, id string) (*models.Survey, error) {
	sv, err := loadSurvey(ctx, s.store, s.logger, id)
	if err != nil {
		return nil, err
	}
	return sv.Sanitized(), nil
}

// List returns sanitized surveys ordered by creation time, newest first.
func (s *SurveyRepository) List(ctx context.Context, includeInactive bool) ([]*models.Survey, error) {
	list, err := s.store.ListSurveys(ctx, includeInactive)
	if err != nil {
		s.logger.ErrorContext(ctx, "list surveys", "error", err)
		return nil, NewPersistenceError("list surveys", err)
	}
	out := make([]*models.Survey, 0, len(list))
	for _, sv := range list {
		if !includeInactive && !sv.IsActive {
			continue
		}
		out = append(out, sv.Sanitized())
	}
	sortNewestFirst(out)
	return out, nil
}

// loadSurvey fetches the stored survey, hash included. Ids that cannot have
// been issued by this service are reported as not found without a lookup.
func loadSurvey(ctx context.Context, store SurveyStore, logger *slog.Logger, id string) (*models.Survey, error) {
	if !validSurveyID(id) {
		return nil, NewNotFoundError(msgSurveyNotFound)
	}
	sv, err := store.GetSurvey(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "get survey", "survey_id", id, "error", err)
		return nil, NewPersistenceError("load survey", err)
	}
	if sv == nil {
		return nil, NewNotFoundError(msgSurveyNotFound)
	}
	return sv, nil
}

func validSurveyID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// normalizeQuestions trims and validates questions, assigning ids to those
// without one. existing holds ids already in use by the survey being updated.
func normalizeQuestions(in []models.Question, existing map[string]bool) ([]models.Question, fieldErrors) {
	var bad fieldErrors
	if len(in) == 0 {
		bad.add("questions")
		return nil, bad
	}
	out := make([]models.Question, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, q := range in {
		prefix := fmt.Sprintf("questions[%d]", i)
		q.ID = strings.TrimSpace(q.ID)
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			bad.add(prefix + ".text")
		}
		if !q.Type.Valid() {
			bad.add(prefix + ".type")
		}
		if q.Type == models.QuestionMultipleChoice {
			opts := make([]string, 0, len(q.Options))
			dup := make(map[string]bool, len(q.Options))
			for _, o := range q.Options {
				if o = strings.TrimSpace(o); o != "" && !dup[o] {
					dup[o] = true
					opts = append(opts, o)
				}
			}
			if len(opts) == 0 {
				bad.add(prefix + ".options")
			}
			q.Options = opts
		} else {
			q.Options = nil
		}
		if q.Type != models.QuestionScale {
			q.ReverseScored = false
		}
		if q.ID != "" {
			if seen[q.ID] {
				bad.add(prefix + ".id")
			}
			seen[q.ID] = true
		}
		out = append(out, q)
	}
	for i := range out {
		if out[i].ID != "" {
			continue
		}
		id := shortID(8)
		for seen[id] || existing[id] {
			id = shortID(8)
		}
		seen[id] = true
		out[i].ID = id
	}
	return out, bad
}

func shortID(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > 0 && n < len(s) {
		return s[:n]
	}
	return s
}

func sortNewestFirst(list []*models.Survey) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
