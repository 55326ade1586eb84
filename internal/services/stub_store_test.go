package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/surveyd/internal/models"
)

var errStoreDown = errors.New("store down")

// stubStore keeps documents in maps. The fail* fields inject errors into
// individual operations.
type stubStore struct {
	surveys   map[string]*models.Survey
	responses []*models.Response

	failInsertSurvey   bool
	failList           bool
	failReplace        bool
	failDeleteResp     bool
	failInsertResponse bool
	replaceMisses      bool
}

func newStubStore() *stubStore {
	return &stubStore{surveys: map[string]*models.Survey{}}
}

func (s *stubStore) InsertSurvey(_ context.Context, sv *models.Survey) error {
	if s.failInsertSurvey {
		return errStoreDown
	}
	s.surveys[sv.ID] = sv.Clone()
	return nil
}

func (s *stubStore) GetSurvey(_ context.Context, id string) (*models.Survey, error) {
	sv, ok := s.surveys[id]
	if !ok {
		return nil, nil
	}
	return sv.Clone(), nil
}

func (s *stubStore) ListSurveys(_ context.Context, includeInactive bool) ([]*models.Survey, error) {
	if s.failList {
		return nil, errStoreDown
	}
	out := []*models.Survey{}
	for _, sv := range s.surveys {
		if includeInactive || sv.IsActive {
			out = append(out, sv.Clone())
		}
	}
	return out, nil
}

func (s *stubStore) ReplaceSurvey(_ context.Context, sv *models.Survey) (bool, error) {
	if s.failReplace {
		return false, errStoreDown
	}
	if _, ok := s.surveys[sv.ID]; !ok || s.replaceMisses {
		return false, nil
	}
	s.surveys[sv.ID] = sv.Clone()
	return true, nil
}

func (s *stubStore) DeleteSurvey(_ context.Context, id string) (bool, error) {
	if _, ok := s.surveys[id]; !ok {
		return false, nil
	}
	delete(s.surveys, id)
	return true, nil
}

func (s *stubStore) InsertResponse(_ context.Context, r *models.Response) error {
	if s.failInsertResponse {
		return errStoreDown
	}
	s.responses = append(s.responses, r.Clone())
	return nil
}

func (s *stubStore) ListResponses(_ context.Context, surveyID string) ([]*models.Response, error) {
	out := []*models.Response{}
	for _, r := range s.responses {
		if r.SurveyID == surveyID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *stubStore) DeleteResponses(_ context.Context, surveyID string) (int, error) {
	if s.failDeleteResp {
		return 0, errStoreDown
	}
	kept := s.responses[:0]
	n := 0
	for _, r := range s.responses {
		if r.SurveyID == surveyID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.responses = kept
	return n, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

var fixedNow = time.Date(2025, 9, 17, 12, 0, 0, 0, time.UTC)

// seedSurvey stores an active survey guarded by password "pw".
func seedSurvey(store *stubStore, g *PasswordGuard, questions ...models.Question) *models.Survey {
	hash, err := g.Hash("pw")
	if err != nil {
		panic(err)
	}
	sv := &models.Survey{
		ID:           uuid.NewString(),
		Title:        "Lunch",
		Description:  "What should we eat",
		Questions:    questions,
		IsActive:     true,
		PasswordHash: hash,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}
	store.surveys[sv.ID] = sv
	return sv
}

func choiceQ(id string, required bool, opts ...string) models.Question {
	return models.Question{ID: id, Text: "Pick " + id, Type: models.QuestionMultipleChoice, Options: opts, Required: required}
}

func scaleQ(id string, required bool) models.Question {
	return models.Question{ID: id, Text: "Rate " + id, Type: models.QuestionScale, Required: required}
}

func textQ(id string, required bool) models.Question {
	return models.Question{ID: id, Text: "Describe " + id, Type: models.QuestionText, Required: required}
}
