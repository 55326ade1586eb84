package db

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/soaringjerry/surveyd/internal/models"
)

// MemoryStore keeps everything in process memory. Documents are copied on
// the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	surveys   map[string]*models.Survey
	responses map[string][]*models.Response
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		surveys:   map[string]*models.Survey{},
		responses: map[string][]*models.Response{},
	}
}

var errDuplicateID = errors.New("duplicate id")

func (s *MemoryStore) InsertSurvey(_ context.Context, sv *models.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.surveys[sv.ID]; ok {
		return errDuplicateID
	}
	s.surveys[sv.ID] = sv.Clone()
	return nil
}

func (s *MemoryStore) GetSurvey(_ context.Context, id string) (*models.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sv, ok := s.surveys[id]
	if !ok {
		return nil, nil
	}
	return sv.Clone(), nil
}

func (s *MemoryStore) ListSurveys(_ context.Context, includeInactive bool) ([]*models.Survey, error) {
	s.mu.RLock()
	out := make([]*models.Survey, 0, len(s.surveys))
	for _, sv := range s.surveys {
		if includeInactive || sv.IsActive {
			out = append(out, sv.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ReplaceSurvey(_ context.Context, sv *models.Survey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.surveys[sv.ID]; !ok {
		return false, nil
	}
	s.surveys[sv.ID] = sv.Clone()
	return true, nil
}

func (s *MemoryStore) DeleteSurvey(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.surveys[id]; !ok {
		return false, nil
	}
	delete(s.surveys, id)
	return true, nil
}

func (s *MemoryStore) InsertResponse(_ context.Context, r *models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[r.SurveyID] = append(s.responses[r.SurveyID], r.Clone())
	return nil
}

func (s *MemoryStore) ListResponses(_ context.Context, surveyID string) ([]*models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.responses[surveyID]
	out := make([]*models.Response, len(list))
	for i, r := range list {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *MemoryStore) DeleteResponses(_ context.Context, surveyID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.responses[surveyID])
	delete(s.responses, surveyID)
	return n, nil
}

func (s *MemoryStore) ResponseSurveyIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.responses))
	for id, list := range s.responses {
		if len(list) > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
