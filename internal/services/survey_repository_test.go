package services

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/soaringjerry/surveyd/internal/models"
)

func newTestRepository(store *stubStore) *SurveyRepository {
	repo := NewSurveyRepository(store, testGuard(), quietLogger())
	repo.now = func() time.Time { return fixedNow }
	return repo
}

func TestSurveyRepositoryCreate(t *testing.T) {
	store := newStubStore()
	repo := newTestRepository(store)

	sv, err := repo.Create(context.Background(), CreateSurveyCommand{
		Title:       " Lunch ",
		Description: "Team lunch poll",
		Questions: []models.Question{
			{Text: "Where?", Type: models.QuestionMultipleChoice, Options: []string{"A", " ", "B"}, Required: true},
			{ID: "mood", Text: "Mood", Type: models.QuestionScale},
			{Text: "Anything else?", Type: models.QuestionText, Options: []string{"ignored"}},
		},
		CreationPassword: "pw",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sv.PasswordHash != "" {
		t.Fatalf("returned survey carries the password hash")
	}
	if !validSurveyID(sv.ID) {
		t.Fatalf("expected uuid id, got %q", sv.ID)
	}
	if !sv.IsActive || !sv.CreatedAt.Equal(fixedNow) || !sv.UpdatedAt.Equal(sv.CreatedAt) {
		t.Fatalf("unexpected defaults: %+v", sv)
	}
	if sv.Title != "Lunch" {
		t.Fatalf("title not trimmed: %q", sv.Title)
	}
	ids := map[string]bool{}
	for _, q := range sv.Questions {
		if q.ID == "" || ids[q.ID] {
			t.Fatalf("question ids must be unique and non-empty: %+v", sv.Questions)
		}
		ids[q.ID] = true
	}
	if sv.Questions[1].ID != "mood" {
		t.Fatalf("supplied question id not preserved: %q", sv.Questions[1].ID)
	}
	if !reflect.DeepEqual(sv.Questions[0].Options, []string{"A", "B"}) {
		t.Fatalf("options not cleaned: %v", sv.Questions[0].Options)
	}
	if sv.Questions[2].Options != nil {
		t.Fatalf("text question kept options")
	}

	stored := store.surveys[sv.ID]
	if stored == nil || stored.PasswordHash == "" || stored.PasswordHash == "pw" {
		t.Fatalf("stored survey must carry a hash, not plaintext: %+v", stored)
	}
	if !repo.guard.Verify("pw", stored.PasswordHash) {
		t.Fatalf("stored hash does not verify")
	}
}

func TestSurveyRepositoryCreateValidation(t *testing.T) {
	valid := []models.Question{{Text: "Q", Type: models.QuestionText}}
	tests := []struct {
		name   string
		cmd    CreateSurveyCommand
		fields []string
	}{
		{
			name:   "everything missing",
			cmd:    CreateSurveyCommand{},
			fields: []string{"title", "description", "questions", "creationPassword"},
		},
		{
			name: "bad questions",
			cmd: CreateSurveyCommand{Title: "t", Description: "d", CreationPassword: "pw", Questions: []models.Question{
				{Text: "", Type: models.QuestionText},
				{Text: "Q", Type: "ranking"},
				{Text: "Q", Type: models.QuestionMultipleChoice},
			}},
			fields: []string{"questions[0].text", "questions[1].type", "questions[2].options"},
		},
		{
			name: "duplicate question ids",
			cmd: CreateSurveyCommand{Title: "t", Description: "d", CreationPassword: "pw", Questions: []models.Question{
				{ID: "q", Text: "A", Type: models.QuestionText},
				{ID: "q", Text: "B", Type: models.QuestionText},
			}},
			fields: []string{"questions[1].id"},
		},
		{
			name:   "blank title only",
			cmd:    CreateSurveyCommand{Title: "  ", Description: "d", CreationPassword: "pw", Questions: valid},
			fields: []string{"title"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubStore()
			_, err := newTestRepository(store).Create(context.Background(), tt.cmd)
			se, ok := AsServiceError(err)
			if !ok || se.Code != ErrorInvalid {
				t.Fatalf("expected invalid error, got %v", err)
			}
			if !reflect.DeepEqual(se.Fields, tt.fields) {
				t.Fatalf("fields = %v, want %v", se.Fields, tt.fields)
			}
			if len(store.surveys) != 0 {
				t.Fatalf("invalid survey was stored")
			}
		})
	}
}

func TestSurveyRepositoryCreateCollapsesDuplicateOptions(t *testing.T) {
	sv, err := newTestRepository(newStubStore()).Create(context.Background(), CreateSurveyCommand{
		Title: "t", Description: "d", CreationPassword: "pw",
		Questions: []models.Question{
			{Text: "Pick", Type: models.QuestionMultipleChoice, Options: []string{"A", "A", " B", "B "}},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := sv.Questions[0].Options; !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("options = %v, want [A B]", got)
	}
}

func TestSurveyRepositoryCreatePersistenceFailure(t *testing.T) {
	store := newStubStore()
	store.failInsertSurvey = true
	_, err := newTestRepository(store).Create(context.Background(), CreateSurveyCommand{
		Title: "t", Description: "d", CreationPassword: "pw",
		Questions: []models.Question{{Text: "Q", Type: models.QuestionText}},
	})
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorPersistence {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if se.Message != "create survey failed" {
		t.Fatalf("persistence message should stay generic: %q", se.Message)
	}
}

func TestSurveyRepositoryGet(t *testing.T) {
	store := newStubStore()
	repo := newTestRepository(store)
	sv := seedSurvey(store, repo.guard, textQ("q1", false))

	got, err := repo.Get(context.Background(), sv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PasswordHash != "" || got.Title != sv.Title {
		t.Fatalf("unexpected survey: %+v", got)
	}
	for _, id := range []string{"not-a-uuid", "7b0c1f9e-5a8e-4c49-9d1c-000000000000"} {
		if _, err := repo.Get(context.Background(), id); !IsCode(err, ErrorNotFound) {
			t.Fatalf("Get(%q): expected not found, got %v", id, err)
		}
	}
}

func TestSurveyRepositoryList(t *testing.T) {
	store := newStubStore()
	repo := newTestRepository(store)
	old := seedSurvey(store, repo.guard, textQ("q", false))
	mid := seedSurvey(store, repo.guard, textQ("q", false))
	mid.CreatedAt = fixedNow.Add(time.Hour)
	mid.IsActive = false
	newest := seedSurvey(store, repo.guard, textQ("q", false))
	newest.CreatedAt = fixedNow.Add(2 * time.Hour)

	list, err := repo.List(context.Background(), false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != newest.ID || list[1].ID != old.ID {
		t.Fatalf("unexpected active list order: %v", surveyIDs(list))
	}
	all, err := repo.List(context.Background(), true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if got := surveyIDs(all); !reflect.DeepEqual(got, []string{newest.ID, mid.ID, old.ID}) {
		t.Fatalf("unexpected order: %v", got)
	}
	for _, sv := range all {
		if sv.PasswordHash != "" {
			t.Fatalf("list leaked password hash")
		}
	}

	store.failList = true
	if _, err := repo.List(context.Background(), false); !IsCode(err, ErrorPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func surveyIDs(list []*models.Survey) []string {
	out := make([]string, len(list))
	for i, sv := range list {
		out[i] = sv.ID
	}
	return out
}
