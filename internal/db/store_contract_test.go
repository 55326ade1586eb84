package db

import (
	"context"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/soaringjerry/surveyd/internal/models"
	"github.com/soaringjerry/surveyd/internal/services"
)

type contractStore interface {
	services.Store
	ResponseSurveyIDs(ctx context.Context) ([]string, error)
}

var (
	_ contractStore = (*MemoryStore)(nil)
	_ contractStore = (*SQLStore)(nil)
	_ contractStore = (*MongoStore)(nil)
)

var base = time.Date(2025, 9, 17, 8, 0, 0, 0, time.UTC)

func testSurvey(id string, active bool, created time.Time) *models.Survey {
	return &models.Survey{
		ID:          id,
		Title:       "Survey " + id,
		Description: "desc",
		Questions: []models.Question{
			{ID: "q1", Text: "Pick", Type: models.QuestionMultipleChoice, Options: []string{"A", "B"}, Required: true},
			{ID: "q2", Text: "Rate", Type: models.QuestionScale, ReverseScored: true},
		},
		IsActive:     active,
		PasswordHash: "$2a$04$hash-" + id,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

// runStoreContract exercises the behaviour every store implementation shares.
func runStoreContract(t *testing.T, store contractStore) {
	ctx := context.Background()

	t.Run("surveys", func(t *testing.T) {
		s1 := testSurvey("s1", true, base)
		s2 := testSurvey("s2", false, base.Add(time.Hour))
		s3 := testSurvey("s3", true, base.Add(2*time.Hour))
		for _, sv := range []*models.Survey{s1, s2, s3} {
			if err := store.InsertSurvey(ctx, sv); err != nil {
				t.Fatalf("insert %s: %v", sv.ID, err)
			}
		}

		got, err := store.GetSurvey(ctx, "s1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got == nil || got.PasswordHash != s1.PasswordHash || !reflect.DeepEqual(got.Questions, s1.Questions) || !got.CreatedAt.Equal(s1.CreatedAt) {
			t.Fatalf("round trip mismatch: %+v", got)
		}
		missing, err := store.GetSurvey(ctx, "nope")
		if err != nil || missing != nil {
			t.Fatalf("missing survey = (%v, %v), want (nil, nil)", missing, err)
		}

		active, err := store.ListSurveys(ctx, false)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if ids := idsOf(active); !reflect.DeepEqual(ids, []string{"s3", "s1"}) {
			t.Fatalf("active list = %v", ids)
		}
		all, err := store.ListSurveys(ctx, true)
		if err != nil {
			t.Fatalf("list all: %v", err)
		}
		if ids := idsOf(all); !reflect.DeepEqual(ids, []string{"s3", "s2", "s1"}) {
			t.Fatalf("full list = %v", ids)
		}

		s1.Title = "Renamed"
		s1.IsActive = false
		s1.UpdatedAt = base.Add(3 * time.Hour)
		ok, err := store.ReplaceSurvey(ctx, s1)
		if err != nil || !ok {
			t.Fatalf("replace = (%v, %v)", ok, err)
		}
		got, _ = store.GetSurvey(ctx, "s1")
		if got.Title != "Renamed" || got.IsActive || !got.UpdatedAt.Equal(s1.UpdatedAt) {
			t.Fatalf("replace not applied: %+v", got)
		}
		ok, err = store.ReplaceSurvey(ctx, testSurvey("ghost", true, base))
		if err != nil || ok {
			t.Fatalf("replace of missing survey = (%v, %v)", ok, err)
		}

		ok, err = store.DeleteSurvey(ctx, "s2")
		if err != nil || !ok {
			t.Fatalf("delete = (%v, %v)", ok, err)
		}
		ok, err = store.DeleteSurvey(ctx, "s2")
		if err != nil || ok {
			t.Fatalf("second delete = (%v, %v)", ok, err)
		}
	})

	t.Run("responses", func(t *testing.T) {
		r1 := &models.Response{
			ID: "r1", SurveyID: "s1", CreatedAt: base,
			RespondentInfo: map[string]string{"email": "a@example.com"},
			Answers: []models.Answer{
				{QuestionID: "q1", Value: models.MultiChoiceValue("A", "B")},
				{QuestionID: "q2", Value: models.ScaleValue(7)},
			},
		}
		r2 := &models.Response{ID: "r2", SurveyID: "s1", CreatedAt: base.Add(time.Minute),
			Answers: []models.Answer{{QuestionID: "q1", Value: models.ChoiceValue("A")}}}
		r3 := &models.Response{ID: "r3", SurveyID: "s3", CreatedAt: base,
			Answers: []models.Answer{{QuestionID: "q9", Value: models.TextValue("hi")}}}
		for _, r := range []*models.Response{r2, r1, r3} {
			if err := store.InsertResponse(ctx, r); err != nil {
				t.Fatalf("insert response %s: %v", r.ID, err)
			}
		}

		list, err := store.ListResponses(ctx, "s1")
		if err != nil {
			t.Fatalf("list responses: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("want 2 responses, got %d", len(list))
		}
		byID := map[string]*models.Response{}
		for _, r := range list {
			byID[r.ID] = r
		}
		if got := byID["r1"]; got == nil || !reflect.DeepEqual(got.Answers, r1.Answers) || got.RespondentInfo["email"] != "a@example.com" {
			t.Fatalf("response round trip mismatch: %+v", got)
		}

		ids, err := store.ResponseSurveyIDs(ctx)
		if err != nil || !reflect.DeepEqual(sortedCopy(ids), []string{"s1", "s3"}) {
			t.Fatalf("response survey ids = (%v, %v)", ids, err)
		}

		n, err := store.DeleteResponses(ctx, "s1")
		if err != nil || n != 2 {
			t.Fatalf("delete responses = (%d, %v)", n, err)
		}
		list, _ = store.ListResponses(ctx, "s1")
		if len(list) != 0 {
			t.Fatalf("responses survived delete")
		}
		list, _ = store.ListResponses(ctx, "s3")
		if len(list) != 1 {
			t.Fatalf("delete touched another survey")
		}
	})
}

func idsOf(list []*models.Survey) []string {
	out := make([]string, len(list))
	for i, sv := range list {
		out[i] = sv.ID
	}
	return out
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
