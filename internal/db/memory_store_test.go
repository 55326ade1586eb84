package db

import (
	"context"
	"testing"
)

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreCopiesDocuments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sv := testSurvey("s1", true, base)
	if err := store.InsertSurvey(ctx, sv); err != nil {
		t.Fatalf("insert: %v", err)
	}
	sv.Questions[0].Options[0] = "mutated"

	got, _ := store.GetSurvey(ctx, "s1")
	if got.Questions[0].Options[0] != "A" {
		t.Fatalf("store shares memory with the caller")
	}
	got.Title = "changed"
	again, _ := store.GetSurvey(ctx, "s1")
	if again.Title == "changed" {
		t.Fatalf("returned survey aliases stored document")
	}
	if err := store.InsertSurvey(ctx, testSurvey("s1", true, base)); err == nil {
		t.Fatalf("duplicate id accepted")
	}
}
