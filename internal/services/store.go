package services

import (
	"context"

	"github.com/soaringjerry/surveyd/internal/models"
)

// SurveyStore persists survey documents. GetSurvey returns (nil, nil) when
// the survey does not exist; ReplaceSurvey and DeleteSurvey report whether a
// document matched.
type SurveyStore interface {
	InsertSurvey(ctx context.Context, sv *models.Survey) error
	GetSurvey(ctx context.Context, id string) (*models.Survey, error)
	ListSurveys(ctx context.Context, includeInactive bool) ([]*models.Survey, error)
	ReplaceSurvey(ctx context.Context, sv *models.Survey) (bool, error)
	DeleteSurvey(ctx context.Context, id string) (bool, error)
}

// ResponseStore persists responses. ListResponses returns responses in
// submission order.
type ResponseStore interface {
	InsertResponse(ctx context.Context, r *models.Response) error
	ListResponses(ctx context.Context, surveyID string) ([]*models.Response, error)
	DeleteResponses(ctx context.Context, surveyID string) (int, error)
}

// Store is the combined persistence handle built once at startup.
type Store interface {
	SurveyStore
	ResponseStore
}
