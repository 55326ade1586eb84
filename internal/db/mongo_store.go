package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/soaringjerry/surveyd/internal/models"
)

const (
	surveysCollection   = "surveys"
	responsesCollection = "surveyResponses"
)

// MongoStore keeps surveys and responses in two collections of one database.
type MongoStore struct {
	client    *mongo.Client
	surveys   *mongo.Collection
	responses *mongo.Collection
	logger    *slog.Logger
}

// OpenMongoStore connects to uri and prepares the indexes the queries rely on.
func OpenMongoStore(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	dbh := client.Database(database)
	s := &MongoStore{
		client:    client,
		surveys:   dbh.Collection(surveysCollection),
		responses: dbh.Collection(responsesCollection),
		logger:    logger.With("store", "mongo"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.surveys.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "createdAt", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create survey index: %w", err)
	}
	if _, err := s.responses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "surveyId", Value: 1}, {Key: "createdAt", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create response index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func (s *MongoStore) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *MongoStore) InsertSurvey(ctx context.Context, sv *models.Survey) error {
	if _, err := s.surveys.InsertOne(ctx, sv); err != nil {
		s.logger.ErrorContext(ctx, "insert survey", "error", err)
		return fmt.Errorf("insert survey: %w", err)
	}
	return nil
}

func (s *MongoStore) GetSurvey(ctx context.Context, id string) (*models.Survey, error) {
	var sv models.Survey
	err := s.surveys.FindOne(ctx, bson.M{"_id": id}).Decode(&sv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "get survey", "survey_id", id, "error", err)
		return nil, fmt.Errorf("get survey: %w", err)
	}
	return &sv, nil
}

func (s *MongoStore) ListSurveys(ctx context.Context, includeInactive bool) ([]*models.Survey, error) {
	filter := bson.M{}
	if !includeInactive {
		filter["isActive"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.surveys.Find(ctx, filter, opts)
	if err != nil {
		s.logger.ErrorContext(ctx, "list surveys", "error", err)
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	var out []*models.Survey
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode surveys: %w", err)
	}
	return out, nil
}

func (s *MongoStore) ReplaceSurvey(ctx context.Context, sv *models.Survey) (bool, error) {
	res, err := s.surveys.ReplaceOne(ctx, bson.M{"_id": sv.ID}, sv)
	if err != nil {
		s.logger.ErrorContext(ctx, "replace survey", "survey_id", sv.ID, "error", err)
		return false, fmt.Errorf("replace survey: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) DeleteSurvey(ctx context.Context, id string) (bool, error) {
	res, err := s.surveys.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		s.logger.ErrorContext(ctx, "delete survey", "survey_id", id, "error", err)
		return false, fmt.Errorf("delete survey: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) InsertResponse(ctx context.Context, r *models.Response) error {
	if _, err := s.responses.InsertOne(ctx, r); err != nil {
		s.logger.ErrorContext(ctx, "insert response", "survey_id", r.SurveyID, "error", err)
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *MongoStore) ListResponses(ctx context.Context, surveyID string) ([]*models.Response, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.responses.Find(ctx, bson.M{"surveyId": surveyID}, opts)
	if err != nil {
		s.logger.ErrorContext(ctx, "list responses", "survey_id", surveyID, "error", err)
		return nil, fmt.Errorf("list responses: %w", err)
	}
	out := []*models.Response{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	return out, nil
}

func (s *MongoStore) DeleteResponses(ctx context.Context, surveyID string) (int, error) {
	res, err := s.responses.DeleteMany(ctx, bson.M{"surveyId": surveyID})
	if err != nil {
		s.logger.ErrorContext(ctx, "delete responses", "survey_id", surveyID, "error", err)
		return 0, fmt.Errorf("delete responses: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (s *MongoStore) ResponseSurveyIDs(ctx context.Context) ([]string, error) {
	vals, err := s.responses.Distinct(ctx, "surveyId", bson.M{})
	if err != nil {
		s.logger.ErrorContext(ctx, "response survey ids", "error", err)
		return nil, fmt.Errorf("response survey ids: %w", err)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if id, ok := v.(string); ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
