package services

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/soaringjerry/surveyd/internal/models"
)

// ResultsQuery selects what Results returns. Raw responses are only included
// when the credential authorizes the caller.
type ResultsQuery struct {
	IncludeRaw bool
	Credential Credential
}

type QuestionStats struct {
	QuestionID string              `json:"questionId"`
	Text       string              `json:"text"`
	Type       models.QuestionType `json:"type"`
	Answered   int                 `json:"answered"`
	// multipleChoice
	Distribution map[string]int `json:"distribution,omitempty"`
	// scale
	Average   *float64    `json:"average,omitempty"`
	Histogram map[int]int `json:"histogram,omitempty"`
	// text
	TextAnswers []string `json:"textAnswers,omitempty"`
}

type TimeseriesPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Reliability is Cronbach's alpha across the scale questions, computed over
// respondents who answered every one of them.
type Reliability struct {
	Alpha     float64 `json:"alpha"`
	N         int     `json:"n"`
	Questions int     `json:"questions"`
}

type Results struct {
	SurveyID       string             `json:"surveyId"`
	Title          string             `json:"title"`
	TotalResponses int                `json:"totalResponses"`
	Questions      []QuestionStats    `json:"questions"`
	Reliability    *Reliability       `json:"reliability,omitempty"`
	Timeseries     []TimeseriesPoint  `json:"timeseries"`
	AISummary      string             `json:"aiSummary,omitempty"`
	RawResponses   []*models.Response `json:"rawResponses,omitempty"`
}

// SummaryRequest is what a Summarizer needs to describe a survey's results.
type SummaryRequest struct {
	SurveyID       string
	Title          string
	Description    string
	TotalResponses int
	Questions      []QuestionStats
}

// Summarizer returns a ready natural-language summary for exactly this
// response count, if one exists. It must not block; implementations schedule
// generation in the background when nothing is ready.
type Summarizer interface {
	Summary(ctx context.Context, req SummaryRequest) (string, bool)
}

// StatisticsAggregator computes per-question results for a survey.
type StatisticsAggregator struct {
	surveys    SurveyStore
	responses  ResponseStore
	guard      *PasswordGuard
	summarizer Summarizer
	audit      *AuditLog
	logger     *slog.Logger
}

func NewStatisticsAggregator(store Store, guard *PasswordGuard, summarizer Summarizer, logger *slog.Logger) *StatisticsAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatisticsAggregator{
		surveys:    store,
		responses:  store,
		guard:      guard,
		summarizer: summarizer,
		audit:      NewAuditLog(logger),
		logger:     logger,
	}
}

func (a *StatisticsAggregator) Results(ctx context.Context, surveyID string, q ResultsQuery) (*Results, error) {
	sv, err := loadSurvey(ctx, a.surveys, a.logger, surveyID)
	if err != nil {
		return nil, err
	}
	if q.IncludeRaw {
		grant, err := a.guard.Authorize(ctx, sv.ID, sv.PasswordHash, q.Credential)
		if err != nil {
			return nil, err
		}
		a.audit.Record(ctx, AuditEntry{Actor: string(grant), Action: "results.raw", Target: sv.ID})
	}
	responses, err := a.responses.ListResponses(ctx, sv.ID)
	if err != nil {
		a.logger.ErrorContext(ctx, "list responses", "survey_id", sv.ID, "error", err)
		return nil, NewPersistenceError("load responses", err)
	}

	res := Aggregate(sv, responses)
	if q.IncludeRaw {
		res.RawResponses = responses
	}
	if a.summarizer != nil && res.TotalResponses > 0 {
		if text, ok := a.summarizer.Summary(ctx, SummaryRequest{
			SurveyID:       sv.ID,
			Title:          sv.Title,
			Description:    sv.Description,
			TotalResponses: res.TotalResponses,
			Questions:      res.Questions,
		}); ok {
			res.AISummary = text
		}
	}
	return res, nil
}

// Aggregate computes results from a survey and a snapshot of its responses.
func Aggregate(sv *models.Survey, responses []*models.Response) *Results {
	stats := make([]QuestionStats, len(sv.Questions))
	index := make(map[string]int, len(sv.Questions))
	sums := make([]float64, len(sv.Questions))
	for i, q := range sv.Questions {
		index[q.ID] = i
		st := QuestionStats{QuestionID: q.ID, Text: q.Text, Type: q.Type}
		switch q.Type {
		case models.QuestionMultipleChoice:
			st.Distribution = make(map[string]int, len(q.Options))
			for _, opt := range q.Options {
				st.Distribution[opt] = 0
			}
		case models.QuestionScale:
			st.Histogram = make(map[int]int, models.ScaleMax-models.ScaleMin+1)
			for b := models.ScaleMin; b <= models.ScaleMax; b++ {
				st.Histogram[b] = 0
			}
		case models.QuestionText:
			st.TextAnswers = []string{}
		}
		stats[i] = st
	}

	countsByDay := map[string]int{}
	for _, resp := range responses {
		countsByDay[resp.CreatedAt.UTC().Format(time.DateOnly)]++
		for _, ans := range resp.Answers {
			i, ok := index[ans.QuestionID]
			if !ok {
				continue
			}
			st := &stats[i]
			switch st.Type {
			case models.QuestionMultipleChoice:
				counted := false
				picked := map[string]bool{}
				for _, opt := range ans.Value.Selected() {
					if _, known := st.Distribution[opt]; known && !picked[opt] {
						picked[opt] = true
						st.Distribution[opt]++
						counted = true
					}
				}
				if counted {
					st.Answered++
				}
			case models.QuestionScale:
				if ans.Value.Kind != models.AnswerScale {
					continue
				}
				v := ans.Value.Scale
				st.Histogram[bucket(v)]++
				sums[i] += v
				st.Answered++
			case models.QuestionText:
				if ans.Value.Kind != models.AnswerText && ans.Value.Kind != models.AnswerChoice {
					continue
				}
				if s := strings.TrimSpace(ans.Value.Text); s != "" {
					st.TextAnswers = append(st.TextAnswers, s)
					st.Answered++
				}
			}
		}
	}
	for i := range stats {
		if stats[i].Type != models.QuestionScale {
			continue
		}
		avg := 0.0
		if stats[i].Answered > 0 {
			avg = sums[i] / float64(stats[i].Answered)
		}
		stats[i].Average = &avg
	}

	res := &Results{
		SurveyID:       sv.ID,
		Title:          sv.Title,
		TotalResponses: len(responses),
		Questions:      stats,
		Timeseries:     buildTimeseries(countsByDay),
	}
	if matrix, k := buildAlphaMatrix(sv, responses); k >= 2 {
		res.Reliability = &Reliability{Alpha: CronbachAlpha(matrix), N: len(matrix), Questions: k}
	}
	return res
}

// bucket maps a scale value to its integer histogram bucket.
func bucket(v float64) int {
	b := int(math.Round(v))
	if b < models.ScaleMin {
		return models.ScaleMin
	}
	if b > models.ScaleMax {
		return models.ScaleMax
	}
	return b
}

// buildAlphaMatrix returns one row per response that answered every scale
// question, with reverse-scored questions mirrored, and the number of scale
// questions.
func buildAlphaMatrix(sv *models.Survey, responses []*models.Response) ([][]float64, int) {
	var scaleQs []models.Question
	for _, q := range sv.Questions {
		if q.Type == models.QuestionScale {
			scaleQs = append(scaleQs, q)
		}
	}
	if len(scaleQs) < 2 {
		return nil, len(scaleQs)
	}
	matrix := make([][]float64, 0, len(responses))
	for _, resp := range responses {
		values := make(map[string]float64, len(resp.Answers))
		for _, ans := range resp.Answers {
			if ans.Value.Kind == models.AnswerScale {
				if _, dup := values[ans.QuestionID]; !dup {
					values[ans.QuestionID] = ans.Value.Scale
				}
			}
		}
		row := make([]float64, 0, len(scaleQs))
		for _, q := range scaleQs {
			v, ok := values[q.ID]
			if !ok {
				break
			}
			if q.ReverseScored {
				v = float64(ReverseScore(bucket(v), models.ScaleMax))
			}
			row = append(row, v)
		}
		if len(row) == len(scaleQs) {
			matrix = append(matrix, row)
		}
	}
	return matrix, len(scaleQs)
}

func buildTimeseries(countsByDay map[string]int) []TimeseriesPoint {
	days := make([]string, 0, len(countsByDay))
	for d := range countsByDay {
		days = append(days, d)
	}
	sort.Strings(days)
	series := make([]TimeseriesPoint, 0, len(days))
	for _, d := range days {
		series = append(series, TimeseriesPoint{Date: d, Count: countsByDay[d]})
	}
	return series
}
