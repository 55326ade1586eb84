// Package summary produces natural-language summaries of survey results in
// the background and serves them from a cache keyed by response count.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/soaringjerry/surveyd/internal/models"
	"github.com/soaringjerry/surveyd/internal/services"
)

// Completer produces a model reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type entry struct {
	count   int
	text    string
	pending bool
}

// Service implements services.Summarizer. Lookups never block: a summary is
// returned only when one exists for the exact response count, otherwise a
// generation is started if the rate limit allows it.
type Service struct {
	completer Completer
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	wg      sync.WaitGroup
}

var _ services.Summarizer = (*Service)(nil)

// NewService builds a summarizer allowing perMinute generations per minute.
func NewService(c Completer, perMinute int, timeout time.Duration, logger *slog.Logger) *Service {
	if perMinute <= 0 {
		perMinute = 6
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		completer: c,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		timeout:   timeout,
		logger:    logger.With("component", "summary"),
		entries:   map[string]*entry{},
	}
}

func (s *Service) Summary(ctx context.Context, req services.SummaryRequest) (string, bool) {
	if req.TotalResponses <= 0 {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[req.SurveyID]
	if e == nil {
		e = &entry{}
		s.entries[req.SurveyID] = e
	}
	if e.text != "" && e.count == req.TotalResponses {
		return e.text, true
	}
	if e.pending {
		return "", false
	}
	if !s.limiter.Allow() {
		s.logger.DebugContext(ctx, "summary generation rate limited", "survey_id", req.SurveyID)
		return "", false
	}
	e.pending = true
	s.wg.Add(1)
	go s.generate(req)
	return "", false
}

func (s *Service) generate(req services.SummaryRequest) {
	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	text, err := s.completer.Complete(ctx, systemPrompt, BuildPrompt(req))

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[req.SurveyID]
	if e == nil {
		return
	}
	e.pending = false
	if err != nil {
		s.logger.Warn("summary generation failed", "survey_id", req.SurveyID, "error", err)
		return
	}
	if req.TotalResponses >= e.count {
		e.count = req.TotalResponses
		e.text = text
	}
	s.logger.Info("summary generated", "survey_id", req.SurveyID, "responses", req.TotalResponses)
}

// Forget drops any cached summary for surveyID.
func (s *Service) Forget(surveyID string) {
	s.mu.Lock()
	delete(s.entries, surveyID)
	s.mu.Unlock()
}

// Wait blocks until in-flight generations finish.
func (s *Service) Wait() { s.wg.Wait() }

const systemPrompt = "You summarize survey results for the survey owner. " +
	"Write two to four plain sentences highlighting the clearest patterns. " +
	"Do not invent numbers that are not in the data."

// BuildPrompt renders aggregated results as compact text for the model.
func BuildPrompt(req services.SummaryRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Survey: %s\n", req.Title)
	if req.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", req.Description)
	}
	fmt.Fprintf(&b, "Responses: %d\n", req.TotalResponses)
	for i, q := range req.Questions {
		fmt.Fprintf(&b, "\nQ%d (%s): %s\n", i+1, q.Type, q.Text)
		switch q.Type {
		case models.QuestionMultipleChoice:
			opts := make([]string, 0, len(q.Distribution))
			for opt := range q.Distribution {
				opts = append(opts, opt)
			}
			sort.Strings(opts)
			for _, opt := range opts {
				fmt.Fprintf(&b, "- %s: %d\n", opt, q.Distribution[opt])
			}
		case models.QuestionScale:
			avg := 0.0
			if q.Average != nil {
				avg = *q.Average
			}
			fmt.Fprintf(&b, "- average %.2f over %d answers\n", avg, q.Answered)
		case models.QuestionText:
			for j, t := range q.TextAnswers {
				if j == 20 {
					fmt.Fprintf(&b, "- (%d more)\n", len(q.TextAnswers)-j)
					break
				}
				fmt.Fprintf(&b, "- %q\n", t)
			}
		}
	}
	return b.String()
}
