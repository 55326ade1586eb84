// Package jobs holds scheduled maintenance tasks.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/soaringjerry/surveyd/internal/models"
)

// OrphanStore is what the sweeper needs from persistence.
type OrphanStore interface {
	ResponseSurveyIDs(ctx context.Context) ([]string, error)
	GetSurvey(ctx context.Context, id string) (*models.Survey, error)
	DeleteResponses(ctx context.Context, surveyID string) (int, error)
}

// Sweeper removes responses whose survey no longer exists. Such responses
// are left behind when a survey delete succeeds but the cascade does not.
type Sweeper struct {
	store   OrphanStore
	logger  *slog.Logger
	timeout time.Duration
	cron    *cron.Cron
}

func NewSweeper(store OrphanStore, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, logger: logger.With("job", "orphan-sweeper"), timeout: 5 * time.Minute}
}

// SweepOnce runs a single pass and returns the number of deleted responses.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ids, err := s.store.ResponseSurveyIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list response survey ids: %w", err)
	}
	total := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		sv, err := s.store.GetSurvey(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "lookup survey", "survey_id", id, "error", err)
			continue
		}
		if sv != nil {
			continue
		}
		n, err := s.store.DeleteResponses(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "delete orphaned responses", "survey_id", id, "error", err)
			continue
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "deleted orphaned responses", "survey_id", id, "count", n)
		}
		total += n
	}
	return total, nil
}

// Start schedules SweepOnce with a standard five-field cron spec.
func (s *Sweeper) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("sweeper scheduled", "spec", spec)
	return nil
}

// Stop halts the schedule and waits for a running pass to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.SweepOnce(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return
	}
	s.logger.Debug("sweep finished", "deleted", n)
}
