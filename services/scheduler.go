package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs a full synchronisation of every connector on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	ingestor *Ingestor
	timeout  time.Duration
	entry    cron.EntryID
}

// NewScheduler schedules ingestor.SyncAll on schedule, a standard five field cron expression
// or a descriptor such as "@hourly". Each run is cancelled after timeout when it is positive.
func NewScheduler(ingestor *Ingestor, schedule string, timeout time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ingestor: ingestor,
		timeout:  timeout,
	}
	entry, err := s.cron.AddFunc(schedule, s.run)
	if err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	s.entry = entry
	return s, nil
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log.Info().Int("connectors", s.ingestor.Connectors().Len()).Msg("Running scheduled synchronisation...")
	reports, err := s.ingestor.SyncAll(ctx, nil, nil)
	if err != nil {
		log.Error().Err(err).Msg("Scheduled synchronisation failed")
	}
	var created, updated, failed int
	for _, report := range reports {
		if report == nil {
			continue
		}
		created += report.Created
		updated += report.Updated
		failed += report.Failed
	}
	log.Info().
		Int("created", created).
		Int("updated", updated).
		Int("failed", failed).
		Msg("Scheduled synchronisation completed")
}

// Next returns the time of the next scheduled run.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling runs and waits for a running one to finish or ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
