package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"qms/ticket-queue/internal/notify"
	"qms/ticket-queue/internal/telemetry"

	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule   = "0 18 * * *"
	defaultRunTimeout = 30 * time.Second
	reportTimeout     = 10 * time.Second
)

// Purger clears the waiting queue and resets ticket numbering.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

type Config struct {
	Schedule   string
	Location   *time.Location
	RunTimeout time.Duration
	// ReportTo is the recipient for run reports. Empty disables reporting.
	ReportTo string
}

// Scheduler runs the daily maintenance purge.
type Scheduler struct {
	cron     *cron.Cron
	entry    cron.EntryID
	purger   Purger
	reporter notify.Provider
	reportTo string
	timeout  time.Duration
	location *time.Location
}

func New(purger Purger, reporter notify.Provider, cfg Config) (*Scheduler, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(cfg.Location)),
		purger:   purger,
		reporter: reporter,
		reportTo: cfg.ReportTo,
		timeout:  cfg.RunTimeout,
		location: cfg.Location,
	}
	entry, err := s.cron.AddFunc(cfg.Schedule, func() { s.RunOnce(context.Background()) })
	if err != nil {
		return nil, fmt.Errorf("purge schedule %q: %w", cfg.Schedule, err)
	}
	s.entry = entry
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("purge scheduler started next_run=%s", s.Next().Format(time.RFC3339))
}

// Stop prevents further runs and waits for a running purge to finish or
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Printf("purge scheduler stop: %v", ctx.Err())
	}
}

// Next reports when the purge runs next. Before Start it is computed from
// the schedule.
func (s *Scheduler) Next() time.Time {
	entry := s.cron.Entry(s.entry)
	if !entry.Next.IsZero() {
		return entry.Next
	}
	if entry.Schedule == nil {
		return time.Time{}
	}
	return entry.Schedule.Next(time.Now().In(s.location))
}

// RunOnce performs one purge and reports the result. Errors never stop the
// schedule.
func (s *Scheduler) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	removed, err := s.purger.Purge(runCtx)
	cancel()
	telemetry.PurgeRuns.WithLabelValues(telemetry.Result(err)).Inc()

	var message string
	if err != nil {
		log.Printf("purge error: %v", err)
		message = notify.CounterResetFailedMessage(err)
	} else {
		log.Printf("purge done removed=%d", removed)
		message = notify.CounterResetMessage(removed)
	}
	s.report(ctx, message)
}

func (s *Scheduler) report(ctx context.Context, message string) {
	if s.reporter == nil || s.reportTo == "" {
		return
	}
	reportCtx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()
	if err := s.reporter.Send(reportCtx, message, s.reportTo); err != nil {
		log.Printf("purge report error: %v", err)
	}
}
