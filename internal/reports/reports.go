// Package reports builds the admin views over the ticket history: the
// dashboard, daily statistics and per-worker activity.
package reports

import (
	"context"
	"math"
	"time"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/store"
)

const (
	defaultStoreTimeout = 5 * time.Second
	workerReportWindow  = 30 * 24 * time.Hour
	unassignedName      = "unassigned"
)

// Periods accepted by WorkerActivity.
var periods = map[string]time.Duration{
	"1_day":   24 * time.Hour,
	"1_week":  7 * 24 * time.Hour,
	"1_month": 30 * 24 * time.Hour,
}

type Source interface {
	store.ReportStore
	ListWorkers(ctx context.Context) ([]models.Worker, error)
	GetWorker(ctx context.Context, workerID int64) (models.Worker, error)
}

type Options struct {
	StoreTimeout time.Duration
	Location     *time.Location
	Now          func() time.Time
}

type Service struct {
	source   Source
	timeout  time.Duration
	location *time.Location
	now      func() time.Time
}

func NewService(source Source, opts Options) *Service {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		source:   source,
		timeout:  opts.StoreTimeout,
		location: opts.Location,
		now:      opts.Now,
	}
}

// Dashboard summarizes today's queue and lists workers by category. Workers
// without a category, admins excepted, are grouped under ID zero.
func (s *Service) Dashboard(ctx context.Context) (models.AdminDashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stats, err := s.source.CategoryStatistics(ctx, s.startOfDay())
	if err != nil {
		return models.AdminDashboard{}, err
	}
	workers, err := s.source.ListWorkers(ctx)
	if err != nil {
		return models.AdminDashboard{}, err
	}

	dashboard := models.AdminDashboard{Categories: make([]models.CategoryWorkers, 0, len(stats)+1)}
	index := make(map[int64]int, len(stats))
	for _, stat := range stats {
		dashboard.Waiting += stat.Waiting
		dashboard.AcceptedToday += stat.Today.Accepted
		dashboard.ServedToday += stat.Today.Served
		index[stat.CategoryID] = len(dashboard.Categories)
		dashboard.Categories = append(dashboard.Categories, models.CategoryWorkers{
			ID:      stat.CategoryID,
			Name:    stat.Name,
			Workers: []models.Worker{},
		})
	}

	unassigned := models.CategoryWorkers{Name: unassignedName, Workers: []models.Worker{}}
	for _, worker := range workers {
		if worker.CategoryID != nil {
			if i, ok := index[*worker.CategoryID]; ok {
				dashboard.Categories[i].Workers = append(dashboard.Categories[i].Workers, worker)
				continue
			}
		}
		if !worker.IsAdmin {
			unassigned.Workers = append(unassigned.Workers, worker)
		}
	}
	dashboard.Categories = append(dashboard.Categories, unassigned)
	return dashboard, nil
}

// Statistics reports today's counts for every category and their total.
func (s *Service) Statistics(ctx context.Context) (models.Statistics, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	day := s.startOfDay()
	stats, err := s.source.CategoryStatistics(ctx, day)
	if err != nil {
		return models.Statistics{}, err
	}
	general := models.CategoryStatistic{Name: "general"}
	for _, stat := range stats {
		general.Waiting += stat.Waiting
		general.Today = general.Today.Add(stat.Today)
		general.AcceptedAllTime += stat.AcceptedAllTime
		general.ServedAllTime += stat.ServedAllTime
	}
	return models.Statistics{
		Day:        day.Format("2006-01-02"),
		General:    general,
		Categories: stats,
	}, nil
}

// WorkerReport covers the worker's last 30 days.
func (s *Service) WorkerReport(ctx context.Context, workerID int64) (models.WorkerReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	worker, err := s.source.GetWorker(ctx, workerID)
	if err != nil {
		return models.WorkerReport{}, err
	}
	since := s.now().Add(-workerReportWindow).UTC()
	counts, err := s.source.WorkerCounts(ctx, workerID, since)
	if err != nil {
		return models.WorkerReport{}, err
	}
	tickets, err := s.source.ListWorkerTicketsSince(ctx, workerID, since)
	if err != nil {
		return models.WorkerReport{}, err
	}
	report := models.WorkerReport{
		Worker:  worker,
		Since:   since,
		Counts:  counts,
		Tickets: tickets,
	}
	avg, rated, err := s.source.WorkerAverageRating(ctx, workerID)
	if err != nil {
		return models.WorkerReport{}, err
	}
	if rated {
		rounded := math.Round(avg*10) / 10
		report.AverageRating = &rounded
	}
	return report, nil
}

// WorkerActivity lists the worker's tickets created within period, one of
// 1_day, 1_week or 1_month.
func (s *Service) WorkerActivity(ctx context.Context, workerID int64, period string) ([]models.Ticket, error) {
	window, ok := periods[period]
	if !ok {
		return nil, store.ErrInvalidInput
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.source.GetWorker(ctx, workerID); err != nil {
		return nil, err
	}
	return s.source.ListWorkerTicketsSince(ctx, workerID, s.now().Add(-window).UTC())
}

func (s *Service) startOfDay() time.Time {
	now := s.now().In(s.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
}
