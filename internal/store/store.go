package store

import (
	"context"
	"time"

	"qms/ticket-queue/internal/models"
)

type CreateTicketInput struct {
	FullName    string
	PhoneNumber string
	CategoryID  int64
	Language    models.Language
	Token       string
}

type ClaimInput struct {
	WorkerID   int64
	CategoryID int64
	Window     int
	At         time.Time
}

// ClaimResult carries both halves of a claim. Previous is the ticket the
// worker held before the call (now completed or skipped) and is set even
// when Next is nil and the call reports ErrNoTicket.
type ClaimResult struct {
	Previous *models.Ticket
	Next     *models.Ticket
}

type CreateWorkerInput struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Window       int
	IsAdmin      bool
	CategoryID   *int64
}

type UpdateWorkerInput struct {
	FirstName  string
	LastName   string
	Email      string
	Window     int
	IsAdmin    bool
	CategoryID *int64
}

type TicketStore interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, bool, error)
	GetTicket(ctx context.Context, ticketID int64) (models.Ticket, error)
	GetTicketByToken(ctx context.Context, token string) (models.Ticket, error)
	ListWaiting(ctx context.Context, categoryID int64) ([]models.Ticket, error)
	TicketStatus(ctx context.Context, ticketID int64) (models.TicketStatus, error)
	ClaimNext(ctx context.Context, input ClaimInput) (ClaimResult, error)
	SkipCurrent(ctx context.Context, input ClaimInput) (ClaimResult, error)
	CurrentTicket(ctx context.Context, workerID int64) (models.Ticket, error)
	ListWorkerTickets(ctx context.Context, workerID int64) ([]models.Ticket, error)
	WorkerStats(ctx context.Context, workerID int64, since time.Time) (models.Dashboard, error)
	CancelTicket(ctx context.Context, ticketID int64) (models.Ticket, error)
	RateTicket(ctx context.Context, ticketID int64, rating int) (models.Ticket, error)
	DeleteTicket(ctx context.Context, ticketID int64) (models.Ticket, error)
	LinkSubscriber(ctx context.Context, token, subscriberID string) (models.Ticket, error)
	PurgeWaitingAndResetCounter(ctx context.Context) (int64, error)
	CurrentCounter(ctx context.Context) (int64, error)
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, name string) (models.Category, error)
	GetCategory(ctx context.Context, categoryID int64) (models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	RenameCategory(ctx context.Context, categoryID int64, name string) (models.Category, error)
	DeleteCategory(ctx context.Context, categoryID int64) error
	AverageRating(ctx context.Context, categoryID int64) (float64, bool, error)
}

type WorkerStore interface {
	CreateWorker(ctx context.Context, input CreateWorkerInput) (models.Worker, error)
	GetWorker(ctx context.Context, workerID int64) (models.Worker, error)
	GetWorkerByEmail(ctx context.Context, email string) (models.Worker, error)
	ListWorkers(ctx context.Context) ([]models.Worker, error)
	ListCategoryWorkers(ctx context.Context, categoryID int64) ([]models.Worker, error)
	UpdateWorker(ctx context.Context, workerID int64, input UpdateWorkerInput) (models.Worker, error)
	DeleteWorker(ctx context.Context, workerID int64) error
}

// ReportStore answers the admin reporting queries.
type ReportStore interface {
	CategoryStatistics(ctx context.Context, since time.Time) ([]models.CategoryStatistic, error)
	WorkerCounts(ctx context.Context, workerID int64, since time.Time) (models.TicketCounts, error)
	WorkerAverageRating(ctx context.Context, workerID int64) (float64, bool, error)
	ListWorkerTicketsSince(ctx context.Context, workerID int64, since time.Time) ([]models.Ticket, error)
}

type OutboxStore interface {
	ListOutboxEvents(ctx context.Context, after OutboxCursor, limit int) ([]OutboxEvent, error)
	GetOutboxOffset(ctx context.Context, consumer string) (OutboxCursor, error)
	UpdateOutboxOffset(ctx context.Context, consumer string, cursor OutboxCursor) error
}

type Store interface {
	TicketStore
	CategoryStore
	WorkerStore
	ReportStore
	OutboxStore
}
