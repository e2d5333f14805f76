package httpapi

import (
	"context"
	"sort"
	"sync"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/queue"
	"qms/ticket-queue/internal/store"
)

type fakeQueue struct {
	createFn     func(ctx context.Context, req queue.CreateTicketRequest) (models.Ticket, bool, error)
	getFn        func(ctx context.Context, ticketID int64) (models.Ticket, error)
	byTokenFn    func(ctx context.Context, token string) (models.Ticket, error)
	statusFn     func(ctx context.Context, ticketID int64) (models.TicketStatus, error)
	waitingFn    func(ctx context.Context, categoryID int64) ([]models.Ticket, error)
	claimFn      func(ctx context.Context, worker models.Worker) (models.Ticket, error)
	skipFn       func(ctx context.Context, worker models.Worker) (models.Ticket, error)
	currentFn    func(ctx context.Context, worker models.Worker) (models.Ticket, error)
	historyFn    func(ctx context.Context, worker models.Worker) ([]models.Ticket, error)
	dashboardFn  func(ctx context.Context, worker models.Worker) (models.Dashboard, error)
	rateFn       func(ctx context.Context, ticketID int64, rating int) (models.Ticket, error)
	cancelFn     func(ctx context.Context, ticketID int64) (models.Ticket, error)
	deleteFn     func(ctx context.Context, ticketID int64) error
	purgeFn      func(ctx context.Context) (int64, error)
	counterFn    func(ctx context.Context) (int64, error)
	ratingFn     func(ctx context.Context, categoryID int64) (float64, bool, error)
	linkFn       func(ctx context.Context, token, subscriberID string) (models.Ticket, error)
}

func (f fakeQueue) CreateTicket(ctx context.Context, req queue.CreateTicketRequest) (models.Ticket, bool, error) {
	if f.createFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.createFn(ctx, req)
}

func (f fakeQueue) GetTicket(ctx context.Context, ticketID int64) (models.Ticket, error) {
	if f.getFn == nil {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return f.getFn(ctx, ticketID)
}

func (f fakeQueue) GetTicketByToken(ctx context.Context, token string) (models.Ticket, error) {
	if f.byTokenFn == nil {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return f.byTokenFn(ctx, token)
}

func (f fakeQueue) TicketStatus(ctx context.Context, ticketID int64) (models.TicketStatus, error) {
	if f.statusFn == nil {
		return models.TicketStatus{}, store.ErrTicketNotFound
	}
	return f.statusFn(ctx, ticketID)
}

func (f fakeQueue) Waiting(ctx context.Context, categoryID int64) ([]models.Ticket, error) {
	if f.waitingFn == nil {
		return []models.Ticket{}, nil
	}
	return f.waitingFn(ctx, categoryID)
}

func (f fakeQueue) ClaimNext(ctx context.Context, worker models.Worker) (models.Ticket, error) {
	if f.claimFn == nil {
		return models.Ticket{}, store.ErrNoTicket
	}
	return f.claimFn(ctx, worker)
}

func (f fakeQueue) SkipCurrent(ctx context.Context, worker models.Worker) (models.Ticket, error) {
	if f.skipFn == nil {
		return models.Ticket{}, store.ErrNoActiveTicket
	}
	return f.skipFn(ctx, worker)
}

func (f fakeQueue) CurrentTicket(ctx context.Context, worker models.Worker) (models.Ticket, error) {
	if f.currentFn == nil {
		return models.Ticket{}, store.ErrNoActiveTicket
	}
	return f.currentFn(ctx, worker)
}

func (f fakeQueue) WorkerHistory(ctx context.Context, worker models.Worker) ([]models.Ticket, error) {
	if f.historyFn == nil {
		return []models.Ticket{}, nil
	}
	return f.historyFn(ctx, worker)
}

func (f fakeQueue) Dashboard(ctx context.Context, worker models.Worker) (models.Dashboard, error) {
	if f.dashboardFn == nil {
		return models.Dashboard{Worker: worker}, nil
	}
	return f.dashboardFn(ctx, worker)
}

func (f fakeQueue) Rate(ctx context.Context, ticketID int64, rating int) (models.Ticket, error) {
	if f.rateFn == nil {
		return models.Ticket{}, nil
	}
	return f.rateFn(ctx, ticketID, rating)
}

func (f fakeQueue) Cancel(ctx context.Context, ticketID int64) (models.Ticket, error) {
	if f.cancelFn == nil {
		return models.Ticket{}, nil
	}
	return f.cancelFn(ctx, ticketID)
}

func (f fakeQueue) Delete(ctx context.Context, ticketID int64) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, ticketID)
}

func (f fakeQueue) Purge(ctx context.Context) (int64, error) {
	if f.purgeFn == nil {
		return 0, nil
	}
	return f.purgeFn(ctx)
}

func (f fakeQueue) CurrentCounter(ctx context.Context) (int64, error) {
	if f.counterFn == nil {
		return 0, nil
	}
	return f.counterFn(ctx)
}

func (f fakeQueue) AverageRating(ctx context.Context, categoryID int64) (float64, bool, error) {
	if f.ratingFn == nil {
		return 0, false, nil
	}
	return f.ratingFn(ctx, categoryID)
}

func (f fakeQueue) LinkSubscriber(ctx context.Context, token, subscriberID string) (models.Ticket, error) {
	if f.linkFn == nil {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return f.linkFn(ctx, token, subscriberID)
}

type fakeCategories struct {
	createFn func(ctx context.Context, name string) (models.Category, error)
	getFn    func(ctx context.Context, categoryID int64) (models.Category, error)
	listFn   func(ctx context.Context) ([]models.Category, error)
	renameFn func(ctx context.Context, categoryID int64, name string) (models.Category, error)
	deleteFn func(ctx context.Context, categoryID int64) error
}

func (f fakeCategories) CreateCategory(ctx context.Context, name string) (models.Category, error) {
	if f.createFn == nil {
		return models.Category{ID: 1, Name: name}, nil
	}
	return f.createFn(ctx, name)
}

func (f fakeCategories) GetCategory(ctx context.Context, categoryID int64) (models.Category, error) {
	if f.getFn == nil {
		return models.Category{}, store.ErrCategoryNotFound
	}
	return f.getFn(ctx, categoryID)
}

func (f fakeCategories) ListCategories(ctx context.Context) ([]models.Category, error) {
	if f.listFn == nil {
		return []models.Category{}, nil
	}
	return f.listFn(ctx)
}

func (f fakeCategories) RenameCategory(ctx context.Context, categoryID int64, name string) (models.Category, error) {
	if f.renameFn == nil {
		return models.Category{}, store.ErrCategoryNotFound
	}
	return f.renameFn(ctx, categoryID, name)
}

func (f fakeCategories) DeleteCategory(ctx context.Context, categoryID int64) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, categoryID)
}

func (f fakeCategories) AverageRating(context.Context, int64) (float64, bool, error) {
	return 0, false, nil
}

// fakeWorkers keeps workers by id and email. Workers listed in busy hold
// an invited ticket.
type fakeWorkers struct {
	mu      sync.Mutex
	workers map[int64]models.Worker
	created []store.CreateWorkerInput
	busy    map[int64]bool
}

func newFakeWorkers(workers ...models.Worker) *fakeWorkers {
	f := &fakeWorkers{workers: map[int64]models.Worker{}, busy: map[int64]bool{}}
	for _, worker := range workers {
		f.workers[worker.ID] = worker
	}
	return f
}

func (f *fakeWorkers) CreateWorker(_ context.Context, input store.CreateWorkerInput) (models.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.workers {
		if existing.Email == input.Email {
			return models.Worker{}, store.ErrEmailTaken
		}
	}
	f.created = append(f.created, input)
	worker := models.Worker{
		ID:           int64(len(f.workers) + 100),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		Window:       input.Window,
		IsAdmin:      input.IsAdmin,
		CategoryID:   input.CategoryID,
		PasswordHash: input.PasswordHash,
	}
	f.workers[worker.ID] = worker
	return worker, nil
}

func (f *fakeWorkers) GetWorker(_ context.Context, workerID int64) (models.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	worker, ok := f.workers[workerID]
	if !ok {
		return models.Worker{}, store.ErrWorkerNotFound
	}
	return worker, nil
}

func (f *fakeWorkers) GetWorkerByEmail(_ context.Context, email string) (models.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, worker := range f.workers {
		if worker.Email == email {
			return worker, nil
		}
	}
	return models.Worker{}, store.ErrWorkerNotFound
}

func (f *fakeWorkers) ListWorkers(context.Context) ([]models.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	workers := make([]models.Worker, 0, len(f.workers))
	for _, worker := range f.workers {
		workers = append(workers, worker)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID < workers[j].ID })
	return workers, nil
}

func (f *fakeWorkers) ListCategoryWorkers(ctx context.Context, categoryID int64) ([]models.Worker, error) {
	all, _ := f.ListWorkers(ctx)
	workers := []models.Worker{}
	for _, worker := range all {
		if worker.CategoryID != nil && *worker.CategoryID == categoryID {
			workers = append(workers, worker)
		}
	}
	return workers, nil
}

func (f *fakeWorkers) UpdateWorker(_ context.Context, workerID int64, input store.UpdateWorkerInput) (models.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	worker, ok := f.workers[workerID]
	if !ok {
		return models.Worker{}, store.ErrWorkerNotFound
	}
	worker.FirstName = input.FirstName
	worker.LastName = input.LastName
	worker.Email = input.Email
	worker.Window = input.Window
	worker.IsAdmin = input.IsAdmin
	worker.CategoryID = input.CategoryID
	f.workers[workerID] = worker
	return worker, nil
}

func (f *fakeWorkers) DeleteWorker(_ context.Context, workerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.workers[workerID]; !ok {
		return store.ErrWorkerNotFound
	}
	if f.busy[workerID] {
		return store.ErrWorkerBusy
	}
	delete(f.workers, workerID)
	return nil
}

type fakeReports struct {
	dashboardFn  func(ctx context.Context) (models.AdminDashboard, error)
	statisticsFn func(ctx context.Context) (models.Statistics, error)
	reportFn     func(ctx context.Context, workerID int64) (models.WorkerReport, error)
	activityFn   func(ctx context.Context, workerID int64, period string) ([]models.Ticket, error)
}

func (f fakeReports) Dashboard(ctx context.Context) (models.AdminDashboard, error) {
	if f.dashboardFn == nil {
		return models.AdminDashboard{}, nil
	}
	return f.dashboardFn(ctx)
}

func (f fakeReports) Statistics(ctx context.Context) (models.Statistics, error) {
	if f.statisticsFn == nil {
		return models.Statistics{}, nil
	}
	return f.statisticsFn(ctx)
}

func (f fakeReports) WorkerReport(ctx context.Context, workerID int64) (models.WorkerReport, error) {
	if f.reportFn == nil {
		return models.WorkerReport{}, store.ErrWorkerNotFound
	}
	return f.reportFn(ctx, workerID)
}

func (f fakeReports) WorkerActivity(ctx context.Context, workerID int64, period string) ([]models.Ticket, error) {
	if f.activityFn == nil {
		return []models.Ticket{}, nil
	}
	return f.activityFn(ctx, workerID, period)
}

type sentMessage struct {
	recipient string
	message   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Send(_ context.Context, message, recipient string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{recipient: recipient, message: message})
	return nil
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}
