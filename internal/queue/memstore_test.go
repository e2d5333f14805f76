package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/store"
)

// memStore is an in-memory TicketStore and CategoryStore that follows the
// same transition rules as the Postgres store.
type memStore struct {
	mu         sync.Mutex
	nextID     int64
	counter    int64
	tickets    map[int64]*models.Ticket
	categories map[int64]models.Category
	failWith   error
	now        func() time.Time
}

func newMemStore(categoryIDs ...int64) *memStore {
	st := &memStore{
		tickets:    map[int64]*models.Ticket{},
		categories: map[int64]models.Category{},
		now:        time.Now,
	}
	for _, id := range categoryIDs {
		st.categories[id] = models.Category{ID: id, Name: fmt.Sprintf("category-%d", id)}
	}
	return st
}

func (s *memStore) CreateTicket(_ context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return models.Ticket{}, false, s.failWith
	}
	if _, ok := s.categories[input.CategoryID]; !ok {
		return models.Ticket{}, false, store.ErrCategoryNotFound
	}
	for _, ticket := range s.tickets {
		if ticket.Status == models.StatusWaiting && ticket.FullName == input.FullName &&
			ticket.PhoneNumber == input.PhoneNumber && ticket.CategoryID == input.CategoryID {
			return *ticket, false, nil
		}
	}
	s.nextID++
	s.counter++
	ticket := &models.Ticket{
		ID:          s.nextID,
		FullName:    input.FullName,
		PhoneNumber: input.PhoneNumber,
		Language:    input.Language,
		Number:      fmt.Sprintf("%03d", s.counter),
		Status:      models.StatusWaiting,
		CategoryID:  input.CategoryID,
		CreatedAt:   s.now().UTC(),
		Token:       input.Token,
	}
	s.tickets[ticket.ID] = ticket
	return *ticket, true, nil
}

func (s *memStore) GetTicket(_ context.Context, ticketID int64) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return *ticket, nil
}

func (s *memStore) GetTicketByToken(_ context.Context, token string) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ticket := range s.tickets {
		if ticket.Token == token {
			return *ticket, nil
		}
	}
	return models.Ticket{}, store.ErrTicketNotFound
}

func (s *memStore) ListWaiting(_ context.Context, categoryID int64) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitingLocked(categoryID), nil
}

func (s *memStore) waitingLocked(categoryID int64) []models.Ticket {
	tickets := []models.Ticket{}
	for _, ticket := range s.tickets {
		if ticket.Status != models.StatusWaiting {
			continue
		}
		if categoryID != 0 && ticket.CategoryID != categoryID {
			continue
		}
		tickets = append(tickets, *ticket)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets
}

func (s *memStore) TicketStatus(ctx context.Context, ticketID int64) (models.TicketStatus, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return models.TicketStatus{}, err
	}
	status := models.TicketStatus{Ticket: ticket}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.Status == models.StatusWaiting {
		for _, waiting := range s.waitingLocked(ticket.CategoryID) {
			if waiting.ID == ticket.ID {
				break
			}
			status.Ahead++
		}
	}
	return status, nil
}

func (s *memStore) ClaimNext(_ context.Context, input store.ClaimInput) (store.ClaimResult, error) {
	return s.claim(input, store.ActionComplete)
}

func (s *memStore) SkipCurrent(_ context.Context, input store.ClaimInput) (store.ClaimResult, error) {
	return s.claim(input, store.ActionSkip)
}

func (s *memStore) claim(input store.ClaimInput, release store.Action) (store.ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return store.ClaimResult{}, s.failWith
	}
	var result store.ClaimResult
	if current := s.invitedLocked(input.WorkerID); current != nil {
		target, _ := store.Target(release)
		current.Status = target
		if target == models.StatusCompleted {
			at := input.At
			current.EndTime = &at
		}
		previous := *current
		result.Previous = &previous
	} else if release == store.ActionSkip {
		return store.ClaimResult{}, store.ErrNoActiveTicket
	}

	waiting := s.waitingLocked(input.CategoryID)
	if len(waiting) == 0 {
		return result, store.ErrNoTicket
	}
	next := s.tickets[waiting[0].ID]
	workerID := input.WorkerID
	at := input.At
	next.Status = models.StatusInvited
	next.WorkerID = &workerID
	next.StartTime = &at
	claimed := *next
	result.Next = &claimed
	return result, nil
}

func (s *memStore) invitedLocked(workerID int64) *models.Ticket {
	for _, ticket := range s.tickets {
		if ticket.Status == models.StatusInvited && ticket.WorkerID != nil && *ticket.WorkerID == workerID {
			return ticket
		}
	}
	return nil
}

func (s *memStore) CurrentTicket(_ context.Context, workerID int64) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current := s.invitedLocked(workerID); current != nil {
		return *current, nil
	}
	return models.Ticket{}, store.ErrNoActiveTicket
}

func (s *memStore) ListWorkerTickets(_ context.Context, workerID int64) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tickets := []models.Ticket{}
	for _, ticket := range s.tickets {
		if ticket.WorkerID != nil && *ticket.WorkerID == workerID {
			tickets = append(tickets, *ticket)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID > tickets[j].ID })
	return tickets, nil
}

func (s *memStore) WorkerStats(_ context.Context, workerID int64, since time.Time) (models.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dashboard models.Dashboard
	for _, ticket := range s.tickets {
		if ticket.WorkerID == nil || *ticket.WorkerID != workerID || ticket.CreatedAt.Before(since) {
			continue
		}
		switch ticket.Status {
		case models.StatusInvited:
			dashboard.AcceptedToday++
		case models.StatusCompleted:
			dashboard.AcceptedToday++
			dashboard.ServedToday++
		case models.StatusSkipped:
			dashboard.AcceptedToday++
			dashboard.SkippedToday++
		}
	}
	return dashboard, nil
}

func (s *memStore) transition(ticketID int64, action store.Action, apply func(*models.Ticket)) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if !store.ValidTransition(action, ticket.Status) {
		return models.Ticket{}, store.ErrInvalidState
	}
	apply(ticket)
	return *ticket, nil
}

func (s *memStore) CancelTicket(_ context.Context, ticketID int64) (models.Ticket, error) {
	return s.transition(ticketID, store.ActionCancel, func(ticket *models.Ticket) {
		ticket.Status = models.StatusCancelled
	})
}

func (s *memStore) RateTicket(_ context.Context, ticketID int64, rating int) (models.Ticket, error) {
	if rating < 1 || rating > 5 {
		return models.Ticket{}, store.ErrInvalidRating
	}
	return s.transition(ticketID, store.ActionRate, func(ticket *models.Ticket) {
		value := rating
		ticket.Rate = &value
	})
}

func (s *memStore) DeleteTicket(_ context.Context, ticketID int64) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	delete(s.tickets, ticketID)
	return *ticket, nil
}

func (s *memStore) LinkSubscriber(_ context.Context, token, subscriberID string) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ticket := range s.tickets {
		if ticket.Token == token {
			id := subscriberID
			ticket.SubscriberID = &id
			return *ticket, nil
		}
	}
	return models.Ticket{}, store.ErrTicketNotFound
}

func (s *memStore) PurgeWaitingAndResetCounter(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	var removed int64
	for id, ticket := range s.tickets {
		if ticket.Status == models.StatusWaiting {
			delete(s.tickets, id)
			removed++
		}
	}
	s.counter = 0
	return removed, nil
}

func (s *memStore) CurrentCounter(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter, nil
}

func (s *memStore) CreateCategory(_ context.Context, name string) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := int64(len(s.categories) + 1)
	category := models.Category{ID: id, Name: name}
	s.categories[id] = category
	return category, nil
}

func (s *memStore) GetCategory(_ context.Context, categoryID int64) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	category, ok := s.categories[categoryID]
	if !ok {
		return models.Category{}, store.ErrCategoryNotFound
	}
	return category, nil
}

func (s *memStore) ListCategories(context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	categories := []models.Category{}
	for _, category := range s.categories {
		categories = append(categories, category)
	}
	return categories, nil
}

func (s *memStore) RenameCategory(_ context.Context, categoryID int64, name string) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	category, ok := s.categories[categoryID]
	if !ok {
		return models.Category{}, store.ErrCategoryNotFound
	}
	category.Name = name
	s.categories[categoryID] = category
	return category, nil
}

func (s *memStore) DeleteCategory(_ context.Context, categoryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[categoryID]; !ok {
		return store.ErrCategoryNotFound
	}
	delete(s.categories, categoryID)
	return nil
}

func (s *memStore) AverageRating(_ context.Context, categoryID int64) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum, count int
	for _, ticket := range s.tickets {
		if ticket.CategoryID == categoryID && ticket.Rate != nil {
			sum += *ticket.Rate
			count++
		}
	}
	if count == 0 {
		return 0, false, nil
	}
	return float64(sum) / float64(count), true, nil
}

// recordingPublisher captures published events in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) actions() []models.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	actions := make([]models.Action, 0, len(p.events))
	for _, event := range p.events {
		actions = append(actions, event.Action)
	}
	return actions
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
