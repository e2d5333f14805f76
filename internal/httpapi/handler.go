package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"qms/ticket-queue/internal/hub"
	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/notify"
	"qms/ticket-queue/internal/queue"
	"qms/ticket-queue/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"
)

const maxBodyBytes = 1 << 20

// Queue is the part of the queue engine the HTTP layer drives.
type Queue interface {
	CreateTicket(ctx context.Context, req queue.CreateTicketRequest) (models.Ticket, bool, error)
	GetTicket(ctx context.Context, ticketID int64) (models.Ticket, error)
	GetTicketByToken(ctx context.Context, token string) (models.Ticket, error)
	TicketStatus(ctx context.Context, ticketID int64) (models.TicketStatus, error)
	Waiting(ctx context.Context, categoryID int64) ([]models.Ticket, error)
	ClaimNext(ctx context.Context, worker models.Worker) (models.Ticket, error)
	SkipCurrent(ctx context.Context, worker models.Worker) (models.Ticket, error)
	CurrentTicket(ctx context.Context, worker models.Worker) (models.Ticket, error)
	WorkerHistory(ctx context.Context, worker models.Worker) ([]models.Ticket, error)
	Dashboard(ctx context.Context, worker models.Worker) (models.Dashboard, error)
	Rate(ctx context.Context, ticketID int64, rating int) (models.Ticket, error)
	Cancel(ctx context.Context, ticketID int64) (models.Ticket, error)
	Delete(ctx context.Context, ticketID int64) error
	Purge(ctx context.Context) (int64, error)
	CurrentCounter(ctx context.Context) (int64, error)
	AverageRating(ctx context.Context, categoryID int64) (float64, bool, error)
	LinkSubscriber(ctx context.Context, token, subscriberID string) (models.Ticket, error)
}

type Options struct {
	JWTSecret  string
	TokenTTL   time.Duration
	SendBuffer int
	Telegram   TelegramOptions
}

type Handler struct {
	queue      Queue
	categories store.CategoryStore
	workers    store.WorkerStore
	reports    Reports
	hub        *hub.Hub
	notifier   notify.Provider
	tokens     tokenIssuer
	telegram   TelegramOptions
	sendBuffer int
}

type createTicketRequest struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	CategoryID  int64  `json:"category_id"`
	Language    string `json:"language"`
}

type rateRequest struct {
	Rate int `json:"rate"`
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

type createWorkerRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Window     int    `json:"window"`
	IsAdmin    bool   `json:"is_admin"`
	CategoryID *int64 `json:"category_id"`
}

type ratingResponse struct {
	CategoryID    int64    `json:"category_id"`
	AverageRating *float64 `json:"average_rating"`
}

type counterResponse struct {
	Counter int64  `json:"counter"`
	Removed *int64 `json:"removed,omitempty"`
}

type errorResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(q Queue, categories store.CategoryStore, workers store.WorkerStore, reports Reports, h *hub.Hub, notifier notify.Provider, opts Options) *Handler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 16
	}
	if opts.JWTSecret == "" {
		log.Printf("JWT_SECRET not set, worker endpoints disabled")
	}
	return &Handler{
		queue:      q,
		categories: categories,
		workers:    workers,
		reports:    reports,
		hub:        h,
		notifier:   notifier,
		tokens:     newTokenIssuer(opts.JWTSecret, opts.TokenTTL),
		telegram:   opts.Telegram,
		sendBuffer: opts.SendBuffer,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.handleWebSocket)
	r.Handle("/realtime/*", h.sockjsHandler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.handleLogin)
		r.Post("/telegram/webhook", h.handleTelegramWebhook)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.handleListCategories)
			r.Get("/{categoryID}", h.handleGetCategory)
			r.Get("/{categoryID}/tickets", h.handleCategoryTickets)
			r.Get("/{categoryID}/rating", h.handleCategoryRating)
			r.Group(func(r chi.Router) {
				r.Use(h.authenticate, requireAdmin)
				r.Post("/", h.handleCreateCategory)
				r.Put("/{categoryID}", h.handleRenameCategory)
				r.Delete("/{categoryID}", h.handleDeleteCategory)
				r.Get("/{categoryID}/workers", h.handleCategoryWorkers)
			})
		})

		r.Route("/workers", func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/me", h.handleMe)
			r.Get("/me/tickets", h.handleMyTickets)
			r.Get("/me/dashboard", h.handleMyDashboard)
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/", h.handleListWorkers)
				r.Post("/", h.handleCreateWorker)
				r.Get("/{workerID}", h.handleGetWorker)
				r.Put("/{workerID}", h.handleUpdateWorker)
				r.Delete("/{workerID}", h.handleDeleteWorker)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authenticate, requireAdmin)
			r.Get("/dashboard", h.handleAdminDashboard)
			r.Get("/statistics", h.handleStatistics)
			r.Get("/workers/{workerID}", h.handleWorkerReport)
			r.Get("/workers/{workerID}/tickets", h.handleWorkerActivity)
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Post("/", h.handleCreateTicket)
			r.Get("/by-token/{token}", h.handleTicketByToken)
			r.Get("/{ticketID}", h.handleGetTicket)
			r.Get("/{ticketID}/status", h.handleTicketStatus)
			r.Post("/{ticketID}/cancel", h.handleCancelTicket)
			r.Post("/{ticketID}/rate", h.handleRateTicket)
			r.Group(func(r chi.Router) {
				r.Use(h.authenticate)
				r.Get("/current", h.handleCurrentTicket)
				r.Post("/actions/claim-next", h.handleClaimNext)
				r.Post("/actions/skip", h.handleSkip)
				r.With(requireAdmin).Delete("/{ticketID}", h.handleDeleteTicket)
			})
		})

		r.Route("/counter", func(r chi.Router) {
			r.Use(h.authenticate, requireAdmin)
			r.Get("/", h.handleGetCounter)
			r.Post("/reset", h.handleResetCounter)
		})
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.FullName == "" || req.PhoneNumber == "" || req.CategoryID <= 0 {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "full_name, phone_number, and category_id are required")
		return
	}

	ticket, created, err := h.queue.CreateTicket(r.Context(), queue.CreateTicketRequest{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		CategoryID:  req.CategoryID,
		Language:    req.Language,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if created {
		writeJSON(w, http.StatusCreated, ticket)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := pathID(w, r, "ticketID")
	if !ok {
		return
	}
	ticket, err := h.queue.GetTicket(r.Context(), ticketID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketByToken(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "token is required")
		return
	}
	ticket, err := h.queue.GetTicketByToken(r.Context(), token)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketStatus(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := pathID(w, r, "ticketID")
	if !ok {
		return
	}
	status, err := h.queue.TicketStatus(r.Context(), ticketID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleCancelTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := pathID(w, r, "ticketID")
	if !ok {
		return
	}
	ticket, err := h.queue.Cancel(r.Context(), ticketID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleRateTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := pathID(w, r, "ticketID")
	if !ok {
		return
	}
	var req rateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ticket, err := h.queue.Rate(r.Context(), ticketID, req.Rate)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := pathID(w, r, "ticketID")
	if !ok {
		return
	}
	if err := h.queue.Delete(r.Context(), ticketID); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCurrentTicket answers 204 when the worker holds no invited ticket.
func (h *Handler) handleCurrentTicket(w http.ResponseWriter, r *http.Request) {
	worker, _ := workerFromContext(r.Context())
	ticket, err := h.queue.CurrentTicket(r.Context(), worker)
	if errors.Is(err, store.ErrNoActiveTicket) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleClaimNext(w http.ResponseWriter, r *http.Request) {
	worker, _ := workerFromContext(r.Context())
	ticket, err := h.queue.ClaimNext(r.Context(), worker)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleSkip(w http.ResponseWriter, r *http.Request) {
	worker, _ := workerFromContext(r.Context())
	ticket, err := h.queue.SkipCurrent(r.Context(), worker)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListCategories(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "categoryID")
	if !ok {
		return
	}
	category, err := h.categories.GetCategory(r.Context(), categoryID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (h *Handler) handleCategoryTickets(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "categoryID")
	if !ok {
		return
	}
	tickets, err := h.queue.Waiting(r.Context(), categoryID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleCategoryRating(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "categoryID")
	if !ok {
		return
	}
	average, rated, err := h.queue.AverageRating(r.Context(), categoryID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	resp := ratingResponse{CategoryID: categoryID}
	if rated {
		resp.AverageRating = &average
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	category, err := h.categories.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "categoryID")
	if !ok {
		return
	}
	if err := h.categories.DeleteCategory(r.Context(), categoryID); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateWorker(w http.ResponseWriter, r *http.Request) {
	var req createWorkerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	if req.Password == "" {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "password is required")
		return
	}
	if msg := validateWorker(req.FirstName, req.Email, req.Window); msg != "" {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", msg)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "password is not acceptable")
		return
	}
	worker, err := h.workers.CreateWorker(r.Context(), store.CreateWorkerInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Window:       req.Window,
		IsAdmin:      req.IsAdmin,
		CategoryID:   req.CategoryID,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, worker)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	worker, _ := workerFromContext(r.Context())
	writeJSON(w, http.StatusOK, worker)
}

func (h *Handler) handleMyTickets(w http.ResponseWriter, r *http.Request) {
	worker, _ := workerFromContext(r.Context())
	tickets, err := h.queue.WorkerHistory(r.Context(), worker)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleMyDashboard(w http.ResponseWriter, r *http.Request) {
	worker, _ := workerFromContext(r.Context())
	dashboard, err := h.queue.Dashboard(r.Context(), worker)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) handleGetCounter(w http.ResponseWriter, r *http.Request) {
	counter, err := h.queue.CurrentCounter(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counterResponse{Counter: counter})
}

func (h *Handler) handleResetCounter(w http.ResponseWriter, r *http.Request) {
	removed, err := h.queue.Purge(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counterResponse{Counter: 0, Removed: &removed})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "invalid id")
		return 0, false
	}
	return id, true
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrCategoryNotFound):
		return http.StatusNotFound, "category_not_found", "category not found"
	case errors.Is(err, store.ErrWorkerNotFound):
		return http.StatusNotFound, "worker_not_found", "worker not found"
	case errors.Is(err, store.ErrNoTicket):
		return http.StatusNotFound, "no_ticket", "no tickets available"
	case errors.Is(err, store.ErrNoActiveTicket):
		return http.StatusConflict, "no_active_ticket", "worker has no invited ticket"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "ticket state does not allow this action"
	case errors.Is(err, store.ErrInvalidRating):
		return http.StatusBadRequest, "invalid_rating", "rating must be between 1 and 5"
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request", "invalid request payload"
	case errors.Is(err, store.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized", "authentication required"
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden, "access_denied", "access denied"
	case errors.Is(err, store.ErrWorkerUnassigned):
		return http.StatusForbidden, "worker_unassigned", "worker has no category"
	case errors.Is(err, store.ErrEmailTaken):
		return http.StatusConflict, "email_taken", "email already registered"
	case errors.Is(err, store.ErrCategoryExists):
		return http.StatusConflict, "category_exists", "category already exists"
	case errors.Is(err, store.ErrWorkerBusy):
		return http.StatusConflict, "worker_busy", "worker is serving a ticket"
	case errors.Is(err, store.ErrTransient):
		return http.StatusServiceUnavailable, "unavailable", "temporarily unavailable, retry"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	case http.StatusInternalServerError:
		log.Printf("request error method=%s path=%s request_id=%s: %v", r.Method, r.URL.Path, requestID(r), err)
	}
	writeError(w, requestID(r), status, code, msg)
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
