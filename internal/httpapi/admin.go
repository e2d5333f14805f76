package httpapi

import (
	"context"
	"net/http"
	"strings"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/store"
)

// Reports is the admin reporting surface.
type Reports interface {
	Dashboard(ctx context.Context) (models.AdminDashboard, error)
	Statistics(ctx context.Context) (models.Statistics, error)
	WorkerReport(ctx context.Context, workerID int64) (models.WorkerReport, error)
	WorkerActivity(ctx context.Context, workerID int64, period string) ([]models.Ticket, error)
}

type updateWorkerRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Window     int    `json:"window"`
	IsAdmin    bool   `json:"is_admin"`
	CategoryID *int64 `json:"category_id"`
}

func (h *Handler) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.reports.Dashboard(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.Statistics(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleWorkerReport(w http.ResponseWriter, r *http.Request) {
	workerID, ok := pathID(w, r, "workerID")
	if !ok {
		return
	}
	report, err := h.reports.WorkerReport(r.Context(), workerID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleWorkerActivity reads the period from the query string and defaults
// to one day.
func (h *Handler) handleWorkerActivity(w http.ResponseWriter, r *http.Request) {
	workerID, ok := pathID(w, r, "workerID")
	if !ok {
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1_day"
	}
	tickets, err := h.reports.WorkerActivity(r.Context(), workerID, period)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "categoryID")
	if !ok {
		return
	}
	var req createCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	category, err := h.categories.RenameCategory(r.Context(), categoryID, req.Name)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (h *Handler) handleCategoryWorkers(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "categoryID")
	if !ok {
		return
	}
	workers, err := h.workers.ListCategoryWorkers(r.Context(), categoryID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}

func (h *Handler) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.workers.ListWorkers(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}

func (h *Handler) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	workerID, ok := pathID(w, r, "workerID")
	if !ok {
		return
	}
	worker, err := h.workers.GetWorker(r.Context(), workerID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

func (h *Handler) handleUpdateWorker(w http.ResponseWriter, r *http.Request) {
	workerID, ok := pathID(w, r, "workerID")
	if !ok {
		return
	}
	var req updateWorkerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	if msg := validateWorker(req.FirstName, req.Email, req.Window); msg != "" {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", msg)
		return
	}
	worker, err := h.workers.UpdateWorker(r.Context(), workerID, store.UpdateWorkerInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Window:     req.Window,
		IsAdmin:    req.IsAdmin,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

func (h *Handler) handleDeleteWorker(w http.ResponseWriter, r *http.Request) {
	workerID, ok := pathID(w, r, "workerID")
	if !ok {
		return
	}
	if current, _ := workerFromContext(r.Context()); current.ID == workerID {
		writeError(w, requestID(r), http.StatusConflict, "invalid_request", "cannot delete the signed-in worker")
		return
	}
	if err := h.workers.DeleteWorker(r.Context(), workerID); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validateWorker returns a client-facing message for the first invalid
// field, or an empty string.
func validateWorker(firstName, email string, window int) string {
	switch {
	case firstName == "" || email == "":
		return "first_name and email are required"
	case !strings.Contains(email, "@"):
		return "email is invalid"
	case window <= 0:
		return "window must be positive"
	default:
		return ""
	}
}
