package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"qms/ticket-queue/internal/hub"
	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/store"
)

func newAdminHandler(reports fakeReports, categories fakeCategories, workers *fakeWorkers) *Handler {
	if workers == nil {
		workers = newFakeWorkers(staffWorker, adminWorker)
	}
	return NewHandler(fakeQueue{}, categories, workers, reports, hub.New(), &recordingNotifier{}, Options{
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
	})
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newAdminHandler(fakeReports{}, fakeCategories{}, nil)
	staff := tokenFor(t, h, staffWorker)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/admin/dashboard"},
		{http.MethodGet, "/api/admin/statistics"},
		{http.MethodGet, "/api/admin/workers/7"},
		{http.MethodGet, "/api/workers"},
		{http.MethodGet, "/api/workers/7"},
		{http.MethodDelete, "/api/workers/7"},
		{http.MethodGet, "/api/categories/1/workers"},
	}
	for _, p := range paths {
		if resp := do(h, p.method, p.path, nil, ""); resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token: expected 401, got %d", p.method, p.path, resp.Code)
		}
		if resp := do(h, p.method, p.path, nil, staff); resp.Code != http.StatusForbidden {
			t.Fatalf("%s %s as staff: expected 403, got %d", p.method, p.path, resp.Code)
		}
	}
}

func TestAdminDashboard(t *testing.T) {
	h := newAdminHandler(fakeReports{
		dashboardFn: func(ctx context.Context) (models.AdminDashboard, error) {
			return models.AdminDashboard{
				Waiting:       4,
				AcceptedToday: 10,
				ServedToday:   8,
				Categories:    []models.CategoryWorkers{{ID: 0, Name: "unassigned", Workers: []models.Worker{}}},
			}, nil
		},
	}, fakeCategories{}, nil)

	resp := do(h, http.MethodGet, "/api/admin/dashboard", nil, tokenFor(t, h, adminWorker))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["clients_in_queue"] != float64(4) || payload["served_today"] != float64(8) {
		t.Fatalf("unexpected dashboard: %v", payload)
	}
}

func TestWorkerActivityPeriod(t *testing.T) {
	var gotWorker int64
	var gotPeriod string
	h := newAdminHandler(fakeReports{
		activityFn: func(ctx context.Context, workerID int64, period string) ([]models.Ticket, error) {
			gotWorker, gotPeriod = workerID, period
			if period == "1_year" {
				return nil, store.ErrInvalidInput
			}
			return []models.Ticket{{ID: 1}}, nil
		},
	}, fakeCategories{}, nil)
	token := tokenFor(t, h, adminWorker)

	resp := do(h, http.MethodGet, "/api/admin/workers/7/tickets", nil, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if gotWorker != 7 || gotPeriod != "1_day" {
		t.Fatalf("expected worker 7 and default period, got %d %q", gotWorker, gotPeriod)
	}

	resp = do(h, http.MethodGet, "/api/admin/workers/7/tickets?period=1_month", nil, token)
	if resp.Code != http.StatusOK || gotPeriod != "1_month" {
		t.Fatalf("expected 1_month period, got %d %q", resp.Code, gotPeriod)
	}

	resp = do(h, http.MethodGet, "/api/admin/workers/7/tickets?period=1_year", nil, token)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestWorkerReportUnknownWorker(t *testing.T) {
	h := newAdminHandler(fakeReports{}, fakeCategories{}, nil)
	resp := do(h, http.MethodGet, "/api/admin/workers/55", nil, tokenFor(t, h, adminWorker))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "worker_not_found" {
		t.Fatalf("expected worker_not_found, got %s", code)
	}
}

func TestRenameCategory(t *testing.T) {
	h := newAdminHandler(fakeReports{}, fakeCategories{
		renameFn: func(ctx context.Context, categoryID int64, name string) (models.Category, error) {
			if name == "Taken" {
				return models.Category{}, store.ErrCategoryExists
			}
			return models.Category{ID: categoryID, Name: name}, nil
		},
	}, nil)
	token := tokenFor(t, h, adminWorker)

	resp := do(h, http.MethodPut, "/api/categories/3", map[string]string{"name": "  Mortgages "}, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var category models.Category
	if err := json.NewDecoder(resp.Body).Decode(&category); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if category.ID != 3 || category.Name != "Mortgages" {
		t.Fatalf("unexpected category: %+v", category)
	}

	resp = do(h, http.MethodPut, "/api/categories/3", map[string]string{"name": "Taken"}, token)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	resp = do(h, http.MethodPut, "/api/categories/3", map[string]string{"name": " "}, token)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCategoryWorkers(t *testing.T) {
	h := newAdminHandler(fakeReports{}, fakeCategories{}, nil)
	resp := do(h, http.MethodGet, "/api/categories/1/workers", nil, tokenFor(t, h, adminWorker))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var workers []models.Worker
	if err := json.NewDecoder(resp.Body).Decode(&workers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(workers) != 1 || workers[0].ID != staffWorker.ID {
		t.Fatalf("expected the category's worker, got %+v", workers)
	}
}

func TestUpdateWorker(t *testing.T) {
	workers := newFakeWorkers(staffWorker, adminWorker)
	h := newAdminHandler(fakeReports{}, fakeCategories{}, workers)
	token := tokenFor(t, h, adminWorker)

	body := map[string]interface{}{
		"first_name":  "Aigerim",
		"last_name":   "Sadykova",
		"email":       "aigerim@example.com",
		"window":      5,
		"category_id": nil,
	}
	resp := do(h, http.MethodPut, "/api/workers/7", body, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	updated, err := workers.GetWorker(context.Background(), 7)
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	if updated.Window != 5 || updated.CategoryID != nil || updated.Email != "aigerim@example.com" {
		t.Fatalf("unexpected worker after update: %+v", updated)
	}

	body["window"] = 0
	resp = do(h, http.MethodPut, "/api/workers/7", body, token)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}

	body["window"] = 2
	resp = do(h, http.MethodPut, "/api/workers/70", body, token)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestDeleteWorker(t *testing.T) {
	other := models.Worker{ID: 11, FirstName: "Bolat", Email: "bolat@example.com", Window: 2, CategoryID: &categoryOne}
	workers := newFakeWorkers(staffWorker, adminWorker, other)
	workers.busy[staffWorker.ID] = true
	h := newAdminHandler(fakeReports{}, fakeCategories{}, workers)
	token := tokenFor(t, h, adminWorker)

	resp := do(h, http.MethodDelete, "/api/workers/7", nil, token)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for a worker serving a ticket, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "worker_busy" {
		t.Fatalf("expected worker_busy, got %s", code)
	}

	resp = do(h, http.MethodDelete, "/api/workers/9", nil, token)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for deleting oneself, got %d", resp.Code)
	}

	resp = do(h, http.MethodDelete, "/api/workers/11", nil, token)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
	if _, err := workers.GetWorker(context.Background(), 11); err == nil {
		t.Fatalf("expected worker to be removed")
	}
}

func TestListWorkers(t *testing.T) {
	h := newAdminHandler(fakeReports{}, fakeCategories{}, nil)
	resp := do(h, http.MethodGet, "/api/workers", nil, tokenFor(t, h, adminWorker))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var workers []models.Worker
	if err := json.NewDecoder(resp.Body).Decode(&workers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(workers) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(workers))
	}
}

func TestStatistics(t *testing.T) {
	h := newAdminHandler(fakeReports{
		statisticsFn: func(ctx context.Context) (models.Statistics, error) {
			return models.Statistics{
				Day:     "2026-03-02",
				General: models.CategoryStatistic{Name: "general", Waiting: 3},
			}, nil
		},
	}, fakeCategories{}, nil)

	resp := do(h, http.MethodGet, "/api/admin/statistics", nil, tokenFor(t, h, adminWorker))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var stats models.Statistics
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Day != "2026-03-02" || stats.General.Waiting != 3 {
		t.Fatalf("unexpected statistics: %+v", stats)
	}
}
