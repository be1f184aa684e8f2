package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"roombook/internal/config"
	"roombook/internal/conflict"
	"roombook/internal/database"
	"roombook/internal/invoicing"
	"roombook/internal/models"
	"roombook/internal/occupancy"
	"roombook/internal/repository"
	"roombook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	db     *database.DB
	svc    Services
	room   *models.Room
	desk   *models.Workspace
	client *models.Client
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	st := &stack{db: db}
	st.room = &models.Room{Name: "Hall", HourlyRate: 1000, DailyRate: models.Rate(6000), IsActive: true}
	require.NoError(t, db.SaveRoom(ctx, st.room))
	space := &models.Room{Name: "Open space", HourlyRate: 500, IsCoworking: true, IsActive: true}
	require.NoError(t, db.SaveRoom(ctx, space))
	st.desk = &models.Workspace{RoomID: space.ID, Name: "Desk 1", DailyRate: models.Rate(500), IsActive: true}
	require.NoError(t, db.SaveWorkspace(ctx, st.desk))
	st.client = &models.Client{Name: "Alice Smith", Phone: "+100"}
	require.NoError(t, db.SaveClient(ctx, st.client))

	invoices := invoicing.NewStore(db, &logger)
	agg := occupancy.NewAggregator(db, repository.NewMemoryOccupancyCache(time.Minute), 0, &logger, db.Sources()...)
	avail := service.NewAvailabilityService(db, conflict.NewChecker(&logger, db.Sources()...), 0, &logger)
	bookings := service.NewBookingService(service.Deps{
		Repo:         db,
		Availability: avail,
		Invoicing:    invoices,
		Clients:      db,
		Invalidator:  agg,
	}, service.Options{}, &logger)

	st.svc = Services{
		Bookings:     bookings,
		Availability: avail,
		Invoices:     service.NewInvoiceService(db, invoices, service.Options{}, &logger),
		Occupancy:    agg,
		Ready:        db.PingContext,
	}
	return st
}

func newTestServer(t *testing.T, st *stack, cfg config.APIConfig) *httptest.Server {
	t.Helper()
	srv := NewHTTPServer(cfg, st.svc, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url string, body any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func (st *stack) hourlyBody(day, start, end string) map[string]any {
	return map[string]any{
		"rental_type": "hourly",
		"resource":    map[string]any{"room_id": st.room.ID},
		"client_id":   st.client.ID,
		"period":      map[string]any{"start_date": day, "start_time": start, "end_time": end},
	}
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	st := newStack(t)
	ts := newTestServer(t, st, config.APIConfig{})
	base := ts.URL + "/api/v1"

	resp, body := do(t, http.MethodPost, base+"/bookings", st.hourlyBody("2025-03-01", "10:00", "12:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "0000001", body["number"])
	assert.Equal(t, 2000.0, body["total_price"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	id := int64(body["id"].(float64))

	resp, body = do(t, http.MethodPost, base+"/bookings", st.hourlyBody("2025-03-01", "11:00", "13:00"))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["kind"])
	conflicts, ok := body["conflicts"].([]any)
	require.True(t, ok)
	assert.Len(t, conflicts, 1)

	resp, body = do(t, http.MethodGet, fmt.Sprintf("%s/bookings/%d/edit-status", base, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["editable"])

	resp, body = do(t, http.MethodPost, fmt.Sprintf("%s/bookings/%d/confirm", base, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "confirmed", body["status"])

	resp, body = do(t, http.MethodPost, fmt.Sprintf("%s/bookings/%d/complete", base, id), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "confirmed cannot complete before it is active")
	assert.Equal(t, "invariant", body["kind"])

	resp, body = do(t, http.MethodGet, base+"/bookings?status=confirmed&q=Alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["total"])

	resp, body = do(t, http.MethodGet, fmt.Sprintf("%s/rooms/%d/occupancy?dates=2025-03-01", base, st.room.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	occ := body["occupancy"].(map[string]any)["2025-03-01"].(map[string]any)
	assert.Contains(t, occ, "10")
	assert.Contains(t, occ, "11")
	assert.NotContains(t, occ, "12")

	resp, _ = do(t, http.MethodPost, fmt.Sprintf("%s/bookings/%d/cancel", base, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, http.MethodGet, fmt.Sprintf("%s/rooms/%d/occupancy?dates=2025-03-01", base, st.room.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["occupancy"].(map[string]any)["2025-03-01"], "cancel invalidates the cached day")

	resp, _ = do(t, http.MethodDelete, fmt.Sprintf("%s/bookings/%d", base, id), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, http.MethodGet, fmt.Sprintf("%s/bookings/%d", base, id), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["kind"])
}

func TestAvailabilityAndPriceOverHTTP(t *testing.T) {
	st := newStack(t)
	ts := newTestServer(t, st, config.APIConfig{})
	base := ts.URL + "/api/v1"

	req := map[string]any{
		"rental_type": "workspace_daily",
		"resource":    map[string]any{"workspace_ids": []int64{st.desk.ID}},
		"period":      map[string]any{"start_date": "2025-03-03", "end_date": "2025-03-05"},
	}
	resp, body := do(t, http.MethodPost, base+"/availability/check", req)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["available"])
	assert.Equal(t, []any{}, body["conflicts"])

	req["client_id"] = st.client.ID
	resp, body = do(t, http.MethodPost, base+"/price/calculate", req)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, 3.0, body["quantity"])
	assert.Equal(t, 1500.0, body["total_price"])
}

func TestBatchInvoicesOverHTTP(t *testing.T) {
	st := newStack(t)
	ts := newTestServer(t, st, config.APIConfig{})
	base := ts.URL + "/api/v1"

	resp, body := do(t, http.MethodPost, base+"/bookings", st.hourlyBody("2025-03-02", "09:00", "10:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	id := int64(body["id"].(float64))

	resp, body = do(t, http.MethodPost, base+"/invoices/batch-create", map[string]any{"ids": []int64{id, 999}})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, []any{float64(id)}, body["succeeded"])
	assert.Len(t, body["skipped"], 1)

	resp, _ = do(t, http.MethodPost, base+"/invoices/batch-mark-paid", map[string]any{"ids": []int64{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecordPaymentOverHTTP(t *testing.T) {
	st := newStack(t)
	ts := newTestServer(t, st, config.APIConfig{})
	base := ts.URL + "/api/v1"

	resp, body := do(t, http.MethodPost, base+"/bookings", st.hourlyBody("2025-03-02", "09:00", "11:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	id := int64(body["id"].(float64))
	resp, body = do(t, http.MethodPost, base+"/invoices/batch-create", map[string]any{"ids": []int64{id}})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = do(t, http.MethodGet, fmt.Sprintf("%s/bookings/%d/edit-status", base, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.NotNil(t, body["invoice_id"])
	invoiceURL := fmt.Sprintf("%s/invoices/%d/payments", base, int64(body["invoice_id"].(float64)))

	resp, body = do(t, http.MethodPost, invoiceURL, map[string]any{"amount": 500})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "partially_paid", body["status"])
	assert.Equal(t, 500.0, body["paid_amount"])

	resp, body = do(t, http.MethodGet, fmt.Sprintf("%s/bookings/%d/edit-status", base, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, false, body["editable"], "a draft with a settled invoice is frozen")

	resp, _ = do(t, http.MethodPost, invoiceURL, map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodPost, invoiceURL, map[string]any{"amount": 1500})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "paid", body["status"])
	assert.Equal(t, 2000.0, body["paid_amount"])

	resp, _ = do(t, http.MethodPost, invoiceURL, map[string]any{"amount": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, base+"/invoices/999/payments", map[string]any{"amount": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestValidation(t *testing.T) {
	st := newStack(t)
	ts := newTestServer(t, st, config.APIConfig{})
	base := ts.URL + "/api/v1"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown field", http.MethodPost, "/bookings", map[string]any{"nope": 1}, http.StatusBadRequest},
		{"missing client", http.MethodPost, "/bookings", map[string]any{"rental_type": "hourly"}, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/availability/check", map[string]any{
			"rental_type": "room_daily", "period": map[string]any{"start_date": "01.03.2025"},
		}, http.StatusBadRequest},
		{"bad period type", http.MethodPost, "/price/calculate", map[string]any{
			"rental_type": "room_daily", "client_id": 1, "period": map[string]any{"period_type": "yearly"},
		}, http.StatusBadRequest},
		{"unknown rental type", http.MethodPost, "/availability/check", map[string]any{
			"rental_type": "forever", "resource": map[string]any{"room_id": 1}, "period": map[string]any{"start_date": "2025-03-01"},
		}, http.StatusBadRequest},
		{"bad list filter", http.MethodGet, "/bookings?client_id=abc", nil, http.StatusBadRequest},
		{"occupancy without dates", http.MethodGet, "/rooms/1/occupancy", nil, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/bookings/1/teleport", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, tt.method, base+tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	st := newStack(t)
	ts := newTestServer(t, st, config.APIConfig{Auth: config.APIAuthConfig{Enabled: true}})

	resp, _ := do(t, http.MethodGet, ts.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health is not behind auth")

	resp, _ = do(t, http.MethodGet, ts.URL+"/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	st.svc.Ready = func(context.Context) error { return fmt.Errorf("db down") }
	ts = newTestServer(t, st, config.APIConfig{})
	resp, _ = do(t, http.MethodGet, ts.URL+"/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func mustBookingRequest(t *testing.T, body map[string]any) models.BookingRequest {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	var dto bookingRequestDTO
	require.NoError(t, json.Unmarshal(raw, &dto))
	req, err := dto.toModel()
	require.NoError(t, err)
	return req
}
