package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"roombook/internal/config"
	"roombook/internal/domain"
	"roombook/internal/metrics"
	"roombook/internal/models"
	"roombook/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type BookingAPI interface {
	CalculatePrice(ctx context.Context, req models.BookingRequest) (*models.PriceQuote, error)
	Create(ctx context.Context, req models.BookingRequest) (*models.Booking, error)
	Update(ctx context.Context, id int64, req models.BookingRequest) (*models.Booking, error)
	Submit(ctx context.Context, id int64) (*models.Booking, error)
	Confirm(ctx context.Context, id int64) (*models.Booking, error)
	Activate(ctx context.Context, id int64) (*models.Booking, error)
	Complete(ctx context.Context, id int64) (*models.Booking, error)
	Cancel(ctx context.Context, id int64) (*models.Booking, error)
	Delete(ctx context.Context, id int64) error
	Extend(ctx context.Context, id int64, req models.ExtendRequest) (*models.Booking, error)
	RemoveSlot(ctx context.Context, bookingID, slotID int64) (*models.Booking, error)
	Get(ctx context.Context, id int64) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, int, error)
	GetEditStatus(ctx context.Context, id int64) (*models.EditStatus, error)
}

type AvailabilityAPI interface {
	CheckAvailability(ctx context.Context, req models.AvailabilityRequest) (*service.AvailabilityResult, error)
}

type InvoiceAPI interface {
	BatchCreateInvoices(ctx context.Context, bookingIDs []int64) (*models.BatchResult, error)
	BatchMarkPaid(ctx context.Context, invoiceIDs []int64) (*models.BatchResult, error)
	RecordPayment(ctx context.Context, invoiceID int64, amount float64) (*models.Invoice, error)
}

type OccupancyAPI interface {
	RoomOccupancy(ctx context.Context, roomID int64, dates []time.Time) (models.Occupancy, error)
}

// Services bundles everything the transport layers call into.
type Services struct {
	Bookings     BookingAPI
	Availability AvailabilityAPI
	Invoices     InvoiceAPI
	Occupancy    OccupancyAPI
	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// HTTPServer exposes the booking operations as a JSON API.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	server *http.Server
	router *mux.Router
	auth   *HTTPAuth
	log    zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http").Logger()
	}
	srv := &HTTPServer{cfg: cfg, svc: svc, auth: NewHTTPAuth(cfg), log: l}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", srv.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", srv.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(srv.observe, srv.auth.Middleware)

	api.HandleFunc("/availability/check", srv.handleCheckAvailability).Methods(http.MethodPost)
	api.HandleFunc("/price/calculate", srv.handleCalculatePrice).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id:[0-9]+}/occupancy", srv.handleOccupancy).Methods(http.MethodGet)

	api.HandleFunc("/bookings", srv.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/bookings", srv.handleList).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id:[0-9]+}", srv.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id:[0-9]+}", srv.handleUpdate).Methods(http.MethodPut)
	api.HandleFunc("/bookings/{id:[0-9]+}", srv.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/bookings/{id:[0-9]+}/edit-status", srv.handleEditStatus).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id:[0-9]+}/extend", srv.handleExtend).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id:[0-9]+}/slots/{slotId:[0-9]+}", srv.handleRemoveSlot).Methods(http.MethodDelete)
	api.HandleFunc("/bookings/{id:[0-9]+}/{action:submit|confirm|activate|complete|cancel}", srv.handleTransition).Methods(http.MethodPost)

	api.HandleFunc("/invoices/batch-create", srv.handleBatchCreateInvoices).Methods(http.MethodPost)
	api.HandleFunc("/invoices/batch-mark-paid", srv.handleBatchMarkPaid).Methods(http.MethodPost)
	api.HandleFunc("/invoices/{id:[0-9]+}/payments", srv.handleRecordPayment).Methods(http.MethodPost)

	srv.router = r
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Minute,
	}
	return srv
}

// Handler returns the routed handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Ready(ctx); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) handleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	var body availabilityRequestDTO
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := body.toModel()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := s.svc.Availability.CheckAvailability(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCalculatePrice(w http.ResponseWriter, r *http.Request) {
	var body bookingRequestDTO
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := body.toModel()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	quote, err := s.svc.Bookings.CalculatePrice(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *HTTPServer) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	dto := occupancyRequestDTO{RoomID: roomID, Dates: splitCSV(r.URL.Query().Get("dates"))}
	if err := validateDTO(dto); err != nil {
		writeServiceError(w, err)
		return
	}
	dates, err := parseDates(dto.Dates)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	occ, err := s.svc.Occupancy.RoomOccupancy(r.Context(), roomID, dates)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room_id": roomID, "occupancy": occ})
}

func (s *HTTPServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body bookingRequestDTO
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := body.toModel()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	b, err := s.svc.Bookings.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *HTTPServer) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r.URL.Query().Get)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	items, total, err := s.svc.Bookings.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (s *HTTPServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := s.svc.Bookings.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body bookingRequestDTO
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := body.toModel()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	b, err := s.svc.Bookings.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.svc.Bookings.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleEditStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	st, err := s.svc.Bookings.GetEditStatus(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	transitions := map[string]func(context.Context, int64) (*models.Booking, error){
		"submit":   s.svc.Bookings.Submit,
		"confirm":  s.svc.Bookings.Confirm,
		"activate": s.svc.Bookings.Activate,
		"complete": s.svc.Bookings.Complete,
		"cancel":   s.svc.Bookings.Cancel,
	}
	fn, ok := transitions[mux.Vars(r)["action"]]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	b, err := fn(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleExtend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body extendRequestDTO
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := body.toModel()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	b, err := s.svc.Bookings.Extend(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *HTTPServer) handleRemoveSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	slotID, ok := pathID(w, r, "slotId")
	if !ok {
		return
	}
	b, err := s.svc.Bookings.RemoveSlot(r.Context(), id, slotID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleBatchCreateInvoices(w http.ResponseWriter, r *http.Request) {
	s.handleBatch(w, r, s.svc.Invoices.BatchCreateInvoices)
}

func (s *HTTPServer) handleBatchMarkPaid(w http.ResponseWriter, r *http.Request) {
	s.handleBatch(w, r, s.svc.Invoices.BatchMarkPaid)
}

func (s *HTTPServer) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body paymentRequestDTO
	if !decodeBody(w, r, &body) {
		return
	}
	if err := validateDTO(body); err != nil {
		writeServiceError(w, err)
		return
	}
	inv, err := s.svc.Invoices.RecordPayment(r.Context(), id, body.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *HTTPServer) handleBatch(w http.ResponseWriter, r *http.Request, fn func(context.Context, []int64) (*models.BatchResult, error)) {
	var body idsRequestDTO
	if !decodeBody(w, r, &body) {
		return
	}
	if err := validateDTO(body); err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := fn(r.Context(), body.IDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// observe assigns a request id, logs the request and records its metrics.
func (s *HTTPServer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = r.Method + " " + tpl
			}
		}
		metrics.ObserveHTTP(endpoint, strconv.Itoa(recorder.status), dur)

		event := s.log.Info()
		if recorder.status >= http.StatusInternalServerError {
			event = s.log.Error()
		}
		event.
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

const requestIDHeader = "X-Request-ID"

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeServiceError(w, domain.Validationf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
