// Package api exposes the booking and notification HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groomly/groomly/internal/availability"
	"github.com/groomly/groomly/internal/db"
	"github.com/groomly/groomly/internal/metrics"
	"github.com/groomly/groomly/internal/notify"
	"github.com/groomly/groomly/internal/redis"
	"github.com/groomly/groomly/internal/settings"
	"github.com/groomly/groomly/internal/sqs"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	defaultDurationMinutes = 60
)

// Store defines the database operations the handlers need.
type Store interface {
	CreateAppointment(ctx context.Context, appt *db.Appointment) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*db.Appointment, error)
	ListAppointmentsByDate(ctx context.Context, date string) ([]*db.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status string) error
	ListNotificationLogs(ctx context.Context, status string, limit, offset int) ([]*db.NotificationLog, error)
	UpdateBusinessHours(ctx context.Context, hours availability.BusinessHours) error
}

// Notifier owns the first delivery attempt for a notification.
type Notifier interface {
	Dispatch(ctx context.Context, entry *db.NotificationLog) error
}

// RetryRunner runs one retry pass over failed notifications.
type RetryRunner interface {
	ProcessRetries(ctx context.Context) *notify.RetryResult
}

// BookingRequest is the incoming request body for a new appointment.
type BookingRequest struct {
	CustomerName    string `json:"customer_name" validate:"required"`
	PetName         string `json:"pet_name" validate:"required"`
	Service         string `json:"service" validate:"required"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=15,lte=240"`
	Email           string `json:"email" validate:"omitempty,email"`
	Phone           string `json:"phone" validate:"omitempty,e164"`
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers. Idempotency, events, and
// notifications are optional; a nil service disables that concern.
type Handler struct {
	logger      *zap.Logger
	store       Store
	engine      *availability.Engine
	hours       *settings.HoursCache
	validate    *validator.Validate
	idempotency *redis.IdempotencyService
	producer    *sqs.Producer
	notifier    Notifier
	retries     RetryRunner
}

// NewHandler creates an API handler with the core dependencies.
func NewHandler(logger *zap.Logger, store Store, engine *availability.Engine, hours *settings.HoursCache) *Handler {
	return &Handler{
		logger:   logger,
		store:    store,
		engine:   engine,
		hours:    hours,
		validate: validator.New(),
	}
}

// WithIdempotency enables booking deduplication via the Idempotency-Key
// header.
func (h *Handler) WithIdempotency(svc *redis.IdempotencyService) *Handler {
	h.idempotency = svc
	return h
}

// WithProducer enables appointment event publishing.
func (h *Handler) WithProducer(p *sqs.Producer) *Handler {
	h.producer = p
	return h
}

// WithNotifier enables confirmation notifications for new bookings.
func (h *Handler) WithNotifier(n Notifier) *Handler {
	h.notifier = n
	return h
}

// WithRetryRunner enables the manual retry trigger endpoint.
func (h *Handler) WithRetryRunner(r RetryRunner) *Handler {
	h.retries = r
	return h
}

// GetSlots handles GET /v1/availability/slots?date=YYYY-MM-DD&duration=60
func (h *Handler) GetSlots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date := r.URL.Query().Get("date")
	if _, err := time.Parse(dateLayout, date); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid date", "date must be YYYY-MM-DD")
		return
	}

	duration := defaultDurationMinutes
	if s := r.URL.Query().Get("duration"); s != "" {
		d, err := strconv.Atoi(s)
		if err != nil || d < 15 || d > 240 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid duration", "duration must be 15-240 minutes")
			return
		}
		duration = d
	}

	hours, err := h.hours.Get(ctx)
	if err != nil {
		h.logger.Error("failed to load business hours", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load business hours", "")
		return
	}

	appts, err := h.store.ListAppointmentsByDate(ctx, date)
	if err != nil {
		h.logger.Error("failed to list appointments", zap.Error(err), zap.String("date", date))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load appointments", "")
		return
	}

	slots := h.engine.AvailableSlots(date, duration, toAvailability(appts), hours)
	if slots == nil {
		slots = []availability.Slot{}
	}
	metrics.RecordSlotQuery()

	h.writeJSON(w, http.StatusOK, map[string]any{
		"date":             date,
		"duration_minutes": duration,
		"slots":            slots,
	})
}

// GetDisabledDates handles GET /v1/availability/disabled-dates?start=...&end=...
func (h *Handler) GetDisabledDates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	from, err := time.Parse(dateLayout, start)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid start date", "start must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse(dateLayout, end)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid end date", "end must be YYYY-MM-DD")
		return
	}
	if to.Before(from) || to.Sub(from) > 366*24*time.Hour {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid range", "end must be after start and within one year")
		return
	}

	hours, err := h.hours.Get(ctx)
	if err != nil {
		h.logger.Error("failed to load business hours", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load business hours", "")
		return
	}

	disabled := h.engine.DisabledDates(start, end, hours)
	if disabled == nil {
		disabled = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"start":          start,
		"end":            end,
		"disabled_dates": disabled,
	})
}

// GetNextDate handles GET /v1/availability/next-date
func (h *Handler) GetNextDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hours, err := h.hours.Get(ctx)
	if err != nil {
		h.logger.Error("failed to load business hours", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load business hours", "")
		return
	}

	date, err := h.engine.NextAvailableDate(hours)
	if err != nil {
		if errors.Is(err, availability.ErrNoAvailableDate) {
			h.writeError(w, http.StatusNotFound, "no_availability", "No available date",
				"The salon has no open dates in the next 60 days")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to find next date", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"date": date})
}

// CreateAppointment handles POST /v1/appointments.
// Supports idempotency via the Idempotency-Key header.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idempotencyKey := r.Header.Get("Idempotency-Key")

	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = defaultDurationMinutes
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Validation failed", err.Error())
		return
	}
	if req.Email == "" && req.Phone == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing contact",
			"either email or phone is required")
		return
	}

	// Replay or reserve before touching the calendar
	if idempotencyKey != "" && h.idempotency != nil {
		cached, err := h.idempotency.CheckOrReserve(ctx, idempotencyKey)
		if err != nil {
			if errors.Is(err, redis.ErrDuplicateBooking) {
				h.writeError(w, http.StatusConflict, "duplicate_request",
					"Booking is already being processed",
					"Another request with this idempotency key is in progress")
				return
			}
			h.logger.Warn("idempotency check failed, proceeding",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		} else if cached != nil {
			metrics.RecordIdempotencyHit()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Idempotency-Replayed", "true")
			w.WriteHeader(cached.StatusCode)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": cached.AppointmentID})
			return
		}
	}

	// Re-check the slot against current bookings; the calendar the
	// customer saw may be stale.
	hours, err := h.hours.Get(ctx)
	if err != nil {
		h.releaseIdempotency(ctx, idempotencyKey)
		h.logger.Error("failed to load business hours", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load business hours", "")
		return
	}
	appts, err := h.store.ListAppointmentsByDate(ctx, req.Date)
	if err != nil {
		h.releaseIdempotency(ctx, idempotencyKey)
		h.logger.Error("failed to list appointments", zap.Error(err), zap.String("date", req.Date))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load appointments", "")
		return
	}

	if !slotIsBookable(h.engine.AvailableSlots(req.Date, req.DurationMinutes, toAvailability(appts), hours), req.Time) {
		h.releaseIdempotency(ctx, idempotencyKey)
		h.writeError(w, http.StatusConflict, "slot_unavailable", "Slot unavailable",
			fmt.Sprintf("%s at %s cannot be booked", req.Date, req.Time))
		return
	}

	scheduledAt, err := time.ParseInLocation(dateLayout+" "+timeLayout, req.Date+" "+req.Time, time.Local)
	if err != nil {
		h.releaseIdempotency(ctx, idempotencyKey)
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid date or time", err.Error())
		return
	}

	appt := &db.Appointment{
		ID:              uuid.New(),
		CustomerName:    req.CustomerName,
		PetName:         req.PetName,
		Service:         req.Service,
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
		Status:          db.AppointmentBooked,
	}

	if err := h.store.CreateAppointment(ctx, appt); err != nil {
		h.releaseIdempotency(ctx, idempotencyKey)
		h.logger.Error("failed to create appointment", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create appointment", "")
		return
	}

	if idempotencyKey != "" && h.idempotency != nil {
		result := &redis.BookingResult{
			AppointmentID: appt.ID.String(),
			StatusCode:    http.StatusCreated,
		}
		if err := h.idempotency.Store(ctx, idempotencyKey, result, redis.BookingIdempotencyTTL); err != nil {
			h.logger.Warn("failed to store idempotency result",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		}
	}

	h.sendConfirmation(ctx, appt, &req)

	if msgID, err := h.producer.PublishAppointmentEvent(ctx, sqs.EventAppointmentCreated, appt); err != nil {
		// The booking stands; downstream consumers catch up on their own
		h.logger.Warn("failed to publish appointment event",
			zap.Error(err),
			zap.String("appointment_id", appt.ID.String()),
		)
	} else if msgID != "" {
		h.logger.Info("appointment event published",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("sqs_message_id", msgID),
		)
	}

	metrics.RecordAppointmentCreated(appt.Service)

	h.writeJSON(w, http.StatusCreated, appt)
}

// GetAppointment handles GET /v1/appointments/{id}
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid appointment ID", "ID must be a valid UUID")
		return
	}

	appt, err := h.store.GetAppointment(ctx, id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "not_found", "Appointment not found", "")
		return
	}

	h.writeJSON(w, http.StatusOK, appt)
}

// ListAppointments handles GET /v1/appointments?date=YYYY-MM-DD
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date := r.URL.Query().Get("date")
	if _, err := time.Parse(dateLayout, date); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid date", "date must be YYYY-MM-DD")
		return
	}

	appts, err := h.store.ListAppointmentsByDate(ctx, date)
	if err != nil {
		h.logger.Error("failed to list appointments", zap.Error(err), zap.String("date", date))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list appointments", "")
		return
	}
	if appts == nil {
		appts = []*db.Appointment{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"data":  appts,
		"count": len(appts),
	})
}

// CancelAppointment handles POST /v1/appointments/{id}/cancel
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid appointment ID", "ID must be a valid UUID")
		return
	}

	appt, err := h.store.GetAppointment(ctx, id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "not_found", "Appointment not found", "")
		return
	}
	if appt.Status == db.AppointmentCancelled {
		h.writeJSON(w, http.StatusOK, map[string]string{"id": idStr, "status": appt.Status})
		return
	}

	if err := h.store.UpdateAppointmentStatus(ctx, id, db.AppointmentCancelled); err != nil {
		h.logger.Error("failed to cancel appointment", zap.Error(err), zap.String("id", idStr))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to cancel appointment", "")
		return
	}

	h.logger.Info("appointment cancelled", zap.String("appointment_id", idStr))

	if _, err := h.producer.PublishAppointmentEvent(ctx, sqs.EventAppointmentCancelled, appt); err != nil {
		h.logger.Warn("failed to publish cancellation event",
			zap.Error(err),
			zap.String("appointment_id", idStr),
		)
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"id": idStr, "status": db.AppointmentCancelled})
}

// ListNotifications handles GET /v1/notifications?status=failed&limit=20&offset=0
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := r.URL.Query().Get("status")
	switch status {
	case "", db.NotificationPending, db.NotificationProcessing, db.NotificationSent, db.NotificationFailed:
	default:
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid status",
			"status must be one of: pending, processing, sent, failed")
		return
	}

	limit := 20
	offset := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if o, err := strconv.Atoi(s); err == nil && o >= 0 {
			offset = o
		}
	}

	entries, err := h.store.ListNotificationLogs(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list notifications", "")
		return
	}
	if entries == nil {
		entries = []*db.NotificationLog{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"data":   entries,
		"limit":  limit,
		"offset": offset,
		"count":  len(entries),
	})
}

// TriggerRetries handles POST /v1/notifications/retries. Runs one retry
// pass inline and reports what happened.
func (h *Handler) TriggerRetries(w http.ResponseWriter, r *http.Request) {
	if h.retries == nil {
		h.writeError(w, http.StatusServiceUnavailable, "retries_unavailable",
			"Retry processing not configured", "")
		return
	}

	result := h.retries.ProcessRetries(r.Context())

	h.logger.Info("manual retry pass triggered",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)

	h.writeJSON(w, http.StatusOK, result)
}

// GetBusinessHours handles GET /v1/settings/hours
func (h *Handler) GetBusinessHours(w http.ResponseWriter, r *http.Request) {
	hours, err := h.hours.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to load business hours", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load business hours", "")
		return
	}
	h.writeJSON(w, http.StatusOK, hours)
}

// UpdateBusinessHours handles PUT /v1/settings/hours
func (h *Handler) UpdateBusinessHours(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var hours availability.BusinessHours
	if err := json.NewDecoder(r.Body).Decode(&hours); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if err := validateHours(hours); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid business hours", err.Error())
		return
	}

	if err := h.store.UpdateBusinessHours(ctx, hours); err != nil {
		h.logger.Error("failed to update business hours", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to update business hours", "")
		return
	}

	h.hours.Invalidate()

	h.writeJSON(w, http.StatusOK, hours)
}

// sendConfirmation dispatches the booking confirmation over the contact
// channel the customer gave. Email wins when both are present.
func (h *Handler) sendConfirmation(ctx context.Context, appt *db.Appointment, req *BookingRequest) {
	if h.notifier == nil {
		return
	}

	channel := db.ChannelEmail
	recipient := req.Email
	if recipient == "" {
		channel = db.ChannelSMS
		recipient = req.Phone
	}

	when := fmt.Sprintf("%s at %s", req.Date, availability.FormatTimeDisplay(req.Time))
	data, err := json.Marshal(map[string]string{
		"customer_name": appt.CustomerName,
		"pet_name":      appt.PetName,
		"service":       appt.Service,
		"subject":       "Your grooming appointment is booked",
		"body": fmt.Sprintf("Hi %s! %s is booked for a %s on %s. See you then!",
			appt.CustomerName, appt.PetName, appt.Service, when),
		"message": fmt.Sprintf("Groomly: %s is booked for %s. Reply STOP to opt out.",
			appt.PetName, when),
	})
	if err != nil {
		h.logger.Error("failed to build confirmation payload", zap.Error(err))
		return
	}

	entry := &db.NotificationLog{
		Type:         "appointment_confirmation",
		Channel:      channel,
		Recipient:    recipient,
		TemplateData: data,
	}
	if err := h.notifier.Dispatch(ctx, entry); err != nil {
		h.logger.Error("failed to dispatch confirmation",
			zap.Error(err),
			zap.String("appointment_id", appt.ID.String()),
		)
	}
}

func (h *Handler) releaseIdempotency(ctx context.Context, key string) {
	if key == "" || h.idempotency == nil {
		return
	}
	if err := h.idempotency.Release(ctx, key); err != nil {
		h.logger.Warn("failed to release idempotency key", zap.Error(err))
	}
}

func toAvailability(appts []*db.Appointment) []availability.Appointment {
	out := make([]availability.Appointment, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.Availability())
	}
	return out
}

func slotIsBookable(slots []availability.Slot, at string) bool {
	for _, s := range slots {
		if s.Time == at {
			return s.Available
		}
	}
	return false
}

func validateHours(hours availability.BusinessHours) error {
	if len(hours) == 0 {
		return errors.New("at least one weekday is required")
	}
	valid := map[string]bool{
		"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
		"friday": true, "saturday": true, "sunday": true,
	}
	for day, dh := range hours {
		if !valid[day] {
			return fmt.Errorf("unknown weekday: %s", day)
		}
		if !dh.IsOpen {
			continue
		}
		open, err := time.Parse(timeLayout, dh.Open)
		if err != nil {
			return fmt.Errorf("%s: invalid open time %q", day, dh.Open)
		}
		close, err := time.Parse(timeLayout, dh.Close)
		if err != nil {
			return fmt.Errorf("%s: invalid close time %q", day, dh.Close)
		}
		if !open.Before(close) {
			return fmt.Errorf("%s: open must be before close", day)
		}
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
