package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groomly/groomly/internal/availability"
	"github.com/groomly/groomly/internal/db"
	"github.com/groomly/groomly/internal/notify"
	"github.com/groomly/groomly/internal/settings"
)

// 2026-03-02 is a Monday; the default schedule has the salon open
// Mon-Fri 09:00-17:00, Saturday 10:00-16:00, closed Sunday.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local)

type fakeStore struct {
	appts         map[uuid.UUID]*db.Appointment
	byDate        map[string][]*db.Appointment
	listErr       error
	hours         availability.BusinessHours
	hoursLoads    int
	updatedHours  availability.BusinessHours
	logs          []*db.NotificationLog
	statusUpdates map[uuid.UUID]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		appts:         make(map[uuid.UUID]*db.Appointment),
		byDate:        make(map[string][]*db.Appointment),
		hours:         availability.DefaultBusinessHours(),
		statusUpdates: make(map[uuid.UUID]string),
	}
}

func (s *fakeStore) CreateAppointment(_ context.Context, appt *db.Appointment) error {
	s.appts[appt.ID] = appt
	date := appt.ScheduledAt.Format("2006-01-02")
	s.byDate[date] = append(s.byDate[date], appt)
	return nil
}

func (s *fakeStore) GetAppointment(_ context.Context, id uuid.UUID) (*db.Appointment, error) {
	appt, ok := s.appts[id]
	if !ok {
		return nil, fmt.Errorf("appointment not found: %s", id)
	}
	return appt, nil
}

func (s *fakeStore) ListAppointmentsByDate(_ context.Context, date string) ([]*db.Appointment, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.byDate[date], nil
}

func (s *fakeStore) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, status string) error {
	appt, ok := s.appts[id]
	if !ok {
		return fmt.Errorf("appointment not found: %s", id)
	}
	appt.Status = status
	s.statusUpdates[id] = status
	return nil
}

func (s *fakeStore) ListNotificationLogs(_ context.Context, status string, limit, offset int) ([]*db.NotificationLog, error) {
	return s.logs, nil
}

func (s *fakeStore) UpdateBusinessHours(_ context.Context, hours availability.BusinessHours) error {
	s.updatedHours = hours
	return nil
}

func (s *fakeStore) GetBusinessHours(context.Context) (availability.BusinessHours, error) {
	s.hoursLoads++
	return s.hours, nil
}

type fakeNotifier struct {
	dispatched []*db.NotificationLog
}

func (n *fakeNotifier) Dispatch(_ context.Context, entry *db.NotificationLog) error {
	n.dispatched = append(n.dispatched, entry)
	return nil
}

type fakeRetryRunner struct {
	result *notify.RetryResult
}

func (r *fakeRetryRunner) ProcessRetries(context.Context) *notify.RetryResult {
	return r.result
}

func newTestHandler(store *fakeStore) *Handler {
	engine := availability.NewWithClock(availability.Policy{}, func() time.Time { return testNow })
	cache := settings.NewHoursCache(store, time.Minute, zap.NewNop())
	return NewHandler(zap.NewNop(), store, engine, cache)
}

func bookedAt(t *testing.T, store *fakeStore, date, clock string, duration int) *db.Appointment {
	t.Helper()
	at, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.Local)
	require.NoError(t, err)
	appt := &db.Appointment{
		ID:              uuid.New(),
		CustomerName:    "Dana Whitfield",
		PetName:         "Biscuit",
		Service:         "full_groom",
		ScheduledAt:     at,
		DurationMinutes: duration,
		Status:          db.AppointmentBooked,
	}
	require.NoError(t, store.CreateAppointment(context.Background(), appt))
	return appt
}

func doRequest(h http.HandlerFunc, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestGetSlots(t *testing.T) {
	store := newFakeStore()
	bookedAt(t, store, "2026-03-05", "10:00", 60)
	h := newTestHandler(store)

	rec := doRequest(h.GetSlots, http.MethodGet, "/v1/availability/slots?date=2026-03-05&duration=60", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Date  string              `json:"date"`
		Slots []availability.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-03-05", resp.Date)
	require.NotEmpty(t, resp.Slots)

	byTime := map[string]bool{}
	for _, s := range resp.Slots {
		byTime[s.Time] = s.Available
	}
	assert.True(t, byTime["09:00"])
	assert.False(t, byTime["10:00"], "booked slot must not be available")
	assert.False(t, byTime["10:30"], "overlapping slot must not be available")
	assert.True(t, byTime["11:00"], "back-to-back slot stays bookable")
}

func TestGetSlotsInvalidDate(t *testing.T) {
	h := newTestHandler(newFakeStore())

	rec := doRequest(h.GetSlots, http.MethodGet, "/v1/availability/slots?date=03-05-2026", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestGetSlotsClosedDay(t *testing.T) {
	h := newTestHandler(newFakeStore())

	// Sunday
	rec := doRequest(h.GetSlots, http.MethodGet, "/v1/availability/slots?date=2026-03-08", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Slots []availability.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Slots)
}

func TestGetDisabledDates(t *testing.T) {
	h := newTestHandler(newFakeStore())

	rec := doRequest(h.GetDisabledDates, http.MethodGet,
		"/v1/availability/disabled-dates?start=2026-03-02&end=2026-03-08", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Disabled []string `json:"disabled_dates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"2026-03-08"}, resp.Disabled)
}

func TestGetDisabledDatesBadRange(t *testing.T) {
	h := newTestHandler(newFakeStore())

	rec := doRequest(h.GetDisabledDates, http.MethodGet,
		"/v1/availability/disabled-dates?start=2026-03-08&end=2026-03-02", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetNextDate(t *testing.T) {
	h := newTestHandler(newFakeStore())

	rec := doRequest(h.GetNextDate, http.MethodGet, "/v1/availability/next-date", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-03-02", resp["date"])
}

func TestGetNextDateAllClosed(t *testing.T) {
	store := newFakeStore()
	closed := availability.BusinessHours{}
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		closed[day] = availability.DayHours{IsOpen: false}
	}
	store.hours = closed
	h := newTestHandler(store)

	rec := doRequest(h.GetNextDate, http.MethodGet, "/v1/availability/next-date", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAppointment(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	h := newTestHandler(store).WithNotifier(notifier)

	rec := doRequest(h.CreateAppointment, http.MethodPost, "/v1/appointments", BookingRequest{
		CustomerName:    "Dana Whitfield",
		PetName:         "Biscuit",
		Service:         "full_groom",
		Date:            "2026-03-05",
		Time:            "10:00",
		DurationMinutes: 60,
		Email:           "dana@example.com",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var appt db.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appt))
	assert.Equal(t, "Biscuit", appt.PetName)
	assert.Equal(t, db.AppointmentBooked, appt.Status)
	assert.Len(t, store.appts, 1)

	require.Len(t, notifier.dispatched, 1)
	assert.Equal(t, db.ChannelEmail, notifier.dispatched[0].Channel)
	assert.Equal(t, "dana@example.com", notifier.dispatched[0].Recipient)
	assert.Equal(t, "appointment_confirmation", notifier.dispatched[0].Type)
}

func TestCreateAppointmentSMSFallback(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	h := newTestHandler(store).WithNotifier(notifier)

	rec := doRequest(h.CreateAppointment, http.MethodPost, "/v1/appointments", BookingRequest{
		CustomerName:    "Dana Whitfield",
		PetName:         "Biscuit",
		Service:         "nail_trim",
		Date:            "2026-03-05",
		Time:            "14:00",
		DurationMinutes: 30,
		Phone:           "+15551234567",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, notifier.dispatched, 1)
	assert.Equal(t, db.ChannelSMS, notifier.dispatched[0].Channel)
}

func TestCreateAppointmentSlotTaken(t *testing.T) {
	store := newFakeStore()
	bookedAt(t, store, "2026-03-05", "10:00", 60)
	h := newTestHandler(store)

	rec := doRequest(h.CreateAppointment, http.MethodPost, "/v1/appointments", BookingRequest{
		CustomerName:    "Avery Lin",
		PetName:         "Mochi",
		Service:         "bath_brush",
		Date:            "2026-03-05",
		Time:            "10:30",
		DurationMinutes: 60,
		Email:           "avery@example.com",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, store.appts, 1, "conflicting booking must not be created")
}

func TestCreateAppointmentClosedDay(t *testing.T) {
	h := newTestHandler(newFakeStore())

	rec := doRequest(h.CreateAppointment, http.MethodPost, "/v1/appointments", BookingRequest{
		CustomerName:    "Avery Lin",
		PetName:         "Mochi",
		Service:         "bath_brush",
		Date:            "2026-03-08", // Sunday
		Time:            "10:00",
		DurationMinutes: 60,
		Email:           "avery@example.com",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateAppointmentValidation(t *testing.T) {
	h := newTestHandler(newFakeStore())

	tests := []struct {
		name string
		req  BookingRequest
	}{
		{"missing customer name", BookingRequest{
			PetName: "Mochi", Service: "bath_brush",
			Date: "2026-03-05", Time: "10:00", Email: "a@example.com",
		}},
		{"bad date format", BookingRequest{
			CustomerName: "Avery Lin", PetName: "Mochi", Service: "bath_brush",
			Date: "03/05/2026", Time: "10:00", Email: "a@example.com",
		}},
		{"bad time format", BookingRequest{
			CustomerName: "Avery Lin", PetName: "Mochi", Service: "bath_brush",
			Date: "2026-03-05", Time: "10am", Email: "a@example.com",
		}},
		{"no contact", BookingRequest{
			CustomerName: "Avery Lin", PetName: "Mochi", Service: "bath_brush",
			Date: "2026-03-05", Time: "10:00",
		}},
		{"bad email", BookingRequest{
			CustomerName: "Avery Lin", PetName: "Mochi", Service: "bath_brush",
			Date: "2026-03-05", Time: "10:00", Email: "not-an-email",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h.CreateAppointment, http.MethodPost, "/v1/appointments", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateAppointmentMalformedBody(t *testing.T) {
	h := newTestHandler(newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/v1/appointments", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.CreateAppointment(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAppointment(t *testing.T) {
	store := newFakeStore()
	appt := bookedAt(t, store, "2026-03-05", "10:00", 60)
	h := newTestHandler(store)

	r := chi.NewRouter()
	r.Get("/v1/appointments/{id}", h.GetAppointment)

	req := httptest.NewRequest(http.MethodGet, "/v1/appointments/"+appt.ID.String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got db.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, appt.ID, got.ID)
}

func TestGetAppointmentNotFound(t *testing.T) {
	h := newTestHandler(newFakeStore())

	r := chi.NewRouter()
	r.Get("/v1/appointments/{id}", h.GetAppointment)

	req := httptest.NewRequest(http.MethodGet, "/v1/appointments/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAppointmentBadID(t *testing.T) {
	h := newTestHandler(newFakeStore())

	r := chi.NewRouter()
	r.Get("/v1/appointments/{id}", h.GetAppointment)

	req := httptest.NewRequest(http.MethodGet, "/v1/appointments/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAppointments(t *testing.T) {
	store := newFakeStore()
	bookedAt(t, store, "2026-03-05", "10:00", 60)
	bookedAt(t, store, "2026-03-05", "14:00", 30)
	h := newTestHandler(store)

	rec := doRequest(h.ListAppointments, http.MethodGet, "/v1/appointments?date=2026-03-05", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestCancelAppointment(t *testing.T) {
	store := newFakeStore()
	appt := bookedAt(t, store, "2026-03-05", "10:00", 60)
	h := newTestHandler(store)

	r := chi.NewRouter()
	r.Post("/v1/appointments/{id}/cancel", h.CancelAppointment)

	req := httptest.NewRequest(http.MethodPost, "/v1/appointments/"+appt.ID.String()+"/cancel", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, db.AppointmentCancelled, store.statusUpdates[appt.ID])
}

func TestCancelledSlotBecomesBookable(t *testing.T) {
	store := newFakeStore()
	appt := bookedAt(t, store, "2026-03-05", "10:00", 60)
	appt.Status = db.AppointmentCancelled
	h := newTestHandler(store)

	rec := doRequest(h.CreateAppointment, http.MethodPost, "/v1/appointments", BookingRequest{
		CustomerName:    "Avery Lin",
		PetName:         "Mochi",
		Service:         "bath_brush",
		Date:            "2026-03-05",
		Time:            "10:00",
		DurationMinutes: 60,
		Email:           "avery@example.com",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestListNotifications(t *testing.T) {
	store := newFakeStore()
	store.logs = []*db.NotificationLog{
		{ID: uuid.New(), Channel: db.ChannelEmail, Status: db.NotificationFailed},
	}
	h := newTestHandler(store)

	rec := doRequest(h.ListNotifications, http.MethodGet, "/v1/notifications?status=failed", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestListNotificationsInvalidStatus(t *testing.T) {
	h := newTestHandler(newFakeStore())

	rec := doRequest(h.ListNotifications, http.MethodGet, "/v1/notifications?status=exploded", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerRetries(t *testing.T) {
	runner := &fakeRetryRunner{result: &notify.RetryResult{Processed: 3, Succeeded: 2, Failed: 1}}
	h := newTestHandler(newFakeStore()).WithRetryRunner(runner)

	rec := doRequest(h.TriggerRetries, http.MethodPost, "/v1/notifications/retries", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var result notify.RetryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
}

func TestTriggerRetriesNotConfigured(t *testing.T) {
	h := newTestHandler(newFakeStore())

	rec := doRequest(h.TriggerRetries, http.MethodPost, "/v1/notifications/retries", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUpdateBusinessHours(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	// Warm the cache so we can observe the invalidation
	_, err := h.hours.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, store.hoursLoads)

	hours := availability.DefaultBusinessHours()
	hours["sunday"] = availability.DayHours{Open: "11:00", Close: "15:00", IsOpen: true}

	rec := doRequest(h.UpdateBusinessHours, http.MethodPut, "/v1/settings/hours", hours)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, store.updatedHours)

	// Next read must go back to the source
	_, err = h.hours.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.hoursLoads)
}

func TestUpdateBusinessHoursRejectsBadInput(t *testing.T) {
	h := newTestHandler(newFakeStore())

	tests := []struct {
		name  string
		hours availability.BusinessHours
	}{
		{"empty", availability.BusinessHours{}},
		{"unknown weekday", availability.BusinessHours{
			"funday": {Open: "09:00", Close: "17:00", IsOpen: true},
		}},
		{"open after close", availability.BusinessHours{
			"monday": {Open: "17:00", Close: "09:00", IsOpen: true},
		}},
		{"bad time format", availability.BusinessHours{
			"monday": {Open: "9am", Close: "17:00", IsOpen: true},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h.UpdateBusinessHours, http.MethodPut, "/v1/settings/hours", tt.hours)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetBusinessHours(t *testing.T) {
	h := newTestHandler(newFakeStore())

	rec := doRequest(h.GetBusinessHours, http.MethodGet, "/v1/settings/hours", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var hours availability.BusinessHours
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hours))
	assert.True(t, hours["monday"].IsOpen)
	assert.False(t, hours["sunday"].IsOpen)
}

func TestGetSlotsStoreError(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection refused")
	h := newTestHandler(store)

	rec := doRequest(h.GetSlots, http.MethodGet, "/v1/availability/slots?date=2026-03-05", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
