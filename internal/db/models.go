package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/groomly/groomly/internal/availability"
)

// Appointment is a booked grooming service.
type Appointment struct {
	ID              uuid.UUID `json:"id"`
	CustomerName    string    `json:"customer_name"`
	PetName         string    `json:"pet_name"`
	Service         string    `json:"service"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Appointment status constants. Cancelled and no-show release their slot;
// every other status blocks it.
const (
	AppointmentBooked    = "booked"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = availability.StatusCancelled
	AppointmentNoShow    = availability.StatusNoShow
)

// Availability maps the storage model onto the view the availability
// engine consumes.
func (a *Appointment) Availability() availability.Appointment {
	return availability.Appointment{
		ScheduledAt:     a.ScheduledAt,
		DurationMinutes: a.DurationMinutes,
		Status:          a.Status,
	}
}

// NotificationLog is one delivery record for a customer notification
// (booking confirmation, reminder, report card). Rows are created by the
// send path; the retry engine only reads and updates them.
type NotificationLog struct {
	ID                uuid.UUID       `json:"id"`
	Type              string          `json:"type"`
	Channel           string          `json:"channel"`
	Recipient         string          `json:"recipient"`
	Status            string          `json:"status"`
	RetryCount        int             `json:"retry_count"`
	RetryAfter        *time.Time      `json:"retry_after,omitempty"`
	ErrorMessage      *string         `json:"error_message,omitempty"`
	ProviderMessageID *string         `json:"provider_message_id,omitempty"`
	TemplateData      json.RawMessage `json:"template_data,omitempty"`
	IsTest            bool            `json:"is_test"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Notification status constants. A failed row with a null retry_after is
// permanently failed and is never picked up again.
const (
	NotificationPending    = "pending"
	NotificationProcessing = "processing"
	NotificationSent       = "sent"
	NotificationFailed     = "failed"
)

// Channel constants
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)
