package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Repository handles database operations for appointments and the
// notification log.
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new repository.
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateAppointment inserts a new appointment.
func (r *Repository) CreateAppointment(ctx context.Context, appt *Appointment) error {
	query := `
		INSERT INTO appointments (
			id, customer_name, pet_name, service,
			scheduled_at, duration_minutes, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		appt.ID,
		appt.CustomerName,
		appt.PetName,
		appt.Service,
		appt.ScheduledAt,
		appt.DurationMinutes,
		appt.Status,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)

	if err != nil {
		r.logger.Error("failed to create appointment",
			zap.Error(err),
			zap.String("appointment_id", appt.ID.String()),
		)
		return fmt.Errorf("insert appointment: %w", err)
	}

	r.logger.Info("appointment created",
		zap.String("appointment_id", appt.ID.String()),
		zap.Time("scheduled_at", appt.ScheduledAt),
		zap.String("service", appt.Service),
	)

	return nil
}

// GetAppointment retrieves an appointment by ID.
func (r *Repository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `
		SELECT
			id, customer_name, pet_name, service,
			scheduled_at, duration_minutes, status,
			created_at, updated_at
		FROM appointments
		WHERE id = $1
	`

	var appt Appointment
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&appt.ID,
		&appt.CustomerName,
		&appt.PetName,
		&appt.Service,
		&appt.ScheduledAt,
		&appt.DurationMinutes,
		&appt.Status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("appointment not found: %s", id)
	}

	if err != nil {
		return nil, fmt.Errorf("query appointment: %w", err)
	}

	return &appt, nil
}

// ListAppointmentsByDate retrieves every appointment scheduled on the
// given local date (YYYY-MM-DD), in start-time order. Cancelled and
// no-show rows are included; the availability engine decides which
// statuses block slots.
func (r *Repository) ListAppointmentsByDate(ctx context.Context, date string) ([]*Appointment, error) {
	query := `
		SELECT
			id, customer_name, pet_name, service,
			scheduled_at, duration_minutes, status,
			created_at, updated_at
		FROM appointments
		WHERE scheduled_at::date = $1::date
		ORDER BY scheduled_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		var appt Appointment
		err := rows.Scan(
			&appt.ID,
			&appt.CustomerName,
			&appt.PetName,
			&appt.Service,
			&appt.ScheduledAt,
			&appt.DurationMinutes,
			&appt.Status,
			&appt.CreatedAt,
			&appt.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, &appt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return appts, nil
}

// UpdateAppointmentStatus updates the status of an appointment.
func (r *Repository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE appointments SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.Pool().Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("appointment not found: %s", id)
	}

	return nil
}

// CreateNotificationLog inserts a new notification log row. The send path
// owns creation; the retry engine never creates rows.
func (r *Repository) CreateNotificationLog(ctx context.Context, entry *NotificationLog) error {
	query := `
		INSERT INTO notification_log (
			id, type, channel, recipient, status,
			retry_count, retry_after, error_message, template_data, is_test
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		entry.ID,
		entry.Type,
		entry.Channel,
		entry.Recipient,
		entry.Status,
		entry.RetryCount,
		entry.RetryAfter,
		entry.ErrorMessage,
		entry.TemplateData,
		entry.IsTest,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)

	if err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}

	return nil
}

// ClaimRetryable atomically claims up to limit failed notifications that
// are due for another attempt and flips them to processing in the same
// statement, so overlapping retry runs never pick up the same row. Rows
// are claimed oldest retry_after first. Test rows are never claimed.
func (r *Repository) ClaimRetryable(ctx context.Context, maxRetries, limit int) ([]*NotificationLog, error) {
	query := `
		UPDATE notification_log
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_log
			WHERE status = $2
			  AND retry_after IS NOT NULL
			  AND retry_after <= NOW()
			  AND retry_count < $3
			  AND is_test = FALSE
			ORDER BY retry_after ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING
			id, type, channel, recipient, status,
			retry_count, retry_after, error_message, provider_message_id,
			template_data, is_test, created_at, updated_at
	`

	rows, err := r.db.Pool().Query(ctx, query, NotificationProcessing, NotificationFailed, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("claim retryable notifications: %w", err)
	}
	defer rows.Close()

	var entries []*NotificationLog
	for rows.Next() {
		var e NotificationLog
		err := rows.Scan(
			&e.ID,
			&e.Type,
			&e.Channel,
			&e.Recipient,
			&e.Status,
			&e.RetryCount,
			&e.RetryAfter,
			&e.ErrorMessage,
			&e.ProviderMessageID,
			&e.TemplateData,
			&e.IsTest,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification log: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}

// MarkSent records a successful delivery: terminal sent status, retry
// fields cleared, provider message id kept for audit.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error {
	query := `
		UPDATE notification_log
		SET status = $1, retry_after = NULL, error_message = NULL,
		    provider_message_id = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.Pool().Exec(ctx, query, NotificationSent, providerMessageID, id)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification not found: %s", id)
	}

	return nil
}

// ScheduleRetry records a failed attempt. A non-nil retryAfter schedules
// the next attempt; nil marks the row permanently failed. Either way the
// row returns to failed status with the new retry count.
func (r *Repository) ScheduleRetry(ctx context.Context, id uuid.UUID, retryCount int, retryAfter *time.Time, errMsg string) error {
	query := `
		UPDATE notification_log
		SET status = $1, retry_count = $2, retry_after = $3,
		    error_message = $4, updated_at = NOW()
		WHERE id = $5
	`

	result, err := r.db.Pool().Exec(ctx, query, NotificationFailed, retryCount, retryAfter, errMsg, id)
	if err != nil {
		return fmt.Errorf("schedule notification retry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification not found: %s", id)
	}

	return nil
}

// ListNotificationLogs retrieves log rows, optionally filtered by status,
// newest first.
func (r *Repository) ListNotificationLogs(ctx context.Context, status string, limit, offset int) ([]*NotificationLog, error) {
	query := `
		SELECT
			id, type, channel, recipient, status,
			retry_count, retry_after, error_message, provider_message_id,
			template_data, is_test, created_at, updated_at
		FROM notification_log
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query notification log: %w", err)
	}
	defer rows.Close()

	var entries []*NotificationLog
	for rows.Next() {
		var e NotificationLog
		err := rows.Scan(
			&e.ID,
			&e.Type,
			&e.Channel,
			&e.Recipient,
			&e.Status,
			&e.RetryCount,
			&e.RetryAfter,
			&e.ErrorMessage,
			&e.ProviderMessageID,
			&e.TemplateData,
			&e.IsTest,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification log: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}
