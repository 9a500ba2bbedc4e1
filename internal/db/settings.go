package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/groomly/groomly/internal/availability"
)

const businessHoursKey = "business_hours"

// GetBusinessHours loads the salon's saved weekly schedule. Falls back to
// the default schedule when none has been saved yet.
func (r *Repository) GetBusinessHours(ctx context.Context) (availability.BusinessHours, error) {
	query := `SELECT value FROM salon_settings WHERE key = $1`

	var raw []byte
	err := r.db.Pool().QueryRow(ctx, query, businessHoursKey).Scan(&raw)
	if err == pgx.ErrNoRows {
		return availability.DefaultBusinessHours(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query business hours: %w", err)
	}

	var hours availability.BusinessHours
	if err := json.Unmarshal(raw, &hours); err != nil {
		return nil, fmt.Errorf("decode business hours: %w", err)
	}

	return hours, nil
}

// UpdateBusinessHours saves the salon's weekly schedule.
func (r *Repository) UpdateBusinessHours(ctx context.Context, hours availability.BusinessHours) error {
	raw, err := json.Marshal(hours)
	if err != nil {
		return fmt.Errorf("encode business hours: %w", err)
	}

	query := `
		INSERT INTO salon_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	if _, err := r.db.Pool().Exec(ctx, query, businessHoursKey, raw); err != nil {
		return fmt.Errorf("upsert business hours: %w", err)
	}

	r.logger.Info("business hours updated")
	return nil
}
