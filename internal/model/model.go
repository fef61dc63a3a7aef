package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventStatusDraft     = "draft"
	EventStatusActive    = "active"
	EventStatusCompleted = "completed"
	EventStatusCancelled = "cancelled"

	RegistrationStatusPending = "pending"
	RegistrationStatusPaid    = "paid"
	RegistrationStatusUnpaid  = "unpaid"

	PaymentStatusSucceeded = "succeeded"
)

type Event struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	Title        string         `db:"title" json:"title"`
	Description  string         `db:"description,omitempty" json:"description,omitempty"`
	StartDate    time.Time      `db:"start_date" json:"start_date"`
	EndDate      time.Time      `db:"end_date" json:"end_date"`
	Capacity     int            `db:"capacity" json:"capacity"`
	Price        float64        `db:"price" json:"price"`
	Status       string         `db:"status" json:"status"`
	CustomFields map[string]any `db:"custom_fields" json:"custom_fields,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

type Registration struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	EventID      uuid.UUID      `db:"event_id" json:"event_id"`
	UserID       uuid.UUID      `db:"user_id" json:"user_id"`
	Email        string         `db:"email,omitempty" json:"email,omitempty"`
	Status       string         `db:"status" json:"status"`
	CustomFields map[string]any `db:"custom_fields" json:"custom_fields,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// CheckIn holds the latest attendance action per (event, user) pair. The row
// is updated in place on every check-in/check-out, so Status is always the
// current state and StatusTime the moment it was set.
type CheckIn struct {
	ID         uuid.UUID `db:"id" json:"id"`
	EventID    uuid.UUID `db:"event_id" json:"event_id"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	Status     string    `db:"status" json:"status"`
	StatusTime time.Time `db:"status_time" json:"status_time"`
}

type Payment struct {
	ID             uuid.UUID `db:"id" json:"id"`
	RegistrationID uuid.UUID `db:"registration_id" json:"registration_id"`
	EventID        uuid.UUID `db:"event_id" json:"event_id"`
	Amount         float64   `db:"amount" json:"amount"`
	Method         string    `db:"payment_method" json:"payment_method"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
