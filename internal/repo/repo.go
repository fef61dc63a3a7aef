package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"eventdesk/internal/attendance"
	"eventdesk/internal/model"
)

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrEventNotOpen          = errors.New("event is not open for registration")
	ErrEventFull             = errors.New("event is full")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrPaymentNotFound       = errors.New("payment not found")
)

type Repository interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEventByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	FetchEvents(ctx context.Context) ([]model.Event, error)

	RegisterForEventTx(ctx context.Context, reg *model.Registration) error
	GetRegistrationByID(ctx context.Context, id uuid.UUID) (*model.Registration, error)
	CountRegistrations(ctx context.Context, eventID uuid.UUID) (int, error)
	FetchRegistrations(ctx context.Context, eventID uuid.UUID) ([]model.Registration, error)
	MarkUnpaidIfPendingTx(ctx context.Context, registrationID uuid.UUID) (bool, error)

	UpsertCheckIn(ctx context.Context, rec *model.CheckIn) error
	LatestCheckIn(ctx context.Context, userID, eventID uuid.UUID) (*model.CheckIn, error)
	FetchCheckIns(ctx context.Context, eventID uuid.UUID) ([]model.CheckIn, error)

	ConfirmPaymentTx(ctx context.Context, p *model.Payment) (*model.Registration, error)
	GetPaymentByUserEvent(ctx context.Context, userID, eventID uuid.UUID) (*model.Payment, error)
	FetchPayments(ctx context.Context, eventID uuid.UUID) ([]model.Payment, error)

	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func marshalFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(fields)
}

func unmarshalFields(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) error {
	fields, err := marshalFields(e.CustomFields)
	if err != nil {
		return fmt.Errorf("failed to encode custom fields: %w", err)
	}

	query := `
		INSERT INTO events (title, description, start_date, end_date, capacity, price, status, custom_fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowContext(ctx, query,
		e.Title, e.Description, e.StartDate, e.EndDate, e.Capacity, e.Price, e.Status, fields,
	)
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

const eventColumns = `
	id, title, description, start_date, end_date, capacity, price, status,
	custom_fields, created_at, updated_at
`

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var (
		e      model.Event
		fields []byte
	)
	if err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.StartDate, &e.EndDate,
		&e.Capacity, &e.Price, &e.Status, &fields, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	cf, err := unmarshalFields(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode custom fields: %w", err)
	}
	e.CustomFields = cf
	return &e, nil
}

func (r *repository) GetEventByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (r *repository) UpdateEvent(ctx context.Context, e *model.Event) error {
	fields, err := marshalFields(e.CustomFields)
	if err != nil {
		return fmt.Errorf("failed to encode custom fields: %w", err)
	}

	query := `
		UPDATE events
		SET title = $1, description = $2, start_date = $3, end_date = $4,
		    capacity = $5, price = $6, status = $7, custom_fields = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at
	`
	if err := r.db.QueryRowContext(ctx, query,
		e.Title, e.Description, e.StartDate, e.EndDate,
		e.Capacity, e.Price, e.Status, fields, e.ID,
	).Scan(&e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

func (r *repository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if affected == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *repository) FetchEvents(ctx context.Context) ([]model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// RegisterForEventTx creates a pending registration while holding the event
// row lock, so capacity and the one-registration-per-user rule hold under
// concurrent requests.
func (r *repository) RegisterForEventTx(ctx context.Context, reg *model.Registration) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var (
		capacity int
		status   string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT capacity, status
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, reg.EventID).Scan(&capacity, &status)
	if err != nil {
		_ = tx.Rollback()
		return ErrEventNotFound
	}

	if status != model.EventStatusActive {
		_ = tx.Rollback()
		return ErrEventNotOpen
	}

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM registrations
		WHERE event_id = $1
	`, reg.EventID).Scan(&count)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to count registrations: %w", err)
	}
	if count >= capacity {
		_ = tx.Rollback()
		return ErrEventFull
	}

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM registrations
		WHERE event_id = $1 AND user_id = $2
	`, reg.EventID, reg.UserID).Scan(&existing)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to check duplicate registration: %w", err)
	}
	if existing > 0 {
		_ = tx.Rollback()
		return ErrDuplicateRegistration
	}

	fields, err := marshalFields(reg.CustomFields)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to encode custom fields: %w", err)
	}

	reg.Status = model.RegistrationStatusPending
	err = tx.QueryRowContext(ctx, `
		INSERT INTO registrations (event_id, user_id, email, status, custom_fields)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, reg.EventID, reg.UserID, reg.Email, reg.Status, fields).Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to create registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *repository) GetRegistrationByID(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	query := `
		SELECT id, event_id, user_id, email, status, custom_fields, created_at, updated_at
		FROM registrations
		WHERE id = $1
	`
	var (
		reg    model.Registration
		fields []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &reg.Email, &reg.Status,
		&fields, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, ErrRegistrationNotFound
	}
	reg.CustomFields, err = unmarshalFields(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode custom fields: %w", err)
	}
	return &reg, nil
}

func (r *repository) CountRegistrations(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM registrations
		WHERE event_id = $1
	`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return count, nil
}

func (r *repository) FetchRegistrations(ctx context.Context, eventID uuid.UUID) ([]model.Registration, error) {
	query := `
		SELECT id, event_id, user_id, email, status, custom_fields, created_at, updated_at
		FROM registrations
		WHERE $1 = '00000000-0000-0000-0000-000000000000'::uuid OR event_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		var (
			reg    model.Registration
			fields []byte
		)
		if err := rows.Scan(
			&reg.ID, &reg.EventID, &reg.UserID, &reg.Email, &reg.Status,
			&fields, &reg.CreatedAt, &reg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		if reg.CustomFields, err = unmarshalFields(fields); err != nil {
			return nil, fmt.Errorf("failed to decode custom fields: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// MarkUnpaidIfPendingTx flips a registration to unpaid once its payment
// window has expired. Returns false without error when the registration
// already left the pending state.
func (r *repository) MarkUnpaidIfPendingTx(ctx context.Context, registrationID uuid.UUID) (bool, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var currentStatus string
	err = tx.QueryRowContext(ctx, `
		SELECT status
		FROM registrations
		WHERE id = $1
		FOR UPDATE
	`, registrationID).Scan(&currentStatus)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrRegistrationNotFound
		}
		return false, fmt.Errorf("failed to select registration for expiry: %w", err)
	}

	if currentStatus != model.RegistrationStatusPending {
		_ = tx.Rollback()
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET status = 'unpaid', updated_at = NOW()
		WHERE id = $1
	`, registrationID); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("failed to mark registration unpaid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit expiry transaction: %w", err)
	}
	return true, nil
}

// UpsertCheckIn replaces the single attendance row kept per (event, user)
// pair. Last write wins under concurrent calls.
func (r *repository) UpsertCheckIn(ctx context.Context, rec *model.CheckIn) error {
	query := `
		INSERT INTO check_ins (event_id, user_id, status, status_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, user_id)
		DO UPDATE SET status = EXCLUDED.status, status_time = EXCLUDED.status_time
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query,
		rec.EventID, rec.UserID, rec.Status, rec.StatusTime,
	).Scan(&rec.ID); err != nil {
		return fmt.Errorf("failed to upsert check-in: %w", err)
	}
	return nil
}

func (r *repository) LatestCheckIn(ctx context.Context, userID, eventID uuid.UUID) (*model.CheckIn, error) {
	query := `
		SELECT id, event_id, user_id, status, status_time
		FROM check_ins
		WHERE user_id = $1 AND event_id = $2
	`
	var rec model.CheckIn
	err := r.db.QueryRowContext(ctx, query, userID, eventID).Scan(
		&rec.ID, &rec.EventID, &rec.UserID, &rec.Status, &rec.StatusTime,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, attendance.ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get check-in: %w", err)
	}
	return &rec, nil
}

func (r *repository) FetchCheckIns(ctx context.Context, eventID uuid.UUID) ([]model.CheckIn, error) {
	query := `
		SELECT id, event_id, user_id, status, status_time
		FROM check_ins
		WHERE $1 = '00000000-0000-0000-0000-000000000000'::uuid OR event_id = $1
		ORDER BY status_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get check-ins: %w", err)
	}
	defer rows.Close()

	var recs []model.CheckIn
	for rows.Next() {
		var rec model.CheckIn
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.UserID, &rec.Status, &rec.StatusTime); err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ConfirmPaymentTx records a successful charge and marks the registration
// paid in one transaction. The registration row is locked first so a racing
// expiry worker cannot flip it to unpaid in between.
func (r *repository) ConfirmPaymentTx(ctx context.Context, p *model.Payment) (*model.Registration, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var reg model.Registration
	err = tx.QueryRowContext(ctx, `
		SELECT id, event_id, user_id, email, status, created_at, updated_at
		FROM registrations
		WHERE id = $1
		FOR UPDATE
	`, p.RegistrationID).Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &reg.Email, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to select registration for payment: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO payments (registration_id, event_id, amount, payment_method, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, reg.ID, reg.EventID, p.Amount, p.Method, p.Status).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}
	p.RegistrationID = reg.ID
	p.EventID = reg.EventID

	if _, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET status = 'paid', updated_at = NOW()
		WHERE id = $1
	`, reg.ID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to mark registration paid: %w", err)
	}
	reg.Status = model.RegistrationStatusPaid

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment transaction: %w", err)
	}
	return &reg, nil
}

func (r *repository) GetPaymentByUserEvent(ctx context.Context, userID, eventID uuid.UUID) (*model.Payment, error) {
	query := `
		SELECT p.id, p.registration_id, p.event_id, p.amount, p.payment_method, p.status, p.created_at
		FROM payments p
		JOIN registrations r ON r.id = p.registration_id
		WHERE r.user_id = $1 AND p.event_id = $2
		ORDER BY p.created_at DESC
		LIMIT 1
	`
	var p model.Payment
	err := r.db.QueryRowContext(ctx, query, userID, eventID).Scan(
		&p.ID, &p.RegistrationID, &p.EventID, &p.Amount, &p.Method, &p.Status, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

func (r *repository) FetchPayments(ctx context.Context, eventID uuid.UUID) ([]model.Payment, error) {
	query := `
		SELECT id, registration_id, event_id, amount, payment_method, status, created_at
		FROM payments
		WHERE $1 = '00000000-0000-0000-0000-000000000000'::uuid OR event_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.RegistrationID, &p.EventID, &p.Amount, &p.Method, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
