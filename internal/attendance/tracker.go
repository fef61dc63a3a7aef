// Package attendance tracks check-in/check-out state per (user, event) pair.
//
// Each pair holds a single record that is replaced on every action, so the
// stored status is always the latest one. The pair moves between checked-in
// and checked-out freely; repeating an action keeps the status and refreshes
// its timestamp.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eventdesk/internal/model"
)

const (
	StatusCheckedIn  = "checked-in"
	StatusCheckedOut = "checked-out"
	// StatusUnknown is reported for pairs with no record at all.
	StatusUnknown = "unknown"
)

// ErrNoRecord is returned by stores when a pair has never checked in.
var ErrNoRecord = errors.New("no check-in record")

// Store is the narrow persistence capability the tracker needs.
type Store interface {
	UpsertCheckIn(ctx context.Context, rec *model.CheckIn) error
	LatestCheckIn(ctx context.Context, userID, eventID uuid.UUID) (*model.CheckIn, error)
}

type Tracker struct {
	store Store
	log   *zerolog.Logger
	now   func() time.Time
}

func NewTracker(store Store, log *zerolog.Logger) *Tracker {
	return &Tracker{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

func (t *Tracker) CheckIn(ctx context.Context, userID, eventID uuid.UUID) (*model.CheckIn, error) {
	return t.set(ctx, userID, eventID, StatusCheckedIn)
}

func (t *Tracker) CheckOut(ctx context.Context, userID, eventID uuid.UUID) (*model.CheckIn, error) {
	return t.set(ctx, userID, eventID, StatusCheckedOut)
}

func (t *Tracker) set(ctx context.Context, userID, eventID uuid.UUID, status string) (*model.CheckIn, error) {
	rec := &model.CheckIn{
		ID:         uuid.New(),
		EventID:    eventID,
		UserID:     userID,
		Status:     status,
		StatusTime: t.now(),
	}
	if err := t.store.UpsertCheckIn(ctx, rec); err != nil {
		t.log.Error().Err(err).
			Str("user_id", userID.String()).
			Str("event_id", eventID.String()).
			Str("status", status).
			Msg("failed to record attendance action")
		return nil, fmt.Errorf("record attendance: %w", err)
	}
	return rec, nil
}

// Status reads the latest state for the pair. Pairs with no history report
// StatusUnknown with a nil record rather than an error.
func (t *Tracker) Status(ctx context.Context, userID, eventID uuid.UUID) (string, *model.CheckIn, error) {
	rec, err := t.store.LatestCheckIn(ctx, userID, eventID)
	if errors.Is(err, ErrNoRecord) {
		return StatusUnknown, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("read attendance status: %w", err)
	}
	return rec.Status, rec, nil
}
