// Package consumerWorker consumes delayed registration-expiry messages and
// marks registrations that never paid within their window as unpaid.
package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"eventdesk/internal/dto"
	"eventdesk/internal/model"
	"eventdesk/internal/rabbit"
	"eventdesk/internal/repo"
)

// ExpiryStore is the slice of the repository the worker needs.
type ExpiryStore interface {
	MarkUnpaidIfPendingTx(ctx context.Context, registrationID uuid.UUID) (bool, error)
	GetRegistrationByID(ctx context.Context, id uuid.UUID) (*model.Registration, error)
	GetEventByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
}

type Notifier interface {
	SendRegistrationEmail(eventTitle, status, recipientEmail string, windowMinutes int) error
}

type Reader struct {
	RMQ    *rabbit.Client
	store  ExpiryStore
	mail   Notifier
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, store ExpiryStore, mail Notifier) *Reader {
	return &Reader{
		RMQ:   rmq,
		store: store,
		mail:  mail,
		done:  make(chan struct{}),
	}
}

// Handle processes one expiry message. A non-nil return requeues the
// message, so only transient store failures return an error; messages that
// can never succeed (malformed payload, registration gone) are logged and
// dropped.
func (r *Reader) Handle(ctx context.Context, body []byte) error {
	var msg dto.RegistrationExpireMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		zlog.Logger.Error().
			Err(err).
			Msgf("dropping malformed expiry message: %s", string(body))
		return nil
	}

	zlog.Logger.Info().
		Str("registration_id", msg.RegistrationID.String()).
		Str("event_id", msg.EventID.String()).
		Msg("payment window expired, checking registration")

	expired, err := r.store.MarkUnpaidIfPendingTx(ctx, msg.RegistrationID)
	if errors.Is(err, repo.ErrRegistrationNotFound) {
		// The registration was removed (event deleted) before the window
		// elapsed; requeueing would redeliver forever.
		zlog.Logger.Info().
			Str("registration_id", msg.RegistrationID.String()).
			Msg("registration no longer exists, dropping expiry message")
		return nil
	}
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("registration_id", msg.RegistrationID.String()).
			Msg("failed to expire registration")
		return err
	}

	if !expired {
		zlog.Logger.Info().
			Str("registration_id", msg.RegistrationID.String()).
			Msg("registration already paid or expired, skipping email")
		return nil
	}

	reg, err := r.store.GetRegistrationByID(ctx, msg.RegistrationID)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("registration_id", msg.RegistrationID.String()).
			Msg("failed to get registration in worker")
		return nil
	}

	event, err := r.store.GetEventByID(ctx, reg.EventID)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("event_id", reg.EventID.String()).
			Msg("failed to get event in worker")
		return nil
	}

	if r.mail == nil {
		return nil
	}
	if err := r.mail.SendRegistrationEmail(event.Title, reg.Status, reg.Email, 0); err != nil {
		zlog.Logger.Warn().
			Err(err).
			Msg("failed to send expiry email")
	} else {
		zlog.Logger.Info().
			Str("email", reg.Email).
			Str("registration_id", msg.RegistrationID.String()).
			Msg("expiry email sent")
	}

	return nil
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("registration expiry worker started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			return r.Handle(cctx, body)
		}

		if err := r.RMQ.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("registration expiry worker stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
