package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventdesk/cmd/middleware"
	"eventdesk/internal/attendance"
	"eventdesk/internal/dto"
	"eventdesk/internal/mailer"
	"eventdesk/internal/model"
	"eventdesk/internal/rabbit"
	"eventdesk/internal/repo"
	"eventdesk/internal/report"
	"eventdesk/pkg/validator"
)

type Service interface {
	CreateEvent(ctx *ginext.Context)
	UpdateEvent(ctx *ginext.Context)
	DeleteEvent(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	GetAllEvents(ctx *ginext.Context)
	Register(ctx *ginext.Context)
	CheckIn(ctx *ginext.Context)
	CheckOut(ctx *ginext.Context)
	AttendanceStatus(ctx *ginext.Context)
	FinancialReport(ctx *ginext.Context)
	AttendanceReport(ctx *ginext.Context)
	OverallStats(ctx *ginext.Context)
	ConfirmPayment(ctx *ginext.Context)
	PaymentStatus(ctx *ginext.Context)
}

type service struct {
	repo             repo.Repository
	tracker          *attendance.Tracker
	reports          *report.Aggregator
	log              *zerolog.Logger
	rbt              *rabbit.Client
	mail             *mailer.Mailer
	paymentWindowMin int
}

func NewService(
	repository repo.Repository,
	tracker *attendance.Tracker,
	reports *report.Aggregator,
	logger *zerolog.Logger,
	rbt *rabbit.Client,
	mail *mailer.Mailer,
	paymentWindowMin int,
) Service {
	return &service{
		repo:             repository,
		tracker:          tracker,
		reports:          reports,
		log:              logger,
		rbt:              rbt,
		mail:             mail,
		paymentWindowMin: paymentWindowMin,
	}
}

func eventParam(ctx *ginext.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid event ID")
		return uuid.Nil, false
	}
	return id, true
}

func eventResponse(e *model.Event) dto.EventResponse {
	return dto.EventResponse{
		ID:           e.ID,
		Title:        e.Title,
		Description:  e.Description,
		StartDate:    e.StartDate,
		EndDate:      e.EndDate,
		Capacity:     e.Capacity,
		Price:        e.Price,
		Status:       e.Status,
		CustomFields: e.CustomFields,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func registrationResponse(r *model.Registration) dto.RegistrationResponse {
	return dto.RegistrationResponse{
		ID:        r.ID,
		EventID:   r.EventID,
		UserID:    r.UserID,
		Email:     r.Email,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (s *service) CreateEvent(ctx *ginext.Context) {
	var req dto.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse create event request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		s.log.Error().Msgf("validation failed: %v", verr)
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	status := req.Status
	if status == "" {
		status = model.EventStatusDraft
	}

	event := &model.Event{
		Title:        req.Title,
		Description:  req.Description,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Capacity:     req.Capacity,
		Price:        req.Price,
		Status:       status,
		CustomFields: req.CustomFields,
	}

	if err := s.repo.CreateEvent(ctx.Request.Context(), event); err != nil {
		s.log.Error().Err(err).Msg("failed to create event in DB")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("event_id", event.ID.String()).Msg("event created successfully")
	dto.SuccessCreatedResponse(ctx, eventResponse(event))
}

func (s *service) UpdateEvent(ctx *ginext.Context) {
	eventID, ok := eventParam(ctx)
	if !ok {
		return
	}

	var req dto.UpdateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	event, err := s.repo.GetEventByID(ctx.Request.Context(), eventID)
	if err != nil {
		dto.EventNotFoundError(ctx)
		return
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.StartDate != nil {
		event.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		event.EndDate = *req.EndDate
	}
	if req.Capacity != nil {
		event.Capacity = *req.Capacity
	}
	if req.Price != nil {
		event.Price = *req.Price
	}
	if req.Status != nil {
		event.Status = *req.Status
	}
	if req.CustomFields != nil {
		event.CustomFields = *req.CustomFields
	}

	if err := s.repo.UpdateEvent(ctx.Request.Context(), event); err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			dto.EventNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to update event")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, eventResponse(event))
}

func (s *service) DeleteEvent(ctx *ginext.Context) {
	eventID, ok := eventParam(ctx)
	if !ok {
		return
	}

	if err := s.repo.DeleteEvent(ctx.Request.Context(), eventID); err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			dto.EventNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to delete event")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("event_id", eventID.String()).Msg("event deleted")
	dto.SuccessResponse(ctx, nil)
}

func (s *service) GetEvent(ctx *ginext.Context) {
	eventID, ok := eventParam(ctx)
	if !ok {
		return
	}

	event, err := s.repo.GetEventByID(ctx.Request.Context(), eventID)
	if err != nil {
		dto.EventNotFoundError(ctx)
		return
	}

	dto.SuccessResponse(ctx, eventResponse(event))
}

func (s *service) GetAllEvents(ctx *ginext.Context) {
	events, err := s.repo.FetchEvents(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list events")
		dto.InternalServerError(ctx)
		return
	}

	resp := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, eventResponse(&events[i]))
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) Register(ctx *ginext.Context) {
	eventID, ok := eventParam(ctx)
	if !ok {
		return
	}
	userID, ok := middleware.CallerID(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	var req dto.CreateRegistrationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	registration := &model.Registration{
		EventID:      eventID,
		UserID:       userID,
		Email:        req.Email,
		CustomFields: req.CustomFields,
	}

	if err := s.repo.RegisterForEventTx(ctx.Request.Context(), registration); err != nil {
		switch {
		case errors.Is(err, repo.ErrEventNotFound):
			dto.EventNotFoundError(ctx)
		case errors.Is(err, repo.ErrEventNotOpen):
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Event is not open for registration")
		case errors.Is(err, repo.ErrEventFull):
			dto.BadResponseError(ctx, dto.EventFull, "Event is full")
		case errors.Is(err, repo.ErrDuplicateRegistration):
			dto.RegistrationDuplicateError(ctx)
		default:
			s.log.Error().Err(err).Msg("failed to register for event")
			dto.InternalServerError(ctx)
		}
		return
	}

	s.log.Info().
		Str("registration_id", registration.ID.String()).
		Str("event_id", eventID.String()).
		Msg("registration created successfully")

	msg := dto.RegistrationExpireMessage{
		RegistrationID: registration.ID,
		EventID:        eventID,
		ExpireAt:       time.Now().Add(time.Duration(s.paymentWindowMin) * time.Minute),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal expiry message")
	} else if s.rbt != nil {
		if err := s.rbt.Publish(payload, s.paymentWindowMin*60); err != nil {
			s.log.Error().Err(err).Msg("failed to publish expiry message")
		}
	}

	if s.mail != nil {
		event, err := s.repo.GetEventByID(ctx.Request.Context(), eventID)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to load event for registration email")
		} else if err := s.mail.SendRegistrationEmail(
			event.Title, registration.Status, registration.Email, s.paymentWindowMin,
		); err != nil {
			s.log.Warn().Err(err).Msg("failed to send registration email")
		}
	}

	dto.SuccessCreatedResponse(ctx, registrationResponse(registration))
}

func (s *service) CheckIn(ctx *ginext.Context) {
	eventID, ok := eventParam(ctx)
	if !ok {
		return
	}
	userID, ok := middleware.CallerID(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	rec, err := s.tracker.CheckIn(ctx.Request.Context(), userID, eventID)
	if err != nil {
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, dto.AttendanceStatusResponse{
		EventID:    eventID,
		UserID:     userID,
		Status:     rec.Status,
		StatusTime: &rec.StatusTime,
	})
}

func (s *service) CheckOut(ctx *ginext.Context) {
	eventID, ok := eventParam(ctx)
	if !ok {
		return
	}
	userID, ok := middleware.CallerID(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	rec, err := s.tracker.CheckOut(ctx.Request.Context(), userID, eventID)
	if err != nil {
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, dto.AttendanceStatusResponse{
		EventID:    eventID,
		UserID:     userID,
		Status:     rec.Status,
		StatusTime: &rec.StatusTime,
	})
}

func (s *service) AttendanceStatus(ctx *ginext.Context) {
	eventID, ok := eventParam(ctx)
	if !ok {
		return
	}
	userID, ok := middleware.CallerID(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	status, rec, err := s.tracker.Status(ctx.Request.Context(), userID, eventID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read attendance status")
		dto.InternalServerError(ctx)
		return
	}

	resp := dto.AttendanceStatusResponse{
		EventID: eventID,
		UserID:  userID,
		Status:  status,
	}
	if rec != nil {
		resp.StatusTime = &rec.StatusTime
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) FinancialReport(ctx *ginext.Context) {
	eventID, ok := eventParam(ctx)
	if !ok {
		return
	}

	if _, err := s.repo.GetEventByID(ctx.Request.Context(), eventID); err != nil {
		dto.EventNotFoundError(ctx)
		return
	}

	rep, err := s.reports.Financial(ctx.Request.Context(), eventID)
	if err != nil {
		dto.ReportGenerationError(ctx)
		return
	}
	dto.SuccessResponse(ctx, rep)
}

func (s *service) AttendanceReport(ctx *ginext.Context) {
	eventID, ok := eventParam(ctx)
	if !ok {
		return
	}

	if _, err := s.repo.GetEventByID(ctx.Request.Context(), eventID); err != nil {
		dto.EventNotFoundError(ctx)
		return
	}

	rep, err := s.reports.Attendance(ctx.Request.Context(), eventID)
	if err != nil {
		dto.ReportGenerationError(ctx)
		return
	}
	dto.SuccessResponse(ctx, rep)
}

func (s *service) OverallStats(ctx *ginext.Context) {
	stats, err := s.reports.Overall(ctx.Request.Context())
	if err != nil {
		dto.ReportGenerationError(ctx)
		return
	}
	dto.SuccessResponse(ctx, stats)
}

// ConfirmPayment is called by the payment workflow after the external
// processor reports a successful charge. The charge itself is never made
// here.
func (s *service) ConfirmPayment(ctx *ginext.Context) {
	eventID, ok := eventParam(ctx)
	if !ok {
		return
	}

	var req dto.ConfirmPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	payment := &model.Payment{
		RegistrationID: req.RegistrationID,
		EventID:        eventID,
		Amount:         req.Amount,
		Method:         req.Method,
		Status:         model.PaymentStatusSucceeded,
	}

	reg, err := s.repo.ConfirmPaymentTx(ctx.Request.Context(), payment)
	if err != nil {
		if errors.Is(err, repo.ErrRegistrationNotFound) {
			dto.RegistrationNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to record payment")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("registration_id", reg.ID.String()).
		Str("method", payment.Method).
		Msg("payment recorded")

	if s.mail != nil {
		event, err := s.repo.GetEventByID(ctx.Request.Context(), eventID)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to load event for receipt email")
		} else if err := s.mail.SendRegistrationEmail(event.Title, reg.Status, reg.Email, 0); err != nil {
			s.log.Warn().Err(err).Msg("failed to send receipt email")
		}
	}

	dto.SuccessCreatedResponse(ctx, dto.PaymentResponse{
		ID:             payment.ID,
		RegistrationID: payment.RegistrationID,
		EventID:        payment.EventID,
		Amount:         payment.Amount,
		Method:         payment.Method,
		Status:         payment.Status,
		CreatedAt:      payment.CreatedAt,
	})
}

func (s *service) PaymentStatus(ctx *ginext.Context) {
	eventID, ok := eventParam(ctx)
	if !ok {
		return
	}
	userID, ok := middleware.CallerID(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	p, err := s.repo.GetPaymentByUserEvent(ctx.Request.Context(), userID, eventID)
	if err != nil {
		if errors.Is(err, repo.ErrPaymentNotFound) {
			dto.NotFoundError(ctx, "PAYMENT_NOT_FOUND", "No payment found for this event")
			return
		}
		s.log.Error().Err(err).Msg("failed to read payment status")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, dto.PaymentResponse{
		ID:             p.ID,
		RegistrationID: p.RegistrationID,
		EventID:        p.EventID,
		Amount:         p.Amount,
		Method:         p.Method,
		Status:         p.Status,
		CreatedAt:      p.CreatedAt,
	})
}
