package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	EventNotFound         = "EVENT_NOT_FOUND"
	EventFull             = "EVENT_FULL"
	RegistrationNotFound  = "REGISTRATION_NOT_FOUND"
	RegistrationDuplicate = "REGISTRATION_DUPLICATE"
	Unauthorized          = "UNAUTHORIZED"
	Forbidden             = "FORBIDDEN"
	ReportFailed          = "REPORT_FAILED"
)

type CreateEventRequest struct {
	Title        string         `json:"title" validate:"required,max=255"`
	Description  string         `json:"description"`
	StartDate    time.Time      `json:"start_date" validate:"required"`
	EndDate      time.Time      `json:"end_date" validate:"required"`
	Capacity     int            `json:"capacity" validate:"gt=0"`
	Price        float64        `json:"price" validate:"gte=0"`
	Status       string         `json:"status" validate:"omitempty,eventstatus"`
	CustomFields map[string]any `json:"custom_fields"`
}

// UpdateEventRequest is a partial update: nil means "leave the field alone",
// a non-nil pointer applies the value even when it is a zero value (price 0,
// empty description).
type UpdateEventRequest struct {
	Title        *string         `json:"title" validate:"omitempty,max=255"`
	Description  *string         `json:"description"`
	StartDate    *time.Time      `json:"start_date"`
	EndDate      *time.Time      `json:"end_date"`
	Capacity     *int            `json:"capacity" validate:"omitempty,gt=0"`
	Price        *float64        `json:"price" validate:"omitempty,gte=0"`
	Status       *string         `json:"status" validate:"omitempty,eventstatus"`
	CustomFields *map[string]any `json:"custom_fields"`
}

type CreateRegistrationRequest struct {
	Email        string         `json:"email" validate:"required,email"`
	CustomFields map[string]any `json:"custom_fields"`
}

// ConfirmPaymentRequest is posted by the payment workflow once the external
// processor reports a successful charge.
type ConfirmPaymentRequest struct {
	RegistrationID uuid.UUID `json:"registration_id" validate:"required"`
	Amount         float64   `json:"amount" validate:"gt=0"`
	Method         string    `json:"payment_method" validate:"required,max=50"`
}

// RegistrationExpireMessage rides the delayed exchange; when it is delivered
// the registration is marked unpaid unless a payment already landed.
type RegistrationExpireMessage struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	ExpireAt       time.Time `json:"expire_at"`
}

type EventResponse struct {
	ID           uuid.UUID      `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	StartDate    time.Time      `json:"start_date"`
	EndDate      time.Time      `json:"end_date"`
	Capacity     int            `json:"capacity"`
	Price        float64        `json:"price"`
	Status       string         `json:"status"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type RegistrationResponse struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AttendanceStatusResponse struct {
	EventID    uuid.UUID  `json:"event_id"`
	UserID     uuid.UUID  `json:"user_id"`
	Status     string     `json:"status"`
	StatusTime *time.Time `json:"status_time,omitempty"`
}

type PaymentResponse struct {
	ID             uuid.UUID `json:"id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	Amount         float64   `json:"amount"`
	Method         string    `json:"payment_method"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func ReportGenerationError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: ReportFailed,
			Desc: "Failed to generate report",
		},
	})
}

func NotFoundError(c *ginext.Context, code, desc string) {
	c.JSON(404, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func UnauthorizedError(c *ginext.Context) {
	c.AbortWithStatusJSON(401, Response{
		Status: "error",
		Error: &Error{
			Code: Unauthorized,
			Desc: "Missing or invalid credentials",
		},
	})
}

func ForbiddenError(c *ginext.Context) {
	c.AbortWithStatusJSON(403, Response{
		Status: "error",
		Error: &Error{
			Code: Forbidden,
			Desc: "Admin access required",
		},
	})
}

func EventNotFoundError(c *ginext.Context) {
	NotFoundError(c, EventNotFound, "Event not found")
}

func RegistrationNotFoundError(c *ginext.Context) {
	NotFoundError(c, RegistrationNotFound, "Registration not found")
}

func RegistrationDuplicateError(c *ginext.Context) {
	BadResponseError(c, RegistrationDuplicate, "You have already registered for this event")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{
		Status: "ok",
		Data:   data,
	})
}
