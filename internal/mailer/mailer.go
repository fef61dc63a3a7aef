package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"

	"eventdesk/internal/model"
)

type Mailer struct {
	host string
	port string
	from string
	pass string
	log  *zerolog.Logger
}

// New returns nil when no SMTP host is configured; callers treat a nil
// mailer as notifications disabled.
func New(host, port, from, pass string, log *zerolog.Logger) *Mailer {
	if host == "" {
		return nil
	}
	return &Mailer{host: host, port: port, from: from, pass: pass, log: log}
}

// SendRegistrationEmail notifies the registrant about a status change of
// their registration.
func (m *Mailer) SendRegistrationEmail(eventTitle, status, recipientEmail string, windowMinutes int) error {
	var subject, body string
	switch status {
	case model.RegistrationStatusPending:
		subject = "Registration received"
		body = fmt.Sprintf(
			"Hello!\n\nYou have registered for \"%s\". Please complete payment within %d minutes, otherwise the registration will be marked unpaid.",
			eventTitle, windowMinutes,
		)
	case model.RegistrationStatusPaid:
		subject = "Payment received"
		body = fmt.Sprintf("Hello!\n\nYour payment for \"%s\" has been received. See you there!", eventTitle)
	case model.RegistrationStatusUnpaid:
		subject = "Payment window expired"
		body = fmt.Sprintf(
			"Hello!\n\nThe payment window for your registration to \"%s\" has expired. The registration is now marked unpaid.",
			eventTitle,
		)
	default:
		return fmt.Errorf("unknown registration status %q", status)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, recipientEmail, subject, body,
	)

	addr := m.host + ":" + m.port
	auth := smtp.PlainAuth("", m.from, m.pass, m.host)

	if err := smtp.SendMail(addr, auth, m.from, []string{recipientEmail}, []byte(msg)); err != nil {
		m.log.Warn().Msgf("failed to send email to %s: %v", recipientEmail, err)
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Msgf("email sent to %s (status: %s)", recipientEmail, status)
	return nil
}
