package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/aerobound/internal/kafka"
	"github.com/sirupsen/logrus"
)

// Sender delivers notifications. Delivery is a log line until an SMTP relay is configured.
type Sender struct {
	log *logrus.Entry
}

func NewSender(log *logrus.Entry) *Sender {
	return &Sender{log: log.WithField("component", "email")}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	subject, body := Compose(event)
	s.log.WithFields(logrus.Fields{
		"booking_id": event.BookingID,
		"user_id":    event.UserID,
		"subject":    subject,
	}).Info(body)
	return nil
}

// SendMessage delivers a message to a single recipient.
func (s *Sender) SendMessage(ctx context.Context, to, subject, body string) error {
	s.log.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info(body)
	return nil
}

func Welcome(address string) (string, string) {
	return "Welcome to Aero Bound Ventures!",
		fmt.Sprintf("Hello %s, thank you for registering with us. We are excited to have you on board!", address)
}

// PasswordReset renders the reset email. The link expires after an hour.
func PasswordReset(link string) (string, string) {
	return "Password Reset Request - Aero Bound Ventures",
		"We received a request to reset your password for your Aero Bound Ventures account.\n" +
			"Open this link to choose a new password: " + link + "\n" +
			"The link will expire in 1 hour. If you didn't request a password reset, please ignore this email."
}

// Compose renders the subject and body for a booking event.
func Compose(event kafka.BookingEvent) (string, string) {
	switch event.Status {
	case "paid":
		return "Payment received - Aero Bound Ventures",
			fmt.Sprintf("Your payment for booking %s was received. Your ticket is being processed.", event.BookingID)
	case "failed":
		return "Payment failed - Aero Bound Ventures",
			fmt.Sprintf("The payment for booking %s failed. Please try again.", event.BookingID)
	case "reversed":
		return "Payment reversed - Aero Bound Ventures",
			fmt.Sprintf("The payment for booking %s was reversed.", event.BookingID)
	case "cancelled":
		return "Booking cancelled - Aero Bound Ventures",
			fmt.Sprintf("Booking %s was cancelled.", event.BookingID)
	default:
		return "Booking update - Aero Bound Ventures",
			fmt.Sprintf("Booking %s is now %s.", event.BookingID, event.Status)
	}
}
