package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusPaid      BookingStatus = "paid"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusReversed  BookingStatus = "reversed"
	BookingStatusFailed    BookingStatus = "failed"
	BookingStatusRefunded  BookingStatus = "refunded"
)

var bookingStatuses = map[BookingStatus]struct{}{
	BookingStatusPending:   {},
	BookingStatusConfirmed: {},
	BookingStatusPaid:      {},
	BookingStatusCancelled: {},
	BookingStatusReversed:  {},
	BookingStatusFailed:    {},
	BookingStatusRefunded:  {},
}

// ParseBookingStatus rejects values outside the closed status set.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if _, ok := bookingStatuses[status]; !ok {
		return "", fmt.Errorf("unknown booking status %q", s)
	}
	return status, nil
}

// Settled reports whether the payment outcome is final from the provider's side.
func (s BookingStatus) Settled() bool {
	return s == BookingStatusPaid || s == BookingStatusReversed || s == BookingStatusRefunded
}

type Booking struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	FlightOrderID     string
	Status            BookingStatus
	TotalPrice        float64
	OrderResponse     json.RawMessage
	TicketURL         *string
	PaymentTrackingID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
