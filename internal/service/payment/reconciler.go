package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/aerobound/internal/domain"
	"github.com/Domenick1991/aerobound/internal/metrics"
	"github.com/Domenick1991/aerobound/internal/provider/pesapal"
	"github.com/Domenick1991/aerobound/internal/repository"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Caller-visible callback outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeReversed = "reversed"
	OutcomePending  = "pending"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

const (
	entryCallback = "callback"
	entryIPN      = "ipn"
	entryPoll     = "poll"
	entrySweep    = "sweep"
)

const (
	ipnNotificationType = "IPNCHANGE"
	pendingMessage      = "Payment is pending. Please complete the payment or try again."
)

type CallbackResult struct {
	Status           string   `json:"status"`
	Message          string   `json:"message"`
	OrderTrackingID  string   `json:"order_tracking_id"`
	PaymentMethod    *string  `json:"payment_method,omitempty"`
	Amount           *float64 `json:"amount,omitempty"`
	ConfirmationCode *string  `json:"confirmation_code,omitempty"`
}

type IPNAck struct {
	OrderNotificationType  string `json:"orderNotificationType"`
	OrderTrackingID        string `json:"orderTrackingId"`
	OrderMerchantReference string `json:"orderMerchantReference"`
	Status                 int    `json:"status"`
}

type TransactionStatusView struct {
	PaymentStatusDescription string  `json:"payment_status_description"`
	PaymentMethod            string  `json:"payment_method"`
	Amount                   float64 `json:"amount"`
	ConfirmationCode         string  `json:"confirmation_code"`
	CreatedDate              string  `json:"created_date"`
	StatusCode               int     `json:"status_code"`
	MerchantReference        string  `json:"merchant_reference"`
	Currency                 string  `json:"currency"`
}

// BookingIDFromMerchantReference strips the suffix after the last '-'.
func BookingIDFromMerchantReference(ref string) string {
	if i := strings.LastIndex(ref, "-"); i >= 0 {
		return ref[:i]
	}
	return ref
}

// TargetStatus maps a provider status code onto the booking status it implies.
func TargetStatus(statusCode int) domain.BookingStatus {
	switch statusCode {
	case domain.PaymentStatusCompleted:
		return domain.BookingStatusPaid
	case domain.PaymentStatusFailed:
		return domain.BookingStatusFailed
	case domain.PaymentStatusReversed:
		return domain.BookingStatusReversed
	default:
		return domain.BookingStatusPending
	}
}

// Resolve returns the booking status to persist and the outcome reported to the user.
func Resolve(st domain.TransactionStatus) (domain.BookingStatus, string) {
	target := TargetStatus(st.StatusCode)
	switch target {
	case domain.BookingStatusPaid:
		return target, OutcomeSuccess
	case domain.BookingStatusFailed:
		return target, OutcomeFailed
	case domain.BookingStatusReversed:
		return target, OutcomeReversed
	}
	if st.Error != nil && st.Error.Code == domain.PaymentDetailsNotFound {
		return target, OutcomePending
	}
	return target, OutcomeInvalid
}

// Callback handles the user's redirect back from the payment page.
func (s *PaymentService) Callback(ctx context.Context, trackingID, merchantReference string) CallbackResult {
	ctx, span := tracer.Start(ctx, "payments.callback")
	defer span.End()
	span.SetAttributes(attribute.String("order_tracking_id", trackingID), attribute.String("merchant_reference", merchantReference))

	bookingID := BookingIDFromMerchantReference(merchantReference)
	log := s.log.WithFields(logrus.Fields{"entry": entryCallback, "booking_id": bookingID, "order_tracking_id": trackingID})

	booking, err := s.resolveBooking(ctx, bookingID)
	if errors.Is(err, repository.ErrBookingNotFound) {
		log.Error("booking not found")
		s.countOutcome(entryCallback, "not_found")
		return CallbackResult{Status: OutcomeError, Message: "Booking not found", OrderTrackingID: trackingID}
	}
	if err != nil {
		return s.callbackFailure(ctx, log, bookingID, trackingID, err)
	}

	st, err := s.provider.TransactionStatus(ctx, trackingID)
	if errors.Is(err, pesapal.ErrPendingPayment) {
		s.countOutcome(entryCallback, OutcomePending)
		return CallbackResult{Status: OutcomePending, Message: pendingMessage, OrderTrackingID: trackingID}
	}
	if err != nil {
		return s.callbackFailure(ctx, log, bookingID, trackingID, err)
	}

	target, outcome := Resolve(st)
	if err := s.apply(ctx, log, booking, target, trackingID); err != nil {
		return s.callbackFailure(ctx, log, bookingID, trackingID, err)
	}
	s.countOutcome(entryCallback, outcome)

	res := CallbackResult{Status: outcome, OrderTrackingID: trackingID}
	switch outcome {
	case OutcomeSuccess:
		res.Message = "Payment completed successfully"
		res.PaymentMethod = lo.ToPtr(st.PaymentMethod)
		res.Amount = lo.ToPtr(st.Amount)
		res.ConfirmationCode = lo.ToPtr(st.ConfirmationCode)
	case OutcomeFailed:
		res.Message = "Payment failed: " + lo.Ternary(st.Description == "", "Unknown error", st.Description)
	case OutcomeReversed:
		res.Message = "Payment was reversed"
	case OutcomePending:
		res.Message = pendingMessage
	default:
		res.Message = "Invalid payment status: " + st.PaymentStatusDescription
	}
	return res
}

func (s *PaymentService) callbackFailure(ctx context.Context, log *logrus.Entry, bookingID, trackingID string, cause error) CallbackResult {
	s.failClosed(ctx, log, entryCallback, bookingID, trackingID, cause)
	return CallbackResult{
		Status:          OutcomeError,
		Message:         fmt.Sprintf("Error processing callback: %v", cause),
		OrderTrackingID: trackingID,
	}
}

// Notify handles a provider IPN. Every path answers with the same acknowledgement shape.
func (s *PaymentService) Notify(ctx context.Context, trackingID, merchantReference string) IPNAck {
	ctx, span := tracer.Start(ctx, "payments.ipn")
	defer span.End()
	span.SetAttributes(attribute.String("order_tracking_id", trackingID), attribute.String("merchant_reference", merchantReference))

	ack := IPNAck{
		OrderNotificationType:  ipnNotificationType,
		OrderTrackingID:        trackingID,
		OrderMerchantReference: merchantReference,
		Status:                 500,
	}
	if trackingID == "" || merchantReference == "" {
		s.countOutcome(entryIPN, "malformed")
		return ack
	}

	bookingID := BookingIDFromMerchantReference(merchantReference)
	log := s.log.WithFields(logrus.Fields{"entry": entryIPN, "booking_id": bookingID, "order_tracking_id": trackingID})

	st, err := s.provider.TransactionStatus(ctx, trackingID)
	if errors.Is(err, pesapal.ErrPendingPayment) {
		s.countOutcome(entryIPN, OutcomePending)
		ack.Status = 200
		return ack
	}
	if err != nil {
		s.failClosed(ctx, log, entryIPN, bookingID, trackingID, err)
		return ack
	}

	booking, err := s.resolveBooking(ctx, bookingID)
	if errors.Is(err, repository.ErrBookingNotFound) {
		log.Warn("ipn for unknown booking")
		s.countOutcome(entryIPN, "not_found")
		return ack
	}
	if err != nil {
		s.failClosed(ctx, log, entryIPN, bookingID, trackingID, err)
		return ack
	}

	target, outcome := Resolve(st)
	if err := s.apply(ctx, log, booking, target, trackingID); err != nil {
		s.failClosed(ctx, log, entryIPN, bookingID, trackingID, err)
		return ack
	}
	s.countOutcome(entryIPN, outcome)

	ack.Status = 200
	return ack
}

// Poll reports the provider's view of a transaction without touching any booking.
func (s *PaymentService) Poll(ctx context.Context, trackingID string) (TransactionStatusView, error) {
	ctx, span := tracer.Start(ctx, "payments.poll")
	defer span.End()

	st, err := s.provider.TransactionStatus(ctx, trackingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.countOutcome(entryPoll, OutcomeError)
		if errors.Is(err, pesapal.ErrValidation) {
			return TransactionStatusView{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return TransactionStatusView{}, err
	}
	s.countOutcome(entryPoll, "ok")

	return TransactionStatusView{
		PaymentStatusDescription: st.PaymentStatusDescription,
		PaymentMethod:            st.PaymentMethod,
		Amount:                   st.Amount,
		ConfirmationCode:         st.ConfirmationCode,
		CreatedDate:              st.CreatedDate,
		StatusCode:               st.StatusCode,
		MerchantReference:        st.MerchantReference,
		Currency:                 lo.Ternary(st.Currency == "", "USD", st.Currency),
	}, nil
}

// SweepPending re-checks unsettled bookings whose last payment attempt is older than olderThan.
// Only settled provider answers are written. Provider failures leave the booking untouched.
func (s *PaymentService) SweepPending(ctx context.Context, olderThan time.Duration) (int, error) {
	ctx, span := tracer.Start(ctx, "payments.sweep")
	defer span.End()

	bookings, err := s.bookings.ListPendingBefore(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("list pending bookings: %w", err)
	}

	updated := 0
	for i := range bookings {
		b := &bookings[i]
		trackingID := lo.FromPtr(b.PaymentTrackingID)
		log := s.log.WithFields(logrus.Fields{"entry": entrySweep, "booking_id": b.ID, "order_tracking_id": trackingID})

		st, err := s.provider.TransactionStatus(ctx, trackingID)
		if err != nil {
			log.WithError(err).Warn("transaction status lookup failed")
			s.countOutcome(entrySweep, OutcomeError)
			continue
		}

		target := TargetStatus(st.StatusCode)
		if target == b.Status || target == domain.BookingStatusPending {
			s.countOutcome(entrySweep, "unchanged")
			continue
		}
		if err := s.apply(ctx, log, b, target, trackingID); err != nil {
			log.WithError(err).Error("failed to update booking status")
			s.countOutcome(entrySweep, OutcomeError)
			continue
		}
		s.countOutcome(entrySweep, "updated")
		updated++
	}
	return updated, nil
}

// apply persists target for booking. The write is a plain assignment, so replaying the same
// provider answer is harmless; events are only published when the status actually changes.
func (s *PaymentService) apply(ctx context.Context, log *logrus.Entry, booking *domain.Booking, target domain.BookingStatus, trackingID string) error {
	if s.terminalGuard && booking.Status.Settled() && target == domain.BookingStatusPending {
		log.WithFields(logrus.Fields{"current": booking.Status, "target": target}).Info("ignoring stale pending status for settled booking")
		return nil
	}

	previous := booking.Status
	updated, err := s.bookings.UpdateStatus(ctx, booking.ID, target)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	metrics.BookingStatusWrites.WithLabelValues(string(target)).Inc()

	if previous != updated.Status {
		log.WithFields(logrus.Fields{"from": previous, "to": updated.Status}).Info("booking status changed")
		s.publish(ctx, updated, trackingID)
	}
	*booking = *updated
	return nil
}

// failClosed cancels the booking after an unexpected failure, including failures that say
// nothing about the payment itself such as the provider being unreachable.
// A booking that was in fact paid can end up cancelled here.
func (s *PaymentService) failClosed(ctx context.Context, log *logrus.Entry, entry, bookingID, trackingID string, cause error) {
	log.WithError(cause).Error("payment processing failed, cancelling booking")
	metrics.FailClosedCancellations.WithLabelValues(entry).Inc()
	s.countOutcome(entry, OutcomeError)

	id, err := uuid.Parse(bookingID)
	if err != nil {
		return
	}
	cancelled, err := s.bookings.UpdateStatus(ctx, id, domain.BookingStatusCancelled)
	if err != nil {
		log.WithError(err).Error("failed to cancel booking")
		return
	}
	metrics.BookingStatusWrites.WithLabelValues(string(domain.BookingStatusCancelled)).Inc()
	s.publish(ctx, cancelled, trackingID)
}

func (s *PaymentService) countOutcome(entry, outcome string) {
	metrics.ReconcileOutcomes.WithLabelValues(entry, outcome).Inc()
}
