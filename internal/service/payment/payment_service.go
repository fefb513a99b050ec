package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/aerobound/internal/domain"
	"github.com/Domenick1991/aerobound/internal/kafka"
	"github.com/Domenick1991/aerobound/internal/provider/pesapal"
	"github.com/Domenick1991/aerobound/internal/repository"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

var (
	ErrInvalidRequest = errors.New("invalid payment request")
	ErrForbidden      = errors.New("you don't have permission to pay for this booking")
	ErrAlreadyPaid    = errors.New("this booking has already been paid")
	ErrNotConfigured  = errors.New("payment system not configured, please contact support")
)

var tracer = otel.Tracer("github.com/Domenick1991/aerobound/internal/service/payment")

type PaymentUseCase interface {
	InitiatePayment(ctx context.Context, input InitiatePaymentInput) (domain.PaymentOrderResult, error)
	Callback(ctx context.Context, trackingID, merchantReference string) CallbackResult
	Notify(ctx context.Context, trackingID, merchantReference string) IPNAck
	Poll(ctx context.Context, trackingID string) (TransactionStatusView, error)
	SweepPending(ctx context.Context, olderThan time.Duration) (int, error)
}

// Provider is the payment provider as seen by the coordinator.
type Provider interface {
	IPNID() string
	SubmitOrder(ctx context.Context, order domain.PaymentOrder) (domain.PaymentOrderResult, error)
	TransactionStatus(ctx context.Context, trackingID string) (domain.TransactionStatus, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type PaymentService struct {
	bookings           repository.BookingRepository
	provider           Provider
	producer           Producer
	log                *logrus.Entry
	bookingTopic       string
	notificationsTopic string
	frontendURL        string
	terminalGuard      bool
	now                func() time.Time
}

type PaymentServiceOption func(*PaymentService)

func WithEvents(producer Producer, bookingTopic, notificationsTopic string) PaymentServiceOption {
	return func(s *PaymentService) {
		s.producer = producer
		s.bookingTopic = bookingTopic
		s.notificationsTopic = notificationsTopic
	}
}

// WithTerminalGuard stops a paid, reversed or refunded booking from being moved back to pending.
func WithTerminalGuard() PaymentServiceOption {
	return func(s *PaymentService) {
		s.terminalGuard = true
	}
}

func WithFrontendURL(url string) PaymentServiceOption {
	return func(s *PaymentService) {
		s.frontendURL = strings.TrimRight(url, "/")
	}
}

func NewPaymentService(bookings repository.BookingRepository, provider Provider, log *logrus.Entry, opts ...PaymentServiceOption) *PaymentService {
	s := &PaymentService{
		bookings:    bookings,
		provider:    provider,
		log:         log.WithField("component", "payments"),
		frontendURL: "http://localhost:3000",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type InitiatePaymentInput struct {
	BookingID      string
	UserID         uuid.UUID
	Amount         float64
	Currency       string
	Description    string
	CallbackURL    string
	BillingAddress domain.BillingAddress
}

// InitiatePayment checks the booking can be paid by the caller and submits an order to the provider.
func (s *PaymentService) InitiatePayment(ctx context.Context, input InitiatePaymentInput) (domain.PaymentOrderResult, error) {
	currency := lo.Ternary(input.Currency == "", "USD", input.Currency)
	if currency != "USD" {
		return domain.PaymentOrderResult{}, fmt.Errorf("%w: only USD currency is supported", ErrInvalidRequest)
	}
	if input.Amount <= 0 {
		return domain.PaymentOrderResult{}, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if input.BillingAddress.EmailAddress == "" {
		return domain.PaymentOrderResult{}, fmt.Errorf("%w: billing email address is required", ErrInvalidRequest)
	}

	booking, err := s.resolveBooking(ctx, input.BookingID)
	if err != nil {
		return domain.PaymentOrderResult{}, err
	}
	if booking.UserID != input.UserID {
		return domain.PaymentOrderResult{}, ErrForbidden
	}
	if booking.Status == domain.BookingStatusPaid {
		return domain.PaymentOrderResult{}, ErrAlreadyPaid
	}
	if s.provider.IPNID() == "" {
		return domain.PaymentOrderResult{}, ErrNotConfigured
	}

	callbackURL := lo.Ternary(input.CallbackURL == "", s.frontendURL+"/booking/payment/callback", input.CallbackURL)
	order := domain.PaymentOrder{
		MerchantReference: fmt.Sprintf("%s-%d", booking.ID, s.now().Unix()),
		Amount:            input.Amount,
		Currency:          currency,
		Description:       fmt.Sprintf("Flight booking payment - %s", booking.ID),
		CallbackURL:       callbackURL,
		NotificationID:    s.provider.IPNID(),
		BillingAddress:    input.BillingAddress,
	}

	result, err := s.provider.SubmitOrder(ctx, order)
	if err != nil {
		if errors.Is(err, pesapal.ErrValidation) {
			return domain.PaymentOrderResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return domain.PaymentOrderResult{}, err
	}

	if err := s.bookings.SetPaymentTrackingID(ctx, booking.ID, result.OrderTrackingID); err != nil {
		s.log.WithError(err).WithField("booking_id", booking.ID).Warn("failed to record payment tracking id")
	}

	s.log.WithFields(logrus.Fields{
		"booking_id":         booking.ID,
		"order_tracking_id":  result.OrderTrackingID,
		"merchant_reference": order.MerchantReference,
	}).Info("payment order submitted")
	return result, nil
}

// resolveBooking maps an id that is not a valid UUID to ErrBookingNotFound.
func (s *PaymentService) resolveBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, repository.ErrBookingNotFound
	}
	return s.bookings.GetByID(ctx, id)
}

func (s *PaymentService) publish(ctx context.Context, booking *domain.Booking, trackingID string) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:            "booking_" + string(booking.Status),
		BookingID:       booking.ID.String(),
		UserID:          booking.UserID.String(),
		FlightOrderID:   booking.FlightOrderID,
		Status:          string(booking.Status),
		OrderTrackingID: trackingID,
		OccurredAt:      s.now().UTC(),
	}

	topics := []string{s.bookingTopic}
	if s.notificationsTopic != "" {
		topics = append(topics, s.notificationsTopic)
	}
	for _, topic := range topics {
		if err := s.producer.Publish(ctx, topic, event.BookingID, event); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"booking_id": event.BookingID, "topic": topic}).Warn("failed to publish booking event")
		}
	}
}

var _ PaymentUseCase = (*PaymentService)(nil)
