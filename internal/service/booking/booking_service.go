package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/aerobound/internal/cache"
	"github.com/Domenick1991/aerobound/internal/domain"
	"github.com/Domenick1991/aerobound/internal/kafka"
	"github.com/Domenick1991/aerobound/internal/metrics"
	"github.com/Domenick1991/aerobound/internal/repository"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidOrder   = errors.New("invalid flight order request")
	ErrMissingOrderID = errors.New("invalid response from booking service: missing order ID")
	ErrBookingFailed  = errors.New("booking failed, try again later")
)

type BookingUseCase interface {
	CreateFromOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (json.RawMessage, *domain.Booking, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID) ([]json.RawMessage, error)
}

// Provider places and reads flight orders.
type Provider interface {
	CreateOrder(ctx context.Context, offer json.RawMessage, travelers []json.RawMessage) (json.RawMessage, error)
	GetOrder(ctx context.Context, orderID string) (json.RawMessage, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	bookings           repository.BookingRepository
	provider           Provider
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	log                *logrus.Entry
	now                func() time.Time
}

type CreateOrderInput struct {
	FlightOffer json.RawMessage   `json:"flight_offer"`
	Travelers   []json.RawMessage `json:"travelers"`
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithCache(c Cache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = c
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	provider Provider,
	producer Producer,
	bookingTopic string,
	log *logrus.Entry,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:     bookings,
		provider:     provider,
		producer:     producer,
		bookingTopic: bookingTopic,
		log:          log.WithField("component", "bookings"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

type orderDocument struct {
	ID           string `json:"id"`
	FlightOffers []struct {
		Price struct {
			GrandTotal string `json:"grandTotal"`
		} `json:"price"`
	} `json:"flightOffers"`
}

// CreateFromOrder places the order with the provider and records a confirmed booking for it.
// The provider's order document is returned as is.
func (s *BookingService) CreateFromOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (json.RawMessage, *domain.Booking, error) {
	if len(input.FlightOffer) == 0 || string(input.FlightOffer) == "null" {
		return nil, nil, fmt.Errorf("%w: flight_offer is required", ErrInvalidOrder)
	}
	if len(input.Travelers) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one traveler is required", ErrInvalidOrder)
	}

	order, err := s.provider.CreateOrder(ctx, input.FlightOffer, input.Travelers)
	if err != nil {
		return nil, nil, err
	}

	var doc orderDocument
	if err := json.Unmarshal(order, &doc); err != nil || doc.ID == "" {
		return nil, nil, ErrMissingOrderID
	}

	booking := &domain.Booking{
		ID:            uuid.New(),
		UserID:        userID,
		FlightOrderID: doc.ID,
		Status:        domain.BookingStatusConfirmed,
		OrderResponse: order,
	}
	if len(doc.FlightOffers) > 0 && doc.FlightOffers[0].Price.GrandTotal != "" {
		total, err := strconv.ParseFloat(doc.FlightOffers[0].Price.GrandTotal, 64)
		if err != nil {
			s.log.WithError(err).WithField("flight_order_id", doc.ID).Warn("unparseable grand total")
		}
		booking.TotalPrice = total
	}

	// The order already exists at the provider when this fails.
	if err := s.bookings.Create(ctx, booking); err != nil {
		s.log.WithError(err).WithField("flight_order_id", doc.ID).Error("failed to save booking for placed order")
		return nil, nil, fmt.Errorf("%w: %v", ErrBookingFailed, err)
	}
	metrics.BookingStatusWrites.WithLabelValues(string(booking.Status)).Inc()

	if err := s.publish(ctx, "booking_created", booking); err != nil {
		s.log.WithError(err).WithField("booking_id", booking.ID).Warn("failed to publish booking_created event")
	}
	return order, booking, nil
}

// ListUserOrders fetches the provider's order documents for every booking of userID.
// Results are cached by the set of order ids, so a new booking invalidates the entry.
func (s *BookingService) ListUserOrders(ctx context.Context, userID uuid.UUID) ([]json.RawMessage, error) {
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	orderIDs := lo.Map(bookings, func(b domain.Booking, _ int) string { return b.FlightOrderID })
	if len(orderIDs) == 0 {
		return []json.RawMessage{}, nil
	}

	key := cache.Key("user-orders", map[string]string{"order_ids": strings.Join(orderIDs, ",")})
	if s.cache != nil {
		var hit []json.RawMessage
		found, err := s.cache.Get(ctx, key, &hit)
		if err != nil {
			s.log.WithError(err).WithField("key", key).Warn("cache read failed")
		}
		if found {
			metrics.LookupCacheRequests.WithLabelValues("user-orders", "hit").Inc()
			return hit, nil
		}
		metrics.LookupCacheRequests.WithLabelValues("user-orders", "miss").Inc()
	}

	orders := make([]json.RawMessage, 0, len(orderIDs))
	for _, id := range orderIDs {
		order, err := s.provider.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, orders); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("cache write failed")
		}
	}
	return orders, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) error {
	if s.producer == nil || s.bookingTopic == "" {
		return nil
	}
	event := kafka.BookingEvent{
		Type:          eventType,
		BookingID:     booking.ID.String(),
		UserID:        booking.UserID.String(),
		FlightOrderID: booking.FlightOrderID,
		Status:        string(booking.Status),
		OccurredAt:    s.now().UTC(),
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, event.BookingID, event); err != nil {
		return err
	}
	if s.notificationsTopic != "" {
		return s.producer.Publish(ctx, s.notificationsTopic, event.BookingID, event)
	}
	return nil
}

var _ BookingUseCase = (*BookingService)(nil)
