package payment

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/aerobound/internal/domain"
	"github.com/Domenick1991/aerobound/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) (*domain.Booking, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) SetPaymentTrackingID(ctx context.Context, id uuid.UUID, trackingID string) error {
	args := m.Called(ctx, id, trackingID)
	return args.Error(0)
}

func (m *MockBookingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListPendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, deadline)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) IPNID() string {
	return m.Called().String(0)
}

func (m *MockProvider) SubmitOrder(ctx context.Context, order domain.PaymentOrder) (domain.PaymentOrderResult, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(domain.PaymentOrderResult), args.Error(1)
}

func (m *MockProvider) TransactionStatus(ctx context.Context, trackingID string) (domain.TransactionStatus, error) {
	args := m.Called(ctx, trackingID)
	return args.Get(0).(domain.TransactionStatus), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

// memBookings is an in-memory booking store that counts status writes.
type memBookings struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]domain.Booking
	writes   int
}

func newMemBookings(bookings ...domain.Booking) *memBookings {
	m := &memBookings{bookings: make(map[uuid.UUID]domain.Booking)}
	for _, b := range bookings {
		m.bookings[b.ID] = b
	}
	return m
}

func (m *memBookings) Create(_ context.Context, booking *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = *booking
	return nil
}

func (m *memBookings) GetByID(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return &b, nil
}

func (m *memBookings) UpdateStatus(_ context.Context, id uuid.UUID, status domain.BookingStatus) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	b.Status = status
	m.bookings[id] = b
	return &b, nil
}

func (m *memBookings) SetPaymentTrackingID(_ context.Context, id uuid.UUID, trackingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.PaymentTrackingID = &trackingID
	m.bookings[id] = b
	return nil
}

func (m *memBookings) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookings) ListPendingBefore(_ context.Context, deadline time.Time) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.bookings {
		unsettled := b.Status == domain.BookingStatusPending || b.Status == domain.BookingStatusConfirmed
		if unsettled && b.PaymentTrackingID != nil && !b.UpdatedAt.After(deadline) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookings) status(id uuid.UUID) domain.BookingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id].Status
}

func (m *memBookings) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
