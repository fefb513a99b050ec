package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/aerobound/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrBookingNotFound = errors.New("booking not found")

//go:embed schema.sql
var schema string

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) (*domain.Booking, error)
	SetPaymentTrackingID(ctx context.Context, id uuid.UUID, trackingID string) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
	ListPendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

// InitSchema creates the bookings and users tables when they do not exist yet.
func InitSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

const bookingColumns = `id, user_id, flight_order_id, status, total_price, order_response, ticket_url, payment_tracking_id, created_at, updated_at`

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	if booking.Status == "" {
		booking.Status = domain.BookingStatusConfirmed
	}

	var response []byte
	if len(booking.OrderResponse) > 0 {
		response = booking.OrderResponse
	}

	return r.db.QueryRow(ctx, `INSERT INTO bookings (id, user_id, flight_order_id, status, total_price, order_response, ticket_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		booking.ID, booking.UserID, booking.FlightOrderID, booking.Status, booking.TotalPrice, response, booking.TicketURL).
		Scan(&booking.CreatedAt, &booking.UpdatedAt)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	return scanBooking(row)
}

func (r *PGBookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE id=$2 RETURNING `+bookingColumns, status, id)
	return scanBooking(row)
}

func (r *PGBookingRepository) SetPaymentTrackingID(ctx context.Context, id uuid.UUID, trackingID string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE bookings SET payment_tracking_id=$1, updated_at=now() WHERE id=$2`, trackingID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// ListPendingBefore returns unsettled bookings with a payment attempt that were last touched before deadline.
// Initiating a payment leaves a booking confirmed, so both pending and confirmed rows qualify.
func (r *PGBookingRepository) ListPendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status IN ($1, $2) AND payment_tracking_id IS NOT NULL AND updated_at <= $3
		ORDER BY updated_at`, domain.BookingStatusPending, domain.BookingStatusConfirmed, deadline)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]domain.Booking, error) {
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b        domain.Booking
		response []byte
	)
	err := row.Scan(&b.ID, &b.UserID, &b.FlightOrderID, &b.Status, &b.TotalPrice, &response, &b.TicketURL, &b.PaymentTrackingID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(response) > 0 {
		b.OrderResponse = response
	}
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
