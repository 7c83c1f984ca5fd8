package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/hotel-booking/internal/domain/booking"
)

const bookingColumns = `id, room_type_id, guest_name, guest_email, guest_phone,
	check_in, check_out, nights, guests, source,
	subtotal, discount, total, COALESCE(coupon_id, ''),
	status, payment_ref, created_at, updated_at`

const (
	lockRoomTypeSQL = `SELECT id FROM room_types WHERE id = $1 FOR UPDATE`

	countOverlappingSQL = `SELECT count(*) FROM bookings
		WHERE room_type_id = $1 AND status <> 'CANCELLED' AND check_in < $3 AND check_out > $2`

	insertBookingSQL = `INSERT INTO bookings (id, room_type_id, guest_name, guest_email, guest_phone,
		check_in, check_out, nights, guests, source,
		subtotal, discount, total, coupon_id,
		status, payment_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''), $15, $16, $17, $18)`

	getBookingByIDSQL = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	listBookingsSQL = `SELECT ` + bookingColumns + ` FROM bookings
		WHERE $1 = '' OR status = $1 ORDER BY created_at DESC, id`

	transitionBookingSQL = `UPDATE bookings SET status = $3, payment_ref = $4, updated_at = now()
		WHERE id = $1 AND status = $2 RETURNING ` + bookingColumns

	bookingExistsSQL = `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`

	cancelStalePendingSQL = `UPDATE bookings SET status = 'CANCELLED', updated_at = now()
		WHERE status = 'PENDING' AND created_at < $1`
)

var _ booking.Repository = (*BookingRepository)(nil)

// BookingRepository implements booking.Repository backed by PostgreSQL.
type BookingRepository struct {
	db DB
}

// NewBookingRepository returns a BookingRepository that uses the given pool.
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CreateIfAvailable locks the room type row, so concurrent bookings of the
// same type serialize, then counts overlapping stays and inserts.
func (r *BookingRepository) CreateIfAvailable(ctx context.Context, b *booking.Booking, units int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer rollback(ctx, tx)

	var id string
	if err := tx.QueryRow(ctx, lockRoomTypeSQL, b.RoomTypeID).Scan(&id); err != nil {
		return errors.Wrapf(err, "lock room type %q", b.RoomTypeID)
	}

	var taken int64
	if err := tx.QueryRow(ctx, countOverlappingSQL, b.RoomTypeID, b.CheckIn, b.CheckOut).Scan(&taken); err != nil {
		return errors.Wrap(err, "count overlapping bookings")
	}
	if taken >= int64(units) {
		return booking.ErrRoomUnavailable
	}

	if _, err := tx.Exec(ctx, insertBookingSQL,
		b.ID, b.RoomTypeID, b.Guest.Name, b.Guest.Email, b.Guest.Phone,
		b.CheckIn, b.CheckOut, int32(b.Nights), int32(b.Guests), b.Source,
		b.Subtotal, b.Discount, b.Total, b.CouponID,
		string(b.Status), b.PaymentRef, b.CreatedAt, b.UpdatedAt,
	); err != nil {
		return errors.Wrapf(err, "insert booking %q", b.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// GetByID returns a booking by id.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	rows, err := r.db.Query(ctx, getBookingByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get booking %q", id)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBooking)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get booking %q", id)
	}
	return &b, nil
}

// List returns bookings newest first, optionally filtered by status.
func (r *BookingRepository) List(ctx context.Context, status booking.Status) ([]booking.Booking, error) {
	rows, err := r.db.Query(ctx, listBookingsSQL, string(status))
	if err != nil {
		return nil, errors.Wrap(err, "list bookings")
	}
	return pgx.CollectRows(rows, scanBooking)
}

// CountOverlapping counts non-cancelled stays of the room type that
// intersect [checkIn, checkOut).
func (r *BookingRepository) CountOverlapping(ctx context.Context, roomTypeID string, checkIn, checkOut time.Time) (int, error) {
	var n int64
	if err := r.db.QueryRow(ctx, countOverlappingSQL, roomTypeID, checkIn, checkOut).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count overlapping bookings")
	}
	return int(n), nil
}

// Transition updates the status only if the booking is still in status from.
func (r *BookingRepository) Transition(ctx context.Context, id string, from, to booking.Status, paymentRef string) (*booking.Booking, error) {
	rows, err := r.db.Query(ctx, transitionBookingSQL, id, string(from), string(to), paymentRef)
	if err != nil {
		return nil, errors.Wrapf(err, "transition booking %q", id)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBooking)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(err, "transition booking %q", id)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, bookingExistsSQL, id).Scan(&exists); err != nil {
		return nil, errors.Wrapf(err, "check booking %q", id)
	}
	if !exists {
		return nil, booking.ErrNotFound
	}
	return nil, errors.Wrapf(booking.ErrInvalidStatus, "booking %q is not %s", id, from)
}

// CancelStalePending cancels pending bookings created before the cutoff.
func (r *BookingRepository) CancelStalePending(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, cancelStalePendingSQL, before)
	if err != nil {
		return 0, errors.Wrap(err, "cancel stale bookings")
	}
	return tag.RowsAffected(), nil
}

func scanBooking(row pgx.CollectableRow) (booking.Booking, error) {
	var (
		b      booking.Booking
		nights int32
		guests int32
		status string
	)
	err := row.Scan(
		&b.ID, &b.RoomTypeID, &b.Guest.Name, &b.Guest.Email, &b.Guest.Phone,
		&b.CheckIn, &b.CheckOut, &nights, &guests, &b.Source,
		&b.Subtotal, &b.Discount, &b.Total, &b.CouponID,
		&status, &b.PaymentRef, &b.CreatedAt, &b.UpdatedAt,
	)
	b.Nights = int(nights)
	b.Guests = int(guests)
	b.Status = booking.Status(status)
	return b, err
}
