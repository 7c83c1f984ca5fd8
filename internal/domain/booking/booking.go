package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/hotel-booking/internal/domain/coupon"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Sentinel errors for booking validation and lifecycle.
var (
	ErrNotFound         = errors.New("booking not found")
	ErrInvalidDates     = errors.New("invalid stay dates")
	ErrTooManyNights    = errors.New("stay is too long")
	ErrInvalidGuests    = errors.New("guests must be greater than 0")
	ErrCapacityExceeded = errors.New("too many guests for room type")
	ErrGuestRequired    = errors.New("guest name and email or phone required")
	ErrRoomUnavailable  = errors.New("no rooms available for the requested dates")
	ErrInvalidStatus    = errors.New("booking status does not allow this operation")
)

// CouponRejectedError indicates the booking carried a coupon that failed
// validation.
type CouponRejectedError struct {
	Reason coupon.Reason
}

func (e *CouponRejectedError) Error() string {
	return fmt.Sprintf("coupon rejected: %s", e.Reason)
}

// Guest is the contact data of the person who made the booking.
type Guest struct {
	Name  string
	Email string
	Phone string
}

// Keys returns the normalized identities used for per-guest coupon limits.
func (g Guest) Keys() []string {
	return coupon.GuestKeys(g.Email, g.Phone)
}

// Booking is a reservation of one room of a room type for a stay.
type Booking struct {
	ID         string
	RoomTypeID string
	Guest      Guest
	CheckIn    time.Time
	CheckOut   time.Time
	Nights     int
	Guests     int
	Source     string

	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	CouponID string

	Status     Status
	PaymentRef string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Repository defines persistence operations for bookings.
type Repository interface {
	// CreateIfAvailable inserts b unless units overlapping non-cancelled
	// bookings already hold the room type, in which case it returns
	// ErrRoomUnavailable.
	CreateIfAvailable(ctx context.Context, b *Booking, units int) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	// List returns bookings newest first, filtered by status unless it is empty.
	List(ctx context.Context, status Status) ([]Booking, error)
	// CountOverlapping counts non-cancelled bookings of a room type whose stay
	// intersects [checkIn, checkOut).
	CountOverlapping(ctx context.Context, roomTypeID string, checkIn, checkOut time.Time) (int, error)
	// Transition moves a booking from one status to another. It returns
	// ErrNotFound for unknown ids and ErrInvalidStatus when the booking is
	// not in status from.
	Transition(ctx context.Context, id string, from, to Status, paymentRef string) (*Booking, error)
	// CancelStalePending cancels pending bookings created before the cutoff.
	CancelStalePending(ctx context.Context, before time.Time) (int64, error)
}
