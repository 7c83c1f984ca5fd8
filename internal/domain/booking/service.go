package booking

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/hotel-booking/internal/domain/coupon"
	"github.com/xenking/hotel-booking/internal/domain/room"
)

// DefaultMaxNights bounds a single stay.
const DefaultMaxNights = 30

// QuoteRequest holds the input for pricing a stay.
type QuoteRequest struct {
	RoomTypeID string
	// CheckIn and CheckOut are YYYY-MM-DD days.
	CheckIn  string
	CheckOut string
	Guests   int

	CouponCode string
	GuestEmail string
	GuestPhone string
	Source     string
}

// Quote is the priced stay. Coupon is nil when no code was supplied.
type Quote struct {
	RoomType room.RoomType
	CheckIn  time.Time
	CheckOut time.Time
	Nights   int
	// Available is how many rooms of the type are still free for the stay.
	Available int

	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	Coupon   *coupon.Result
}

// CreateRequest holds the input for creating a booking.
type CreateRequest struct {
	QuoteRequest
	GuestName string
}

// Service encapsulates booking business logic.
type Service struct {
	rooms     room.Repository
	coupons   coupon.Validator
	bookings  Repository
	maxNights int
	now       func() time.Time
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider used for booking spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("booking") }
}

// WithMaxNights overrides DefaultMaxNights.
func WithMaxNights(n int) Option {
	return func(s *Service) { s.maxNights = n }
}

// NewService creates a booking Service with the required domain dependencies.
func NewService(
	rooms room.Repository,
	coupons coupon.Validator,
	bookings Repository,
	opts ...Option,
) *Service {
	s := &Service{
		rooms:     rooms,
		coupons:   coupons,
		bookings:  bookings,
		maxNights: DefaultMaxNights,
		now:       time.Now,
		tracer:    tracenoop.NewTracerProvider().Tracer("booking"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Quote validates the stay, prices it and evaluates the coupon if any.
// A rejected coupon is reported through Quote.Coupon, not as an error.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Quote",
		trace.WithAttributes(attribute.String("room_type.id", req.RoomTypeID)),
	)
	defer span.End()

	return s.quote(ctx, req)
}

func (s *Service) quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	checkIn, err := ParseDay(req.CheckIn)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidDates, err.Error())
	}
	checkOut, err := ParseDay(req.CheckOut)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidDates, err.Error())
	}
	nights := Nights(checkIn, checkOut)
	switch {
	case nights < 1:
		return nil, errors.Wrap(ErrInvalidDates, "check-out must be after check-in")
	case checkIn.Before(StartOfDay(s.now())):
		return nil, errors.Wrap(ErrInvalidDates, "check-in is in the past")
	case nights > s.maxNights:
		return nil, errors.Wrapf(ErrTooManyNights, "%d nights, max %d", nights, s.maxNights)
	}
	if req.Guests < 1 {
		return nil, ErrInvalidGuests
	}

	rt, err := s.rooms.GetByID(ctx, req.RoomTypeID)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "get room type")
	}
	if !rt.Active {
		return nil, room.ErrNotFound
	}
	if req.Guests > rt.Capacity {
		return nil, errors.Wrapf(ErrCapacityExceeded, "%d guests, capacity %d", req.Guests, rt.Capacity)
	}

	taken, err := s.bookings.CountOverlapping(ctx, rt.ID, checkIn, checkOut)
	if err != nil {
		return nil, errors.Wrap(err, "count overlapping bookings")
	}

	subtotal := rt.NightlyRate.Mul(decimal.NewFromInt(int64(nights))).Round(2)
	q := &Quote{
		RoomType:  *rt,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Nights:    nights,
		Available: max(rt.Units-taken, 0),
		Subtotal:  subtotal,
		Discount:  decimal.Zero,
		Total:     subtotal,
	}

	if strings.TrimSpace(req.CouponCode) == "" {
		return q, nil
	}

	res, err := s.coupons.Validate(ctx, coupon.Input{
		Code:       req.CouponCode,
		Subtotal:   decimal.NewNullDecimal(subtotal),
		GuestEmail: req.GuestEmail,
		GuestPhone: req.GuestPhone,
		RoomTypeID: rt.ID,
		Source:     req.Source,
	})
	if err != nil {
		return nil, errors.Wrap(err, "validate coupon")
	}
	q.Coupon = &res
	if res.Valid {
		q.Discount = res.DiscountAmount
		q.Total = res.Total
	}
	return q, nil
}

// Create quotes the stay and persists a pending booking when a room is
// still available. A coupon that fails validation aborts the booking with
// *CouponRejectedError.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Create",
		trace.WithAttributes(attribute.String("room_type.id", req.RoomTypeID)),
	)
	defer span.End()

	guest := Guest{
		Name:  strings.TrimSpace(req.GuestName),
		Email: coupon.NormalizeGuestEmail(req.GuestEmail),
		Phone: strings.TrimSpace(req.GuestPhone),
	}
	if guest.Name == "" || len(guest.Keys()) == 0 {
		return nil, ErrGuestRequired
	}

	q, err := s.quote(ctx, req.QuoteRequest)
	if err != nil {
		return nil, err
	}
	if q.Coupon != nil && !q.Coupon.Valid {
		return nil, &CouponRejectedError{Reason: q.Coupon.Reason}
	}
	if q.Available < 1 {
		return nil, ErrRoomUnavailable
	}

	now := s.now().UTC()
	b := &Booking{
		ID:         uuid.New().String(),
		RoomTypeID: q.RoomType.ID,
		Guest:      guest,
		CheckIn:    q.CheckIn,
		CheckOut:   q.CheckOut,
		Nights:     q.Nights,
		Guests:     req.Guests,
		Source:     strings.ToLower(strings.TrimSpace(req.Source)),
		Subtotal:   q.Subtotal,
		Discount:   q.Discount,
		Total:      q.Total,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if q.Coupon != nil {
		b.CouponID = q.Coupon.CouponID
	}

	if err := s.bookings.CreateIfAvailable(ctx, b, q.RoomType.Units); err != nil {
		if errors.Is(err, ErrRoomUnavailable) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create booking")
	}

	span.SetAttributes(attribute.String("booking.id", b.ID))
	zctx.From(ctx).Info("Booking created",
		zap.String("booking_id", b.ID),
		zap.String("room_type_id", b.RoomTypeID),
		zap.Int("nights", b.Nights),
		zap.Bool("coupon", b.CouponID != ""),
	)
	return b, nil
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

// List returns bookings, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status) ([]Booking, error) {
	if status != "" && !status.Valid() {
		return nil, errors.Wrapf(ErrInvalidStatus, "unknown status %q", status)
	}
	return s.bookings.List(ctx, status)
}

// ConfirmPayment marks a pending booking as paid and redeems its coupon.
// Repeating the call with the same payment reference is a no-op.
func (s *Service) ConfirmPayment(ctx context.Context, id, paymentRef string) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.ConfirmPayment",
		trace.WithAttributes(attribute.String("booking.id", id)),
	)
	defer span.End()

	cur, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == StatusConfirmed && cur.PaymentRef == paymentRef {
		return cur, nil
	}

	b, err := s.bookings.Transition(ctx, id, StatusPending, StatusConfirmed, paymentRef)
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx).With(zap.String("booking_id", b.ID))
	if b.CouponID != "" {
		err := s.coupons.Redeem(ctx, coupon.Redemption{
			CouponID:  b.CouponID,
			GuestKeys: b.Guest.Keys(),
			BookingID: b.ID,
		})
		switch {
		case errors.Is(err, coupon.ErrUsageLimitReached):
			// The guest already paid the discounted total, so the booking stands.
			lg.Warn("Coupon limit reached at confirmation", zap.String("coupon_id", b.CouponID))
		case err != nil:
			lg.Error("Redeem coupon", zap.String("coupon_id", b.CouponID), zap.Error(err))
		}
	}

	lg.Info("Booking confirmed")
	return b, nil
}

// FailPayment cancels a booking whose payment did not go through.
func (s *Service) FailPayment(ctx context.Context, id string) (*Booking, error) {
	return s.bookings.Transition(ctx, id, StatusPending, StatusCancelled, "")
}

// Cancel cancels a pending or confirmed booking. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id string) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Cancel",
		trace.WithAttributes(attribute.String("booking.id", id)),
	)
	defer span.End()

	cur, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == StatusCancelled {
		return cur, nil
	}

	b, err := s.bookings.Transition(ctx, id, cur.Status, StatusCancelled, cur.PaymentRef)
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Booking cancelled", zap.String("booking_id", b.ID))
	return b, nil
}

// CleanupStale cancels pending bookings older than ttl and returns how many
// were cancelled.
func (s *Service) CleanupStale(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := s.bookings.CancelStalePending(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, errors.Wrap(err, "cancel stale bookings")
	}
	return n, nil
}
