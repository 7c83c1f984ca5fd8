package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/hotel-booking/internal/domain/auth"
	"github.com/xenking/hotel-booking/internal/domain/booking"
	"github.com/xenking/hotel-booking/internal/domain/coupon"
	"github.com/xenking/hotel-booking/internal/domain/room"
	"github.com/xenking/hotel-booking/pkg/httpmiddleware"
)

// BookingService is the booking workflow used by the API.
type BookingService interface {
	Quote(ctx context.Context, req booking.QuoteRequest) (*booking.Quote, error)
	Create(ctx context.Context, req booking.CreateRequest) (*booking.Booking, error)
	Get(ctx context.Context, id string) (*booking.Booking, error)
	List(ctx context.Context, status booking.Status) ([]booking.Booking, error)
	ConfirmPayment(ctx context.Context, id, paymentRef string) (*booking.Booking, error)
	FailPayment(ctx context.Context, id string) (*booking.Booking, error)
	Cancel(ctx context.Context, id string) (*booking.Booking, error)
}

// CouponAdmin manages stored coupons.
type CouponAdmin interface {
	Issue(ctx context.Context, req coupon.IssueRequest) (*coupon.Coupon, error)
	Search(ctx context.Context, prefix string) ([]coupon.Coupon, error)
	SetActive(ctx context.Context, id string, active bool) (*coupon.Coupon, error)
}

// Authenticator resolves raw API keys.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error)
}

var (
	_ BookingService = (*booking.Service)(nil)
	_ CouponAdmin    = (*coupon.Admin)(nil)
	_ Authenticator  = (*auth.Authenticator)(nil)
)

// DefaultMaxBodyBytes bounds request bodies when Config.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// WebhookSecret signs payment webhooks. An empty secret rejects them all.
	WebhookSecret []byte
	MaxBodyBytes  int64
}

// Handler serves the hotel JSON API.
type Handler struct {
	rooms    room.Repository
	coupons  coupon.Validator
	bookings BookingService
	admin    CouponAdmin
	keys     Authenticator

	webhookSecret []byte
	maxBodyBytes  int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	rooms room.Repository,
	coupons coupon.Validator,
	bookings BookingService,
	admin CouponAdmin,
	keys Authenticator,
) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		rooms:         rooms,
		coupons:       coupons,
		bookings:      bookings,
		admin:         admin,
		keys:          keys,
		webhookSecret: cfg.WebhookSecret,
		maxBodyBytes:  cfg.MaxBodyBytes,
	}
}

// Routes returns the API router. It is meant to be mounted under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/rooms", h.listRooms)
	r.Post("/coupons/validate", h.validateCoupon)
	r.Post("/bookings/quote", h.quoteBooking)
	r.Post("/bookings", h.createBooking)
	r.Get("/bookings/{id}", h.getBooking)
	r.Post("/webhooks/payment", h.paymentWebhook)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireScope(auth.ScopeAdmin))
		r.Post("/coupons", h.issueCoupon)
		r.Get("/coupons", h.searchCoupons)
		r.Post("/coupons/{id}/active", h.setCouponActive)
		r.Get("/bookings", h.listBookings)
		r.Post("/bookings/{id}/cancel", h.cancelBooking)
	})
	return r
}

// MakeRouteFinder returns a RouteFinder resolving request paths against
// routes. Unmatched requests resolve to "".
func MakeRouteFinder(routes chi.Routes) httpmiddleware.RouteFinder {
	return func(r *http.Request) string {
		rctx := chi.NewRouteContext()
		if !routes.Match(rctx, r.Method, r.URL.Path) {
			return ""
		}
		return rctx.RoutePattern()
	}
}
