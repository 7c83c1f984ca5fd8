package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrCodeExists is returned by Store.Create when the code hash is taken.
var ErrCodeExists = errors.New("coupon code already exists")

// Store is the full coupon store used by administration on top of the
// engine's Repository.
type Store interface {
	Repository
	HashLister
	Create(ctx context.Context, c *Coupon) error
	// SetActive toggles the active flag and returns the updated coupon, or
	// ErrNotFound.
	SetActive(ctx context.Context, id string, active bool) (*Coupon, error)
}

// IssueRequest describes a new coupon. Code is the raw code handed to
// guests; only its hash and prefix are kept.
type IssueRequest struct {
	Code        string
	Description string
	Type        DiscountType
	Value       decimal.Decimal
	MaxDiscount decimal.NullDecimal
	MinBooking  decimal.NullDecimal
	Active      bool
	StartsAt    *time.Time
	ExpiresAt   *time.Time

	AllowedGuests    []string
	AllowedRoomTypes []string
	AllowedSources   []string

	UsageLimit    int
	PerGuestLimit int
}

// Admin issues and manages coupons.
type Admin struct {
	store  Store
	pepper string
	now    func() time.Time
}

// NewAdmin creates an Admin.
func NewAdmin(store Store, pepper string) *Admin {
	return &Admin{
		store:  store,
		pepper: pepper,
		now:    time.Now,
	}
}

// Issue stores a new coupon. Allow-lists are normalized the same way
// requests are, so eligibility compares like with like.
func (a *Admin) Issue(ctx context.Context, req IssueRequest) (*Coupon, error) {
	code := NormalizeCode(req.Code)
	if code == "" {
		return nil, errors.Wrap(ErrInvalidConfig, "empty code")
	}

	c := &Coupon{
		ID:               uuid.New().String(),
		CodeHash:         HashCode(code, a.pepper),
		CodePrefix:       CodePrefix(code, DefaultPrefixLen),
		Description:      strings.TrimSpace(req.Description),
		Type:             DiscountType(strings.ToUpper(string(req.Type))),
		Value:            req.Value,
		MaxDiscount:      req.MaxDiscount,
		MinBooking:       req.MinBooking,
		Active:           req.Active,
		StartsAt:         req.StartsAt,
		ExpiresAt:        req.ExpiresAt,
		AllowedGuests:    normalizeGuestList(req.AllowedGuests),
		AllowedRoomTypes: compact(req.AllowedRoomTypes, strings.TrimSpace),
		AllowedSources:   compact(req.AllowedSources, normalizeSource),
		UsageLimit:       req.UsageLimit,
		PerGuestLimit:    req.PerGuestLimit,
		CreatedAt:        a.now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := a.store.Create(ctx, c); err != nil {
		if errors.Is(err, ErrCodeExists) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create coupon")
	}

	zctx.From(ctx).Info("Coupon issued",
		zap.String("coupon_id", c.ID),
		zap.String("code_hash", HashTelemetryValue(code)),
		zap.String("type", string(c.Type)),
	)
	return c, nil
}

// Search lists coupons by code prefix. Longer inputs are cut to the stored
// prefix length.
func (a *Admin) Search(ctx context.Context, prefix string) ([]Coupon, error) {
	p := CodePrefix(prefix, DefaultPrefixLen)
	if p == "" {
		return nil, nil
	}
	return a.store.FindByPrefix(ctx, p)
}

// SetActive enables or disables a coupon.
func (a *Admin) SetActive(ctx context.Context, id string, active bool) (*Coupon, error) {
	c, err := a.store.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Coupon toggled", zap.String("coupon_id", id), zap.Bool("active", active))
	return c, nil
}

func normalizeGuestList(in []string) []string {
	return compact(in, func(s string) string {
		if strings.Contains(s, "@") {
			return NormalizeGuestEmail(s)
		}
		return NormalizeGuestPhone(s)
	})
}

// compact maps every entry through fn and drops the empty results.
func compact(in []string, fn func(string) string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if v := fn(s); v != "" {
			out = append(out, v)
		}
	}
	return out
}
