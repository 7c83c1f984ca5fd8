package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/hotel-booking/internal/domain/coupon"
)

const couponColumns = `id, code_hash, code_prefix, description, discount_type, value,
	max_discount, min_booking, active, starts_at, expires_at,
	allowed_guests, allowed_room_types, allowed_sources,
	usage_limit, usage_count, per_guest_limit, created_at`

const (
	getCouponByHashSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code_hash = $1`

	listCouponsByPrefixSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE starts_with(code_prefix, $1) ORDER BY created_at DESC, id`

	listCouponHashesSQL = `SELECT code_hash FROM coupons`

	getGuestUsageSQL = `SELECT COALESCE(MAX(uses), 0)::int4 FROM coupon_guest_usages
		WHERE coupon_id = $1 AND guest_hash = ANY($2)`

	incrementCouponUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)
		RETURNING per_guest_limit`

	incrementGuestUsageSQL = `INSERT INTO coupon_guest_usages (coupon_id, guest_hash, uses) VALUES ($1, $2, 1)
		ON CONFLICT (coupon_id, guest_hash) DO UPDATE SET uses = coupon_guest_usages.uses + 1
		WHERE $3 = 0 OR coupon_guest_usages.uses < $3`

	insertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	setCouponActiveSQL = `UPDATE coupons SET active = $2 WHERE id = $1 RETURNING ` + couponColumns
)

var _ coupon.Store = (*CouponRepository)(nil)

// CouponRepository implements coupon.Store backed by PostgreSQL.
type CouponRepository struct {
	db DB
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(db DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// FindByHash looks up a coupon by the peppered hash of its normalized code.
// Inactive coupons are returned too; the engine reports them as INACTIVE.
func (r *CouponRepository) FindByHash(ctx context.Context, hash string) (*coupon.Coupon, error) {
	rows, err := r.db.Query(ctx, getCouponByHashSQL, hash)
	if err != nil {
		return nil, errors.Wrap(err, "find coupon by hash")
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrap(err, "find coupon by hash")
	}
	return &c, nil
}

// FindByPrefix lists coupons whose stored prefix starts with prefix.
func (r *CouponRepository) FindByPrefix(ctx context.Context, prefix string) ([]coupon.Coupon, error) {
	rows, err := r.db.Query(ctx, listCouponsByPrefixSQL, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons by prefix")
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// ListHashes returns every stored code hash.
func (r *CouponRepository) ListHashes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, listCouponHashesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupon hashes")
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// GuestUsage returns how many times the guest redeemed the coupon. Every
// redemption bumps all of the guest's keys, so the highest counter wins.
func (r *CouponRepository) GuestUsage(ctx context.Context, couponID string, guestKeys []string) (int, error) {
	if len(guestKeys) == 0 {
		return 0, nil
	}
	var uses int32
	if err := r.db.QueryRow(ctx, getGuestUsageSQL, couponID, guestHashes(guestKeys)).Scan(&uses); err != nil {
		return 0, errors.Wrap(err, "get guest usage")
	}
	return int(uses), nil
}

func guestHashes(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = coupon.HashTelemetryValue(k)
	}
	return out
}

// IncrementUsage bumps the global counter and the counter of every guest key
// in one transaction. Both updates are conditional on
// their limits, so concurrent redemptions of the last unit serialize on the
// coupon row and the loser gets coupon.ErrUsageLimitReached.
func (r *CouponRepository) IncrementUsage(ctx context.Context, red coupon.Redemption) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer rollback(ctx, tx)

	var perGuestLimit int32
	if err := tx.QueryRow(ctx, incrementCouponUsageSQL, red.CouponID).Scan(&perGuestLimit); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.ErrUsageLimitReached
		}
		return errors.Wrap(err, "increment coupon usage")
	}

	for _, hash := range guestHashes(red.GuestKeys) {
		tag, err := tx.Exec(ctx, incrementGuestUsageSQL, red.CouponID, hash, perGuestLimit)
		if err != nil {
			return errors.Wrap(err, "increment guest usage")
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrUsageLimitReached
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Create inserts a new coupon, returning coupon.ErrCodeExists when the code
// hash is already stored.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.db.Exec(ctx, insertCouponSQL,
		c.ID, c.CodeHash, c.CodePrefix, c.Description, string(c.Type), c.Value,
		c.MaxDiscount, c.MinBooking, c.Active, c.StartsAt, c.ExpiresAt,
		nonNil(c.AllowedGuests), nonNil(c.AllowedRoomTypes), nonNil(c.AllowedSources),
		int32(c.UsageLimit), int32(c.UsageCount), int32(c.PerGuestLimit), c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrCodeExists
		}
		return errors.Wrap(err, "insert coupon")
	}
	return nil
}

// SetActive toggles the active flag.
func (r *CouponRepository) SetActive(ctx context.Context, id string, active bool) (*coupon.Coupon, error) {
	rows, err := r.db.Query(ctx, setCouponActiveSQL, id, active)
	if err != nil {
		return nil, errors.Wrap(err, "set coupon active")
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrap(err, "set coupon active")
	}
	return &c, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		usageLimit   int32
		usageCount   int32
		perGuest     int32
	)
	err := row.Scan(
		&c.ID, &c.CodeHash, &c.CodePrefix, &c.Description, &discountType, &c.Value,
		&c.MaxDiscount, &c.MinBooking, &c.Active, &c.StartsAt, &c.ExpiresAt,
		&c.AllowedGuests, &c.AllowedRoomTypes, &c.AllowedSources,
		&usageLimit, &usageCount, &perGuest, &c.CreatedAt,
	)
	c.Type = coupon.DiscountType(discountType)
	c.UsageLimit = int(usageLimit)
	c.UsageCount = int(usageCount)
	c.PerGuestLimit = int(perGuest)
	return c, err
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
