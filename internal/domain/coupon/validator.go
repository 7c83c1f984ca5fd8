package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Validator validates coupon requests against the coupon store.
type Validator interface {
	Validate(ctx context.Context, in Input) (Result, error)
	Redeem(ctx context.Context, r Redemption) error
}

var _ Validator = (*RepoValidator)(nil)

// RepoValidator implements Validator by loading a coupon snapshot from a
// Repository and running Evaluate over it.
type RepoValidator struct {
	repo   Repository
	pepper string
	now    func() time.Time

	tracer      trace.Tracer
	validations metric.Int64Counter
	redemptions metric.Int64Counter
}

// Option configures a RepoValidator.
type Option func(*RepoValidator)

// WithTelemetry sets the tracer and meter providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(v *RepoValidator) {
		v.tracer = tp.Tracer("coupon")
		v.initMetrics(mp.Meter("coupon"))
	}
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
// pepper is mixed into every code hash and must match the one used when the
// coupons were stored.
func NewRepoValidator(repo Repository, pepper string, opts ...Option) *RepoValidator {
	v := &RepoValidator{
		repo:   repo,
		pepper: pepper,
		now:    time.Now,
		tracer: tracenoop.NewTracerProvider().Tracer("coupon"),
	}
	v.initMetrics(metricnoop.NewMeterProvider().Meter("coupon"))
	for _, o := range opts {
		o(v)
	}
	return v
}

func (v *RepoValidator) initMetrics(m metric.Meter) {
	var err error
	if v.validations, err = m.Int64Counter("coupon.validations",
		metric.WithDescription("Coupon validations by outcome reason"),
	); err != nil {
		otel.Handle(err)
	}
	if v.redemptions, err = m.Int64Counter("coupon.redemptions",
		metric.WithDescription("Coupon usage increments"),
	); err != nil {
		otel.Handle(err)
	}
}

// Validate normalizes and hashes the code, loads the coupon snapshot and
// evaluates the eligibility rules. Every lookup reads the store, so coupons
// written by other processes are visible immediately. Business rejections are reported through
// Result.Reason; the error is reserved for store failures.
func (v *RepoValidator) Validate(ctx context.Context, in Input) (Result, error) {
	ctx, span := v.tracer.Start(ctx, "coupon.Validate")
	defer span.End()

	res, err := v.validate(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.SetAttributes(attribute.String("coupon.reason", string(res.Reason)))
	v.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(res.Reason))))
	zctx.From(ctx).Debug("Coupon evaluated",
		zap.String("code_hash", HashTelemetryValue(NormalizeCode(in.Code))),
		zap.String("reason", string(res.Reason)),
	)

	return res, nil
}

func (v *RepoValidator) validate(ctx context.Context, in Input) (Result, error) {
	if !in.HasSubtotal() {
		return Rejected(ReasonMissingSubtotal), nil
	}

	code := NormalizeCode(in.Code)
	if code == "" {
		return Rejected(ReasonInvalidCode), nil
	}

	c, err := v.repo.FindByHash(ctx, HashCode(code, v.pepper))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Rejected(ReasonInvalidCode), nil
		}
		return Result{}, errors.Wrap(err, "lookup coupon")
	}

	snap := &Snapshot{Coupon: c}
	if keys := GuestKeys(in.GuestEmail, in.GuestPhone); len(keys) > 0 && c.PerGuestLimit > 0 {
		uses, err := v.repo.GuestUsage(ctx, c.ID, keys)
		if err != nil {
			return Result{}, errors.Wrap(err, "lookup guest usage")
		}
		snap.GuestUses = uses
	}

	return Evaluate(in, snap, v.now()), nil
}

// Redeem records a confirmed use of a coupon. It must only be called once
// the booking paying for it is confirmed.
func (v *RepoValidator) Redeem(ctx context.Context, r Redemption) error {
	ctx, span := v.tracer.Start(ctx, "coupon.Redeem",
		trace.WithAttributes(attribute.String("coupon.id", r.CouponID)),
	)
	defer span.End()

	if err := v.repo.IncrementUsage(ctx, r); err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrUsageLimitReached) {
			return err
		}
		return errors.Wrap(err, "increment coupon usage")
	}

	v.redemptions.Add(ctx, 1)
	zctx.From(ctx).Info("Coupon redeemed",
		zap.String("coupon_id", r.CouponID),
		zap.String("booking_id", r.BookingID),
		zap.Strings("guest_hashes", hashTelemetryValues(r.GuestKeys)),
	)
	return nil
}

func hashTelemetryValues(vs []string) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = HashTelemetryValue(v)
	}
	return out
}
