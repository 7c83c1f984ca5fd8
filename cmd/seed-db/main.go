package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/hotel-booking/internal/domain/auth"
	"github.com/xenking/hotel-booking/internal/domain/coupon"
	"github.com/xenking/hotel-booking/internal/domain/room"
	"github.com/xenking/hotel-booking/internal/storage/postgres"
)

type roomJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	NightlyRate decimal.Decimal `json:"nightlyRate"`
	Capacity    int             `json:"capacity"`
	Units       int             `json:"units"`
}

type options struct {
	databaseURL  string
	roomsFile    string
	apiKey       string
	apiKeyPepper string
	couponPepper string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.roomsFile, "rooms-file", "db/seed/rooms.json", "path to room types JSON file")
	flag.StringVar(&opts.apiKey, "api-key", "", "admin API key to seed (or HOTEL_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or HOTEL_API_KEY_PEPPER env)")
	flag.StringVar(&opts.couponPepper, "coupon-pepper", "", "secret mixed into coupon code hashes (or HOTEL_COUPON_PEPPER env)")
	flag.Parse()

	opts.databaseURL = orEnv(opts.databaseURL, "DATABASE_URL")
	opts.apiKey = orEnv(opts.apiKey, "HOTEL_SEED_API_KEY")
	opts.apiKeyPepper = orEnv(opts.apiKeyPepper, "HOTEL_API_KEY_PEPPER")
	opts.couponPepper = orEnv(opts.couponPepper, "HOTEL_COUPON_PEPPER")

	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		slog.Error("API key is required: set --api-key or HOTEL_SEED_API_KEY")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func orEnv(v, env string) string {
	if v != "" {
		return v
	}
	return os.Getenv(env)
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedRooms(ctx, postgres.NewRoomRepository(pool), opts.roomsFile); err != nil {
		return errors.Wrap(err, "seed rooms")
	}

	admin := coupon.NewAdmin(postgres.NewCouponRepository(pool), opts.couponPepper)
	if err := seedCoupons(ctx, admin); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), opts.apiKey, opts.apiKeyPepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedRooms(ctx context.Context, repo *postgres.RoomRepository, roomsFile string) error {
	slog.Info("reading rooms file", slog.String("path", roomsFile))

	data, err := os.ReadFile(roomsFile)
	if err != nil {
		return errors.Wrap(err, "read rooms file")
	}

	var rooms []roomJSON
	if err := json.Unmarshal(data, &rooms); err != nil {
		return errors.Wrap(err, "parse rooms JSON")
	}

	slog.Info("upserting room types", slog.Int("count", len(rooms)))

	for _, r := range rooms {
		if err := repo.Upsert(ctx, room.RoomType{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			NightlyRate: r.NightlyRate,
			Capacity:    r.Capacity,
			Units:       r.Units,
			Active:      true,
		}); err != nil {
			return err
		}

		slog.Info("upserted room type", slog.String("id", r.ID), slog.String("name", r.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, admin *coupon.Admin) error {
	slog.Info("seeding demo coupons")

	coupons := []coupon.IssueRequest{
		{
			Code:        "SAVE10",
			Description: "10% off any stay",
			Type:        coupon.DiscountPercent,
			Value:       decimal.NewFromInt(10),
			Active:      true,
		},
		{
			Code:        "FLAT50",
			Description: "50 off stays of 200 or more",
			Type:        coupon.DiscountFixed,
			Value:       decimal.NewFromInt(50),
			MinBooking:  decimal.NewNullDecimal(decimal.NewFromInt(200)),
			Active:      true,
		},
		{
			Code:           "WEB15",
			Description:    "15% off web bookings, up to 100",
			Type:           coupon.DiscountPercent,
			Value:          decimal.NewFromInt(15),
			MaxDiscount:    decimal.NewNullDecimal(decimal.NewFromInt(100)),
			AllowedSources: []string{"web"},
			Active:         true,
		},
		{
			Code:             "SUITE20",
			Description:      "20% off suites, once per guest",
			Type:             coupon.DiscountPercent,
			Value:            decimal.NewFromInt(20),
			AllowedRoomTypes: []string{"suite"},
			PerGuestLimit:    1,
			Active:           true,
		},
		{
			Code:        "FIRST100",
			Description: "25 off for the first 100 bookings",
			Type:        coupon.DiscountFixed,
			Value:       decimal.NewFromInt(25),
			UsageLimit:  100,
			Active:      true,
		},
	}

	for _, req := range coupons {
		c, err := admin.Issue(ctx, req)
		if errors.Is(err, coupon.ErrCodeExists) {
			slog.Info("coupon already seeded", slog.String("prefix", coupon.CodePrefix(req.Code, coupon.DefaultPrefixLen)))
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "issue coupon %s", coupon.CodePrefix(req.Code, coupon.DefaultPrefixLen))
		}

		slog.Info("issued coupon", slog.String("id", c.ID), slog.String("description", c.Description))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	if err := repo.Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey(apiKey, []byte(pepper)),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeAdmin},
	}); err != nil {
		return err
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("name", "Default admin key"))

	return nil
}
