// Command coupon-import bulk-issues coupons from gzip-compressed batch files.
//
// Each line is "CODE[,TYPE,VALUE[,DESCRIPTION]]". Lines holding only a code
// use the -type and -value defaults. Blank lines and lines starting with #
// are ignored. Codes already in the store are skipped, so an import can be
// re-run safely.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/hotel-booking/internal/domain/coupon"
	"github.com/xenking/hotel-booking/internal/storage/postgres"
)

const (
	prefilterCapacity = 10_000_000
	prefilterFPR      = 0.001
	progressEvery     = 10_000
)

type options struct {
	databaseURL   string
	couponPepper  string
	workers       int
	defaults      coupon.IssueRequest
	defaultValue  string
	expiresAt     string
	usageLimit    int
	perGuestLimit int
}

// stats counts import outcomes across workers.
type stats struct {
	read    atomic.Int64
	issued  atomic.Int64
	skipped atomic.Int64
	invalid atomic.Int64
}

func main() {
	var (
		opts        options
		defaultType string
	)

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.couponPepper, "coupon-pepper", "", "secret mixed into coupon code hashes (or HOTEL_COUPON_PEPPER env)")
	flag.IntVar(&opts.workers, "workers", runtime.GOMAXPROCS(0), "number of concurrent insert workers")
	flag.StringVar(&defaultType, "type", string(coupon.DiscountPercent), "discount type for lines without one")
	flag.StringVar(&opts.defaultValue, "value", "10", "discount value for lines without one")
	flag.StringVar(&opts.expiresAt, "expires-at", "", "RFC 3339 expiry applied to every imported coupon")
	flag.IntVar(&opts.usageLimit, "usage-limit", 0, "global usage limit per coupon, 0 for unlimited")
	flag.IntVar(&opts.perGuestLimit, "per-guest-limit", 0, "per-guest usage limit, 0 for unlimited")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.couponPepper == "" {
		opts.couponPepper = os.Getenv("HOTEL_COUPON_PEPPER")
	}
	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: coupon-import [flags] batch1.gz [batch2.gz ...]")
		os.Exit(1)
	}

	defaults, err := buildDefaults(defaultType, opts.defaultValue, opts.expiresAt, opts.usageLimit, opts.perGuestLimit)
	if err != nil {
		slog.Error("invalid defaults", slog.String("error", err.Error()))
		os.Exit(1)
	}
	opts.defaults = defaults

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts, files); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func buildDefaults(typ, value, expiresAt string, usageLimit, perGuestLimit int) (coupon.IssueRequest, error) {
	v, err := decimal.NewFromString(value)
	if err != nil {
		return coupon.IssueRequest{}, errors.Wrapf(err, "parse value %q", value)
	}
	req := coupon.IssueRequest{
		Type:          coupon.DiscountType(strings.ToUpper(typ)),
		Value:         v,
		Active:        true,
		UsageLimit:    usageLimit,
		PerGuestLimit: perGuestLimit,
	}
	if expiresAt != "" {
		t, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			return coupon.IssueRequest{}, errors.Wrapf(err, "parse expiry %q", expiresAt)
		}
		req.ExpiresAt = &t
	}
	return req, nil
}

func run(ctx context.Context, opts options, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	store := postgres.NewCouponRepository(pool)

	// Known hashes let re-imports skip existing codes with a read instead
	// of a failed insert.
	known := coupon.NewPrefilter(prefilterCapacity, prefilterFPR)
	n, err := known.Reload(ctx, store)
	if err != nil {
		return errors.Wrap(err, "load existing coupons")
	}
	slog.Info("loaded existing coupon hashes", slog.Int("count", n))

	imp := &importer{
		store:    store,
		admin:    coupon.NewAdmin(store, opts.couponPepper),
		known:    known,
		pepper:   opts.couponPepper,
		defaults: opts.defaults,
	}
	if err := imp.importFiles(ctx, files, max(opts.workers, 1)); err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int64("read", imp.stats.read.Load()),
		slog.Int64("issued", imp.stats.issued.Load()),
		slog.Int64("skipped", imp.stats.skipped.Load()),
		slog.Int64("invalid", imp.stats.invalid.Load()),
	)
	return nil
}

// issuer is the subset of coupon.Admin used by the importer.
type issuer interface {
	Issue(ctx context.Context, req coupon.IssueRequest) (*coupon.Coupon, error)
}

type importer struct {
	store    coupon.Repository
	admin    issuer
	known    *coupon.Prefilter
	pepper   string
	defaults coupon.IssueRequest
	stats    stats
}

// importFiles streams every file concurrently and issues the parsed coupons
// with a pool of workers.
func (imp *importer) importFiles(ctx context.Context, files []string, workers int) error {
	reqs := make(chan coupon.IssueRequest, workers*4)
	g, gctx := errgroup.WithContext(ctx)

	// Readers stop when a worker fails, so no send blocks forever.
	readers, rctx := errgroup.WithContext(gctx)
	for _, f := range files {
		readers.Go(func() error {
			return streamGzFile(rctx, f, func(line string) error {
				req, ok, err := parseLine(line, imp.defaults)
				if err != nil {
					imp.stats.invalid.Add(1)
					slog.Warn("skipping invalid line", slog.String("file", f), slog.String("error", err.Error()))
					return nil
				}
				if !ok {
					return nil
				}
				select {
				case reqs <- req:
					return nil
				case <-rctx.Done():
					return rctx.Err()
				}
			})
		})
	}

	g.Go(func() error {
		defer close(reqs)
		return readers.Wait()
	})
	for range workers {
		g.Go(func() error {
			for req := range reqs {
				if err := imp.issue(gctx, req); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// issue stores one coupon, skipping codes that already exist.
func (imp *importer) issue(ctx context.Context, req coupon.IssueRequest) error {
	read := imp.stats.read.Add(1)
	if read%progressEvery == 0 {
		slog.Info("import progress", slog.Int64("read", read), slog.Int64("issued", imp.stats.issued.Load()))
	}

	hash := coupon.HashCode(req.Code, imp.pepper)
	if imp.known.MayContain(hash) {
		_, err := imp.store.FindByHash(ctx, hash)
		switch {
		case err == nil:
			imp.stats.skipped.Add(1)
			return nil
		case !errors.Is(err, coupon.ErrNotFound):
			return errors.Wrap(err, "check existing coupon")
		}
	}

	c, err := imp.admin.Issue(ctx, req)
	switch {
	case err == nil:
		imp.known.Add(c.CodeHash)
		imp.stats.issued.Add(1)
	case errors.Is(err, coupon.ErrCodeExists):
		imp.stats.skipped.Add(1)
	case errors.Is(err, coupon.ErrInvalidConfig):
		imp.stats.invalid.Add(1)
		slog.Warn("skipping invalid coupon",
			slog.String("prefix", coupon.CodePrefix(req.Code, coupon.DefaultPrefixLen)),
			slog.String("error", err.Error()),
		)
	default:
		return errors.Wrap(err, "issue coupon")
	}
	return nil
}

// parseLine turns a batch line into an IssueRequest based on defaults. ok is
// false for blank and comment lines.
func parseLine(line string, defaults coupon.IssueRequest) (req coupon.IssueRequest, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return req, false, nil
	}

	parts := strings.SplitN(line, ",", 4)
	req = defaults
	req.Code = strings.TrimSpace(parts[0])
	if coupon.NormalizeCode(req.Code) == "" {
		return req, false, errors.New("empty code")
	}

	switch len(parts) {
	case 1:
	case 2:
		return req, false, errors.New("type without value")
	default:
		req.Type = coupon.DiscountType(strings.ToUpper(strings.TrimSpace(parts[1])))
		req.Value, err = decimal.NewFromString(strings.TrimSpace(parts[2]))
		if err != nil {
			return req, false, errors.Wrap(err, "parse value")
		}
		if len(parts) == 4 {
			req.Description = strings.TrimSpace(parts[3])
		}
	}
	return req, true, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
