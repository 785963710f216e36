// Command offer-import bulk-loads combo offer files (YAML, optionally gzip
// compressed) into the offer store and drops the cached active offer list.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-combos/internal/cache"
	"github.com/xenking/kart-combos/internal/domain/offer"
	"github.com/xenking/kart-combos/internal/offerfile"
	"github.com/xenking/kart-combos/internal/storage/postgres"
)

const (
	bloomFPR    = 0.001
	maxParallel = 4
)

type importConfig struct {
	databaseURL   string
	redisAddr     string
	allowOverride bool
	dryRun        bool
	disable       []string
}

// batch is the decoded content of one offer file.
type batch struct {
	path   string
	offers []offer.Combo
}

// duplicate is an offer id defined more than once across the input.
type duplicate struct {
	id    string
	first string
	again string
}

func (d duplicate) String() string {
	return fmt.Sprintf("%s (%s, %s)", d.id, d.first, d.again)
}

func main() {
	var cfg importConfig

	flag.StringVar(&cfg.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.redisAddr, "redis-addr", "", "Redis address of the offer cache to invalidate (or KART_REDIS_ADDR env)")
	flag.BoolVar(&cfg.allowOverride, "allow-override", false, "let later files replace offers with the same id")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "validate files without writing")
	flag.Func("disable", "comma-separated offer ids to retire after the import", func(v string) error {
		for id := range strings.SplitSeq(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.disable = append(cfg.disable, id)
			}
		}
		return nil
	})
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: offer-import [flags] [FILE...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 && len(cfg.disable) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if cfg.databaseURL == "" {
		cfg.databaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.databaseURL == "" && !cfg.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if cfg.redisAddr == "" {
		cfg.redisAddr = os.Getenv("KART_REDIS_ADDR")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, files); err != nil {
		slog.Error("offer import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("offer import completed successfully")
}

func run(ctx context.Context, cfg importConfig, files []string) error {
	slog.Info("loading offer files", slog.Int("files", len(files)))

	batches, err := loadBatches(ctx, files)
	if err != nil {
		return errors.Wrap(err, "load offer files")
	}

	offers, dups := mergeBatches(batches)
	for _, d := range dups {
		slog.Warn("duplicate offer id", slog.String("id", d.id), slog.String("first", d.first), slog.String("again", d.again))
	}
	if len(dups) > 0 && !cfg.allowOverride {
		names := make([]string, len(dups))
		for i, d := range dups {
			names[i] = d.String()
		}
		return errors.Errorf("duplicate offer ids: %s", strings.Join(names, ", "))
	}

	slog.Info("offers validated", slog.Int("count", len(offers)))

	if cfg.dryRun || (len(offers) == 0 && len(cfg.disable) == 0) {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, cfg.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewOfferRepository(pool)
	if len(offers) > 0 {
		if err := repo.UpsertMany(ctx, offers); err != nil {
			return errors.Wrap(err, "write offers")
		}
		slog.Info("offers written", slog.Int("count", len(offers)))
	}
	for _, id := range cfg.disable {
		if err := repo.Disable(ctx, id); err != nil {
			return err
		}
		slog.Info("offer disabled", slog.String("id", id))
	}

	if cfg.redisAddr != "" {
		rc := cache.NewRedisOfferCache(&redis.Options{Addr: cfg.redisAddr})
		defer func() { _ = rc.Close() }()
		if err := rc.Invalidate(ctx); err != nil {
			return errors.Wrap(err, "invalidate offer cache")
		}
		slog.Info("offer cache invalidated", slog.String("redis", cfg.redisAddr))
	}

	return nil
}

// loadBatches decodes files concurrently, keeping argument order.
func loadBatches(ctx context.Context, files []string) ([]batch, error) {
	batches := make([]batch, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			offers, err := offerfile.Load(path)
			if err != nil {
				return errors.Wrapf(err, "file %s", path)
			}
			slog.Info("file decoded", slog.String("path", path), slog.Int("offers", len(offers)))
			batches[i] = batch{path: path, offers: offers}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

// mergeBatches flattens batches in order. An id seen again replaces the
// earlier definition in place and is reported as a duplicate.
func mergeBatches(batches []batch) ([]offer.Combo, []duplicate) {
	total := 0
	for _, b := range batches {
		total += len(b.offers)
	}
	if total == 0 {
		return nil, nil
	}

	// The filter answers most "never seen" checks before the index map does.
	seen := bloom.NewWithEstimates(uint(total), bloomFPR)
	index := make(map[string]int, total)
	source := make([]string, 0, total)
	merged := make([]offer.Combo, 0, total)
	var dups []duplicate

	for _, b := range batches {
		for _, o := range b.offers {
			if seen.TestString(o.ID) {
				if pos, ok := index[o.ID]; ok {
					dups = append(dups, duplicate{id: o.ID, first: source[pos], again: b.path})
					merged[pos] = o
					source[pos] = b.path
					continue
				}
			}
			seen.AddString(o.ID)
			index[o.ID] = len(merged)
			merged = append(merged, o)
			source = append(source, b.path)
		}
	}
	return merged, dups
}
