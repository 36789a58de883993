// Commande coupon-import : charge en base un fichier gzip de codes promo
// (un code par ligne), dédoublonnés à la volée.
//
//	coupon-import -file codes.csv.gz -type percentage -value 10 -valid-days 30
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marketplace_back_end/internal/coupon"
	"marketplace_back_end/internal/database"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/repository"
)

const maxCodeLen = 50

type options struct {
	file        string
	databaseURL string
	kind        string
	value       string
	validDays   int
	maxUses     int
	batchSize   int
	workers     int
	expected    uint
	fpRate      float64
}

type stats struct {
	read       atomic.Int64
	duplicates atomic.Int64
	invalid    atomic.Int64
	inserted   atomic.Int64
}

func main() {
	_ = godotenv.Load(".env")

	var opts options
	flag.StringVar(&opts.file, "file", "", "fichier gzip, un code par ligne")
	flag.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "URL PostgreSQL")
	flag.StringVar(&opts.kind, "type", string(models.DiscountPercentage), "percentage ou fixed")
	flag.StringVar(&opts.value, "value", "10", "valeur de la remise")
	flag.IntVar(&opts.validDays, "valid-days", 30, "durée de validité en jours")
	flag.IntVar(&opts.maxUses, "max-uses", 1, "utilisations max par code (0 = illimité)")
	flag.IntVar(&opts.batchSize, "batch", 1000, "codes par lot")
	flag.IntVar(&opts.workers, "workers", 4, "lots insérés en parallèle")
	flag.UintVar(&opts.expected, "expected", 10_000_000, "nombre de codes attendu (taille du filtre de Bloom)")
	flag.Float64Var(&opts.fpRate, "fp-rate", 1e-6, "taux de faux positifs du filtre de Bloom")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		_, _ = os.Stderr.WriteString("❌ " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Fatal("❌ Import échoué", zap.Error(err))
	}
}

// template construit le coupon appliqué à chaque code importé.
func template(opts options, now time.Time) (models.Coupon, error) {
	value, err := decimal.NewFromString(opts.value)
	if err != nil {
		return models.Coupon{}, errors.Wrap(err, "parse -value")
	}
	tmpl := models.Coupon{
		Code:          "IMPORT",
		DiscountType:  models.DiscountType(opts.kind),
		DiscountValue: value,
		ValidFrom:     now,
		ValidUntil:    now.AddDate(0, 0, opts.validDays),
		MaxUses:       opts.maxUses,
		Active:        true,
	}
	if err := coupon.Validate(tmpl); err != nil {
		return models.Coupon{}, err
	}
	return tmpl, nil
}

func run(ctx context.Context, opts options, logger *zap.Logger) error {
	switch {
	case opts.file == "":
		return errors.New("-file is required")
	case opts.databaseURL == "":
		return errors.New("-database-url or DATABASE_URL is required")
	case opts.batchSize < 1 || opts.workers < 1:
		return errors.New("-batch and -workers must be positive")
	}
	tmpl, err := template(opts, time.Now().UTC())
	if err != nil {
		return err
	}

	pool, err := database.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	coupons := repository.NewCouponRepository(pool)

	f, err := os.Open(opts.file)
	if err != nil {
		return errors.Wrap(err, "open file")
	}
	defer f.Close()

	var st stats
	start := time.Now()
	batches := make(chan []string, opts.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		return readCodes(gctx, f, opts, &st, batches)
	})
	for range opts.workers {
		g.Go(func() error {
			for batch := range batches {
				n, err := coupons.ImportCodes(gctx, batch, tmpl)
				if err != nil {
					return err
				}
				st.inserted.Add(n)
			}
			return nil
		})
	}
	err = g.Wait()

	logger.Info("📦 Import terminé",
		zap.Int64("read", st.read.Load()),
		zap.Int64("inserted", st.inserted.Load()),
		zap.Int64("duplicates", st.duplicates.Load()),
		zap.Int64("invalid", st.invalid.Load()),
		zap.Duration("elapsed", time.Since(start)))
	return err
}

// readCodes décompresse le fichier et envoie des lots de codes normalisés.
// Un code déjà vu d'après le filtre de Bloom est écarté.
func readCodes(ctx context.Context, r io.Reader, opts options, st *stats, out chan<- []string) error {
	zr, err := pgzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "open gzip")
	}
	defer zr.Close()

	seen := bloom.NewWithEstimates(opts.expected, opts.fpRate)
	batch := make([]string, 0, opts.batchSize)
	send := func() error {
		if len(batch) == 0 {
			return nil
		}
		select {
		case out <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
		batch = make([]string, 0, opts.batchSize)
		return nil
	}

	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		st.read.Add(1)
		// Une ligne CSV : le code est la première colonne.
		raw, _, _ := strings.Cut(scanner.Text(), ",")
		code := coupon.NormalizeCode(raw)
		if code == "" || len(code) > maxCodeLen {
			st.invalid.Add(1)
			continue
		}
		if seen.TestOrAddString(code) {
			st.duplicates.Add(1)
			continue
		}
		batch = append(batch, code)
		if len(batch) == opts.batchSize {
			if err := send(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read codes")
	}
	return send()
}
