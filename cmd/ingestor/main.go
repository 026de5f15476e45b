package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/samirrijal/huarazguide/internal/adapters/postgres"
	"github.com/samirrijal/huarazguide/internal/adapters/valkey"
	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/ports"
	"github.com/samirrijal/huarazguide/internal/core/usecases"
	"github.com/samirrijal/huarazguide/internal/pkg/config"
	"github.com/samirrijal/huarazguide/internal/pkg/logging"
)

// Seed is the directory snapshot the ingestor loads.
type Seed struct {
	Businesses []domain.Business `json:"businesses"`
	Coupons    []domain.Coupon   `json:"coupons"`
}

func main() {
	cfg, err := config.Load("huarazguide-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "huarazguide-ingestor")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	seedPath := "data/seed.json"
	if len(os.Args) > 1 {
		seedPath = os.Args[1]
	}

	seed, err := loadSeed(ctx, seedPath)
	if err != nil {
		log.Fatalf("load seed: %v", err)
	}
	slog.Info("seed loaded", "source", seedPath, "businesses", len(seed.Businesses), "coupons", len(seed.Coupons))

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Evict cached listings the import replaces; the cache is optional.
	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix); err != nil {
		slog.Warn("valkey unavailable, cached listings expire on their own", "error", err)
	} else {
		cache = vc
		defer vc.Close()
	}

	businessRepo := postgres.NewBusinessRepo(db)
	businesses := usecases.NewBusinessService(businessRepo, cache, nil, cfg.Map.Bounds())
	coupons := usecases.NewCouponService(postgres.NewCouponRepo(db), businessRepo, nil)

	if err := businesses.Import(ctx, seed.Businesses); err != nil {
		log.Fatalf("import businesses: %v", err)
	}
	if err := coupons.Import(ctx, seed.Coupons); err != nil {
		log.Fatalf("import coupons: %v", err)
	}

	slog.Info("ingestion complete", "businesses", len(seed.Businesses), "coupons", len(seed.Coupons))
}

// loadSeed reads a seed file from disk or, for http(s) sources, downloads it.
func loadSeed(ctx context.Context, src string) (*Seed, error) {
	var r io.ReadCloser
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		resp, err := (&http.Client{Timeout: 60 * time.Second}).Do(req)
		if err != nil {
			return nil, fmt.Errorf("download: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, src)
		}
		r = resp.Body
	} else {
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		r = f
	}
	defer r.Close()

	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &seed, nil
}
