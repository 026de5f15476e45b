package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/huarazguide/internal/adapters/gemini"
	"github.com/samirrijal/huarazguide/internal/adapters/http"
	"github.com/samirrijal/huarazguide/internal/adapters/imageprobe"
	natsadapter "github.com/samirrijal/huarazguide/internal/adapters/nats"
	"github.com/samirrijal/huarazguide/internal/adapters/postgres"
	"github.com/samirrijal/huarazguide/internal/adapters/qrcode"
	temporaladapter "github.com/samirrijal/huarazguide/internal/adapters/temporal"
	"github.com/samirrijal/huarazguide/internal/adapters/valkey"
	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/ports"
	"github.com/samirrijal/huarazguide/internal/core/usecases"
	"github.com/samirrijal/huarazguide/internal/pkg/config"
	"github.com/samirrijal/huarazguide/internal/pkg/logging"
	"github.com/samirrijal/huarazguide/internal/pkg/metrics"
	"github.com/samirrijal/huarazguide/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("huarazguide-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "huarazguide-api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache. A nil interface keeps the services on the database path.
	var cache ports.CacheService
	vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		vc.OnLookup = metrics.CacheLookup("get")
		cache = vc
		defer vc.Close()
	}

	// NATS
	var publisher ports.EventPublisher
	nc, err := natsadapter.Connect(cfg.NATS.URL, "huarazguide-api")
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Drain()
		pub, err := natsadapter.NewPublisher(nc)
		if err != nil {
			slog.Warn("jetstream unavailable", "error", err)
		} else {
			publisher = pub
		}
	}

	// Temporal
	var scheduler ports.SponsorshipScheduler
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			slog.Warn("temporal unavailable, sponsorship end dates will not be enforced", "error", err)
		} else {
			defer tc.Close()
			scheduler = temporaladapter.NewScheduler(tc, cfg.Temporal.TaskQueue)
		}
	}

	// Chat model
	var model ports.ChatModel
	if cfg.Gemini.APIKey != "" {
		gc, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Temperature)
		if err != nil {
			slog.Warn("gemini unavailable", "error", err)
		} else {
			model = gc
		}
	} else {
		slog.Info("gemini api key not set, chat serves the fallback reply")
	}

	// Repos
	businessRepo := postgres.NewBusinessRepo(db)
	couponRepo := postgres.NewCouponRepo(db)

	// Use cases
	bounds := cfg.Map.Bounds()
	businessSvc := usecases.NewBusinessService(businessRepo, cache, publisher, bounds)
	sponsorshipSvc := usecases.NewSponsorshipService(businessRepo, cache, publisher, scheduler)
	couponSvc := usecases.NewCouponService(couponRepo, businessRepo, qrcode.NewEncoder())
	chatSvc := usecases.NewChatService(model, businessSvc, couponSvc)
	mapSvc, err := usecases.NewMapService(businessSvc, imageprobe.New(10*time.Second), usecases.MapSettings{
		ImageURL:    cfg.Map.ImageURL,
		Bounds:      bounds,
		Image:       cfg.Map.Image(),
		Viewport:    cfg.Map.Viewport(),
		HitRadius:   cfg.Map.HitRadius,
		SessionTTL:  cfg.Map.SessionTTL,
		MaxSessions: cfg.Map.MaxSessions,
	})
	if err != nil {
		log.Fatalf("map: %v", err)
	}

	// Fan marker moves and sponsorship changes from other replicas into
	// the sessions held here.
	if nc != nil {
		sub, err := natsadapter.NewSubscriber(nc)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			if err := sub.SubscribeMarkerMoved(ctx, func(ctx context.Context, ev *domain.MarkerMoved) error {
				if n := mapSvc.ApplyMarkerMoved(ev); n > 0 {
					slog.Debug("marker move applied", "business_id", ev.BusinessID, "sessions", n)
				}
				return nil
			}); err != nil {
				slog.Warn("subscribe marker moves", "error", err)
			}
			if err := sub.SubscribeSponsorshipChanged(ctx, func(ctx context.Context, sp *domain.Sponsorship) error {
				mapSvc.ApplySponsorship(sp)
				return nil
			}); err != nil {
				slog.Warn("subscribe sponsorships", "error", err)
			}
		}
	}

	go mapSvc.RunJanitor(ctx, time.Minute)
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
				metrics.ActiveMapSessions.Set(float64(mapSvc.Count()))
			}
		}
	}()

	deps := &http.Dependencies{
		Businesses:   businessSvc,
		Sponsorships: sponsorshipSvc,
		Coupons:      couponSvc,
		Chat:         chatSvc,
		Maps:         mapSvc,
		NATS:         nc,
		DB:           db,
		Cache:        vc,
		DocsPath:     "api/openapi.yaml",
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "HuarazGuide API",
	})
	app.Use(recover.New())
	app.Static("/static", "./static", fiber.Static{Compress: true, MaxAge: 86400})

	http.SetupRoutes(app, deps, http.RouterOptions{
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit,
	})

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
