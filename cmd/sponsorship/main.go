package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/huarazguide/internal/adapters/nats"
	"github.com/samirrijal/huarazguide/internal/adapters/postgres"
	"github.com/samirrijal/huarazguide/internal/adapters/valkey"
	"github.com/samirrijal/huarazguide/internal/core/ports"
	"github.com/samirrijal/huarazguide/internal/core/usecases"
	"github.com/samirrijal/huarazguide/internal/pkg/config"
	"github.com/samirrijal/huarazguide/internal/pkg/logging"
	"github.com/samirrijal/huarazguide/internal/workflows"
)

func main() {
	cfg, err := config.Load("huarazguide-sponsorship")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "huarazguide-sponsorship")

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		cache = vc
		defer vc.Close()
	}

	// Expiries are announced so open map sessions drop the featured style.
	var publisher ports.EventPublisher
	if nc, err := natsadapter.Connect(cfg.NATS.URL, "huarazguide-sponsorship"); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Drain()
		if pub, err := natsadapter.NewPublisher(nc); err != nil {
			slog.Warn("jetstream unavailable", "error", err)
		} else {
			publisher = pub
		}
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	sponsorships := usecases.NewSponsorshipService(postgres.NewBusinessRepo(db), cache, publisher, nil)

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.SponsorshipExpiryWorkflow)
	w.RegisterActivity(&workflows.SponsorshipActivities{Sponsorships: sponsorships})

	slog.Info("sponsorship worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
