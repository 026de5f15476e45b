package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/huarazguide/internal/adapters/postgres"
	"github.com/samirrijal/huarazguide/internal/adapters/valkey"
	"github.com/samirrijal/huarazguide/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Businesses   *usecases.BusinessService
	Sponsorships *usecases.SponsorshipService
	Coupons      *usecases.CouponService
	Chat         *usecases.ChatService
	Maps         *usecases.MapService
	NATS         *nats.Conn
	DB           *postgres.DB
	Cache        *valkey.Cache
	// DocsPath is the OpenAPI document served at /docs/openapi.yaml.
	DocsPath string
}
