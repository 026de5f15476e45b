package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakePool struct{ acquired, idle, total int32 }

func (f fakePool) AcquiredConns() int32 { return f.acquired }
func (f fakePool) IdleConns() int32     { return f.idle }
func (f fakePool) TotalConns() int32    { return f.total }

func TestUpdateDBPoolMetrics(t *testing.T) {
	UpdateDBPoolMetrics(fakePool{acquired: 2, idle: 3, total: 5})

	if got := testutil.ToFloat64(DBPoolConnsOpen); got != 5 {
		t.Errorf("expected 5 open conns, got %v", got)
	}
	if got := testutil.ToFloat64(DBPoolConnsIdle); got != 3 {
		t.Errorf("expected 3 idle conns, got %v", got)
	}
}

func TestCacheLookup(t *testing.T) {
	hook := CacheLookup("test_op")
	before := testutil.ToFloat64(CacheHits.WithLabelValues("test_op"))
	hook(true)
	hook(false)
	hook(false)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("test_op")); got != before+1 {
		t.Errorf("expected one more hit, got %v", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("test_op")); got < 2 {
		t.Errorf("expected at least 2 misses, got %v", got)
	}
}

func TestHandler_ServesRegistry(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/metrics", Handler())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	if _, err := app.Test(httptest.NewRequest("GET", "/ping", nil)); err != nil {
		t.Fatal(err)
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "huarazguide_http_requests_total") {
		t.Error("expected http request counter in /metrics output")
	}
}
