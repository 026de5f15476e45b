package imageprobe

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/samirrijal/huarazguide/internal/core/domain"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestProbe_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.png")
	if err := os.WriteFile(path, pngBytes(t, 640, 480), 0o644); err != nil {
		t.Fatal(err)
	}

	dim, err := New(0).Probe(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dim.Width != 640 || dim.Height != 480 {
		t.Errorf("expected 640x480, got %vx%v", dim.Width, dim.Height)
	}
}

func TestProbe_HTTP(t *testing.T) {
	body := pngBytes(t, 1200, 900)
	ln := fasthttputil.NewInmemoryListener()
	defer ln.Close()
	go func() {
		_ = fasthttp.Serve(ln, func(ctx *fasthttp.RequestCtx) {
			if string(ctx.Path()) != "/huaraz.png" {
				ctx.SetStatusCode(fasthttp.StatusNotFound)
				return
			}
			ctx.SetContentType("image/png")
			ctx.SetBody(body)
		})
	}()

	p := New(0)
	p.client.Dial = func(addr string) (net.Conn, error) { return ln.Dial() }

	dim, err := p.Probe(context.Background(), "http://maps.local/huaraz.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dim.Width != 1200 || dim.Height != 900 {
		t.Errorf("expected 1200x900, got %vx%v", dim.Width, dim.Height)
	}

	if _, err := p.Probe(context.Background(), "http://maps.local/missing.png"); !errors.Is(err, domain.ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage for 404, got %v", err)
	}
}

func TestProbe_NotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(0).Probe(context.Background(), path); !errors.Is(err, domain.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}
