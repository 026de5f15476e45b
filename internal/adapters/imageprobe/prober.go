// Package imageprobe reads the intrinsic size of the map image.
package imageprobe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/pkg/metrics"
)

// Prober implements ports.ImageProber over HTTP(S) or the local filesystem.
type Prober struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// New returns a prober whose HTTP fetches time out after timeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{
		client: &fasthttp.Client{
			Name:                "huarazguide-imageprobe",
			MaxResponseBodySize: 64 << 20,
		},
		timeout: timeout,
	}
}

// Probe decodes just the image header at url. Plain paths and file:// URLs
// are read from disk.
func (p *Prober) Probe(ctx context.Context, url string) (domain.ImageDimensions, error) {
	start := time.Now()
	defer func() { metrics.ImageProbeDuration.Observe(time.Since(start).Seconds()) }()

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		f, err := os.Open(strings.TrimPrefix(url, "file://"))
		if err != nil {
			return domain.ImageDimensions{}, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
		}
		defer f.Close()
		return decode(f)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := p.client.DoDeadline(req, resp, deadline); err != nil {
		return domain.ImageDimensions{}, fmt.Errorf("%w: fetch %s: %v", domain.ErrInvalidImage, url, err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return domain.ImageDimensions{}, fmt.Errorf("%w: fetch %s: status %d", domain.ErrInvalidImage, url, code)
	}
	return decode(bytes.NewReader(resp.Body()))
}

func decode(r io.Reader) (domain.ImageDimensions, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return domain.ImageDimensions{}, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	dim := domain.ImageDimensions{Width: float64(cfg.Width), Height: float64(cfg.Height)}
	return dim, dim.Validate()
}
