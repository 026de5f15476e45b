package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/samirrijal/huarazguide/internal/adapters/imageprobe"
	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/mapview"
	"github.com/samirrijal/huarazguide/internal/core/usecases"
	"github.com/samirrijal/huarazguide/internal/pkg/config"
)

const (
	SEED     = `seed`
	IMAGE    = `image`
	FIT      = `fit`
	EDITABLE = `editable`
	HITCELLS = `hit-cells`
)

func main() {
	app := cli.NewApp()
	app.Name = "mapview"
	app.Usage = "Browse the Huaraz directory map in the terminal"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    SEED,
			Aliases: []string{"s"},
			Usage:   "Directory seed file with the businesses to plot",
			Value:   "data/seed.json",
			EnvVars: []string{"MAPVIEW_SEED"},
		},
		&cli.StringFlag{
			Name:    IMAGE,
			Aliases: []string{"i"},
			Usage:   "Map image path or URL; its size is probed unless map.image_width/height are configured",
			EnvVars: []string{"MAPVIEW_IMAGE"},
		},
		&cli.StringFlag{
			Name:    FIT,
			Aliases: []string{"f"},
			Usage:   "Fit mode: contain or cover",
			EnvVars: []string{"MAPVIEW_FIT"},
		},
		&cli.BoolFlag{
			Name:    EDITABLE,
			Aliases: []string{"e"},
			Usage:   "Start in edit mode (markers can be dragged)",
		},
		&cli.Float64Flag{
			Name:  HITCELLS,
			Usage: "Marker hit radius in terminal cells",
			Value: 1.5,
		},
	}

	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load("huarazguide-mapview")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if img := c.String(IMAGE); img != "" {
		cfg.Map.ImageURL = img
		cfg.Map.ImageWidth, cfg.Map.ImageHeight = 0, 0
	}
	if fit := c.String(FIT); fit != "" {
		if _, err := mapview.ParseFitMode(fit); err != nil {
			return err
		}
		cfg.Map.FitMode = fit
	}

	pois, err := loadPOIs(c.String(SEED))
	if err != nil {
		return err
	}

	v, err := newViewer(mapview.Config{
		Bounds:    cfg.Map.Bounds(),
		Viewport:  cfg.Map.Viewport(),
		HitRadius: c.Float64(HITCELLS),
		Gesture:   mapview.GestureOptions{Editable: c.Bool(EDITABLE)},
	}, pois)
	if err != nil {
		return err
	}

	dim := cfg.Map.Image()
	if dim.Validate() != nil {
		ctx, cancel := context.WithTimeout(c.Context, 15*time.Second)
		dim, err = imageprobe.New(15*time.Second).Probe(ctx, cfg.Map.ImageURL)
		cancel()
	}
	if err != nil {
		v.m.ImageFailed(err)
	} else {
		// A rejected size leaves the map in its failed state, shown in the status line.
		_ = v.m.ImageLoaded(dim)
	}

	p := tea.NewProgram(v, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		return err
	}

	for _, mv := range v.Moves() {
		fmt.Printf("%s\t%.6f\t%.6f\t%s\n", mv.ID, mv.To.Lat, mv.To.Lng, mv.Label)
	}
	return nil
}

// loadPOIs reads the approved businesses of a seed file as map points.
func loadPOIs(path string) ([]mapview.PointOfInterest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed struct {
		Businesses []domain.Business `json:"businesses"`
	}
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	pois := make([]mapview.PointOfInterest, 0, len(seed.Businesses))
	for i := range seed.Businesses {
		b := &seed.Businesses[i]
		if b.Status != "" && b.Status != domain.StatusApproved {
			continue
		}
		pois = append(pois, usecases.POIFromBusiness(b))
	}
	return pois, nil
}
