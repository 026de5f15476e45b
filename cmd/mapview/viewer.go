package main

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/mapview"
)

// A terminal cell is treated as one pixel wide and two pixels tall, which
// keeps the map's aspect ratio close to what a browser would show.
const cellAspect = 2.0

// chromeRows is the height taken by the status and help lines.
const chromeRows = 2

var (
	accentFg  = lipgloss.Color("#F59E0B")
	featureFg = lipgloss.Color("#EF4444")
	dimFg     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#4B5563"}

	paperStyle   = lipgloss.NewStyle().Foreground(dimFg)
	markerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")).Bold(true)
	featureStyle = lipgloss.NewStyle().Foreground(featureFg).Bold(true)
	activeStyle  = lipgloss.NewStyle().Foreground(accentFg).Bold(true).Reverse(true)
	popupStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#111827")).Background(accentFg)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB")).Background(lipgloss.Color("#1F2937"))
	helpStyle    = lipgloss.NewStyle().Foreground(dimFg)
	errorStyle   = lipgloss.NewStyle().Foreground(featureFg).Bold(true)
)

// move is a committed marker drag.
type move struct {
	ID    string
	Label string
	To    domain.GeoPoint
}

// viewer is the bubbletea model driving one mapview.Map in the terminal.
type viewer struct {
	m        *mapview.Map
	pois     []mapview.PointOfInterest
	index    map[string]int
	editable bool

	width, height int
	cursor        mapview.Point
	status        string
	moves         []move
}

func newViewer(cfg mapview.Config, pois []mapview.PointOfInterest) (*viewer, error) {
	v := &viewer{
		pois:     pois,
		index:    make(map[string]int, len(pois)),
		editable: cfg.Gesture.Editable,
	}
	for i, p := range pois {
		v.index[p.ID] = i
	}
	cfg.Gesture.OnMarkerMove = v.onMove
	cfg.Gesture.OnDragEnd = v.onDragEnd
	m, err := mapview.New(cfg)
	if err != nil {
		return nil, err
	}
	v.m = m
	return v, nil
}

func (v *viewer) onMove(id string, pos domain.GeoPoint) {
	if i, ok := v.index[id]; ok {
		v.pois[i].Location = pos
	}
}

func (v *viewer) onDragEnd(id string) {
	i, ok := v.index[id]
	if !ok {
		return
	}
	p := v.pois[i]
	v.moves = append(v.moves, move{ID: p.ID, Label: p.Label, To: p.Location})
	v.status = fmt.Sprintf("moved %s to %.5f, %.5f", p.Label, p.Location.Lat, p.Location.Lng)
}

// Moves returns the marker drags committed during the session, last one
// per marker.
func (v *viewer) Moves() []move {
	seen := make(map[string]bool, len(v.moves))
	var out []move
	for i := len(v.moves) - 1; i >= 0; i-- {
		if seen[v.moves[i].ID] {
			continue
		}
		seen[v.moves[i].ID] = true
		out = append([]move{v.moves[i]}, out...)
	}
	return out
}

func (v *viewer) Init() tea.Cmd { return nil }

// screen converts a terminal cell to map screen pixels.
func screen(x, y int) mapview.Point {
	return mapview.Point{X: float64(x), Y: float64(y) * cellAspect}
}

func (v *viewer) center() mapview.Point {
	return screen(v.width/2, (v.height-chromeRows)/2)
}

func (v *viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width, v.height = msg.Width, msg.Height
		v.m.Resize(float64(msg.Width), float64(max(msg.Height-chromeRows, 0))*cellAspect)

	case tea.BlurMsg:
		v.m.Dispatch(mapview.Event{Kind: mapview.FocusLost}, v.pois)

	case tea.MouseMsg:
		v.mouse(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return v, tea.Quit
		case "+", "=":
			v.m.Viewport().ZoomIn(v.center())
		case "-", "_":
			v.m.Viewport().ZoomOut(v.center())
		case "left", "h":
			v.m.Viewport().Pan(4, 0)
		case "right", "l":
			v.m.Viewport().Pan(-4, 0)
		case "up", "k":
			v.m.Viewport().Pan(0, 4*cellAspect)
		case "down", "j":
			v.m.Viewport().Pan(0, -4*cellAspect)
		case "r", "0":
			v.m.ResetView()
			v.status = "view reset"
		case "e":
			v.editable = !v.editable
			v.m.SetEditable(v.editable)
			v.status = fmt.Sprintf("edit mode: %v", v.editable)
		case "esc":
			v.m.Dispatch(mapview.Event{Kind: mapview.ReleaseAll}, v.pois)
			v.m.ClosePopup()
		}
	}
	return v, nil
}

func (v *viewer) mouse(msg tea.MouseMsg) {
	pt := screen(msg.X, msg.Y)
	v.cursor = pt
	if msg.Y >= v.height-chromeRows && msg.Action != tea.MouseActionRelease {
		return
	}
	ev := mapview.Event{X: pt.X, Y: pt.Y}
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		ev.Kind, ev.DeltaY = mapview.Wheel, -1
	case msg.Button == tea.MouseButtonWheelDown:
		ev.Kind, ev.DeltaY = mapview.Wheel, 1
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		ev.Kind = mapview.PointerDown
	case msg.Action == tea.MouseActionMotion:
		ev.Kind = mapview.PointerMove
	case msg.Action == tea.MouseActionRelease:
		ev.Kind = mapview.PointerUp
	default:
		return
	}
	v.m.Dispatch(ev, v.pois)
}

// geoAt returns the coordinate under a screen point.
func (v *viewer) geoAt(pt mapview.Point) (domain.GeoPoint, bool) {
	return v.m.Projection().ToLatLng(v.m.Viewport().ScreenToImage(pt))
}

func (v *viewer) View() string {
	if v.width == 0 {
		return "loading…"
	}
	rows := max(v.height-chromeRows, 0)
	f := v.m.Frame(v.pois)

	grid := make([][]string, rows)
	for y := range grid {
		grid[y] = make([]string, v.width)
		for x := range grid[y] {
			grid[y][x] = " "
		}
	}

	if f.Status == mapview.ImageReady && f.Image != nil {
		v.paintPaper(grid, f)
		for _, mk := range f.Markers {
			x, y := cell(mk.Screen)
			if y < 0 || y >= rows || x < 0 || x >= v.width {
				continue
			}
			switch {
			case mk.Active:
				grid[y][x] = activeStyle.Render("◉")
			case mk.Kind == mapview.KindFeatured:
				grid[y][x] = featureStyle.Render("★")
			default:
				grid[y][x] = markerStyle.Render("●")
			}
		}
		if f.Popup != nil {
			v.paintPopup(grid, f.Popup)
		}
	}

	var b strings.Builder
	for _, row := range grid {
		b.WriteString(strings.Join(row, ""))
		b.WriteByte('\n')
	}
	b.WriteString(statusStyle.Width(v.width).Render(v.statusLine(f)))
	b.WriteByte('\n')
	b.WriteString(helpStyle.Render("drag pan · wheel/+/- zoom · arrows pan · r reset · e edit · esc close · q quit"))
	return b.String()
}

func cell(pt mapview.Point) (int, int) {
	return int(math.Floor(pt.X)), int(math.Floor(pt.Y / cellAspect))
}

// paintPaper shades the cells covered by the map image.
func (v *viewer) paintPaper(grid [][]string, f mapview.Frame) {
	view := v.m.Viewport()
	x0, y0 := cell(view.ImageToScreen(mapview.Point{}))
	x1, y1 := cell(view.ImageToScreen(mapview.Point{X: f.Image.Width, Y: f.Image.Height}))
	dot := paperStyle.Render("·")
	for y := max(y0, 0); y <= min(y1, len(grid)-1); y++ {
		for x := max(x0, 0); x <= min(x1, v.width-1); x++ {
			if (x+y)%2 == 0 {
				grid[y][x] = dot
			}
		}
	}
}

// paintPopup writes the popup label one row above its anchor, clipped to
// the terminal width.
func (v *viewer) paintPopup(grid [][]string, p *mapview.Popup) {
	x, y := cell(p.Anchor)
	y--
	if y < 0 {
		y += 2
	}
	if y < 0 || y >= len(grid) {
		return
	}
	label := []rune(" " + p.Label + " ")
	if len(label) > v.width {
		label = label[:v.width]
	}
	x = min(max(x-len(label)/2, 0), v.width-len(label))
	grid[y][x] = popupStyle.Render(string(label))
	for i := 1; i < len(label); i++ {
		grid[y][x+i] = ""
	}
}

func (v *viewer) statusLine(f mapview.Frame) string {
	switch f.Status {
	case mapview.ImageLoading:
		return " loading map image…"
	case mapview.ImageFailed:
		return errorStyle.Render(" map image failed: " + f.Error)
	}
	s := fmt.Sprintf(" %.2fx · %s", f.Transform.Scale, f.State)
	if pos, ok := v.geoAt(v.cursor); ok {
		s += fmt.Sprintf(" · %.5f, %.5f", pos.Lat, pos.Lng)
	}
	if v.editable {
		s += " · EDIT"
	}
	if v.status != "" {
		s += " · " + v.status
	}
	return s
}
