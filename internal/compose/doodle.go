package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/vector"
)

const (
	DoodleWidth  = 400
	DoodleHeight = 400

	DefaultInk       = "#000000"
	DefaultLineWidth = 5
	EraserWidth      = 20

	capSegments = 16
)

var (
	ErrNoStrokes    = errors.New("nothing drawn")
	ErrInvalidColor = errors.New("invalid ink color")
	ErrNoStroke     = errors.New("no stroke in progress")
)

type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type Stroke struct {
	Color  string  `json:"color,omitempty"`
	Width  float32 `json:"width,omitempty"`
	Eraser bool    `json:"eraser,omitempty"`
	Points []Point `json:"points"`
}

// DoodleDialog keeps the strokes drawn so far. Nothing is persisted until
// Confirm rasterizes them.
type DoodleDialog struct {
	Dialog
	width, height int

	smu     sync.Mutex
	strokes []Stroke
	current *Stroke
}

func NewDoodleDialog(onReady ItemReady) *DoodleDialog {
	return &DoodleDialog{
		Dialog: newDialog(onReady),
		width:  DoodleWidth,
		height: DoodleHeight,
	}
}

// BeginStroke starts a new path. An eraser paints the background color with
// a fixed wide brush.
func (d *DoodleDialog) BeginStroke(ink string, width float32, eraser bool, at Point) error {
	if ink == "" {
		ink = DefaultInk
	}
	if _, err := ParseHexColor(ink); err != nil {
		return err
	}
	if width <= 0 {
		width = DefaultLineWidth
	}
	if eraser {
		ink, width = "#ffffff", EraserWidth
	}
	d.smu.Lock()
	defer d.smu.Unlock()
	d.endLocked()
	d.current = &Stroke{Color: ink, Width: width, Eraser: eraser, Points: []Point{at}}
	return nil
}

func (d *DoodleDialog) AddPoint(p Point) error {
	d.smu.Lock()
	defer d.smu.Unlock()
	if d.current == nil {
		return ErrNoStroke
	}
	d.current.Points = append(d.current.Points, p)
	return nil
}

func (d *DoodleDialog) EndStroke() {
	d.smu.Lock()
	d.endLocked()
	d.smu.Unlock()
}

func (d *DoodleDialog) endLocked() {
	if d.current != nil {
		d.strokes = append(d.strokes, *d.current)
		d.current = nil
	}
}

// AddStroke appends a complete stroke, as sent by a client that tracked the
// pointer itself.
func (d *DoodleDialog) AddStroke(s Stroke) error {
	if len(s.Points) == 0 {
		return nil
	}
	if err := d.BeginStroke(s.Color, s.Width, s.Eraser, s.Points[0]); err != nil {
		return err
	}
	for _, p := range s.Points[1:] {
		if err := d.AddPoint(p); err != nil {
			return err
		}
	}
	d.EndStroke()
	return nil
}

// Clear wipes the drawing surface.
func (d *DoodleDialog) Clear() {
	d.smu.Lock()
	d.strokes = nil
	d.current = nil
	d.smu.Unlock()
}

func (d *DoodleDialog) Strokes() []Stroke {
	d.smu.Lock()
	defer d.smu.Unlock()
	out := make([]Stroke, len(d.strokes))
	copy(out, d.strokes)
	return out
}

// Confirm renders the doodle to PNG and completes the dialog with it as a
// data URL.
func (d *DoodleDialog) Confirm(ctx context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	d.EndStroke()
	strokes := d.Strokes()
	if len(strokes) == 0 {
		return ErrNoStrokes
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	img, err := Render(d.width, d.height, strokes)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode doodle: %w", err)
	}
	return d.Complete(DataURL("image/png", buf.Bytes()))
}

// Render draws strokes on a white surface with round caps and joins.
func Render(width, height int, strokes []Stroke) (*image.RGBA, error) {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	z := vector.NewRasterizer(width, height)
	for _, s := range strokes {
		if len(s.Points) == 0 {
			continue
		}
		ink, err := ParseHexColor(s.Color)
		if err != nil {
			return nil, err
		}
		z.Reset(width, height)
		z.DrawOp = draw.Over
		r := s.Width / 2
		if r <= 0 {
			r = DefaultLineWidth / 2.0
		}
		for i, p := range s.Points {
			dot(z, p, r)
			if i > 0 {
				segment(z, s.Points[i-1], p, r)
			}
		}
		z.Draw(dst, dst.Bounds(), image.NewUniform(ink), image.Point{})
	}
	return dst, nil
}

// segment adds the rectangle covering a line of half-width r from a to b.
// Every shape is wound the same way so overlaps never cancel.
func segment(z *vector.Rasterizer, a, b Point, r float32) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*r, dx/l*r
	z.MoveTo(a.X+nx, a.Y+ny)
	z.LineTo(b.X+nx, b.Y+ny)
	z.LineTo(b.X-nx, b.Y-ny)
	z.LineTo(a.X-nx, a.Y-ny)
	z.ClosePath()
}

// dot adds a disc of radius r around p; it doubles as the round cap and join.
func dot(z *vector.Rasterizer, p Point, r float32) {
	for i := 0; i <= capSegments; i++ {
		a := -2 * math.Pi * float64(i) / capSegments
		x := p.X + r*float32(math.Cos(a))
		y := p.Y + r*float32(math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
			continue
		}
		z.LineTo(x, y)
	}
	z.ClosePath()
}

// ParseHexColor accepts #rgb and #rrggbb.
func ParseHexColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
