// Package demo populates a kernel with a sample view that changes on its
// own, for trying the UI without a host application.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/wavesoft/marblebar/internal/kernel"
	"github.com/wavesoft/marblebar/internal/widget"
)

type Generator struct {
	kernel   *kernel.Kernel
	interval time.Duration

	mu   sync.Mutex
	tick int

	view       *kernel.View
	iterations *widget.Text
	second     *widget.Text
	toggler    *widget.Bool
	level      *widget.Int
	preview    *widget.Image
	wave       *widget.List
	gain       *widget.Double
	reset      *widget.Text
}

func NewGenerator(k *kernel.Kernel, interval time.Duration) *Generator {
	return &Generator{kernel: k, interval: interval}
}

// Setup creates the "Primary" view. Start calls it; tests call it directly.
func (g *Generator) Setup() *kernel.View {
	g.view = g.kernel.CreateView("Primary")

	g.iterations = kernel.Add(g.view, widget.NewString("Iterations", "value"))
	g.second = kernel.Add(g.view, widget.NewString("Second Value", "value"))
	g.toggler = kernel.Add(g.view, widget.NewBool("Toggler", false))
	g.level = kernel.Add(g.view, widget.NewInt("Range", 0, 0, 100, 1))
	g.preview = kernel.Add(g.view, widget.NewImage("Preview", 128, -1, ""))

	g.iterations.Set("test")
	g.iterations.Append("ing")

	shape := g.view.Group("Waveform")
	g.wave = kernel.AddTo(shape, widget.NewList("Shape", 0).
		AddOption("Sine", "sine").
		AddOption("Sawtooth", "saw").
		AddOption("Square", "square"))
	g.gain = kernel.AddTo(shape, widget.NewDouble("Speed", 1, 0.1, 10, 0.1))
	g.reset = kernel.AddTo(shape, widget.NewButton("Reset", "Reset"))
	g.reset.On("click", func(json.RawMessage) {
		g.Reset()
	})

	return g.view
}

func (g *Generator) Start(ctx context.Context) {
	g.Setup()
	log.Printf("Demo view %s ready", g.view.ID())
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.kernel.Dispatch(nil, g.advance)
		}
	}
}

// advance moves the demo one step. While Toggler is on the values freeze.
func (g *Generator) advance() {
	if g.toggler.Get() {
		return
	}

	g.mu.Lock()
	g.tick++
	tick := g.tick
	g.mu.Unlock()

	phase := float64(tick) * g.gain.Get() / 10
	g.iterations.Set(fmt.Sprintf("testing %d", tick))
	g.level.Set(int(math.Round(50 + 50*wave(g.wave.Selected(), phase))))
	g.preview.SetBinary(swatch(tick), "image/svg+xml")
}

// Reset rewinds the tick counter and restores the initial values.
func (g *Generator) Reset() {
	g.mu.Lock()
	g.tick = 0
	g.mu.Unlock()

	g.iterations.Set("testing")
	g.level.Set(0)
	g.preview.Set("about:blank")
}

// wave returns a value in [-1, 1] for the given shape and phase.
func wave(shape string, phase float64) float64 {
	switch shape {
	case "saw":
		_, frac := math.Modf(phase / (2 * math.Pi))
		return 2*frac - 1
	case "square":
		if math.Sin(phase) >= 0 {
			return 1
		}
		return -1
	default:
		return math.Sin(phase)
	}
}

func swatch(tick int) []byte {
	hue := (tick * 15) % 360
	return []byte(fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="128" height="128">`+
			`<rect width="128" height="128" fill="hsl(%d,70%%,55%%)"/>`+
			`<text x="64" y="72" font-size="24" text-anchor="middle" fill="#fff">%d</text></svg>`,
		hue, tick))
}
