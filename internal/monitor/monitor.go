// Package monitor publishes host metrics as a read-only view.
package monitor

import (
	"context"
	"log"
	"time"

	"github.com/wavesoft/marblebar/internal/kernel"
	"github.com/wavesoft/marblebar/internal/widget"
)

// Sampler collects one set of host metrics.
type Sampler func(ctx context.Context) (Stats, error)

type Monitor struct {
	kernel   *kernel.Kernel
	interval time.Duration
	sample   Sampler
	sessions func() int

	view       *kernel.View
	cpu        *widget.Double
	mem        *widget.Double
	load       *widget.Double
	uptime     *widget.Text
	goroutines *widget.Int
	processes  *widget.Int
	clients    *widget.Int
}

// New creates the "System" view on k. sessions reports the number of live
// sessions and may be nil.
func New(k *kernel.Kernel, interval time.Duration, sessions func() int) *Monitor {
	m := &Monitor{
		kernel:   k,
		interval: interval,
		sample:   SampleHost,
		sessions: sessions,
		view:     k.CreateView("System"),
	}

	host := m.view.Group("Host")
	m.cpu = kernel.AddTo(host, readOnly(widget.NewDouble("CPU %", 0, 0, 100, 0.1)))
	m.mem = kernel.AddTo(host, readOnly(widget.NewDouble("Memory %", 0, 0, 100, 0.1)))
	m.load = kernel.AddTo(host, readOnly(widget.NewDouble("Load (1m)", 0, 0, 0, 0.01)))
	m.uptime = kernel.AddTo(host, widget.NewLabel("Uptime", "0s"))
	m.processes = kernel.AddTo(host, readOnly(widget.NewInt("Processes", 0, 0, 0, 1)))

	self := m.view.Group("Server")
	m.goroutines = kernel.AddTo(self, readOnly(widget.NewInt("Goroutines", 0, 0, 0, 1)))
	m.clients = kernel.AddTo(self, readOnly(widget.NewInt("Sessions", 0, 0, 0, 1)))
	return m
}

func readOnly[T kernel.Property](p T) T {
	return kernel.WithMeta(p, kernel.MetaReadOnly, true)
}

// SetSampler replaces the host sampler. Call before Start.
func (m *Monitor) SetSampler(s Sampler) {
	m.sample = s
}

func (m *Monitor) View() *kernel.View { return m.view }

func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Printf("Monitor started (interval %s)", m.interval)

	// Initial poll
	m.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Monitor stopped")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	stats, err := m.sample(ctx)
	if err != nil {
		log.Printf("monitor: sample failed: %v", err)
	}
	m.kernel.Dispatch(nil, func() { m.publish(stats) })
}

// publish pushes stats to every widget. Only changed values are broadcast.
func (m *Monitor) publish(stats Stats) {
	setIfChanged(m.cpu, round(stats.CPUPercent))
	setIfChanged(m.mem, round(stats.MemPercent))
	setIfChanged(m.load, round(stats.Load1))
	setIfChanged(m.processes, stats.Processes)
	setIfChanged(m.goroutines, stats.Goroutines)
	if m.sessions != nil {
		setIfChanged(m.clients, m.sessions())
	}
	if up := stats.Uptime.Truncate(time.Second).String(); up != m.uptime.Get() {
		m.uptime.Set(up)
	}
}

func setIfChanged[T widget.Numeric](n *widget.Number[T], v T) {
	if n.Get() != v {
		n.Set(v)
	}
}

func round(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
