package monitor

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type Stats struct {
	CPUPercent float64
	MemPercent float64
	Load1      float64
	Uptime     time.Duration
	Processes  int
	Goroutines int
}

// SampleHost reads host metrics with gopsutil. Metrics that cannot be read
// on this platform are left zero and reported in the joined error.
func SampleHost(ctx context.Context) (Stats, error) {
	stats := Stats{Goroutines: runtime.NumGoroutine()}
	var errs []error

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		errs = append(errs, err)
	} else if len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		stats.MemPercent = vm.UsedPercent
	}

	if avg, err := load.AvgWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		stats.Load1 = avg.Load1
	}

	if up, err := host.UptimeWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		stats.Uptime = time.Duration(up) * time.Second
	}

	if pids, err := process.PidsWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		stats.Processes = len(pids)
	}

	return stats, errors.Join(errs...)
}
