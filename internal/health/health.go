// Package health samples host CPU and memory load so the control surface
// can report whether the process has headroom to keep up with the
// target frame rate (spec SPEC_FULL.md §4.K). Sampling style (ticker-driven
// background goroutine feeding a mutex-guarded snapshot) follows
// LoadHistoryTracker (load_history.go); this package drops its minute/hour
// aggregation tiers since the control surface only needs the current
// reading.
package health

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status is the most recent host health reading.
type Status struct {
	CPUPercent    float64
	MemoryPercent float64
	CPUCores      int
	Timestamp     time.Time
}

// Monitor periodically samples host load in the background.
type Monitor struct {
	mu       sync.RWMutex
	latest   Status
	cpuCores int
	stop     chan struct{}
}

// NewMonitor constructs a monitor and takes one synchronous initial
// reading so Latest never returns a zero Status before Start is called.
func NewMonitor() *Monitor {
	cores := 0
	if info, err := cpu.Info(); err == nil {
		for _, c := range info {
			cores += int(c.Cores)
		}
	}
	m := &Monitor{cpuCores: cores, stop: make(chan struct{})}
	m.sample()
	return m
}

// Start begins periodic sampling at the given interval until Stop is
// called.
func (m *Monitor) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

// Stop halts periodic sampling.
func (m *Monitor) Stop() {
	close(m.stop)
}

func (m *Monitor) sample() {
	var cpuPct float64
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuPct = pcts[0]
	}

	var memPct float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memPct = vm.UsedPercent
	}

	m.mu.Lock()
	m.latest = Status{
		CPUPercent:    cpuPct,
		MemoryPercent: memPct,
		CPUCores:      m.cpuCores,
		Timestamp:     time.Now(),
	}
	m.mu.Unlock()
}

// Latest returns the most recent reading.
func (m *Monitor) Latest() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}
