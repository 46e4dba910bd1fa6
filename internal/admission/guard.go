// Package admission gates the connection accept loop against CPU, memory
// and connection-count overload: static configured limits, a periodic
// resource sampler, and a rate limiter for connection admission (this
// server has no pub/sub or broadcast concept, so only the one
// per-connection rate is needed).
package admission

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limits are the static thresholds the guard enforces.
type Limits struct {
	MaxConnections    int
	MaxGoroutines     int
	CPURejectPercent  float64
	MemoryLimitBytes  int64
	MaxConnsPerSecond float64
}

// DefaultLimits returns sensible defaults for a single-process deployment.
func DefaultLimits() Limits {
	return Limits{
		MaxConnections:    10000,
		MaxGoroutines:     20000,
		CPURejectPercent:  95.0,
		MemoryLimitBytes:  2 << 30, // 2 GiB
		MaxConnsPerSecond: 500,
	}
}

// Guard decides whether a new connection should be admitted.
type Guard struct {
	limits Limits
	log    *zap.Logger

	connLimiter *rate.Limiter

	currentConns  *int64
	currentCPU    atomic.Value // float64
	currentMemory atomic.Value // int64
}

// New creates a Guard. currentConns must point at the server's live
// connection counter, updated via atomic.Add as connections open and close.
func New(limits Limits, log *zap.Logger, currentConns *int64) *Guard {
	g := &Guard{
		limits:       limits,
		log:          log,
		connLimiter:  rate.NewLimiter(rate.Limit(limits.MaxConnsPerSecond), int(limits.MaxConnsPerSecond)*2),
		currentConns: currentConns,
	}
	g.currentCPU.Store(0.0)
	g.currentMemory.Store(int64(0))
	return g
}

// Admit reports whether a new connection should be accepted, and if not,
// a human-readable reason suitable for logging (never sent to the client:
// the accept loop closes the connection before any protocol bytes are
// exchanged).
func (g *Guard) Admit() (ok bool, reason string) {
	if !g.connLimiter.Allow() {
		return false, "connection rate limit exceeded"
	}

	conns := atomic.LoadInt64(g.currentConns)
	if conns >= int64(g.limits.MaxConnections) {
		return false, fmt.Sprintf("at max connections (%d)", g.limits.MaxConnections)
	}

	cpuPct := g.currentCPU.Load().(float64)
	if cpuPct > g.limits.CPURejectPercent {
		return false, fmt.Sprintf("cpu %.1f%% > %.1f%%", cpuPct, g.limits.CPURejectPercent)
	}

	mem := g.currentMemory.Load().(int64)
	if g.limits.MemoryLimitBytes > 0 && mem > g.limits.MemoryLimitBytes {
		return false, "memory limit exceeded"
	}

	if goros := runtime.NumGoroutine(); goros > g.limits.MaxGoroutines {
		return false, fmt.Sprintf("goroutine limit exceeded (%d > %d)", goros, g.limits.MaxGoroutines)
	}

	return true, ""
}

// sample refreshes the CPU/memory readings used by Admit.
func (g *Guard) sample() {
	pct, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		g.log.Warn("admission: failed to sample cpu", zap.Error(err))
	} else if len(pct) > 0 {
		g.currentCPU.Store(pct[0])
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	g.currentMemory.Store(int64(mem.Alloc))
}

// Run samples resource usage on interval until ctx is canceled. Intended to
// run in its own goroutine for the lifetime of the process.
func (g *Guard) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.sample()
	for {
		select {
		case <-ticker.C:
			g.sample()
		case <-ctx.Done():
			return
		}
	}
}
