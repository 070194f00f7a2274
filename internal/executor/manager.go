package executor

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/seriarr/seriarr/internal/config"
)

// Purpose selects a pool tuned for a workload class. Callers request a pool
// by purpose only; they never construct pools directly, so global concurrency
// can be retuned without touching call sites.
type Purpose string

const (
	// PurposeNetwork is for API-bound work: sized well above core count to
	// absorb latency while an external rate limit bounds throughput.
	PurposeNetwork Purpose = "network"
	// PurposeDisk is for disk-scan work, sized around 1.5x physical cores.
	PurposeDisk Purpose = "disk"
	// PurposeGeneral is for mixed work, sized around 1.2x physical cores.
	PurposeGeneral Purpose = "general"
)

// Network pool size bounds.
const (
	minNetworkWorkers = 8
	maxNetworkWorkers = 64
)

// Manager lazily creates and memoizes the process-wide worker pools.
type Manager struct {
	mu sync.Mutex

	cfg      config.ExecutorConfig
	logger   *slog.Logger
	pools    map[Purpose]*Pool
	cores    int
	shutdown bool
}

// NewManager creates a pool manager. Pools are created on first request.
func NewManager(cfg config.ExecutorConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		logger: logger,
		pools:  make(map[Purpose]*Pool),
		cores:  physicalCores(),
	}
}

// Pool returns the memoized pool for the given purpose, creating it lazily.
func (m *Manager) Pool(purpose Purpose) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil, ErrPoolClosed
	}

	if p, ok := m.pools[purpose]; ok {
		return p, nil
	}

	size, err := m.sizeFor(purpose)
	if err != nil {
		return nil, err
	}

	p := NewPool(string(purpose), size, m.logger)
	m.pools[purpose] = p

	m.logger.Info("created worker pool",
		slog.String("purpose", string(purpose)),
		slog.Int("workers", size),
		slog.Int("physical_cores", m.cores))

	return p, nil
}

// Active returns the purposes of the pools created so far.
func (m *Manager) Active() []Purpose {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Purpose, 0, len(m.pools))
	for p := range m.pools {
		out = append(out, p)
	}
	return out
}

// Shutdown stops all pools. It is idempotent; pools created afterwards are
// refused.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	pools := make([]*Pool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.Unlock()

	for _, p := range pools {
		p.Shutdown()
	}

	m.logger.Info("pool manager shut down", slog.Int("pools", len(pools)))
}

// sizeFor computes the worker count for a purpose.
func (m *Manager) sizeFor(purpose Purpose) (int, error) {
	switch purpose {
	case PurposeNetwork:
		n := m.cfg.NetworkWorkers
		if n < minNetworkWorkers {
			n = minNetworkWorkers
		}
		if n > maxNetworkWorkers {
			n = maxNetworkWorkers
		}
		return n, nil
	case PurposeDisk:
		return scaled(m.cores, m.cfg.DiskFactor, 1.5), nil
	case PurposeGeneral:
		return scaled(m.cores, m.cfg.GeneralFactor, 1.2), nil
	default:
		return 0, fmt.Errorf("unknown pool purpose: %q", purpose)
	}
}

// scaled multiplies the core count by factor, with a floor of two workers.
func scaled(cores int, factor, fallback float64) int {
	if factor <= 0 {
		factor = fallback
	}
	n := int(math.Round(float64(cores) * factor))
	if n < 2 {
		n = 2
	}
	return n
}

// physicalCores returns the physical core count, falling back to
// runtime.NumCPU when detection fails.
func physicalCores() int {
	if n, err := cpu.Counts(false); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}
