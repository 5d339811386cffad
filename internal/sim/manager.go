package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/feed"
	"tradesim/internal/marketdata"
	"tradesim/internal/strategy"
)

// ErrMultipleStrategies reports an attempt to enable a second strategy while
// one is already active.
var ErrMultipleStrategies = errors.New("another live strategy is already active")

// pollInterval is how often the run loop looks for newly enabled strategies.
const pollInterval = 250 * time.Millisecond

// ManagerConfig fixes the parameters shared by every live run.
type ManagerConfig struct {
	Timeframe       domain.Timeframe
	SessionStart    time.Duration
	MaxWindowBars   int
	StartingBalance float64
}

type runnerEntry struct {
	runner  *Runner
	enabled bool
	started bool
}

// Manager owns the live-trading lifecycle: enabling strategies, launching
// their runners against the shared feed, and exposing their results. At most
// one strategy may be active at a time.
type Manager struct {
	src     marketdata.LiveSource
	catalog *strategy.Catalog
	cfg     ManagerConfig
	log     *slog.Logger

	mu      sync.Mutex
	entries map[string]*runnerEntry
	wg      sync.WaitGroup
}

// NewManager creates a Manager streaming from src and resolving strategy
// names through catalog.
func NewManager(src marketdata.LiveSource, catalog *strategy.Catalog, cfg ManagerConfig, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.SessionStart == 0 {
		cfg.SessionStart = feed.DefaultSessionStart
	}
	if cfg.MaxWindowBars == 0 {
		cfg.MaxWindowBars = feed.DefaultMaxBars
	}
	return &Manager{
		src:     src,
		catalog: catalog,
		cfg:     cfg,
		log:     log.With("component", "live-manager"),
		entries: make(map[string]*runnerEntry),
	}
}

// Enable marks strategyName for live trading on symbol. A zero balance or
// timeframe falls back to the manager's configured defaults. The strategy is
// built up front so unknown names and bad definitions fail here rather than
// inside the run loop. Enabling fails with ErrMultipleStrategies while
// another strategy is active.
func (m *Manager) Enable(strategyName, symbol string, balance float64, tf domain.Timeframe) error {
	strat, err := m.catalog.Build(strategyName)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for name, e := range m.entries {
		if name != strategyName && e.enabled && !terminal(e.runner.State()) {
			return fmt.Errorf("%w: %q", ErrMultipleStrategies, name)
		}
	}
	if e, ok := m.entries[strategyName]; ok && e.enabled && !terminal(e.runner.State()) {
		// Already enabled; keep the existing runner.
		return nil
	}

	if balance == 0 {
		balance = m.cfg.StartingBalance
	}
	if tf == (domain.Timeframe{}) {
		tf = m.cfg.Timeframe
	}
	m.entries[strategyName] = &runnerEntry{
		runner: NewRunner(strategyName, symbol, strat, tf,
			m.cfg.SessionStart, m.cfg.MaxWindowBars, balance, m.log),
		enabled: true,
	}
	m.log.Info("strategy enabled", "strategy", strategyName, "symbol", symbol, "balance", balance, "timeframe", tf.String())
	return nil
}

// Disable stops the named strategy's runner and marks it disabled. Disabling
// an unknown strategy fails with ErrUnknownStrategy.
func (m *Manager) Disable(strategyName string) error {
	m.mu.Lock()
	e, ok := m.entries[strategyName]
	if ok {
		e.enabled = false
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", strategy.ErrUnknownStrategy, strategyName)
	}
	e.runner.Stop()
	m.log.Info("strategy disabled", "strategy", strategyName)
	return nil
}

// Results reports the current result of every strategy the manager has seen,
// keyed by strategy name. Runners still processing events report their
// partial performance.
func (m *Manager) Results() map[string]*Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]*Result, len(m.entries))
	for name, e := range m.entries {
		out[name] = e.runner.Results()
	}
	return out
}

// StopAll stops every runner and clears the runner set; subsequent Results
// calls report nothing until a strategy is enabled again. Errors stopping one
// runner never prevent stopping the rest.
func (m *Manager) StopAll() {
	m.mu.Lock()
	entries := make([]*runnerEntry, 0, len(m.entries))
	for name, e := range m.entries {
		e.enabled = false
		entries = append(entries, e)
		delete(m.entries, name)
	}
	m.mu.Unlock()

	for _, e := range entries {
		func() {
			defer func() {
				if v := recover(); v != nil {
					m.log.Error("stopping runner panicked", "err", v)
				}
			}()
			e.runner.Stop()
		}()
	}
}

// RunLoop launches runners for enabled strategies until ctx is cancelled,
// polling for newly enabled entries. On cancellation it stops all runners and
// waits for them to drain.
func (m *Manager) RunLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.StopAll()
			m.wg.Wait()
			return
		case <-ticker.C:
			m.launchPending(ctx)
		}
	}
}

func (m *Manager) launchPending(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, e := range m.entries {
		if !e.enabled || e.started {
			continue
		}
		e.started = true
		r := e.runner
		m.wg.Add(1)
		go func(name string) {
			defer m.wg.Done()
			if err := r.Run(ctx, m.src); err != nil {
				m.log.Error("runner exited with error", "strategy", name, "err", err)
			}
		}(name)
	}
}

func terminal(s RunState) bool {
	switch s {
	case StateCompleted, StateStopped, StateFailed:
		return true
	}
	return false
}
