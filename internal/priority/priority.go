// Package priority gates report delivery so only escalations get through.
package priority

import (
	"sync"
	"time"

	"github.com/madmonkey48/kh-allert-radar/internal/clock"
	"github.com/madmonkey48/kh-allert-radar/internal/config"
)

// Gate admits a report only when it matches or exceeds the last admitted level.
// The remembered level expires after a quiet period so stale escalations do
// not suppress new activity.
// Params: reset window from config and a clock source.
// Returns: escalation-only admission decisions.
type Gate struct {
	mu        sync.Mutex
	reset     time.Duration
	lastLevel int
	lastAt    time.Time
	clk       clock.Clock
}

// New builds a gate from configuration.
// Params: cfg holds the reset window; clk supplies current time.
// Returns: gate with no remembered level.
func New(cfg config.PriorityConfig, clk clock.Clock) *Gate {
	return &Gate{
		reset: time.Duration(cfg.ResetSec) * time.Second,
		clk:   clk,
	}
}

// Admit decides whether a report at the given level may be delivered.
// Params: level is the severity of the incoming report.
// Returns: true when the report escalates or matches the remembered level.
func (g *Gate) Admit(level int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clk.Now()
	if g.lastLevel > 0 && now.Sub(g.lastAt) > g.reset {
		g.lastLevel = 0
	}
	if level < g.lastLevel {
		return false
	}
	g.lastLevel = level
	g.lastAt = now
	return true
}

// Clear forgets the remembered level, typically when a session ends.
// Params: none.
// Returns: gate back to its initial state.
func (g *Gate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastLevel = 0
	g.lastAt = time.Time{}
}
