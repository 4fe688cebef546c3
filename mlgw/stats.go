package mlgw

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// CommandStats tracks min/mean/max round-trip latency per named command.
// Unlike a single fixed metric, this keys off whatever name a caller
// samples under, because the session's command surface has more than one
// reply-bearing round trip worth timing (the login handshake and the
// Request Serial Number call both wait on a matching reply; future
// reply-bearing commands get a metric for free just by calling Sample with
// a new name).
type CommandStats struct {
	mu     sync.RWMutex
	byName map[string]*commandLatency
}

type commandLatency struct {
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

// NewCommandStats returns an empty, ready-to-use CommandStats.
func NewCommandStats() *CommandStats {
	return &CommandStats{byName: make(map[string]*commandLatency)}
}

// Sample records one observed round-trip duration for the named command,
// creating that command's running tally on first use.
func (c *CommandStats) Sample(name string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.byName[name]
	if !ok {
		m = &commandLatency{min: d, max: d}
		c.byName[name] = m
	}
	m.count++
	m.total += d
	if d < m.min {
		m.min = d
	}
	if d > m.max {
		m.max = d
	}
}

// Count and Mean report the running tally for name. Both return zero
// values for a name that has never been sampled. Min and max are only
// reported through String.
func (c *CommandStats) Count(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.byName[name]; ok {
		return m.count
	}
	return 0
}

func (c *CommandStats) Mean(name string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byName[name]
	if !ok || m.count == 0 {
		return 0
	}
	return time.Duration(m.total.Nanoseconds() / m.count)
}

// String renders every tracked command's sample count, mean, min, and max,
// one line per command, in name-sorted order so output is stable.
func (c *CommandStats) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.byName) == 0 {
		return "command stats: no samples yet"
	}

	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := "command stats:"
	for _, name := range names {
		m := c.byName[name]
		mean := time.Duration(m.total.Nanoseconds() / m.count)
		out += fmt.Sprintf("\n  %s: samples=%d mean=%v min=%v max=%v", name, m.count, mean, m.min, m.max)
	}
	return out
}
