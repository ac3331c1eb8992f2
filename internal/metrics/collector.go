package metrics

import (
	"sort"
	"sync"
	"time"
)

// Outcome kinds recorded by the dispatch loop.
const (
	KindSwitched = "switched"
	KindSkipped  = "skipped"
	KindDryRun   = "dry-run"
	KindError    = "error"
)

// Collector aggregates counters for decision cycles.
type Collector struct {
	mu       sync.RWMutex
	enabled  bool
	started  time.Time
	outcomes map[string]*OutcomeMetrics
}

// OutcomeMetrics counts cycles that ended with the same kind and detail.
type OutcomeMetrics struct {
	Kind   string    `json:"kind"`
	Detail string    `json:"detail"`
	Count  uint64    `json:"count"`
	Last   time.Time `json:"last,omitempty"`
}

// Totals aggregates counters across all outcomes in a snapshot.
type Totals struct {
	Cycles   uint64 `json:"cycles"`
	Switched uint64 `json:"switched"`
	Skipped  uint64 `json:"skipped"`
	Errors   uint64 `json:"errors"`
}

// Snapshot is the serializable view of the current metrics state.
type Snapshot struct {
	Enabled  bool             `json:"enabled"`
	Started  time.Time        `json:"started,omitempty"`
	Totals   Totals           `json:"totals"`
	Outcomes []OutcomeMetrics `json:"outcomes,omitempty"`
}

// NewCollector returns a collector with the provided opt-in state.
func NewCollector(enabled bool) *Collector {
	c := &Collector{}
	c.SetEnabled(enabled)
	return c
}

// Enabled reports whether collection is currently active.
func (c *Collector) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles collection, resetting counters when enabling.
func (c *Collector) SetEnabled(enabled bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	if !enabled {
		c.outcomes = nil
		c.started = time.Time{}
		return
	}
	c.started = time.Now()
	c.outcomes = make(map[string]*OutcomeMetrics)
}

// RecordSwitch counts a cycle that sent a layout command.
func (c *Collector) RecordSwitch(layout string) {
	c.record(KindSwitched, layout)
}

// RecordSkip counts a cycle that ended without a command.
func (c *Collector) RecordSkip(reason string) {
	c.record(KindSkipped, reason)
}

// RecordDryRun counts a cycle whose command was suppressed.
func (c *Collector) RecordDryRun(layout string) {
	c.record(KindDryRun, layout)
}

// RecordError counts a cycle aborted by an error of the given class.
func (c *Collector) RecordError(class string) {
	c.record(KindError, class)
}

func (c *Collector) record(kind, detail string) {
	if c == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if c.outcomes == nil {
		c.outcomes = make(map[string]*OutcomeMetrics)
	}
	key := kind + ":" + detail
	m, exists := c.outcomes[key]
	if !exists {
		m = &OutcomeMetrics{Kind: kind, Detail: detail}
		c.outcomes[key] = m
	}
	m.Count++
	m.Last = now
}

// Snapshot returns the current counters for serialization or display.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Enabled: c.enabled}
	if !c.enabled {
		return snap
	}
	snap.Started = c.started
	if len(c.outcomes) == 0 {
		return snap
	}
	snap.Outcomes = make([]OutcomeMetrics, 0, len(c.outcomes))
	for _, m := range c.outcomes {
		if m == nil {
			continue
		}
		clone := *m
		snap.Outcomes = append(snap.Outcomes, clone)
		snap.Totals.Cycles += clone.Count
		switch clone.Kind {
		case KindSwitched, KindDryRun:
			snap.Totals.Switched += clone.Count
		case KindSkipped:
			snap.Totals.Skipped += clone.Count
		case KindError:
			snap.Totals.Errors += clone.Count
		}
	}
	sort.Slice(snap.Outcomes, func(i, j int) bool {
		if snap.Outcomes[i].Kind == snap.Outcomes[j].Kind {
			return snap.Outcomes[i].Detail < snap.Outcomes[j].Detail
		}
		return snap.Outcomes[i].Kind < snap.Outcomes[j].Kind
	})
	return snap
}
