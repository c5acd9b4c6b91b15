package crawler

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// ThrottleLevel indicates memory pressure severity.
type ThrottleLevel int

const (
	// ThrottleNormal means heap use is under 75% of the limit.
	ThrottleNormal ThrottleLevel = iota
	// ThrottleWarning means heap use is between 75% and 90% of the limit.
	ThrottleWarning
	// ThrottleCritical means heap use is at or above 90% of the limit.
	ThrottleCritical
)

func (l ThrottleLevel) String() string {
	switch l {
	case ThrottleWarning:
		return "warning"
	case ThrottleCritical:
		return "critical"
	default:
		return "normal"
	}
}

// MemoryWatcher samples heap use against a budget and reports level changes.
type MemoryWatcher struct {
	mu         sync.Mutex
	limitBytes int64
	read       func() uint64
	callback   func(level ThrottleLevel)
	lastLevel  ThrottleLevel
}

// NewMemoryWatcher creates a watcher for a budget of limitMB. A nil read
// samples runtime heap allocation.
func NewMemoryWatcher(limitMB int64, read func() uint64) *MemoryWatcher {
	if read == nil {
		read = heapAlloc
	}
	return &MemoryWatcher{
		limitBytes: limitMB * 1024 * 1024,
		read:       read,
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// ApplySoftLimit hands the budget to the runtime as its soft memory limit.
func (m *MemoryWatcher) ApplySoftLimit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limitBytes > 0 {
		debug.SetMemoryLimit(m.limitBytes)
	}
}

// Check samples heap use and returns it as a percentage of the budget along
// with the resulting level. The callback fires when the level changes.
func (m *MemoryWatcher) Check() (usedPercent float64, level ThrottleLevel) {
	m.mu.Lock()
	limit := m.limitBytes
	m.mu.Unlock()
	if limit <= 0 {
		return 0, ThrottleNormal
	}

	usedPercent = float64(m.read()) / float64(limit) * 100
	switch {
	case usedPercent >= 90:
		level = ThrottleCritical
	case usedPercent >= 75:
		level = ThrottleWarning
	default:
		level = ThrottleNormal
	}

	m.mu.Lock()
	changed := level != m.lastLevel
	m.lastLevel = level
	callback := m.callback
	m.mu.Unlock()

	if changed && callback != nil {
		callback(level)
	}
	return usedPercent, level
}

// SetThrottleCallback registers cb for level changes.
func (m *MemoryWatcher) SetThrottleCallback(cb func(level ThrottleLevel)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}
