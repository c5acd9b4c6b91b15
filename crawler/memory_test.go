package crawler

import (
	"sync/atomic"
	"testing"
)

func TestMemoryWatcher_Levels(t *testing.T) {
	tests := []struct {
		name    string
		usedMB  uint64
		want    ThrottleLevel
		percent float64
	}{
		{"normal", 50, ThrottleNormal, 50},
		{"warning", 75, ThrottleWarning, 75},
		{"critical", 95, ThrottleCritical, 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			used := tt.usedMB * 1024 * 1024
			mw := NewMemoryWatcher(100, func() uint64 { return used })
			percent, level := mw.Check()
			if level != tt.want {
				t.Errorf("level = %v, want %v", level, tt.want)
			}
			if percent != tt.percent {
				t.Errorf("percent = %v, want %v", percent, tt.percent)
			}
		})
	}
}

func TestMemoryWatcher_NoLimit(t *testing.T) {
	mw := NewMemoryWatcher(0, func() uint64 { return 1 << 40 })
	if _, level := mw.Check(); level != ThrottleNormal {
		t.Errorf("level = %v, want normal without a limit", level)
	}
}

func TestMemoryWatcher_CallbackOnChange(t *testing.T) {
	var used atomic.Uint64
	mw := NewMemoryWatcher(100, used.Load)

	var levels []ThrottleLevel
	mw.SetThrottleCallback(func(level ThrottleLevel) {
		levels = append(levels, level)
	})

	for _, mb := range []uint64{10, 20, 95, 96, 10} {
		used.Store(mb * 1024 * 1024)
		mw.Check()
	}

	want := []ThrottleLevel{ThrottleCritical, ThrottleNormal}
	if len(levels) != len(want) {
		t.Fatalf("callbacks = %v, want %v", levels, want)
	}
	for i := range want {
		if levels[i] != want[i] {
			t.Errorf("callback[%d] = %v, want %v", i, levels[i], want[i])
		}
	}
}

func TestMemoryWatcher_RuntimeSample(t *testing.T) {
	mw := NewMemoryWatcher(64*1024, nil)
	percent, _ := mw.Check()
	if percent <= 0 {
		t.Errorf("percent = %v, want > 0 from runtime sample", percent)
	}
}

func TestThrottleLevel_String(t *testing.T) {
	if ThrottleCritical.String() != "critical" || ThrottleWarning.String() != "warning" || ThrottleNormal.String() != "normal" {
		t.Error("unexpected ThrottleLevel strings")
	}
}
