package clock

import (
	"testing"
	"time"
)

func TestSystem_NowIsUTC(t *testing.T) {
	now := System{}.Now()
	if now.Location() != time.UTC {
		t.Fatalf("System.Now() location = %v, want UTC", now.Location())
	}
}

func TestManual_AdvanceAndSet(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewManual(base)
	if !m.Now().Equal(base) {
		t.Fatalf("Now() = %v, want %v", m.Now(), base)
	}

	m.Advance(5 * time.Second)
	if got := m.Now(); !got.Equal(base.Add(5 * time.Second)) {
		t.Fatalf("after Advance(5s): %v", got)
	}

	jump := base.Add(time.Hour)
	m.Set(jump)
	if !m.Now().Equal(jump) {
		t.Fatalf("after Set: %v, want %v", m.Now(), jump)
	}
}
