package vad

import (
	"testing"
)

func TestMonitor_Observe_SilenceWindow(t *testing.T) {
	m := NewMonitor(Config{
		Enabled:          true,
		SilenceThreshold: 0.1,
		SilenceTicks:     20, // 2s at 10 ticks/s
	})

	// 19 silent ticks must not trigger
	for i := 0; i < 19; i++ {
		if m.Observe(0.01) {
			t.Fatalf("auto-stop fired early on tick %d", i)
		}
	}
	if m.SilenceRun() != 19 {
		t.Errorf("expected silence run 19, got %d", m.SilenceRun())
	}

	// the 20th completes the window
	if !m.Observe(0.01) {
		t.Error("expected auto-stop on the 20th silent tick")
	}

	// and the counter resets after signaling
	if m.SilenceRun() != 0 {
		t.Errorf("expected silence run reset after signal, got %d", m.SilenceRun())
	}
}

func TestMonitor_Observe_LoudTickResetsRun(t *testing.T) {
	m := NewMonitor(Config{
		Enabled:          true,
		SilenceThreshold: 0.1,
		SilenceTicks:     10,
	})

	for i := 0; i < 9; i++ {
		m.Observe(0.01)
	}
	if m.Observe(0.5) {
		t.Error("loud tick must not trigger auto-stop")
	}
	if m.SilenceRun() != 0 {
		t.Errorf("expected loud tick to reset silence run, got %d", m.SilenceRun())
	}

	// the window starts over
	for i := 0; i < 9; i++ {
		if m.Observe(0.01) {
			t.Fatalf("auto-stop fired early on tick %d after reset", i)
		}
	}
	if !m.Observe(0.01) {
		t.Error("expected auto-stop once the window completed again")
	}
}

func TestMonitor_Observe_ThresholdBoundary(t *testing.T) {
	m := NewMonitor(Config{
		Enabled:          true,
		SilenceThreshold: 0.1,
		SilenceTicks:     3,
	})

	// exactly at the threshold counts as voice
	m.Observe(0.1)
	if m.SilenceRun() != 0 {
		t.Errorf("level == threshold must not count as silence, run = %d", m.SilenceRun())
	}
}

func TestMonitor_Observe_Disabled(t *testing.T) {
	m := NewMonitor(Config{
		Enabled:          false,
		SilenceThreshold: 0.9,
		SilenceTicks:     1,
	})

	// nothing ever happens when VAD is off, not even accounting
	for i := 0; i < 100; i++ {
		if m.Observe(0.0) {
			t.Fatalf("disabled monitor fired on tick %d", i)
		}
	}
	if m.SilenceRun() != 0 {
		t.Errorf("disabled monitor accumulated a silence run of %d", m.SilenceRun())
	}
}

func TestMonitor_Reset(t *testing.T) {
	m := NewMonitor(Config{
		Enabled:          true,
		SilenceThreshold: 0.1,
		SilenceTicks:     10,
	})

	for i := 0; i < 5; i++ {
		m.Observe(0.01)
	}
	m.Reset()
	if m.SilenceRun() != 0 {
		t.Errorf("expected silence run 0 after reset, got %d", m.SilenceRun())
	}
}
