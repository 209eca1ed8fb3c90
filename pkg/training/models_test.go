package training

import "testing"

func TestIsTerminal(t *testing.T) {
	terminal := []string{StatusCompleted, StatusFailed, StatusStopped}
	for _, s := range terminal {
		if !IsTerminal(s) {
			t.Fatalf("%q should be terminal", s)
		}
	}
	for _, s := range []string{StatusRunning, StatusPaused} {
		if IsTerminal(s) {
			t.Fatalf("%q should not be terminal", s)
		}
	}
}

func TestProgressClamping(t *testing.T) {
	s := &Session{TotalEpochs: 0, CurrentEpoch: 5}
	if got := s.Progress(); got != 0 {
		t.Fatalf("progress with zero total = %f, want 0", got)
	}
	s = &Session{TotalEpochs: 4, CurrentEpoch: 2}
	if got := s.Progress(); got != 0.5 {
		t.Fatalf("progress = %f, want 0.5", got)
	}
	s = &Session{TotalEpochs: 4, CurrentEpoch: 9}
	if got := s.Progress(); got != 1 {
		t.Fatalf("progress = %f, want clamped to 1", got)
	}
}
