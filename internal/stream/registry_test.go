package stream

import (
	"testing"
	"time"
)

func TestRegistryLifecycle(t *testing.T) {
	registry := NewRegistry(testLogger())

	if registry.ActiveCount() != 0 {
		t.Fatalf("New registry should be empty, got %d", registry.ActiveCount())
	}

	base := time.Now()
	registry.Add(SessionInfo{ID: "b", Kind: "playback", Resource: "tone.wav", StartTime: base.Add(time.Second)})
	registry.Add(SessionInfo{ID: "a", Kind: "echo", StartTime: base})

	if registry.ActiveCount() != 2 {
		t.Errorf("ActiveCount = %d, want 2", registry.ActiveCount())
	}
	if registry.TotalStarted() != 2 {
		t.Errorf("TotalStarted = %d, want 2", registry.TotalStarted())
	}

	snapshot := registry.Snapshot()
	if len(snapshot) != 2 || snapshot[0].ID != "a" || snapshot[1].ID != "b" {
		t.Errorf("Snapshot not ordered by start time: %+v", snapshot)
	}

	registry.Remove("a")
	registry.Remove("a") // removing twice is harmless

	if registry.ActiveCount() != 1 {
		t.Errorf("ActiveCount after remove = %d, want 1", registry.ActiveCount())
	}
	if registry.TotalStarted() != 2 {
		t.Errorf("TotalStarted must not decrease, got %d", registry.TotalStarted())
	}
}
