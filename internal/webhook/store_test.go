package webhook

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestStoreAddAndList(t *testing.T) {
	store := NewStore(10)

	first := store.Add("POST", json.RawMessage(`{"status":"answered"}`))
	second := store.Add("POST", json.RawMessage(`{"status":"completed"}`))

	if store.Count() != 2 {
		t.Fatalf("Count = %d, want 2", store.Count())
	}

	entries := store.List()
	if entries[0].ID != second.ID || entries[1].ID != first.ID {
		t.Error("List must return entries newest first")
	}

	if first.ID == second.ID {
		t.Error("Entries must get distinct IDs")
	}
}

func TestStoreEvictsOldest(t *testing.T) {
	store := NewStore(3)

	for i := 0; i < 5; i++ {
		store.Add("POST", json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i)))
	}

	if store.Count() != 3 {
		t.Fatalf("Count = %d, want 3", store.Count())
	}

	entries := store.List()
	if string(entries[0].Payload) != `{"seq":4}` || string(entries[2].Payload) != `{"seq":2}` {
		t.Errorf("Oldest entries were not evicted: %v", entries)
	}
}

func TestStoreSearch(t *testing.T) {
	store := NewStore(10)
	store.Add("POST", json.RawMessage(`{"status":"answered","from":"15550001111"}`))
	store.Add("POST", json.RawMessage(`{"status":"completed","from":"15550002222"}`))
	store.Add("GET", nil)

	if got := len(store.Search("answered")); got != 1 {
		t.Errorf("Search(answered) returned %d entries, want 1", got)
	}
	if got := len(store.Search("1555000")); got != 2 {
		t.Errorf("Search(1555000) returned %d entries, want 2", got)
	}
	if got := len(store.Search("no-such-value")); got != 0 {
		t.Errorf("Search(no-such-value) returned %d entries, want 0", got)
	}
	if got := len(store.Search("")); got != 3 {
		t.Errorf("Empty query must match everything, got %d", got)
	}
}
