package tracker

import "testing"

func TestDedupSet_ContainsAfterAdd(t *testing.T) {
	d := newDedupSet(4)
	if d.Contains("a") {
		t.Fatal("expected empty set to not contain 'a'")
	}
	d.Add("a")
	if !d.Contains("a") {
		t.Fatal("expected set to contain 'a' after Add")
	}
}

func TestDedupSet_AddIsIdempotent(t *testing.T) {
	d := newDedupSet(4)
	d.Add("a")
	d.Add("a")
	if d.queue.Size() != 1 {
		t.Fatalf("expected size 1 after duplicate Add, got %d", d.queue.Size())
	}
}

func TestDedupSet_EvictsOldestWhenFull(t *testing.T) {
	d := newDedupSet(2)
	d.Add("a")
	d.Add("b")
	d.Add("c")

	if d.Contains("a") {
		t.Fatal("expected 'a' to be evicted once capacity exceeded")
	}
	if !d.Contains("b") || !d.Contains("c") {
		t.Fatal("expected 'b' and 'c' to remain in the set")
	}
}

func TestNewDedupSet_DefaultsCapacity(t *testing.T) {
	d := newDedupSet(0)
	if d.queue == nil {
		t.Fatal("expected a non-nil queue with default capacity")
	}
	for i := 0; i < 1001; i++ {
		d.Add(string(rune('a')) + string(rune(i)))
	}
	if d.queue.Size() > 1000 {
		t.Fatalf("expected default capacity of 1000, queue holds %d", d.queue.Size())
	}
}
