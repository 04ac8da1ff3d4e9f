package offline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/utrack/event"
)

func openTestBuffer(t *testing.T, maxEvents int, expireTime time.Duration) *Buffer {
	t.Helper()
	dir := t.TempDir()
	b, err := Open(Config{Path: filepath.Join(dir, "offline.db"), MaxEvents: maxEvents, ExpireTime: expireTime})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := b.EnsureTable(context.Background()); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBuffer_SaveAndLoadRoundTrip(t *testing.T) {
	b := openTestBuffer(t, 500, 24*time.Hour)
	ctx := context.Background()

	events := []event.TrackEvent{{ID: "a", Type: event.TypeClick}, {ID: "b", Type: event.TypeScroll}}
	if err := b.Save(ctx, events); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := b.LoadAndClear(ctx)
	if err != nil {
		t.Fatalf("LoadAndClear: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
}

func TestBuffer_LoadAndClearEmptiesTable(t *testing.T) {
	b := openTestBuffer(t, 500, 24*time.Hour)
	ctx := context.Background()

	b.Save(ctx, []event.TrackEvent{{ID: "a", Type: event.TypeClick}})
	b.LoadAndClear(ctx)

	got, err := b.LoadAndClear(ctx)
	if err != nil {
		t.Fatalf("LoadAndClear: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected buffer to be empty on second load, got %d events", len(got))
	}
}

func TestBuffer_TrimEnforcesMaxEvents(t *testing.T) {
	b := openTestBuffer(t, 2, 24*time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := b.Save(ctx, []event.TrackEvent{{ID: string(rune('a' + i)), Type: event.TypeClick}}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := b.LoadAndClear(ctx)
	if err != nil {
		t.Fatalf("LoadAndClear: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected trim to cap at 2 events, got %d", len(got))
	}
}

func TestBuffer_SaveEmptySliceNoOp(t *testing.T) {
	b := openTestBuffer(t, 500, 24*time.Hour)
	if err := b.Save(context.Background(), nil); err != nil {
		t.Fatalf("expected nil error on empty save, got %v", err)
	}
}
