package tracker

import "github.com/hazyhaar/utrack/internal/util"

// dedupSet is a bounded FIFO set of event ids, capacity 1000 by default,
// used to drop events already queued or already delivered.
type dedupSet struct {
	queue *util.Queue[string]
	seen  map[string]struct{}
}

func newDedupSet(capacity int) *dedupSet {
	if capacity <= 0 {
		capacity = 1000
	}
	return &dedupSet{queue: util.NewQueue[string](capacity), seen: make(map[string]struct{}, capacity)}
}

// Contains reports whether id has already been recorded.
func (d *dedupSet) Contains(id string) bool {
	_, ok := d.seen[id]
	return ok
}

// Add records id, evicting the oldest entry first if the set is full.
func (d *dedupSet) Add(id string) {
	if d.Contains(id) {
		return
	}
	if d.queue.IsFull() {
		if old, ok := d.queue.Dequeue(); ok {
			delete(d.seen, old)
		}
	}
	d.queue.Enqueue(id)
	d.seen[id] = struct{}{}
}
