package stream

import "sync"

// streamLocks serializes mutations per stream id. Operations on distinct
// streams proceed concurrently; two operations on the same stream never
// interleave. Entries are never reclaimed; the set of streams a node
// touches between restarts is small enough that this does not matter.
type streamLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newStreamLocks() *streamLocks {
	return &streamLocks{locks: make(map[int64]*sync.Mutex)}
}

// acquire locks the given stream and returns the unlock function.
func (l *streamLocks) acquire(streamID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[streamID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[streamID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
