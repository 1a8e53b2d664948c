package journal

import "sync"

// pool.go: entry/buffer recycling so a busy engine doesn't hand the GC a
// fresh allocation per execute/commit event.

var (
	entryPool = sync.Pool{
		New: func() interface{} {
			return &Entry{Payload: make([]byte, 0, 16)}
		},
	}
)

// AcquireEntry obtains a recycled Entry from the pool.
func AcquireEntry() *Entry {
	return entryPool.Get().(*Entry)
}

// ReleaseEntry zeroes and returns an Entry to the pool.
func ReleaseEntry(e *Entry) {
	e.Header = Header{}
	e.Payload = e.Payload[:0]
	entryPool.Put(e)
}
