package invalidation

import "sync/atomic"

// versionCounter is an in-process monotonic counter bumped on every
// knowledge_base_updated event. It is process-local: in a multi-process
// deployment the version would live in the KV store instead, but a single
// process's retrieval cache is invalidated correctly either way since the
// counter only needs to change, never be globally synchronized, to make
// old keys unreachable.
type versionCounter struct {
	v int64
}

func newVersionCounter() *versionCounter {
	return &versionCounter{v: 1}
}

func (c *versionCounter) bump() {
	atomic.AddInt64(&c.v, 1)
}

func (c *versionCounter) get() int64 {
	return atomic.LoadInt64(&c.v)
}
