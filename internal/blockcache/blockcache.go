// Package blockcache implements the translation-block cache: a
// fixed-capacity, insertion-safe map from the emulator's opaque block id
// to the parsed instruction sequence for that block (spec.md §4.4).
package blockcache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/qemu-qce/qce/internal/ir"
)

// DefaultCapacity matches the paper prototype's compile-time constant
// (spec.md §4.4: "paper prototype: 2²⁴ entries").
const DefaultCapacity = 1 << 24

// ErrCapacityExceeded is returned by GetOrParse when inserting a new block
// would exceed the cache's capacity. spec.md §4.4 is explicit that
// eviction-and-reparse is not attempted: "at capacity the system fails
// fatally rather than silently losing coverage." Callers are expected to
// treat this as fatal rather than recover and continue.
var ErrCapacityExceeded = errors.New("blockcache: capacity exceeded")

// Cache is the translation-block cache. It is Goroutine-safe, matching the
// concurrency contract of the teacher's compilation cache; this engine
// itself is single-threaded (spec.md §1 Non-goals: "single guest thread"),
// but the emulator binding that owns a Cache is free to call it from
// whatever goroutine handles the on_ir_optimized callback.
type Cache struct {
	capacity int

	mu      sync.Mutex
	entries map[ir.BlockID]*ir.Block
}

// New constructs a Cache with the given capacity. A capacity of 0 selects
// DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{capacity: capacity, entries: make(map[ir.BlockID]*ir.Block)}
}

// GetOrParse returns the cached block for id, parsing rawStream with
// ir.Parse on first encounter (spec.md §4.4: "First encounter parses the
// block; subsequent encounters reuse."). A parse error is returned
// unwrapped from ir.Parse; it is never cached, so a later call with a
// corrected rawStream can still succeed.
func (c *Cache) GetOrParse(id ir.BlockID, rawStream []ir.RawInst) (*ir.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.entries[id]; ok {
		return b, nil
	}
	if len(c.entries) >= c.capacity {
		return nil, fmt.Errorf("%w: %d entries, id %d", ErrCapacityExceeded, c.capacity, id)
	}
	b, err := ir.Parse(id, rawStream)
	if err != nil {
		return nil, err
	}
	c.entries[id] = b
	return b, nil
}

// Lookup returns the already-cached block for id without attempting to
// parse one. Used by callers that only ever see a block's raw IR stream
// once, at on_ir_optimized time (spec.md §6): on_block_executed carries
// only a block_id and a CPU-state snapshot, never the stream again.
func (c *Cache) Lookup(id ir.BlockID) (*ir.Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[id]
	return b, ok
}

// Len reports the number of blocks currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// DestroyAll drops every cached block (spec.md §4.4). Session teardown
// (session.TraceStop) does not call it: the cache outlives a session, so
// emptying it is an explicit call by the cache's owner.
func (c *Cache) DestroyAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[ir.BlockID]*ir.Block)
}
