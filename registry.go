// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpcfab

import "sync"

// responseEntry is the per-request-id mapping described in spec §3 ("Response
// channel entry"): a one-shot (unary) or many-shot (streaming) queue of
// response frames, plus a done signal a caller uses to "drop" its consumer
// (spec §4.d Cancellation; §9 design notes — Go has no destructors, so this
// explicit Close stands in for the Rust future/stream being dropped).
type responseEntry struct {
	ch   chan Frame
	done chan struct{}
	once sync.Once
}

func newResponseEntry(capacity int) *responseEntry {
	return &responseEntry{
		ch:   make(chan Frame, capacity),
		done: make(chan struct{}),
	}
}

// cancel marks the entry as abandoned by its consumer. Idempotent.
func (e *responseEntry) cancel() {
	e.once.Do(func() { close(e.done) })
}

// registry is the response-channel map shared between the router and the
// RequestSender (spec §3, §4.c, §9 "cyclic ownership"). Go's GC removes the
// need for the original's Arc<DashMap> reference counting; what remains is
// plain mutual-exclusion around map access, held only across the lookup/
// insert/delete itself, never across a channel send or I/O.
type registry struct {
	mu      sync.Mutex
	entries map[RequestID]*responseEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[RequestID]*responseEntry)}
}

func (r *registry) register(id RequestID, capacity int) *responseEntry {
	e := newResponseEntry(capacity)
	r.mu.Lock()
	r.entries[id] = e
	r.mu.Unlock()
	return e
}

func (r *registry) lookup(id RequestID) (*responseEntry, bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	return e, ok
}

func (r *registry) remove(id RequestID) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// removeAll drains the registry, returning every still-registered entry.
// Called when the connection's pumps stop so that awaiting callers observe
// ErrUnexpectedEndOfStream instead of hanging forever (spec §3 "Lifecycle").
func (r *registry) removeAll() []*responseEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*responseEntry, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, e)
		delete(r.entries, id)
	}
	return out
}
