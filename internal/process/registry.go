package process

import (
	"sort"
	"sync"
)

// Registry maps process ids to their live handles.
//
// Every operation is a single map access under the mutex; the lock is never
// held across I/O. Removal is atomic check-and-delete, so when Kill and the
// relay race for the same entry exactly one of them observes it.
type Registry struct {
	mu      sync.Mutex
	entries map[ID]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[ID]*Handle)}
}

// Insert registers h under id. If a stale handle was registered under the
// same id (pid reuse), it is replaced and returned.
func (r *Registry) Insert(id ID, h *Handle) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.entries[id]
	r.entries[id] = h
	return prev
}

// Remove deletes and returns the handle registered under id.
func (r *Registry) Remove(id ID) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return h, ok
}

// RemoveHandle deletes the entry for id only if it still refers to h.
// A relay uses this so it never evicts a newer process that reused its pid.
func (r *Registry) RemoveHandle(id ID, h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[id]; ok && cur == h {
		delete(r.entries, id)
		return true
	}
	return false
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Len returns the number of registered processes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Handles returns a snapshot of the registered handles ordered by id.
func (r *Registry) Handles() []*Handle {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.entries))
	for _, h := range r.entries {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	sort.Slice(handles, func(i, j int) bool {
		return handles[i].info.PID < handles[j].info.PID
	})
	return handles
}

// Drain removes every entry and returns the handles that were registered.
func (r *Registry) Drain() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	handles := make([]*Handle, 0, len(r.entries))
	for id, h := range r.entries {
		handles = append(handles, h)
		delete(r.entries, id)
	}
	return handles
}
