package controller

import "sync"

// registry guards against overlapping check cycles on the same account.
// It is the sole mutual-exclusion boundary: distinct accounts check
// concurrently, the same account never does.
type registry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newRegistry() *registry {
	return &registry{active: make(map[string]struct{})}
}

func (r *registry) tryAcquire(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[id]; busy {
		return false
	}
	r.active[id] = struct{}{}
	return true
}

func (r *registry) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = make(map[string]struct{})
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
