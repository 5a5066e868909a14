package application

import "sync"

// Router hands out per-partition serialization. All ledger mutations for one
// partition key run strictly one at a time in arrival order; different
// partitions proceed independently. The lock is held only around state
// operations, never across identity-provider or approval network calls.
type Router struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRouter creates an empty Router. Partition locks are created lazily on
// first use and never released; the set of partitions (installations) is
// small and stable.
func NewRouter() *Router {
	return &Router{locks: make(map[string]*sync.Mutex)}
}

// Do runs fn while holding the serialization lock for the given partition key.
func (r *Router) Do(key string, fn func() error) error {
	lock := r.lock(key)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

func (r *Router) lock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}
