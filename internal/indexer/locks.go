package indexer

import "sync"

// keyedMutex serializes work per string key. Entries are created on
// first use and kept for the process lifetime; vaults have at most a
// few thousand paths, so the map stays small.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// lock acquires the mutex for key and returns its unlock func.
func (k *keyedMutex) lock(key string) func() {
	m := k.get(key)
	m.Lock()
	return m.Unlock
}

// lock2 acquires both keys in a deterministic order so concurrent
// two-path operations cannot deadlock.
func (k *keyedMutex) lock2(a, b string) func() {
	if a == b {
		return k.lock(a)
	}
	if b < a {
		a, b = b, a
	}
	ma, mb := k.get(a), k.get(b)
	ma.Lock()
	mb.Lock()
	return func() {
		mb.Unlock()
		ma.Unlock()
	}
}
