package pipeline

import "sync"

// siteLocks serializes concurrent scrapes of the same site so two callers
// never crawl one storefront at once or race on its cache entry. Distinct
// sites proceed in parallel. Lock identity is the normalized site URL.
type siteLocks struct {
	mu    sync.Mutex
	locks map[string]*siteLock
}

type siteLock struct {
	mu   sync.Mutex
	refs int
}

func newSiteLocks() *siteLocks {
	return &siteLocks{locks: make(map[string]*siteLock)}
}

// lock acquires the advisory lock for key, blocking while another caller
// holds it. The returned func releases the lock and drops the entry once
// nobody is waiting on it.
func (s *siteLocks) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &siteLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}
