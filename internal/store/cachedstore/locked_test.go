package cachedstore

import "sync"

// lockedBackend guards a fakeBackend for concurrent tests.
type lockedBackend struct {
	mu sync.Mutex
	b  *fakeBackend
}

func newLockedBackend() *lockedBackend {
	return &lockedBackend{b: newFakeBackend()}
}

func (l *lockedBackend) Get(key string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Get(key)
}

func (l *lockedBackend) Set(key string, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.b.Set(key, data)
}

func (l *lockedBackend) Remove(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.b.Remove(key)
}

func (l *lockedBackend) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Stats()
}
