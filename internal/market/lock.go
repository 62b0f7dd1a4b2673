package market

import (
	"sync"
)

// keyedMutex serializes critical sections by name. Settlement uses it to make
// the existence check and the settlement insert atomic per (market, account)
// even if the host ever relaxes strictly sequential event delivery.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
