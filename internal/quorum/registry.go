package quorum

import (
	"strings"
	"sync"
)

// Provider yields the delegate set current at event time. The set may change
// between events; callers must re-read it per event rather than caching.
type Provider interface {
	Current() Set
}

// Registry is a swappable delegate set, seeded from configuration.
type Registry struct {
	mu  sync.RWMutex
	set Set
}

func NewRegistry(pubKeys []string) *Registry {
	r := &Registry{}
	r.Replace(pubKeys)
	return r
}

func (r *Registry) Current() Set {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(Set, len(r.set))
	copy(out, r.set)
	return out
}

func (r *Registry) Replace(pubKeys []string) {
	normalized := make(Set, 0, len(pubKeys))
	seen := make(map[string]struct{}, len(pubKeys))
	for _, pk := range pubKeys {
		key := strings.ToLower(strings.TrimSpace(pk))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, key)
	}
	r.mu.Lock()
	r.set = normalized
	r.mu.Unlock()
}
