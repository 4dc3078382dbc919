package codecache

import (
	"os"
	"time"
)

// unit is one compiled representation tracked by the in-memory store.
type unit struct {
	compiledAt time.Time
	stale      bool
}

// MemoryStore is the default Backend: an in-process table of compiled units
// keyed by source path. It exists so deployments without an external
// compiled-code cache still get coherent stale-marking semantics, and so
// tests have a backend with observable state.
type MemoryStore struct {
	units map[string]*unit
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{units: make(map[string]*unit)}
}

// Compile records that path was compiled now. The real compilation is the
// host application's business; the store only tracks freshness.
func (s *MemoryStore) Compile(path string) {
	s.units[path] = &unit{compiledAt: time.Now()}
}

// Invalidate implements Backend. Unknown paths are a no-op; the unit simply
// does not exist yet and the next execution compiles fresh.
func (s *MemoryStore) Invalidate(path string) error {
	if u, ok := s.units[path]; ok {
		u.stale = true
	}
	return nil
}

// Reset implements Backend, dropping every compiled unit.
func (s *MemoryStore) Reset() error {
	s.units = make(map[string]*unit)
	return nil
}

// Fresh reports whether path has a compiled unit that is neither stale nor
// older than the source file on disk.
func (s *MemoryStore) Fresh(path string) bool {
	u, ok := s.units[path]
	if !ok || u.stale {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.ModTime().After(u.compiledAt)
}
