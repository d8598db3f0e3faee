// Package stage is a minimal in-memory scene graph: prims with a path and a
// declared type. It carries the per-prim state the registry and resolver work
// on and does no composition.
package stage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/asakaida/schemareg/internal/entities"
)

// Stage holds prims by path
type Stage struct {
	mu    sync.RWMutex
	prims map[string]*Prim
	order []string
}

// New creates an empty stage
func New() *Stage {
	return &Stage{
		prims: make(map[string]*Prim),
	}
}

// DefinePrim creates a prim with a declared type.
// Defining an existing path again returns the existing prim when the type matches.
func (s *Stage) DefinePrim(path, typeName string) (*Prim, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.prims[path]; ok {
		if existing.typeName != typeName {
			return nil, fmt.Errorf("prim %s already defined with type %q", path, existing.typeName)
		}
		return existing, nil
	}

	prim := &Prim{
		path:     path,
		typeName: typeName,
		state:    newPrimState(),
	}
	s.prims[path] = prim
	s.order = append(s.order, path)
	return prim, nil
}

// GetPrim returns the prim at path
func (s *Stage) GetPrim(path string) (*Prim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prim, ok := s.prims[path]
	if !ok {
		return nil, &entities.NotFoundError{Kind: "prim", Name: path}
	}
	return prim, nil
}

// RemovePrim destroys a prim together with its applied schemas and values
func (s *Stage) RemovePrim(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prims[path]; !ok {
		return false
	}
	delete(s.prims, path)
	for i, p := range s.order {
		if p == path {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Prims returns all prims in definition order
func (s *Stage) Prims() []*Prim {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prims := make([]*Prim, 0, len(s.order))
	for _, path := range s.order {
		prims = append(prims, s.prims[path])
	}
	return prims
}

// validatePath checks for an absolute path of non-empty segments
func validatePath(path string) error {
	if !strings.HasPrefix(path, "/") || path == "/" {
		return fmt.Errorf("invalid prim path %q: must be absolute", path)
	}
	for _, seg := range strings.Split(path[1:], "/") {
		if seg == "" {
			return fmt.Errorf("invalid prim path %q: empty segment", path)
		}
	}
	return nil
}
