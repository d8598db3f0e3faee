package stage

import (
	"sync"

	"github.com/asakaida/schemareg/internal/entities"
)

// Prim is a scene graph entity with a declared type.
// It owns its applied-schema set and its authored values.
type Prim struct {
	path     string
	typeName string

	mu    sync.RWMutex
	state primState
}

type primState struct {
	applied []entities.AppliedSchema // application order
	values  map[string]interface{}   // property key -> authored value
	targets map[string][]string      // property key -> authored relationship targets
}

func newPrimState() primState {
	return primState{
		values:  make(map[string]interface{}),
		targets: make(map[string][]string),
	}
}

func (s primState) clone() primState {
	c := primState{
		applied: append([]entities.AppliedSchema(nil), s.applied...),
		values:  make(map[string]interface{}, len(s.values)),
		targets: make(map[string][]string, len(s.targets)),
	}
	for k, v := range s.values {
		c.values[k] = v
	}
	for k, v := range s.targets {
		c.targets[k] = append([]string(nil), v...)
	}
	return c
}

func (s *primState) indexOf(id string) int {
	for i, a := range s.applied {
		if a.ID() == id {
			return i
		}
	}
	return -1
}

// Path returns the prim path (e.g., "/World/Scene")
func (p *Prim) Path() string { return p.path }

// TypeName returns the declared base type (e.g., "Scene", "RevoluteJoint")
func (p *Prim) TypeName() string { return p.typeName }

// AppliedSchemas returns a snapshot of the applied set in application order
func (p *Prim) AppliedSchemas() []entities.AppliedSchema {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]entities.AppliedSchema(nil), p.state.applied...)
}

// FindApplied returns the applied instance with the given id ("Name" or "Name:instance")
func (p *Prim) FindApplied(id string) (entities.AppliedSchema, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i := p.state.indexOf(id); i >= 0 {
		return p.state.applied[i], true
	}
	return entities.AppliedSchema{}, false
}

// HasAppliedSchema reports whether the id is in the applied set
func (p *Prim) HasAppliedSchema(id string) bool {
	_, ok := p.FindApplied(id)
	return ok
}

// AuthoredValue returns the authored value for a property key
func (p *Prim) AuthoredValue(key string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.state.values[key]
	return v, ok
}

// HasAuthoredValue reports whether a value was ever written for key
func (p *Prim) HasAuthoredValue(key string) bool {
	_, ok := p.AuthoredValue(key)
	return ok
}

// Targets returns the authored relationship targets for key
func (p *Prim) Targets(key string) ([]string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.state.targets[key]
	if !ok {
		return nil, false
	}
	return append([]string(nil), t...), true
}

// Snapshot is a consistent copy of the applied set and authored values of a prim
type Snapshot struct {
	Applied []entities.AppliedSchema
	Values  map[string]interface{}
}

// AuthoredValue returns the authored value captured for a property key
func (s Snapshot) AuthoredValue(key string) (interface{}, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// Snapshot copies the applied set and the authored values under one read lock
func (p *Prim) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	values := make(map[string]interface{}, len(p.state.values))
	for k, v := range p.state.values {
		values[k] = v
	}
	return Snapshot{
		Applied: append([]entities.AppliedSchema(nil), p.state.applied...),
		Values:  values,
	}
}

// Edit runs fn against a private copy of the prim state and publishes the
// copy only when fn succeeds, so readers never observe a partial edit.
func (p *Prim) Edit(fn func(tx *Edit) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx := &Edit{prim: p, state: p.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	p.state = tx.state
	return nil
}

// Edit is an in-flight change to one prim
type Edit struct {
	prim  *Prim
	state primState
}

// Prim returns the prim being edited
func (tx *Edit) Prim() *Prim { return tx.prim }

// HasSchema reports whether the id is applied in this edit
func (tx *Edit) HasSchema(id string) bool {
	return tx.state.indexOf(id) >= 0
}

// Applied returns the applied set as seen by this edit
func (tx *Edit) Applied() []entities.AppliedSchema {
	return append([]entities.AppliedSchema(nil), tx.state.applied...)
}

// AddSchema appends an applied instance; adding an id twice is a no-op
func (tx *Edit) AddSchema(applied entities.AppliedSchema) {
	if tx.HasSchema(applied.ID()) {
		return
	}
	tx.state.applied = append(tx.state.applied, applied)
}

// RemoveSchema drops an applied instance, returning false if it was absent
func (tx *Edit) RemoveSchema(id string) bool {
	i := tx.state.indexOf(id)
	if i < 0 {
		return false
	}
	tx.state.applied = append(tx.state.applied[:i], tx.state.applied[i+1:]...)
	return true
}

// SetValue authors a value for key
func (tx *Edit) SetValue(key string, value interface{}) {
	tx.state.values[key] = value
}

// DeleteValue removes an authored value
func (tx *Edit) DeleteValue(key string) {
	delete(tx.state.values, key)
}

// SetTargets authors relationship targets for key
func (tx *Edit) SetTargets(key string, targets []string) {
	tx.state.targets[key] = append([]string(nil), targets...)
}

// DeleteTargets removes authored relationship targets
func (tx *Edit) DeleteTargets(key string) {
	delete(tx.state.targets, key)
}
