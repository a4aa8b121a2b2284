package metadata

import (
	"sync"

	"datagate/internal/authz"
)

// Registry holds the active metadata snapshot: entity definitions plus the
// permission index built from them. Load swaps the whole snapshot; readers
// always see either the previous complete snapshot or the new one.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
	index    *authz.PermissionIndex
}

func NewRegistry() *Registry {
	index, _ := authz.BuildIndex(nil)
	return &Registry{
		entities: make(map[string]*Entity),
		index:    index,
	}
}

// GetEntity returns the entity with the given name, or nil.
func (r *Registry) GetEntity(name string) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[name]
}

// AllEntities returns all registered entities.
func (r *Registry) AllEntities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entities := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		entities = append(entities, e)
	}
	return entities
}

// Index returns the permission index of the current snapshot.
func (r *Registry) Index() *authz.PermissionIndex {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index
}

// Columns implements authz.ColumnCatalog.
func (r *Registry) Columns(entity string) []string {
	e := r.GetEntity(entity)
	if e == nil {
		return nil
	}
	return e.FieldNames()
}

// Load replaces the snapshot. Called during startup and after reloads; the
// caller must only pass a fully built index.
func (r *Registry) Load(entities []*Entity, index *authz.PermissionIndex) {
	byName := make(map[string]*Entity, len(entities))
	for _, e := range entities {
		byName[e.Name] = e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = byName
	r.index = index
}
