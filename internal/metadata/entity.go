package metadata

import (
	"fmt"

	"datagate/internal/authz"
)

type Entity struct {
	Name        string             `json:"name"`
	Table       string             `json:"table"`
	PrimaryKey  PrimaryKey         `json:"primary_key"`
	Fields      []Field            `json:"fields"`
	Permissions []authz.Permission `json:"permissions"`
}

type PrimaryKey struct {
	Field     string `json:"field"`
	Type      string `json:"type"` // uuid, int, bigint, string
	Generated bool   `json:"generated"`
}

// Validate checks structural invariants that must hold before an entity
// definition may enter the registry.
func (e *Entity) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("entity with empty name")
	}
	if e.Table == "" {
		return fmt.Errorf("entity %s: empty table name", e.Name)
	}
	if len(e.Fields) == 0 {
		return fmt.Errorf("entity %s: no fields", e.Name)
	}
	if e.PrimaryKey.Field != "" && !e.HasField(e.PrimaryKey.Field) {
		return fmt.Errorf("entity %s: primary key %s is not a field", e.Name, e.PrimaryKey.Field)
	}
	return nil
}

// GetField returns a pointer to the field with the given name, or nil.
func (e *Entity) GetField(name string) *Field {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the entity has a field with the given name.
func (e *Entity) HasField(name string) bool {
	return e.GetField(name) != nil
}

// FieldNames returns all field names.
func (e *Entity) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// WritableFields returns fields that can be set by the client.
// Excludes auto-generated PKs and auto-timestamp fields.
func (e *Entity) WritableFields() []Field {
	var fields []Field
	for _, f := range e.Fields {
		if f.Name == e.PrimaryKey.Field && e.PrimaryKey.Generated {
			continue
		}
		if f.IsAuto() {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}
