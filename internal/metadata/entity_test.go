package metadata

import (
	"encoding/json"
	"testing"

	"datagate/internal/authz"
)

const bookDefinition = `{
	"name": "book",
	"table": "books",
	"primary_key": {"field": "id", "type": "uuid", "generated": true},
	"fields": [
		{"name": "id", "type": "uuid"},
		{"name": "title", "type": "string", "required": true},
		{"name": "owner_id", "type": "uuid"},
		{"name": "created_at", "type": "timestamp", "auto": "create"}
	],
	"permissions": [
		{"role": "anonymous", "actions": ["read"]},
		{"role": "Writer", "actions": [
			"*",
			{"action": "update",
			 "fields": {"include": ["*"], "exclude": ["owner_id"]},
			 "policy": {"database": "@claims.user_id eq @item.owner_id"}}
		]}
	]
}`

func parseBook(t *testing.T) *Entity {
	t.Helper()
	var e Entity
	if err := json.Unmarshal([]byte(bookDefinition), &e); err != nil {
		t.Fatalf("parse definition: %v", err)
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return &e
}

func TestEntityDefinitionParsing(t *testing.T) {
	e := parseBook(t)

	if e.Name != "book" || e.Table != "books" {
		t.Errorf("unexpected identity: %s/%s", e.Name, e.Table)
	}
	if !e.HasField("title") || e.HasField("nope") {
		t.Error("field lookup broken")
	}
	if len(e.Permissions) != 2 {
		t.Fatalf("expected 2 permissions, got %d", len(e.Permissions))
	}
	writer := e.Permissions[1]
	if writer.Role != "Writer" || len(writer.Actions) != 2 {
		t.Fatalf("writer permission mismatch: %+v", writer)
	}
	if writer.Actions[0].Operation != authz.OpAll {
		t.Errorf("expected wildcard action, got %s", writer.Actions[0].Operation)
	}
	update := writer.Actions[1]
	if update.Operation != authz.OpUpdate || update.Policy == nil || update.Fields == nil {
		t.Errorf("update action mismatch: %+v", update)
	}
}

func TestEntityDefinitionRejectsBadPermission(t *testing.T) {
	raw := `{
		"name": "book", "table": "books",
		"fields": [{"name": "id", "type": "uuid"}],
		"permissions": [{"role": "writer", "actions": ["drop"]}]
	}`
	var e Entity
	if err := json.Unmarshal([]byte(raw), &e); err == nil {
		t.Error("expected parse error for unknown operation")
	}
}

func TestEntityValidate(t *testing.T) {
	cases := []Entity{
		{Table: "t", Fields: []Field{{Name: "id"}}},
		{Name: "e", Fields: []Field{{Name: "id"}}},
		{Name: "e", Table: "t"},
		{Name: "e", Table: "t", PrimaryKey: PrimaryKey{Field: "missing"}, Fields: []Field{{Name: "id"}}},
	}
	for i, e := range cases {
		if err := e.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestRegistrySnapshotSwap(t *testing.T) {
	reg := NewRegistry()
	book := parseBook(t)

	index, err := BuildIndex([]*Entity{book})
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	reg.Load([]*Entity{book}, index)

	if reg.GetEntity("book") == nil {
		t.Fatal("entity missing after load")
	}
	if !reg.Index().IsDefined("book", "writer", authz.OpRead) {
		t.Error("index missing writer read grant")
	}
	cols := reg.Columns("book")
	if len(cols) != 4 || cols[0] != "id" {
		t.Errorf("unexpected column catalog: %v", cols)
	}

	// Swap with an empty snapshot; old lookups disappear wholesale.
	empty, err := BuildIndex(nil)
	if err != nil {
		t.Fatalf("build empty index: %v", err)
	}
	reg.Load(nil, empty)
	if reg.GetEntity("book") != nil {
		t.Error("entity should be gone after swap")
	}
	if reg.Index().IsDefined("book", "writer", authz.OpRead) {
		t.Error("grants should be gone after swap")
	}
}

func TestWritableFields(t *testing.T) {
	e := parseBook(t)
	fields := e.WritableFields()
	for _, f := range fields {
		if f.Name == "id" {
			t.Error("generated primary key is not writable")
		}
		if f.Name == "created_at" {
			t.Error("auto field is not writable")
		}
	}
	if len(fields) != 2 {
		t.Errorf("expected title and owner_id, got %v", fields)
	}
}
