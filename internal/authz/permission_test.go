package authz

import (
	"encoding/json"
	"testing"
)

func TestActionUnmarshal_StringForm(t *testing.T) {
	var a Action
	if err := json.Unmarshal([]byte(`"read"`), &a); err != nil {
		t.Fatalf("parse string action: %v", err)
	}
	if a.Operation != OpRead || a.Fields != nil || a.Policy != nil {
		t.Errorf("unexpected action: %+v", a)
	}
}

func TestActionUnmarshal_WildcardForm(t *testing.T) {
	for _, raw := range []string{`"*"`, `"all"`} {
		var a Action
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			t.Fatalf("parse %s: %v", raw, err)
		}
		if a.Operation != OpAll {
			t.Errorf("%s: expected wildcard operation, got %s", raw, a.Operation)
		}
	}
}

func TestActionUnmarshal_ObjectForm(t *testing.T) {
	raw := `{
		"action": "update",
		"fields": {"include": ["*"], "exclude": ["ssn"]},
		"policy": {"database": "@claims.user_id eq @item.owner_id"}
	}`
	var a Action
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("parse object action: %v", err)
	}
	if a.Operation != OpUpdate {
		t.Errorf("expected update, got %s", a.Operation)
	}
	if a.Fields == nil || len(a.Fields.Include) != 1 || a.Fields.Include[0] != "*" {
		t.Errorf("fields include mismatch: %+v", a.Fields)
	}
	if a.Fields.Exclude[0] != "ssn" {
		t.Errorf("fields exclude mismatch: %+v", a.Fields)
	}
	if a.Policy == nil || a.Policy.Database != "@claims.user_id eq @item.owner_id" {
		t.Errorf("policy mismatch: %+v", a.Policy)
	}
}

func TestActionUnmarshal_RejectsUnknownOperation(t *testing.T) {
	for _, raw := range []string{`"none"`, `"drop"`, `{"action": "truncate"}`} {
		var a Action
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			t.Errorf("%s: expected parse error", raw)
		}
	}
}

func TestActionUnmarshal_RejectsBadShape(t *testing.T) {
	var a Action
	if err := json.Unmarshal([]byte(`42`), &a); err == nil {
		t.Error("expected error for numeric action")
	}
}

func TestActionMarshal_RoundTrip(t *testing.T) {
	perm := Permission{Role: "writer", Actions: []Action{
		{Operation: OpRead},
		{Operation: OpUpdate, Fields: &FieldScope{Exclude: []string{"ssn"}}},
	}}

	raw, err := json.Marshal(perm)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Permission
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back.Actions) != 2 || back.Actions[0].Operation != OpRead {
		t.Errorf("round trip mismatch: %+v", back)
	}
	if back.Actions[1].Fields == nil || back.Actions[1].Fields.Exclude[0] != "ssn" {
		t.Errorf("round trip lost field scope: %+v", back.Actions[1])
	}
}

func TestParseOperation(t *testing.T) {
	cases := map[string]Operation{
		"create": OpCreate,
		"read":   OpRead,
		"update": OpUpdate,
		"delete": OpDelete,
		"insert": OpInsert,
		"upsert": OpUpsert,
		"*":      OpAll,
		"all":    OpAll,
	}
	for name, want := range cases {
		got, err := ParseOperation(name)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("%s: got %s, want %s", name, got, want)
		}
	}

	if _, err := ParseOperation("none"); err == nil {
		t.Error("none must not parse as a grantable operation")
	}
}
