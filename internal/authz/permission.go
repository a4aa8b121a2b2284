package authz

import (
	"encoding/json"
	"fmt"
)

// Permission is one raw configuration entry: a role and the actions it may
// perform on the owning entity. Entity definitions carry a list of these.
type Permission struct {
	Role    string   `json:"role"`
	Actions []Action `json:"actions"`
}

// Action is one operation entry within a Permission. In JSON it is either a
// bare operation name ("read", "*") or an object with optional field and
// policy scoping:
//
//	{"action": "read", "fields": {"include": ["*"], "exclude": ["ssn"]},
//	 "policy": {"database": "@claims.user_id eq @item.owner_id"}}
type Action struct {
	Operation Operation
	Fields    *FieldScope
	Policy    *Policy
}

// FieldScope restricts an action to a column set. A nil Include or Exclude
// means the list was not declared; the wildcard "*" may appear inside
// either list.
type FieldScope struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// Policy carries the raw row-policy templates. Database is compiled into a
// predicate fragment at request time; Request is evaluated against the
// incoming record before a write is accepted.
type Policy struct {
	Request  string `json:"request,omitempty"`
	Database string `json:"database,omitempty"`
}

type actionObject struct {
	Action string      `json:"action"`
	Fields *FieldScope `json:"fields"`
	Policy *Policy     `json:"policy"`
}

// UnmarshalJSON accepts the two permitted action shapes and rejects
// everything else, so malformed configuration fails at load time rather
// than surfacing as a bad request-time decision.
func (a *Action) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		op, err := ParseOperation(name)
		if err != nil {
			return err
		}
		*a = Action{Operation: op}
		return nil
	}

	var obj actionObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("action must be an operation name or an object: %w", err)
	}
	op, err := ParseOperation(obj.Action)
	if err != nil {
		return err
	}
	*a = Action{Operation: op, Fields: obj.Fields, Policy: obj.Policy}
	return nil
}

// MarshalJSON emits the compact string form when the action carries no
// field or policy scoping.
func (a Action) MarshalJSON() ([]byte, error) {
	if a.Fields == nil && a.Policy == nil {
		return json.Marshal(a.Operation.String())
	}
	return json.Marshal(actionObject{
		Action: a.Operation.String(),
		Fields: a.Fields,
		Policy: a.Policy,
	})
}
