package authz

import "fmt"

// Operation is a single action a role may be granted on an entity.
type Operation int

const (
	// OpNone is the zero value and is never stored as a grant key.
	OpNone Operation = iota
	OpCreate
	OpRead
	OpUpdate
	OpDelete
	OpInsert
	OpUpsert
	// OpAll is the configuration wildcard. It is expanded at index build
	// time and never stored as a grant key either.
	OpAll
)

var operationNames = map[Operation]string{
	OpNone:   "none",
	OpCreate: "create",
	OpRead:   "read",
	OpUpdate: "update",
	OpDelete: "delete",
	OpInsert: "insert",
	OpUpsert: "upsert",
	OpAll:    "*",
}

func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return fmt.Sprintf("operation(%d)", int(op))
}

// ParseOperation parses a configuration operation name. The wildcard is
// accepted as "*" or "all". "none" is not parseable: it is a sentinel,
// never a grant, so a config naming it is malformed.
func ParseOperation(s string) (Operation, error) {
	switch s {
	case "create":
		return OpCreate, nil
	case "read":
		return OpRead, nil
	case "update":
		return OpUpdate, nil
	case "delete":
		return OpDelete, nil
	case "insert":
		return OpInsert, nil
	case "upsert":
		return OpUpsert, nil
	case "*", "all":
		return OpAll, nil
	default:
		return OpNone, fmt.Errorf("unknown operation %q", s)
	}
}

// ExpandWildcard returns the concrete operations granted by the "*" entry.
// The wildcard covers exactly the CRUD set; insert and upsert must always
// be granted explicitly.
func ExpandWildcard() []Operation {
	return []Operation{OpCreate, OpRead, OpUpdate, OpDelete}
}
