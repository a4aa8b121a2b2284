package authz

import (
	"fmt"
	"strings"
)

// System roles. Every unauthenticated caller acts as "anonymous"; every
// authenticated caller may act as "authenticated".
const (
	RoleAnonymous     = "anonymous"
	RoleAuthenticated = "authenticated"
)

// Grant is the resolved permission for one (entity, role, operation) key.
// A nil Fields means the action declared no column restriction; a nil
// Policy means no row policy.
type Grant struct {
	Fields *FieldScope
	Policy *Policy
}

// EntityPermissions is the builder input: one entity's raw permission
// entries, as parsed from configuration.
type EntityPermissions struct {
	Entity      string
	Permissions []Permission
}

// PermissionIndex maps entity -> lowercased role -> operation -> grant.
// It is built once from configuration and read-only afterward; reloads
// build a fresh index and swap the reference.
type PermissionIndex struct {
	entities map[string]map[string]map[Operation]*Grant
}

// BuildIndex compiles raw permission configuration into a queryable index.
//
// The wildcard action expands to the CRUD set. When a role declares the
// same operation twice for an entity, the later entry wins per supplied
// field: a later entry that carries fields replaces the earlier fields, a
// later entry without fields leaves them alone, and likewise for policy.
//
// After all entries are merged, "authenticated" inherits every grant of
// "anonymous" for entities where it has no explicit grants of its own.
func BuildIndex(configs []EntityPermissions) (*PermissionIndex, error) {
	ix := &PermissionIndex{
		entities: make(map[string]map[string]map[Operation]*Grant, len(configs)),
	}

	for _, cfg := range configs {
		if cfg.Entity == "" {
			return nil, fmt.Errorf("permission config with empty entity name")
		}
		roles := ix.entities[cfg.Entity]
		if roles == nil {
			roles = make(map[string]map[Operation]*Grant)
			ix.entities[cfg.Entity] = roles
		}
		for _, perm := range cfg.Permissions {
			if perm.Role == "" {
				return nil, fmt.Errorf("entity %s: permission with empty role", cfg.Entity)
			}
			role := strings.ToLower(perm.Role)
			grants := roles[role]
			if grants == nil {
				grants = make(map[Operation]*Grant)
				roles[role] = grants
			}
			for _, action := range perm.Actions {
				ops := []Operation{action.Operation}
				if action.Operation == OpAll {
					ops = ExpandWildcard()
				}
				for _, op := range ops {
					mergeGrant(grants, op, action)
				}
			}
		}
	}

	for _, roles := range ix.entities {
		inheritAnonymous(roles)
	}

	return ix, nil
}

func mergeGrant(grants map[Operation]*Grant, op Operation, action Action) {
	existing := grants[op]
	if existing == nil {
		grants[op] = &Grant{Fields: action.Fields, Policy: action.Policy}
		return
	}
	merged := *existing
	if action.Fields != nil {
		merged.Fields = action.Fields
	}
	if action.Policy != nil {
		merged.Policy = action.Policy
	}
	grants[op] = &merged
}

// inheritAnonymous copies anonymous grants to authenticated, but only when
// authenticated has no explicit grant at all for the entity. A single
// explicit operation suppresses inheritance for the whole entity.
func inheritAnonymous(roles map[string]map[Operation]*Grant) {
	anon := roles[RoleAnonymous]
	if len(anon) == 0 || len(roles[RoleAuthenticated]) > 0 {
		return
	}
	inherited := make(map[Operation]*Grant, len(anon))
	for op, grant := range anon {
		inherited[op] = grant
	}
	roles[RoleAuthenticated] = inherited
}

// Grant returns the grant for (entity, role, operation), if any. Role
// matching is case-insensitive.
func (ix *PermissionIndex) Grant(entity, role string, op Operation) (*Grant, bool) {
	grants := ix.entities[entity][strings.ToLower(role)]
	grant, ok := grants[op]
	return grant, ok
}

// IsDefined reports whether a grant exists for (entity, role, operation).
func (ix *PermissionIndex) IsDefined(entity, role string, op Operation) bool {
	_, ok := ix.Grant(entity, role, op)
	return ok
}

// RolesForOperation returns every role holding a grant for the operation on
// the entity. Order is unspecified; entries are unique.
func (ix *PermissionIndex) RolesForOperation(entity string, op Operation) []string {
	var out []string
	for role, grants := range ix.entities[entity] {
		if _, ok := grants[op]; ok {
			out = append(out, role)
		}
	}
	return out
}
