package authz

// DefaultRoleHeader is the request header carrying the caller's intended
// role, unless the config overrides it.
const DefaultRoleHeader = "X-API-Role"

// Resolver answers the per-request authorization questions against one
// immutable index snapshot. It is pure data plus read-only lookups and is
// safe for unbounded concurrent use.
type Resolver struct {
	index      *PermissionIndex
	catalog    ColumnCatalog
	roleHeader string
}

func NewResolver(index *PermissionIndex, catalog ColumnCatalog, roleHeader string) *Resolver {
	if roleHeader == "" {
		roleHeader = DefaultRoleHeader
	}
	return &Resolver{index: index, catalog: catalog, roleHeader: roleHeader}
}

func (r *Resolver) RoleHeader() string {
	return r.roleHeader
}

// ValidRoleContext reports whether the request carries a usable role claim:
// exactly one non-empty role header value, an authenticated identity, and
// membership in the named role. Never errors; invalid is just false.
func (r *Resolver) ValidRoleContext(req Requester) bool {
	values := req.HeaderValues(r.roleHeader)
	if len(values) != 1 || values[0] == "" {
		return false
	}
	return req.IsAuthenticated() && req.IsInRole(values[0])
}

// OperationDefined reports whether (entity, role, operation) has a grant.
func (r *Resolver) OperationDefined(entity, role string, op Operation) bool {
	return r.index.IsDefined(entity, role, op)
}

// RolesForOperation projects the roles granted the operation on the entity.
func (r *Resolver) RolesForOperation(entity string, op Operation) []string {
	return r.index.RolesForOperation(entity, op)
}

// AllowedColumns resolves the concrete column set the grant permits.
// No declared field scope means every table column; a wildcard include
// also means every table column; exclusions are applied last and win over
// inclusions for the same column. A wildcard exclude empties the set.
// A missing grant resolves to the empty set.
func (r *Resolver) AllowedColumns(entity, role string, op Operation) map[string]struct{} {
	grant, ok := r.index.Grant(entity, role, op)
	if !ok {
		return map[string]struct{}{}
	}

	allowed := make(map[string]struct{})
	scope := grant.Fields
	if scope == nil || hasWildcard(scope.Include) {
		for _, col := range r.catalog.Columns(entity) {
			allowed[col] = struct{}{}
		}
	} else {
		for _, col := range scope.Include {
			allowed[col] = struct{}{}
		}
	}

	if scope != nil {
		if hasWildcard(scope.Exclude) {
			return map[string]struct{}{}
		}
		for _, col := range scope.Exclude {
			delete(allowed, col)
		}
	}
	return allowed
}

// ColumnsAllowed reports whether every requested column is permitted for
// (entity, role, operation). The check is all-or-nothing: one disallowed
// column fails the whole batch, and an empty batch is never allowed.
func (r *Resolver) ColumnsAllowed(entity, role string, op Operation, columns []string) bool {
	if len(columns) == 0 {
		return false
	}
	allowed := r.AllowedColumns(entity, role, op)
	for _, col := range columns {
		if _, ok := allowed[col]; !ok {
			return false
		}
	}
	return true
}

// RolesForColumn returns the roles whose resolved column set for the
// operation contains the column.
func (r *Resolver) RolesForColumn(entity, column string, op Operation) []string {
	var out []string
	for _, role := range r.index.RolesForOperation(entity, op) {
		if _, ok := r.AllowedColumns(entity, role, op)[column]; ok {
			out = append(out, role)
		}
	}
	return out
}

func hasWildcard(columns []string) bool {
	for _, col := range columns {
		if col == "*" {
			return true
		}
	}
	return false
}
