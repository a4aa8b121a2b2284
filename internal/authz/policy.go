package authz

import (
	"regexp"
	"strings"
)

var claimRef = regexp.MustCompile(`@claims\.(\w+)`)

// CompileDatabasePolicy resolves the database row-policy template for
// (entity, role, operation) into a predicate fragment, substituting each
// @claims.<name> reference with a typed literal from the claim set.
// @item.<name> references are left in place for the query builder to bind.
//
// Returns "" when the grant carries no database policy. Fails Forbidden
// when a referenced claim is missing or its declared type cannot be
// rendered as a literal. Identical inputs always produce identical output.
func (r *Resolver) CompileDatabasePolicy(entity, role string, op Operation, claims ClaimSet) (string, error) {
	grant, ok := r.index.Grant(entity, role, op)
	if !ok || grant.Policy == nil || grant.Policy.Database == "" {
		return "", nil
	}
	return CompileTemplate(grant.Policy.Database, claims)
}

// RequestPolicy returns the raw request-policy template for the grant, or
// "" when none is configured.
func (r *Resolver) RequestPolicy(entity, role string, op Operation) string {
	grant, ok := r.index.Grant(entity, role, op)
	if !ok || grant.Policy == nil {
		return ""
	}
	return grant.Policy.Request
}

// CompileTemplate substitutes every @claims reference in a raw policy
// template. Shared by the database policy above and the engine's
// request-policy evaluation.
func CompileTemplate(template string, claims ClaimSet) (string, error) {
	// Verify all referenced claims exist before emitting anything.
	for _, match := range claimRef.FindAllStringSubmatch(template, -1) {
		if _, ok := claims[match[1]]; !ok {
			return "", ForbiddenError(MsgMissingClaims)
		}
	}

	var failure error
	compiled := claimRef.ReplaceAllStringFunc(template, func(ref string) string {
		name := ref[len("@claims."):]
		literal, err := renderClaimLiteral(claims[name])
		if err != nil {
			if failure == nil {
				failure = err
			}
			return ref
		}
		return literal
	})
	if failure != nil {
		return "", failure
	}
	return compiled, nil
}

// renderClaimLiteral prints a claim value as a predicate literal according
// to its declared kind. The switch is exhaustive over ClaimKind so a new
// kind forces a deliberate rendering decision here.
func renderClaimLiteral(c Claim) (string, error) {
	switch c.Kind {
	case KindString:
		return "'" + strings.ReplaceAll(c.Value, "'", "''") + "'", nil
	case KindBoolean, KindInt16, KindInt32, KindInt64, KindUint32, KindUint64, KindDouble:
		return c.Value, nil
	case KindJSONNull:
		return "null", nil
	case KindJSONObject, KindJSONArray, KindDateTime:
		return "", unsupportedClaimError(c.Type, c.Kind)
	default:
		return "", unsupportedClaimError(c.Type, c.Kind)
	}
}
