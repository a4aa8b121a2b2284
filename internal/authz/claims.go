package authz

// ClaimKind is the declared value type of a claim, carried alongside the
// string rendering of the value. The kind decides how the policy compiler
// prints the value into a predicate.
type ClaimKind int

const (
	KindString ClaimKind = iota
	KindBoolean
	KindInt16
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindDouble
	KindJSONNull
	KindJSONObject
	KindJSONArray
	KindDateTime
)

var claimKindNames = map[ClaimKind]string{
	KindString:     "string",
	KindBoolean:    "boolean",
	KindInt16:      "int16",
	KindInt32:      "int32",
	KindInt64:      "int64",
	KindUint32:     "uint32",
	KindUint64:     "uint64",
	KindDouble:     "double",
	KindJSONNull:   "null",
	KindJSONObject: "object",
	KindJSONArray:  "array",
	KindDateTime:   "datetime",
}

func (k ClaimKind) String() string {
	if name, ok := claimKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// RoleClaimType is the claim type carrying role membership. An identity may
// hold many role claims; the extractor keeps only the one matching the
// validated request role.
const RoleClaimType = "roles"

// Claim is a single typed fact about the authenticated identity.
type Claim struct {
	Type  string
	Value string
	Kind  ClaimKind
}

// ClaimSet holds at most one claim per claim type for the current request.
type ClaimSet map[string]Claim

// ExtractClaims builds the per-request claim set from the identity's claims
// and the already-validated request role.
//
// Role claims are special-cased: only the one whose value matches the
// request role (case-sensitively) is kept, under RoleClaimType; the rest
// are dropped silently. Any other claim type appearing more than once is a
// Forbidden error.
func ExtractClaims(req Requester, role string) (ClaimSet, error) {
	set := make(ClaimSet)
	for _, c := range req.Claims() {
		if c.Type == RoleClaimType {
			if c.Value == role {
				set[RoleClaimType] = c
			}
			continue
		}
		if _, seen := set[c.Type]; seen {
			return nil, ForbiddenError(MsgDuplicateClaims)
		}
		set[c.Type] = c
	}
	return set, nil
}
