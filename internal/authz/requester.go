package authz

// Requester is the narrow view of an incoming request the resolver needs.
// The transport layer adapts its request type to this; tests use plain
// in-memory fakes.
type Requester interface {
	// HeaderValues returns every value supplied for the named header.
	HeaderValues(name string) []string

	// IsAuthenticated reports whether the caller presented a valid identity.
	IsAuthenticated() bool

	// IsInRole reports whether the identity is a member of the named role.
	IsInRole(role string) bool

	// Claims returns the identity's claims, role claims included.
	Claims() []Claim
}

// ColumnCatalog supplies the full column list of an entity's table, needed
// to resolve wildcard include semantics.
type ColumnCatalog interface {
	Columns(entity string) []string
}
