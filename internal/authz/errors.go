package authz

import "fmt"

// Messages are part of the API contract; clients match on them.
const (
	MsgDuplicateClaims = "Duplicate claims are not allowed within a request."
	MsgMissingClaims   = "User does not possess all the claims required to perform this operation."
)

// Error is a request-scoped authorization failure. It mirrors the engine's
// AppError shape so the HTTP error handler can render it directly, without
// this package depending on the engine.
type Error struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func ForbiddenError(msg string) *Error {
	return &Error{Code: "FORBIDDEN", Status: 403, Message: msg}
}

func unsupportedClaimError(name string, kind ClaimKind) *Error {
	return ForbiddenError(fmt.Sprintf("Claim %q has a value of unsupported type %s.", name, kind))
}
