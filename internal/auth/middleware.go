package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"datagate/internal/authz"
	"datagate/internal/engine"
	"datagate/internal/metadata"
)

// RequestContext adapts an incoming request and its parsed token into the
// narrow view the authorization resolver consumes.
type RequestContext struct {
	headers       map[string][]string
	authenticated bool
	roles         []string
	claims        []authz.Claim
}

func (r *RequestContext) HeaderValues(name string) []string {
	for key, values := range r.headers {
		if strings.EqualFold(key, name) {
			return values
		}
	}
	return nil
}

func (r *RequestContext) IsAuthenticated() bool {
	return r.authenticated
}

// IsInRole treats the system roles specially: every caller is in
// "anonymous", every authenticated caller is in "authenticated", and
// anything else requires membership via the token's role claims.
func (r *RequestContext) IsInRole(role string) bool {
	if strings.EqualFold(role, authz.RoleAnonymous) {
		return true
	}
	if strings.EqualFold(role, authz.RoleAuthenticated) {
		return r.authenticated
	}
	for _, have := range r.roles {
		if strings.EqualFold(have, role) {
			return true
		}
	}
	return false
}

func (r *RequestContext) Claims() []authz.Claim {
	return r.claims
}

// Middleware validates an optional bearer token, resolves the caller's
// effective role, and stores both on the request for the engine.
//
// A missing role header falls back to the matching system role. An
// explicit header from an unauthenticated caller may only name
// "anonymous"; from an authenticated caller it must pass the resolver's
// role-context check.
func Middleware(secret string, roleHeader string, reg *metadata.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := &RequestContext{headers: c.GetReqHeaders()}

		if header := c.Get("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return engine.UnauthorizedError("Invalid auth header format")
			}
			mc, err := ParseAccessToken(parts[1], secret)
			if err != nil {
				return engine.UnauthorizedError("Invalid or expired token")
			}
			rc.authenticated = true
			rc.roles = RolesFromClaims(mc)
			rc.claims = TypedClaims(mc)
		}

		resolver := authz.NewResolver(reg.Index(), reg, roleHeader)

		var role string
		values := rc.HeaderValues(roleHeader)
		switch {
		case len(values) == 0 || (len(values) == 1 && values[0] == ""):
			role = authz.RoleAnonymous
			if rc.authenticated {
				role = authz.RoleAuthenticated
			}
		case !rc.authenticated:
			if len(values) != 1 || !strings.EqualFold(values[0], authz.RoleAnonymous) {
				return engine.ForbiddenError("Invalid role context")
			}
			role = authz.RoleAnonymous
		default:
			if !resolver.ValidRoleContext(rc) {
				return engine.ForbiddenError("Invalid role context")
			}
			role = values[0]
		}

		c.Locals("requester", rc)
		c.Locals("role", role)
		return c.Next()
	}
}

// RequireRole guards a route group behind membership in a specific role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, ok := c.Locals("requester").(authz.Requester)
		if !ok || !req.IsAuthenticated() {
			return engine.UnauthorizedError("Missing auth token")
		}
		if !req.IsInRole(role) {
			return engine.ForbiddenError(role + " access required")
		}
		return c.Next()
	}
}
