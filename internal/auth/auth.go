package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"datagate/internal/authz"
)

// TokenPair is the response returned after successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims represents the JWT claims issued at login.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// GenerateAccessToken creates a signed JWT with user ID and roles.
func GenerateAccessToken(userID string, roles []string, secret string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
		},
		Roles: roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates a JWT and returns its raw claim map. Numbers
// are kept as json.Number so claim typing can distinguish integers from
// doubles.
func ParseAccessToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(
		jwt.WithJSONNumber(),
		jwt.WithValidMethods([]string{"HS256"}),
	)
	token, err := parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// RolesFromClaims extracts the roles claim as a string slice.
func RolesFromClaims(mc jwt.MapClaims) []string {
	raw, ok := mc[authz.RoleClaimType]
	if !ok {
		return nil
	}
	switch roles := raw.(type) {
	case []string:
		return roles
	case []any:
		out := make([]string, 0, len(roles))
		for _, r := range roles {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// TypedClaims flattens a JWT claim map into typed authz claims. Each role
// becomes its own claim of the role claim type; registered timestamp
// claims are tagged as datetimes; everything else is typed by its JSON
// value kind.
func TypedClaims(mc jwt.MapClaims) []authz.Claim {
	var out []authz.Claim
	for name, value := range mc {
		if name == authz.RoleClaimType {
			for _, role := range RolesFromClaims(mc) {
				out = append(out, authz.Claim{Type: name, Value: role, Kind: authz.KindString})
			}
			continue
		}
		out = append(out, typedClaim(name, value))
	}
	return out
}

func typedClaim(name string, value any) authz.Claim {
	switch name {
	case "exp", "iat", "nbf":
		return authz.Claim{Type: name, Value: fmt.Sprintf("%v", value), Kind: authz.KindDateTime}
	}

	switch v := value.(type) {
	case string:
		return authz.Claim{Type: name, Value: v, Kind: authz.KindString}
	case bool:
		return authz.Claim{Type: name, Value: fmt.Sprintf("%t", v), Kind: authz.KindBoolean}
	case json.Number:
		kind := authz.KindInt64
		if strings.ContainsAny(v.String(), ".eE") {
			kind = authz.KindDouble
		}
		return authz.Claim{Type: name, Value: v.String(), Kind: kind}
	case float64:
		return authz.Claim{Type: name, Value: fmt.Sprintf("%v", v), Kind: authz.KindDouble}
	case nil:
		return authz.Claim{Type: name, Value: "null", Kind: authz.KindJSONNull}
	case map[string]any:
		raw, _ := json.Marshal(v)
		return authz.Claim{Type: name, Value: string(raw), Kind: authz.KindJSONObject}
	case []any:
		raw, _ := json.Marshal(v)
		return authz.Claim{Type: name, Value: string(raw), Kind: authz.KindJSONArray}
	default:
		raw, _ := json.Marshal(v)
		return authz.Claim{Type: name, Value: string(raw), Kind: authz.KindJSONObject}
	}
}

// GenerateRefreshToken creates a new opaque UUID refresh token.
func GenerateRefreshToken() string {
	return uuid.New().String()
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
