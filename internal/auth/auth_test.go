package auth

import (
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"datagate/internal/authz"
)

func TestTypedClaims_Kinds(t *testing.T) {
	mc := jwt.MapClaims{
		"sub":      "u-1",
		"admin":    true,
		"age":      json.Number("42"),
		"score":    json.Number("4.5"),
		"nickname": nil,
		"prefs":    map[string]any{"theme": "dark"},
		"tags":     []any{"a", "b"},
		"exp":      json.Number("1700000000"),
	}

	byType := map[string]authz.Claim{}
	for _, c := range TypedClaims(mc) {
		byType[c.Type] = c
	}

	cases := []struct {
		name string
		kind authz.ClaimKind
	}{
		{"sub", authz.KindString},
		{"admin", authz.KindBoolean},
		{"age", authz.KindInt64},
		{"score", authz.KindDouble},
		{"nickname", authz.KindJSONNull},
		{"prefs", authz.KindJSONObject},
		{"tags", authz.KindJSONArray},
		{"exp", authz.KindDateTime},
	}
	for _, tc := range cases {
		claim, ok := byType[tc.name]
		if !ok {
			t.Errorf("missing claim %s", tc.name)
			continue
		}
		if claim.Kind != tc.kind {
			t.Errorf("%s: expected kind %s, got %s", tc.name, tc.kind, claim.Kind)
		}
	}

	if byType["age"].Value != "42" {
		t.Errorf("age value: %q", byType["age"].Value)
	}
	if byType["admin"].Value != "true" {
		t.Errorf("admin value: %q", byType["admin"].Value)
	}
}

func TestTypedClaims_RolesFlattened(t *testing.T) {
	mc := jwt.MapClaims{"roles": []any{"writer", "editor"}}

	var roleClaims []authz.Claim
	for _, c := range TypedClaims(mc) {
		if c.Type == authz.RoleClaimType {
			roleClaims = append(roleClaims, c)
		}
	}
	if len(roleClaims) != 2 {
		t.Fatalf("expected 2 role claims, got %d", len(roleClaims))
	}
	for _, c := range roleClaims {
		if c.Kind != authz.KindString {
			t.Errorf("role claim should be a string, got %s", c.Kind)
		}
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	token, err := GenerateAccessToken("u-1", []string{"writer"}, secret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	mc, err := ParseAccessToken(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sub, _ := mc["sub"].(string); sub != "u-1" {
		t.Errorf("expected sub u-1, got %v", mc["sub"])
	}
	roles := RolesFromClaims(mc)
	if len(roles) != 1 || roles[0] != "writer" {
		t.Errorf("roles mismatch: %v", roles)
	}

	if _, err := ParseAccessToken(token, "wrong-secret"); err == nil {
		t.Error("expected signature error with wrong secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword("s3cret", hash) {
		t.Error("expected password to verify")
	}
	if CheckPassword("wrong", hash) {
		t.Error("expected wrong password to fail")
	}
}
