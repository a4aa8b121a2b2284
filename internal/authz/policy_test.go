package authz

import (
	"strings"
	"testing"
)

func policyResolver(t *testing.T, template string) *Resolver {
	t.Helper()
	return newTestResolver(t, []EntityPermissions{{
		Entity: "book",
		Permissions: []Permission{grants("writer", Action{
			Operation: OpRead,
			Policy:    &Policy{Database: template},
		})},
	}})
}

func TestCompileDatabasePolicy_TypedSubstitution(t *testing.T) {
	res := policyResolver(t,
		"@claims.user_email ne @item.col1 and @claims.contact_no eq @item.col2 and not(@claims.name eq @item.col3)")
	claims := ClaimSet{
		"user_email": {Type: "user_email", Value: "xyz@microsoft.com", Kind: KindString},
		"contact_no": {Type: "contact_no", Value: "1234", Kind: KindInt64},
		"name":       {Type: "name", Value: "Aaron", Kind: KindString},
	}

	got, err := res.CompileDatabasePolicy("book", "writer", OpRead, claims)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := "'xyz@microsoft.com' ne @item.col1 and 1234 eq @item.col2 and not('Aaron' eq @item.col3)"
	if got != want {
		t.Errorf("compiled policy mismatch:\n got: %s\nwant: %s", got, want)
	}
}

func TestCompileDatabasePolicy_Deterministic(t *testing.T) {
	res := policyResolver(t, "@claims.user_id eq @item.owner_id")
	claims := ClaimSet{"user_id": {Type: "user_id", Value: "42", Kind: KindInt64}}

	first, err := res.CompileDatabasePolicy("book", "writer", OpRead, claims)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := res.CompileDatabasePolicy("book", "writer", OpRead, claims)
		if err != nil {
			t.Fatalf("compile repeat %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("non-deterministic output: %q vs %q", again, first)
		}
	}
}

func TestCompileDatabasePolicy_MissingClaim(t *testing.T) {
	res := policyResolver(t, "@claims.emprating eq @item.rating")

	_, err := res.CompileDatabasePolicy("book", "writer", OpRead, ClaimSet{})
	if err == nil {
		t.Fatal("expected missing claim error")
	}
	authzErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *authz.Error, got %T", err)
	}
	if authzErr.Status != 403 {
		t.Errorf("expected 403, got %d", authzErr.Status)
	}
	if authzErr.Message != "User does not possess all the claims required to perform this operation." {
		t.Errorf("unexpected message: %q", authzErr.Message)
	}
}

func TestCompileDatabasePolicy_NoPolicyConfigured(t *testing.T) {
	res := newTestResolver(t, []EntityPermissions{{
		Entity:      "book",
		Permissions: []Permission{grants("writer", op("read"))},
	}})

	got, err := res.CompileDatabasePolicy("book", "writer", OpRead, ClaimSet{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty predicate, got %q", got)
	}
}

func TestCompileDatabasePolicy_InheritedPolicy(t *testing.T) {
	res := newTestResolver(t, []EntityPermissions{{
		Entity: "book",
		Permissions: []Permission{grants("anonymous", Action{
			Operation: OpRead,
			Policy:    &Policy{Database: "@claims.user_id eq @item.owner_id"},
		})},
	}})
	claims := ClaimSet{"user_id": {Type: "user_id", Value: "7", Kind: KindInt64}}

	got, err := res.CompileDatabasePolicy("book", RoleAuthenticated, OpRead, claims)
	if err != nil {
		t.Fatalf("compile via inherited grant: %v", err)
	}
	if got != "7 eq @item.owner_id" {
		t.Errorf("unexpected predicate: %q", got)
	}
}

func TestCompileTemplate_ClaimKinds(t *testing.T) {
	cases := []struct {
		kind  ClaimKind
		value string
		want  string
	}{
		{KindString, "abc", "'abc'"},
		{KindBoolean, "true", "true"},
		{KindInt16, "12", "12"},
		{KindInt32, "1234", "1234"},
		{KindInt64, "123456789", "123456789"},
		{KindUint32, "42", "42"},
		{KindUint64, "42", "42"},
		{KindDouble, "3.14", "3.14"},
		{KindJSONNull, "null", "null"},
	}
	for _, tc := range cases {
		claims := ClaimSet{"v": {Type: "v", Value: tc.value, Kind: tc.kind}}
		got, err := CompileTemplate("@claims.v eq @item.col", claims)
		if err != nil {
			t.Errorf("kind %s: %v", tc.kind, err)
			continue
		}
		want := tc.want + " eq @item.col"
		if got != want {
			t.Errorf("kind %s: got %q, want %q", tc.kind, got, want)
		}
	}
}

func TestCompileTemplate_StringClaimQuoteEscaped(t *testing.T) {
	claims := ClaimSet{"name": {Type: "name", Value: "O'Brien", Kind: KindString}}

	got, err := CompileTemplate("@claims.name eq @item.author", claims)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	// Embedded quotes are doubled so the literal cannot terminate early.
	if got != "'O''Brien' eq @item.author" {
		t.Errorf("unexpected predicate: %q", got)
	}
}

func TestCompileTemplate_UnsupportedClaimKinds(t *testing.T) {
	for _, kind := range []ClaimKind{KindJSONObject, KindJSONArray, KindDateTime} {
		claims := ClaimSet{"v": {Type: "v", Value: "x", Kind: kind}}
		_, err := CompileTemplate("@claims.v eq @item.col", claims)
		if err == nil {
			t.Errorf("kind %s: expected unsupported type error", kind)
			continue
		}
		authzErr, ok := err.(*Error)
		if !ok || authzErr.Status != 403 {
			t.Errorf("kind %s: expected 403 authz error, got %v", kind, err)
			continue
		}
		if !strings.Contains(authzErr.Message, `"v"`) || !strings.Contains(authzErr.Message, kind.String()) {
			t.Errorf("kind %s: message should name claim and type: %q", kind, authzErr.Message)
		}
	}
}
