package auth

import (
	"errors"
	"reflect"
	"testing"
)

func grant(role string, keys ...string) RoleGrant {
	g := RoleGrant{Role: Role{ID: "role_" + role, Name: role}}
	for _, k := range keys {
		resource, action, _ := SplitPermissionKey(k)
		g.Permissions = append(g.Permissions, Permission{
			ID:       "perm_" + resource + "_" + action,
			Resource: resource,
			Action:   action,
		})
	}
	return g
}

func TestResolveUnionsAndDeduplicates(t *testing.T) {
	got := Resolve([]RoleGrant{
		grant("editor", "orders:read", "orders:manage"),
		grant("viewer", "orders:read", "api:read"),
	})
	want := []string{"api:read", "orders:manage", "orders:read"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resolve = %v, want %v", got, want)
	}
}

func TestResolveNoRoles(t *testing.T) {
	got := Resolve(nil)
	if len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
}

func TestRoleNamesSorted(t *testing.T) {
	got := RoleNames([]RoleGrant{grant("viewer"), grant("admin")})
	want := []string{"admin", "viewer"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RoleNames = %v, want %v", got, want)
	}
}

func TestExpandAliases(t *testing.T) {
	catalog := []Permission{
		{Resource: "orders", Action: "read"},
		{Resource: "orders", Action: "manage"},
		{Resource: "api", Action: "read"},
	}

	got, err := ExpandAliases([]string{"api:read", "orders:*"}, catalog)
	if err != nil {
		t.Fatalf("ExpandAliases: %v", err)
	}
	want := []string{"api:read", "orders:read", "orders:manage"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandAliases = %v, want %v", got, want)
	}
}

func TestExpandAliasesDeduplicates(t *testing.T) {
	catalog := []Permission{
		{Resource: "orders", Action: "read"},
	}
	got, err := ExpandAliases([]string{"orders:read", "orders:*", "orders:read"}, catalog)
	if err != nil {
		t.Fatalf("ExpandAliases: %v", err)
	}
	if len(got) != 1 || got[0] != "orders:read" {
		t.Fatalf("expected single orders:read, got %v", got)
	}
}

func TestExpandAliasesUnknownResource(t *testing.T) {
	_, err := ExpandAliases([]string{"ghosts:*"}, []Permission{{Resource: "orders", Action: "read"}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExpandAliasesMalformedKey(t *testing.T) {
	if _, err := ExpandAliases([]string{"ordersread"}, nil); err == nil {
		t.Fatalf("key without separator must be rejected")
	}
}
