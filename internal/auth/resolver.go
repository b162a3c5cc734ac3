package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Resolve computes the effective permission set for a user's role grants:
// the union of every role's permission keys, sorted and deduplicated.
// No roles yields an empty set, never an error. Pure computation over the
// read-only view; no I/O. Callers must re-run it whenever role state
// changes — the result feeds both admin responses and mint-time
// snapshots.
func Resolve(grants []RoleGrant) []string {
	set := make(map[string]struct{})
	for _, g := range grants {
		for _, p := range g.Permissions {
			set[p.Key()] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RoleNames extracts the role-name list embedded in access tokens.
func RoleNames(grants []RoleGrant) []string {
	names := make([]string, 0, len(grants))
	for _, g := range grants {
		names = append(names, g.Role.Name)
	}
	sort.Strings(names)
	return names
}

// ExpandAliases resolves "resource:*" convenience aliases against the
// permission catalog at assignment time. Permission checks stay exact
// string lookups; no pattern matching ever happens at check time. An
// alias that matches nothing in the catalog is an input error so typos
// don't silently grant an empty set.
func ExpandAliases(keys []string, catalog []Permission) ([]string, error) {
	byResource := make(map[string][]string)
	for _, p := range catalog {
		byResource[p.Resource] = append(byResource[p.Resource], p.Key())
	}

	set := make(map[string]struct{})
	ordered := make([]string, 0, len(keys))
	add := func(k string) {
		if _, ok := set[k]; ok {
			return
		}
		set[k] = struct{}{}
		ordered = append(ordered, k)
	}

	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		resource, action, err := SplitPermissionKey(key)
		if err != nil {
			return nil, err
		}
		if action != "*" {
			add(key)
			continue
		}
		expanded, ok := byResource[resource]
		if !ok {
			return nil, fmt.Errorf("%w: no permissions in catalog for resource %q", ErrInvalidInput, resource)
		}
		for _, k := range expanded {
			add(k)
		}
	}
	return ordered, nil
}
