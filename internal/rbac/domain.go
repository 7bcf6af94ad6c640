package rbac

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Permission is an atomic, stable-keyed capability in the catalog.
type Permission struct {
	ID          int64     `json:"id"`
	Key         string    `json:"key"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Role is a named bundle of permissions. Roles are flat: a role's effective
// permissions are exactly the keys attached to it.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeySet is a set of permission keys. Sets returned by Cache.Resolve are
// shared between requests and must not be mutated.
type KeySet map[string]struct{}

// NewKeySet builds a KeySet from keys.
func NewKeySet(keys ...string) KeySet {
	set := make(KeySet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Has reports whether key is in the set.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Add inserts key.
func (s KeySet) Add(key string) {
	s[key] = struct{}{}
}

// Len returns the number of keys.
func (s KeySet) Len() int {
	return len(s)
}

// Keys returns the keys in sorted order.
func (s KeySet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Difference returns the keys of s that are not in other.
func (s KeySet) Difference(other KeySet) KeySet {
	out := make(KeySet)
	for k := range s {
		if !other.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// Intersect returns the keys present in both sets.
func (s KeySet) Intersect(other KeySet) KeySet {
	out := make(KeySet)
	for k := range s {
		if other.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*(\.[a-z0-9_-]+)+$`)

// NormalizeKey trims and lowercases a permission key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// NormalizeRoleName trims name and puts it in Unicode NFC form so that
// visually identical names collide on the unique constraint.
func NormalizeRoleName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ValidKey reports whether key has the resource.action shape.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}
