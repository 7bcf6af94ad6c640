package rbac

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// RoutePermission declares the permission a route requires. Patterns are
// relative to the prefix they are registered under.
type RoutePermission struct {
	Method     string
	Pattern    string
	Permission string
}

// Registry is the declared route → permission table. Routes absent from
// both the protected and the public table are treated as misconfigured.
type Registry struct {
	mu           sync.RWMutex
	protected    map[string]string
	public       map[string]struct{}
	descriptions map[string]string
	errs         []error
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		protected:    make(map[string]string),
		public:       make(map[string]struct{}),
		descriptions: make(map[string]string),
	}
}

// RouteKey builds the route identifier used by the registry.
func RouteKey(method, pattern string) string {
	return strings.ToUpper(method) + " " + normalizePattern(pattern)
}

// Protect declares that method+pattern requires key.
func (r *Registry) Protect(method, pattern, key string) *Registry {
	key = NormalizeKey(key)
	route := RouteKey(method, pattern)
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case !ValidKey(key):
		r.errs = append(r.errs, fmt.Errorf("%w: %q on %s", ErrInvalidKey, key, route))
	case r.isPublicLocked(route):
		r.errs = append(r.errs, fmt.Errorf("rbac: %s declared both public and protected", route))
	default:
		if existing, ok := r.protected[route]; ok && existing != key {
			r.errs = append(r.errs, fmt.Errorf("rbac: %s declared with %s and %s", route, existing, key))
			return r
		}
		r.protected[route] = key
	}
	return r
}

// ProtectAll declares every entry of routes under prefix.
func (r *Registry) ProtectAll(prefix string, routes []RoutePermission) *Registry {
	for _, rp := range routes {
		r.Protect(rp.Method, joinPattern(prefix, rp.Pattern), rp.Permission)
	}
	return r
}

// Public adds method+pattern to the explicit allow-list.
func (r *Registry) Public(method, pattern string) *Registry {
	route := RouteKey(method, pattern)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.protected[route]; ok {
		r.errs = append(r.errs, fmt.Errorf("rbac: %s declared both public and protected", route))
		return r
	}
	r.public[route] = struct{}{}
	return r
}

// Describe sets the catalog description used when key is seeded.
func (r *Registry) Describe(key, description string) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptions[NormalizeKey(key)] = strings.TrimSpace(description)
	return r
}

// Description returns the description registered for key.
func (r *Registry) Description(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.descriptions[key]
}

// Lookup returns the required key for a route, or public=true for
// allow-listed routes. found is false for undeclared routes.
func (r *Registry) Lookup(method, pattern string) (key string, public bool, found bool) {
	route := RouteKey(method, pattern)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.isPublicLocked(route) {
		return "", true, true
	}
	key, found = r.protected[route]
	return key, false, found
}

func (r *Registry) isPublicLocked(route string) bool {
	if _, ok := r.public[route]; ok {
		return true
	}
	// HEAD follows GET on the allow-list.
	if rest, ok := strings.CutPrefix(route, http.MethodHead+" "); ok {
		_, ok = r.public[http.MethodGet+" "+rest]
		return ok
	}
	return false
}

// Keys returns every declared permission key.
func (r *Registry) Keys() KeySet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(KeySet, len(r.protected))
	for _, key := range r.protected {
		set.Add(key)
	}
	return set
}

// Routes returns the declared protected routes, sorted by route.
func (r *Registry) Routes() []RoutePermission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoutePermission, 0, len(r.protected))
	for route, key := range r.protected {
		method, pattern, _ := strings.Cut(route, " ")
		out = append(out, RoutePermission{Method: method, Pattern: pattern, Permission: key})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern == out[j].Pattern {
			return out[i].Method < out[j].Method
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out
}

// Verify walks the mounted routes and fails when any of them is neither
// protected nor public, or when a declaration was invalid.
func (r *Registry) Verify(routes chi.Routes) error {
	r.mu.RLock()
	errs := append([]error(nil), r.errs...)
	r.mu.RUnlock()

	var undeclared []string
	walkErr := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if _, _, found := r.Lookup(method, route); !found {
			undeclared = append(undeclared, RouteKey(method, route))
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, fmt.Errorf("rbac: walk routes: %w", walkErr))
	}
	sort.Strings(undeclared)
	for _, route := range undeclared {
		errs = append(errs, fmt.Errorf("rbac: route %s has no declared permission", route))
	}
	return errors.Join(errs...)
}

func joinPattern(prefix, pattern string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if pattern == "" || pattern == "/" {
		if prefix == "" {
			return "/"
		}
		return prefix
	}
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}
	return prefix + pattern
}

// normalizePattern reduces chi route patterns from Walk and from a matched
// route context to one canonical spelling.
func normalizePattern(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	for strings.Contains(pattern, "/*/") {
		pattern = strings.ReplaceAll(pattern, "/*/", "/")
	}
	for strings.Contains(pattern, "//") {
		pattern = strings.ReplaceAll(pattern, "//", "/")
	}
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	return pattern
}
