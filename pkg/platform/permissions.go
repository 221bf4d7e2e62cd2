package platform

import "fmt"

// Permission is a host-declared capability checked at subscription time.
type Permission int

const (
	FineLocation Permission = iota + 1
	CoarseLocation
	BackgroundLocation
)

func (p Permission) String() string {
	switch p {
	case FineLocation:
		return "fine_location"
	case CoarseLocation:
		return "coarse_location"
	case BackgroundLocation:
		return "background_location"
	default:
		return "unknown"
	}
}

// PermissionChecker reports whether a permission has been granted.
type PermissionChecker interface {
	Granted(p Permission) bool
}

// Grants is a fixed set of granted permissions.
type Grants map[Permission]struct{}

// NewGrants builds a Grants set.
func NewGrants(perms ...Permission) Grants {
	g := make(Grants, len(perms))
	for _, p := range perms {
		g[p] = struct{}{}
	}
	return g
}

// ParseGrants builds a Grants set from permission names such as "fine_location".
func ParseGrants(names []string) (Grants, error) {
	g := make(Grants, len(names))
	for _, name := range names {
		p, ok := parsePermission(name)
		if !ok {
			return nil, fmt.Errorf("unknown permission %q", name)
		}
		g[p] = struct{}{}
	}
	return g, nil
}

func parsePermission(name string) (Permission, bool) {
	for _, p := range []Permission{FineLocation, CoarseLocation, BackgroundLocation} {
		if p.String() == name {
			return p, true
		}
	}
	return 0, false
}

func (g Grants) Granted(p Permission) bool {
	_, ok := g[p]
	return ok
}
