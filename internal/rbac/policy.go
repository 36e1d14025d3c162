// Package rbac implements the department-level access-control model: which
// document categories a role may read, which roles a chunk gets tagged with
// at ingestion time, and which roles a requester effectively holds at query
// time via the role hierarchy.
package rbac

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidRole is returned when a role string is not part of the policy.
var ErrInvalidRole = errors.New("invalid role")

// Policy maps roles to the document categories they may read directly, plus
// a role hierarchy granting superior roles the access of their subordinates.
//
// Direct categories drive what gets tagged on a chunk at ingestion time; the
// hierarchy is applied only at retrieval time (see EffectiveRoles). Keeping
// the two separate means stored chunk metadata stays valid even if the
// hierarchy changes later.
type Policy struct {
	categories map[string][]string
	hierarchy  map[string][]string
}

// NewPolicy builds a policy from a role→categories map and a role→subordinate
// roles hierarchy. Role and category names are canonicalized to lowercase.
// Every role named in the hierarchy must also exist in the category map.
func NewPolicy(categories map[string][]string, hierarchy map[string][]string) (*Policy, error) {
	p := &Policy{
		categories: make(map[string][]string, len(categories)),
		hierarchy:  make(map[string][]string, len(hierarchy)),
	}

	for role, cats := range categories {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			return nil, fmt.Errorf("rbac: empty role name")
		}
		lowered := make([]string, 0, len(cats))
		for _, c := range cats {
			lowered = append(lowered, strings.ToLower(strings.TrimSpace(c)))
		}
		p.categories[role] = lowered
	}

	for role, subs := range hierarchy {
		role = strings.ToLower(strings.TrimSpace(role))
		if _, ok := p.categories[role]; !ok {
			return nil, fmt.Errorf("rbac: hierarchy references unknown role %q", role)
		}
		lowered := make([]string, 0, len(subs))
		for _, s := range subs {
			s = strings.ToLower(strings.TrimSpace(s))
			if _, ok := p.categories[s]; !ok {
				return nil, fmt.Errorf("rbac: hierarchy for %q references unknown role %q", role, s)
			}
			lowered = append(lowered, s)
		}
		p.hierarchy[role] = lowered
	}

	return p, nil
}

// DefaultPolicy returns the built-in corporate policy: each department role
// reads its own department plus general, the employees role reads general
// only, and c_level reads every department directly and additionally
// inherits all department roles through the hierarchy.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(
		map[string][]string{
			"finance":     {"finance", "general"},
			"marketing":   {"marketing", "general"},
			"hr":          {"hr", "general"},
			"engineering": {"engineering", "general"},
			"employees":   {"general"},
			"c_level":     {"finance", "marketing", "hr", "engineering", "general"},
		},
		map[string][]string{
			"c_level": {"finance", "marketing", "hr", "engineering", "employees"},
		},
	)
	if err != nil {
		// The built-in maps are internally consistent.
		panic(err)
	}
	return p
}

// Normalize canonicalizes a role string the way the policy stores roles.
func Normalize(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// AllowedCategories returns the direct category set of a role, sorted
// ascending. Categories absent from the known set are the caller's concern;
// see ResolveCategories for filtering against an on-disk corpus.
// Returns ErrInvalidRole for an unknown role.
func (p *Policy) AllowedCategories(role string) ([]string, error) {
	cats, ok := p.categories[Normalize(role)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	out := make([]string, len(cats))
	copy(out, cats)
	sort.Strings(out)
	return out, nil
}

// ResolveCategories returns the role's direct categories restricted to the
// given set of categories that actually exist. Non-existent categories are
// silently dropped, not an error.
func (p *Policy) ResolveCategories(role string, existing []string) ([]string, error) {
	cats, err := p.AllowedCategories(role)
	if err != nil {
		return nil, err
	}

	exists := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		exists[strings.ToLower(c)] = struct{}{}
	}

	resolved := make([]string, 0, len(cats))
	for _, c := range cats {
		if _, ok := exists[c]; ok {
			resolved = append(resolved, c)
		}
	}
	return resolved, nil
}

// RolesForCategory returns every role whose direct category set contains the
// category, sorted ascending and deduplicated. Roles that only gain access
// through the hierarchy are not included: hierarchy is a query-time concern,
// and chunk metadata must stay stable if the hierarchy changes.
func (p *Policy) RolesForCategory(category string) []string {
	category = strings.ToLower(strings.TrimSpace(category))

	var roles []string
	for role, cats := range p.categories {
		for _, c := range cats {
			if c == category {
				roles = append(roles, role)
				break
			}
		}
	}
	sort.Strings(roles)
	return roles
}

// EffectiveRoles returns the set of roles a requester effectively holds:
// the role itself plus every subordinate role listed in the hierarchy.
// Returns ErrInvalidRole for an unknown role.
func (p *Policy) EffectiveRoles(role string) (map[string]struct{}, error) {
	role = Normalize(role)
	if _, ok := p.categories[role]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	effective := map[string]struct{}{role: {}}
	for _, sub := range p.hierarchy[role] {
		effective[sub] = struct{}{}
	}
	return effective, nil
}

// Roles returns all known role names, sorted ascending.
func (p *Policy) Roles() []string {
	roles := make([]string, 0, len(p.categories))
	for role := range p.categories {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Categories returns the union of every role's direct categories, sorted
// ascending. This is the set of directories a full ingestion expects to find
// under the corpus root.
func (p *Policy) Categories() []string {
	seen := make(map[string]struct{})
	for _, cats := range p.categories {
		for _, c := range cats {
			seen[c] = struct{}{}
		}
	}
	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}
