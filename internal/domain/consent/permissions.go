package consent

import "sort"

// PermissionSet is the field-level outcome of provision evaluation and
// filtering: four collections over field-path tokens. Allowed and Denied are
// disjoint after Normalize; Masked and Pseudonymized are transformations
// applied on top of Allowed.
type PermissionSet struct {
	Allowed       []string `json:"allowed"`
	Denied        []string `json:"denied"`
	Masked        []string `json:"masked"`
	Pseudonymized []string `json:"pseudonymized"`
}

// NewPermissionSet returns an empty permission set.
func NewPermissionSet() *PermissionSet {
	return &PermissionSet{}
}

// Allow adds paths to the allowed collection unless already denied.
func (ps *PermissionSet) Allow(paths ...string) {
	for _, p := range paths {
		if contains(ps.Denied, p) {
			continue
		}
		ps.Allowed = appendUnique(ps.Allowed, p)
	}
}

// Reallow moves paths back into allowed, clearing any standing deny. Used
// for nested permit exceptions under a deny parent.
func (ps *PermissionSet) Reallow(paths ...string) {
	for _, p := range paths {
		ps.Denied = remove(ps.Denied, p)
		ps.Allowed = appendUnique(ps.Allowed, p)
	}
}

// Deny adds paths to the denied collection and withdraws any standing allow.
func (ps *PermissionSet) Deny(paths ...string) {
	for _, p := range paths {
		ps.Allowed = remove(ps.Allowed, p)
		ps.Denied = appendUnique(ps.Denied, p)
	}
}

// Mask marks fields as masked.
func (ps *PermissionSet) Mask(fields ...string) {
	for _, f := range fields {
		ps.Masked = appendUnique(ps.Masked, f)
	}
}

// Pseudonymize marks fields as pseudonymized.
func (ps *PermissionSet) Pseudonymize(fields ...string) {
	for _, f := range fields {
		ps.Pseudonymized = appendUnique(ps.Pseudonymized, f)
	}
}

// IsAllowed reports whether the path is currently allowed.
func (ps *PermissionSet) IsAllowed(path string) bool {
	return contains(ps.Allowed, path)
}

// IsDenied reports whether the path is currently denied.
func (ps *PermissionSet) IsDenied(path string) bool {
	return contains(ps.Denied, path)
}

// Empty reports whether nothing is allowed.
func (ps *PermissionSet) Empty() bool {
	return len(ps.Allowed) == 0
}

// Normalize enforces the disjointness invariant (allowed minus denied) and
// sorts every collection so identical inputs yield identical output bytes.
func (ps *PermissionSet) Normalize() {
	filtered := ps.Allowed[:0]
	for _, p := range ps.Allowed {
		if !contains(ps.Denied, p) {
			filtered = append(filtered, p)
		}
	}
	ps.Allowed = filtered
	sort.Strings(ps.Allowed)
	sort.Strings(ps.Denied)
	sort.Strings(ps.Masked)
	sort.Strings(ps.Pseudonymized)
}

// Clone returns a deep copy.
func (ps *PermissionSet) Clone() *PermissionSet {
	out := &PermissionSet{}
	out.Allowed = append(out.Allowed, ps.Allowed...)
	out.Denied = append(out.Denied, ps.Denied...)
	out.Masked = append(out.Masked, ps.Masked...)
	out.Pseudonymized = append(out.Pseudonymized, ps.Pseudonymized...)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	if contains(list, s) {
		return list
	}
	return append(list, s)
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
