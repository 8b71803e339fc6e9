// Package fieldpath implements the bounded dotted-path grammar used for data
// classes and field tokens (e.g. "Observation.laboratory", "patient.identifier").
// A path is one to four segments of letters, digits and hyphens joined by dots;
// the final segment may be the wildcard "*".
package fieldpath

import "strings"

// MaxSegments is the maximum number of segments a path may carry.
const MaxSegments = 4

// Wildcard matches every path.
const Wildcard = "*"

// Valid reports whether s is a well-formed field path. The bare wildcard "*"
// is valid; a trailing ".*" segment is valid; empty paths and empty segments
// are not.
func Valid(s string) bool {
	if s == Wildcard {
		return true
	}
	if s == "" {
		return false
	}
	segments := strings.Split(s, ".")
	if len(segments) > MaxSegments {
		return false
	}
	for i, seg := range segments {
		if seg == Wildcard {
			// Only the final segment may be a wildcard.
			if i != len(segments)-1 {
				return false
			}
			continue
		}
		if !validSegment(seg) {
			return false
		}
	}
	return true
}

func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// Parent returns the path with its final segment removed, or "" for a
// single-segment path.
func Parent(s string) string {
	idx := strings.LastIndex(s, ".")
	if idx < 0 {
		return ""
	}
	return s[:idx]
}

// Root returns the first segment of the path.
func Root(s string) string {
	idx := strings.Index(s, ".")
	if idx < 0 {
		return s
	}
	return s[:idx]
}

// IsWildcard reports whether the pattern ends in a wildcard segment.
func IsWildcard(s string) bool {
	return s == Wildcard || strings.HasSuffix(s, "."+Wildcard)
}

// Matches reports whether path falls under pattern. A pattern matches its
// exact path, the bare wildcard matches everything, and a "Prefix.*" pattern
// matches Prefix itself and any path below it.
func Matches(pattern, path string) bool {
	if pattern == Wildcard {
		return true
	}
	if pattern == path {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "."+Wildcard); ok {
		return path == prefix || strings.HasPrefix(path, prefix+".")
	}
	return false
}

// Cover classifies how closely pattern covers path for match scoring:
// exact pattern, parent class ("Observation" over "Observation.laboratory"
// or "Observation.*"), bare wildcard, or no cover at all.
type Cover int

const (
	CoverNone Cover = iota
	CoverWildcard
	CoverParent
	CoverExact
)

// CoverOf returns the strongest cover relation between pattern and path.
func CoverOf(pattern, path string) Cover {
	switch {
	case pattern == path:
		return CoverExact
	case pattern == Wildcard:
		return CoverWildcard
	case IsWildcard(pattern) && Matches(pattern, path):
		return CoverParent
	case pattern == Root(path) && pattern != path:
		return CoverParent
	default:
		return CoverNone
	}
}
