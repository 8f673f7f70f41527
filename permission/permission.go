package permission

import (
	"strings"
)

// Wildcard grants every permission on a resource. As a trailing path
// segment it also matches every resource below the prefix.
const Wildcard = "*"

// Match reports whether a granted resource pattern covers the resource being checked.
// Patterns are path-like: "/games/:gameId" matches "/games/42", "/games/*" matches
// "/games/42/score". Matching is case-sensitive.
func Match(pattern, resource string) bool {
	if pattern == "" || resource == "" {
		return false
	}
	if pattern == resource || pattern == Wildcard {
		return true
	}
	if strings.HasSuffix(pattern, Wildcard) {
		prefix := strings.TrimSuffix(pattern, Wildcard)
		if strings.HasPrefix(resource, prefix) {
			return true
		}
	}
	ps := splitPath(pattern)
	rs := splitPath(resource)
	for i, seg := range ps {
		if seg == Wildcard && i == len(ps)-1 {
			return len(rs) >= i
		}
		if i >= len(rs) {
			return false
		}
		switch {
		case strings.HasPrefix(seg, ":"):
			if rs[i] == "" {
				return false
			}
		case seg != rs[i]:
			return false
		}
	}
	return len(ps) == len(rs)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Grants reports whether perms contains wanted or the wildcard.
func Grants(perms []string, wanted string) bool {
	for _, p := range perms {
		if p == Wildcard || p == wanted {
			return true
		}
	}
	return false
}

// Normalize trims and de-duplicates a list of resources or permissions, keeping order.
func Normalize(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
