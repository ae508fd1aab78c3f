package kvstore

import (
	"fmt"
	"sort"
	"strings"
)

const forbiddenKeyChars = ".#$[]"

// ValidKey reports whether k can be used as a single path segment.
func ValidKey(k string) error {
	if k == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidPath)
	}
	if strings.ContainsAny(k, forbiddenKeyChars+"/") {
		return fmt.Errorf("%w: key %q contains a reserved character", ErrInvalidPath, k)
	}
	return nil
}

// Split breaks path into validated segments. The root path ("" or "/")
// yields no segments.
func Split(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if err := ValidKey(s); err != nil {
			return nil, err
		}
	}
	return segs, nil
}

// Join builds a path from parts, skipping empty ones.
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// Clean returns the canonical form of path.
func Clean(path string) string {
	return strings.Trim(path, "/")
}

// Contains reports whether child is parent or lies below it.
func Contains(parent, child string) bool {
	parent, child = Clean(parent), Clean(child)
	if parent == "" || parent == child {
		return true
	}
	return strings.HasPrefix(child, parent+"/")
}

// Overlaps reports whether a change at one path can affect the other.
func Overlaps(a, b string) bool {
	return Contains(a, b) || Contains(b, a)
}

// Ancestors lists the proper ancestors of path, nearest last, excluding root.
func Ancestors(path string) []string {
	segs := strings.Split(Clean(path), "/")
	out := make([]string, 0, len(segs))
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], "/"))
	}
	return out
}

// SortedPaths returns the keys of updates in lexical order and rejects sets
// where one path contains another.
func SortedPaths(updates map[string]any) ([]string, error) {
	paths := make([]string, 0, len(updates))
	seen := make(map[string]bool, len(updates))
	for p := range updates {
		if _, err := Split(p); err != nil {
			return nil, err
		}
		c := Clean(p)
		if seen[c] {
			return nil, fmt.Errorf("%w: %q given twice", ErrOverlappingPaths, c)
		}
		seen[c] = true
		paths = append(paths, c)
	}
	sort.Strings(paths)
	for i := range paths {
		for j := i + 1; j < len(paths); j++ {
			if Overlaps(paths[i], paths[j]) {
				return nil, fmt.Errorf("%w: %q and %q", ErrOverlappingPaths, paths[i], paths[j])
			}
		}
	}
	return paths, nil
}
