package kvstore

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Normalize converts an arbitrary Go value into the stored form: a JSON
// round trip, lists turned into index-keyed objects, nulls and empty objects
// dropped. A nil result means "nothing stored".
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return toStored(raw)
}

func toStored(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if err := ValidKey(k); err != nil {
				return nil, err
			}
			s, err := toStored(child)
			if err != nil {
				return nil, err
			}
			if s != nil {
				out[k] = s
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	case []any:
		out := make(map[string]any, len(t))
		for i, child := range t {
			s, err := toStored(child)
			if err != nil {
				return nil, err
			}
			if s != nil {
				out[strconv.Itoa(i)] = s
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	default:
		return t, nil
	}
}

// Clone deep-copies a stored value.
func Clone(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, child := range m {
		out[k] = Clone(child)
	}
	return out
}

// Lookup returns the subtree of root under segs, nil when absent.
func Lookup(root any, segs []string) any {
	cur := root
	for _, s := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[s]
	}
	return cur
}

// Put stores v (already normalized) under segs and returns the new root.
// Empty parents are pruned and scalar parents replaced, as a tree store
// would do.
func Put(root any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}
	m, ok := root.(map[string]any)
	if !ok {
		if v == nil {
			return root
		}
		m = make(map[string]any)
	}
	child := Put(m[segs[0]], segs[1:], v)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Flatten lists every scalar leaf below v keyed by its path under prefix.
func Flatten(prefix string, v any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, Clean(prefix), v)
	return out
}

func flattenInto(out map[string]any, prefix string, v any) {
	switch t := v.(type) {
	case nil:
	case map[string]any:
		for k, child := range t {
			flattenInto(out, Join(prefix, k), child)
		}
	default:
		out[prefix] = t
	}
}

// Unflatten rebuilds the subtree at base from leaves keyed by full path.
func Unflatten(base string, leaves map[string]any) any {
	base = Clean(base)
	var root any
	for p, v := range leaves {
		if !Contains(base, p) {
			continue
		}
		rel := Clean(p[len(base):])
		segs, err := Split(rel)
		if err != nil {
			continue
		}
		root = Put(root, segs, v)
	}
	return root
}

// Decode maps a stored value onto a typed destination via JSON.
func Decode(v any, dst any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode stored value: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode stored value: %w", err)
	}
	return nil
}
