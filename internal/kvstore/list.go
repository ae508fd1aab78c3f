package kvstore

import (
	"encoding/json"
	"sort"
	"strconv"
)

// CoerceList turns a stored value back into an ordered list. Index-keyed
// objects come back in numeric key order, followed by any non-numeric keys
// in lexical order; a lone scalar becomes a one-element list.
func CoerceList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case map[string]any:
		type entry struct {
			idx int
			key string
			num bool
		}
		entries := make([]entry, 0, len(t))
		for k := range t {
			n, err := strconv.Atoi(k)
			entries = append(entries, entry{idx: n, key: k, num: err == nil && n >= 0})
		}
		sort.Slice(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if a.num != b.num {
				return a.num
			}
			if a.num {
				return a.idx < b.idx
			}
			return a.key < b.key
		})
		out := make([]any, 0, len(entries))
		for _, e := range entries {
			out = append(out, t[e.key])
		}
		return out
	default:
		return []any{t}
	}
}

// List is an ordered sequence that decodes from either a JSON array or an
// index-keyed object.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*l = nil
		return nil
	}
	items := CoerceList(raw)
	out := make(List[T], 0, len(items))
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return err
		}
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		out = append(out, v)
	}
	*l = out
	return nil
}
