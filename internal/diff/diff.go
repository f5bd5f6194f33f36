// Package diff compares two JSON documents structurally and reports
// additions, removals, and value changes keyed by path.
//
// Maps are compared by key. Sequences are compared as multisets: two
// sequences holding equal elements in different order are equal. Scalar
// equality is exact on type and literal value. Comparison is a pure
// function of document content; map key order never affects the result.
package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// rootPath is the path assigned to the document root.
const rootPath = "$"

// Change records a value replaced at a path.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Report is the outcome of comparing two documents. Keys are paths of the
// form "$", "$.db.host", or "$.servers[2]". Sequence indices refer to the
// element's position in its own document.
type Report struct {
	Added   map[string]any    `json:"added,omitempty"`
	Removed map[string]any    `json:"removed,omitempty"`
	Changed map[string]Change `json:"changed,omitempty"`
}

// Empty reports whether the two documents compared equal.
func (r *Report) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Changed) == 0
}

// Compare diffs document a against document b. Elements present only in b
// are additions; elements present only in a are removals.
func Compare(a, b json.RawMessage) (*Report, error) {
	av, err := decode(a)
	if err != nil {
		return nil, fmt.Errorf("decode first document: %w", err)
	}
	bv, err := decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode second document: %w", err)
	}

	r := &Report{
		Added:   make(map[string]any),
		Removed: make(map[string]any),
		Changed: make(map[string]Change),
	}
	compareValue(rootPath, av, bv, r)
	return r, nil
}

// decode unmarshals preserving number literals, so 1 and 1.0 stay distinct.
func decode(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func compareValue(path string, a, b any, r *Report) {
	am, aIsMap := a.(map[string]any)
	bm, bIsMap := b.(map[string]any)
	if aIsMap && bIsMap {
		compareMaps(path, am, bm, r)
		return
	}

	as, aIsSeq := a.([]any)
	bs, bIsSeq := b.([]any)
	if aIsSeq && bIsSeq {
		compareSequences(path, as, bs, r)
		return
	}

	if !equal(a, b) {
		r.Changed[path] = Change{Old: a, New: b}
	}
}

func compareMaps(path string, a, b map[string]any, r *Report) {
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			r.Removed[childPath(path, k)] = av
			continue
		}
		compareValue(childPath(path, k), av, bv, r)
	}
	for k, bv := range b {
		if _, ok := a[k]; !ok {
			r.Added[childPath(path, k)] = bv
		}
	}
}

// compareSequences matches elements as a multiset. Unmatched elements of a
// are removals, unmatched elements of b are additions; matched pairs are
// never descended into, so reordering alone produces an empty report.
func compareSequences(path string, a, b []any, r *Report) {
	used := make([]bool, len(b))
	for i, av := range a {
		found := false
		for j, bv := range b {
			if used[j] {
				continue
			}
			if equal(av, bv) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			r.Removed[indexPath(path, i)] = av
		}
	}
	for j, bv := range b {
		if !used[j] {
			r.Added[indexPath(path, j)] = bv
		}
	}
}

// equal is deep, order-insensitive equality: maps by key, sequences as
// multisets, scalars by type and literal value.
func equal(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !equal(v, w) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		used := make([]bool, len(bv))
		for _, v := range av {
			found := false
			for j, w := range bv {
				if used[j] || !equal(v, w) {
					continue
				}
				used[j] = true
				found = true
				break
			}
			if !found {
				return false
			}
		}
		return true
	case json.Number:
		bv, ok := b.(json.Number)
		return ok && av.String() == bv.String()
	default:
		return a == b
	}
}

func childPath(path, key string) string {
	return path + "." + key
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
