package mapping

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedPath is returned for paths that do not follow the
// "a.b[].c" / "a.b[0].c" grammar
var ErrMalformedPath = errors.New("mapping: malformed path")

var segmentPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_\-]*)(\[(\d*)\])?$`)

type segment struct {
	key        string
	collection bool
	index      int
}

// Path is a parsed field path. Dots separate nested keys, "[]" addresses
// every element of a collection and "[n]" a single element.
type Path struct {
	raw      string
	segments []segment
}

// ParsePath parses a field path
func ParsePath(raw string) (Path, error) {
	if strings.TrimSpace(raw) != raw || raw == "" {
		return Path{}, fmt.Errorf("%w: %q", ErrMalformedPath, raw)
	}
	parts := strings.Split(raw, ".")
	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		m := segmentPattern.FindStringSubmatch(part)
		if m == nil {
			return Path{}, fmt.Errorf("%w: %q", ErrMalformedPath, raw)
		}
		seg := segment{key: m[1], index: -1}
		if m[2] != "" {
			if m[3] == "" {
				seg.collection = true
			} else {
				idx, err := strconv.Atoi(m[3])
				if err != nil {
					return Path{}, fmt.Errorf("%w: %q", ErrMalformedPath, raw)
				}
				seg.index = idx
			}
		}
		segs = append(segs, seg)
	}
	return Path{raw: raw, segments: segs}, nil
}

// MustParsePath parses a path or panics
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the textual path
func (p Path) String() string {
	return p.raw
}

// HasCollection reports whether the path fans out over a collection
func (p Path) HasCollection() bool {
	for _, s := range p.segments {
		if s.collection {
			return true
		}
	}
	return false
}

// Get reads the value at the path. A "[]" segment yields a []any with one
// entry per element (nil where the element lacks the rest of the path).
func (p Path) Get(doc map[string]any) (any, bool) {
	return getAt(doc, p.segments)
}

func getAt(cur any, segs []segment) (any, bool) {
	if len(segs) == 0 {
		return cur, true
	}
	m, ok := cur.(map[string]any)
	if !ok {
		return nil, false
	}
	seg := segs[0]
	v, ok := m[seg.key]
	if !ok || v == nil {
		return nil, false
	}
	rest := segs[1:]

	switch {
	case seg.collection:
		items, ok := v.([]any)
		if !ok {
			return nil, false
		}
		if len(rest) == 0 {
			return items, true
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			r, _ := getAt(item, rest)
			out = append(out, r)
		}
		return out, true
	case seg.index >= 0:
		items, ok := v.([]any)
		if !ok || seg.index >= len(items) {
			return nil, false
		}
		return getAt(items[seg.index], rest)
	default:
		return getAt(v, rest)
	}
}

// Set writes value at the path, creating intermediate objects. A "[]"
// segment requires value to be a []any and writes element i into the i-th
// element of the collection.
func (p Path) Set(doc map[string]any, value any) error {
	if err := setAt(doc, p.segments, value); err != nil {
		return fmt.Errorf("set %s: %w", p.raw, err)
	}
	return nil
}

func setAt(m map[string]any, segs []segment, value any) error {
	seg := segs[0]
	rest := segs[1:]

	switch {
	case seg.collection:
		values, ok := value.([]any)
		if !ok {
			return fmt.Errorf("collection segment %q needs a list value, got %T", seg.key, value)
		}
		if len(rest) == 0 {
			m[seg.key] = values
			return nil
		}
		items := growList(m[seg.key], len(values))
		for i, v := range values {
			elem, err := objectAt(items, i)
			if err != nil {
				return err
			}
			if v == nil {
				continue
			}
			if err := setAt(elem, rest, v); err != nil {
				return err
			}
		}
		m[seg.key] = items
		return nil
	case seg.index >= 0:
		items := growList(m[seg.key], seg.index+1)
		if len(rest) == 0 {
			items[seg.index] = value
		} else {
			elem, err := objectAt(items, seg.index)
			if err != nil {
				return err
			}
			if err := setAt(elem, rest, value); err != nil {
				return err
			}
		}
		m[seg.key] = items
		return nil
	default:
		if len(rest) == 0 {
			m[seg.key] = value
			return nil
		}
		child, ok := m[seg.key].(map[string]any)
		if !ok {
			if existing, present := m[seg.key]; present && existing != nil {
				return fmt.Errorf("%q is %T, not an object", seg.key, existing)
			}
			child = make(map[string]any)
			m[seg.key] = child
		}
		return setAt(child, rest, value)
	}
}

func growList(existing any, n int) []any {
	items, _ := existing.([]any)
	for len(items) < n {
		items = append(items, nil)
	}
	return items
}

func objectAt(items []any, i int) (map[string]any, error) {
	if items[i] == nil {
		obj := make(map[string]any)
		items[i] = obj
		return obj, nil
	}
	obj, ok := items[i].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("element %d is %T, not an object", i, items[i])
	}
	return obj, nil
}
