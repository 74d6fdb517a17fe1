package refpath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// segmentRegex parses a single segment of a path, e.g. `name`, `name[1]` or `name[0][2]`.
var segmentRegex = regexp.MustCompile(`^([^.\[\]]+)((?:\[\d+\])*)$`)

var indexRegex = regexp.MustCompile(`\[(\d+)\]`)

// Segment is a single component of a path: a field name followed by zero
// or more array indices.
type Segment struct {
	Name    string
	Indices []int
}

// NewSegment creates a segment, optionally indexed.
func NewSegment(name string, indices ...int) Segment {
	return Segment{Name: name, Indices: indices}
}

// Path is a parsed, dot-separated reference path such as `result.items[0].id`.
type Path []Segment

// Parse turns the canonical string form into a Path.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	var p Path
	for _, segmentStr := range strings.Split(raw, ".") {
		if segmentStr == "" {
			return nil, fmt.Errorf("path %q contains empty segment", raw)
		}

		matches := segmentRegex.FindStringSubmatch(segmentStr)
		if matches == nil {
			return nil, fmt.Errorf("invalid path segment format: %q", segmentStr)
		}

		segment := NewSegment(matches[1])
		for _, m := range indexRegex.FindAllStringSubmatch(matches[2], -1) {
			index, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("invalid index in segment %q: %w", segmentStr, err)
			}
			segment.Indices = append(segment.Indices, index)
		}
		p = append(p, segment)
	}
	return p, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String serializes the path back to its canonical form.
func (p Path) String() string {
	var sb strings.Builder
	for i, segment := range p {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(segment.Name)
		for _, idx := range segment.Indices {
			fmt.Fprintf(&sb, "[%d]", idx)
		}
	}
	return sb.String()
}

// Child returns a new path extended by one field.
func (p Path) Child(name string, indices ...int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, NewSegment(name, indices...))
}

// WithIndex returns a new path whose last segment carries one more index.
func (p Path) WithIndex(i int) Path {
	if len(p) == 0 {
		return p
	}
	out := make(Path, len(p))
	copy(out, p)
	last := out[len(out)-1]
	last.Indices = append(append([]int{}, last.Indices...), i)
	out[len(out)-1] = last
	return out
}

// ValidFieldName reports whether key can appear as a segment name.
func ValidFieldName(key string) bool {
	return key != "" && !strings.ContainsAny(key, ".[]{}")
}
