// Package scrub applies PHI detection and redaction recursively to
// structured values before they reach logs or other sinks.
package scrub

import (
	"fmt"
	"reflect"
	"time"

	"github.com/researchflow/phi-sentinel/internal/phi"
)

// CircularMarker replaces a container revisited during the walk. Cycle
// handling is safety-critical here: the scrubber runs on every log write
// and must terminate on any input.
const CircularMarker = "[CIRCULAR]"

// Scrubber recursively redacts every string leaf and every map key of a
// JSON-like value. Non-string scalars and timestamps pass through
// unchanged. Scrubbers are stateless and safe for concurrent use.
type Scrubber struct {
	scanner *phi.Scanner
	tier    phi.Tier
}

// New creates a scrubber using the comprehensive pattern tier, since log
// sinks are an egress surface.
func New(scanner *phi.Scanner) *Scrubber {
	return &Scrubber{scanner: scanner, tier: phi.TierOutputGuard}
}

// Value returns a scrubbed copy of v. The input is never mutated.
func (s *Scrubber) Value(v any) any {
	return s.walk(v, make(map[uintptr]bool))
}

// walk descends into maps and sequences, tracking container identity along
// the current path so reference cycles short-circuit to a marker instead of
// recursing unboundedly.
func (s *Scrubber) walk(v any, visiting map[uintptr]bool) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return s.redact(val)
	case time.Time:
		return val
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val

	case map[string]any:
		ptr := reflect.ValueOf(val).Pointer()
		if visiting[ptr] {
			return CircularMarker
		}
		visiting[ptr] = true
		out := make(map[string]any, len(val))
		for key, value := range val {
			out[s.redact(key)] = s.walk(value, visiting)
		}
		delete(visiting, ptr)
		return out

	case map[string]string:
		ptr := reflect.ValueOf(val).Pointer()
		if visiting[ptr] {
			return CircularMarker
		}
		visiting[ptr] = true
		out := make(map[string]string, len(val))
		for key, value := range val {
			out[s.redact(key)] = s.redact(value)
		}
		delete(visiting, ptr)
		return out

	case []any:
		ptr := reflect.ValueOf(val).Pointer()
		if visiting[ptr] {
			return CircularMarker
		}
		visiting[ptr] = true
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.walk(item, visiting)
		}
		delete(visiting, ptr)
		return out

	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = s.redact(item)
		}
		return out

	default:
		return s.walkReflect(reflect.ValueOf(v), visiting)
	}
}

// walkReflect handles map and sequence kinds beyond the common JSON shapes.
// Anything else passes through unchanged.
func (s *Scrubber) walkReflect(rv reflect.Value, visiting map[uintptr]bool) any {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return rv.Interface()
		}
		return s.walk(rv.Elem().Interface(), visiting)

	case reflect.Map:
		ptr := rv.Pointer()
		if visiting[ptr] {
			return CircularMarker
		}
		visiting[ptr] = true
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key()
			keyStr, ok := key.Interface().(string)
			if !ok {
				// key.String() on a non-string kind is "<int Value>" etc,
				// collapsing distinct keys into one entry.
				keyStr = fmt.Sprint(key.Interface())
			}
			out[s.redact(keyStr)] = s.walk(iter.Value().Interface(), visiting)
		}
		delete(visiting, ptr)
		return out

	case reflect.Slice:
		ptr := rv.Pointer()
		if visiting[ptr] {
			return CircularMarker
		}
		visiting[ptr] = true
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = s.walk(rv.Index(i).Interface(), visiting)
		}
		delete(visiting, ptr)
		return out

	case reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = s.walk(rv.Index(i).Interface(), visiting)
		}
		return out

	default:
		return rv.Interface()
	}
}

func (s *Scrubber) redact(text string) string {
	redacted, _ := s.scanner.RedactText(text, s.tier)
	return redacted
}
