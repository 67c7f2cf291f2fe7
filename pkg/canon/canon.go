// Package canon is the only admissible encoder for anything that becomes a
// digest or flows into a signature. It canonicalizes values into the
// fixed tree of {null, boolean, finite number, string, ordered sequence,
// mapping with unique string keys} described by the determinism kernel,
// and exposes the stable sort and digest helpers every other component
// builds on.
package canon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// ErrCycle is returned when canonicalization encounters a cyclic structure.
// It is the only error canonicalization itself may return; every caller
// (especially validators) wraps Canonical and treats it as a validation
// issue on the offending path rather than propagating the error raw.
var ErrCycle = errors.New("CYCLE_IN_CANONICAL_JSON")

var jsonNumberType = reflect.TypeOf(json.Number(""))

// Canonical normalizes v into the canonical JSON serialization: strings
// NFC-normalized, finite numbers preserved exactly, null/undefined
// collapsed to null, cycles rejected, then handed to an RFC 8785 (JCS)
// transform for byte-exact key ordering and escaping. The output is
// byte-exact across platforms.
func Canonical(v any) ([]byte, error) {
	normalized, err := normalize(reflect.ValueOf(v), map[uintptr]bool{})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, fmt.Errorf("canon: marshal before JCS transform failed: %w", err)
	}
	transformed, err := jcs.Transform(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("canon: JCS transform failed: %w", err)
	}
	return transformed, nil
}

// CanonicalString is Canonical rendered as a string.
func CanonicalString(v any) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// normalize walks an arbitrary Go value and produces the admissible
// canonical tree: nil, bool, json.Number, string, []any, map[string]any.
// seen tracks pointer/map/slice addresses currently on the path being
// walked (not globally) so that shared-but-acyclic references (a DAG)
// are not mistaken for a cycle.
func normalize(v reflect.Value, seen map[uintptr]bool) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	// Unwrap interfaces to their concrete value.
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	if v.Type() == jsonNumberType {
		// json.Number's underlying Kind is String; treat it as the number
		// it already is rather than re-normalizing its digits as text.
		return json.Number(v.String()), nil
	}

	switch v.Kind() {
	case reflect.Invalid:
		return nil, nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		// NFC-normalize so two byte-distinct-but-canonically-equal strings
		// digest identically, mirroring the CSNF string rule.
		return norm.NFC.String(v.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return json.Number(fmt.Sprintf("%d", v.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return json.Number(fmt.Sprintf("%d", v.Uint())), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			// Non-finite numbers normalize to null per the data model.
			return nil, nil
		}
		return json.Number(formatFiniteFloat(f)), nil
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// Function/symbol-typed leaves normalize to null.
		return nil, nil
	case reflect.Ptr:
		if v.IsNil() {
			return nil, nil
		}
		addr := v.Pointer()
		if seen[addr] {
			return nil, fmt.Errorf("canon: %w", ErrCycle)
		}
		next := map[uintptr]bool{addr: true}
		for k := range seen {
			next[k] = true
		}
		return normalize(v.Elem(), next)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		var addr uintptr
		if v.Kind() == reflect.Slice {
			addr = v.Pointer()
			if addr != 0 {
				if seen[addr] {
					return nil, fmt.Errorf("canon: %w", ErrCycle)
				}
			}
		}
		next := seen
		if addr != 0 {
			next = map[uintptr]bool{addr: true}
			for k := range seen {
				next[k] = true
			}
		}
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := normalize(v.Index(i), next)
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		addr := v.Pointer()
		if seen[addr] {
			return nil, fmt.Errorf("canon: %w", ErrCycle)
		}
		next := map[uintptr]bool{addr: true}
		for k := range seen {
			next[k] = true
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := norm.NFC.String(fmt.Sprintf("%v", iter.Key().Interface()))
			val, err := normalize(iter.Value(), next)
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	case reflect.Struct:
		return normalizeStruct(v, seen)
	default:
		return nil, nil
	}
}

// normalizeStruct walks struct fields directly (honoring `json:"name"`,
// `json:"-"`, and `,omitempty`) rather than routing through
// encoding/json.Marshal, so that a pointer field cycling back through a
// struct is still caught by seen instead of recursing encoding/json into
// a stack overflow.
func normalizeStruct(v reflect.Value, seen map[uintptr]bool) (any, error) {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}
		name, omitempty, skip := parseJSONTag(field.Name, field.Tag.Get("json"))
		if skip {
			continue
		}
		fv := v.Field(i)
		if omitempty && isEmptyValue(fv) {
			continue
		}
		val, err := normalize(fv, seen)
		if err != nil {
			return nil, err
		}
		out[name] = val
	}
	return out, nil
}

func parseJSONTag(fieldName, tag string) (name string, omitempty bool, skip bool) {
	if tag == "-" {
		return "", false, true
	}
	if tag == "" {
		return fieldName, false, false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = fieldName
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty, false
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return false
}

func formatFiniteFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%g", f)
}

