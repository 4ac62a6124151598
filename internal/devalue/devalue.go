// Package devalue serializes Go values into JavaScript expressions that can be embedded in an inline
// <script> tag and evaluated by the browser, and parses those expressions back.
//
// Unlike JSON the output distinguishes undefined from null, keeps NaN, Infinity and -0, represents
// time.Time as a Date, and preserves shared and cyclic references: a pointer, map or slice reached more
// than once is emitted once and referenced by name from an immediately invoked function.
//
//	(function(a){a.self=a;return {root:a}}({}))
//
// Strings are escaped so that the output never contains "<", ">", "/", U+2028 or U+2029 literally and
// can therefore not terminate the surrounding script element.
package devalue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Undefined serializes as `void 0` and is what [Parse] returns for it.
var Undefined = undefined{}

type undefined struct{}

func (undefined) String() string { return "undefined" }

var (
	timeType      = reflect.TypeOf(time.Time{})
	undefinedType = reflect.TypeOf(undefined{})
	identifier    = regexp.MustCompile(`^[_$a-zA-Z][_$a-zA-Z0-9]*$`)
)

const nameChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_$"

var reserved = map[string]bool{
	"abstract": true, "arguments": true, "await": true, "boolean": true, "break": true, "byte": true,
	"case": true, "catch": true, "char": true, "class": true, "const": true, "continue": true,
	"debugger": true, "default": true, "delete": true, "do": true, "double": true, "else": true,
	"enum": true, "eval": true, "export": true, "extends": true, "false": true, "final": true,
	"finally": true, "float": true, "for": true, "function": true, "goto": true, "if": true,
	"implements": true, "import": true, "in": true, "instanceof": true, "int": true, "interface": true,
	"let": true, "long": true, "native": true, "new": true, "null": true, "package": true,
	"private": true, "protected": true, "public": true, "return": true, "short": true, "static": true,
	"super": true, "switch": true, "synchronized": true, "this": true, "throw": true, "throws": true,
	"transient": true, "true": true, "try": true, "typeof": true, "var": true, "void": true,
	"volatile": true, "while": true, "with": true, "yield": true,
}

// UnsupportedTypeError is returned for values with no JavaScript representation (funcs, chans, complex).
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return "devalue: cannot stringify value of type " + e.Type.String()
}

// ref identifies a reference-typed value so repeated visits can be detected.
type ref struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

type stringifier struct {
	counts map[ref]int
	order  []ref
	values map[ref]reflect.Value
	names  map[ref]string
}

// Stringify renders v as a JavaScript expression.
func Stringify(v any) (string, error) {
	s := &stringifier{
		counts: make(map[ref]int),
		values: make(map[ref]reflect.Value),
		names:  make(map[ref]string),
	}

	root := reflect.ValueOf(v)
	if err := s.walk(root); err != nil {
		return "", err
	}

	var repeated []ref
	for _, r := range s.order {
		if s.counts[r] > 1 {
			repeated = append(repeated, r)
		}
	}
	sort.SliceStable(repeated, func(i, j int) bool {
		return s.counts[repeated[i]] > s.counts[repeated[j]]
	})
	for i, r := range repeated {
		s.names[r] = name(i)
	}

	str, err := s.stringify(root)
	if err != nil {
		return "", err
	}
	if len(repeated) == 0 {
		return str, nil
	}

	params := make([]string, 0, len(repeated))
	values := make([]string, 0, len(repeated))
	var statements []string

	for _, r := range repeated {
		n := s.names[r]
		params = append(params, n)
		rv := s.values[r]

		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			values = append(values, fmt.Sprintf("Array(%d)", rv.Len()))
			for i := 0; i < rv.Len(); i++ {
				item, err := s.stringify(rv.Index(i))
				if err != nil {
					return "", err
				}
				statements = append(statements, fmt.Sprintf("%s[%d]=%s", n, i, item))
			}
		default:
			values = append(values, "{}")
			fields, err := s.fields(rv)
			if err != nil {
				return "", err
			}
			for _, f := range fields {
				item, err := s.stringify(f.value)
				if err != nil {
					return "", err
				}
				statements = append(statements, n+safeProp(f.key)+"="+item)
			}
		}
	}

	statements = append(statements, "return "+str)

	return fmt.Sprintf("(function(%s){%s}(%s))",
		strings.Join(params, ","),
		strings.Join(statements, ";"),
		strings.Join(values, ",")), nil
}

// identity returns the ref for reference-typed values and the value the ref stands for.
func identity(rv reflect.Value) (ref, reflect.Value, bool) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return ref{}, rv, false
		}
		elem := rv.Elem()
		switch elem.Kind() {
		case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
			if elem.Type() == timeType {
				return ref{}, rv, false
			}
			return ref{ptr: rv.Pointer(), typ: rv.Type()}, elem, true
		}
	case reflect.Map:
		if !rv.IsNil() {
			return ref{ptr: rv.Pointer(), typ: rv.Type()}, rv, true
		}
	case reflect.Slice:
		if !rv.IsNil() && rv.Len() > 0 && rv.Type().Elem().Kind() != reflect.Uint8 {
			return ref{ptr: rv.Pointer(), typ: rv.Type(), n: rv.Len()}, rv, true
		}
	}
	return ref{}, rv, false
}

func (s *stringifier) walk(rv reflect.Value) error {
	for rv.IsValid() && rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}

	if r, target, ok := identity(rv); ok {
		s.counts[r]++
		if s.counts[r] > 1 {
			return nil
		}
		s.order = append(s.order, r)
		s.values[r] = target
		rv = target
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return s.walk(rv.Elem())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := s.walk(rv.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map, reflect.Struct:
		if rv.Type() == timeType || rv.Type() == undefinedType {
			return nil
		}
		fields, err := s.fields(rv)
		if err != nil {
			return err
		}
		for _, f := range fields {
			if err := s.walk(f.value); err != nil {
				return err
			}
		}
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return &UnsupportedTypeError{Type: rv.Type()}
	}
	return nil
}

func (s *stringifier) stringify(rv reflect.Value) (string, error) {
	for rv.IsValid() && rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return "null", nil
	}

	if r, _, ok := identity(rv); ok {
		if n, named := s.names[r]; named {
			return n, nil
		}
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "null", nil
		}
		return s.stringify(rv.Elem())
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return formatFloat(rv.Float()), nil
	case reflect.String:
		return quote(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "null", nil
		}
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return quote(string(rv.Bytes())), nil
		}
		items := make([]string, rv.Len())
		for i := range items {
			item, err := s.stringify(rv.Index(i))
			if err != nil {
				return "", err
			}
			items[i] = item
		}
		return "[" + strings.Join(items, ",") + "]", nil
	case reflect.Map, reflect.Struct:
		switch rv.Type() {
		case timeType:
			return fmt.Sprintf("new Date(%d)", rv.Interface().(time.Time).UnixMilli()), nil
		case undefinedType:
			return "void 0", nil
		}
		if rv.Kind() == reflect.Map && rv.IsNil() {
			return "null", nil
		}
		fields, err := s.fields(rv)
		if err != nil {
			return "", err
		}
		props := make([]string, len(fields))
		for i, f := range fields {
			item, err := s.stringify(f.value)
			if err != nil {
				return "", err
			}
			props[i] = safeKey(f.key) + ":" + item
		}
		return "{" + strings.Join(props, ",") + "}", nil
	default:
		return "", &UnsupportedTypeError{Type: rv.Type()}
	}
}

type field struct {
	key   string
	value reflect.Value
}

// fields lists object properties: map entries sorted by key, or exported struct fields named by their
// json tags with omitempty and "-" honoured and embedded structs flattened.
func (s *stringifier) fields(rv reflect.Value) ([]field, error) {
	if rv.Kind() == reflect.Map {
		keys := rv.MapKeys()
		out := make([]field, 0, len(keys))
		for _, k := range keys {
			key, err := mapKey(k)
			if err != nil {
				return nil, err
			}
			out = append(out, field{key: key, value: rv.MapIndex(k)})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
		return out, nil
	}

	var out []field
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := rv.Field(i)

		if sf.Anonymous && name == "" {
			embedded := fv
			if embedded.Kind() == reflect.Pointer {
				if embedded.IsNil() {
					continue
				}
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				inner, err := s.fields(embedded)
				if err != nil {
					return nil, err
				}
				out = append(out, inner...)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		out = append(out, field{key: name, value: fv})
	}
	return out, nil
}

func mapKey(k reflect.Value) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	if st, ok := k.Interface().(fmt.Stringer); ok {
		return st.String(), nil
	}
	return "", &UnsupportedTypeError{Type: k.Type()}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0 && math.Signbit(f):
		return "-0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// quote produces a double-quoted JavaScript string literal that is safe inside a script element.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	out := strings.TrimSuffix(buf.String(), "\n")
	return strings.ReplaceAll(out, "/", `\u002F`)
}

func safeKey(key string) string {
	if identifier.MatchString(key) {
		return key
	}
	return quote(key)
}

func safeProp(key string) string {
	if identifier.MatchString(key) {
		return "." + key
	}
	return "[" + quote(key) + "]"
}

// name returns the i-th short variable name, skipping reserved words.
func name(i int) string {
	n := ""
	for {
		n = string(nameChars[i%len(nameChars)]) + n
		i = i/len(nameChars) - 1
		if i < 0 {
			break
		}
	}
	if reserved[n] {
		return n + "_"
	}
	return n
}
