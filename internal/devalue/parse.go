package devalue

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SyntaxError reports where src stopped matching the expression subset produced by [Stringify].
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("devalue: %s at offset %d", e.Msg, e.Offset)
}

// Parse evaluates an expression produced by [Stringify].
//
// Objects become map[string]any, arrays []any, numbers float64, dates time.Time and `void 0` [Undefined].
// Shared references in the source are shared in the result, so cyclic input yields cyclic maps.
func Parse(src string) (any, error) {
	p := &parser{src: src}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.space()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input")
	}
	return n.eval(nil)
}

// Unmarshal parses src and stores the result in the value pointed to by v using encoding/json field
// mapping. Undefined values decode as null.
func Unmarshal(src string, v any) error {
	parsed, err := Parse(src)
	if err != nil {
		return err
	}

	data, err := json.Marshal(normalize(parsed, map[any]bool{}))
	if err != nil {
		return fmt.Errorf("devalue: %w", err)
	}
	return json.Unmarshal(data, v)
}

// normalize replaces Undefined and non-finite numbers with nil, which JSON cannot carry, and cuts cycles.
func normalize(v any, seen map[any]bool) any {
	switch t := v.(type) {
	case undefined:
		return nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case map[string]any:
		key := fmt.Sprintf("%p", t)
		if seen[key] {
			return nil
		}
		seen[key] = true
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item, seen)
		}
		delete(seen, key)
		return out
	case []any:
		if len(t) > 0 {
			key := fmt.Sprintf("%p", t)
			if seen[key] {
				return nil
			}
			seen[key] = true
			defer delete(seen, key)
		}
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item, seen)
		}
		return out
	default:
		return v
	}
}

type scope map[string]any

type node interface {
	eval(scope) (any, error)
}

type literal struct{ v any }

func (l literal) eval(scope) (any, error) { return l.v, nil }

type reference struct {
	name string
	pos  int
}

func (r reference) eval(s scope) (any, error) {
	v, ok := s[r.name]
	if !ok {
		return nil, &SyntaxError{Offset: r.pos, Msg: "undefined reference " + r.name}
	}
	return v, nil
}

type arrayNode []node

func (a arrayNode) eval(s scope) (any, error) {
	out := make([]any, len(a))
	for i, item := range a {
		v, err := item.eval(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type property struct {
	key   string
	value node
}

type objectNode []property

func (o objectNode) eval(s scope) (any, error) {
	out := make(map[string]any, len(o))
	for _, prop := range o {
		v, err := prop.value.eval(s)
		if err != nil {
			return nil, err
		}
		out[prop.key] = v
	}
	return out, nil
}

// sized is `Array(n)`.
type sized int

func (n sized) eval(scope) (any, error) { return make([]any, int(n)), nil }

type assignment struct {
	target string
	key    string
	index  int
	isIdx  bool
	value  node
	pos    int
}

type iife struct {
	params []string
	body   []assignment
	result node
	args   []node
}

func (f iife) eval(outer scope) (any, error) {
	s := scope{}
	for k, v := range outer {
		s[k] = v
	}
	for i, param := range f.params {
		if i >= len(f.args) {
			s[param] = Undefined
			continue
		}
		v, err := f.args[i].eval(outer)
		if err != nil {
			return nil, err
		}
		s[param] = v
	}

	for _, a := range f.body {
		v, err := a.value.eval(s)
		if err != nil {
			return nil, err
		}
		switch target := s[a.target].(type) {
		case map[string]any:
			key := a.key
			if a.isIdx {
				key = strconv.Itoa(a.index)
			}
			target[key] = v
		case []any:
			if !a.isIdx || a.index < 0 || a.index >= len(target) {
				return nil, &SyntaxError{Offset: a.pos, Msg: "invalid array assignment"}
			}
			target[a.index] = v
		default:
			return nil, &SyntaxError{Offset: a.pos, Msg: "assignment to non-object " + a.target}
		}
	}

	return f.result.eval(s)
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) space() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) consume(tok string) bool {
	p.space()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *parser) expect(tok string) error {
	if !p.consume(tok) {
		return p.errorf("expected %q", tok)
	}
	return nil
}

func (p *parser) expr() (node, error) {
	p.space()
	if p.pos >= len(p.src) {
		return nil, p.errorf("unexpected end of input")
	}

	switch c := p.src[p.pos]; {
	case strings.HasPrefix(p.src[p.pos:], "(function("):
		return p.function()
	case c == '"':
		s, err := p.str()
		if err != nil {
			return nil, err
		}
		return literal{s}, nil
	case c == '[':
		return p.array()
	case c == '{':
		return p.object()
	case c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	}

	start := p.pos
	word := p.ident()
	switch word {
	case "":
		return nil, p.errorf("unexpected character %q", p.src[p.pos])
	case "null":
		return literal{nil}, nil
	case "true":
		return literal{true}, nil
	case "false":
		return literal{false}, nil
	case "NaN":
		return literal{math.NaN()}, nil
	case "Infinity":
		return literal{math.Inf(1)}, nil
	case "void":
		if !p.consume("0") {
			return nil, p.errorf("expected void 0")
		}
		return literal{Undefined}, nil
	case "new":
		p.space()
		if p.ident() != "Date" {
			return nil, p.errorf("only Date can be constructed")
		}
		if err := p.expect("("); err != nil {
			return nil, err
		}
		ms, err := p.number()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		v, _ := ms.eval(nil)
		return literal{time.UnixMilli(int64(v.(float64))).UTC()}, nil
	case "Array":
		if err := p.expect("("); err != nil {
			return nil, err
		}
		n, err := p.number()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		v, _ := n.eval(nil)
		return sized(int(v.(float64))), nil
	}
	return reference{name: word, pos: start}, nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (p.pos > start && c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) number() (node, error) {
	p.space()
	if strings.HasPrefix(p.src[p.pos:], "-Infinity") {
		p.pos += len("-Infinity")
		return literal{math.Inf(-1)}, nil
	}
	if strings.HasPrefix(p.src[p.pos:], "-0") && !p.digitAt(p.pos+2) && !p.charAt(p.pos+2, '.') && !p.charAt(p.pos+2, 'e') {
		p.pos += 2
		return literal{math.Copysign(0, -1)}, nil
	}

	start := p.pos
	for p.pos < len(p.src) && strings.IndexByte("+-.0123456789eE", p.src[p.pos]) >= 0 {
		p.pos++
	}
	f, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		p.pos = start
		return nil, p.errorf("invalid number")
	}
	return literal{f}, nil
}

func (p *parser) digitAt(i int) bool {
	return i < len(p.src) && p.src[i] >= '0' && p.src[i] <= '9'
}

func (p *parser) charAt(i int, c byte) bool {
	return i < len(p.src) && p.src[i] == c
}

// str scans a double-quoted string literal and decodes it with JSON rules.
func (p *parser) str() (string, error) {
	start := p.pos
	p.pos++
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
			continue
		case '"':
			p.pos++
			var s string
			if err := json.Unmarshal([]byte(p.src[start:p.pos]), &s); err != nil {
				return "", &SyntaxError{Offset: start, Msg: "invalid string literal"}
			}
			return s, nil
		}
		p.pos++
	}
	return "", &SyntaxError{Offset: start, Msg: "unterminated string"}
}

func (p *parser) array() (node, error) {
	p.pos++
	var items arrayNode
	if p.consume("]") {
		return arrayNode{}, nil
	}
	for {
		item, err := p.expr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.consume(",") {
			continue
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return items, nil
	}
}

func (p *parser) key() (string, error) {
	p.space()
	if p.pos < len(p.src) && p.src[p.pos] == '"' {
		return p.str()
	}
	if p.digitAt(p.pos) {
		start := p.pos
		for p.digitAt(p.pos) {
			p.pos++
		}
		return p.src[start:p.pos], nil
	}
	if k := p.ident(); k != "" {
		return k, nil
	}
	return "", p.errorf("expected property name")
}

func (p *parser) object() (node, error) {
	p.pos++
	obj := objectNode{}
	if p.consume("}") {
		return obj, nil
	}
	for {
		k, err := p.key()
		if err != nil {
			return nil, err
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		obj = append(obj, property{key: k, value: v})
		if p.consume(",") {
			continue
		}
		if err := p.expect("}"); err != nil {
			return nil, err
		}
		return obj, nil
	}
}

func (p *parser) function() (node, error) {
	p.pos += len("(function(")
	var f iife

	if !p.consume(")") {
		for {
			p.space()
			param := p.ident()
			if param == "" {
				return nil, p.errorf("expected parameter name")
			}
			f.params = append(f.params, param)
			if p.consume(",") {
				continue
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			break
		}
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}

	for {
		p.space()
		pos := p.pos
		target := p.ident()
		if target == "return" {
			result, err := p.expr()
			if err != nil {
				return nil, err
			}
			f.result = result
			break
		}
		if target == "" {
			return nil, p.errorf("expected statement")
		}

		a := assignment{target: target, pos: pos}
		switch {
		case p.consume("."):
			a.key = p.ident()
			if a.key == "" {
				return nil, p.errorf("expected property name")
			}
		case p.consume("["):
			p.space()
			if p.pos < len(p.src) && p.src[p.pos] == '"' {
				k, err := p.str()
				if err != nil {
					return nil, err
				}
				a.key = k
			} else {
				n, err := p.number()
				if err != nil {
					return nil, err
				}
				v, _ := n.eval(nil)
				a.index, a.isIdx = int(v.(float64)), true
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf("expected property access")
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		a.value = v
		f.body = append(f.body, a)
		if err := p.expect(";"); err != nil {
			return nil, err
		}
	}

	if err := p.expect("}"); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	if !p.consume(")") {
		for {
			arg, err := p.expr()
			if err != nil {
				return nil, err
			}
			f.args = append(f.args, arg)
			if p.consume(",") {
				continue
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return f, nil
}
