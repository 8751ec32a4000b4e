// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package irfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/awslabs/ar-immutability/analysis/ir"
)

// typeParser parses the textual representation of types: i32, double, void, %class.A, [4 x i8], i8*,
// i32 (%class.A*, ...)*
type typeParser struct {
	src   string
	pos   int
	named func(name string) (*ir.StructType, error)
}

func (p *typeParser) skipSpaces() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpaces()
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *typeParser) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("expected %q at position %d in %q", c, p.pos, p.src)
	}
	p.pos++
	return nil
}

func (p *typeParser) word() string {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.src) && isWordChar(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func isWordChar(c byte) bool {
	return c == '.' || c == '_' || c == '$' || c == ':' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

//gocyclo:ignore
func (p *typeParser) parse() (ir.Type, error) {
	var t ir.Type
	switch c := p.peek(); {
	case c == '%':
		p.pos++
		name := p.word()
		st, err := p.named(name)
		if err != nil {
			return nil, err
		}
		t = st
	case c == '[':
		p.pos++
		n, err := strconv.Atoi(p.word())
		if err != nil {
			return nil, fmt.Errorf("invalid array length in %q: %w", p.src, err)
		}
		if p.word() != "x" {
			return nil, fmt.Errorf("expected x in array type %q", p.src)
		}
		elem, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		t = &ir.ArrayType{Elem: elem, Len: n}
	default:
		w := p.word()
		switch {
		case w == "void":
			t = ir.Void
		case w == "float":
			t = &ir.FloatType{Bits: 32}
		case w == "double":
			t = ir.Double
		case strings.HasPrefix(w, "i"):
			bits, err := strconv.Atoi(w[1:])
			if err != nil || bits <= 0 || bits > 64 {
				return nil, fmt.Errorf("invalid integer type %q in %q", w, p.src)
			}
			t = &ir.IntType{Bits: bits}
		default:
			return nil, fmt.Errorf("invalid type %q in %q", w, p.src)
		}
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			t = ir.PointerTo(t)
		case '(':
			p.pos++
			ft := &ir.FunctionType{Result: t}
			for p.peek() != ')' {
				if strings.HasPrefix(p.src[p.pos:], "...") {
					p.pos += 3
					ft.Variadic = true
				} else {
					param, err := p.parse()
					if err != nil {
						return nil, err
					}
					ft.Params = append(ft.Params, param)
				}
				if p.peek() == ',' {
					p.pos++
				}
			}
			p.pos++
			t = ft
		default:
			return t, nil
		}
	}
}

// parseType parses a complete type
func (r *reader) parseType(s string) (ir.Type, error) {
	p := &typeParser{src: s, named: r.structType}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	if p.peek() != 0 {
		return nil, fmt.Errorf("unexpected %q after type in %q", p.src[p.pos:], s)
	}
	return t, nil
}

// parseOperand parses an operand: %local, @global, a typed constant (i32 5, i1 true, double 1.5, i8* null,
// i32 undef) or a constant bitcast (bitcast @f to T).
//
//gocyclo:ignore
func (r *reader) parseOperand(s string, locals map[string]ir.Value) (ir.Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, fmt.Errorf("empty operand")
	case strings.HasPrefix(s, "%"):
		if v, ok := locals[s[1:]]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("undefined value %s", s)
	case strings.HasPrefix(s, "@"):
		if f := r.module.Function(s[1:]); f != nil {
			return f, nil
		}
		if g, ok := r.globals[s[1:]]; ok {
			return g, nil
		}
		return nil, fmt.Errorf("undefined global %s", s)
	case strings.HasPrefix(s, "bitcast "):
		parts := strings.SplitN(strings.TrimPrefix(s, "bitcast "), " to ", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid constant bitcast %q", s)
		}
		x, err := r.parseOperand(parts[0], locals)
		if err != nil {
			return nil, err
		}
		c, ok := x.(ir.Constant)
		if !ok {
			return nil, fmt.Errorf("bitcast of non-constant %q", s)
		}
		t, err := r.parseType(parts[1])
		if err != nil {
			return nil, err
		}
		return &ir.ConstCast{X: c, Typ: t}, nil
	}
	sp := strings.LastIndex(s, " ")
	if sp < 0 {
		return nil, fmt.Errorf("constant %q has no type", s)
	}
	t, err := r.parseType(s[:sp])
	if err != nil {
		return nil, err
	}
	lit := s[sp+1:]
	if lit == "undef" {
		return &ir.Undef{Typ: t}, nil
	}
	switch t := t.(type) {
	case *ir.IntType:
		switch lit {
		case "true":
			return ir.Int(t, 1), nil
		case "false":
			return ir.Int(t, 0), nil
		}
		v, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer constant %q: %w", s, err)
		}
		return ir.Int(t, v), nil
	case *ir.FloatType:
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid floating point constant %q: %w", s, err)
		}
		return &ir.ConstFloat{Typ: t, Value: v}, nil
	case *ir.PointerType:
		if lit == "null" {
			return ir.Null(t), nil
		}
	}
	return nil, fmt.Errorf("invalid constant %q", s)
}
