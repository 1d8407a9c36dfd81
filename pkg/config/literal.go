package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Kind identifies the type of a parsed literal.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBool
	KindNone
	KindList
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindNone:
		return "None"
	case KindList:
		return "list"
	case KindTuple:
		return "tuple"
	default:
		return "unknown"
	}
}

// Value is a parsed configuration literal. Lists and tuples are both
// sequences; a tuple groups the components of one co-moving axis while a
// list enumerates per-axis or per-dimension entries.
type Value struct {
	Kind  Kind
	Num   float64
	Str   string
	Bool  bool
	Items []Value
}

// IsSeq reports whether v is a list or a tuple.
func (v Value) IsSeq() bool {
	return v.Kind == KindList || v.Kind == KindTuple
}

// Float converts a scalar to float64. Strings that are not numbers and
// None become NaN, which downstream code treats as "skip this step".
func (v Value) Float() (float64, error) {
	switch v.Kind {
	case KindNumber:
		return v.Num, nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return math.NaN(), nil
		}
		return f, nil
	case KindNone:
		return math.NaN(), nil
	case KindBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("expected a number, got %s", v.Kind)
	}
}

// Int converts an integral number to int.
func (v Value) Int() (int, error) {
	if v.Kind != KindNumber {
		return 0, fmt.Errorf("expected an integer, got %s", v.Kind)
	}
	if v.Num != math.Trunc(v.Num) || math.IsInf(v.Num, 0) || math.IsNaN(v.Num) {
		return 0, fmt.Errorf("expected an integer, got %v", v.Num)
	}
	return int(v.Num), nil
}

// Floats flattens a scalar or a flat sequence into a float slice.
func (v Value) Floats() ([]float64, error) {
	if !v.IsSeq() {
		f, err := v.Float()
		if err != nil {
			return nil, err
		}
		return []float64{f}, nil
	}
	out := make([]float64, 0, len(v.Items))
	for _, item := range v.Items {
		if item.IsSeq() {
			return nil, fmt.Errorf("unexpected nested %s", item.Kind)
		}
		f, err := item.Float()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Ints flattens a scalar or a flat sequence into an int slice.
func (v Value) Ints() ([]int, error) {
	if !v.IsSeq() {
		i, err := v.Int()
		if err != nil {
			return nil, err
		}
		return []int{i}, nil
	}
	out := make([]int, 0, len(v.Items))
	for _, item := range v.Items {
		i, err := item.Int()
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

// Elems returns the items of a sequence, or v itself as a one-element
// slice when v is a scalar.
func (v Value) Elems() []Value {
	if v.IsSeq() {
		return v.Items
	}
	return []Value{v}
}

// String renders v back into literal syntax.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Num) {
			return "nan"
		}
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.Str)
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindNone:
		return "None"
	}
	parts := make([]string, len(v.Items))
	for i, item := range v.Items {
		parts[i] = item.String()
	}
	if v.Kind == KindTuple {
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ParseLiteral parses a Python-style literal: numbers, quoted strings,
// True/False/None, nan/inf, and nested [lists] and (tuples). A bare word
// that is none of these is read as a string, so PV names need no quotes
// at the top level.
func ParseLiteral(s string) (Value, error) {
	p := &literalParser{src: s}
	p.skipSpace()
	if p.eof() {
		return Value{}, fmt.Errorf("empty value")
	}
	v, err := p.parseValue()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if !p.eof() {
		return Value{}, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
	}
	return v, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) eof() bool { return p.pos >= len(p.src) }

func (p *literalParser) peek() byte { return p.src[p.pos] }

func (p *literalParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.peek())) {
		p.pos++
	}
}

func (p *literalParser) parseValue() (Value, error) {
	p.skipSpace()
	if p.eof() {
		return Value{}, fmt.Errorf("unexpected end of input")
	}
	switch c := p.peek(); {
	case c == '[':
		return p.parseSeq('[', ']', KindList)
	case c == '(':
		return p.parseSeq('(', ')', KindTuple)
	case c == '\'' || c == '"':
		return p.parseString(c)
	default:
		return p.parseAtom()
	}
}

func (p *literalParser) parseSeq(open, close byte, kind Kind) (Value, error) {
	start := p.pos
	p.pos++ // open
	v := Value{Kind: kind, Items: []Value{}}
	trailingComma := false
	for {
		p.skipSpace()
		if p.eof() {
			return Value{}, fmt.Errorf("unterminated %c at offset %d", open, start)
		}
		if p.peek() == close {
			p.pos++
			break
		}
		item, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		v.Items = append(v.Items, item)
		p.skipSpace()
		if p.eof() {
			return Value{}, fmt.Errorf("unterminated %c at offset %d", open, start)
		}
		switch p.peek() {
		case ',':
			p.pos++
			trailingComma = true
		case close:
			trailingComma = false
		default:
			return Value{}, fmt.Errorf("expected ',' or '%c' at offset %d", close, p.pos)
		}
	}
	// (x) is a parenthesized scalar, (x,) a one-element tuple.
	if kind == KindTuple && len(v.Items) == 1 && !trailingComma {
		return v.Items[0], nil
	}
	return v, nil
}

func (p *literalParser) parseString(quote byte) (Value, error) {
	start := p.pos
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		c := p.peek()
		p.pos++
		switch c {
		case quote:
			return Value{Kind: KindString, Str: sb.String()}, nil
		case '\\':
			if p.eof() {
				return Value{}, fmt.Errorf("unterminated string at offset %d", start)
			}
			sb.WriteByte(p.peek())
			p.pos++
		default:
			sb.WriteByte(c)
		}
	}
	return Value{}, fmt.Errorf("unterminated string at offset %d", start)
}

func (p *literalParser) parseAtom() (Value, error) {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == ',' || c == ']' || c == ')' || c == '[' || c == '(' {
			break
		}
		p.pos++
	}
	word := strings.TrimSpace(p.src[start:p.pos])
	if word == "" {
		return Value{}, fmt.Errorf("unexpected %q at offset %d", p.src[start], start)
	}
	switch strings.ToLower(word) {
	case "none", "null":
		return Value{Kind: KindNone, Num: math.NaN()}, nil
	case "true":
		return Value{Kind: KindBool, Bool: true}, nil
	case "false":
		return Value{Kind: KindBool}, nil
	case "nan", "np.nan", "+nan", "-nan":
		return Value{Kind: KindNumber, Num: math.NaN()}, nil
	}
	if f, err := strconv.ParseFloat(word, 64); err == nil {
		return Value{Kind: KindNumber, Num: f}, nil
	}
	// Bare words are only valid as identifiers such as PV names.
	for _, r := range word {
		if unicode.IsSpace(r) || r == '\'' || r == '"' {
			return Value{}, fmt.Errorf("invalid token %q at offset %d", word, start)
		}
	}
	return Value{Kind: KindString, Str: word}, nil
}
