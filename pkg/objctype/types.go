// Package objctype parses Objective-C runtime type encodings into type trees
// and renders them back as C-style (or Swift-style) declarations.
package objctype

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags a node of a parsed type tree.
type Kind int

const (
	Unknown Kind = iota

	// primitives
	Char
	UChar
	Short
	UShort
	Int
	UInt
	Long
	ULong
	LongLong
	ULongLong
	Int128
	UInt128
	Float
	Double
	LongDouble
	Bool
	Void
	CString // '*', shorthand for char *
	Class
	Selector
	Atom

	// aggregates
	Id
	Pointer
	Array
	Struct
	Union
	Bitfield
	FunctionPointer
	Block
)

// A Modifier is a type qualifier prefix from the encoding grammar.
type Modifier byte

const (
	ModConst   Modifier = 'r'
	ModIn      Modifier = 'n'
	ModInout   Modifier = 'N'
	ModOut     Modifier = 'o'
	ModBycopy  Modifier = 'O'
	ModByref   Modifier = 'R'
	ModOneway  Modifier = 'V'
	ModComplex Modifier = 'j'
	ModAtomic  Modifier = 'A'
)

// Keyword returns the C spelling of the modifier.
func (m Modifier) Keyword() string {
	switch m {
	case ModConst:
		return "const"
	case ModIn:
		return "in"
	case ModInout:
		return "inout"
	case ModOut:
		return "out"
	case ModBycopy:
		return "bycopy"
	case ModByref:
		return "byref"
	case ModOneway:
		return "oneway"
	case ModComplex:
		return "_Complex"
	case ModAtomic:
		return "_Atomic"
	}
	return ""
}

// A Member is one field of a struct or union: a type and an optional name.
type Member struct {
	Name string
	Type *Type
}

// A Type is a node of the parsed encoding tree.
type Type struct {
	Kind      Kind
	Modifiers []Modifier

	Name      string   // class name (Id), struct/union tag
	Protocols []string // Id protocol list

	Count   int   // Array length, Bitfield width
	Elem    *Type // Pointer/Array element
	Members []Member

	// BlockSig is the embedded signature of a @?<...> block encoding; nil for
	// a bare @? block.
	BlockSig *MethodType
}

// An Arg is one position of a method-type encoding: a type plus its stack
// offset digits.
type Arg struct {
	Type   *Type
	Offset string
}

// A MethodType is a parsed method encoding: return type first, then self,
// _cmd, and the declared arguments.
type MethodType struct {
	Args []Arg
}

// ReturnType returns the first position, nil for an empty signature.
func (mt *MethodType) ReturnType() *Type {
	if mt == nil || len(mt.Args) == 0 {
		return nil
	}
	return mt.Args[0].Type
}

// Arguments returns the positions after return, self, and _cmd.
func (mt *MethodType) Arguments() []Arg {
	if mt == nil || len(mt.Args) <= 3 {
		return nil
	}
	return mt.Args[3:]
}

var primitiveEncodings = map[Kind]byte{
	Char:       'c',
	UChar:      'C',
	Short:      's',
	UShort:     'S',
	Int:        'i',
	UInt:       'I',
	Long:       'l',
	ULong:      'L',
	LongLong:   'q',
	ULongLong:  'Q',
	Int128:     't',
	UInt128:    'T',
	Float:      'f',
	Double:     'd',
	LongDouble: 'D',
	Bool:       'B',
	Void:       'v',
	CString:    '*',
	Class:      '#',
	Selector:   ':',
	Atom:       '%',
	Unknown:    '?',
}

// Encode renders the tree back into its runtime encoding. Parsing an
// encoding and calling Encode yields the original string.
func (t *Type) Encode() string {
	var b strings.Builder
	t.encode(&b)
	return b.String()
}

func (t *Type) encode(b *strings.Builder) {
	for _, m := range t.Modifiers {
		b.WriteByte(byte(m))
	}
	switch t.Kind {
	case Id:
		b.WriteByte('@')
		if t.Name != "" || len(t.Protocols) > 0 {
			b.WriteByte('"')
			b.WriteString(t.Name)
			if len(t.Protocols) > 0 {
				b.WriteByte('<')
				b.WriteString(strings.Join(t.Protocols, ","))
				b.WriteByte('>')
			}
			b.WriteByte('"')
		}
	case Block:
		b.WriteString("@?")
		if t.BlockSig != nil {
			b.WriteByte('<')
			for _, a := range t.BlockSig.Args {
				a.Type.encode(b)
				b.WriteString(a.Offset)
			}
			b.WriteByte('>')
		}
	case FunctionPointer:
		b.WriteString("^?")
	case Pointer:
		b.WriteByte('^')
		t.Elem.encode(b)
	case Array:
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(t.Count))
		t.Elem.encode(b)
		b.WriteByte(']')
	case Bitfield:
		b.WriteByte('b')
		b.WriteString(strconv.Itoa(t.Count))
	case Struct, Union:
		open, close := byte('{'), byte('}')
		if t.Kind == Union {
			open, close = '(', ')'
		}
		b.WriteByte(open)
		if t.Name != "" {
			b.WriteString(t.Name)
		} else {
			b.WriteByte('?')
		}
		if t.Members != nil {
			b.WriteByte('=')
			for _, m := range t.Members {
				if m.Name != "" {
					b.WriteByte('"')
					b.WriteString(m.Name)
					b.WriteByte('"')
				}
				m.Type.encode(b)
			}
		}
		b.WriteByte(close)
	default:
		if c, ok := primitiveEncodings[t.Kind]; ok {
			b.WriteByte(c)
		} else {
			b.WriteByte('?')
		}
	}
}

// IsObject reports whether the type renders as an ObjC object pointer.
func (t *Type) IsObject() bool {
	return t.Kind == Id || t.Kind == Block
}

// SyntaxErrorKind names what the parser was expecting.
type SyntaxErrorKind int

const (
	ErrUnexpectedToken SyntaxErrorKind = iota
	ErrUnexpectedEnd
	ErrBadNumber
	ErrUnbalanced
)

func (k SyntaxErrorKind) String() string {
	switch k {
	case ErrUnexpectedToken:
		return "unexpected token"
	case ErrUnexpectedEnd:
		return "unexpected end of encoding"
	case ErrBadNumber:
		return "malformed number"
	case ErrUnbalanced:
		return "unbalanced brackets"
	}
	return "syntax error"
}

// A SyntaxError reports where parsing of an encoding failed; Remaining holds
// the unread suffix.
type SyntaxError struct {
	Kind      SyntaxErrorKind
	Remaining string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s (remaining: %q)", e.Kind, e.Remaining)
}
