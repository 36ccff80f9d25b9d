package swiftdemangle

import (
	"fmt"
	"strconv"
)

// maxGenericDepth bounds recursion so pathological inputs terminate.
const maxGenericDepth = 64

type parser struct {
	data  []byte
	pos   int
	depth int
	words []string
}

func newParser(data []byte) *parser {
	return &parser{data: data}
}

func (p *parser) eof() bool { return p.pos >= len(p.data) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.data[p.pos]
}

func (p *parser) peekAt(n int) byte {
	if p.pos+n >= len(p.data) {
		return 0
	}
	return p.data[p.pos+n]
}

func (p *parser) consume() byte {
	b := p.peek()
	if !p.eof() {
		p.pos++
	}
	return b
}

func (p *parser) expect(b byte) error {
	if p.eof() {
		return fmt.Errorf("unexpected end of mangled name, expected %q", b)
	}
	if p.data[p.pos] != b {
		return fmt.Errorf("unexpected character %q at position %d, expected %q", p.data[p.pos], p.pos, b)
	}
	p.pos++
	return nil
}

func isMangleDigit(b byte) bool { return b >= '0' && b <= '9' }

func (p *parser) readNumber() (int, error) {
	start := p.pos
	total := 0
	for !p.eof() && isMangleDigit(p.data[p.pos]) {
		total = total*10 + int(p.data[p.pos]-'0')
		if total > 1<<20 {
			return 0, fmt.Errorf("identifier length overflow at %d", start)
		}
		p.pos++
	}
	if p.pos == start {
		return 0, fmt.Errorf("expected digit at position %d", start)
	}
	return total, nil
}

// readIdentifier reads a length-prefixed identifier. A zero length introduces
// a word-substitution back-reference into the table of previously seen words.
func (p *parser) readIdentifier() (string, error) {
	if p.peek() == '0' {
		p.consume()
		ref := p.consume()
		if ref == 0 {
			return "", fmt.Errorf("truncated word substitution")
		}
		idx := int(ref - 'a')
		if ref >= 'A' && ref <= 'Z' {
			idx = int(ref - 'A')
		}
		if idx < 0 || idx >= len(p.words) {
			return "", fmt.Errorf("word substitution %q out of range", ref)
		}
		return p.words[idx], nil
	}

	length, err := p.readNumber()
	if err != nil {
		return "", err
	}
	if length <= 0 || p.pos+length > len(p.data) {
		return "", fmt.Errorf("identifier exceeds input length")
	}
	ident := string(p.data[p.pos : p.pos+length])
	p.pos += length
	p.words = append(p.words, ident)
	return ident, nil
}

// parseType parses one type node from the buffer.
func (p *parser) parseType() (*Node, error) {
	if p.depth++; p.depth > maxGenericDepth {
		return nil, fmt.Errorf("mangled type exceeds recursion bound")
	}
	defer func() { p.depth-- }()

	base, err := p.parseBaseType()
	if err != nil {
		return nil, err
	}
	return p.parseTypeSuffixes(base)
}

func (p *parser) parseBaseType() (*Node, error) {
	c := p.peek()
	switch {
	case isMangleDigit(c):
		return p.parseNominal("")
	case c == 's' && isMangleDigit(p.peekAt(1)):
		return p.parseSwiftStdlibNominal()
	case c == 'S':
		return p.parseShortcut()
	case c == 'B':
		return p.parseBuiltin()
	case c == 'y':
		if p.peekAt(1) == 't' {
			p.pos += 2
			return NewNode(KindTuple, "Void"), nil
		}
		return nil, fmt.Errorf("bare sugar marker at %d", p.pos)
	case c == 'x':
		p.consume()
		return NewNode(KindGenericParam, "T"), nil
	case c == 'q':
		p.consume()
		if isMangleDigit(p.peek()) {
			n, err := p.readNumber()
			if err != nil {
				return nil, err
			}
			if p.peek() == '_' {
				p.consume()
			}
			return NewNode(KindGenericParam, genericParamName(n+1)), nil
		}
		if p.peek() == '_' {
			p.consume()
			return NewNode(KindGenericParam, genericParamName(1)), nil
		}
		return nil, fmt.Errorf("unsupported dependent type at %d", p.pos)
	default:
		return nil, fmt.Errorf("unsupported type character %q at %d", c, p.pos)
	}
}

func genericParamName(depth int) string {
	names := []string{"T", "U", "V", "W"}
	if depth-1 < len(names) {
		return names[depth-1]
	}
	return "T" + strconv.Itoa(depth)
}

// parseNominal reads <ident><kind> chains forming Module.Outer...Inner.
func (p *parser) parseNominal(module string) (*Node, error) {
	path := []string{}
	if module != "" {
		path = append(path, module)
	}

	first, err := p.readIdentifier()
	if err != nil {
		return nil, err
	}
	path = append(path, first)

	kind := KindStruct
	sawKind := false
	for !p.eof() {
		c := p.peek()
		if k, ok := nominalTypeKinds[c]; ok {
			p.consume()
			kind = k
			sawKind = true
			// another nesting level follows when a new identifier starts
			if isMangleDigit(p.peek()) {
				continue
			}
			break
		}
		if isMangleDigit(c) {
			save := p.pos
			name, err := p.readIdentifier()
			if err != nil {
				p.pos = save
				break
			}
			path = append(path, name)
			continue
		}
		break
	}

	if !sawKind && len(path) == 1 {
		return NewNode(KindModule, path[0]), nil
	}
	return nominal(kind, path...), nil
}

// parseSwiftStdlibNominal handles s<len>NameKind, e.g. s5Int32V.
func (p *parser) parseSwiftStdlibNominal() (*Node, error) {
	start := p.pos
	p.consume() // 's'
	name, err := p.readIdentifier()
	if err != nil {
		return nil, err
	}
	kind := KindStruct
	if k, ok := nominalTypeKinds[p.peek()]; ok {
		kind = k
		p.consume()
	}
	if mapped, ok := fixedWidthInts[string(p.data[start:p.pos])]; ok {
		return nominal(kind, "Swift", mapped), nil
	}
	return nominal(kind, "Swift", name), nil
}

func (p *parser) parseShortcut() (*Node, error) {
	p.consume() // 'S'
	c := p.consume()
	if c == 'c' {
		cc := p.consume()
		if name, ok := concurrencyShortcuts[cc]; ok {
			return nominal(KindStruct, name), nil
		}
		return nil, fmt.Errorf("unknown concurrency shortcut %q", cc)
	}
	// new-style shortcuts render bare; the Swift module prefix only appears
	// in fully qualified (old-style and s-prefixed) spellings
	if name, ok := stdlibShortcuts[c]; ok {
		return nominal(KindStruct, name), nil
	}
	return nil, fmt.Errorf("unknown stdlib shortcut %q", c)
}

func (p *parser) parseBuiltin() (*Node, error) {
	p.consume() // 'B'
	c := p.peek()
	if c == 'i' || c == 'f' {
		if isMangleDigit(p.peekAt(1)) {
			p.consume()
			width, err := p.readNumber()
			if err != nil {
				return nil, err
			}
			if p.peek() == '_' {
				p.consume()
			}
			if c == 'i' {
				return NewNode(KindStruct, fmt.Sprintf("Builtin.Int%d", width)), nil
			}
			return NewNode(KindStruct, fmt.Sprintf("Builtin.FPIEEE%d", width)), nil
		}
	}
	c = p.consume()
	if name, ok := builtinShortcuts[c]; ok {
		return NewNode(KindStruct, name), nil
	}
	return nil, fmt.Errorf("unknown builtin shortcut %q", c)
}

// parseTypeSuffixes applies bound-generic argument lists, optional sugar, and
// metatype wrapping to a base type.
func (p *parser) parseTypeSuffixes(base *Node) (*Node, error) {
	for {
		switch {
		case p.peek() == 'y':
			node, err := p.parseBoundGeneric(base)
			if err != nil {
				return nil, err
			}
			base = node
		case p.peek() == 'S' && p.peekAt(1) == 'g':
			p.pos += 2
			opt := NewNode(KindOptional, "")
			opt.Append(base)
			base = opt
		case p.peek() == 'm':
			p.consume()
			meta := NewNode(KindMetatype, "")
			meta.Append(base)
			base = meta
		default:
			return base, nil
		}
	}
}

// parseBoundGeneric reads 'y' <args> 'G' after a base nominal and applies
// stdlib sugar ([T], [K: V], Set<T>, T?).
func (p *parser) parseBoundGeneric(base *Node) (*Node, error) {
	if err := p.expect('y'); err != nil {
		return nil, err
	}

	var args []*Node
	for {
		if p.eof() {
			return nil, fmt.Errorf("unterminated generic argument list")
		}
		if p.peek() == 'G' {
			p.consume()
			break
		}
		arg, err := p.parseGenericArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	return sugarBoundGeneric(base, args), nil
}

// parseGenericArg parses one generic argument; a bare CamelCase identifier
// run (as reflection metadata sometimes carries) is accepted as a raw name.
func (p *parser) parseGenericArg() (*Node, error) {
	save := p.pos
	arg, err := p.parseType()
	if err == nil {
		return arg, nil
	}
	p.pos = save

	// an initial capital followed by lowercase reads as a raw type name;
	// stopping at the next capital keeps the 'G' terminator out of the run
	c := p.peek()
	if c >= 'A' && c <= 'Z' {
		start := p.pos
		p.consume()
		for !p.eof() {
			b := p.peek()
			if (b >= 'a' && b <= 'z') || isMangleDigit(b) {
				p.consume()
				continue
			}
			break
		}
		return NewNode(KindIdentifier, string(p.data[start:p.pos])), nil
	}
	return nil, err
}

// sugarBoundGeneric rewrites bare stdlib containers into their syntactic
// sugar. Qualified spellings (Swift.Array) keep the angle-bracket form.
func sugarBoundGeneric(base *Node, args []*Node) *Node {
	switch {
	case base.Text == "Array" && len(args) == 1:
		arr := NewNode(KindArray, "")
		arr.Append(args[0])
		return arr
	case base.Text == "Dictionary" && len(args) == 2:
		dict := NewNode(KindDictionary, "")
		dict.Append(args[0], args[1])
		return dict
	case base.Text == "Set" && len(args) == 1:
		set := NewNode(KindSet, "")
		set.Append(args[0])
		return set
	case base.Text == "Optional" && len(args) == 1:
		opt := NewNode(KindOptional, "")
		opt.Append(args[0])
		return opt
	}
	bound := NewNode(KindBoundGeneric, base.Text)
	bound.Flags = base.Flags
	bound.Append(args...)
	return bound
}

// parseClosureType attempts result-first closure parsing:
// <result><params...> effects convention. Returns nil without consuming when
// the buffer does not form a closure.
func (p *parser) parseClosureType() (*Node, error) {
	save := p.pos

	result, err := p.parseFunctionPiece()
	if err != nil {
		p.pos = save
		return nil, err
	}

	var params []*Node
	flags := NodeFlags{Escaping: true, Convention: ConventionSwift}

	for {
		if p.eof() {
			p.pos = save
			return nil, fmt.Errorf("unterminated closure type")
		}
		c := p.peek()

		if c == 'Y' {
			switch p.peekAt(1) {
			case 'a':
				flags.Async = true
				p.pos += 2
				continue
			case 'b':
				flags.Sendable = true
				p.pos += 2
				continue
			case 'K':
				// typed throws: the error type was the last parsed piece
				if len(params) > 0 {
					flags.ErrorType = params[len(params)-1]
					params = params[:len(params)-1]
				}
				flags.Throws = true
				p.pos += 2
				continue
			}
		}
		if c == 'K' {
			flags.Throws = true
			p.consume()
			continue
		}
		if c == 'c' {
			p.consume()
			return closureNode(result, params, flags), nil
		}
		if c == 'X' {
			switch p.peekAt(1) {
			case 'B':
				flags.Convention = ConventionBlock
				flags.Escaping = false
			case 'C':
				flags.Convention = ConventionCFunction
				flags.Escaping = false
			case 'E':
				flags.Convention = ConventionNoEscape
				flags.Escaping = false
			case 'f':
				flags.Convention = ConventionThin
				flags.Escaping = false
			default:
				p.pos = save
				return nil, fmt.Errorf("unknown convention X%c", p.peekAt(1))
			}
			p.pos += 2
			return closureNode(result, params, flags), nil
		}

		piece, err := p.parseFunctionPiece()
		if err != nil {
			p.pos = save
			return nil, err
		}
		params = append(params, piece)
	}
}

// parseFunctionPiece parses a type in function-signature position where 'y'
// alone denotes the empty tuple.
func (p *parser) parseFunctionPiece() (*Node, error) {
	if p.peek() == 'y' && p.peekAt(1) != 't' {
		p.consume()
		return NewNode(KindTuple, "Void"), nil
	}
	return p.parseType()
}

func closureNode(result *Node, params []*Node, flags NodeFlags) *Node {
	n := NewNode(KindClosure, "")
	n.Flags = flags
	args := NewNode(KindTuple, "")
	args.Append(params...)
	ret := NewNode(KindReturnType, "")
	ret.Append(result)
	n.Append(args, ret)
	return n
}
