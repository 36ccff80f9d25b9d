package objctype

import "strconv"

// ParseType parses a single type encoding. Trailing bytes after the type are
// a syntax error carrying the unread suffix.
func ParseType(encoding string) (*Type, error) {
	p := &parser{lex: newLexer(encoding)}
	t, err := p.parseType(false)
	if err != nil {
		return nil, err
	}
	if _, ok := p.lex.peekByte(); ok {
		return nil, &SyntaxError{Kind: ErrUnexpectedToken, Remaining: p.lex.remaining()}
	}
	return t, nil
}

// ParseMethodType parses a method encoding: a sequence of (type, stack offset)
// pairs, return type first.
func ParseMethodType(encoding string) (*MethodType, error) {
	p := &parser{lex: newLexer(encoding)}
	mt, err := p.parseMethodType()
	if err != nil {
		return nil, err
	}
	if _, ok := p.lex.peekByte(); ok {
		return nil, &SyntaxError{Kind: ErrUnexpectedToken, Remaining: p.lex.remaining()}
	}
	return mt, nil
}

type parser struct {
	lex *lexer
}

func (p *parser) errHere(kind SyntaxErrorKind) error {
	return &SyntaxError{Kind: kind, Remaining: p.lex.remaining()}
}

func (p *parser) parseMethodType() (*MethodType, error) {
	mt := &MethodType{}
	for {
		if _, ok := p.lex.peekByte(); !ok {
			break
		}
		t, err := p.parseType(false)
		if err != nil {
			return nil, err
		}
		mt.Args = append(mt.Args, Arg{Type: t, Offset: p.parseOffsetDigits()})
	}
	return mt, nil
}

// parseOffsetDigits consumes an optional (possibly signed) stack offset.
func (p *parser) parseOffsetDigits() string {
	start := p.lex.pos
	if c, ok := p.lex.peekByte(); ok && (c == '+' || c == '-') {
		p.lex.pos++
	}
	for {
		c, ok := p.lex.peekByte()
		if !ok || !isDigit(c) {
			break
		}
		p.lex.pos++
	}
	return p.lex.input[start:p.lex.pos]
}

func isModifierByte(c byte) bool {
	switch Modifier(c) {
	case ModConst, ModIn, ModInout, ModOut, ModBycopy, ModByref, ModOneway, ModComplex, ModAtomic:
		return true
	}
	return false
}

// parseType parses Modifier* Atom. In member position, a quoted string after
// '@' is a class name only when what follows could not start another member.
func (p *parser) parseType(inMember bool) (*Type, error) {
	var mods []Modifier
	for {
		c, ok := p.lex.peekByte()
		if !ok {
			return nil, p.errHere(ErrUnexpectedEnd)
		}
		if isModifierByte(c) {
			mods = append(mods, Modifier(c))
			p.lex.pos++
			continue
		}
		break
	}

	t, err := p.parseAtom(inMember)
	if err != nil {
		return nil, err
	}
	t.Modifiers = mods
	return t, nil
}

var primitiveKinds = map[byte]Kind{
	'c': Char, 'C': UChar,
	's': Short, 'S': UShort,
	'i': Int, 'I': UInt,
	'l': Long, 'L': ULong,
	'q': LongLong, 'Q': ULongLong,
	't': Int128, 'T': UInt128,
	'f': Float, 'd': Double, 'D': LongDouble,
	'B': Bool, 'v': Void,
	'*': CString,
	'#': Class, ':': Selector, '%': Atom,
	'?': Unknown,
}

func (p *parser) parseAtom(inMember bool) (*Type, error) {
	c, ok := p.lex.peekByte()
	if !ok {
		return nil, p.errHere(ErrUnexpectedEnd)
	}

	switch c {
	case '@':
		p.lex.pos++
		return p.parseObject(inMember)
	case '^':
		p.lex.pos++
		if nc, ok := p.lex.peekByte(); ok && nc == '?' {
			p.lex.pos++
			return &Type{Kind: FunctionPointer}, nil
		}
		elem, err := p.parseType(false)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: Pointer, Elem: elem}, nil
	case '[':
		p.lex.pos++
		count, err := p.parseNumber()
		if err != nil {
			return nil, err
		}
		elem, err := p.parseType(false)
		if err != nil {
			return nil, err
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		return &Type{Kind: Array, Count: count, Elem: elem}, nil
	case '{':
		return p.parseAggregate(Struct, '{', '}')
	case '(':
		return p.parseAggregate(Union, '(', ')')
	case 'b':
		p.lex.pos++
		width, err := p.parseNumber()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: Bitfield, Count: width}, nil
	default:
		if kind, ok := primitiveKinds[c]; ok {
			p.lex.pos++
			return &Type{Kind: kind}, nil
		}
		return nil, p.errHere(ErrUnexpectedToken)
	}
}

// parseObject handles the '@' family: plain id, @"Class", @"Class<P1,P2>",
// @? blocks, and @?<...> blocks with embedded signatures.
func (p *parser) parseObject(inMember bool) (*Type, error) {
	c, ok := p.lex.peekByte()
	if !ok {
		return &Type{Kind: Id}, nil
	}

	if c == '?' {
		p.lex.pos++
		if nc, ok := p.lex.peekByte(); ok && nc == '<' {
			p.lex.pos++
			sig, err := p.parseBlockSignature()
			if err != nil {
				return nil, err
			}
			return &Type{Kind: Block, BlockSig: sig}, nil
		}
		return &Type{Kind: Block}, nil
	}

	if c == '"' {
		save := p.lex.pos
		tok := p.lex.next() // quoted string
		if inMember && !p.quotedWasClassName() {
			// the quote belongs to the next member's name
			p.lex.pos = save
			return &Type{Kind: Id}, nil
		}
		name, protos := splitClassRef(tok.text)
		return &Type{Kind: Id, Name: name, Protocols: protos}, nil
	}

	return &Type{Kind: Id}, nil
}

// quotedWasClassName decides, after consuming a quoted string that followed
// '@' in member position, whether it named the object's class. If another
// member could start here the quote was a member name instead.
func (p *parser) quotedWasClassName() bool {
	c, ok := p.lex.peekByte()
	if !ok {
		return true
	}
	switch c {
	case '"', '}', ')':
		return true
	}
	return false
}

// splitClassRef splits `Name<P1,P2>` into the class name and protocol list.
func splitClassRef(ref string) (string, []string) {
	open := -1
	for i := 0; i < len(ref); i++ {
		if ref[i] == '<' {
			open = i
			break
		}
	}
	if open < 0 {
		return ref, nil
	}
	name := ref[:open]
	inner := ref[open+1:]
	if len(inner) > 0 && inner[len(inner)-1] == '>' {
		inner = inner[:len(inner)-1]
	}
	var protos []string
	start := 0
	for i := 0; i <= len(inner); i++ {
		if i == len(inner) || inner[i] == ',' {
			if i > start {
				protos = append(protos, inner[start:i])
			}
			start = i + 1
		}
	}
	return name, protos
}

// parseBlockSignature reads the method-type sequence inside @?<...>.
func (p *parser) parseBlockSignature() (*MethodType, error) {
	mt := &MethodType{}
	for {
		c, ok := p.lex.peekByte()
		if !ok {
			return nil, p.errHere(ErrUnbalanced)
		}
		if c == '>' {
			p.lex.pos++
			return mt, nil
		}
		t, err := p.parseType(false)
		if err != nil {
			return nil, err
		}
		mt.Args = append(mt.Args, Arg{Type: t, Offset: p.parseOffsetDigits()})
	}
}

func (p *parser) parseAggregate(kind Kind, open, close byte) (*Type, error) {
	if err := p.expect(open); err != nil {
		return nil, err
	}

	t := &Type{Kind: kind}

	// identifier state captures tags containing letters, digits, '_' and '$'
	p.lex.state = stateIdentifier
	if c, ok := p.lex.peekByte(); ok && c == '?' {
		p.lex.pos++
	} else if c, ok := p.lex.peekByte(); ok && isIdentByte(c) {
		tok := p.lex.next()
		t.Name = tok.text
	}
	p.lex.state = stateNormal

	c, ok := p.lex.peekByte()
	if !ok {
		return nil, p.errHere(ErrUnbalanced)
	}
	if c == '=' {
		p.lex.pos++
		t.Members = []Member{}
		for {
			c, ok := p.lex.peekByte()
			if !ok {
				return nil, p.errHere(ErrUnbalanced)
			}
			if c == close {
				break
			}
			m, err := p.parseMember()
			if err != nil {
				return nil, err
			}
			t.Members = append(t.Members, m)
		}
	}
	if err := p.expect(close); err != nil {
		return nil, err
	}
	return t, nil
}

// parseMember parses QuotedString? Type (the quoted string names the field).
func (p *parser) parseMember() (Member, error) {
	var m Member
	if c, ok := p.lex.peekByte(); ok && c == '"' {
		tok := p.lex.next()
		m.Name = tok.text
	}
	t, err := p.parseType(true)
	if err != nil {
		return m, err
	}
	m.Type = t
	return m, nil
}

func (p *parser) parseNumber() (int, error) {
	start := p.lex.pos
	for {
		c, ok := p.lex.peekByte()
		if !ok || !isDigit(c) {
			break
		}
		p.lex.pos++
	}
	if p.lex.pos == start {
		return 0, p.errHere(ErrBadNumber)
	}
	n, err := strconv.Atoi(p.lex.input[start:p.lex.pos])
	if err != nil {
		return 0, p.errHere(ErrBadNumber)
	}
	return n, nil
}

func (p *parser) expect(c byte) error {
	got, ok := p.lex.peekByte()
	if !ok {
		return p.errHere(ErrUnexpectedEnd)
	}
	if got != c {
		return p.errHere(ErrUnexpectedToken)
	}
	p.lex.pos++
	return nil
}
