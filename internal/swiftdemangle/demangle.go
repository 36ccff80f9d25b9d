package swiftdemangle

import (
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const demangleCacheSize = 8192

// An Oracle is an optional host-provided demangler. Results from the oracle
// are cached alongside the built-in results and win over them; the demangler
// is fully functional without one.
type Oracle interface {
	Demangle(mangled string) (string, error)
}

type Option func(*Demangler)

// WithOracle installs a host demangling oracle.
func WithOracle(o Oracle) Option {
	return func(d *Demangler) { d.oracle = o }
}

// WithCacheSize bounds the shared demangle cache.
func WithCacheSize(n int) Option {
	return func(d *Demangler) {
		if n > 0 {
			d.cache, _ = lru.New[string, string](n)
		}
	}
}

// A Demangler holds the shared result cache and optional oracle. Safe for
// concurrent use.
type Demangler struct {
	oracle Oracle
	cache  *lru.Cache[string, string]
}

func New(opts ...Option) *Demangler {
	d := &Demangler{}
	d.cache, _ = lru.New[string, string](demangleCacheSize)
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Demangle renders a mangled symbol for output. Inputs with no recognized
// mangling prefix, and any demangling whose result would leak raw mangled
// fragments, come back unchanged.
func (d *Demangler) Demangle(mangled string) string {
	if mangled == "" {
		return mangled
	}
	if out, ok := d.cache.Get(mangled); ok {
		return out
	}

	out := mangled
	if d.oracle != nil {
		if res, err := d.oracle.Demangle(mangled); err == nil && validOutput(res) {
			d.cache.Add(mangled, res)
			return res
		}
	}
	if res, err := demangleAny(mangled); err == nil && validOutput(res) {
		out = res
	}
	d.cache.Add(mangled, out)
	return out
}

// DemangleType renders a bare mangled type (as carried by reflection field
// records, with no symbol prefix). Unparseable input comes back unchanged.
func (d *Demangler) DemangleType(mangled string) string {
	if mangled == "" {
		return mangled
	}
	key := "\x00type\x00" + mangled
	if out, ok := d.cache.Get(key); ok {
		return out
	}
	out := mangled
	if res, err := DemangleTypeString(mangled); err == nil && validOutput(res) {
		out = res
	}
	d.cache.Add(key, out)
	return out
}

var mangledTokenPattern = regexp.MustCompile(`(?:_?\$[sS]|_T[t0])[A-Za-z0-9_$]+`)

// DemangleBlob rewrites every recognizable mangled token inside free text.
func (d *Demangler) DemangleBlob(blob string) string {
	return mangledTokenPattern.ReplaceAllStringFunc(blob, d.Demangle)
}

// Demangle is the convenience entry point with no cache or oracle.
func Demangle(mangled string) string {
	if res, err := demangleAny(mangled); err == nil && validOutput(res) {
		return res
	}
	return mangled
}

// demangleAny dispatches on the mangling prefix.
func demangleAny(mangled string) (string, error) {
	switch {
	case strings.HasPrefix(mangled, "_Tt"):
		node, err := demangleOldStyle([]byte(mangled[len("_Tt"):]))
		if err != nil {
			return "", err
		}
		return Format(node), nil
	case strings.HasPrefix(mangled, "_$s"), strings.HasPrefix(mangled, "_$S"):
		return demangleNewStyle(mangled[len("_$s"):])
	case strings.HasPrefix(mangled, "$s"), strings.HasPrefix(mangled, "$S"):
		return demangleNewStyle(mangled[len("$s"):])
	case strings.HasPrefix(mangled, "_T0"):
		return demangleNewStyle(mangled[len("_T0"):])
	case looksLikeBareType(mangled):
		return DemangleTypeString(mangled)
	}
	return "", fmt.Errorf("no recognized mangling prefix")
}

// looksLikeBareType recognizes reflection-style type manglings with no
// symbol prefix: stdlib shortcuts, bound generic sugar, and concurrency
// shortcut spellings.
func looksLikeBareType(s string) bool {
	if len(s) < 2 {
		return false
	}
	if s[0] == 'S' {
		if _, ok := stdlibShortcuts[s[1]]; ok {
			return true
		}
		if s[1] == 'c' && len(s) > 2 {
			_, ok := concurrencyShortcuts[s[2]]
			return ok
		}
	}
	return false
}

// DemangleTypeString parses a bare mangled type and renders it.
func DemangleTypeString(mangled string) (string, error) {
	data := []byte(strings.TrimPrefix(mangled, "_"))
	p := newParser(data)

	// closures parse greedily; try them first, then plain types
	if node, err := p.parseClosureType(); err == nil && p.eof() {
		return Format(node), nil
	}
	p = newParser(data)
	node, err := p.parseType()
	if err != nil {
		return "", err
	}
	if !p.eof() {
		return "", fmt.Errorf("trailing bytes after type at %d", p.pos)
	}
	return Format(node), nil
}

// demangleNewStyle handles $s symbols: nominal types and function entities.
func demangleNewStyle(body string) (string, error) {
	// a plain type mangling consumes the whole buffer
	p := newParser([]byte(body))
	if node, err := p.parseType(); err == nil && p.eof() {
		return Format(node), nil
	}

	p = newParser([]byte(body))
	node, err := p.parseFunctionSymbol()
	if err != nil {
		return "", err
	}
	return Format(node), nil
}

// parseFunctionSymbol parses Module(.Context)*.name(labels)(signature)F.
func (p *parser) parseFunctionSymbol() (*Node, error) {
	module, err := p.readIdentifier()
	if err != nil {
		return nil, fmt.Errorf("failed to read module: %w", err)
	}

	var contexts []string
	for {
		save := p.pos
		name, err := p.readIdentifier()
		if err != nil {
			p.pos = save
			break
		}
		if p.eof() {
			p.pos = save
			break
		}
		if _, ok := nominalTypeKinds[p.peek()]; !ok {
			p.pos = save
			break
		}
		p.consume()
		contexts = append(contexts, name)
	}

	name, err := p.readIdentifier()
	if err != nil {
		return nil, fmt.Errorf("failed to read entity name: %w", err)
	}

	var labels []string
	for !p.eof() && p.peek() == '_' {
		p.consume()
		if !p.eof() && isMangleDigit(p.peek()) {
			label, err := p.readIdentifier()
			if err != nil {
				return nil, err
			}
			labels = append(labels, label)
		} else {
			labels = append(labels, "_")
		}
	}

	return p.parseFunctionEntity(module, contexts, name, labels)
}

// parseFunctionEntity parses the signature: result type first, then the
// parameter pieces, effects, an optional generic signature, and the final F.
func (p *parser) parseFunctionEntity(module string, contexts []string, baseName string, labels []string) (*Node, error) {
	result, err := p.parseFunctionPiece()
	if err != nil {
		return nil, fmt.Errorf("failed to parse function result type: %w", err)
	}

	var (
		params      []*Node
		constraints []*Node
		flags       NodeFlags
	)

loop:
	for {
		if p.eof() {
			return nil, fmt.Errorf("unterminated function signature")
		}
		switch c := p.peek(); {
		case c == 'F':
			p.consume()
			break loop
		case c == 'Y' && p.peekAt(1) == 'a':
			flags.Async = true
			p.pos += 2
		case c == 'Y' && p.peekAt(1) == 'b':
			flags.Sendable = true
			p.pos += 2
		case c == 'K':
			flags.Throws = true
			p.consume()
		case c == 'Z':
			// static entity marker
			p.consume()
		case c == 'l':
			// end of generic signature
			p.consume()
		case c == 'R':
			cons, err := p.parseConstraint(params)
			if err != nil {
				return nil, err
			}
			constraints = append(constraints, cons)
		case c == 't':
			// tuple close from an unsupported form
			p.consume()
		default:
			piece, err := p.parseFunctionPiece()
			if err != nil {
				return nil, err
			}
			params = append(params, piece)
		}
	}

	// empty-tuple markers in parameter position add nothing to the signature
	kept := params[:0]
	for _, param := range params {
		if param.Kind == KindTuple && param.Text == "Void" {
			continue
		}
		kept = append(kept, param)
	}
	params = kept

	normalized := normalizeArgumentLabels(len(params), labels)
	argumentTuple := NewNode(KindTuple, "")
	for idx, param := range params {
		arg := NewNode(KindArgument, normalized[idx])
		arg.Append(param)
		argumentTuple.Append(arg)
	}
	ret := NewNode(KindReturnType, "")
	ret.Append(result)

	qualified := strings.Join(append(append([]string{module}, contexts...), baseName), ".")
	fn := NewNode(KindFunction, qualified)
	fn.Flags = flags
	fn.Append(argumentTuple, ret)
	fn.Append(constraints...)
	return fn, nil
}

// parseConstraint decodes a generic requirement marker following its subject
// type. Rz is a conformance, Rs a same-type requirement, Rl a layout
// requirement (AnyObject), Rb a base-class requirement.
func (p *parser) parseConstraint(params []*Node) (*Node, error) {
	if err := p.expect('R'); err != nil {
		return nil, err
	}
	kind := p.consume()

	subject := "T"
	if len(params) > 0 {
		subject = Format(params[len(params)-1])
	}

	switch kind {
	case 'z':
		target, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return NewNode(KindConstraint, "T: "+Format(target)), nil
	case 's':
		target, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return NewNode(KindConstraint, subject+" == "+Format(target)), nil
	case 'l':
		return NewNode(KindConstraint, "T: AnyObject"), nil
	case 'b':
		target, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return NewNode(KindConstraint, "T: "+Format(target)), nil
	default:
		return nil, fmt.Errorf("unknown requirement kind R%c", kind)
	}
}

func normalizeArgumentLabels(paramCount int, labels []string) []string {
	normalized := make([]string, paramCount)
	for i := range normalized {
		normalized[i] = "_"
	}
	for i := 0; i < len(labels) && i < paramCount; i++ {
		if labels[i] != "" {
			normalized[i] = labels[i]
		}
	}
	return normalized
}

/*
 * Old-style (_Tt) demangling
 */

// DemangleClassName splits an old-style class mangling into module and name.
func DemangleClassName(mangled string) (module, name string, err error) {
	if !strings.HasPrefix(mangled, "_TtC") {
		return "", "", fmt.Errorf("not an old-style class mangling")
	}
	body := mangled[len("_Tt"):]
	depth := 0
	for depth < len(body) && body[depth] == 'C' {
		depth++
	}
	p := newParser([]byte(body[depth:]))
	module, err = p.readOldModule()
	if err != nil {
		return "", "", err
	}
	var last string
	for i := 0; i < depth; i++ {
		last, err = p.readIdentifier()
		if err != nil {
			return "", "", err
		}
	}
	return module, last, nil
}

// DemangleSwiftName renders any recognized mangling as a dotted name,
// returning the input unchanged otherwise.
func DemangleSwiftName(mangled string) string {
	return Demangle(mangled)
}

func (p *parser) readOldModule() (string, error) {
	if p.peek() == 'S' {
		switch p.peekAt(1) {
		case 's':
			p.pos += 2
			return "Swift", nil
		case 'o':
			p.pos += 2
			return "__C", nil
		}
	}
	return p.readIdentifier()
}

// demangleOldStyle parses the body after the _Tt prefix.
func demangleOldStyle(body []byte) (*Node, error) {
	p := newParser(body)
	node, err := p.parseOldType()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, fmt.Errorf("trailing bytes in old-style mangling at %d", p.pos)
	}
	return node, nil
}

func (p *parser) parseOldType() (*Node, error) {
	if p.depth++; p.depth > maxGenericDepth {
		return nil, fmt.Errorf("old-style mangling exceeds recursion bound")
	}
	defer func() { p.depth-- }()

	c := p.consume()
	switch c {
	case 'C', 'V', 'O':
		return p.parseOldNominal(oldStyleKinds[c], 1)
	case 'P':
		node, err := p.parseOldNominal(KindProtocol, 1)
		if err != nil {
			return nil, err
		}
		if p.peek() == '_' {
			p.consume()
		}
		return node, nil
	case 'G':
		return p.parseOldGeneric()
	case 'S':
		sub := p.consume()
		if name, ok := stdlibShortcuts[sub]; ok {
			return nominal(KindStruct, "Swift", name), nil
		}
		return nil, fmt.Errorf("unknown old-style substitution S%c", sub)
	default:
		return nil, fmt.Errorf("unsupported old-style kind %q", c)
	}
}

// parseOldNominal handles nesting (CC, CCC) by counting leading kind chars,
// then reads module plus one name per level.
func (p *parser) parseOldNominal(kind NodeKind, depth int) (*Node, error) {
	for !p.eof() {
		if k, ok := oldStyleKinds[p.peek()]; ok {
			kind = k
			p.consume()
			depth++
			continue
		}
		break
	}

	module, err := p.readOldModule()
	if err != nil {
		return nil, err
	}
	path := []string{module}
	for i := 0; i < depth; i++ {
		name, err := p.readIdentifier()
		if err != nil {
			return nil, err
		}
		path = append(path, name)
	}
	return nominal(kind, path...), nil
}

// parseOldGeneric handles _TtGC / _TtGV forms: a base nominal followed by
// nested type arguments up to the '_' terminator.
func (p *parser) parseOldGeneric() (*Node, error) {
	base, err := p.parseOldType()
	if err != nil {
		return nil, err
	}

	var args []*Node
	for {
		if p.eof() {
			return nil, fmt.Errorf("unterminated old-style generic")
		}
		if p.peek() == '_' {
			p.consume()
			break
		}
		arg, err := p.parseOldType()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return sugarBoundGeneric(base, args), nil
}

/*
 * Output validation
 */

// validOutput rejects demangler results that leak raw mangled fragments:
// symbolic-reference control bytes, or sugar spellings left in leading
// position.
func validOutput(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] <= 0x17 {
			return false
		}
	}
	for _, frag := range []string{"Say", "SDy", "Shy", "Sqy", "SSg"} {
		if strings.HasPrefix(s, frag) {
			return false
		}
	}
	return true
}
