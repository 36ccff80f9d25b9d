package objctype

import (
	"fmt"
	"strings"
)

// OutputStyle selects the declaration syntax the formatter emits.
type OutputStyle int

const (
	StyleObjC OutputStyle = iota
	StyleSwift
)

// Options steer the formatter. The name callbacks fire for every class,
// protocol, and structure name that appears in output; the dump layer uses
// them to build its forward-declaration index.
type Options struct {
	Style OutputStyle

	// ExpandStructs renders struct/union bodies instead of "struct Name".
	ExpandStructs bool

	OnClassName    func(name string)
	OnProtocolName func(name string)
	OnStructName   func(name string)

	// Structs resolves forward-declared aggregates to their richest known
	// definition before rendering; optional.
	Structs *StructRegistry
}

func (o *Options) sawClass(name string) {
	if o != nil && o.OnClassName != nil && name != "" {
		o.OnClassName(name)
	}
}
func (o *Options) sawProtocol(name string) {
	if o != nil && o.OnProtocolName != nil && name != "" {
		o.OnProtocolName(name)
	}
}
func (o *Options) sawStruct(name string) {
	if o != nil && o.OnStructName != nil && name != "" {
		o.OnStructName(name)
	}
}

var primitiveNames = map[Kind]string{
	Char:       "char",
	UChar:      "unsigned char",
	Short:      "short",
	UShort:     "unsigned short",
	Int:        "int",
	UInt:       "unsigned int",
	Long:       "long",
	ULong:      "unsigned long",
	LongLong:   "long long",
	ULongLong:  "unsigned long long",
	Int128:     "__int128",
	UInt128:    "unsigned __int128",
	Float:      "float",
	Double:     "double",
	LongDouble: "long double",
	Bool:       "_Bool",
	Void:       "void",
	CString:    "char *",
	Class:      "Class",
	Selector:   "SEL",
	Atom:       "NXAtom *",
	Unknown:    "void",
}

// swiftPrimitives maps C spellings to their Swift equivalents.
var swiftPrimitives = map[string]string{
	"_Bool":              "Bool",
	"BOOL":               "Bool",
	"NSInteger":          "Int",
	"NSUInteger":         "UInt",
	"SEL":                "Selector",
	"id":                 "Any",
	"Class":              "AnyClass",
	"int":                "Int32",
	"unsigned int":       "UInt32",
	"long":               "Int",
	"unsigned long":      "UInt",
	"long long":          "Int64",
	"unsigned long long": "UInt64",
	"short":              "Int16",
	"unsigned short":     "UInt16",
	"char":               "CChar",
	"unsigned char":      "UInt8",
	"float":              "Float",
	"double":             "Double",
	"void":               "Void",
	"char *":             "UnsafeMutablePointer<CChar>",
}

// swiftClassBridges maps bridged ObjC classes to their Swift spellings.
var swiftClassBridges = map[string]string{
	"NSString":     "String",
	"NSArray":      "[Any]",
	"NSDictionary": "[AnyHashable: Any]",
	"NSSet":        "Set<AnyHashable>",
}

// MapSwiftTypeToObjC substitutes Swift display types that cross the bridge
// with their Objective-C spellings, for objc-style output.
func MapSwiftTypeToObjC(name string) string {
	name = strings.TrimSuffix(name, "?")
	switch name {
	case "Swift.AnyObject", "AnyObject":
		return "id"
	case "Swift.String", "String":
		return "NSString *"
	case "Swift.Bool", "Bool":
		return "BOOL"
	case "Swift.Int", "Int":
		return "NSInteger"
	case "Swift.UInt", "UInt":
		return "NSUInteger"
	case "Swift.Double", "Double":
		return "double"
	case "Swift.Float", "Float":
		return "float"
	}
	if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		if strings.Contains(name, ":") {
			return "NSDictionary *"
		}
		return "NSArray *"
	}
	if strings.HasPrefix(name, "Array<") {
		return "NSArray *"
	}
	if strings.HasPrefix(name, "Dictionary<") {
		return "NSDictionary *"
	}
	if strings.HasPrefix(name, "Set<") {
		return "NSSet *"
	}
	return name
}

// FormatType renders a parsed type with an optional variable name as a
// C-style (or Swift-style) declaration.
func FormatType(t *Type, varName string, opts *Options) string {
	if opts == nil {
		opts = &Options{}
	}
	f := &formatter{opts: opts}
	return f.format(t, varName, true)
}

type formatter struct {
	opts *Options
}

func (f *formatter) format(t *Type, varName string, topLevel bool) string {
	if t == nil {
		if varName == "" {
			return "void"
		}
		return "void " + varName
	}

	base, declarator := f.typeAndDeclarator(t, varName, topLevel)
	if declarator == "" {
		return base
	}
	return base + " " + declarator
}

// typeAndDeclarator splits a declaration into its base type and declarator so
// that pointers and arrays compose around the variable name C-style.
func (f *formatter) typeAndDeclarator(t *Type, varName string, topLevel bool) (string, string) {
	prefix := f.modifierPrefix(t)

	switch t.Kind {
	case Pointer:
		inner := "*" + varName
		if t.Elem != nil && t.Elem.Kind == Array {
			inner = "(" + inner + ")"
		}
		base, decl := f.typeAndDeclarator(t.Elem, inner, false)
		return prefix + base, decl
	case Array:
		count := fmt.Sprintf("[%d]", t.Count)
		base, decl := f.typeAndDeclarator(t.Elem, varName, false)
		return prefix + base, decl + count
	case Bitfield:
		return prefix + "unsigned int", varName + fmt.Sprintf(":%d", t.Count)
	case Block:
		return prefix + f.blockString(t, varName), ""
	default:
		return prefix + f.baseName(t, topLevel), varName
	}
}

func (f *formatter) modifierPrefix(t *Type) string {
	var b strings.Builder
	for _, m := range t.Modifiers {
		if kw := m.Keyword(); kw != "" {
			b.WriteString(kw)
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func (f *formatter) baseName(t *Type, topLevel bool) string {
	switch t.Kind {
	case Id:
		if t.Name == "" && len(t.Protocols) == 0 {
			if f.opts.Style == StyleSwift {
				return "Any"
			}
			return "id"
		}
		f.opts.sawClass(t.Name)
		for _, p := range t.Protocols {
			f.opts.sawProtocol(p)
		}
		if f.opts.Style == StyleSwift {
			if bridged, ok := swiftClassBridges[t.Name]; ok {
				return bridged
			}
			if t.Name == "" {
				return "any " + strings.Join(t.Protocols, " & ")
			}
			return t.Name
		}
		var b strings.Builder
		if t.Name == "" {
			b.WriteString("id")
		} else {
			b.WriteString(t.Name)
		}
		if len(t.Protocols) > 0 {
			b.WriteString("<" + strings.Join(t.Protocols, ", ") + ">")
		}
		if t.Name != "" {
			b.WriteString(" *")
		}
		return b.String()
	case Struct, Union:
		return f.aggregateString(t, topLevel)
	case FunctionPointer:
		return "void (*)(void)"
	default:
		name := primitiveNames[t.Kind]
		if f.opts.Style == StyleSwift {
			if sw, ok := swiftPrimitives[name]; ok {
				return sw
			}
		}
		return name
	}
}

func (f *formatter) aggregateString(t *Type, topLevel bool) string {
	keyword := "struct"
	if t.Kind == Union {
		keyword = "union"
	}

	resolved := t
	if f.opts.Structs != nil {
		resolved = f.opts.Structs.Resolve(t)
	}
	f.opts.sawStruct(resolved.Name)

	expand := f.opts.ExpandStructs || (topLevel && resolved.Name == "")
	if !expand || resolved.Members == nil {
		if resolved.Name == "" {
			// anonymous aggregates have nothing to forward-declare
			if resolved.Members != nil {
				return f.expandedAggregate(keyword, resolved)
			}
			return keyword + " { }"
		}
		return keyword + " " + resolved.Name
	}
	return f.expandedAggregate(keyword, resolved)
}

func (f *formatter) expandedAggregate(keyword string, t *Type) string {
	var b strings.Builder
	b.WriteString(keyword)
	if t.Name != "" {
		b.WriteString(" " + t.Name)
	}
	b.WriteString(" {")
	for i, m := range t.Members {
		name := m.Name
		if name == "" {
			name = fmt.Sprintf("field%d", i+1)
		}
		inner := &formatter{opts: &Options{
			Style:          f.opts.Style,
			OnClassName:    f.opts.OnClassName,
			OnProtocolName: f.opts.OnProtocolName,
			OnStructName:   f.opts.OnStructName,
			Structs:        f.opts.Structs,
		}}
		b.WriteString(" " + inner.format(m.Type, name, false) + ";")
	}
	b.WriteString(" }")
	return b.String()
}

// blockString renders a block type. Unknown signatures degrade to a marked
// id, never a fabricated typedef.
func (f *formatter) blockString(t *Type, varName string) string {
	if t.BlockSig == nil || len(t.BlockSig.Args) == 0 {
		if varName == "" {
			return "id /* block */"
		}
		return "id /* block */ " + varName
	}

	// args[0] is the return type, args[1] the block itself, the rest params
	ret := f.format(t.BlockSig.Args[0].Type, "", false)
	var params []string
	for i, a := range t.BlockSig.Args {
		if i < 2 {
			continue
		}
		params = append(params, f.format(a.Type, "", false))
	}
	paramList := "(void)"
	if len(params) > 0 {
		paramList = "(" + strings.Join(params, ", ") + ")"
	}
	return fmt.Sprintf("%s (^%s)%s", ret, varName, paramList)
}
