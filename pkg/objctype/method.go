package objctype

import (
	"fmt"
	"strings"
)

// FormatMethod renders one method declaration from its selector and runtime
// encoding. The self and _cmd positions of the encoding are dropped; selector
// pieces interleave with the remaining argument types. Block parameters whose
// encoding carries no signature are upgraded through the method-signature
// registry when a richer protocol declaration is known.
func FormatMethod(isClassMethod bool, selector, encoding string, opts *Options, reg *MethodSignatureRegistry, cache *ParseCache) string {
	prefix := "-"
	if isClassMethod {
		prefix = "+"
	}

	mt, err := parseMethodCached(cache, encoding)
	if err != nil {
		// degrade to an untyped declaration rather than dropping the method
		return fmt.Sprintf("%s %s;", prefix, selector)
	}

	f := &formatter{opts: opts}
	ret := f.format(mt.ReturnType(), "", false)
	args := mt.Arguments()

	if !strings.Contains(selector, ":") {
		return fmt.Sprintf("%s (%s)%s;", prefix, ret, selector)
	}

	pieces := strings.Split(selector, ":")
	if len(pieces) > 0 && pieces[len(pieces)-1] == "" {
		pieces = pieces[:len(pieces)-1]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", prefix, ret)
	for i, piece := range pieces {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(piece)
		b.WriteByte(':')

		argName := fmt.Sprintf("arg%d", i+1)
		if i < len(args) {
			t := args[i].Type
			if t.Kind == Block && t.BlockSig == nil && reg != nil {
				if richer := reg.BlockSignature(selector, i); richer != nil {
					t = richer
				}
			}
			fmt.Fprintf(&b, "(%s)%s", f.format(t, "", false), argName)
		} else {
			b.WriteString(argName)
		}
	}
	b.WriteByte(';')
	return b.String()
}

// Property attribute codes from the runtime's attribute string.
const (
	propAttrType      = 'T'
	propAttrReadOnly  = 'R'
	propAttrCopy      = 'C'
	propAttrRetain    = '&'
	propAttrNonAtomic = 'N'
	propAttrDynamic   = 'D'
	propAttrWeak      = 'W'
	propAttrGetter    = 'G'
	propAttrSetter    = 'S'
	propAttrIvar      = 'V'
)

// PropertyInfo is a decoded property attribute string.
type PropertyInfo struct {
	TypeEncoding string
	Attributes   []string // source-order qualifiers: nonatomic, copy, ...
	Getter       string
	Setter       string
	IvarName     string
	ReadOnly     bool
	Dynamic      bool
}

// ParsePropertyAttributes decodes the comma-separated attribute string stored
// with each property.
func ParsePropertyAttributes(attrs string) PropertyInfo {
	var info PropertyInfo
	for _, attr := range strings.Split(attrs, ",") {
		if attr == "" {
			continue
		}
		switch attr[0] {
		case propAttrType:
			info.TypeEncoding = attr[1:]
		case propAttrReadOnly:
			info.ReadOnly = true
			info.Attributes = append(info.Attributes, "readonly")
		case propAttrCopy:
			info.Attributes = append(info.Attributes, "copy")
		case propAttrRetain:
			info.Attributes = append(info.Attributes, "retain")
		case propAttrNonAtomic:
			info.Attributes = append(info.Attributes, "nonatomic")
		case propAttrWeak:
			info.Attributes = append(info.Attributes, "weak")
		case propAttrDynamic:
			info.Dynamic = true
		case propAttrGetter:
			info.Getter = attr[1:]
			info.Attributes = append(info.Attributes, "getter="+info.Getter)
		case propAttrSetter:
			info.Setter = attr[1:]
			info.Attributes = append(info.Attributes, "setter="+info.Setter)
		case propAttrIvar:
			info.IvarName = attr[1:]
		}
	}
	return info
}

// FormatProperty renders an @property declaration from its name and runtime
// attribute string.
func FormatProperty(name, attrs string, opts *Options, cache *ParseCache) string {
	info := ParsePropertyAttributes(attrs)

	var qualifiers string
	if len(info.Attributes) > 0 {
		qualifiers = "(" + strings.Join(info.Attributes, ", ") + ") "
	}

	typeStr := "id"
	if info.TypeEncoding != "" {
		if t, err := parseTypeCached(cache, info.TypeEncoding); err == nil {
			f := &formatter{opts: opts}
			decl := f.format(t, name, false)
			return fmt.Sprintf("@property %s%s;", qualifiers, decl)
		}
	}
	return fmt.Sprintf("@property %s%s %s;", qualifiers, typeStr, name)
}

// FormatIvar renders one instance-variable line. A Swift-resolved display
// type wins over the runtime encoding when present.
func FormatIvar(name, encoding, swiftType string, opts *Options, cache *ParseCache) string {
	if swiftType != "" {
		if opts == nil || opts.Style == StyleObjC {
			swiftType = MapSwiftTypeToObjC(swiftType)
		}
		if strings.HasSuffix(swiftType, "*") {
			return fmt.Sprintf("%s%s;", swiftType, name)
		}
		return fmt.Sprintf("%s %s;", swiftType, name)
	}
	t, err := parseTypeCached(cache, encoding)
	if err != nil {
		return fmt.Sprintf("%s %s;", encoding, name)
	}
	f := &formatter{opts: opts}
	return f.format(t, name, false) + ";"
}

func parseTypeCached(cache *ParseCache, encoding string) (*Type, error) {
	if cache != nil {
		return cache.Type(encoding)
	}
	return ParseType(encoding)
}

func parseMethodCached(cache *ParseCache, encoding string) (*MethodType, error) {
	if cache != nil {
		return cache.MethodType(encoding)
	}
	return ParseMethodType(encoding)
}
