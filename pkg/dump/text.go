package dump

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/appsworld/go-classdump/pkg/objctype"
	"github.com/appsworld/go-classdump/types/objc"
)

// TextVisitor emits header-style declarations to a single stream. Names seen
// while formatting feed a top-of-file forward-declaration block.
type TextVisitor struct {
	w    io.Writer
	m    *Model
	body bytes.Buffer

	classNames  map[string]bool
	protoNames  map[string]bool
	structNames map[string]bool

	declaredClasses map[string]bool
	declaredProtos  map[string]bool
}

// NewTextVisitor writes declarations to w.
func NewTextVisitor(w io.Writer) *TextVisitor {
	return &TextVisitor{
		w:               w,
		classNames:      make(map[string]bool),
		protoNames:      make(map[string]bool),
		structNames:     make(map[string]bool),
		declaredClasses: make(map[string]bool),
		declaredProtos:  make(map[string]bool),
	}
}

func (v *TextVisitor) BeginFile(m *Model) error {
	v.m = m
	return nil
}

// formatOpts builds formatter options that record every name sighting.
func (v *TextVisitor) formatOpts() *objctype.Options {
	return &objctype.Options{
		Style:          v.m.opts.Style,
		Structs:        v.m.Structs,
		OnClassName:    func(name string) { v.classNames[name] = true },
		OnProtocolName: func(name string) { v.protoNames[name] = true },
		OnStructName:   func(name string) { v.structNames[name] = true },
	}
}

func (v *TextVisitor) VisitProtocol(p *objc.Protocol) error {
	v.declaredProtos[p.Name] = true

	fmt.Fprintf(&v.body, "@protocol %s", p.Name)
	if len(p.Parents) > 0 {
		fmt.Fprintf(&v.body, " <%s>", strings.Join(p.ParentNames(), ", "))
		for _, parent := range p.ParentNames() {
			v.protoNames[parent] = true
		}
	}
	v.body.WriteString("\n")

	opts := v.formatOpts()
	for _, prop := range p.Properties {
		v.body.WriteString(objctype.FormatProperty(prop.Name, prop.Attributes, opts, v.m.Cache) + "\n")
	}
	v.methodLines(&v.body, p.ClassMethods, true, opts)
	v.methodLines(&v.body, p.InstanceMethods, false, opts)
	if len(p.OptionalClassMethods) > 0 || len(p.OptionalInstanceMethods) > 0 {
		v.body.WriteString("\n@optional\n")
		v.methodLines(&v.body, p.OptionalClassMethods, true, opts)
		v.methodLines(&v.body, p.OptionalInstanceMethods, false, opts)
	}
	v.body.WriteString("@end\n\n")
	return nil
}

func (v *TextVisitor) VisitClass(c *objc.Class) error {
	name := v.m.DisplayName(c.Name)
	v.declaredClasses[name] = true

	fmt.Fprintf(&v.body, "@interface %s", name)
	if c.SuperClass.Name != "" {
		fmt.Fprintf(&v.body, " : %s", v.m.DisplayName(c.SuperClass.Name))
	}
	if len(c.Protocols) > 0 {
		fmt.Fprintf(&v.body, " <%s>", strings.Join(c.ProtocolNames(), ", "))
		for _, p := range c.ProtocolNames() {
			v.protoNames[p] = true
		}
	}
	v.body.WriteString("\n")

	opts := v.formatOpts()
	if len(c.Ivars) > 0 {
		v.body.WriteString("{\n")
		for _, iv := range c.Ivars {
			line := objctype.FormatIvar(iv.Name, iv.Type, iv.SwiftType, opts, v.m.Cache)
			if v.m.opts.ShowIvarOffsets {
				fmt.Fprintf(&v.body, "    %s\t// +%#x\n", line, iv.Offset)
			} else {
				fmt.Fprintf(&v.body, "    %s\n", line)
			}
		}
		v.body.WriteString("}\n")
	}
	for _, prop := range c.Properties {
		v.body.WriteString(objctype.FormatProperty(prop.Name, prop.Attributes, opts, v.m.Cache) + "\n")
	}
	v.methodLines(&v.body, c.ClassMethods, true, opts)
	v.methodLines(&v.body, c.InstanceMethods, false, opts)
	v.body.WriteString("@end\n\n")
	return nil
}

func (v *TextVisitor) VisitCategory(c *objc.Category) error {
	target := v.m.DisplayName(c.Class.Name)

	fmt.Fprintf(&v.body, "@interface %s (%s)", target, c.Name)
	if len(c.Protocols) > 0 {
		names := make([]string, len(c.Protocols))
		for i, p := range c.Protocols {
			names[i] = p.Name
			v.protoNames[p.Name] = true
		}
		fmt.Fprintf(&v.body, " <%s>", strings.Join(names, ", "))
	}
	v.body.WriteString("\n")

	opts := v.formatOpts()
	for _, prop := range c.Properties {
		v.body.WriteString(objctype.FormatProperty(prop.Name, prop.Attributes, opts, v.m.Cache) + "\n")
	}
	v.methodLines(&v.body, c.ClassMethods, true, opts)
	v.methodLines(&v.body, c.InstanceMethods, false, opts)
	v.body.WriteString("@end\n\n")
	return nil
}

func (v *TextVisitor) methodLines(w io.Writer, methods []objc.Method, classMethod bool, opts *objctype.Options) {
	for _, meth := range methods {
		line := objctype.FormatMethod(classMethod, meth.Name, meth.Types, opts, v.m.Signatures, v.m.Cache)
		if v.m.opts.ShowImpAddresses && meth.ImpVMAddr > 0 {
			fmt.Fprintf(w, "%s\t// %#x\n", line, meth.ImpVMAddr)
		} else {
			fmt.Fprintf(w, "%s\n", line)
		}
	}
}

func (v *TextVisitor) EndFile() error {
	if !v.m.opts.SuppressBanner {
		if err := writeBanner(v.w, v.m); err != nil {
			return err
		}
	}
	if err := v.writeForwardDecls(); err != nil {
		return err
	}
	_, err := v.w.Write(v.body.Bytes())
	return err
}

func writeBanner(w io.Writer, m *Model) error {
	var b strings.Builder
	b.WriteString("//\n")
	fmt.Fprintf(&b, "//  Generated by %s %s\n", m.opts.ToolName, m.opts.ToolVersion)
	b.WriteString("//\n")
	if m.FilePath != "" {
		fmt.Fprintf(&b, "//  File: %s\n", m.FilePath)
	}
	fmt.Fprintf(&b, "//  Arch: %s\n", m.ArchName)
	if m.UUID != "" {
		fmt.Fprintf(&b, "//  UUID: %s\n", m.UUID)
	}
	if m.Platform != "" {
		fmt.Fprintf(&b, "//  Platform: %s (SDK %s)\n", m.Platform, m.SDK)
	}
	b.WriteString("//\n\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// writeForwardDecls emits @class/@protocol lines for referenced-but-undeclared
// names and struct bodies for referenced aggregates.
func (v *TextVisitor) writeForwardDecls() error {
	var b strings.Builder

	if !v.m.opts.HideProtocols {
		var protos []string
		for name := range v.protoNames {
			if !v.declaredProtos[name] && name != "" {
				protos = append(protos, name)
			}
		}
		sort.Strings(protos)
		if len(protos) > 0 {
			fmt.Fprintf(&b, "@protocol %s;\n", strings.Join(protos, ", "))
		}
	}

	var classes []string
	for name := range v.classNames {
		if !v.declaredClasses[name] && name != "" {
			classes = append(classes, name)
		}
	}
	sort.Strings(classes)
	if len(classes) > 0 {
		fmt.Fprintf(&b, "@class %s;\n", strings.Join(classes, ", "))
	}

	if !v.m.opts.HideStructures {
		var structs []string
		for name := range v.structNames {
			if name != "" {
				structs = append(structs, name)
			}
		}
		sort.Strings(structs)
		opts := &objctype.Options{Style: v.m.opts.Style, ExpandStructs: true, Structs: v.m.Structs}
		for _, name := range structs {
			if t, ok := v.m.Structs.Lookup(name); ok {
				b.WriteString(objctype.FormatType(t, "", opts) + ";\n")
			} else {
				fmt.Fprintf(&b, "struct %s;\n", name)
			}
		}
	}

	if b.Len() > 0 {
		b.WriteString("\n")
		_, err := io.WriteString(v.w, b.String())
		return err
	}
	return nil
}
