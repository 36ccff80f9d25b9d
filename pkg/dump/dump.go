// Package dump assembles the extracted Objective-C and Swift model of a
// Mach-O image and walks it through visitors that emit header-style
// declarations.
package dump

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/apex/log"

	macho "github.com/appsworld/go-classdump"
	"github.com/appsworld/go-classdump/internal/swiftdemangle"
	"github.com/appsworld/go-classdump/pkg/objctype"
	"github.com/appsworld/go-classdump/types/objc"
	"github.com/appsworld/go-classdump/types/swift"
)

// Options mirror the command-line surface that shapes output.
type Options struct {
	ShowIvarOffsets  bool // -a
	ShowImpAddresses bool // -A
	SuppressBanner   bool // -t

	SortByName        bool // -s
	SortByInheritance bool // -I, overrides -s
	SortMethods       bool // -S

	ClassFilter  *regexp.Regexp // -C
	MethodFilter string         // -f

	HideStructures bool
	HideProtocols  bool

	Style    objctype.OutputStyle
	Demangle bool

	ToolName    string
	ToolVersion string
	FilePath    string
}

// A Model is the extracted declaration surface of one Mach-O image.
type Model struct {
	FilePath string
	ArchName string
	UUID     string
	Platform string
	SDK      string

	Classes    []*objc.Class
	Categories []objc.Category
	Protocols  []objc.Protocol

	SwiftTypes []swift.TypeDescriptor

	Signatures *objctype.MethodSignatureRegistry
	Structs    *objctype.StructRegistry
	Cache      *objctype.ParseCache
	Demangler  *swiftdemangle.Demangler

	opts *Options
}

// Extract runs the ObjC and Swift passes over an open file and assembles the
// model. Cancellation is checked between the coarse phases.
func Extract(ctx context.Context, f *macho.File, opts *Options, dem *swiftdemangle.Demangler) (*Model, error) {
	if opts == nil {
		opts = &Options{}
	}
	if dem == nil {
		dem = swiftdemangle.New()
	}

	m := &Model{
		FilePath:   opts.FilePath,
		ArchName:   f.Arch().String(),
		Signatures: objctype.NewMethodSignatureRegistry(),
		Structs:    objctype.NewStructRegistry(),
		Cache:      objctype.NewParseCache(0),
		Demangler:  dem,
		opts:       opts,
	}

	if u := f.UUID(); u != nil {
		m.UUID = u.UUIDCmd.UUID.String()
	}
	if bv := f.BuildVersion(); bv != nil {
		m.Platform = bv.Platform.String()
		m.SDK = bv.Sdk.String()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.HasObjC() {
		var err error
		if m.Protocols, err = f.GetObjCProtocols(); err != nil {
			return nil, fmt.Errorf("protocol pass failed: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.Classes, err = f.GetObjCClasses(); err != nil {
			return nil, fmt.Errorf("class pass failed: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.Categories, err = f.GetObjCCategories(); err != nil {
			return nil, fmt.Errorf("category pass failed: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.HasSwift() {
		typs, err := f.GetSwiftTypes()
		if err != nil {
			log.WithError(err).Warn("swift type pass failed")
		} else {
			m.SwiftTypes = typs
		}
		demangleType := func(mangled string) string { return dem.DemangleType(mangled) }
		if !opts.Demangle {
			demangleType = nil
		}
		if err := f.CrossReferenceSwiftFields(m.Classes, demangleType); err != nil {
			log.WithError(err).Warn("swift field cross-reference failed")
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.index()
	m.applyFilters()
	m.sortModel()
	return m, nil
}

// index feeds the cross-indexes: protocol extended signatures outrank class
// and category observations, and every aggregate seen in any encoding is
// registered for forward-declaration resolution.
func (m *Model) index() {
	for i := range m.Protocols {
		p := &m.Protocols[i]
		methods := p.Methods()
		for j, meth := range methods {
			enc := meth.Types
			if j < len(p.ExtendedMethodTypes) && p.ExtendedMethodTypes[j] != "" {
				enc = p.ExtendedMethodTypes[j]
			}
			m.Signatures.Register(meth.Name, enc, objctype.SourceProtocol)
			m.registerAggregates(enc)
		}
	}
	for _, c := range m.Classes {
		for _, meth := range append(append([]objc.Method{}, c.InstanceMethods...), c.ClassMethods...) {
			m.Signatures.Register(meth.Name, meth.Types, objctype.SourceClass)
			m.registerAggregates(meth.Types)
		}
		for _, iv := range c.Ivars {
			if t, err := m.Cache.Type(iv.Type); err == nil {
				m.Structs.Register(t)
			}
		}
	}
	for i := range m.Categories {
		cat := &m.Categories[i]
		for _, meth := range append(append([]objc.Method{}, cat.InstanceMethods...), cat.ClassMethods...) {
			m.Signatures.Register(meth.Name, meth.Types, objctype.SourceCategory)
			m.registerAggregates(meth.Types)
		}
	}
}

func (m *Model) registerAggregates(encoding string) {
	if mt, err := m.Cache.MethodType(encoding); err == nil {
		m.Structs.RegisterMethodType(mt)
	}
}

func (m *Model) applyFilters() {
	if m.opts.ClassFilter != nil {
		var classes []*objc.Class
		for _, c := range m.Classes {
			if m.opts.ClassFilter.MatchString(c.Name) {
				classes = append(classes, c)
			}
		}
		m.Classes = classes

		var cats []objc.Category
		for _, cat := range m.Categories {
			if m.opts.ClassFilter.MatchString(cat.Class.Name) {
				cats = append(cats, cat)
			}
		}
		m.Categories = cats
	}

	if m.opts.MethodFilter != "" {
		match := func(ms []objc.Method) []objc.Method {
			var out []objc.Method
			for _, meth := range ms {
				if strings.Contains(meth.Name, m.opts.MethodFilter) {
					out = append(out, meth)
				}
			}
			return out
		}
		for _, c := range m.Classes {
			c.InstanceMethods = match(c.InstanceMethods)
			c.ClassMethods = match(c.ClassMethods)
		}
		for i := range m.Categories {
			m.Categories[i].InstanceMethods = match(m.Categories[i].InstanceMethods)
			m.Categories[i].ClassMethods = match(m.Categories[i].ClassMethods)
		}
	}
}

// sortModel fixes the traversal order so identical inputs produce identical
// bytes: protocols alphabetical, classes alphabetical or by inheritance
// depth, categories grouped by target class.
func (m *Model) sortModel() {
	sort.SliceStable(m.Protocols, func(i, j int) bool {
		return m.Protocols[i].Name < m.Protocols[j].Name
	})

	switch {
	case m.opts.SortByInheritance:
		depths := make(map[string]int)
		var depthOf func(c *objc.Class, seen map[string]bool) int
		depthOf = func(c *objc.Class, seen map[string]bool) int {
			if d, ok := depths[c.Name]; ok {
				return d
			}
			if seen[c.Name] {
				return 0
			}
			seen[c.Name] = true
			d := 0
			if c.SuperClass.Name != "" {
				d = 1
				for _, super := range m.Classes {
					if super.Name == c.SuperClass.Name {
						d = depthOf(super, seen) + 1
						break
					}
				}
			}
			depths[c.Name] = d
			return d
		}
		for _, c := range m.Classes {
			depthOf(c, map[string]bool{})
		}
		sort.SliceStable(m.Classes, func(i, j int) bool {
			di, dj := depths[m.Classes[i].Name], depths[m.Classes[j].Name]
			if di != dj {
				return di < dj
			}
			return m.Classes[i].Name < m.Classes[j].Name
		})
	case m.opts.SortByName:
		sort.SliceStable(m.Classes, func(i, j int) bool {
			return m.Classes[i].Name < m.Classes[j].Name
		})
	default:
		sort.SliceStable(m.Classes, func(i, j int) bool {
			return m.Classes[i].Name < m.Classes[j].Name
		})
	}

	sort.SliceStable(m.Categories, func(i, j int) bool {
		if m.Categories[i].Class.Name != m.Categories[j].Class.Name {
			return m.Categories[i].Class.Name < m.Categories[j].Class.Name
		}
		return m.Categories[i].Name < m.Categories[j].Name
	})

	if m.opts.SortMethods {
		for _, c := range m.Classes {
			c.SortLists()
		}
		for i := range m.Categories {
			m.Categories[i].SortLists()
		}
		for i := range m.Protocols {
			sortProtoMethods(&m.Protocols[i])
		}
	}

	sort.SliceStable(m.SwiftTypes, func(i, j int) bool {
		return m.SwiftTypes[i].FullName() < m.SwiftTypes[j].FullName()
	})
}

func sortProtoMethods(p *objc.Protocol) {
	byName := func(ms []objc.Method) {
		sort.SliceStable(ms, func(i, j int) bool { return ms[i].Name < ms[j].Name })
	}
	byName(p.InstanceMethods)
	byName(p.ClassMethods)
	byName(p.OptionalInstanceMethods)
	byName(p.OptionalClassMethods)
}

// DisplayName demangles a Swift-mangled class name when demangling is on.
func (m *Model) DisplayName(name string) string {
	if !m.opts.Demangle {
		return name
	}
	if strings.HasPrefix(name, "_Tt") {
		return m.Demangler.Demangle(name)
	}
	return name
}

// A Visitor consumes the extracted model. The default visitor emits text;
// the JSON and multi-file visitors implement the same capability set.
type Visitor interface {
	BeginFile(m *Model) error
	VisitProtocol(p *objc.Protocol) error
	VisitClass(c *objc.Class) error
	VisitCategory(c *objc.Category) error
	EndFile() error
}

// Walk drives a visitor over the model in its fixed order.
func Walk(m *Model, v Visitor) error {
	if err := v.BeginFile(m); err != nil {
		return err
	}
	if !m.opts.HideProtocols {
		for i := range m.Protocols {
			if err := v.VisitProtocol(&m.Protocols[i]); err != nil {
				return err
			}
		}
	}
	for _, c := range m.Classes {
		if err := v.VisitClass(c); err != nil {
			return err
		}
	}
	for i := range m.Categories {
		if err := v.VisitCategory(&m.Categories[i]); err != nil {
			return err
		}
	}
	return v.EndFile()
}
