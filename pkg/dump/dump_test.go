package dump

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appsworld/go-classdump/internal/swiftdemangle"
	"github.com/appsworld/go-classdump/pkg/objctype"
	"github.com/appsworld/go-classdump/types/objc"
)

func testModel(opts *Options) *Model {
	if opts == nil {
		opts = &Options{}
	}
	return &Model{
		ArchName:   "x86_64",
		Signatures: objctype.NewMethodSignatureRegistry(),
		Structs:    objctype.NewStructRegistry(),
		Cache:      objctype.NewParseCache(0),
		Demangler:  swiftdemangle.New(),
		opts:       opts,
	}
}

func fooClass() *objc.Class {
	return &objc.Class{
		Name:       "Foo",
		SuperClass: objc.EntityRef{Name: "NSObject", Address: 0x1000},
		InstanceMethods: []objc.Method{
			{Name: "bar", Types: "v16@0:8", ImpVMAddr: 0x4000},
		},
	}
}

func TestTextVisitorSimpleClass(t *testing.T) {
	m := testModel(&Options{SuppressBanner: true})
	m.Classes = []*objc.Class{fooClass()}

	var buf bytes.Buffer
	require.NoError(t, Walk(m, NewTextVisitor(&buf)))

	want := "@interface Foo : NSObject\n- (void)bar;\n@end\n\n"
	assert.Equal(t, want, buf.String())
}

func TestTextVisitorExternalSuperclass(t *testing.T) {
	m := testModel(&Options{SuppressBanner: true})
	m.Classes = []*objc.Class{{
		Name:       "Bar",
		SuperClass: objc.EntityRef{Name: "NSArray"}, // bound externally, address 0
	}}

	var buf bytes.Buffer
	require.NoError(t, Walk(m, NewTextVisitor(&buf)))
	assert.Contains(t, buf.String(), "@interface Bar : NSArray\n")
}

func TestTextVisitorBanner(t *testing.T) {
	m := testModel(&Options{ToolName: "classdump", ToolVersion: "1.0.0"})
	m.UUID = "AABBCCDD-0000-0000-0000-000000000000"
	m.Classes = []*objc.Class{fooClass()}

	var buf bytes.Buffer
	require.NoError(t, Walk(m, NewTextVisitor(&buf)))
	out := buf.String()
	assert.Contains(t, out, "Generated by classdump 1.0.0")
	assert.Contains(t, out, m.UUID)
}

func TestTextVisitorDeterminism(t *testing.T) {
	build := func() string {
		m := testModel(&Options{SuppressBanner: true})
		m.Classes = []*objc.Class{
			fooClass(),
			{Name: "Alpha", SuperClass: objc.EntityRef{Name: "NSObject"}},
		}
		m.Protocols = []objc.Protocol{{Name: "Zed"}, {Name: "Able"}}
		m.sortModel()

		var buf bytes.Buffer
		if err := Walk(m, NewTextVisitor(&buf)); err != nil {
			t.Fatal(err)
		}
		return buf.String()
	}

	first := build()
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, build(), "output must be byte-identical across runs")
	}
	// protocols come before classes, alphabetically
	assert.Less(t, strings.Index(first, "@protocol Able"), strings.Index(first, "@protocol Zed"))
	assert.Less(t, strings.Index(first, "@protocol Zed"), strings.Index(first, "@interface Alpha"))
}

func TestBlockSignatureUpliftThroughProtocol(t *testing.T) {
	m := testModel(&Options{SuppressBanner: true})

	// protocol P declares fetchWithCompletion: with a full block signature;
	// class C records only the placeholder
	m.Protocols = []objc.Protocol{{
		Name: "P",
		InstanceMethods: []objc.Method{
			{Name: "fetchWithCompletion:", Types: "v24@0:8@?16"},
		},
		ExtendedMethodTypes: []string{"v24@0:8@?<v@?@>16"},
	}}
	m.Classes = []*objc.Class{{
		Name:       "C",
		SuperClass: objc.EntityRef{Name: "NSObject"},
		Protocols:  []objc.Protocol{{Name: "P"}},
		InstanceMethods: []objc.Method{
			{Name: "fetchWithCompletion:", Types: "v24@0:8@?16"},
		},
	}}
	m.index()

	var buf bytes.Buffer
	require.NoError(t, Walk(m, NewTextVisitor(&buf)))

	out := buf.String()
	assert.Contains(t, out, "void (^)(id)", "class emission must borrow the protocol's block signature")
	assert.NotContains(t, strings.Split(out, "@interface C")[1], "id /* block */")
}

func TestIvarEmission(t *testing.T) {
	m := testModel(&Options{SuppressBanner: true, ShowIvarOffsets: true})
	m.Classes = []*objc.Class{{
		Name:       "Holder",
		SuperClass: objc.EntityRef{Name: "NSObject"},
		Ivars: []objc.Ivar{
			{Name: "_count", Type: "q", Offset: 0x8},
			{Name: "_name", Type: `@"NSString"`, Offset: 0x10},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, Walk(m, NewTextVisitor(&buf)))
	out := buf.String()
	assert.Contains(t, out, "long long _count;")
	assert.Contains(t, out, "// +0x8")
	assert.Contains(t, out, "NSString * _name;")
}

func TestSwiftIvarTypeWins(t *testing.T) {
	m := testModel(&Options{SuppressBanner: true})
	m.Classes = []*objc.Class{{
		Name:       "SwiftHolder",
		SuperClass: objc.EntityRef{Name: "NSObject"},
		Ivars: []objc.Ivar{
			{Name: "items", Type: "q", SwiftType: "[Int]"},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, Walk(m, NewTextVisitor(&buf)))
	assert.Contains(t, buf.String(), "NSArray *items;")
}

func TestMethodAddresses(t *testing.T) {
	m := testModel(&Options{SuppressBanner: true, ShowImpAddresses: true})
	m.Classes = []*objc.Class{fooClass()}

	var buf bytes.Buffer
	require.NoError(t, Walk(m, NewTextVisitor(&buf)))
	assert.Contains(t, buf.String(), "- (void)bar;\t// 0x4000")
}

func TestCategoryEmission(t *testing.T) {
	m := testModel(&Options{SuppressBanner: true})
	m.Categories = []objc.Category{{
		Name:  "Extras",
		Class: objc.EntityRef{Name: "NSString"},
		InstanceMethods: []objc.Method{
			{Name: "shouted", Types: "@16@0:8"},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, Walk(m, NewTextVisitor(&buf)))
	out := buf.String()
	assert.Contains(t, out, "@interface NSString (Extras)\n")
	assert.Contains(t, out, "- (id)shouted;")
}

func TestProtocolEmission(t *testing.T) {
	m := testModel(&Options{SuppressBanner: true})
	m.Protocols = []objc.Protocol{{
		Name:    "Renderer",
		Parents: []objc.Protocol{{Name: "NSObject"}},
		InstanceMethods: []objc.Method{
			{Name: "render", Types: "v16@0:8"},
		},
		OptionalInstanceMethods: []objc.Method{
			{Name: "prepare", Types: "v16@0:8"},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, Walk(m, NewTextVisitor(&buf)))
	out := buf.String()
	assert.Contains(t, out, "@protocol Renderer <NSObject>\n")
	assert.Contains(t, out, "- (void)render;")
	assert.Contains(t, out, "@optional\n- (void)prepare;")
}

func TestHideProtocolsOption(t *testing.T) {
	m := testModel(&Options{SuppressBanner: true, HideProtocols: true})
	m.Protocols = []objc.Protocol{{Name: "Hidden"}}
	m.Classes = []*objc.Class{fooClass()}

	var buf bytes.Buffer
	require.NoError(t, Walk(m, NewTextVisitor(&buf)))
	assert.NotContains(t, buf.String(), "@protocol Hidden")
}

func TestSwiftClassNameDemangled(t *testing.T) {
	m := testModel(&Options{SuppressBanner: true, Demangle: true})
	m.Classes = []*objc.Class{{
		Name:          "_TtC8MyModule7MyClass",
		SuperClass:    objc.EntityRef{Name: "NSObject"},
		IsSwiftStable: true,
	}}

	var buf bytes.Buffer
	require.NoError(t, Walk(m, NewTextVisitor(&buf)))
	assert.Contains(t, buf.String(), "@interface MyModule.MyClass : NSObject")
}

func TestJSONVisitor(t *testing.T) {
	m := testModel(&Options{})
	m.Classes = []*objc.Class{fooClass()}

	var buf bytes.Buffer
	require.NoError(t, Walk(m, NewJSONVisitor(&buf)))
	out := buf.String()
	assert.Contains(t, out, `"name": "Foo"`)
	assert.Contains(t, out, `"superclass": "NSObject"`)
	assert.Contains(t, out, `"selector": "bar"`)
}
