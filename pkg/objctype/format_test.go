package objctype

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, enc string) *Type {
	t.Helper()
	typ, err := ParseType(enc)
	if err != nil {
		t.Fatalf("ParseType(%q) failed: %v", enc, err)
	}
	return typ
}

func TestFormatBasics(t *testing.T) {
	tests := []struct {
		enc  string
		name string
		want string
	}{
		{"i", "x", "int x"},
		{"@", "obj", "id obj"},
		{`@"NSString"`, "s", "NSString * s"},
		{"^i", "p", "int *p"},
		{"[10i]", "a", "int a[10]"},
		{"b8", "bits", "unsigned int bits:8"},
		{"r^i", "p", "const int *p"},
		{"{CGPoint=dd}", "pt", "struct CGPoint pt"},
		{"(u=iq)", "u", "union u u"},
		{"^?", "fp", "void (*)(void) fp"},
	}
	for _, tt := range tests {
		got := FormatType(mustParse(t, tt.enc), tt.name, nil)
		if got != tt.want {
			t.Errorf("FormatType(%q, %q) = %q; want %q", tt.enc, tt.name, got, tt.want)
		}
	}
}

func TestFormatPointerToArray(t *testing.T) {
	got := FormatType(mustParse(t, "^[10i]"), "p", nil)
	if got != "int (*p)[10]" {
		t.Errorf("pointer to array = %q; want int (*p)[10]", got)
	}
}

func TestFormatIdWithProtocols(t *testing.T) {
	got := FormatType(mustParse(t, `@"NSObject<NSCopying,NSCoding>"`), "", nil)
	if got != "NSObject<NSCopying, NSCoding> *" {
		t.Errorf("got %q", got)
	}
}

func TestFormatBlockFallback(t *testing.T) {
	got := FormatType(mustParse(t, "@?"), "handler", nil)
	if got != "id /* block */ handler" {
		t.Errorf("bare block = %q; want marked id fallback", got)
	}
}

func TestFormatBlockWithSignature(t *testing.T) {
	got := FormatType(mustParse(t, "@?<v@?@>"), "handler", nil)
	if got != "void (^handler)(id)" {
		t.Errorf("block = %q; want void (^handler)(id)", got)
	}

	// arity zero renders (void)
	got = FormatType(mustParse(t, "@?<v@?>"), "done", nil)
	if got != "void (^done)(void)" {
		t.Errorf("block = %q; want void (^done)(void)", got)
	}
}

func TestFormatStructExpansion(t *testing.T) {
	opts := &Options{ExpandStructs: true}
	got := FormatType(mustParse(t, "{CGPoint=dd}"), "", opts)
	if !strings.Contains(got, "struct CGPoint {") || !strings.Contains(got, "double") {
		t.Errorf("expanded struct = %q", got)
	}
}

func TestFormatNameCallbacks(t *testing.T) {
	var classes, protos, structs []string
	opts := &Options{
		OnClassName:    func(n string) { classes = append(classes, n) },
		OnProtocolName: func(n string) { protos = append(protos, n) },
		OnStructName:   func(n string) { structs = append(structs, n) },
	}
	FormatType(mustParse(t, `@"NSView<NSCopying>"`), "", opts)
	FormatType(mustParse(t, "{CGRect=}"), "", opts)

	if len(classes) != 1 || classes[0] != "NSView" {
		t.Errorf("classes = %v", classes)
	}
	if len(protos) != 1 || protos[0] != "NSCopying" {
		t.Errorf("protos = %v", protos)
	}
	if len(structs) != 1 || structs[0] != "CGRect" {
		t.Errorf("structs = %v", structs)
	}
}

func TestFormatMethodInterleaving(t *testing.T) {
	got := FormatMethod(false, "setObject:forKey:", "v40@0:8@16@24", nil, nil, nil)
	want := "- (void)setObject:(id)arg1 forKey:(id)arg2;"
	if got != want {
		t.Errorf("FormatMethod = %q; want %q", got, want)
	}

	got = FormatMethod(true, "alloc", "@16@0:8", nil, nil, nil)
	if got != "+ (id)alloc;" {
		t.Errorf("FormatMethod = %q; want + (id)alloc;", got)
	}
}

func TestFormatPropertyAttributes(t *testing.T) {
	got := FormatProperty("name", `T@"NSString",C,N,V_name`, nil, nil)
	if got != `@property (copy, nonatomic) NSString * name;` {
		t.Errorf("FormatProperty = %q", got)
	}

	got = FormatProperty("count", "Tq,R,N", nil, nil)
	if !strings.Contains(got, "readonly") || !strings.Contains(got, "long long count") {
		t.Errorf("FormatProperty = %q", got)
	}
}

func TestSwiftStylePrimitives(t *testing.T) {
	opts := &Options{Style: StyleSwift}
	tests := []struct {
		enc  string
		want string
	}{
		{"B", "Bool"},
		{":", "Selector"},
		{"@", "Any"},
		{"#", "AnyClass"},
		{"d", "Double"},
	}
	for _, tt := range tests {
		got := FormatType(mustParse(t, tt.enc), "", opts)
		if got != tt.want {
			t.Errorf("swift style %q = %q; want %q", tt.enc, got, tt.want)
		}
	}

	got := FormatType(mustParse(t, `@"NSString"`), "", opts)
	if got != "String" {
		t.Errorf("swift NSString = %q; want String", got)
	}
}

func TestMapSwiftTypeToObjC(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Swift.AnyObject", "id"},
		{"String?", "NSString *"},
		{"[Int]", "NSArray *"},
		{"[String: Int]", "NSDictionary *"},
		{"Set<Int>", "NSSet *"},
		{"Array<Int>", "NSArray *"},
		{"MyClass?", "MyClass"},
	}
	for _, tt := range tests {
		if got := MapSwiftTypeToObjC(tt.in); got != tt.want {
			t.Errorf("MapSwiftTypeToObjC(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
