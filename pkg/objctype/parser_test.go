package objctype

import (
	"errors"
	"testing"
)

func TestPrimitiveRoundTrips(t *testing.T) {
	encodings := []string{
		"c", "i", "s", "l", "q", "C", "I", "S", "L", "Q",
		"f", "d", "D", "B", "v", "#", ":", "?", "%", "*",
		"t", "T",
	}
	for _, enc := range encodings {
		typ, err := ParseType(enc)
		if err != nil {
			t.Fatalf("ParseType(%q) failed: %v", enc, err)
		}
		if got := typ.Encode(); got != enc {
			t.Errorf("round trip %q = %q", enc, got)
		}
	}
}

func TestCompositeRoundTrips(t *testing.T) {
	encodings := []string{
		"^i",
		"[10d]",
		"b8",
		"r^i",
		"{CGPoint=dd}",
		"{CGRect={CGPoint=dd}{CGSize=dd}}",
		"(u=iq)",
		"^^i",
		"[4^v]",
		"@",
		"@?",
		"^?",
		`@"NSString"`,
		`{Foo="a"i"b"d}`,
	}
	for _, enc := range encodings {
		typ, err := ParseType(enc)
		if err != nil {
			t.Fatalf("ParseType(%q) failed: %v", enc, err)
		}
		if got := typ.Encode(); got != enc {
			t.Errorf("round trip %q = %q", enc, got)
		}
	}
}

func TestParseClassWithProtocols(t *testing.T) {
	typ, err := ParseType(`@"NSObject<NSCopying,NSCoding>"`)
	if err != nil {
		t.Fatal(err)
	}
	if typ.Kind != Id || typ.Name != "NSObject" {
		t.Fatalf("parsed %+v; want NSObject id", typ)
	}
	if len(typ.Protocols) != 2 || typ.Protocols[0] != "NSCopying" || typ.Protocols[1] != "NSCoding" {
		t.Fatalf("protocols = %v", typ.Protocols)
	}
}

func TestParseBlockWithSignature(t *testing.T) {
	typ, err := ParseType("@?<v@?@>")
	if err != nil {
		t.Fatal(err)
	}
	if typ.Kind != Block || typ.BlockSig == nil {
		t.Fatalf("parsed %+v; want block with signature", typ)
	}
	if len(typ.BlockSig.Args) != 3 {
		t.Fatalf("block signature has %d positions; want 3", len(typ.BlockSig.Args))
	}
	if typ.BlockSig.Args[0].Type.Kind != Void {
		t.Errorf("block return = %v; want void", typ.BlockSig.Args[0].Type.Kind)
	}
}

func TestParseMethodType(t *testing.T) {
	mt, err := ParseMethodType("v24@0:8@16")
	if err != nil {
		t.Fatal(err)
	}
	if len(mt.Args) != 4 {
		t.Fatalf("got %d positions; want 4", len(mt.Args))
	}
	if mt.ReturnType().Kind != Void {
		t.Errorf("return = %v; want void", mt.ReturnType().Kind)
	}
	args := mt.Arguments()
	if len(args) != 1 || args[0].Type.Kind != Id {
		t.Fatalf("arguments = %+v; want one id", args)
	}
}

func TestSyntaxErrorCarriesRemaining(t *testing.T) {
	_, err := ParseType("{Foo=i")
	if err == nil {
		t.Fatal("expected syntax error")
	}
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("error = %T; want *SyntaxError", err)
	}
	_, err = ParseType("iZ")
	if !errors.As(err, &se) {
		t.Fatalf("trailing junk error = %T; want *SyntaxError", err)
	}
	if se.Remaining != "Z" {
		t.Errorf("remaining = %q; want Z", se.Remaining)
	}
}

func TestMemberNameAmbiguity(t *testing.T) {
	// "a" names the member; the @ has no class
	typ, err := ParseType(`{Foo="a"@"b"i}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(typ.Members) != 2 {
		t.Fatalf("got %d members; want 2", len(typ.Members))
	}
	if typ.Members[0].Name != "a" || typ.Members[0].Type.Kind != Id || typ.Members[0].Type.Name != "" {
		t.Errorf("member[0] = %+v", typ.Members[0])
	}
	if typ.Members[1].Name != "b" || typ.Members[1].Type.Kind != Int {
		t.Errorf("member[1] = %+v", typ.Members[1])
	}
}

func TestParseCache(t *testing.T) {
	cache := NewParseCache(16)
	a, err := cache.Type("^i")
	if err != nil {
		t.Fatal(err)
	}
	b, err := cache.Type("^i")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("repeated parse should hit the cache")
	}
}
