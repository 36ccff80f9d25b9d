package objctype

import (
	"testing"
)

func TestBlockSignatureUplift(t *testing.T) {
	reg := NewMethodSignatureRegistry()

	// the class's own list records a bare block; the protocol carries the
	// full signature for the same selector
	reg.Register("fetchWithCompletion:", "v24@0:8@?16", SourceClass)
	reg.Register("fetchWithCompletion:", "v24@0:8@?<v@?@>16", SourceProtocol)

	got := FormatMethod(false, "fetchWithCompletion:", "v24@0:8@?16", nil, reg, nil)
	want := "- (void)fetchWithCompletion:(void (^)(id))arg1;"
	if got != want {
		t.Errorf("FormatMethod = %q; want %q", got, want)
	}
}

func TestBlockSignatureProtocolOutranksCategory(t *testing.T) {
	reg := NewMethodSignatureRegistry()
	reg.Register("run:", "v24@0:8@?<v@?i>16", SourceCategory)
	reg.Register("run:", "v24@0:8@?<v@?@>16", SourceProtocol)

	sig := reg.BlockSignature("run:", 0)
	if sig == nil || sig.BlockSig == nil {
		t.Fatal("no signature found")
	}
	// the protocol's (id) parameter wins over the category's (int)
	if sig.BlockSig.Args[2].Type.Kind != Id {
		t.Errorf("argument kind = %v; want Id from protocol source", sig.BlockSig.Args[2].Type.Kind)
	}
}

func TestBlockSignatureMissing(t *testing.T) {
	reg := NewMethodSignatureRegistry()
	reg.Register("plain:", "v24@0:8i16", SourceClass)

	if sig := reg.BlockSignature("plain:", 0); sig != nil {
		t.Errorf("BlockSignature = %+v; want nil for non-block argument", sig)
	}
	if sig := reg.BlockSignature("unknown:", 0); sig != nil {
		t.Errorf("BlockSignature = %+v; want nil for unknown selector", sig)
	}
}

func TestRegistryMerge(t *testing.T) {
	a := NewMethodSignatureRegistry()
	b := NewMethodSignatureRegistry()
	b.Register("go:", "v24@0:8@?<v@?@>16", SourceProtocol)
	a.Merge(b)

	if a.BlockSignature("go:", 0) == nil {
		t.Error("merged registry lost the protocol signature")
	}
}

func TestStructRegistryRichestWins(t *testing.T) {
	reg := NewStructRegistry()

	full := mustParse(t, "{CGPoint=dd}")
	fwd := mustParse(t, "{CGPoint=}")
	reg.Register(fwd)
	reg.Register(full)
	reg.Register(fwd)

	got, ok := reg.Lookup("CGPoint")
	if !ok || len(got.Members) != 2 {
		t.Fatalf("Lookup = %+v, %t; want the two-member definition", got, ok)
	}
}

func TestStructRegistryResolve(t *testing.T) {
	reg := NewStructRegistry()
	reg.Register(mustParse(t, "{CGPoint=dd}"))

	fwd := &Type{Kind: Struct, Name: "CGPoint"}
	resolved := reg.Resolve(fwd)
	if len(resolved.Members) != 2 {
		t.Fatalf("Resolve = %+v; want full body", resolved)
	}

	// unknown names resolve to themselves
	other := &Type{Kind: Struct, Name: "Mystery"}
	if got := reg.Resolve(other); got != other {
		t.Error("unknown struct should resolve to itself")
	}
}

func TestStructRegistryCycle(t *testing.T) {
	reg := NewStructRegistry()
	// struct Node { struct Node *next; }
	node := mustParse(t, "{Node=^{Node}}")
	reg.Register(node)

	fwd := &Type{Kind: Struct, Name: "Node"}
	resolved := reg.Resolve(fwd)
	if resolved == nil || resolved.Name != "Node" {
		t.Fatal("cycle resolution failed")
	}
}

func TestPlatformTypedef(t *testing.T) {
	if got := PlatformTypedef("CGFloat"); got != "double" {
		t.Errorf("CGFloat = %q; want double", got)
	}
	if got := PlatformTypedef("NSInteger"); got != "long" {
		t.Errorf("NSInteger = %q; want long", got)
	}
	if got := PlatformTypedef("FooBar"); got != "FooBar" {
		t.Errorf("unknown typedef = %q; want unchanged", got)
	}
}
