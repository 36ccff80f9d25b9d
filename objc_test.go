package macho

import (
	"encoding/binary"
	"testing"
)

func TestGetObjCClasses(t *testing.T) {
	f, err := NewFile(buildObjCFixture(t, false))
	if err != nil {
		t.Fatal(err)
	}
	if !f.HasObjC() {
		t.Fatal("fixture should report ObjC")
	}

	classes, err := f.GetObjCClasses()
	if err != nil {
		t.Fatal(err)
	}
	if len(classes) != 1 {
		t.Fatalf("got %d classes; want 1", len(classes))
	}

	foo := classes[0]
	if foo.Name != "Foo" {
		t.Errorf("class name = %q; want Foo", foo.Name)
	}
	if foo.SuperClass.Name != "NSObject" {
		t.Errorf("superclass = %q; want NSObject", foo.SuperClass.Name)
	}
	if foo.SuperClass.IsExternal() {
		t.Error("fixture superclass is local, not external")
	}
	if len(foo.InstanceMethods) != 1 {
		t.Fatalf("got %d methods; want 1", len(foo.InstanceMethods))
	}
	m := foo.InstanceMethods[0]
	if m.Name != "bar" || m.Types != "v16@0:8" {
		t.Errorf("method = %q %q; want bar v16@0:8", m.Name, m.Types)
	}
	if m.ImpVMAddr != fixBase+fixImpOff {
		t.Errorf("imp = %#x; want %#x", m.ImpVMAddr, uint64(fixBase+fixImpOff))
	}
}

func TestSmallMethodList(t *testing.T) {
	f, err := NewFile(buildObjCFixture(t, true))
	if err != nil {
		t.Fatal(err)
	}

	classes, err := f.GetObjCClasses()
	if err != nil {
		t.Fatal(err)
	}
	if len(classes) != 1 {
		t.Fatalf("got %d classes; want 1", len(classes))
	}

	if len(classes[0].InstanceMethods) != 1 {
		t.Fatalf("got %d methods; want 1", len(classes[0].InstanceMethods))
	}
	m := classes[0].InstanceMethods[0]
	if m.Name != "bar" {
		t.Errorf("selector = %q; want bar (resolved through selref)", m.Name)
	}
	if m.Types != "v16@0:8" {
		t.Errorf("types = %q; want v16@0:8", m.Types)
	}
	if m.ImpVMAddr != fixBase+fixImpOff {
		t.Errorf("imp = %#x; want %#x", m.ImpVMAddr, uint64(fixBase+fixImpOff))
	}
}

func TestClassCaching(t *testing.T) {
	f, err := NewFile(buildObjCFixture(t, false))
	if err != nil {
		t.Fatal(err)
	}

	a, err := f.GetObjCClass(fixBase + fixFooClassOff)
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.GetObjCClass(fixBase + fixFooClassOff)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("repeated lookups should return the cached class")
	}
}

func TestCorruptMethodCountSkipsClass(t *testing.T) {
	buf := buildObjCFixture(t, false)
	// implausible method count trips the sanity check
	binary.LittleEndian.PutUint32(buf[fixMethListOff+4:], 0x7fffffff)

	f, err := NewFile(buf)
	if err != nil {
		t.Fatal(err)
	}
	classes, err := f.GetObjCClasses()
	if err != nil {
		t.Fatal(err)
	}
	// the class is skipped with a warning; the walk itself succeeds
	if len(classes) != 0 {
		t.Fatalf("got %d classes; want 0 (corrupt record skipped)", len(classes))
	}
}

func TestGetObjCImageInfo(t *testing.T) {
	f, err := NewFile(buildObjCFixture(t, false))
	if err != nil {
		t.Fatal(err)
	}
	info, err := f.GetObjCImageInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.HasSwift() {
		t.Error("fixture has no Swift metadata")
	}
}

func TestExternalSuperclassViaChainedFixups(t *testing.T) {
	f, err := NewFile(buildFixupsFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	if !f.HasFixups() {
		t.Fatal("fixture should carry chained fixups")
	}

	classes, err := f.GetObjCClasses()
	if err != nil {
		t.Fatal(err)
	}
	if len(classes) != 1 {
		t.Fatalf("got %d classes; want 1", len(classes))
	}

	super := classes[0].SuperClass
	if super.Name != "NSArray" {
		t.Errorf("superclass = %q; want NSArray (stripped bind name)", super.Name)
	}
	if !super.IsExternal() {
		t.Error("externally bound superclass must carry address zero")
	}

	name, err := f.GetBindName(uint64(1) << 63)
	if err != nil || name != "_OBJC_CLASS_$_NSArray" {
		t.Errorf("GetBindName = %q, %v", name, err)
	}
}
