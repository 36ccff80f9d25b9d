package macho

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestResolveRelative32(t *testing.T) {
	f, err := NewFile(buildObjCFixture(t, false))
	if err != nil {
		t.Fatal(err)
	}

	off, err := f.resolveRelative32(0x100, 0x20)
	if err != nil || off != 0x120 {
		t.Fatalf("resolveRelative32 = %#x, %v; want 0x120", off, err)
	}
	off, err = f.resolveRelative32(0x100, -0x40)
	if err != nil || off != 0xc0 {
		t.Fatalf("resolveRelative32 = %#x, %v; want 0xc0", off, err)
	}

	// displacements escaping the file are unresolved, never followed
	if _, err := f.resolveRelative32(0x100, 0x7fffff00); !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("out-of-file displacement = %v; want ErrUnresolvedReference", err)
	}
	if _, err := f.resolveRelative32(0x10, -0x100); !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("negative escape = %v; want ErrUnresolvedReference", err)
	}
	if _, err := f.resolveRelative32(0x100, 0); !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("null displacement = %v; want ErrUnresolvedReference", err)
	}
}

func TestReadMangledNameDirectSymbolicRef(t *testing.T) {
	buf := buildObjCFixture(t, false)

	const (
		mangledOff = 0x780
		descOff    = 0x7a0
		nameOff    = 0x7c0
	)

	// symbolic reference: control byte 0x01 + 32-bit displacement to the
	// struct context descriptor
	buf[mangledOff] = 0x01
	binary.LittleEndian.PutUint32(buf[mangledOff+1:], uint32(int32(descOff-(mangledOff+1))))
	buf[mangledOff+5] = 0x00

	// TargetContextDescriptor: kind 17 (struct), name at +8 pointing to string
	binary.LittleEndian.PutUint32(buf[descOff:], 17)
	binary.LittleEndian.PutUint32(buf[descOff+8:], uint32(int32(nameOff-(descOff+8))))
	copy(buf[nameOff:], "Widget\x00")

	f, err := NewFile(buf)
	if err != nil {
		t.Fatal(err)
	}

	name, err := f.readMangledName(mangledOff)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Widget" {
		t.Fatalf("readMangledName = %q; want Widget", name)
	}
}

func TestReadMangledNamePlainString(t *testing.T) {
	buf := buildObjCFixture(t, false)
	copy(buf[0x780:], "SiSg\x00")

	f, err := NewFile(buf)
	if err != nil {
		t.Fatal(err)
	}
	name, err := f.readMangledName(0x780)
	if err != nil || name != "SiSg" {
		t.Fatalf("readMangledName = %q, %v; want SiSg", name, err)
	}
}

func TestHasSwift(t *testing.T) {
	f, err := NewFile(buildObjCFixture(t, false))
	if err != nil {
		t.Fatal(err)
	}
	if f.HasSwift() {
		t.Error("fixture has no __swift5_* sections")
	}
}
