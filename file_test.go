package macho

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/appsworld/go-classdump/types"
)

func TestNewFileParsesHeaderAndSegments(t *testing.T) {
	f, err := NewFile(buildObjCFixture(t, false))
	if err != nil {
		t.Fatal(err)
	}

	if f.Magic != types.Magic64 {
		t.Errorf("magic = %s; want 64-bit", f.Magic)
	}
	if f.CPU != types.CPUAmd64 {
		t.Errorf("cpu = %s; want x86_64", f.CPU)
	}
	if f.Type != types.MH_EXECUTE {
		t.Errorf("file type = %s; want Executable", f.Type)
	}

	seg := f.Segment("__DATA")
	if seg == nil {
		t.Fatal("missing __DATA segment")
	}
	if seg.Addr != fixBase || seg.Filesz != fixFileSize {
		t.Errorf("segment bounds = %#x/%#x", seg.Addr, seg.Filesz)
	}

	sec := f.Section("__DATA", "__objc_classlist")
	if sec == nil {
		t.Fatal("missing __objc_classlist section")
	}
	if sec.Addr != fixBase+fixClassListOff || sec.Size != 8 {
		t.Errorf("section bounds = %#x/%#x", sec.Addr, sec.Size)
	}
}

func TestAddressTranslation(t *testing.T) {
	f, err := NewFile(buildObjCFixture(t, false))
	if err != nil {
		t.Fatal(err)
	}

	off, err := f.GetOffset(fixBase + fixFooNameOff)
	if err != nil || off != fixFooNameOff {
		t.Fatalf("GetOffset = %#x, %v; want %#x", off, err, fixFooNameOff)
	}
	addr, err := f.GetVMAddress(fixFooNameOff)
	if err != nil || addr != fixBase+fixFooNameOff {
		t.Fatalf("GetVMAddress = %#x, %v", addr, err)
	}
	s, err := f.GetCString(fixBase + fixFooNameOff)
	if err != nil || s != "Foo" {
		t.Fatalf("GetCString = %q, %v; want Foo", s, err)
	}
}

func TestMalformedLoadCommandSizeIsFatal(t *testing.T) {
	buf := buildObjCFixture(t, false)
	// corrupt the segment command's declared size to a misaligned value
	binary.LittleEndian.PutUint32(buf[32+4:], 9)

	_, err := NewFile(buf)
	if err == nil {
		t.Fatal("expected error for misaligned load command size")
	}
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %T; want *FormatError", err)
	}
}

func TestLoadCommandSizeTooSmallIsFatal(t *testing.T) {
	buf := buildObjCFixture(t, false)
	binary.LittleEndian.PutUint32(buf[32+4:], 4)
	if _, err := NewFile(buf); err == nil {
		t.Fatal("expected error for undersized load command")
	}
}

func TestZerofillSectionReadsZeroes(t *testing.T) {
	buf := buildObjCFixture(t, false)
	f, err := NewFile(buf)
	if err != nil {
		t.Fatal(err)
	}

	sec := f.Section("__DATA", "__objc_classlist")
	sec.Flags = types.S_ZEROFILL
	dat, err := sec.Data()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dat, make([]byte, 8)) {
		t.Fatalf("zerofill section returned %x; want zeroes", dat)
	}
}

func TestUnknownLoadCommandRetained(t *testing.T) {
	buf := buildObjCFixture(t, false)

	// append a bogus 16-byte command with an unused id
	extra := make([]byte, 16)
	binary.LittleEndian.PutUint32(extra, 0x7f)
	binary.LittleEndian.PutUint32(extra[4:], 16)

	sizeCmds := binary.LittleEndian.Uint32(buf[20:])
	copy(buf[32+int(sizeCmds):], extra)
	binary.LittleEndian.PutUint32(buf[16:], 2)           // ncmds
	binary.LittleEndian.PutUint32(buf[20:], sizeCmds+16) // sizeofcmds

	f, err := NewFile(buf)
	if err != nil {
		t.Fatal(err)
	}
	last := f.Loads[len(f.Loads)-1]
	if _, ok := last.(LoadCmdBytes); !ok {
		t.Fatalf("unknown command parsed as %T; want LoadCmdBytes", last)
	}
}
