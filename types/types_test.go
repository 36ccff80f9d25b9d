package types

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestDataReaderScalars(t *testing.T) {
	r := NewDataReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	if v, err := r.ReadU16(binary.LittleEndian); err != nil || v != 0x0201 {
		t.Fatalf("ReadU16 = %#x, %v; want 0x201", v, err)
	}
	if v, err := r.ReadU16(binary.BigEndian); err != nil || v != 0x0304 {
		t.Fatalf("ReadU16 BE = %#x, %v; want 0x304", v, err)
	}
	if v, err := r.ReadU32(binary.LittleEndian); err != nil || v != 0x08070605 {
		t.Fatalf("ReadU32 = %#x, %v; want 0x08070605", v, err)
	}
	if _, err := r.ReadU8(); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("read past end = %v; want ErrOutOfBounds", err)
	}
}

func TestDataReaderSeekAndPeek(t *testing.T) {
	r := NewDataReader([]byte{0xAA, 0xBB})
	if err := r.Seek(1); err != nil {
		t.Fatal(err)
	}
	if b, err := r.PeekU8(); err != nil || b != 0xBB {
		t.Fatalf("PeekU8 = %#x, %v; want 0xBB", b, err)
	}
	if r.Offset() != 1 {
		t.Fatalf("peek moved cursor to %d", r.Offset())
	}
	if err := r.Seek(3); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("seek past end = %v; want ErrOutOfBounds", err)
	}
}

func TestDataReaderCString(t *testing.T) {
	r := NewDataReader([]byte("hello\x00world"))
	s, err := r.ReadCString()
	if err != nil || s != "hello" {
		t.Fatalf("ReadCString = %q, %v; want hello", s, err)
	}
	if _, err := r.ReadCString(); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("unterminated string = %v; want ErrOutOfBounds", err)
	}
}

func TestULEB128(t *testing.T) {
	tests := []struct {
		in   []byte
		want uint64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
	}
	for _, tt := range tests {
		r := NewDataReader(tt.in)
		got, err := r.ReadULEB128()
		if err != nil || got != tt.want {
			t.Fatalf("ReadULEB128(%v) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestSLEB128(t *testing.T) {
	tests := []struct {
		in   []byte
		want int64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0xff, 0x00}, 127},
		{[]byte{0x80, 0x7f}, -128},
	}
	for _, tt := range tests {
		r := NewDataReader(tt.in)
		got, err := r.ReadSLEB128()
		if err != nil || got != tt.want {
			t.Fatalf("ReadSLEB128(%v) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestULEB128Overflow(t *testing.T) {
	in := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}
	r := NewDataReader(in)
	if _, err := r.ReadULEB128(); !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("overflowing uleb = %v; want ErrInvalidEncoding", err)
	}
}

func TestVMAddrConverter(t *testing.T) {
	var vma VMAddrConverter
	vma.AddSegment(0x100000000, 0x4000, 0)
	vma.AddSegment(0x100004000, 0x4000, 0x4000)

	off, err := vma.GetOffset(0x100004010)
	if err != nil || off != 0x4010 {
		t.Fatalf("GetOffset = %#x, %v; want 0x4010", off, err)
	}
	addr, err := vma.GetVMAddress(0x10)
	if err != nil || addr != 0x100000010 {
		t.Fatalf("GetVMAddress = %#x, %v; want 0x100000010", addr, err)
	}
	if _, err := vma.GetOffset(0x200000000); !errors.Is(err, ErrUnmappedAddress) {
		t.Fatalf("unmapped lookup = %v; want ErrUnmappedAddress", err)
	}
}

func TestVMAddrConverterStripsPAC(t *testing.T) {
	var vma VMAddrConverter
	vma.AddSegment(0x100000000, 0x4000, 0)

	tagged := uint64(0x8011_0001_0000_0100)
	off, err := vma.GetOffset(tagged)
	if err != nil || off != 0x100 {
		t.Fatalf("GetOffset(tagged) = %#x, %v; want 0x100", off, err)
	}
}

func TestArchBestNames(t *testing.T) {
	a, ok := ArchFromName("arm64e")
	if !ok {
		t.Fatal("arm64e not found")
	}
	if !a.Uses64BitABI() {
		t.Error("arm64e should use the 64-bit ABI")
	}
	if a.String() != "arm64e" {
		t.Errorf("String = %q; want arm64e", a.String())
	}

	// capability bits are masked in comparisons
	tagged := Arch{CPU: CPUArm64, SubCPU: CPUSubtypeArm64E | 0x80000000}
	if !a.Matches(tagged) {
		t.Error("masked comparison should ignore capability bits")
	}
}
