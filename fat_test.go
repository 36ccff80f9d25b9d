package macho

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/appsworld/go-classdump/types"
)

// buildFat assembles a universal file whose slices are stub thin headers.
func buildFat(t *testing.T, arches []types.Arch) []byte {
	t.Helper()

	const sliceSize = 0x40
	var buf bytes.Buffer

	hdr := types.FatHeader{Magic: types.MagicFat, Count: uint32(len(arches))}
	if err := binary.Write(&buf, binary.BigEndian, hdr); err != nil {
		t.Fatal(err)
	}

	offset := uint32(0x1000)
	for _, a := range arches {
		fa := types.FatArchHeader{
			CPU:    a.CPU,
			SubCPU: a.SubCPU,
			Offset: offset,
			Size:   sliceSize,
			Align:  12,
		}
		if err := binary.Write(&buf, binary.BigEndian, fa); err != nil {
			t.Fatal(err)
		}
		offset += 0x1000
	}

	out := make([]byte, int(offset))
	copy(out, buf.Bytes())
	for i, a := range arches {
		sliceOff := 0x1000 + i*0x1000
		binary.LittleEndian.PutUint32(out[sliceOff:], uint32(types.Magic64))
		binary.LittleEndian.PutUint32(out[sliceOff+4:], uint32(a.CPU))
		binary.LittleEndian.PutUint32(out[sliceOff+8:], uint32(a.SubCPU))
	}
	return out
}

func mustArch(t *testing.T, name string) types.Arch {
	t.Helper()
	a, ok := types.ArchFromName(name)
	if !ok {
		t.Fatalf("unknown arch %s", name)
	}
	return a
}

func TestFatEnumeration(t *testing.T) {
	data := buildFat(t, []types.Arch{mustArch(t, "armv7"), mustArch(t, "armv7s")})
	bin, err := NewBinary(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bin.IsFat() {
		t.Fatal("expected fat binary")
	}
	names := bin.ArchNames()
	if len(names) != 2 || names[0] != "armv7" || names[1] != "armv7s" {
		t.Fatalf("ArchNames = %v; want [armv7 armv7s]", names)
	}
}

func TestFatBestMatchExact(t *testing.T) {
	data := buildFat(t, []types.Arch{mustArch(t, "armv7"), mustArch(t, "armv7s")})
	bin, err := NewBinary(data)
	if err != nil {
		t.Fatal(err)
	}

	si, err := bin.BestMatch(mustArch(t, "armv7s"))
	if err != nil {
		t.Fatal(err)
	}
	if si.Arch.String() != "armv7s" {
		t.Fatalf("BestMatch = %s; want armv7s", si.Arch)
	}
}

func TestFatBestMatch64BitABIFallback(t *testing.T) {
	data := buildFat(t, []types.Arch{mustArch(t, "armv7"), mustArch(t, "arm64")})
	bin, err := NewBinary(data)
	if err != nil {
		t.Fatal(err)
	}

	// arm64e is absent; the arm64 slice shares the requested 64-bit family
	si, err := bin.BestMatch(mustArch(t, "arm64e"))
	if err != nil {
		t.Fatal(err)
	}
	if si.Arch.String() != "arm64" {
		t.Fatalf("BestMatch = %s; want arm64", si.Arch)
	}
}

func TestFatBestMatchFamilyFallback(t *testing.T) {
	data := buildFat(t, []types.Arch{mustArch(t, "armv7")})
	bin, err := NewBinary(data)
	if err != nil {
		t.Fatal(err)
	}

	si, err := bin.BestMatch(mustArch(t, "arm64"))
	if err != nil {
		t.Fatal(err)
	}
	if si.Arch.String() != "armv7" {
		t.Fatalf("BestMatch = %s; want armv7", si.Arch)
	}
}

func TestFatBestMatchNotFound(t *testing.T) {
	data := buildFat(t, []types.Arch{mustArch(t, "armv7")})
	bin, err := NewBinary(data)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := bin.BestMatch(mustArch(t, "x86_64")); !errors.Is(err, ErrArchitectureNotFound) {
		t.Fatalf("BestMatch = %v; want ErrArchitectureNotFound", err)
	}
}

func TestThinBinary(t *testing.T) {
	data := make([]byte, 0x20)
	binary.LittleEndian.PutUint32(data, uint32(types.Magic64))
	binary.LittleEndian.PutUint32(data[4:], uint32(types.CPUAmd64))
	binary.LittleEndian.PutUint32(data[8:], uint32(types.CPUSubtypeX8664All))

	bin, err := NewBinary(data)
	if err != nil {
		t.Fatal(err)
	}
	if bin.IsFat() {
		t.Fatal("thin file reported fat")
	}
	if got := bin.Arches()[0].Arch.String(); got != "x86_64" {
		t.Fatalf("arch = %s; want x86_64", got)
	}
}

func TestInvalidMagic(t *testing.T) {
	if _, err := NewBinary([]byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 0, 0, 0, 0, 0}); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("NewBinary = %v; want ErrInvalidMagic", err)
	}
	if _, err := NewBinary([]byte{0x01}); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("short file = %v; want ErrInvalidMagic", err)
	}
}
