package fixupchains

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// buildPayload assembles an LC_DYLD_CHAINED_FIXUPS payload with one segment
// of starts and the given imports.
func buildPayload(t *testing.T, format DCImportsFormat, symbolsFormat DCSymbolsFormat, names []string) []byte {
	t.Helper()

	var pool bytes.Buffer
	nameOffsets := make([]uint32, len(names))
	for i, n := range names {
		nameOffsets[i] = uint32(pool.Len())
		pool.WriteString(n)
		pool.WriteByte(0)
	}

	var imports bytes.Buffer
	for i := range names {
		switch format {
		case DC_IMPORT:
			raw := uint32(1) | nameOffsets[i]<<9 // lib ordinal 1
			binary.Write(&imports, binary.LittleEndian, raw)
		case DC_IMPORT_ADDEND:
			raw := uint32(1) | nameOffsets[i]<<9
			binary.Write(&imports, binary.LittleEndian, raw)
			binary.Write(&imports, binary.LittleEndian, int32(8))
		case DC_IMPORT_ADDEND64:
			raw := uint64(1) | uint64(nameOffsets[i])<<32
			binary.Write(&imports, binary.LittleEndian, raw)
			binary.Write(&imports, binary.LittleEndian, uint64(16))
		}
	}

	var starts bytes.Buffer
	binary.Write(&starts, binary.LittleEndian, uint32(1))  // seg count
	binary.Write(&starts, binary.LittleEndian, uint32(8))  // seg info offset
	binary.Write(&starts, binary.LittleEndian, uint32(24)) // size
	binary.Write(&starts, binary.LittleEndian, uint16(0x4000))
	binary.Write(&starts, binary.LittleEndian, uint16(DYLD_CHAINED_PTR_ARM64E))
	binary.Write(&starts, binary.LittleEndian, uint64(0x8000)) // segment offset
	binary.Write(&starts, binary.LittleEndian, uint32(0))      // max valid pointer
	binary.Write(&starts, binary.LittleEndian, uint16(1))      // page count
	binary.Write(&starts, binary.LittleEndian, uint16(0))      // page start

	const hdrSize = 28
	startsOff := uint32(hdrSize)
	importsOff := startsOff + uint32(starts.Len())
	symbolsOff := importsOff + uint32(imports.Len())

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, Header{
		FixupsVersion: 0,
		StartsOffset:  startsOff,
		ImportsOffset: importsOff,
		SymbolsOffset: symbolsOff,
		ImportsCount:  uint32(len(names)),
		ImportsFormat: format,
		SymbolsFormat: symbolsFormat,
	})
	out.Write(starts.Bytes())
	out.Write(imports.Bytes())
	out.Write(pool.Bytes())
	return out.Bytes()
}

func TestParseImportsFormat1(t *testing.T) {
	names := []string{"_OBJC_CLASS_$_NSObject", "_OBJC_CLASS_$_NSArray"}
	dcf, err := Parse(buildPayload(t, DC_IMPORT, DC_SFORMAT_UNCOMPRESSED, names), binary.LittleEndian)
	if err != nil {
		t.Fatal(err)
	}
	if len(dcf.Imports) != 2 {
		t.Fatalf("got %d imports; want 2", len(dcf.Imports))
	}
	name, err := dcf.SymbolName(1)
	if err != nil || name != "_OBJC_CLASS_$_NSArray" {
		t.Fatalf("SymbolName(1) = %q, %v", name, err)
	}
	if dcf.Imports[0].LibOrdinal != 1 {
		t.Errorf("lib ordinal = %d; want 1", dcf.Imports[0].LibOrdinal)
	}
	if dcf.PointerFormat != DYLD_CHAINED_PTR_ARM64E {
		t.Errorf("pointer format = %s", dcf.PointerFormat)
	}
}

func TestParseImportsAddendFormats(t *testing.T) {
	dcf, err := Parse(buildPayload(t, DC_IMPORT_ADDEND, DC_SFORMAT_UNCOMPRESSED, []string{"_sym"}), binary.LittleEndian)
	if err != nil {
		t.Fatal(err)
	}
	if dcf.Imports[0].Addend != 8 {
		t.Errorf("addend = %d; want 8", dcf.Imports[0].Addend)
	}

	dcf, err = Parse(buildPayload(t, DC_IMPORT_ADDEND64, DC_SFORMAT_UNCOMPRESSED, []string{"_sym"}), binary.LittleEndian)
	if err != nil {
		t.Fatal(err)
	}
	if dcf.Imports[0].Addend != 16 {
		t.Errorf("addend64 = %d; want 16", dcf.Imports[0].Addend)
	}
}

func TestCompressedSymbolPoolRejected(t *testing.T) {
	_, err := Parse(buildPayload(t, DC_IMPORT, DC_SFORMAT_ZLIB_COMPRESSED, []string{"_sym"}), binary.LittleEndian)
	if !errors.Is(err, ErrUnsupportedCompression) {
		t.Fatalf("Parse = %v; want ErrUnsupportedCompression", err)
	}
}

func TestSymbolNameOutOfRange(t *testing.T) {
	dcf, err := Parse(buildPayload(t, DC_IMPORT, DC_SFORMAT_UNCOMPRESSED, []string{"_sym"}), binary.LittleEndian)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dcf.SymbolName(7); !errors.Is(err, ErrNoOrdinal) {
		t.Fatalf("SymbolName(7) = %v; want ErrNoOrdinal", err)
	}
}

func TestDecodeArm64eBind(t *testing.T) {
	// bind bit 62 set, ordinal 5, next 2
	raw := uint64(1)<<62 | uint64(2)<<51 | 5
	d, err := Decode(raw, DYLD_CHAINED_PTR_ARM64E)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Bind || d.Ordinal != 5 || d.Next != 2 {
		t.Fatalf("Decode = %+v; want bind ordinal 5 next 2", d)
	}
}

func TestDecodeArm64eRebaseStripsPAC(t *testing.T) {
	// plain rebase with the high8 field set above the 43-bit target
	raw := uint64(0xff)<<43 | uint64(0x41414000)
	d, err := Decode(raw, DYLD_CHAINED_PTR_ARM64E)
	if err != nil {
		t.Fatal(err)
	}
	if d.Bind {
		t.Fatal("decoded as bind; want rebase")
	}
	if d.Target>>48 != 0 {
		t.Fatalf("rebase target %#x carries bits above 48", d.Target)
	}
	if d.Target != 0x41414000 {
		t.Fatalf("target = %#x; want 0x41414000", d.Target)
	}

	// authenticated rebase: key/diversity bits must not leak into the target
	auth := uint64(1)<<63 | uint64(3)<<49 | uint64(0xbeef)<<32 | uint64(0x1000)
	d, err = Decode(auth, DYLD_CHAINED_PTR_ARM64E)
	if err != nil {
		t.Fatal(err)
	}
	if d.Bind {
		t.Fatal("auth rebase decoded as bind")
	}
	if d.Target != 0x1000 {
		t.Fatalf("auth target = %#x; want 0x1000", d.Target)
	}
	if d.Target&0xffff000000000000 != 0 {
		t.Fatalf("auth target %#x carries PAC bits", d.Target)
	}
}

func TestDecodeGeneric64(t *testing.T) {
	// DYLD_CHAINED_PTR_64 bind: bit 63, ordinal 24 bits, addend 8 bits
	raw := uint64(1)<<63 | uint64(7)<<24 | 42
	d, err := Decode(raw, DYLD_CHAINED_PTR_64)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Bind || d.Ordinal != 42 || d.Addend != 7 {
		t.Fatalf("Decode = %+v; want bind ordinal 42 addend 7", d)
	}

	rebase := uint64(0x100004000)
	d, err = Decode(rebase, DYLD_CHAINED_PTR_64)
	if err != nil {
		t.Fatal(err)
	}
	if d.Bind || d.Target != 0x100004000 {
		t.Fatalf("Decode = %+v; want rebase target 0x100004000", d)
	}
}

func TestDecode32(t *testing.T) {
	bind := uint64(1)<<31 | uint64(3)<<20 | 9
	d, err := Decode(bind, DYLD_CHAINED_PTR_32)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Bind || d.Ordinal != 9 || d.Addend != 3 {
		t.Fatalf("Decode = %+v; want bind ordinal 9 addend 3", d)
	}

	rebase := uint64(0x2000 | 1<<26) // next = 1
	d, err = Decode(rebase, DYLD_CHAINED_PTR_32)
	if err != nil {
		t.Fatal(err)
	}
	if d.Bind || d.Target != 0x2000 || d.Next != 1 {
		t.Fatalf("Decode = %+v; want rebase target 0x2000 next 1", d)
	}
}

func TestDecodeUserland24Ordinal(t *testing.T) {
	raw := uint64(1)<<62 | uint64(0x123456)
	d, err := Decode(raw, DYLD_CHAINED_PTR_ARM64E_USERLAND24)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Bind || d.Ordinal != 0x123456 {
		t.Fatalf("Decode = %+v; want 24-bit ordinal 0x123456", d)
	}
}

func TestDecodeUnknownFormat(t *testing.T) {
	if _, err := Decode(0, DCPtrKind(99)); !errors.Is(err, ErrUnsupportedPointerFormat) {
		t.Fatalf("Decode = %v; want ErrUnsupportedPointerFormat", err)
	}
}
