package macho

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/appsworld/go-classdump/types"
	"github.com/appsworld/go-classdump/types/objc"
)

// Test fixtures are assembled by hand: one __DATA segment mapping the whole
// file at 0x100000000, a classlist with a single class Foo : NSObject, and a
// one-entry method list in either the legacy or the small format.

const (
	fixBase = 0x100000000

	fixClassListOff = 0x400
	fixImageInfoOff = 0x408
	fixFooClassOff  = 0x500
	fixFooROOff     = 0x540
	fixMethListOff  = 0x5a0
	fixSelRefOff    = 0x5c0
	fixNSObjClsOff  = 0x600
	fixNSObjROOff   = 0x640
	fixFooNameOff   = 0x700
	fixBarNameOff   = 0x704
	fixBarTypesOff  = 0x708
	fixNSObjNameOff = 0x710
	fixImpOff       = 0x100

	fixFileSize = 0x800
)

func put64(buf []byte, off int, v uint64) { binary.LittleEndian.PutUint64(buf[off:], v) }
func put32(buf []byte, off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }

func writeStruct(t *testing.T, buf []byte, off int, v any) {
	t.Helper()
	var b bytes.Buffer
	if err := binary.Write(&b, binary.LittleEndian, v); err != nil {
		t.Fatal(err)
	}
	copy(buf[off:], b.Bytes())
}

func sectName(s string) (out [16]byte) {
	copy(out[:], s)
	return
}

// buildObjCFixture assembles a thin x86_64 image with one class.
func buildObjCFixture(t *testing.T, smallMethods bool) []byte {
	t.Helper()

	buf := make([]byte, fixFileSize)

	seg := types.Segment64{
		LoadCmd: types.LC_SEGMENT_64,
		Name:    sectName("__DATA"),
		Addr:    fixBase,
		Memsz:   fixFileSize,
		Offset:  0,
		Filesz:  fixFileSize,
		Maxprot: 3,
		Prot:    3,
		Nsect:   2,
	}
	segSize := binary.Size(seg)
	sectSize := binary.Size(types.Section64{})
	cmdLen := segSize + 2*sectSize
	seg.Len = uint32(cmdLen)

	hdr := types.FileHeader{
		Magic:        types.Magic64,
		CPU:          types.CPUAmd64,
		SubCPU:       types.CPUSubtypeX8664All,
		Type:         types.MH_EXECUTE,
		NCommands:    1,
		SizeCommands: uint32(cmdLen),
	}
	writeStruct(t, buf, 0, hdr)
	writeStruct(t, buf, 32, seg)

	classlist := types.Section64{
		Name:   sectName("__objc_classlist"),
		Seg:    sectName("__DATA"),
		Addr:   fixBase + fixClassListOff,
		Size:   8,
		Offset: fixClassListOff,
	}
	imageinfo := types.Section64{
		Name:   sectName("__objc_imageinfo"),
		Seg:    sectName("__DATA"),
		Addr:   fixBase + fixImageInfoOff,
		Size:   8,
		Offset: fixImageInfoOff,
	}
	writeStruct(t, buf, 32+segSize, classlist)
	writeStruct(t, buf, 32+segSize+sectSize, imageinfo)

	// classlist -> Foo
	put64(buf, fixClassListOff, fixBase+fixFooClassOff)

	// Foo: objc_class
	put64(buf, fixFooClassOff+8, fixBase+fixNSObjClsOff)  // superclass
	put64(buf, fixFooClassOff+32, fixBase+fixFooROOff)    // data

	// Foo: class_ro_t
	put32(buf, fixFooROOff+0, 0)                   // flags
	put32(buf, fixFooROOff+4, 8)                   // instance start
	put64(buf, fixFooROOff+8, 8)                   // instance size
	put64(buf, fixFooROOff+24, fixBase+fixFooNameOff)
	put64(buf, fixFooROOff+32, fixBase+fixMethListOff)

	if smallMethods {
		put32(buf, fixMethListOff, 0x80000000|12) // entsize flags: small
		put32(buf, fixMethListOff+4, 1)
		entry := fixMethListOff + 8
		put32(buf, entry, uint32(int32(fixSelRefOff-entry)))
		put32(buf, entry+4, uint32(int32(fixBarTypesOff-(entry+4))))
		put32(buf, entry+8, uint32(int32(fixImpOff-(entry+8))))
		put64(buf, fixSelRefOff, fixBase+fixBarNameOff)
	} else {
		put32(buf, fixMethListOff, 24)
		put32(buf, fixMethListOff+4, 1)
		writeStruct(t, buf, fixMethListOff+8, objc.MethodT{
			NameVMAddr:  fixBase + fixBarNameOff,
			TypesVMAddr: fixBase + fixBarTypesOff,
			ImpVMAddr:   fixBase + fixImpOff,
		})
	}

	// NSObject: objc_class + class_ro_t (root class)
	put64(buf, fixNSObjClsOff+32, fixBase+fixNSObjROOff)
	put32(buf, fixNSObjROOff+0, uint32(objc.RO_ROOT))
	put64(buf, fixNSObjROOff+24, fixBase+fixNSObjNameOff)

	copy(buf[fixFooNameOff:], "Foo\x00")
	copy(buf[fixBarNameOff:], "bar\x00")
	copy(buf[fixBarTypesOff:], "v16@0:8\x00")
	copy(buf[fixNSObjNameOff:], "NSObject\x00")

	return buf
}

const (
	fixFixupsOff  = 0x300
	fixFixupsSize = 0x80
)

// buildFixupsFixture extends the base image with LC_DYLD_CHAINED_FIXUPS and
// rewrites Foo's superclass word as a bind to _OBJC_CLASS_$_NSArray.
func buildFixupsFixture(t *testing.T) []byte {
	t.Helper()

	buf := buildObjCFixture(t, false)

	// append the load command after the segment command
	lc := types.LinkEditDataCmd{
		LoadCmd: types.LC_DYLD_CHAINED_FIXUPS,
		Len:     16,
		Offset:  fixFixupsOff,
		Size:    fixFixupsSize,
	}
	sizeCmds := binary.LittleEndian.Uint32(buf[20:])
	writeStruct(t, buf, 32+int(sizeCmds), lc)
	put32(buf, 16, 2)           // ncmds
	put32(buf, 20, sizeCmds+16) // sizeofcmds

	// payload: header, one segment of starts (no pages), one import
	const (
		hdrSize    = 28
		startsLen  = 8 + 22
		importsLen = 4
	)
	symName := "_OBJC_CLASS_$_NSArray\x00"

	p := fixFixupsOff
	put32(buf, p+0, 0)                   // fixups_version
	put32(buf, p+4, hdrSize)             // starts_offset
	put32(buf, p+8, hdrSize+startsLen)   // imports_offset
	put32(buf, p+12, hdrSize+startsLen+importsLen) // symbols_offset
	put32(buf, p+16, 1)                  // imports_count
	put32(buf, p+20, 1)                  // imports_format: DYLD_CHAINED_IMPORT
	put32(buf, p+24, 0)                  // symbols_format: uncompressed

	s := p + hdrSize
	put32(buf, s+0, 1) // seg_count
	put32(buf, s+4, 8) // seg_info_offset[0]
	put32(buf, s+8, 22)
	binary.LittleEndian.PutUint16(buf[s+12:], 0x4000) // page_size
	binary.LittleEndian.PutUint16(buf[s+14:], 2)      // DYLD_CHAINED_PTR_64
	put64(buf, s+16, 0)                               // segment_offset
	put32(buf, s+24, 0)                               // max_valid_pointer
	binary.LittleEndian.PutUint16(buf[s+28:], 0)      // page_count

	imp := p + hdrSize + startsLen
	put32(buf, imp, 1|0<<9) // lib ordinal 1, name offset 0
	copy(buf[p+hdrSize+startsLen+importsLen:], symName)

	// superclass becomes a chained bind word: ordinal 0
	put64(buf, fixFooClassOff+8, uint64(1)<<63)

	return buf
}
