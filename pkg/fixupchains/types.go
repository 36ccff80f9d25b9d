package fixupchains

import (
	"fmt"

	"github.com/appsworld/go-classdump/types"
)

// DCPtrKind are values for dyld_chained_starts_in_segment.pointer_format.
type DCPtrKind uint16

const (
	DYLD_CHAINED_PTR_ARM64E              DCPtrKind = 1 // stride 8, unauth target is vmaddr
	DYLD_CHAINED_PTR_64                  DCPtrKind = 2 // target is vmaddr
	DYLD_CHAINED_PTR_32                  DCPtrKind = 3
	DYLD_CHAINED_PTR_32_CACHE            DCPtrKind = 4
	DYLD_CHAINED_PTR_32_FIRMWARE         DCPtrKind = 5
	DYLD_CHAINED_PTR_64_OFFSET           DCPtrKind = 6 // target is vm offset
	DYLD_CHAINED_PTR_ARM64E_KERNEL       DCPtrKind = 7 // stride 4, unauth target is vm offset
	DYLD_CHAINED_PTR_64_KERNEL_CACHE     DCPtrKind = 8
	DYLD_CHAINED_PTR_ARM64E_USERLAND     DCPtrKind = 9  // stride 8, unauth target is vm offset
	DYLD_CHAINED_PTR_ARM64E_FIRMWARE     DCPtrKind = 10 // stride 4, unauth target is vmaddr
	DYLD_CHAINED_PTR_X86_64_KERNEL_CACHE DCPtrKind = 11 // stride 1, x86_64 kernel caches
	DYLD_CHAINED_PTR_ARM64E_USERLAND24   DCPtrKind = 12 // stride 8, 24-bit bind ordinals
)

// IsArm64e reports whether the format carries pointer-authentication bits.
func (k DCPtrKind) IsArm64e() bool {
	switch k {
	case DYLD_CHAINED_PTR_ARM64E, DYLD_CHAINED_PTR_ARM64E_KERNEL,
		DYLD_CHAINED_PTR_ARM64E_USERLAND, DYLD_CHAINED_PTR_ARM64E_FIRMWARE,
		DYLD_CHAINED_PTR_ARM64E_USERLAND24:
		return true
	}
	return false
}

// Is64 reports whether chain entries are 8 bytes wide.
func (k DCPtrKind) Is64() bool {
	switch k {
	case DYLD_CHAINED_PTR_32, DYLD_CHAINED_PTR_32_CACHE, DYLD_CHAINED_PTR_32_FIRMWARE:
		return false
	}
	return true
}

// Stride returns the byte multiplier for the "next" field of this format.
func (k DCPtrKind) Stride() uint64 {
	switch k {
	case DYLD_CHAINED_PTR_ARM64E, DYLD_CHAINED_PTR_ARM64E_USERLAND,
		DYLD_CHAINED_PTR_ARM64E_USERLAND24:
		return 8
	case DYLD_CHAINED_PTR_X86_64_KERNEL_CACHE:
		return 1
	default:
		return 4
	}
}

var kindStrings = []types.IntName{
	{uint32(DYLD_CHAINED_PTR_ARM64E), "DYLD_CHAINED_PTR_ARM64E"},
	{uint32(DYLD_CHAINED_PTR_64), "DYLD_CHAINED_PTR_64"},
	{uint32(DYLD_CHAINED_PTR_32), "DYLD_CHAINED_PTR_32"},
	{uint32(DYLD_CHAINED_PTR_32_CACHE), "DYLD_CHAINED_PTR_32_CACHE"},
	{uint32(DYLD_CHAINED_PTR_32_FIRMWARE), "DYLD_CHAINED_PTR_32_FIRMWARE"},
	{uint32(DYLD_CHAINED_PTR_64_OFFSET), "DYLD_CHAINED_PTR_64_OFFSET"},
	{uint32(DYLD_CHAINED_PTR_ARM64E_KERNEL), "DYLD_CHAINED_PTR_ARM64E_KERNEL"},
	{uint32(DYLD_CHAINED_PTR_64_KERNEL_CACHE), "DYLD_CHAINED_PTR_64_KERNEL_CACHE"},
	{uint32(DYLD_CHAINED_PTR_ARM64E_USERLAND), "DYLD_CHAINED_PTR_ARM64E_USERLAND"},
	{uint32(DYLD_CHAINED_PTR_ARM64E_FIRMWARE), "DYLD_CHAINED_PTR_ARM64E_FIRMWARE"},
	{uint32(DYLD_CHAINED_PTR_X86_64_KERNEL_CACHE), "DYLD_CHAINED_PTR_X86_64_KERNEL_CACHE"},
	{uint32(DYLD_CHAINED_PTR_ARM64E_USERLAND24), "DYLD_CHAINED_PTR_ARM64E_USERLAND24"},
}

func (k DCPtrKind) String() string { return types.StringName(uint32(k), kindStrings, false) }

// Header is the LC_DYLD_CHAINED_FIXUPS payload header.
type Header struct {
	FixupsVersion uint32          // 0
	StartsOffset  uint32          // offset of starts-in-image in chain_data
	ImportsOffset uint32          // offset of imports table in chain_data
	SymbolsOffset uint32          // offset of symbol strings in chain_data
	ImportsCount  uint32          // number of imported symbol names
	ImportsFormat DCImportsFormat // DYLD_CHAINED_IMPORT*
	SymbolsFormat DCSymbolsFormat // 0 => uncompressed, 1 => zlib compressed
}

// DCImportsFormat are values for dyld_chained_fixups_header.imports_format.
type DCImportsFormat uint32

const (
	DC_IMPORT          DCImportsFormat = 1
	DC_IMPORT_ADDEND   DCImportsFormat = 2
	DC_IMPORT_ADDEND64 DCImportsFormat = 3
)

type DCSymbolsFormat uint32

const (
	DC_SFORMAT_UNCOMPRESSED    DCSymbolsFormat = 0
	DC_SFORMAT_ZLIB_COMPRESSED DCSymbolsFormat = 1
)

// An Import is one entry of the bind table.
type Import struct {
	LibOrdinal int
	Weak       bool
	Addend     int64
	Name       string
}

func (i Import) String() string {
	return fmt.Sprintf("lib ordinal: %d, is_weak: %t, name: %s", i.LibOrdinal, i.Weak, i.Name)
}

// StartsInSegment mirrors dyld_chained_starts_in_segment plus its page array.
type StartsInSegment struct {
	Size            uint32
	PageSize        uint16
	PointerFormat   DCPtrKind
	SegmentOffset   uint64 // offset in memory to start of segment
	MaxValidPointer uint32 // 32-bit only; values beyond it are not pointers
	PageCount       uint16
	PageStarts      []DCPtrStart
}

type DCPtrStart uint16

const (
	DYLD_CHAINED_PTR_START_NONE  DCPtrStart = 0xFFFF // page has no fixups
	DYLD_CHAINED_PTR_START_MULTI DCPtrStart = 0x8000 // page has multiple chain starts
	DYLD_CHAINED_PTR_START_LAST  DCPtrStart = 0x8000 // last start in a multi list
)

// A Decoded is the interpretation of one on-file chained-fixup word: either a
// rebase carrying a target, or a bind carrying an ordinal and addend.
type Decoded struct {
	Bind    bool
	Ordinal uint64
	Addend  int64
	Target  uint64 // rebase only; PAC bits already stripped
	High8   uint64 // rebase only; top byte restored at load time
	Next    uint64 // entries until the next fixup, in format stride units
}

func arm64eIsBind(ptr uint64) bool { return types.ExtractBits(ptr, 62, 1) != 0 }
func arm64eIsAuth(ptr uint64) bool { return types.ExtractBits(ptr, 63, 1) != 0 }

func generic64IsBind(ptr uint64) bool { return types.ExtractBits(ptr, 63, 1) != 0 }
func generic32IsBind(ptr uint32) bool { return types.ExtractBits(uint64(ptr), 31, 1) != 0 }

func signExtendAddend19(addend19 uint64) int64 {
	if addend19&0x40000 != 0 {
		return int64(addend19 | 0xFFFFFFFFFFFC0000)
	}
	return int64(addend19)
}

// Decode interprets a raw chain entry according to the pointer format. It is a
// pure function; arm64e rebase targets come back with the authentication bits
// stripped.
func Decode(raw uint64, kind DCPtrKind) (Decoded, error) {
	switch kind {
	case DYLD_CHAINED_PTR_ARM64E, DYLD_CHAINED_PTR_ARM64E_KERNEL,
		DYLD_CHAINED_PTR_ARM64E_USERLAND, DYLD_CHAINED_PTR_ARM64E_FIRMWARE:
		return decodeArm64e(raw, false), nil
	case DYLD_CHAINED_PTR_ARM64E_USERLAND24:
		return decodeArm64e(raw, true), nil
	case DYLD_CHAINED_PTR_64, DYLD_CHAINED_PTR_64_OFFSET:
		if generic64IsBind(raw) {
			return Decoded{
				Bind:    true,
				Ordinal: types.ExtractBits(raw, 0, 24),
				Addend:  int64(types.ExtractBits(raw, 24, 8)),
				Next:    types.ExtractBits(raw, 51, 12),
			}, nil
		}
		return Decoded{
			Target: types.StripPAC(types.ExtractBits(raw, 0, 36)),
			High8:  types.ExtractBits(raw, 36, 8),
			Next:   types.ExtractBits(raw, 51, 12),
		}, nil
	case DYLD_CHAINED_PTR_64_KERNEL_CACHE, DYLD_CHAINED_PTR_X86_64_KERNEL_CACHE:
		return Decoded{
			Target: types.ExtractBits(raw, 0, 30),
			Next:   types.ExtractBits(raw, 51, 12),
		}, nil
	case DYLD_CHAINED_PTR_32:
		ptr := uint32(raw)
		if generic32IsBind(ptr) {
			return Decoded{
				Bind:    true,
				Ordinal: types.ExtractBits(raw, 0, 20),
				Addend:  int64(types.ExtractBits(raw, 20, 6)),
				Next:    types.ExtractBits(raw, 26, 5),
			}, nil
		}
		return Decoded{
			Target: types.ExtractBits(raw, 0, 26),
			Next:   types.ExtractBits(raw, 26, 5),
		}, nil
	case DYLD_CHAINED_PTR_32_CACHE:
		return Decoded{
			Target: types.ExtractBits(raw, 0, 30),
			Next:   types.ExtractBits(raw, 30, 2),
		}, nil
	case DYLD_CHAINED_PTR_32_FIRMWARE:
		return Decoded{
			Target: types.ExtractBits(raw, 0, 26),
			Next:   types.ExtractBits(raw, 26, 6),
		}, nil
	}
	return Decoded{}, fmt.Errorf("pointer format %s: %w", kind, ErrUnsupportedPointerFormat)
}

func decodeArm64e(raw uint64, wideOrdinal bool) Decoded {
	next := types.ExtractBits(raw, 51, 11)
	if arm64eIsBind(raw) {
		ordinalBits := int32(16)
		if wideOrdinal {
			ordinalBits = 24
		}
		d := Decoded{
			Bind:    true,
			Ordinal: types.ExtractBits(raw, 0, ordinalBits),
			Next:    next,
		}
		if !arm64eIsAuth(raw) {
			d.Addend = signExtendAddend19(types.ExtractBits(raw, 32, 19))
		}
		return d
	}
	if arm64eIsAuth(raw) {
		// auth rebase target is a 32-bit runtime offset; the key/diversity
		// bits above it never reach the caller
		return Decoded{
			Target: types.ExtractBits(raw, 0, 32),
			Next:   next,
		}
	}
	return Decoded{
		Target: types.StripPAC(types.ExtractBits(raw, 0, 43)),
		High8:  types.ExtractBits(raw, 43, 8),
		Next:   next,
	}
}
