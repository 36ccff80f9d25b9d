package types

import (
	"fmt"
	"strings"
)

// A FileHeader represents a Mach-O file header.
type FileHeader struct {
	Magic        Magic
	CPU          CPU
	SubCPU       CPUSubtype
	Type         HeaderFileType
	NCommands    uint32
	SizeCommands uint32
	Flags        HeaderFlag
	Reserved     uint32
}

const (
	FileHeaderSize32 = 7 * 4
	FileHeaderSize64 = 8 * 4
)

type Magic uint32

const (
	Magic32       Magic = 0xfeedface
	Magic64       Magic = 0xfeedfacf
	MagicFat      Magic = 0xcafebabe
	MagicFat64    Magic = 0xcafebabf
	Magic32Swap   Magic = 0xcefaedfe
	Magic64Swap   Magic = 0xcffaedfe
	MagicFatSwap  Magic = 0xbebafeca
	MagicFat64Sw  Magic = 0xbfbafeca
)

var magicStrings = []IntName{
	{uint32(Magic32), "32-bit MachO"},
	{uint32(Magic64), "64-bit MachO"},
	{uint32(MagicFat), "Fat MachO"},
	{uint32(MagicFat64), "Fat64 MachO"},
}

func (m Magic) Int() uint32      { return uint32(m) }
func (m Magic) String() string   { return StringName(uint32(m), magicStrings, false) }
func (m Magic) GoString() string { return StringName(uint32(m), magicStrings, true) }

// Is64bit reports whether the magic announces a 64-bit file.
func (m Magic) Is64bit() bool { return m == Magic64 }

// PointerSize returns the file's pointer width in bytes.
func (m Magic) PointerSize() uint64 {
	if m.Is64bit() {
		return 8
	}
	return 4
}

// A FatHeader is the big-endian header of a universal file.
type FatHeader struct {
	Magic Magic
	Count uint32
}

// A FatArchHeader is one architecture record of a universal file.
// Always stored big-endian regardless of host or slice endianness.
type FatArchHeader struct {
	CPU    CPU
	SubCPU CPUSubtype
	Offset uint32
	Size   uint32
	Align  uint32
}

// A FatArch64Header is the 64-bit fat record variant.
type FatArch64Header struct {
	CPU      CPU
	SubCPU   CPUSubtype
	Offset   uint64
	Size     uint64
	Align    uint32
	Reserved uint32
}

// A HeaderFileType is the Mach-O file type, e.g. an object file, executable, or dynamic library.
type HeaderFileType uint32

const (
	MH_OBJECT      HeaderFileType = 0x1 /* relocatable object file */
	MH_EXECUTE     HeaderFileType = 0x2 /* demand paged executable file */
	MH_FVMLIB      HeaderFileType = 0x3 /* fixed VM shared library file */
	MH_CORE        HeaderFileType = 0x4 /* core file */
	MH_PRELOAD     HeaderFileType = 0x5 /* preloaded executable file */
	MH_DYLIB       HeaderFileType = 0x6 /* dynamically bound shared library */
	MH_DYLINKER    HeaderFileType = 0x7 /* dynamic link editor */
	MH_BUNDLE      HeaderFileType = 0x8 /* dynamically bound bundle file */
	MH_DYLIB_STUB  HeaderFileType = 0x9 /* shared library stub for static linking */
	MH_DSYM        HeaderFileType = 0xa /* companion file with only debug sections */
	MH_KEXT_BUNDLE HeaderFileType = 0xb /* x86_64 kexts */
	MH_FILESET     HeaderFileType = 0xc /* set of Mach-Os sharing a linkedit */
)

var fileTypeStrings = []IntName{
	{uint32(MH_OBJECT), "Object"},
	{uint32(MH_EXECUTE), "Executable"},
	{uint32(MH_FVMLIB), "FVMLib"},
	{uint32(MH_CORE), "Core"},
	{uint32(MH_PRELOAD), "Preload"},
	{uint32(MH_DYLIB), "Dylib"},
	{uint32(MH_DYLINKER), "Dylinker"},
	{uint32(MH_BUNDLE), "Bundle"},
	{uint32(MH_DYLIB_STUB), "DylibStub"},
	{uint32(MH_DSYM), "dSYM"},
	{uint32(MH_KEXT_BUNDLE), "Kext"},
	{uint32(MH_FILESET), "FileSet"},
}

func (t HeaderFileType) String() string { return StringName(uint32(t), fileTypeStrings, false) }

type HeaderFlag uint32

const (
	NoUndefs              HeaderFlag = 0x1
	IncrLink              HeaderFlag = 0x2
	DyldLink              HeaderFlag = 0x4
	BindAtLoad            HeaderFlag = 0x8
	Prebound              HeaderFlag = 0x10
	SplitSegs             HeaderFlag = 0x20
	TwoLevel              HeaderFlag = 0x80
	ForceFlat             HeaderFlag = 0x100
	SubsectionsViaSymbols HeaderFlag = 0x2000
	WeakDefines           HeaderFlag = 0x8000
	BindsToWeak           HeaderFlag = 0x10000
	PIE                   HeaderFlag = 0x200000
	HasTLVDescriptors     HeaderFlag = 0x800000
	AppExtensionSafe      HeaderFlag = 0x2000000
	SimSupport            HeaderFlag = 0x8000000
	DylibInCache          HeaderFlag = 0x80000000
)

func (f HeaderFlag) PIE() bool          { return (f & PIE) != 0 }
func (f HeaderFlag) TwoLevel() bool     { return (f & TwoLevel) != 0 }
func (f HeaderFlag) DylibInCache() bool { return (f & DylibInCache) != 0 }

var headerFlagStrings = []IntName{
	{uint32(NoUndefs), "NoUndefs"},
	{uint32(IncrLink), "IncrLink"},
	{uint32(DyldLink), "DyldLink"},
	{uint32(BindAtLoad), "BindAtLoad"},
	{uint32(Prebound), "Prebound"},
	{uint32(SplitSegs), "SplitSegs"},
	{uint32(TwoLevel), "TwoLevel"},
	{uint32(ForceFlat), "ForceFlat"},
	{uint32(SubsectionsViaSymbols), "SubsectionsViaSymbols"},
	{uint32(WeakDefines), "WeakDefines"},
	{uint32(BindsToWeak), "BindsToWeak"},
	{uint32(PIE), "PIE"},
	{uint32(HasTLVDescriptors), "HasTLVDescriptors"},
	{uint32(AppExtensionSafe), "AppExtensionSafe"},
	{uint32(SimSupport), "SimSupport"},
	{uint32(DylibInCache), "DylibInCache"},
}

// List returns the names of the set flags.
func (f HeaderFlag) List() []string {
	var flags []string
	for _, fn := range headerFlagStrings {
		if uint32(f)&fn.I != 0 {
			flags = append(flags, fn.S)
		}
	}
	return flags
}

func (f HeaderFlag) String() string {
	return strings.Join(f.List(), ", ")
}

func (h FileHeader) String() string {
	return fmt.Sprintf(
		"Magic         = %s\n"+
			"Type          = %s\n"+
			"CPU           = %s, %s\n"+
			"Commands      = %d (Size: %d)\n"+
			"Flags         = %s\n",
		h.Magic,
		h.Type,
		h.CPU, h.SubCPU.String(h.CPU),
		h.NCommands,
		h.SizeCommands,
		h.Flags,
	)
}
