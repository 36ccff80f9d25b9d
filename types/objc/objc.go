// Package objc models the Objective-C runtime metadata as it appears on disk
// in __objc_* sections, plus the enriched records the extraction layer hands
// to consumers.
package objc

import (
	"fmt"
	"strings"
)

// An ImageInfo is the __objc_imageinfo payload.
type ImageInfo struct {
	Version uint32
	Flags   ImageInfoFlag
}

type ImageInfoFlag uint32

const (
	DyldCategoriesOptimized    ImageInfoFlag = 1 << 0
	SupportsGC                 ImageInfoFlag = 1 << 1
	RequiresGC                 ImageInfoFlag = 1 << 2
	OptimizedByDyld            ImageInfoFlag = 1 << 3
	SignedClassRO              ImageInfoFlag = 1 << 4
	IsSimulated                ImageInfoFlag = 1 << 5
	HasCategoryClassProperties ImageInfoFlag = 1 << 6
	OptimizedByDyldClosure     ImageInfoFlag = 1 << 7
)

func (f ImageInfoFlag) OptimizedByDyld() bool { return f&OptimizedByDyld != 0 }

// SwiftVersion returns the Swift ABI version byte, 0 for pure ObjC images.
func (i ImageInfo) SwiftVersion() uint32 {
	return uint32(i.Flags>>8) & 0xff
}

func (i ImageInfo) HasSwift() bool { return i.SwiftVersion() != 0 }

// A Toc counts the ObjC metadata entries advertised by the image's sections.
type Toc struct {
	ClassList        uint64
	NonLazyClassList uint64
	CatList          uint64
	ProtoList        uint64
	SelRefs          uint64
}

func (t Toc) String() string {
	return fmt.Sprintf("classes: %d, categories: %d, protocols: %d", t.ClassList, t.CatList, t.ProtoList)
}

const (
	smallMethodListFlag                  uint32 = 0x80000000
	relativeMethodSelectorsAreDirectFlag uint32 = 0x40000000
	methodListSizeMask                   uint32 = 0x0000fffc
)

// A MethodListHeader precedes every method list: entsize plus flags, then count.
type MethodListHeader struct {
	EntSizeAndFlags uint32
	Count           uint32
}

// IsSmall reports whether entries are 32-bit relative offsets rather than
// pointer triples. A list is entirely one format or the other.
func (ml MethodListHeader) IsSmall() bool {
	return ml.EntSizeAndFlags&smallMethodListFlag != 0
}

// UsesDirectSelectors reports whether small-list selector offsets point
// straight at selector strings (set for dyld-shared-cache images, whose
// offsets index the preoptimized selector table).
func (ml MethodListHeader) UsesDirectSelectors() bool {
	return ml.EntSizeAndFlags&relativeMethodSelectorsAreDirectFlag != 0
}

func (ml MethodListHeader) EntSize() uint32 {
	return ml.EntSizeAndFlags & methodListSizeMask
}

// A MethodT is a legacy (pointer) method list entry.
type MethodT struct {
	NameVMAddr  uint64 // SEL
	TypesVMAddr uint64 // const char *
	ImpVMAddr   uint64 // IMP
}

// A RelativeMethodT is a small (iOS 14+) method list entry: three signed
// offsets relative to the address of each field.
type RelativeMethodT struct {
	NameOffset  int32
	TypesOffset int32
	ImpOffset   int32
}

// A Method is an extracted method.
type Method struct {
	Name        string // selector
	Types       string // runtime type encoding
	NameVMAddr  uint64
	TypesVMAddr uint64
	ImpVMAddr   uint64
}

func (m Method) String() string {
	return fmt.Sprintf("%s %s", m.Name, m.Types)
}

// An IvarListHeader precedes the ivar records of a class.
type IvarListHeader struct {
	EntSize uint32
	Count   uint32
}

// An IvarT is an on-disk instance-variable record.
type IvarT struct {
	Offset       uint64 // pointer to the runtime offset slot
	NameVMAddr   uint64 // const char *
	TypesVMAddr  uint64 // const char *
	AlignmentRaw uint32
	Size         uint32
}

const wordShift = 3 // 64-bit pointers

func (i IvarT) Alignment() uint32 {
	if i.AlignmentRaw == ^uint32(0) {
		return 1 << wordShift
	}
	return 1 << i.AlignmentRaw
}

// An Ivar is an extracted instance variable.
type Ivar struct {
	Name   string
	Type   string // runtime type encoding
	Offset uint32 // runtime offset read through the offset slot
	// SwiftType carries the display type recovered from Swift field metadata
	// for ivars of Swift-backed classes, when available.
	SwiftType string
	IvarT
}

func (i Ivar) String() string {
	return fmt.Sprintf("%s %s // +%#x", i.Type, i.Name, i.Offset)
}

// A PropertyListHeader precedes property records.
type PropertyListHeader struct {
	EntSize uint32
	Count   uint32
}

// A PropertyT is an on-disk property record.
type PropertyT struct {
	NameVMAddr       uint64
	AttributesVMAddr uint64
}

// A Property is an extracted @property with its raw attribute string
// (type, memory policy, backing ivar).
type Property struct {
	Name       string
	Attributes string
	PropertyT
}

// A Selector pairs a selector string with where it lives.
type Selector struct {
	VMAddr uint64
	Name   string
}

// UnresolvedSelector marks a small-method selector whose shared-cache
// indirect index could not be resolved without the preoptimized table.
const UnresolvedSelector = "<unresolved>"

// An EntityRef names a class or protocol reference that is either local
// (Address != 0) or external (bound symbol, Address == 0).
type EntityRef struct {
	Name    string
	Address uint64
}

// IsExternal reports whether the reference is a symbolic bind.
func (r EntityRef) IsExternal() bool { return r.Address == 0 && r.Name != "" }

// StripClassSymbolPrefix removes the ObjC class symbol prefixes from a bound
// symbol name, yielding the class's display name.
func StripClassSymbolPrefix(sym string) string {
	sym = strings.TrimPrefix(sym, "_OBJC_CLASS_$_")
	sym = strings.TrimPrefix(sym, "OBJC_CLASS_$_")
	sym = strings.TrimPrefix(sym, "_OBJC_METACLASS_$_")
	return sym
}
