package objc

import (
	"sort"
	"strings"
)

// ObjcClassT is the on-disk objc_class for 32-bit images.
type ObjcClassT struct {
	IsaVMAddr              uint32
	SuperclassVMAddr       uint32
	MethodCacheBuckets     uint32
	MethodCacheProperties  uint32
	DataVMAddrAndFastFlags uint32
}

// ObjcClass64 is the on-disk objc_class for 64-bit images.
type ObjcClass64 struct {
	IsaVMAddr              uint64
	SuperclassVMAddr       uint64
	MethodCacheBuckets     uint64
	MethodCacheProperties  uint64
	DataVMAddrAndFastFlags uint64
}

// SwiftClassMetadata64 is an objc_class with the trailing Swift class flags
// present when the fast-flag bits mark the class as Swift.
type SwiftClassMetadata64 struct {
	ObjcClass64
	SwiftClassFlags uint64
}

// Fast flags carried in the low bits of the class data pointer.
const (
	FAST_IS_SWIFT_LEGACY = 1 << 0 // compiled before the stable Swift ABI
	FAST_IS_SWIFT_STABLE = 1 << 1 // Swift 5+

	FAST_DATA_MASK   = 0xfffffffc
	FAST_DATA_MASK64 = 0x00007ffffffffff8
	FAST_FLAGS_MASK  = 0x00000003
)

type ClassRoFlags uint32

const (
	RO_META                  ClassRoFlags = 1 << 0
	RO_ROOT                  ClassRoFlags = 1 << 1
	RO_HAS_CXX_STRUCTORS     ClassRoFlags = 1 << 2
	RO_HAS_LOAD_METHOD       ClassRoFlags = 1 << 3
	RO_HIDDEN                ClassRoFlags = 1 << 4
	RO_EXCEPTION             ClassRoFlags = 1 << 5
	RO_HAS_SWIFT_INITIALIZER ClassRoFlags = 1 << 6
	RO_IS_ARC                ClassRoFlags = 1 << 7
)

func (f ClassRoFlags) IsMeta() bool       { return f&RO_META != 0 }
func (f ClassRoFlags) IsRoot() bool       { return f&RO_ROOT != 0 }
func (f ClassRoFlags) HasLoadMethod() bool { return f&RO_HAS_LOAD_METHOD != 0 }

// ClassRO is the 32-bit class_ro_t.
type ClassRO struct {
	Flags                ClassRoFlags
	InstanceStart        uint32
	InstanceSize         uint32
	IvarLayoutVMAddr     uint32
	NameVMAddr           uint32
	BaseMethodsVMAddr    uint32
	BaseProtocolsVMAddr  uint32
	IvarsVMAddr          uint32
	WeakIvarLayoutVMAddr uint32
	BasePropertiesVMAddr uint32
}

// ClassRO64 is the 64-bit class_ro_t.
type ClassRO64 struct {
	Flags                ClassRoFlags
	InstanceStart        uint32
	InstanceSize         uint64
	IvarLayoutVMAddr     uint64
	NameVMAddr           uint64
	BaseMethodsVMAddr    uint64
	BaseProtocolsVMAddr  uint64
	IvarsVMAddr          uint64
	WeakIvarLayoutVMAddr uint64
	BasePropertiesVMAddr uint64
}

// A Class is an extracted Objective-C class.
type Class struct {
	Name            string
	SuperClass      EntityRef
	Isa             string
	InstanceStart   uint32
	InstanceSize    uint64
	Ivars           []Ivar
	Properties      []Property
	InstanceMethods []Method
	ClassMethods    []Method
	Protocols       []Protocol

	ClassPtr      uint64 // vmaddr of the objc_class record
	IsSwiftLegacy bool
	IsSwiftStable bool
	HasLoad       bool
	ReadOnlyData  ClassRO64
}

// IsSwift reports whether the class was emitted by the Swift compiler.
func (c *Class) IsSwift() bool { return c.IsSwiftLegacy || c.IsSwiftStable }

// ProtocolNames returns the names of adopted protocols in declaration order.
func (c *Class) ProtocolNames() []string {
	names := make([]string, len(c.Protocols))
	for i, p := range c.Protocols {
		names[i] = p.Name
	}
	return names
}

// SortLists orders methods and properties by name for deterministic output.
func (c *Class) SortLists() {
	sortMethods(c.InstanceMethods)
	sortMethods(c.ClassMethods)
	sort.SliceStable(c.Properties, func(i, j int) bool {
		return c.Properties[i].Name < c.Properties[j].Name
	})
}

func sortMethods(ms []Method) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].Name < ms[j].Name
	})
}

func (c *Class) String() string {
	var b strings.Builder
	b.WriteString("@interface " + c.Name)
	if c.SuperClass.Name != "" {
		b.WriteString(" : " + c.SuperClass.Name)
	}
	if len(c.Protocols) > 0 {
		b.WriteString(" <" + strings.Join(c.ProtocolNames(), ", ") + ">")
	}
	return b.String()
}
