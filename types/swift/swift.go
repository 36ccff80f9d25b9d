// Package swift models the Swift 5 reflection metadata found in the
// __swift5_* sections: nominal type descriptors, field descriptors, and
// protocol (conformance) descriptors.
package swift

import "fmt"

// ContextDescriptorKind tags a context descriptor.
type ContextDescriptorKind uint8

const (
	Module     ContextDescriptorKind = 0
	Extension  ContextDescriptorKind = 1
	Anonymous  ContextDescriptorKind = 2
	ProtocolKind ContextDescriptorKind = 3
	OpaqueType ContextDescriptorKind = 4

	typeFirst                        = 16
	Class     ContextDescriptorKind = typeFirst
	Struct    ContextDescriptorKind = typeFirst + 1
	Enum      ContextDescriptorKind = typeFirst + 2
)

func (k ContextDescriptorKind) String() string {
	switch k {
	case Module:
		return "module"
	case Extension:
		return "extension"
	case Anonymous:
		return "anonymous"
	case ProtocolKind:
		return "protocol"
	case OpaqueType:
		return "opaque type"
	case Class:
		return "class"
	case Struct:
		return "struct"
	case Enum:
		return "enum"
	default:
		return fmt.Sprintf("unknown kind %d", uint8(k))
	}
}

// ContextDescriptorFlags is the flags word of every context descriptor.
type ContextDescriptorFlags uint32

func (f ContextDescriptorFlags) Kind() ContextDescriptorKind {
	return ContextDescriptorKind(f & 0x1F)
}
func (f ContextDescriptorFlags) IsGeneric() bool { return f&0x80 != 0 }
func (f ContextDescriptorFlags) IsUnique() bool  { return f&0x40 != 0 }
func (f ContextDescriptorFlags) KindSpecific() uint16 {
	return uint16(f >> 16 & 0xFFFF)
}

func (f ContextDescriptorFlags) String() string {
	return fmt.Sprintf("kind: %s, generic: %t, unique: %t", f.Kind(), f.IsGeneric(), f.IsUnique())
}

// TargetContextDescriptor is the on-disk header shared by all type context
// descriptors. All pointer-ish fields are 32-bit relative offsets.
type TargetContextDescriptor struct {
	Flags           ContextDescriptorFlags
	Parent          int32
	Name            int32
	AccessFunction  int32
	FieldDescriptor int32
}

// TargetStructDescriptor trails the common header for structs.
type TargetStructDescriptor struct {
	NumFields               uint32
	FieldOffsetVectorOffset uint32
}

// TargetEnumDescriptor trails the common header for enums.
type TargetEnumDescriptor struct {
	NumPayloadCasesAndPayloadSizeOffset uint32
	NumEmptyCases                       uint32
}

// TargetClassDescriptor trails the common header for classes.
type TargetClassDescriptor struct {
	SuperclassType              int32
	MetadataNegativeSizeInWords uint32
	MetadataPositiveSizeInWords uint32
	NumImmediateMembers         uint32
	NumFields                   uint32
	FieldOffsetVectorOffset     uint32
}

// TargetGenericContextDescriptorHeader trails a generic descriptor.
type TargetGenericContextDescriptorHeader struct {
	NumParams         uint16
	NumRequirements   uint16
	NumKeyArguments   uint16
	NumExtraArguments uint16
}

// FieldDescriptorKind tags a field descriptor in __swift5_fieldmd.
type FieldDescriptorKind uint16

const (
	FieldStruct FieldDescriptorKind = iota
	FieldClass
	FieldEnum
	FieldMultiPayloadEnum
	FieldProtocol
	FieldClassProtocol
	FieldObjCProtocol
	FieldObjCClass
)

func (k FieldDescriptorKind) String() string {
	switch k {
	case FieldStruct:
		return "struct"
	case FieldClass:
		return "class"
	case FieldEnum:
		return "enum"
	case FieldMultiPayloadEnum:
		return "multi-payload enum"
	case FieldProtocol:
		return "protocol"
	case FieldClassProtocol:
		return "class protocol"
	case FieldObjCProtocol:
		return "objc protocol"
	case FieldObjCClass:
		return "objc class"
	default:
		return fmt.Sprintf("unknown kind %d", uint16(k))
	}
}

// FieldDescriptorHeader is the on-disk field descriptor header.
type FieldDescriptorHeader struct {
	MangledTypeName int32
	Superclass      int32
	Kind            FieldDescriptorKind
	FieldRecordSize uint16
	NumFields       uint32
}

// FieldRecordT is one on-disk field record.
type FieldRecordT struct {
	Flags           FieldRecordFlags
	MangledTypeName int32
	FieldName       int32
}

type FieldRecordFlags uint32

const (
	IsIndirectCase FieldRecordFlags = 0x1 // indirect enum case
	IsVar          FieldRecordFlags = 0x2 // mutable var property
	IsArtificial   FieldRecordFlags = 0x4
)

func (f FieldRecordFlags) IsVar() bool { return f&IsVar != 0 }

// A FieldRecord is an extracted field.
type FieldRecord struct {
	Name        string
	MangledType string // demangler-ready; symbolic references already resolved
	Flags       FieldRecordFlags
}

// A FieldDescriptor is an extracted field descriptor.
type FieldDescriptor struct {
	MangledTypeName string
	Superclass      string
	Kind            FieldDescriptorKind
	Records         []FieldRecord
	Offset          int64 // file offset the descriptor was read from
	FieldDescriptorHeader
}

// A TypeDescriptor is an extracted nominal type.
type TypeDescriptor struct {
	Kind        ContextDescriptorKind
	Name        string
	Parent      string // dotted context path (Module.Outer)
	MangledName string
	Fields      *FieldDescriptor
	// SuperclassMangled is the class superclass type reference, when present.
	SuperclassMangled string
	GenericParams     int
	Offset            int64
	TargetContextDescriptor
}

// FullName returns Module.Outer...Name.
func (t TypeDescriptor) FullName() string {
	if t.Parent != "" {
		return t.Parent + "." + t.Name
	}
	return t.Name
}

// ProtocolDescriptor is the on-disk protocol descriptor in __swift5_protos.
type ProtocolDescriptor struct {
	Flags                      uint32
	Parent                     int32
	Name                       int32
	NumRequirementsInSignature uint32
	NumRequirements            uint32
	AssociatedTypeNames        int32
}

// A Protocol is an extracted Swift protocol. Requirement kinds beyond the
// counts are not decoded.
type Protocol struct {
	Name                string
	Parent              string
	AssociatedTypeNames string
	ProtocolDescriptor
}

// ConformanceDescriptor is the on-disk record in __swift5_proto.
type ConformanceDescriptor struct {
	ProtocolRef          int32
	TypeRef              int32
	WitnessTablePattern  int32
	Flags                uint32
}

// A Conformance is an extracted protocol conformance.
type Conformance struct {
	Protocol string
	TypeName string
	ConformanceDescriptor
}

// Symbolic reference control bytes embedded in mangled name buffers.
const (
	SymbolicRefDirect       = 0x01 // directly to a context descriptor
	SymbolicRefIndirect     = 0x02 // via a GOT-style pointer slot
	SymbolicRefObjCProtocol = 0x09 // direct to an ObjC protocol name
	SymbolicRefMax          = 0x17
)

// MANGLING_MODULE_OBJC is the module name used for imported ObjC contexts.
const MANGLING_MODULE_OBJC = "__C"
