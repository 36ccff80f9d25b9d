package objc

import "fmt"

// A ProtocolList is a protocol_list_t: a count followed by that many pointers.
type ProtocolList struct {
	Count     uint64
	Protocols []uint64
}

// A ProtocolT is the on-disk protocol_t for 64-bit images.
type ProtocolT struct {
	IsaVMAddr                     uint64
	NameVMAddr                    uint64
	ProtocolsVMAddr               uint64
	InstanceMethodsVMAddr         uint64
	ClassMethodsVMAddr            uint64
	OptionalInstanceMethodsVMAddr uint64
	OptionalClassMethodsVMAddr    uint64
	InstancePropertiesVMAddr      uint64
	Size                          uint32
	Flags                         uint32
	// ExtendedMethodTypesVMAddr points at an array of char* carrying richer
	// signatures (full block types) for every method above, in order.
	ExtendedMethodTypesVMAddr uint64
	DemangledNameVMAddr       uint64
	ClassPropertiesVMAddr     uint64
}

// A Protocol is an extracted Objective-C protocol.
type Protocol struct {
	Name                    string
	Parents                 []Protocol
	InstanceMethods         []Method
	ClassMethods            []Method
	OptionalInstanceMethods []Method
	OptionalClassMethods    []Method
	Properties              []Property
	// ExtendedMethodTypes lines up with the concatenation of the four method
	// lists above, in that order.
	ExtendedMethodTypes []string
	DemangledName       string

	Ptr uint64
	ProtocolT
}

// ParentNames returns the names of inherited protocols.
func (p *Protocol) ParentNames() []string {
	names := make([]string, len(p.Parents))
	for i, parent := range p.Parents {
		names[i] = parent.Name
	}
	return names
}

// Methods returns all four method lists concatenated in extended-method-type
// order: required instance, required class, optional instance, optional class.
func (p *Protocol) Methods() []Method {
	out := make([]Method, 0, len(p.InstanceMethods)+len(p.ClassMethods)+
		len(p.OptionalInstanceMethods)+len(p.OptionalClassMethods))
	out = append(out, p.InstanceMethods...)
	out = append(out, p.ClassMethods...)
	out = append(out, p.OptionalInstanceMethods...)
	out = append(out, p.OptionalClassMethods...)
	return out
}

func (p *Protocol) String() string {
	return fmt.Sprintf("@protocol %s", p.Name)
}
