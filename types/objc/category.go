package objc

import "fmt"

// A CategoryT is the on-disk category_t for 64-bit images.
type CategoryT struct {
	NameVMAddr               uint64
	ClsVMAddr                uint64
	InstanceMethodsVMAddr    uint64
	ClassMethodsVMAddr       uint64
	ProtocolsVMAddr          uint64
	InstancePropertiesVMAddr uint64
}

// A Category is an extracted Objective-C category. It references its target
// class but does not own it.
type Category struct {
	Name            string
	Class           EntityRef
	InstanceMethods []Method
	ClassMethods    []Method
	Properties      []Property
	Protocols       []Protocol

	VMAddr uint64
	CategoryT
}

// SortLists orders instance and class methods by name for deterministic
// output; properties keep their metadata order.
func (c *Category) SortLists() {
	sortMethods(c.InstanceMethods)
	sortMethods(c.ClassMethods)
}

func (c *Category) String() string {
	return fmt.Sprintf("@interface %s (%s)", c.Class.Name, c.Name)
}
