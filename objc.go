package macho

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/apex/log"

	"github.com/appsworld/go-classdump/types"
	"github.com/appsworld/go-classdump/types/objc"
)

// maxPlausibleCount bounds list counts read out of metadata; anything larger
// than this fixed bound is treated as corruption, not allocated.
const maxPlausibleCount = 0x100000

// HasObjC returns true if the image contains a __objc_imageinfo section.
func (f *File) HasObjC() bool {
	for _, s := range f.Segments() {
		if strings.HasPrefix(s.Name, "__DATA") {
			if sec := f.Section(s.Name, "__objc_imageinfo"); sec != nil {
				return true
			}
		}
	}
	if f.CPU == types.CPU386 {
		if sec := f.Section("__OBJC", "__image_info"); sec != nil {
			return true
		}
	}
	return false
}

// HasPlusLoadMethod returns true if the image registers non-lazy classes or
// categories (+load implementations).
func (f *File) HasPlusLoadMethod() bool {
	for _, s := range f.Segments() {
		if strings.HasPrefix(s.Name, "__DATA") {
			if sec := f.Section(s.Name, "__objc_nlclslist"); sec != nil {
				return true
			}
			if sec := f.Section(s.Name, "__objc_nlcatlist"); sec != nil {
				return true
			}
		}
	}
	return false
}

// GetObjCImageInfo returns the parsed __objc_imageinfo data.
func (f *File) GetObjCImageInfo() (*objc.ImageInfo, error) {
	for _, s := range f.Segments() {
		if strings.HasPrefix(s.Name, "__DATA") {
			if sec := f.Section(s.Name, "__objc_imageinfo"); sec != nil {
				dat, err := sec.Data()
				if err != nil {
					return nil, fmt.Errorf("failed to read %s.%s data: %v", sec.Seg, sec.Name, err)
				}
				var imgInfo objc.ImageInfo
				if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &imgInfo); err != nil {
					return nil, fmt.Errorf("failed to read %T: %v", imgInfo, err)
				}
				return &imgInfo, nil
			}
		}
	}
	return nil, fmt.Errorf("macho does not contain __objc_imageinfo section: %w", ErrObjcSectionNotFound)
}

// GetObjCToc counts the ObjC entries advertised by the image's sections.
func (f *File) GetObjCToc() objc.Toc {
	var toc objc.Toc
	for _, sec := range f.Sections {
		if strings.HasPrefix(sec.Seg, "__DATA") {
			switch sec.Name {
			case "__objc_classlist":
				toc.ClassList = sec.Size / f.pointerSize()
			case "__objc_nlclslist":
				toc.NonLazyClassList = sec.Size / f.pointerSize()
			case "__objc_catlist":
				toc.CatList = sec.Size / f.pointerSize()
			case "__objc_protolist":
				toc.ProtoList = sec.Size / f.pointerSize()
			case "__objc_selrefs":
				toc.SelRefs = sec.Size / f.pointerSize()
			}
		}
	}
	return toc
}

// sectionPointers reads a __DATA* section as an array of raw pointer words.
func (f *File) sectionPointers(sectionName string) ([]uint64, error) {
	var ptrs []uint64
	for _, s := range f.Segments() {
		if !strings.HasPrefix(s.Name, "__DATA") {
			continue
		}
		sec := f.Section(s.Name, sectionName)
		if sec == nil {
			continue
		}
		dat, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s.%s data: %v", sec.Seg, sec.Name, err)
		}
		r := bytes.NewReader(dat)
		for i := uint64(0); i < sec.Size/f.pointerSize(); i++ {
			if f.is64bit() {
				var p uint64
				if err := binary.Read(r, f.ByteOrder, &p); err != nil {
					return nil, fmt.Errorf("failed to read %s pointers: %v", sec.Name, err)
				}
				ptrs = append(ptrs, p)
			} else {
				var p uint32
				if err := binary.Read(r, f.ByteOrder, &p); err != nil {
					return nil, fmt.Errorf("failed to read %s pointers: %v", sec.Name, err)
				}
				ptrs = append(ptrs, uint64(p))
			}
		}
	}
	return ptrs, nil
}

// GetObjCClasses returns the classes listed in __objc_classlist.
// Malformed individual records are skipped with a warning.
func (f *File) GetObjCClasses() ([]*objc.Class, error) {
	return f.getObjCClassList("__objc_classlist")
}

// GetObjCNonLazyClasses returns the classes that implement +load.
func (f *File) GetObjCNonLazyClasses() ([]*objc.Class, error) {
	return f.getObjCClassList("__objc_nlclslist")
}

func (f *File) getObjCClassList(sectionName string) ([]*objc.Class, error) {
	ptrs, err := f.sectionPointers(sectionName)
	if err != nil {
		return nil, err
	}

	var classes []*objc.Class
	for _, ptr := range ptrs {
		ptr = f.convert(ptr)
		class, err := f.GetObjCClass(ptr)
		if err != nil {
			log.WithError(err).Warnf("skipping objc_class_t at vmaddr %#x", ptr)
			continue
		}
		classes = append(classes, class)
	}
	return classes, nil
}

// GetObjCClass parses an Objective-C class at a given virtual memory address.
func (f *File) GetObjCClass(vmaddr uint64) (*objc.Class, error) {
	if c, ok := f.objc[vmaddr]; ok {
		return c, nil
	}
	// break isa/superclass cycles before descending
	f.objc[vmaddr] = &objc.Class{ClassPtr: vmaddr}

	c, err := f.parseObjCClass(vmaddr)
	if err != nil {
		delete(f.objc, vmaddr)
		return nil, err
	}
	*f.objc[vmaddr] = *c
	return f.objc[vmaddr], nil
}

func (f *File) parseObjCClass(vmaddr uint64) (*objc.Class, error) {
	off, err := f.GetOffset(vmaddr)
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}

	var classPtr objc.ObjcClass64
	if f.is64bit() {
		dat, err := f.ReadAtOffset(off, uint64(binary.Size(classPtr)))
		if err != nil {
			return nil, err
		}
		if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &classPtr); err != nil {
			return nil, fmt.Errorf("failed to read objc_class_t: %v", err)
		}
	} else {
		var c32 objc.ObjcClassT
		dat, err := f.ReadAtOffset(off, uint64(binary.Size(c32)))
		if err != nil {
			return nil, err
		}
		if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &c32); err != nil {
			return nil, fmt.Errorf("failed to read objc_class_t: %v", err)
		}
		classPtr = objc.ObjcClass64{
			IsaVMAddr:              uint64(c32.IsaVMAddr),
			SuperclassVMAddr:       uint64(c32.SuperclassVMAddr),
			DataVMAddrAndFastFlags: uint64(c32.DataVMAddrAndFastFlags),
		}
	}

	dataMask := uint64(objc.FAST_DATA_MASK64)
	if !f.is64bit() {
		dataMask = objc.FAST_DATA_MASK
	}
	dataVMAddr := f.convert(classPtr.DataVMAddrAndFastFlags) & dataMask

	info, err := f.getObjCClassInfo(dataVMAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to get class_ro_t at vmaddr %#x: %v", dataVMAddr, err)
	}

	name, err := f.GetCString(f.convert(info.NameVMAddr))
	if err != nil {
		return nil, fmt.Errorf("failed to read class name cstring: %v", err)
	}
	if !utf8.ValidString(name) {
		return nil, fmt.Errorf("class name at %#x is not valid UTF-8: %w", info.NameVMAddr, ErrCorruptMetadata)
	}

	c := &objc.Class{
		Name:          name,
		ClassPtr:      vmaddr,
		InstanceStart: info.InstanceStart,
		InstanceSize:  info.InstanceSize,
		IsSwiftLegacy: classPtr.DataVMAddrAndFastFlags&objc.FAST_IS_SWIFT_LEGACY != 0,
		IsSwiftStable: classPtr.DataVMAddrAndFastFlags&objc.FAST_IS_SWIFT_STABLE != 0,
		HasLoad:       info.Flags.HasLoadMethod(),
		ReadOnlyData:  *info,
	}

	if info.BaseMethodsVMAddr > 0 {
		c.InstanceMethods, err = f.GetObjCMethods(f.convert(info.BaseMethodsVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to get methods at vmaddr %#x: %v", info.BaseMethodsVMAddr, err)
		}
	}
	if info.BaseProtocolsVMAddr > 0 {
		c.Protocols, err = f.parseObjCProtocolList(f.convert(info.BaseProtocolsVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read protocol list: %v", err)
		}
	}
	if info.IvarsVMAddr > 0 {
		c.Ivars, err = f.GetObjCIvars(f.convert(info.IvarsVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to get ivars at vmaddr %#x: %v", info.IvarsVMAddr, err)
		}
	}
	if info.BasePropertiesVMAddr > 0 {
		c.Properties, err = f.GetObjCProperties(f.convert(info.BasePropertiesVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to get props at vmaddr %#x: %v", info.BasePropertiesVMAddr, err)
		}
	}

	if classPtr.SuperclassVMAddr > 0 && !info.Flags.IsRoot() {
		c.SuperClass = f.resolveClassRef(classPtr.SuperclassVMAddr)
	}

	// the metaclass hangs off isa and carries the class methods
	if classPtr.IsaVMAddr > 0 && !info.Flags.IsMeta() {
		isaRef := f.resolveClassRef(classPtr.IsaVMAddr)
		c.Isa = isaRef.Name
		if !isaRef.IsExternal() && isaRef.Address != 0 {
			if meta, err := f.GetObjCClass(isaRef.Address); err == nil {
				if meta.ReadOnlyData.Flags.IsMeta() {
					c.ClassMethods = meta.InstanceMethods
				}
			} else {
				log.WithError(err).Debugf("failed to read metaclass for %s", name)
			}
		}
	}

	return c, nil
}

// resolveClassRef interprets a raw class-reference word: binds become
// external names with address zero, rebases become local references.
func (f *File) resolveClassRef(raw uint64) objc.EntityRef {
	if d, err := f.DecodePointer(raw); err == nil && d.Bind {
		if dcf, err := f.DyldChainedFixups(); err == nil {
			if name, err := dcf.SymbolName(d.Ordinal); err == nil {
				return objc.EntityRef{Name: objc.StripClassSymbolPrefix(name)}
			}
		}
		return objc.EntityRef{}
	}
	addr := f.convert(raw)
	if c, err := f.GetObjCClass(addr); err == nil {
		return objc.EntityRef{Name: c.Name, Address: addr}
	}
	// a local address that parses as no class: report unresolved, keep going
	if name, err := f.GetBindName(raw); err == nil {
		return objc.EntityRef{Name: objc.StripClassSymbolPrefix(name)}
	}
	return objc.EntityRef{Address: addr}
}

func (f *File) getObjCClassInfo(vmaddr uint64) (*objc.ClassRO64, error) {
	off, err := f.GetOffset(vmaddr)
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}

	if f.is64bit() {
		var ro objc.ClassRO64
		dat, err := f.ReadAtOffset(off, uint64(binary.Size(ro)))
		if err != nil {
			return nil, err
		}
		if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &ro); err != nil {
			return nil, fmt.Errorf("failed to read class_ro_t: %v", err)
		}
		ro.NameVMAddr = f.convert(ro.NameVMAddr)
		ro.BaseMethodsVMAddr = f.convert(ro.BaseMethodsVMAddr)
		ro.BaseProtocolsVMAddr = f.convert(ro.BaseProtocolsVMAddr)
		ro.IvarsVMAddr = f.convert(ro.IvarsVMAddr)
		ro.BasePropertiesVMAddr = f.convert(ro.BasePropertiesVMAddr)
		return &ro, nil
	}

	var ro32 objc.ClassRO
	dat, err := f.ReadAtOffset(off, uint64(binary.Size(ro32)))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &ro32); err != nil {
		return nil, fmt.Errorf("failed to read class_ro_t: %v", err)
	}
	return &objc.ClassRO64{
		Flags:                ro32.Flags,
		InstanceStart:        ro32.InstanceStart,
		InstanceSize:         uint64(ro32.InstanceSize),
		NameVMAddr:           uint64(ro32.NameVMAddr),
		BaseMethodsVMAddr:    uint64(ro32.BaseMethodsVMAddr),
		BaseProtocolsVMAddr:  uint64(ro32.BaseProtocolsVMAddr),
		IvarsVMAddr:          uint64(ro32.IvarsVMAddr),
		BasePropertiesVMAddr: uint64(ro32.BasePropertiesVMAddr),
	}, nil
}

// GetObjCMethods reads a method_list_t at a virtual address.
func (f *File) GetObjCMethods(vmaddr uint64) ([]objc.Method, error) {
	off, err := f.GetOffset(vmaddr)
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}

	var hdr objc.MethodListHeader
	dat, err := f.ReadAtOffset(off, uint64(binary.Size(hdr)))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read method_list_t: %v", err)
	}
	if hdr.Count > maxPlausibleCount {
		return nil, fmt.Errorf("method count %d at %#x: %w", hdr.Count, vmaddr, ErrCorruptMetadata)
	}

	if hdr.IsSmall() {
		return f.readSmallMethods(hdr, off+uint64(binary.Size(hdr)))
	}
	return f.readBigMethods(hdr, off+uint64(binary.Size(hdr)))
}

// readSmallMethods reads the 32-bit relative method entries. Each field's
// offset is relative to the address of the field itself. The selector field
// normally points at a selector-reference slot (followed one hop); images in
// the dyld shared cache carry direct offsets against the preoptimized table.
func (f *File) readSmallMethods(hdr objc.MethodListHeader, off uint64) ([]objc.Method, error) {
	entries := make([]objc.RelativeMethodT, hdr.Count)
	dat, err := f.ReadAtOffset(off, uint64(binary.Size(objc.RelativeMethodT{}))*uint64(hdr.Count))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &entries); err != nil {
		return nil, fmt.Errorf("failed to read relative method_t entries: %v", err)
	}

	var methods []objc.Method
	currOffset := int64(off)
	for _, m := range entries {
		var meth objc.Method

		switch {
		case f.Flags.DylibInCache() || hdr.UsesDirectSelectors():
			if f.relativeSelectorBase > 0 {
				meth.NameVMAddr = f.relativeSelectorBase + uint64(m.NameOffset)
			} else {
				// without the preoptimized selector table the index cannot
				// be resolved; keep the method, mark the selector
				meth.Name = objc.UnresolvedSelector
			}
		default:
			// the name field points at a selref slot holding the selector pointer
			selRefOff := currOffset + int64(m.NameOffset)
			nameVMAddr, err := f.readPointerAtOffset(uint64(selRefOff))
			if err != nil {
				return nil, fmt.Errorf("failed to read selector ref (small): %v", err)
			}
			meth.NameVMAddr = f.convert(nameVMAddr)
		}

		if meth.Name == "" {
			n, err := f.GetCString(f.convert(meth.NameVMAddr))
			if err != nil {
				return nil, fmt.Errorf("failed to read method name cstring: %v", err)
			}
			meth.Name = n
		}

		typesOff := currOffset + 4 + int64(m.TypesOffset)
		typesVMAddr, err := f.GetVMAddress(uint64(typesOff))
		if err != nil {
			return nil, fmt.Errorf("failed to convert offset %#x to vmaddr: %v", typesOff, err)
		}
		meth.TypesVMAddr = typesVMAddr
		meth.Types, err = f.GetCStringAtOffset(typesOff)
		if err != nil {
			return nil, fmt.Errorf("failed to read method types cstring: %v", err)
		}

		impOff := currOffset + 8 + int64(m.ImpOffset)
		if impVMAddr, err := f.GetVMAddress(uint64(impOff)); err == nil {
			meth.ImpVMAddr = impVMAddr
		}

		if strings.IndexByte(meth.Name, 0) >= 0 {
			return nil, fmt.Errorf("selector with interior NUL at %#x: %w", currOffset, ErrCorruptMetadata)
		}

		currOffset += int64(hdr.EntSize())
		if hdr.EntSize() == 0 {
			currOffset += int64(binary.Size(objc.RelativeMethodT{}))
		}
		methods = append(methods, meth)
	}
	return methods, nil
}

func (f *File) readBigMethods(hdr objc.MethodListHeader, off uint64) ([]objc.Method, error) {
	var methods []objc.Method

	if f.is64bit() {
		entries := make([]objc.MethodT, hdr.Count)
		dat, err := f.ReadAtOffset(off, uint64(binary.Size(objc.MethodT{}))*uint64(hdr.Count))
		if err != nil {
			return nil, err
		}
		if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &entries); err != nil {
			return nil, fmt.Errorf("failed to read method_t entries: %v", err)
		}
		for _, m := range entries {
			meth, err := f.finishBigMethod(f.convert(m.NameVMAddr), f.convert(m.TypesVMAddr), f.convert(m.ImpVMAddr))
			if err != nil {
				return nil, err
			}
			methods = append(methods, meth)
		}
		return methods, nil
	}

	type methodT32 struct{ Name, Types, Imp uint32 }
	entries := make([]methodT32, hdr.Count)
	dat, err := f.ReadAtOffset(off, 12*uint64(hdr.Count))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &entries); err != nil {
		return nil, fmt.Errorf("failed to read method_t entries: %v", err)
	}
	for _, m := range entries {
		meth, err := f.finishBigMethod(uint64(m.Name), uint64(m.Types), uint64(m.Imp))
		if err != nil {
			return nil, err
		}
		methods = append(methods, meth)
	}
	return methods, nil
}

func (f *File) finishBigMethod(nameVMAddr, typesVMAddr, impVMAddr uint64) (objc.Method, error) {
	n, err := f.GetCString(nameVMAddr)
	if err != nil {
		return objc.Method{}, fmt.Errorf("failed to read method name cstring: %v", err)
	}
	t, err := f.GetCString(typesVMAddr)
	if err != nil {
		return objc.Method{}, fmt.Errorf("failed to read method types cstring: %v", err)
	}
	return objc.Method{
		Name:        n,
		Types:       t,
		NameVMAddr:  nameVMAddr,
		TypesVMAddr: typesVMAddr,
		ImpVMAddr:   impVMAddr,
	}, nil
}

// GetObjCIvars reads an ivar_list_t at a virtual address.
func (f *File) GetObjCIvars(vmaddr uint64) ([]objc.Ivar, error) {
	off, err := f.GetOffset(vmaddr)
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}

	var hdr objc.IvarListHeader
	dat, err := f.ReadAtOffset(off, uint64(binary.Size(hdr)))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read ivar_list_t: %v", err)
	}
	if hdr.Count > maxPlausibleCount {
		return nil, fmt.Errorf("ivar count %d at %#x: %w", hdr.Count, vmaddr, ErrCorruptMetadata)
	}

	ivs := make([]objc.IvarT, hdr.Count)
	dat, err = f.ReadAtOffset(off+uint64(binary.Size(hdr)), uint64(binary.Size(objc.IvarT{}))*uint64(hdr.Count))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &ivs); err != nil {
		return nil, fmt.Errorf("failed to read ivar_t entries: %v", err)
	}

	var ivars []objc.Ivar
	for _, iv := range ivs {
		iv.Offset = f.convert(iv.Offset)
		iv.NameVMAddr = f.convert(iv.NameVMAddr)
		iv.TypesVMAddr = f.convert(iv.TypesVMAddr)

		var runtimeOffset uint32
		if iv.Offset > 0 {
			slotOff, err := f.GetOffset(iv.Offset)
			if err != nil {
				return nil, fmt.Errorf("failed to convert ivar offset slot vmaddr: %v", err)
			}
			slot, err := f.ReadAtOffset(slotOff, 4)
			if err != nil {
				return nil, err
			}
			runtimeOffset = f.ByteOrder.Uint32(slot)
		}

		n, err := f.GetCString(iv.NameVMAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to read ivar name cstring: %v", err)
		}
		t, err := f.GetCString(iv.TypesVMAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to read ivar types cstring: %v", err)
		}
		ivars = append(ivars, objc.Ivar{
			Name:   n,
			Type:   t,
			Offset: runtimeOffset,
			IvarT:  iv,
		})
	}
	return ivars, nil
}

// GetObjCProperties reads an objc_property_list at a virtual address.
func (f *File) GetObjCProperties(vmaddr uint64) ([]objc.Property, error) {
	off, err := f.GetOffset(vmaddr)
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}

	var hdr objc.PropertyListHeader
	dat, err := f.ReadAtOffset(off, uint64(binary.Size(hdr)))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read objc_property_list: %v", err)
	}
	if hdr.Count > maxPlausibleCount {
		return nil, fmt.Errorf("property count %d at %#x: %w", hdr.Count, vmaddr, ErrCorruptMetadata)
	}

	props := make([]objc.PropertyT, hdr.Count)
	dat, err = f.ReadAtOffset(off+uint64(binary.Size(hdr)), uint64(binary.Size(objc.PropertyT{}))*uint64(hdr.Count))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &props); err != nil {
		return nil, fmt.Errorf("failed to read objc_property_t entries: %v", err)
	}

	var properties []objc.Property
	for _, prop := range props {
		name, err := f.GetCString(f.convert(prop.NameVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read property name cstring: %v", err)
		}
		attrib, err := f.GetCString(f.convert(prop.AttributesVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read property attributes cstring: %v", err)
		}
		properties = append(properties, objc.Property{
			Name:       name,
			Attributes: attrib,
			PropertyT:  prop,
		})
	}
	return properties, nil
}

func (f *File) parseObjCProtocolList(vmaddr uint64) ([]objc.Protocol, error) {
	off, err := f.GetOffset(vmaddr)
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}

	var count uint64
	if f.is64bit() {
		dat, err := f.ReadAtOffset(off, 8)
		if err != nil {
			return nil, err
		}
		count = f.ByteOrder.Uint64(dat)
	} else {
		dat, err := f.ReadAtOffset(off, 4)
		if err != nil {
			return nil, err
		}
		count = uint64(f.ByteOrder.Uint32(dat))
	}
	if count > maxPlausibleCount {
		return nil, fmt.Errorf("protocol count %d at %#x: %w", count, vmaddr, ErrCorruptMetadata)
	}

	var protocols []objc.Protocol
	for i := uint64(0); i < count; i++ {
		ptr, err := f.readPointerAtOffset(off + f.pointerSize() + i*f.pointerSize())
		if err != nil {
			return nil, err
		}
		proto, err := f.getObjCProtocol(f.convert(ptr))
		if err != nil {
			log.WithError(err).Warnf("skipping protocol at %#x", ptr)
			continue
		}
		protocols = append(protocols, *proto)
	}
	return protocols, nil
}

func (f *File) getObjCProtocol(vmaddr uint64) (*objc.Protocol, error) {
	off, err := f.GetOffset(vmaddr)
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}

	var protoPtr objc.ProtocolT
	dat, err := f.ReadAtOffset(off, uint64(binary.Size(protoPtr)))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &protoPtr); err != nil {
		return nil, fmt.Errorf("failed to read protocol_t: %v", err)
	}

	proto := &objc.Protocol{Ptr: vmaddr, ProtocolT: protoPtr}

	if protoPtr.NameVMAddr > 0 {
		proto.Name, err = f.GetCString(f.convert(protoPtr.NameVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read protocol name cstring: %v", err)
		}
	}
	if protoPtr.ProtocolsVMAddr > 0 {
		proto.Parents, err = f.parseObjCProtocolList(f.convert(protoPtr.ProtocolsVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read parent protocols: %v", err)
		}
	}
	if protoPtr.InstanceMethodsVMAddr > 0 {
		proto.InstanceMethods, err = f.GetObjCMethods(f.convert(protoPtr.InstanceMethodsVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read instance methods: %v", err)
		}
	}
	if protoPtr.ClassMethodsVMAddr > 0 {
		proto.ClassMethods, err = f.GetObjCMethods(f.convert(protoPtr.ClassMethodsVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read class methods: %v", err)
		}
	}
	if protoPtr.OptionalInstanceMethodsVMAddr > 0 {
		proto.OptionalInstanceMethods, err = f.GetObjCMethods(f.convert(protoPtr.OptionalInstanceMethodsVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read optional instance methods: %v", err)
		}
	}
	if protoPtr.OptionalClassMethodsVMAddr > 0 {
		proto.OptionalClassMethods, err = f.GetObjCMethods(f.convert(protoPtr.OptionalClassMethodsVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read optional class methods: %v", err)
		}
	}
	if protoPtr.InstancePropertiesVMAddr > 0 {
		proto.Properties, err = f.GetObjCProperties(f.convert(protoPtr.InstancePropertiesVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read properties: %v", err)
		}
	}
	if protoPtr.ExtendedMethodTypesVMAddr > 0 {
		// one char* per method, concatenated across the four lists
		nmeth := len(proto.Methods())
		extOff, err := f.GetOffset(f.convert(protoPtr.ExtendedMethodTypesVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to convert extended method types vmaddr: %v", err)
		}
		for i := 0; i < nmeth; i++ {
			strPtr, err := f.readPointerAtOffset(extOff + uint64(i)*f.pointerSize())
			if err != nil {
				break
			}
			ext, err := f.GetCString(f.convert(strPtr))
			if err != nil {
				break
			}
			proto.ExtendedMethodTypes = append(proto.ExtendedMethodTypes, ext)
		}
	}
	if protoPtr.DemangledNameVMAddr > 0 {
		proto.DemangledName, err = f.GetCString(f.convert(protoPtr.DemangledNameVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read demangled name cstring: %v", err)
		}
	}

	return proto, nil
}

// GetObjCProtocols returns the protocols listed in __objc_protolist.
func (f *File) GetObjCProtocols() ([]objc.Protocol, error) {
	ptrs, err := f.sectionPointers("__objc_protolist")
	if err != nil {
		return nil, err
	}

	var protocols []objc.Protocol
	for _, ptr := range ptrs {
		proto, err := f.getObjCProtocol(f.convert(ptr))
		if err != nil {
			log.WithError(err).Warnf("skipping protocol_t at vmaddr %#x", ptr)
			continue
		}
		protocols = append(protocols, *proto)
	}
	return protocols, nil
}

// GetObjCCategories returns the categories listed in __objc_catlist.
func (f *File) GetObjCCategories() ([]objc.Category, error) {
	ptrs, err := f.sectionPointers("__objc_catlist")
	if err != nil {
		return nil, err
	}

	var categories []objc.Category
	for _, ptr := range ptrs {
		ptr = f.convert(ptr)
		cat, err := f.getObjCCategory(ptr)
		if err != nil {
			log.WithError(err).Warnf("skipping category_t at vmaddr %#x", ptr)
			continue
		}
		categories = append(categories, *cat)
	}
	return categories, nil
}

func (f *File) getObjCCategory(vmaddr uint64) (*objc.Category, error) {
	off, err := f.GetOffset(vmaddr)
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}

	var catPtr objc.CategoryT
	dat, err := f.ReadAtOffset(off, uint64(binary.Size(catPtr)))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &catPtr); err != nil {
		return nil, fmt.Errorf("failed to read category_t: %v", err)
	}

	cat := &objc.Category{VMAddr: vmaddr, CategoryT: catPtr}

	cat.Name, err = f.GetCString(f.convert(catPtr.NameVMAddr))
	if err != nil {
		return nil, fmt.Errorf("failed to read category name cstring: %v", err)
	}
	if catPtr.ClsVMAddr > 0 {
		cat.Class = f.resolveClassRef(catPtr.ClsVMAddr)
	}
	if catPtr.InstanceMethodsVMAddr > 0 {
		cat.InstanceMethods, err = f.GetObjCMethods(f.convert(catPtr.InstanceMethodsVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read category instance methods: %v", err)
		}
	}
	if catPtr.ClassMethodsVMAddr > 0 {
		cat.ClassMethods, err = f.GetObjCMethods(f.convert(catPtr.ClassMethodsVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read category class methods: %v", err)
		}
	}
	if catPtr.ProtocolsVMAddr > 0 {
		cat.Protocols, err = f.parseObjCProtocolList(f.convert(catPtr.ProtocolsVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read category protocols: %v", err)
		}
	}
	if catPtr.InstancePropertiesVMAddr > 0 {
		cat.Properties, err = f.GetObjCProperties(f.convert(catPtr.InstancePropertiesVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read category properties: %v", err)
		}
	}
	return cat, nil
}

// GetObjCSelectorReferences returns selector references by section slot address.
func (f *File) GetObjCSelectorReferences() (map[uint64]*objc.Selector, error) {
	selRefs := make(map[uint64]*objc.Selector)
	for _, s := range f.Segments() {
		if !strings.HasPrefix(s.Name, "__DATA") {
			continue
		}
		sec := f.Section(s.Name, "__objc_selrefs")
		if sec == nil {
			continue
		}
		dat, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s.%s data: %v", sec.Seg, sec.Name, err)
		}
		r := bytes.NewReader(dat)
		for idx := uint64(0); idx < sec.Size/f.pointerSize(); idx++ {
			var sel uint64
			if f.is64bit() {
				if err := binary.Read(r, f.ByteOrder, &sel); err != nil {
					return nil, err
				}
			} else {
				var s32 uint32
				if err := binary.Read(r, f.ByteOrder, &s32); err != nil {
					return nil, err
				}
				sel = uint64(s32)
			}
			sel = f.convert(sel)
			selName, err := f.GetCString(sel)
			if err != nil {
				return nil, fmt.Errorf("failed to read selector name cstring: %v", err)
			}
			selRefs[sec.Addr+idx*f.pointerSize()] = &objc.Selector{VMAddr: sel, Name: selName}
		}
	}
	return selRefs, nil
}
