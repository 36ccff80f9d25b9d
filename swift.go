package macho

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/apex/log"

	"github.com/appsworld/go-classdump/types/objc"
	"github.com/appsworld/go-classdump/types/swift"
)

const sizeOfInt32 = 4

// maxParentDepth bounds context parent-chain walks against malformed graphs.
const maxParentDepth = 32

// HasSwift reports whether the image carries Swift 5 reflection metadata.
func (f *File) HasSwift() bool {
	return f.Section("__TEXT", "__swift5_types") != nil ||
		f.Section("__TEXT", "__swift5_fieldmd") != nil
}

// resolveRelative32 resolves a 32-bit signed relative displacement stored at
// fieldOffset. Every Swift relative pointer in the file goes through here; a
// result outside the file is an error, never followed.
func (f *File) resolveRelative32(fieldOffset int64, disp int32) (int64, error) {
	if disp == 0 {
		return 0, fmt.Errorf("null relative pointer at %#x: %w", fieldOffset, ErrUnresolvedReference)
	}
	target := fieldOffset + int64(disp)
	if target < 0 || target >= int64(len(f.data)) {
		return 0, fmt.Errorf("relative pointer at %#x escapes file (%#x): %w", fieldOffset, target, ErrUnresolvedReference)
	}
	return target, nil
}

// sectionRelOffsets reads a section as an array of 32-bit signed relative
// offsets and resolves each against its own position.
func (f *File) sectionRelOffsets(segment, section string) ([]int64, error) {
	sec := f.Section(segment, section)
	if sec == nil {
		return nil, fmt.Errorf("%s.%s: %w", segment, section, ErrSwiftSectionNotFound)
	}
	dat, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s: %v", segment, section, err)
	}
	relOffsets := make([]int32, len(dat)/sizeOfInt32)
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &relOffsets); err != nil {
		return nil, fmt.Errorf("failed to read relative offsets: %v", err)
	}

	var offsets []int64
	for idx, relOff := range relOffsets {
		off, err := f.resolveRelative32(int64(sec.Offset)+int64(idx*sizeOfInt32), relOff)
		if err != nil {
			log.WithError(err).Warnf("skipping %s[%d]", section, idx)
			continue
		}
		offsets = append(offsets, off)
	}
	return offsets, nil
}

// GetSwiftTypes parses the nominal type descriptors in __swift5_types.
func (f *File) GetSwiftTypes() ([]swift.TypeDescriptor, error) {
	offsets, err := f.sectionRelOffsets("__TEXT", "__swift5_types")
	if err != nil {
		return nil, err
	}

	var typs []swift.TypeDescriptor
	for _, off := range offsets {
		t, err := f.readSwiftType(off)
		if err != nil {
			log.WithError(err).Warnf("skipping swift type descriptor at %#x", off)
			continue
		}
		typs = append(typs, *t)
	}
	return typs, nil
}

func (f *File) readSwiftType(offset int64) (*swift.TypeDescriptor, error) {
	var desc swift.TargetContextDescriptor
	dat, err := f.ReadAtOffset(uint64(offset), uint64(binary.Size(desc)))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &desc); err != nil {
		return nil, fmt.Errorf("failed to read type context descriptor: %v", err)
	}

	t := &swift.TypeDescriptor{
		Kind:                    desc.Flags.Kind(),
		Offset:                  offset,
		TargetContextDescriptor: desc,
	}

	nameOff, err := f.resolveRelative32(offset+8, desc.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve type name: %v", err)
	}
	if t.Name, err = f.GetCStringAtOffset(nameOff); err != nil {
		return nil, fmt.Errorf("failed to read type name: %v", err)
	}

	if desc.Parent != 0 {
		if parentOff, err := f.resolveRelative32(offset+4, desc.Parent); err == nil {
			t.Parent = f.contextPath(parentOff, 0)
		}
	}

	if desc.FieldDescriptor != 0 {
		fdOff, err := f.resolveRelative32(offset+16, desc.FieldDescriptor)
		if err == nil {
			if fd, err := f.readFieldDescriptor(fdOff); err == nil {
				t.Fields = fd
			} else {
				log.WithError(err).Debugf("failed to read field descriptor for %s", t.Name)
			}
		}
	}

	trailing := offset + int64(binary.Size(desc))
	switch t.Kind {
	case swift.Class:
		var cd swift.TargetClassDescriptor
		if dat, err := f.ReadAtOffset(uint64(trailing), uint64(binary.Size(cd))); err == nil {
			if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &cd); err == nil && cd.SuperclassType != 0 {
				if superOff, err := f.resolveRelative32(trailing, cd.SuperclassType); err == nil {
					if super, err := f.readMangledName(superOff); err == nil {
						t.SuperclassMangled = super
					}
				}
			}
		}
	case swift.Struct, swift.Enum:
		// trailing counts are carried by the field descriptor already
	}

	if desc.Flags.IsGeneric() {
		var gh swift.TargetGenericContextDescriptorHeader
		// the generic header trails the kind-specific descriptor
		ghOff := trailing
		switch t.Kind {
		case swift.Class:
			ghOff += int64(binary.Size(swift.TargetClassDescriptor{}))
		case swift.Struct:
			ghOff += int64(binary.Size(swift.TargetStructDescriptor{}))
		case swift.Enum:
			ghOff += int64(binary.Size(swift.TargetEnumDescriptor{}))
		}
		if dat, err := f.ReadAtOffset(uint64(ghOff), uint64(binary.Size(gh))); err == nil {
			if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &gh); err == nil {
				t.GenericParams = int(gh.NumParams)
			}
		}
	}

	return t, nil
}

// contextPath walks a context descriptor's parent chain and returns the
// dotted Module.Outer...Inner path. Depth is bounded; cycles terminate.
func (f *File) contextPath(offset int64, depth int) string {
	if depth > maxParentDepth {
		return ""
	}

	var desc swift.TargetContextDescriptor
	dat, err := f.ReadAtOffset(uint64(offset), uint64(binary.Size(desc)))
	if err != nil {
		return ""
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &desc); err != nil {
		return ""
	}

	var name string
	switch desc.Flags.Kind() {
	case swift.Module, swift.ProtocolKind, swift.Class, swift.Struct, swift.Enum, swift.OpaqueType:
		if desc.Name != 0 {
			if nameOff, err := f.resolveRelative32(offset+8, desc.Name); err == nil {
				name, _ = f.GetCStringAtOffset(nameOff)
			}
		}
	case swift.Anonymous, swift.Extension:
		// anonymous contexts contribute no path component
	}

	var parent string
	if desc.Parent != 0 {
		if parentOff, err := f.resolveRelative32(offset+4, desc.Parent); err == nil {
			parent = f.contextPath(parentOff, depth+1)
		}
	}

	switch {
	case parent != "" && name != "":
		return parent + "." + name
	case name != "":
		return name
	default:
		return parent
	}
}

// GetSwiftFields parses every field descriptor in __swift5_fieldmd.
func (f *File) GetSwiftFields() ([]swift.FieldDescriptor, error) {
	sec := f.Section("__TEXT", "__swift5_fieldmd")
	if sec == nil {
		return nil, fmt.Errorf("__TEXT.__swift5_fieldmd: %w", ErrSwiftSectionNotFound)
	}
	dat, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read __swift5_fieldmd: %v", err)
	}

	var fields []swift.FieldDescriptor
	r := bytes.NewReader(dat)
	for {
		pos, _ := r.Seek(0, 1)
		if pos >= int64(len(dat)) {
			break
		}
		var hdr swift.FieldDescriptorHeader
		if err := binary.Read(r, f.ByteOrder, &hdr); err != nil {
			break
		}
		fd, err := f.finishFieldDescriptor(int64(sec.Offset)+pos, hdr, r)
		if err != nil {
			log.WithError(err).Warnf("skipping field descriptor at %#x", int64(sec.Offset)+pos)
			// resynchronize past this descriptor's records
			r.Seek(pos+int64(binary.Size(hdr))+int64(hdr.NumFields)*int64(hdr.FieldRecordSize), 0)
			continue
		}
		fields = append(fields, *fd)
	}
	return fields, nil
}

func (f *File) readFieldDescriptor(offset int64) (*swift.FieldDescriptor, error) {
	var hdr swift.FieldDescriptorHeader
	dat, err := f.ReadAtOffset(uint64(offset), uint64(binary.Size(hdr)))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read field descriptor header: %v", err)
	}
	recdat, err := f.ReadAtOffset(uint64(offset)+uint64(binary.Size(hdr)), uint64(hdr.NumFields)*uint64(hdr.FieldRecordSize))
	if err != nil {
		return nil, err
	}
	return f.finishFieldDescriptor(offset, hdr, bytes.NewReader(recdat))
}

func (f *File) finishFieldDescriptor(offset int64, hdr swift.FieldDescriptorHeader, r *bytes.Reader) (*swift.FieldDescriptor, error) {
	if hdr.NumFields > maxPlausibleCount || (hdr.FieldRecordSize != 0 && int(hdr.FieldRecordSize) < binary.Size(swift.FieldRecordT{})) {
		return nil, fmt.Errorf("field descriptor at %#x has %d records of size %d: %w",
			offset, hdr.NumFields, hdr.FieldRecordSize, ErrCorruptMetadata)
	}

	fd := &swift.FieldDescriptor{
		Kind:                  hdr.Kind,
		Offset:                offset,
		FieldDescriptorHeader: hdr,
	}

	if hdr.MangledTypeName != 0 {
		if off, err := f.resolveRelative32(offset, hdr.MangledTypeName); err == nil {
			fd.MangledTypeName, _ = f.readMangledName(off)
		}
	}
	if hdr.Superclass == 0 {
		fd.Superclass = swift.MANGLING_MODULE_OBJC
	} else if off, err := f.resolveRelative32(offset+sizeOfInt32, hdr.Superclass); err == nil {
		fd.Superclass, _ = f.readMangledName(off)
	}

	recBase := offset + int64(binary.Size(hdr))
	for i := uint32(0); i < hdr.NumFields; i++ {
		var rec swift.FieldRecordT
		if err := binary.Read(r, f.ByteOrder, &rec); err != nil {
			return nil, fmt.Errorf("failed to read field record %d: %v", i, err)
		}
		recOff := recBase + int64(i)*int64(hdr.FieldRecordSize)

		out := swift.FieldRecord{Flags: rec.Flags}
		if rec.FieldName != 0 {
			if off, err := f.resolveRelative32(recOff+8, rec.FieldName); err == nil {
				out.Name, _ = f.GetCStringAtOffset(off)
			}
		}
		if rec.MangledTypeName != 0 {
			if off, err := f.resolveRelative32(recOff+4, rec.MangledTypeName); err == nil {
				out.MangledType, _ = f.readMangledName(off)
			}
		}
		fd.Records = append(fd.Records, out)

		// descriptors may use a record size larger than the struct; skip padding
		if pad := int64(hdr.FieldRecordSize) - int64(binary.Size(rec)); pad > 0 {
			r.Seek(pad, 1)
		}
	}
	return fd, nil
}

// GetSwiftProtocols parses the protocol descriptors in __swift5_protos.
func (f *File) GetSwiftProtocols() ([]swift.Protocol, error) {
	offsets, err := f.sectionRelOffsets("__TEXT", "__swift5_protos")
	if err != nil {
		return nil, err
	}

	var protos []swift.Protocol
	for _, off := range offsets {
		var desc swift.ProtocolDescriptor
		dat, err := f.ReadAtOffset(uint64(off), uint64(binary.Size(desc)))
		if err != nil {
			log.WithError(err).Warnf("skipping swift protocol at %#x", off)
			continue
		}
		if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &desc); err != nil {
			return nil, fmt.Errorf("failed to read protocol descriptor: %v", err)
		}

		p := swift.Protocol{ProtocolDescriptor: desc}
		if nameOff, err := f.resolveRelative32(off+8, desc.Name); err == nil {
			p.Name, _ = f.GetCStringAtOffset(nameOff)
		}
		if desc.Parent != 0 {
			if parentOff, err := f.resolveRelative32(off+4, desc.Parent); err == nil {
				p.Parent = f.contextPath(parentOff, 0)
			}
		}
		if desc.AssociatedTypeNames != 0 {
			if atOff, err := f.resolveRelative32(off+20, desc.AssociatedTypeNames); err == nil {
				p.AssociatedTypeNames, _ = f.GetCStringAtOffset(atOff)
			}
		}
		protos = append(protos, p)
	}
	return protos, nil
}

// GetSwiftProtocolConformances parses the records in __swift5_proto.
func (f *File) GetSwiftProtocolConformances() ([]swift.Conformance, error) {
	offsets, err := f.sectionRelOffsets("__TEXT", "__swift5_proto")
	if err != nil {
		return nil, err
	}

	var confs []swift.Conformance
	for _, off := range offsets {
		var desc swift.ConformanceDescriptor
		dat, err := f.ReadAtOffset(uint64(off), uint64(binary.Size(desc)))
		if err != nil {
			log.WithError(err).Warnf("skipping conformance at %#x", off)
			continue
		}
		if err := binary.Read(bytes.NewReader(dat), f.ByteOrder, &desc); err != nil {
			return nil, fmt.Errorf("failed to read conformance descriptor: %v", err)
		}

		c := swift.Conformance{ConformanceDescriptor: desc}
		if desc.ProtocolRef != 0 {
			// low bit set means indirect
			if desc.ProtocolRef&1 != 0 {
				if slotOff, err := f.resolveRelative32(off, desc.ProtocolRef&^1); err == nil {
					if ptr, err := f.readPointerAtOffset(uint64(slotOff)); err == nil {
						if d, err := f.DecodePointer(ptr); err == nil {
							if d.Bind {
								if dcf, err := f.DyldChainedFixups(); err == nil {
									if name, err := dcf.SymbolName(d.Ordinal); err == nil {
										c.Protocol = name
									}
								}
							} else if protoOff, err := f.GetOffset(d.Target); err == nil {
								c.Protocol = f.contextPath(int64(protoOff), 0)
							}
						}
					}
				}
			} else if protoOff, err := f.resolveRelative32(off, desc.ProtocolRef); err == nil {
				c.Protocol = f.contextPath(protoOff, 0)
			}
		}
		if desc.TypeRef != 0 {
			if typeOff, err := f.resolveRelative32(off+4, desc.TypeRef); err == nil {
				if t, err := f.readSwiftType(typeOff); err == nil {
					c.TypeName = t.FullName()
				}
			}
		}
		confs = append(confs, c)
	}
	return confs, nil
}

// readMangledName reads a mangled name buffer, resolving embedded symbolic
// references (control bytes 0x01–0x17 followed by a little-endian 32-bit
// displacement) into context names. Unknown markers pass through untouched
// for the demangler.
func (f *File) readMangledName(offset int64) (string, error) {
	var out bytes.Buffer

	pos := offset
	for {
		if pos >= int64(len(f.data)) {
			return "", fmt.Errorf("mangled name at %#x runs past end of file: %w", offset, ErrUnresolvedReference)
		}
		b := f.data[pos]
		if b == 0 {
			break
		}
		if b >= swift.SymbolicRefDirect && b <= swift.SymbolicRefMax {
			if pos+5 > int64(len(f.data)) {
				return "", fmt.Errorf("truncated symbolic reference at %#x: %w", pos, ErrUnresolvedReference)
			}
			disp := int32(binary.LittleEndian.Uint32(f.data[pos+1 : pos+5]))

			switch b {
			case swift.SymbolicRefDirect, swift.SymbolicRefObjCProtocol:
				target, err := f.resolveRelative32(pos+1, disp)
				if err != nil {
					return "", err
				}
				if name := f.contextPath(target, 0); name != "" {
					if out.Len() > 0 {
						out.WriteByte('.')
					}
					out.WriteString(name)
				}
			case swift.SymbolicRefIndirect:
				target, err := f.resolveRelative32(pos+1, disp)
				if err != nil {
					return "", err
				}
				ptr, err := f.readPointerAtOffset(uint64(target))
				if err != nil {
					return "", err
				}
				d, err := f.DecodePointer(ptr)
				if err != nil {
					return "", err
				}
				if d.Bind {
					dcf, err := f.DyldChainedFixups()
					if err != nil {
						return "", err
					}
					name, err := dcf.SymbolName(d.Ordinal)
					if err != nil {
						return "", err
					}
					out.WriteString(trimSwiftSymbolPrefix(name))
				} else if descOff, err := f.GetOffset(d.Target); err == nil {
					if name := f.contextPath(int64(descOff), 0); name != "" {
						out.WriteString(name)
					}
				}
			default:
				// unknown marker; hand the raw bytes to the demangler
				out.WriteByte(b)
				out.Write(f.data[pos+1 : pos+5])
			}
			pos += 5
			continue
		}
		out.WriteByte(b)
		pos++
	}
	return out.String(), nil
}

func trimSwiftSymbolPrefix(sym string) string {
	for _, prefix := range []string{"_$s", "$s", "_T0", "_Tt"} {
		if len(sym) > len(prefix) && sym[:len(prefix)] == prefix {
			return sym[len(prefix):]
		}
	}
	return sym
}

// CrossReferenceSwiftFields copies Swift field display types onto ObjC ivars
// of matching classes. Field metadata names match the pure class name; the
// demangle callback renders each field's mangled type for display.
func (f *File) CrossReferenceSwiftFields(classes []*objc.Class, demangle func(string) string) error {
	if !f.HasSwift() {
		return nil
	}
	typs, err := f.GetSwiftTypes()
	if err != nil {
		return err
	}

	byName := make(map[string]*swift.FieldDescriptor)
	for i := range typs {
		if typs[i].Fields != nil {
			byName[typs[i].Name] = typs[i].Fields
			byName[typs[i].FullName()] = typs[i].Fields
		}
	}

	for _, c := range classes {
		name := c.Name
		if i := lastDot(name); i >= 0 {
			name = name[i+1:]
		}
		fd, ok := byName[name]
		if !ok {
			fd, ok = byName[c.Name]
		}
		if !ok {
			continue
		}
		recByName := make(map[string]swift.FieldRecord, len(fd.Records))
		for _, rec := range fd.Records {
			recByName[rec.Name] = rec
		}
		for i := range c.Ivars {
			if rec, ok := recByName[c.Ivars[i].Name]; ok && rec.MangledType != "" {
				if demangle != nil {
					c.Ivars[i].SwiftType = demangle(rec.MangledType)
				} else {
					c.Ivars[i].SwiftType = rec.MangledType
				}
			}
		}
	}
	return nil
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
