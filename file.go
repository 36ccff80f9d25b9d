package macho

// High level access to low level data structures.

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	dwarf "github.com/blacktop/go-dwarf"

	"github.com/apex/log"

	"github.com/appsworld/go-classdump/pkg/fixupchains"
	"github.com/appsworld/go-classdump/pkg/trie"
	"github.com/appsworld/go-classdump/types"
	"github.com/appsworld/go-classdump/types/objc"
)

// A Load is any parsed Mach-O load command.
type Load interface {
	Command() types.LoadCmd
	Raw() []byte
}

// LoadBytes is the raw bytes of a load command.
type LoadBytes []byte

func (b LoadBytes) Raw() []byte { return b }

// A LoadCmdBytes is a pass-through load command the reader does not interpret.
type LoadCmdBytes struct {
	types.LoadCmd
	LoadBytes
}

func (s LoadCmdBytes) Command() types.LoadCmd { return s.LoadCmd }
func (s LoadCmdBytes) String() string {
	return s.LoadCmd.String() + ": " + fmt.Sprintf("%d bytes", len(s.LoadBytes))
}

// A SegmentHeader is the header of a Mach-O 32-bit or 64-bit segment command.
type SegmentHeader struct {
	types.LoadCmd
	Len       uint32
	Name      string
	Addr      uint64
	Memsz     uint64
	Offset    uint64
	Filesz    uint64
	Maxprot   types.VmProtection
	Prot      types.VmProtection
	Nsect     uint32
	Flag      types.SegFlag
	Firstsect uint32
}

// A Segment represents a Mach-O segment load command.
type Segment struct {
	SegmentHeader
	LoadBytes
}

func (s *Segment) Command() types.LoadCmd { return s.SegmentHeader.LoadCmd }

func (s *Segment) String() string {
	return fmt.Sprintf("sz=0x%08x off=0x%08x-0x%08x addr=0x%09x-0x%09x %s/%s %s",
		s.Filesz, s.Offset, s.Offset+s.Filesz, s.Addr, s.Addr+s.Memsz, s.Prot, s.Maxprot, s.Name)
}

// A SectionHeader is a Mach-O section header.
type SectionHeader struct {
	Name      string
	Seg       string
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     types.SectionFlag
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32 // only present if original was 64-bit
	Type      uint8  // 32 or 64
}

// A Section represents a Mach-O section.
type Section struct {
	SectionHeader
	file *File
}

// Data returns the section contents. Sections with no file backing (BSS and
// friends) read as zeroes.
func (s *Section) Data() ([]byte, error) {
	if s.Flags.IsZerofill() || s.Offset == 0 {
		return make([]byte, s.Size), nil
	}
	end := uint64(s.Offset) + s.Size
	if end > uint64(len(s.file.data)) {
		return nil, &FormatError{int64(s.Offset), "section extends past end of file", s.Name}
	}
	return s.file.data[s.Offset:end], nil
}

// A Symbol is a Mach-O symbol table entry.
type Symbol struct {
	Name  string
	Type  types.NType
	Sect  uint8
	Desc  uint16
	Value uint64
}

// A Symtab is the LC_SYMTAB command plus its lazily parsed symbols.
type Symtab struct {
	LoadBytes
	types.SymtabCmd
	syms   []Symbol
	parsed bool
}

func (s *Symtab) Command() types.LoadCmd { return s.LoadCmd }

// A Dysymtab is the LC_DYSYMTAB command.
type Dysymtab struct {
	LoadBytes
	types.DysymtabCmd
}

func (d *Dysymtab) Command() types.LoadCmd { return d.LoadCmd }

// A Dylib is any of the dylib reference commands (load/weak/id/reexport/upward/lazy).
type Dylib struct {
	LoadBytes
	types.DylibCmd
	Name string
}

func (d *Dylib) Command() types.LoadCmd { return d.LoadCmd }
func (d *Dylib) String() string         { return d.Name }

// A UUID is the LC_UUID command.
type UUID struct {
	LoadBytes
	types.UUIDCmd
}

func (u *UUID) Command() types.LoadCmd { return u.LoadCmd }
func (u *UUID) String() string         { return u.UUIDCmd.UUID.String() }

// A BuildVersion is the LC_BUILD_VERSION command.
type BuildVersion struct {
	LoadBytes
	types.BuildVersionCmd
	Tools []types.BuildToolVersion
}

func (b *BuildVersion) Command() types.LoadCmd { return b.LoadCmd }
func (b *BuildVersion) String() string {
	return fmt.Sprintf("%s, sdk %s", b.Platform, b.Sdk)
}

// A SourceVersion is the LC_SOURCE_VERSION command.
type SourceVersion struct {
	LoadBytes
	types.SourceVersionCmd
}

func (s *SourceVersion) Command() types.LoadCmd { return s.LoadCmd }
func (s *SourceVersion) String() string         { return s.Version.String() }

// An EntryPoint is the LC_MAIN command.
type EntryPoint struct {
	LoadBytes
	types.EntryPointCmd
}

func (e *EntryPoint) Command() types.LoadCmd { return e.LoadCmd }

// An EncryptionInfo is the LC_ENCRYPTION_INFO(_64) command.
type EncryptionInfo struct {
	LoadBytes
	types.LoadCmd
	Offset  uint32
	Size    uint32
	CryptID types.EncryptionSystem
}

func (e *EncryptionInfo) Command() types.LoadCmd { return e.LoadCmd }

// A Rpath is the LC_RPATH command.
type Rpath struct {
	LoadBytes
	types.RpathCmd
	Path string
}

func (r *Rpath) Command() types.LoadCmd { return r.LoadCmd }

// A LinkEditData holds any of the linkedit-data commands.
type LinkEditData struct {
	LoadBytes
	types.LinkEditDataCmd
}

func (l *LinkEditData) Command() types.LoadCmd { return l.LoadCmd }

// A DyldChainedFixups is the LC_DYLD_CHAINED_FIXUPS command.
type DyldChainedFixups LinkEditData

func (d *DyldChainedFixups) Command() types.LoadCmd { return d.LoadCmd }

// A DyldExportsTrie is the LC_DYLD_EXPORTS_TRIE command.
type DyldExportsTrie LinkEditData

func (d *DyldExportsTrie) Command() types.LoadCmd { return d.LoadCmd }

// A DyldInfo is the LC_DYLD_INFO(_ONLY) command. Its opcode streams are kept
// but not interpreted; chained fixups are the supported bind mechanism.
type DyldInfo struct {
	LoadBytes
	types.DyldInfoCmd
}

func (d *DyldInfo) Command() types.LoadCmd { return d.LoadCmd }

// A File represents an open Mach-O file.
type File struct {
	types.FileHeader
	ByteOrder binary.ByteOrder
	Loads     []Load
	Sections  []*Section

	Symtab   *Symtab
	Dysymtab *Dysymtab

	data []byte
	vma  *types.VMAddrConverter
	dcf  *fixupchains.DyldChainedFixups

	// objc caches parsed classes by vmaddr so the isa/superclass graph is
	// walked once and cycles terminate
	objc map[uint64]*objc.Class

	relativeSelectorBase uint64
}

// FileConfig adjusts how a Mach-O is opened.
type FileConfig struct {
	// RelativeSelectorBase is the base address of the shared-cache selector
	// table for images whose small method lists index into it.
	RelativeSelectorBase uint64
}

// NewFile parses a thin Mach-O image held in memory. The buffer is shared,
// not copied; callers must not mutate it.
func NewFile(data []byte, config ...FileConfig) (*File, error) {
	f := &File{
		data: data,
		vma:  &types.VMAddrConverter{},
		objc: make(map[uint64]*objc.Class),
	}
	if len(config) > 0 {
		f.relativeSelectorBase = config[0].RelativeSelectorBase
	}

	if len(data) < 4 {
		return nil, &FormatError{0, "file too small", nil}
	}
	f.ByteOrder = headerByteOrder(data)
	if f.ByteOrder == nil {
		return nil, fmt.Errorf("magic %#x: %w", binary.BigEndian.Uint32(data[:4]), ErrInvalidMagic)
	}

	r := bytes.NewReader(data)
	if err := binary.Read(r, f.ByteOrder, &f.FileHeader); err != nil {
		return nil, fmt.Errorf("failed to parse header: %v", err)
	}

	offset := int64(types.FileHeaderSize32)
	if f.Magic == types.Magic64 {
		offset = types.FileHeaderSize64
	} else {
		// the 32-bit header has no reserved word; rewind one
		offset = types.FileHeaderSize32
		f.Reserved = 0
	}

	if uint64(offset)+uint64(f.SizeCommands) > uint64(len(data)) {
		return nil, &FormatError{offset, "load commands extend past end of file", nil}
	}
	dat := data[offset : uint64(offset)+uint64(f.SizeCommands)]

	align := uint32(f.Magic.PointerSize())

	f.Loads = make([]Load, 0, f.NCommands)
	for i := uint32(0); i < f.NCommands; i++ {
		if len(dat) < 8 {
			return nil, &FormatError{offset, "command block too small", ErrMalformedLoadCommand}
		}
		cmd, siz := types.LoadCmd(f.ByteOrder.Uint32(dat[0:4])), f.ByteOrder.Uint32(dat[4:8])
		if siz < 8 || siz > uint32(len(dat)) || siz%align != 0 {
			return nil, &FormatError{offset, fmt.Sprintf("invalid command block size %d", siz), ErrMalformedLoadCommand}
		}

		var cmddat []byte
		cmddat, dat = dat[0:siz], dat[siz:]
		offset += int64(siz)

		l, err := f.parseLoad(cmd, siz, cmddat)
		if err != nil {
			return nil, err
		}
		f.Loads = append(f.Loads, l)
	}

	for _, seg := range f.Segments() {
		f.vma.AddSegment(seg.Addr, seg.Memsz, seg.Offset)
		if seg.Name == "__TEXT" && seg.Filesz > 0 {
			f.vma.PreferredLoadAddress = seg.Addr
		}
	}

	return f, nil
}

func (f *File) parseLoad(cmd types.LoadCmd, siz uint32, cmddat []byte) (Load, error) {
	bo := f.ByteOrder
	b := bytes.NewReader(cmddat)

	switch cmd {
	case types.LC_SEGMENT:
		var seg32 types.Segment32
		if err := binary.Read(b, bo, &seg32); err != nil {
			return nil, fmt.Errorf("failed to read LC_SEGMENT: %v", err)
		}
		s := &Segment{
			SegmentHeader: SegmentHeader{
				LoadCmd:   cmd,
				Len:       siz,
				Name:      cstring(seg32.Name[:]),
				Addr:      uint64(seg32.Addr),
				Memsz:     uint64(seg32.Memsz),
				Offset:    uint64(seg32.Offset),
				Filesz:    uint64(seg32.Filesz),
				Maxprot:   seg32.Maxprot,
				Prot:      seg32.Prot,
				Nsect:     seg32.Nsect,
				Flag:      seg32.Flag,
				Firstsect: uint32(len(f.Sections)),
			},
			LoadBytes: cmddat,
		}
		for i := 0; i < int(s.Nsect); i++ {
			var sh32 types.Section32
			if err := binary.Read(b, bo, &sh32); err != nil {
				return nil, fmt.Errorf("failed to read Section32: %v", err)
			}
			f.Sections = append(f.Sections, &Section{
				SectionHeader: SectionHeader{
					Name:      cstring(sh32.Name[:]),
					Seg:       cstring(sh32.Seg[:]),
					Addr:      uint64(sh32.Addr),
					Size:      uint64(sh32.Size),
					Offset:    sh32.Offset,
					Align:     sh32.Align,
					Reloff:    sh32.Reloff,
					Nreloc:    sh32.Nreloc,
					Flags:     sh32.Flags,
					Reserved1: sh32.Reserve1,
					Reserved2: sh32.Reserve2,
					Type:      32,
				},
				file: f,
			})
		}
		return s, nil
	case types.LC_SEGMENT_64:
		var seg64 types.Segment64
		if err := binary.Read(b, bo, &seg64); err != nil {
			return nil, fmt.Errorf("failed to read LC_SEGMENT_64: %v", err)
		}
		s := &Segment{
			SegmentHeader: SegmentHeader{
				LoadCmd:   cmd,
				Len:       siz,
				Name:      cstring(seg64.Name[:]),
				Addr:      seg64.Addr,
				Memsz:     seg64.Memsz,
				Offset:    seg64.Offset,
				Filesz:    seg64.Filesz,
				Maxprot:   seg64.Maxprot,
				Prot:      seg64.Prot,
				Nsect:     seg64.Nsect,
				Flag:      seg64.Flag,
				Firstsect: uint32(len(f.Sections)),
			},
			LoadBytes: cmddat,
		}
		for i := 0; i < int(s.Nsect); i++ {
			var sh64 types.Section64
			if err := binary.Read(b, bo, &sh64); err != nil {
				return nil, fmt.Errorf("failed to read Section64: %v", err)
			}
			f.Sections = append(f.Sections, &Section{
				SectionHeader: SectionHeader{
					Name:      cstring(sh64.Name[:]),
					Seg:       cstring(sh64.Seg[:]),
					Addr:      sh64.Addr,
					Size:      sh64.Size,
					Offset:    sh64.Offset,
					Align:     sh64.Align,
					Reloff:    sh64.Reloff,
					Nreloc:    sh64.Nreloc,
					Flags:     sh64.Flags,
					Reserved1: sh64.Reserve1,
					Reserved2: sh64.Reserve2,
					Reserved3: sh64.Reserve3,
					Type:      64,
				},
				file: f,
			})
		}
		return s, nil
	case types.LC_SYMTAB:
		st := &Symtab{LoadBytes: cmddat}
		if err := binary.Read(b, bo, &st.SymtabCmd); err != nil {
			return nil, fmt.Errorf("failed to read LC_SYMTAB: %v", err)
		}
		f.Symtab = st
		return st, nil
	case types.LC_DYSYMTAB:
		dst := &Dysymtab{LoadBytes: cmddat}
		if err := binary.Read(b, bo, &dst.DysymtabCmd); err != nil {
			return nil, fmt.Errorf("failed to read LC_DYSYMTAB: %v", err)
		}
		f.Dysymtab = dst
		return dst, nil
	case types.LC_LOAD_DYLIB, types.LC_ID_DYLIB, types.LC_LOAD_WEAK_DYLIB,
		types.LC_REEXPORT_DYLIB, types.LC_LAZY_LOAD_DYLIB, types.LC_LOAD_UPWARD_DYLIB:
		d := &Dylib{LoadBytes: cmddat}
		if err := binary.Read(b, bo, &d.DylibCmd); err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", cmd, err)
		}
		if d.DylibCmd.Name >= siz {
			return nil, &FormatError{0, "invalid name offset in dylib command", d.DylibCmd.Name}
		}
		d.Name = cstring(cmddat[d.DylibCmd.Name:])
		return d, nil
	case types.LC_UUID:
		u := &UUID{LoadBytes: cmddat}
		if err := binary.Read(b, bo, &u.UUIDCmd); err != nil {
			return nil, fmt.Errorf("failed to read LC_UUID: %v", err)
		}
		return u, nil
	case types.LC_BUILD_VERSION:
		bv := &BuildVersion{LoadBytes: cmddat}
		if err := binary.Read(b, bo, &bv.BuildVersionCmd); err != nil {
			return nil, fmt.Errorf("failed to read LC_BUILD_VERSION: %v", err)
		}
		bv.Tools = make([]types.BuildToolVersion, bv.NumTools)
		if err := binary.Read(b, bo, &bv.Tools); err != nil {
			return nil, fmt.Errorf("failed to read build tool versions: %v", err)
		}
		return bv, nil
	case types.LC_SOURCE_VERSION:
		sv := &SourceVersion{LoadBytes: cmddat}
		if err := binary.Read(b, bo, &sv.SourceVersionCmd); err != nil {
			return nil, fmt.Errorf("failed to read LC_SOURCE_VERSION: %v", err)
		}
		return sv, nil
	case types.LC_MAIN:
		ep := &EntryPoint{LoadBytes: cmddat}
		if err := binary.Read(b, bo, &ep.EntryPointCmd); err != nil {
			return nil, fmt.Errorf("failed to read LC_MAIN: %v", err)
		}
		return ep, nil
	case types.LC_ENCRYPTION_INFO:
		var ec types.EncryptionInfoCmd
		if err := binary.Read(b, bo, &ec); err != nil {
			return nil, fmt.Errorf("failed to read LC_ENCRYPTION_INFO: %v", err)
		}
		return &EncryptionInfo{LoadBytes: cmddat, LoadCmd: cmd, Offset: ec.Offset, Size: ec.Size, CryptID: ec.CryptID}, nil
	case types.LC_ENCRYPTION_INFO_64:
		var ec types.EncryptionInfo64Cmd
		if err := binary.Read(b, bo, &ec); err != nil {
			return nil, fmt.Errorf("failed to read LC_ENCRYPTION_INFO_64: %v", err)
		}
		return &EncryptionInfo{LoadBytes: cmddat, LoadCmd: cmd, Offset: ec.Offset, Size: ec.Size, CryptID: ec.CryptID}, nil
	case types.LC_RPATH:
		rp := &Rpath{LoadBytes: cmddat}
		if err := binary.Read(b, bo, &rp.RpathCmd); err != nil {
			return nil, fmt.Errorf("failed to read LC_RPATH: %v", err)
		}
		if rp.RpathCmd.Path >= siz {
			return nil, &FormatError{0, "invalid path offset in rpath command", rp.RpathCmd.Path}
		}
		rp.Path = cstring(cmddat[rp.RpathCmd.Path:])
		return rp, nil
	case types.LC_DYLD_INFO, types.LC_DYLD_INFO_ONLY:
		di := &DyldInfo{LoadBytes: cmddat}
		if err := binary.Read(b, bo, &di.DyldInfoCmd); err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", cmd, err)
		}
		return di, nil
	case types.LC_DYLD_CHAINED_FIXUPS:
		led := &LinkEditData{LoadBytes: cmddat}
		if err := binary.Read(b, bo, &led.LinkEditDataCmd); err != nil {
			return nil, fmt.Errorf("failed to read LC_DYLD_CHAINED_FIXUPS: %v", err)
		}
		return (*DyldChainedFixups)(led), nil
	case types.LC_DYLD_EXPORTS_TRIE:
		led := &LinkEditData{LoadBytes: cmddat}
		if err := binary.Read(b, bo, &led.LinkEditDataCmd); err != nil {
			return nil, fmt.Errorf("failed to read LC_DYLD_EXPORTS_TRIE: %v", err)
		}
		return (*DyldExportsTrie)(led), nil
	case types.LC_CODE_SIGNATURE, types.LC_SEGMENT_SPLIT_INFO, types.LC_FUNCTION_STARTS,
		types.LC_DATA_IN_CODE, types.LC_DYLIB_CODE_SIGN_DRS, types.LC_LINKER_OPTIMIZATION_HINT:
		led := &LinkEditData{LoadBytes: cmddat}
		if err := binary.Read(b, bo, &led.LinkEditDataCmd); err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", cmd, err)
		}
		return led, nil
	default:
		if cmd.MustUnderstand() {
			log.Warnf("unknown load command %s has LC_REQ_DYLD set", cmd)
		}
		return LoadCmdBytes{cmd, LoadBytes(cmddat)}, nil
	}
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (f *File) is64bit() bool { return f.FileHeader.Magic == types.Magic64 }

func (f *File) pointerSize() uint64 { return f.Magic.PointerSize() }

// Arch returns the file's architecture.
func (f *File) Arch() types.Arch {
	return types.Arch{CPU: f.CPU, SubCPU: f.SubCPU}
}

// GetBaseAddress returns the preferred load address (__TEXT vmaddr).
func (f *File) GetBaseAddress() uint64 {
	return f.vma.PreferredLoadAddress
}

// GetOffset returns the file offset for a given virtual address.
func (f *File) GetOffset(address uint64) (uint64, error) {
	return f.vma.GetOffset(address)
}

// GetVMAddress returns the virtual address for a given file offset.
func (f *File) GetVMAddress(offset uint64) (uint64, error) {
	return f.vma.GetVMAddress(offset)
}

// ReadAtOffset returns n bytes at a file offset.
func (f *File) ReadAtOffset(offset uint64, n uint64) ([]byte, error) {
	if offset+n > uint64(len(f.data)) {
		return nil, fmt.Errorf("read of %d bytes at %#x past end %#x: %w", n, offset, len(f.data), types.ErrOutOfBounds)
	}
	return f.data[offset : offset+n], nil
}

// GetCStringAtOffset reads a NUL-terminated string at a file offset.
func (f *File) GetCStringAtOffset(offset int64) (string, error) {
	if offset < 0 || offset >= int64(len(f.data)) {
		return "", fmt.Errorf("cstring offset %#x past end %#x: %w", offset, len(f.data), types.ErrOutOfBounds)
	}
	i := bytes.IndexByte(f.data[offset:], 0)
	if i < 0 {
		return "", fmt.Errorf("unterminated cstring at %#x: %w", offset, types.ErrOutOfBounds)
	}
	return string(f.data[offset : offset+int64(i)]), nil
}

// GetCString reads a NUL-terminated string at a virtual address.
func (f *File) GetCString(strVMAdr uint64) (string, error) {
	off, err := f.GetOffset(strVMAdr)
	if err != nil {
		return "", fmt.Errorf("failed to convert vmaddr: %v", err)
	}
	return f.GetCStringAtOffset(int64(off))
}

// readPointerAtOffset reads one pointer-sized word at a file offset.
func (f *File) readPointerAtOffset(offset uint64) (uint64, error) {
	dat, err := f.ReadAtOffset(offset, f.pointerSize())
	if err != nil {
		return 0, err
	}
	if f.is64bit() {
		return f.ByteOrder.Uint64(dat), nil
	}
	return uint64(f.ByteOrder.Uint32(dat)), nil
}

// Segments returns all segments in command order.
func (f *File) Segments() []*Segment {
	var segs []*Segment
	for _, l := range f.Loads {
		if s, ok := l.(*Segment); ok {
			segs = append(segs, s)
		}
	}
	return segs
}

// Segment returns the first segment with the given name, or nil.
func (f *File) Segment(name string) *Segment {
	for _, l := range f.Loads {
		if s, ok := l.(*Segment); ok && s.Name == name {
			return s
		}
	}
	return nil
}

// Section returns the named section in the named segment, or nil.
func (f *File) Section(segment, section string) *Section {
	for _, sec := range f.Sections {
		if sec.Seg == segment && sec.Name == section {
			return sec
		}
	}
	return nil
}

// FindSectionForVMAddr returns the section covering a virtual address.
func (f *File) FindSectionForVMAddr(vmAddr uint64) *Section {
	for _, sec := range f.Sections {
		if sec.Addr <= vmAddr && vmAddr < sec.Addr+sec.Size {
			return sec
		}
	}
	return nil
}

// UUID returns the LC_UUID load command, or nil.
func (f *File) UUID() *UUID {
	for _, l := range f.Loads {
		if u, ok := l.(*UUID); ok {
			return u
		}
	}
	return nil
}

// DylibID returns the LC_ID_DYLIB load command, or nil.
func (f *File) DylibID() *Dylib {
	for _, l := range f.Loads {
		if d, ok := l.(*Dylib); ok && d.Command() == types.LC_ID_DYLIB {
			return d
		}
	}
	return nil
}

// BuildVersion returns the LC_BUILD_VERSION load command, or nil.
func (f *File) BuildVersion() *BuildVersion {
	for _, l := range f.Loads {
		if bv, ok := l.(*BuildVersion); ok {
			return bv
		}
	}
	return nil
}

// SourceVersion returns the LC_SOURCE_VERSION load command, or nil.
func (f *File) SourceVersion() *SourceVersion {
	for _, l := range f.Loads {
		if sv, ok := l.(*SourceVersion); ok {
			return sv
		}
	}
	return nil
}

// ImportedLibraries returns the install names of all linked dylibs.
func (f *File) ImportedLibraries() []string {
	var libs []string
	for _, l := range f.Loads {
		if d, ok := l.(*Dylib); ok {
			switch d.Command() {
			case types.LC_LOAD_DYLIB, types.LC_LOAD_WEAK_DYLIB,
				types.LC_REEXPORT_DYLIB, types.LC_LAZY_LOAD_DYLIB, types.LC_LOAD_UPWARD_DYLIB:
				libs = append(libs, d.Name)
			}
		}
	}
	return libs
}

// LibraryOrdinalName resolves a two-level namespace library ordinal.
func (f *File) LibraryOrdinalName(libraryOrdinal int) string {
	libs := f.ImportedLibraries()
	if libraryOrdinal > 0 && libraryOrdinal <= len(libs) {
		name := libs[libraryOrdinal-1]
		name = strings.TrimSuffix(name, ".dylib")
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		return name
	}
	switch libraryOrdinal {
	case -1:
		return "main-executable"
	case -2:
		return "flat-namespace"
	case -3:
		return "weak"
	}
	return "self"
}

// Symbols parses the symbol table on first use and returns its entries.
func (f *File) Symbols() ([]Symbol, error) {
	if f.Symtab == nil {
		return nil, nil
	}
	if f.Symtab.parsed {
		return f.Symtab.syms, nil
	}

	strtab, err := f.ReadAtOffset(uint64(f.Symtab.Stroff), uint64(f.Symtab.Strsize))
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol string table: %v", err)
	}

	symsz := uint64(12)
	if f.is64bit() {
		symsz = 16
	}
	symdat, err := f.ReadAtOffset(uint64(f.Symtab.Symoff), uint64(f.Symtab.Nsyms)*symsz)
	if err != nil {
		return nil, fmt.Errorf("failed to read nlist records: %v", err)
	}

	r := bytes.NewReader(symdat)
	f.Symtab.syms = make([]Symbol, 0, f.Symtab.Nsyms)
	for i := uint32(0); i < f.Symtab.Nsyms; i++ {
		var sym Symbol
		if f.is64bit() {
			var n types.Nlist64
			if err := binary.Read(r, f.ByteOrder, &n); err != nil {
				return nil, fmt.Errorf("failed to read nlist_64[%d]: %v", i, err)
			}
			sym = Symbol{Type: n.Type, Sect: n.Sect, Desc: n.Desc, Value: n.Value}
			if n.Name < uint32(len(strtab)) {
				sym.Name = cstring(strtab[n.Name:])
			}
		} else {
			var n types.Nlist32
			if err := binary.Read(r, f.ByteOrder, &n); err != nil {
				return nil, fmt.Errorf("failed to read nlist[%d]: %v", i, err)
			}
			sym = Symbol{Type: n.Type, Sect: n.Sect, Desc: n.Desc, Value: uint64(n.Value)}
			if n.Name < uint32(len(strtab)) {
				sym.Name = cstring(strtab[n.Name:])
			}
		}
		f.Symtab.syms = append(f.Symtab.syms, sym)
	}
	f.Symtab.parsed = true
	return f.Symtab.syms, nil
}

// ImportedSymbolNames returns the names of undefined (imported) symbols.
func (f *File) ImportedSymbolNames() ([]string, error) {
	syms, err := f.Symbols()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, sym := range syms {
		if !sym.Type.IsDebugSym() && sym.Type.IsUndefined() {
			names = append(names, sym.Name)
		}
	}
	return names, nil
}

// HasFixups reports whether the file carries LC_DYLD_CHAINED_FIXUPS.
func (f *File) HasFixups() bool {
	for _, l := range f.Loads {
		if _, ok := l.(*DyldChainedFixups); ok {
			return true
		}
	}
	return false
}

// DyldChainedFixups parses the chained-fixup payload on first use.
func (f *File) DyldChainedFixups() (*fixupchains.DyldChainedFixups, error) {
	if f.dcf != nil {
		return f.dcf, nil
	}
	for _, l := range f.Loads {
		if lc, ok := l.(*DyldChainedFixups); ok {
			payload, err := f.ReadAtOffset(uint64(lc.Offset), uint64(lc.Size))
			if err != nil {
				return nil, fmt.Errorf("failed to read chained fixups payload: %v", err)
			}
			dcf, err := fixupchains.Parse(payload, f.ByteOrder)
			if err != nil {
				return nil, err
			}
			f.dcf = dcf
			return dcf, nil
		}
	}
	return nil, fmt.Errorf("macho does not contain LC_DYLD_CHAINED_FIXUPS")
}

// DecodePointer interprets a raw pointer-sized word from runtime metadata.
// In a file with chained fixups it is decoded by format; otherwise the raw
// value is already a vmaddr rebase.
func (f *File) DecodePointer(raw uint64) (fixupchains.Decoded, error) {
	if !f.HasFixups() {
		return fixupchains.Decoded{Target: types.StripPAC(raw)}, nil
	}
	dcf, err := f.DyldChainedFixups()
	if err != nil {
		return fixupchains.Decoded{}, err
	}
	d, err := dcf.DecodePointer(raw)
	if err != nil {
		return fixupchains.Decoded{}, err
	}
	if !d.Bind {
		switch dcf.PointerFormat {
		case fixupchains.DYLD_CHAINED_PTR_64_OFFSET,
			fixupchains.DYLD_CHAINED_PTR_ARM64E_KERNEL,
			fixupchains.DYLD_CHAINED_PTR_ARM64E_USERLAND,
			fixupchains.DYLD_CHAINED_PTR_ARM64E_USERLAND24:
			d.Target += f.GetBaseAddress()
		case fixupchains.DYLD_CHAINED_PTR_ARM64E:
			// auth rebases under plain ARM64E carry runtime offsets
			if _, err := f.GetOffset(d.Target); err != nil {
				d.Target += f.GetBaseAddress()
			}
		}
		d.Target = types.StripPAC(d.Target)
	}
	return d, nil
}

// GetBindName returns the imported symbol name a raw metadata word binds to.
func (f *File) GetBindName(pointer uint64) (string, error) {
	if !f.HasFixups() {
		return "", fmt.Errorf("pointer %#x: %w", pointer, ErrUnresolvedReference)
	}
	dcf, err := f.DyldChainedFixups()
	if err != nil {
		return "", err
	}
	d, err := dcf.DecodePointer(pointer)
	if err != nil {
		return "", err
	}
	if !d.Bind {
		return "", fmt.Errorf("pointer %#x is a rebase, not a bind: %w", pointer, ErrUnresolvedReference)
	}
	return dcf.SymbolName(d.Ordinal)
}

// convert normalizes a pointer read out of file content: fixup words collapse
// to their rebase targets, everything gets its PAC bits stripped.
func (f *File) convert(addr uint64) uint64 {
	if d, err := f.DecodePointer(addr); err == nil && !d.Bind {
		return d.Target
	}
	return types.StripPAC(addr)
}

// DyldExports walks the LC_DYLD_EXPORTS_TRIE payload.
func (f *File) DyldExports() ([]trie.Entry, error) {
	for _, l := range f.Loads {
		if lc, ok := l.(*DyldExportsTrie); ok {
			payload, err := f.ReadAtOffset(uint64(lc.Offset), uint64(lc.Size))
			if err != nil {
				return nil, fmt.Errorf("failed to read exports trie payload: %v", err)
			}
			return trie.Parse(payload)
		}
	}
	return nil, nil
}

// DWARF returns the DWARF debug information when the file carries __DWARF
// sections.
func (f *File) DWARF() (*dwarf.Data, error) {
	dwarfSuffix := func(s *Section) string {
		switch {
		case strings.HasPrefix(s.Name, "__debug_"):
			return s.Name[8:]
		case strings.HasPrefix(s.Name, "__zdebug_"):
			return s.Name[9:]
		default:
			return ""
		}
	}
	sectionData := func(s *Section) ([]byte, error) {
		b, err := s.Data()
		if err != nil {
			return nil, err
		}
		if len(b) >= 12 && string(b[:4]) == "ZLIB" {
			dlen := binary.BigEndian.Uint64(b[4:12])
			dbuf := make([]byte, dlen)
			r, err := zlib.NewReader(bytes.NewBuffer(b[12:]))
			if err != nil {
				return nil, err
			}
			if _, err := io.ReadFull(r, dbuf); err != nil {
				return nil, err
			}
			if err := r.Close(); err != nil {
				return nil, err
			}
			b = dbuf
		}
		return b, nil
	}

	dat := map[string][]byte{"abbrev": nil, "info": nil, "str": nil, "line": nil, "ranges": nil}
	for _, s := range f.Sections {
		suffix := dwarfSuffix(s)
		if suffix == "" {
			continue
		}
		if _, ok := dat[suffix]; !ok {
			continue
		}
		b, err := sectionData(s)
		if err != nil {
			return nil, err
		}
		dat[suffix] = b
	}

	return dwarf.New(dat["abbrev"], nil, nil, dat["info"], dat["line"], nil, dat["ranges"], dat["str"])
}
