package macho

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/appsworld/go-classdump/types"
)

// A SliceInfo names one architecture slice of a binary and where its bytes live.
type SliceInfo struct {
	Arch   types.Arch
	Offset uint64
	Size   uint64
	Align  uint32
}

// A Binary owns the raw bytes of a thin or universal Mach-O file and exposes
// its architecture slices. The byte buffer is shared read-only with every
// File created from it.
type Binary struct {
	data   []byte
	fat    bool
	slices []SliceInfo
}

// NewBinary identifies the container magic and enumerates architecture slices.
// A thin file yields exactly one slice covering the whole buffer.
func NewBinary(data []byte) (*Binary, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("file too small for magic: %w", ErrInvalidMagic)
	}
	magic := binary.BigEndian.Uint32(data[:4])

	switch types.Magic(magic) {
	case types.MagicFat, types.MagicFat64:
		return newFatBinary(data, types.Magic(magic) == types.MagicFat64)
	case types.MagicFatSwap, types.MagicFat64Sw:
		// fat headers are defined big-endian; a swapped magic means the file
		// is damaged, not that the host should byte-swap
		return nil, fmt.Errorf("byte-swapped fat magic %#x: %w", magic, ErrInvalidMagic)
	}

	le := binary.LittleEndian.Uint32(data[:4])
	switch types.Magic(magic) {
	case types.Magic32, types.Magic64:
	default:
		switch types.Magic(le) {
		case types.Magic32, types.Magic64:
		default:
			return nil, fmt.Errorf("magic %#x: %w", magic, ErrInvalidMagic)
		}
	}

	arch, err := thinArch(data)
	if err != nil {
		return nil, err
	}
	return &Binary{
		data:   data,
		slices: []SliceInfo{{Arch: arch, Offset: 0, Size: uint64(len(data))}},
	}, nil
}

// thinArch peeks cputype/cpusubtype from a thin header without a full parse.
func thinArch(data []byte) (types.Arch, error) {
	if len(data) < 12 {
		return types.Arch{}, fmt.Errorf("file too small for header: %w", ErrInvalidMagic)
	}
	bo := headerByteOrder(data)
	if bo == nil {
		return types.Arch{}, fmt.Errorf("magic %#x: %w", binary.BigEndian.Uint32(data[:4]), ErrInvalidMagic)
	}
	return types.Arch{
		CPU:    types.CPU(bo.Uint32(data[4:8])),
		SubCPU: types.CPUSubtype(bo.Uint32(data[8:12])),
	}, nil
}

// headerByteOrder returns the byte order a thin header is written in, nil if
// the magic is unrecognized. Magic32 and Magic64 differ only in the bottom bit.
func headerByteOrder(data []byte) binary.ByteOrder {
	be := binary.BigEndian.Uint32(data[:4])
	le := binary.LittleEndian.Uint32(data[:4])
	switch {
	case be&^1 == types.Magic32.Int()&^1:
		return binary.BigEndian
	case le&^1 == types.Magic32.Int()&^1:
		return binary.LittleEndian
	}
	return nil
}

func newFatBinary(data []byte, is64 bool) (*Binary, error) {
	r := bytes.NewReader(data)

	var hdr types.FatHeader
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read fat header: %v", err)
	}

	b := &Binary{data: data, fat: true}
	for i := uint32(0); i < hdr.Count; i++ {
		var si SliceInfo
		if is64 {
			var fa types.FatArch64Header
			if err := binary.Read(r, binary.BigEndian, &fa); err != nil {
				return nil, fmt.Errorf("failed to read fat_arch_64[%d]: %v", i, err)
			}
			si = SliceInfo{
				Arch:   types.Arch{CPU: fa.CPU, SubCPU: fa.SubCPU},
				Offset: fa.Offset,
				Size:   fa.Size,
				Align:  fa.Align,
			}
		} else {
			var fa types.FatArchHeader
			if err := binary.Read(r, binary.BigEndian, &fa); err != nil {
				return nil, fmt.Errorf("failed to read fat_arch[%d]: %v", i, err)
			}
			si = SliceInfo{
				Arch:   types.Arch{CPU: fa.CPU, SubCPU: fa.SubCPU},
				Offset: uint64(fa.Offset),
				Size:   uint64(fa.Size),
				Align:  fa.Align,
			}
		}
		if si.Offset+si.Size > uint64(len(data)) {
			return nil, &FormatError{int64(si.Offset), "fat slice extends past end of file", si.Arch.String()}
		}
		b.slices = append(b.slices, si)
	}
	if len(b.slices) == 0 {
		return nil, &FormatError{0, "fat file with no architectures", nil}
	}
	return b, nil
}

// IsFat reports whether the file had a universal header.
func (b *Binary) IsFat() bool { return b.fat }

// Arches returns the architecture slices in file order.
func (b *Binary) Arches() []SliceInfo {
	return b.slices
}

// ArchNames returns the display names of the contained slices, in file order.
func (b *Binary) ArchNames() []string {
	names := make([]string, len(b.slices))
	for i, s := range b.slices {
		names[i] = s.Arch.String()
	}
	return names
}

// Slice returns the bytes covered by a slice record.
func (b *Binary) Slice(si SliceInfo) ([]byte, error) {
	if si.Offset+si.Size > uint64(len(b.data)) {
		return nil, &FormatError{int64(si.Offset), "slice extends past end of file", nil}
	}
	return b.data[si.Offset : si.Offset+si.Size], nil
}

// First returns the bytes of the first slice.
func (b *Binary) First() ([]byte, error) {
	return b.Slice(b.slices[0])
}

// BestMatch selects the slice for a requested architecture:
// exact masked match first, then any 64-bit-ABI slice of the same cpu family
// when the request uses the 64-bit ABI, then any slice of the same family.
func (b *Binary) BestMatch(want types.Arch) (SliceInfo, error) {
	for _, s := range b.slices {
		if s.Arch.Matches(want) {
			return s, nil
		}
	}
	if want.Uses64BitABI() {
		for _, s := range b.slices {
			if s.Arch.CPU == want.CPU {
				return s, nil
			}
		}
	}
	for _, s := range b.slices {
		if s.Arch.CPU.Family() == want.CPU.Family() {
			return s, nil
		}
	}
	return SliceInfo{}, fmt.Errorf("%s: %w", want, ErrArchitectureNotFound)
}
