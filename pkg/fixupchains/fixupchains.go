// Package fixupchains parses the LC_DYLD_CHAINED_FIXUPS payload: the import
// (bind) table, the per-segment chain starts, and the packed pointer formats
// dyld walks at load time.
package fixupchains

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedCompression is returned when the symbol pool is
	// zlib-compressed; only cleartext pools are read.
	ErrUnsupportedCompression = errors.New("compressed chained-fixup symbols not supported")
	// ErrUnsupportedPointerFormat is returned for pointer formats this
	// resolver does not decode.
	ErrUnsupportedPointerFormat = errors.New("unsupported chained pointer format")
	// ErrNoOrdinal is returned by SymbolName for an out-of-range bind ordinal.
	ErrNoOrdinal = errors.New("bind ordinal out of range")
)

// DyldChainedFixups is the parsed LC_DYLD_CHAINED_FIXUPS payload.
type DyldChainedFixups struct {
	Header
	Starts  []StartsInSegment
	Imports []Import

	// PointerFormat is the format of the first populated segment; every
	// segment of a well-formed binary uses the same one.
	PointerFormat DCPtrKind

	bo binary.ByteOrder
}

// Parse decodes the full payload of the load command.
func Parse(payload []byte, bo binary.ByteOrder) (*DyldChainedFixups, error) {
	dcf := &DyldChainedFixups{bo: bo}

	r := bytes.NewReader(payload)
	if err := binary.Read(r, bo, &dcf.Header); err != nil {
		return nil, fmt.Errorf("failed to read chained fixups header: %v", err)
	}
	if err := dcf.parseStarts(payload); err != nil {
		return nil, err
	}
	if err := dcf.parseImports(payload); err != nil {
		return nil, err
	}
	return dcf, nil
}

func (dcf *DyldChainedFixups) parseStarts(payload []byte) error {
	if dcf.StartsOffset == 0 || int(dcf.StartsOffset) >= len(payload) {
		return nil
	}
	r := bytes.NewReader(payload[dcf.StartsOffset:])

	var segCount uint32
	if err := binary.Read(r, dcf.bo, &segCount); err != nil {
		return fmt.Errorf("failed to read starts segment count: %v", err)
	}
	segInfoOffsets := make([]uint32, segCount)
	if err := binary.Read(r, dcf.bo, &segInfoOffsets); err != nil {
		return fmt.Errorf("failed to read starts segment offsets: %v", err)
	}

	dcf.Starts = make([]StartsInSegment, segCount)
	for segIdx, segInfoOffset := range segInfoOffsets {
		if segInfoOffset == 0 {
			continue
		}
		off := int(dcf.StartsOffset) + int(segInfoOffset)
		if off >= len(payload) {
			return fmt.Errorf("starts offset %#x past end of payload", off)
		}
		sr := bytes.NewReader(payload[off:])
		s := &dcf.Starts[segIdx]
		if err := binary.Read(sr, dcf.bo, &s.Size); err != nil {
			return err
		}
		if err := binary.Read(sr, dcf.bo, &s.PageSize); err != nil {
			return err
		}
		if err := binary.Read(sr, dcf.bo, &s.PointerFormat); err != nil {
			return err
		}
		if err := binary.Read(sr, dcf.bo, &s.SegmentOffset); err != nil {
			return err
		}
		if err := binary.Read(sr, dcf.bo, &s.MaxValidPointer); err != nil {
			return err
		}
		if err := binary.Read(sr, dcf.bo, &s.PageCount); err != nil {
			return err
		}
		s.PageStarts = make([]DCPtrStart, s.PageCount)
		if err := binary.Read(sr, dcf.bo, &s.PageStarts); err != nil {
			return err
		}
		if dcf.PointerFormat == 0 {
			dcf.PointerFormat = s.PointerFormat
		}
	}
	return nil
}

func (dcf *DyldChainedFixups) parseImports(payload []byte) error {
	if dcf.ImportsCount == 0 {
		return nil
	}
	if int(dcf.ImportsOffset) >= len(payload) {
		return fmt.Errorf("imports offset %#x past end of payload", dcf.ImportsOffset)
	}
	if dcf.SymbolsFormat != DC_SFORMAT_UNCOMPRESSED {
		return fmt.Errorf("symbols format %d: %w", dcf.SymbolsFormat, ErrUnsupportedCompression)
	}

	pool := payload[dcf.SymbolsOffset:]
	r := bytes.NewReader(payload[dcf.ImportsOffset:])

	dcf.Imports = make([]Import, 0, dcf.ImportsCount)
	for i := uint32(0); i < dcf.ImportsCount; i++ {
		var imp Import
		var nameOffset uint64
		switch dcf.ImportsFormat {
		case DC_IMPORT:
			var raw uint32
			if err := binary.Read(r, dcf.bo, &raw); err != nil {
				return fmt.Errorf("failed to read import[%d]: %v", i, err)
			}
			imp.LibOrdinal = int(int8(raw & 0xff))
			imp.Weak = raw>>8&1 != 0
			nameOffset = uint64(raw >> 9)
		case DC_IMPORT_ADDEND:
			var raw uint32
			var addend int32
			if err := binary.Read(r, dcf.bo, &raw); err != nil {
				return fmt.Errorf("failed to read import[%d]: %v", i, err)
			}
			if err := binary.Read(r, dcf.bo, &addend); err != nil {
				return fmt.Errorf("failed to read import[%d] addend: %v", i, err)
			}
			imp.LibOrdinal = int(int8(raw & 0xff))
			imp.Weak = raw>>8&1 != 0
			imp.Addend = int64(addend)
			nameOffset = uint64(raw >> 9)
		case DC_IMPORT_ADDEND64:
			var raw, addend uint64
			if err := binary.Read(r, dcf.bo, &raw); err != nil {
				return fmt.Errorf("failed to read import[%d]: %v", i, err)
			}
			if err := binary.Read(r, dcf.bo, &addend); err != nil {
				return fmt.Errorf("failed to read import[%d] addend: %v", i, err)
			}
			imp.LibOrdinal = int(int16(raw & 0xffff))
			imp.Weak = raw>>16&1 != 0
			imp.Addend = int64(addend)
			nameOffset = raw >> 32
		default:
			return fmt.Errorf("imports format %d: %w", dcf.ImportsFormat, ErrUnsupportedPointerFormat)
		}

		if nameOffset >= uint64(len(pool)) {
			return fmt.Errorf("import[%d] name offset %#x past end of symbol pool", i, nameOffset)
		}
		end := bytes.IndexByte(pool[nameOffset:], 0)
		if end < 0 {
			return fmt.Errorf("import[%d] name unterminated", i)
		}
		imp.Name = string(pool[nameOffset : nameOffset+uint64(end)])
		dcf.Imports = append(dcf.Imports, imp)
	}
	return nil
}

// SymbolName returns the imported symbol name bound at an ordinal.
func (dcf *DyldChainedFixups) SymbolName(ordinal uint64) (string, error) {
	if ordinal >= uint64(len(dcf.Imports)) {
		return "", fmt.Errorf("ordinal %d of %d: %w", ordinal, len(dcf.Imports), ErrNoOrdinal)
	}
	return dcf.Imports[ordinal].Name, nil
}

// DecodePointer interprets a raw on-file word using the table's pointer format.
func (dcf *DyldChainedFixups) DecodePointer(raw uint64) (Decoded, error) {
	return Decode(raw, dcf.PointerFormat)
}

// IsBind reports whether the raw word encodes a bind under the table's format.
func (dcf *DyldChainedFixups) IsBind(raw uint64) bool {
	d, err := dcf.DecodePointer(raw)
	return err == nil && d.Bind
}

// HasStarts reports whether any segment carries fixup chains.
func (dcf *DyldChainedFixups) HasStarts() bool {
	for _, s := range dcf.Starts {
		if s.PageCount > 0 && s.PageStarts != nil {
			return true
		}
	}
	return false
}
