// Package macho reads Mach-O binaries and extracts the Objective-C and Swift
// runtime metadata needed to reconstruct declaration-style headers.
package macho

import (
	"errors"
	"fmt"
	"os"

	"github.com/appsworld/go-classdump/types"
)

var (
	// ErrInvalidMagic is returned when the first 4 bytes match no known magic.
	ErrInvalidMagic = errors.New("invalid magic number")
	// ErrArchitectureNotFound is returned when a requested architecture is
	// absent from a universal file.
	ErrArchitectureNotFound = errors.New("architecture not found")
	// ErrMalformedLoadCommand is returned for a load command whose declared
	// size is too small, misaligned, or exceeds the command area.
	ErrMalformedLoadCommand = errors.New("malformed load command")
	// ErrObjcSectionNotFound marks a missing required ObjC section.
	ErrObjcSectionNotFound = errors.New("missing required ObjC section")
	// ErrSwiftSectionNotFound marks a missing Swift reflection section.
	ErrSwiftSectionNotFound = errors.New("missing Swift section")
	// ErrUnresolvedReference is returned when a pointer maps to neither a file
	// offset nor an external symbol.
	ErrUnresolvedReference = errors.New("unresolved reference")
	// ErrCorruptMetadata marks an ObjC or Swift record that failed a sanity check.
	ErrCorruptMetadata = errors.New("corrupt metadata")
)

// FormatError is returned by some operations if the data does not have the
// correct format for an object file.
type FormatError struct {
	off int64
	msg string
	val any
}

func (e *FormatError) Error() string {
	msg := e.msg
	if e.val != nil {
		msg += fmt.Sprintf(" '%v'", e.val)
	}
	msg += fmt.Sprintf(" in record at byte %#x", e.off)
	return msg
}

// Open reads the named file and returns the contained Mach-O. For universal
// files the first slice is returned; use OpenArch to pick one.
func Open(name string) (*File, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	bin, err := NewBinary(data)
	if err != nil {
		return nil, err
	}
	slice, err := bin.First()
	if err != nil {
		return nil, err
	}
	return NewFile(slice)
}

// OpenArch reads the named file and selects the slice best matching the
// requested architecture.
func OpenArch(name string, arch types.Arch) (*File, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	bin, err := NewBinary(data)
	if err != nil {
		return nil, err
	}
	slice, err := bin.BestMatch(arch)
	if err != nil {
		return nil, err
	}
	dat, err := bin.Slice(slice)
	if err != nil {
		return nil, err
	}
	return NewFile(dat)
}
