// Package trie walks the dyld exports trie found behind LC_DYLD_EXPORTS_TRIE.
package trie

import (
	"fmt"

	"github.com/appsworld/go-classdump/types"
)

// An ExportFlag is the flags byte of a terminal trie node.
type ExportFlag uint64

const (
	kindMask        ExportFlag = 0x03
	kindRegular     ExportFlag = 0x00
	kindThreadLocal ExportFlag = 0x01
	kindAbsolute    ExportFlag = 0x02

	flagWeakDefinition  ExportFlag = 0x04
	flagReExport        ExportFlag = 0x08
	flagStubAndResolver ExportFlag = 0x10
)

func (f ExportFlag) Regular() bool         { return f&kindMask == kindRegular }
func (f ExportFlag) ThreadLocal() bool     { return f&kindMask == kindThreadLocal }
func (f ExportFlag) Absolute() bool        { return f&kindMask == kindAbsolute }
func (f ExportFlag) WeakDefinition() bool  { return f&flagWeakDefinition != 0 }
func (f ExportFlag) ReExport() bool        { return f&flagReExport != 0 }
func (f ExportFlag) StubAndResolver() bool { return f&flagStubAndResolver != 0 }

// An Entry is one exported symbol.
type Entry struct {
	Name            string
	Flags           ExportFlag
	Address         uint64 // image offset for regular exports
	Other           uint64 // resolver offset or re-export ordinal
	ReExportedFrom  string
}

func (e Entry) String() string {
	if e.Flags.ReExport() {
		return fmt.Sprintf("%#016x: %s (re-exported as %s)", e.Address, e.Name, e.ReExportedFrom)
	}
	return fmt.Sprintf("%#016x: %s", e.Address, e.Name)
}

type node struct {
	offset uint64
	prefix string
}

// Parse walks the trie payload and returns every exported symbol.
func Parse(data []byte) ([]Entry, error) {
	var entries []Entry

	r := types.NewDataReader(data)
	stack := []node{{offset: 0, prefix: ""}}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := r.Seek(int(n.offset)); err != nil {
			return nil, fmt.Errorf("trie node offset %#x: %v", n.offset, err)
		}

		terminalSize, err := r.ReadULEB128()
		if err != nil {
			return nil, fmt.Errorf("failed to read terminal size: %v", err)
		}

		if terminalSize != 0 {
			e := Entry{Name: n.prefix}
			flags, err := r.ReadULEB128()
			if err != nil {
				return nil, fmt.Errorf("failed to read export flags: %v", err)
			}
			e.Flags = ExportFlag(flags)
			if e.Flags.ReExport() {
				if e.Other, err = r.ReadULEB128(); err != nil {
					return nil, fmt.Errorf("failed to read re-export ordinal: %v", err)
				}
				if e.ReExportedFrom, err = r.ReadCString(); err != nil {
					return nil, fmt.Errorf("failed to read re-export name: %v", err)
				}
				if e.ReExportedFrom == "" {
					e.ReExportedFrom = e.Name
				}
			} else {
				if e.Address, err = r.ReadULEB128(); err != nil {
					return nil, fmt.Errorf("failed to read export address: %v", err)
				}
				if e.Flags.StubAndResolver() {
					if e.Other, err = r.ReadULEB128(); err != nil {
						return nil, fmt.Errorf("failed to read resolver offset: %v", err)
					}
				}
			}
			entries = append(entries, e)
		}

		// children follow the terminal payload
		if err := r.Seek(int(n.offset) + ulebLen(terminalSize) + int(terminalSize)); err != nil {
			return nil, err
		}
		childCount, err := r.ReadU8()
		if err != nil {
			return nil, fmt.Errorf("failed to read child count: %v", err)
		}
		for i := 0; i < int(childCount); i++ {
			edge, err := r.ReadCString()
			if err != nil {
				return nil, fmt.Errorf("failed to read edge string: %v", err)
			}
			childOffset, err := r.ReadULEB128()
			if err != nil {
				return nil, fmt.Errorf("failed to read child offset: %v", err)
			}
			if childOffset >= uint64(len(data)) {
				return nil, fmt.Errorf("child offset %#x past end of trie", childOffset)
			}
			stack = append(stack, node{offset: childOffset, prefix: n.prefix + edge})
		}
	}

	return entries, nil
}

func ulebLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
