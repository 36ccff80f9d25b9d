package objctype

import (
	"sort"
	"sync"
)

// SignatureSource ranks where a method signature was observed. Protocol
// declarations carry full block signatures, so they outrank class and
// category method lists.
type SignatureSource int

const (
	SourceProtocol SignatureSource = iota
	SourceClass
	SourceCategory
)

// A SignatureEntry is one observation of a selector's type encoding.
type SignatureEntry struct {
	TypeEncoding string
	Source       SignatureSource

	parsed    *MethodType
	parseFail bool
}

func (e *SignatureEntry) methodType() *MethodType {
	if e.parsed == nil && !e.parseFail {
		mt, err := ParseMethodType(e.TypeEncoding)
		if err != nil {
			e.parseFail = true
			return nil
		}
		e.parsed = mt
	}
	return e.parsed
}

// A MethodSignatureRegistry maps selectors to every signature observed for
// them, so that block parameters encoded as bare @? can borrow the richer
// signature a protocol declares for the same selector.
type MethodSignatureRegistry struct {
	mu      sync.RWMutex
	entries map[string][]*SignatureEntry
}

func NewMethodSignatureRegistry() *MethodSignatureRegistry {
	return &MethodSignatureRegistry{entries: make(map[string][]*SignatureEntry)}
}

// Register records one observation of a selector's encoding.
func (r *MethodSignatureRegistry) Register(selector, typeEncoding string, source SignatureSource) {
	if selector == "" || typeEncoding == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries[selector] {
		if e.TypeEncoding == typeEncoding && e.Source == source {
			return
		}
	}
	r.entries[selector] = append(r.entries[selector], &SignatureEntry{
		TypeEncoding: typeEncoding,
		Source:       source,
	})
}

// BlockSignature returns the richest known block type for the selector's
// argument at argIndex (0-based over declared arguments). Protocol sources
// win over class and category sources; the first entry whose argument parses
// into a block with a non-empty signature is used.
func (r *MethodSignatureRegistry) BlockSignature(selector string, argIndex int) *Type {
	r.mu.RLock()
	entries := append([]*SignatureEntry(nil), r.entries[selector]...)
	r.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Source < entries[j].Source
	})

	for _, e := range entries {
		mt := e.methodType()
		if mt == nil {
			continue
		}
		args := mt.Arguments()
		if argIndex >= len(args) {
			continue
		}
		t := args[argIndex].Type
		if t.Kind == Block && t.BlockSig != nil && len(t.BlockSig.Args) > 0 {
			return t
		}
	}
	return nil
}

// Merge folds another registry's observations into this one.
func (r *MethodSignatureRegistry) Merge(other *MethodSignatureRegistry) {
	if other == nil {
		return
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	for sel, entries := range other.entries {
		for _, e := range entries {
			r.Register(sel, e.TypeEncoding, e.Source)
		}
	}
}

// platformTypedefs are spellings substituted for well-known aggregates and
// scalars on 64-bit Apple platforms.
var platformTypedefs = map[string]string{
	"CGFloat":    "double",
	"NSInteger":  "long",
	"NSUInteger": "unsigned long",
	"unichar":    "unsigned short",
	"BOOL":       "signed char",
}

// PlatformTypedef resolves a well-known typedef spelling, returning the input
// when no mapping exists.
func PlatformTypedef(name string) string {
	if mapped, ok := platformTypedefs[name]; ok {
		return mapped
	}
	return name
}

// A StructRegistry accumulates the richest observed definition of every named
// struct and union, so that forward declarations elsewhere in the metadata
// can be expanded to full bodies.
type StructRegistry struct {
	mu      sync.RWMutex
	structs map[string]*Type
}

func NewStructRegistry() *StructRegistry {
	return &StructRegistry{structs: make(map[string]*Type)}
}

// Register walks a type tree and records every named aggregate that carries
// members, keeping the definition with the most members.
func (r *StructRegistry) Register(t *Type) {
	if t == nil {
		return
	}
	r.mu.Lock()
	r.register(t, map[*Type]bool{})
	r.mu.Unlock()
}

func (r *StructRegistry) register(t *Type, visited map[*Type]bool) {
	if t == nil || visited[t] {
		return
	}
	visited[t] = true

	switch t.Kind {
	case Struct, Union:
		if t.Name != "" && t.Members != nil {
			if prev, ok := r.structs[t.Name]; !ok || len(t.Members) > len(prev.Members) {
				r.structs[t.Name] = t
			}
		}
		for _, m := range t.Members {
			r.register(m.Type, visited)
		}
	case Pointer, Array:
		r.register(t.Elem, visited)
	case Block:
		if t.BlockSig != nil {
			for _, a := range t.BlockSig.Args {
				r.register(a.Type, visited)
			}
		}
	}
}

// RegisterMethodType records every aggregate mentioned in a method encoding.
func (r *StructRegistry) RegisterMethodType(mt *MethodType) {
	if mt == nil {
		return
	}
	for _, a := range mt.Args {
		r.Register(a.Type)
	}
}

// Lookup returns the richest known definition for a named aggregate.
func (r *StructRegistry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.structs[name]
	return t, ok
}

// Names returns every registered aggregate name, sorted.
func (r *StructRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.structs))
	for name := range r.structs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve replaces a forward-declared aggregate (named, no members) with its
// richest known body. Cycles through member types terminate via the visited
// set; the input is returned unchanged when nothing richer is known.
func (r *StructRegistry) Resolve(t *Type) *Type {
	return r.resolve(t, map[string]bool{})
}

func (r *StructRegistry) resolve(t *Type, visited map[string]bool) *Type {
	if t == nil {
		return nil
	}
	if (t.Kind == Struct || t.Kind == Union) && t.Name != "" && t.Members == nil {
		if visited[t.Name] {
			return t
		}
		visited[t.Name] = true
		if full, ok := r.Lookup(t.Name); ok {
			return full
		}
	}
	return t
}

// Merge folds another registry into this one under the
// richest-definition-wins policy.
func (r *StructRegistry) Merge(other *StructRegistry) {
	if other == nil {
		return
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	for _, t := range other.structs {
		r.Register(t)
	}
}
