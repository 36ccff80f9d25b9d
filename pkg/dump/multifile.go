package dump

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/appsworld/go-classdump/pkg/objctype"
	"github.com/appsworld/go-classdump/types/objc"
)

// MultiFileVisitor writes one header per class and protocol into a flat
// directory, plus a shared CDStructures.h for forward-declared aggregates.
type MultiFileVisitor struct {
	dir string
	m   *Model

	structNames map[string]bool
}

// NewMultiFileVisitor writes headers under dir, creating it if needed.
func NewMultiFileVisitor(dir string) *MultiFileVisitor {
	return &MultiFileVisitor{dir: dir, structNames: make(map[string]bool)}
}

func (v *MultiFileVisitor) BeginFile(m *Model) error {
	v.m = m
	return os.MkdirAll(v.dir, 0o755)
}

// headerFor renders one entity into its own file through a nested text
// visitor so the emission logic stays in one place.
func (v *MultiFileVisitor) headerFor(name string, emit func(tv *TextVisitor) error) error {
	var buf bytes.Buffer
	tv := NewTextVisitor(&buf)
	if err := tv.BeginFile(v.m); err != nil {
		return err
	}
	if err := emit(tv); err != nil {
		return err
	}
	if err := tv.EndFile(); err != nil {
		return err
	}
	for s := range tv.structNames {
		v.structNames[s] = true
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "#import <Foundation/Foundation.h>\n")
	if len(v.structNames) > 0 {
		fmt.Fprintf(&out, "#import \"CDStructures.h\"\n")
	}
	out.WriteString("\n")
	out.Write(buf.Bytes())

	path := filepath.Join(v.dir, sanitizeFileName(name))
	return os.WriteFile(path, out.Bytes(), 0o644)
}

func sanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', ':', ' ':
			return '_'
		}
		return r
	}, name)
	return name
}

func (v *MultiFileVisitor) VisitProtocol(p *objc.Protocol) error {
	return v.headerFor(p.Name+"-Protocol.h", func(tv *TextVisitor) error {
		return tv.VisitProtocol(p)
	})
}

func (v *MultiFileVisitor) VisitClass(c *objc.Class) error {
	return v.headerFor(v.m.DisplayName(c.Name)+".h", func(tv *TextVisitor) error {
		return tv.VisitClass(c)
	})
}

func (v *MultiFileVisitor) VisitCategory(c *objc.Category) error {
	name := fmt.Sprintf("%s+%s.h", v.m.DisplayName(c.Class.Name), c.Name)
	return v.headerFor(name, func(tv *TextVisitor) error {
		return tv.VisitCategory(c)
	})
}

func (v *MultiFileVisitor) EndFile() error {
	if v.m.opts.HideStructures {
		return nil
	}

	var names []string
	for name := range v.structNames {
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	var b bytes.Buffer
	b.WriteString("#ifndef CDStructures_h\n#define CDStructures_h\n\n")
	opts := &objctype.Options{Style: v.m.opts.Style, ExpandStructs: true, Structs: v.m.Structs}
	for _, name := range names {
		if t, ok := v.m.Structs.Lookup(name); ok {
			b.WriteString(objctype.FormatType(t, "", opts) + ";\n\n")
		} else {
			fmt.Fprintf(&b, "struct %s;\n\n", name)
		}
	}
	b.WriteString("#endif /* CDStructures_h */\n")

	return os.WriteFile(filepath.Join(v.dir, "CDStructures.h"), b.Bytes(), 0o644)
}
