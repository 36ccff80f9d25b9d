package dump

import (
	"encoding/json"
	"io"

	"github.com/appsworld/go-classdump/types/objc"
)

// JSONVisitor implements the same capability set as the text visitor but
// accumulates a machine-readable document.
type JSONVisitor struct {
	w   io.Writer
	doc jsonDocument
}

type jsonDocument struct {
	File      string         `json:"file,omitempty"`
	Arch      string         `json:"arch"`
	UUID      string         `json:"uuid,omitempty"`
	Platform  string         `json:"platform,omitempty"`
	SDK       string         `json:"sdk,omitempty"`
	Protocols []jsonProtocol `json:"protocols,omitempty"`
	Classes   []jsonClass    `json:"classes,omitempty"`
	Categories []jsonCategory `json:"categories,omitempty"`
}

type jsonMethod struct {
	Selector string `json:"selector"`
	Types    string `json:"types"`
	Address  uint64 `json:"address,omitempty"`
}

type jsonProperty struct {
	Name       string `json:"name"`
	Attributes string `json:"attributes"`
}

type jsonIvar struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	SwiftType string `json:"swiftType,omitempty"`
	Offset    uint32 `json:"offset"`
}

type jsonClass struct {
	Name            string         `json:"name"`
	SuperClass      string         `json:"superclass,omitempty"`
	SuperExternal   bool           `json:"superclassExternal,omitempty"`
	Swift           bool           `json:"swift,omitempty"`
	Protocols       []string       `json:"protocols,omitempty"`
	Ivars           []jsonIvar     `json:"ivars,omitempty"`
	Properties      []jsonProperty `json:"properties,omitempty"`
	ClassMethods    []jsonMethod   `json:"classMethods,omitempty"`
	InstanceMethods []jsonMethod   `json:"instanceMethods,omitempty"`
}

type jsonProtocol struct {
	Name            string       `json:"name"`
	Parents         []string     `json:"parents,omitempty"`
	ClassMethods    []jsonMethod `json:"classMethods,omitempty"`
	InstanceMethods []jsonMethod `json:"instanceMethods,omitempty"`
	OptionalClassMethods    []jsonMethod `json:"optionalClassMethods,omitempty"`
	OptionalInstanceMethods []jsonMethod `json:"optionalInstanceMethods,omitempty"`
}

type jsonCategory struct {
	Name            string       `json:"name"`
	Class           string       `json:"class"`
	ClassMethods    []jsonMethod `json:"classMethods,omitempty"`
	InstanceMethods []jsonMethod `json:"instanceMethods,omitempty"`
}

// NewJSONVisitor writes one JSON document to w at EndFile.
func NewJSONVisitor(w io.Writer) *JSONVisitor {
	return &JSONVisitor{w: w}
}

func (v *JSONVisitor) BeginFile(m *Model) error {
	v.doc = jsonDocument{
		File:     m.FilePath,
		Arch:     m.ArchName,
		UUID:     m.UUID,
		Platform: m.Platform,
		SDK:      m.SDK,
	}
	return nil
}

func jsonMethods(ms []objc.Method) []jsonMethod {
	out := make([]jsonMethod, 0, len(ms))
	for _, m := range ms {
		out = append(out, jsonMethod{Selector: m.Name, Types: m.Types, Address: m.ImpVMAddr})
	}
	return out
}

func (v *JSONVisitor) VisitProtocol(p *objc.Protocol) error {
	v.doc.Protocols = append(v.doc.Protocols, jsonProtocol{
		Name:                    p.Name,
		Parents:                 p.ParentNames(),
		ClassMethods:            jsonMethods(p.ClassMethods),
		InstanceMethods:         jsonMethods(p.InstanceMethods),
		OptionalClassMethods:    jsonMethods(p.OptionalClassMethods),
		OptionalInstanceMethods: jsonMethods(p.OptionalInstanceMethods),
	})
	return nil
}

func (v *JSONVisitor) VisitClass(c *objc.Class) error {
	jc := jsonClass{
		Name:            c.Name,
		SuperClass:      c.SuperClass.Name,
		SuperExternal:   c.SuperClass.IsExternal(),
		Swift:           c.IsSwift(),
		Protocols:       c.ProtocolNames(),
		ClassMethods:    jsonMethods(c.ClassMethods),
		InstanceMethods: jsonMethods(c.InstanceMethods),
	}
	for _, iv := range c.Ivars {
		jc.Ivars = append(jc.Ivars, jsonIvar{Name: iv.Name, Type: iv.Type, SwiftType: iv.SwiftType, Offset: iv.Offset})
	}
	for _, prop := range c.Properties {
		jc.Properties = append(jc.Properties, jsonProperty{Name: prop.Name, Attributes: prop.Attributes})
	}
	v.doc.Classes = append(v.doc.Classes, jc)
	return nil
}

func (v *JSONVisitor) VisitCategory(c *objc.Category) error {
	v.doc.Categories = append(v.doc.Categories, jsonCategory{
		Name:            c.Name,
		Class:           c.Class.Name,
		ClassMethods:    jsonMethods(c.ClassMethods),
		InstanceMethods: jsonMethods(c.InstanceMethods),
	})
	return nil
}

func (v *JSONVisitor) EndFile() error {
	enc := json.NewEncoder(v.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v.doc)
}
