// Package swiftdemangle demangles the subset of the Swift name-mangling
// grammar that shows up in Mach-O string tables and reflection metadata:
// nominal type names (old _Tt and new $s styles), stdlib and builtin
// shortcuts, bound generics with syntactic sugar, concurrency types,
// function symbols, closures, and generic-signature constraints.
package swiftdemangle

// NodeKind identifies the semantic role of a node in the demangling tree.
type NodeKind string

const (
	KindUnknown    NodeKind = "unknown"
	KindIdentifier NodeKind = "identifier"
	KindModule     NodeKind = "module"

	KindClass     NodeKind = "class"
	KindStruct    NodeKind = "struct"
	KindEnum      NodeKind = "enum"
	KindProtocol  NodeKind = "protocol"
	KindTypeAlias NodeKind = "typealias"

	KindTuple        NodeKind = "tuple"
	KindFunction     NodeKind = "function"
	KindClosure      NodeKind = "closure"
	KindArgument     NodeKind = "argument"
	KindReturnType   NodeKind = "returnType"
	KindMetatype     NodeKind = "metatype"
	KindBoundGeneric NodeKind = "boundGeneric"

	KindOptional   NodeKind = "optional"
	KindArray      NodeKind = "array"
	KindDictionary NodeKind = "dictionary"
	KindSet        NodeKind = "set"

	KindGenericParam NodeKind = "genericParam"
	KindConstraint   NodeKind = "constraint"
)

// ClosureConvention names how a closure value is passed.
type ClosureConvention int

const (
	ConventionSwift ClosureConvention = iota // default, escaping
	ConventionBlock
	ConventionCFunction
	ConventionNoEscape
	ConventionThin
)

// NodeFlags carries effect and convention attributes for function-ish nodes.
type NodeFlags struct {
	Async      bool
	Throws     bool
	Sendable   bool
	Escaping   bool
	Convention ClosureConvention
	// ErrorType is set for typed throws.
	ErrorType *Node
}

// Node is one demangled element.
type Node struct {
	Kind     NodeKind
	Text     string
	Children []*Node
	Flags    NodeFlags
}

func NewNode(kind NodeKind, text string) *Node {
	return &Node{Kind: kind, Text: text}
}

func (n *Node) Append(children ...*Node) {
	if len(children) == 0 {
		return
	}
	n.Children = append(n.Children, children...)
}

// Clone shallow-copies the node; children references are shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Text: n.Text, Flags: n.Flags}
	if len(n.Children) > 0 {
		out.Children = append([]*Node(nil), n.Children...)
	}
	return out
}

// nominal builds a dotted nominal-type node.
func nominal(kind NodeKind, path ...string) *Node {
	text := ""
	for i, p := range path {
		if p == "" {
			continue
		}
		if i > 0 && text != "" {
			text += "."
		}
		text += p
	}
	return NewNode(kind, text)
}
