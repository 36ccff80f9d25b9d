package swiftdemangle

import "strings"

// Format renders a node tree in Swift syntax.
func Format(n *Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindArray:
		return "[" + Format(child(n, 0)) + "]"
	case KindDictionary:
		return "[" + Format(child(n, 0)) + ": " + Format(child(n, 1)) + "]"
	case KindSet:
		return "Set<" + Format(child(n, 0)) + ">"
	case KindOptional:
		inner := child(n, 0)
		s := Format(inner)
		if inner != nil && inner.Kind == KindClosure {
			s = "(" + s + ")"
		}
		return s + "?"
	case KindBoundGeneric:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = Format(c)
		}
		return n.Text + "<" + strings.Join(parts, ", ") + ">"
	case KindTuple:
		if n.Text == "Void" || len(n.Children) == 0 {
			if n.Text == "Void" {
				return "Void"
			}
			return "()"
		}
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = Format(c)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindMetatype:
		return Format(child(n, 0)) + ".Type"
	case KindClosure:
		return formatClosureSwift(n)
	case KindFunction:
		return formatFuncSwift(n)
	case KindConstraint:
		return n.Text
	default:
		return n.Text
	}
}

func child(n *Node, i int) *Node {
	if n == nil || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

func formatClosureSwift(n *Node) string {
	args := child(n, 0)
	ret := child(n, 1)

	var b strings.Builder
	switch n.Flags.Convention {
	case ConventionBlock:
		b.WriteString("@convention(block) ")
	case ConventionCFunction:
		b.WriteString("@convention(c) ")
	case ConventionThin:
		b.WriteString("@convention(thin) ")
	case ConventionSwift:
		if n.Flags.Escaping {
			b.WriteString("@escaping ")
		}
	}
	if n.Flags.Sendable {
		b.WriteString("@Sendable ")
	}

	var params []string
	if args != nil {
		for _, a := range args.Children {
			params = append(params, Format(a))
		}
	}
	b.WriteString("(" + strings.Join(params, ", ") + ")")

	if n.Flags.Async {
		b.WriteString(" async")
	}
	if n.Flags.Throws {
		if n.Flags.ErrorType != nil {
			b.WriteString(" throws(" + Format(n.Flags.ErrorType) + ")")
		} else {
			b.WriteString(" throws")
		}
	}

	retStr := "Void"
	if ret != nil && len(ret.Children) > 0 {
		retStr = Format(ret.Children[0])
	}
	b.WriteString(" -> " + retStr)
	return b.String()
}

// FormatClosureBlock renders a closure node in Objective-C block syntax:
// R (^)(A1, A2).
func FormatClosureBlock(n *Node) string {
	if n == nil || n.Kind != KindClosure {
		return Format(n)
	}
	args := child(n, 0)
	ret := child(n, 1)

	retStr := "void"
	if ret != nil && len(ret.Children) > 0 {
		if s := Format(ret.Children[0]); s != "Void" {
			retStr = s
		}
	}
	var params []string
	if args != nil {
		for _, a := range args.Children {
			params = append(params, Format(a))
		}
	}
	paramStr := "void"
	if len(params) > 0 {
		paramStr = strings.Join(params, ", ")
	}
	return retStr + " (^)(" + paramStr + ")"
}

func formatFuncSwift(n *Node) string {
	args := child(n, 0)
	ret := child(n, 1)

	var b strings.Builder
	b.WriteString("func " + n.Text + "(")
	var params []string
	if args != nil {
		for _, a := range args.Children {
			label := a.Text
			if label == "" {
				label = "_"
			}
			params = append(params, label+": "+Format(child(a, 0)))
		}
	}
	b.WriteString(strings.Join(params, ", ") + ")")

	if n.Flags.Async {
		b.WriteString(" async")
	}
	if n.Flags.Throws {
		if n.Flags.ErrorType != nil {
			b.WriteString(" throws(" + Format(n.Flags.ErrorType) + ")")
		} else {
			b.WriteString(" throws")
		}
	}

	retStr := "Void"
	if ret != nil && len(ret.Children) > 0 {
		retStr = Format(ret.Children[0])
	}
	if retStr != "Void" {
		b.WriteString(" -> " + retStr)
	}

	// trailing constraint children form the where clause
	var constraints []string
	for _, c := range n.Children[2:] {
		if c.Kind == KindConstraint {
			constraints = append(constraints, c.Text)
		}
	}
	if len(constraints) > 0 {
		b.WriteString(" where " + strings.Join(constraints, ", "))
	}
	return b.String()
}

// FormatFuncObjC renders a function node as an Objective-C-style method line.
func FormatFuncObjC(n *Node) string {
	if n == nil || n.Kind != KindFunction {
		return Format(n)
	}
	ret := child(n, 1)
	retStr := "void"
	if ret != nil && len(ret.Children) > 0 {
		if s := Format(ret.Children[0]); s != "Void" {
			retStr = s
		}
	}
	name := n.Text
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return "- (" + retStr + ")" + name
}
