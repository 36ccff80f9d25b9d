package swiftdemangle

// Standard-library shortcuts: 'S' followed by one character.
var stdlibShortcuts = map[byte]string{
	'a': "Array",
	'b': "Bool",
	'c': "UnicodeScalar",
	'D': "Dictionary",
	'd': "Double",
	'f': "Float",
	'h': "Set",
	'i': "Int",
	'J': "Character",
	'N': "ClosedRange",
	'n': "Range",
	'O': "ObjectIdentifier",
	'P': "UnsafePointer",
	'p': "UnsafeMutablePointer",
	'R': "UnsafeBufferPointer",
	'r': "UnsafeMutableBufferPointer",
	'S': "String",
	's': "Substring",
	'u': "UInt",
	'V': "UnsafeRawPointer",
	'v': "UnsafeMutableRawPointer",
	'q': "Optional",
	'B': "BinaryFloatingPoint",
	'E': "Encodable",
	'e': "Decodable",
	'F': "FloatingPoint",
	'G': "RandomNumberGenerator",
	'H': "Hashable",
	'j': "Numeric",
	'L': "Comparable",
	'k': "BidirectionalCollection",
	'K': "RandomAccessCollection",
	'M': "MutableCollection",
	'Q': "Equatable",
	'T': "Sequence",
	'l': "Collection",
	'U': "UnsignedInteger",
	'X': "RangeReplaceableCollection",
	'x': "Strideable",
	'Y': "RawRepresentable",
	'y': "StringProtocol",
	'Z': "SignedInteger",
	'z': "BinaryInteger",
}

// Fixed-width integer forms mangled as sN<Name>V.
var fixedWidthInts = map[string]string{
	"s4Int8V":   "Int8",
	"s5Int16V":  "Int16",
	"s5Int32V":  "Int32",
	"s5Int64V":  "Int64",
	"s5UInt8V":  "UInt8",
	"s6UInt16V": "UInt16",
	"s6UInt32V": "UInt32",
	"s6UInt64V": "UInt64",
}

// Concurrency types: 'Sc' followed by one character.
var concurrencyShortcuts = map[byte]string{
	'T': "Task",
	'C': "CheckedContinuation",
	'U': "UnsafeContinuation",
	'A': "Actor",
	'M': "MainActor",
	'S': "AsyncStream",
	'F': "AsyncThrowingStream",
	'g': "TaskGroup",
	'G': "ThrowingTaskGroup",
	'P': "TaskPriority",
	'I': "AsyncIteratorProtocol",
	'i': "AsyncSequence",
	's': "AsyncThrowingStream",
	'e': "Executor",
	'J': "Job",
	'c': "UnownedJob",
}

// Builtin types: 'B' followed by one character. 'Bi<N>_' fixed-width forms
// are handled in the parser.
var builtinShortcuts = map[byte]string{
	'b': "Builtin.BridgeObject",
	'B': "Builtin.UnsafeValueBuffer",
	'D': "Builtin.DefaultActorStorage",
	'e': "Builtin.Executor",
	'f': "Builtin.FPIEEE",
	'i': "Builtin.IntLiteral",
	'I': "Builtin.IntLiteral",
	'j': "Builtin.Job",
	'o': "Builtin.NativeObject",
	'O': "Builtin.UnknownObject",
	'p': "Builtin.RawPointer",
	'P': "Builtin.PackIndex",
	't': "Builtin.SILToken",
	'w': "Builtin.Word",
}

// Context kind codes for old-style (_Tt) mangling.
var oldStyleKinds = map[byte]NodeKind{
	'C': KindClass,
	'V': KindStruct,
	'O': KindEnum,
	'P': KindProtocol,
}

// nominalTypeKinds maps new-style context kind characters to node kinds.
var nominalTypeKinds = map[byte]NodeKind{
	'C': KindClass,
	'V': KindStruct,
	'O': KindEnum,
	'P': KindProtocol,
	'a': KindTypeAlias,
}
