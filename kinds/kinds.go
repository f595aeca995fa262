package kinds

const (
	length   = 64
	idLength = 8
	depthMax = length / idLength
	idMask   = (1 << idLength) - 1
)

// Bases returns the "base" IDs at each level
// (beyond the first) by shifting and masking.
func Bases(t uint64) [depthMax]uint64 {
	var bases [depthMax]uint64
	for i := 1; i < depthMax; i++ {
		bases[i-1] = (t >> (idLength * i)) & idMask
	}
	return bases
}

func Kind(id uint64, bases ...uint64) uint64 {
	id = id & idMask
	ids := make(map[uint64]struct{})

	for _, base := range bases {
		for j := 0; j < depthMax; j++ {
			baseId := (base >> (idLength * j)) & idMask
			if baseId == 0 {
				break
			}
			if _, ok := ids[baseId]; !ok {
				ids[baseId] = struct{}{}
				id |= baseId << (idLength * len(ids))
			}
		}
	}
	return id
}

// IsKind checks if kind matches any of the bases provided.
func IsKind(kind uint64, bases ...uint64) bool {
	for _, base := range bases {
		baseId := base & idMask
		if kind == baseId {
			return true
		}
		for i := 0; i < depthMax; i++ {
			currentId := (kind >> (idLength * i)) & idMask
			if currentId == baseId {
				return true
			}
		}
	}
	return false
}

var (
	Null    = Kind(0)
	Element = Kind(1)

	// process AST
	Node     = Kind(2, Element)
	Sequence = Kind(3, Node)
	Choice   = Kind(4, Node)

	// actions, the leaves of a process AST
	Action     = Kind(5, Node)
	Dispatch   = Kind(6, Action)
	Receive    = Kind(7, Action)
	Call       = Kind(8, Action)
	CallRetval = Kind(9, Call)
	Condition  = Kind(10, Action)
	Subprocess = Kind(11, Action)

	// C declarations
	Declaration        = Kind(12, Element)
	Primitive          = Kind(13, Declaration)
	Pointer            = Kind(14, Declaration)
	Function           = Kind(15, Declaration)
	Structure          = Kind(16, Declaration)
	Array              = Kind(17, Declaration)
	Union              = Kind(18, Declaration)
	InterfaceReference = Kind(19, Declaration)

	// interfaces
	Interface         = Kind(20, Element)
	Container         = Kind(21, Interface)
	Resource          = Kind(22, Interface)
	Callback          = Kind(23, Interface)
	FunctionInterface = Kind(24, Interface)

	// automata
	EventProcess = Kind(25, Element)
	ModelProcess = Kind(26, Element)
	EntryProcess = Kind(27, Element)
)

var names = map[uint64]string{
	Null:               "null",
	Element:            "element",
	Node:               "node",
	Sequence:           "sequence",
	Choice:             "choice",
	Action:             "action",
	Dispatch:           "dispatch",
	Receive:            "receive",
	Call:               "call",
	CallRetval:         "call retval",
	Condition:          "condition",
	Subprocess:         "subprocess",
	Declaration:        "declaration",
	Primitive:          "primitive",
	Pointer:            "pointer",
	Function:           "function",
	Structure:          "structure",
	Array:              "array",
	Union:              "union",
	InterfaceReference: "interface reference",
	Interface:          "interface",
	Container:          "container",
	Resource:           "resource",
	Callback:           "callback",
	FunctionInterface:  "function",
	EventProcess:       "event process",
	ModelProcess:       "model process",
	EntryProcess:       "entry process",
}

// Name returns a human readable name of a kind for diagnostics.
func Name(kind uint64) string {
	if name, ok := names[kind]; ok {
		return name
	}
	return "unknown"
}
