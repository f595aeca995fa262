package elements

type Element interface {
	Kind() uint64
	Id() string
}

type NamedElement interface {
	Element
	Name() string
}

// Graph is a read-only view of an automaton for diagram writers.
type Graph interface {
	NamedElement
	Vertices() []Vertex
	Transitions() []Transition
}

type Transition interface {
	Source() string
	Target() string
	Guard() string
}

type Vertex interface {
	NamedElement
	Initial() bool
	Final() bool
	// Body is the generated code of the vertex, empty before translation.
	Body() []string
}
