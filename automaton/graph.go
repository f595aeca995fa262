package automaton

import (
	"strconv"

	"github.com/stateforward/go-emg/elements"
	"github.com/stateforward/go-emg/fsa"
	"github.com/stateforward/go-emg/kinds"
	"github.com/stateforward/go-emg/pkg/set"
)

type graph struct {
	automaton *Automaton
}

type vertex struct {
	state   *fsa.State
	initial bool
}

type transition struct {
	source, target *fsa.State
}

// Graph returns a view of the automaton for the diagram writers.
func (a *Automaton) Graph() elements.Graph {
	return &graph{automaton: a}
}

func (g *graph) Kind() uint64 {
	return g.automaton.Process.Kind
}

func (g *graph) Id() string {
	return strconv.Itoa(g.automaton.ID)
}

func (g *graph) Name() string {
	return g.automaton.Name()
}

func (g *graph) Vertices() []elements.Vertex {
	initial := set.New[int]()
	for _, state := range g.automaton.FSA.InitialStates() {
		initial.Add(state.ID)
	}
	vertices := []elements.Vertex{}
	for _, state := range g.automaton.FSA.States() {
		vertices = append(vertices, &vertex{state: state, initial: initial.Contains(state.ID)})
	}
	return vertices
}

func (g *graph) Transitions() []elements.Transition {
	transitions := []elements.Transition{}
	for _, state := range g.automaton.FSA.States() {
		for _, successor := range g.automaton.FSA.Successors(state) {
			transitions = append(transitions, &transition{source: state, target: successor})
		}
	}
	return transitions
}

func (v *vertex) Kind() uint64 {
	if v.state.Action == nil {
		return kinds.Null
	}
	return v.state.Action.Kind
}

func (v *vertex) Id() string {
	return strconv.Itoa(v.state.ID)
}

func (v *vertex) Name() string {
	if v.state.Action == nil {
		return "artificial"
	}
	return kinds.Name(v.state.Action.Kind) + " " + v.state.Action.Name
}

func (v *vertex) Initial() bool {
	return v.initial
}

func (v *vertex) Final() bool {
	return v.state.Successors.Size() == 0
}

func (v *vertex) Body() []string {
	if v.state.Code == nil {
		return nil
	}
	return v.state.Code.Body
}

func (t *transition) Source() string {
	return strconv.Itoa(t.source.ID)
}

func (t *transition) Target() string {
	return strconv.Itoa(t.target.ID)
}

// Guard is the guard of the target state, which the translator checks when
// the transition is taken.
func (t *transition) Guard() string {
	return t.target.Code.Assumption()
}
