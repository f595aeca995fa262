// Package fsa turns the AST of a process into a finite state automaton with
// one state per action occurrence. States live in an arena addressed by
// integer identifiers, so loops created by subprocess jumps need no special
// ownership.
package fsa

import (
	"fmt"
	"slices"
	"strings"

	"github.com/stateforward/go-emg/kinds"
	"github.com/stateforward/go-emg/pkg/set"
	"github.com/stateforward/go-emg/process"
	"github.com/stateforward/go-emg/queue"
)

// Code is filled in by the translator: Guard holds conditions that must
// hold before the state runs and Body its statements.
type Code struct {
	Guard []string
	Body  []string
	// Relevant lists the automata whose states the guard mentions.
	Relevant []int
	File     string
}

// Assumption is the conjunction of the guards. With several guards each one
// is parenthesized, so a disjunction in one of them keeps its meaning.
func (c *Code) Assumption() string {
	if c == nil || len(c.Guard) == 0 {
		return ""
	}
	if len(c.Guard) == 1 {
		return c.Guard[0]
	}
	conjuncts := make([]string, len(c.Guard))
	for index, guard := range c.Guard {
		conjuncts[index] = "(" + guard + ")"
	}
	return strings.Join(conjuncts, " && ")
}

type State struct {
	ID           int
	Action       *process.Action
	Predecessors set.Set[int]
	Successors   set.Set[int]
	Code         *Code
}

func (s *State) String() string {
	if s.Action == nil {
		return fmt.Sprintf("%d: artificial", s.ID)
	}
	return fmt.Sprintf("%d: %s", s.ID, s.Action)
}

// Artificial reports whether the state realizes no action.
func (s *State) Artificial() bool {
	return s.Action == nil
}

type FSA struct {
	Process *process.Process
	states  map[int]*State
	initial set.Set[int]
	last    int
}

// Empty returns an automaton without states, used by the translator to add
// artificial states.
func Empty(p *process.Process) *FSA {
	return &FSA{Process: p, states: map[int]*State{}, initial: set.New[int]()}
}

// AddState creates a state with the next identifier.
func (f *FSA) AddState(action *process.Action) *State {
	f.last++
	state := &State{ID: f.last, Action: action, Predecessors: set.New[int](), Successors: set.New[int]()}
	f.states[state.ID] = state
	return state
}

func (f *FSA) AddEdge(from, to int) {
	f.states[from].Successors.Add(to)
	f.states[to].Predecessors.Add(from)
}

func (f *FSA) RemoveEdge(from, to int) {
	f.states[from].Successors.Remove(to)
	f.states[to].Predecessors.Remove(from)
}

func (f *FSA) State(id int) (*State, bool) {
	state, ok := f.states[id]
	return state, ok
}

// States returns all states in identifier order.
func (f *FSA) States() []*State {
	ids := make([]int, 0, len(f.states))
	for id := range f.states {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	states := make([]*State, 0, len(ids))
	for _, id := range ids {
		states = append(states, f.states[id])
	}
	return states
}

func (f *FSA) InitialStates() []*State {
	states := []*State{}
	for id := range f.initial.Items() {
		states = append(states, f.states[id])
	}
	return states
}

// SetInitial replaces the initial states.
func (f *FSA) SetInitial(ids ...int) {
	f.initial = set.New(ids...)
}

func (f *FSA) FinalStates() []*State {
	states := []*State{}
	for _, state := range f.States() {
		if state.Successors.Size() == 0 {
			states = append(states, state)
		}
	}
	return states
}

// Successors returns the successor states of a state in identifier order.
func (f *FSA) Successors(state *State) []*State {
	states := make([]*State, 0, state.Successors.Size())
	for id := range state.Successors.Items() {
		states = append(states, f.states[id])
	}
	return states
}

// StatesOf returns the states realizing the named action.
func (f *FSA) StatesOf(action string) []*State {
	states := []*State{}
	for _, state := range f.States() {
		if state.Action != nil && state.Action.Name == action {
			states = append(states, state)
		}
	}
	return states
}

// Reachable returns the states reachable from the initial states.
func (f *FSA) Reachable() set.Set[int] {
	reached := set.New[int]()
	pending := queue.New(f.initial.Sorted()...)
	for pending.Len() > 0 {
		id, _ := pending.Pop()
		if reached.Contains(id) {
			continue
		}
		reached.Add(id)
		pending.Push(f.states[id].Successors.Sorted()...)
	}
	return reached
}

// SingleInitial adds an artificial initial state in front of several
// initial states and returns the only initial state.
func (f *FSA) SingleInitial() *State {
	initial := f.InitialStates()
	if len(initial) == 1 {
		return initial[0]
	}
	state := f.AddState(nil)
	for _, old := range initial {
		f.AddEdge(state.ID, old.ID)
	}
	f.SetInitial(state.ID)
	return state
}

// SingleFinal adds an artificial state after every final state and every
// state that may leave the process, and returns it.
func (f *FSA) SingleFinal(exits ...*State) *State {
	final := append(f.FinalStates(), exits...)
	state := f.AddState(nil)
	for _, old := range final {
		f.AddEdge(old.ID, state.ID)
	}
	if len(f.states) == 1 {
		f.SetInitial(state.ID)
	}
	return state
}

type jumpKey struct {
	name         string
	predecessors string
}

func key(name string, predecessors set.Set[int]) jumpKey {
	ids := []string{}
	for id := range predecessors.Items() {
		ids = append(ids, fmt.Sprint(id))
	}
	return jumpKey{name: name, predecessors: strings.Join(ids, ",")}
}

// frame is one AST node being expanded. For sequences current holds the
// exits of the last expanded child, for choices exits accumulates the exits
// of every branch.
type frame struct {
	node         int
	predecessors set.Set[int]
	child        int
	current      set.Set[int]
	exits        set.Set[int]
	expanding    string
}

type builder struct {
	fsa        *FSA
	tree       *process.AST
	jumps      map[jumpKey]set.Set[int]
	first      map[string]*State
	bodies     map[string]set.Set[int]
	inProgress set.Set[string]
}

// New builds the automaton of a process. States are created in AST order
// with identifiers from 1. A subprocess body is expanded once; later jumps
// to it reuse its states and a jump from the same predecessors reuses the
// jump itself.
func New(p *process.Process) (*FSA, error) {
	b := &builder{
		fsa:        Empty(p),
		tree:       p.Tree,
		jumps:      map[jumpKey]set.Set[int]{},
		first:      map[string]*State{},
		bodies:     map[string]set.Set[int]{},
		inProgress: set.New[string](),
	}
	if p.Tree == nil || len(p.Tree.Nodes) == 0 {
		return nil, fmt.Errorf("%w: process %s has no actions", process.ErrMalformed, p)
	}
	if err := b.build(); err != nil {
		return nil, fmt.Errorf("process %s: %w", p, err)
	}
	return b.fsa, nil
}

func (b *builder) build() error {
	stack := queue.New(&frame{node: b.tree.Root, predecessors: set.New[int]()})
	var result set.Set[int]
	finish := func(exits set.Set[int]) {
		stack.PopBack()
		result = exits
	}
	for stack.Len() > 0 {
		top, _ := stack.Peek()
		node := b.tree.Node(top.node)
		switch {
		case node.Kind == kinds.Sequence:
			if top.child == 0 {
				top.current = top.predecessors
			} else {
				top.current = result
			}
			if top.child == len(node.Children) {
				finish(top.current)
				continue
			}
			if top.child > 0 && top.current.Size() == 0 {
				return fmt.Errorf("%w: actions follow a recursive subprocess jump", process.ErrMalformed)
			}
			stack.Push(&frame{node: node.Children[top.child], predecessors: top.current})
			top.child++
		case node.Kind == kinds.Choice:
			if top.child == 0 {
				top.exits = set.New[int]()
			} else {
				top.exits = top.exits.Union(result)
			}
			if top.child == len(node.Children) {
				finish(top.exits)
				continue
			}
			stack.Push(&frame{node: node.Children[top.child], predecessors: top.predecessors})
			top.child++
		case node.Kind == kinds.Subprocess:
			if top.expanding != "" {
				b.bodies[top.expanding] = result
				b.inProgress.Remove(top.expanding)
				b.jumps[key(node.Name, top.predecessors)] = result
				finish(result)
				continue
			}
			exits, body, err := b.jump(node.Name, top.predecessors)
			if err != nil {
				return err
			}
			if body < 0 {
				finish(exits)
				continue
			}
			top.expanding = node.Name
			stack.Push(&frame{node: body, predecessors: exits})
		case kinds.IsKind(node.Kind, kinds.Action):
			action, err := b.fsa.Process.Action(node.Name)
			if err != nil {
				return err
			}
			state := b.fsa.AddState(action)
			b.link(top.predecessors, state)
			finish(set.New(state.ID))
		default:
			return fmt.Errorf("%w: unknown AST node of kind %s", process.ErrMalformed, kinds.Name(node.Kind))
		}
	}
	return nil
}

func (b *builder) link(predecessors set.Set[int], state *State) {
	if predecessors.Size() == 0 {
		b.fsa.initial.Add(state.ID)
	}
	for id := range predecessors.Items() {
		b.fsa.AddEdge(id, state.ID)
	}
}

// jump creates the state of a subprocess jump. It returns the exits of the
// jump when the body is already known, or the jump state and the AST index
// of the body that has to be expanded after it.
func (b *builder) jump(name string, predecessors set.Set[int]) (set.Set[int], int, error) {
	k := key(name, predecessors)
	if exits, ok := b.jumps[k]; ok {
		return exits, -1, nil
	}
	action, err := b.fsa.Process.Action(name)
	if err != nil {
		return nil, -1, err
	}
	if action.Subprocess == nil {
		return nil, -1, fmt.Errorf("%w: %s is not a subprocess", process.ErrMalformed, action)
	}
	state := b.fsa.AddState(action)
	b.link(predecessors, state)
	first, expanded := b.first[name]
	if !expanded {
		b.first[name] = state
		b.inProgress.Add(name)
		// placeholder for jumps from the same predecessors inside the body
		b.jumps[k] = set.New[int]()
		return set.New(state.ID), action.Subprocess.Root, nil
	}
	if first.Successors.Size() == 0 {
		return nil, -1, fmt.Errorf("%w: subprocess %s jumps to itself before any action", process.ErrMalformed, name)
	}
	for id := range first.Successors.Items() {
		b.fsa.AddEdge(state.ID, id)
	}
	exits := set.New[int]()
	if !b.inProgress.Contains(name) {
		exits = b.bodies[name]
	}
	b.jumps[k] = exits
	return exits, -1, nil
}
