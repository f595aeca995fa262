package fsa_test

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stateforward/go-emg/fsa"
	"github.com/stateforward/go-emg/process"
)

func load(t *testing.T, expression string, subprocesses map[string]string, actions ...string) *process.Process {
	t.Helper()
	text := fmt.Sprintf("environment processes:\n  p:\n    process: %q\n    actions:\n", expression)
	for name, body := range subprocesses {
		text += fmt.Sprintf("      %s:\n        process: %q\n", name, body)
	}
	for _, name := range actions {
		text += fmt.Sprintf("      %s: {}\n", name)
	}
	processes, err := process.Load(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	return processes.Environment[0]
}

func names(states []*fsa.State) []string {
	result := []string{}
	for _, state := range states {
		result = append(result, state.String())
	}
	return result
}

// connected checks that every state but the initial ones has a predecessor
// and that a final state is reachable from every reachable state.
func connected(t *testing.T, automaton *fsa.FSA) {
	t.Helper()
	initial := map[int]bool{}
	for _, state := range automaton.InitialStates() {
		initial[state.ID] = true
	}
	for _, state := range automaton.States() {
		if !initial[state.ID] && state.Predecessors.Size() == 0 {
			t.Errorf("state %s has no predecessor", state)
		}
	}
	for id := range automaton.Reachable().Items() {
		visited := map[int]bool{}
		pending := []int{id}
		terminates := false
		for len(pending) > 0 && !terminates {
			current, _ := automaton.State(pending[0])
			pending = pending[1:]
			if visited[current.ID] {
				continue
			}
			visited[current.ID] = true
			if current.Successors.Size() == 0 {
				terminates = true
			}
			pending = append(pending, current.Successors.Sorted()...)
		}
		if !terminates {
			t.Errorf("state %d never reaches a final state", id)
		}
	}
}

func identifiers(t *testing.T, automaton *fsa.FSA) {
	t.Helper()
	previous := 0
	for _, state := range automaton.States() {
		if state.ID <= previous {
			t.Errorf("identifier %d after %d", state.ID, previous)
		}
		previous = state.ID
	}
}

func TestSequence(t *testing.T) {
	automaton, err := fsa.New(load(t, "[a].<b>", nil, "a", "b"))
	if err != nil {
		t.Fatal(err)
	}
	if got := names(automaton.States()); !slices.Equal(got, []string{"1: dispatch a", "2: condition b"}) {
		t.Fatalf("unexpected states %v", got)
	}
	if got := names(automaton.InitialStates()); !slices.Equal(got, []string{"1: dispatch a"}) {
		t.Errorf("unexpected initial states %v", got)
	}
	if got := names(automaton.FinalStates()); !slices.Equal(got, []string{"2: condition b"}) {
		t.Errorf("unexpected final states %v", got)
	}
	connected(t, automaton)
	identifiers(t, automaton)
}

func TestChoice(t *testing.T) {
	automaton, err := fsa.New(load(t, "<a>.(<b> | <c>).<d>", nil, "a", "b", "c", "d"))
	if err != nil {
		t.Fatal(err)
	}
	d, _ := automaton.State(4)
	if !slices.Equal(d.Predecessors.Sorted(), []int{2, 3}) {
		t.Errorf("expected d to follow both branches, got %v", d.Predecessors.Sorted())
	}
	a, _ := automaton.State(1)
	if !slices.Equal(a.Successors.Sorted(), []int{2, 3}) {
		t.Errorf("expected a to fan out, got %v", a.Successors.Sorted())
	}
	connected(t, automaton)
	identifiers(t, automaton)
}

func TestSubprocessLoop(t *testing.T) {
	p := load(t, "(!start).{loop}", map[string]string{"loop": "<work>.({loop} | <stop>)"}, "start", "work", "stop")
	automaton, err := fsa.New(p)
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"1: receive start", "2: subprocess loop", "3: condition work", "4: subprocess loop", "5: condition stop"}
	if got := names(automaton.States()); !slices.Equal(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	jump, _ := automaton.State(4)
	if !slices.Equal(jump.Successors.Sorted(), []int{3}) {
		t.Errorf("expected the second jump to reuse the body, got %v", jump.Successors.Sorted())
	}
	if len(automaton.StatesOf("work")) != 1 {
		t.Error("expected the body to be expanded once")
	}
	connected(t, automaton)
	identifiers(t, automaton)
}

func TestNormalization(t *testing.T) {
	automaton, err := fsa.New(load(t, "<a> | <b>", nil, "a", "b"))
	if err != nil {
		t.Fatal(err)
	}
	if len(automaton.InitialStates()) != 2 {
		t.Fatalf("expected two initial states, got %v", names(automaton.InitialStates()))
	}
	initial := automaton.SingleInitial()
	if !initial.Artificial() || initial.ID != 3 {
		t.Errorf("unexpected initial state %s", initial)
	}
	final := automaton.SingleFinal()
	if got := names(automaton.FinalStates()); !slices.Equal(got, []string{final.String()}) {
		t.Errorf("expected a single final state, got %v", got)
	}
	connected(t, automaton)
	identifiers(t, automaton)
}

func TestRecursionErrors(t *testing.T) {
	p := load(t, "{a}", map[string]string{"a": "<x>.{a}.<y>"}, "x", "y")
	if _, err := fsa.New(p); !errors.Is(err, process.ErrMalformed) {
		t.Errorf("expected malformed specification error, got %v", err)
	}
}

func TestUnknownNode(t *testing.T) {
	p := load(t, "<a>", nil, "a")
	p.Tree.Nodes[p.Tree.Root].Kind = 0
	if _, err := fsa.New(p); !errors.Is(err, process.ErrMalformed) {
		t.Errorf("expected malformed specification error, got %v", err)
	}
}

func TestAssumption(t *testing.T) {
	cases := []struct {
		guard    []string
		expected string
	}{
		{nil, ""},
		{[]string{"a == 1 || a == 3"}, "a == 1 || a == 3"},
		{[]string{"a == 1 || a == 3", "ready == 1"}, "(a == 1 || a == 3) && (ready == 1)"},
	}
	for _, c := range cases {
		code := &fsa.Code{Guard: c.guard}
		if got := code.Assumption(); got != c.expected {
			t.Errorf("expected %q, got %q", c.expected, got)
		}
	}
	var empty *fsa.Code
	if empty.Assumption() != "" {
		t.Error("expected no assumption without code")
	}
}
