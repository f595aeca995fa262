package translator

import (
	"fmt"
	"slices"

	"github.com/stateforward/go-emg/automaton"
	"github.com/stateforward/go-emg/cmodel"
	"github.com/stateforward/go-emg/ctype"
	"github.com/stateforward/go-emg/fsa"
	"github.com/stateforward/go-emg/kinds"
)

// sequential calls control functions directly. A dispatch moves the
// receiver past its receive state and runs it until it waits again, so
// the whole model runs in one thread without preemption.
type sequential struct {
	translator *Translator
}

func comment(state *fsa.State) string {
	if state.Action.Comment != "" {
		return "/* " + state.Action.Comment + " */"
	}
	return fmt.Sprintf("/* %s %s */", kinds.Name(state.Action.Kind), state.Action.Name)
}

func countStates(checks []Check) int {
	count := 0
	for _, check := range checks {
		count += len(check.States)
	}
	return count
}

// deliver wraps a block for one receiving state: an assumption that the
// peer waits in it when one of several blocks is chosen, a check when the
// signal is broadcast.
func deliver(state *fsa.State, peer *automaton.Automaton, receive *fsa.State, multiple bool, block []string) []string {
	condition := fmt.Sprintf("%s == %d", peer.StateVariable().Name, receive.ID)
	switch {
	case state.Action.Signal.Broadcast:
		return slices.Concat([]string{fmt.Sprintf("if (%s) {", condition)}, indent(block), []string{"}"})
	case multiple:
		return append([]string{fmt.Sprintf("ldv_assume(%s);", condition)}, block...)
	}
	return block
}

func (s *sequential) Dispatch(a *automaton.Automaton, state *fsa.State) (*fsa.Code, error) {
	conditions, err := a.Texts(state.Action.Condition)
	if err != nil {
		return nil, err
	}
	checks := s.translator.RelevantChecks(a, state)
	if len(checks) == 0 {
		return &fsa.Code{
			Guard: conditions,
			Body:  []string{fmt.Sprintf("/* Skip dispatch %s without peers */", state.Action.Name)},
		}, nil
	}
	multiple := countStates(checks) > 1
	blocks := [][]string{}
	for _, check := range checks {
		for _, receive := range check.States {
			transfers, err := s.translator.transfers(a, state.Action, check.Automaton, receive.Action)
			if err != nil {
				return nil, err
			}
			block := []string{}
			for _, transfer := range transfers {
				block = append(block, fmt.Sprintf("%s = %s;", transfer.variable.Name, transfer.value))
			}
			statements, err := check.Automaton.Texts(receive.Action.Statements)
			if err != nil {
				return nil, err
			}
			block = append(block, statements...)
			block = append(block, advance(check.Automaton, receive)...)
			if check.Automaton.Process.Kind != kinds.ModelProcess {
				block = append(block, fmt.Sprintf("%s(0);", check.Automaton.Name()))
			}
			blocks = append(blocks, deliver(state, check.Automaton, receive, multiple, block))
		}
	}
	function := dispatchFunction(a, state, blocks)
	a.AddFunction(function)
	statements, err := a.Texts(state.Action.Statements)
	if err != nil {
		return nil, err
	}
	condition, relevant := guard(checks)
	return &fsa.Code{
		Guard:    append([]string{condition}, conditions...),
		Body:     slices.Concat([]string{comment(state), function.Name + "();"}, statements),
		Relevant: relevant,
	}, nil
}

// Receive is a comment when the receive has peers: the dispatching
// automaton runs the receiver past it.
func (s *sequential) Receive(a *automaton.Automaton, state *fsa.State) (*fsa.Code, error) {
	conditions, err := a.Texts(state.Action.Condition)
	if err != nil {
		return nil, err
	}
	checks := s.translator.RelevantChecks(a, state)
	if len(checks) == 0 {
		statements, err := a.Texts(state.Action.Statements)
		if err != nil {
			return nil, err
		}
		return &fsa.Code{
			Guard: conditions,
			Body:  append([]string{fmt.Sprintf("/* Skip receive %s without peers */", state.Action.Name)}, statements...),
		}, nil
	}
	_, relevant := guard(checks)
	return &fsa.Code{Guard: conditions, Body: []string{comment(state)}, Relevant: relevant}, nil
}

func (s *sequential) NormalizeEvent(a *automaton.Automaton) {}

func (s *sequential) ControlFunction(a *automaton.Automaton) *cmodel.Function {
	return &cmodel.Function{
		Name: a.Name(),
		Declaration: &ctype.Function{
			Return:     &ctype.Primitive{Name: "void"},
			Parameters: []ctype.Declaration{voidPointer()},
		},
		Parameters: []string{"arg0"},
		Comment:    fmt.Sprintf("Control function of %s", a.Process),
	}
}

func (s *sequential) Globals(a *automaton.Automaton) []*cmodel.Variable {
	return nil
}

func (s *sequential) Prologue(a *automaton.Automaton) []string {
	return nil
}

// Suspend returns from the control function at a receive with peers. The
// dispatching automaton calls it again.
func (s *sequential) Suspend(a *automaton.Automaton, function *cmodel.Function, state *fsa.State) []string {
	if len(s.translator.RelevantChecks(a, state)) == 0 {
		return nil
	}
	if function.Declaration.Return.Identifier() == "void" {
		return []string{"return;"}
	}
	return []string{"return 0;"}
}

// waits reports whether an automaton starts by waiting for a signal.
func waits(t *Translator, a *automaton.Automaton) bool {
	initial := a.FSA.InitialStates()
	if len(initial) != 1 || initial[0].Action == nil || initial[0].Action.Kind != kinds.Receive {
		return false
	}
	return len(t.RelevantChecks(a, initial[0])) > 0
}

func (s *sequential) EntryPoint(entry *automaton.Automaton, events []*automaton.Automaton) []string {
	lines := []string{}
	if entry != nil {
		lines = append(lines, fmt.Sprintf("%s(0);", entry.Name()))
	}
	for _, a := range events {
		if !waits(s.translator, a) {
			lines = append(lines, fmt.Sprintf("%s(0);", a.Name()))
		}
	}
	return lines
}

func (s *sequential) Headers() []string {
	return nil
}
