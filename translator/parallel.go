package translator

import (
	"fmt"
	"slices"

	"github.com/stateforward/go-emg/automaton"
	"github.com/stateforward/go-emg/cmodel"
	"github.com/stateforward/go-emg/ctype"
	"github.com/stateforward/go-emg/fsa"
	"github.com/stateforward/go-emg/kinds"
	"github.com/stateforward/go-emg/process"
)

// parallel runs every automaton in a thread. A dispatch leaves its
// parameters in the mailbox of the receiver, or starts the receiver's
// thread when the receiver waits in its initial state.
type parallel struct {
	translator *Translator
}

func mailbox(a *automaton.Automaton) string {
	return fmt.Sprintf("ldv_data_%d", a.ID)
}

// receiveDeclarations are the declarations of the labels a receive fills.
func receiveDeclarations(a *automaton.Automaton, receive *process.Action) ([]ctype.Declaration, []*cmodel.Variable, error) {
	declarations := []ctype.Declaration{}
	variables := []*cmodel.Variable{}
	for index, parameter := range receive.Signal.Parameters {
		references := process.References(parameter)
		if len(references) != 1 {
			return nil, nil, fmt.Errorf("%w: parameter %d of receive %s must name one label", process.ErrMalformed, index, receive.Name)
		}
		variable, err := a.Variable(references[0])
		if err != nil {
			return nil, nil, err
		}
		declarations = append(declarations, variable.Declaration)
		variables = append(variables, variable)
	}
	return declarations, variables, nil
}

func initial(a *automaton.Automaton, state *fsa.State) bool {
	return slices.ContainsFunc(a.FSA.InitialStates(), func(s *fsa.State) bool { return s.ID == state.ID })
}

func (p *parallel) Dispatch(a *automaton.Automaton, state *fsa.State) (*fsa.Code, error) {
	conditions, err := a.Texts(state.Action.Condition)
	if err != nil {
		return nil, err
	}
	checks := p.translator.RelevantChecks(a, state)
	if len(checks) == 0 {
		return &fsa.Code{
			Guard: conditions,
			Body:  []string{fmt.Sprintf("/* Skip dispatch %s without peers */", state.Action.Name)},
		}, nil
	}
	multiple := countStates(checks) > 1
	blocks := [][]string{}
	for _, check := range checks {
		peer := check.Automaton
		if peer.Process.Kind == kinds.ModelProcess {
			p.translator.logger.Warn("models do not run in threads, skipping peer", "signal", state.Action.Name, "peer", peer.Process.String())
			continue
		}
		for _, receive := range check.States {
			transfers, err := p.translator.transfers(a, state.Action, peer, receive.Action)
			if err != nil {
				return nil, err
			}
			declarations, _, err := receiveDeclarations(peer, receive.Action)
			if err != nil {
				return nil, err
			}
			structure := p.translator.parameterStruct(a, state.Action.Name, declarations)
			p.translator.parameterStruct(peer, state.Action.Name, declarations)
			argument := fmt.Sprintf("cf_arg_%d_%d", peer.ID, receive.ID)
			block := []string{
				fmt.Sprintf("%s *%s = ldv_xmalloc(sizeof(%s));", structure.Name, argument, structure.Name),
				fmt.Sprintf("%s->signal_pending = 1;", argument),
			}
			for index, transfer := range transfers {
				block = append(block, fmt.Sprintf("%s->arg%d = %s;", argument, index, transfer.value))
			}
			if initial(peer, receive) {
				block = append(block, fmt.Sprintf("pthread_create(&%s, 0, %s, %s);", peer.Thread(), peer.Name(), argument))
			} else {
				block = append(block, fmt.Sprintf("%s = %s;", mailbox(peer), argument))
			}
			blocks = append(blocks, deliver(state, peer, receive, multiple, block))
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

// Receive takes the parameters out of the mailbox. An empty mailbox leaves
// the automaton in the receive state.
func (p *parallel) Receive(a *automaton.Automaton, state *fsa.State) (*fsa.Code, error) {
	conditions, err := a.Texts(state.Action.Condition)
	if err != nil {
		return nil, err
	}
	statements, err := a.Texts(state.Action.Statements)
	if err != nil {
		return nil, err
	}
	checks := p.translator.RelevantChecks(a, state)
	if len(checks) == 0 {
		return &fsa.Code{
			Guard: conditions,
			Body:  append([]string{fmt.Sprintf("/* Skip receive %s without peers */", state.Action.Name)}, statements...),
		}, nil
	}
	declarations, variables, err := receiveDeclarations(a, state.Action)
	if err != nil {
		return nil, err
	}
	body := []string{comment(state), fmt.Sprintf("if (!%s) {", mailbox(a)), "\tbreak;", "}"}
	if len(variables) > 0 {
		structure := p.translator.parameterStruct(a, state.Action.Name, declarations)
		body = append(body, fmt.Sprintf("%s *cf_arg = %s;", structure.Name, mailbox(a)))
		for index, variable := range variables {
			body = append(body, fmt.Sprintf("%s = cf_arg->arg%d;", variable.Name, index))
		}
	}
	body = append(body, fmt.Sprintf("ldv_free(%s);", mailbox(a)), fmt.Sprintf("%s = 0;", mailbox(a)))
	_, relevant := guard(checks)
	return &fsa.Code{Guard: conditions, Body: append(body, statements...), Relevant: relevant}, nil
}

func (p *parallel) NormalizeEvent(a *automaton.Automaton) {
	a.FSA.SingleFinal()
}

func (p *parallel) ControlFunction(a *automaton.Automaton) *cmodel.Function {
	return &cmodel.Function{
		Name: a.Name(),
		Declaration: &ctype.Function{
			Return:     voidPointer(),
			Parameters: []ctype.Declaration{voidPointer()},
		},
		Parameters: []string{"arg0"},
		Comment:    fmt.Sprintf("Control function of %s", a.Process),
	}
}

func (p *parallel) Globals(a *automaton.Automaton) []*cmodel.Variable {
	if a.Process.Kind == kinds.ModelProcess {
		return nil
	}
	return []*cmodel.Variable{
		{Name: mailbox(a), Declaration: voidPointer()},
		{Name: a.Thread(), Declaration: &ctype.Primitive{Name: "pthread_t"}},
	}
}

// Prologue puts the parameters a thread was started with in the mailbox.
func (p *parallel) Prologue(a *automaton.Automaton) []string {
	return []string{"if (arg0) {", fmt.Sprintf("\t%s = arg0;", mailbox(a)), "}"}
}

func (p *parallel) Suspend(a *automaton.Automaton, function *cmodel.Function, state *fsa.State) []string {
	return nil
}

func (p *parallel) EntryPoint(entry *automaton.Automaton, events []*automaton.Automaton) []string {
	started := []*automaton.Automaton{}
	if entry != nil {
		started = append(started, entry)
	}
	for _, a := range events {
		if !waits(p.translator, a) {
			started = append(started, a)
		}
	}
	lines := []string{}
	for _, a := range started {
		lines = append(lines, fmt.Sprintf("pthread_create(&%s, 0, %s, 0);", a.Thread(), a.Name()))
	}
	for _, a := range started {
		lines = append(lines, fmt.Sprintf("pthread_join(%s, 0);", a.Thread()))
	}
	return lines
}

func (p *parallel) Headers() []string {
	return []string{"pthread.h"}
}
