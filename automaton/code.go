package automaton

import (
	"fmt"
	"slices"
	"strings"

	"github.com/stateforward/go-emg/cmodel"
	"github.com/stateforward/go-emg/ctype"
	"github.com/stateforward/go-emg/fsa"
	"github.com/stateforward/go-emg/kinds"
	"github.com/stateforward/go-emg/process"
)

// Signals lowers dispatches and receives. The translator supplies it since
// the lowering depends on how automata are scheduled.
type Signals interface {
	Dispatch(a *Automaton, state *fsa.State) (*fsa.Code, error)
	Receive(a *Automaton, state *fsa.State) (*fsa.Code, error)
}

// GenerateCode returns the guard and body of a state. The result depends
// only on the automaton, the state and its action, so generating twice
// yields the same code.
func (a *Automaton) GenerateCode(state *fsa.State, signals Signals) (*fsa.Code, error) {
	action := state.Action
	if action == nil {
		return &fsa.Code{Body: []string{"/* Artificial state */"}}, nil
	}
	switch action.Kind {
	case kinds.Dispatch:
		return signals.Dispatch(a, state)
	case kinds.Receive:
		return signals.Receive(a, state)
	case kinds.Call, kinds.CallRetval:
		return a.call(state)
	case kinds.Condition:
		return a.condition(state)
	case kinds.Subprocess:
		guard, err := a.Texts(action.Condition)
		if err != nil {
			return nil, err
		}
		return &fsa.Code{
			Guard: guard,
			Body:  []string{fmt.Sprintf("/* Jump to subprocess '%s' initial state */", action.Name)},
		}, nil
	}
	return nil, fmt.Errorf("%w: state %d of %s has action %s of unknown kind", process.ErrMalformed, state.ID, a, action.Name)
}

func (a *Automaton) comment(action *process.Action) string {
	if action.Comment != "" {
		return "/* " + action.Comment + " */"
	}
	return fmt.Sprintf("/* %s %s */", kinds.Name(action.Kind), action.Name)
}

func (a *Automaton) condition(state *fsa.State) (*fsa.Code, error) {
	action := state.Action
	guard, err := a.Texts(action.Condition)
	if err != nil {
		return nil, err
	}
	statements, err := a.Texts(action.Statements)
	if err != nil {
		return nil, err
	}
	return &fsa.Code{Guard: guard, Body: append([]string{a.comment(action)}, statements...)}, nil
}

// target is what a callback call invokes: a function by name or a
// function pointer variable.
type target struct {
	name      string
	signature *ctype.Function
	check     bool
	file      string
}

func (a *Automaton) callTarget(label *process.Label) (*target, bool) {
	expression := "%" + label.Name + "%"
	for _, id := range label.Interfaces {
		implementation := a.Access.Implementation(expression, id)
		variable, hasVariable := a.labels[label.Name][id]
		if implementation == nil {
			continue
		}
		signature, ok := ctype.Signature(implementation.Declaration)
		if i, err := a.collection.Get(id); err == nil {
			if declared, ok2 := i.Signature(); ok2 && declared.Clean() {
				signature, ok = declared, true
			}
		}
		if !ok {
			continue
		}
		if implementation.Function != "" {
			return &target{name: implementation.Function, signature: signature, file: implementation.File}, true
		}
		if hasVariable {
			return &target{name: variable.Name, signature: signature, check: true, file: implementation.File}, true
		}
	}
	if variable, ok := a.labels[label.Name][""]; ok && label.Value != "" {
		if signature, ok := ctype.Signature(variable.Declaration); ok {
			return &target{name: variable.Name, signature: signature, check: true}, true
		}
	}
	return nil, false
}

// arguments matches callback parameters positionally with the accesses
// listed by the action, consuming them in order. Parameters without a
// match get a fresh variable.
func (a *Automaton) arguments(state *fsa.State, signature *ctype.Function, expressions []string) ([]string, error) {
	candidates := []*cmodel.Variable{}
	for _, expression := range expressions {
		for _, name := range process.References(expression) {
			label, err := a.Process.Label(name)
			if err != nil {
				return nil, err
			}
			ids := slices.Clone(label.Interfaces)
			if len(ids) == 0 {
				ids = []string{""}
			}
			for _, id := range ids {
				if variable, ok := a.labels[name][id]; ok {
					candidates = append(candidates, variable)
				}
			}
		}
	}
	arguments := make([]string, 0, len(signature.Parameters))
	next := 0
	for index, parameter := range signature.Parameters {
		matched := false
		for position := next; position < len(candidates); position++ {
			if prefix, ok := ctype.Match(parameter, candidates[position].Declaration); ok {
				arguments = append(arguments, prefix+candidates[position].Name)
				next = position + 1
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		variable := &cmodel.Variable{
			Name:        fmt.Sprintf("ldv_%d_%d_param_%d", a.ID, state.ID, index),
			Declaration: parameter,
		}
		a.parameters[variable.Name] = variable
		arguments = append(arguments, variable.Name)
	}
	return arguments, nil
}

func (a *Automaton) call(state *fsa.State) (*fsa.Code, error) {
	action := state.Action
	callback := action.Callback
	references := process.References(callback.Callback)
	if len(references) != 1 {
		return nil, fmt.Errorf("%w: call %s must name exactly one callback label", process.ErrMalformed, action.Name)
	}
	label, err := a.Process.Label(references[0])
	if err != nil {
		return nil, err
	}
	guard, err := a.Texts(action.Condition)
	if err != nil {
		return nil, err
	}
	invoked, ok := a.callTarget(label)
	if !ok {
		return &fsa.Code{
			Guard: guard,
			Body:  []string{fmt.Sprintf("/* Skip callback %s without implementations */", action.Name)},
		}, nil
	}
	arguments, err := a.arguments(state, invoked.signature, callback.Parameters)
	if err != nil {
		return nil, err
	}
	invocation := fmt.Sprintf("%s(%s);", invoked.name, strings.Join(arguments, ", "))
	if invoked.check {
		invocation = fmt.Sprintf("(*%s)(%s);", invoked.name, strings.Join(arguments, ", "))
	}
	if action.Kind == kinds.CallRetval && callback.Retval != "" && invoked.signature.Return.Identifier() != "void" {
		retval, err := a.Text(callback.Retval)
		if err != nil {
			return nil, err
		}
		invocation = retval + " = " + invocation
	}
	body := []string{a.comment(action)}
	pre, err := a.Texts(callback.PreCall)
	if err != nil {
		return nil, err
	}
	body = append(body, pre...)
	if invoked.check {
		body = append(body, fmt.Sprintf("if (%s) {", invoked.name), "\t"+invocation, "}")
	} else {
		body = append(body, invocation)
	}
	post, err := a.Texts(callback.PostCall)
	if err != nil {
		return nil, err
	}
	statements, err := a.Texts(action.Statements)
	if err != nil {
		return nil, err
	}
	body = slices.Concat(body, post, statements)
	return &fsa.Code{Guard: guard, Body: body, File: invoked.file}, nil
}
