// Package automaton binds one copy of a process to the implementations
// chosen for it and generates the C code of its states.
package automaton

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/stateforward/go-emg/cmodel"
	"github.com/stateforward/go-emg/ctype"
	"github.com/stateforward/go-emg/fsa"
	"github.com/stateforward/go-emg/intf"
	"github.com/stateforward/go-emg/kinds"
	"github.com/stateforward/go-emg/pkg/set"
	"github.com/stateforward/go-emg/process"
)

// AccessMap binds every access expression of a process to implementations
// per interface. A nil implementation leaves the interface unbound.
type AccessMap map[string]map[string]*intf.Implementation

// Implementation returns the value bound to an access and interface.
func (m AccessMap) Implementation(expression, id string) *intf.Implementation {
	if m == nil {
		return nil
	}
	return m[expression][id]
}

// Values returns the bound implementations sorted by identifier.
func (m AccessMap) Values() []*intf.Implementation {
	values := []*intf.Implementation{}
	for _, expression := range slices.Sorted(maps.Keys(m)) {
		for _, id := range slices.Sorted(maps.Keys(m[expression])) {
			if implementation := m[expression][id]; implementation != nil {
				values = append(values, implementation)
			}
		}
	}
	return values
}

type Config struct {
	Logger *slog.Logger
}

var DefaultConfig = Config{}

type Automaton struct {
	ID      int
	Process *process.Process
	FSA     *fsa.FSA
	Access  AccessMap

	collection *intf.Collection
	logger     *slog.Logger
	state      *cmodel.Variable
	labels     map[string]map[string]*cmodel.Variable
	parameters map[string]*cmodel.Variable
	functions  map[string]*cmodel.Function
	file       string
	located    bool
}

// New builds the automaton of a process copy and its variables.
func New(id int, p *process.Process, access AccessMap, collection *intf.Collection, config ...Config) (*Automaton, error) {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	automaton, err := fsa.New(p)
	if err != nil {
		return nil, err
	}
	a := &Automaton{
		ID:         id,
		Process:    p,
		FSA:        automaton,
		Access:     access,
		collection: collection,
		logger:     logger.With("process", p.String(), "automaton", id),
		state: &cmodel.Variable{
			Name:        fmt.Sprintf("ldv_statevar_%d", id),
			Declaration: &ctype.Primitive{Name: "int"},
		},
		labels:     map[string]map[string]*cmodel.Variable{},
		parameters: map[string]*cmodel.Variable{},
		functions:  map[string]*cmodel.Function{},
	}
	if err := a.createVariables(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Automaton) String() string {
	return fmt.Sprintf("%s:%d", a.Process, a.ID)
}

// Name is the name of the control function.
func (a *Automaton) Name() string {
	return fmt.Sprintf("ldv_%s_%d", a.Process.Name, a.ID)
}

// Thread is the name of the thread handle of the automaton.
func (a *Automaton) Thread() string {
	return fmt.Sprintf("ldv_thread_%d", a.ID)
}

func (a *Automaton) StateVariable() *cmodel.Variable {
	return a.state
}

// variableDeclaration is the type of a label variable holding a value of
// the given interface declaration. Aggregates and functions are held by
// pointer.
func variableDeclaration(declaration ctype.Declaration) ctype.Declaration {
	if kinds.IsKind(declaration.Kind(), kinds.Structure, kinds.Union, kinds.Array, kinds.Function) {
		return ctype.TakePointer(declaration)
	}
	return declaration
}

func (a *Automaton) createVariables() error {
	for _, name := range slices.Sorted(maps.Keys(a.Process.Labels)) {
		label := a.Process.Labels[name]
		expression := "%" + name + "%"
		variables := map[string]*cmodel.Variable{}
		for _, id := range label.Interfaces {
			i, err := a.collection.Get(id)
			if err != nil {
				return fmt.Errorf("%w: label %s of process %s: %w", process.ErrUnresolved, name, a.Process, err)
			}
			declaration := i.Declaration
			if declaration == nil || !declaration.Clean() {
				declaration = label.Declaration
			}
			if declaration == nil || !declaration.Clean() {
				a.logger.Warn("label interface has no usable declaration", "label", name, "interface", id)
				continue
			}
			declaration = variableDeclaration(declaration)
			variable := &cmodel.Variable{
				Name:        fmt.Sprintf("ldv_%d_%s_%s", a.ID, name, i.ShortID),
				Declaration: declaration,
			}
			if implementation := a.Access.Implementation(expression, id); implementation != nil {
				variable.Value = implementation.Adjust(declaration)
			}
			variables[id] = variable
		}
		if len(label.Interfaces) == 0 {
			if label.Declaration == nil {
				a.logger.Warn("label has neither interfaces nor a declaration", "label", name)
				continue
			}
			variables[""] = &cmodel.Variable{
				Name:        fmt.Sprintf("ldv_%d_%s_default", a.ID, name),
				Declaration: label.Declaration,
				Value:       label.Value,
			}
		}
		if len(variables) > 0 {
			a.labels[name] = variables
		}
	}
	return nil
}

// Variables returns the state variable, the label variables and the
// variables created for unmatched callback parameters, sorted by name.
func (a *Automaton) Variables() []*cmodel.Variable {
	variables := []*cmodel.Variable{a.state}
	for _, byInterface := range a.labels {
		for _, variable := range byInterface {
			variables = append(variables, variable)
		}
	}
	for _, variable := range a.parameters {
		variables = append(variables, variable)
	}
	slices.SortFunc(variables, func(x, y *cmodel.Variable) int {
		switch {
		case x.Name < y.Name:
			return -1
		case x.Name > y.Name:
			return 1
		}
		return 0
	})
	return variables
}

// LabelVariable returns the variable of a label for an interface, the
// empty interface selecting the variable of a label without interfaces.
func (a *Automaton) LabelVariable(label, id string) (*cmodel.Variable, bool) {
	variable, ok := a.labels[label][id]
	return variable, ok
}

// Variable returns the variable a %label% reference stands for: the
// first bound interface, then the first interface with a variable.
func (a *Automaton) Variable(name string) (*cmodel.Variable, error) {
	label, err := a.Process.Label(name)
	if err != nil {
		return nil, err
	}
	variables := a.labels[name]
	for _, id := range label.Interfaces {
		if variable, ok := variables[id]; ok && a.Access.Implementation("%"+name+"%", id) != nil {
			return variable, nil
		}
	}
	for _, id := range label.Interfaces {
		if variable, ok := variables[id]; ok {
			return variable, nil
		}
	}
	if variable, ok := variables[""]; ok {
		return variable, nil
	}
	return nil, fmt.Errorf("%w: label %s of process %s has no variable", process.ErrUnresolved, name, a.Process)
}

// Functions returns the helper functions generated with the code of the
// states, sorted by name.
func (a *Automaton) Functions() []*cmodel.Function {
	functions := []*cmodel.Function{}
	for _, name := range slices.Sorted(maps.Keys(a.functions)) {
		functions = append(functions, a.functions[name])
	}
	return functions
}

// AddFunction registers a helper function generated for a state.
func (a *Automaton) AddFunction(function *cmodel.Function) {
	a.functions[function.Name] = function
}

// File returns the source file the automaton belongs to: the file of a
// container value chosen for it or of a callback it calls. It is empty
// when nothing ties the automaton to a file.
func (a *Automaton) File() string {
	if a.located {
		return a.file
	}
	files := set.New[string]()
	for _, implementation := range a.Access.Values() {
		if implementation.BaseValue != "" {
			files.Add(implementation.File)
		}
	}
	if file, ok := files.First(); ok {
		a.file, a.located = file, true
		return a.file
	}
	for _, state := range a.FSA.States() {
		if state.Code != nil && state.Code.File != "" {
			files.Add(state.Code.File)
		}
	}
	if file, ok := files.First(); ok {
		a.file, a.located = file, true
	}
	return a.file
}
