// Package translator lowers automata to C. Code is generated for every
// state of every automaton first, since guards of dispatches and receives
// refer to the states of peer automata. Then the graphs are normalized and
// each automaton gets a control function that runs its states in order of
// its state variable.
package translator

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/stateforward/go-emg/analysis"
	"github.com/stateforward/go-emg/automaton"
	"github.com/stateforward/go-emg/cmodel"
	"github.com/stateforward/go-emg/ctype"
	"github.com/stateforward/go-emg/fsa"
	"github.com/stateforward/go-emg/intf"
	"github.com/stateforward/go-emg/kinds"
	"github.com/stateforward/go-emg/process"
)

// FsaTranslator is a concurrency encoding of automata: how signals are
// passed and how control functions are started.
type FsaTranslator interface {
	automaton.Signals
	// NormalizeEvent prepares the graph of an event or entry automaton
	// after code generation.
	NormalizeEvent(a *automaton.Automaton)
	// ControlFunction is the shell of the control function of an event
	// or entry automaton.
	ControlFunction(a *automaton.Automaton) *cmodel.Function
	// Globals are variables the encoding needs per automaton.
	Globals(a *automaton.Automaton) []*cmodel.Variable
	// Prologue starts the body of an event control function.
	Prologue(a *automaton.Automaton) []string
	// Suspend replaces the advance of a receive state when the automaton
	// waits for a dispatch. Nil keeps the advance.
	Suspend(a *automaton.Automaton, function *cmodel.Function, state *fsa.State) []string
	// EntryPoint is the body of the entry point function.
	EntryPoint(entry *automaton.Automaton, events []*automaton.Automaton) []string
	Headers() []string
}

type Config struct {
	// Direct selects the sequential encoding with control functions called
	// directly. Otherwise every automaton runs in a thread.
	Direct      bool
	EntryPoint  string
	DefaultFile string
	Logger      *slog.Logger
}

var DefaultConfig = Config{
	Direct:      true,
	EntryPoint:  "main",
	DefaultFile: "environment_model.c",
}

type Translator struct {
	collection *intf.Collection
	db         *analysis.Database
	events     []*automaton.Automaton
	models     []*automaton.Automaton
	entry      *automaton.Automaton
	strategy   FsaTranslator
	config     Config
	logger     *slog.Logger
	functions  map[int]*cmodel.Function
	structs    map[string]*cmodel.Type
	types      map[int][]*cmodel.Type
}

// New prepares the translation of automata, which are told apart by the
// kind of their process.
func New(collection *intf.Collection, db *analysis.Database, automata []*automaton.Automaton, config ...Config) *Translator {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.EntryPoint == "" {
		cfg.EntryPoint = DefaultConfig.EntryPoint
	}
	if cfg.DefaultFile == "" {
		cfg.DefaultFile = DefaultConfig.DefaultFile
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := &Translator{
		collection: collection,
		db:         db,
		config:     cfg,
		logger:     logger,
		functions:  map[int]*cmodel.Function{},
		structs:    map[string]*cmodel.Type{},
		types:      map[int][]*cmodel.Type{},
	}
	for _, a := range automata {
		switch a.Process.Kind {
		case kinds.ModelProcess:
			t.models = append(t.models, a)
		case kinds.EntryProcess:
			t.entry = a
		default:
			t.events = append(t.events, a)
		}
	}
	if cfg.Direct {
		t.strategy = &sequential{translator: t}
	} else {
		t.strategy = &parallel{translator: t}
	}
	return t
}

func (t *Translator) Strategy() FsaTranslator {
	return t.strategy
}

// Automata returns the event automata, then the models, then the entry
// automaton.
func (t *Translator) Automata() []*automaton.Automaton {
	all := slices.Concat(t.events, t.models)
	if t.entry != nil {
		all = append(all, t.entry)
	}
	return all
}

// Translate generates the C model of all automata.
func (t *Translator) Translate(ctx context.Context) (*cmodel.Model, error) {
	for _, a := range t.Automata() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, state := range a.FSA.States() {
			code, err := a.GenerateCode(state, t.strategy)
			if err != nil {
				return nil, err
			}
			state.Code = code
		}
	}
	for _, a := range t.Automata() {
		t.normalize(a)
	}
	model := cmodel.New()
	for _, a := range t.Automata() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		function, err := t.controlFunction(a)
		if err != nil {
			return nil, err
		}
		file := t.file(a)
		model.AddFunction(file, function)
		for _, helper := range a.Functions() {
			model.AddFunction(file, helper)
		}
		for _, variable := range slices.Concat(a.Variables(), t.strategy.Globals(a)) {
			model.AddVariable(file, variable)
		}
		for _, definition := range t.types[a.ID] {
			model.AddType(file, definition)
		}
		if a.Process.Kind == kinds.ModelProcess {
			if i, ok := t.collection.Function(a.Process.Name); ok && i.Header != "" {
				model.AddHeader(file, i.Header)
			}
		}
		model.AddHeader(file, a.Process.Headers...)
		model.AddHeader(file, t.strategy.Headers()...)
	}
	model.AddFunction(t.config.DefaultFile, &cmodel.Function{
		Name:        t.config.EntryPoint,
		Declaration: &ctype.Function{Return: &ctype.Primitive{Name: "int"}},
		Body:        append(t.strategy.EntryPoint(t.entry, t.events), "return 0;"),
		Comment:     "Entry point of the environment model",
	})
	model.AddHeader(t.config.DefaultFile, t.strategy.Headers()...)
	t.externs(model)
	t.logger.Debug("translated automata", "automata", len(t.Automata()), "files", len(model.Files()))
	return model, nil
}

func (t *Translator) normalize(a *automaton.Automaton) {
	a.FSA.SingleInitial()
	if a.Process.Kind == kinds.ModelProcess {
		a.FSA.SingleFinal()
	} else {
		t.strategy.NormalizeEvent(a)
	}
	for _, state := range a.FSA.States() {
		if state.Code == nil {
			state.Code = &fsa.Code{Body: []string{"/* Artificial state */"}}
		}
	}
	if initial := a.FSA.InitialStates(); len(initial) > 0 {
		a.StateVariable().Value = strconv.Itoa(initial[0].ID)
	}
}

func (t *Translator) file(a *automaton.Automaton) string {
	if file := a.File(); file != "" {
		return file
	}
	return t.config.DefaultFile
}

// externs declares in every file the variables and functions the other
// files define, since generated code refers to the globals of peers.
func (t *Translator) externs(model *cmodel.Model) {
	files := model.Files()
	for _, file := range files {
		for _, other := range files {
			if other == file {
				continue
			}
			model.AddExtern(file, model.Variables(other)...)
			for _, name := range model.Functions(other) {
				if function, _, ok := model.Function(name); ok && !function.Static && name != t.config.EntryPoint {
					model.AddExtern(file, name)
				}
			}
		}
	}
}

// Check lists the states of a peer automaton that realize actions peered
// with a signal.
type Check struct {
	Automaton *automaton.Automaton
	States    []*fsa.State
}

// RelevantChecks finds the peers of a dispatch or receive state: other
// automata with states realizing a peered action of the opposite kind.
func (t *Translator) RelevantChecks(a *automaton.Automaton, state *fsa.State) []Check {
	action := state.Action
	if action == nil || action.Signal == nil {
		return nil
	}
	opposite := kinds.Receive
	if action.Kind == kinds.Receive {
		opposite = kinds.Dispatch
	}
	checks := []Check{}
	for _, b := range t.Automata() {
		if b.ID == a.ID {
			continue
		}
		states := []*fsa.State{}
		for _, peer := range action.Signal.Peers {
			if peer.Process != b.Process.Name {
				continue
			}
			for _, candidate := range b.FSA.StatesOf(peer.Action) {
				if candidate.Action.Kind == opposite && !slices.Contains(states, candidate) {
					states = append(states, candidate)
				}
			}
		}
		if len(states) == 0 {
			continue
		}
		slices.SortFunc(states, func(x, y *fsa.State) int { return cmp.Compare(x.ID, y.ID) })
		checks = append(checks, Check{Automaton: b, States: states})
	}
	return checks
}

// guard is the disjunction of the state variable checks.
func guard(checks []Check) (string, []int) {
	conditions := []string{}
	relevant := []int{}
	for _, check := range checks {
		relevant = append(relevant, check.Automaton.ID)
		for _, state := range check.States {
			conditions = append(conditions, fmt.Sprintf("%s == %d", check.Automaton.StateVariable().Name, state.ID))
		}
	}
	return strings.Join(conditions, " || "), relevant
}

// advance assigns the state variable of a for the step after state: zero
// when the automaton ends, a successor chosen nondeterministically when
// there are several.
func advance(a *automaton.Automaton, state *fsa.State) []string {
	variable := a.StateVariable().Name
	successors := a.FSA.Successors(state)
	switch len(successors) {
	case 0:
		return []string{variable + " = 0;"}
	case 1:
		return []string{fmt.Sprintf("%s = %d;", variable, successors[0].ID)}
	}
	lines := []string{"switch (ldv_undef_int()) {"}
	for index, successor := range successors {
		lines = append(lines, fmt.Sprintf("\tcase %d: %s = %d; break;", index, variable, successor.ID))
	}
	return append(lines, "\tdefault: ldv_assume(0);", "}")
}

func indent(lines []string) []string {
	indented := make([]string, 0, len(lines))
	for _, line := range lines {
		indented = append(indented, "\t"+line)
	}
	return indented
}

func voidPointer() ctype.Declaration {
	return &ctype.Pointer{Points: &ctype.Primitive{Name: "void"}}
}

func parameterNames(count int) []string {
	names := make([]string, 0, count)
	for index := range count {
		names = append(names, fmt.Sprintf("arg%d", index))
	}
	return names
}

// modelSignature is the declaration of the kernel function a model
// replaces, from the analysis database or the function model.
func (t *Translator) modelSignature(a *automaton.Automaton) *ctype.Function {
	if t.db != nil {
		if signature, err := t.db.Signature(a.Process.Name); err == nil {
			return signature
		}
	}
	if i, ok := t.collection.Function(a.Process.Name); ok {
		if signature, ok := i.Signature(); ok && signature.Clean() {
			return signature
		}
	}
	t.logger.Warn("no signature of modelled function", "process", a.Process.String())
	return &ctype.Function{Return: &ctype.Primitive{Name: "void"}}
}

// modelPrologue restarts a model and assigns its parameter labels from the
// arguments with matching interfaces.
func (t *Translator) modelPrologue(a *automaton.Automaton, signature *ctype.Function) []string {
	lines := []string{fmt.Sprintf("%s = %s;", a.StateVariable().Name, a.StateVariable().Value)}
	var parameters []string
	if i, ok := t.collection.Function(a.Process.Name); ok {
		parameters = i.Parameters
	}
	for _, name := range slices.Sorted(maps.Keys(a.Process.Labels)) {
		label := a.Process.Labels[name]
		if !label.Parameter {
			continue
		}
		assigned := false
		for index, id := range parameters {
			if index >= len(signature.Parameters) || !slices.Contains(label.Interfaces, id) {
				continue
			}
			if variable, ok := a.LabelVariable(name, id); ok {
				prefix, _ := ctype.Match(variable.Declaration, signature.Parameters[index])
				lines = append(lines, fmt.Sprintf("%s = %sarg%d;", variable.Name, prefix, index))
				assigned = true
				break
			}
		}
		if !assigned {
			t.logger.Warn("parameter label matches no argument", "label", name, "process", a.Process.String())
		}
	}
	return lines
}

// controlFunction builds, once per automaton, the function running the
// states of an automaton until its state variable drops to zero.
func (t *Translator) controlFunction(a *automaton.Automaton) (*cmodel.Function, error) {
	if function, ok := t.functions[a.ID]; ok {
		return function, nil
	}
	var function *cmodel.Function
	var prologue, epilogue []string
	if a.Process.Kind == kinds.ModelProcess {
		signature := t.modelSignature(a)
		function = &cmodel.Function{
			Name:        a.Name(),
			Declaration: signature,
			Parameters:  parameterNames(len(signature.Parameters)),
			Comment:     fmt.Sprintf("Control function of model %s", a.Process.Name),
		}
		prologue = t.modelPrologue(a, signature)
		if signature.Return.Identifier() != "void" {
			epilogue = []string{"return 0;"}
			for _, name := range slices.Sorted(maps.Keys(a.Process.Labels)) {
				if a.Process.Labels[name].Retval {
					variable, err := a.Variable(name)
					if err != nil {
						return nil, err
					}
					epilogue = []string{"return " + variable.Name + ";"}
					break
				}
			}
		}
	} else {
		function = t.strategy.ControlFunction(a)
		prologue = t.strategy.Prologue(a)
		if function.Declaration.Return.Identifier() != "void" {
			epilogue = []string{"return 0;"}
		}
	}
	variable := a.StateVariable().Name
	body := slices.Clone(prologue)
	body = append(body, fmt.Sprintf("while (%s != 0) {", variable), fmt.Sprintf("\tswitch (%s) {", variable))
	for _, state := range a.FSA.States() {
		block := []string{}
		if assumption := state.Code.Assumption(); assumption != "" {
			block = append(block, fmt.Sprintf("ldv_assume(%s);", assumption))
		}
		block = append(block, state.Code.Body...)
		suspend := []string(nil)
		if state.Action != nil && state.Action.Kind == kinds.Receive {
			suspend = t.strategy.Suspend(a, function, state)
		}
		if suspend != nil {
			block = append(block, suspend...)
		} else {
			block = append(block, advance(a, state)...)
			block = append(block, "break;")
		}
		body = append(body, fmt.Sprintf("\t\tcase %d: {", state.ID))
		body = append(body, indent(indent(indent(block)))...)
		body = append(body, "\t\t}")
	}
	body = append(body, "\t\tdefault: ldv_assume(0);", "\t}", "}")
	function.Body = append(body, epilogue...)
	t.functions[a.ID] = function
	return function, nil
}

// parameterStruct returns the structure passing the given parameters to a
// control function. Structures are shared by all signals with parameters
// of the same types.
func (t *Translator) parameterStruct(a *automaton.Automaton, action string, declarations []ctype.Declaration) *cmodel.Type {
	identifiers := make([]string, 0, len(declarations))
	for _, declaration := range declarations {
		identifiers = append(identifiers, declaration.Identifier())
	}
	key := strings.Join(identifiers, ",")
	definition, ok := t.structs[key]
	if !ok {
		name := fmt.Sprintf("struct ldv_struct_%s_%d", action, len(t.structs))
		lines := []string{name + " {", "\tint signal_pending;"}
		for index, declaration := range declarations {
			lines = append(lines, "\t"+ctype.Declare(declaration, fmt.Sprintf("arg%d", index))+";")
		}
		definition = &cmodel.Type{Name: name, Definition: append(lines, "};")}
		t.structs[key] = definition
	}
	if !slices.Contains(t.types[a.ID], definition) {
		t.types[a.ID] = append(t.types[a.ID], definition)
	}
	return definition
}

// transfer is a variable of a receiving label and the value a dispatch
// passes to it.
type transfer struct {
	variable *cmodel.Variable
	value    string
}

// transfers pairs the parameters of a dispatch with those of a receive.
func (t *Translator) transfers(sender *automaton.Automaton, dispatch *process.Action, receiver *automaton.Automaton, receive *process.Action) ([]transfer, error) {
	count := min(len(dispatch.Signal.Parameters), len(receive.Signal.Parameters))
	if len(dispatch.Signal.Parameters) != len(receive.Signal.Parameters) {
		t.logger.Warn("signal parameters differ in number", "signal", dispatch.Name, "process", sender.Process.String(), "peer", receiver.Process.String())
	}
	transfers := make([]transfer, 0, count)
	for index := range count {
		references := process.References(receive.Signal.Parameters[index])
		if len(references) != 1 {
			return nil, fmt.Errorf("%w: parameter %d of receive %s must name one label", process.ErrMalformed, index, receive.Name)
		}
		variable, err := receiver.Variable(references[0])
		if err != nil {
			return nil, err
		}
		value, err := sender.Text(dispatch.Signal.Parameters[index])
		if err != nil {
			return nil, err
		}
		if references := process.References(dispatch.Signal.Parameters[index]); len(references) == 1 {
			if source, err := sender.Variable(references[0]); err == nil && value == source.Name {
				prefix, ok := ctype.Match(variable.Declaration, source.Declaration)
				if !ok {
					t.logger.Warn("signal parameter types differ", "signal", dispatch.Name, "parameter", index, "peer", receiver.Process.String())
				}
				value = prefix + value
			}
		}
		transfers = append(transfers, transfer{variable: variable, value: value})
	}
	return transfers, nil
}

// dispatchFunction wraps the blocks delivering a signal to each peer. One
// block runs, chosen nondeterministically, unless the dispatch is a
// broadcast.
func dispatchFunction(a *automaton.Automaton, state *fsa.State, blocks [][]string) *cmodel.Function {
	function := &cmodel.Function{
		Name:        fmt.Sprintf("ldv_dispatch_%s_%d_%d", state.Action.Name, a.ID, state.ID),
		Declaration: &ctype.Function{Return: &ctype.Primitive{Name: "void"}},
		Comment:     fmt.Sprintf("Dispatch %s of %s", state.Action.Name, a.Process),
		Static:      true,
	}
	if len(blocks) == 1 || state.Action.Signal.Broadcast {
		for _, block := range blocks {
			function.Body = append(function.Body, block...)
		}
		return function
	}
	function.Body = []string{"switch (ldv_undef_int()) {"}
	for index, block := range blocks {
		function.Body = append(function.Body, fmt.Sprintf("\tcase %d: {", index))
		function.Body = append(function.Body, indent(indent(block))...)
		function.Body = append(function.Body, "\t\tbreak;", "\t}")
	}
	function.Body = append(function.Body, "\tdefault: ldv_assume(0);", "}")
	return function
}
