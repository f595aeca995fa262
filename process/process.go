// Package process describes the actors of an environment model: event
// processes, models of kernel functions and the entry process. A process
// has labels bound to interfaces, named actions and an AST arranging the
// actions in sequences, choices and subprocess jumps.
package process

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/stateforward/go-emg/ctype"
	"github.com/stateforward/go-emg/kinds"
)

var (
	ErrMalformed  = errors.New("malformed specification")
	ErrUnresolved = errors.New("unresolved reference")
)

type Label struct {
	Name        string
	Interfaces  []string
	Declaration ctype.Declaration
	Value       string
	Parameter   bool
	Retval      bool
}

// Access is one use of a label in a process, bound to one of its
// interfaces. Interface is empty for labels without interfaces.
type Access struct {
	Expression string
	Label      string
	Interface  string
}

type Peer struct {
	Process string
	Action  string
}

// Signal is the payload of Dispatch and Receive actions.
type Signal struct {
	Parameters []string
	// Broadcast dispatches to every peer instead of one.
	Broadcast bool
	Peers     []Peer
}

// Callback is the payload of Call and CallRetval actions.
type Callback struct {
	Callback   string
	Parameters []string
	Retval     string
	PreCall    []string
	PostCall   []string
}

// Subprocess is the payload of Subprocess actions, Root is the AST node of
// the subprocess body.
type Subprocess struct {
	Expression string
	Root       int
}

// Action is a closed union discriminated by Kind: Signal is set for
// Dispatch and Receive, Callback for Call and CallRetval and Subprocess for
// Subprocess. Conditions only use the common fields.
type Action struct {
	Kind       uint64
	Name       string
	Comment    string
	Condition  []string
	Statements []string
	Signal     *Signal
	Callback   *Callback
	Subprocess *Subprocess
}

func (a *Action) String() string {
	return fmt.Sprintf("%s %s", kinds.Name(a.Kind), a.Name)
}

// Node is an AST node. Sequence and Choice nodes have children, leaves
// name an action and carry its kind.
type Node struct {
	Kind     uint64
	Name     string
	Children []int
}

// AST is an arena of nodes addressed by index.
type AST struct {
	Nodes []Node
	Root  int
}

func (t *AST) add(node Node) int {
	t.Nodes = append(t.Nodes, node)
	return len(t.Nodes) - 1
}

func (t *AST) Node(index int) Node {
	return t.Nodes[index]
}

type Process struct {
	Name     string
	Category string
	Kind     uint64
	Comment  string
	Headers  []string
	Labels   map[string]*Label
	Actions  map[string]*Action
	Tree     *AST
}

func (p *Process) String() string {
	if p.Category == "" {
		return p.Name
	}
	return p.Category + "/" + p.Name
}

// Clone copies the process so that an instance can carry its own labels.
// Actions and the AST are shared.
func (p *Process) Clone() *Process {
	clone := *p
	clone.Labels = make(map[string]*Label, len(p.Labels))
	for name, label := range p.Labels {
		copied := *label
		copied.Interfaces = slices.Clone(label.Interfaces)
		clone.Labels[name] = &copied
	}
	clone.Actions = maps.Clone(p.Actions)
	return &clone
}

func (p *Process) Label(name string) (*Label, error) {
	if label, ok := p.Labels[name]; ok {
		return label, nil
	}
	return nil, fmt.Errorf("%w: label %s in process %s", ErrUnresolved, name, p)
}

func (p *Process) Action(name string) (*Action, error) {
	if action, ok := p.Actions[name]; ok {
		return action, nil
	}
	return nil, fmt.Errorf("%w: action %s in process %s", ErrUnresolved, name, p)
}

// ActionNames returns the names of the actions of the given kinds, sorted.
func (p *Process) ActionNames(kind ...uint64) []string {
	names := []string{}
	for name, action := range p.Actions {
		if len(kind) == 0 || kinds.IsKind(action.Kind, kind...) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Accesses lists every label and interface pair, sorted by expression and
// interface.
func (p *Process) Accesses() []Access {
	accesses := []Access{}
	for _, name := range slices.Sorted(maps.Keys(p.Labels)) {
		label := p.Labels[name]
		expression := "%" + name + "%"
		if len(label.Interfaces) == 0 {
			accesses = append(accesses, Access{Expression: expression, Label: name})
			continue
		}
		for _, id := range label.Interfaces {
			accesses = append(accesses, Access{Expression: expression, Label: name, Interface: id})
		}
	}
	return accesses
}

var reference = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)((?:\.[A-Za-z_][A-Za-z0-9_]*)*)%`)

// References returns the labels used in a statement, in order.
func References(text string) []string {
	names := []string{}
	for _, match := range reference.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(names, match[1]) {
			names = append(names, match[1])
		}
	}
	return names
}

// ReplaceReferences rewrites every %label% and %label.field% in text.
func ReplaceReferences(text string, replace func(label string, fields []string) (string, error)) (string, error) {
	var failure error
	result := reference.ReplaceAllStringFunc(text, func(match string) string {
		groups := reference.FindStringSubmatch(match)
		var fields []string
		if groups[2] != "" {
			fields = strings.Split(strings.TrimPrefix(groups[2], "."), ".")
		}
		replacement, err := replace(groups[1], fields)
		if err != nil && failure == nil {
			failure = err
		}
		return replacement
	})
	return result, failure
}

// Validate checks that every label used in statements, conditions and
// parameters is defined.
func (p *Process) Validate() error {
	for _, name := range p.ActionNames() {
		action := p.Actions[name]
		texts := slices.Concat(action.Condition, action.Statements)
		switch {
		case action.Signal != nil:
			texts = append(texts, action.Signal.Parameters...)
		case action.Callback != nil:
			texts = slices.Concat(texts, action.Callback.Parameters, action.Callback.PreCall, action.Callback.PostCall)
			texts = append(texts, action.Callback.Callback, action.Callback.Retval)
		}
		for _, text := range texts {
			for _, label := range References(text) {
				if _, err := p.Label(label); err != nil {
					return fmt.Errorf("action %s: %w", name, err)
				}
			}
		}
	}
	return nil
}

// Processes is the complete process specification: event processes and
// kernel function models sorted by name, plus the entry process.
type Processes struct {
	Environment []*Process
	Models      []*Process
	Entry       *Process
}

// All returns the event processes, then the models, then the entry process.
func (ps *Processes) All() []*Process {
	all := slices.Concat(ps.Environment, ps.Models)
	if ps.Entry != nil {
		all = append(all, ps.Entry)
	}
	return all
}

// EstablishPeers connects every dispatch with the receives of the same name
// in other processes.
func (ps *Processes) EstablishPeers() {
	all := ps.All()
	for _, p := range all {
		for _, action := range p.Actions {
			if action.Signal != nil {
				action.Signal.Peers = nil
			}
		}
	}
	for _, sender := range all {
		for _, name := range sender.ActionNames(kinds.Dispatch) {
			dispatch := sender.Actions[name]
			for _, receiver := range all {
				if receiver == sender {
					continue
				}
				receive, ok := receiver.Actions[name]
				if !ok || receive.Kind != kinds.Receive {
					continue
				}
				dispatch.Signal.Peers = append(dispatch.Signal.Peers, Peer{Process: receiver.Name, Action: name})
				receive.Signal.Peers = append(receive.Signal.Peers, Peer{Process: sender.Name, Action: name})
			}
		}
	}
}
