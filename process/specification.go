package process

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stateforward/go-emg/ctype"
	"github.com/stateforward/go-emg/kinds"
	"github.com/stateforward/go-emg/queue"
)

// Strings decodes either a single string or a list of strings.
type Strings []string

func (s *Strings) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*s = Strings{value.Value}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*s = list
	return nil
}

type LabelSpecification struct {
	Interface   Strings `yaml:"interface,omitempty"`
	Declaration string  `yaml:"declaration,omitempty"`
	Value       string  `yaml:"value,omitempty"`
	Parameter   bool    `yaml:"parameter,omitempty"`
	Retval      bool    `yaml:"retval,omitempty"`
}

type ActionSpecification struct {
	Comment    string   `yaml:"comment,omitempty"`
	Condition  Strings  `yaml:"condition,omitempty"`
	Statements []string `yaml:"statements,omitempty"`
	Parameters []string `yaml:"parameters,omitempty"`
	Callback   string   `yaml:"callback,omitempty"`
	Retval     string   `yaml:"callback return value,omitempty"`
	PreCall    []string `yaml:"pre-call,omitempty"`
	PostCall   []string `yaml:"post-call,omitempty"`
	Process    string   `yaml:"process,omitempty"`
	Broadcast  bool     `yaml:"broadcast,omitempty"`
}

type ProcessSpecification struct {
	Name     string                         `yaml:"name,omitempty"`
	Category string                         `yaml:"category,omitempty"`
	Comment  string                         `yaml:"comment,omitempty"`
	Headers  []string                       `yaml:"headers,omitempty"`
	Labels   map[string]LabelSpecification  `yaml:"labels,omitempty"`
	Process  yaml.Node                      `yaml:"process"`
	Actions  map[string]ActionSpecification `yaml:"actions,omitempty"`
}

type Specification struct {
	Environment map[string]ProcessSpecification `yaml:"environment processes,omitempty"`
	Models      map[string]ProcessSpecification `yaml:"models,omitempty"`
	Entry       *ProcessSpecification           `yaml:"entry,omitempty"`
}

func LoadSpecification(reader io.Reader) (*Specification, error) {
	specification := &Specification{}
	if err := yaml.NewDecoder(reader).Decode(specification); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: decode process specification: %w", ErrMalformed, err)
	}
	return specification, nil
}

// Load decodes a process specification and builds its processes.
func Load(reader io.Reader) (*Processes, error) {
	specification, err := LoadSpecification(reader)
	if err != nil {
		return nil, err
	}
	return specification.Build()
}

// Build creates the processes and connects their peers.
func (s *Specification) Build() (*Processes, error) {
	processes := &Processes{}
	for _, name := range slices.Sorted(maps.Keys(s.Environment)) {
		p, err := build(name, kinds.EventProcess, s.Environment[name])
		if err != nil {
			return nil, err
		}
		processes.Environment = append(processes.Environment, p)
	}
	for _, name := range slices.Sorted(maps.Keys(s.Models)) {
		p, err := build(name, kinds.ModelProcess, s.Models[name])
		if err != nil {
			return nil, err
		}
		processes.Models = append(processes.Models, p)
	}
	if s.Entry != nil {
		name := s.Entry.Name
		if name == "" {
			name = "entry"
		}
		p, err := build(name, kinds.EntryProcess, *s.Entry)
		if err != nil {
			return nil, err
		}
		processes.Entry = p
	}
	processes.EstablishPeers()
	return processes, nil
}

func build(name string, kind uint64, specification ProcessSpecification) (*Process, error) {
	p := &Process{
		Name:     name,
		Category: specification.Category,
		Kind:     kind,
		Comment:  specification.Comment,
		Headers:  specification.Headers,
		Labels:   map[string]*Label{},
		Actions:  map[string]*Action{},
		Tree:     &AST{},
	}
	for _, labelName := range slices.Sorted(maps.Keys(specification.Labels)) {
		label, err := buildLabel(p, labelName, specification.Labels[labelName])
		if err != nil {
			return nil, err
		}
		p.Labels[labelName] = label
	}

	leaves := map[string]leaf{}
	root, err := addProcess(p.Tree, specification.Process, leaves)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", p, err)
	}
	p.Tree.Root = root

	// subprocess bodies may name further subprocesses
	pending := queue.New(slices.Sorted(maps.Keys(leaves))...)
	for pending.Len() > 0 {
		actionName, _ := pending.Pop()
		if _, done := p.Actions[actionName]; done {
			continue
		}
		definition, ok := specification.Actions[actionName]
		if !ok {
			return nil, fmt.Errorf("%w: action %s used in process %s is not defined", ErrUnresolved, actionName, p)
		}
		action, err := buildAction(actionName, leaves[actionName], definition)
		if err != nil {
			return nil, fmt.Errorf("process %s: %w", p, err)
		}
		p.Actions[actionName] = action
		if action.Subprocess == nil {
			continue
		}
		body, err := parseExpression(p.Tree, action.Subprocess.Expression, leaves)
		if err != nil {
			return nil, fmt.Errorf("process %s subprocess %s: %w", p, actionName, err)
		}
		action.Subprocess.Root = body
		pending.Push(slices.Sorted(maps.Keys(leaves))...)
	}
	for index, node := range p.Tree.Nodes {
		if node.Name != "" {
			p.Tree.Nodes[index].Kind = p.Actions[node.Name].Kind
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func addProcess(tree *AST, node yaml.Node, leaves map[string]leaf) (int, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return parseExpression(tree, node.Value, leaves)
	case yaml.MappingNode:
		var explicit Tree
		if err := node.Decode(&explicit); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return addTree(tree, explicit, leaves)
	}
	return 0, fmt.Errorf("%w: missing process expression", ErrMalformed)
}

func buildLabel(p *Process, name string, specification LabelSpecification) (*Label, error) {
	label := &Label{
		Name:      name,
		Value:     specification.Value,
		Parameter: specification.Parameter,
		Retval:    specification.Retval,
	}
	for _, id := range specification.Interface {
		if !strings.Contains(id, ".") && p.Category != "" {
			id = p.Category + "." + id
		}
		label.Interfaces = append(label.Interfaces, id)
	}
	if specification.Declaration != "" {
		declaration, _, err := ctype.Parse(specification.Declaration)
		if err != nil {
			return nil, fmt.Errorf("%w: label %s of process %s: %w", ErrMalformed, name, p, err)
		}
		label.Declaration = declaration
	}
	return label, nil
}

func buildAction(name string, occurrence leaf, specification ActionSpecification) (*Action, error) {
	action := &Action{
		Kind:       occurrence.kind,
		Name:       name,
		Comment:    specification.Comment,
		Condition:  specification.Condition,
		Statements: specification.Statements,
	}
	if action.Kind == kinds.Action {
		switch {
		case specification.Callback != "":
			action.Kind = kinds.Call
		case specification.Process != "":
			action.Kind = kinds.Subprocess
		case len(specification.Parameters) == 0:
			action.Kind = kinds.Condition
		default:
			return nil, fmt.Errorf("%w: cannot tell whether action %s dispatches or receives", ErrMalformed, name)
		}
	}
	if action.Kind == kinds.Dispatch && specification.Callback != "" {
		action.Kind = kinds.Call
	}
	switch action.Kind {
	case kinds.Dispatch, kinds.Receive:
		action.Signal = &Signal{
			Parameters: specification.Parameters,
			Broadcast:  occurrence.broadcast || specification.Broadcast,
		}
	case kinds.Call:
		if specification.Callback == "" {
			return nil, fmt.Errorf("%w: call %s has no callback", ErrMalformed, name)
		}
		if specification.Retval != "" {
			action.Kind = kinds.CallRetval
		}
		action.Callback = &Callback{
			Callback:   specification.Callback,
			Parameters: specification.Parameters,
			Retval:     specification.Retval,
			PreCall:    specification.PreCall,
			PostCall:   specification.PostCall,
		}
	case kinds.Subprocess:
		if specification.Process == "" {
			return nil, fmt.Errorf("%w: subprocess %s has no process", ErrUnresolved, name)
		}
		action.Subprocess = &Subprocess{Expression: specification.Process}
	case kinds.Condition:
	default:
		return nil, fmt.Errorf("%w: action %s has unknown kind %s", ErrMalformed, name, kinds.Name(action.Kind))
	}
	return action, nil
}
