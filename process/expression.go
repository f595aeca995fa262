package process

import (
	"fmt"
	"unicode"

	"github.com/stateforward/go-emg/kinds"
)

// leaf is an action occurrence as written in an expression, before the
// action definitions are consulted.
type leaf struct {
	kind      uint64
	broadcast bool
}

type expressionParser struct {
	text   []rune
	pos    int
	tree   *AST
	leaves map[string]leaf
}

// parseExpression adds the nodes of a process expression such as
// "(!register).{main}" to the tree and returns the index of its root.
func parseExpression(tree *AST, text string, leaves map[string]leaf) (int, error) {
	p := &expressionParser{text: []rune(text), tree: tree, leaves: leaves}
	root, err := p.choice()
	if err != nil {
		return 0, fmt.Errorf("%w: process %q: %w", ErrMalformed, text, err)
	}
	p.space()
	if p.pos != len(p.text) {
		return 0, fmt.Errorf("%w: process %q: unexpected %q at %d", ErrMalformed, text, p.text[p.pos], p.pos)
	}
	return root, nil
}

func (p *expressionParser) space() {
	for p.pos < len(p.text) && unicode.IsSpace(p.text[p.pos]) {
		p.pos++
	}
}

func (p *expressionParser) peek() rune {
	p.space()
	if p.pos < len(p.text) {
		return p.text[p.pos]
	}
	return 0
}

func (p *expressionParser) choice() (int, error) {
	first, err := p.sequence()
	if err != nil {
		return 0, err
	}
	if p.peek() != '|' {
		return first, nil
	}
	children := []int{first}
	for p.peek() == '|' {
		p.pos++
		next, err := p.sequence()
		if err != nil {
			return 0, err
		}
		children = append(children, next)
	}
	return p.tree.add(Node{Kind: kinds.Choice, Children: children}), nil
}

func (p *expressionParser) sequence() (int, error) {
	first, err := p.term()
	if err != nil {
		return 0, err
	}
	if p.peek() != '.' {
		return first, nil
	}
	children := []int{first}
	for p.peek() == '.' {
		p.pos++
		next, err := p.term()
		if err != nil {
			return 0, err
		}
		children = append(children, next)
	}
	return p.tree.add(Node{Kind: kinds.Sequence, Children: children}), nil
}

func (p *expressionParser) term() (int, error) {
	switch p.peek() {
	case '(':
		if p.receive() {
			return p.action('(', ')')
		}
		p.pos++
		inner, err := p.choice()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("expected ) at %d", p.pos)
		}
		p.pos++
		return inner, nil
	case '[':
		return p.action('[', ']')
	case '<':
		return p.action('<', '>')
	case '{':
		return p.action('{', '}')
	case 0:
		return 0, fmt.Errorf("unexpected end of expression")
	}
	return 0, fmt.Errorf("unexpected %q at %d", p.peek(), p.pos)
}

// receive tells a receive "(name)" or "(!name)" from a parenthesized group.
func (p *expressionParser) receive() bool {
	i := p.pos + 1
	if i < len(p.text) && p.text[i] == '!' {
		return true
	}
	start := i
	for i < len(p.text) && isNameRune(p.text[i]) {
		i++
	}
	return i > start && i < len(p.text) && p.text[i] == ')'
}

func isNameRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (p *expressionParser) action(open, close rune) (int, error) {
	p.pos++
	occurrence := leaf{}
	switch open {
	case '(':
		occurrence.kind = kinds.Receive
		if p.pos < len(p.text) && p.text[p.pos] == '!' {
			p.pos++
		}
	case '[':
		occurrence.kind = kinds.Dispatch
		if p.pos < len(p.text) && p.text[p.pos] == '@' {
			occurrence.broadcast = true
			p.pos++
		}
	case '<':
		occurrence.kind = kinds.Condition
	case '{':
		occurrence.kind = kinds.Subprocess
	}
	start := p.pos
	for p.pos < len(p.text) && isNameRune(p.text[p.pos]) {
		p.pos++
	}
	name := string(p.text[start:p.pos])
	if name == "" {
		return 0, fmt.Errorf("expected action name at %d", start)
	}
	if p.pos >= len(p.text) || p.text[p.pos] != close {
		return 0, fmt.Errorf("expected %q after %s", close, name)
	}
	p.pos++
	if previous, ok := p.leaves[name]; ok && previous.kind != occurrence.kind {
		return 0, fmt.Errorf("action %s is used both as %s and %s", name, kinds.Name(previous.kind), kinds.Name(occurrence.kind))
	}
	previous := p.leaves[name]
	occurrence.broadcast = occurrence.broadcast || previous.broadcast
	p.leaves[name] = occurrence
	return p.tree.add(Node{Kind: occurrence.kind, Name: name}), nil
}

// Tree is the explicit form of a process AST.
type Tree struct {
	Type     string `yaml:"type"`
	Name     string `yaml:"name,omitempty"`
	Children []Tree `yaml:"children,omitempty"`
}

var treeKinds = map[string]uint64{
	"dispatch":   kinds.Dispatch,
	"receive":    kinds.Receive,
	"condition":  kinds.Condition,
	"subprocess": kinds.Subprocess,
	"call":       kinds.Call,
}

// addTree adds the nodes of an explicit tree. Leaves of type "action" take
// their kind from the action definition later on.
func addTree(tree *AST, node Tree, leaves map[string]leaf) (int, error) {
	switch node.Type {
	case "sequence", "choice":
		kind := kinds.Sequence
		if node.Type == "choice" {
			kind = kinds.Choice
		}
		if len(node.Children) == 0 {
			return 0, fmt.Errorf("%w: empty %s", ErrMalformed, node.Type)
		}
		children := make([]int, 0, len(node.Children))
		for _, child := range node.Children {
			index, err := addTree(tree, child, leaves)
			if err != nil {
				return 0, err
			}
			children = append(children, index)
		}
		return tree.add(Node{Kind: kind, Children: children}), nil
	case "action":
		if node.Name == "" {
			return 0, fmt.Errorf("%w: action node without a name", ErrMalformed)
		}
		if _, ok := leaves[node.Name]; !ok {
			leaves[node.Name] = leaf{kind: kinds.Action}
		}
		return tree.add(Node{Kind: kinds.Action, Name: node.Name}), nil
	}
	kind, ok := treeKinds[node.Type]
	if !ok {
		return 0, fmt.Errorf("%w: unknown node type %q", ErrMalformed, node.Type)
	}
	if node.Name == "" {
		return 0, fmt.Errorf("%w: %s node without a name", ErrMalformed, node.Type)
	}
	if previous, ok := leaves[node.Name]; ok && previous.kind != kind {
		return 0, fmt.Errorf("%w: action %s is used both as %s and %s", ErrMalformed, node.Name, kinds.Name(previous.kind), node.Type)
	}
	leaves[node.Name] = leaf{kind: kind}
	return tree.add(Node{Kind: kind, Name: node.Name}), nil
}
