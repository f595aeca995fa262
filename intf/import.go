package intf

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stateforward/go-emg/analysis"
	"github.com/stateforward/go-emg/ctype"
	"github.com/stateforward/go-emg/kinds"
)

type InterfaceSpecification struct {
	Declaration string `yaml:"declaration"`
	Header      string `yaml:"header,omitempty"`
	Comment     string `yaml:"comment,omitempty"`
}

type ContainerSpecification struct {
	Declaration string            `yaml:"declaration"`
	Header      string            `yaml:"header,omitempty"`
	Comment     string            `yaml:"comment,omitempty"`
	Fields      map[string]string `yaml:"fields,omitempty"`
	Element     string            `yaml:"element,omitempty"`
}

type CategorySpecification struct {
	Containers map[string]ContainerSpecification `yaml:"containers,omitempty"`
	Resources  map[string]InterfaceSpecification `yaml:"resources,omitempty"`
	Callbacks  map[string]InterfaceSpecification `yaml:"callbacks,omitempty"`
}

// Specification is the interface specification document.
type Specification struct {
	Categories map[string]CategorySpecification  `yaml:"categories"`
	Functions  map[string]InterfaceSpecification `yaml:"functions models"`
}

func LoadSpecification(reader io.Reader) (*Specification, error) {
	specification := &Specification{}
	if err := yaml.NewDecoder(reader).Decode(specification); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode interface specification: %w", err)
	}
	return specification, nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// Import builds a collection from an interface specification and the values
// found in the analysis database.
func Import(db *analysis.Database, specification *Specification, config ...Config) (*Collection, error) {
	c := New(config...)
	for _, category := range sortedKeys(specification.Categories) {
		if err := c.importCategory(category, specification.Categories[category]); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(specification.Functions) {
		function := specification.Functions[name]
		declaration, _, err := ctype.Parse(function.Declaration)
		if err != nil {
			return nil, fmt.Errorf("function model %s: %w", name, err)
		}
		i := &Interface{Kind: kinds.FunctionInterface, Category: FunctionsCategory, ShortID: name, Header: function.Header, Declaration: declaration}
		signatureInterfaces(i)
		c.Set(i)
	}
	if err := c.importImplementations(db); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collection) importCategory(category string, specification CategorySpecification) error {
	for _, id := range sortedKeys(specification.Resources) {
		resource := specification.Resources[id]
		declaration, _, err := ctype.Parse(resource.Declaration)
		if err != nil {
			return fmt.Errorf("resource %s.%s: %w", category, id, err)
		}
		c.Set(&Interface{Kind: kinds.Resource, Category: category, ShortID: id, Header: resource.Header, Declaration: declaration})
	}
	for _, id := range sortedKeys(specification.Callbacks) {
		callback := specification.Callbacks[id]
		declaration, _, err := ctype.Parse(callback.Declaration)
		if err != nil {
			return fmt.Errorf("callback %s.%s: %w", category, id, err)
		}
		i := &Interface{Kind: kinds.Callback, Category: category, ShortID: id, Header: callback.Header, Declaration: declaration}
		signatureInterfaces(i)
		c.Set(i)
	}
	for _, id := range sortedKeys(specification.Containers) {
		container := specification.Containers[id]
		declaration, _, err := ctype.Parse(container.Declaration)
		if err != nil {
			return fmt.Errorf("container %s.%s: %w", category, id, err)
		}
		i := &Interface{Kind: kinds.Container, Category: category, ShortID: id, Header: container.Header, Declaration: declaration, Fields: map[string]string{}}
		switch typed := containerType(declaration).(type) {
		case *ctype.Structure:
			for _, field := range sortedKeys(container.Fields) {
				fieldDeclaration, _, err := ctype.Parse(container.Fields[field])
				if err != nil {
					return fmt.Errorf("container %s field %s: %w", i.ID(), field, err)
				}
				typed.AddField(field, fieldDeclaration)
				if references := ctype.References(fieldDeclaration); len(references) == 1 {
					i.Fields[field] = qualify(category, references[0])
				}
			}
		case *ctype.Array:
			if container.Element != "" {
				element, _, err := ctype.Parse(container.Element)
				if err != nil {
					return fmt.Errorf("container %s element: %w", i.ID(), err)
				}
				typed.Element = element
				if references := ctype.References(element); len(references) == 1 {
					i.Element = qualify(category, references[0])
				}
			}
		default:
			return fmt.Errorf("container %s has declaration %q which is neither a structure nor an array", i.ID(), container.Declaration)
		}
		c.Set(i)
	}
	return nil
}

// qualify prefixes a reference without a category with the given one.
func qualify(category, reference string) string {
	if strings.Contains(reference, ".") {
		return reference
	}
	return category + "." + reference
}

// signatureInterfaces records the interfaces referenced by each parameter
// and the return type of a function or callback declaration.
func signatureInterfaces(i *Interface) {
	signature, ok := i.Signature()
	if !ok {
		return
	}
	reference := func(declaration ctype.Declaration) string {
		if references := ctype.References(declaration); len(references) == 1 {
			return references[0]
		}
		return ""
	}
	i.Parameters = make([]string, len(signature.Parameters))
	for index, parameter := range signature.Parameters {
		i.Parameters[index] = reference(parameter)
	}
	i.Return = reference(signature.Return)
}

func (c *Collection) importImplementations(db *analysis.Database) error {
	for _, file := range db.Files() {
		for _, name := range sortedKeys(db.Functions[file]) {
			signature, err := db.Declaration(db.Functions[file][name].Declaration)
			if err != nil {
				return fmt.Errorf("function %s in %s: %w", name, file, err)
			}
			c.AddImplementation(&Implementation{Value: name, File: file, Declaration: signature, Function: name})
		}
		for _, name := range sortedKeys(db.Globals[file]) {
			global := db.Globals[file][name]
			declaration, err := db.Declaration(global.Declaration)
			if err != nil {
				return fmt.Errorf("global %s in %s: %w", name, file, err)
			}
			c.AddImplementation(&Implementation{Value: name, File: file, Declaration: declaration})
			if global.Value != nil {
				c.importInitializer(db, file, name, declaration, *global.Value, nil)
			}
		}
	}
	return nil
}

// importInitializer records every member of a structured initializer as an
// implementation whose base is the enclosing structure or array value.
func (c *Collection) importInitializer(db *analysis.Database, file, base string, declaration ctype.Declaration, node analysis.Initializer, sequence []string) {
	children := node.Fields
	if len(node.Elements) > 0 {
		children = node.Elements
	}
	for _, child := range children {
		key := child.Key()
		path := append(slices.Clone(sequence), key)
		childDeclaration := c.memberDeclaration(db, declaration, child)
		if childDeclaration == nil {
			c.logger.Debug("skipping initializer member of unknown type", "value", base, "member", key)
			continue
		}
		expression := base + "." + key
		if child.Index != nil {
			expression = base + "[" + key + "]"
		}
		implementation := &Implementation{
			Value:           expression,
			File:            file,
			Declaration:     childDeclaration,
			BaseValue:       base,
			BaseDeclaration: declaration,
			Sequence:        path,
			FixedInterface:  c.fieldInterface(declaration, key),
		}
		if child.Value != "" {
			implementation.Value = strings.TrimSpace(child.Value)
			if function, ok := db.FunctionReference(child.Value); ok {
				implementation.Function = function
			}
		}
		c.AddImplementation(implementation)
		if child.Value == "" {
			c.importInitializer(db, file, expression, childDeclaration, child, path)
		}
	}
}

func (c *Collection) memberDeclaration(db *analysis.Database, parent ctype.Declaration, child analysis.Initializer) ctype.Declaration {
	if child.Declaration != "" {
		if declaration, err := db.Declaration(child.Declaration); err == nil {
			return declaration
		}
	}
	if array, ok := parent.(*ctype.Array); ok && child.Index != nil {
		return array.Element
	}
	if function, ok := db.FunctionReference(child.Value); ok {
		if signature, err := db.Signature(function); err == nil {
			return ctype.TakePointer(signature)
		}
	}
	return nil
}

// fieldInterface returns the interface a container binds to a field of the
// given structure type, if any container does.
func (c *Collection) fieldInterface(declaration ctype.Declaration, key string) string {
	for _, container := range c.Interfaces(kinds.Container) {
		if !ctype.Compare(containerType(container.Declaration), declaration) {
			continue
		}
		if id, ok := container.Fields[key]; ok {
			return id
		}
	}
	return ""
}
