// Package ctype describes C declarations as far as environment model
// generation needs them: enough structure to match callback signatures,
// container fields and array elements, and to print declarators back as C.
package ctype

import (
	"slices"
	"strconv"
	"strings"

	"github.com/stateforward/go-emg/kinds"
)

// Declaration is a C type. Identifier is the abstract declarator text and is
// the only thing compared when two declarations are matched.
type Declaration interface {
	Kind() uint64
	Identifier() string
	Clean() bool
	declare(name string) string
}

type Primitive struct {
	Name string
}

func (p *Primitive) Kind() uint64       { return kinds.Primitive }
func (p *Primitive) Identifier() string { return p.declare("") }
func (p *Primitive) Clean() bool        { return true }
func (p *Primitive) declare(name string) string {
	return join(p.Name, name)
}

type Pointer struct {
	Points Declaration
}

func (p *Pointer) Kind() uint64       { return kinds.Pointer }
func (p *Pointer) Identifier() string { return p.declare("") }
func (p *Pointer) Clean() bool        { return p.Points.Clean() }
func (p *Pointer) declare(name string) string {
	inner := "*" + name
	if kinds.IsKind(p.Points.Kind(), kinds.Function, kinds.Array) {
		inner = "(" + inner + ")"
	}
	return p.Points.declare(inner)
}

type Function struct {
	Return     Declaration
	Parameters []Declaration
	Variadic   bool
}

func (f *Function) Kind() uint64       { return kinds.Function }
func (f *Function) Identifier() string { return f.declare("") }

func (f *Function) Clean() bool {
	if !f.Return.Clean() {
		return false
	}
	for _, parameter := range f.Parameters {
		if !parameter.Clean() {
			return false
		}
	}
	return true
}

func (f *Function) declare(name string) string {
	return f.Return.declare(name + "(" + f.parameters() + ")")
}

func (f *Function) parameters() string {
	if len(f.Parameters) == 0 && !f.Variadic {
		return "void"
	}
	parameters := make([]string, 0, len(f.Parameters)+1)
	for _, parameter := range f.Parameters {
		parameters = append(parameters, parameter.Identifier())
	}
	if f.Variadic {
		parameters = append(parameters, "...")
	}
	return strings.Join(parameters, ", ")
}

// Define prints a function header with named parameters, used for the
// definitions of generated functions.
func (f *Function) Define(name string, parameterNames []string) string {
	parameters := make([]string, 0, len(f.Parameters))
	for i, parameter := range f.Parameters {
		parameterName := ""
		if i < len(parameterNames) {
			parameterName = parameterNames[i]
		}
		parameters = append(parameters, Declare(parameter, parameterName))
	}
	if len(parameters) == 0 {
		parameters = append(parameters, "void")
	}
	if f.Variadic {
		parameters = append(parameters, "...")
	}
	return f.Return.declare(name + "(" + strings.Join(parameters, ", ") + ")")
}

// Structure is a struct type. Fields are known only for containers whose
// layout the interface specification describes.
type Structure struct {
	Name   string
	Fields map[string]Declaration
	Order  []string
}

func (s *Structure) Kind() uint64       { return kinds.Structure }
func (s *Structure) Identifier() string { return s.declare("") }

func (s *Structure) Clean() bool {
	for _, field := range s.Fields {
		if !field.Clean() {
			return false
		}
	}
	return true
}

func (s *Structure) declare(name string) string {
	return join("struct "+s.Name, name)
}

// AddField appends a field keeping declaration order.
func (s *Structure) AddField(name string, declaration Declaration) {
	if s.Fields == nil {
		s.Fields = map[string]Declaration{}
	}
	if _, ok := s.Fields[name]; !ok {
		s.Order = append(s.Order, name)
	}
	s.Fields[name] = declaration
}

type Union struct {
	Name   string
	Fields map[string]Declaration
	Order  []string
}

func (u *Union) Kind() uint64       { return kinds.Union }
func (u *Union) Identifier() string { return u.declare("") }

func (u *Union) Clean() bool {
	for _, field := range u.Fields {
		if !field.Clean() {
			return false
		}
	}
	return true
}

func (u *Union) declare(name string) string {
	return join("union "+u.Name, name)
}

// Array is an array type, Size is -1 when the bound is unknown.
type Array struct {
	Element Declaration
	Size    int
}

func (a *Array) Kind() uint64       { return kinds.Array }
func (a *Array) Identifier() string { return a.declare("") }
func (a *Array) Clean() bool        { return a.Element.Clean() }
func (a *Array) declare(name string) string {
	size := ""
	if a.Size >= 0 {
		size = strconv.Itoa(a.Size)
	}
	return a.Element.declare(name + "[" + size + "]")
}

// InterfaceReference is a placeholder for the declaration of another
// interface, written %category.identifier% in specifications.
type InterfaceReference struct {
	Interface string
}

func (r *InterfaceReference) Kind() uint64       { return kinds.InterfaceReference }
func (r *InterfaceReference) Identifier() string { return r.declare("") }
func (r *InterfaceReference) Clean() bool        { return false }
func (r *InterfaceReference) declare(name string) string {
	return join("%"+r.Interface+"%", name)
}

func join(base, declarator string) string {
	if declarator == "" {
		return base
	}
	return base + " " + declarator
}

// Declare prints a C declaration of name with the given type.
func Declare(declaration Declaration, name string) string {
	return declaration.declare(name)
}

// Compare reports whether two declarations denote the same type.
func Compare(a, b Declaration) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Identifier() == b.Identifier()
}

// Match compares declarations allowing one level of pointer adjustment and
// function pointer decay. The returned prefix converts a value of type
// actual into the expected type: "&" takes an address, "*" dereferences.
func Match(expected, actual Declaration) (string, bool) {
	if expected == nil || actual == nil {
		return "", false
	}
	if Compare(expected, actual) {
		return "", true
	}
	if pointer, ok := expected.(*Pointer); ok {
		if Compare(pointer.Points, actual) {
			if kinds.IsKind(actual.Kind(), kinds.Function) {
				return "", true
			}
			return "&", true
		}
	}
	if pointer, ok := actual.(*Pointer); ok {
		if Compare(pointer.Points, expected) {
			if kinds.IsKind(expected.Kind(), kinds.Function) {
				return "", true
			}
			return "*", true
		}
	}
	return "", false
}

// Dereference returns the pointed-to declaration or nil.
func Dereference(declaration Declaration) Declaration {
	if pointer, ok := declaration.(*Pointer); ok {
		return pointer.Points
	}
	return nil
}

func TakePointer(declaration Declaration) Declaration {
	return &Pointer{Points: declaration}
}

// Signature returns the function type of a function or a function pointer.
func Signature(declaration Declaration) (*Function, bool) {
	switch typed := declaration.(type) {
	case *Function:
		return typed, true
	case *Pointer:
		function, ok := typed.Points.(*Function)
		return function, ok
	}
	return nil, false
}

// References lists the interfaces a declaration refers to, in order of
// first appearance.
func References(declaration Declaration) []string {
	references := []string{}
	Walk(declaration, func(d Declaration) {
		if reference, ok := d.(*InterfaceReference); ok && !slices.Contains(references, reference.Interface) {
			references = append(references, reference.Interface)
		}
	})
	return references
}

// Walk visits a declaration and everything nested in it.
func Walk(declaration Declaration, visit func(Declaration)) {
	if declaration == nil {
		return
	}
	visit(declaration)
	switch typed := declaration.(type) {
	case *Pointer:
		Walk(typed.Points, visit)
	case *Array:
		Walk(typed.Element, visit)
	case *Function:
		Walk(typed.Return, visit)
		for _, parameter := range typed.Parameters {
			Walk(parameter, visit)
		}
	case *Structure:
		for _, name := range typed.Order {
			Walk(typed.Fields[name], visit)
		}
	case *Union:
		for _, name := range typed.Order {
			Walk(typed.Fields[name], visit)
		}
	}
}

// Replace returns a copy of declaration with every interface reference for
// which resolve returns a declaration substituted. Nothing is mutated; the
// boolean reports whether any substitution happened.
func Replace(declaration Declaration, resolve func(reference *InterfaceReference) Declaration) (Declaration, bool) {
	switch typed := declaration.(type) {
	case *InterfaceReference:
		if replacement := resolve(typed); replacement != nil {
			return replacement, true
		}
		return typed, false
	case *Pointer:
		points, changed := Replace(typed.Points, resolve)
		if !changed {
			return typed, false
		}
		return &Pointer{Points: points}, true
	case *Array:
		element, changed := Replace(typed.Element, resolve)
		if !changed {
			return typed, false
		}
		return &Array{Element: element, Size: typed.Size}, true
	case *Function:
		result, changed := Replace(typed.Return, resolve)
		parameters := make([]Declaration, len(typed.Parameters))
		for i, parameter := range typed.Parameters {
			replaced, ok := Replace(parameter, resolve)
			parameters[i] = replaced
			changed = changed || ok
		}
		if !changed {
			return typed, false
		}
		return &Function{Return: result, Parameters: parameters, Variadic: typed.Variadic}, true
	case *Structure:
		fields, changed := replaceFields(typed.Fields, typed.Order, resolve)
		if !changed {
			return typed, false
		}
		return &Structure{Name: typed.Name, Fields: fields, Order: slices.Clone(typed.Order)}, true
	case *Union:
		fields, changed := replaceFields(typed.Fields, typed.Order, resolve)
		if !changed {
			return typed, false
		}
		return &Union{Name: typed.Name, Fields: fields, Order: slices.Clone(typed.Order)}, true
	}
	return declaration, false
}

func replaceFields(fields map[string]Declaration, order []string, resolve func(*InterfaceReference) Declaration) (map[string]Declaration, bool) {
	replaced := make(map[string]Declaration, len(fields))
	changed := false
	for _, name := range order {
		field, ok := Replace(fields[name], resolve)
		replaced[name] = field
		changed = changed || ok
	}
	return replaced, changed
}
