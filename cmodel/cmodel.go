// Package cmodel collects the C code of an environment model per file and
// renders each file as a translation unit.
package cmodel

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/stateforward/go-emg/ctype"
)

type Variable struct {
	Name        string
	Declaration ctype.Declaration
	Value       string
	Comment     string
}

func (v *Variable) Declare() string {
	return ctype.Declare(v.Declaration, v.Name)
}

func (v *Variable) Define() string {
	if v.Value == "" {
		return v.Declare() + ";"
	}
	return v.Declare() + " = " + v.Value + ";"
}

type Function struct {
	Name        string
	Declaration *ctype.Function
	Parameters  []string
	Body        []string
	Comment     string
	Static      bool
}

func (f *Function) Prototype() string {
	prototype := f.Declaration.Define(f.Name, f.Parameters)
	if f.Static {
		prototype = "static " + prototype
	}
	return prototype + ";"
}

func (f *Function) Define() []string {
	header := f.Declaration.Define(f.Name, f.Parameters)
	if f.Static {
		header = "static " + header
	}
	lines := []string{}
	if f.Comment != "" {
		lines = append(lines, "/* "+f.Comment+" */")
	}
	lines = append(lines, header+" {")
	for _, line := range f.Body {
		if line == "" {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, "\t"+line)
	}
	return append(lines, "}")
}

// Type is a type definition such as a parameter structure.
type Type struct {
	Name       string
	Definition []string
}

type File struct {
	Name      string
	Headers   []string
	types     map[string]*Type
	variables map[string]*Variable
	functions map[string]*Function
	externs   []string
}

// Model maps file names to the code generated for them.
type Model struct {
	files map[string]*File
}

func New() *Model {
	return &Model{files: map[string]*File{}}
}

func (m *Model) file(name string) *File {
	file, ok := m.files[name]
	if !ok {
		file = &File{
			Name:      name,
			types:     map[string]*Type{},
			variables: map[string]*Variable{},
			functions: map[string]*Function{},
		}
		m.files[name] = file
	}
	return file
}

func (m *Model) AddHeader(file string, headers ...string) {
	f := m.file(file)
	for _, header := range headers {
		if !slices.Contains(f.Headers, header) {
			f.Headers = append(f.Headers, header)
		}
	}
}

func (m *Model) AddVariable(file string, variable *Variable) {
	m.file(file).variables[variable.Name] = variable
}

func (m *Model) AddFunction(file string, function *Function) {
	m.file(file).functions[function.Name] = function
}

func (m *Model) AddType(file string, t *Type) {
	m.file(file).types[t.Name] = t
}

// AddExtern declares in file a variable or function defined in another one.
func (m *Model) AddExtern(file string, names ...string) {
	f := m.file(file)
	for _, name := range names {
		if !slices.Contains(f.externs, name) {
			f.externs = append(f.externs, name)
		}
	}
}

func (m *Model) Files() []string {
	return slices.Sorted(maps.Keys(m.files))
}

// Function finds a function by name in any file.
func (m *Model) Function(name string) (*Function, string, bool) {
	for _, file := range m.Files() {
		if function, ok := m.files[file].functions[name]; ok {
			return function, file, true
		}
	}
	return nil, "", false
}

func (m *Model) Variable(name string) (*Variable, string, bool) {
	for _, file := range m.Files() {
		if variable, ok := m.files[file].variables[name]; ok {
			return variable, file, true
		}
	}
	return nil, "", false
}

// Functions returns the names of the functions defined in file, sorted.
func (m *Model) Functions(file string) []string {
	f, ok := m.files[file]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(f.functions))
}

func (m *Model) Variables(file string) []string {
	f, ok := m.files[file]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(f.variables))
}

// Render writes file as C: headers, types, extern declarations, variables,
// prototypes and definitions, each group sorted by name.
func (m *Model) Render(writer io.Writer, file string) error {
	f, ok := m.files[file]
	if !ok {
		return fmt.Errorf("no code generated for %s", file)
	}
	var builder strings.Builder
	for _, header := range slices.Sorted(slices.Values(f.Headers)) {
		fmt.Fprintf(&builder, "#include <%s>\n", header)
	}
	if len(f.Headers) > 0 {
		builder.WriteString("\n")
	}
	for _, name := range slices.Sorted(maps.Keys(f.types)) {
		for _, line := range f.types[name].Definition {
			builder.WriteString(line + "\n")
		}
		builder.WriteString("\n")
	}
	externs := slices.Sorted(slices.Values(f.externs))
	for _, name := range externs {
		if function, _, ok := m.Function(name); ok {
			builder.WriteString("extern " + function.Prototype() + "\n")
		} else if variable, _, ok := m.Variable(name); ok {
			builder.WriteString("extern " + variable.Declare() + ";\n")
		}
	}
	if len(externs) > 0 {
		builder.WriteString("\n")
	}
	for _, name := range slices.Sorted(maps.Keys(f.variables)) {
		variable := f.variables[name]
		if variable.Comment != "" {
			builder.WriteString("/* " + variable.Comment + " */\n")
		}
		builder.WriteString(variable.Define() + "\n")
	}
	if len(f.variables) > 0 {
		builder.WriteString("\n")
	}
	names := slices.Sorted(maps.Keys(f.functions))
	for _, name := range names {
		builder.WriteString(f.functions[name].Prototype() + "\n")
	}
	for _, name := range names {
		builder.WriteString("\n" + strings.Join(f.functions[name].Define(), "\n") + "\n")
	}
	_, err := io.WriteString(writer, builder.String())
	return err
}
