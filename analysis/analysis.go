// Package analysis holds the facts extracted from the analysed program:
// function signatures and call edges, initializers of global variables and
// macro expansions. The database is read-only once loaded.
package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/stateforward/go-emg/ctype"
)

type Function struct {
	Declaration string `json:"declaration"`
	// Calls maps a callee name to the call sites, as extracted by the source
	// analysis.
	Calls map[string][]string `json:"calls,omitempty"`
}

// Initializer is a node of a structured global variable initializer. Struct
// members are in Fields, array elements in Elements, scalars in Value.
type Initializer struct {
	Field       string        `json:"field,omitempty"`
	Index       *int          `json:"index,omitempty"`
	Declaration string        `json:"declaration,omitempty"`
	Value       string        `json:"value,omitempty"`
	Fields      []Initializer `json:"fields,omitempty"`
	Elements    []Initializer `json:"elements,omitempty"`
}

// Key returns the path element this node contributes to an implementation
// sequence: the field name or the element index.
func (i Initializer) Key() string {
	if i.Index != nil {
		return fmt.Sprintf("%d", *i.Index)
	}
	return i.Field
}

type Global struct {
	Declaration string       `json:"declaration"`
	Value       *Initializer `json:"value,omitempty"`
}

type Expansion struct {
	Args [][]string `json:"args"`
}

type Database struct {
	Functions map[string]map[string]Function  `json:"functions"`
	Globals   map[string]map[string]Global    `json:"global variable initializations"`
	Macros    map[string]map[string]Expansion `json:"macro expansions"`
	Init      []string                        `json:"init"`
	Exit      []string                        `json:"exit"`
	parsed    map[string]ctype.Declaration
}

func New() *Database {
	db := &Database{}
	db.init()
	return db
}

// AddFunction records a function definition, used when the database is
// assembled in code rather than loaded.
func (db *Database) AddFunction(file, name, declaration string, callees ...string) {
	if db.Functions[file] == nil {
		db.Functions[file] = map[string]Function{}
	}
	calls := map[string][]string{}
	for _, callee := range callees {
		calls[callee] = append(calls[callee], name)
	}
	db.Functions[file][name] = Function{Declaration: declaration, Calls: calls}
}

func (db *Database) AddGlobal(file, name string, global Global) {
	if db.Globals[file] == nil {
		db.Globals[file] = map[string]Global{}
	}
	db.Globals[file][name] = global
}

func Load(reader io.Reader) (*Database, error) {
	db := &Database{}
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(db); err != nil {
		return nil, fmt.Errorf("decode analysis database: %w", err)
	}
	db.init()
	return db, nil
}

func (db *Database) init() {
	if db.Functions == nil {
		db.Functions = map[string]map[string]Function{}
	}
	if db.Globals == nil {
		db.Globals = map[string]map[string]Global{}
	}
	if db.Macros == nil {
		db.Macros = map[string]map[string]Expansion{}
	}
	db.parsed = map[string]ctype.Declaration{}
}

// Files lists every file mentioned by functions or globals, sorted.
func (db *Database) Files() []string {
	files := []string{}
	for file := range db.Functions {
		files = append(files, file)
	}
	for file := range db.Globals {
		if !slices.Contains(files, file) {
			files = append(files, file)
		}
	}
	slices.Sort(files)
	return files
}

// FunctionNames lists defined function names sorted and deduplicated.
func (db *Database) FunctionNames() []string {
	names := []string{}
	for _, functions := range db.Functions {
		for name := range functions {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names
}

// Function looks a function up by name. When several files define a static
// function with the same name the first file in sorted order wins.
func (db *Database) Function(name string) (Function, string, bool) {
	files := make([]string, 0, len(db.Functions))
	for file := range db.Functions {
		files = append(files, file)
	}
	slices.Sort(files)
	for _, file := range files {
		if function, ok := db.Functions[file][name]; ok {
			return function, file, true
		}
	}
	return Function{}, "", false
}

// Signature parses and caches the declaration of a function.
func (db *Database) Signature(name string) (*ctype.Function, error) {
	function, file, ok := db.Function(name)
	if !ok {
		return nil, fmt.Errorf("function %s is not defined in the analysis database", name)
	}
	declaration, err := db.parse(function.Declaration)
	if err != nil {
		return nil, fmt.Errorf("function %s in %s: %w", name, file, err)
	}
	signature, ok := ctype.Signature(declaration)
	if !ok {
		return nil, fmt.Errorf("function %s in %s has non-function declaration %q", name, file, function.Declaration)
	}
	return signature, nil
}

func (db *Database) parse(text string) (ctype.Declaration, error) {
	if db.parsed == nil {
		db.parsed = map[string]ctype.Declaration{}
	}
	if declaration, ok := db.parsed[text]; ok {
		return declaration, nil
	}
	declaration, _, err := ctype.Parse(text)
	if err != nil {
		return nil, err
	}
	db.parsed[text] = declaration
	return declaration, nil
}

// Declaration parses a declaration string through the database cache.
func (db *Database) Declaration(text string) (ctype.Declaration, error) {
	return db.parse(text)
}

// Callees returns the functions called from name, sorted.
func (db *Database) Callees(name string) []string {
	callees := []string{}
	for _, functions := range db.Functions {
		function, ok := functions[name]
		if !ok {
			continue
		}
		for callee := range function.Calls {
			if !slices.Contains(callees, callee) {
				callees = append(callees, callee)
			}
		}
	}
	slices.Sort(callees)
	return callees
}

// FunctionReference extracts a function name from an initializer value such
// as "& foo_probe" or "foo_probe" when it names a known function.
func (db *Database) FunctionReference(value string) (string, bool) {
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "&"))
	if _, _, ok := db.Function(name); ok {
		return name, true
	}
	return "", false
}

// EntryFunctions returns the module init and exit functions: those listed
// explicitly and those registered through module_init/module_exit.
func (db *Database) EntryFunctions() []string {
	entries := append(slices.Clone(db.Init), db.Exit...)
	for _, macro := range []string{"module_init", "module_exit"} {
		for _, expansion := range db.Macros[macro] {
			for _, args := range expansion.Args {
				if len(args) > 0 {
					entries = append(entries, args[0])
				}
			}
		}
	}
	slices.Sort(entries)
	return slices.Compact(entries)
}
