// Package intf models the interfaces of the analysed program that an
// environment model talks to: containers (structures and arrays holding
// callbacks), resources (opaque handles passed to callbacks), callbacks and
// the kernel functions that register them, together with the concrete
// values found for each of them.
package intf

import (
	"fmt"
	"strings"

	"github.com/stateforward/go-emg/ctype"
	"github.com/stateforward/go-emg/kinds"
)

// FunctionsCategory is the category of kernel function models.
const FunctionsCategory = "functions models"

type Interface struct {
	Kind        uint64
	Category    string
	ShortID     string
	Header      string
	Declaration ctype.Declaration

	// Fields maps container fields to the interfaces they hold and Element
	// names the interface of array elements.
	Fields  map[string]string
	Element string

	// Parameters and Return name the interfaces of a callback or function
	// signature, positionally; an empty string marks a plain C parameter.
	Parameters []string
	Return     string
	Called     bool
}

func (i *Interface) ID() string {
	return i.Category + "." + i.ShortID
}

func (i *Interface) String() string {
	return fmt.Sprintf("%s %s", kinds.Name(i.Kind), i.ID())
}

// Signature is the function type of a callback or function interface.
func (i *Interface) Signature() (*ctype.Function, bool) {
	return ctype.Signature(i.Declaration)
}

// Implementation is a concrete value bound to an interface: a function, a
// global variable or a member of a global variable initializer.
type Implementation struct {
	Value       string
	File        string
	Declaration ctype.Declaration
	// Function is set when the value names a function of the program.
	Function string
	// BaseValue is the expression of the structure or array the value was
	// taken from and BaseDeclaration its type. Sequence is the path of
	// fields and indexes from the global variable down to the value.
	BaseValue       string
	BaseDeclaration ctype.Declaration
	Sequence        []string
	// FixedInterface restricts the value to one interface identifier.
	FixedInterface string
}

func (i *Implementation) Identifier() string {
	if i.BaseValue == "" {
		return i.File + ":" + i.Value
	}
	return i.File + ":" + i.Value + "@" + i.BaseValue + "/" + strings.Join(i.Sequence, "/")
}

// Key is the last element of the sequence, the field or index in the
// immediate container.
func (i *Implementation) Key() string {
	if len(i.Sequence) == 0 {
		return ""
	}
	return i.Sequence[len(i.Sequence)-1]
}

// Adjust converts the value to the given declaration, taking its address or
// dereferencing it when the types differ by one pointer level.
func (i *Implementation) Adjust(declaration ctype.Declaration) string {
	prefix, ok := ctype.Match(declaration, i.Declaration)
	if !ok || prefix == "" {
		return i.Value
	}
	if prefix == "&" && strings.HasPrefix(i.Value, "*") {
		return strings.TrimSpace(strings.TrimPrefix(i.Value, "*"))
	}
	if prefix == "*" && strings.HasPrefix(i.Value, "&") {
		return strings.TrimSpace(strings.TrimPrefix(i.Value, "&"))
	}
	return prefix + " " + i.Value
}
