package plantuml_test

import (
	"strings"
	"testing"

	"github.com/stateforward/go-emg/elements"
	"github.com/stateforward/go-emg/pkg/plantuml"
)

type vertex struct {
	id, name       string
	initial, final bool
	body           []string
}

func (v vertex) Kind() uint64   { return 0 }
func (v vertex) Id() string     { return v.id }
func (v vertex) Name() string   { return v.name }
func (v vertex) Initial() bool  { return v.initial }
func (v vertex) Final() bool    { return v.final }
func (v vertex) Body() []string { return v.body }

type transition struct{ source, target, guard string }

func (t transition) Source() string { return t.source }
func (t transition) Target() string { return t.target }
func (t transition) Guard() string  { return t.guard }

type graph struct{}

func (graph) Kind() uint64 { return 0 }
func (graph) Id() string   { return "1" }
func (graph) Name() string { return "ldv_a_1" }
func (graph) Vertices() []elements.Vertex {
	return []elements.Vertex{
		vertex{id: "1", name: "dispatch sig", initial: true, body: []string{`printf("x");`}},
		vertex{id: "2", name: "condition x", final: true},
	}
}
func (graph) Transitions() []elements.Transition {
	return []elements.Transition{transition{source: "1", target: "2", guard: "ldv_statevar_2 == 1"}}
}

func TestGenerate(t *testing.T) {
	var builder strings.Builder
	if err := plantuml.Generate(&builder, graph{}); err != nil {
		t.Fatal(err)
	}
	expected := strings.Join([]string{
		"@startuml ldv_a_1",
		`  state "1: dispatch sig" as s1`,
		`  s1 : printf('x');`,
		"  [*] --> s1",
		`  state "2: condition x" as s2`,
		"  s2 --> [*]",
		"  s1 --> s2 : [ldv_statevar_2 == 1]",
		"@enduml",
		"",
	}, "\n")
	if builder.String() != expected {
		t.Errorf("unexpected diagram\n%s", builder.String())
	}
}
