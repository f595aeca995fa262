package dot_test

import (
	"strings"
	"testing"

	"github.com/stateforward/go-emg/elements"
	"github.com/stateforward/go-emg/pkg/dot"
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
	if err := dot.Generate(&builder, graph{}); err != nil {
		t.Fatal(err)
	}
	output := builder.String()
	for _, expected := range []string{
		"digraph \"ldv_a_1\" {\n",
		`  "1" [label="1: dispatch sig\nprintf(\"x\");"];`,
		"  start1 -> \"1\";\n",
		`  "1" -> "2" [label="ldv_statevar_2 == 1"];`,
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("expected %q in\n%s", expected, output)
		}
	}
	if strings.Contains(output, "start2") {
		t.Error("expected no start point for a non-initial state")
	}
}
