package plantuml

import (
	"fmt"
	"io"
	"strings"

	"github.com/stateforward/go-emg/elements"
)

func idFromVertex(id string) string {
	return "s" + id
}

func escape(text string) string {
	return strings.NewReplacer("\"", "'", "\n", " ").Replace(text)
}

func generateState(builder *strings.Builder, depth int, vertex elements.Vertex) {
	id := idFromVertex(vertex.Id())
	indent := strings.Repeat(" ", depth*2)
	fmt.Fprintf(builder, "%sstate \"%s: %s\" as %s\n", indent, vertex.Id(), escape(vertex.Name()), id)
	for _, line := range vertex.Body() {
		fmt.Fprintf(builder, "%s%s : %s\n", indent, id, escape(line))
	}
	if vertex.Initial() {
		fmt.Fprintf(builder, "%s[*] --> %s\n", indent, id)
	}
	if vertex.Final() {
		fmt.Fprintf(builder, "%s%s --> [*]\n", indent, id)
	}
}

func generateTransition(builder *strings.Builder, depth int, transition elements.Transition) {
	label := ""
	if guard := transition.Guard(); guard != "" {
		label = fmt.Sprintf(" : [%s]", escape(guard))
	}
	indent := strings.Repeat(" ", depth*2)
	fmt.Fprintf(builder, "%s%s --> %s%s\n", indent, idFromVertex(transition.Source()), idFromVertex(transition.Target()), label)
}

func generateElements(builder *strings.Builder, depth int, graph elements.Graph) {
	fmt.Fprintf(builder, "@startuml %s\n", graph.Name())
	for _, vertex := range graph.Vertices() {
		generateState(builder, depth+1, vertex)
	}
	for _, transition := range graph.Transitions() {
		generateTransition(builder, depth+1, transition)
	}
	fmt.Fprintln(builder, "@enduml")
}

// Generate writes a PlantUML state diagram of an automaton.
func Generate(writer io.Writer, graph elements.Graph) error {
	var builder strings.Builder
	generateElements(&builder, 0, graph)
	_, err := writer.Write([]byte(builder.String()))
	return err
}
