// Package dot writes GraphViz digraphs of automata.
package dot

import (
	"fmt"
	"io"
	"strings"

	"github.com/stateforward/go-emg/elements"
)

func quote(text string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(text)
}

// Generate writes the digraph of an automaton: one box per state labeled
// with its action and code, an invisible start point for initial states.
func Generate(writer io.Writer, graph elements.Graph) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph \"%s\" {\n", quote(graph.Name()))
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box];\n")
	sb.WriteString("\n")
	for _, vertex := range graph.Vertices() {
		label := vertex.Id() + ": " + vertex.Name()
		if body := vertex.Body(); len(body) > 0 {
			label += "\n" + strings.Join(body, "\n")
		}
		fmt.Fprintf(&sb, "  \"%s\" [label=\"%s\"];\n", vertex.Id(), quote(label))
		if vertex.Initial() {
			fmt.Fprintf(&sb, "  start%s [shape=point];\n", vertex.Id())
			fmt.Fprintf(&sb, "  start%s -> \"%s\";\n", vertex.Id(), vertex.Id())
		}
	}
	sb.WriteString("\n")
	for _, transition := range graph.Transitions() {
		if guard := transition.Guard(); guard != "" {
			fmt.Fprintf(&sb, "  \"%s\" -> \"%s\" [label=\"%s\"];\n", transition.Source(), transition.Target(), quote(guard))
			continue
		}
		fmt.Fprintf(&sb, "  \"%s\" -> \"%s\";\n", transition.Source(), transition.Target())
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(writer, sb.String())
	return err
}
