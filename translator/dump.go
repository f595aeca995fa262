package translator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/stateforward/go-emg/automaton"
	"github.com/stateforward/go-emg/pkg/dot"
	"github.com/stateforward/go-emg/pkg/plantuml"
)

// Dump writes a GraphViz and a PlantUML diagram of every automaton to the
// automata directory under directory. When the dot binary is on the path
// the GraphViz diagrams are also rendered to PNG, concurrently.
func Dump(ctx context.Context, directory string, automata []*automaton.Automaton) error {
	directory = filepath.Join(directory, "automata")
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return err
	}
	dotFiles := []string{}
	for _, a := range automata {
		var graph, diagram bytes.Buffer
		if err := dot.Generate(&graph, a.Graph()); err != nil {
			return err
		}
		if err := plantuml.Generate(&diagram, a.Graph()); err != nil {
			return err
		}
		base := filepath.Join(directory, a.Name())
		if err := os.WriteFile(base+".dot", graph.Bytes(), 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(base+".puml", diagram.Bytes(), 0o644); err != nil {
			return err
		}
		dotFiles = append(dotFiles, base+".dot")
	}
	binary, err := exec.LookPath("dot")
	if err != nil {
		return nil
	}
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for _, file := range dotFiles {
		group.Go(func() error {
			png := file[:len(file)-len(".dot")] + ".png"
			if output, err := exec.CommandContext(ctx, binary, "-Tpng", "-o", png, file).CombinedOutput(); err != nil {
				return fmt.Errorf("rendering %s: %w: %s", file, err, output)
			}
			return nil
		})
	}
	return group.Wait()
}
