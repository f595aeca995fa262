// Package emg generates C environment models for Linux kernel modules. An
// interface specification and analysis facts about the module sources are
// combined with a process specification into automata, and the automata are
// translated into C code that drives the module the way the kernel would.
package emg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/stateforward/go-emg/analysis"
	"github.com/stateforward/go-emg/automaton"
	"github.com/stateforward/go-emg/clock"
	"github.com/stateforward/go-emg/cmodel"
	"github.com/stateforward/go-emg/intf"
	"github.com/stateforward/go-emg/pkg/telemetry"
	"github.com/stateforward/go-emg/process"
	"github.com/stateforward/go-emg/resolver"
	"github.com/stateforward/go-emg/translator"
)

type Config struct {
	MaxInstances      int    `yaml:"max instances number"`
	InstanceModifier  int    `yaml:"instance modifier"`
	ResourceInstances int    `yaml:"instances per resource implementation"`
	CallstackDepth    int    `yaml:"callstack deep search"`
	DumpGraphs        bool   `yaml:"dump automata graphs"`
	Direct            bool   `yaml:"direct control functions calls"`
	WorkingDirectory  string `yaml:"working directory"`
	DefaultFile       string `yaml:"default file"`
	EntryPoint        string `yaml:"entry point"`

	Logger         *slog.Logger         `yaml:"-"`
	TracerProvider trace.TracerProvider `yaml:"-"`
	Clock          clock.Clock          `yaml:"-"`
}

var DefaultConfig = Config{
	MaxInstances:      1000,
	InstanceModifier:  1,
	ResourceInstances: 1,
	CallstackDepth:    3,
	Direct:            true,
	WorkingDirectory:  ".",
	DefaultFile:       "environment_model.c",
	EntryPoint:        "main",
}

// LoadConfig decodes a YAML (or JSON) configuration over DefaultConfig.
func LoadConfig(reader io.Reader) (Config, error) {
	config := DefaultConfig
	if err := yaml.NewDecoder(reader).Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode configuration: %w", err)
	}
	return config, nil
}

func LoadDatabase(reader io.Reader) (*analysis.Database, error) {
	return analysis.Load(reader)
}

func LoadInterfaces(reader io.Reader) (*intf.Specification, error) {
	return intf.LoadSpecification(reader)
}

func LoadProcesses(reader io.Reader) (*process.Processes, error) {
	return process.Load(reader)
}

type Phase struct {
	Name     string
	Duration time.Duration
}

type Result struct {
	RunID      uuid.UUID
	Collection *intf.Collection
	Model      *cmodel.Model
	Automata   []*automaton.Automaton
	Phases     []Phase
}

// WriteFiles renders every file of the model under directory.
func (r *Result) WriteFiles(directory string) error {
	for _, name := range r.Model.Files() {
		path := filepath.Join(directory, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		err = r.Model.Render(file, name)
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

type generation struct {
	config Config
	logger *slog.Logger
	result *Result
}

func (g *generation) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := g.config.Clock.Now()
	ctx, span := telemetry.Start(ctx, g.config.TracerProvider, name, attribute.String("emg.run", g.result.RunID.String()))
	err := fn(ctx)
	telemetry.End(span, err)
	duration := g.config.Clock.Since(start)
	g.result.Phases = append(g.result.Phases, Phase{Name: name, Duration: duration})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	g.logger.Debug("phase done", "phase", name, "duration", duration)
	return nil
}

// Generate builds the environment model: interfaces are imported from the
// analysis facts and refined, process instances are resolved against them
// and translated into C.
func Generate(ctx context.Context, config Config, db *analysis.Database, interfaces *intf.Specification, processes *process.Processes) (result *Result, err error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = clock.Make()
	}
	if db == nil {
		db = analysis.New()
	}
	if interfaces == nil {
		interfaces = &intf.Specification{}
	}
	if processes == nil {
		processes = &process.Processes{}
	}
	runID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	g := &generation{
		config: config,
		logger: config.Logger.With("run", runID.String()),
		result: &Result{RunID: runID},
	}
	ctx, span := telemetry.Start(ctx, config.TracerProvider, "emg.generate", attribute.String("emg.run", runID.String()))
	defer func() { telemetry.End(span, err) }()

	var relevant []string
	err = g.phase(ctx, "emg.refine", func(ctx context.Context) error {
		collection, err := intf.Import(db, interfaces, intf.Config{
			CallstackDepth: config.CallstackDepth,
			Logger:         g.logger,
		})
		if err != nil {
			return err
		}
		collection.Refine()
		relevant = collection.Prune(db)
		g.result.Collection = collection
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = g.phase(ctx, "emg.resolve", func(ctx context.Context) error {
		r := resolver.New(g.result.Collection, resolver.Config{
			MaxInstances:     config.MaxInstances,
			InstanceModifier: config.InstanceModifier,
			ResourceRepeats:  config.ResourceInstances,
			Logger:           g.logger,
			Automaton:        automaton.Config{Logger: g.logger},
		})
		events, err := r.Instantiate(processes.Environment...)
		if err != nil {
			return err
		}
		models := []*process.Process{}
		for _, model := range processes.Models {
			if slices.Contains(relevant, model.Name) {
				models = append(models, model)
			} else {
				g.logger.Debug("skipping model of an irrelevant function", "model", model.Name)
			}
		}
		modelAutomata, err := r.Instantiate(models...)
		if err != nil {
			return err
		}
		g.result.Automata = slices.Concat(events, modelAutomata)
		if processes.Entry != nil {
			entry, err := r.Instantiate(processes.Entry)
			if err != nil {
				return err
			}
			g.result.Automata = append(g.result.Automata, entry...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = g.phase(ctx, "emg.translate", func(ctx context.Context) error {
		model, err := translator.New(g.result.Collection, db, g.result.Automata, translator.Config{
			Direct:      config.Direct,
			EntryPoint:  config.EntryPoint,
			DefaultFile: config.DefaultFile,
			Logger:      g.logger,
		}).Translate(ctx)
		g.result.Model = model
		return err
	})
	if err != nil {
		return nil, err
	}

	if config.DumpGraphs {
		err = g.phase(ctx, "emg.dump", func(ctx context.Context) error {
			return translator.Dump(ctx, config.WorkingDirectory, g.result.Automata)
		})
		if err != nil {
			return nil, err
		}
	}
	g.logger.Info("generated environment model", "automata", len(g.result.Automata), "files", len(g.result.Model.Files()))
	return g.result, nil
}
