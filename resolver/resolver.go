// Package resolver decides how many copies of each process the environment
// model needs and which implementations each copy binds to its labels.
package resolver

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/stateforward/go-emg/automaton"
	"github.com/stateforward/go-emg/intf"
	"github.com/stateforward/go-emg/kinds"
	"github.com/stateforward/go-emg/pkg/set"
	"github.com/stateforward/go-emg/process"
)

var ErrInstanceBudget = errors.New("instance budget exhausted")

type Config struct {
	// MaxInstances caps the automata created over a whole run.
	MaxInstances int
	// InstanceModifier is the number of copies made of every instance.
	InstanceModifier int
	// ResourceRepeats is how often one resource value may be reused before
	// another one is preferred.
	ResourceRepeats int
	Logger          *slog.Logger
	Automaton       automaton.Config
}

var DefaultConfig = Config{
	MaxInstances:     1000,
	InstanceModifier: 1,
	ResourceRepeats:  1,
}

type cacheKey struct {
	category string
	name     string
}

// simplified is an access map reduced to value strings.
type simplified map[string]map[string]string

type Resolver struct {
	collection *intf.Collection
	config     Config
	logger     *slog.Logger
	left       int
	last       int
	cache      map[cacheKey][]simplified
}

func New(collection *intf.Collection, config ...Config) *Resolver {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.InstanceModifier < 1 {
		cfg.InstanceModifier = 1
	}
	if cfg.ResourceRepeats < 1 {
		cfg.ResourceRepeats = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Automaton.Logger == nil {
		cfg.Automaton.Logger = logger
	}
	return &Resolver{
		collection: collection,
		config:     cfg,
		logger:     logger,
		left:       cfg.MaxInstances,
		cache:      map[cacheKey][]simplified{},
	}
}

// Left returns how many more automata may be created.
func (r *Resolver) Left() int {
	return r.left
}

// Cover greedily picks values whose children cover the target: the value
// covering most uncovered children first, ties broken by value. Values
// adding nothing are never picked. The result is sorted.
func Cover(children map[string]set.Set[string], target set.Set[string]) []string {
	uncovered := target.Clone()
	chosen := []string{}
	candidates := slices.Sorted(maps.Keys(children))
	for uncovered.Size() > 0 {
		best, gain := "", 0
		for _, candidate := range candidates {
			if slices.Contains(chosen, candidate) {
				continue
			}
			if covered := children[candidate].Intersection(uncovered).Size(); covered > gain {
				best, gain = candidate, covered
			}
		}
		if gain == 0 {
			break
		}
		chosen = append(chosen, best)
		uncovered = uncovered.Difference(children[best])
	}
	slices.Sort(chosen)
	return chosen
}

type access struct {
	expression string
	iface      *intf.Interface
	values     []*intf.Implementation
}

func (a access) key() string {
	return a.expression + " " + a.iface.ID()
}

type option struct {
	access
	chosen []*intf.Implementation
}

type dependencies struct {
	accesses []access
	options  []option
	// optionValues holds every value offered by an option access, chosen
	// or not.
	optionValues set.Set[string]
}

func (r *Resolver) dependencies(p *process.Process) (*dependencies, error) {
	d := &dependencies{optionValues: set.New[string]()}
	for _, a := range p.Accesses() {
		if a.Interface == "" {
			continue
		}
		i, err := r.collection.Get(a.Interface)
		if err != nil {
			return nil, fmt.Errorf("%w: label %s of process %s: %w", process.ErrUnresolved, a.Label, p, err)
		}
		d.accesses = append(d.accesses, access{expression: a.Expression, iface: i, values: r.collection.Implementations(i, true)})
	}
	// containers first so that their choice steers the callbacks
	slices.SortStableFunc(d.accesses, func(x, y access) int {
		xc, yc := kinds.IsKind(x.iface.Kind, kinds.Container), kinds.IsKind(y.iface.Kind, kinds.Container)
		switch {
		case xc && !yc:
			return -1
		case !xc && yc:
			return 1
		}
		return cmp.Compare(x.key(), y.key())
	})

	dependents := map[string]set.Set[string]{}
	for _, a := range d.accesses {
		for _, value := range a.values {
			if value.BaseValue == "" {
				continue
			}
			if dependents[value.BaseValue] == nil {
				dependents[value.BaseValue] = set.New[string]()
			}
			dependents[value.BaseValue].Add(value.Identifier())
		}
	}
	for _, a := range d.accesses {
		children := map[string]set.Set[string]{}
		target := set.New[string]()
		byValue := map[string]*intf.Implementation{}
		for _, value := range a.values {
			if dependents[value.Value] == nil {
				continue
			}
			children[value.Value] = dependents[value.Value]
			target = target.Union(dependents[value.Value])
			byValue[value.Value] = value
		}
		if len(children) == 0 {
			continue
		}
		o := option{access: a}
		for _, value := range Cover(children, target) {
			o.chosen = append(o.chosen, byValue[value])
		}
		d.optionValues.Add(slices.Collect(maps.Keys(children))...)
		d.options = append(d.options, o)
	}
	slices.SortStableFunc(d.options, func(x, y option) int {
		if c := cmp.Compare(len(y.chosen), len(x.chosen)); c != 0 {
			return c
		}
		return cmp.Compare(x.key(), y.key())
	})
	return d, nil
}

// Resolve returns the access maps of the instances of a process. Options
// are combined round robin rather than as a cross product: instance j
// takes the j-th value of every option, wrapping around shorter ones.
func (r *Resolver) Resolve(p *process.Process) ([]automaton.AccessMap, error) {
	d, err := r.dependencies(p)
	if err != nil {
		return nil, err
	}
	key := cacheKey{category: p.Category, name: p.Name}
	if cached, ok := r.cache[key]; ok {
		return restore(d, cached), nil
	}

	instances := 1
	for _, o := range d.options {
		instances = max(instances, len(o.chosen))
	}
	used := map[string]int{}
	result := []automaton.AccessMap{}
	seen := set.New[string]()
	for j := 0; j < instances; j++ {
		accessMap := automaton.AccessMap{}
		bases := set.New[string]()
		for _, o := range d.options {
			value := o.chosen[j%len(o.chosen)]
			bind(accessMap, o.access, value)
			bases.Add(value.Value)
			used[value.Identifier()]++
		}
		for _, a := range d.accesses {
			if accessMap.Implementation(a.expression, a.iface.ID()) != nil {
				continue
			}
			value := r.pick(a, bases, d.optionValues, used)
			bind(accessMap, a, value)
			if value != nil {
				used[value.Identifier()]++
				if kinds.IsKind(a.iface.Kind, kinds.Container) {
					bases.Add(value.Value)
				}
			}
		}
		if signature := simplify(accessMap).String(); !seen.Contains(signature) {
			seen.Add(signature)
			result = append(result, accessMap)
		}
	}

	copies := []automaton.AccessMap{}
	for _, accessMap := range result {
		for range r.config.InstanceModifier {
			copies = append(copies, accessMap)
		}
	}
	simplifiedMaps := make([]simplified, 0, len(copies))
	for _, accessMap := range copies {
		simplifiedMaps = append(simplifiedMaps, simplify(accessMap))
	}
	r.cache[key] = simplifiedMaps
	r.logger.Debug("resolved process instances", "process", p.String(), "instances", len(copies), "options", len(d.options))
	return copies, nil
}

// pick chooses a value for an access not bound by an option: values from a
// chosen base first, then values not used yet, then any value. Values taken
// from containers that were offered but not chosen are avoided.
func (r *Resolver) pick(a access, bases, optionValues set.Set[string], used map[string]int) *intf.Implementation {
	shared := []*intf.Implementation{}
	consistent := []*intf.Implementation{}
	for _, value := range a.values {
		switch {
		case value.BaseValue != "" && bases.Contains(value.BaseValue):
			shared = append(shared, value)
			consistent = append(consistent, value)
		case value.BaseValue != "" && optionValues.Contains(value.BaseValue):
		default:
			consistent = append(consistent, value)
		}
	}
	limit := 1
	if kinds.IsKind(a.iface.Kind, kinds.Resource) {
		limit = r.config.ResourceRepeats
	}
	unused := func(values []*intf.Implementation) *intf.Implementation {
		for _, value := range values {
			if used[value.Identifier()] < limit {
				return value
			}
		}
		return nil
	}
	if value := unused(shared); value != nil {
		return value
	}
	if len(shared) > 0 {
		return shared[0]
	}
	if value := unused(consistent); value != nil {
		return value
	}
	if len(consistent) > 0 {
		return consistent[0]
	}
	return nil
}

func bind(accessMap automaton.AccessMap, a access, value *intf.Implementation) {
	if accessMap[a.expression] == nil {
		accessMap[a.expression] = map[string]*intf.Implementation{}
	}
	accessMap[a.expression][a.iface.ID()] = value
}

func simplify(accessMap automaton.AccessMap) simplified {
	result := simplified{}
	for expression, byInterface := range accessMap {
		result[expression] = map[string]string{}
		for id, value := range byInterface {
			if value != nil {
				result[expression][id] = value.Identifier()
			} else {
				result[expression][id] = ""
			}
		}
	}
	return result
}

func (s simplified) String() string {
	text := ""
	for _, expression := range slices.Sorted(maps.Keys(s)) {
		for _, id := range slices.Sorted(maps.Keys(s[expression])) {
			text += expression + " " + id + "=" + s[expression][id] + ";"
		}
	}
	return text
}

// restore rebuilds access maps from cached value identifiers.
func restore(d *dependencies, cached []simplified) []automaton.AccessMap {
	result := make([]automaton.AccessMap, 0, len(cached))
	for _, s := range cached {
		accessMap := automaton.AccessMap{}
		for _, a := range d.accesses {
			identifier := s[a.expression][a.iface.ID()]
			var chosen *intf.Implementation
			for _, value := range a.values {
				if value.Identifier() == identifier {
					chosen = value
					break
				}
			}
			bind(accessMap, a, chosen)
		}
		result = append(result, accessMap)
	}
	return result
}

// Instantiate creates the automata of processes. Event processes get one
// automaton per access map, models and the entry process exactly one.
// Every automaton takes one unit of the instance budget. On error the
// budget and the identifiers are left as they were before the call.
func (r *Resolver) Instantiate(processes ...*process.Process) (automata []*automaton.Automaton, err error) {
	left, last := r.left, r.last
	defer func() {
		if err != nil {
			r.left, r.last = left, last
		}
	}()
	automata = []*automaton.Automaton{}
	for _, p := range processes {
		accessMaps := []automaton.AccessMap{{}}
		if p.Kind == kinds.EventProcess {
			resolved, err := r.Resolve(p)
			if err != nil {
				return nil, err
			}
			accessMaps = resolved
		}
		if len(accessMaps) > r.left {
			return nil, fmt.Errorf("%w: process %s needs %d instances but only %d of %d are left", ErrInstanceBudget, p, len(accessMaps), r.left, r.config.MaxInstances)
		}
		r.left -= len(accessMaps)
		for _, accessMap := range accessMaps {
			r.last++
			a, err := automaton.New(r.last, p.Clone(), accessMap, r.collection, r.config.Automaton)
			if err != nil {
				return nil, err
			}
			automata = append(automata, a)
		}
	}
	return automata, nil
}
