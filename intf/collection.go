package intf

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/stateforward/go-emg/ctype"
	"github.com/stateforward/go-emg/kinds"
	"github.com/stateforward/go-emg/pkg/set"
)

var ErrNotFound = errors.New("interface not found")

type Config struct {
	// CallstackDepth bounds the call graph search for relevant kernel
	// functions.
	CallstackDepth int
	Logger         *slog.Logger
}

var DefaultConfig = Config{
	CallstackDepth: 3,
}

type implementationKey struct {
	id   string
	weak bool
}

type containerKey struct {
	declaration string
	category    string
}

// Collection owns every interface and implementation of one generation run.
// Interfaces live either in the active table or, after deletion, in the
// retired table from which they can be restored.
type Collection struct {
	config  Config
	logger  *slog.Logger
	active  map[string]*Interface
	retired map[string]*Interface

	// implementations indexed by declaration identifier
	byDeclaration map[string][]*Implementation
	byBase        map[string][]*Implementation

	implementationCache map[implementationKey][]*Implementation
	containerCache      map[containerKey]map[string][]string

	dirty    []string
	relevant []string
}

func New(config ...Config) *Collection {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection{
		config:              cfg,
		logger:              logger,
		active:              map[string]*Interface{},
		retired:             map[string]*Interface{},
		byDeclaration:       map[string][]*Implementation{},
		byBase:              map[string][]*Implementation{},
		implementationCache: map[implementationKey][]*Implementation{},
		containerCache:      map[containerKey]map[string][]string{},
	}
}

// Get returns an active interface, or a retired one without restoring it.
func (c *Collection) Get(id string) (*Interface, error) {
	if i, ok := c.active[id]; ok {
		return i, nil
	}
	if i, ok := c.retired[id]; ok {
		return i, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Active reports whether id names an interface that is not deleted.
func (c *Collection) Active(id string) bool {
	_, ok := c.active[id]
	return ok
}

func (c *Collection) Set(i *Interface) {
	delete(c.retired, i.ID())
	c.active[i.ID()] = i
}

// Delete moves an interface to the retired table.
func (c *Collection) Delete(id string) {
	if i, ok := c.active[id]; ok {
		delete(c.active, id)
		c.retired[id] = i
	}
}

// GetOrRestore returns an interface, moving it back from the retired table
// when it was deleted.
func (c *Collection) GetOrRestore(id string) (*Interface, error) {
	if i, ok := c.active[id]; ok {
		return i, nil
	}
	if i, ok := c.retired[id]; ok {
		delete(c.retired, id)
		c.active[id] = i
		c.invalidate()
		return i, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (c *Collection) Retired(id string) bool {
	_, ok := c.retired[id]
	return ok
}

// Interfaces returns the active interfaces sorted by identifier, optionally
// restricted to the given kinds.
func (c *Collection) Interfaces(kind ...uint64) []*Interface {
	ids := make([]string, 0, len(c.active))
	for id, i := range c.active {
		if len(kind) == 0 || kinds.IsKind(i.Kind, kind...) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	result := make([]*Interface, 0, len(ids))
	for _, id := range ids {
		result = append(result, c.active[id])
	}
	return result
}

// Categories lists the categories of active interfaces.
func (c *Collection) Categories() []string {
	categories := set.New[string]()
	for _, i := range c.active {
		categories.Add(i.Category)
	}
	return categories.Sorted()
}

// Category returns the active interfaces of one category.
func (c *Collection) Category(category string, kind ...uint64) []*Interface {
	result := []*Interface{}
	for _, i := range c.Interfaces(kind...) {
		if i.Category == category {
			result = append(result, i)
		}
	}
	return result
}

// Function returns the model of a kernel function.
func (c *Collection) Function(name string) (*Interface, bool) {
	i, ok := c.active[FunctionsCategory+"."+name]
	return i, ok
}

func (c *Collection) AddImplementation(implementation *Implementation) {
	identifier := implementation.Declaration.Identifier()
	c.byDeclaration[identifier] = append(c.byDeclaration[identifier], implementation)
	if implementation.BaseValue != "" {
		c.byBase[implementation.BaseValue] = append(c.byBase[implementation.BaseValue], implementation)
	}
	c.invalidate()
}

func (c *Collection) invalidate() {
	clear(c.implementationCache)
	clear(c.containerCache)
}

// Implementations returns the values that may be bound to an interface,
// sorted by implementation identifier. With weakly set, values of the
// pointed-to and the pointer type are considered as well.
func (c *Collection) Implementations(i *Interface, weakly bool) []*Implementation {
	key := implementationKey{id: i.ID(), weak: weakly}
	if cached, ok := c.implementationCache[key]; ok {
		return cached
	}
	result := c.implementations(i, weakly)
	c.implementationCache[key] = result
	return result
}

func (c *Collection) implementations(i *Interface, weakly bool) []*Implementation {
	if i.Declaration == nil || !i.Declaration.Clean() {
		return []*Implementation{}
	}
	identifiers := []string{i.Declaration.Identifier()}
	if weakly {
		if pointee := ctype.Dereference(i.Declaration); pointee != nil {
			identifiers = append(identifiers, pointee.Identifier())
		}
		identifiers = append(identifiers, ctype.TakePointer(i.Declaration).Identifier())
	}
	seen := map[*Implementation]bool{}
	plain := []*Implementation{}
	nested := []*Implementation{}
	for _, identifier := range identifiers {
		for _, implementation := range c.byDeclaration[identifier] {
			if seen[implementation] {
				continue
			}
			seen[implementation] = true
			if implementation.FixedInterface != "" && implementation.FixedInterface != i.ID() {
				continue
			}
			if len(implementation.Sequence) == 0 {
				plain = append(plain, implementation)
			} else if c.containedBy(i, implementation) {
				nested = append(nested, implementation)
			}
		}
	}
	result := append(plain, c.siblings(nested)...)
	slices.SortFunc(result, func(a, b *Implementation) int {
		switch {
		case a.Identifier() < b.Identifier():
			return -1
		case a.Identifier() > b.Identifier():
			return 1
		}
		return 0
	})
	return result
}

// containedBy checks that the container the value was taken from is an
// active container holding the interface at the value's field or index.
func (c *Collection) containedBy(i *Interface, implementation *Implementation) bool {
	if implementation.BaseDeclaration == nil {
		return false
	}
	key := implementation.Key()
	_, err := strconv.Atoi(key)
	element := err == nil
	for _, container := range c.Interfaces(kinds.Container) {
		if !ctype.Compare(containerType(container.Declaration), containerType(implementation.BaseDeclaration)) {
			continue
		}
		if container.Fields[key] == i.ID() || (element && container.Element == i.ID()) {
			return true
		}
		fields := c.ResolveContainers(i.Declaration, container.Category)[container.ID()]
		if slices.Contains(fields, key) || (element && slices.Contains(fields, ElementField)) {
			return true
		}
	}
	return false
}

// siblings keeps values that several containers supply only from those base
// values that also supply some other interface-bound value.
func (c *Collection) siblings(nested []*Implementation) []*Implementation {
	bases := map[string]set.Set[string]{}
	for _, implementation := range nested {
		if bases[implementation.Value] == nil {
			bases[implementation.Value] = set.New[string]()
		}
		bases[implementation.Value].Add(implementation.BaseValue)
	}
	result := []*Implementation{}
	for _, implementation := range nested {
		if bases[implementation.Value].Size() < 2 || c.cooccurs(implementation) {
			result = append(result, implementation)
			continue
		}
		// drop only when some other base value of the same value qualifies
		qualified := false
		for _, other := range nested {
			if other.Value == implementation.Value && other.BaseValue != implementation.BaseValue && c.cooccurs(other) {
				qualified = true
				break
			}
		}
		if !qualified {
			result = append(result, implementation)
		}
	}
	return result
}

func (c *Collection) cooccurs(implementation *Implementation) bool {
	for _, sibling := range c.byBase[implementation.BaseValue] {
		if sibling == implementation || sibling.Value == implementation.Value {
			continue
		}
		if sibling.FixedInterface != "" && c.Active(sibling.FixedInterface) {
			return true
		}
	}
	return false
}

// ElementField is reported by ResolveContainers for array element matches.
const ElementField = "[]"

func containerType(declaration ctype.Declaration) ctype.Declaration {
	if pointee := ctype.Dereference(declaration); pointee != nil && kinds.IsKind(pointee.Kind(), kinds.Structure, kinds.Array) {
		return pointee
	}
	return declaration
}

// ResolveContainers finds the containers whose fields or elements have the
// given type. The result maps container identifiers to the matching field
// names, ElementField standing for array elements. An empty category
// searches every category.
func (c *Collection) ResolveContainers(declaration ctype.Declaration, category string) map[string][]string {
	key := containerKey{declaration: declaration.Identifier(), category: category}
	if key.category == "" {
		key.category = "default"
	}
	if cached, ok := c.containerCache[key]; ok {
		return cached
	}
	result := map[string][]string{}
	for _, container := range c.Interfaces(kinds.Container) {
		if category != "" && container.Category != category {
			continue
		}
		fields := []string{}
		switch typed := containerType(container.Declaration).(type) {
		case *ctype.Structure:
			for _, name := range typed.Order {
				if _, ok := ctype.Match(typed.Fields[name], declaration); ok && typed.Fields[name].Clean() {
					fields = append(fields, name)
				}
			}
		case *ctype.Array:
			if ctype.Compare(typed.Element, declaration) {
				fields = append(fields, ElementField)
			}
		}
		if len(fields) > 0 {
			result[container.ID()] = fields
		}
	}
	c.containerCache[key] = result
	return result
}

// Dirty lists interfaces whose declarations kept unresolved references after
// refinement.
func (c *Collection) Dirty() []string {
	return slices.Clone(c.dirty)
}

// RelevantFunctions lists the kernel functions found reachable from the
// module entry points by the last Prune.
func (c *Collection) RelevantFunctions() []string {
	return slices.Clone(c.relevant)
}
