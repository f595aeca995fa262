package intf

import (
	"github.com/stateforward/go-emg/analysis"
	"github.com/stateforward/go-emg/ctype"
	"github.com/stateforward/go-emg/kinds"
	"github.com/stateforward/go-emg/pkg/set"
	"github.com/stateforward/go-emg/queue"
)

// Refine substitutes interface references in declarations with the clean
// declarations of the referenced interfaces until nothing changes. A
// reference to a structure is replaced by the bare named structure, so
// containers whose callbacks take the container itself still converge.
// Declarations left with references are reported by Dirty.
func (c *Collection) Refine() {
	for changed := true; changed; {
		changed = false
		for _, i := range c.Interfaces() {
			if i.Declaration == nil || i.Declaration.Clean() {
				continue
			}
			refined, ok := ctype.Replace(i.Declaration, c.resolveReference)
			if ok {
				i.Declaration = refined
				changed = true
			}
		}
	}
	c.dirty = c.dirty[:0]
	for _, i := range c.Interfaces() {
		if i.Declaration != nil && !i.Declaration.Clean() {
			c.dirty = append(c.dirty, i.ID())
			c.logger.Warn("interface declaration has unresolved references", "interface", i.ID(), "declaration", i.Declaration.Identifier())
		}
	}
	c.invalidate()
}

func (c *Collection) resolveReference(reference *ctype.InterfaceReference) ctype.Declaration {
	target, ok := c.active[reference.Interface]
	if !ok {
		target, ok = c.retired[reference.Interface]
	}
	if !ok || target.Declaration == nil {
		return nil
	}
	if bare := bareDeclaration(target.Declaration); bare != nil {
		return bare
	}
	if !target.Declaration.Clean() {
		return nil
	}
	return target.Declaration
}

// bareDeclaration strips the fields of structures and unions, leaving a type
// with the same identifier.
func bareDeclaration(declaration ctype.Declaration) ctype.Declaration {
	switch typed := declaration.(type) {
	case *ctype.Structure:
		return &ctype.Structure{Name: typed.Name}
	case *ctype.Union:
		return &ctype.Union{Name: typed.Name}
	case *ctype.Pointer:
		if points := bareDeclaration(typed.Points); points != nil {
			return &ctype.Pointer{Points: points}
		}
	case *ctype.Array:
		if element := bareDeclaration(typed.Element); element != nil {
			return &ctype.Array{Element: element, Size: typed.Size}
		}
	}
	return nil
}

type call struct {
	name  string
	depth int
}

// Prune keeps the categories relevant to the analysed program and retires
// the rest. A category is relevant when a kernel function reachable from
// the module entry points takes or returns one of its interfaces, when it
// has a callback with both a container and an implementation, or when a
// container of a relevant category holds one of its interfaces.
func (c *Collection) Prune(db *analysis.Database) []string {
	relevant := c.searchFunctions(db)
	c.relevant = relevant

	categories := set.New[string]()
	for _, name := range relevant {
		function, ok := c.Function(name)
		if !ok {
			continue
		}
		for _, id := range append([]string{function.Return}, function.Parameters...) {
			if referenced, err := c.GetOrRestore(id); err == nil {
				categories.Add(referenced.Category)
			}
		}
	}
	for _, callback := range c.Interfaces(kinds.Callback) {
		if categories.Contains(callback.Category) {
			continue
		}
		if len(c.ResolveContainers(callback.Declaration, callback.Category)) > 0 && len(c.Implementations(callback, true)) > 0 {
			categories.Add(callback.Category)
		}
	}
	pending := queue.New(categories.Sorted()...)
	for pending.Len() > 0 {
		category, _ := pending.Pop()
		for _, container := range c.Category(category, kinds.Container) {
			held := []string{container.Element}
			for _, field := range sortedKeys(container.Fields) {
				held = append(held, container.Fields[field])
			}
			for _, id := range held {
				if id == "" {
					continue
				}
				referenced, err := c.GetOrRestore(id)
				if err != nil {
					c.logger.Warn("container holds an unknown interface", "interface", container.ID(), "field", id)
					continue
				}
				if !categories.Contains(referenced.Category) {
					categories.Add(referenced.Category)
					pending.Push(referenced.Category)
				}
			}
		}
	}

	relevantFunctions := set.New(relevant...)
	for _, i := range c.Interfaces() {
		if i.Category == FunctionsCategory {
			if !relevantFunctions.Contains(i.ShortID) {
				c.Delete(i.ID())
			}
			continue
		}
		if !categories.Contains(i.Category) {
			c.Delete(i.ID())
		}
	}
	c.invalidate()
	c.logger.Debug("pruned interface categories", "kept", categories.Sorted(), "functions", relevant)
	return relevant
}

// searchFunctions walks the call graph breadth first from the entry points
// and from every function used as an implementation, collecting calls to
// modelled kernel functions.
func (c *Collection) searchFunctions(db *analysis.Database) []string {
	roots := set.New(db.EntryFunctions()...)
	for _, implementations := range c.byDeclaration {
		for _, implementation := range implementations {
			if implementation.Function != "" {
				roots.Add(implementation.Function)
			}
		}
	}
	visited := set.New[string]()
	relevant := set.New[string]()
	pending := queue.New[call]()
	for name := range roots.Items() {
		visited.Add(name)
		pending.Push(call{name: name})
	}
	for pending.Len() > 0 {
		current, _ := pending.Pop()
		for _, callee := range db.Callees(current.name) {
			if function, ok := c.Function(callee); ok {
				function.Called = true
				relevant.Add(callee)
			}
			if visited.Contains(callee) || current.depth+1 >= c.config.CallstackDepth {
				continue
			}
			if _, _, ok := db.Function(callee); ok {
				visited.Add(callee)
				pending.Push(call{name: callee, depth: current.depth + 1})
			}
		}
	}
	return relevant.Sorted()
}
