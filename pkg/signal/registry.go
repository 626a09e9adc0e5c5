package signal

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Signal is a payload value delivered through a slot.
type Signal = any

// ViewFunc converts a signal of a derived type into a value of one of its
// declared parent types.
type ViewFunc func(Signal) Signal

// Type describes a registered signal type and the parents it was derived from.
type Type struct {
	name  string
	rtype reflect.Type
	reg   *Registry

	// guarded by reg.mu
	parents []parentEdge
}

type parentEdge struct {
	parent *Type
	view   ViewFunc
}

// Name returns the Go type name of the signal type.
func (t *Type) Name() string {
	if t == nil {
		return "<nil>"
	}
	return t.name
}

// String implements fmt.Stringer.
func (t *Type) String() string {
	return t.Name()
}

// GoType returns the reflect.Type the descriptor was registered for.
func (t *Type) GoType() reflect.Type {
	return t.rtype
}

// Registry returns the registry the type belongs to.
func (t *Type) Registry() *Registry {
	return t.reg
}

// Parents returns the direct parents of t in declaration order.
func (t *Type) Parents() []*Type {
	t.reg.mu.RLock()
	defer t.reg.mu.RUnlock()

	parents := make([]*Type, len(t.parents))
	for i, edge := range t.parents {
		parents[i] = edge.parent
	}
	return parents
}

// IsA reports whether t is at least as specific as other, i.e. a signal of
// type t can be viewed as a signal of type other. Types from different
// registries are never related.
func (t *Type) IsA(other *Type) bool {
	if t == nil || other == nil || t.reg != other.reg {
		return false
	}
	_, ok := t.reg.Viewer(t, other)
	return ok
}

// SpecificityLess reports whether a is strictly more specific than b.
// Unrelated types are incomparable: SpecificityLess returns false both ways.
func SpecificityLess(a, b *Type) bool {
	return a != b && a.IsA(b)
}

type viewKey struct {
	from *Type
	to   *Type
}

type viewEntry struct {
	view ViewFunc
	ok   bool
}

// Registry holds the signal type hierarchy. The hierarchy is declared
// explicitly with Derive; types that are only ever used with TypeOf are
// roots without parents.
type Registry struct {
	mu    sync.RWMutex
	types map[reflect.Type]*Type
	views map[viewKey]viewEntry
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[reflect.Type]*Type),
		views: make(map[viewKey]viewEntry),
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used when no registry
// option is given.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// TypeOf returns the descriptor for T, defining T as a root type if it was
// not registered before. A nil registry selects the default registry.
func TypeOf[T any](r *Registry) *Type {
	if r == nil {
		r = defaultRegistry
	}
	return r.define(reflect.TypeFor[T]())
}

// Derive declares C as a direct subtype of P. view converts a C into its P
// view, typically by returning the address of an embedded field. Calling
// Derive again for another parent adds a second parent; repeating an
// existing edge is a no-op.
func Derive[C, P any](r *Registry, view func(C) P) (*Type, error) {
	if r == nil {
		r = defaultRegistry
	}
	if view == nil {
		return nil, ErrNilView
	}

	child := r.define(reflect.TypeFor[C]())
	parent := r.define(reflect.TypeFor[P]())
	if child == parent {
		return nil, fmt.Errorf("%w: %s derives from itself", ErrTypeCycle, child.name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, edge := range child.parents {
		if edge.parent == parent {
			return child, nil
		}
	}
	if _, ok := r.pathLocked(parent, child); ok {
		return nil, fmt.Errorf("%w: %s already derives from %s", ErrTypeCycle, parent.name, child.name)
	}

	child.parents = append(child.parents, parentEdge{
		parent: parent,
		view: func(s Signal) Signal {
			return view(s.(C))
		},
	})
	// New edges can turn cached misses into hits.
	clear(r.views)
	return child, nil
}

// MustDerive is like Derive but panics on error.
func MustDerive[C, P any](r *Registry, view func(C) P) *Type {
	t, err := Derive(r, view)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the descriptor registered for rt.
func (r *Registry) Lookup(rt reflect.Type) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[rt]
	return t, ok
}

// Types returns all registered types sorted by name.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	types := make([]*Type, 0, len(r.types))
	for _, t := range r.types {
		types = append(types, t)
	}
	r.mu.RUnlock()

	sort.Slice(types, func(i, j int) bool {
		return types[i].name < types[j].name
	})
	return types
}

// Viewer returns the function converting a signal of type from into its to
// view. The second result is false when from is not at least as specific as
// to. Results are cached until the hierarchy changes.
func (r *Registry) Viewer(from, to *Type) (ViewFunc, bool) {
	if from == nil || to == nil || from.reg != r || to.reg != r {
		return nil, false
	}
	if from == to {
		return identity, true
	}

	key := viewKey{from: from, to: to}
	r.mu.RLock()
	entry, cached := r.views[key]
	r.mu.RUnlock()
	if cached {
		return entry.view, entry.ok
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	path, ok := r.pathLocked(from, to)
	entry = viewEntry{ok: ok}
	if ok {
		entry.view = compose(path)
	}
	r.views[key] = entry
	return entry.view, entry.ok
}

func (r *Registry) define(rt reflect.Type) *Type {
	r.mu.RLock()
	t, ok := r.types[rt]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.types[rt]; ok {
		return t
	}
	t = &Type{name: rt.String(), rtype: rt, reg: r}
	r.types[rt] = t
	return t
}

// pathLocked finds a chain of parent views leading from one type to another
// with a depth-first walk. The hierarchy is acyclic, so the walk terminates.
func (r *Registry) pathLocked(from, to *Type) ([]ViewFunc, bool) {
	if from == to {
		return nil, true
	}
	visited := make(map[*Type]bool)

	var walk func(t *Type) ([]ViewFunc, bool)
	walk = func(t *Type) ([]ViewFunc, bool) {
		if visited[t] {
			return nil, false
		}
		visited[t] = true
		for _, edge := range t.parents {
			if edge.parent == to {
				return []ViewFunc{edge.view}, true
			}
			if rest, ok := walk(edge.parent); ok {
				return append([]ViewFunc{edge.view}, rest...), true
			}
		}
		return nil, false
	}
	return walk(from)
}

func identity(s Signal) Signal { return s }

func compose(path []ViewFunc) ViewFunc {
	switch len(path) {
	case 0:
		return identity
	case 1:
		return path[0]
	}
	return func(s Signal) Signal {
		for _, view := range path {
			s = view(s)
		}
		return s
	}
}
