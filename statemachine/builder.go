package statemachine

import (
	"errors"
	"fmt"
)

// Hierarchy is a named set of states assembled by a Builder.
type Hierarchy struct {
	states []*State
	byName map[string]*State
	// children in declaration order, keyed by parent.
	children map[*State][]*State
	initial  *State
}

// Lookup returns the state with the given name.
func (h *Hierarchy) Lookup(name string) (*State, bool) {
	s, ok := h.byName[name]

	return s, ok
}

// MustLookup returns the state with the given name and panics if there is none.
func (h *Hierarchy) MustLookup(name string) *State {
	s, ok := h.byName[name]
	if !ok {
		panic(fmt.Sprintf("statemachine: no state named %q", name))
	}

	return s
}

// States returns every state in declaration order.
func (h *Hierarchy) States() []*State {
	return append([]*State(nil), h.states...)
}

// Roots returns the top-level states in declaration order.
func (h *Hierarchy) Roots() []*State {
	var roots []*State

	for _, s := range h.states {
		if s.parent == nil {
			roots = append(roots, s)
		}
	}

	return roots
}

// Children returns the direct children of s in declaration order.
func (h *Hierarchy) Children(s *State) []*State {
	return append([]*State(nil), h.children[s]...)
}

// Initial returns the initial state, or nil if none was declared.
func (h *Hierarchy) Initial() *State {
	return h.initial
}

// stateDecl is a state declared on a Builder before Build resolves parents.
type stateDecl struct {
	name     string
	behavior Behavior
	parent   string
}

// Builder provides a fluent API for assembling a state hierarchy and the
// machine that drives it.
type Builder struct {
	name         string
	policy       Policy
	initialState string
	decls        []stateDecl
	opts         []Option
}

// NewBuilder creates a new builder for a machine with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name: name,
	}
}

// WithPolicy sets the same-state transition policy.
func (b *Builder) WithPolicy(policy Policy) *Builder {
	b.policy = policy

	return b
}

// WithInitialState sets the state the machine changes to at the end of Build.
func (b *Builder) WithInitialState(name string) *Builder {
	b.initialState = name

	return b
}

// WithOptions appends machine options (logger, ID, ...).
func (b *Builder) WithOptions(opts ...Option) *Builder {
	b.opts = append(b.opts, opts...)

	return b
}

// AddState declares a top-level state.
func (b *Builder) AddState(name string, behavior Behavior) *Builder {
	return b.AddChildState(name, behavior, "")
}

// AddChildState declares a state whose parent is the state named parent.
// Parents may be declared after their children.
func (b *Builder) AddChildState(name string, behavior Behavior, parent string) *Builder {
	b.decls = append(b.decls, stateDecl{
		name:     name,
		behavior: behavior,
		parent:   parent,
	})

	return b
}

// Build validates the declarations, creates the states and the machine, and
// transitions to the initial state if one was set.
func (b *Builder) Build() (*Machine, *Hierarchy, error) {
	h, err := b.buildHierarchy()
	if err != nil {
		return nil, nil, err
	}

	err = b.policy.Validate()
	if err != nil {
		return nil, nil, err
	}

	opts := append([]Option{WithName(b.name), WithPolicy(b.policy)}, b.opts...)
	m := NewMachine(opts...)

	if h.initial != nil {
		err = m.ChangeState(h.initial)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to enter initial state: %w", err)
		}
	}

	return m, h, nil
}

// BuildHierarchy validates the declarations and creates the states without a machine.
func (b *Builder) BuildHierarchy() (*Hierarchy, error) {
	return b.buildHierarchy()
}

func (b *Builder) buildHierarchy() (*Hierarchy, error) {
	h := &Hierarchy{
		byName:   make(map[string]*State, len(b.decls)),
		children: make(map[*State][]*State),
	}

	var errs []error

	// First pass: create every state.
	for i, decl := range b.decls {
		switch {
		case decl.name == "":
			errs = append(errs, fmt.Errorf("state %d: %w", i, ErrStateNameRequired))

			continue
		case decl.behavior == nil:
			errs = append(errs, WrapStateError(decl.name, ErrBehaviorRequired))

			continue
		}

		if _, dup := h.byName[decl.name]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateStateName, decl.name))

			continue
		}

		s := NewState(decl.name, decl.behavior)
		h.states = append(h.states, s)
		h.byName[decl.name] = s
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// Second pass: link parents.
	for _, decl := range b.decls {
		if decl.parent == "" {
			continue
		}

		s := h.byName[decl.name]

		parent, ok := h.byName[decl.parent]
		if !ok {
			errs = append(errs, WrapStateError(decl.name, fmt.Errorf("%w: %s", ErrParentNotFound, decl.parent)))

			continue
		}

		err := s.SetParent(parent)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		h.children[parent] = append(h.children[parent], s)
	}

	if b.initialState != "" {
		initial, ok := h.byName[b.initialState]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInitialStateNotFound, b.initialState))
		}

		h.initial = initial
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return h, nil
}
