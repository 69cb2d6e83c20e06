package statemachine

// SetParent re-parents the state. A nil parent makes it top-level.
//
// It fails with ErrCycle if parent is s or one of its descendants. When the
// state was the current child of its old parent, that record is cleared.
func (s *State) SetParent(parent *State) error {
	if parent != nil && (parent == s || parent.IsDescendantOf(s)) {
		return WrapStateError(s.name, ErrCycle)
	}

	if s.parent != nil && s.parent.currentChild == s {
		s.parent.currentChild = nil
	}

	s.parent = parent

	return nil
}

// IsDescendantOf reports whether ancestor appears anywhere on the parent
// chain of s. A state is not its own descendant.
func (s *State) IsDescendantOf(ancestor *State) bool {
	if ancestor == nil {
		return false
	}

	for p := s.parent; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}

	return false
}

// Ancestors returns the parent chain, nearest first.
func (s *State) Ancestors() []*State {
	var out []*State

	for p := s.parent; p != nil; p = p.parent {
		out = append(out, p)
	}

	return out
}

// Depth returns the number of ancestors. Top-level states have depth 0.
func (s *State) Depth() int {
	depth := 0

	for p := s.parent; p != nil; p = p.parent {
		depth++
	}

	return depth
}

// Root returns the top-most ancestor, or s itself when it has no parent.
func (s *State) Root() *State {
	root := s
	for root.parent != nil {
		root = root.parent
	}

	return root
}

// Path returns the names from the root down to s.
func (s *State) Path() []string {
	ancestors := s.Ancestors()
	path := make([]string, 0, len(ancestors)+1)

	for i := len(ancestors) - 1; i >= 0; i-- {
		path = append(path, ancestors[i].name)
	}

	return append(path, s.name)
}
