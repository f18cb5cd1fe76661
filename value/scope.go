package value

// Scope is a small insertion-ordered symbol-id -> Value map, as described by
// the data model: lookup is linear by design since scopes created per call
// frame are small, and insertion order is preserved (it is observable
// through GET_FIELD on a captured closure scope). A Scope may be shared: a
// Closure holds a strong reference to the Scope it captured, and the VM's
// locals stack holds its own reference while the frame is active. Go's
// garbage collector provides the "last holder frees" semantics the data
// model describes in terms of reference counting.
//
// Each binding is boxed behind its own *Value rather than stored inline, so
// a pointer handed out by Ptr (the by-reference capture a CAPTURE
// instruction takes) stays valid even after a later Set on the same scope
// grows ids/values: growth reallocates the slice of box pointers, never the
// boxes themselves.
type Scope struct {
	ids    []uint16
	values []*Value
	// parent is the lexically enclosing scope a closure was created in.
	// Scope's own methods never walk it; the VM follows Parent() outward
	// itself when resolving, setting or capturing a name.
	parent *Scope
}

// NewScope creates an empty scope, optionally capturing a parent (the
// closure's defining environment).
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent}
}

// Len returns the number of bindings directly in this scope.
func (s *Scope) Len() int { return len(s.ids) }

// At returns the id/value pair at insertion-order index i.
func (s *Scope) At(i int) (uint16, Value) { return s.ids[i], *s.values[i] }

// Find returns the index of id in this scope, or -1.
func (s *Scope) Find(id uint16) int {
	for i, v := range s.ids {
		if v == id {
			return i
		}
	}
	return -1
}

// Get looks up id in this scope only (no parent walk) and reports whether it
// was found.
func (s *Scope) Get(id uint16) (Value, bool) {
	if i := s.Find(id); i >= 0 {
		return *s.values[i], true
	}
	return Value{}, false
}

// Set inserts id=value if absent, or overwrites the existing binding.
func (s *Scope) Set(id uint16, v Value) {
	if i := s.Find(id); i >= 0 {
		*s.values[i] = v
		return
	}
	s.ids = append(s.ids, id)
	s.values = append(s.values, &v)
}

// Del removes id from this scope if present, preserving insertion order of
// the remaining entries.
func (s *Scope) Del(id uint16) bool {
	i := s.Find(id)
	if i < 0 {
		return false
	}
	s.ids = append(s.ids[:i], s.ids[i+1:]...)
	s.values = append(s.values[:i], s.values[i+1:]...)
	return true
}

// Parent returns the scope this one was created with, or nil for the global
// scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Ptr returns a pointer to id's box in this scope, stable for the box's
// entire lifetime (see the Scope doc comment), for building a by-reference
// capture (see value.Ref).
func (s *Scope) Ptr(id uint16) (*Value, bool) {
	if i := s.Find(id); i >= 0 {
		return s.values[i], true
	}
	return nil, false
}
