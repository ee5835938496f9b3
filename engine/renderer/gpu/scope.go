package gpu

// ScopeID is a named slot in a Scope. Values are numbers, mgl32 vectors/matrices, []float32 or
// *Texture, and are read by uniform buffers and bind groups when they update.
type ScopeID struct {
	name    string
	value   any
	version uint64
}

// Name returns the uniform name.
func (id *ScopeID) Name() string { return id.name }

// Value returns the last value set, or nil.
func (id *ScopeID) Value() any { return id.value }

// Version returns the number of times SetValue has been called.
func (id *ScopeID) Version() uint64 { return id.version }

// SetValue stores v.
func (id *ScopeID) SetValue(v any) {
	id.value = v
	id.version++
}

// Scope is a name-keyed store of uniform values shared by every draw on a device.
type Scope struct {
	name string
	ids  map[string]*ScopeID
}

// NewScope creates an empty scope.
func NewScope(name string) *Scope {
	return &Scope{name: name, ids: make(map[string]*ScopeID)}
}

// Resolve returns the ScopeID for name, creating it on first use. The pointer is stable, so
// callers resolve once and keep it.
func (s *Scope) Resolve(name string) *ScopeID {
	id, ok := s.ids[name]
	if !ok {
		id = &ScopeID{name: name}
		s.ids[name] = id
	}
	return id
}

// Has reports whether name has been resolved.
func (s *Scope) Has(name string) bool {
	_, ok := s.ids[name]
	return ok
}
