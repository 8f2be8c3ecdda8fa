// Package storage implements the per-scope Static Storage described in
// spec §3.3/§4.2: a constant pool, a variable slot table, and the flat
// runtime memory array the VM indexes into. One Storage exists per
// compiled scope — the top-level module and every function defined in it.
package storage

import "tpd/value"

// Storage is mutable during compilation (AddConstant/AddVariable) and
// frozen once BuildMemory runs. ParentIndex is compile-time only: the VM
// never walks it, every Load/Store opcode already addresses an absolute
// slot in the storage that is active when it executes.
type Storage struct {
	constants    []value.VmObject
	variables    map[string]int
	variableList []string

	memory []value.VmObject
	built  bool

	parentIndex int
	hasParent   bool

	// Name identifies the storage for diagnostics: the module's dotted
	// path, or "<module path>#<function name>" for a function scope.
	Name string
}

// New returns an empty, unbuilt storage named name.
func New(name string) *Storage {
	return &Storage{
		Name:      name,
		variables: make(map[string]int),
	}
}

// AddConstant returns v's slot in the constant pool, appending it if no
// existing constant compares equal under h. Constants must be finalised
// (no further AddConstant calls) before AddVariable is used, so constant
// slot indices stay stable once variable numbering begins — spec §4.2.
func (s *Storage) AddConstant(h *value.Heap, v value.VmObject) int {
	if s.built {
		panic("storage: AddConstant called after BuildMemory")
	}
	want := h.Peek(v)
	for i, existing := range s.constants {
		if value.Equal(h, h.Peek(existing), want) {
			return i
		}
	}
	s.constants = append(s.constants, v)
	return len(s.constants) - 1
}

// AddVariable allocates name's slot if it does not already have one and
// returns it (Invariant S-2: re-declaration is idempotent). Variable slots
// are numbered starting immediately after the constant pool's final size,
// so this must not be called before the owning scope is done adding
// constants.
func (s *Storage) AddVariable(name string) int {
	if s.built {
		panic("storage: AddVariable called after BuildMemory")
	}
	if slot, ok := s.variables[name]; ok {
		return slot
	}
	slot := len(s.constants) + len(s.variableList)
	s.variables[name] = slot
	s.variableList = append(s.variableList, name)
	return slot
}

// GetVariable reports name's slot, if it has been declared in this storage.
func (s *Storage) GetVariable(name string) (int, bool) {
	slot, ok := s.variables[name]
	return slot, ok
}

// VariableName reverse-looks-up slot's declared name, for diagnostics and
// for the native bridge's "invoking symbol name" (spec §4.6) when a
// NativeCall's operand is a variable slot rather than a literal. Reports
// false for a constant slot or an out-of-range one.
func (s *Storage) VariableName(slot int) (string, bool) {
	i := slot - len(s.constants)
	if i < 0 || i >= len(s.variableList) {
		return "", false
	}
	return s.variableList[i], true
}

// ConstantCount returns the number of entries in the constant pool. It is
// stable from the moment compilation of this scope finishes adding
// constants, even before BuildMemory runs.
func (s *Storage) ConstantCount() int { return len(s.constants) }

// BuildMemory fills the flat memory array: the first ConstantCount()
// entries from the constant pool (each retained, since both the pool and
// memory now reference it), the remainder zero-initialised to Empty.
// Invariant S-1: memory's length never changes after this runs.
func (s *Storage) BuildMemory(h *value.Heap) {
	if s.built {
		return
	}
	size := len(s.constants) + len(s.variableList)
	mem := make([]value.VmObject, size)
	empty := value.Encode(h, value.Empty)
	for i := range mem {
		mem[i] = empty
	}
	for i, c := range s.constants {
		h.Retain(c)
		mem[i] = c
	}
	s.memory = mem
	s.built = true
}

// Memory returns the storage's runtime memory array. It panics if called
// before BuildMemory, since the array does not exist yet.
func (s *Storage) Memory() []value.VmObject {
	if !s.built {
		panic("storage: Memory called before BuildMemory")
	}
	return s.memory
}

// Len returns the total slot count (constants + variables).
func (s *Storage) Len() int { return len(s.constants) + len(s.variableList) }

// SetParent records idx as the enclosing storage's index within whatever
// registry the compiler keeps (module or function list). Compile-time only.
func (s *Storage) SetParent(idx int) {
	s.parentIndex = idx
	s.hasParent = true
}

// GetParent returns the enclosing storage's index and whether one is set.
func (s *Storage) GetParent() (int, bool) {
	return s.parentIndex, s.hasParent
}
