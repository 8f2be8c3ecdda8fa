// Package native implements the Native Bridge (spec §4.6): the contract
// host-provided Go functions obey to be callable from tpd bytecode via the
// NativeCall opcode, plus a name-keyed Registry the compiler resolves
// `Load`s of builtin symbols against.
package native

import (
	"fmt"

	"tpd/value"
)

// FunctionParameter is the descriptor a native function receives: a
// read-only view of the operand stack holding exactly Argc values, the
// invoking symbol's name (for diagnostics), and the sinks it may write
// output to. It is a thin, named wrapper over value.NativeParams — kept as
// its own type so native function signatures read in the vocabulary the
// spec uses, independent of the underlying value package's internals.
type FunctionParameter = value.NativeParams

// Func is the Go function shape every native tpd function implements.
// Returning a non-nil error halts the VM (spec §4.6, §7).
type Func = value.NativeFunc

// Registry maps a native function's invocation name to its implementation.
// One Registry is shared by every module a Context compiles, mirroring the
// fixed set of builtins the original interpreter wired into its VM at
// start-up.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds fn under name. Registering the same name twice replaces
// the earlier implementation — later registrations (e.g. a user module
// overriding a stdlib name) win.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Lookup returns the native function registered under name, if any.
func (r *Registry) Lookup(name string) (Func, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns every registered native function's name, for diagnostics
// and for the compiler to pre-populate constant pools with.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}

// ArgError formats a native function's argument-count or type complaint
// consistently; natives that receive the wrong shape of arguments should
// return one of these rather than panicking.
func ArgError(name string, want string, got value.Primative) error {
	return fmt.Errorf("'%s' expected %s, got %s", name, want, got.Kind)
}
