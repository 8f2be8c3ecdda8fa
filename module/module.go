// Package module implements the DAG of per-module Static Storages tpd's
// `use`/`yükle` imports resolve into (spec §3.4). It owns module identity
// and the shared runtime resources (heap, atom seed, stdout/stderr sinks)
// a compile needs, but deliberately holds none of the graph-walking logic
// itself — that recursive Load-resolution lives in the compiler, which is
// the only component that also knows how to parse and compile a module's
// source text. Keeping it there avoids a compiler<->module import cycle.
package module

import (
	"strings"

	"tpd/storage"
)

// Module is one compiled scope reachable by a dotted import path.
type Module struct {
	Path         []string
	Storage      *storage.Storage
	Instructions []byte

	// InProgress marks a module whose Load resolution has started but not
	// finished; re-entering it is a cyclic import (spec §4.3).
	InProgress bool
	Compiled   bool
}

// Name returns the module's dotted path, e.g. "a.b.c".
func (m *Module) Name() string {
	return strings.Join(m.Path, ".")
}

// JoinPath renders a dotted import path as used in diagnostics and as a
// registry key.
func JoinPath(path []string) string {
	return strings.Join(path, ".")
}
