package module

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"tpd/class"
	"tpd/native"
	"tpd/storage"
	"tpd/value"
)

// LoadSourceFunc resolves a dotted module path to its source text. The
// default implementation joins Context.ScriptPath with the path segments
// and a ".tpd" extension, per spec §6; an embedder may substitute another
// source (e.g. an in-memory fixture in tests) by setting Context.LoadSource
// directly.
type LoadSourceFunc func(path []string) (string, error)

// Context is the mutable, shared state one compile-and-run of a tpd program
// threads through every module it resolves: the value heap every storage's
// constants are boxed onto, the atom-fingerprint seed, the module registry,
// and the stdout/stderr sinks native calls write to.
type Context struct {
	Heap  *value.Heap
	Atoms value.AtomSeed

	ScriptPath string
	LoadSource LoadSourceFunc

	Stdout io.Writer
	Stderr io.Writer

	Natives *native.Registry
	Classes *class.Registry

	// FunctionStorages holds one entry per compiled function, in the order
	// the compiler finishes each one. A value.FunctionPrototype's
	// StorageIndex indexes this slice — functions live in the value
	// package, which cannot import storage directly (storage already
	// imports value), so the indirection runs through here instead.
	FunctionStorages []*storage.Storage

	modules []*Module
	byName  map[string]*Module
}

// NewContext returns a Context rooted at scriptPath (the directory dotted
// module paths are resolved against), with a fresh heap and atom seed and
// the default file-based LoadSource.
func NewContext(scriptPath string) *Context {
	ctx := &Context{
		Heap:       value.NewHeap(),
		Atoms:      value.NewAtomSeed(),
		ScriptPath: scriptPath,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Natives:    native.NewRegistry(),
		Classes:    class.NewRegistry(),
		byName:     make(map[string]*Module),
	}
	ctx.LoadSource = ctx.defaultLoadSource
	return ctx
}

func (c *Context) defaultLoadSource(path []string) (string, error) {
	segments := append([]string{c.ScriptPath}, path...)
	file := filepath.Join(segments...) + ".tpd"
	data, err := os.ReadFile(file)
	if err != nil {
		return "", errors.Wrapf(err, "loading module '%s'", JoinPath(path))
	}
	return string(data), nil
}

// Get returns the already-registered module for path, if any.
func (c *Context) Get(path []string) (*Module, bool) {
	m, ok := c.byName[JoinPath(path)]
	return m, ok
}

// Register adds m to the registry and its ordered result list.
// Calling Register twice for the same path replaces the earlier entry in
// the lookup map but does not remove it from the ordered list — callers
// resolve a path with Get before deciding whether to compile and Register
// it at all (structural memoisation, spec §3.4).
func (c *Context) Register(m *Module) {
	c.byName[m.Name()] = m
	c.modules = append(c.modules, m)
}

// Ordered returns every registered module in the order Register was
// called. The compiler Registers a module (as an in-progress stub) before
// it resolves that module's own Loads, so an importing module comes before
// the modules it imports; the list is not in dependency-first order.
func (c *Context) Ordered() []*Module {
	return c.modules
}
