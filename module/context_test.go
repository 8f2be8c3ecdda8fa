package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpd/storage"
)

func TestRegisterAndGet(t *testing.T) {
	ctx := NewContext("/tmp/scripts")
	m := &Module{Path: []string{"a", "b"}, Storage: storage.New("a.b")}
	ctx.Register(m)

	got, ok := ctx.Get([]string{"a", "b"})
	require.True(t, ok, "Get did not return the registered module")
	assert.Same(t, m, got)

	_, ok = ctx.Get([]string{"x"})
	assert.False(t, ok, "Get should report false for an unregistered path")
}

func TestOrderedPreservesRegistrationOrder(t *testing.T) {
	ctx := NewContext("/tmp/scripts")
	dep := &Module{Path: []string{"dep"}, Storage: storage.New("dep")}
	root := &Module{Path: []string{"root"}, Storage: storage.New("root")}
	ctx.Register(dep)
	ctx.Register(root)

	assert.Equal(t, []*Module{dep, root}, ctx.Ordered())
}

func TestInProgressMarksCycle(t *testing.T) {
	m := &Module{Path: []string{"a"}, Storage: storage.New("a")}
	m.InProgress = true
	assert.True(t, m.InProgress, "expected InProgress to stick until explicitly cleared")
}
