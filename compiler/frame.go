package compiler

import (
	"fmt"

	"tpd/storage"
)

// frame is the compiler's working state for one Static Storage: the
// top-level module scope, or one function body. Each frame owns its own
// instruction stream and operates independently — tpd functions are not
// closures, so a nested frame never addresses a slot in another frame's
// memory (spec §4.2's "VM never traverses parents" invariant, enforced
// here simply by never trying to).
type frame struct {
	storage      *storage.Storage
	instructions []byte
	loops        []*loopScope

	// returns holds the opcode position of every Return's placeholder
	// Jump, patched to point at this frame's own final instruction offset
	// once its whole body has been compiled — spec §4.5's storage-local
	// PC termination.
	returns []int

	tmp int
}

// loopScope tracks the patch points a Loop/WhileLoop body collects while
// compiling, so Break/Continue can be resolved once the loop's extent is
// known.
type loopScope struct {
	// breaks holds the opcode position of each `break`'s placeholder Jump,
	// patched to the loop's exit once the body finishes compiling.
	breaks []int
	// continueTarget is the pc `continue` jumps to: the condition test for
	// a WhileLoop, or the body's top for an unconditional Loop.
	continueTarget int
}

func newFrame(name string) *frame {
	return &frame{storage: storage.New(name)}
}

func (f *frame) pos() int { return len(f.instructions) }

func (f *frame) pushLoop(continueTarget int) *loopScope {
	l := &loopScope{continueTarget: continueTarget}
	f.loops = append(f.loops, l)
	return l
}

func (f *frame) popLoop() *loopScope {
	l := f.loops[len(f.loops)-1]
	f.loops = f.loops[:len(f.loops)-1]
	return l
}

func (f *frame) currentLoop() (*loopScope, bool) {
	if len(f.loops) == 0 {
		return nil, false
	}
	return f.loops[len(f.loops)-1], true
}

// tmpName returns a fresh synthetic variable name, unique within this
// frame, for the hidden slots an Indexer assignment needs to hold its
// object/index/value without re-evaluating them.
func (f *frame) tmpName() string {
	f.tmp++
	return fmt.Sprintf("$t%d", f.tmp)
}
