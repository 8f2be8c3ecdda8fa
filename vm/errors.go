package vm

import "fmt"

// RuntimeError is the only error the VM's fetch-decode-dispatch loop ever
// returns on its own: a native function reporting failure, or bytecode
// carrying an opcode compiler.Get doesn't recognise. Every type mismatch a
// script can cause (adding a Text to a List, indexing past a List's end)
// degrades silently to Empty instead — spec §4.1/§4.4's "the VM never
// aborts on a kind mismatch" invariant.
type RuntimeError struct {
	Message string
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("💥 RuntimeError: %s", e.Message)
}
