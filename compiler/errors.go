package compiler

import "fmt"

// SemanticError reports a problem with the program's meaning that the
// compiler can only detect by trying to compile it: an unresolved symbol,
// a cyclic import, a jump too far to encode.
type SemanticError struct {
	Message string
}

func (e SemanticError) Error() string {
	return fmt.Sprintf("💥 SemanticError: %s", e.Message)
}

type DeveloperError struct {
	Message string
}

func (e DeveloperError) Error() string {
	return fmt.Sprintf("🤖 DeveloperError: %s", e.Message)
}

func errUnresolvedSymbol(name string) SemanticError {
	return SemanticError{Message: fmt.Sprintf("'%s' is not defined", name)}
}

func errCyclicImport(path string) SemanticError {
	return SemanticError{Message: fmt.Sprintf("cyclic import of module '%s'", path)}
}

func errJumpTooFar(offset int) SemanticError {
	return SemanticError{Message: fmt.Sprintf("jump offset %d does not fit in a signed 16-bit operand", offset)}
}
