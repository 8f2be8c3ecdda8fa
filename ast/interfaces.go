// interfaces.go contains the visitor interface that any code traversing the
// AST (the bytecode compiler, a pretty-printer) must implement, plus the
// base Node interface every AST node satisfies. tpd's AST does not split
// expressions from statements the way the teacher's did: most node shapes
// (Assignment, FunctionCall, ++/--) are usable in either position, so a
// single Visitor/Node pair following the visitor pattern covers both.
package ast

// Visitor defines the operation dispatched to for every concrete node type.
// An implementation (the compiler, most commonly) performs its behaviour
// from these methods rather than switching on node type.
type Visitor interface {
	VisitNone(n None) any
	VisitPrimative(n Primative) any
	VisitSymbol(n Symbol) any
	VisitAssignment(n Assignment) any
	VisitBinary(n Binary) any
	VisitControl(n Control) any
	VisitPrefixUnary(n PrefixUnary) any
	VisitSuffixUnary(n SuffixUnary) any
	VisitBlock(n Block) any
	VisitFunctionDefinition(n FunctionDefinition) any
	VisitFunctionCall(n FunctionCall) any
	VisitReturn(n Return) any
	VisitIfStatement(n IfStatement) any
	VisitLoop(n Loop) any
	VisitWhileLoop(n WhileLoop) any
	VisitBreak(n Break) any
	VisitContinue(n Continue) any
	VisitList(n List) any
	VisitDict(n Dict) any
	VisitIndexer(n Indexer) any
	VisitMemberAccess(n MemberAccess) any
	VisitLoad(n Load) any
}

// Node is the base interface every AST node implements. Accept dispatches
// the node to the matching Visit method, following the visitor design
// pattern so traversal logic lives outside the node types themselves.
type Node interface {
	Accept(v Visitor) any
}
