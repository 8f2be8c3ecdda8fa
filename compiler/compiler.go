// Package compiler turns a tpd AST into flat bytecode against a Static
// Storage, and owns the recursive module-graph resolution `use`/`yükle`
// needs (spec §3.4/§4.3): it is the only component that both parses
// source text and knows how to compile it, so the walk naturally lives
// here rather than splitting across module and compiler and risking an
// import cycle between them.
package compiler

import (
	"encoding/binary"
	"sort"

	"tpd/ast"
	"tpd/lexer"
	"tpd/module"
	"tpd/parser"
	"tpd/token"
	"tpd/value"
)

// Compiler walks an AST, emitting instructions into whichever frame is on
// top of its frame stack. One Compiler resolves an entire module graph:
// compiling a Load recurses back into the same Compiler to resolve the
// dependency before continuing the importing module's own compile.
type Compiler struct {
	ctx    *module.Context
	frames []*frame
}

// New returns a Compiler sharing ctx's heap, native registry, and module
// registry.
func New(ctx *module.Context) *Compiler {
	return &Compiler{ctx: ctx}
}

// CompileEntry compiles the program at path as the entry module and
// returns it, with every module it transitively `yükle`s already
// compiled and registered in ctx. Semantic/developer errors raised deep
// inside an ast.Node.Accept call are signalled by panicking (matching the
// teacher's own panic/recover idiom for conditions that should never
// require every visitor method to thread an extra error return); this is
// the one place that's recovered back into an ordinary error, so every
// other caller of a Compiler can treat it as a ordinary Go API.
func (c *Compiler) CompileEntry(path []string) (m *module.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	return c.compileModule(path)
}

func (c *Compiler) cur() *frame { return c.frames[len(c.frames)-1] }

// compileModule resolves path: returns the already-registered module if
// one exists, detects a cyclic import via the in-progress stub, or parses
// and compiles the source fresh.
func (c *Compiler) compileModule(path []string) (*module.Module, error) {
	if m, ok := c.ctx.Get(path); ok {
		if m.InProgress {
			return nil, errCyclicImport(module.JoinPath(path))
		}
		return m, nil
	}

	stub := &module.Module{Path: path, InProgress: true}
	c.ctx.Register(stub)

	src, err := c.ctx.LoadSource(path)
	if err != nil {
		return nil, err
	}
	tokens, err := lexer.New(src).Scan()
	if err != nil {
		return nil, err
	}
	body, errs := parser.Make(tokens).Parse()
	if len(errs) > 0 {
		return nil, errs[0]
	}

	f := newFrame(module.JoinPath(path))
	c.frames = append(c.frames, f)
	c.bindNatives(f)
	c.compileBlock(body)
	for _, pos := range f.returns {
		c.patchJump(pos, f.pos())
	}
	f.storage.BuildMemory(c.ctx.Heap)
	c.frames = c.frames[:len(c.frames)-1]

	stub.Storage = f.storage
	stub.Instructions = f.instructions
	stub.InProgress = false
	stub.Compiled = true
	return stub, nil
}

// bindNatives pre-binds every registered native function into f's storage
// as a plain variable, so any frame — module top level or a function
// body — can call a native by name through an ordinary Symbol/Load,
// without the VM ever needing to walk outside the executing storage.
// Iterated in sorted order so the same program always compiles to
// byte-identical bytecode.
func (c *Compiler) bindNatives(f *frame) {
	names := c.ctx.Natives.Names()
	sort.Strings(names)
	for _, name := range names {
		fn, _ := c.ctx.Natives.Lookup(name)
		constSlot := f.storage.AddConstant(c.ctx.Heap, value.Encode(c.ctx.Heap, value.Primative{Kind: value.KindFuncNative, Native: fn}))
		varSlot := f.storage.AddVariable(name)
		f.instructions = append(f.instructions, MakeInstruction(OpLoad, constSlot)...)
		f.instructions = append(f.instructions, MakeInstruction(OpStore, varSlot)...)
	}
}

// emit appends one instruction to the current frame and returns its
// opcode's offset.
func (c *Compiler) emit(op Opcode, operands ...int) int {
	pos := c.cur().pos()
	c.cur().instructions = append(c.cur().instructions, MakeInstruction(op, operands...)...)
	return pos
}

// patchJump overwrites the little-endian 16-bit operand of the jump
// instruction at pos so that, added to the index of its own first operand
// byte, it lands on target — spec §4.4's relative jump-offset rule.
func (c *Compiler) patchJump(pos, target int) {
	firstOperand := pos + 1
	offset := target - firstOperand
	if offset > 32767 || offset < -32768 {
		panic(errJumpTooFar(offset))
	}
	binary.LittleEndian.PutUint16(c.cur().instructions[firstOperand:], uint16(int16(offset)))
}

// emitJump emits op with a placeholder offset and immediately patches it
// to target — for jumps whose destination (typically backward, a loop's
// condition or top) is already known at emit time.
func (c *Compiler) emitJump(op Opcode, target int) int {
	pos := c.emit(op, 0)
	c.patchJump(pos, target)
	return pos
}

// emitConstant loads p as a constant of the current frame's storage.
func (c *Compiler) emitConstant(p value.Primative) {
	c.emit(OpLoad, c.emitConstantSlot(p))
}

func (c *Compiler) emitConstantSlot(p value.Primative) int {
	return c.cur().storage.AddConstant(c.ctx.Heap, value.Encode(c.ctx.Heap, p))
}

// compileBlock compiles every statement in b, discarding the value of any
// statement whose node shape is a value-producing expression used only for
// its side effect (spec §4.4's Pop SUPPLEMENT).
func (c *Compiler) compileBlock(b ast.Block) {
	for _, stmt := range b.Statements {
		stmt.Accept(c)
		if isValueNode(stmt) {
			c.emit(OpPop)
		}
	}
}

func isValueNode(n ast.Node) bool {
	switch n.(type) {
	case ast.Primative, ast.Symbol, ast.Assignment, ast.Binary, ast.Control,
		ast.PrefixUnary, ast.SuffixUnary, ast.FunctionCall, ast.List,
		ast.Dict, ast.Indexer, ast.MemberAccess, ast.None:
		return true
	default:
		return false
	}
}

// --- ast.Visitor implementation ---

func (c *Compiler) VisitNone(n ast.None) any {
	c.emitConstant(value.Empty)
	return nil
}

func (c *Compiler) VisitPrimative(n ast.Primative) any {
	c.emitConstant(n.Value)
	return nil
}

func (c *Compiler) VisitSymbol(n ast.Symbol) any {
	slot, ok := c.cur().storage.GetVariable(n.Name.Lexeme)
	if !ok {
		panic(errUnresolvedSymbol(n.Name.Lexeme))
	}
	c.emit(OpLoad, slot)
	return nil
}

func (c *Compiler) VisitAssignment(n ast.Assignment) any {
	switch target := n.Target.(type) {
	case ast.Symbol:
		c.compileSymbolAssignment(target, n.Operator, n.Expression)
	case ast.Indexer:
		c.compileIndexerAssignment(target, n.Operator, n.Expression)
	case ast.MemberAccess:
		c.compileMemberAssignment(target, n.Expression)
	default:
		panic(DeveloperError{Message: "assignment target is neither a Symbol, Indexer, nor MemberAccess"})
	}
	return nil
}

func (c *Compiler) compileSymbolAssignment(target ast.Symbol, op token.Token, rhs ast.Node) {
	slot := c.cur().storage.AddVariable(target.Name.Lexeme)
	if op.TokenType == token.ASSIGN {
		rhs.Accept(c)
	} else {
		c.emit(OpLoad, slot)
		rhs.Accept(c)
		c.emit(compoundOpcode(op.TokenType))
	}
	c.emit(OpCopyToStore, slot)
}

func (c *Compiler) compileIndexerAssignment(target ast.Indexer, op token.Token, rhs ast.Node) {
	f := c.cur()
	objSlot := f.storage.AddVariable(f.tmpName())
	idxSlot := f.storage.AddVariable(f.tmpName())
	valSlot := f.storage.AddVariable(f.tmpName())

	target.Object.Accept(c)
	c.emit(OpCopyToStore, objSlot)
	c.emit(OpPop)
	target.Index.Accept(c)
	c.emit(OpCopyToStore, idxSlot)
	c.emit(OpPop)

	if op.TokenType == token.ASSIGN {
		rhs.Accept(c)
	} else {
		c.emit(OpLoad, objSlot)
		c.emit(OpLoad, idxSlot)
		c.emit(OpGetItem)
		rhs.Accept(c)
		c.emit(compoundOpcode(op.TokenType))
	}
	c.emit(OpCopyToStore, valSlot)
	c.emit(OpPop)

	c.emit(OpLoad, objSlot)
	c.emit(OpLoad, idxSlot)
	c.emit(OpLoad, valSlot)
	c.emit(OpSetItem)
}

func (c *Compiler) compileMemberAssignment(target ast.MemberAccess, rhs ast.Node) {
	target.Object.Accept(c)
	rhs.Accept(c)
	nameSlot := c.emitConstantSlot(value.TextOf(target.Name.Lexeme))
	c.emit(OpCallMethod, nameSlot, 1)
}

func compoundOpcode(tt token.TokenType) Opcode {
	switch tt {
	case token.ADD_ASSIGN:
		return OpAddition
	case token.SUB_ASSIGN:
		return OpSubraction
	case token.MULT_ASSIGN:
		return OpMultiply
	case token.DIV_ASSIGN:
		return OpDivision
	default:
		panic(DeveloperError{Message: "not a compound-assignment operator"})
	}
}

func (c *Compiler) VisitBinary(n ast.Binary) any {
	n.Left.Accept(c)
	n.Right.Accept(c)
	c.emit(binaryOpcode(n.Operator.TokenType))
	return nil
}

func binaryOpcode(tt token.TokenType) Opcode {
	switch tt {
	case token.ADD:
		return OpAddition
	case token.SUB:
		return OpSubraction
	case token.MULT:
		return OpMultiply
	case token.DIV:
		return OpDivision
	case token.MOD:
		return OpModulo
	default:
		panic(DeveloperError{Message: "not a binary operator"})
	}
}

func (c *Compiler) VisitControl(n ast.Control) any {
	n.Left.Accept(c)
	n.Right.Accept(c)
	c.emit(controlOpcode(n.Operator.TokenType))
	return nil
}

func controlOpcode(tt token.TokenType) Opcode {
	switch tt {
	case token.EQUAL_EQUAL:
		return OpEqual
	case token.NOT_EQUAL:
		return OpNotEqual
	case token.LARGER:
		return OpGreaterThan
	case token.LESS:
		return OpLessThan
	case token.LARGER_EQUAL:
		return OpGreaterEqualThan
	case token.LESS_EQUAL:
		return OpLessEqualThan
	case token.AND:
		return OpAnd
	case token.OR:
		return OpOr
	default:
		panic(DeveloperError{Message: "not a control operator"})
	}
}

func (c *Compiler) VisitPrefixUnary(n ast.PrefixUnary) any {
	switch n.Operator.TokenType {
	case token.BANG, token.NOT:
		n.Expr.Accept(c)
		c.emit(OpNot)
	case token.SUB:
		c.emitConstant(value.NumberOf(0))
		n.Expr.Accept(c)
		c.emit(OpSubraction)
	case token.PLUS_PLUS, token.MINUS_MINUS:
		sym, ok := n.Expr.(ast.Symbol)
		if !ok {
			panic(SemanticError{Message: "++/-- target must be a variable"})
		}
		slot := c.cur().storage.AddVariable(sym.Name.Lexeme)
		c.emit(OpLoad, slot)
		if n.Operator.TokenType == token.PLUS_PLUS {
			c.emit(OpIncrement)
		} else {
			c.emit(OpDecrement)
		}
		c.emit(OpCopyToStore, slot)
	default:
		panic(DeveloperError{Message: "unknown prefix operator"})
	}
	return nil
}

func (c *Compiler) VisitSuffixUnary(n ast.SuffixUnary) any {
	sym, ok := n.Expr.(ast.Symbol)
	if !ok {
		panic(SemanticError{Message: "++/-- target must be a variable"})
	}
	slot := c.cur().storage.AddVariable(sym.Name.Lexeme)
	c.emit(OpLoad, slot)
	c.emit(OpDublicate)
	if n.Operator.TokenType == token.PLUS_PLUS {
		c.emit(OpIncrement)
	} else {
		c.emit(OpDecrement)
	}
	c.emit(OpStore, slot)
	return nil
}

func (c *Compiler) VisitBlock(n ast.Block) any {
	c.compileBlock(n)
	return nil
}

func (c *Compiler) VisitFunctionDefinition(n ast.FunctionDefinition) any {
	heap := c.ctx.Heap
	modulePath := c.cur().storage.Name

	paramNames := make([]string, len(n.Params))
	for i, p := range n.Params {
		paramNames[i] = p.Lexeme
	}
	proto := &value.FunctionPrototype{
		Name:       n.Name.Lexeme,
		Params:     paramNames,
		ModulePath: modulePath,
	}

	fn := newFrame(modulePath + "#" + n.Name.Lexeme)
	c.frames = append(c.frames, fn)
	c.bindNatives(fn)

	selfSlot := fn.storage.AddVariable(n.Name.Lexeme)
	selfConst := fn.storage.AddConstant(heap, value.Encode(heap, value.Primative{Kind: value.KindFuncCompiled, Compiled: proto}))
	fn.instructions = append(fn.instructions, MakeInstruction(OpLoad, selfConst)...)
	fn.instructions = append(fn.instructions, MakeInstruction(OpStore, selfSlot)...)

	for _, p := range n.Params {
		fn.storage.AddVariable(p.Lexeme)
	}

	c.compileBlock(n.Body)
	for _, pos := range fn.returns {
		c.patchJump(pos, fn.pos())
	}
	fn.storage.BuildMemory(heap)
	proto.Instructions = fn.instructions

	c.frames = c.frames[:len(c.frames)-1]

	idx := len(c.ctx.FunctionStorages)
	c.ctx.FunctionStorages = append(c.ctx.FunctionStorages, fn.storage)
	proto.StorageIndex = idx

	outerConst := c.emitConstantSlot(value.Primative{Kind: value.KindFuncCompiled, Compiled: proto})
	outerSlot := c.cur().storage.AddVariable(n.Name.Lexeme)
	c.emit(OpLoad, outerConst)
	c.emit(OpStore, outerSlot)
	return nil
}

func (c *Compiler) VisitFunctionCall(n ast.FunctionCall) any {
	switch callee := n.Callee.(type) {
	case ast.MemberAccess:
		callee.Object.Accept(c)
		for _, a := range n.Args {
			a.Accept(c)
		}
		nameSlot := c.emitConstantSlot(value.TextOf(callee.Name.Lexeme))
		c.emit(OpCallMethod, nameSlot, len(n.Args))
	case ast.Symbol:
		for _, a := range n.Args {
			a.Accept(c)
		}
		slot, ok := c.cur().storage.GetVariable(callee.Name.Lexeme)
		if !ok {
			panic(errUnresolvedSymbol(callee.Name.Lexeme))
		}
		c.emit(OpNativeCall, slot, len(n.Args))
	default:
		panic(DeveloperError{Message: "function call callee must be a Symbol or MemberAccess"})
	}
	return nil
}

func (c *Compiler) VisitReturn(n ast.Return) any {
	n.Expr.Accept(c)
	pos := c.emit(OpJump, 0)
	f := c.cur()
	f.returns = append(f.returns, pos)
	return nil
}

func (c *Compiler) VisitIfStatement(n ast.IfStatement) any {
	n.Condition.Accept(c)
	next := c.emit(OpCompare, 0)
	c.compileBlock(n.Then)
	var ends []int
	ends = append(ends, c.emit(OpJump, 0))
	c.patchJump(next, c.cur().pos())

	for _, elif := range n.Elifs {
		elif.Condition.Accept(c)
		next = c.emit(OpCompare, 0)
		c.compileBlock(elif.Body)
		ends = append(ends, c.emit(OpJump, 0))
		c.patchJump(next, c.cur().pos())
	}

	if n.Else != nil {
		c.compileBlock(*n.Else)
	}

	end := c.cur().pos()
	for _, e := range ends {
		c.patchJump(e, end)
	}
	return nil
}

func (c *Compiler) VisitLoop(n ast.Loop) any {
	f := c.cur()
	top := f.pos()
	loop := f.pushLoop(top)
	c.compileBlock(n.Body)
	c.emitJump(OpJump, top)
	end := f.pos()
	f.popLoop()
	for _, b := range loop.breaks {
		c.patchJump(b, end)
	}
	return nil
}

func (c *Compiler) VisitWhileLoop(n ast.WhileLoop) any {
	f := c.cur()
	condPos := f.pos()
	n.Condition.Accept(c)
	exit := c.emit(OpCompare, 0)
	loop := f.pushLoop(condPos)
	c.compileBlock(n.Body)
	c.emitJump(OpJump, condPos)
	end := f.pos()
	c.patchJump(exit, end)
	f.popLoop()
	for _, b := range loop.breaks {
		c.patchJump(b, end)
	}
	return nil
}

func (c *Compiler) VisitBreak(n ast.Break) any {
	f := c.cur()
	loop, ok := f.currentLoop()
	if !ok {
		panic(SemanticError{Message: "break used outside a loop"})
	}
	pos := c.emit(OpJump, 0)
	loop.breaks = append(loop.breaks, pos)
	return nil
}

func (c *Compiler) VisitContinue(n ast.Continue) any {
	f := c.cur()
	loop, ok := f.currentLoop()
	if !ok {
		panic(SemanticError{Message: "continue used outside a loop"})
	}
	c.emitJump(OpJump, loop.continueTarget)
	return nil
}

func (c *Compiler) VisitList(n ast.List) any {
	for _, e := range n.Elements {
		e.Accept(c)
	}
	c.emit(OpInitList, len(n.Elements))
	return nil
}

func (c *Compiler) VisitDict(n ast.Dict) any {
	for _, p := range n.Pairs {
		p.Key.Accept(c)
		p.Value.Accept(c)
	}
	c.emit(OpInitDict, len(n.Pairs))
	return nil
}

func (c *Compiler) VisitIndexer(n ast.Indexer) any {
	n.Object.Accept(c)
	n.Index.Accept(c)
	c.emit(OpGetItem)
	return nil
}

func (c *Compiler) VisitMemberAccess(n ast.MemberAccess) any {
	n.Object.Accept(c)
	nameSlot := c.emitConstantSlot(value.TextOf(n.Name.Lexeme))
	c.emit(OpCallMethod, nameSlot, 0)
	return nil
}

func (c *Compiler) VisitLoad(n ast.Load) any {
	if _, err := c.compileModule(n.Path); err != nil {
		panic(err)
	}
	return nil
}
