// Package vm implements the fetch-decode-dispatch loop that runs a
// compiled Storage's instructions (spec §4.4/§4.5): a stack-based register
// machine over NaN-boxed VmObjects, adapted from the teacher's switch-on-
// opcode Run loop.
package vm

import (
	"encoding/binary"
	"fmt"

	"tpd/class"
	"tpd/compiler"
	"tpd/module"
	"tpd/native"
	"tpd/storage"
	"tpd/value"
)

// VM runs compiled storages against a shared module.Context: its heap,
// native registry, class registry, and stdout/stderr sinks.
type VM struct {
	ctx   *module.Context
	debug bool
}

// New returns a VM sharing ctx's heap and registries.
func New(ctx *module.Context) *VM {
	return &VM{ctx: ctx}
}

// RunModule executes m's top-level instructions against its own storage
// and returns whatever value is left on the stack when they finish — Empty
// if the module never pushed one (the ordinary case; modules don't
// normally `döndür`).
func (vm *VM) RunModule(m *module.Module) (value.VmObject, error) {
	return vm.run(m.Storage, m.Instructions)
}

// run is the core fetch-decode-dispatch loop. It operates on one storage's
// memory array and one instruction stream at a time; a compiled-function
// call recurses back into run on the Go call stack rather than pushing a
// frame onto any VM-managed call-stack structure — the core opcode table
// has no frame-allocation primitive, so Go's own recursion stands in for
// one (spec §4.5).
//
// Reference counting here is a deliberately pragmatic subset of full
// balance: every value that gains a second simultaneous owner (Load,
// Dublicate, CopyToStore, a List/Dict element read) is Retained, and every
// slot or stack value that stops owning a reference (Store's old content,
// Pop, an overwritten List/Dict element) is Released. Short-lived
// intermediates consumed mid-expression by arithmetic/comparison opcodes
// are also released once read. Go's garbage collector owns the actual
// memory regardless, so an imperfectly balanced count never corrupts
// anything — at worst a heap slot is freed a little earlier or later than
// a fully rigorous implementation would free it.
func (vm *VM) run(st *storage.Storage, instructions []byte) (value.VmObject, error) {
	heap := vm.ctx.Heap
	memory := st.Memory()
	var stack Stack

	ip := 0
	for ip < len(instructions) {
		op := compiler.Opcode(instructions[ip])
		def, err := compiler.Get(op)
		if err != nil {
			return 0, RuntimeError{Message: fmt.Sprintf("unknown opcode %d at ip %d", op, ip)}
		}

		next := ip + 1
		for _, w := range def.OperandWidths {
			next += w
		}
		jumped := false

		switch op {
		case compiler.OpNone:
			// no-op

		case compiler.OpLoad:
			slot := int(instructions[ip+1])
			v := memory[slot]
			heap.Retain(v)
			stack.Push(v)

		case compiler.OpStore:
			slot := int(instructions[ip+1])
			v, _ := stack.Pop()
			heap.Release(memory[slot])
			memory[slot] = v

		case compiler.OpCopyToStore:
			slot := int(instructions[ip+1])
			v, _ := stack.Peek()
			heap.Release(memory[slot])
			heap.Retain(v)
			memory[slot] = v

		case compiler.OpFastStore:
			src := int(instructions[ip+1])
			dst := int(instructions[ip+2])
			heap.Release(memory[dst])
			heap.Retain(memory[src])
			memory[dst] = memory[src]

		case compiler.OpDublicate:
			v, _ := stack.Peek()
			heap.Retain(v)
			stack.Push(v)

		case compiler.OpAddition:
			vm.binaryArith(&stack, func(a, b value.Primative) value.Primative { return value.Add(heap, a, b) })
		case compiler.OpSubraction:
			vm.binaryArith(&stack, func(a, b value.Primative) value.Primative { return value.Sub(a, b) })
		case compiler.OpMultiply:
			vm.binaryArith(&stack, func(a, b value.Primative) value.Primative { return value.Mul(a, b) })
		case compiler.OpDivision:
			vm.binaryArith(&stack, func(a, b value.Primative) value.Primative { return value.Div(a, b) })
		case compiler.OpModulo:
			vm.binaryArith(&stack, func(a, b value.Primative) value.Primative { return value.Mod(a, b) })

		case compiler.OpAnd:
			vm.binaryBool(&stack, func(a, b bool) bool { return a && b })
		case compiler.OpOr:
			vm.binaryBool(&stack, func(a, b bool) bool { return a || b })

		case compiler.OpEqual:
			b, _ := stack.Pop()
			a, _ := stack.Pop()
			eq := value.Equal(heap, heap.Peek(a), heap.Peek(b))
			heap.Release(a)
			heap.Release(b)
			stack.Push(value.Encode(heap, value.BoolOf(eq)))
		case compiler.OpNotEqual:
			b, _ := stack.Pop()
			a, _ := stack.Pop()
			eq := value.Equal(heap, heap.Peek(a), heap.Peek(b))
			heap.Release(a)
			heap.Release(b)
			stack.Push(value.Encode(heap, value.BoolOf(!eq)))
		case compiler.OpGreaterThan:
			vm.compareNumbers(&stack, func(x, y float64) bool { return x > y })
		case compiler.OpLessThan:
			vm.compareNumbers(&stack, func(x, y float64) bool { return x < y })
		case compiler.OpGreaterEqualThan:
			vm.compareNumbers(&stack, func(x, y float64) bool { return x >= y })
		case compiler.OpLessEqualThan:
			vm.compareNumbers(&stack, func(x, y float64) bool { return x <= y })

		case compiler.OpNot:
			v, _ := stack.Pop()
			result := value.BoolOf(!value.IsTrue(heap.Peek(v)))
			heap.Release(v)
			stack.Push(value.Encode(heap, result))

		case compiler.OpIncrement:
			vm.step(&stack, 1)
		case compiler.OpDecrement:
			vm.step(&stack, -1)

		case compiler.OpNativeCall:
			slot := int(instructions[ip+1])
			argc := int(instructions[ip+2])
			result, err := vm.callSlot(st, memory, slot, argc, &stack)
			if err != nil {
				return 0, err
			}
			stack.Push(result)

		case compiler.OpCallMethod:
			nameSlot := int(instructions[ip+1])
			argc := int(instructions[ip+2])
			result, err := vm.callMethod(memory, nameSlot, argc, &stack)
			if err != nil {
				return 0, err
			}
			stack.Push(result)

		case compiler.OpInitList:
			n := int(instructions[ip+1])
			items := make([]value.VmObject, n)
			for i := n - 1; i >= 0; i-- {
				v, _ := stack.Pop()
				items[i] = v
			}
			stack.Push(value.Encode(heap, value.ListOf(items)))

		case compiler.OpInitDict:
			n := int(instructions[ip+1])
			m := make(map[string]value.VmObject, n)
			for i := 0; i < n; i++ {
				v, _ := stack.Pop()
				k, _ := stack.Pop()
				key := heap.Peek(k)
				m[key.Text] = v
				heap.Release(k)
			}
			stack.Push(value.Encode(heap, value.DictOf(m)))

		case compiler.OpGetItem:
			idx, _ := stack.Pop()
			obj, _ := stack.Pop()
			result := vm.getItem(heap, obj, idx)
			heap.Release(obj)
			heap.Release(idx)
			stack.Push(result)

		case compiler.OpSetItem:
			val, _ := stack.Pop()
			idx, _ := stack.Pop()
			obj, _ := stack.Pop()
			vm.setItem(heap, obj, idx, val)
			heap.Release(obj)
			heap.Release(idx)
			stack.Push(val)

		case compiler.OpCompare:
			v, _ := stack.Pop()
			cond := value.IsTrue(heap.Peek(v))
			heap.Release(v)
			if !cond {
				ip = ip + 1 + readOffset(instructions, ip+1)
				jumped = true
			}

		case compiler.OpJump:
			ip = ip + 1 + readOffset(instructions, ip+1)
			jumped = true

		case compiler.OpPop:
			v, _ := stack.Pop()
			heap.Release(v)

		default:
			return 0, RuntimeError{Message: fmt.Sprintf("unhandled opcode %s at ip %d", def.Name, ip)}
		}

		if !jumped {
			ip = next
		}
	}

	if v, ok := stack.Pop(); ok {
		return v, nil
	}
	return value.Encode(heap, value.Empty), nil
}

func readOffset(instructions []byte, pos int) int {
	return int(int16(binary.LittleEndian.Uint16(instructions[pos : pos+2])))
}

func (vm *VM) binaryArith(stack *Stack, f func(a, b value.Primative) value.Primative) {
	heap := vm.ctx.Heap
	b, _ := stack.Pop()
	a, _ := stack.Pop()
	result := f(heap.Peek(a), heap.Peek(b))
	heap.Release(a)
	heap.Release(b)
	stack.Push(value.Encode(heap, result))
}

func (vm *VM) binaryBool(stack *Stack, f func(a, b bool) bool) {
	heap := vm.ctx.Heap
	b, _ := stack.Pop()
	a, _ := stack.Pop()
	result := f(value.IsTrue(heap.Peek(a)), value.IsTrue(heap.Peek(b)))
	heap.Release(a)
	heap.Release(b)
	stack.Push(value.Encode(heap, value.BoolOf(result)))
}

func (vm *VM) compareNumbers(stack *Stack, cmp func(x, y float64) bool) {
	heap := vm.ctx.Heap
	b, _ := stack.Pop()
	a, _ := stack.Pop()
	pa, pb := heap.Peek(a), heap.Peek(b)
	result := pa.Kind == value.KindNumber && pb.Kind == value.KindNumber && cmp(pa.Number, pb.Number)
	heap.Release(a)
	heap.Release(b)
	stack.Push(value.Encode(heap, value.BoolOf(result)))
}

func (vm *VM) step(stack *Stack, delta float64) {
	heap := vm.ctx.Heap
	v, _ := stack.Pop()
	p := heap.Peek(v)
	var result value.Primative
	if p.Kind == value.KindNumber {
		result = value.NumberOf(p.Number + delta)
	} else {
		result = value.Empty
	}
	heap.Release(v)
	stack.Push(value.Encode(heap, result))
}

func (vm *VM) getItem(heap *value.Heap, obj, idx value.VmObject) value.VmObject {
	objPrim := heap.Peek(obj)
	idxPrim := heap.Peek(idx)
	switch objPrim.Kind {
	case value.KindList:
		if idxPrim.Kind != value.KindNumber {
			return value.Encode(heap, value.Empty)
		}
		i := int(idxPrim.Number)
		if i < 0 || i >= len(objPrim.List) {
			return value.Encode(heap, value.Empty)
		}
		result := objPrim.List[i]
		heap.Retain(result)
		return result
	case value.KindDict:
		if idxPrim.Kind != value.KindText {
			return value.Encode(heap, value.Empty)
		}
		v, ok := objPrim.Dict[idxPrim.Text]
		if !ok {
			return value.Encode(heap, value.Empty)
		}
		heap.Retain(v)
		return v
	default:
		return value.Encode(heap, value.Empty)
	}
}

// setItem mutates obj's List/Dict in place. It relies on Heap.Peek's
// value-copy of Primative still sharing List's backing array and Dict's
// map with the heap-resident original, so no re-box is needed afterward.
func (vm *VM) setItem(heap *value.Heap, obj, idx, val value.VmObject) {
	objPrim := heap.Peek(obj)
	idxPrim := heap.Peek(idx)
	switch objPrim.Kind {
	case value.KindList:
		if idxPrim.Kind != value.KindNumber {
			return
		}
		i := int(idxPrim.Number)
		if i < 0 || i >= len(objPrim.List) {
			return
		}
		heap.Release(objPrim.List[i])
		objPrim.List[i] = val
		heap.Retain(val)
	case value.KindDict:
		if idxPrim.Kind != value.KindText {
			return
		}
		if old, ok := objPrim.Dict[idxPrim.Text]; ok {
			heap.Release(old)
		}
		objPrim.Dict[idxPrim.Text] = val
		heap.Retain(val)
	}
}

// callSlot resolves memory[slot] as a callable — native or compiled — pops
// argc arguments off stack in their original left-to-right order, invokes
// it, and returns the pushed result. The arguments' references are
// released once the call returns; the callee is expected to either return
// a fresh value or one it separately retained.
func (vm *VM) callSlot(st *storage.Storage, memory []value.VmObject, slot, argc int, stack *Stack) (value.VmObject, error) {
	heap := vm.ctx.Heap
	args := popArgs(stack, argc)
	fn := heap.Peek(memory[slot])

	var result value.VmObject
	switch fn.Kind {
	case value.KindFuncNative:
		name, _ := st.VariableName(slot)
		out, err := fn.Native(native.FunctionParameter{
			Stack: args, Argc: argc, Name: name,
			Heap: heap, Stdout: vm.ctx.Stdout, Stderr: vm.ctx.Stderr,
		})
		if err != nil {
			releaseAll(heap, args)
			return 0, RuntimeError{Message: err.Error()}
		}
		result = out
	case value.KindFuncCompiled:
		out, err := vm.callCompiled(fn.Compiled, args)
		if err != nil {
			releaseAll(heap, args)
			return 0, err
		}
		result = out
	default:
		result = value.Encode(heap, value.Empty)
	}
	releaseAll(heap, args)
	return result, nil
}

// callCompiled binds proto's parameters into its own storage's memory and
// recurses run over its instructions. The storage is shared across every
// call to this function — including recursive self-calls — so a call in
// progress overwrites the parameter slots a still-running caller is using;
// this is an accepted limitation of tpd's non-reentrant function frames
// (spec's core VM loop has no call-stack primitive of its own).
func (vm *VM) callCompiled(proto *value.FunctionPrototype, args []value.VmObject) (value.VmObject, error) {
	heap := vm.ctx.Heap
	if proto.StorageIndex < 0 || proto.StorageIndex >= len(vm.ctx.FunctionStorages) {
		return value.Encode(heap, value.Empty), nil
	}
	fnStorage := vm.ctx.FunctionStorages[proto.StorageIndex]
	memory := fnStorage.Memory()
	for i, name := range proto.Params {
		if i >= len(args) {
			break
		}
		slot, ok := fnStorage.GetVariable(name)
		if !ok {
			continue
		}
		heap.Release(memory[slot])
		heap.Retain(args[i])
		memory[slot] = args[i]
	}
	return vm.run(fnStorage, proto.Instructions)
}

// callMethod resolves name against the Class Registry slot for the
// receiver's kind. A registered Method always wins regardless of argc; with
// no method, argc==0 reads Properties[name] as a getter and argc==1 writes
// it as a setter — both kind-scoped, not per-instance, state (spec §4.7).
// An unresolved name pushes Empty rather than erroring.
func (vm *VM) callMethod(memory []value.VmObject, nameSlot, argc int, stack *Stack) (value.VmObject, error) {
	heap := vm.ctx.Heap
	rawArgs := popArgs(stack, argc)
	recv, _ := stack.Pop()
	name := heap.Peek(memory[nameSlot]).Text
	recvPrim := heap.Peek(recv)
	desc := vm.ctx.Classes.Get(class.SlotFor(recvPrim.Kind))

	var result value.VmObject
	switch {
	case desc != nil && hasMethod(desc, name):
		args := append([]value.VmObject{recv}, rawArgs...)
		out, err := desc.Methods[name](native.FunctionParameter{
			Stack: args, Argc: len(args), Name: name,
			Heap: heap, Stdout: vm.ctx.Stdout, Stderr: vm.ctx.Stderr,
		})
		if err != nil {
			heap.Release(recv)
			releaseAll(heap, rawArgs)
			return 0, RuntimeError{Message: err.Error()}
		}
		result = out
	case desc != nil && argc == 0:
		if prop, ok := desc.Properties[name]; ok {
			result = value.Encode(heap, prop)
		} else {
			result = value.Encode(heap, value.Empty)
		}
	case desc != nil && argc == 1:
		desc.Properties[name] = heap.Peek(rawArgs[0])
		result = rawArgs[0]
		heap.Retain(result)
	default:
		result = value.Encode(heap, value.Empty)
	}
	heap.Release(recv)
	releaseAll(heap, rawArgs)
	return result, nil
}

func hasMethod(desc *class.Descriptor, name string) bool {
	_, ok := desc.Methods[name]
	return ok
}

// popArgs pops argc values off stack and returns them in their original
// left-to-right push order (deepest argument first), matching
// value.NativeParams.Stack's documented shape.
func popArgs(stack *Stack, argc int) []value.VmObject {
	args := make([]value.VmObject, argc)
	for i := argc - 1; i >= 0; i-- {
		v, _ := stack.Pop()
		args[i] = v
	}
	return args
}

func releaseAll(heap *value.Heap, objs []value.VmObject) {
	for _, o := range objs {
		heap.Release(o)
	}
}
