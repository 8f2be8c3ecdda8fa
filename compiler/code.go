package compiler

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Opcode identifies one bytecode instruction, per spec §4.4.
type Opcode byte

const (
	// Load pushes memory[slot]. Store pops the top into memory[slot].
	// CopyToStore copies the top into memory[slot] without popping.
	// FastStore moves memory[src] into memory[dst] directly.
	OpLoad Opcode = iota
	OpStore
	OpCopyToStore
	OpFastStore

	// OpDublicate pushes a copy of the top of the stack.
	OpDublicate

	// Arithmetic: pop two, push the result (spec §4.1 coercion rules).
	// OpModulo is a SUPPLEMENT beyond the core table — tpd lexes `%` (§6)
	// and needs an opcode to evaluate it; it follows the same Number-only,
	// divide-by-zero-to-Empty shape as OpDivision.
	OpAddition
	OpSubraction
	OpMultiply
	OpDivision
	OpModulo

	// Logical and comparison: pop two, push a Bool.
	OpAnd
	OpOr
	OpEqual
	OpNotEqual
	OpGreaterThan
	OpLessThan
	OpGreaterEqualThan
	OpLessEqualThan

	// OpNot replaces the top with the boolean negation of its truthiness.
	OpNot

	// OpIncrement/OpDecrement replace the top with ±1 if Number, else Empty.
	OpIncrement
	OpDecrement

	// OpNativeCall invokes the callable (native or compiled) stored at
	// memory[fn_slot] with argc arguments already pushed on the stack.
	OpNativeCall

	// OpCallMethod is a SUPPLEMENT opcode: it pops argc arguments then the
	// receiver, resolves name_slot's constant text against the Class
	// Registry keyed by the receiver's kind, invokes the method, and
	// pushes the result. It compiles a MemberAccess used as a call's
	// callee (spec §4.7's method dispatch has no opcode of its own in the
	// core table, which predates `.` as a first-class call form).
	OpCallMethod

	// OpInitList pops n values and pushes a List. OpInitDict pops 2n
	// values (key, value pairs) and pushes a Dict.
	OpInitList
	OpInitDict

	// OpGetItem pops an index, pops an object, pushes object[index].
	OpGetItem

	// OpSetItem is a SUPPLEMENT opcode: pops a value, an index, then an
	// object, mutates object[index] = value in place for a List or Dict,
	// and pushes value back. It compiles `object[index] = expr`, the
	// mutating counterpart to the read-only OpGetItem the core table has.
	OpSetItem

	// OpCompare pops the top; if truthy, execution falls through; else pc
	// advances by the (little-endian, relative-to-first-operand-byte)
	// offset. OpJump advances pc by its offset unconditionally.
	OpCompare
	OpJump

	// OpPop is a SUPPLEMENT opcode: discards the top of stack with no
	// further effect. Emitted after every expression-statement whose
	// value is unused, so the operand stack does not grow across
	// statements the way an unbounded "leave it on the stack" VM would.
	OpPop

	// OpNone is a no-op.
	OpNone
)

// OpCodeDefinition names an opcode and the byte width of each of its
// operands, in order.
type OpCodeDefinition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*OpCodeDefinition{
	OpLoad:             {"Load", []int{1}},
	OpStore:            {"Store", []int{1}},
	OpCopyToStore:      {"CopyToStore", []int{1}},
	OpFastStore:        {"FastStore", []int{1, 1}},
	OpDublicate:        {"Dublicate", nil},
	OpAddition:         {"Addition", nil},
	OpSubraction:       {"Subraction", nil},
	OpMultiply:         {"Multiply", nil},
	OpDivision:         {"Division", nil},
	OpModulo:           {"Modulo", nil},
	OpAnd:              {"And", nil},
	OpOr:               {"Or", nil},
	OpEqual:            {"Equal", nil},
	OpNotEqual:         {"NotEqual", nil},
	OpGreaterThan:      {"GreaterThan", nil},
	OpLessThan:         {"LessThan", nil},
	OpGreaterEqualThan: {"GreaterEqualThan", nil},
	OpLessEqualThan:    {"LessEqualThan", nil},
	OpNot:              {"Not", nil},
	OpIncrement:        {"Increment", nil},
	OpDecrement:        {"Decrement", nil},
	OpNativeCall:       {"NativeCall", []int{1, 1}},
	OpCallMethod:       {"CallMethod", []int{1, 1}},
	OpInitList:         {"InitList", []int{1}},
	OpInitDict:         {"InitDict", []int{1}},
	OpGetItem:          {"GetItem", nil},
	OpSetItem:          {"SetItem", nil},
	OpCompare:          {"Compare", []int{2}},
	OpJump:             {"Jump", []int{2}},
	OpPop:              {"Pop", nil},
	OpNone:             {"None", nil},
}

// Get returns op's definition, or an error if op is not a known opcode.
func Get(op Opcode) (*OpCodeDefinition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("opcode: %d undefined", op)
	}
	return def, nil
}

// width returns the total instruction length (opcode byte plus operands)
// for op.
func width(op Opcode) int {
	def, err := Get(op)
	if err != nil {
		return 1
	}
	total := 1
	for _, w := range def.OperandWidths {
		total += w
	}
	return total
}

// MakeInstruction assembles an opcode and its operands into a byte slice.
// Single-byte operands are truncated to uint8; two-byte operands (only
// Compare/Jump's relative offsets) are encoded little-endian, per spec
// §4.4's explicit operand-endianness rule — this is the one place tpd
// departs from the teacher's all-big-endian encoding.
func MakeInstruction(op Opcode, operands ...int) []byte {
	def, err := Get(op)
	if err != nil {
		return []byte{}
	}

	length := 1
	for _, w := range def.OperandWidths {
		length += w
	}
	instruction := make([]byte, length)
	instruction[0] = byte(op)

	offset := 1
	for i, w := range def.OperandWidths {
		operand := 0
		if i < len(operands) {
			operand = operands[i]
		}
		switch w {
		case 1:
			instruction[offset] = byte(operand)
		case 2:
			binary.LittleEndian.PutUint16(instruction[offset:], uint16(operand))
		}
		offset += w
	}
	return instruction
}

// Disassemble renders a textual listing of instructions, one line per
// decoded instruction — used by the `emit` CLI subcommand and tests.
func Disassemble(instructions []byte) (string, error) {
	var b strings.Builder
	for ip := 0; ip < len(instructions); {
		op := Opcode(instructions[ip])
		def, err := Get(op)
		if err != nil {
			return "", fmt.Errorf("at offset %d: %w", ip, err)
		}

		fmt.Fprintf(&b, "%04d %s", ip, def.Name)
		operandOffset := ip + 1
		for _, w := range def.OperandWidths {
			switch w {
			case 1:
				fmt.Fprintf(&b, " %d", instructions[operandOffset])
			case 2:
				fmt.Fprintf(&b, " %d", binary.LittleEndian.Uint16(instructions[operandOffset:]))
			}
			operandOffset += w
		}
		b.WriteByte('\n')
		ip += width(op)
	}
	return b.String(), nil
}
