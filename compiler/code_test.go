package compiler

import "testing"

func TestMakeInstructionSingleByteOperands(t *testing.T) {
	got := MakeInstruction(OpLoad, 5)
	want := []byte{byte(OpLoad), 5}
	if string(got) != string(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMakeInstructionLittleEndianJumpOffset(t *testing.T) {
	got := MakeInstruction(OpJump, 300)
	if len(got) != 3 {
		t.Fatalf("expected 3 bytes, got %d", len(got))
	}
	if got[1] != 0x2C || got[2] != 0x01 {
		t.Fatalf("expected little-endian 300 (0x2C, 0x01), got (%#x, %#x)", got[1], got[2])
	}
}

func TestMakeInstructionNegativeJumpOffset(t *testing.T) {
	got := MakeInstruction(OpJump, -10)
	if len(got) != 3 {
		t.Fatalf("expected 3 bytes, got %d", len(got))
	}
	if got[1] != 0xF6 || got[2] != 0xFF {
		t.Fatalf("expected two's-complement -10 (0xF6, 0xFF), got (%#x, %#x)", got[1], got[2])
	}
}

func TestMakeInstructionNoOperand(t *testing.T) {
	got := MakeInstruction(OpPop)
	if len(got) != 1 || got[0] != byte(OpPop) {
		t.Fatalf("unexpected encoding: %v", got)
	}
}

func TestDisassemble(t *testing.T) {
	instructions := append(MakeInstruction(OpLoad, 1), MakeInstruction(OpJump, 0)...)
	out, err := Disassemble(instructions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "0000 Load 1\n0002 Jump 0\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestGetUnknownOpcode(t *testing.T) {
	if _, err := Get(Opcode(255)); err == nil {
		t.Fatal("expected an error for an undefined opcode")
	}
}
