package value

import (
	"math"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := NewHeap()

	cases := []Primative{
		Empty,
		BoolOf(true),
		BoolOf(false),
		NumberOf(0),
		NumberOf(-42.5),
		NumberOf(math.Inf(1)),
		NumberOf(math.NaN()),
		TextOf("merhaba"),
		AtomOf(0xDEADBEEF),
	}

	for _, want := range cases {
		obj := Encode(h, want)
		got := Decode(h, obj)
		if got.Kind != want.Kind {
			t.Fatalf("Decode(Encode(%v)).Kind = %v, want %v", want, got.Kind, want.Kind)
		}
		switch want.Kind {
		case KindNumber:
			if isNaN(want.Number) {
				if !isNaN(got.Number) {
					t.Fatalf("NaN did not round-trip: got %v", got.Number)
				}
				continue
			}
			if got.Number != want.Number {
				t.Fatalf("Number round-trip mismatch: got %v want %v", got.Number, want.Number)
			}
		case KindText:
			if got.Text != want.Text {
				t.Fatalf("Text round-trip mismatch: got %q want %q", got.Text, want.Text)
			}
		case KindAtom:
			if got.Atom != want.Atom {
				t.Fatalf("Atom round-trip mismatch: got %v want %v", got.Atom, want.Atom)
			}
		case KindBool:
			if got.Bool != want.Bool {
				t.Fatalf("Bool round-trip mismatch: got %v want %v", got.Bool, want.Bool)
			}
		}
	}
}

func TestNumberNeverMistakenForPointer(t *testing.T) {
	h := NewHeap()
	obj := Encode(h, NumberOf(math.NaN()))
	if obj.IsPointer() {
		t.Fatal("a boxed NaN number must not be classified as a heap pointer")
	}
}

func TestEqualNaNIsTrue(t *testing.T) {
	h := NewHeap()
	if !Equal(h, NumberOf(math.NaN()), NumberOf(math.NaN())) {
		t.Fatal("tpd equality must treat NaN as equal to NaN")
	}
}

func TestIsTrue(t *testing.T) {
	truthy := []Primative{NumberOf(1), TextOf("x"), BoolOf(true), ListOf(nil)}
	for _, p := range truthy {
		if !IsTrue(p) {
			t.Errorf("%v should be truthy", p)
		}
	}
	falsy := []Primative{Empty, BoolOf(false), NumberOf(0), NumberOf(-1), TextOf("")}
	for _, p := range falsy {
		if IsTrue(p) {
			t.Errorf("%v should be falsy", p)
		}
	}
}

func TestArithmeticCoercion(t *testing.T) {
	h := NewHeap()

	if got := Add(h, TextOf("a"), TextOf("b")); got.Text != "ab" {
		t.Errorf("Text+Text = %v, want concatenation", got)
	}
	if got := Add(h, TextOf("a"), NumberOf(1)); got.Kind != KindEmpty {
		t.Errorf("Text+Number should silently coerce to Empty, got %v", got)
	}
	if got := Mul(TextOf("ab"), NumberOf(3)); got.Text != "ababab" {
		t.Errorf("Text*Number = %v, want 3x repeat", got)
	}
	if got := Mul(TextOf("ab"), NumberOf(-1)); got.Text != "" {
		t.Errorf("Text*negative should yield empty string, got %q", got.Text)
	}
	if got := Div(NumberOf(1), NumberOf(0)); got.Kind != KindEmpty {
		t.Errorf("division by zero should yield Empty, got %v", got)
	}
}

func TestHeapRetainRelease(t *testing.T) {
	h := NewHeap()
	obj := Encode(h, TextOf("owned"))

	h.Retain(obj)
	h.Release(obj)
	still := h.Peek(obj)
	if still.Kind != KindText || still.Text != "owned" {
		t.Fatalf("value should survive a balanced retain/release, got %v", still)
	}

	h.Release(obj)
	freed := h.Peek(obj)
	if freed.Kind != KindEmpty {
		t.Fatalf("slot should be freed once refcount drops to zero, got %v", freed)
	}
}
