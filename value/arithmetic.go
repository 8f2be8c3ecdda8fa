package value

import (
	"math"
	"strings"
)

// Add implements `+`: Number+Number adds, Text+Text concatenates, and every
// other combination of kinds silently yields Empty rather than raising an
// error — tpd's arithmetic opcodes never abort the VM on a type mismatch,
// per spec §4.1 and the original VmOpCode::Addition arm.
func Add(h *Heap, a, b Primative) Primative {
	switch {
	case a.Kind == KindNumber && b.Kind == KindNumber:
		return NumberOf(a.Number + b.Number)
	case a.Kind == KindText && b.Kind == KindText:
		return TextOf(a.Text + b.Text)
	default:
		return Empty
	}
}

// Sub implements `-`: Number-Number only; any other pairing is Empty.
func Sub(a, b Primative) Primative {
	if a.Kind == KindNumber && b.Kind == KindNumber {
		return NumberOf(a.Number - b.Number)
	}
	return Empty
}

// Mul implements `*`: Number*Number multiplies; Text*Number (in either
// order) repeats the text floor(n) times, with a negative or non-finite
// repeat count yielding the empty string rather than Empty, matching the
// original's buildin string-repeat helper. Any other pairing is Empty.
func Mul(a, b Primative) Primative {
	switch {
	case a.Kind == KindNumber && b.Kind == KindNumber:
		return NumberOf(a.Number * b.Number)
	case a.Kind == KindText && b.Kind == KindNumber:
		return TextOf(repeatText(a.Text, b.Number))
	case a.Kind == KindNumber && b.Kind == KindText:
		return TextOf(repeatText(b.Text, a.Number))
	default:
		return Empty
	}
}

func repeatText(s string, n float64) string {
	if isNaN(n) || n <= 0 || math.IsInf(n, 1) {
		return ""
	}
	count := int(n)
	return strings.Repeat(s, count)
}

// Div implements `/`: Number/Number divides, with division by zero yielding
// Empty instead of an infinite or NaN Number — the VM never lets a stray
// division abort execution. Any other pairing is Empty.
func Div(a, b Primative) Primative {
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return Empty
	}
	if b.Number == 0 {
		return Empty
	}
	return NumberOf(a.Number / b.Number)
}

// Mod implements `%`: Number%Number only, with a zero divisor yielding
// Empty for the same reason Div does.
func Mod(a, b Primative) Primative {
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return Empty
	}
	if b.Number == 0 {
		return Empty
	}
	return NumberOf(math.Mod(a.Number, b.Number))
}
