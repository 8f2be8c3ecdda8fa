package value

import "math"

// VmObject is a NaN-boxed 64-bit runtime word: every tpd value, whatever its
// Kind, is represented by one of these on the stack, in a memory slot, or in
// a constant pool. The encoding follows the original interpreter's scheme
// exactly (see karamellib's types.rs): a plain float64 bit pattern doubles
// as a Number, and the quiet-NaN space is carved up to also carry Empty,
// Bool, and heap pointers.
type VmObject uint64

const (
	// qnan is the bit pattern shared by every non-Number VmObject: IEEE-754
	// exponent all ones plus the top two mantissa bits set. A genuine
	// float64 NaN produced by ordinary arithmetic (Go's math.NaN(), whose
	// canonical bit pattern sets only the top mantissa bit) does not match
	// this mask, so it still round-trips as KindNumber.
	qnan = 0x7FFC000000000000

	// pointerFlag marks a VmObject whose low 48 bits are a Heap slot index
	// rather than a singleton tag.
	pointerFlag = 0x8000000000000000

	// pointerMask isolates the low 48 bits used for the Heap slot index.
	pointerMask = 0x0000FFFFFFFFFFFF

	tagEmpty = 0
	tagFalse = 1
	tagTrue  = 2
)

// Encode packs a Primative into a VmObject. Empty, Bool, and Number values
// are packed directly into the bit pattern; every other Kind is boxed onto
// h and referenced by pointer, starting life with one strong reference (the
// returned VmObject itself).
func Encode(h *Heap, p Primative) VmObject {
	switch p.Kind {
	case KindEmpty:
		return VmObject(qnan | tagEmpty)
	case KindBool:
		if p.Bool {
			return VmObject(qnan | tagTrue)
		}
		return VmObject(qnan | tagFalse)
	case KindNumber:
		return VmObject(math.Float64bits(p.Number))
	default:
		idx := h.box(p)
		return VmObject(qnan | pointerFlag | (uint64(idx) & pointerMask))
	}
}

// Decode unpacks a VmObject back into its Primative. For a pointer-boxed
// value this clones a strong reference on h (Invariant E-1: decoding reads
// a value without consuming the reference that produced it) — callers that
// are done with the result and do not store it anywhere must call
// h.Release on the same VmObject to balance it.
func Decode(h *Heap, obj VmObject) Primative {
	bits := uint64(obj)

	if bits&qnan != qnan {
		return NumberOf(math.Float64frombits(bits))
	}
	switch bits {
	case qnan | tagEmpty:
		return Empty
	case qnan | tagFalse:
		return BoolOf(false)
	case qnan | tagTrue:
		return BoolOf(true)
	}
	if bits&pointerFlag != 0 {
		idx := int(bits & pointerMask)
		return h.retainAndCopy(idx)
	}
	return Empty
}

// IsPointer reports whether obj addresses a Heap slot rather than packing
// its value directly.
func (obj VmObject) IsPointer() bool {
	bits := uint64(obj)
	return bits&qnan == qnan && bits&pointerFlag != 0
}

func (obj VmObject) heapIndex() int {
	return int(uint64(obj) & pointerMask)
}
