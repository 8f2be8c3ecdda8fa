package class

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tpd/native"
	"tpd/value"
)

func TestSentinelSlotsAreNoClass(t *testing.T) {
	r := NewRegistry()
	for slot := 3; slot < Size; slot++ {
		desc := r.Get(slot)
		if assert.NotNil(t, desc, "slot %d", slot) {
			assert.Equal(t, NoClassName, desc.Name, "slot %d", slot)
		}
	}
}

func TestRealDescriptorsNamed(t *testing.T) {
	r := NewRegistry()
	cases := map[int]string{SlotNumber: "Number", SlotText: "Text", SlotList: "List"}
	for slot, want := range cases {
		assert.Equal(t, want, r.Get(slot).Name, "slot %d", slot)
	}
}

func TestMethodLookupIsExactName(t *testing.T) {
	r := NewRegistry()
	r.Get(SlotText).Methods["büyükHarf"] = func(p native.FunctionParameter) (value.VmObject, error) {
		return value.Encode(p.Heap, value.TextOf("OK")), nil
	}

	fn, ok := r.Method(value.KindText, "büyükHarf")
	assert.True(t, ok, "expected to find the registered method")
	h := value.NewHeap()
	out, _ := fn(native.FunctionParameter{Heap: h})
	assert.Equal(t, "OK", h.Peek(out).Text)

	_, ok = r.Method(value.KindText, "missing")
	assert.False(t, ok, "expected no match for an unregistered method name")
}

func TestGetOutOfRangeReturnsNil(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get(-1))
	assert.Nil(t, r.Get(Size))
}
