// Package stdlib installs the small, testable slice of builtins a fresh
// module.Context needs to run anything beyond bare arithmetic: `yazdır`
// and friends as natives, plus Number/Text/List methods on the Class
// Registry. spec.md's Non-goals exclude specifying the full class
// library's surface, not carrying a representative one (SPEC_FULL.md §6).
package stdlib

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"tpd/class"
	"tpd/module"
	"tpd/native"
	"tpd/value"
)

// Register installs every stdlib native and class method into ctx. Each
// builtin except yazdırHata (Turkish only) is registered under both its
// Turkish and English spelling, the
// later registration winning ties (native.Registry.Register's documented
// behaviour) with no observable difference since both point at the same
// implementation.
func Register(ctx *module.Context) {
	ctx.Natives.Register("yazdır", printStdout)
	ctx.Natives.Register("print", printStdout)
	ctx.Natives.Register("yazdırHata", printStderr)

	ctx.Natives.Register("uzunluk", length)
	ctx.Natives.Register("len", length)

	registerClassMethods(ctx)
}

func printStdout(p native.FunctionParameter) (value.VmObject, error) {
	writeJoined(p.Stdout, p.Heap, p.Stack)
	return value.Encode(p.Heap, value.Empty), nil
}

func printStderr(p native.FunctionParameter) (value.VmObject, error) {
	writeJoined(p.Stderr, p.Heap, p.Stack)
	return value.Encode(p.Heap, value.Empty), nil
}

func writeJoined(w io.Writer, heap *value.Heap, args []value.VmObject) {
	if w == nil {
		return
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = displayText(heap.Peek(a))
	}
	fmt.Fprintln(w, strings.Join(parts, " "))
}

func displayText(p value.Primative) string {
	switch p.Kind {
	case value.KindText:
		return p.Text
	case value.KindNumber:
		return strconv.FormatFloat(p.Number, 'g', -1, 64)
	case value.KindBool:
		if p.Bool {
			return "doğru"
		}
		return "yanlış"
	case value.KindEmpty:
		return "yok"
	default:
		return p.Kind.String()
	}
}

func length(p native.FunctionParameter) (value.VmObject, error) {
	recv := p.Heap.Peek(p.Arg(0))
	var n int
	switch recv.Kind {
	case value.KindText:
		n = len([]rune(recv.Text))
	case value.KindList:
		n = len(recv.List)
	case value.KindDict:
		n = len(recv.Dict)
	default:
		return value.Encode(p.Heap, value.Empty), nil
	}
	return value.Encode(p.Heap, value.NumberOf(float64(n))), nil
}

func registerClassMethods(ctx *module.Context) {
	text := ctx.Classes.Get(class.SlotText)
	text.Methods["büyükHarf"] = upperMethod
	text.Methods["upper"] = upperMethod
	text.Methods["küçükHarf"] = lowerMethod
	text.Methods["lower"] = lowerMethod
	text.Methods["parçala"] = splitMethod
	text.Methods["split"] = splitMethod

	list := ctx.Classes.Get(class.SlotList)
	list.Methods["ekle"] = appendMethod
	list.Methods["append"] = appendMethod
	list.Methods["sırala"] = sortMethod
	list.Methods["sort"] = sortMethod

	num := ctx.Classes.Get(class.SlotNumber)
	num.Methods["yuvarla"] = roundMethod
	num.Methods["round"] = roundMethod
	num.Methods["taban"] = floorMethod
	num.Methods["floor"] = floorMethod
	num.Methods["tavan"] = ceilMethod
	num.Methods["ceil"] = ceilMethod
}

func upperMethod(p native.FunctionParameter) (value.VmObject, error) {
	recv := p.Heap.Peek(p.Arg(0))
	if recv.Kind != value.KindText {
		return value.Encode(p.Heap, value.Empty), nil
	}
	return value.Encode(p.Heap, value.TextOf(strings.ToUpper(recv.Text))), nil
}

func lowerMethod(p native.FunctionParameter) (value.VmObject, error) {
	recv := p.Heap.Peek(p.Arg(0))
	if recv.Kind != value.KindText {
		return value.Encode(p.Heap, value.Empty), nil
	}
	return value.Encode(p.Heap, value.TextOf(strings.ToLower(recv.Text))), nil
}

// splitMethod splits the receiver on its single argument, defaulting to a
// single space if no separator is given.
func splitMethod(p native.FunctionParameter) (value.VmObject, error) {
	recv := p.Heap.Peek(p.Arg(0))
	if recv.Kind != value.KindText {
		return value.Encode(p.Heap, value.Empty), nil
	}
	sep := " "
	if p.Argc > 1 {
		if s := p.Heap.Peek(p.Arg(1)); s.Kind == value.KindText {
			sep = s.Text
		}
	}
	parts := strings.Split(recv.Text, sep)
	items := make([]value.VmObject, len(parts))
	for i, part := range parts {
		items[i] = value.Encode(p.Heap, value.TextOf(part))
	}
	return value.Encode(p.Heap, value.ListOf(items)), nil
}

// appendMethod grows the receiving List in place, explicitly writing the
// (possibly reallocated) backing slice back onto the Heap slot — unlike a
// plain element mutation, append can outgrow the slice Peek handed back,
// so the shared-backing-array trick GetItem/SetItem rely on isn't enough
// here.
func appendMethod(p native.FunctionParameter) (value.VmObject, error) {
	recvObj := p.Arg(0)
	recv := p.Heap.Peek(recvObj)
	if recv.Kind != value.KindList {
		return value.Encode(p.Heap, value.Empty), nil
	}
	for i := 1; i < p.Argc; i++ {
		v := p.Arg(i)
		p.Heap.Retain(v)
		recv.List = append(recv.List, v)
	}
	p.Heap.Replace(recvObj, recv)
	p.Heap.Retain(recvObj)
	return recvObj, nil
}

// sortMethod reorders the receiving List in place by Number or Text
// ordering (whichever the elements are). Two elements of different kinds,
// or of kinds other than Number and Text, compare as equal, so in a list
// that mixes kinds only neighbouring runs of one kind are reordered.
func sortMethod(p native.FunctionParameter) (value.VmObject, error) {
	recvObj := p.Arg(0)
	recv := p.Heap.Peek(recvObj)
	if recv.Kind != value.KindList {
		return value.Encode(p.Heap, value.Empty), nil
	}
	items := recv.List
	sort.SliceStable(items, func(i, j int) bool {
		a := p.Heap.Peek(items[i])
		b := p.Heap.Peek(items[j])
		if a.Kind == value.KindNumber && b.Kind == value.KindNumber {
			return a.Number < b.Number
		}
		if a.Kind == value.KindText && b.Kind == value.KindText {
			return a.Text < b.Text
		}
		return false
	})
	p.Heap.Retain(recvObj)
	return recvObj, nil
}

func roundMethod(p native.FunctionParameter) (value.VmObject, error) {
	return numberMethod(p, math.Round)
}

func floorMethod(p native.FunctionParameter) (value.VmObject, error) {
	return numberMethod(p, math.Floor)
}

func ceilMethod(p native.FunctionParameter) (value.VmObject, error) {
	return numberMethod(p, math.Ceil)
}

func numberMethod(p native.FunctionParameter, f func(float64) float64) (value.VmObject, error) {
	recv := p.Heap.Peek(p.Arg(0))
	if recv.Kind != value.KindNumber {
		return value.Encode(p.Heap, value.Empty), nil
	}
	return value.Encode(p.Heap, value.NumberOf(f(recv.Number))), nil
}
