package vm

import (
	"strings"
	"testing"

	"tpd/compiler"
	"tpd/module"
	"tpd/native"
	"tpd/value"
)

func sourceSet(sources map[string]string) module.LoadSourceFunc {
	return func(path []string) (string, error) {
		return sources[module.JoinPath(path)], nil
	}
}

func runSource(t *testing.T, src string, setup func(*module.Context)) (value.VmObject, *module.Context) {
	t.Helper()
	ctx := module.NewContext("")
	ctx.LoadSource = sourceSet(map[string]string{"main": src})
	if setup != nil {
		setup(ctx)
	}

	var result value.VmObject
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("unexpected panic compiling: %v", r)
			}
		}()
		m, err := compiler.New(ctx).CompileEntry([]string{"main"})
		if err != nil {
			t.Fatalf("unexpected compile error: %v", err)
		}
		out, err := New(ctx).RunModule(m)
		if err != nil {
			t.Fatalf("unexpected runtime error: %v", err)
		}
		result = out
	}()
	return result, ctx
}

func TestArithmeticLeavesExpectedNumber(t *testing.T) {
	ctx := module.NewContext("")
	ctx.LoadSource = sourceSet(map[string]string{"main": "döndür 2 + 3 * 4;"})
	m, err := compiler.New(ctx).CompileEntry([]string{"main"})
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	out, err := New(ctx).RunModule(m)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	got := ctx.Heap.Peek(out)
	if got.Kind != value.KindNumber || got.Number != 14 {
		t.Fatalf("expected Number 14, got %+v", got)
	}
}

func TestDivisionByZeroYieldsEmpty(t *testing.T) {
	out, ctx := runSource(t, "döndür 1 / 0;", nil)
	got := ctx.Heap.Peek(out)
	if got.Kind != value.KindEmpty {
		t.Fatalf("expected Empty, got %+v", got)
	}
}

func TestIfElseBranchesCorrectly(t *testing.T) {
	out, ctx := runSource(t, `
eğer (1 > 2) {
	döndür "no";
} yada {
	döndür "yes";
}
`, nil)
	got := ctx.Heap.Peek(out)
	if got.Kind != value.KindText || got.Text != "yes" {
		t.Fatalf("expected Text 'yes', got %+v", got)
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	out, ctx := runSource(t, `
i = 0;
toplam = 0;
kadar (i < 5) {
	toplam = toplam + i;
	i = i + 1;
}
döndür toplam;
`, nil)
	got := ctx.Heap.Peek(out)
	if got.Kind != value.KindNumber || got.Number != 10 {
		t.Fatalf("expected Number 10, got %+v", got)
	}
}

func TestRecursiveFunctionCall(t *testing.T) {
	out, ctx := runSource(t, `
fonk faktöriyel(n) {
	eğer (n < 2) {
		döndür 1;
	}
	döndür n * faktöriyel(n - 1);
}
döndür faktöriyel(5);
`, nil)
	got := ctx.Heap.Peek(out)
	if got.Kind != value.KindNumber || got.Number != 120 {
		t.Fatalf("expected Number 120, got %+v", got)
	}
}

func TestNativeCallBridgesIntoRegisteredFunction(t *testing.T) {
	out, ctx := runSource(t, `döndür uzunluk("merhaba");`, func(ctx *module.Context) {
		ctx.Natives.Register("uzunluk", func(p native.FunctionParameter) (value.VmObject, error) {
			s := p.Heap.Peek(p.Arg(0))
			return value.Encode(p.Heap, value.NumberOf(float64(len(s.Text)))), nil
		})
	})
	got := ctx.Heap.Peek(out)
	if got.Kind != value.KindNumber || got.Number != 7 {
		t.Fatalf("expected Number 7, got %+v", got)
	}
}

func TestStdoutReceivesPrintedOutput(t *testing.T) {
	var buf strings.Builder
	_, ctx := runSource(t, `yazdır("selam");`, func(ctx *module.Context) {
		ctx.Stdout = &buf
		ctx.Natives.Register("yazdır", func(p native.FunctionParameter) (value.VmObject, error) {
			s := p.Heap.Peek(p.Arg(0))
			p.Stdout.Write([]byte(s.Text))
			return value.Encode(p.Heap, value.Empty), nil
		})
	})
	if buf.String() != "selam" {
		t.Fatalf("expected 'selam' written to stdout, got %q", buf.String())
	}
	_ = ctx
}

func TestListIndexAssignmentMutatesInPlace(t *testing.T) {
	out, ctx := runSource(t, `
liste = [1, 2, 3];
liste[1] = 99;
döndür liste[1];
`, nil)
	got := ctx.Heap.Peek(out)
	if got.Kind != value.KindNumber || got.Number != 99 {
		t.Fatalf("expected Number 99, got %+v", got)
	}
}

func TestUnknownOpcodeProducesRuntimeError(t *testing.T) {
	ctx := module.NewContext("")
	ctx.LoadSource = sourceSet(map[string]string{"main": "1;"})
	m, err := compiler.New(ctx).CompileEntry([]string{"main"})
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	m.Instructions = append(m.Instructions, 255)
	if _, err := New(ctx).RunModule(m); err == nil {
		t.Fatal("expected a RuntimeError for an unrecognised opcode")
	}
}
