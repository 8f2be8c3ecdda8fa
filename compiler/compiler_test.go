package compiler

import (
	"testing"

	"tpd/module"
)

// sourceSet backs a module.Context.LoadSource with an in-memory map keyed
// by dotted path, so tests never touch the filesystem.
func sourceSet(sources map[string]string) module.LoadSourceFunc {
	return func(path []string) (string, error) {
		src, ok := sources[module.JoinPath(path)]
		if !ok {
			return "", errUnresolvedSymbol(module.JoinPath(path))
		}
		return src, nil
	}
}

func compileSource(t *testing.T, src string) (*module.Module, *module.Context) {
	t.Helper()
	ctx := module.NewContext("")
	ctx.LoadSource = sourceSet(map[string]string{"main": src})

	m, err := New(ctx).CompileEntry([]string{"main"})
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	if !m.Compiled {
		t.Fatal("expected module to be marked Compiled")
	}
	return m, ctx
}

func TestCompileArithmeticExpressionStatement(t *testing.T) {
	m, _ := compileSource(t, "1 + 2;")
	if _, err := Disassemble(m.Instructions); err != nil {
		t.Fatalf("bytecode did not disassemble cleanly: %v", err)
	}
}

func TestCompileAssignmentAndSymbol(t *testing.T) {
	m, _ := compileSource(t, "x = 5; y = x + 1;")
	if _, ok := m.Storage.GetVariable("x"); !ok {
		t.Fatal("expected 'x' to be a declared variable")
	}
	if _, ok := m.Storage.GetVariable("y"); !ok {
		t.Fatal("expected 'y' to be a declared variable")
	}
}

func TestCompileIfElseBalancesJumps(t *testing.T) {
	m, _ := compileSource(t, `
eğer (1 > 0) {
	x = 1;
} yada eğer (1 < 0) {
	x = 2;
} yada {
	x = 3;
}
`)
	if _, err := Disassemble(m.Instructions); err != nil {
		t.Fatalf("bytecode did not disassemble cleanly: %v", err)
	}
}

func TestCompileLoopWithBreakAndContinue(t *testing.T) {
	m, _ := compileSource(t, `
i = 0;
döngü {
	i = i + 1;
	eğer (i > 10) {
		break;
	}
	continue;
}
`)
	if _, err := Disassemble(m.Instructions); err != nil {
		t.Fatalf("bytecode did not disassemble cleanly: %v", err)
	}
}

func TestCompileFunctionDefinitionAndRecursiveCall(t *testing.T) {
	m, ctx := compileSource(t, `
fonk faktöriyel(n) {
	eğer (n < 2) {
		döndür 1;
	}
	döndür n * faktöriyel(n - 1);
}
sonuç = faktöriyel(5);
`)
	slot, ok := m.Storage.GetVariable("faktöriyel")
	if !ok {
		t.Fatal("expected 'faktöriyel' to be bound in the module scope")
	}
	_ = slot
	if len(ctx.FunctionStorages) == 0 {
		t.Fatal("expected the function's own storage to be registered")
	}
}

func TestBreakOutsideLoopIsASemanticError(t *testing.T) {
	ctx := module.NewContext("")
	ctx.LoadSource = sourceSet(map[string]string{"main": "break;"})

	_, err := New(ctx).CompileEntry([]string{"main"})
	if err == nil {
		t.Fatal("expected an error for break outside a loop")
	}
	if _, ok := err.(SemanticError); !ok {
		t.Fatalf("expected a SemanticError, got %T: %v", err, err)
	}
}

func TestCyclicImportIsRejected(t *testing.T) {
	ctx := module.NewContext("")
	ctx.LoadSource = sourceSet(map[string]string{
		"a": "yükle b;",
		"b": "yükle a;",
	})
	_, err := New(ctx).CompileEntry([]string{"a"})
	if err == nil {
		t.Fatal("expected a cyclic import error")
	}
}

func TestLoadResolvesAndMemoisesDependency(t *testing.T) {
	ctx := module.NewContext("")
	loads := 0
	ctx.LoadSource = func(path []string) (string, error) {
		if module.JoinPath(path) == "shared" {
			loads++
		}
		switch module.JoinPath(path) {
		case "main":
			return "yükle shared; yükle shared;", nil
		case "shared":
			return "x = 1;", nil
		}
		return "", errUnresolvedSymbol(module.JoinPath(path))
	}
	if _, err := New(ctx).CompileEntry([]string{"main"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loads != 1 {
		t.Fatalf("expected 'shared' to be loaded once (structural memoisation), got %d", loads)
	}
}
