package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"tpd/compiler"
	"tpd/lexer"
	"tpd/module"
	"tpd/parser"
	"tpd/stdlib"
	"tpd/token"
	"tpd/value"
	"tpd/vm"
)

// replCmd drives an interactive compile-and-run loop over the bytecode
// pipeline, with one module.Context (heap, natives, classes) shared across
// the whole session. Each entry compiles as a module of its own with a
// fresh storage, so a variable bound on one entry is not visible on the
// next.
type replCmd struct {
	diassemble bool
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive tpd session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive REPL.
`
}

func (cmd *replCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.diassemble, "diassemble", false, "print the disassembled bytecode for each compiled line")
}

func (cmd *replCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Println("\nWelcome to tpd!")

	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %s\n", err.Error())
		return subcommands.ExitFailure
	}
	defer rl.Close()

	ctx := module.NewContext("")
	stdlib.Register(ctx)
	machine := vm.New(ctx)

	var buffer string
	line := 0
	for {
		line++
		rl.SetPrompt(promptFor(buffer))
		text, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buffer = ""
			continue
		}
		if errors.Is(err, io.EOF) {
			return subcommands.ExitSuccess
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "💥 %s\n", err.Error())
			return subcommands.ExitFailure
		}

		if buffer == "" && text == "exit" {
			return subcommands.ExitSuccess
		}

		if buffer != "" {
			buffer += "\n"
		}
		buffer += text

		name := fmt.Sprintf("repl%d", line)
		ctx.LoadSource = sourceOf(name, buffer)

		tokens, err := lexer.New(buffer).Scan()
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			buffer = ""
			continue
		}
		if !isInputReady(tokens) {
			continue
		}

		m, err := compiler.New(ctx).CompileEntry([]string{name})
		if err != nil {
			if parseErr, ok := err.(parser.SyntaxError); ok && stillTyping(parseErr, tokens) {
				continue
			}
			fmt.Fprintln(os.Stderr, err.Error())
			buffer = ""
			continue
		}

		if cmd.diassemble {
			if text, err := compiler.Disassemble(m.Instructions); err == nil {
				fmt.Fprintln(os.Stdout, text)
			}
		}

		result, err := machine.RunModule(m)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			buffer = ""
			continue
		}
		fmt.Fprintln(os.Stdout, displayResult(ctx, result))
		buffer = ""
	}
}

// displayResult renders a line's result the way a REPL user expects to read
// it back, rather than the raw NaN-boxed bit pattern fmt would otherwise
// print.
func displayResult(ctx *module.Context, obj value.VmObject) string {
	p := ctx.Heap.Peek(obj)
	switch p.Kind {
	case value.KindText:
		return fmt.Sprintf("%q", p.Text)
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

func promptFor(buffer string) string {
	if buffer == "" {
		return ">>> "
	}
	return "... "
}

func sourceOf(name, src string) module.LoadSourceFunc {
	return func(path []string) (string, error) {
		if module.JoinPath(path) == name {
			return src, nil
		}
		return "", fmt.Errorf("repl: unresolved module %q", module.JoinPath(path))
	}
}

// isInputReady checks for balanced braces and a last token that doesn't
// leave an expression or statement dangling, so a block spanning several
// lines (`eğer (x > 5) {`) doesn't get compiled — and rejected — a line at
// a time.
func isInputReady(tokens []token.Token) bool {
	braceBalance := 0
	for _, tok := range tokens {
		switch tok.TokenType {
		case token.LCUR:
			braceBalance++
		case token.RCUR:
			braceBalance--
		}
	}
	if braceBalance > 0 {
		return false
	}

	last := lastNonEOF(tokens)
	if last == nil {
		return true
	}

	switch last.TokenType {
	case token.ASSIGN,
		token.ADD,
		token.SUB,
		token.MULT,
		token.DIV,
		token.BANG,
		token.EQUAL_EQUAL,
		token.NOT_EQUAL,
		token.LESS,
		token.LESS_EQUAL,
		token.LARGER,
		token.LARGER_EQUAL,
		token.COMMA,
		token.LPA,
		token.LCUR,
		token.IF,
		token.ELSE,
		token.ELIF,
		token.WHILE,
		token.LOOP,
		token.FUNC,
		token.RETURN,
		token.VAR,
		token.AND,
		token.OR:
		return false
	}

	return true
}

func lastNonEOF(tokens []token.Token) *token.Token {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].TokenType != token.EOF {
			return &tokens[i]
		}
	}
	return nil
}

// stillTyping reports whether a syntax error landed exactly on the EOF
// token, the telltale sign the user simply hasn't finished the statement
// yet rather than having written something malformed.
func stillTyping(err parser.SyntaxError, tokens []token.Token) bool {
	if len(tokens) == 0 {
		return false
	}
	eof := tokens[len(tokens)-1]
	return err.Line == eof.Line && err.Column == eof.Column
}
