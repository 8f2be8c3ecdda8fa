package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"tpd/compiler"
	"tpd/module"
	"tpd/stdlib"
)

type emitBytecodeCmd struct {
	outPath string
}

func (*emitBytecodeCmd) Name() string { return "emit" }
func (*emitBytecodeCmd) Synopsis() string {
	return "Emit the disassembled bytecode for a source file"
}
func (*emitBytecodeCmd) Usage() string {
	return `tpd emit <file.tpd>`
}

func (cmd *emitBytecodeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.outPath, "out", "", "file to write the disassembly to (stdout if empty)")
}

func (cmd *emitBytecodeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}
	filename := args[0]

	if _, err := os.Stat(filename); err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file:\n\t%v\n", err)
		return subcommands.ExitFailure
	}

	ctx := module.NewContext(filepath.Dir(filename))
	stdlib.Register(ctx)

	entry := strings.TrimSuffix(filepath.Base(filename), ".tpd")
	_, err := compiler.New(ctx).CompileEntry([]string{entry})
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Compilation error:\n\t%v\n", err)
		return subcommands.ExitFailure
	}

	var out strings.Builder
	for _, mod := range ctx.Ordered() {
		fmt.Fprintf(&out, "; module %s\n", mod.Name())
		text, err := compiler.Disassemble(mod.Instructions)
		if err != nil {
			fmt.Fprintf(os.Stderr, "💥 Disassemble error:\n\t%v\n", err)
			return subcommands.ExitFailure
		}
		out.WriteString(text)
		out.WriteString("\n")
	}

	if cmd.outPath == "" {
		fmt.Fprint(os.Stdout, out.String())
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(cmd.outPath, []byte(out.String()), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to write disassembly: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
