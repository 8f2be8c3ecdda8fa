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
	"tpd/vm"
)

// runCmd compiles a source file to bytecode and runs it on the VM.
type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Compile and run a tpd source file" }
func (*runCmd) Usage() string {
	return `run <file.tpd>:
  Compile and execute a tpd program.
`
}
func (r *runCmd) SetFlags(f *flag.FlagSet) {}

func (r *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}
	filename := args[0]

	if _, err := os.Stat(filename); err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	ctx := module.NewContext(filepath.Dir(filename))
	stdlib.Register(ctx)

	entry := strings.TrimSuffix(filepath.Base(filename), ".tpd")
	m, err := compiler.New(ctx).CompileEntry([]string{entry})
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Compilation error:\n\t%v\n", err)
		return subcommands.ExitFailure
	}

	if _, err := vm.New(ctx).RunModule(m); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
