// Command asm compiles wudoovm assembly source into a bytecode file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atriel/wudoovm/pkg/assembler"
	"github.com/atriel/wudoovm/pkg/bytecode"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:           "asm <infile> [outfile]",
	Short:         "Assemble wudoovm source into bytecode",
	Args:          cobra.RangeArgs(1, 2),
	RunE:          runAssemble,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().BoolVar(&debug, "debug", false, "trace the emit pass to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAssemble(cmd *cobra.Command, args []string) error {
	infile := args[0]
	outfile := "out.bin"
	if len(args) > 1 {
		outfile = args[1]
	}

	source, err := os.ReadFile(infile)
	if err != nil {
		return fmt.Errorf("fatal: reading %s: %w", infile, err)
	}

	var opts []assembler.Option
	if debug {
		opts = append(opts, assembler.WithTrace(os.Stderr))
	}

	code, offset, err := assembler.Assemble(string(source), opts...)
	if err != nil {
		return err
	}

	out, err := os.Create(outfile)
	if err != nil {
		return fmt.Errorf("fatal: creating %s: %w", outfile, err)
	}
	defer out.Close()

	if err := bytecode.WriteFile(out, offset, code); err != nil {
		return fmt.Errorf("fatal: writing %s: %w", outfile, err)
	}

	return nil
}
