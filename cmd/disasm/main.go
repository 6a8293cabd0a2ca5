// Command disasm renders a wudoovm bytecode file back to assembly-like
// text, either as round-trippable plain text or as an aligned table.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atriel/wudoovm/pkg/bytecode"
)

var table bool

var rootCmd = &cobra.Command{
	Use:           "disasm <bytecode-file>",
	Short:         "Disassemble a wudoovm bytecode file",
	Args:          cobra.ExactArgs(1),
	RunE:          runDisasm,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().BoolVar(&table, "table", false, "render as an aligned table instead of plain text")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDisasm(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("fatal: opening %s: %w", path, err)
	}
	defer f.Close()

	file, err := bytecode.ReadFile(f)
	if err != nil {
		return fmt.Errorf("fatal: %w", err)
	}

	var out string
	if table {
		out, err = bytecode.DisassembleTable(file.Code)
	} else {
		out, err = bytecode.Disassemble(file.Code)
	}
	if err != nil {
		return fmt.Errorf("fatal: %w", err)
	}

	fmt.Fprint(os.Stdout, out)
	return nil
}
