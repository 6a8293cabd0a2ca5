// Command vm loads a wudoovm bytecode file and executes it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atriel/wudoovm/pkg/bytecode"
	"github.com/atriel/wudoovm/pkg/vm"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:           "vm <bytecode-file>",
	Short:         "Run a wudoovm bytecode file",
	Args:          cobra.ExactArgs(1),
	RunE:          runVM,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().BoolVar(&debug, "debug", false, "trace dispatched instructions to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runVM(cmd *cobra.Command, args []string) error {
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

	m := vm.NewVM()
	if debug {
		m.SetTrace(os.Stderr)
	}
	m.Load(file.Code, int(file.ExecutableOffset))

	exitCode, runErr := m.Run()
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
	}
	os.Exit(exitCode)
	return nil
}
