// Package repl provides an interactive Read-Eval-Print Loop for wudoovm
// assembly. Each submission is a complete program: the loop accumulates
// lines until a blank line, then assembles and runs the accumulated buffer
// as one unit, matching the asm+vm CLI pair exactly. Register state does
// not persist across submissions, since vm.VM.Load resets the register
// file on every call; a submission is the REPL's unit of execution, not a
// single line.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/atriel/wudoovm/pkg/embed"
)

const (
	prompt     = "wudoovm> "
	promptCont = "....... "
)

// REPL provides an interactive Read-Eval-Print Loop over assembly source.
type REPL struct {
	history     []string
	multiline   strings.Builder
	inMultiline bool
}

// New creates a new REPL instance.
func New() *REPL {
	return &REPL{history: []string{}}
}

// Start runs the REPL loop, reading from in and writing prompts, output,
// and diagnostics to out.
func (r *REPL) Start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "wudoovm REPL")
	fmt.Fprintln(out, "Type 'help' for available commands, 'quit' to exit")
	fmt.Fprintln(out)

	for {
		if r.inMultiline {
			fmt.Fprint(out, promptCont)
		} else {
			fmt.Fprint(out, prompt)
		}

		if !scanner.Scan() {
			break
		}

		line := scanner.Text()

		if r.inMultiline {
			if strings.TrimSpace(line) == "" {
				r.inMultiline = false
				src := r.multiline.String()
				r.multiline.Reset()
				r.eval(src, out)
			} else {
				r.multiline.WriteString(line)
				r.multiline.WriteString("\n")
			}
			continue
		}

		if handled := r.handleCommand(line, out); handled {
			if f := strings.Fields(line); len(f) > 0 && (f[0] == "quit" || f[0] == "exit" || f[0] == "q") {
				return
			}
			continue
		}

		r.inMultiline = true
		r.multiline.WriteString(line)
		r.multiline.WriteString("\n")
	}
}

func (r *REPL) handleCommand(line string, out io.Writer) bool {
	trimmed := strings.TrimSpace(line)
	parts := strings.Fields(trimmed)

	if len(parts) == 0 {
		return true
	}

	switch parts[0] {
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Goodbye!")
		return true

	case "help", "h", "?":
		r.printHelp(out)
		return true

	case "history":
		for i, src := range r.history {
			fmt.Fprintf(out, "--- %d ---\n%s", i+1, src)
		}
		return true
	}

	return false
}

// eval assembles and runs a complete program submission, printing PRINT/
// ECHO output and the final exit code to out.
func (r *REPL) eval(src string, out io.Writer) {
	if strings.TrimSpace(src) == "" {
		return
	}

	r.history = append(r.history, src)

	code, err := embed.Run(src, embed.WithOutput(out))
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "=> exit %d\n", code)
}

func (r *REPL) printHelp(out io.Writer) {
	help := `
wudoovm REPL commands:
  help, h, ?   Show this help message
  quit, exit, q   Exit the REPL
  history      Show submitted programs

Enter one or more lines of assembly, then a blank line to assemble and
run them as a single program. Register state does not persist between
submissions.

Example:
  istore 1 42
  print 1
  halt

`
	fmt.Fprint(out, help)
}
