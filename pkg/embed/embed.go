// Package embed provides the Go embedding API for wudoovm: pass assembly
// source, get the process exit code a CLI invocation would have produced.
//
// Basic usage:
//
//	code, err := embed.Run(`
//	    istore 1 42
//	    print 1
//	    halt
//	`)
package embed

import (
	"fmt"
	"io"
	"os"

	"github.com/atriel/wudoovm/pkg/assembler"
	"github.com/atriel/wudoovm/pkg/vm"
)

// Options configures a Run call.
type Options struct {
	// Output receives PRINT/ECHO text. Defaults to os.Stdout.
	Output io.Writer

	// Trace, if set, receives a per-instruction dispatch trace.
	Trace io.Writer

	// AssembleTrace, if set, receives a per-line trace of the emit pass.
	AssembleTrace io.Writer
}

// Option is a functional option for Run/RunFile.
type Option func(*Options)

// WithOutput redirects PRINT/ECHO output.
func WithOutput(w io.Writer) Option {
	return func(o *Options) { o.Output = w }
}

// WithTrace enables the VM's per-instruction dispatch trace.
func WithTrace(w io.Writer) Option {
	return func(o *Options) { o.Trace = w }
}

// WithAssembleTrace enables the assembler's per-line emit trace.
func WithAssembleTrace(w io.Writer) Option {
	return func(o *Options) { o.AssembleTrace = w }
}

// Run assembles and executes src, returning the process exit code the
// vm CLI would have produced. A non-nil error indicates either an
// assembly-time failure (exit code 1, err is *assembler.AssemblyError)
// or a runtime failure (exit code 1, err is *vm.RuntimeError).
func Run(src string, opts ...Option) (int, error) {
	o := &Options{Output: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	var asmOpts []assembler.Option
	if o.AssembleTrace != nil {
		asmOpts = append(asmOpts, assembler.WithTrace(o.AssembleTrace))
	}
	code, offset, err := assembler.Assemble(src, asmOpts...)
	if err != nil {
		return 1, err
	}

	m := vm.NewVM()
	m.SetOutput(o.Output)
	if o.Trace != nil {
		m.SetTrace(o.Trace)
	}
	m.Load(code, int(offset))
	return m.Run()
}

// RunFile reads path and executes it via Run.
func RunFile(path string, opts ...Option) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 1, fmt.Errorf("reading %s: %w", path, err)
	}
	return Run(string(data), opts...)
}

// Assemble compiles src to a bytecode buffer and its executable offset
// without executing it, the embeddable equivalent of the asm CLI.
func Assemble(src string, opts ...assembler.Option) ([]byte, uint16, error) {
	return assembler.Assemble(src, opts...)
}
