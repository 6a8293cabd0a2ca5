// Package assembler implements the two-pass assembler: textual assembly
// source in, back-patched bytecode out. The first pass validates opcode
// names and collects marks (label -> instruction index) and names
// (alias -> register index); the second pass resolves every operand
// through those tables and emits instructions via the bytecode Encoder,
// then invokes branch back-patching.
package assembler

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atriel/wudoovm/pkg/bytecode"
)

type options struct {
	trace io.Writer
}

// Option configures an Assemble call.
type Option func(*options)

// WithTrace enables a per-line trace written to w as the emit pass
// resolves each instruction, mirroring the VM's own SetTrace.
func WithTrace(w io.Writer) Option {
	return func(o *options) { o.trace = w }
}

// Assemble compiles src to a bytecode buffer and its executable offset.
// The offset is always 0: the source test programs never set it, and
// nothing downstream of the assembler needs it to be anything else.
func Assemble(src string, opts ...Option) ([]byte, uint16, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	a := &assembler{
		names: make(map[string]int),
		marks: make(map[string]int),
		trace: o.trace,
	}
	code, err := a.run(src)
	if err != nil {
		return nil, 0, err
	}
	return code, 0, nil
}

type assembler struct {
	names map[string]int
	marks map[string]int
	trace io.Writer
}

func (a *assembler) run(src string) ([]byte, error) {
	lines := lex(src)
	if err := a.countBytes(lines); err != nil {
		return nil, err
	}
	if err := a.getNames(lines); err != nil {
		return nil, err
	}
	a.getMarks(lines)
	return a.emit(lines)
}

// countBytes is the sizing pass: every non-directive line's first token
// must name a recognised opcode with a non-zero tabulated size. Nothing
// is emitted here; it exists to fail fast on a bad instruction name
// before marks/names are collected.
func (a *assembler) countBytes(lines []sourceLine) error {
	total := 0
	for _, ln := range lines {
		if isNameDirective(ln.Text) || isMarkDirective(ln.Text) {
			continue
		}
		toks := fields(ln.Text)
		name := strings.ToLower(toks[0])
		op, ok := bytecode.OpcodeFromString(name)
		if !ok {
			return errUnrecognisedInstruction(ln.Number, toks[0])
		}
		size := op.Size()
		if size == 0 {
			return &AssemblyError{Kind: ErrKindUnrecognisedInstruction, Line: ln.Number,
				Message: fmt.Sprintf("opcode %s has no tabulated size", name)}
		}
		total += size
	}
	return nil
}

// getNames is the name pass: each ".name: <regIndex> <alias>" line binds
// alias to a register index.
func (a *assembler) getNames(lines []sourceLine) error {
	for _, ln := range lines {
		if !isNameDirective(ln.Text) {
			continue
		}
		toks := fields(ln.Text)
		if len(toks) != 3 {
			return errMalformedDirective(ln.Number, ln.Text)
		}
		idx, err := strconv.Atoi(toks[1])
		if err != nil {
			return errNonNumericRegister(ln.Number, toks[1])
		}
		a.names[toks[2]] = idx
	}
	return nil
}

// getMarks is the mark pass: a counter advances once per real
// instruction; a ".mark: <name>" line binds name to the counter's
// current value, i.e. the index of the next real instruction.
func (a *assembler) getMarks(lines []sourceLine) {
	counter := 0
	for _, ln := range lines {
		if isNameDirective(ln.Text) {
			continue
		}
		if isMarkDirective(ln.Text) {
			toks := fields(ln.Text)
			if len(toks) < 2 {
				continue
			}
			a.marks[toks[1]] = counter
			continue
		}
		counter++
	}
}

// resolveRegister implements resolveregister: a bare decimal (optionally
// @-prefixed) is returned unchanged; anything else is looked up in the
// names table, preserving an @ prefix across the substitution.
func (a *assembler) resolveRegister(line int, tok string) (string, error) {
	prefix := ""
	rest := tok
	if strings.HasPrefix(tok, "@") {
		prefix = "@"
		rest = tok[1:]
	}
	if _, err := strconv.ParseInt(rest, 10, 32); err == nil {
		return tok, nil
	}
	idx, ok := a.names[rest]
	if !ok {
		return "", errUndeclaredName(line, tok)
	}
	return prefix + strconv.Itoa(idx), nil
}

// intOperand resolves tok to an int_op: resolveregister then getint_op.
func (a *assembler) intOperand(line int, tok string) (bytecode.IntOperand, error) {
	resolved, err := a.resolveRegister(line, tok)
	if err != nil {
		return bytecode.IntOperand{}, err
	}
	if strings.HasPrefix(resolved, "@") {
		v, err := strconv.ParseInt(resolved[1:], 10, 32)
		if err != nil {
			return bytecode.IntOperand{}, errMalformedDirective(line, tok)
		}
		return bytecode.IntOperand{Indirect: true, Value: int32(v)}, nil
	}
	v, err := strconv.ParseInt(resolved, 10, 32)
	if err != nil {
		return bytecode.IntOperand{}, errMalformedDirective(line, tok)
	}
	return bytecode.IntOperand{Value: int32(v)}, nil
}

// byteOperand resolves tok to a byte_op, same shape as intOperand but
// with a one-byte payload.
func (a *assembler) byteOperand(line int, tok string) (bytecode.ByteOperand, error) {
	resolved, err := a.resolveRegister(line, tok)
	if err != nil {
		return bytecode.ByteOperand{}, err
	}
	if strings.HasPrefix(resolved, "@") {
		v, err := strconv.ParseInt(resolved[1:], 10, 8)
		if err != nil {
			return bytecode.ByteOperand{}, errMalformedDirective(line, tok)
		}
		return bytecode.ByteOperand{Indirect: true, Value: byte(v)}, nil
	}
	v, err := strconv.ParseInt(resolved, 10, 16)
	if err != nil {
		return bytecode.ByteOperand{}, errMalformedDirective(line, tok)
	}
	return bytecode.ByteOperand{Value: byte(v)}, nil
}

// resolveJump implements resolvejump: a bare decimal is a direct
// instruction index; otherwise the token must be ":<mark>".
func (a *assembler) resolveJump(line int, tok string) (int32, error) {
	if v, err := strconv.ParseInt(tok, 10, 32); err == nil {
		return int32(v), nil
	}
	if !strings.HasPrefix(tok, ":") {
		return 0, errMalformedDirective(line, tok)
	}
	name := tok[1:]
	idx, ok := a.marks[name]
	if !ok {
		return 0, errUnresolvedMark(line, name)
	}
	return int32(idx), nil
}

func requireArgs(line int, op bytecode.Opcode, args []string, n int) error {
	if len(args) < n {
		return &AssemblyError{Kind: ErrKindMalformedDirective, Line: line,
			Message: fmt.Sprintf("%s expects %d operand(s), got %d", op, n, len(args))}
	}
	return nil
}

// emit is the second pass: resolve every operand and call the Encoder,
// then back-patch every recorded jump/branch.
func (a *assembler) emit(lines []sourceLine) ([]byte, error) {
	enc := bytecode.NewEncoder()
	instrIndex := 0

	for _, ln := range lines {
		if isNameDirective(ln.Text) || isMarkDirective(ln.Text) {
			continue
		}
		toks := fields(ln.Text)
		name := strings.ToLower(toks[0])
		op, ok := bytecode.OpcodeFromString(name)
		if !ok {
			return nil, errUnrecognisedInstruction(ln.Number, toks[0])
		}
		args := toks[1:]
		if a.trace != nil {
			fmt.Fprintf(a.trace, "%04d: %s %s\n", instrIndex, name, strings.Join(args, " "))
		}
		if err := a.emitOne(ln.Number, op, args, instrIndex, enc); err != nil {
			return nil, err
		}
		instrIndex++
	}

	if err := enc.CalculateBranches(); err != nil {
		if oob, ok := err.(*bytecode.ErrBranchOutOfBounds); ok {
			return nil, errJumpOutOfRange(0, oob.Error())
		}
		return nil, errJumpOutOfRange(0, err.Error())
	}
	return enc.Bytecode(), nil
}

func (a *assembler) emitOne(line int, op bytecode.Opcode, args []string, instrIndex int, enc *bytecode.Encoder) error {
	intAt := func(i int) (bytecode.IntOperand, error) { return a.intOperand(line, args[i]) }

	switch op {
	case bytecode.ISTORE:
		if err := requireArgs(line, op, args, 2); err != nil {
			return err
		}
		reg, err := intAt(0)
		if err != nil {
			return err
		}
		num, err := intAt(1)
		if err != nil {
			return err
		}
		enc.ISTORE(reg, num)

	case bytecode.IADD, bytecode.ISUB, bytecode.IMUL, bytecode.IDIV,
		bytecode.ILT, bytecode.ILTE, bytecode.IGT, bytecode.IGTE, bytecode.IEQ,
		bytecode.AND, bytecode.OR:
		if err := requireArgs(line, op, args, 3); err != nil {
			return err
		}
		ra, err := intAt(0)
		if err != nil {
			return err
		}
		rb, err := intAt(1)
		if err != nil {
			return err
		}
		rr, err := intAt(2)
		if err != nil {
			return err
		}
		switch op {
		case bytecode.IADD:
			enc.IADD(ra, rb, rr)
		case bytecode.ISUB:
			enc.ISUB(ra, rb, rr)
		case bytecode.IMUL:
			enc.IMUL(ra, rb, rr)
		case bytecode.IDIV:
			enc.IDIV(ra, rb, rr)
		case bytecode.ILT:
			enc.ILT(ra, rb, rr)
		case bytecode.ILTE:
			enc.ILTE(ra, rb, rr)
		case bytecode.IGT:
			enc.IGT(ra, rb, rr)
		case bytecode.IGTE:
			enc.IGTE(ra, rb, rr)
		case bytecode.IEQ:
			enc.IEQ(ra, rb, rr)
		case bytecode.AND:
			enc.AND(ra, rb, rr)
		case bytecode.OR:
			enc.OR(ra, rb, rr)
		}

	case bytecode.IINC, bytecode.IDEC, bytecode.NOT, bytecode.PRINT,
		bytecode.ECHO, bytecode.RET, bytecode.DELETE:
		if err := requireArgs(line, op, args, 1); err != nil {
			return err
		}
		r, err := intAt(0)
		if err != nil {
			return err
		}
		switch op {
		case bytecode.IINC:
			enc.IINC(r)
		case bytecode.IDEC:
			enc.IDEC(r)
		case bytecode.NOT:
			enc.NOT(r)
		case bytecode.PRINT:
			enc.PRINT(r)
		case bytecode.ECHO:
			enc.ECHO(r)
		case bytecode.RET:
			enc.RET(r)
		case bytecode.DELETE:
			enc.DELETE(r)
		}

	case bytecode.MOVE, bytecode.COPY, bytecode.REF, bytecode.SWAP:
		if err := requireArgs(line, op, args, 2); err != nil {
			return err
		}
		x, err := intAt(0)
		if err != nil {
			return err
		}
		y, err := intAt(1)
		if err != nil {
			return err
		}
		switch op {
		case bytecode.MOVE:
			enc.MOVE(x, y)
		case bytecode.COPY:
			enc.COPY(x, y)
		case bytecode.REF:
			enc.REF(x, y)
		case bytecode.SWAP:
			enc.SWAP(x, y)
		}

	case bytecode.BSTORE:
		if err := requireArgs(line, op, args, 2); err != nil {
			return err
		}
		reg, err := intAt(0)
		if err != nil {
			return err
		}
		b, err := a.byteOperand(line, args[1])
		if err != nil {
			return err
		}
		enc.BSTORE(reg, b)

	case bytecode.JUMP:
		if err := requireArgs(line, op, args, 1); err != nil {
			return err
		}
		target, err := a.resolveJump(line, args[0])
		if err != nil {
			return err
		}
		enc.JUMP(target)

	case bytecode.BRANCH:
		if len(args) < 2 {
			return requireArgs(line, op, args, 2)
		}
		cond, err := intAt(0)
		if err != nil {
			return err
		}
		targetTrue, err := a.resolveJump(line, args[1])
		if err != nil {
			return err
		}
		targetFalse := int32(instrIndex + 1)
		if len(args) >= 3 {
			targetFalse, err = a.resolveJump(line, args[2])
			if err != nil {
				return err
			}
		}
		enc.BRANCH(cond, targetTrue, targetFalse)

	case bytecode.HALT:
		enc.HALT()

	case bytecode.PASS:
		enc.PASS()

	default:
		return errUnrecognisedInstruction(line, op.String())
	}
	return nil
}
