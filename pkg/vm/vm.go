package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/atriel/wudoovm/pkg/bytecode"
)

// VM is the register-based bytecode interpreter: a fetch/decode/execute
// loop over a loaded code buffer, driving a RegisterFile.
type VM struct {
	registers *RegisterFile
	code      []byte
	ip        int
	halted    bool

	retReg int
	retSet bool

	out   io.Writer
	trace io.Writer
}

// NewVM returns a VM with an empty register file and no program loaded.
func NewVM() *VM {
	return &VM{
		registers: NewRegisterFile(),
		out:       os.Stdout,
	}
}

// SetOutput redirects PRINT/ECHO output, for tests that need to capture it.
func (m *VM) SetOutput(w io.Writer) {
	m.out = w
}

// SetTrace enables a per-instruction trace written to w, mirroring the
// original CPU's debug mode: opcode name before execution. Nil disables
// tracing.
func (m *VM) SetTrace(w io.Writer) {
	m.trace = w
}

// Load installs a program: code is the bytecode region (header already
// stripped), executableOffset the byte index of the first instruction.
func (m *VM) Load(code []byte, executableOffset int) {
	m.code = code
	m.ip = executableOffset
	m.halted = false
	m.retSet = false
	m.registers = NewRegisterFile()
}

// Run drives the dispatch loop to completion, returning the process exit
// code and, on a runtime error, the error that caused termination. The
// caller is expected to print err (its Error() is already formatted as
// "exception: <message>") and exit with the returned code.
func (m *VM) Run() (int, error) {
	if m.code == nil {
		return 1, errNullBytecode()
	}
	for !m.halted {
		if m.ip < 0 || m.ip >= len(m.code) {
			return 1, errBytecodeOutOfBounds(m.ip)
		}
		opByte := m.code[m.ip]
		if !bytecode.IsRecognised(opByte) {
			return 1, errUnrecognisedOpcode(opByte)
		}
		op := bytecode.Opcode(opByte)
		instrStart := m.ip
		m.ip++
		if m.trace != nil {
			fmt.Fprintf(m.trace, "%04d: %s\n", instrStart, op)
		}
		if err := m.dispatch(op); err != nil {
			return 1, err
		}
	}
	return m.exitCode(), nil
}

func (m *VM) exitCode() int {
	if m.retSet {
		if v, err := m.registers.Fetch(m.retReg); err == nil && v.Kind == KindInteger {
			return int(v.Integer)
		}
	}
	if v, err := m.registers.Fetch(0); err == nil && v.Kind == KindInteger {
		return int(v.Integer)
	}
	return 0
}

// nextInt decodes the int_op at ip and advances ip past it.
func (m *VM) nextInt() (bytecode.IntOperand, error) {
	v, next, err := bytecode.DecodeIntOperand(m.code, m.ip)
	if err != nil {
		return v, errBytecodeOutOfBounds(m.ip)
	}
	m.ip = next
	return v, nil
}

func (m *VM) nextByte() (bytecode.ByteOperand, error) {
	v, next, err := bytecode.DecodeByteOperand(m.code, m.ip)
	if err != nil {
		return v, errBytecodeOutOfBounds(m.ip)
	}
	m.ip = next
	return v, nil
}

func (m *VM) nextRaw32() (int32, error) {
	v, next, err := bytecode.DecodeRawInt32(m.code, m.ip)
	if err != nil {
		return 0, errBytecodeOutOfBounds(m.ip)
	}
	m.ip = next
	return v, nil
}

// resolveInt applies the indirection rule uniformly: a direct operand IS
// its value; an indirect operand names a register whose Integer payload
// supplies the real value. Used both to resolve register-index operands
// and integer literal operands, since both are int_op.
func (m *VM) resolveInt(op bytecode.IntOperand) (int32, error) {
	if !op.Indirect {
		return op.Value, nil
	}
	v, err := m.registers.Fetch(int(op.Value))
	if err != nil {
		return 0, err
	}
	return v.Integer, nil
}

func (m *VM) resolveByte(op bytecode.ByteOperand) (byte, error) {
	if !op.Indirect {
		return op.Value, nil
	}
	v, err := m.registers.Fetch(int(op.Value))
	if err != nil {
		return 0, err
	}
	return v.Byte, nil
}

// reg decodes an int_op and resolves it as a register index.
func (m *VM) reg() (int, error) {
	op, err := m.nextInt()
	if err != nil {
		return 0, err
	}
	v, err := m.resolveInt(op)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// literal decodes an int_op and resolves it as an integer literal.
func (m *VM) literal() (int32, error) {
	op, err := m.nextInt()
	if err != nil {
		return 0, err
	}
	return m.resolveInt(op)
}

func (m *VM) fetchInt(reg int) (int32, error) {
	v, err := m.registers.Fetch(reg)
	if err != nil {
		return 0, err
	}
	return v.Integer, nil
}

func (m *VM) fetchBool(reg int) (bool, error) {
	v, err := m.registers.Fetch(reg)
	if err != nil {
		return false, err
	}
	return v.Boolean, nil
}

func (m *VM) dispatch(op bytecode.Opcode) error {
	switch op {
	case bytecode.ISTORE:
		r, err := m.reg()
		if err != nil {
			return err
		}
		n, err := m.literal()
		if err != nil {
			return err
		}
		return m.registers.Place(r, NewInteger(n))

	case bytecode.IADD, bytecode.ISUB, bytecode.IMUL, bytecode.IDIV,
		bytecode.ILT, bytecode.ILTE, bytecode.IGT, bytecode.IGTE, bytecode.IEQ:
		ra, err := m.reg()
		if err != nil {
			return err
		}
		rb, err := m.reg()
		if err != nil {
			return err
		}
		rr, err := m.reg()
		if err != nil {
			return err
		}
		va, err := m.fetchInt(ra)
		if err != nil {
			return err
		}
		vb, err := m.fetchInt(rb)
		if err != nil {
			return err
		}
		if op == bytecode.IDIV && vb == 0 {
			return errDivisionByZero(rb)
		}
		return m.arith(op, va, vb, rr)

	case bytecode.AND, bytecode.OR:
		ra, err := m.reg()
		if err != nil {
			return err
		}
		rb, err := m.reg()
		if err != nil {
			return err
		}
		rr, err := m.reg()
		if err != nil {
			return err
		}
		va, err := m.fetchBool(ra)
		if err != nil {
			return err
		}
		vb, err := m.fetchBool(rb)
		if err != nil {
			return err
		}
		result := va && vb
		if op == bytecode.OR {
			result = va || vb
		}
		return m.registers.Place(rr, NewBoolean(result))

	case bytecode.IINC, bytecode.IDEC:
		r, err := m.reg()
		if err != nil {
			return err
		}
		v, err := m.fetchInt(r)
		if err != nil {
			return err
		}
		if op == bytecode.IINC {
			v++
		} else {
			v--
		}
		return m.registers.Place(r, NewInteger(v))

	case bytecode.NOT:
		r, err := m.reg()
		if err != nil {
			return err
		}
		v, err := m.fetchBool(r)
		if err != nil {
			return err
		}
		return m.registers.Place(r, NewBoolean(!v))

	case bytecode.BSTORE:
		r, err := m.reg()
		if err != nil {
			return err
		}
		bop, err := m.nextByte()
		if err != nil {
			return err
		}
		b, err := m.resolveByte(bop)
		if err != nil {
			return err
		}
		return m.registers.Place(r, NewByte(b))

	case bytecode.MOVE:
		a, err := m.reg()
		if err != nil {
			return err
		}
		b, err := m.reg()
		if err != nil {
			return err
		}
		return m.registers.Move(a, b)

	case bytecode.COPY:
		a, err := m.reg()
		if err != nil {
			return err
		}
		b, err := m.reg()
		if err != nil {
			return err
		}
		return m.registers.Copy(a, b)

	case bytecode.REF:
		dst, err := m.reg()
		if err != nil {
			return err
		}
		src, err := m.reg()
		if err != nil {
			return err
		}
		return m.registers.Ref(dst, src)

	case bytecode.SWAP:
		a, err := m.reg()
		if err != nil {
			return err
		}
		b, err := m.reg()
		if err != nil {
			return err
		}
		return m.registers.Swap(a, b)

	case bytecode.DELETE:
		r, err := m.reg()
		if err != nil {
			return err
		}
		return m.registers.Delete(r)

	case bytecode.PRINT, bytecode.ECHO:
		r, err := m.reg()
		if err != nil {
			return err
		}
		v, err := m.registers.Fetch(r)
		if err != nil {
			return err
		}
		if op == bytecode.PRINT {
			fmt.Fprintf(m.out, "%s\n", v)
		} else {
			fmt.Fprint(m.out, v)
		}
		return nil

	case bytecode.RET:
		r, err := m.reg()
		if err != nil {
			return err
		}
		m.retReg = r
		m.retSet = true
		return nil

	case bytecode.JUMP:
		target, err := m.nextRaw32()
		if err != nil {
			return err
		}
		m.ip = int(target)
		return nil

	case bytecode.BRANCH:
		r, err := m.reg()
		if err != nil {
			return err
		}
		targetTrue, err := m.nextRaw32()
		if err != nil {
			return err
		}
		targetFalse, err := m.nextRaw32()
		if err != nil {
			return err
		}
		cond, err := m.fetchBool(r)
		if err != nil {
			return err
		}
		if cond {
			m.ip = int(targetTrue)
		} else {
			m.ip = int(targetFalse)
		}
		return nil

	case bytecode.HALT:
		m.halted = true
		return nil

	case bytecode.PASS:
		return nil

	default:
		return errUnrecognisedOpcode(byte(op))
	}
}

func (m *VM) arith(op bytecode.Opcode, a, b int32, result int) error {
	switch op {
	case bytecode.IADD:
		return m.registers.Place(result, NewInteger(a+b))
	case bytecode.ISUB:
		return m.registers.Place(result, NewInteger(a-b))
	case bytecode.IMUL:
		return m.registers.Place(result, NewInteger(a*b))
	case bytecode.IDIV:
		return m.registers.Place(result, NewInteger(a/b))
	case bytecode.ILT:
		return m.registers.Place(result, NewBoolean(a < b))
	case bytecode.ILTE:
		return m.registers.Place(result, NewBoolean(a <= b))
	case bytecode.IGT:
		return m.registers.Place(result, NewBoolean(a > b))
	case bytecode.IGTE:
		return m.registers.Place(result, NewBoolean(a >= b))
	case bytecode.IEQ:
		return m.registers.Place(result, NewBoolean(a == b))
	}
	return nil
}
