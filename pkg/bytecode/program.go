package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Encoder builds a bytecode buffer through a fluent, one-method-per-opcode
// API. The write cursor never retreats; JUMP and BRANCH record the byte
// position of their opcode tag so CalculateBranches can later rewrite
// their instruction-index operands into byte offsets.
type Encoder struct {
	buf      []byte
	branches []int
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) emit(op Opcode) *Encoder {
	e.buf = append(e.buf, byte(op))
	return e
}

func (e *Encoder) int(v IntOperand) *Encoder {
	e.buf = EncodeIntOperand(e.buf, v)
	return e
}

func (e *Encoder) byteOp(v ByteOperand) *Encoder {
	e.buf = EncodeByteOperand(e.buf, v)
	return e
}

func (e *Encoder) raw32(v int32) *Encoder {
	e.buf = EncodeRawInt32(e.buf, v)
	return e
}

// ISTORE reg, num.
func (e *Encoder) ISTORE(reg, num IntOperand) *Encoder {
	return e.emit(ISTORE).int(reg).int(num)
}

func (e *Encoder) emit3(op Opcode, a, b, r IntOperand) *Encoder {
	return e.emit(op).int(a).int(b).int(r)
}

// IADD regA, regB, regR.
func (e *Encoder) IADD(a, b, r IntOperand) *Encoder { return e.emit3(IADD, a, b, r) }

// ISUB regA, regB, regR.
func (e *Encoder) ISUB(a, b, r IntOperand) *Encoder { return e.emit3(ISUB, a, b, r) }

// IMUL regA, regB, regR.
func (e *Encoder) IMUL(a, b, r IntOperand) *Encoder { return e.emit3(IMUL, a, b, r) }

// IDIV regA, regB, regR.
func (e *Encoder) IDIV(a, b, r IntOperand) *Encoder { return e.emit3(IDIV, a, b, r) }

// ILT regA, regB, regR.
func (e *Encoder) ILT(a, b, r IntOperand) *Encoder { return e.emit3(ILT, a, b, r) }

// ILTE regA, regB, regR.
func (e *Encoder) ILTE(a, b, r IntOperand) *Encoder { return e.emit3(ILTE, a, b, r) }

// IGT regA, regB, regR.
func (e *Encoder) IGT(a, b, r IntOperand) *Encoder { return e.emit3(IGT, a, b, r) }

// IGTE regA, regB, regR.
func (e *Encoder) IGTE(a, b, r IntOperand) *Encoder { return e.emit3(IGTE, a, b, r) }

// IEQ regA, regB, regR.
func (e *Encoder) IEQ(a, b, r IntOperand) *Encoder { return e.emit3(IEQ, a, b, r) }

// AND regA, regB, regR.
func (e *Encoder) AND(a, b, r IntOperand) *Encoder { return e.emit3(AND, a, b, r) }

// OR regA, regB, regR.
func (e *Encoder) OR(a, b, r IntOperand) *Encoder { return e.emit3(OR, a, b, r) }

func (e *Encoder) emit1(op Opcode, a IntOperand) *Encoder {
	return e.emit(op).int(a)
}

// IINC reg.
func (e *Encoder) IINC(reg IntOperand) *Encoder { return e.emit1(IINC, reg) }

// IDEC reg.
func (e *Encoder) IDEC(reg IntOperand) *Encoder { return e.emit1(IDEC, reg) }

// NOT reg.
func (e *Encoder) NOT(reg IntOperand) *Encoder { return e.emit1(NOT, reg) }

// PRINT reg.
func (e *Encoder) PRINT(reg IntOperand) *Encoder { return e.emit1(PRINT, reg) }

// ECHO reg.
func (e *Encoder) ECHO(reg IntOperand) *Encoder { return e.emit1(ECHO, reg) }

// RET reg.
func (e *Encoder) RET(reg IntOperand) *Encoder { return e.emit1(RET, reg) }

// DELETE reg. See design note on DELETE's operand shape: treated as a
// single int_op naming the register to clear.
func (e *Encoder) DELETE(reg IntOperand) *Encoder { return e.emit1(DELETE, reg) }

func (e *Encoder) emit2(op Opcode, a, b IntOperand) *Encoder {
	return e.emit(op).int(a).int(b)
}

// MOVE a, b.
func (e *Encoder) MOVE(a, b IntOperand) *Encoder { return e.emit2(MOVE, a, b) }

// COPY a, b.
func (e *Encoder) COPY(a, b IntOperand) *Encoder { return e.emit2(COPY, a, b) }

// REF a, b.
func (e *Encoder) REF(a, b IntOperand) *Encoder { return e.emit2(REF, a, b) }

// SWAP a, b.
func (e *Encoder) SWAP(a, b IntOperand) *Encoder { return e.emit2(SWAP, a, b) }

// BSTORE reg, b.
func (e *Encoder) BSTORE(reg IntOperand, b ByteOperand) *Encoder {
	return e.emit(BSTORE).int(reg).byteOp(b)
}

// HALT.
func (e *Encoder) HALT() *Encoder { return e.emit(HALT) }

// PASS.
func (e *Encoder) PASS() *Encoder { return e.emit(PASS) }

// JUMP addr. addr is an instruction index; CalculateBranches rewrites it
// to a byte offset.
func (e *Encoder) JUMP(instructionIndex int32) *Encoder {
	e.branches = append(e.branches, len(e.buf))
	return e.emit(JUMP).raw32(instructionIndex)
}

// BRANCH cond, addrT, addrF. addrT/addrF are instruction indices;
// CalculateBranches rewrites them to byte offsets.
func (e *Encoder) BRANCH(cond IntOperand, targetTrue, targetFalse int32) *Encoder {
	e.branches = append(e.branches, len(e.buf))
	return e.emit(BRANCH).int(cond).raw32(targetTrue).raw32(targetFalse)
}

// instructionOffsets walks the buffer from the start, returning the byte
// offset of each instruction's opcode tag in order.
func instructionOffsets(buf []byte) ([]int, error) {
	var offsets []int
	pos := 0
	for pos < len(buf) {
		offsets = append(offsets, pos)
		op := Opcode(buf[pos])
		size := op.Size()
		if size == 0 {
			return nil, fmt.Errorf("unrecognised opcode 0x%02x at byte %d", buf[pos], pos)
		}
		pos += size
	}
	return offsets, nil
}

// InstructionCount returns the number of real instructions encoded so far.
func (e *Encoder) InstructionCount() (int, error) {
	offsets, err := instructionOffsets(e.buf)
	if err != nil {
		return 0, err
	}
	return len(offsets), nil
}

func putRawInt32(buf []byte, pos int, v int32) {
	binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(v))
}

// CalculateBranches rewrites every JUMP/BRANCH instruction-index operand
// recorded during encoding into the byte offset of the opcode tag of the
// instruction at that index.
func (e *Encoder) CalculateBranches() error {
	offsets, err := instructionOffsets(e.buf)
	if err != nil {
		return err
	}
	resolve := func(idx int32) (int32, error) {
		if idx < 0 || int(idx) >= len(offsets) {
			return 0, &ErrBranchOutOfBounds{Index: int(idx)}
		}
		return int32(offsets[idx]), nil
	}
	for _, pos := range e.branches {
		switch Opcode(e.buf[pos]) {
		case JUMP:
			idx, _, err := DecodeRawInt32(e.buf, pos+1)
			if err != nil {
				return err
			}
			off, err := resolve(idx)
			if err != nil {
				return err
			}
			putRawInt32(e.buf, pos+1, off)

		case BRANCH:
			condEnd := pos + 1 + IntOpSize
			idxT, _, err := DecodeRawInt32(e.buf, condEnd)
			if err != nil {
				return err
			}
			idxF, _, err := DecodeRawInt32(e.buf, condEnd+RawInt32Size)
			if err != nil {
				return err
			}
			offT, err := resolve(idxT)
			if err != nil {
				return err
			}
			offF, err := resolve(idxF)
			if err != nil {
				return err
			}
			putRawInt32(e.buf, condEnd, offT)
			putRawInt32(e.buf, condEnd+RawInt32Size, offF)
		}
	}
	return nil
}

// Bytecode returns an independent copy of the encoded buffer.
func (e *Encoder) Bytecode() []byte {
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out
}
