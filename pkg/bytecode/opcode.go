// Package bytecode defines the wudoovm instruction set: opcodes, operand
// encoding, the program encoder with branch back-patching, and the
// bytecode file format.
package bytecode

// Opcode is the one-byte tag at the start of every instruction.
type Opcode uint8

// OperandKind describes the shape of one operand slot in an opcode's
// layout. It drives the opcode-size table and the disassembler; the
// encoder and decoder work directly in terms of IntOperand/ByteOperand/
// raw int32 values.
type OperandKind uint8

const (
	OperandInt OperandKind = iota
	OperandByte
	OperandRawInt32
)

const (
	ISTORE Opcode = iota
	IADD
	ISUB
	IMUL
	IDIV
	IINC
	IDEC
	ILT
	ILTE
	IGT
	IGTE
	IEQ
	BSTORE
	NOT
	AND
	OR
	MOVE
	COPY
	REF
	SWAP
	DELETE
	PRINT
	ECHO
	JUMP
	BRANCH
	RET
	HALT
	PASS
)

type opcodeInfo struct {
	name     string
	operands []OperandKind
}

// IntOpSize is the encoded size of an int_op: one flag byte plus a 4-byte
// little-endian payload.
const IntOpSize = 1 + 4

// ByteOpSize is the encoded size of a byte_op: one flag byte plus a
// 1-byte payload.
const ByteOpSize = 1 + 1

// RawInt32Size is the encoded size of an unflagged 32-bit operand, used
// only for JUMP/BRANCH targets, which hold instruction indices before
// back-patching and byte offsets after.
const RawInt32Size = 4

var opcodeTable = map[Opcode]opcodeInfo{
	ISTORE: {"istore", []OperandKind{OperandInt, OperandInt}},
	IADD:   {"iadd", []OperandKind{OperandInt, OperandInt, OperandInt}},
	ISUB:   {"isub", []OperandKind{OperandInt, OperandInt, OperandInt}},
	IMUL:   {"imul", []OperandKind{OperandInt, OperandInt, OperandInt}},
	IDIV:   {"idiv", []OperandKind{OperandInt, OperandInt, OperandInt}},
	IINC:   {"iinc", []OperandKind{OperandInt}},
	IDEC:   {"idec", []OperandKind{OperandInt}},
	ILT:    {"ilt", []OperandKind{OperandInt, OperandInt, OperandInt}},
	ILTE:   {"ilte", []OperandKind{OperandInt, OperandInt, OperandInt}},
	IGT:    {"igt", []OperandKind{OperandInt, OperandInt, OperandInt}},
	IGTE:   {"igte", []OperandKind{OperandInt, OperandInt, OperandInt}},
	IEQ:    {"ieq", []OperandKind{OperandInt, OperandInt, OperandInt}},
	BSTORE: {"bstore", []OperandKind{OperandInt, OperandByte}},
	NOT:    {"not", []OperandKind{OperandInt}},
	AND:    {"and", []OperandKind{OperandInt, OperandInt, OperandInt}},
	OR:     {"or", []OperandKind{OperandInt, OperandInt, OperandInt}},
	MOVE:   {"move", []OperandKind{OperandInt, OperandInt}},
	COPY:   {"copy", []OperandKind{OperandInt, OperandInt}},
	REF:    {"ref", []OperandKind{OperandInt, OperandInt}},
	SWAP:   {"swap", []OperandKind{OperandInt, OperandInt}},
	DELETE: {"delete", []OperandKind{OperandInt}},
	PRINT:  {"print", []OperandKind{OperandInt}},
	ECHO:   {"echo", []OperandKind{OperandInt}},
	JUMP:   {"jump", []OperandKind{OperandRawInt32}},
	BRANCH: {"branch", []OperandKind{OperandInt, OperandRawInt32, OperandRawInt32}},
	RET:    {"ret", []OperandKind{OperandInt}},
	HALT:   {"halt", nil},
	PASS:   {"pass", nil},
}

// String returns the lowercase assembly mnemonic for the opcode.
func (o Opcode) String() string {
	if info, ok := opcodeTable[o]; ok {
		return info.name
	}
	return "unknown"
}

// OpcodeFromString resolves a mnemonic to its Opcode.
func OpcodeFromString(s string) (Opcode, bool) {
	for op, info := range opcodeTable {
		if info.name == s {
			return op, true
		}
	}
	return 0, false
}

// Operands returns the operand layout for the opcode.
func (o Opcode) Operands() []OperandKind {
	return opcodeTable[o].operands
}

// Size returns the total encoded size of an instruction with this
// opcode, in bytes: the one-byte tag plus the sum of its operand sizes.
func (o Opcode) Size() int {
	info, ok := opcodeTable[o]
	if !ok {
		return 0
	}
	size := 1
	for _, k := range info.operands {
		switch k {
		case OperandInt:
			size += IntOpSize
		case OperandByte:
			size += ByteOpSize
		case OperandRawInt32:
			size += RawInt32Size
		}
	}
	return size
}

// IsRecognised reports whether the byte names an opcode in the closed set.
func IsRecognised(b byte) bool {
	_, ok := opcodeTable[Opcode(b)]
	return ok
}
