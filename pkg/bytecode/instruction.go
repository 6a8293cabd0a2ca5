package bytecode

import "encoding/binary"

// IntOperand is an int_op: a register index or an immediate literal,
// tagged with whether it is indirect. An indirect operand names a
// register whose Integer value supplies the real operand at run time.
type IntOperand struct {
	Indirect bool
	Value    int32
}

// ByteOperand is a byte_op: the same indirect/literal shape as
// IntOperand, but with a one-byte payload, used only by BSTORE.
type ByteOperand struct {
	Indirect bool
	Value    byte
}

// EncodeIntOperand appends the operand's flag byte and little-endian
// payload to dst, returning the extended slice.
func EncodeIntOperand(dst []byte, op IntOperand) []byte {
	dst = append(dst, flagByte(op.Indirect))
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(op.Value))
	return append(dst, buf[:]...)
}

// EncodeByteOperand appends the operand's flag byte and single payload
// byte to dst, returning the extended slice.
func EncodeByteOperand(dst []byte, op ByteOperand) []byte {
	dst = append(dst, flagByte(op.Indirect))
	return append(dst, op.Value)
}

// EncodeRawInt32 appends an unflagged little-endian 32-bit value, used
// only for JUMP/BRANCH targets.
func EncodeRawInt32(dst []byte, v int32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return append(dst, buf[:]...)
}

func flagByte(indirect bool) byte {
	if indirect {
		return 1
	}
	return 0
}

// DecodeIntOperand reads an int_op starting at ip, returning the decoded
// operand and the index just past it.
func DecodeIntOperand(code []byte, ip int) (IntOperand, int, error) {
	if ip+IntOpSize > len(code) {
		return IntOperand{}, ip, errBounds("int_op", ip, len(code))
	}
	indirect := code[ip] != 0
	v := int32(binary.LittleEndian.Uint32(code[ip+1 : ip+5]))
	return IntOperand{Indirect: indirect, Value: v}, ip + IntOpSize, nil
}

// DecodeByteOperand reads a byte_op starting at ip, returning the
// decoded operand and the index just past it.
func DecodeByteOperand(code []byte, ip int) (ByteOperand, int, error) {
	if ip+ByteOpSize > len(code) {
		return ByteOperand{}, ip, errBounds("byte_op", ip, len(code))
	}
	indirect := code[ip] != 0
	return ByteOperand{Indirect: indirect, Value: code[ip+1]}, ip + ByteOpSize, nil
}

// DecodeRawInt32 reads an unflagged 32-bit value starting at ip.
func DecodeRawInt32(code []byte, ip int) (int32, int, error) {
	if ip+RawInt32Size > len(code) {
		return 0, ip, errBounds("int32", ip, len(code))
	}
	v := int32(binary.LittleEndian.Uint32(code[ip : ip+4]))
	return v, ip + RawInt32Size, nil
}
