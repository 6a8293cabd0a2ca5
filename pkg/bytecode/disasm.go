package bytecode

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// instr is one decoded instruction, used by both renderers.
type instr struct {
	offset int
	op     Opcode
	tokens []string
}

func formatIntOperand(o IntOperand) string {
	if o.Indirect {
		return fmt.Sprintf("@%d", o.Value)
	}
	return fmt.Sprintf("%d", o.Value)
}

func formatByteOperand(o ByteOperand) string {
	if o.Indirect {
		return fmt.Sprintf("@%d", o.Value)
	}
	return fmt.Sprintf("%d", o.Value)
}

func decodeAll(code []byte) ([]instr, error) {
	var out []instr
	ip := 0
	for ip < len(code) {
		start := ip
		op := Opcode(code[ip])
		if !IsRecognised(code[ip]) {
			return nil, fmt.Errorf("unrecognised opcode 0x%02x at byte %d", code[ip], ip)
		}
		ip++

		var tokens []string
		for _, kind := range op.Operands() {
			switch kind {
			case OperandInt:
				v, next, err := DecodeIntOperand(code, ip)
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, formatIntOperand(v))
				ip = next
			case OperandByte:
				v, next, err := DecodeByteOperand(code, ip)
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, formatByteOperand(v))
				ip = next
			case OperandRawInt32:
				v, next, err := DecodeRawInt32(code, ip)
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, fmt.Sprintf("%d", v))
				ip = next
			}
		}
		out = append(out, instr{offset: start, op: op, tokens: tokens})
	}
	return out, nil
}

// Disassemble renders code as plain-text assembly-like lines, one
// instruction per line: "<mnemonic> <operand> <operand> ...". JUMP and
// BRANCH operands are rendered as the raw (patched) byte offset, since
// marks are not preserved past encoding.
func Disassemble(code []byte) (string, error) {
	instrs, err := decodeAll(code)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, in := range instrs {
		b.WriteString(in.op.String())
		for _, tok := range in.tokens {
			b.WriteByte(' ')
			b.WriteString(tok)
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// DisassembleTable renders code as an aligned table (byte offset,
// mnemonic, operands), a human-facing view distinct from the
// round-trippable plain-text form Disassemble produces.
func DisassembleTable(code []byte) (string, error) {
	instrs, err := decodeAll(code)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"offset", "mnemonic", "operands"})
	for _, in := range instrs {
		table.Append([]string{
			fmt.Sprintf("%d", in.offset),
			in.op.String(),
			strings.Join(in.tokens, ", "),
		})
	}
	table.Render()
	return b.String(), nil
}
