package vm

import (
	"bytes"
	"testing"

	"github.com/atriel/wudoovm/pkg/bytecode"
)

func reg(i int32) bytecode.IntOperand { return bytecode.IntOperand{Value: i} }

func lit(v int32) bytecode.IntOperand { return bytecode.IntOperand{Value: v} }

func runProgram(t *testing.T, enc *bytecode.Encoder) (string, int, error) {
	t.Helper()
	if err := enc.CalculateBranches(); err != nil {
		t.Fatalf("CalculateBranches: %v", err)
	}
	var out bytes.Buffer
	m := NewVM()
	m.SetOutput(&out)
	m.Load(enc.Bytecode(), 0)
	code, err := m.Run()
	return out.String(), code, err
}

// Scenario 1: istore 1 42 ; print 1 ; halt -> stdout "42\n", exit 0.
func TestVM_Scenario1_StoreAndPrint(t *testing.T) {
	enc := bytecode.NewEncoder().
		ISTORE(reg(1), lit(42)).
		PRINT(reg(1)).
		HALT()
	out, code, err := runProgram(t, enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "42\n" {
		t.Errorf("expected %q, got %q", "42\n", out)
	}
	if code != 0 {
		t.Errorf("expected exit 0, got %d", code)
	}
}

// Scenario 2: istore 1 2 ; istore 2 3 ; iadd 1 2 3 ; print 3 ; halt -> "5\n".
func TestVM_Scenario2_Add(t *testing.T) {
	enc := bytecode.NewEncoder().
		ISTORE(reg(1), lit(2)).
		ISTORE(reg(2), lit(3)).
		IADD(reg(1), reg(2), reg(3)).
		PRINT(reg(3)).
		HALT()
	out, code, err := runProgram(t, enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "5\n" {
		t.Errorf("expected %q, got %q", "5\n", out)
	}
	if code != 0 {
		t.Errorf("expected exit 0, got %d", code)
	}
}

// Scenario 3: istore 1 10 ; ref 2 1 ; istore 2 99 ; print 1 ; halt -> "99\n".
func TestVM_Scenario3_Aliasing(t *testing.T) {
	enc := bytecode.NewEncoder().
		ISTORE(reg(1), lit(10)).
		REF(reg(2), reg(1)).
		ISTORE(reg(2), lit(99)).
		PRINT(reg(1)).
		HALT()
	out, code, err := runProgram(t, enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "99\n" {
		t.Errorf("expected %q, got %q", "99\n", out)
	}
	if code != 0 {
		t.Errorf("expected exit 0, got %d", code)
	}
}

// Scenario 4: a countdown loop using BRANCH with two targets, mirroring
// "istore 1 3 ; .mark: loop ; idec 1 ; ilt 1 0 2 ; branch 2 :end :loop ;
// .mark: end ; print 1 ; halt" -> "-1\n". ILT's operands are both
// register indices (ISTORE 0 0 stands in for the bare "0" comparand the
// prose scenario elides).
func TestVM_Scenario4_BranchLoop(t *testing.T) {
	enc := bytecode.NewEncoder()
	enc.ISTORE(reg(0), lit(0))
	enc.ISTORE(reg(1), lit(3)) // instruction 1
	loopIdx, err := enc.InstructionCount()
	if err != nil {
		t.Fatalf("InstructionCount: %v", err)
	}
	enc.IDEC(reg(1))                // loop target
	enc.ILT(reg(1), reg(0), reg(2)) // register 1 < register 0 (holds 0)
	endIdx := loopIdx + 3           // idec, ilt, branch precede end
	enc.BRANCH(reg(2), int32(endIdx), int32(loopIdx))
	enc.PRINT(reg(1)) // instruction 5 (end target)
	enc.HALT()

	out, code, err := runProgram(t, enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "-1\n" {
		t.Errorf("expected %q, got %q", "-1\n", out)
	}
	if code != 0 {
		t.Errorf("expected exit 0, got %d", code)
	}
}

// Scenario 5: print 5 ; halt (register 5 never written) -> runtime error,
// exit 1.
func TestVM_Scenario5_ReadFromNullRegister(t *testing.T) {
	enc := bytecode.NewEncoder().
		PRINT(reg(5)).
		HALT()
	_, code, err := runProgram(t, enc)
	if err == nil {
		t.Fatal("expected error reading unwritten register")
	}
	if code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	if got := err.Error(); got != "exception: read from null register: 5" {
		t.Errorf("unexpected diagnostic: %q", got)
	}
}

// Scenario 6: istore 0 7 ; halt (no explicit print) -> no stdout, exit 7.
func TestVM_Scenario6_RegisterZeroFallback(t *testing.T) {
	enc := bytecode.NewEncoder().
		ISTORE(reg(0), lit(7)).
		HALT()
	out, code, err := runProgram(t, enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("expected no stdout, got %q", out)
	}
	if code != 7 {
		t.Errorf("expected exit 7, got %d", code)
	}
}

func TestVM_IDIV_DivisionByZero(t *testing.T) {
	enc := bytecode.NewEncoder().
		ISTORE(reg(0), lit(10)).
		ISTORE(reg(1), lit(0)).
		IDIV(reg(0), reg(1), reg(2)).
		HALT()
	_, code, err := runProgram(t, enc)
	if err == nil {
		t.Fatal("expected division-by-zero error")
	}
	if code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	if got := err.Error(); got != "exception: division by zero: register 1" {
		t.Errorf("unexpected diagnostic: %q", got)
	}
}

func TestVM_RetOverridesRegisterZero(t *testing.T) {
	enc := bytecode.NewEncoder().
		ISTORE(reg(0), lit(7)).
		ISTORE(reg(1), lit(3)).
		RET(reg(1)).
		HALT()
	_, code, err := runProgram(t, enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 3 {
		t.Errorf("expected RET register to take priority, got %d", code)
	}
}

func TestVM_BytecodeOutOfBounds(t *testing.T) {
	m := NewVM()
	m.Load([]byte{byte(bytecode.ISTORE)}, 0)
	_, err := m.Run()
	if err == nil {
		t.Fatal("expected error decoding truncated instruction")
	}
}

func TestVM_UnrecognisedOpcode(t *testing.T) {
	m := NewVM()
	m.Load([]byte{0xFF}, 0)
	_, err := m.Run()
	if err == nil {
		t.Fatal("expected error on unrecognised opcode")
	}
}
