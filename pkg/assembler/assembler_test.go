package assembler

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/atriel/wudoovm/internal/testutil"
	"github.com/atriel/wudoovm/pkg/bytecode"
	"github.com/atriel/wudoovm/pkg/vm"
)

func TestAssemble_CountToFiveFixture(t *testing.T) {
	out, code, err := runAssembled(t, testutil.CountToFiveSource())
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "5\n" {
		t.Errorf("got %q, want %q", out, "5\n")
	}
	// The loop counts in register 0, whose Integer becomes the exit code.
	if code != 5 {
		t.Errorf("exit code = %d, want 5", code)
	}
}

func TestAssemble_FromTempFile(t *testing.T) {
	path := testutil.TempAsm(t, "istore 1 7\nprint 1\nhalt\n")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	src := string(data)
	out, code, err := runAssembled(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "7\n" {
		t.Errorf("got %q, want %q", out, "7\n")
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func runAssembled(t *testing.T, src string) (string, int, error) {
	t.Helper()
	code, offset, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var out bytes.Buffer
	m := vm.NewVM()
	m.SetOutput(&out)
	m.Load(code, int(offset))
	exitCode, runErr := m.Run()
	return out.String(), exitCode, runErr
}

// Scenario 1: istore 1 42 ; print 1 ; halt -> "42\n", exit 0.
func TestAssemble_Scenario1(t *testing.T) {
	out, code, err := runAssembled(t, "istore 1 42\nprint 1\nhalt\n")
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "42\n" {
		t.Errorf("got %q, want %q", out, "42\n")
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

// Scenario 2: addition.
func TestAssemble_Scenario2(t *testing.T) {
	src := "istore 1 2\nistore 2 3\niadd 1 2 3\nprint 3\nhalt\n"
	out, code, err := runAssembled(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "5\n" {
		t.Errorf("got %q, want %q", out, "5\n")
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

// Scenario 3: aliasing via ref.
func TestAssemble_Scenario3(t *testing.T) {
	src := "istore 1 10\nref 2 1\nistore 2 99\nprint 1\nhalt\n"
	out, code, err := runAssembled(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "99\n" {
		t.Errorf("got %q, want %q", out, "99\n")
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

// Scenario 4: countdown loop via marks and branch. Register 0 is
// pre-loaded with 0 since ilt's operands are always register indices
// (see the VM package's equivalent scenario test for the grounding).
func TestAssemble_Scenario4_MarksAndBranch(t *testing.T) {
	src := `istore 0 0
istore 1 3
.mark: loop
idec 1
ilt 1 0 2
branch 2 :end :loop
.mark: end
print 1
halt
`
	out, code, err := runAssembled(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "-1\n" {
		t.Errorf("got %q, want %q", out, "-1\n")
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

// Scenario 5: reading an unwritten register is a runtime error.
func TestAssemble_Scenario5_NullRegister(t *testing.T) {
	_, code, err := runAssembled(t, "print 5\nhalt\n")
	if err == nil {
		t.Fatal("expected runtime error")
	}
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if got := err.Error(); got != "exception: read from null register: 5" {
		t.Errorf("unexpected diagnostic: %q", got)
	}
}

// Scenario 6: exit code falls back to register 0's integer value.
func TestAssemble_Scenario6_RegisterZeroFallback(t *testing.T) {
	out, code, err := runAssembled(t, "istore 0 7\nhalt\n")
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "" {
		t.Errorf("expected no stdout, got %q", out)
	}
	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
}

func TestAssemble_NameAlias(t *testing.T) {
	src := ".name: 1 acc\nistore acc 5\nprint acc\nhalt\n"
	out, _, err := runAssembled(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "5\n" {
		t.Errorf("got %q, want %q", out, "5\n")
	}
}

func TestAssemble_IndirectOperand(t *testing.T) {
	// register 1 holds the index of register 2; istore @1 99 stores into
	// the register named by register 1's value, i.e. register 2.
	src := "istore 1 2\nistore @1 99\nprint 2\nhalt\n"
	out, _, err := runAssembled(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "99\n" {
		t.Errorf("got %q, want %q", out, "99\n")
	}
}

func TestAssemble_UnrecognisedInstruction(t *testing.T) {
	_, _, err := Assemble("frobnicate 1\nhalt\n")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "unrecognised instruction") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestAssemble_UndeclaredName(t *testing.T) {
	_, _, err := Assemble("istore foo 1\nhalt\n")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "undeclared name") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestAssemble_UnresolvedMark(t *testing.T) {
	_, _, err := Assemble("jump :nowhere\nhalt\n")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "unrecognised marker") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestAssemble_NonNumericRegisterInNameDirective(t *testing.T) {
	_, _, err := Assemble(".name: x acc\nhalt\n")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "non-numeric register") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestAssemble_MalformedNameDirective(t *testing.T) {
	_, _, err := Assemble(".name: 1\nhalt\n")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestAssemble_JumpTargetOutOfRange(t *testing.T) {
	_, _, err := Assemble("jump 5\nhalt\n")
	if err == nil {
		t.Fatal("expected error for out-of-range jump target")
	}
}

// Boundary: BRANCH with 2 operands falls through to the next instruction
// when its condition is false.
func TestAssemble_BranchTwoOperandFallsThrough(t *testing.T) {
	src := "istore 0 1\nbranch 0 :end\nistore 1 99\n.mark: end\nhalt\n"
	code, _, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	istoreSize := bytecode.ISTORE.Size()
	branchPos := istoreSize
	condEnd := branchPos + 1 + bytecode.IntOpSize
	offT, _, err := bytecode.DecodeRawInt32(code, condEnd)
	if err != nil {
		t.Fatalf("DecodeRawInt32(true): %v", err)
	}
	offF, _, err := bytecode.DecodeRawInt32(code, condEnd+bytecode.RawInt32Size)
	if err != nil {
		t.Fatalf("DecodeRawInt32(false): %v", err)
	}

	if got := bytecode.Opcode(code[offF]); got != bytecode.ISTORE {
		t.Errorf("false-branch fallthrough lands on %s, want istore", got)
	}
	if got := bytecode.Opcode(code[offT]); got != bytecode.HALT {
		t.Errorf("true-branch target lands on %s, want halt", got)
	}
}

// Round-trip law: disassembling assembled bytecode reconstructs the same
// mnemonic sequence modulo directives, comments, and operand spelling
// (marks/names resolve to their numeric values).
func TestAssemble_DisassembleRoundTripsMnemonics(t *testing.T) {
	src := "istore 1 42\nprint 1\nhalt\n"
	code, _, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	out, err := bytecode.Disassemble(code)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	want := "istore 1 42\nprint 1\nhalt\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestAssemble_TraceOption(t *testing.T) {
	var trace bytes.Buffer
	_, _, err := Assemble("istore 1 1\nhalt\n", WithTrace(&trace))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if trace.Len() == 0 {
		t.Error("expected trace output")
	}
	if !strings.Contains(trace.String(), "istore") {
		t.Errorf("expected trace to mention istore, got %q", trace.String())
	}
}
