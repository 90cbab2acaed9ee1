package main

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProgram(t *testing.T, words ...int) *Program {
	t.Helper()
	strs := make([]string, len(words))
	for i, w := range words {
		strs[i] = strconv.Itoa(w)
	}
	p, err := LoadProgram(strings.NewReader(strings.Join(strs, " ")))
	require.NoError(t, err)
	return p
}

func runVM(t *testing.T, prog *Program, args []int64) (string, int, error) {
	t.Helper()
	var out bytes.Buffer
	vm := New(WithOutput(&out), WithArgs(args))
	vm.prog = prog
	result, err := vm.Run(context.Background())
	return out.String(), result, err
}

// CSTI prints a constant: spec scenario "print constant".
func Test_VM_print_constant(t *testing.T) {
	prog := newTestProgram(t,
		opCSTI, 42,
		opPRINTI,
		opSTOP,
	)
	out, result, err := runVM(t, prog, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result)
	assert.Equal(t, "42 ", out)
}

// CSTI/ADD: spec scenario "arithmetic".
func Test_VM_arithmetic(t *testing.T) {
	prog := newTestProgram(t,
		opCSTI, 3,
		opCSTI, 4,
		opADD,
		opPRINTI,
		opSTOP,
	)
	out, _, err := runVM(t, prog, nil)
	require.NoError(t, err)
	assert.Equal(t, "7 ", out)
}

// LDARGS: spec scenario "argument passing".
func Test_VM_ldargs(t *testing.T) {
	prog := newTestProgram(t,
		opLDARGS,
		opADD,
		opPRINTI,
		opSTOP,
	)
	out, _, err := runVM(t, prog, []int64{10, 32})
	require.NoError(t, err)
	assert.Equal(t, "42 ", out)
}

// CONS/CAR: spec scenario "cons and car".
func Test_VM_cons_car(t *testing.T) {
	prog := newTestProgram(t,
		opCSTI, 10,
		opCSTI, 20,
		opCONS,
		opCAR,
		opPRINTI,
		opSTOP,
	)
	out, _, err := runVM(t, prog, nil)
	require.NoError(t, err)
	assert.Equal(t, "10 ", out)
}

// CONS/CDR on the same cell.
func Test_VM_cons_cdr(t *testing.T) {
	prog := newTestProgram(t,
		opCSTI, 10,
		opCSTI, 20,
		opCONS,
		opCDR,
		opPRINTI,
		opSTOP,
	)
	out, _, err := runVM(t, prog, nil)
	require.NoError(t, err)
	assert.Equal(t, "20 ", out)
}

// NIL then CAR: a null dereference must be a distinct, reported error and
// must not panic out of Run.
func Test_VM_car_of_null(t *testing.T) {
	prog := newTestProgram(t,
		opNIL,
		opCAR,
		opSTOP,
	)
	_, result, err := runVM(t, prog, nil)
	require.Error(t, err)
	assert.Equal(t, -1, result)
	assert.Contains(t, err.Error(), "Cannot take car of null")
}

func Test_VM_cdr_of_null(t *testing.T) {
	prog := newTestProgram(t,
		opNIL,
		opCDR,
		opSTOP,
	)
	_, _, err := runVM(t, prog, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot take cdr of null")
}

// Illegal opcode must be reported, not panic out.
func Test_VM_illegal_instruction(t *testing.T) {
	prog := newTestProgram(t, 255)
	_, result, err := runVM(t, prog, nil)
	require.Error(t, err)
	assert.Equal(t, -1, result)
	assert.Contains(t, err.Error(), "Illegal instruction 255 at address 0")
}

// A program allocating far more cons cells than the heap can hold at once,
// but retaining only a handful via a built list, must survive repeated
// collections and still print the retained values -- spec's GC liveness
// scenario.
func Test_VM_gc_survives_liveness(t *testing.T) {
	// build a 5-element list via CONS+SETCDR-style prepending, forcing the
	// interpreter through several collections on a tiny heap, then tear it
	// down by repeated CAR/CDR/PRINTI.
	var words []int
	push := func(n int) { words = append(words, opCSTI, n) }

	words = append(words, opNIL) // initial empty list
	for i := 1; i <= 5; i++ {
		push(i) // car value
		words = append(words, opSWAP)
		words = append(words, opCONS)
	}

	// with the 5-cell list (15 live words) sitting under it on the stack --
	// and so rooted throughout -- allocate and immediately discard 20 more
	// cons cells, each instantly garbage, to force several collections on
	// a heap barely bigger than the permanent list.
	for i := 0; i < 20; i++ {
		push(i)
		push(i)
		words = append(words, opCONS, opINCSP, -1)
	}

	// stack now holds the list head; walk and print it, replacing the
	// pointer with its cdr each iteration: DUP CAR PRINTI leaves the
	// original pointer under the printed car, INCSP -1 discards the car so
	// CDR can consume the pointer itself.
	for i := 0; i < 5; i++ {
		words = append(words, opDUP, opCAR, opPRINTI, opINCSP, -1, opCDR)
	}
	words = append(words, opSTOP)

	prog := newTestProgram(t, words...)
	var out bytes.Buffer
	vm := New(WithHeapSize(20), WithOutput(&out)) // barely fits the permanent list; forces repeated collection of garbage
	vm.prog = prog
	_, err := vm.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, vm.heap.collections > 0, "garbage churn on a heap this small must have triggered at least one collection")
	assert.Equal(t, "5 4 3 2 1 ", out.String())
}

// CALL/RET: a genuine function call with one argument, reading it back via
// GETBP+LDI (the calling-convention discipline §1 names as one of the three
// hard, tightly coupled pieces of this machine) and returning a computed
// result through RET's frame teardown.
//
//	main:   CSTI 21; CALL 1 double; PRINTI; STOP
//	double: GETBP; LDI; CSTI 2; MUL; RET 1
func Test_VM_call_ret_function(t *testing.T) {
	prog := newTestProgram(t,
		opCSTI, 21, // 0,1
		opCALL, 1, 7, // 2,3,4: call double(21)
		opPRINTI, // 5
		opSTOP,   // 6
		// double: 7
		opGETBP, // 7
		opLDI,   // 8
		opCSTI, 2, // 9,10
		opMUL,     // 11
		opRET, 1, // 12,13
	)
	out, result, err := runVM(t, prog, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result)
	assert.Equal(t, "42 ", out)
}

// TCALL: a self tail-recursive countdown, reusing the same activation record
// (bp never changes) across repeated IFNZRO/TCALL iterations until the
// argument reaches zero, at which point the IFNZRO fall-through path returns
// it. Exercises IFNZRO's both branches, GETBP/LDI as a local load, and
// TCALL's argument-shuffle-without-growing-the-frame discipline.
//
//	main:  CSTI 3; CALL 1 loop; PRINTI; STOP
//	loop:  GETBP; LDI; IFNZRO dec
//	       GETBP; LDI; RET 1                 ; n == 0: return it
//	dec:   GETBP; LDI; CSTI 1; SUB; TCALL 1 1 loop
func Test_VM_tcall_self_recursion(t *testing.T) {
	prog := newTestProgram(t,
		opCSTI, 3, // 0,1
		opCALL, 1, 7, // 2,3,4: call loop(3)
		opPRINTI, // 5
		opSTOP,   // 6
		// loop: 7
		opGETBP,        // 7
		opLDI,          // 8
		opIFNZRO, 15, // 9,10: n != 0 -> dec
		// n == 0: return n
		opGETBP, // 11
		opLDI,   // 12
		opRET, 1, // 13,14
		// dec: 15
		opGETBP, // 15
		opLDI,   // 16
		opCSTI, 1, // 17,18
		opSUB,              // 19
		opTCALL, 1, 1, 7, // 20,21,22,23: loop(n-1)
	)
	out, result, err := runVM(t, prog, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result)
	assert.Equal(t, "0 ", out)
}

// GETSP/LDI: spec §8's explicit testable invariant, "GETBP/GETSP followed by
// LDI loads the value that was at that stack index".
func Test_VM_getsp_ldi_roundtrip(t *testing.T) {
	prog := newTestProgram(t,
		opCSTI, 99,
		opGETSP,
		opLDI,
		opPRINTI,
		opSTOP,
	)
	out, _, err := runVM(t, prog, nil)
	require.NoError(t, err)
	assert.Equal(t, "99 ", out)
}

// STI/LDI: storing through a computed address must be visible both to the
// value STI pushes back and to a subsequent independent LDI of the same
// slot.
func Test_VM_sti_ldi_roundtrip(t *testing.T) {
	prog := newTestProgram(t,
		opCSTI, 5, // slot 0's initial value
		opCSTI, 0, // address operand for STI
		opCSTI, 77, // value to store
		opSTI,
		opPRINTI, // STI's own result
		opCSTI, 0,
		opLDI,
		opPRINTI, // reload of slot 0 through an independent LDI
		opSTOP,
	)
	out, _, err := runVM(t, prog, nil)
	require.NoError(t, err)
	assert.Equal(t, "77 77 ", out)
}

// GOTO must skip the instructions between it and its target.
func Test_VM_goto(t *testing.T) {
	prog := newTestProgram(t,
		opGOTO, 4,
		opCSTI, 999, // dead code, must never execute
		opCSTI, 7, // target
		opPRINTI,
		opSTOP,
	)
	out, _, err := runVM(t, prog, nil)
	require.NoError(t, err)
	assert.Equal(t, "7 ", out)
}

// IFZERO's taken branch must skip to its target; its fall-through path is
// not exercised here (Test_VM_tcall_self_recursion covers both branches of
// the sibling IFNZRO).
func Test_VM_ifzero_taken(t *testing.T) {
	prog := newTestProgram(t,
		opCSTI, 0,
		opIFZERO, 6,
		opCSTI, 999, // dead code, must never execute
		opCSTI, 5, // target
		opPRINTI,
		opSTOP,
	)
	out, _, err := runVM(t, prog, nil)
	require.NoError(t, err)
	assert.Equal(t, "5 ", out)
}

// EQ and LT compare raw tagged words; NOT implements the uniform "is zero"
// rule used by IFZERO/IFNZRO.
func Test_VM_eq_lt_not(t *testing.T) {
	for _, tc := range []struct {
		name string
		prog []int
		want string
	}{
		{"eq true", []int{opCSTI, 5, opCSTI, 5, opEQ, opPRINTI, opSTOP}, "1 "},
		{"eq false", []int{opCSTI, 5, opCSTI, 6, opEQ, opPRINTI, opSTOP}, "0 "},
		{"lt true", []int{opCSTI, 3, opCSTI, 5, opLT, opPRINTI, opSTOP}, "1 "},
		{"lt false", []int{opCSTI, 5, opCSTI, 3, opLT, opPRINTI, opSTOP}, "0 "},
		{"not zero", []int{opCSTI, 0, opNOT, opPRINTI, opSTOP}, "1 "},
		{"not nonzero", []int{opCSTI, 5, opNOT, opPRINTI, opSTOP}, "0 "},
	} {
		t.Run(tc.name, func(t *testing.T) {
			prog := newTestProgram(t, tc.prog...)
			out, _, err := runVM(t, prog, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}
}

// SETCAR/SETCDR mutate a cons cell in place; CAR/CDR afterward must observe
// the mutation, per §8's "SETCAR v; CAR yields v" round-trip law.
func Test_VM_setcar_setcdr(t *testing.T) {
	t.Run("setcar", func(t *testing.T) {
		prog := newTestProgram(t,
			opCSTI, 1,
			opCSTI, 2,
			opCONS,
			opCSTI, 99,
			opSETCAR,
			opCAR,
			opPRINTI,
			opSTOP,
		)
		out, _, err := runVM(t, prog, nil)
		require.NoError(t, err)
		assert.Equal(t, "99 ", out)
	})

	t.Run("setcdr", func(t *testing.T) {
		prog := newTestProgram(t,
			opCSTI, 1,
			opCSTI, 2,
			opCONS,
			opCSTI, 88,
			opSETCDR,
			opCDR,
			opPRINTI,
			opSTOP,
		)
		out, _, err := runVM(t, prog, nil)
		require.NoError(t, err)
		assert.Equal(t, "88 ", out)
	})
}
