package main

// Opcodes, in the order and numbering §6 of the spec fixes. Each occupies
// one program word, optionally followed by inline operand words.
const (
	opCSTI = iota
	opADD
	opSUB
	opMUL
	opDIV
	opMOD
	opEQ
	opLT
	opNOT
	opDUP
	opSWAP
	opLDI
	opSTI
	opGETBP
	opGETSP
	opINCSP
	opGOTO
	opIFZERO
	opIFNZRO
	opCALL
	opTCALL
	opRET
	opPRINTI
	opPRINTC
	opLDARGS
	opSTOP
	opNIL
	opCONS
	opCAR
	opCDR
	opSETCAR
	opSETCDR

	opMax
)

var opNames = [opMax]string{
	opCSTI:   "CSTI",
	opADD:    "ADD",
	opSUB:    "SUB",
	opMUL:    "MUL",
	opDIV:    "DIV",
	opMOD:    "MOD",
	opEQ:     "EQ",
	opLT:     "LT",
	opNOT:    "NOT",
	opDUP:    "DUP",
	opSWAP:   "SWAP",
	opLDI:    "LDI",
	opSTI:    "STI",
	opGETBP:  "GETBP",
	opGETSP:  "GETSP",
	opINCSP:  "INCSP",
	opGOTO:   "GOTO",
	opIFZERO: "IFZERO",
	opIFNZRO: "IFNZRO",
	opCALL:   "CALL",
	opTCALL:  "TCALL",
	opRET:    "RET",
	opPRINTI: "PRINTI",
	opPRINTC: "PRINTC",
	opLDARGS: "LDARGS",
	opSTOP:   "STOP",
	opNIL:    "NIL",
	opCONS:   "CONS",
	opCAR:    "CAR",
	opCDR:    "CDR",
	opSETCAR: "SETCAR",
	opSETCDR: "SETCDR",
}

// opOperands gives the number of inline operand words each opcode consumes
// from the program stream, used by the disassembler/tracer to print whole
// instructions rather than bare opcodes.
var opOperands = [opMax]int{
	opCSTI:   1,
	opINCSP:  1,
	opGOTO:   1,
	opIFZERO: 1,
	opIFNZRO: 1,
	opCALL:   2,
	opTCALL:  3,
	opRET:    1,
}

func opName(op int) string {
	if op < 0 || op >= opMax {
		return ""
	}
	return opNames[op]
}
