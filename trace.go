package main

import (
	"fmt"
	"strings"
)

// logging is embedded in VM to hold its optional per-instruction trace hook,
// mirroring gothird's bare vm.logfn field (set via WithLogf) rather than
// introducing a distinct logger type into the interpreter itself -- VM stays
// ignorant of logrus, vmlog, or any other logging backend.
type logging struct {
	logfn func(mess string, args ...interface{})
}

func (l *logging) logf(mess string, args ...interface{}) {
	if l.logfn != nil {
		l.logfn(mess, args...)
	}
}

// traceStep logs the stack (heap pointers marked with '#', same as
// listmachine6.c's printStackAndPc) and the instruction about to execute,
// before it executes.
func (vm *VM) traceStep() {
	var b strings.Builder
	b.WriteString("[ ")
	for i := 0; i <= vm.sp; i++ {
		w := vm.stack[i]
		if isScalar(w) {
			fmt.Fprintf(&b, "%d ", untag(w))
		} else {
			fmt.Fprintf(&b, "#%d ", w)
		}
	}
	fmt.Fprintf(&b, "]{%d:%s}", vm.pc, vm.disassembleAt(vm.pc))
	vm.logf("%s", b.String())
}

// disassembleAt formats the instruction at addr without advancing pc,
// matching printInstruction's mnemonic-plus-operands rendering.
func (vm *VM) disassembleAt(addr uint) string {
	op, err := vm.prog.At(addr)
	if err != nil {
		return "<end>"
	}
	name := opName(op)
	if name == "" {
		return "<unknown>"
	}
	n := opOperands[op]
	if n == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	for i := 1; i <= n; i++ {
		operand, err := vm.prog.At(addr + uint(i))
		if err != nil {
			break
		}
		fmt.Fprintf(&b, " %d", operand)
	}
	return b.String()
}
