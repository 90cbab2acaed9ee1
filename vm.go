package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcorbin/listmachine/internal/flushio"
	"github.com/jcorbin/listmachine/internal/panicerr"
	"github.com/jcorbin/listmachine/internal/runeio"
)

// VM is the list machine: a unified value stack for locals, arguments and
// temporaries, a two-space cons-cell heap, and the 32-instruction
// interpreter loop of §6.
type VM struct {
	logging

	prog *Program
	pc   uint

	stack []word
	bp    int // base pointer; -1 means "no active frame"
	sp    int // top-of-stack index; -1 means "empty"

	iargs []int64

	heap *Heap

	out     flushio.WriteFlusher
	closers []closer
}

type closer interface{ Close() error }

const defaultStackSize = 1000
const defaultHeapSize = 1000

// New constructs a VM with the given options applied, mirroring gothird's
// New(opts ...VMOption).
func New(opts ...VMOption) *VM {
	vm := &VM{
		stack: make([]word, defaultStackSize),
		bp:    -1,
		sp:    -1,
	}
	VMOptions(opts...).apply(vm)
	if vm.heap == nil {
		vm.heap = NewHeap(defaultHeapSize)
	}
	if vm.out == nil {
		vm.out = flushio.NewWriteFlusher(discardWriter{})
	}
	return vm
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Close releases any resources acquired by options (e.g. an output file).
func (vm *VM) Close() (err error) {
	for i := len(vm.closers) - 1; i >= 0; i-- {
		if cerr := vm.closers[i].Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Run executes the loaded program to completion, returning nil on a normal
// STOP and a non-nil error on any runtime fault or out-of-memory condition.
// The call is isolated through internal/panicerr so that a wayward
// interpreter loop (an unexpected panic deep in Collect, say) can never take
// the calling process down without a clean error return -- the single VM
// boundary called for by §7.
func (vm *VM) Run(ctx context.Context) (result int, err error) {
	err = panicerr.Recover("VM", func() error {
		r, rerr := vm.run(ctx)
		result = r
		return rerr
	})
	var he haltError
	if errors.As(err, &he) {
		err = he.error
		result = -1
	}
	return result, err
}

// IsOOM reports whether err is the out-of-memory condition raised by
// Allocate when a collection fails to reclaim enough space -- the one fault
// that §7 calls for terminating the process rather than just returning -1.
func IsOOM(err error) bool { return errors.Is(err, errOOM) }

// halt flushes output and turns err into a panic carrying a haltError, to be
// recovered by Run. This is the interpreter's only path for runtime faults
// (§7 kind 2) and the fatal out-of-memory condition (§7 kind 3); both
// propagate through the same funnel.
func (vm *VM) halt(err error) {
	if ferr := vm.out.Flush(); err == nil {
		err = ferr
	}
	vm.logf("halt: %v", err)
	panic(haltError{err})
}

func (vm *VM) run(ctx context.Context) (int, error) {
	vm.pc = 0
	vm.bp = -1
	vm.sp = -1

	for i := range vm.stack {
		vm.stack[i] = 0
	}

	for {
		if err := ctx.Err(); err != nil {
			return -1, err
		}
		if vm.logfn != nil {
			vm.traceStep()
		}

		op, err := vm.fetch()
		if err != nil {
			vm.halt(err)
		}

		switch op {
		case opSTOP:
			if err := vm.out.Flush(); err != nil {
				return -1, err
			}
			return 0, nil
		case opCSTI:
			n := vm.fetchOperand()
			vm.push(tag(int64(n)))
		case opADD:
			b, a := vm.pop(), vm.pop()
			vm.push(tag(untag(a) + untag(b)))
		case opSUB:
			b, a := vm.pop(), vm.pop()
			vm.push(tag(untag(a) - untag(b)))
		case opMUL:
			b, a := vm.pop(), vm.pop()
			vm.push(tag(untag(a) * untag(b)))
		case opDIV:
			b, a := vm.pop(), vm.pop()
			vm.push(tag(untag(a) / untag(b)))
		case opMOD:
			b, a := vm.pop(), vm.pop()
			vm.push(tag(untag(a) % untag(b)))
		case opEQ:
			b, a := vm.pop(), vm.pop()
			vm.push(tag(boolInt(a == b)))
		case opLT:
			b, a := vm.pop(), vm.pop()
			vm.push(tag(boolInt(uint64(a) < uint64(b))))
		case opNOT:
			a := vm.pop()
			vm.push(tag(boolInt(isZero(a))))
		case opDUP:
			vm.push(vm.top())
		case opSWAP:
			vm.stack[vm.sp], vm.stack[vm.sp-1] = vm.stack[vm.sp-1], vm.stack[vm.sp]
		case opLDI:
			addr := untag(vm.top())
			vm.setTop(vm.stack[addr])
		case opSTI:
			v := vm.pop()
			addr := untag(vm.pop())
			vm.stack[addr] = v
			vm.push(v)
		case opGETBP:
			vm.push(tag(int64(vm.bp)))
		case opGETSP:
			vm.push(tag(int64(vm.sp)))
		case opINCSP:
			m := vm.fetchOperand()
			vm.growStack(vm.sp + m)
			vm.sp += m
		case opGOTO:
			vm.pc = uint(vm.fetchOperand())
		case opIFZERO:
			t := vm.fetchOperand()
			v := vm.pop()
			if isZero(v) {
				vm.pc = uint(t)
			}
		case opIFNZRO:
			t := vm.fetchOperand()
			v := vm.pop()
			if !isZero(v) {
				vm.pc = uint(t)
			}
		case opCALL:
			argc := vm.fetchOperand()
			target := vm.fetchOperand()
			vm.call(argc, target)
		case opTCALL:
			argc := vm.fetchOperand()
			pop := vm.fetchOperand()
			target := vm.fetchOperand()
			vm.tcall(argc, pop, target)
		case opRET:
			m := vm.fetchOperand()
			vm.ret(m)
		case opPRINTI:
			vm.printi()
		case opPRINTC:
			vm.printc()
		case opLDARGS:
			for _, a := range vm.iargs {
				vm.push(tag(a))
			}
		case opNIL:
			vm.push(0)
		case opCONS:
			vm.cons()
		case opCAR:
			if err := vm.car(); err != nil {
				vm.halt(err)
			}
		case opCDR:
			if err := vm.cdr(); err != nil {
				vm.halt(err)
			}
		case opSETCAR:
			v := vm.pop()
			vm.heap.SetCar(vm.top(), v)
		case opSETCDR:
			v := vm.pop()
			vm.heap.SetCdr(vm.top(), v)
		default:
			vm.halt(illegalOpError{op, vm.pc - 1})
		}
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// fetch reads the opcode at pc and advances pc past it.
func (vm *VM) fetch() (int, error) {
	v, err := vm.prog.At(vm.pc)
	if err != nil {
		return 0, err
	}
	vm.pc++
	return v, nil
}

// fetchOperand reads one inline operand word, untagged (program words are
// stored untagged in the program stream, per §3).
func (vm *VM) fetchOperand() int {
	v, err := vm.prog.At(vm.pc)
	if err != nil {
		vm.halt(err)
	}
	vm.pc++
	return v
}

func (vm *VM) growStack(need int) {
	if need < len(vm.stack) {
		return
	}
	grown := make([]word, need+1+len(vm.stack))
	copy(grown, vm.stack)
	vm.stack = grown
}

func (vm *VM) push(w word) {
	vm.sp++
	vm.growStack(vm.sp)
	vm.stack[vm.sp] = w
}

func (vm *VM) pop() word {
	w := vm.stack[vm.sp]
	vm.sp--
	return w
}

func (vm *VM) top() word     { return vm.stack[vm.sp] }
func (vm *VM) setTop(w word) { vm.stack[vm.sp] = w }

// roots returns the live window of the stack for GC purposes: the spec's
// open question on collector root range is resolved as the inclusive
// 0..=sp window, so that CONS's not-yet-overwritten operands at sp-1 and sp
// are always recognized as roots.
func (vm *VM) roots() []word { return vm.stack[:vm.sp+1] }

// call implements CALL argc target: see §4.3. The argc argument slots
// already on the stack are shifted up by two words to make room for the
// tagged return address and saved base pointer beneath them.
func (vm *VM) call(argc, target int) {
	vm.growStack(vm.sp + 2)
	for i := 0; i < argc; i++ {
		vm.stack[vm.sp-i+2] = vm.stack[vm.sp-i]
	}
	vm.stack[vm.sp-argc+1] = tag(int64(vm.pc))
	vm.sp++
	vm.stack[vm.sp-argc+1] = tag(int64(vm.bp))
	vm.sp++
	vm.bp = vm.sp + 1 - argc
	vm.pc = uint(target)
}

// tcall implements TCALL argc pop target: the current frame is reused, its
// top argc slots replaced by pop positions down, with bp left untouched.
func (vm *VM) tcall(argc, pop, target int) {
	for i := argc - 1; i >= 0; i-- {
		vm.stack[vm.sp-i-pop] = vm.stack[vm.sp-i]
	}
	vm.sp -= pop
	vm.pc = uint(target)
}

// ret implements RET m: see §4.3.
func (vm *VM) ret(m int) {
	res := vm.pop()
	vm.sp -= m
	vm.bp = int(untag(vm.stack[vm.sp]))
	vm.sp--
	vm.pc = uint(untag(vm.stack[vm.sp]))
	vm.sp--
	vm.push(res)
}

func (vm *VM) printi() {
	v := vm.top()
	n := untag(v)
	if !isScalar(v) {
		n = int64(v)
	}
	fmt.Fprintf(vm.out, "%d ", n)
}

func (vm *VM) printc() {
	v := vm.top()
	if _, err := runeio.WriteANSIRune(vm.out, rune(untag(v))); err != nil {
		vm.halt(err)
	}
}

// cons allocates a fresh cons cell, popping car and cdr (already on the
// stack as the two top words) and pushing the resulting pointer.
//
// Allocate is invoked with the whole live stack as roots, including the car
// and cdr operands that haven't yet been overwritten -- the resolution of
// §9's root-range open question.
func (vm *VM) cons() {
	p, err := vm.heap.Allocate(consTag, 2, vm.roots())
	if err != nil {
		vm.halt(err)
	}
	cdr := vm.pop()
	car := vm.pop()
	vm.heap.SetCar(p, car)
	vm.heap.SetCdr(p, cdr)
	vm.push(p)
}

func (vm *VM) car() error {
	p := vm.top()
	if p == 0 {
		return errCarNull
	}
	vm.setTop(vm.heap.Car(p))
	return nil
}

func (vm *VM) cdr() error {
	p := vm.top()
	if p == 0 {
		return errCdrNull
	}
	vm.setTop(vm.heap.Cdr(p))
	return nil
}
