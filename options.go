package main

import (
	"io"
	"io/ioutil"

	"github.com/jcorbin/listmachine/internal/flushio"
)

// VMOption configures a VM at construction time, mirroring gothird's own
// VMOption/VMOptions pattern (api.go/options.go) but over this machine's
// domain: output stream, LDARGS operands, heap and stack sizing, and trace
// logging rather than FIRST's input queue and memory layout.
type VMOption interface{ apply(vm *VM) }

// VMOptions flattens a slice of options into one, so that New can apply them
// with a single call regardless of how many were given.
func VMOptions(opts ...VMOption) VMOption {
	var res options
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noption:
		case options:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	switch len(res) {
	case 0:
		return noption{}
	case 1:
		return res[0]
	default:
		return res
	}
}

type noption struct{}

func (noption) apply(*VM) {}

type options []VMOption

func (opts options) apply(vm *VM) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(vm)
		}
	}
}

type outputOption struct{ io.Writer }
type teeOption struct{ io.Writer }
type iargsOption []int64
type heapSizeOption int
type stackSizeOption int
type logfnOption func(mess string, args ...interface{})

// WithOutput sets the stream PRINTI and PRINTC write to. Without this option
// a VM discards its output, matching gothird's default of ioutil.Discard.
func WithOutput(w io.Writer) VMOption { return outputOption{w} }

// WithTee additionally mirrors output to w, e.g. for capturing a trace dump
// alongside normal program output.
func WithTee(w io.Writer) VMOption { return teeOption{w} }

// WithArgs supplies the integers LDARGS pushes, taken from the CLI's
// trailing positional operands per §6.
func WithArgs(args []int64) VMOption { return iargsOption(args) }

// WithHeapSize overrides the two semispaces' word capacity (each, not
// combined), replacing the original's compile-time HEAPSIZE.
func WithHeapSize(size int) VMOption { return heapSizeOption(size) }

// WithStackSize raises the initial value stack capacity; a size no larger
// than the current capacity is ignored. The stack still grows on demand past
// this, per growStack.
func WithStackSize(size int) VMOption { return stackSizeOption(size) }

// WithLogf installs a per-instruction trace function, called before every
// fetch when non-nil. mess follows logrus's Logf convention.
func WithLogf(logfn func(mess string, args ...interface{})) VMOption {
	return logfnOption(logfn)
}

func (o outputOption) apply(vm *VM) {
	if vm.out != nil {
		vm.out.Flush()
	}
	vm.out = flushio.NewWriteFlusher(o.Writer)
	if cl, ok := o.Writer.(io.Closer); ok {
		vm.closers = append(vm.closers, cl)
	}
}

func (o teeOption) apply(vm *VM) {
	if vm.out == nil {
		vm.out = flushio.NewWriteFlusher(ioutil.Discard)
	}
	vm.out = flushio.WriteFlushers(vm.out, flushio.NewWriteFlusher(o.Writer))
	if cl, ok := o.Writer.(io.Closer); ok {
		vm.closers = append(vm.closers, cl)
	}
}

func (a iargsOption) apply(vm *VM) { vm.iargs = []int64(a) }

func (n heapSizeOption) apply(vm *VM) { vm.heap = NewHeap(int(n)) }

func (n stackSizeOption) apply(vm *VM) {
	if int(n) > len(vm.stack) {
		vm.stack = make([]word, int(n))
	}
}

func (logfn logfnOption) apply(vm *VM) { vm.logfn = logfn }
