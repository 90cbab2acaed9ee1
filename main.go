/*
Package main runs the list machine: a small stack-based bytecode
interpreter over an integer value stack and a two-space copying cons-cell
heap (see word.go, heap.go, vm.go).

A program is a whitespace-separated stream of decimal words, the flat
encoding of the 32-opcode instruction set described in opcodes.go. Trailing
command-line arguments become the integers LDARGS pushes onto the stack.

	listmachine [-trace] [-dump] [-heap-size n] programfile [arg ...]
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/jcorbin/listmachine/internal/vmlog"
)

func main() {
	var (
		trace    bool
		dump     bool
		heapSize uint
		timeout  time.Duration
	)
	flag.BoolVar(&trace, "trace", false, "enable per-instruction trace logging")
	flag.BoolVar(&dump, "dump", false, "print a stack/heap dump after execution")
	flag.UintVar(&heapSize, "heap-size", defaultHeapSize, "semispace size in words")
	flag.DurationVar(&timeout, "timeout", 0, "abort the program after this long")
	flag.Parse()

	level := logrus.InfoLevel
	if trace {
		level = logrus.TraceLevel
	}
	log := vmlog.New(os.Stderr, level)
	defer func() { os.Exit(log.ExitCode()) }()

	args := flag.Args()
	if len(args) < 1 {
		log.ErrorIf(fmt.Errorf("usage: listmachine [-trace] [-dump] programfile [arg ...]"))
		return
	}

	f, err := os.Open(args[0])
	if err != nil {
		log.ErrorIf(err)
		return
	}
	prog, err := LoadProgram(f)
	f.Close()
	if err != nil {
		log.ErrorIf(err)
		return
	}

	iargs := make([]int64, 0, len(args)-1)
	for _, a := range args[1:] {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			log.ErrorIf(fmt.Errorf("invalid program argument %q: %w", a, err))
			return
		}
		iargs = append(iargs, n)
	}

	opts := []VMOption{
		WithOutput(os.Stdout),
		WithArgs(iargs),
		WithHeapSize(int(heapSize)),
	}
	if trace {
		opts = append(opts, WithLogf(log.Leveledf("trace")))
	}

	vm := New(opts...)
	vm.prog = prog
	defer vm.Close()

	if dump {
		defer vmDumper{vm: vm, out: os.Stderr}.dump()
	}

	ctx := context.Background()
	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var ru1, ru2 unix.Rusage
	unix.Getrusage(unix.RUSAGE_SELF, &ru1)
	_, err = vm.Run(ctx)
	unix.Getrusage(unix.RUSAGE_SELF, &ru2)

	if IsOOM(err) {
		fmt.Fprintln(os.Stderr, "out of memory")
		os.Exit(1)
	}
	log.ErrorIf(err)

	runtime := float64(ru2.Utime.Sec-ru1.Utime.Sec) + float64(ru2.Utime.Usec-ru1.Utime.Usec)/1e6
	fmt.Fprintf(os.Stderr, "\nUsed %7.3f cpu seconds\n", runtime)
}

