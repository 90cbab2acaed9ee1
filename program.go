package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/jcorbin/listmachine/internal/mem"
)

// Program holds the loaded bytecode array. Storage is backed directly by
// internal/mem.Ints -- the teacher's paged integer memory, built for FIRST's
// main memory -- since, unlike the two fixed-size heap semispaces and the
// fixed-size stack, a program's length isn't known until the whole file has
// been read: each word Stor'd as it streams in lets Ints grow its own pages
// to fit, rather than pre-sizing any buffer.
type Program struct {
	words mem.Ints
	size  int
}

// LoadProgram reads whitespace-separated decimal words into a Program,
// Stor-ing each one as it's scanned so that Ints' own paged growth (not a
// hand-rolled buffer) absorbs a program file of any length.
func LoadProgram(r io.Reader) (*Program, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	p := &Program{}
	for sc.Scan() {
		n, err := strconv.ParseInt(sc.Text(), 10, strconv.IntSize)
		if err != nil {
			return nil, fmt.Errorf("invalid program word %q: %w", sc.Text(), err)
		}
		if err := p.words.Stor(uint(p.size), int(n)); err != nil {
			return nil, err
		}
		p.size++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// Len reports the number of words in the loaded program.
func (p *Program) Len() int { return p.size }

// At returns the program word at addr, or an error if addr runs past the end
// of the loaded program -- the interpreter treats this as a smashed program
// counter (progError).
func (p *Program) At(addr uint) (int, error) {
	if int(addr) >= p.size {
		return 0, progError(addr)
	}
	return p.words.Load(addr)
}
