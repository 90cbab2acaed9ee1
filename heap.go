package main

import "fmt"

// errOOM is raised when a collection fails to reclaim enough space for an
// allocation; VM.cons halts the VM with it, and the CLI (main) terminates
// the process when Run returns it, per §7.
var errOOM = fmt.Errorf("out of memory")

// Heap is a two-space copying collector over cons cells. Pointers are word
// indices plus one, shifted left by two (so the low two bits -- the alignment
// invariant every stack slot and heap field must satisfy -- are always
// zero); nil is the literal word 0, which already satisfies that shape.
//
// Only one block kind is ever allocated (consTag), per spec: the tag field
// exists for an extension this machine never exercises.
type Heap struct {
	from, to []word
	free     int // index into from, in words, where the next allocation begins

	collections uint
	wordsCopied uint64
}

// NewHeap allocates two semispaces of size words each and marks the whole of
// the active one as a single free (Blue) block, matching listmachine6.c's
// initheap.
func NewHeap(size int) *Heap {
	if size < 2 {
		size = 2
	}
	h := &Heap{
		from: make([]word, size),
		to:   make([]word, size),
	}
	h.from[0] = makeHeader(0, size-1, colorBlue)
	h.to[0] = makeHeader(0, size-1, colorBlue)
	return h
}

// Pointers are offset by one word so that index 0 -- always the first
// block ever allocated in a space -- never collides with the literal word
// 0 used as nil. listmachine6.c avoids this for free, since its "pointers"
// are real C addresses into a malloc'd array and never equal to 0 unless
// actually null.
func ptrToIndex(p word) int { return int(p>>2) - 1 }
func indexToPtr(i int) word { return word(i+1) << 2 }

func inSpace(space []word, p word) bool {
	if p == 0 {
		return false
	}
	i := ptrToIndex(p)
	return i >= 0 && i < len(space)
}

// block returns the payload-including slice for the block at p, i.e.
// block[0] is the header and block[1..length] is the payload.
func (h *Heap) block(p word) []word {
	i := ptrToIndex(p)
	length := headerLength(h.from[i])
	return h.from[i : i+length+1]
}

// Car and Cdr read a cons cell's fields. p must be non-nil; callers (VM.car/
// VM.cdr) are responsible for the null check and its distinct error message.
func (h *Heap) Car(p word) word { return h.from[ptrToIndex(p)+1] }
func (h *Heap) Cdr(p word) word { return h.from[ptrToIndex(p)+2] }

// SetCar and SetCdr mutate a cons cell's fields in place. Because both
// fields may hold pointers, a program that builds cycles via these two
// operations is explicitly supported -- see Collect's forwarding check.
func (h *Heap) SetCar(p, v word) { h.from[ptrToIndex(p)+1] = v }
func (h *Heap) SetCdr(p, v word) { h.from[ptrToIndex(p)+2] = v }

// Allocate returns a pointer to a fresh block of the given tag and payload
// length, initializing its header to color White and leaving its payload
// words uninitialized (callers write them immediately, as CONS does).
//
// roots is the live window of the stack at the point of allocation --
// inclusive of any operands an instruction has logically consumed but not
// yet overwritten, per the spec's resolution of its own open question on
// collector root range. Allocate may rewrite entries of roots in place: any
// slot holding a from-space pointer is forwarded to its to-space copy during
// a collection, and the caller must reload any local copies taken from the
// stack before the call.
func (h *Heap) Allocate(blockTag, length int, roots []word) (word, error) {
	if p, ok := h.tryAllocate(blockTag, length); ok {
		return p, nil
	}
	h.Collect(roots)
	if p, ok := h.tryAllocate(blockTag, length); ok {
		return p, nil
	}
	return 0, errOOM
}

func (h *Heap) tryAllocate(blockTag, length int) (word, bool) {
	newFree := h.free + length + 1
	if newFree > len(h.from) {
		return 0, false
	}
	p := h.free
	h.from[p] = makeHeader(blockTag, length, colorWhite)
	h.free = newFree
	return indexToPtr(p), true
}

// Collect runs a full Cheney copying collection: every live block is copied
// from from-space into to-space exactly once (cycles and shared structure
// are preserved via the forwarding-pointer check), every stack and heap
// reference to a moved block is rewritten to point at the copy, and the two
// semispaces are swapped.
func (h *Heap) Collect(roots []word) {
	h.free = 0

	for i, w := range roots {
		if !isScalar(w) && w != 0 {
			roots[i] = h.forward(w)
		}
	}

	for scan := 0; scan < h.free; {
		hdr := h.to[scan]
		length := headerLength(hdr)
		for i := 1; i <= length; i++ {
			w := h.to[scan+i]
			if !isScalar(w) && w != 0 && inSpace(h.from, w) {
				h.to[scan+i] = h.forward(w)
			}
		}
		scan += length + 1
	}

	h.to[h.free] = makeHeader(0, len(h.to)-h.free-1, colorBlue)

	h.from, h.to = h.to, h.from
	h.collections++
}

// forward returns the to-space address of the from-space block p, copying it
// on first encounter and leaving a forwarding pointer behind: the from-space
// header is painted Grey and its car field is overwritten with the copy's
// address. Both spaces use the same index range, so a pointer's value alone
// cannot say which space it refers to; the Grey header is what marks a block
// as forwarded. The forwarding check must precede any copy so that cyclic
// and shared structure is only ever copied once.
func (h *Heap) forward(p word) word {
	i := ptrToIndex(p)
	if headerColor(h.from[i]) == colorGrey {
		return h.from[i+1] // already forwarded
	}

	length := headerLength(h.from[i])
	dst := h.free
	copy(h.to[dst:dst+length+1], h.from[i:i+length+1])
	h.from[i] = paint(h.from[i], colorGrey)
	h.from[i+1] = indexToPtr(dst) // forwarding pointer, overwrites the car field
	h.free += length + 1
	h.wordsCopied += uint64(length + 1)
	return indexToPtr(dst)
}

// Len reports the heap's total capacity in words, for diagnostics.
func (h *Heap) Len() int { return len(h.from) }
