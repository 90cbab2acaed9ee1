package main

// A word is the unit of storage on the stack and in the heap. Bit 0
// discriminates: a 1 marks a tagged scalar (the 63 remaining bits hold a
// signed integer, shifted left by one); a 0 marks a heap pointer or a block
// header. Heap pointers are always word-index-aligned, i.e. their low two
// bits are zero, so nil (the literal 0) is simultaneously a valid "aligned
// pointer" and the empty list.
//
// This type underlies both the value stack and the two heap semispaces; it
// is the single shared contract between word.go, heap.go and vm.go.
type word int64

const nilWord word = 0

// isScalar reports whether w is a tagged integer rather than a heap pointer.
func isScalar(w word) bool { return w&1 == 1 }

// tag packs a signed integer into a scalar word.
func tag(n int64) word { return word(n<<1) | 1 }

// untag unpacks the signed integer carried by a scalar word. The result is
// unspecified if w is not a scalar.
func untag(w word) int64 { return int64(w) >> 1 }

// isZero implements the machine's uniform "is this word zero" rule used by
// NOT, IFZERO and IFNZRO: a tagged scalar is zero if its untagged value is
// zero, and the literal pointer word 0 (nil) is always zero.
func isZero(w word) bool {
	if isScalar(w) {
		return untag(w) == 0
	}
	return w == 0
}

const (
	colorWhite = 0 // freshly allocated, live
	colorGrey  = 1 // from-space block already copied by Collect; its car field holds the forwarding pointer
	colorBlack = 2 // reserved for a future mark-sweep variant
	colorBlue  = 3 // free region
)

// header bit layout, within the low 32 bits of a word:
//
//	tttttttt nnnnnnnnnnnnnnnnnnnnnn gg
//	tag (8)   length (22)            color (2)
const (
	headerColorBits  = 2
	headerColorMask  = 1<<headerColorBits - 1
	headerLengthBits = 22
	headerLengthMask = 1<<headerLengthBits - 1
	headerTagShift   = headerColorBits + headerLengthBits
)

// makeHeader packs a block's tag, payload length and color into a header word.
func makeHeader(blockTag, length, color int) word {
	return word(blockTag)<<headerTagShift | word(length&headerLengthMask)<<headerColorBits | word(color&headerColorMask)
}

func headerTag(h word) int    { return int(h >> headerTagShift) }
func headerLength(h word) int { return int(h>>headerColorBits) & headerLengthMask }
func headerColor(h word) int  { return int(h & headerColorMask) }

// paint returns h with its color bits replaced by c.
func paint(h word, c int) word { return h&^headerColorMask | word(c&headerColorMask) }

// consTag is the only block tag the machine allocates; the tag field exists
// to let a future extension add other block kinds without changing the
// header encoding.
const consTag = 0
