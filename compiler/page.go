package compiler

// Word is one 4-byte encoded instruction: a zero pad byte, the opcode, and
// a big-endian 16-bit argument (spec.md §4.6's "pad(1) op(1) arg(2)"
// layout). Arg's meaning depends on Op: a symbol/value-table index, a jump
// target, an operand count, or unused (0).
type Word struct {
	Op  Op
	Arg uint16
}

// Page is one compiled unit of code: the main program, or one `fun` body.
// Grounded on the teacher's growable-image-by-doubling pattern
// (_examples/db47h-ngaro/asm/parser.go), generalized from a flat Forth
// image to one Page per function.
type Page struct {
	Words []Word
}

// emit appends word and returns its index, for later patching of forward
// jump targets.
func (p *Page) emit(op Op, arg uint16) int {
	p.Words = append(p.Words, Word{Op: op, Arg: arg})
	return len(p.Words) - 1
}

// patch rewrites the argument of a previously emitted word, used to back-
// fill forward jump targets once the branch destination is known.
func (p *Page) patch(idx int, arg uint16) {
	p.Words[idx].Arg = arg
}

func (p *Page) here() uint16 { return uint16(len(p.Words)) }
