// Package bytecode encodes a compiler.Program into the binary container
// spec.md §6 describes (magic, version, timestamp, a SHA-256 integrity
// hash, then symbol/value tables and one code segment per page) and
// decodes it back.
//
// Grounded on _examples/db47h-ngaro/vm/image.go's Load/Save pair:
// encoding/binary reads and writes against a file, generalized from a
// flat little-endian Cell image to this format's big-endian, tagged,
// sectioned layout.
package bytecode

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/arkscript-lang/ark/compiler"
	"github.com/arkscript-lang/ark/value"
	"github.com/pkg/errors"
)

// Version is the container format version stamped into every encoded
// bytecode file. The exact numbers original_source stamps
// (ARK_VERSION_MAJOR/MINOR/PATCH) are set by its build system and not
// present in the filtered source tree; these are a reasonable stand-in.
var Version = struct{ Major, Minor, Patch uint16 }{3, 3, 0}

var magic = [4]byte{'a', 'r', 'k', 0x00}

const (
	tagSymTableStart  = 0x01
	tagValTableStart  = 0x02
	tagCodeSegStart   = 0x03
	valTagNumber      = 0x01
	valTagString      = 0x02
	valTagFunc        = 0x03
)

// Bytecode is the decoded container contents: the interned tables and
// one page of instruction words per compiled function (Pages[0] is the
// top-level program).
type Bytecode struct {
	Major, Minor, Patch uint16
	Timestamp           uint64
	Symbols             []string
	Values              []value.Value
	Pages               []*compiler.Page
}

// Encode serializes prog into the binary container, appending a
// terminal HALT to every page (and emitting an explicit single-NOP page
// for a page with zero instructions) and stamping the hash over
// everything after the hash field.
func Encode(prog *compiler.Program, timestamp uint64) ([]byte, error) {
	if len(prog.Symbols) > 0xFFFF {
		return nil, errors.New("bytecode: symbol table exceeds 65535 entries")
	}
	if len(prog.Values) > 0xFFFF {
		return nil, errors.New("bytecode: value table exceeds 65535 entries")
	}

	var body bytes.Buffer
	if err := encodeSymbols(&body, prog.Symbols); err != nil {
		return nil, err
	}
	if err := encodeValues(&body, prog.Values); err != nil {
		return nil, err
	}
	for _, page := range prog.Pages {
		if err := encodePage(&body, page); err != nil {
			return nil, err
		}
	}

	hash := sha256.Sum256(body.Bytes())

	var out bytes.Buffer
	out.Write(magic[:])
	_ = binary.Write(&out, binary.BigEndian, Version.Major)
	_ = binary.Write(&out, binary.BigEndian, Version.Minor)
	_ = binary.Write(&out, binary.BigEndian, Version.Patch)
	_ = binary.Write(&out, binary.BigEndian, timestamp)
	out.Write(hash[:])
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func encodeSymbols(w *bytes.Buffer, symbols []string) error {
	w.WriteByte(tagSymTableStart)
	_ = binary.Write(w, binary.BigEndian, uint16(len(symbols)))
	for _, s := range symbols {
		w.WriteString(s)
		w.WriteByte(0)
	}
	return nil
}

// encodeValues writes the value table. Only NUMBER/STRING/FUNC constants
// ever reach the compiler's value table: nil/true/false are pre-bound
// global names loaded via LOAD_SYMBOL (see compiler.Compiler.pushNil),
// never literals the compiler interns here.
func encodeValues(w *bytes.Buffer, values []value.Value) error {
	w.WriteByte(tagValTableStart)
	_ = binary.Write(w, binary.BigEndian, uint16(len(values)))
	for _, v := range values {
		switch v.Kind {
		case value.KindNumber:
			w.WriteByte(valTagNumber)
			w.WriteString(v.String())
			w.WriteByte(0)
		case value.KindString:
			w.WriteByte(valTagString)
			w.WriteString(v.Str())
			w.WriteByte(0)
		case value.KindPageAddr:
			w.WriteByte(valTagFunc)
			_ = binary.Write(w, binary.BigEndian, v.PageAddr())
			w.WriteByte(0)
		default:
			return errors.Errorf("bytecode: value table can not encode a %s constant", v.Kind)
		}
	}
	return nil
}

func encodePage(w *bytes.Buffer, page *compiler.Page) error {
	words := append([]compiler.Word(nil), page.Words...)
	words = append(words, compiler.Word{Op: compiler.Halt})
	if len(page.Words) == 0 {
		words = []compiler.Word{{Op: compiler.Nop}}
	}
	if len(words) > 0xFFFF {
		return errors.New("bytecode: page exceeds 65535 words")
	}

	w.WriteByte(tagCodeSegStart)
	_ = binary.Write(w, binary.BigEndian, uint16(len(words)*4))
	for _, word := range words {
		w.WriteByte(0)
		w.WriteByte(byte(word.Op))
		_ = binary.Write(w, binary.BigEndian, word.Arg)
	}
	return nil
}
