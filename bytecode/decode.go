package bytecode

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/arkscript-lang/ark/compiler"
	"github.com/arkscript-lang/ark/value"
	"github.com/pkg/errors"
)

// FormatError reports a malformed container, such as a truncated header,
// a bad magic, or a hash that does not match the recomputed digest. The
// version fields are read but not checked.
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string { return "bytecode: " + e.Message }

// Decode parses data into a Bytecode, verifying the magic and the
// SHA-256 integrity hash over everything after the hash field.
func Decode(data []byte) (*Bytecode, error) {
	if len(data) < 18+32 {
		return nil, &FormatError{Message: "truncated header"}
	}
	if !bytes.Equal(data[0:4], magic[:]) {
		return nil, &FormatError{Message: "bad magic"}
	}

	bc := &Bytecode{
		Major: binary.BigEndian.Uint16(data[4:6]),
		Minor: binary.BigEndian.Uint16(data[6:8]),
		Patch: binary.BigEndian.Uint16(data[8:10]),
	}
	bc.Timestamp = binary.BigEndian.Uint64(data[10:18])

	storedHash := data[18 : 18+32]
	body := data[18+32:]
	computed := sha256.Sum256(body)
	if !bytes.Equal(storedHash, computed[:]) {
		return nil, &FormatError{Message: "hash mismatch: corrupted or truncated bytecode"}
	}

	r := bytes.NewReader(body)

	symbols, err := decodeSymbols(r)
	if err != nil {
		return nil, err
	}
	bc.Symbols = symbols

	values, err := decodeValues(r)
	if err != nil {
		return nil, err
	}
	bc.Values = values

	var pages []*compiler.Page
	for r.Len() > 0 {
		page, err := decodePage(r)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	bc.Pages = pages

	return bc, nil
}

func readByte(r *bytes.Reader) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, errors.Wrap(err, "unexpected end of bytecode")
	}
	return b, nil
}

func expectTag(r *bytes.Reader, tag byte, name string) error {
	got, err := readByte(r)
	if err != nil {
		return err
	}
	if got != tag {
		return &FormatError{Message: fmt.Sprintf("expected %s tag 0x%02x, got 0x%02x", name, tag, got)}
	}
	return nil
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := r.Read(buf[:]); err != nil {
		return 0, errors.Wrap(err, "unexpected end of bytecode")
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func readCString(r *bytes.Reader) (string, error) {
	var buf bytes.Buffer
	for {
		b, err := readByte(r)
		if err != nil {
			return "", err
		}
		if b == 0 {
			return buf.String(), nil
		}
		buf.WriteByte(b)
	}
}

func decodeSymbols(r *bytes.Reader) ([]string, error) {
	if err := expectTag(r, tagSymTableStart, "SYM_TABLE_START"); err != nil {
		return nil, err
	}
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, n)
	for i := range symbols {
		s, err := readCString(r)
		if err != nil {
			return nil, err
		}
		symbols[i] = s
	}
	return symbols, nil
}

func decodeValues(r *bytes.Reader) ([]value.Value, error) {
	if err := expectTag(r, tagValTableStart, "VAL_TABLE_START"); err != nil {
		return nil, err
	}
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	values := make([]value.Value, n)
	for i := range values {
		tag, err := readByte(r)
		if err != nil {
			return nil, err
		}
		switch tag {
		case valTagNumber:
			s, err := readCString(r)
			if err != nil {
				return nil, err
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, &FormatError{Message: "malformed NUMBER constant: " + err.Error()}
			}
			values[i] = value.Number(f)
		case valTagString:
			s, err := readCString(r)
			if err != nil {
				return nil, err
			}
			values[i] = value.String(s)
		case valTagFunc:
			page, err := readUint16(r)
			if err != nil {
				return nil, err
			}
			if _, err := readByte(r); err != nil { // trailing NUL
				return nil, err
			}
			values[i] = value.PageAddr(page)
		default:
			return nil, &FormatError{Message: fmt.Sprintf("unknown value tag 0x%02x", tag)}
		}
	}
	return values, nil
}

func decodePage(r *bytes.Reader) (*compiler.Page, error) {
	if err := expectTag(r, tagCodeSegStart, "CODE_SEGMENT_START"); err != nil {
		return nil, err
	}
	size, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	if size%4 != 0 {
		return nil, &FormatError{Message: "code segment size is not a multiple of 4"}
	}
	count := int(size) / 4
	page := &compiler.Page{Words: make([]compiler.Word, count)}
	for i := range page.Words {
		if _, err := readByte(r); err != nil { // pad
			return nil, err
		}
		op, err := readByte(r)
		if err != nil {
			return nil, err
		}
		arg, err := readUint16(r)
		if err != nil {
			return nil, err
		}
		page.Words[i] = compiler.Word{Op: compiler.Op(op), Arg: arg}
	}
	return page, nil
}
