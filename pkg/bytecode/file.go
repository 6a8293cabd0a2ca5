package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the fixed size of the bytecode file header in bytes:
// bytecode_size (u16) + executable_offset (u16).
const HeaderSize = 4

// File is a loaded bytecode file: a header plus the code region it
// describes.
type File struct {
	ExecutableOffset uint16
	Code             []byte
}

// WriteFile serializes the header and code to w. Both header fields are
// written as explicit little-endian u16s, two bytes each.
func WriteFile(w io.Writer, executableOffset uint16, code []byte) error {
	if len(code) > 0xFFFF {
		return fmt.Errorf("bytecode too large: %d bytes exceeds 65535-byte limit", len(code))
	}
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint16(header[0:2], uint16(len(code)))
	binary.LittleEndian.PutUint16(header[2:4], executableOffset)
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing bytecode header: %w", err)
	}
	if _, err := w.Write(code); err != nil {
		return fmt.Errorf("writing bytecode: %w", err)
	}
	return nil
}

// ReadFile parses a bytecode file from r.
func ReadFile(r io.Reader) (*File, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading bytecode header: %w", err)
	}
	size := binary.LittleEndian.Uint16(header[0:2])
	offset := binary.LittleEndian.Uint16(header[2:4])

	code := make([]byte, size)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, fmt.Errorf("reading bytecode: %w", err)
	}
	return &File{ExecutableOffset: offset, Code: code}, nil
}
