// Package vm implements the wudoovm register machine: a typed register
// file with an ownership/reference aliasing discipline, and the dispatch
// loop that executes a loaded bytecode program against it.
package vm

import "fmt"

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindInteger ValueKind = iota
	KindByte
	KindBoolean
)

// Value is a tagged scalar: Integer, Byte, or Boolean. Every Value lives
// behind an owning register slot, or is aliased to one by a reference
// slot.
type Value struct {
	Kind    ValueKind
	Integer int32
	Byte    byte
	Boolean bool
}

// NewInteger returns an Integer value.
func NewInteger(v int32) Value { return Value{Kind: KindInteger, Integer: v} }

// NewByte returns a Byte value.
func NewByte(v byte) Value { return Value{Kind: KindByte, Byte: v} }

// NewBoolean returns a Boolean value.
func NewBoolean(v bool) Value { return Value{Kind: KindBoolean, Boolean: v} }

// String renders the value the way PRINT/ECHO do.
func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return fmt.Sprintf("%d", v.Integer)
	case KindByte:
		return fmt.Sprintf("%d", v.Byte)
	case KindBoolean:
		if v.Boolean {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
