package runtime

import (
	"fmt"
	"strconv"
)

type ValueKind uint8

const (
	KindNil ValueKind = iota
	KindBoolean
	KindNumber
	KindText
	KindCell
)

func (k ValueKind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindCell:
		return "cell"
	}
	return "unknown"
}

// Value is the tagged representation passed around by the interpreter:
// either an inline primitive (nil, boolean, number, immutable text) or a
// non-owning reference to a heap cell. Values are immutable and freely
// copyable; copying a cell-kind Value copies the reference, never the cell.
type Value struct {
	kind    ValueKind
	boolean bool
	number  float64
	text    string
	cell    Cell
}

func NilValue() Value             { return Value{kind: KindNil} }
func BooleanValue(b bool) Value   { return Value{kind: KindBoolean, boolean: b} }
func NumberValue(n float64) Value { return Value{kind: KindNumber, number: n} }
func TextValue(s string) Value    { return Value{kind: KindText, text: s} }

func CellValue(c Cell) Value {
	if c == nil {
		panic("runtime: CellValue called with nil cell")
	}
	return Value{kind: KindCell, cell: c}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNil() bool     { return v.kind == KindNil }
func (v Value) IsBoolean() bool { return v.kind == KindBoolean }
func (v Value) IsNumber() bool  { return v.kind == KindNumber }
func (v Value) IsText() bool    { return v.kind == KindText }
func (v Value) IsCell() bool    { return v.kind == KindCell }

// IsException reports whether v references an Exception cell. The collector
// does not care; the interpreter and REPL use it to distinguish a thrown
// value from a normal result.
func (v Value) IsException() bool {
	if v.kind != KindCell {
		return false
	}
	_, ok := v.cell.(*Exception)
	return ok
}

func (v Value) AsBoolean() bool {
	if v.kind != KindBoolean {
		panic(fmt.Sprintf("runtime: AsBoolean on %s value", v.kind))
	}
	return v.boolean
}

func (v Value) AsNumber() float64 {
	if v.kind != KindNumber {
		panic(fmt.Sprintf("runtime: AsNumber on %s value", v.kind))
	}
	return v.number
}

func (v Value) AsText() string {
	if v.kind != KindText {
		panic(fmt.Sprintf("runtime: AsText on %s value", v.kind))
	}
	return v.text
}

// AsCell is valid only when IsCell reports true; anything else is a caller
// contract violation and halts.
func (v Value) AsCell() Cell {
	if v.kind != KindCell {
		panic(fmt.Sprintf("runtime: AsCell on %s value", v.kind))
	}
	return v.cell
}

// AsObject returns the Object view of the referenced cell. All script-visible
// cell types embed Object, so this is valid for any cell-kind Value.
func (v Value) AsObject() *Object {
	return v.AsCell().(objectCarrier).object()
}

// Equals compares primitives by value and cell references by identity.
func (v Value) Equals(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBoolean:
		return v.boolean == other.boolean
	case KindNumber:
		return v.number == other.number
	case KindText:
		return v.text == other.text
	case KindCell:
		return v.cell.Header() == other.cell.Header()
	}
	return false
}

func (v Value) Inspect() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBoolean:
		return strconv.FormatBool(v.boolean)
	case KindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case KindText:
		return v.text
	case KindCell:
		return v.cell.Inspect()
	}
	return "<invalid>"
}
