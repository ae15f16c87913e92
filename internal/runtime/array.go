package runtime

import "strings"

// Array is an Object with ordered elements alongside its properties.
type Array struct {
	Object
	elements []Value
}

func (a *Array) TypeName() string { return "Array" }

func (a *Array) Len() int { return len(a.elements) }

func (a *Array) At(i int) Value {
	if i < 0 || i >= len(a.elements) {
		panic("runtime: array index out of range")
	}
	return a.elements[i]
}

func (a *Array) Set(i int, val Value) {
	if i < 0 || i >= len(a.elements) {
		panic("runtime: array index out of range")
	}
	a.elements[i] = val
}

func (a *Array) Append(val Value) {
	a.elements = append(a.elements, val)
}

func (a *Array) Elements() []Value { return a.elements }

func (a *Array) VisitGraph(v *Visitor) {
	if !v.Enter(a) {
		return
	}
	a.visitProperties(v)
	for _, el := range a.elements {
		v.VisitValue(el)
	}
}

func (a *Array) Inspect() string {
	var b strings.Builder
	a.inspectInto(&b, make(map[*CellHeader]bool))
	return b.String()
}

func (a *Array) inspectInto(b *strings.Builder, seen map[*CellHeader]bool) {
	if seen[a.Header()] {
		b.WriteString("<cycle>")
		return
	}
	seen[a.Header()] = true

	b.WriteString("[")
	for i, el := range a.elements {
		if i > 0 {
			b.WriteString(", ")
		}
		inspectValueInto(b, el, seen)
	}
	b.WriteString("]")
}
