package runtime

import (
	"fmt"
	"sort"
	"strings"
)

// Object is the base heap cell: an unordered, string-keyed property bag.
// Arrays, strings, exceptions and functions all embed it, so every
// script-visible cell can carry properties and is traced the same way.
type Object struct {
	CellHeader
	properties map[string]Value
}

// objectCarrier lets Value.AsObject recover the embedded Object from any
// concrete cell type without a per-type switch.
type objectCarrier interface {
	object() *Object
}

func (o *Object) object() *Object { return o }

func (o *Object) TypeName() string { return "Object" }

// Get returns the Value bound to key. The key must be the string kind and
// must be bound; both are caller contracts, checked fatally. Callers that
// cannot guarantee a binding guard with Contains first.
func (o *Object) Get(key PropertyKey) Value {
	assertStringKey(key, "Get")
	val, ok := o.properties[key.Name()]
	if !ok {
		panic(fmt.Sprintf("runtime: Get of unbound property %q", key.Name()))
	}
	return val
}

// Put binds key to value, overwriting any prior binding. A displaced value
// becomes collectable once nothing else references it.
func (o *Object) Put(key PropertyKey, value Value) {
	assertStringKey(key, "Put")
	if o.properties == nil {
		o.properties = make(map[string]Value)
	}
	o.properties[key.Name()] = value
}

func (o *Object) Contains(key PropertyKey) bool {
	assertStringKey(key, "Contains")
	_, ok := o.properties[key.Name()]
	return ok
}

func (o *Object) PropertyCount() int { return len(o.properties) }

// PropertyNames returns the bound keys in sorted order. Iteration order is
// irrelevant to collection; sorting is for deterministic dumps and tests.
func (o *Object) PropertyNames() []string {
	names := make([]string, 0, len(o.properties))
	for name := range o.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o *Object) VisitGraph(v *Visitor) {
	if !v.Enter(o) {
		return
	}
	o.visitProperties(v)
}

// visitProperties forwards the visitor to every cell-valued property. Cell
// types embedding Object call it from their own VisitGraph after entering
// themselves, then add edges for the fields Object does not know about.
func (o *Object) visitProperties(v *Visitor) {
	for _, val := range o.properties {
		v.VisitValue(val)
	}
}

func (o *Object) Inspect() string {
	var b strings.Builder
	o.inspectInto(&b, make(map[*CellHeader]bool))
	return b.String()
}

func (o *Object) inspectInto(b *strings.Builder, seen map[*CellHeader]bool) {
	if seen[o.Header()] {
		b.WriteString("<cycle>")
		return
	}
	seen[o.Header()] = true

	b.WriteString("{ ")
	for i, name := range o.PropertyNames() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString(": ")
		inspectValueInto(b, o.properties[name], seen)
	}
	if len(o.properties) > 0 {
		b.WriteString(" ")
	}
	b.WriteString("}")
}

// inspectValueInto renders val, reusing the seen set so that cyclic graphs
// print a <cycle> marker instead of recursing forever.
func inspectValueInto(b *strings.Builder, val Value, seen map[*CellHeader]bool) {
	if !val.IsCell() {
		if val.IsText() {
			fmt.Fprintf(b, "%q", val.AsText())
			return
		}
		b.WriteString(val.Inspect())
		return
	}

	switch c := val.AsCell().(type) {
	case *Array:
		c.inspectInto(b, seen)
	case *Object:
		c.inspectInto(b, seen)
	default:
		if seen[c.Header()] {
			b.WriteString("<cycle>")
			return
		}
		b.WriteString(c.Inspect())
	}
}

func assertStringKey(key PropertyKey, op string) {
	if !key.IsString() {
		panic(fmt.Sprintf("runtime: %s with non-string property key", op))
	}
}
