package runtime

// StringObject is cell-backed text: an Object wrapping an immutable string,
// used where script code needs a string that can carry properties. Plain
// text Values stay inline and never touch the heap.
type StringObject struct {
	Object
	value string
}

func (s *StringObject) TypeName() string { return "String" }

func (s *StringObject) Value() string { return s.value }

func (s *StringObject) Inspect() string { return s.value }

func (s *StringObject) VisitGraph(v *Visitor) {
	if !v.Enter(s) {
		return
	}
	s.visitProperties(v)
}
