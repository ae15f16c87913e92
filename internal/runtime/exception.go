package runtime

import "fmt"

// StackFrame is one entry of an exception backtrace, most recent call first.
type StackFrame struct {
	FunctionName string
}

// Exception is the heap representation of a thrown value. It is ordinary
// cell data: the collector traces it like any other Object, and while it is
// in flight the interpreter reports it as a root.
type Exception struct {
	Object
	kind      string
	message   string
	backtrace []StackFrame
}

func (e *Exception) TypeName() string { return "Exception" }

func (e *Exception) Kind() string    { return e.kind }
func (e *Exception) Message() string { return e.message }

// Backtrace returns the call frames captured when the exception was raised,
// most recent first.
func (e *Exception) Backtrace() []StackFrame { return e.backtrace }

func (e *Exception) Inspect() string {
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Exception) VisitGraph(v *Visitor) {
	if !v.Enter(e) {
		return
	}
	e.visitProperties(v)
}
