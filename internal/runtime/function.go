package runtime

import (
	"strings"

	"github.com/rabeh-analyse/ore/internal/ast"
)

// CallContext is the bridge native functions get into the embedding
// interpreter: enough to allocate, raise script-visible exceptions and mint
// resource handles, without depending on interpreter internals.
type CallContext interface {
	Heap() *Heap
	// RaiseError allocates an Exception of the given kind and returns it as
	// a Value; the evaluator propagates it like any thrown value.
	RaiseError(kind string, format string, a ...interface{}) Value
	NextHandleID() int64
	// TempMark/Protect/ReleaseTemps expose the interpreter's scratch roots.
	// A native that allocates several cells before anything reachable
	// references them protects the intermediates, or stress-mode collection
	// may sweep them mid-construction.
	TempMark() int
	Protect(v Value)
	ReleaseTemps(mark int)
}

// NativeFn is the Go implementation behind a NativeFunction.
type NativeFn func(ctx CallContext, args ...Value) Value

// FunctionObject is a script-defined function. It owns only syntax (the
// parameter list and body AST); any values it can reach are reached through
// its properties, so Object's traversal covers it.
type FunctionObject struct {
	Object
	name       string
	parameters []string
	body       *ast.BlockStatement
}

func (f *FunctionObject) TypeName() string { return "Function" }

func (f *FunctionObject) Name() string              { return f.name }
func (f *FunctionObject) Parameters() []string      { return f.parameters }
func (f *FunctionObject) Body() *ast.BlockStatement { return f.body }

func (f *FunctionObject) Inspect() string {
	name := f.name
	if name == "" {
		name = "<anonymous>"
	}
	return "fn " + name + "(" + strings.Join(f.parameters, ", ") + ") { ... }"
}

func (f *FunctionObject) VisitGraph(v *Visitor) {
	if !v.Enter(f) {
		return
	}
	f.visitProperties(v)
}

// NativeFunction is a builtin implemented in Go, installed as a property of
// the global object so the collector sees it through the ordinary root set.
type NativeFunction struct {
	Object
	name string
	fn   NativeFn
}

func (n *NativeFunction) TypeName() string { return "NativeFunction" }

func (n *NativeFunction) Name() string { return n.name }
func (n *NativeFunction) Fn() NativeFn { return n.fn }

func (n *NativeFunction) Inspect() string {
	return "fn " + n.name + "() { <native> }"
}

func (n *NativeFunction) VisitGraph(v *Visitor) {
	if !v.Enter(n) {
		return
	}
	n.visitProperties(v)
}
