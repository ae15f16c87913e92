package interpreter

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rabeh-analyse/ore/internal/ast"
	"github.com/rabeh-analyse/ore/internal/runtime"
	"github.com/rabeh-analyse/ore/internal/util"
)

// textInlineMax is the longest text a Value keeps inline; anything longer
// produced at runtime is promoted to a heap-backed StringObject.
const textInlineMax = 64

// Frame is one active call: the function name (for backtraces) and its
// bindings. Ore functions do not close over enclosing frames; identifier
// resolution sees the current frame and the global object only.
type Frame struct {
	function string
	bindings map[string]runtime.Value
}

// Interpreter evaluates Ore programs against a single Heap that it owns for
// its whole lifetime. It is the heap's root provider: the global object,
// every active frame, any in-flight exception or return value and the
// evaluator's scratch values make up the root set.
type Interpreter struct {
	config util.Configuration

	heap   *runtime.Heap
	global *runtime.Object
	frames []*Frame

	exception *runtime.Exception
	hasReturn bool
	retValue  runtime.Value

	// temps protects values a single evaluation step has produced but not
	// yet stored anywhere reachable; without it, stress-mode collection
	// between two allocations could sweep a half-built literal.
	temps []runtime.Value

	handleID int64
}

func New(config util.Configuration) *Interpreter {
	i := &Interpreter{config: config}
	i.heap = runtime.NewHeap(i)
	i.heap.SetDebugHeap(config.DebugHeap)

	i.global = i.heap.AllocateObject()
	installBuiltins(i)
	installDatabaseNatives(i)

	args := i.heap.AllocateArray()
	for _, a := range config.ScriptArgs {
		args.Append(runtime.TextValue(a))
	}
	i.global.Put(runtime.StringKey("args"), runtime.CellValue(args))

	// Stress mode is enabled only after the fixed global scaffolding is in
	// place; everything above is reachable from the global object anyway.
	i.heap.SetGCOnEveryAllocation(config.GCOnEveryAllocation)

	return i
}

func (i *Interpreter) Heap() *runtime.Heap { return i.heap }

func (i *Interpreter) Global() *runtime.Object { return i.global }

// GatherRoots implements runtime.RootProvider.
func (i *Interpreter) GatherRoots() []runtime.Value {
	roots := make([]runtime.Value, 0, 8+len(i.temps))
	if i.global != nil {
		roots = append(roots, runtime.CellValue(i.global))
	}
	for _, frame := range i.frames {
		for _, v := range frame.bindings {
			roots = append(roots, v)
		}
	}
	if i.exception != nil {
		roots = append(roots, runtime.CellValue(i.exception))
	}
	if i.hasReturn {
		roots = append(roots, i.retValue)
	}
	roots = append(roots, i.temps...)
	return roots
}

// Run evaluates a parsed program. A thrown and uncaught value comes back as
// an exception-kind Value; callers check IsException, like the REPL does.
func (i *Interpreter) Run(program *ast.Program) runtime.Value {
	i.exception = nil
	result := runtime.NilValue()

	for _, stmt := range program.Statements {
		result = i.eval(stmt)
		if result.IsException() {
			return result
		}
	}
	return result
}

// RaiseError implements runtime.CallContext. The exception stays referenced
// by the interpreter (and therefore rooted) until the next Run.
func (i *Interpreter) RaiseError(kind string, format string, a ...interface{}) runtime.Value {
	exc := i.heap.AllocateException(kind, fmt.Sprintf(format, a...), i.captureBacktrace())
	i.exception = exc
	slog.Debug("script exception raised",
		slog.String("kind", kind),
		slog.String("message", exc.Message()))
	return runtime.CellValue(exc)
}

// NextHandleID implements runtime.CallContext.
func (i *Interpreter) NextHandleID() int64 {
	i.handleID++
	return i.handleID
}

func (i *Interpreter) captureBacktrace() []runtime.StackFrame {
	trace := make([]runtime.StackFrame, 0, len(i.frames)+1)
	for n := len(i.frames) - 1; n >= 0; n-- {
		trace = append(trace, runtime.StackFrame{FunctionName: i.frames[n].function})
	}
	trace = append(trace, runtime.StackFrame{FunctionName: "(program)"})
	return trace
}

// TempMark, Protect and ReleaseTemps implement the scratch-root side of
// runtime.CallContext. Natives use the same discipline the evaluator does.
func (i *Interpreter) TempMark() int           { return len(i.temps) }
func (i *Interpreter) Protect(v runtime.Value) { i.temps = append(i.temps, v) }
func (i *Interpreter) ReleaseTemps(mark int)   { i.temps = i.temps[:mark] }

func (i *Interpreter) eval(node ast.Node) runtime.Value {
	switch node := node.(type) {

	// Statements
	case *ast.Program:
		return i.Run(node)

	case *ast.ExpressionStatement:
		return i.eval(node.Expression)

	case *ast.BlockStatement:
		return i.evalBlockStatement(node)

	case *ast.LetStatement:
		return i.evalLetStatement(node)

	case *ast.ReturnStatement:
		return i.evalReturnStatement(node)

	case *ast.ThrowStatement:
		return i.evalThrowStatement(node)

	case *ast.WhileStatement:
		return i.evalWhileStatement(node)

	// Expressions
	case *ast.NumberLiteral:
		return runtime.NumberValue(node.Value)

	case *ast.StringLiteral:
		return i.newTextValue(node.Value)

	case *ast.BooleanLiteral:
		return runtime.BooleanValue(node.Value)

	case *ast.NilLiteral:
		return runtime.NilValue()

	case *ast.Identifier:
		return i.evalIdentifier(node)

	case *ast.PrefixExpression:
		return i.evalPrefixExpression(node)

	case *ast.InfixExpression:
		return i.evalInfixExpression(node)

	case *ast.AssignExpression:
		return i.evalAssignExpression(node)

	case *ast.IfExpression:
		return i.evalIfExpression(node)

	case *ast.FunctionLiteral:
		return runtime.CellValue(i.heap.AllocateFunction(node.Name, parameterNames(node), node.Body))

	case *ast.CallExpression:
		return i.evalCallExpression(node)

	case *ast.MemberExpression:
		return i.evalMemberExpression(node)

	case *ast.IndexExpression:
		return i.evalIndexExpression(node)

	case *ast.ObjectLiteral:
		return i.evalObjectLiteral(node)

	case *ast.ArrayLiteral:
		return i.evalArrayLiteral(node)
	}

	return i.RaiseError("InternalError", "unhandled AST node %T", node)
}

func (i *Interpreter) evalBlockStatement(block *ast.BlockStatement) runtime.Value {
	result := runtime.NilValue()
	for _, stmt := range block.Statements {
		result = i.eval(stmt)
		if result.IsException() || i.hasReturn {
			return result
		}
	}
	return result
}

func (i *Interpreter) evalLetStatement(stmt *ast.LetStatement) runtime.Value {
	val := i.eval(stmt.Value)
	if val.IsException() {
		return val
	}
	i.define(stmt.Name.Value, val)
	return runtime.NilValue()
}

func (i *Interpreter) evalReturnStatement(stmt *ast.ReturnStatement) runtime.Value {
	val := runtime.NilValue()
	if stmt.ReturnValue != nil {
		val = i.eval(stmt.ReturnValue)
		if val.IsException() {
			return val
		}
	}
	if len(i.frames) == 0 {
		return i.RaiseError("SyntaxError", "return outside of a function")
	}
	i.hasReturn = true
	i.retValue = val
	return val
}

func (i *Interpreter) evalThrowStatement(stmt *ast.ThrowStatement) runtime.Value {
	val := i.eval(stmt.Value)
	if val.IsException() {
		return val
	}
	if val.IsCell() {
		if exc, ok := val.AsCell().(*runtime.Exception); ok {
			i.exception = exc
			return val
		}
	}
	return i.RaiseError("Error", "%s", val.Inspect())
}

func (i *Interpreter) evalWhileStatement(stmt *ast.WhileStatement) runtime.Value {
	for {
		cond := i.eval(stmt.Condition)
		if cond.IsException() {
			return cond
		}
		if !isTruthy(cond) {
			return runtime.NilValue()
		}
		result := i.eval(stmt.Body)
		if result.IsException() || i.hasReturn {
			return result
		}
	}
}

func (i *Interpreter) evalIdentifier(node *ast.Identifier) runtime.Value {
	if frame := i.currentFrame(); frame != nil {
		if val, ok := frame.bindings[node.Value]; ok {
			return val
		}
	}
	key := runtime.StringKey(node.Value)
	if i.global.Contains(key) {
		return i.global.Get(key)
	}
	return i.RaiseError("ReferenceError", "%s is not defined", node.Value)
}

func (i *Interpreter) evalPrefixExpression(node *ast.PrefixExpression) runtime.Value {
	right := i.eval(node.Right)
	if right.IsException() {
		return right
	}

	switch node.Operator {
	case "!":
		return runtime.BooleanValue(!isTruthy(right))
	case "-":
		if !right.IsNumber() {
			return i.RaiseError("TypeError", "unary - expects a number, got %s", kindName(right))
		}
		return runtime.NumberValue(-right.AsNumber())
	}
	return i.RaiseError("InternalError", "unknown prefix operator %s", node.Operator)
}

func (i *Interpreter) evalInfixExpression(node *ast.InfixExpression) runtime.Value {
	// Short-circuit operators evaluate the right side lazily.
	if node.Operator == "&&" || node.Operator == "||" {
		left := i.eval(node.Left)
		if left.IsException() {
			return left
		}
		if node.Operator == "&&" && !isTruthy(left) {
			return left
		}
		if node.Operator == "||" && isTruthy(left) {
			return left
		}
		return i.eval(node.Right)
	}

	left := i.eval(node.Left)
	if left.IsException() {
		return left
	}
	mark := i.TempMark()
	i.Protect(left)
	right := i.eval(node.Right)
	i.ReleaseTemps(mark)
	if right.IsException() {
		return right
	}

	switch node.Operator {
	case "==":
		return runtime.BooleanValue(valuesEqual(left, right))
	case "!=":
		return runtime.BooleanValue(!valuesEqual(left, right))
	}

	if ls, lok := textOf(left); lok {
		if rs, rok := textOf(right); rok {
			return i.evalTextInfix(node.Operator, ls, rs)
		}
	}

	if left.IsNumber() && right.IsNumber() {
		return i.evalNumberInfix(node.Operator, left.AsNumber(), right.AsNumber())
	}

	return i.RaiseError("TypeError", "operator %s not defined for %s and %s",
		node.Operator, kindName(left), kindName(right))
}

func (i *Interpreter) evalNumberInfix(op string, l, r float64) runtime.Value {
	switch op {
	case "+":
		return runtime.NumberValue(l + r)
	case "-":
		return runtime.NumberValue(l - r)
	case "*":
		return runtime.NumberValue(l * r)
	case "/":
		if r == 0 {
			return i.RaiseError("RangeError", "division by zero")
		}
		return runtime.NumberValue(l / r)
	case "%":
		if r == 0 {
			return i.RaiseError("RangeError", "division by zero")
		}
		return runtime.NumberValue(float64(int64(l) % int64(r)))
	case "<":
		return runtime.BooleanValue(l < r)
	case "<=":
		return runtime.BooleanValue(l <= r)
	case ">":
		return runtime.BooleanValue(l > r)
	case ">=":
		return runtime.BooleanValue(l >= r)
	}
	return i.RaiseError("InternalError", "unknown number operator %s", op)
}

func (i *Interpreter) evalTextInfix(op string, l, r string) runtime.Value {
	switch op {
	case "+":
		return i.newTextValue(l + r)
	case "<":
		return runtime.BooleanValue(l < r)
	case "<=":
		return runtime.BooleanValue(l <= r)
	case ">":
		return runtime.BooleanValue(l > r)
	case ">=":
		return runtime.BooleanValue(l >= r)
	}
	return i.RaiseError("TypeError", "operator %s not defined for text", op)
}

func (i *Interpreter) evalAssignExpression(node *ast.AssignExpression) runtime.Value {
	val := i.eval(node.Value)
	if val.IsException() {
		return val
	}

	switch target := node.Target.(type) {
	case *ast.Identifier:
		if frame := i.currentFrame(); frame != nil {
			if _, ok := frame.bindings[target.Value]; ok {
				frame.bindings[target.Value] = val
				return val
			}
		}
		key := runtime.StringKey(target.Value)
		if i.global.Contains(key) {
			i.global.Put(key, val)
			return val
		}
		return i.RaiseError("ReferenceError", "%s is not defined", target.Value)

	case *ast.MemberExpression:
		mark := i.TempMark()
		i.Protect(val)
		obj := i.eval(target.Object)
		i.ReleaseTemps(mark)
		if obj.IsException() {
			return obj
		}
		if !obj.IsCell() {
			return i.RaiseError("TypeError", "cannot set property %q on %s", target.Property.Value, kindName(obj))
		}
		obj.AsObject().Put(runtime.StringKey(target.Property.Value), val)
		return val

	case *ast.IndexExpression:
		mark := i.TempMark()
		i.Protect(val)
		left := i.eval(target.Left)
		if left.IsException() {
			i.ReleaseTemps(mark)
			return left
		}
		i.Protect(left)
		index := i.eval(target.Index)
		i.ReleaseTemps(mark)
		if index.IsException() {
			return index
		}
		return i.assignIndex(left, index, val)
	}

	return i.RaiseError("InternalError", "invalid assignment target %T", node.Target)
}

// arrayIndex converts an index value to an int, raising a TypeError for
// non-numbers and for fractional numbers, which would otherwise silently
// truncate.
func (i *Interpreter) arrayIndex(index runtime.Value) (int, runtime.Value) {
	if !index.IsNumber() {
		return 0, i.RaiseError("TypeError", "array index must be a number, got %s", kindName(index))
	}
	f := index.AsNumber()
	n := int(f)
	if float64(n) != f {
		return 0, i.RaiseError("TypeError", "array index must be an integer, got %v", f)
	}
	return n, runtime.NilValue()
}

func (i *Interpreter) assignIndex(left, index, val runtime.Value) runtime.Value {
	if !left.IsCell() {
		return i.RaiseError("TypeError", "%s is not indexable", kindName(left))
	}

	switch c := left.AsCell().(type) {
	case *runtime.Array:
		n, errv := i.arrayIndex(index)
		if errv.IsException() {
			return errv
		}
		if n < 0 || n > c.Len() {
			return i.RaiseError("RangeError", "array index %d out of range (length %d)", n, c.Len())
		}
		if n == c.Len() {
			c.Append(val)
		} else {
			c.Set(n, val)
		}
		return val
	default:
		if s, ok := textOf(index); ok {
			left.AsObject().Put(runtime.StringKey(s), val)
			return val
		}
		return i.RaiseError("TypeError", "property key must be text, got %s", kindName(index))
	}
}

func (i *Interpreter) evalIfExpression(node *ast.IfExpression) runtime.Value {
	cond := i.eval(node.Condition)
	if cond.IsException() {
		return cond
	}
	if isTruthy(cond) {
		return i.eval(node.Consequence)
	}
	if node.Alternative != nil {
		return i.eval(node.Alternative)
	}
	return runtime.NilValue()
}

func (i *Interpreter) evalCallExpression(node *ast.CallExpression) runtime.Value {
	callee := i.eval(node.Function)
	if callee.IsException() {
		return callee
	}

	mark := i.TempMark()
	i.Protect(callee)

	args := make([]runtime.Value, 0, len(node.Arguments))
	for _, argExpr := range node.Arguments {
		arg := i.eval(argExpr)
		if arg.IsException() {
			i.ReleaseTemps(mark)
			return arg
		}
		i.Protect(arg)
		args = append(args, arg)
	}

	result := i.applyFunction(callee, args, callName(node.Function))
	i.ReleaseTemps(mark)
	return result
}

func (i *Interpreter) applyFunction(callee runtime.Value, args []runtime.Value, name string) runtime.Value {
	if !callee.IsCell() {
		return i.RaiseError("TypeError", "%s is not callable", kindName(callee))
	}

	switch fn := callee.AsCell().(type) {
	case *runtime.NativeFunction:
		return fn.Fn()(i, args...)

	case *runtime.FunctionObject:
		params := fn.Parameters()
		if len(args) != len(params) {
			return i.RaiseError("ArgumentError", "%s expects %d argument(s), got %d",
				fn.Inspect(), len(params), len(args))
		}

		frame := &Frame{
			function: frameName(fn, name),
			bindings: make(map[string]runtime.Value, len(params)),
		}
		for n, param := range params {
			frame.bindings[param] = args[n]
		}

		i.frames = append(i.frames, frame)
		result := i.eval(fn.Body())
		i.frames = i.frames[:len(i.frames)-1]

		if result.IsException() {
			return result
		}
		if i.hasReturn {
			i.hasReturn = false
			result = i.retValue
			i.retValue = runtime.NilValue()
			return result
		}
		return result

	default:
		return i.RaiseError("TypeError", "%s is not callable", fn.TypeName())
	}
}

func (i *Interpreter) evalMemberExpression(node *ast.MemberExpression) runtime.Value {
	obj := i.eval(node.Object)
	if obj.IsException() {
		return obj
	}
	if !obj.IsCell() {
		return i.RaiseError("TypeError", "cannot read property %q of %s", node.Property.Value, kindName(obj))
	}

	key := runtime.StringKey(node.Property.Value)
	base := obj.AsObject()
	if !base.Contains(key) {
		return runtime.NilValue()
	}
	return base.Get(key)
}

func (i *Interpreter) evalIndexExpression(node *ast.IndexExpression) runtime.Value {
	left := i.eval(node.Left)
	if left.IsException() {
		return left
	}
	mark := i.TempMark()
	i.Protect(left)
	index := i.eval(node.Index)
	i.ReleaseTemps(mark)
	if index.IsException() {
		return index
	}

	if !left.IsCell() {
		return i.RaiseError("TypeError", "%s is not indexable", kindName(left))
	}

	switch c := left.AsCell().(type) {
	case *runtime.Array:
		n, errv := i.arrayIndex(index)
		if errv.IsException() {
			return errv
		}
		if n < 0 || n >= c.Len() {
			return i.RaiseError("RangeError", "array index %d out of range (length %d)", n, c.Len())
		}
		return c.At(n)
	default:
		s, ok := textOf(index)
		if !ok {
			return i.RaiseError("TypeError", "property key must be text, got %s", kindName(index))
		}
		key := runtime.StringKey(s)
		base := left.AsObject()
		if !base.Contains(key) {
			return runtime.NilValue()
		}
		return base.Get(key)
	}
}

func (i *Interpreter) evalObjectLiteral(node *ast.ObjectLiteral) runtime.Value {
	obj := i.heap.AllocateObject()

	mark := i.TempMark()
	i.Protect(runtime.CellValue(obj))
	defer i.ReleaseTemps(mark)

	for n, key := range node.Keys {
		val := i.eval(node.Vals[n])
		if val.IsException() {
			return val
		}
		obj.Put(runtime.StringKey(key), val)
	}
	return runtime.CellValue(obj)
}

func (i *Interpreter) evalArrayLiteral(node *ast.ArrayLiteral) runtime.Value {
	mark := i.TempMark()
	defer i.ReleaseTemps(mark)

	elements := make([]runtime.Value, 0, len(node.Elements))
	for _, el := range node.Elements {
		val := i.eval(el)
		if val.IsException() {
			return val
		}
		i.Protect(val)
		elements = append(elements, val)
	}
	return runtime.CellValue(i.heap.AllocateArray(elements...))
}

func (i *Interpreter) currentFrame() *Frame {
	if len(i.frames) == 0 {
		return nil
	}
	return i.frames[len(i.frames)-1]
}

// define binds name in the current frame, or on the global object at the top
// level.
func (i *Interpreter) define(name string, val runtime.Value) {
	if frame := i.currentFrame(); frame != nil {
		frame.bindings[name] = val
		return
	}
	i.global.Put(runtime.StringKey(name), val)
}

// newTextValue keeps short text inline and promotes long text to a
// heap-backed StringObject.
func (i *Interpreter) newTextValue(s string) runtime.Value {
	if len(s) <= textInlineMax {
		return runtime.TextValue(s)
	}
	return runtime.CellValue(i.heap.AllocateString(s))
}

func isTruthy(v runtime.Value) bool {
	if v.IsNil() {
		return false
	}
	if v.IsBoolean() {
		return v.AsBoolean()
	}
	return true
}

// textOf unwraps both inline text and cell-backed strings.
func textOf(v runtime.Value) (string, bool) {
	if v.IsText() {
		return v.AsText(), true
	}
	if v.IsCell() {
		if s, ok := v.AsCell().(*runtime.StringObject); ok {
			return s.Value(), true
		}
	}
	return "", false
}

// valuesEqual is script-level equality: text compares by content whether
// inline or cell-backed; everything else follows Value.Equals.
func valuesEqual(left, right runtime.Value) bool {
	if ls, ok := textOf(left); ok {
		if rs, ok := textOf(right); ok {
			return ls == rs
		}
		return false
	}
	return left.Equals(right)
}

func kindName(v runtime.Value) string {
	if v.IsCell() {
		return v.AsCell().TypeName()
	}
	return v.Kind().String()
}

func parameterNames(fl *ast.FunctionLiteral) []string {
	names := make([]string, len(fl.Parameters))
	for n, p := range fl.Parameters {
		names[n] = p.Value
	}
	return names
}

func callName(fn ast.Expression) string {
	switch fn := fn.(type) {
	case *ast.Identifier:
		return fn.Value
	case *ast.MemberExpression:
		return fn.Property.Value
	}
	return ""
}

func frameName(fn *runtime.FunctionObject, callSite string) string {
	if fn.Name() != "" {
		return fn.Name()
	}
	if callSite != "" {
		return callSite
	}
	return "<anonymous>"
}

// RenderBacktrace formats an exception the way the REPL presents it: the
// frames most recent first, then the exception itself.
func RenderBacktrace(exc *runtime.Exception) string {
	var b strings.Builder
	for _, frame := range exc.Backtrace() {
		fmt.Fprintf(&b, "  %s\n", frame.FunctionName)
	}
	fmt.Fprintf(&b, "%s: %s", exc.Kind(), exc.Message())
	return b.String()
}
