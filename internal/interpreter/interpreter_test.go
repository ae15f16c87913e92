package interpreter

import (
	"strings"
	"testing"

	"github.com/rabeh-analyse/ore/internal/lexer"
	"github.com/rabeh-analyse/ore/internal/parser"
	"github.com/rabeh-analyse/ore/internal/runtime"
	"github.com/rabeh-analyse/ore/internal/util"
)

func runWith(t *testing.T, config util.Configuration, input string) (*Interpreter, runtime.Value) {
	t.Helper()

	l := lexer.New(input)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}

	i := New(config)
	return i, i.Run(program)
}

func run(t *testing.T, input string) (*Interpreter, runtime.Value) {
	t.Helper()
	return runWith(t, util.Configuration{}, input)
}

// runStressed evaluates under gc-on-every-allocation with the debug heap
// verifying the graph after each collection. Anything the evaluator fails to
// root shows up here as a panic or a freed-cell access.
func runStressed(t *testing.T, input string) (*Interpreter, runtime.Value) {
	t.Helper()
	return runWith(t, util.Configuration{GCOnEveryAllocation: true, DebugHeap: true}, input)
}

func expectNumber(t *testing.T, v runtime.Value, want float64) {
	t.Helper()
	if !v.IsNumber() {
		t.Fatalf("expected number %v, got %s (%s)", want, v.Kind(), v.Inspect())
	}
	if v.AsNumber() != want {
		t.Errorf("expected %v, got %v", want, v.AsNumber())
	}
}

func expectText(t *testing.T, v runtime.Value, want string) {
	t.Helper()
	s, ok := textOf(v)
	if !ok {
		t.Fatalf("expected text %q, got %s (%s)", want, v.Kind(), v.Inspect())
	}
	if s != want {
		t.Errorf("expected %q, got %q", want, s)
	}
}

func expectException(t *testing.T, v runtime.Value, kind string) *runtime.Exception {
	t.Helper()
	if !v.IsException() {
		t.Fatalf("expected %s exception, got %s (%s)", kind, v.Kind(), v.Inspect())
	}
	exc := v.AsCell().(*runtime.Exception)
	if exc.Kind() != kind {
		t.Fatalf("expected %s exception, got %s: %s", kind, exc.Kind(), exc.Message())
	}
	return exc
}

func TestNumberExpressions(t *testing.T) {
	// Runtime float64 addition, not compile-time constant folding, so the
	// expectation carries the same rounding the evaluator produces.
	tenth, fifth := 0.1, 0.2

	tests := []struct {
		input string
		want  float64
	}{
		{"5", 5},
		{"-5", -5},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"0.1 + 0.2", tenth + fifth},
	}

	for _, tt := range tests {
		_, got := run(t, tt.input)
		expectNumber(t, got, tt.want)
	}
}

func TestBooleanExpressions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"true", true},
		{"!true", false},
		{"1 < 2", true},
		{"2 <= 2", true},
		{"2 > 3", false},
		{"1 == 1", true},
		{"1 != 1", false},
		{"\"a\" == \"a\"", true},
		{"nil == nil", true},
		{"true && false", false},
		{"false || true", true},
		{"!nil", true},
	}

	for _, tt := range tests {
		_, got := run(t, tt.input)
		if !got.IsBoolean() {
			t.Fatalf("%s: expected boolean, got %s", tt.input, got.Inspect())
		}
		if got.AsBoolean() != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.input, tt.want, got.AsBoolean())
		}
	}
}

func TestTextConcatenation(t *testing.T) {
	_, got := run(t, `"hello" + " " + "world"`)
	expectText(t, got, "hello world")
}

func TestLongTextIsCellBacked(t *testing.T) {
	i, got := run(t, `"abcdefgh" + "abcdefgh" + "abcdefgh" + "abcdefgh" +
		"abcdefgh" + "abcdefgh" + "abcdefgh" + "abcdefgh" + "abcdefgh"`)

	if !got.IsCell() {
		t.Fatalf("expected cell-backed text, got %s", got.Kind())
	}
	s, ok := got.AsCell().(*runtime.StringObject)
	if !ok {
		t.Fatalf("expected StringObject, got %s", got.AsCell().TypeName())
	}
	if len(s.Value()) != 9*8 {
		t.Errorf("expected %d bytes, got %d", 9*8, len(s.Value()))
	}
	if !i.Heap().Contains(s) {
		t.Errorf("string cell is not tracked by the heap")
	}
}

func TestLetAndReassignment(t *testing.T) {
	_, got := run(t, `
		let x = 10
		x = x + 5
		x
	`)
	expectNumber(t, got, 15)
}

func TestObjectPropertyAccess(t *testing.T) {
	_, got := run(t, `
		let point = {x: 3, y: 4}
		point.x * point.x + point.y * point.y
	`)
	expectNumber(t, got, 25)
}

func TestMissingPropertyIsNil(t *testing.T) {
	_, got := run(t, `let o = {} o.missing`)
	if !got.IsNil() {
		t.Errorf("expected nil, got %s", got.Inspect())
	}
}

func TestPropertyAssignment(t *testing.T) {
	_, got := run(t, `
		let o = {count: 1}
		o.count = o.count + 1
		o["count"]
	`)
	expectNumber(t, got, 2)
}

func TestArrayIndexing(t *testing.T) {
	_, got := run(t, `
		let xs = [10, 20, 30]
		xs[1] = 99
		xs[0] + xs[1] + xs[2]
	`)
	expectNumber(t, got, 139)
}

func TestArrayIndexOutOfRange(t *testing.T) {
	_, got := run(t, `let xs = [1] xs[3]`)
	expectException(t, got, "RangeError")
}

func TestFractionalArrayIndex(t *testing.T) {
	_, got := run(t, `let xs = [1, 2] xs[1.5]`)
	expectException(t, got, "TypeError")

	_, got = run(t, `let xs = [1, 2] xs[0.5] = 9`)
	expectException(t, got, "TypeError")

	_, got = run(t, `let xs = [1, 2] xs[10 / 10]`)
	expectNumber(t, got, 2)
}

func TestFunctionApplication(t *testing.T) {
	_, got := run(t, `
		let add = fn(a, b) { return a + b }
		add(2, 3)
	`)
	expectNumber(t, got, 5)
}

func TestImplicitLastValue(t *testing.T) {
	_, got := run(t, `
		let double = fn(n) { n * 2 }
		double(21)
	`)
	expectNumber(t, got, 42)
}

func TestRecursion(t *testing.T) {
	_, got := run(t, `
		let fib = fn(n) {
			if (n < 2) { return n }
			return fib(n - 1) + fib(n - 2)
		}
		fib(10)
	`)
	expectNumber(t, got, 55)
}

func TestWhileLoop(t *testing.T) {
	_, got := run(t, `
		let total = 0
		let n = 1
		while (n <= 10) {
			total = total + n
			n = n + 1
		}
		total
	`)
	expectNumber(t, got, 55)
}

func TestArityMismatch(t *testing.T) {
	_, got := run(t, `
		let f = fn(a, b) { a + b }
		f(1)
	`)
	expectException(t, got, "ArgumentError")
}

func TestUnboundIdentifier(t *testing.T) {
	_, got := run(t, `nope`)
	expectException(t, got, "ReferenceError")
}

func TestCallingNonFunction(t *testing.T) {
	_, got := run(t, `let x = 5 x()`)
	expectException(t, got, "TypeError")
}

func TestThrowStatement(t *testing.T) {
	_, got := run(t, `throw "broken"`)
	exc := expectException(t, got, "Error")
	if !strings.Contains(exc.Message(), "broken") {
		t.Errorf("expected message to mention broken, got %q", exc.Message())
	}
}

func TestExceptionBacktraceNamesFrames(t *testing.T) {
	_, got := run(t, `
		let inner = fn() { throw "boom" }
		let outer = fn() { inner() }
		outer()
	`)
	exc := expectException(t, got, "Error")

	trace := exc.Backtrace()
	if len(trace) != 3 {
		t.Fatalf("expected 3 frames, got %d: %v", len(trace), trace)
	}
	if trace[0].FunctionName != "inner" || trace[1].FunctionName != "outer" {
		t.Errorf("unexpected frame order: %v", trace)
	}
	if trace[2].FunctionName != "(program)" {
		t.Errorf("expected (program) as the outermost frame, got %q", trace[2].FunctionName)
	}

	rendered := RenderBacktrace(exc)
	if !strings.Contains(rendered, "inner") || !strings.Contains(rendered, "Error: boom") {
		t.Errorf("unexpected rendering:\n%s", rendered)
	}
}

func TestExceptionStopsRun(t *testing.T) {
	i, got := run(t, `
		let x = 1
		throw "stop"
		x = 2
	`)
	expectException(t, got, "Error")

	_, got = run2(t, i, `x`)
	expectNumber(t, got, 1)
}

// run2 evaluates more source on an existing interpreter, the way the REPL
// feeds successive lines into one session.
func run2(t *testing.T, i *Interpreter, input string) (*Interpreter, runtime.Value) {
	t.Helper()

	l := lexer.New(input)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}
	return i, i.Run(program)
}

func TestGlobalsPersistAcrossRuns(t *testing.T) {
	i, _ := run(t, `let counter = 0`)
	run2(t, i, `counter = counter + 1`)
	_, got := run2(t, i, `counter`)
	expectNumber(t, got, 1)
}

func TestBuiltinLen(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{`len("hello")`, 5},
		{`len([1, 2, 3])`, 3},
		{`len({a: 1, b: 2})`, 2},
	}

	for _, tt := range tests {
		_, got := run(t, tt.input)
		expectNumber(t, got, tt.want)
	}
}

func TestBuiltinTypeAndKeys(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`type(5)`, "number"},
		{`type("x")`, "text"},
		{`type(nil)`, "nil"},
		{`type([1])`, "array"},
		{`type({})`, "object"},
		{`type(fn() { 0 })`, "function"},
	}
	for _, tt := range tests {
		_, got := run(t, tt.input)
		expectText(t, got, tt.want)
	}

	_, got := run(t, `keys({b: 1, a: 2})[0]`)
	expectText(t, got, "a")
}

func TestBuiltinPush(t *testing.T) {
	_, got := run(t, `
		let xs = []
		push(xs, 1)
		push(xs, 2)
		len(xs)
	`)
	expectNumber(t, got, 2)
}

func TestScriptArgsAreBound(t *testing.T) {
	// ScriptArgs starts with the script path, then the passed arguments.
	config := util.Configuration{ScriptArgs: []string{"demo.ore", "one", "two"}}

	_, got := runWith(t, config, `args[0]`)
	expectText(t, got, "demo.ore")

	_, got = runWith(t, config, `args[2]`)
	expectText(t, got, "two")
}

func TestInterpreterRootsItsState(t *testing.T) {
	i, _ := run(t, `
		let keep = {tag: "kept"}
		let xs = [keep, keep]
	`)

	before := i.Heap().LiveCellCount()
	i.Heap().Collect()
	if got := i.Heap().LiveCellCount(); got != before {
		t.Errorf("collection freed reachable globals: %d -> %d cells", before, got)
	}

	_, got := run2(t, i, `xs[0].tag`)
	expectText(t, got, "kept")
}

func TestStressModeLiteralConstruction(t *testing.T) {
	_, got := runStressed(t, `
		let grid = [{a: [1, 2]}, {b: [3, 4]}]
		grid[1].b[0]
	`)
	expectNumber(t, got, 3)
}

func TestStressModeFunctionCalls(t *testing.T) {
	i, got := runStressed(t, `
		let build = fn(n) {
			let node = {value: n, children: []}
			if (n > 0) {
				push(node.children, build(n - 1))
			}
			return node
		}
		build(5).children[0].value
	`)
	expectNumber(t, got, 4)

	if i.Heap().CollectionCount() == 0 {
		t.Errorf("stress mode never collected")
	}
}

func TestStressModeStringBuilding(t *testing.T) {
	_, got := runStressed(t, `
		let s = ""
		let n = 0
		while (n < 20) {
			s = s + "aaaaaaaaaa"
			n = n + 1
		}
		len(s)
	`)
	expectNumber(t, got, 200)
}

func TestStressModeGarbageIsReclaimed(t *testing.T) {
	i, got := runStressed(t, `
		let n = 0
		while (n < 50) {
			let waste = {left: [n], right: [n]}
			n = n + 1
		}
		n
	`)
	expectNumber(t, got, 50)

	if i.Heap().FreedCellCount() == 0 {
		t.Errorf("expected loop temporaries to be reclaimed")
	}
}

func TestGCBuiltinsUnderStress(t *testing.T) {
	_, got := runStressed(t, `
		gc()
		let stats = gc_stats()
		stats.collections > 0
	`)
	if !got.IsBoolean() || !got.AsBoolean() {
		t.Errorf("expected gc_stats().collections > 0, got %s", got.Inspect())
	}
}

func TestDumpBuiltinCountsCells(t *testing.T) {
	_, got := run(t, `dump({a: {b: 1}, c: [2]})`)
	s, ok := textOf(got)
	if !ok || !strings.Contains(s, "3 cell(s) reachable") {
		t.Errorf("unexpected dump output: %s", got.Inspect())
	}
}
