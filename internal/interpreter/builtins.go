package interpreter

import (
	"fmt"
	"strings"

	"github.com/rabeh-analyse/ore/internal/runtime"
)

// installBuiltins binds the native functions onto the global object, which
// keeps them rooted like any other global.
func installBuiltins(i *Interpreter) {
	for name, fn := range builtins {
		native := i.heap.AllocateNativeFunction(name, fn)
		i.global.Put(runtime.StringKey(name), runtime.CellValue(native))
	}
}

var builtins = map[string]runtime.NativeFn{
	"print":    builtinPrint,
	"println":  builtinPrintln,
	"len":      builtinLen,
	"type":     builtinType,
	"keys":     builtinKeys,
	"push":     builtinPush,
	"error":    builtinError,
	"gc":       builtinGC,
	"gc_stats": builtinGCStats,
	"dump":     builtinDump,
}

func builtinPrint(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	parts := make([]string, len(args))
	for n, arg := range args {
		parts[n] = arg.Inspect()
	}
	fmt.Print(strings.Join(parts, " "))
	return runtime.NilValue()
}

func builtinPrintln(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	builtinPrint(ctx, args...)
	fmt.Println()
	return runtime.NilValue()
}

func builtinLen(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	if len(args) != 1 {
		return ctx.RaiseError("ArgumentError", "len expects 1 argument, got %d", len(args))
	}

	if s, ok := textOf(args[0]); ok {
		return runtime.NumberValue(float64(len(s)))
	}
	if args[0].IsCell() {
		if arr, ok := args[0].AsCell().(*runtime.Array); ok {
			return runtime.NumberValue(float64(arr.Len()))
		}
		return runtime.NumberValue(float64(args[0].AsObject().PropertyCount()))
	}
	return ctx.RaiseError("TypeError", "len not defined for %s", kindName(args[0]))
}

func builtinType(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	if len(args) != 1 {
		return ctx.RaiseError("ArgumentError", "type expects 1 argument, got %d", len(args))
	}
	// Cell type names are capitalized for diagnostics; scripts see them
	// lowercase, matching the primitive kind names.
	return runtime.TextValue(strings.ToLower(kindName(args[0])))
}

func builtinKeys(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	if len(args) != 1 || !args[0].IsCell() {
		return ctx.RaiseError("TypeError", "keys expects an object")
	}

	obj := args[0].AsObject()
	out := ctx.Heap().AllocateArray()
	for _, name := range obj.PropertyNames() {
		out.Append(runtime.TextValue(name))
	}
	return runtime.CellValue(out)
}

func builtinPush(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	if len(args) != 2 {
		return ctx.RaiseError("ArgumentError", "push expects 2 arguments, got %d", len(args))
	}
	if !args[0].IsCell() {
		return ctx.RaiseError("TypeError", "push expects an array, got %s", kindName(args[0]))
	}
	arr, ok := args[0].AsCell().(*runtime.Array)
	if !ok {
		return ctx.RaiseError("TypeError", "push expects an array, got %s", kindName(args[0]))
	}
	arr.Append(args[1])
	return args[0]
}

func builtinError(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	msg := "error"
	if len(args) > 0 {
		msg = args[0].Inspect()
	}
	return ctx.RaiseError("Error", "%s", msg)
}

func builtinGC(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	ctx.Heap().Collect()
	return runtime.NilValue()
}

func builtinGCStats(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	heap := ctx.Heap()
	stats := heap.AllocateObject()
	stats.Put(runtime.StringKey("live"), runtime.NumberValue(float64(heap.LiveCellCount())))
	stats.Put(runtime.StringKey("allocations"), runtime.NumberValue(float64(heap.AllocationCount())))
	stats.Put(runtime.StringKey("collections"), runtime.NumberValue(float64(heap.CollectionCount())))
	stats.Put(runtime.StringKey("freed"), runtime.NumberValue(float64(heap.FreedCellCount())))
	return runtime.CellValue(stats)
}

func builtinDump(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	if len(args) != 1 {
		return ctx.RaiseError("ArgumentError", "dump expects 1 argument, got %d", len(args))
	}
	if !args[0].IsCell() {
		return runtime.TextValue(args[0].Inspect() + "\n")
	}
	return runtime.TextValue(runtime.DumpGraph(args[0].AsCell()))
}
