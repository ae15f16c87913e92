package runtime

import (
	"fmt"
	"log/slog"

	"github.com/rabeh-analyse/ore/internal/ast"
)

// RootProvider is implemented by the embedding interpreter. GatherRoots
// returns every Value directly reachable from interpreter state: the global
// object, each active call frame's bindings, and anything currently being
// returned or thrown. The heap never retains the result; it is queried fresh
// at the start of each collection. Implementations must not allocate on this
// heap while being queried.
type RootProvider interface {
	GatherRoots() []Value
}

// minCollectionThreshold is the floor of the automatic trigger: a collection
// runs once allocations since the previous one exceed the larger of this and
// the live-cell count that collection left behind.
const minCollectionThreshold = 256

// Heap owns every Cell it allocates. One heap per interpreter; cells live
// from allocation until a sweep finds them unreachable, and only the sweep
// destroys them.
type Heap struct {
	roots RootProvider
	cells map[*CellHeader]Cell

	collecting          bool
	debugHeap           bool
	gcOnEveryAllocation bool

	allocationsSinceGC int
	liveAfterGC        int

	allocationCount uint64
	collectionCount uint64
	freedCount      uint64
}

func NewHeap(roots RootProvider) *Heap {
	return &Heap{
		roots: roots,
		cells: make(map[*CellHeader]Cell),
	}
}

// SetDebugHeap toggles post-sweep graph verification. Not required for
// correct collection; it exists to catch embedder bugs early.
func (h *Heap) SetDebugHeap(on bool) { h.debugHeap = on }

// SetGCOnEveryAllocation toggles stress mode: a full collection around every
// allocation, trading throughput for deterministic stress coverage.
func (h *Heap) SetGCOnEveryAllocation(on bool) { h.gcOnEveryAllocation = on }

func (h *Heap) LiveCellCount() int      { return len(h.cells) }
func (h *Heap) AllocationCount() uint64 { return h.allocationCount }
func (h *Heap) CollectionCount() uint64 { return h.collectionCount }
func (h *Heap) FreedCellCount() uint64  { return h.freedCount }

// Contains reports whether c is currently tracked as live by this heap.
func (h *Heap) Contains(c Cell) bool {
	_, ok := h.cells[c.Header()]
	return ok
}

// allocate runs the collection policy, constructs the cell and registers it
// unmarked in the live set. Construction happens after any collection so the
// new cell can never be swept by the cycle its own allocation triggered.
func allocate[T Cell](h *Heap, construct func() T) T {
	if h.collecting {
		panic("runtime: allocation during an active garbage collection")
	}

	if h.gcOnEveryAllocation {
		h.Collect()
	} else if h.allocationsSinceGC >= h.collectionThreshold() {
		h.Collect()
	}

	c := construct()
	h.cells[c.Header()] = c
	h.allocationCount++
	h.allocationsSinceGC++
	return c
}

// collectionThreshold implements the automatic trigger policy: the heap may
// roughly double (in cell count) between collections, with a floor so small
// heaps are not collected constantly.
func (h *Heap) collectionThreshold() int {
	if h.liveAfterGC > minCollectionThreshold {
		return h.liveAfterGC
	}
	return minCollectionThreshold
}

func (h *Heap) AllocateObject() *Object {
	return allocate(h, func() *Object { return &Object{} })
}

func (h *Heap) AllocateArray(elements ...Value) *Array {
	return allocate(h, func() *Array { return &Array{elements: elements} })
}

func (h *Heap) AllocateString(s string) *StringObject {
	return allocate(h, func() *StringObject { return &StringObject{value: s} })
}

func (h *Heap) AllocateException(kind, message string, backtrace []StackFrame) *Exception {
	return allocate(h, func() *Exception {
		return &Exception{kind: kind, message: message, backtrace: backtrace}
	})
}

func (h *Heap) AllocateFunction(name string, parameters []string, body *ast.BlockStatement) *FunctionObject {
	return allocate(h, func() *FunctionObject {
		return &FunctionObject{name: name, parameters: parameters, body: body}
	})
}

func (h *Heap) AllocateNativeFunction(name string, fn NativeFn) *NativeFunction {
	return allocate(h, func() *NativeFunction {
		return &NativeFunction{name: name, fn: fn}
	})
}

// Collect runs a stop-the-world mark-and-sweep pass: clear every mark bit,
// re-query the root provider, trace reachability with one shared visitor,
// then free everything unmarked. The to-free set is fully determined before
// any cell is destroyed, so sweeping never inspects a freed cell.
func (h *Heap) Collect() {
	if h.collecting {
		panic("runtime: reentrant garbage collection")
	}
	h.collecting = true
	defer func() { h.collecting = false }()

	for header := range h.cells {
		header.marked = false
	}

	roots := h.roots.GatherRoots()

	visitor := NewVisitor(func(c Cell) {
		c.Header().marked = true
	})
	for _, root := range roots {
		visitor.VisitValue(root)
	}

	var dead []Cell
	for header, c := range h.cells {
		if !header.marked {
			dead = append(dead, c)
		}
	}

	for _, c := range dead {
		header := c.Header()
		if header.freed {
			panic(fmt.Sprintf("runtime: double free of %s cell", c.TypeName()))
		}
		delete(h.cells, header)
		header.freed = true
	}

	h.collectionCount++
	h.freedCount += uint64(len(dead))
	h.allocationsSinceGC = 0
	h.liveAfterGC = len(h.cells)

	if h.debugHeap {
		h.verify(roots)
	}

	slog.Debug("garbage collection finished",
		slog.Int("roots", len(roots)),
		slog.Int("live", len(h.cells)),
		slog.Int("freed", len(dead)))
}

// verify re-walks the graph from the given roots and panics if any reachable
// cell is freed or untracked, or if a surviving cell was left unmarked.
// Debug-heap mode only.
func (h *Heap) verify(roots []Value) {
	visitor := NewVisitor(func(c Cell) {
		header := c.Header()
		if header.freed {
			panic(fmt.Sprintf("runtime: debug heap: reachable %s cell is freed", c.TypeName()))
		}
		if _, ok := h.cells[header]; !ok {
			panic(fmt.Sprintf("runtime: debug heap: reachable %s cell is not tracked by this heap", c.TypeName()))
		}
	})
	for _, root := range roots {
		visitor.VisitValue(root)
	}

	for header := range h.cells {
		if !header.marked {
			panic("runtime: debug heap: live set contains an unmarked cell after sweep")
		}
	}
}
