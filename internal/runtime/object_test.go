package runtime

import (
	"strings"
	"testing"
)

func TestPutGetContains(t *testing.T) {
	heap, roots := newTestHeap()
	obj := heap.AllocateObject()
	roots.add(CellValue(obj))

	key := StringKey("answer")
	if obj.Contains(key) {
		t.Fatal("Contains true before any Put")
	}

	obj.Put(key, NumberValue(42))
	if !obj.Contains(key) {
		t.Fatal("Contains false immediately after Put")
	}
	if got := obj.Get(key); !got.Equals(NumberValue(42)) {
		t.Errorf("Get = %s, want 42", got.Inspect())
	}

	obj.Put(key, TextValue("overwritten"))
	if got := obj.Get(key); !got.Equals(TextValue("overwritten")) {
		t.Errorf("Get after overwrite = %s, want \"overwritten\"", got.Inspect())
	}
	if got := obj.PropertyCount(); got != 1 {
		t.Errorf("PropertyCount = %d, want 1 (Put must overwrite, not add)", got)
	}
}

func TestGetUnboundKeyPanics(t *testing.T) {
	heap, _ := newTestHeap()
	obj := heap.AllocateObject()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for Get of an unbound key")
		}
	}()
	obj.Get(StringKey("missing"))
}

func TestNonStringKeyPanics(t *testing.T) {
	heap, _ := newTestHeap()
	obj := heap.AllocateObject()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for a non-string property key")
		}
	}()
	obj.Contains(PropertyKey{})
}

func TestSelfReferenceVisitedOnce(t *testing.T) {
	heap, roots := newTestHeap()
	obj := heap.AllocateObject()
	obj.Put(StringKey("self"), CellValue(obj))
	roots.add(CellValue(obj))

	visits := 0
	visitor := NewVisitor(func(Cell) { visits++ })
	obj.VisitGraph(visitor)

	if visits != 1 {
		t.Errorf("self-referential object visited %d times, want 1", visits)
	}

	// And collection over the same shape must terminate and keep it alive.
	heap.Collect()
	if !heap.Contains(obj) {
		t.Error("rooted self-referential object was freed")
	}
}

func TestVisitGraphReachesAllPropertyCells(t *testing.T) {
	heap, _ := newTestHeap()
	parent := heap.AllocateObject()
	childA := heap.AllocateObject()
	childB := heap.AllocateArray(NumberValue(1), CellValue(childA))
	parent.Put(StringKey("a"), CellValue(childA))
	parent.Put(StringKey("b"), CellValue(childB))
	parent.Put(StringKey("n"), NumberValue(7))

	visitor := NewVisitor(nil)
	parent.VisitGraph(visitor)

	if got := visitor.Seen(); got != 3 {
		t.Errorf("traversal reached %d cells, want 3", got)
	}
}

func TestInspectCycleSafe(t *testing.T) {
	heap, _ := newTestHeap()
	obj := heap.AllocateObject()
	obj.Put(StringKey("self"), CellValue(obj))

	out := obj.Inspect()
	if !strings.Contains(out, "<cycle>") {
		t.Errorf("Inspect of a cyclic object = %q, want a <cycle> marker", out)
	}
}

func TestArrayElementsAreTracedAndCollected(t *testing.T) {
	heap, roots := newTestHeap()

	element := heap.AllocateObject()
	arr := heap.AllocateArray(CellValue(element), NumberValue(3))
	roots.add(CellValue(arr))

	heap.Collect()
	if !heap.Contains(element) {
		t.Fatal("array element freed while the array is rooted")
	}

	roots.clear()
	heap.Collect()
	if heap.Contains(arr) || heap.Contains(element) {
		t.Error("array graph survived without roots")
	}
}

func TestExceptionIsOrdinaryHeapData(t *testing.T) {
	heap, roots := newTestHeap()

	exc := heap.AllocateException("TypeError", "boom", []StackFrame{{FunctionName: "main"}})
	payload := heap.AllocateObject()
	exc.Put(StringKey("payload"), CellValue(payload))

	roots.add(CellValue(exc))
	heap.Collect()

	if !heap.Contains(exc) || !heap.Contains(payload) {
		t.Fatal("in-flight exception graph must survive collection")
	}

	roots.clear()
	heap.Collect()
	if heap.Contains(exc) || heap.Contains(payload) {
		t.Error("handled exception graph must be collectable")
	}
}
