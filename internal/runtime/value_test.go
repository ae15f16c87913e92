package runtime

import "testing"

func TestValueEquality(t *testing.T) {
	heap, _ := newTestHeap()
	a := heap.AllocateObject()
	b := heap.AllocateObject()

	tests := []struct {
		name  string
		left  Value
		right Value
		equal bool
	}{
		{"nil vs nil", NilValue(), NilValue(), true},
		{"nil vs false", NilValue(), BooleanValue(false), false},
		{"numbers equal", NumberValue(1.5), NumberValue(1.5), true},
		{"numbers differ", NumberValue(1), NumberValue(2), false},
		{"text equal", TextValue("a"), TextValue("a"), true},
		{"text vs number", TextValue("1"), NumberValue(1), false},
		{"same cell", CellValue(a), CellValue(a), true},
		{"distinct cells", CellValue(a), CellValue(b), false},
	}

	for _, tt := range tests {
		if got := tt.left.Equals(tt.right); got != tt.equal {
			t.Errorf("%s: Equals = %t, want %t", tt.name, got, tt.equal)
		}
	}
}

func TestCellValueIdentityNotStructure(t *testing.T) {
	heap, _ := newTestHeap()
	a := heap.AllocateObject()
	b := heap.AllocateObject()
	a.Put(StringKey("x"), NumberValue(1))
	b.Put(StringKey("x"), NumberValue(1))

	if CellValue(a).Equals(CellValue(b)) {
		t.Error("structurally equal objects must not compare equal by identity")
	}
}

func TestAsCellOnPrimitivePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for AsCell on a number value")
		}
	}()
	NumberValue(1).AsCell()
}

func TestIsException(t *testing.T) {
	heap, _ := newTestHeap()

	exc := heap.AllocateException("Error", "x", nil)
	obj := heap.AllocateObject()

	if !CellValue(exc).IsException() {
		t.Error("exception cell not reported by IsException")
	}
	if CellValue(obj).IsException() {
		t.Error("plain object reported as exception")
	}
	if NilValue().IsException() {
		t.Error("nil value reported as exception")
	}
}

func TestAsObjectOnSpecializedCells(t *testing.T) {
	heap, _ := newTestHeap()

	arr := heap.AllocateArray()
	str := heap.AllocateString("hi")
	exc := heap.AllocateException("Error", "x", nil)

	for _, v := range []Value{CellValue(arr), CellValue(str), CellValue(exc)} {
		obj := v.AsObject()
		obj.Put(StringKey("tag"), NumberValue(1))
		if !obj.Contains(StringKey("tag")) {
			t.Errorf("%s: AsObject did not expose property storage", v.AsCell().TypeName())
		}
	}
}

func TestValueInspect(t *testing.T) {
	tests := []struct {
		val  Value
		want string
	}{
		{NilValue(), "nil"},
		{BooleanValue(true), "true"},
		{NumberValue(3.14), "3.14"},
		{NumberValue(2), "2"},
		{TextValue("hi"), "hi"},
	}

	for _, tt := range tests {
		if got := tt.val.Inspect(); got != tt.want {
			t.Errorf("Inspect = %q, want %q", got, tt.want)
		}
	}
}
