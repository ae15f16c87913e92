package runtime

// Cell is the unit of heap allocation. Every concrete heap type embeds
// CellHeader and is owned by exactly one Heap: it exists from Allocate until
// the sweep that frees it, and nothing outside the Heap may destroy it.
type Cell interface {
	// Header returns the collector-private header. The header pointer is
	// stable and unique per allocation, which makes it the identity used by
	// visitor seen-sets and the heap's live set.
	Header() *CellHeader

	TypeName() string
	Inspect() string

	// VisitGraph reports the cell to the visitor and then forwards the
	// visitor to every Cell referenced by its owned Values. Implementations
	// must start with v.Enter and return immediately when it reports the
	// cell as already seen; the visitor's seen set is what keeps traversal
	// over cyclic graphs linear and terminating.
	VisitGraph(v *Visitor)
}

// CellHeader carries the mark bit for the collector plus a poison bit that
// the debug heap uses to detect references into freed memory.
type CellHeader struct {
	marked bool
	freed  bool
}

func (h *CellHeader) Header() *CellHeader { return h }

// Marked reports whether the most recent mark phase reached this cell.
func (h *CellHeader) Marked() bool { return h.marked }

// Freed reports whether the cell has been swept. A live program should never
// observe a freed header; the debug heap panics when one is reachable.
func (h *CellHeader) Freed() bool { return h.freed }

// Visitor drives a single traversal over a cell graph. It owns the seen set,
// so a traversal touches each reachable cell exactly once regardless of
// cycles. The same visitor may be fed multiple roots; the seen set is shared
// across all of them.
type Visitor struct {
	seen    map[*CellHeader]struct{}
	onReach func(Cell)
}

// NewVisitor returns a Visitor invoking onReach once per newly reached cell.
// onReach may be nil for traversals that only need the seen set, such as
// graph dumps.
func NewVisitor(onReach func(Cell)) *Visitor {
	return &Visitor{
		seen:    make(map[*CellHeader]struct{}),
		onReach: onReach,
	}
}

// Enter reports c as reached. It returns false when c was already seen by
// this visitor, in which case the caller must not descend into c's edges
// again.
func (v *Visitor) Enter(c Cell) bool {
	h := c.Header()
	if _, ok := v.seen[h]; ok {
		return false
	}
	v.seen[h] = struct{}{}
	if v.onReach != nil {
		v.onReach(c)
	}
	return true
}

// VisitValue descends into val's referent when val holds a cell reference.
// Primitive values carry no edges.
func (v *Visitor) VisitValue(val Value) {
	if val.IsCell() {
		val.AsCell().VisitGraph(v)
	}
}

// Seen reports how many distinct cells the visitor has reached so far.
func (v *Visitor) Seen() int { return len(v.seen) }
