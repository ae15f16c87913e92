package runtime

import (
	"fmt"
	"strings"
)

// DumpGraph enumerates every cell reachable from c, one line per cell, using
// the same traversal contract as the collector. Handy for debugging object
// graphs from the REPL; cycles are handled by the visitor's seen set.
func DumpGraph(c Cell) string {
	var b strings.Builder

	visitor := NewVisitor(func(reached Cell) {
		fmt.Fprintf(&b, "%s %s\n", reached.TypeName(), reached.Inspect())
	})
	c.VisitGraph(visitor)

	fmt.Fprintf(&b, "%d cell(s) reachable\n", visitor.Seen())
	return b.String()
}
