// Package styles holds the fixed writing-tone catalog.
package styles

import (
	"github.com/jstello/OneInc/internal/config"
)

// Definition maps a style identifier to the instruction sent upstream as the
// system prompt for that style.
type Definition struct {
	ID          string
	Instruction string
}

// Catalog is an ordered, immutable set of style definitions. The declaration
// order is the order styles are streamed to the caller.
type Catalog struct {
	defs []Definition
}

// FromConfig builds the catalog from configuration, preserving entry order.
// Validation of ids/instructions happens at config load.
func FromConfig(entries []config.Style) *Catalog {
	defs := make([]Definition, 0, len(entries))
	for _, e := range entries {
		defs = append(defs, Definition{ID: e.ID, Instruction: e.Instruction})
	}
	return &Catalog{defs: defs}
}

// All returns the style definitions in catalog order. The returned slice is
// a copy; the catalog itself never changes after startup.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of styles in the catalog.
func (c *Catalog) Len() int {
	return len(c.defs)
}
