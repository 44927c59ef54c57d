package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialIDs generates record IDs "<prefix>-0001", "<prefix>-0002", ...
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario produces byte-identical journals.
//
// Thread-safety: SequentialIDs is safe for concurrent use.
type SequentialIDs struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialIDs creates a generator. If prefix is empty, "rec" is used.
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "rec"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next ID.
func (g *SequentialIDs) Next() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.n.Add(1))
}
