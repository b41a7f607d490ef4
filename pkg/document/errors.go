// Package document holds the editable tree of one session: a root with one
// boundary node per cell, each boundary holding the cell's blocks. Cell
// identity and metadata are attributes of the boundary, so a selection can
// span cells as ordinary document positions.
//
// A Document is not safe for concurrent use. It is owned by exactly one
// reconciliation engine, which serializes every access.
package document

import "errors"

var (
	// ErrUnknownCell indicates an operation addressed a cell id that is not
	// in the document.
	ErrUnknownCell = errors.New("cell not found in document")

	// ErrInvalidOrder indicates a reorder whose ids are not a permutation of
	// the document's cells.
	ErrInvalidOrder = errors.New("reorder ids do not match document cells")

	// ErrInvalidPosition indicates a cursor position outside the document.
	ErrInvalidPosition = errors.New("position outside document")
)
