// Package notebook holds the cell and session records shared by the document,
// registry and reconciliation packages.
package notebook

import "errors"

var (
	// ErrInvalidKind indicates an unknown cell kind on the wire.
	ErrInvalidKind = errors.New("invalid cell kind")

	// ErrDependencyCycle indicates that processing references form a cycle.
	ErrDependencyCycle = errors.New("dependency cycle between cells")

	// ErrUnknownCell indicates a graph query for a cell that is not in the graph.
	ErrUnknownCell = errors.New("unknown cell")
)

// ErrTooManyReferences indicates a prompt naming more than MaxPromptReferences cells.
var ErrTooManyReferences = errors.New("too many cell references")
