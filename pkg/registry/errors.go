// Package registry keeps the per-session read mirror of cells together with
// the transient state that never enters the document: stream accumulators,
// error flags, focus and overlays.
//
// One Registry exists per open session and is discarded with Teardown.
package registry

import "errors"

var (
	// ErrAccumulatorBusy indicates a second accumulator for a cell that
	// already has one open.
	ErrAccumulatorBusy = errors.New("cell already has an active accumulator")

	// ErrUnknownCell indicates an accumulator for a cell missing from the
	// mirror.
	ErrUnknownCell = errors.New("cell not in registry")

	// ErrTornDown indicates use of a registry after Teardown.
	ErrTornDown = errors.New("registry torn down")
)
