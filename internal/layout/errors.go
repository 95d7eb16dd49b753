package layout

import "errors"

var (
	// ErrUnknownNode is returned when a drag targets a node not in the simulation.
	ErrUnknownNode = errors.New("unknown node")

	// ErrAlreadyDragging is returned when a drag starts on a node that is already being dragged.
	ErrAlreadyDragging = errors.New("node already dragging")

	// ErrNotDragging is returned by DragMove/DragEnd for a node without an active drag.
	ErrNotDragging = errors.New("node not dragging")

	// ErrInvalidPosition is returned for non-finite drag coordinates.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrStopped is returned by runner operations after Stop.
	ErrStopped = errors.New("layout stopped")
)
