// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by someone
// else, while ErrConflict signals that a conditional state update
// matched zero rows because another request got there first.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a conditional update cannot be
// performed because of conflicting state, such as two concurrent
// loan requests claiming the same item. The losing request sees
// zero rows affected. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrItemUnavailable is returned when an item is not in the state the
// requested transition needs, e.g. loaning an item that is reservado
// or deteriorado. Handlers should translate this into an HTTP 400
// response.
var ErrItemUnavailable = errors.New("item unavailable")
