package vm

import "errors"

var (
	// ErrNoCapacity is returned when every slot of the process table is
	// taken. Callers are expected to try again later.
	ErrNoCapacity = errors.New("process table has no free slot")

	// ErrNoFreeFrame is returned when no frame can be handed out, neither a
	// free one nor a victim. It can only happen with an empty frame table.
	ErrNoFreeFrame = errors.New("no frame available")

	// ErrNotRunning is returned when an operation requires a running process.
	ErrNotRunning = errors.New("process is not running")
)
