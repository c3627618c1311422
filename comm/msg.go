// Package comm carries the memory requests of the workers to the kernel and
// the responses back.
package comm

import (
	"fmt"

	"github.com/sarchlab/ossim/mem/vm"
)

// A Request is sent by a worker. It either asks for a memory access or, if
// Terminated is set, tells the kernel that the worker is done.
type Request struct {
	PID        vm.PID
	Address    uint32
	IsWrite    bool
	Terminated bool
}

func (r Request) String() string {
	switch {
	case r.Terminated:
		return fmt.Sprintf("p%d terminated", r.PID)
	case r.IsWrite:
		return fmt.Sprintf("p%d write %d", r.PID, r.Address)
	default:
		return fmt.Sprintf("p%d read %d", r.PID, r.Address)
	}
}

// A Response answers one memory access request. Err is set if the access
// could not be performed.
type Response struct {
	PID     vm.PID
	Address uint32
	IsWrite bool
	Frame   int
	Hit     bool
	Err     error
}
