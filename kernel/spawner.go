package kernel

import (
	"context"

	"github.com/sarchlab/ossim/comm"
	"github.com/sarchlab/ossim/mem/vm"
)

// A Spawner starts the worker of an admitted process. The worker must talk
// to the kernel only through the endpoint, and must stop when the context is
// cancelled.
type Spawner interface {
	Spawn(ctx context.Context, slot int, pid vm.PID, ep *comm.Endpoint) error
}
