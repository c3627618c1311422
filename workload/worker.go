package workload

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sarchlab/ossim/comm"
)

// A Worker plays one simulated user process.
type Worker struct {
	endpoint  *comm.Endpoint
	generator Generator
	logger    *slog.Logger
}

// NewWorker creates a worker that talks through the endpoint.
func NewWorker(
	endpoint *comm.Endpoint,
	generator Generator,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		endpoint:  endpoint,
		generator: generator,
		logger:    logger.With("pid", endpoint.PID()),
	}
}

// Run issues memory requests one at a time until the generator decides to
// terminate, then notifies the kernel. Only the accesses that the kernel
// served count as references. It returns early without error if the
// context is cancelled or the channel is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Debug("user process started")

	refs := 0
	for !w.generator.ShouldTerminate(refs) {
		address, isWrite := w.generator.Next()

		_, err := w.endpoint.Call(ctx, address, isWrite)
		if err != nil {
			if w.stopped(ctx, err) {
				return nil
			}

			if errors.Is(err, comm.ErrRequestOutstanding) {
				return err
			}

			w.logger.Warn("memory request failed",
				"address", address, "error", err)

			continue
		}

		refs++
	}

	w.logger.Debug("user process terminating", "references", refs)

	err := w.endpoint.Terminate(ctx)
	if err != nil && !w.stopped(ctx, err) {
		return err
	}

	return nil
}

func (w *Worker) stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, comm.ErrClosed)
}
