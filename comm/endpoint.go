package comm

import (
	"context"
	"sync"

	"github.com/sarchlab/ossim/mem/vm"
)

// An Endpoint is the worker's side of a Channel. A worker may have at most
// one memory request in flight.
type Endpoint struct {
	pid       vm.PID
	channel   *Channel
	responses chan Response

	lock    sync.Mutex
	pending bool
}

// PID returns the process that the endpoint belongs to.
func (e *Endpoint) PID() vm.PID {
	return e.pid
}

// Send issues a memory access request. It blocks while the request queue is
// full.
func (e *Endpoint) Send(ctx context.Context, address uint32, isWrite bool) error {
	e.lock.Lock()
	if e.pending {
		e.lock.Unlock()
		return ErrRequestOutstanding
	}
	e.pending = true
	e.lock.Unlock()

	err := e.channel.send(ctx, Request{
		PID:     e.pid,
		Address: address,
		IsWrite: isWrite,
	})
	if err != nil {
		e.clearPending()
	}

	return err
}

// Recv waits for the response to the outstanding request.
func (e *Endpoint) Recv(ctx context.Context) (Response, error) {
	select {
	case resp := <-e.responses:
		e.clearPending()
		return resp, nil
	default:
	}

	select {
	case resp := <-e.responses:
		e.clearPending()
		return resp, nil
	case <-e.channel.closed:
		return Response{}, ErrClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Call sends a memory access request and waits for its response. If the
// kernel could not perform the access, the error of the response is returned.
func (e *Endpoint) Call(
	ctx context.Context,
	address uint32,
	isWrite bool,
) (Response, error) {
	if err := e.Send(ctx, address, isWrite); err != nil {
		return Response{}, err
	}

	resp, err := e.Recv(ctx)
	if err != nil {
		return resp, err
	}

	return resp, resp.Err
}

// Terminate tells the kernel that the process is done. No response follows.
func (e *Endpoint) Terminate(ctx context.Context) error {
	return e.channel.send(ctx, Request{PID: e.pid, Terminated: true})
}

func (e *Endpoint) clearPending() {
	e.lock.Lock()
	e.pending = false
	e.lock.Unlock()
}
