package comm

import (
	"context"
	"fmt"
	"sync"

	"github.com/sarchlab/ossim/mem/vm"
)

// A Channel connects the workers to the kernel. All the workers share one
// bounded request queue, while each worker has its own response queue that
// holds at most one response.
type Channel struct {
	requests chan Request

	lock      sync.Mutex
	endpoints map[vm.PID]*Endpoint

	closed    chan struct{}
	closeOnce sync.Once
}

// NewChannel creates a channel whose request queue holds up to capacity
// requests.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		panic("channel capacity must be positive")
	}

	return &Channel{
		requests:  make(chan Request, capacity),
		endpoints: make(map[vm.PID]*Endpoint),
		closed:    make(chan struct{}),
	}
}

// Attach creates the endpoint that the worker of the process talks through.
func (c *Channel) Attach(pid vm.PID) (*Endpoint, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.IsClosed() {
		return nil, ErrClosed
	}

	if _, exists := c.endpoints[pid]; exists {
		return nil, fmt.Errorf("p%d is already attached", pid)
	}

	ep := &Endpoint{
		pid:       pid,
		channel:   c,
		responses: make(chan Response, 1),
	}
	c.endpoints[pid] = ep

	return ep, nil
}

// Detach removes the endpoint of the process. Later responses to the process
// fail with ErrUnknownEndpoint.
func (c *Channel) Detach(pid vm.PID) {
	c.lock.Lock()
	delete(c.endpoints, pid)
	c.lock.Unlock()
}

// NumAttached returns the number of attached endpoints.
func (c *Channel) NumAttached() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.endpoints)
}

// TryRecv returns the oldest request without blocking. The bool return value
// is false if there is no request.
func (c *Channel) TryRecv() (Request, bool) {
	select {
	case req := <-c.requests:
		return req, true
	default:
		return Request{}, false
	}
}

// Reply delivers the response to the endpoint of the process.
func (c *Channel) Reply(resp Response) error {
	if c.IsClosed() {
		return ErrClosed
	}

	c.lock.Lock()
	ep, ok := c.endpoints[resp.PID]
	c.lock.Unlock()

	if !ok {
		return fmt.Errorf("reply to p%d: %w", resp.PID, ErrUnknownEndpoint)
	}

	select {
	case ep.responses <- resp:
		return nil
	default:
		return fmt.Errorf("reply to p%d: response not collected", resp.PID)
	}
}

// Close unblocks all the workers waiting on the channel. It is safe to call
// Close more than once.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// IsClosed tells if the channel has been closed.
func (c *Channel) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed when the Channel is closed.
func (c *Channel) Done() <-chan struct{} {
	return c.closed
}

func (c *Channel) send(ctx context.Context, req Request) error {
	if c.IsClosed() {
		return ErrClosed
	}

	select {
	case c.requests <- req:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
