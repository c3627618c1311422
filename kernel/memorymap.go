package kernel

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sarchlab/ossim/mem/vm"
	"github.com/sarchlab/ossim/sim"
)

// MemoryMapPrinter is a hook that prints the frame table and the page tables
// each time the kernel takes a snapshot. Each map reaches the writer in a
// single Write call. Errors are reported to the logger.
type MemoryMapPrinter struct {
	sim.LogHookBase

	lock sync.Mutex
	w    io.Writer
}

// NewMemoryMapPrinter creates a printer that writes to w.
func NewMemoryMapPrinter(w io.Writer, logger *slog.Logger) *MemoryMapPrinter {
	return &MemoryMapPrinter{
		LogHookBase: sim.NewLogHookBase(logger),
		w:           w,
	}
}

// Func prints the snapshot.
func (p *MemoryMapPrinter) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosSnapshot {
		return
	}

	s := ctx.Item.(Snapshot)

	err := p.Print(s)
	if err != nil {
		p.Warn("cannot print memory map", "time", s.Time, "error", err)
	}
}

// Print writes the memory map of the snapshot.
func (p *MemoryMapPrinter) Print(s Snapshot) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	w := new(bytes.Buffer)

	fmt.Fprintf(w, "Current memory layout at time %s is:\n", s.Time)
	fmt.Fprintf(w, "%-8s %-10s %-10s %-10s %-10s\n",
		"Frame", "Occupied", "DirtyBit", "LastRefS", "LastRefNano")

	for i, f := range s.Frames {
		occupied := "No"
		if f.Occupied {
			occupied = "Yes"
		}

		dirty := 0
		if f.Dirty {
			dirty = 1
		}

		fmt.Fprintf(w, "Frame %-3d: %-10s %-10d %-10d %-10d\n",
			i, occupied, dirty, f.LastRef.Seconds, f.LastRef.Nanoseconds)
	}

	for _, proc := range s.Processes {
		if proc.State == vm.ProcessUnused {
			continue
		}

		fmt.Fprintf(w, "P%d page table: [ ", proc.Slot)
		for _, frame := range proc.PageTable.Entries() {
			fmt.Fprintf(w, "%d ", frame)
		}
		fmt.Fprintln(w, "]")
	}

	fmt.Fprintln(w)

	_, err := p.w.Write(w.Bytes())

	return err
}
