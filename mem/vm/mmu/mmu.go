// Package mmu emulates the address translation of the simulated machine,
// including page faults and the eviction of the least recently used frame.
package mmu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/ossim/mem/vm"
	"github.com/sarchlab/ossim/sim"
	"github.com/sarchlab/ossim/tracing"
)

// ErrAddressOutOfRange is returned when an address falls beyond the pages of
// a process.
var ErrAddressOutOfRange = errors.New("address out of range")

// The kind of the traced translation tasks. The What field of a task is
// either TaskHit or TaskPageFault.
const (
	TaskKind      = "translation"
	TaskHit       = "hit"
	TaskPageFault = "page_fault"
)

// The steps of a page fault that replaces a resident page.
const (
	StepEviction  = "eviction"
	StepWriteback = "writeback"
)

// A Clock tells the time and lets the MMU charge the cost of each access.
type Clock interface {
	sim.TimeTeller
	Advance(ns uint64) sim.Time
}

// An Eviction describes the page that was removed to make room for another.
type Eviction struct {
	Frame int
	Owner vm.PID
	Page  int
	Dirty bool
}

// A Translation is the outcome of one memory access.
type Translation struct {
	Frame   int
	Page    int
	Hit     bool
	Evicted *Eviction
}

// MMU translates the addresses of the running processes into frames.
type MMU struct {
	*sim.HookableBase

	name   string
	clock  Clock
	frames *vm.FrameTable
	procs  *vm.ProcessTable

	pageSize         uint32
	hitLatency       uint64
	faultLatency     uint64
	writebackLatency uint64
}

// Name returns the name of the MMU.
func (m *MMU) Name() string {
	return m.name
}

// PageSize returns the number of bytes in a page.
func (m *MMU) PageSize() uint32 {
	return m.pageSize
}

// Translate performs one memory access of the process in the slot. The clock
// advances by the cost of the access. If the address is beyond the pages of
// the process, nothing changes and ErrAddressOutOfRange is returned.
func (m *MMU) Translate(
	slot int,
	address uint32,
	isWrite bool,
) (Translation, error) {
	if !m.procs.IsRunning(slot) {
		return Translation{}, fmt.Errorf("translate slot %d: %w",
			slot, vm.ErrNotRunning)
	}

	page := int(address / m.pageSize)
	if page >= m.procs.PagesPerProcess() {
		return Translation{}, fmt.Errorf(
			"address %d is in page %d, process has %d pages: %w",
			address, page, m.procs.PagesPerProcess(), ErrAddressOutOfRange)
	}

	pt := m.procs.PageTable(slot)

	if frame, found := pt.Lookup(page); found {
		return m.hit(slot, page, frame, isWrite), nil
	}

	return m.fault(slot, page, isWrite)
}

func (m *MMU) hit(slot, page, frame int, isWrite bool) Translation {
	taskID := m.startTask(slot, TaskHit)

	m.frames.Touch(frame, m.clock.CurrentTime(), isWrite)
	m.procs.RecordAccess(slot, false)
	m.clock.Advance(m.hitLatency)

	m.endTask(taskID)

	return Translation{Frame: frame, Page: page, Hit: true}
}

func (m *MMU) fault(slot, page int, isWrite bool) (Translation, error) {
	taskID := m.startTask(slot, TaskPageFault)

	frame, evicted, err := m.makeRoom()
	if err != nil {
		m.endTask(taskID)
		return Translation{}, err
	}

	if evicted != nil {
		m.addStep(taskID, StepEviction)

		if evicted.Dirty {
			m.clock.Advance(m.writebackLatency)
			m.addStep(taskID, StepWriteback)
		}
	}

	owner := m.procs.Process(slot).PID
	m.frames.Claim(frame, owner, page, isWrite, m.clock.CurrentTime())
	m.procs.PageTable(slot).Map(page, frame)
	m.procs.RecordAccess(slot, true)
	m.clock.Advance(m.faultLatency)

	m.endTask(taskID)

	return Translation{Frame: frame, Page: page, Evicted: evicted}, nil
}

// makeRoom returns a frame that can receive a page. If a page has to be
// evicted, its owner's page table no longer points to the frame.
func (m *MMU) makeRoom() (int, *Eviction, error) {
	if frame, found := m.frames.FindFree(); found {
		return frame, nil, nil
	}

	frame, found := m.frames.FindVictim()
	if !found {
		return -1, nil, vm.ErrNoFreeFrame
	}

	victim := m.frames.Frame(frame)
	if ownerSlot, running := m.procs.FindRunning(victim.Owner); running {
		m.procs.PageTable(ownerSlot).Unmap(victim.Page)
	}

	return frame, &Eviction{
		Frame: frame,
		Owner: victim.Owner,
		Page:  victim.Page,
		Dirty: victim.Dirty,
	}, nil
}

func (m *MMU) startTask(slot int, what string) string {
	if m.NumHooks() == 0 {
		return ""
	}

	id := sim.GetIDGenerator().Generate()
	tracing.StartTask(id, "", m, TaskKind, what, m.procs.Process(slot).PID)

	return id
}

func (m *MMU) addStep(taskID, what string) {
	if taskID == "" {
		return
	}

	tracing.AddTaskStep(taskID, m, what)
}

func (m *MMU) endTask(taskID string) {
	if taskID == "" {
		return
	}

	tracing.EndTask(taskID, m)
}
