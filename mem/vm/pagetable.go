// Package vm provides the models of the simulated memory system: page
// tables, the physical frame table, and the process table that owns the page
// tables.
package vm

import (
	"encoding/json"
	"log"
)

// PID stands for Process ID. It is the opaque handle that identifies a
// simulated process for as long as it runs.
type PID uint32

// NoPID is the PID of nobody. The kernel never hands it out.
const NoPID PID = 0

// NoFrame marks a page table entry whose page is not resident.
const NoFrame = -1

// NoPage marks a frame that does not hold any page.
const NoPage = -1

// A PageTable maps the pages of one process to physical frames. It has a
// fixed number of entries.
type PageTable struct {
	entries []int
}

// NewPageTable creates a page table where every page is absent.
func NewPageTable(numPages int) *PageTable {
	if numPages <= 0 {
		log.Panic("page table must have at least one entry")
	}

	pt := &PageTable{entries: make([]int, numPages)}
	pt.Clear()

	return pt
}

// Len returns the number of entries in the page table.
func (pt *PageTable) Len() int {
	return len(pt.entries)
}

// Lookup returns the frame that holds the page. The bool return value
// indicates if the page is resident.
func (pt *PageTable) Lookup(page int) (int, bool) {
	pt.pageMustBeInRange(page)

	frame := pt.entries[page]

	return frame, frame != NoFrame
}

// Map records that the page is resident in the frame.
func (pt *PageTable) Map(page, frame int) {
	pt.pageMustBeInRange(page)

	if frame < 0 {
		log.Panicf("cannot map page %d to frame %d", page, frame)
	}

	pt.entries[page] = frame
}

// Unmap marks the page as absent.
func (pt *PageTable) Unmap(page int) {
	pt.pageMustBeInRange(page)
	pt.entries[page] = NoFrame
}

// Clear marks every page as absent.
func (pt *PageTable) Clear() {
	for i := range pt.entries {
		pt.entries[i] = NoFrame
	}
}

// NumResident returns the number of pages that are mapped to a frame.
func (pt *PageTable) NumResident() int {
	n := 0
	for _, f := range pt.entries {
		if f != NoFrame {
			n++
		}
	}

	return n
}

// Entries returns a copy of the entries. Absent pages hold NoFrame.
func (pt *PageTable) Entries() []int {
	entries := make([]int, len(pt.entries))
	copy(entries, pt.entries)

	return entries
}

// Clone returns a deep copy of the page table.
func (pt *PageTable) Clone() *PageTable {
	return &PageTable{entries: pt.Entries()}
}

// MarshalJSON encodes the page table as the list of its entries.
func (pt *PageTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(pt.entries)
}

func (pt *PageTable) pageMustBeInRange(page int) {
	if page < 0 || page >= len(pt.entries) {
		log.Panicf("page %d out of range [0, %d)", page, len(pt.entries))
	}
}
