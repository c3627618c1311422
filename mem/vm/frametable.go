package vm

import (
	"log"

	"github.com/sarchlab/ossim/sim"
)

// A Frame describes one frame of the simulated physical memory.
type Frame struct {
	Occupied bool     `json:"occupied"`
	Owner    PID      `json:"owner"`
	Page     int      `json:"page"`
	Dirty    bool     `json:"dirty"`
	LastRef  sim.Time `json:"last_ref"`
}

func emptyFrame() Frame {
	return Frame{Owner: NoPID, Page: NoPage}
}

// A FrameTable keeps track of all the physical frames.
type FrameTable struct {
	frames       []Frame
	victimFinder VictimFinder
}

// NewFrameTable creates a frame table with all the frames free. If
// victimFinder is nil, the least recently used frame is evicted.
func NewFrameTable(numFrames int, victimFinder VictimFinder) *FrameTable {
	if numFrames <= 0 {
		log.Panic("frame table must have at least one frame")
	}

	if victimFinder == nil {
		victimFinder = NewLRUVictimFinder()
	}

	t := &FrameTable{
		frames:       make([]Frame, numFrames),
		victimFinder: victimFinder,
	}

	for i := range t.frames {
		t.frames[i] = emptyFrame()
	}

	return t
}

// Len returns the number of frames.
func (t *FrameTable) Len() int {
	return len(t.frames)
}

// Frame returns a copy of the i-th frame.
func (t *FrameTable) Frame(i int) Frame {
	return t.frames[i]
}

// Frames returns a copy of all the frames.
func (t *FrameTable) Frames() []Frame {
	frames := make([]Frame, len(t.frames))
	copy(frames, t.frames)

	return frames
}

// NumOccupied returns the number of frames that hold a page.
func (t *FrameTable) NumOccupied() int {
	n := 0
	for i := range t.frames {
		if t.frames[i].Occupied {
			n++
		}
	}

	return n
}

// FindFree returns the first frame that does not hold a page.
func (t *FrameTable) FindFree() (int, bool) {
	for i := range t.frames {
		if !t.frames[i].Occupied {
			return i, true
		}
	}

	return -1, false
}

// FindVictim returns the frame to evict according to the victim finder.
func (t *FrameTable) FindVictim() (int, bool) {
	return t.victimFinder.FindVictim(t.frames)
}

// Claim loads the page of the owner into the frame. Whatever the frame held
// before is overwritten.
func (t *FrameTable) Claim(i int, owner PID, page int, dirty bool, now sim.Time) {
	t.frames[i] = Frame{
		Occupied: true,
		Owner:    owner,
		Page:     page,
		Dirty:    dirty,
		LastRef:  now,
	}
}

// Touch records a reference to the frame. A write marks the frame dirty.
func (t *FrameTable) Touch(i int, now sim.Time, isWrite bool) {
	f := &t.frames[i]
	if !f.Occupied {
		log.Panicf("touching free frame %d", i)
	}

	f.LastRef = now
	if isWrite {
		f.Dirty = true
	}
}

// Release frees all the frames owned by the owner and returns their indices.
func (t *FrameTable) Release(owner PID) []int {
	var released []int

	for i := range t.frames {
		f := &t.frames[i]
		if f.Occupied && f.Owner == owner {
			lastRef := f.LastRef
			*f = emptyFrame()
			f.LastRef = lastRef
			released = append(released, i)
		}
	}

	return released
}
