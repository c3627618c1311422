package vm

// A VictimFinder decides which frame should be evicted when no frame is free.
type VictimFinder interface {
	FindVictim(frames []Frame) (int, bool)
}

// LRUVictimFinder evicts the least recently used frame.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the occupied frame with the oldest reference time. If
// two frames were referenced at the same time, the one with the lower index
// wins. It returns false if no frame is occupied.
func (e *LRUVictimFinder) FindVictim(frames []Frame) (int, bool) {
	victim := -1

	for i := range frames {
		if !frames[i].Occupied {
			continue
		}

		if victim == -1 || frames[i].LastRef.Before(frames[victim].LastRef) {
			victim = i
		}
	}

	return victim, victim != -1
}
