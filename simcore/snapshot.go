package simcore

import "tierrasoup/vm"

// OrganismView is the read-only inspector shape for organism(id) (§6).
type OrganismView struct {
	ID          int
	GenomeStart int
	GenomeSize  int
	IP          int
	AX, BX, CX, DX uint
	Flag        bool
	Cycles      int64
	Errors      int
	Generation  int
	AgeTicks    int64
	HasPending  bool
	PendingAddr int
	PendingSize int
}

func newOrganismView(o *vm.Organism) OrganismView {
	v := OrganismView{
		ID:          o.ID,
		GenomeStart: o.GenomeStart,
		GenomeSize:  o.GenomeSize,
		IP:          o.IP,
		AX:          o.AX,
		BX:          o.BX,
		CX:          o.CX,
		DX:          o.DX,
		Flag:        o.Flag,
		Cycles:      o.Cycles,
		Errors:      o.Errors,
		Generation:  o.Generation,
		AgeTicks:    o.AgeTicks,
	}
	if o.PendingChild != nil {
		v.HasPending = true
		v.PendingAddr = o.PendingChild.Addr
		v.PendingSize = o.PendingChild.Size
	}
	return v
}

// Snapshot is a point-in-time, independent copy of the simulator's state
// (§6): the raw soup cells, the ownership map, every live organism, and
// the running statistics. It shares no backing arrays with the simulator,
// so the caller may hold and inspect it indefinitely.
type Snapshot struct {
	SoupCells []vm.Instruction
	Ownership []int32
	Organisms []OrganismView
	Stats     Stats
}

// Snapshot returns a deep copy of the simulator's current state.
func (s *Simulator) Snapshot() (Snapshot, error) {
	if !s.initialized {
		return Snapshot{}, ErrNotInitialized
	}

	cells := make([]vm.Instruction, s.soup.Len())
	copy(cells, s.soup.Cells())
	owners := make([]int32, s.soup.Len())
	copy(owners, s.soup.OwnerMap())

	orgs := make([]OrganismView, 0, s.sched.Population())
	for _, id := range s.sched.RunQueueIDs() {
		if o, ok := s.sched.Lookup(id); ok {
			orgs = append(orgs, newOrganismView(o))
		}
	}

	return Snapshot{
		SoupCells: cells,
		Ownership: owners,
		Organisms: orgs,
		Stats:     s.stats,
	}, nil
}

// Organism returns the inspector view for a single live organism (§6).
func (s *Simulator) Organism(id int) (OrganismView, bool, error) {
	if !s.initialized {
		return OrganismView{}, false, ErrNotInitialized
	}
	o, ok := s.sched.Lookup(id)
	if !ok {
		return OrganismView{}, false, nil
	}
	return newOrganismView(o), true, nil
}
