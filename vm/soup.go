package vm

// Soup is the shared, fixed-size circular memory all organisms execute
// and mutate. Addressing always wraps modulo Len(); the allocation map is
// the single source of truth for which organism, if any, owns a cell.
type Soup struct {
	cells  []Instruction
	owner  []int32 // -1 means Free; otherwise an organism id.
	cursor int     // rotating search start for Reserve.
}

const freeCell int32 = -1

// NewSoup allocates a soup of n cells, all Free and filled with Nop0.
func NewSoup(n int) *Soup {
	s := &Soup{
		cells: make([]Instruction, n),
		owner: make([]int32, n),
	}
	for i := range s.owner {
		s.owner[i] = freeCell
	}
	return s
}

// Len returns the number of cells in the soup.
func (s *Soup) Len() int {
	return len(s.cells)
}

// Wrap reduces addr into [0, Len()) for arbitrarily large or negative
// inputs.
func (s *Soup) Wrap(addr int) int {
	n := len(s.cells)
	addr %= n
	if addr < 0 {
		addr += n
	}
	return addr
}

// Read returns the instruction stored at addr, mod Len().
func (s *Soup) Read(addr int) Instruction {
	return s.cells[s.Wrap(addr)]
}

// Write stores i at addr, mod Len(). Write does not check ownership; the
// CPU is responsible for enforcing the write policy (§4.4) before calling
// this.
func (s *Soup) Write(addr int, i Instruction) {
	s.cells[s.Wrap(addr)] = i
}

// OwnerOf reports the id owning addr, or false if the cell is Free.
func (s *Soup) OwnerOf(addr int) (int, bool) {
	o := s.owner[s.Wrap(addr)]
	if o == freeCell {
		return 0, false
	}
	return int(o), true
}

// IsFree reports whether every cell of addr is Free. addr is NOT wrapped
// before the check; callers pass already-normalized bounds.
func (s *Soup) isFreeRun(start, size int) bool {
	n := len(s.cells)
	for k := 0; k < size; k++ {
		if s.owner[(start+k)%n] != freeCell {
			return false
		}
	}
	return true
}

// Reserve searches, starting from a rotating cursor, for the first
// contiguous run of size Free cells and marks them Owned(requester). It
// returns the run's start address and true on success, or (0, false) if
// no sufficient gap exists anywhere in the soup.
func (s *Soup) Reserve(size int, requester int) (int, bool) {
	n := len(s.cells)
	if size <= 0 || size > n {
		return 0, false
	}
	for tries := 0; tries < n; tries++ {
		start := (s.cursor + tries) % n
		if s.isFreeRun(start, size) {
			for k := 0; k < size; k++ {
				s.owner[(start+k)%n] = int32(requester)
			}
			s.cursor = (start + size) % n
			return start, true
		}
	}
	return 0, false
}

// Claim directly assigns ownership of [addr, addr+size) to owner,
// bypassing the Free-run search. Used once, at ancestor-seeding time,
// when the caller already knows the soup is empty.
func (s *Soup) Claim(addr, size, owner int) {
	n := len(s.cells)
	start := s.Wrap(addr)
	for k := 0; k < size; k++ {
		s.owner[(start+k)%n] = int32(owner)
	}
}

// Free releases [addr, addr+size) back to Free, asserting that every cell
// in the range is currently owned by owner. It returns false (and frees
// nothing) if any cell is owned by someone else, which would indicate a
// bookkeeping bug in the caller.
func (s *Soup) Free(addr, size, owner int) bool {
	n := len(s.cells)
	start := s.Wrap(addr)
	for k := 0; k < size; k++ {
		if s.owner[(start+k)%n] != int32(owner) {
			return false
		}
	}
	for k := 0; k < size; k++ {
		s.owner[(start+k)%n] = freeCell
	}
	return true
}

// FreeCellCount returns the number of cells currently marked Free, mostly
// useful for tests and statistics.
func (s *Soup) FreeCellCount() int {
	c := 0
	for _, o := range s.owner {
		if o == freeCell {
			c++
		}
	}
	return c
}

// Cells returns the soup's raw instruction backing slice. Callers must
// not mutate it directly; it is exposed read-only for snapshotting.
func (s *Soup) Cells() []Instruction {
	return s.cells
}

// OwnerMap returns the soup's raw ownership backing slice (-1 == Free),
// exposed read-only for snapshotting.
func (s *Soup) OwnerMap() []int32 {
	return s.owner
}
