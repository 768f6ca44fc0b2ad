package vm

import (
	"container/heap"
	"math/rand"
)

// reaperQueue is a container/heap priority queue over organism ids,
// ordered by (errors, age_ticks) descending (§4.5): the organism most
// deserving of culling sits at the root. Equal-error ties break toward
// the older organism, resolving spec.md §9's open tie-breaking question.
type reaperQueue struct {
	ids   []int
	index map[int]int
	pop   map[int]*Organism
}

func newReaperQueue(pop map[int]*Organism) *reaperQueue {
	return &reaperQueue{index: make(map[int]int), pop: pop}
}

func (q *reaperQueue) Len() int { return len(q.ids) }

func (q *reaperQueue) Less(i, j int) bool {
	oi, oj := q.pop[q.ids[i]], q.pop[q.ids[j]]
	if oi.Errors != oj.Errors {
		return oi.Errors > oj.Errors
	}
	return oi.AgeTicks > oj.AgeTicks
}

func (q *reaperQueue) Swap(i, j int) {
	q.ids[i], q.ids[j] = q.ids[j], q.ids[i]
	q.index[q.ids[i]] = i
	q.index[q.ids[j]] = j
}

func (q *reaperQueue) Push(x any) {
	id := x.(int)
	q.index[id] = len(q.ids)
	q.ids = append(q.ids, id)
}

func (q *reaperQueue) Pop() any {
	n := len(q.ids)
	id := q.ids[n-1]
	q.ids = q.ids[:n-1]
	delete(q.index, id)
	return id
}

func (q *reaperQueue) fix(id int) {
	if i, ok := q.index[id]; ok {
		heap.Fix(q, i)
	}
}

func (q *reaperQueue) remove(id int) {
	if i, ok := q.index[id]; ok {
		heap.Remove(q, i)
	}
}

// Scheduler couples the FIFO run queue with the reaper's priority queue
// and owns the flat id -> Organism map, avoiding any cyclic references
// between organisms and the scheduler (spec.md §9).
type Scheduler struct {
	runQueue []int
	reaper   *reaperQueue
	pop      map[int]*Organism
	nextID   int
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	pop := make(map[int]*Organism)
	return &Scheduler{
		pop:    pop,
		reaper: newReaperQueue(pop),
	}
}

// Lookup implements vm.Registry for the CPU's pending-child write checks.
func (s *Scheduler) Lookup(id int) (*Organism, bool) {
	o, ok := s.pop[id]
	return o, ok
}

// NextID allocates a fresh, monotonically increasing organism id.
func (s *Scheduler) NextID() int {
	id := s.nextID
	s.nextID++
	return id
}

// Population reports the number of live organisms.
func (s *Scheduler) Population() int {
	return len(s.pop)
}

// RunQueueIDs returns the current run queue, head first. Exposed for
// invariant checks and snapshotting; callers must not mutate it.
func (s *Scheduler) RunQueueIDs() []int {
	return s.runQueue
}

// Add registers a new organism (ancestor seeding or Divide) as live: it
// is appended to the tail of the run queue and inserted into the reaper
// queue, where its zeroed errors/age naturally sink it to the
// least-likely-to-die end (§4.5: "inserted at the bottom").
func (s *Scheduler) Add(o *Organism) {
	s.pop[o.ID] = o
	s.runQueue = append(s.runQueue, o.ID)
	heap.Push(s.reaper, o.ID)
}

// remove deletes id from every structure the scheduler maintains and
// frees its soup region (genome plus any still-open pending-child
// reservation, which would otherwise leak).
func (s *Scheduler) remove(id int, soup *Soup) {
	o, ok := s.pop[id]
	if !ok {
		return
	}
	soup.Free(o.GenomeStart, o.GenomeSize, id)
	if o.PendingChild != nil {
		soup.Free(o.PendingChild.Addr, o.PendingChild.Size, id)
	}
	delete(s.pop, id)
	s.reaper.remove(id)
	for i, qid := range s.runQueue {
		if qid == id {
			s.runQueue = append(s.runQueue[:i], s.runQueue[i+1:]...)
			break
		}
	}
}

// TurnResult summarizes the effects of one scheduler Turn for the
// simulator's statistics.
type TurnResult struct {
	Born                 *Organism
	InstructionsExecuted int
	CopyMutations        int
	Faults               int // every errors++ raised during the slice, not just a budget crossing
	FatalFault           bool
	Deaths               []int
}

// Turn pops the head of the run queue, grants it a time slice of up to
// timeSlice instructions, and pushes it back to the tail unless the
// slice ended in a fatal fault (errors crossing faultLimit), which ends
// the slice early and promotes the organism toward the reaper's head
// (§4.4, §5). A birth observed during the slice is not requeued until
// the slice ends, so a newborn never runs in its parent's slice (§5).
func (s *Scheduler) Turn(soup *Soup, rng *rand.Rand, params Params, timeSlice, faultLimit int) TurnResult {
	var result TurnResult
	if len(s.runQueue) == 0 {
		return result
	}

	id := s.runQueue[0]
	s.runQueue = s.runQueue[1:]
	org, ok := s.pop[id]
	if !ok {
		return result
	}

	startErrors := org.Errors
	for i := 0; i < timeSlice; i++ {
		before := org.Errors
		step := Step(org, soup, s, rng, params, s.NextID)
		result.InstructionsExecuted++
		if step.Born != nil {
			result.Born = step.Born
		}
		if step.CopyMutated {
			result.CopyMutations++
		}
		if org.Errors != before {
			s.reaper.fix(org.ID)
			if before <= faultLimit && org.Errors > faultLimit {
				result.FatalFault = true
				break
			}
		}
	}
	result.Faults = org.Errors - startErrors

	s.runQueue = append(s.runQueue, org.ID)
	if result.Born != nil {
		s.Add(result.Born)
	}
	return result
}

// Tick advances age_ticks for every live organism by one and keeps the
// reaper heap consistent with the new ages.
func (s *Scheduler) Tick() {
	for id, o := range s.pop {
		o.AgeTicks++
		s.reaper.fix(id)
	}
}

// Cull removes organisms from the head of the reaper queue until the
// population is at or below maxPopulation, returning the ids removed.
func (s *Scheduler) Cull(soup *Soup, maxPopulation int) []int {
	var removed []int
	for len(s.pop) > maxPopulation && s.reaper.Len() > 0 {
		id := heap.Pop(s.reaper).(int)
		s.remove(id, soup)
		removed = append(removed, id)
	}
	return removed
}
