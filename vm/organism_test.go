package vm

import "testing"

func TestBoundedStackDropsOldestOnOverflow(t *testing.T) {
	var s BoundedStack
	for i := 0; i < StackCapacity+3; i++ {
		s.Push(i)
	}
	if s.Len() != StackCapacity {
		t.Fatalf("Len() = %d, want %d", s.Len(), StackCapacity)
	}
	// The three oldest pushes (0,1,2) should have been dropped; the top
	// should be the most recent push.
	v, ok := s.Pop()
	if !ok || v != StackCapacity+2 {
		t.Fatalf("Pop() = %d,%v, want %d,true", v, ok, StackCapacity+2)
	}
}

func TestBoundedStackPopEmpty(t *testing.T) {
	var s BoundedStack
	if _, ok := s.Pop(); ok {
		t.Fatalf("Pop() on an empty stack returned ok=true")
	}
}

func TestPendingChildContains(t *testing.T) {
	pc := &PendingChild{Addr: 95, Size: 10}
	soupLen := 100
	if !pc.Contains(95, soupLen) || !pc.Contains(99, soupLen) {
		t.Fatalf("Contains should hold for the first and last cells of the region")
	}
	if !pc.Contains(4, soupLen) {
		t.Fatalf("Contains should hold for cell 4, reached by wrapping past the soup end")
	}
	if pc.Contains(5, soupLen) {
		t.Fatalf("Contains should not hold for cell 5, one past the wrapped region")
	}
	var nilPC *PendingChild
	if nilPC.Contains(0, soupLen) {
		t.Fatalf("Contains on a nil PendingChild must be false")
	}
}

func TestOrganismInGenome(t *testing.T) {
	o := NewOrganism(1, 90, 20, 0)
	soupLen := 100
	if !o.InGenome(90, soupLen) || !o.InGenome(109%soupLen, soupLen) {
		t.Fatalf("InGenome should hold across the wrap at the soup boundary")
	}
	if o.InGenome(110%soupLen, soupLen) {
		t.Fatalf("InGenome should not hold one cell past the genome")
	}
}

func TestOrganismFaultIncrementsErrors(t *testing.T) {
	o := NewOrganism(1, 0, 10, 0)
	o.Fault()
	o.Fault()
	if o.Errors != 2 {
		t.Fatalf("Errors = %d, want 2", o.Errors)
	}
}
