package vm

import (
	"math/rand"
	"testing"
)

func TestAncestorGenomeLength(t *testing.T) {
	g := AncestorGenome()
	if len(g) != AncestorSize {
		t.Fatalf("len(AncestorGenome()) = %d, want %d", len(g), AncestorSize)
	}
}

// TestAncestorGenomeValidatesAsItsOwnChild checks the ancestor would pass
// the very Divide-validation rule (§4.4) it must satisfy when it copies
// itself into a freshly malloc'd region: at least one non-Nop, one
// MallocA, one Divide.
func TestAncestorGenomeValidatesAsItsOwnChild(t *testing.T) {
	g := AncestorGenome()
	soup := NewSoup(len(g) * 4)
	addr, ok := soup.Reserve(len(g), 1)
	if !ok {
		t.Fatalf("Reserve failed")
	}
	for i, instr := range g {
		soup.Write(addr+i, instr)
	}
	if !validChild(soup, addr, len(g)) {
		t.Fatalf("ancestor genome fails its own Divide-validation rule")
	}
}

func TestAncestorGenomeHasExactlyOneMallocAndDivide(t *testing.T) {
	g := AncestorGenome()
	var mallocs, divides int
	for _, instr := range g {
		switch instr {
		case MallocA:
			mallocs++
		case Divide:
			divides++
		}
	}
	if mallocs != 1 {
		t.Fatalf("MallocA count = %d, want 1", mallocs)
	}
	if divides != 1 {
		t.Fatalf("Divide count = %d, want 1", divides)
	}
}

// TestAncestorGenomeReplicatesEndToEnd steps the CPU directly through the
// ancestor genome, seeded exactly as Simulator.Reset seeds it (at soup
// address 0), and checks it actually produces a byte-identical child
// without ever faulting. The other ancestor tests above only check static
// properties of the genome; this is the one that would have caught both
// the JmpB/end-marker template collision and the SubAB zero-BX trap.
func TestAncestorGenomeReplicatesEndToEnd(t *testing.T) {
	g := AncestorGenome()
	soup := NewSoup(512)
	for i, instr := range g {
		soup.Write(i, instr)
	}
	soup.Claim(0, len(g), 1)
	org := NewOrganism(1, 0, len(g), 0)
	rng := rand.New(rand.NewSource(1))
	reg := newFakeRegistry()
	params := defaultParams()
	newID := nextIDFrom(2)

	var born *Organism
	for steps := 0; steps < 2000 && born == nil; steps++ {
		result := Step(org, soup, reg, rng, params, newID)
		if result.Born != nil {
			born = result.Born
		}
	}
	if born == nil {
		t.Fatalf("ancestor did not produce a child within 2000 steps (errors=%d)", org.Errors)
	}
	if org.Errors != 0 {
		t.Fatalf("ancestor accumulated %d faults while replicating, want 0", org.Errors)
	}
	if born.GenomeSize != len(g) {
		t.Fatalf("child genome size = %d, want %d", born.GenomeSize, len(g))
	}
	for k := 0; k < len(g); k++ {
		got := soup.Read(born.GenomeStart + k)
		if got != g[k] {
			t.Fatalf("child cell %d = %v, want %v (copy diverged from the parent)", k, got, g[k])
		}
	}
}
