package vm

// AncestorSize is the length, in cells, of the canonical seed genome
// produced by AncestorGenome.
const AncestorSize = 58

// AncestorGenome returns the hand-assembled self-replicating program used
// to seed generation zero (§6). It satisfies the behavioural contract:
// it locates its own start and end via a pair of templates, computes its
// size, MallocAs a same-sized child region, copies itself into it cell by
// cell via a DecC/IfCz-bounded MovIAB loop, then Divides.
//
// The program carries its own addressing templates rather than any
// privileged knowledge of GenomeStart/GenomeSize, exactly as a real
// Tierra creature must: start and end are three-Nop1 structural markers,
// found via Adrb/Adrf against their complementary (Nop0) operand
// templates. The loop uses a two-Nop1 marker of a different length for
// its own back-edge, separated from the end marker by a single non-Nop
// cell so the two can never be read as one contiguous template by the
// maximal-run scanner in readTemplate.
//
// SubAB's "division by zero" fault triggers whenever its right operand
// (BX) is zero, which it would be every time this genome is seeded at
// soup address 0 (as the Simulator always does) if BX held the start
// address directly. The size computation instead stashes start+1 in BX
// and walks one extra cell past the end marker to compensate, so the
// computed size is unaffected but BX is never zero; the true (unshifted)
// start address is then re-derived with a second Adrb immediately before
// it seeds the copy loop's source pointer.
func AncestorGenome() []Instruction {
	g := []Instruction{
		// -- start marker (3 cells) --
		Nop1, Nop1, Nop1,

		// -- locate start: Adrb complement-searches for the marker above,
		// leaving its address in AX. Bump it by one before stashing to BX
		// so BX is never the literal zero SubAB would fault on below.
		Adrb, Nop0, Nop0, Nop0,
		IncA,
		PushA, PopB,

		// -- locate end / compute size: Adrf finds the tail marker
		// (below); five IncA steps walk AX past its three cells, the
		// trailing Divide, and one extra cell to compensate for the
		// start-side bump above, then SubAB leaves the total genome
		// length in CX without ever seeing a zero BX.
		Adrf, Nop0, Nop0, Nop0,
		IncA, IncA, IncA, IncA, IncA,
		SubAB,

		// -- reserve a same-sized region for the child and push its
		// address (the copy loop's dest pointer).
		MallocA,
		PushA,

		// -- re-locate the true (unshifted) start address and push it as
		// the copy loop's src pointer, so the stack holds [dest, src]
		// with src on top.
		Adrb, Nop0, Nop0, Nop0,
		PushA,

		// -- loop-back marker (2 cells, opposite length from the
		// structural markers above).
		Nop1, Nop1,

		// -- copy loop body. Each pass: pop src into AX via BX, pop dest
		// into BX, MovIAB the cell across, then advance both pointers and
		// push them back (dest, then src) for the next pass.
		PopB, MovAB, PopB, MovIAB,
		IncA, PushA,
		MovAB, IncA, PushA,
		PopB, MovAB, PopB,
		PushA, MovAB, PushA,

		DecC,
		IfCz,
		JmpF, Nop0, Nop0, Nop0,
		JmpB, Nop0, Nop0,

		// -- separator: guarantees JmpB's 2-cell Nop0 operand template
		// can never be read as a run continuing into the end marker's
		// Nop1 cells below.
		NotZero,

		// -- end marker (3 cells) immediately followed by Divide, which
		// the exit jump above lands just ahead of.
		Nop1, Nop1, Nop1,
		Divide,
	}
	if len(g) != AncestorSize {
		panic("vm: ancestor genome length drifted from AncestorSize")
	}
	return g
}
