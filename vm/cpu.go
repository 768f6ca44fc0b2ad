package vm

import "math/rand"

// maxTemplateLen bounds how many contiguous Nop cells a single
// template-reading instruction will consume, preventing a soup filled
// with Nops from making a single Step unbounded.
const maxTemplateLen = 32

// Registry resolves an organism id to its live body, used by the CPU to
// enforce the pending-child write policy (§4.4) without the soup or the
// organism needing to know about the rest of the population.
type Registry interface {
	Lookup(id int) (*Organism, bool)
}

// Params carries the tunables the CPU needs on every Step; they come from
// the simulator's Config and may change between steps.
type Params struct {
	SearchRadius     int
	CopyMutationRate float64
	MinGenome        int
	MaxGenomeCap     int // absolute ceiling on a single MallocA request (N/4)
}

// StepResult reports what a single Step produced beyond organism/soup
// mutation: a newly-born child, if the instruction executed was a
// successful Divide, and whether a MovIAB copy was mutated.
type StepResult struct {
	Born        *Organism
	CopyMutated bool
}

// Step executes exactly one instruction at org.IP against soup, advancing
// org.IP by one cell (template- and jump-bearing opcodes may advance it
// further). newID is consulted only on a successful Divide, to assign the
// child's organism id.
func Step(org *Organism, soup *Soup, reg Registry, rng *rand.Rand, p Params, newID func() int) StepResult {
	n := soup.Len()
	opAddr := soup.Wrap(org.IP)
	op := soup.Read(opAddr)
	org.IP = soup.Wrap(opAddr + 1)
	org.Cycles++

	var copyMutated bool

	switch op {
	case Nop0, Nop1:
		// Templates are read by the opcodes that consume them; standing
		// alone a Nop is inert.

	case ZeroAX:
		org.AX = 0
	case IncA:
		org.AX++
	case DecC:
		org.CX--
	case NotZero:
		org.Flag = org.AX != 0

	case MovCD:
		org.CX = org.DX
	case MovAB:
		org.AX = org.BX
	case MovIAB:
		copyMutated = execMovIAB(org, soup, reg, rng, p)

	case SubAB:
		// Named "division by zero" in the fault catalogue even though
		// the operation is subtraction; a right-operand of zero is kept
		// as the fault trigger for fidelity with that catalogue.
		if org.BX == 0 {
			org.Fault()
		} else {
			org.CX = uint(soup.Wrap(int(org.AX) - int(org.BX)))
		}
	case SubAC:
		if org.CX == 0 {
			org.Fault()
		} else {
			org.AX = uint(soup.Wrap(int(org.AX) - int(org.CX)))
		}
	case Shl:
		org.CX = org.CX << 1

	case JmpF:
		execJump(org, soup, p, true, false)
	case JmpB:
		execJump(org, soup, p, false, false)
	case Call:
		execJump(org, soup, p, true, true)
	case Ret:
		if addr, ok := org.CallStack.Pop(); ok {
			org.IP = soup.Wrap(addr)
		} else {
			org.Fault()
		}
	case IfCz:
		if org.CX != 0 {
			org.IP = soup.Wrap(org.IP + 1)
		}
	case Adrf:
		execAdr(org, soup, p, true)
	case Adrb:
		execAdr(org, soup, p, false)

	case PushA:
		org.ValueStack.Push(int(org.AX))
	case PopB:
		if v, ok := org.ValueStack.Pop(); ok {
			org.BX = uint(v)
		}
	case PushC:
		org.ValueStack.Push(int(org.CX))

	case MallocA:
		execMalloc(org, soup, p)
	case Divide:
		return execDivide(org, soup, newID)
	case FreeA:
		size := int(org.CX)
		if size <= 0 || !soup.Free(int(org.AX), size, org.ID) {
			org.Fault()
		}

	case Search:
		execSearch(org, soup, p, true)
	case NopSearch:
		execSearch(org, soup, p, false)

	default:
		org.Fault()
	}

	if org.IP < 0 || org.IP >= n {
		org.IP = soup.Wrap(org.IP)
	}
	return StepResult{CopyMutated: copyMutated}
}

// readTemplate reads the maximal run (bounded by maxTemplateLen) of
// Nop0/Nop1 cells starting at addr.
func readTemplate(soup *Soup, addr int) []Instruction {
	var tmpl []Instruction
	for k := 0; k < maxTemplateLen; k++ {
		c := soup.Read(addr + k)
		if !c.IsNop() {
			break
		}
		tmpl = append(tmpl, c)
	}
	return tmpl
}

func matchesComplement(soup *Soup, pos int, tmpl []Instruction) bool {
	for k, t := range tmpl {
		if soup.Read(pos+k) != t.Complement() {
			return false
		}
	}
	return true
}

// findComplement scans outward from base, one cell at a time, up to
// radius cells, for a run matching tmpl's complement.
func findComplement(soup *Soup, base int, tmpl []Instruction, forward bool, radius int) (int, bool) {
	step := 1
	if !forward {
		step = -1
	}
	for dist := 0; dist < radius; dist++ {
		pos := soup.Wrap(base + dist*step)
		if matchesComplement(soup, pos, tmpl) {
			return pos, true
		}
	}
	return 0, false
}

// templateMiss advances ip past the (possibly empty) template and raises
// a fault, per §4.1: "On miss... ip advances by 1 + template length."
// org.IP has already been advanced past the opcode by one; this adds the
// template length on top.
func templateMiss(org *Organism, soup *Soup, tmplLen int) {
	org.Fault()
	org.IP = soup.Wrap(org.IP + tmplLen)
}

func execJump(org *Organism, soup *Soup, p Params, forward, isCall bool) {
	tmplStart := org.IP
	tmpl := readTemplate(soup, tmplStart)
	if len(tmpl) == 0 {
		templateMiss(org, soup, 0)
		return
	}
	afterTemplate := soup.Wrap(tmplStart + len(tmpl))
	base := afterTemplate
	if !forward {
		base = soup.Wrap(tmplStart - 1)
	}
	pos, ok := findComplement(soup, base, tmpl, forward, p.SearchRadius)
	if !ok {
		templateMiss(org, soup, len(tmpl))
		return
	}
	if isCall {
		org.CallStack.Push(afterTemplate)
	}
	org.IP = pos
}

func execAdr(org *Organism, soup *Soup, p Params, forward bool) {
	tmplStart := org.IP
	tmpl := readTemplate(soup, tmplStart)
	if len(tmpl) == 0 {
		templateMiss(org, soup, 0)
		return
	}
	afterTemplate := soup.Wrap(tmplStart + len(tmpl))
	base := afterTemplate
	if !forward {
		base = soup.Wrap(tmplStart - 1)
	}
	pos, ok := findComplement(soup, base, tmpl, forward, p.SearchRadius)
	org.IP = afterTemplate
	if !ok {
		org.Fault()
		return
	}
	org.AX = uint(pos)
}

func execSearch(org *Organism, soup *Soup, p Params, faultOnMiss bool) {
	tmplStart := org.IP
	tmpl := readTemplate(soup, tmplStart)
	if len(tmpl) == 0 {
		if faultOnMiss {
			templateMiss(org, soup, 0)
		} else {
			org.IP = tmplStart
		}
		return
	}
	afterTemplate := soup.Wrap(tmplStart + len(tmpl))
	pos, ok := findComplement(soup, afterTemplate, tmpl, true, p.SearchRadius)
	org.IP = afterTemplate
	if !ok {
		if faultOnMiss {
			org.Fault()
		}
		return
	}
	org.AX = uint(pos)
	org.BX = uint(len(tmpl))
}

func execMovIAB(org *Organism, soup *Soup, reg Registry, rng *rand.Rand, p Params) bool {
	n := soup.Len()
	srcAddr := soup.Wrap(int(org.AX))
	destAddr := soup.Wrap(int(org.BX))

	if owner, owned := soup.OwnerOf(destAddr); owned && owner != org.ID {
		if other, ok := reg.Lookup(owner); ok && other.PendingChild.Contains(destAddr, n) {
			org.Fault()
			return false
		}
	}

	val := soup.Read(srcAddr)
	mutated := rng.Float64() < p.CopyMutationRate
	if mutated {
		val = RandomOpcode(rng.Intn)
	}
	soup.Write(destAddr, val)
	return mutated
}

func execMalloc(org *Organism, soup *Soup, p Params) {
	if org.PendingChild != nil {
		org.Fault()
		return
	}
	requested := int(org.CX)
	maxGenome := 2 * org.GenomeSize
	if maxGenome > p.MaxGenomeCap {
		maxGenome = p.MaxGenomeCap
	}
	if requested < p.MinGenome || requested > maxGenome {
		org.Fault()
		return
	}
	addr, ok := soup.Reserve(requested, org.ID)
	if !ok {
		org.Fault()
		return
	}
	org.AX = uint(addr)
	org.PendingChild = &PendingChild{Addr: addr, Size: requested}
}

// validChild reports whether [addr, addr+size) contains a non-trivial
// self-replicator: at least one non-Nop instruction, one MallocA, and
// one Divide, per §4.4's Divide validation rule.
func validChild(soup *Soup, addr, size int) bool {
	sawNonNop := false
	sawMalloc := false
	sawDivide := false
	for k := 0; k < size; k++ {
		c := soup.Read(addr + k)
		if !c.IsNop() {
			sawNonNop = true
		}
		if c == MallocA {
			sawMalloc = true
		}
		if c == Divide {
			sawDivide = true
		}
	}
	return sawNonNop && sawMalloc && sawDivide
}

func execDivide(org *Organism, soup *Soup, newID func() int) StepResult {
	pc := org.PendingChild
	if pc == nil {
		org.Fault()
		return StepResult{}
	}
	if !validChild(soup, pc.Addr, pc.Size) {
		org.Fault()
		return StepResult{}
	}

	childID := newID()
	child := NewOrganism(childID, pc.Addr, pc.Size, org.Generation+1)
	soup.Claim(pc.Addr, pc.Size, childID)
	org.PendingChild = nil
	return StepResult{Born: child}
}
