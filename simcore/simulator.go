package simcore

import (
	"math/rand"

	"tierrasoup/vm"
)

// minSoupHeadroom is how many multiples of the ancestor genome the soup
// must accommodate before Reset will accept it, leaving room for the
// population to actually grow (ErrSoupTooSmall otherwise).
const minSoupHeadroom = 4

// Simulator owns the soup, the scheduler and the simulator-level PRNG
// (§9: "Global state... is owned by the simulator value; it is not
// process-wide"), and exposes the synchronous headless API of §6.
// A single Simulator is never touched from more than one goroutine at a
// time; the core does not synchronize internally (§5).
type Simulator struct {
	cfg   Config
	soup  *vm.Soup
	sched *vm.Scheduler
	rng   *rand.Rand
	stats Stats

	initialized bool
}

// New constructs a Simulator from cfg and seed, then calls Reset. An
// invalid cfg is rejected before any state is touched.
func New(cfg Config, seed int64) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset clears the soup and reseeds the ancestor at address 0 (§6). It
// does not reseed the PRNG: callers that want a bit-identical replay
// should construct a fresh Simulator with New instead.
func (s *Simulator) Reset() error {
	ancestor := vm.AncestorGenome()
	if s.cfg.SoupSize < len(ancestor)*minSoupHeadroom {
		return ErrSoupTooSmall
	}

	s.soup = vm.NewSoup(s.cfg.SoupSize)
	s.sched = vm.NewScheduler()
	s.stats = Stats{}

	id := s.sched.NextID()
	for i, instr := range ancestor {
		s.soup.Write(i, instr)
	}
	s.soup.Claim(0, len(ancestor), id)
	s.sched.Add(vm.NewOrganism(id, 0, len(ancestor), 0))

	s.initialized = true
	return nil
}

func (s *Simulator) params() vm.Params {
	maxCap := s.cfg.SoupSize / 4
	return vm.Params{
		SearchRadius:     s.cfg.SearchRadius,
		CopyMutationRate: s.cfg.CopyMutationRate,
		MinGenome:        s.cfg.MinGenome,
		MaxGenomeCap:     maxCap,
	}
}

// Step advances the simulation by one scheduler turn: one organism runs
// up to time_slice instructions, ages are ticked, the reaper enforces
// max_population, and statistics are folded in (§4.5, §4.6).
func (s *Simulator) Step() error {
	if !s.initialized {
		return ErrNotInitialized
	}

	turn := s.sched.Turn(s.soup, s.rng, s.params(), s.cfg.TimeSlice, s.cfg.FaultLimit)
	s.sched.Tick()
	culled := s.sched.Cull(s.soup, s.cfg.MaxPopulation)

	var cosmic int64
	if s.cfg.CosmicPeriod > 0 && s.rng.Intn(s.cfg.CosmicPeriod) == 0 {
		addr := s.rng.Intn(s.soup.Len())
		s.soup.Write(addr, vm.RandomOpcode(s.rng.Intn))
		cosmic = 1
	}

	births := 0
	if turn.Born != nil {
		births = 1
	}
	maxGen := s.stats.MaxGeneration
	if turn.Born != nil && turn.Born.Generation > maxGen {
		maxGen = turn.Born.Generation
	}

	s.stats.recordStep(s.sched.Population(), births, len(culled), turn.InstructionsExecuted, int64(turn.CopyMutations), cosmic, turn.Faults, maxGen)
	return nil
}

// StepN runs Step k times, stopping early (and returning the error) if any
// call fails. It returns the number of steps actually executed.
func (s *Simulator) StepN(k int) (int, error) {
	for i := 0; i < k; i++ {
		if err := s.Step(); err != nil {
			return i, err
		}
	}
	return k, nil
}

// SetConfig validates patch against a merged copy of the current config
// before committing it, so a rejected patch leaves no partial state
// visible (§7).
func (s *Simulator) SetConfig(patch ConfigPatch) error {
	merged := patch.Apply(s.cfg)
	if err := merged.Validate(); err != nil {
		return err
	}
	s.cfg = merged
	return nil
}

// Config returns the simulator's current configuration.
func (s *Simulator) Config() Config {
	return s.cfg
}

// Stats returns a copy of the current running statistics.
func (s *Simulator) Stats() Stats {
	return s.stats
}
