// Package simcore wires the vm package's soup, scheduler and CPU into a
// single-threaded, deterministic simulator with a synchronous headless API
// (§5, §6).
package simcore

import (
	"errors"
	"fmt"
)

// Sentinel simulator-level errors (§7). Organism faults are data and never
// surface here; these report configuration or API misuse only.
var (
	ErrConfigOutOfRange = errors.New("simcore: config value out of range")
	ErrNotInitialized   = errors.New("simcore: simulator not initialized; call Reset first")
	ErrSoupTooSmall     = errors.New("simcore: soup size too small for the ancestor genome")
)

// Config holds every tunable the simulator reads on Reset and SetConfig.
// Zero-value Config is not valid; use DefaultConfig as a base.
type Config struct {
	SoupSize int // N

	StepsPerFrame int
	TimeSlice     int // instructions per scheduler turn
	MaxPopulation int
	FaultLimit    int

	SearchRadius int // R, the template search radius
	MinGenome    int

	CopyMutationRate float64 // applied on every MovIAB
	CosmicPeriod     int     // average steps between cosmic-ray flips; 0 disables
}

// DefaultConfig matches the defaults called out in §4.4/§4.5/§6.
func DefaultConfig() Config {
	return Config{
		SoupSize:         1 << 16,
		StepsPerFrame:    1,
		TimeSlice:        10,
		MaxPopulation:    500,
		FaultLimit:       3,
		SearchRadius:     200,
		MinGenome:        12,
		CopyMutationRate: 2.5e-4,
		CosmicPeriod:     10000,
	}
}

// Validate checks every field against its documented range (§6's
// set_config patch fields plus the constants named elsewhere in §4).
// It returns ErrConfigOutOfRange, wrapped with the offending field, on the
// first violation found.
func (c Config) Validate() error {
	switch {
	case c.SoupSize <= 0:
		return fmt.Errorf("%w: soup_size must be positive, got %d", ErrConfigOutOfRange, c.SoupSize)
	case c.StepsPerFrame <= 0:
		return fmt.Errorf("%w: steps_per_frame must be positive, got %d", ErrConfigOutOfRange, c.StepsPerFrame)
	case c.TimeSlice < 1 || c.TimeSlice > 100:
		return fmt.Errorf("%w: time_slice must be in [1,100], got %d", ErrConfigOutOfRange, c.TimeSlice)
	case c.MaxPopulation < 10 || c.MaxPopulation > 500:
		return fmt.Errorf("%w: max_population must be in [10,500], got %d", ErrConfigOutOfRange, c.MaxPopulation)
	case c.FaultLimit < 0:
		return fmt.Errorf("%w: fault_limit must be non-negative, got %d", ErrConfigOutOfRange, c.FaultLimit)
	case c.SearchRadius <= 0:
		return fmt.Errorf("%w: search_radius must be positive, got %d", ErrConfigOutOfRange, c.SearchRadius)
	case c.MinGenome <= 0:
		return fmt.Errorf("%w: min_genome must be positive, got %d", ErrConfigOutOfRange, c.MinGenome)
	case c.CopyMutationRate < 0 || c.CopyMutationRate > 0.1:
		return fmt.Errorf("%w: mutation_rate must be in [0,0.1], got %v", ErrConfigOutOfRange, c.CopyMutationRate)
	case c.CosmicPeriod < 0:
		return fmt.Errorf("%w: cosmic_period must be non-negative, got %d", ErrConfigOutOfRange, c.CosmicPeriod)
	}
	return nil
}

// ConfigPatch carries the subset of Config fields exposed to set_config
// (§6); nil pointers leave the corresponding field unchanged.
type ConfigPatch struct {
	StepsPerFrame    *int
	CopyMutationRate *float64
	MaxPopulation    *int
	TimeSlice        *int
}

// Apply returns a copy of c with every non-nil field of p overlaid.
func (p ConfigPatch) Apply(c Config) Config {
	if p.StepsPerFrame != nil {
		c.StepsPerFrame = *p.StepsPerFrame
	}
	if p.CopyMutationRate != nil {
		c.CopyMutationRate = *p.CopyMutationRate
	}
	if p.MaxPopulation != nil {
		c.MaxPopulation = *p.MaxPopulation
	}
	if p.TimeSlice != nil {
		c.TimeSlice = *p.TimeSlice
	}
	return c
}
