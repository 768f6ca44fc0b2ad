// Command soupd hosts a tierrasoup simulator behind a websocket feed: it
// steps the simulator on a fixed-rate ticker, broadcasts stats and a soup
// visualization frame to any connected browser, and periodically persists a
// snapshot to disk for crash recovery.
package main

import (
	"encoding/gob"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"tierrasoup/simcore"
)

const (
	defaultSoupSize  = 1 << 16
	snapshotInterval = 2000
	targetFPS        = 30
	snapshotFile     = "snapshot.gob"
)

// Controller serializes access to a Simulator across the step-loop
// goroutine and the per-connection websocket goroutines that deliver
// control messages. The simulator core itself is single-threaded; this
// mutex is host-side plumbing, not part of its semantics.
type Controller struct {
	mu     sync.Mutex
	sim    *simcore.Simulator
	paused bool
}

func NewController(sim *simcore.Simulator) *Controller {
	return &Controller{sim: sim}
}

func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// Step advances the simulator by one tick regardless of the paused flag,
// so a paused UI can still single-step.
func (c *Controller) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sim.Step(); err != nil {
		log.Printf("step error: %v", err)
	}
}

// Tick runs StepsPerFrame steps if the controller is not paused. It is
// called once per animation frame by the run loop.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	n := c.sim.Config().StepsPerFrame
	if n < 1 {
		n = 1
	}
	if _, err := c.sim.StepN(n); err != nil {
		log.Printf("step error: %v", err)
	}
}

func (c *Controller) ApplyPatch(p ConfigPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sim.SetConfig(simcore.ConfigPatch{
		StepsPerFrame:    p.StepsPerFrame,
		CopyMutationRate: p.MutationRate,
		MaxPopulation:    p.MaxPopulation,
		TimeSlice:        p.TimeSlice,
	})
}

func (c *Controller) Snapshot() (simcore.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sim.Snapshot()
}

// statsFrame is the JSON envelope broadcast to browsers once per frame.
type statsFrame struct {
	Type            string  `json:"type"`
	Tick            int64   `json:"tick"`
	Population      int     `json:"population"`
	Births          int64   `json:"births"`
	Deaths          int64   `json:"deaths"`
	MaxGeneration   int     `json:"max_generation"`
	MutationsCopy   int64   `json:"mutations_copy"`
	MutationsCosmic int64   `json:"mutations_cosmic"`
	Faults          int64   `json:"faults"`
	SoupEntropy     float64 `json:"soup_entropy"`
}

// visFrame is a binary frame: one byte per soup cell giving its opcode,
// cheap for the browser to paint directly onto a canvas.
func visFrame(snap simcore.Snapshot) []byte {
	frame := make([]byte, len(snap.SoupCells))
	for i, instr := range snap.SoupCells {
		frame[i] = byte(instr)
	}
	return frame
}

func opcodeHistogram(snap simcore.Snapshot) ([256]int, int) {
	var counts [256]int
	for _, instr := range snap.SoupCells {
		counts[byte(instr)]++
	}
	return counts, len(snap.SoupCells)
}

// hostSnapshot is what gets persisted to snapshotFile: enough to inspect
// the run after the fact. It is diagnostic, not a resume format -- the
// simulator's PRNG state is not part of it, so reloading it would not
// reproduce the original trace (see DESIGN.md, "persistence").
type hostSnapshot struct {
	SavedAt time.Time
	Config  simcore.Config
	Snap    simcore.Snapshot
}

func saveSnapshot(path string, cfg simcore.Config, snap simcore.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(hostSnapshot{SavedAt: time.Now(), Config: cfg, Snap: snap}); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

func main() {
	soupSize := flag.Int("soup-size", defaultSoupSize, "number of cells in the soup")
	seed := flag.Int64("seed", 1, "PRNG seed")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	cfg := simcore.DefaultConfig()
	cfg.SoupSize = *soupSize

	sim, err := simcore.New(cfg, *seed)
	if err != nil {
		log.Fatalf("creating simulator: %v", err)
	}
	ctrl := NewController(sim)

	hub := NewHub()
	go hub.Run()
	go StartServer(*addr, hub, ctrl)

	ticker := time.NewTicker(time.Second / targetFPS)
	defer ticker.Stop()

	var frame int64
	for range ticker.C {
		ctrl.Tick()
		frame++

		snap, err := ctrl.Snapshot()
		if err != nil {
			log.Printf("snapshot error: %v", err)
			continue
		}

		counts, total := opcodeHistogram(snap)
		payload, err := json.Marshal(statsFrame{
			Type:            "stats",
			Tick:            snap.Stats.Tick,
			Population:      snap.Stats.Population,
			Births:          snap.Stats.Births,
			Deaths:          snap.Stats.Deaths,
			MaxGeneration:   snap.Stats.MaxGeneration,
			MutationsCopy:   snap.Stats.MutationsCopy,
			MutationsCosmic: snap.Stats.MutationsCosmic,
			Faults:          snap.Stats.Faults,
			SoupEntropy:     simcore.SoupEntropy(counts, total),
		})
		if err != nil {
			log.Printf("marshal stats: %v", err)
			continue
		}
		hub.Broadcast <- payload
		hub.Broadcast <- visFrame(snap)

		if frame%snapshotInterval == 0 {
			if err := saveSnapshot(snapshotFile, ctrl.sim.Config(), snap); err != nil {
				log.Printf("snapshot save failed: %v", err)
			}
		}
	}
}
