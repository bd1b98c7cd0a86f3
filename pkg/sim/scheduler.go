// Package sim drives the discrete-time simulation: a scheduler steps
// every agent once per tick, sequentially, with an optional seeded
// shuffle of the activation order.
package sim

import (
	"math/rand"

	"github.com/luxfi/log"
)

// Agent is anything the scheduler can activate once per tick.
type Agent interface {
	Step()
}

// Scheduler activates agents in sequence, one tick at a time. Within a
// tick every agent turn runs to completion before the next begins; the
// scheduler never interleaves.
type Scheduler struct {
	agents []Agent
	rng    *rand.Rand // nil disables shuffling
	ticks  int
	hooks  []func(tick int)
	logger log.Logger
}

// NewScheduler creates a scheduler. A non-nil rng shuffles the agent
// activation order each tick; pass nil for strict insertion order.
func NewScheduler(rng *rand.Rand, logger log.Logger) *Scheduler {
	return &Scheduler{
		rng:    rng,
		logger: logger.New("module", "scheduler"),
	}
}

// Add registers an agent for activation.
func (s *Scheduler) Add(a Agent) {
	s.agents = append(s.agents, a)
}

// AfterStep registers a hook run at the end of every tick, after all
// agents have acted. Hooks run in registration order.
func (s *Scheduler) AfterStep(fn func(tick int)) {
	s.hooks = append(s.hooks, fn)
}

// Ticks returns the number of completed ticks.
func (s *Scheduler) Ticks() int { return s.ticks }

// Step runs one tick.
func (s *Scheduler) Step() {
	if s.rng != nil {
		s.rng.Shuffle(len(s.agents), func(i, j int) {
			s.agents[i], s.agents[j] = s.agents[j], s.agents[i]
		})
	}
	for _, a := range s.agents {
		a.Step()
	}
	s.ticks++
	for _, fn := range s.hooks {
		fn(s.ticks)
	}
	s.logger.Debug("tick complete", "tick", s.ticks, "agents", len(s.agents))
}

// Run executes n ticks.
func (s *Scheduler) Run(n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}
