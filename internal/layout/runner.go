package layout

import (
	"context"
	"log"
	"sync"
	"time"

	"token-flow-lab/internal/encoding"
	"token-flow-lab/internal/observability"
)

// Runner drives one Simulation for one graph snapshot on its own goroutine.
// All methods are safe for concurrent use.
type Runner struct {
	mu         sync.Mutex
	sim        *Simulation
	generation uint64
	sink       Sink
	cfg        Config
	logger     *log.Logger

	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Config     Config
	Generation uint64 // stamped on every frame
	Sink       Sink   // may be nil
	Logger     *log.Logger
}

// NewRunner creates a runner for the encoded snapshot. Nothing runs until Start.
func NewRunner(enc encoding.Encoded, opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cfg := opts.Config.withDefaults()

	return &Runner{
		sim:        NewSimulation(enc, cfg),
		generation: opts.Generation,
		sink:       opts.Sink,
		cfg:        cfg,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Generation returns the snapshot generation this runner belongs to.
func (r *Runner) Generation() uint64 {
	return r.generation
}

// Start launches the tick loop. Calling Start twice is a no-op.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}
	if r.started {
		return nil
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	observability.RecordLayoutStart()
	go r.loop(ctx)
	return nil
}

// Stop cancels the loop and waits for it to exit. After Stop returns the sink
// receives no further frames from this runner. Safe to call more than once.
func (r *Runner) Stop() {
	r.mu.Lock()
	started := r.started
	if !r.stopped {
		r.stopped = true
		if r.cancel != nil {
			r.cancel()
		}
	}
	r.mu.Unlock()

	if started {
		<-r.done
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	defer observability.RecordLayoutStop()

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	reheat := time.NewTicker(r.cfg.ReheatInterval)
	defer reheat.Stop()

	r.logger.Printf("layout generation %d started: %d nodes, %d links", r.generation, len(r.sim.Bodies()), len(r.sim.Links()))

	for {
		select {
		case <-ctx.Done():
			r.logger.Printf("layout generation %d stopped after %d ticks", r.generation, r.ticks())
			return

		case <-reheat.C:
			r.mu.Lock()
			r.sim.Reheat()
			r.mu.Unlock()

		case <-ticker.C:
			frame, ok := r.step()
			if !ok {
				continue
			}
			// Cancellation wins over a frame computed concurrently with Stop.
			if ctx.Err() != nil {
				return
			}
			if r.sink != nil {
				r.sink.Frame(frame)
			}
		}
	}
}

func (r *Runner) step() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return Frame{}, false
	}
	before := r.sim.Recovered()
	if !r.sim.Tick() {
		return Frame{}, false
	}
	observability.RecordLayoutTick()
	if n := r.sim.Recovered() - before; n > 0 {
		observability.RecordLayoutRecoveries(n)
		r.logger.Printf("layout generation %d: reset %d non-finite bodies", r.generation, n)
	}
	return r.sim.Snapshot(r.generation), true
}

func (r *Runner) ticks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Ticks()
}

// Snapshot returns the current state as a frame.
func (r *Runner) Snapshot() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Snapshot(r.generation)
}

// State returns the simulation state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.State()
}

// Reheat re-energizes the simulation immediately.
func (r *Runner) Reheat() error {
	return r.with(func(s *Simulation) error {
		s.Reheat()
		return nil
	})
}

// DragStart pins a node. See Simulation.DragStart.
func (r *Runner) DragStart(id string) error {
	return r.with(func(s *Simulation) error { return s.DragStart(id) })
}

// DragMove moves a pinned node. See Simulation.DragMove.
func (r *Runner) DragMove(id string, x, y float64) error {
	return r.with(func(s *Simulation) error { return s.DragMove(id, x, y) })
}

// DragEnd releases a pinned node. See Simulation.DragEnd.
func (r *Runner) DragEnd(id string) error {
	return r.with(func(s *Simulation) error { return s.DragEnd(id) })
}

func (r *Runner) with(fn func(*Simulation) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	return fn(r.sim)
}
