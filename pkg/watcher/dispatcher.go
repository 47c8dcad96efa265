package watcher

import (
	"context"
	"sort"
	"sync"

	"github.com/ritzau/console-assembly/pkg/logging"
)

// RunFunc executes a set of tasks, e.g. pipeline.Runner.Run.
type RunFunc func(ctx context.Context, tasks ...string) error

// Dispatcher runs triggered tasks one batch at a time. Triggers that arrive
// while a batch is running are merged into a single pending batch that runs
// once the current one has finished.
type Dispatcher struct {
	run   RunFunc
	order map[string]int

	mu      sync.Mutex
	pending map[string]bool
	wake    chan struct{}
}

// NewDispatcher creates a dispatcher. Pending tasks are passed to run in the
// order given by order; unknown names sort last, alphabetically.
func NewDispatcher(run RunFunc, order []string) *Dispatcher {
	index := make(map[string]int, len(order))
	for i, name := range order {
		index[name] = i
	}
	return &Dispatcher{
		run:     run,
		order:   index,
		pending: make(map[string]bool),
		wake:    make(chan struct{}, 1),
	}
}

// Trigger schedules tasks. It never blocks.
func (d *Dispatcher) Trigger(tasks ...string) {
	if len(tasks) == 0 {
		return
	}

	d.mu.Lock()
	for _, task := range tasks {
		d.pending[task] = true
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending returns the tasks waiting for the next batch, in run order.
func (d *Dispatcher) Pending() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sorted(d.pending)
}

// Run executes batches until ctx is cancelled. A failing batch is logged and
// does not stop the dispatcher.
func (d *Dispatcher) Run(ctx context.Context) {
	log := logging.New("watch")
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		}

		d.mu.Lock()
		batch := d.sorted(d.pending)
		d.pending = make(map[string]bool)
		d.mu.Unlock()

		if len(batch) == 0 {
			continue
		}

		log.Info("running tasks", "tasks", batch)
		if err := d.run(ctx, batch...); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("triggered run failed, still watching", "tasks", batch, "error", err)
		}
	}
}

func (d *Dispatcher) sorted(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, aok := d.order[names[i]]
		b, bok := d.order[names[j]]
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		default:
			return names[i] < names[j]
		}
	})
	return names
}
