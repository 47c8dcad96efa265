package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/graph"
	"github.com/ritzau/console-assembly/pkg/logging"
)

// State is the outcome reported to observers for one task.
type State string

const (
	StateStarted   State = "started"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Event describes a task transition.
type Event struct {
	Task     string
	State    State
	Duration time.Duration
	Err      error
}

// Runner executes task plans. Steps of a plan run one at a time in
// topological order; services (long-running tasks such as the dev server)
// start after every step of the plan has succeeded and run concurrently.
type Runner struct {
	cfg       config.Config
	graph     *graph.TaskGraph
	tasks     map[string]Task
	services  map[string]bool
	observers []func(Event)
	mu        sync.Mutex // Serialises step execution between callers
	log       *slog.Logger
}

// NewRunner creates a runner that passes cfg to every task.
func NewRunner(cfg config.Config) *Runner {
	return &Runner{
		cfg:      cfg,
		graph:    graph.NewTaskGraph(),
		tasks:    make(map[string]Task),
		services: make(map[string]bool),
		log:      logging.New("pipeline"),
	}
}

// Register adds a task that requires deps.
func (r *Runner) Register(task Task, deps ...string) error {
	if err := r.graph.AddTask(task.Name()); err != nil {
		return err
	}
	r.tasks[task.Name()] = task
	for _, dep := range deps {
		if err := r.graph.AddDependency(task.Name(), dep); err != nil {
			return err
		}
	}
	return nil
}

// RegisterService adds a long-running task.
func (r *Runner) RegisterService(task Task, deps ...string) error {
	if err := r.Register(task, deps...); err != nil {
		return err
	}
	r.services[task.Name()] = true
	return nil
}

// Sequence constrains the listed tasks to run in the given order whenever
// more than one of them is planned. It does not add dependencies.
func (r *Runner) Sequence(names ...string) error {
	return r.graph.Chain(names...)
}

// Observe registers fn to be called for every task transition. Services run
// concurrently, so fn must be safe for concurrent use. Register observers
// before the first Run.
func (r *Runner) Observe(fn func(Event)) {
	r.observers = append(r.observers, fn)
}

// Has reports whether a task with the given name is registered.
func (r *Runner) Has(name string) bool {
	return r.graph.Has(name)
}

// Tasks lists registered task names in registration order.
func (r *Runner) Tasks() []string {
	return r.graph.Tasks()
}

// Validate reports a *graph.CycleError when the registered requirements and
// orderings contradict each other.
func (r *Runner) Validate() error {
	return r.graph.Validate()
}

// Plan returns the ordered task names a run of targets would execute.
func (r *Runner) Plan(targets ...string) ([]string, error) {
	return r.graph.Order(targets...)
}

// Run executes targets and everything they require. The first failing step
// stops the run and is returned as a *TaskError. Once all steps succeed,
// planned services run until ctx is cancelled or one of them fails.
// Cancelling ctx before the services start fails the run.
func (r *Runner) Run(ctx context.Context, targets ...string) error {
	plan, err := r.Plan(targets...)
	if err != nil {
		return err
	}

	var steps, services []Task
	for _, name := range plan {
		if r.services[name] {
			services = append(services, r.tasks[name])
		} else {
			steps = append(steps, r.tasks[name])
		}
	}

	if err := r.runSteps(ctx, steps); err != nil {
		return err
	}
	return r.runServices(ctx, services)
}

func (r *Runner) runSteps(ctx context.Context, steps []Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, task := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runOne(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runOne(ctx context.Context, task Task) error {
	if _, group := task.(Group); !group {
		r.log.Debug("starting", "task", task.Name())
	}
	r.emit(Event{Task: task.Name(), State: StateStarted})

	start := time.Now()
	err := task.Run(ctx, r.cfg)
	duration := time.Since(start)

	if err != nil {
		r.emit(Event{Task: task.Name(), State: StateFailed, Duration: duration, Err: err})
		return &TaskError{Task: task.Name(), Err: err}
	}

	r.log.Debug("finished", "task", task.Name(), "durationMs", duration.Milliseconds())
	r.emit(Event{Task: task.Name(), State: StateSucceeded, Duration: duration})
	return nil
}

func (r *Runner) runServices(ctx context.Context, services []Task) error {
	if len(services) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(func() error {
			r.log.Info("starting service", "task", svc.Name())
			r.emit(Event{Task: svc.Name(), State: StateStarted})
			if err := svc.Run(gctx, r.cfg); err != nil {
				r.emit(Event{Task: svc.Name(), State: StateFailed, Err: err})
				return &TaskError{Task: svc.Name(), Err: err}
			}
			r.emit(Event{Task: svc.Name(), State: StateSucceeded})
			return nil
		})
	}
	// Interrupting running services is a clean shutdown
	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Runner) emit(e Event) {
	for _, fn := range r.observers {
		fn(e)
	}
}
