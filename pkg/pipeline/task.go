// Package pipeline runs build tasks in dependency order.
package pipeline

import (
	"context"
	"fmt"

	"github.com/ritzau/console-assembly/pkg/config"
)

// Task is one named step of the build.
type Task interface {
	// Name returns the unique task name used on the command line (e.g. "tsc", "usemin").
	Name() string

	// Run performs the step. Tasks read all settings from cfg and never from
	// global state.
	Run(ctx context.Context, cfg config.Config) error
}

// Func adapts a function to the Task interface.
type Func struct {
	name string
	fn   func(ctx context.Context, cfg config.Config) error
}

// NewFunc creates a task named name that runs fn.
func NewFunc(name string, fn func(ctx context.Context, cfg config.Config) error) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Run(ctx context.Context, cfg config.Config) error {
	return f.fn(ctx, cfg)
}

// Group is a task that does nothing itself; it exists to pull its
// dependencies into a plan ("build", "default").
type Group string

func (g Group) Name() string { return string(g) }

func (g Group) Run(context.Context, config.Config) error { return nil }

// TaskError wraps the failure of a single task. It stops the sequence.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
