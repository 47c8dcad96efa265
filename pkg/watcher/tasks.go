package watcher

import (
	"context"
	"time"

	"github.com/ritzau/console-assembly/pkg/config"
)

const (
	quietPeriod = 100 * time.Millisecond
	maxWait     = time.Second
)

// Watch rebuilds the affected part of the console whenever a source or
// output file changes. It runs until its context is cancelled.
type Watch struct {
	run   RunFunc
	order []string
}

// NewWatch creates the watch task. Triggered tasks are executed with run
// and batched in the given task order.
func NewWatch(run RunFunc, order []string) *Watch {
	return &Watch{run: run, order: order}
}

func (w *Watch) Name() string { return "watch" }

func (w *Watch) Run(ctx context.Context, cfg config.Config) error {
	classifier, err := NewClassifier(cfg)
	if err != nil {
		return err
	}

	// Only the outputs the page loads directly; dist/libs holds installed
	// packages and is never watched.
	fw, err := NewFileWatcher(classifier.Classify,
		Tree(cfg.SrcDir()), Dir(cfg.DistDir()), Dir(cfg.DistCSS()), Dir(cfg.DistJS()))
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	debouncer := NewDebouncer(fw.Events(), quietPeriod, maxWait)
	debouncer.Start(ctx)

	dispatcher := NewDispatcher(w.run, w.order)
	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatcher.Run(ctx)
	}()

	for event := range debouncer.Output() {
		dispatcher.Trigger(TasksFor(event.Type)...)
	}
	<-done
	return nil
}
