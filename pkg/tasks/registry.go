// Package tasks assembles the console build: every named task, the order
// the build runs them in and the long-running dev services.
package tasks

import (
	"github.com/spf13/afero"

	"github.com/ritzau/console-assembly/pkg/bundle"
	"github.com/ritzau/console-assembly/pkg/command"
	"github.com/ritzau/console-assembly/pkg/compile"
	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/deps"
	"github.com/ritzau/console-assembly/pkg/output"
	"github.com/ritzau/console-assembly/pkg/pipeline"
	"github.com/ritzau/console-assembly/pkg/pubsub"
	"github.com/ritzau/console-assembly/pkg/templates"
	"github.com/ritzau/console-assembly/pkg/usemin"
	"github.com/ritzau/console-assembly/pkg/watcher"
	"github.com/ritzau/console-assembly/pkg/web"
)

// Group task names.
const (
	Build   = "build"
	Default = "default"
)

// BuildOrder is the strict order of the build steps.
var BuildOrder = []string{
	"clean",
	"tsc",
	"template",
	"concat",
	"less",
	"usemin",
	"install-dependencies",
	"copy-dependencies",
	"copy-images",
	"404",
}

// Deps are the collaborators tasks are built from. All fields are required.
type Deps struct {
	Fs        afero.Fs
	Exec      command.Executor
	Reporter  *output.Reporter
	Publisher pubsub.Publisher
}

// NewRunner registers every task with a runner for cfg.
func NewRunner(cfg config.Config, d Deps) (*pipeline.Runner, error) {
	r := pipeline.NewRunner(cfg)

	steps := []struct {
		task pipeline.Task
		deps []string
	}{
		{NewClean(d.Fs), nil},
		{compile.NewCompiler(d.Fs, d.Reporter), nil},
		{templates.NewTask(d.Fs), nil},
		{bundle.NewConcat(d.Fs, d.Reporter), nil},
		{bundle.NewLess(d.Fs, d.Exec), nil},
		{usemin.NewRewriter(d.Fs), nil},
		{deps.NewInstaller(d.Fs, d.Exec), nil},
		{deps.NewCopier(d.Fs), nil},
		{deps.NewImageCopier(d.Fs), nil},
		{usemin.NewFallback(d.Fs), []string{"usemin"}},
		{web.NewReload(d.Publisher), nil},
	}
	for _, s := range steps {
		if err := r.Register(s.task, s.deps...); err != nil {
			return nil, err
		}
	}

	// reload runs last whenever it is planned together with build steps
	order := append(append([]string(nil), BuildOrder...), "reload")
	if err := r.Sequence(order...); err != nil {
		return nil, err
	}
	if err := r.Register(pipeline.Group(Build), BuildOrder...); err != nil {
		return nil, err
	}

	if err := r.RegisterService(web.NewConnect(d.Fs, d.Publisher)); err != nil {
		return nil, err
	}
	if err := r.RegisterService(watcher.NewWatch(r.Run, order)); err != nil {
		return nil, err
	}
	if err := r.Register(pipeline.Group(Default), Build, "connect", "watch"); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	r.Observe(func(e pipeline.Event) {
		if e.Task == Build || e.Task == Default {
			return
		}
		d.Reporter.Record(e)
		publishStatus(d.Publisher, e)
	})
	return r, nil
}

func publishStatus(p pubsub.Publisher, e pipeline.Event) {
	status := pubsub.BuildStatus{
		Task:       e.Task,
		State:      string(e.State),
		DurationMs: e.Duration.Milliseconds(),
	}
	if e.Err != nil {
		status.Error = e.Err.Error()
	}
	_ = p.Publish(pubsub.TopicBuildStatus, string(e.State), status)
}
