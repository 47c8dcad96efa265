package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/ritzau/console-assembly/pkg/command"
	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/logging"
	"github.com/ritzau/console-assembly/pkg/output"
	"github.com/ritzau/console-assembly/pkg/pipeline"
	"github.com/ritzau/console-assembly/pkg/pubsub"
	"github.com/ritzau/console-assembly/pkg/tasks"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	flags := pflag.NewFlagSet("console-assembly", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: console-assembly [flags] [task ...]")
		flags.PrintDefaults()
	}
	config.RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return exitUsage
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}
	logging.Setup(stdout, cfg.LogLevel(), cfg.Log.JSON)

	publisher := pubsub.NewSSEPublisher()
	defer publisher.Close()

	reporter := output.NewReporter(stdout)
	runner, err := tasks.NewRunner(cfg, tasks.Deps{
		Fs:        afero.NewOsFs(),
		Exec:      command.NewExecutor(),
		Reporter:  reporter,
		Publisher: publisher,
	})
	if err != nil {
		logging.Error("failed to register tasks", "error", err)
		return exitFailure
	}

	targets := flags.Args()
	if len(targets) == 0 {
		targets = []string{tasks.Default}
	}
	for _, name := range targets {
		if !runner.Has(name) {
			fmt.Fprintf(os.Stderr, "Unknown task %q. Available tasks: %v\n", name, runner.Tasks())
			return exitUsage
		}
	}

	logging.Debug("running", "tasks", targets, "root", cfg.Root)
	err = runner.Run(ctx, targets...)
	reporter.Summary(err)

	if err != nil {
		var taskErr *pipeline.TaskError
		if errors.As(err, &taskErr) {
			logging.Debug("task failed", "task", taskErr.Task, "error", taskErr.Err)
		}
		return exitFailure
	}
	return 0
}
