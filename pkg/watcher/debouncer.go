package watcher

import (
	"context"
	"time"

	"github.com/ritzau/console-assembly/pkg/logging"
)

// Debouncer batches rapid file system events so that one save (or one
// build writing many files) triggers one rebuild.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer. A batch is flushed once no
// event arrived for quietPeriod, or maxWait after its first event.
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	quiet := time.NewTimer(d.quietPeriod)
	quiet.Stop()
	deadline := time.NewTimer(d.maxWait)
	deadline.Stop()

	var (
		accumulated = make(map[ChangeType][]string)
		seen        = make(map[string]bool)
		pending     bool
	)

	flush := func() {
		quiet.Stop()
		deadline.Stop()
		if !pending {
			return
		}

		logging.Debug("flushing accumulated changes", "count", len(seen))

		// Send in type order so output reloads are reported before rebuilds
		for change := ChangeTypeOutput; change <= ChangeTypeEntry; change++ {
			paths := accumulated[change]
			if len(paths) == 0 {
				continue
			}
			select {
			case d.output <- ChangeEvent{Type: change, Paths: paths, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}
		}

		accumulated = make(map[ChangeType][]string)
		seen = make(map[string]bool)
		pending = false
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}

			for _, path := range event.Paths {
				if !seen[path] {
					seen[path] = true
					accumulated[event.Type] = append(accumulated[event.Type], path)
				}
			}

			// Reset quiet period timer; start the max wait timer on the first event
			quiet.Reset(d.quietPeriod)
			if !pending {
				deadline.Reset(d.maxWait)
				pending = true
			}

		case <-quiet.C:
			flush()

		case <-deadline.C:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
