// Package output renders developer-facing console output: error banners,
// bundle size reports and the final build summary.
package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/ritzau/console-assembly/pkg/pipeline"
)

// Reporter writes coloured reports to an output stream. It is safe for
// concurrent use.
type Reporter struct {
	mu    sync.Mutex
	out   io.Writer
	steps []step
}

type step struct {
	task     string
	duration time.Duration
	err      error
}

// NewReporter creates a reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{out: w}
}

// Notify prints a banner for a failure the developer has to act on, such as
// a compilation error.
func (r *Reporter) Notify(title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	banner := color.New(color.FgWhite, color.BgRed, color.Bold)
	red := color.New(color.FgRed)

	banner.Fprintf(r.out, " %s ", title)
	fmt.Fprintln(r.out)
	for _, line := range strings.Split(strings.TrimRight(message, "\n"), "\n") {
		red.Fprintf(r.out, "  %s\n", line)
	}
}

// ReportSize prints the uncompressed and gzip-compressed size of a bundle.
func (r *Reporter) ReportSize(file string, size, gzipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cyan := color.New(color.FgCyan)
	cyan.Fprintf(r.out, "  %-40s", file)
	fmt.Fprintf(r.out, " %10s  %10s gzipped\n", FormatBytes(size), FormatBytes(gzipped))
}

// Record keeps a finished task for the summary. It has the signature of a
// pipeline observer.
func (r *Reporter) Record(e pipeline.Event) {
	if e.State == pipeline.StateStarted {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step{task: e.Task, duration: e.Duration, err: e.Err})
}

// Summary prints the recorded tasks and the outcome of the run.
func (r *Reporter) Summary(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	var total time.Duration
	for _, s := range r.steps {
		total += s.duration
		if s.err != nil {
			red.Fprintf(r.out, "  ✗ %-22s %s\n", s.task, formatDuration(s.duration))
			continue
		}
		fmt.Fprintf(r.out, "  ✓ %-22s %s\n", s.task, formatDuration(s.duration))
	}

	if err != nil {
		red.Fprintf(r.out, "Build failed: %v\n", err)
		return
	}
	bold.Fprint(r.out, "Build succeeded ")
	green.Fprintf(r.out, "(%d tasks in %s)\n", len(r.steps), formatDuration(total))
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	return d.Round(time.Millisecond).String()
}
