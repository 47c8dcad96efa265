package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func collect(t *testing.T, ch <-chan ChangeEvent) []ChangeEvent {
	t.Helper()
	var events []ChangeEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatal("timed out waiting for debouncer output")
		}
	}
}

func TestDebouncerMergesBurst(t *testing.T) {
	input := make(chan ChangeEvent, 10)
	input <- ChangeEvent{Type: ChangeTypeStyle, Paths: []string{"src/a.less"}}
	input <- ChangeEvent{Type: ChangeTypeSource, Paths: []string{"src/a.ts"}}
	input <- ChangeEvent{Type: ChangeTypeSource, Paths: []string{"src/a.ts"}}
	input <- ChangeEvent{Type: ChangeTypeSource, Paths: []string{"src/b.ts"}}
	input <- ChangeEvent{Type: ChangeTypeOutput, Paths: []string{"dist/index.html"}}
	close(input)

	d := NewDebouncer(input, time.Hour, time.Hour)
	d.Start(context.Background())

	events := collect(t, d.Output())
	got := make(map[ChangeType][]string)
	var order []ChangeType
	for _, e := range events {
		order = append(order, e.Type)
		got[e.Type] = e.Paths
	}

	if diff := cmp.Diff([]ChangeType{ChangeTypeOutput, ChangeTypeSource, ChangeTypeStyle}, order); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"src/a.ts", "src/b.ts"}, got[ChangeTypeSource]); diff != "" {
		t.Errorf("duplicate paths should be merged (-want +got):\n%s", diff)
	}
}

func TestDebouncerFlushesAfterQuietPeriod(t *testing.T) {
	input := make(chan ChangeEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(input, 10*time.Millisecond, time.Second)
	d.Start(ctx)

	input <- ChangeEvent{Type: ChangeTypeEntry, Paths: []string{"src/index.html"}}

	select {
	case e := <-d.Output():
		if e.Type != ChangeTypeEntry {
			t.Errorf("Type = %v, want entry", e.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event after the quiet period")
	}
}

func TestDebouncerMaxWait(t *testing.T) {
	input := make(chan ChangeEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(input, time.Hour, 30*time.Millisecond)
	d.Start(ctx)

	// Keep the quiet timer from ever firing
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case input <- ChangeEvent{Type: ChangeTypeSource, Paths: []string{"src/a.ts"}}:
				case <-stop:
					return
				}
			}
		}
	}()
	defer close(stop)

	select {
	case e := <-d.Output():
		if diff := cmp.Diff([]string{"src/a.ts"}, e.Paths); diff != "" {
			t.Errorf("paths mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("max wait did not force a flush")
	}
}

func TestDebouncerStopsOnCancel(t *testing.T) {
	input := make(chan ChangeEvent)
	ctx, cancel := context.WithCancel(context.Background())

	d := NewDebouncer(input, time.Hour, time.Hour)
	d.Start(ctx)
	cancel()

	if events := collect(t, d.Output()); len(events) != 0 {
		t.Errorf("expected no events, got %v", events)
	}
}
