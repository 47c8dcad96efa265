package graph

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func buildGraph(t *testing.T) *TaskGraph {
	t.Helper()
	g := NewTaskGraph()
	for _, name := range []string{"clean", "tsc", "template", "concat", "less", "usemin", "404", "build"} {
		if err := g.AddTask(name); err != nil {
			t.Fatal(err)
		}
	}
	for _, dep := range []string{"clean", "tsc", "template", "concat", "less", "usemin", "404"} {
		if err := g.AddDependency("build", dep); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Chain("clean", "tsc", "template", "concat", "less", "usemin", "404"); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDependency("404", "usemin"); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestOrderFullBuild(t *testing.T) {
	g := buildGraph(t)

	got, err := g.Order("build")
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	want := []string{"clean", "tsc", "template", "concat", "less", "usemin", "404", "build"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Order(build) mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderingEdgesDoNotPullTasksIn(t *testing.T) {
	g := buildGraph(t)

	got, err := g.Order("concat", "tsc", "template")
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	want := []string{"tsc", "template", "concat"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
}

func TestRequiresEdgesPullTasksIn(t *testing.T) {
	g := buildGraph(t)

	got, err := g.Order("404")
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	want := []string{"usemin", "404"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Order(404) mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderIsStable(t *testing.T) {
	g := NewTaskGraph()
	for _, name := range []string{"c", "a", "b", "all"} {
		if err := g.AddTask(name); err != nil {
			t.Fatal(err)
		}
	}
	for _, dep := range []string{"b", "a", "c"} {
		if err := g.AddDependency("all", dep); err != nil {
			t.Fatal(err)
		}
	}

	for range 5 {
		got, err := g.Order("all")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"c", "a", "b", "all"}, got); diff != "" {
			t.Fatalf("independent tasks should follow registration order (-want +got):\n%s", diff)
		}
	}
}

func TestDependencies(t *testing.T) {
	g := buildGraph(t)

	if diff := cmp.Diff([]string{"usemin"}, g.Dependencies("404")); diff != "" {
		t.Errorf("Dependencies(404) mismatch (-want +got):\n%s", diff)
	}
	if deps := g.Dependencies("tsc"); len(deps) != 0 {
		t.Errorf("ordering edges are not dependencies, got %v", deps)
	}
	if deps := g.Dependencies("missing"); deps != nil {
		t.Errorf("Dependencies(missing) = %v, want nil", deps)
	}
}

func TestCycleIsReported(t *testing.T) {
	g := NewTaskGraph()
	for _, name := range []string{"a", "b", "c"} {
		if err := g.AddTask(name); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Chain("a", "b", "c"); err != nil {
		t.Fatal(err)
	}
	if err := g.AddOrdering("c", "a"); err != nil {
		t.Fatal(err)
	}

	_, err := g.Order("a")
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Order() error = %v, want *CycleError", err)
	}
	if diff := cmp.Diff([][]string{{"a", "b", "c"}}, cycleErr.Cycles); diff != "" {
		t.Errorf("cycles mismatch (-want +got):\n%s", diff)
	}
	if err := g.Validate(); !errors.As(err, &cycleErr) {
		t.Errorf("Validate() error = %v, want *CycleError", err)
	}
}

func TestRegistrationErrors(t *testing.T) {
	g := NewTaskGraph()
	if err := g.AddTask("a"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		err  error
	}{
		{"duplicate task", g.AddTask("a")},
		{"empty name", g.AddTask("")},
		{"self dependency", g.AddDependency("a", "a")},
		{"unknown dependency", g.AddDependency("a", "missing")},
		{"unknown ordering", g.AddOrdering("missing", "a")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Error("expected an error")
			}
		})
	}

	if _, err := g.Order("missing"); err == nil {
		t.Error("Order() of an unknown task should fail")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
