package watcher

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ritzau/console-assembly/pkg/config"
)

func TestClassify(t *testing.T) {
	c, err := NewClassifier(config.Default())
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}

	tests := []struct {
		path   string
		want   ChangeType
		wantOK bool
	}{
		{"src/index.html", ChangeTypeEntry, true},
		{"src/app.ts", ChangeTypeSource, true},
		{"src/core/engine.ts", ChangeTypeSource, true},
		{"src/core/view.html", ChangeTypeSource, true},
		{"src/core/index.html", ChangeTypeSource, true},
		{"src/styles/main.less", ChangeTypeStyle, true},
		{"dist/js/hawtio-console-assembly.js", ChangeTypeOutput, true},
		{"dist/css/hawtio-console-assembly.css", ChangeTypeOutput, true},
		{"dist/index.html", ChangeTypeOutput, true},
		{"dist/libs/lib/index.js", 0, false},
		{"dist/js/app.js.tmp", 0, false},
		{"src/README.md", 0, false},
		{"temp/app.js", 0, false},
		{"src", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := c.Classify(filepath.FromSlash(tt.path))
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Classify(%q) = %v, %v; want %v, %v", tt.path, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTasksFor(t *testing.T) {
	tests := map[ChangeType][]string{
		ChangeTypeOutput: {"reload"},
		ChangeTypeSource: {"tsc", "template", "concat"},
		ChangeTypeStyle:  {"less"},
		ChangeTypeEntry:  {"usemin"},
	}
	for change, want := range tests {
		if diff := cmp.Diff(want, TasksFor(change)); diff != "" {
			t.Errorf("TasksFor(%s) mismatch (-want +got):\n%s", change, diff)
		}
	}
	if got := TasksFor(ChangeType(42)); got != nil {
		t.Errorf("TasksFor(unknown) = %v, want nil", got)
	}
}
