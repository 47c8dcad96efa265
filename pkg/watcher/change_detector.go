package watcher

import (
	"path/filepath"
	"strings"

	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/stream"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	// ChangeTypeOutput is a change to a served bundle or the built entry page.
	ChangeTypeOutput ChangeType = iota
	// ChangeTypeSource is a change to a TypeScript file or a view template.
	ChangeTypeSource
	// ChangeTypeStyle is a change to a stylesheet source.
	ChangeTypeStyle
	// ChangeTypeEntry is a change to the source entry page.
	ChangeTypeEntry
)

func (c ChangeType) String() string {
	switch c {
	case ChangeTypeOutput:
		return "output"
	case ChangeTypeSource:
		return "source"
	case ChangeTypeStyle:
		return "style"
	case ChangeTypeEntry:
		return "entry"
	}
	return "unknown"
}

// TasksFor lists the tasks a change of the given type re-runs.
func TasksFor(change ChangeType) []string {
	switch change {
	case ChangeTypeOutput:
		return []string{"reload"}
	case ChangeTypeSource:
		return []string{"tsc", "template", "concat"}
	case ChangeTypeStyle:
		return []string{"less"}
	case ChangeTypeEntry:
		return []string{"usemin"}
	}
	return nil
}

type rule struct {
	dir    string
	match  stream.Matcher
	change ChangeType
}

// Classifier maps changed paths to change types. Rules are checked in
// order and the first match wins.
type Classifier struct {
	rules []rule
}

// NewClassifier builds the watch rules for a project layout.
func NewClassifier(cfg config.Config) (*Classifier, error) {
	entry := filepath.Base(cfg.EntryHTML())
	defs := []struct {
		dir      string
		patterns []string
		change   ChangeType
	}{
		{cfg.DistDir(), []string{"css/*", "js/*", entry}, ChangeTypeOutput},
		{cfg.SrcDir(), []string{entry}, ChangeTypeEntry},
		{cfg.SrcDir(), []string{"**/*.ts", "**/*.html"}, ChangeTypeSource},
		{cfg.SrcDir(), []string{"**/*.less"}, ChangeTypeStyle},
	}

	c := &Classifier{}
	for _, def := range defs {
		match, err := stream.Compile(def.patterns...)
		if err != nil {
			return nil, err
		}
		c.rules = append(c.rules, rule{dir: def.dir, match: match, change: def.change})
	}
	return c, nil
}

// Classify returns the change type of path, or false when the path is not
// watched. Temporary files left by atomic writes are ignored.
func (c *Classifier) Classify(path string) (ChangeType, bool) {
	if strings.HasSuffix(path, ".tmp") {
		return 0, false
	}
	for _, r := range c.rules {
		rel, err := filepath.Rel(r.dir, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		if r.match.Match(rel) {
			return r.change, true
		}
	}
	return 0, false
}
