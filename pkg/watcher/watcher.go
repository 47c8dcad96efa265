package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/console-assembly/pkg/logging"
)

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// Root is a directory to watch. A recursive root covers every directory
// below it, including ones created later; otherwise only its direct entries
// are watched.
type Root struct {
	Path      string
	Recursive bool
}

// Tree watches path and everything below it.
func Tree(path string) Root { return Root{Path: path, Recursive: true} }

// Dir watches the entries of path only.
func Dir(path string) Root { return Root{Path: path} }

func (r Root) String() string {
	if r.Recursive {
		return r.Path + "/**"
	}
	return r.Path
}

// FileWatcher watches directories and reports classified changes.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	roots    []Root
	classify func(path string) (ChangeType, bool)
	events   chan ChangeEvent
}

// NewFileWatcher creates a watcher for roots. Only paths classify accepts
// are reported.
func NewFileWatcher(classify func(path string) (ChangeType, bool), roots ...Root) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  watcher,
		roots:    roots,
		classify: classify,
		events:   make(chan ChangeEvent, 100),
	}, nil
}

// Start adds the roots and begins processing events until ctx is cancelled.
// A root that does not exist yet is skipped with a warning.
func (fw *FileWatcher) Start(ctx context.Context) error {
	watched := 0
	for _, root := range fw.roots {
		if _, err := os.Stat(root.Path); errors.Is(err, fs.ErrNotExist) {
			logging.Warn("watch root does not exist, skipping", "path", root.Path)
			continue
		}
		n, err := fw.add(root)
		if err != nil {
			fw.watcher.Close()
			return err
		}
		watched += n
	}
	logging.Info("watching for changes", "roots", fw.roots, "directories", watched)

	go fw.processEvents(ctx)
	return nil
}

func (fw *FileWatcher) add(root Root) (int, error) {
	if !root.Recursive {
		if err := fw.watcher.Add(root.Path); err != nil {
			return 0, fmt.Errorf("failed to watch %s: %w", root.Path, err)
		}
		return 1, nil
	}
	return fw.addTree(root.Path)
}

// addTree watches dir and every directory below it.
func (fw *FileWatcher) addTree(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries we can't access
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		count++
		return nil
	})
	return count, err
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if root, ok := fw.covering(event.Name); ok {
						if _, err := fw.add(root); err != nil {
							logging.Warn("failed to watch new directory", "path", event.Name, "error", err)
						}
					}
					continue
				}
			}

			change, ok := fw.classify(event.Name)
			if !ok {
				continue
			}
			logging.Trace("file changed", "path", event.Name, "op", event.Op.String(), "type", change.String())

			select {
			case fw.events <- ChangeEvent{Type: change, Paths: []string{event.Name}, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// covering returns how a directory created while watching is watched: as a
// tree when it lies in a recursive root, or on its own when it recreates a
// shallow root.
func (fw *FileWatcher) covering(dir string) (Root, bool) {
	for _, root := range fw.roots {
		if root.Recursive && within(root.Path, dir) {
			return Tree(dir), true
		}
		if filepath.Clean(root.Path) == filepath.Clean(dir) {
			return root, true
		}
	}
	return Root{}, false
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Watched lists the directories currently watched.
func (fw *FileWatcher) Watched() []string {
	list := fw.watcher.WatchList()
	sort.Strings(list)
	return list
}

// Events returns the channel of change events. It is closed when the
// watcher stops.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
