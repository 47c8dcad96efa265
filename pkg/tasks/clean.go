package tasks

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/logging"
)

// Clean removes the output and intermediate directories.
type Clean struct {
	fs afero.Fs
}

func NewClean(fsys afero.Fs) *Clean {
	return &Clean{fs: fsys}
}

func (c *Clean) Name() string { return "clean" }

func (c *Clean) Run(ctx context.Context, cfg config.Config) error {
	for _, dir := range []string{cfg.DistDir(), cfg.TempDir()} {
		if err := c.fs.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	}
	logging.New("task.clean").Debug("removed build directories", "dist", cfg.DistDir(), "temp", cfg.TempDir())
	return nil
}
