package usemin

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/logging"
	"github.com/ritzau/console-assembly/pkg/stream"
)

// FallbackPage is served for unknown paths under the console prefix.
const FallbackPage = "404.html"

// Fallback copies dist/index.html byte for byte to dist/404.html.
type Fallback struct {
	fs afero.Fs
}

func NewFallback(fsys afero.Fs) *Fallback {
	return &Fallback{fs: fsys}
}

func (f *Fallback) Name() string { return "404" }

func (f *Fallback) Run(ctx context.Context, cfg config.Config) error {
	index := filepath.Join(cfg.DistDir(), filepath.Base(cfg.EntryHTML()))
	page, err := afero.ReadFile(f.fs, index)
	if err != nil {
		return fmt.Errorf("reading rewritten entry page: %w", err)
	}

	target := filepath.Join(cfg.DistDir(), FallbackPage)
	if err := stream.WriteFile(f.fs, target, page); err != nil {
		return err
	}
	logging.New("task.404").Debug("wrote fallback page", "file", target)
	return nil
}
