package deps

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/logging"
	"github.com/ritzau/console-assembly/pkg/stream"
)

// Copier copies the installed node_modules tree verbatim into dist/libs.
type Copier struct {
	fs afero.Fs
}

func NewCopier(fsys afero.Fs) *Copier {
	return &Copier{fs: fsys}
}

func (c *Copier) Name() string { return "copy-dependencies" }

func (c *Copier) Run(ctx context.Context, cfg config.Config) error {
	n, err := stream.CopyTree(c.fs, cfg.NodeModules(), cfg.DistLibs())
	if err != nil {
		return fmt.Errorf("copying dependencies: %w", err)
	}
	logging.New("task.copy-dependencies").Info("copied dependencies", "files", n, "to", cfg.DistLibs())
	return nil
}

// ImageCopier merges the image directories of vendored packages into dist/img.
type ImageCopier struct {
	fs afero.Fs
}

func NewImageCopier(fsys afero.Fs) *ImageCopier {
	return &ImageCopier{fs: fsys}
}

func (c *ImageCopier) Name() string { return "copy-images" }

func (c *ImageCopier) Run(ctx context.Context, cfg config.Config) error {
	log := logging.New("task.copy-images")

	roots, err := DiscoverImageDirs(c.fs, cfg.NodeModules(), cfg.Vendor.Namespace, cfg.Vendor.UIKit)
	if err != nil {
		return err
	}

	total := 0
	for _, root := range roots {
		exists, err := afero.DirExists(c.fs, root)
		if err != nil {
			return fmt.Errorf("checking %s: %w", root, err)
		}
		if !exists {
			log.Debug("no image directory", "dir", root)
			continue
		}

		n, err := stream.CopyTree(c.fs, root, cfg.DistImg())
		if err != nil {
			return fmt.Errorf("copying images from %s: %w", root, err)
		}
		log.Debug("copied images", "dir", root, "files", n)
		total += n
	}

	log.Info("copied images", "files", total, "to", cfg.DistImg())
	return nil
}

// DiscoverImageDirs lists the image roots to merge: dist/img of every package
// in the namespace that has one, followed by the UI kit's dist/img, which is
// always queued whether or not it exists. A missing namespace contributes
// nothing.
func DiscoverImageDirs(fsys afero.Fs, nodeModules, namespace, uikit string) ([]string, error) {
	var roots []string

	nsDir := filepath.Join(nodeModules, namespace)
	exists, err := afero.DirExists(fsys, nsDir)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", nsDir, err)
	}
	if exists {
		entries, err := afero.ReadDir(fsys, nsDir)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", nsDir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			img := imageDir(nsDir, entry.Name())
			found, err := afero.DirExists(fsys, img)
			if err != nil {
				return nil, fmt.Errorf("checking %s: %w", img, err)
			}
			if found {
				roots = append(roots, img)
			}
		}
	}

	if uikit != "" {
		roots = append(roots, imageDir(nodeModules, uikit))
	}
	return roots, nil
}

func imageDir(parent, pkg string) string {
	return filepath.Join(parent, pkg, "dist", "img")
}
