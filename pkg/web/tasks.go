package web

import (
	"context"

	"github.com/spf13/afero"

	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/logging"
	"github.com/ritzau/console-assembly/pkg/pubsub"
)

// Connect runs the dev server until its context is cancelled.
type Connect struct {
	fs        afero.Fs
	publisher pubsub.Publisher
}

func NewConnect(fsys afero.Fs, publisher pubsub.Publisher) *Connect {
	return &Connect{fs: fsys, publisher: publisher}
}

func (c *Connect) Name() string { return "connect" }

func (c *Connect) Run(ctx context.Context, cfg config.Config) error {
	server, err := NewServer(cfg, c.fs, c.publisher)
	if err != nil {
		return err
	}
	return server.Start(ctx)
}

// Reload tells every connected page to refresh.
type Reload struct {
	publisher pubsub.Publisher
}

func NewReload(publisher pubsub.Publisher) *Reload {
	return &Reload{publisher: publisher}
}

func (r *Reload) Name() string { return "reload" }

func (r *Reload) Run(ctx context.Context, cfg config.Config) error {
	logging.New("task.reload").Debug("reloading pages")
	return r.publisher.Publish(pubsub.TopicReload, "reload", pubsub.Reload{Path: cfg.DistDir()})
}
