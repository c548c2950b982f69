// Command demo runs a scripted player over playerstate. With net.role set to server it
// hosts a session other demo processes join as clients; with none it runs offline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/content"
	"github.com/comalice/playerstate/examples/player"
	"github.com/comalice/playerstate/internal/config"
	"github.com/comalice/playerstate/internal/logging"
	"github.com/comalice/playerstate/internal/production"
)

func main() {
	configPath := flag.String("config", "", "TOML config file")
	dotPath := flag.String("dot", "", "write a DOT snapshot of the local player here on exit")
	flag.Parse()

	if err := run(*configPath, *dotPath); err != nil {
		fmt.Fprintln(os.Stderr, "demo:", err)
		os.Exit(1)
	}
}

func run(configPath, dotPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	g, err := loadGraph(cfg.Content.Manifest)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Save)
	if err != nil {
		return err
	}
	defer store.Close()

	transitions := make(chan production.PublishedTransition, 256)
	publisher := production.NewChannelPublisher(g, transitions)
	world := playerstate.NewWorld(g,
		playerstate.WithLogger(logger),
		playerstate.WithObserver(publisher.Observer()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := &demo{cfg: cfg, logger: logger, world: world, store: store}
	if err := d.setup(ctx); err != nil {
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := d.rt.Start(egCtx); err != nil {
			return err
		}
		d.rt.Wait()
		return nil
	})
	eg.Go(func() error {
		for {
			select {
			case <-egCtx.Done():
				return nil
			case pt := <-transitions:
				logger.Debug("transition",
					slog.Uint64("entity", uint64(pt.Event.Entity)),
					slog.String("machine", pt.Machine),
					slog.String("from", pt.From),
					slog.String("to", pt.To),
					slog.Uint64("tick", pt.Event.Tick))
			}
		}
	})
	eg.Go(func() error {
		<-egCtx.Done()
		if d.tr == nil {
			return nil
		}
		return d.tr.Stop()
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	// The tick loop has exited, so the world is ours again.
	d.save(context.Background())
	if dotPath != "" {
		if e := d.localEntity(); e != nil {
			viz := &production.DefaultVisualizer{}
			if werr := os.WriteFile(dotPath, []byte(viz.ExportDOT(g, e)), 0o644); werr != nil {
				err = errors.Join(err, werr)
			}
		}
	}
	if n := publisher.Dropped(); n > 0 {
		logger.Warn("transitions dropped", slog.Uint64("count", n))
	}
	logger.Info("demo stopped")
	return err
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{Level: level, Format: format, Component: "demo"}), nil
}

// loadGraph registers the built-in player content plus the optional manifest.
func loadGraph(manifest string) (*playerstate.Graph, error) {
	r := playerstate.NewRegistry()
	if err := player.Register(r); err != nil {
		return nil, fmt.Errorf("player content: %w", err)
	}
	if manifest != "" {
		m, err := content.LoadFile(manifest)
		if err != nil {
			return nil, err
		}
		if err := m.Register(r, nil); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", manifest, err)
		}
	}
	return r.Build()
}
