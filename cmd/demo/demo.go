package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/examples/player"
	"github.com/comalice/playerstate/internal/config"
	"github.com/comalice/playerstate/internal/production"
	"github.com/comalice/playerstate/internal/transport"
	"github.com/comalice/playerstate/netsync"
	"github.com/comalice/playerstate/realtime"
)

type demo struct {
	cfg    *config.Config
	logger *slog.Logger
	world  *playerstate.World
	store  store

	tr      *transport.Transport
	session *netsync.Session
	rt      *realtime.Runtime

	// offline and server processes steer a player of their own
	own    *playerstate.Entity
	loaded bool
}

func parseRole(s string) (transport.Role, netsync.Role, error) {
	switch s {
	case "", "none":
		// Offline owns its player the way a server does.
		return transport.RoleNone, netsync.RoleServer, nil
	case "server":
		return transport.RoleServer, netsync.RoleServer, nil
	case "client":
		return transport.RoleClient, netsync.RoleClient, nil
	default:
		return 0, 0, fmt.Errorf("unknown net role %q", s)
	}
}

func (d *demo) setup(ctx context.Context) error {
	trRole, syncRole, err := parseRole(d.cfg.Net.Role)
	if err != nil {
		return err
	}

	var opts []realtime.Option
	if trRole != transport.RoleNone {
		tcfg := transport.DefaultConfig()
		tcfg.Role = trRole
		tcfg.Kind = transport.Kind(d.cfg.Net.Transport)
		tcfg.Address = d.cfg.Net.Address
		tcfg.Path = d.cfg.Net.Path
		tcfg.MaxPeers = d.cfg.Net.MaxPeers
		tcfg.ConnectTimeout = d.cfg.Net.ConnectTimeout
		tcfg.WriteTimeout = d.cfg.Net.WriteTimeout
		d.tr = transport.New(tcfg, d.logger.With(slog.String("layer", "transport")))

		d.session, err = netsync.New(d.world, netsync.Config{
			Role:       syncRole,
			Name:       d.cfg.Net.Name,
			MaxPending: d.cfg.Net.MaxPending,
		}, d.tr,
			netsync.WithLogger(d.logger.With(slog.String("layer", "netsync"))),
			netsync.WithHostFactory(func(_ playerstate.EntityRef, name string) any {
				return &player.Player{Name: name}
			}))
		if err != nil {
			return err
		}
		d.tr.SetHandlers(d.session.Handlers())
		opts = append(opts, realtime.WithSyncer(d.session))
	}

	if syncRole != netsync.RoleClient {
		d.own, err = d.world.Attach(&player.Player{Name: d.cfg.Net.Name})
		if err != nil {
			return err
		}
		d.load(ctx, d.own)
	}

	opts = append(opts,
		realtime.WithLogger(d.logger),
		realtime.WithTickHook(d.onTick))
	d.rt = realtime.NewRuntime(d.world, realtime.Config{TickRate: d.cfg.Tick.Rate}, opts...)

	if d.tr != nil {
		if err := d.tr.Start(ctx); err != nil {
			return fmt.Errorf("start transport: %w", err)
		}
		d.logger.Info("transport started",
			slog.String("role", d.cfg.Net.Role),
			slog.String("address", d.cfg.Net.Address))
	}
	return nil
}

// localEntity is the player this process steers, or nil before a client is welcomed.
func (d *demo) localEntity() *playerstate.Entity {
	if d.own != nil {
		return d.own
	}
	if d.session != nil {
		return d.session.Local()
	}
	return nil
}

// onTick runs on the tick goroutine after every tick.
func (d *demo) onTick(tick uint64) {
	e := d.localEntity()
	if e == nil {
		return
	}
	if !d.loaded {
		d.load(context.Background(), e)
	}
	if p, ok := e.Host().(*player.Player); ok {
		p.Input = script(tick)
	}
}

func (d *demo) load(ctx context.Context, e *playerstate.Entity) {
	d.loaded = true
	sd, err := d.store.Load(ctx, d.cfg.Net.Name)
	if errors.Is(err, production.ErrNotFound) {
		return
	}
	if err != nil {
		d.logger.Warn("load save data", slog.Any("error", err))
		return
	}
	if err := e.Load(sd); err != nil {
		d.logger.Warn("save data partially applied", slog.Any("error", err))
	}
	d.logger.Info("save data loaded", slog.String("entity", d.cfg.Net.Name), slog.Int("states", len(sd.States)))
}

func (d *demo) save(ctx context.Context) {
	e := d.localEntity()
	if e == nil {
		return
	}
	if err := d.store.Save(ctx, e.Save(d.cfg.Net.Name)); err != nil {
		d.logger.Error("save", slog.Any("error", err))
		return
	}
	d.logger.Info("save data written", slog.String("entity", d.cfg.Net.Name))
}

// script is the demo's input: walk, jump and glide, then dash, on a four second loop.
func script(tick uint64) player.Input {
	switch t := tick % 240; {
	case t < 60:
		return player.Input{Move: true}
	case t < 62:
		return player.Input{Jump: true}
	case t < 120:
		return player.Input{Glide: true}
	case t < 122:
		return player.Input{Dash: true}
	default:
		return player.Input{}
	}
}
