package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/internal/config"
	"github.com/comalice/playerstate/internal/production"
)

// store is a Persister the demo can close.
type store interface {
	production.Persister
	Close() error
}

type nopCloser struct{ production.Persister }

func (nopCloser) Close() error { return nil }

// discard is the "none" backend.
type discard struct{}

func (discard) Save(context.Context, playerstate.SaveData) error { return nil }

func (discard) Load(context.Context, string) (playerstate.SaveData, error) {
	return playerstate.SaveData{}, production.ErrNotFound
}

func (discard) Close() error { return nil }

func openStore(cfg config.SaveConfig) (store, error) {
	switch cfg.Backend {
	case "", "none":
		return discard{}, nil
	case "json":
		p, err := production.NewJSONPersister(cfg.Path)
		if err != nil {
			return nil, err
		}
		return nopCloser{p}, nil
	case "yaml":
		p, err := production.NewYAMLPersister(cfg.Path)
		if err != nil {
			return nil, err
		}
		return nopCloser{p}, nil
	case "sqlite":
		path := cfg.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "saves.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		db, err := production.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown save backend %q", cfg.Backend)
	}
}
