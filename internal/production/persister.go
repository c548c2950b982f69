// Package production provides production integrations: save-data persistence,
// transition publishing, and graph visualization.
package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/comalice/playerstate"
)

// Persister stores one SaveData per entity key.
type Persister interface {
	Save(ctx context.Context, sd playerstate.SaveData) error
	Load(ctx context.Context, entity string) (playerstate.SaveData, error)
}

var (
	ErrNotFound = errors.New("save data not found")
	ErrBadKey   = errors.New("invalid entity key")
)

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	return nil
}

// filePersister writes one file per entity with a pluggable codec.
type filePersister struct {
	dir       string
	ext       string
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

func newFilePersister(dir, ext string, marshal func(any) ([]byte, error), unmarshal func([]byte, any) error) (*filePersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &filePersister{dir: dir, ext: ext, marshal: marshal, unmarshal: unmarshal}, nil
}

func (p *filePersister) Save(ctx context.Context, sd playerstate.SaveData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(sd.Entity); err != nil {
		return err
	}
	data, err := p.marshal(sd)
	if err != nil {
		return fmt.Errorf("%s marshal: %w", p.ext, err)
	}
	fn := filepath.Join(p.dir, sd.Entity+"."+p.ext)
	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, fn); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func (p *filePersister) Load(ctx context.Context, entity string) (playerstate.SaveData, error) {
	if err := ctx.Err(); err != nil {
		return playerstate.SaveData{}, err
	}
	if err := checkKey(entity); err != nil {
		return playerstate.SaveData{}, err
	}
	fn := filepath.Join(p.dir, entity+"."+p.ext)
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return playerstate.SaveData{}, fmt.Errorf("entity %q: %w", entity, ErrNotFound)
		}
		return playerstate.SaveData{}, fmt.Errorf("read %s: %w", fn, err)
	}
	var sd playerstate.SaveData
	if err := p.unmarshal(data, &sd); err != nil {
		return playerstate.SaveData{}, fmt.Errorf("%s unmarshal: %w", p.ext, err)
	}
	sd.Entity = entity
	return sd, nil
}

// JSONPersister stores save data as indented JSON files.
type JSONPersister struct {
	*filePersister
}

// NewJSONPersister creates a JSONPersister, ensuring the directory exists.
func NewJSONPersister(dir string) (*JSONPersister, error) {
	fp, err := newFilePersister(dir, "json",
		func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") },
		json.Unmarshal)
	if err != nil {
		return nil, err
	}
	return &JSONPersister{fp}, nil
}

// YAMLPersister stores save data as YAML files.
type YAMLPersister struct {
	*filePersister
}

// NewYAMLPersister creates a YAMLPersister, ensuring the directory exists.
func NewYAMLPersister(dir string) (*YAMLPersister, error) {
	fp, err := newFilePersister(dir, "yaml", yaml.Marshal, yaml.Unmarshal)
	if err != nil {
		return nil, err
	}
	return &YAMLPersister{fp}, nil
}
