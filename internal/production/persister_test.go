package production

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/playerstate"
)

func sampleSave() playerstate.SaveData {
	return playerstate.SaveData{
		Entity: "alice",
		States: []playerstate.SavedState{
			{Mod: "core", Name: "Dash", Tag: playerstate.Tag{"level": 3}},
			{Mod: "core", Name: "Stats", Tag: playerstate.Tag{"vars": map[string]any{"hp": 10, "title": "knight"}}},
		},
		Unloaded: []playerstate.SavedState{
			{Mod: "gone", Name: "Wings", Tag: playerstate.Tag{"span": 4}},
		},
	}
}

// checkRoundTrip compares through the Tag getters, since JSON turns ints into floats.
func checkRoundTrip(t *testing.T, got playerstate.SaveData) {
	t.Helper()
	require.Equal(t, "alice", got.Entity)
	require.Len(t, got.States, 2)
	require.Len(t, got.Unloaded, 1)

	assert.Equal(t, "core/Dash", got.States[0].FullName())
	level, err := got.States[0].Tag.Uint32("level")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), level)

	vars, err := got.States[1].Tag.Sub("vars")
	require.NoError(t, err)
	hp, err := vars.Int("hp")
	require.NoError(t, err)
	assert.Equal(t, int64(10), hp)
	title, err := vars.String("title")
	require.NoError(t, err)
	assert.Equal(t, "knight", title)

	assert.Equal(t, "gone/Wings", got.Unloaded[0].FullName())
}

func persisters(t *testing.T) map[string]Persister {
	t.Helper()
	jp, err := NewJSONPersister(t.TempDir())
	require.NoError(t, err)
	yp, err := NewYAMLPersister(t.TempDir())
	require.NoError(t, err)
	sp, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sp.Close() })
	return map[string]Persister{"json": jp, "yaml": yp, "sqlite": sp}
}

func TestPersistersRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, p := range persisters(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.Save(ctx, sampleSave()))
			got, err := p.Load(ctx, "alice")
			require.NoError(t, err)
			checkRoundTrip(t, got)
		})
	}
}

func TestPersistersOverwrite(t *testing.T) {
	ctx := context.Background()
	for name, p := range persisters(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.Save(ctx, sampleSave()))
			smaller := sampleSave()
			smaller.States = smaller.States[:1]
			smaller.Unloaded = nil
			require.NoError(t, p.Save(ctx, smaller))

			got, err := p.Load(ctx, "alice")
			require.NoError(t, err)
			assert.Len(t, got.States, 1)
			assert.Empty(t, got.Unloaded)
		})
	}
}

func TestPersistersErrors(t *testing.T) {
	ctx := context.Background()
	for name, p := range persisters(t) {
		t.Run(name, func(t *testing.T) {
			_, err := p.Load(ctx, "nobody")
			assert.ErrorIs(t, err, ErrNotFound)

			bad := sampleSave()
			bad.Entity = "../escape"
			assert.ErrorIs(t, p.Save(ctx, bad), ErrBadKey)
			_, err = p.Load(ctx, "")
			assert.ErrorIs(t, err, ErrBadKey)
		})
	}
}

func TestSQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/saves.db"
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleSave()))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	checkRoundTrip(t, got)
}

// TestSaveLoadThroughEntity drives the persister from a live entity.
func TestSaveLoadThroughEntity(t *testing.T) {
	g := testGraph(t)
	e, err := g.Instantiate(nil)
	require.NoError(t, err)
	playerstate.MustGet[*playerstate.DataAbility](e).SetLevel(4)

	p, err := NewYAMLPersister(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, p.Save(context.Background(), e.Save("bob")))

	sd, err := p.Load(context.Background(), "bob")
	require.NoError(t, err)
	e2, err := g.Instantiate(nil)
	require.NoError(t, err)
	require.NoError(t, e2.Load(sd))
	assert.Equal(t, uint32(4), playerstate.MustGet[*playerstate.DataAbility](e2).Level)
}
