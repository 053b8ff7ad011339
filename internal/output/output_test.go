package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"shelfscan/internal/config"
	"shelfscan/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysNaturalOrder(t *testing.T) {
	m := New()
	m.Set("Shelf 10", []int{1})
	m.Set("Shelf 2", []int{2})
	m.Set("Shelf 1", []int{3})

	assert.Equal(t, []string{"Shelf 1", "Shelf 2", "Shelf 10"}, m.Keys())
}

func TestGetReturnsCopy(t *testing.T) {
	m := New()
	m.Set("a", []int{1, 2})
	vals, ok := m.Get("a")
	require.True(t, ok)
	vals[0] = 99

	again, _ := m.Get("a")
	assert.Equal(t, []int{1, 2}, again)
}

func TestManualEdits(t *testing.T) {
	m := New()
	m.Set("a", []int{10, 30})

	require.NoError(t, m.AddValue("a", 1, 20))
	require.NoError(t, m.AddValue("a", 3, 40))
	vals, _ := m.Get("a")
	assert.Equal(t, []int{10, 20, 30, 40}, vals)

	require.NoError(t, m.RemoveValue("a", 0))
	vals, _ = m.Get("a")
	assert.Equal(t, []int{20, 30, 40}, vals)

	assert.ErrorIs(t, m.AddValue("a", 9, 1), ErrPosition)
	assert.ErrorIs(t, m.RemoveValue("a", 3), ErrPosition)
	assert.ErrorIs(t, m.RemoveValue("missing", 0), ErrNoEntry)

	require.NoError(t, m.AddValue("new", 0, 0))
	vals, _ = m.Get("new")
	assert.Equal(t, []int{0}, vals)
}

func TestGeneratePrefersEdits(t *testing.T) {
	computed := FromEntries(map[string][]int{
		"Shelf 10": {1},
		"Shelf 2":  {2},
		"Shelf 1":  {3},
	})
	edits := FromEntries(map[string][]int{
		"Shelf 2": {22, 23},
		"Shelf 4": {4},
	})

	out := Generate(edits, computed)
	assert.Equal(t, []string{"Shelf 1", "Shelf 2", "Shelf 4", "Shelf 10"}, out.Keys())
	v, _ := out.Get("Shelf 2")
	assert.Equal(t, []int{22, 23}, v)
	v, _ = out.Get("Shelf 10")
	assert.Equal(t, []int{1}, v)

	only := Generate(nil, computed)
	assert.Equal(t, computed.Snapshot(), only.Snapshot())
}

func TestDefaultsInEffect(t *testing.T) {
	store := config.NewStore(params.Default())
	ids := []string{"a", "b"}
	assert.True(t, DefaultsInEffect(store, ids))

	require.NoError(t, store.Set("a", params.Default()))
	assert.True(t, DefaultsInEffect(store, ids))

	require.NoError(t, store.Set("b", params.Default().WithDilation(5, 5)))
	assert.False(t, DefaultsInEffect(store, ids))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := FromEntries(map[string][]int{
		"scans/Shelf 10.png": {1200, 1199},
		"scans/Shelf 2.png":  {7},
		"scans/Shelf 1.png":  {},
	})

	now := time.Date(2024, 3, 9, 15, 4, 5, 0, time.Local)
	path, err := Save(m, dir, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2024-03-09_Output.json"), path)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Snapshot(), loaded.Snapshot())
}

func TestMarshalLayout(t *testing.T) {
	m := FromEntries(map[string][]int{
		"Shelf 10": {5},
		"Shelf 2":  {1, 2},
	})
	data, err := Marshal(m)
	require.NoError(t, err)

	want := "{\n" +
		"    \"Shelf 2\": [\n" +
		"        1,\n" +
		"        2\n" +
		"    ],\n" +
		"    \"Shelf 10\": [\n" +
		"        5\n" +
		"    ]\n" +
		"}"
	assert.Equal(t, want, string(data))

	empty, err := Marshal(New())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(empty))
}

func TestMarshalKeyEscaping(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"scans/a<b&c>.png", `"scans/a<b&c>.png"`},
		{"Regal é.png", `"Regal \u00e9.png"`},
		{"shelf 😀.png", `"shelf \ud83d\ude00.png"`},
		{"say \"hi\"\t.png", `"say \"hi\"\t.png"`},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			m := FromEntries(map[string][]int{tt.id: {7}})
			data, err := Marshal(m)
			require.NoError(t, err)
			assert.Contains(t, string(data), "    "+tt.want+": [")

			path := filepath.Join(t.TempDir(), "out.json")
			require.NoError(t, os.WriteFile(path, data, 0o644))
			loaded, err := Load(path)
			require.NoError(t, err)
			v, ok := loaded.Get(tt.id)
			require.True(t, ok)
			assert.Equal(t, []int{7}, v)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[1,2]"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	path, err := Latest(dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	for _, d := range []time.Time{
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
	} {
		_, err := Save(New(), dir, d)
		require.NoError(t, err)
	}
	path, err = Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2024-11-02_Output.json"), path)
}
