package config

import (
	"os"
	"path/filepath"
	"testing"

	"shelfscan/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsFallsBackToDefault(t *testing.T) {
	s := NewStore(params.Default())
	assert.Equal(t, params.Default(), s.Params("Shelf 1.png"))

	custom := params.Default().WithDilation(25, 3)
	require.NoError(t, s.Set("Shelf 1.png", custom))
	assert.Equal(t, custom, s.Params("Shelf 1.png"))
	assert.Equal(t, params.Default(), s.Params("Shelf 2.png"))
	assert.True(t, s.HasOverride("Shelf 1.png"))

	s.Reset("Shelf 1.png")
	assert.Equal(t, params.Default(), s.Params("Shelf 1.png"))
	assert.False(t, s.HasOverride("Shelf 1.png"))
}

func TestSetRejectsInvalid(t *testing.T) {
	s := NewStore(params.Default())
	err := s.Set("a", params.Default().WithCropEnvelope(900, 100, 0, 10))
	assert.ErrorIs(t, err, params.ErrInvertedRange)
	assert.False(t, s.HasOverride("a"))
}

func TestAllReportsCustom(t *testing.T) {
	s := NewStore(params.Default())

	_, custom := s.All()
	assert.False(t, custom, "no overrides means defaults")

	require.NoError(t, s.Set("a", params.Default()))
	_, custom = s.All()
	assert.False(t, custom, "overrides equal to the default are not custom")

	require.NoError(t, s.Set("b", params.Default().WithDigitMinimum(0, 0)))
	all, custom := s.All()
	assert.True(t, custom)
	assert.Len(t, all, 2)

	s.ResetAll()
	all, custom = s.All()
	assert.False(t, custom)
	assert.Empty(t, all)
}

func TestOpenCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Core", "Config", DefaultParamsFile)

	s, err := Open(path, params.Default())
	require.NoError(t, err)
	assert.Equal(t, params.Default(), s.Default())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `    "Crop Min Width": 590`)
}

func TestOpenReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultParamsFile)
	body := `{"Crop Min Width": 100, "Crop Max Width": 900, "Crop Min Height": 50,
"Crop Max Height": 9999, "Digit Min Width": 10, "Digit Min Height": 12,
"Dilation Width": 15, "Dilation Height": 2}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	s, err := Open(path, params.Default())
	require.NoError(t, err)
	assert.Equal(t, 100, s.Default().CropMinWidth)
	assert.Equal(t, 2, s.Default().DilationHeight)
}

func TestOpenTreatsEmptyObjectAsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultParamsFile)
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	s, err := Open(path, params.Default())
	require.NoError(t, err)
	assert.Equal(t, params.Default(), s.Default())
}

func TestOpenRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultParamsFile)
	body := `{"Crop Min Width": 10, "Crop Max Width": 5, "Dilation Width": 1, "Dilation Height": 1}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := Open(path, params.Default())
	assert.ErrorIs(t, err, params.ErrInvertedRange)
}

func TestSetDefaultPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultParamsFile)
	s, err := Open(path, params.Default())
	require.NoError(t, err)

	changed := params.Default().WithDilation(30, 2)
	require.NoError(t, s.SetDefault(changed))

	reopened, err := Open(path, params.Default())
	require.NoError(t, err)
	assert.Equal(t, changed, reopened.Default())

	require.NoError(t, reopened.ResetDefault())
	assert.Equal(t, params.Default(), reopened.Default())
}

func TestOverridesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultParamsFile)
	s, err := Open(path, params.Default())
	require.NoError(t, err)

	custom := params.Default().WithCropEnvelope(0, 2000, 0, 9999)
	require.NoError(t, s.Set("scans/Shelf 3.png", custom))
	require.NoError(t, s.Save())
	assert.FileExists(t, overridesPath(path))

	reopened, err := Open(path, params.Default())
	require.NoError(t, err)
	assert.Equal(t, custom, reopened.Params("scans/Shelf 3.png"))
}

func TestOverridesPath(t *testing.T) {
	assert.Equal(t, "cfg/Config_Image.images.json", overridesPath("cfg/Config_Image.json"))
}
