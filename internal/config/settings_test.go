package config

import (
	"strings"
	"testing"

	"shelfscan/internal/classifier"
	"shelfscan/internal/params"
	"shelfscan/pkg/colorutil"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, params.Default(), s.Detection)
	assert.Equal(t, classifier.BackendNet, s.Model.Backend)
	assert.Equal(t, ":8080", s.Server.Addr)
	assert.Equal(t, colorutil.Mark, s.Style().BoxColor)
}

func TestLoadYAML(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
paths:
  images: /srv/scans
model:
  backend: tesseract
  layout: channels_first
detection:
  dilation_width: 25
annotate:
  color: "#ff0000"
`)))

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/srv/scans", s.Paths.Images)
	assert.Equal(t, 25, s.Detection.DilationWidth)
	assert.Equal(t, 1, s.Detection.DilationHeight)
	assert.Equal(t, uint8(255), s.Style().BoxColor.R)

	opts, err := s.ClassifierOptions()
	require.NoError(t, err)
	assert.Equal(t, classifier.BackendTesseract, opts.Backend)
	assert.Equal(t, classifier.ChannelsFirst, opts.Net.Layout)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"detection.crop_max_width": "10",
		"model.layout":             "planar",
		"model.input_size":         "28",
		"annotate.color":           "green",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set(key, val)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}
