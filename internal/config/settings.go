package config

import (
	"fmt"
	"path/filepath"

	"shelfscan/internal/classifier"
	"shelfscan/internal/params"
	"shelfscan/internal/region"
	"shelfscan/pkg/colorutil"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides (SHELFSCAN_PATHS_IMAGES).
const EnvPrefix = "SHELFSCAN"

// Settings is the typed view of the viper configuration.
type Settings struct {
	Paths     PathSettings    `mapstructure:"paths"`
	Model     ModelSettings   `mapstructure:"model"`
	Detection params.Set      `mapstructure:"detection"`
	Annotate  AnnotateSetting `mapstructure:"annotate"`
	Server    ServerSettings  `mapstructure:"server"`
	LogLevel  string          `mapstructure:"log_level"`
}

// PathSettings locates inputs and outputs on disk.
type PathSettings struct {
	Images     string `mapstructure:"images"`
	Output     string `mapstructure:"output"`
	SaveImages string `mapstructure:"save_images"` // Region crops and previews; empty disables
	Params     string `mapstructure:"params"`
}

// ModelSettings selects the digit classifier.
type ModelSettings struct {
	Path      string  `mapstructure:"path"`
	Config    string  `mapstructure:"config"`
	Backend   string  `mapstructure:"backend"`
	Layout    string  `mapstructure:"layout"`
	InputSize int     `mapstructure:"input_size"`
	Scale     float64 `mapstructure:"scale"`
}

// AnnotateSetting controls the detection overlay.
type AnnotateSetting struct {
	Color        string `mapstructure:"color"`
	PreviewWidth int    `mapstructure:"preview_width"`
}

// ServerSettings configures the HTTP status surface.
type ServerSettings struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers every key with its default value so that
// AutomaticEnv can resolve nested keys.
func SetDefaults(v *viper.Viper) {
	def := params.Default()

	v.SetDefault("paths.images", "Scans")
	v.SetDefault("paths.output", filepath.Join("Core", "DataOut"))
	v.SetDefault("paths.save_images", "")
	v.SetDefault("paths.params", filepath.Join("Core", "Config", DefaultParamsFile))

	v.SetDefault("model.path", "")
	v.SetDefault("model.config", "")
	v.SetDefault("model.backend", classifier.BackendNet)
	v.SetDefault("model.layout", classifier.ChannelsLast.String())
	v.SetDefault("model.input_size", classifier.InputSize)
	v.SetDefault("model.scale", 1.0)

	v.SetDefault("detection.crop_min_width", def.CropMinWidth)
	v.SetDefault("detection.crop_max_width", def.CropMaxWidth)
	v.SetDefault("detection.crop_min_height", def.CropMinHeight)
	v.SetDefault("detection.crop_max_height", def.CropMaxHeight)
	v.SetDefault("detection.digit_min_width", def.DigitMinWidth)
	v.SetDefault("detection.digit_min_height", def.DigitMinHeight)
	v.SetDefault("detection.dilation_width", def.DilationWidth)
	v.SetDefault("detection.dilation_height", def.DilationHeight)

	v.SetDefault("annotate.color", colorutil.Hex(colorutil.Mark))
	v.SetDefault("annotate.preview_width", 800)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log_level", "info")
}

// Load unmarshals v into Settings and validates the parts that are
// resolved once at startup.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Detection.Validate(); err != nil {
		return Settings{}, fmt.Errorf("detection: %w", err)
	}
	if s.Model.InputSize != classifier.InputSize {
		return Settings{}, fmt.Errorf("model.input_size %d: only %d is supported", s.Model.InputSize, classifier.InputSize)
	}
	if _, err := classifier.ParseLayout(s.Model.Layout); err != nil {
		return Settings{}, fmt.Errorf("model.layout: %w", err)
	}
	if _, err := colorutil.Parse(s.Annotate.Color, colorutil.Mark); err != nil {
		return Settings{}, fmt.Errorf("annotate.color: %w", err)
	}
	return s, nil
}

// ClassifierOptions resolves the classifier configuration, including the
// channel layout, once.
func (s Settings) ClassifierOptions() (classifier.Options, error) {
	layout, err := classifier.ParseLayout(s.Model.Layout)
	if err != nil {
		return classifier.Options{}, err
	}
	return classifier.Options{
		Backend: s.Model.Backend,
		Net: classifier.NetOptions{
			ModelPath:  s.Model.Path,
			ConfigPath: s.Model.Config,
			Layout:     layout,
			Scale:      s.Model.Scale,
		},
	}, nil
}

// Style returns the overlay style with the configured box color.
func (s Settings) Style() region.Style {
	style := region.DefaultStyle()
	c, err := colorutil.Parse(s.Annotate.Color, style.BoxColor)
	if err == nil {
		style.BoxColor = c
	}
	return style
}
