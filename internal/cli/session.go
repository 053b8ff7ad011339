package cli

import (
	"context"
	"errors"
	"fmt"

	"shelfscan/internal/classifier"
	"shelfscan/internal/config"
	"shelfscan/internal/logging"
	"shelfscan/internal/output"
	"shelfscan/internal/pipeline"

	"github.com/spf13/viper"
)

// session bundles everything one command needs. It replaces process-wide
// singletons: each command opens its own and closes it when done.
type session struct {
	settings config.Settings
	store    *config.Store
	cls      classifier.Classifier
	pipe     *pipeline.Pipeline
}

func loadSettings() (config.Settings, error) {
	return config.Load(viper.GetViper())
}

func openStore(s config.Settings) (*config.Store, error) {
	return config.Open(s.Paths.Params, s.Detection)
}

// openSession loads settings and the parameter store. The classifier is
// opened only when withClassifier is set.
func openSession(withClassifier bool) (*session, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	store, err := openStore(settings)
	if err != nil {
		return nil, err
	}

	var cls classifier.Classifier
	if withClassifier {
		opts, err := settings.ClassifierOptions()
		if err != nil {
			return nil, err
		}
		err = logging.LogOperation("load_classifier", opts.Backend, func() error {
			cls, err = classifier.Open(opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("open classifier: %w", err)
		}
	}

	pipe := pipeline.New(store, cls, nil, pipeline.Options{
		ImagesDir:    settings.Paths.Images,
		SaveDir:      settings.Paths.SaveImages,
		PreviewWidth: settings.Annotate.PreviewWidth,
		Style:        settings.Style(),
	})
	return &session{settings: settings, store: store, cls: cls, pipe: pipe}, nil
}

func (s *session) loadImages(ctx context.Context) error {
	return logging.LogOperation("load_images", s.settings.Paths.Images, func() error {
		return s.pipe.LoadImages(ctx)
	})
}

// resume loads the newest saved output so already-read images are skipped.
func (s *session) resume() error {
	path, err := output.Latest(s.settings.Paths.Output)
	if err != nil || path == "" {
		return err
	}
	if err := s.pipe.ReloadOutput(path); err != nil && !errors.Is(err, pipeline.ErrNoImages) {
		return err
	}
	return nil
}

// save writes the computed output to today's file.
func (s *session) save() (string, error) {
	return output.Save(output.Generate(nil, s.pipe.Output()), s.settings.Paths.Output, now())
}

func (s *session) Close() {
	s.pipe.Close()
	if s.cls != nil {
		s.cls.Close()
	}
}
