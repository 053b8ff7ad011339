package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"shelfscan/internal/logging"
	"shelfscan/internal/pipeline"
	"shelfscan/internal/watch"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process new scans as they arrive",
	Long: `Watch processes the scans already in the images directory, then reads
every new scan copied into it and updates today's output file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(true)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.loadImages(ctx); err != nil && !errors.Is(err, pipeline.ErrNoImages) {
			return err
		}
		if err := s.resume(); err != nil {
			return err
		}
		if err := processAndSave(ctx, s); err != nil {
			return err
		}

		return watch.New(s.settings.Paths.Images).Run(ctx, func(path string) {
			added, err := s.pipe.AddImage(path)
			if err != nil {
				logging.Error("scan not loaded", "path", path, "error", err)
				return
			}
			if !added {
				return
			}
			if err := processAndSave(ctx, s); err != nil {
				logging.Error("processing failed", "path", path, "error", err)
			}
		})
	},
}

// processAndSave reads every scan without output and saves the result.
// An empty directory is not an error here.
func processAndSave(ctx context.Context, s *session) error {
	sum, err := s.pipe.ProcessAll(ctx, false)
	if errors.Is(err, pipeline.ErrNoImages) {
		return nil
	}
	if err != nil {
		return err
	}
	if sum.Processed == 0 {
		return nil
	}
	path, err := s.save()
	if err != nil {
		return err
	}
	logging.Info("output saved", "path", path, "processed", sum.Processed)
	return nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
