package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"shelfscan/internal/app"
	"shelfscan/internal/logging"
	"shelfscan/internal/output"
	"shelfscan/internal/pipeline"
	"shelfscan/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	processReprocess bool
	processImage     string
	processNoTUI     bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Read the shelf codes of every scan",
	Long: `Process extracts the numbers of every scan in the images directory and
saves them to today's output file.

Scans already present in the newest saved output are skipped unless
--reprocess is given. When no scan has its own parameters the run asks
before falling back to the defaults. With --image only that scan is read
and its entry is overwritten; this needs a saved output from a full run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(true)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.loadImages(ctx); err != nil {
			return err
		}
		if err := s.resume(); err != nil {
			return err
		}

		if processImage != "" {
			return processSingle(ctx, cmd.OutOrStdout(), s)
		}

		confirm := defaultConfirm()
		if err := confirmDefaults(s.store, s.pipe.IDs(), confirm); err != nil {
			return err
		}
		if processReprocess && s.pipe.Output().Len() > 0 &&
			!confirm("Saved output exists. Reprocess every image and overwrite it?") {
			return pipeline.ErrCancelled
		}

		sched := app.NewScheduler()
		job, err := sched.Launch("process", func(ctx context.Context) error {
			_, err := s.pipe.ProcessAll(ctx, processReprocess)
			return err
		})
		if err != nil {
			return err
		}

		if !processNoTUI && term.IsTerminal(int(os.Stdout.Fd())) {
			runProgressView(ctx, s.pipe, job, len(s.pipe.Records()))
		} else {
			app.Watch(ctx, job, app.DefaultPollInterval,
				func(elapsed int) { logging.Debug("processing", "elapsed_s", elapsed) },
				nil)
		}
		if err := job.Wait(); err != nil {
			return err
		}

		path, err := s.save()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d images to %s\n", s.pipe.Output().Len(), path)
		return nil
	},
}

// errNoBatchOutput is returned when a single scan is processed before any
// batch run has produced output.
var errNoBatchOutput = errors.New("no saved output yet: run process for every scan first")

// confirmDefaults asks before a batch run when no scan has its own
// parameters.
func confirmDefaults(src output.ParamSource, ids []string, confirm pipeline.Confirm) error {
	if !output.DefaultsInEffect(src, ids) {
		return nil
	}
	if !confirm("Default values are about to be used. Are all crop areas set?") {
		return pipeline.ErrCancelled
	}
	return nil
}

func requireBatchOutput(m *output.Map) error {
	if m.Len() == 0 {
		return errNoBatchOutput
	}
	return nil
}

func processSingle(ctx context.Context, out io.Writer, s *session) error {
	if err := requireBatchOutput(s.pipe.Output()); err != nil {
		return err
	}
	rec, err := s.pipe.Select(resolveImageID(s, processImage))
	if err != nil {
		return err
	}
	overwrite := true
	if s.pipe.Output().Has(rec.ID) {
		overwrite = defaultConfirm()("Overwrite the saved output for " + rec.Name + "?")
	}
	ran, err := s.pipe.ProcessSingle(ctx, !overwrite)
	if err != nil {
		return err
	}
	if !ran {
		return pipeline.ErrCancelled
	}

	vals, _ := s.pipe.Output().Get(rec.ID)
	path, err := s.save()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %v (saved to %s)\n", rec.Name, vals, path)
	return nil
}

// runProgressView shows the terminal view until the job ends or the user
// hides it. Log output is silenced while the view owns the terminal.
func runProgressView(ctx context.Context, pipe *pipeline.Pipeline, job *app.Job, total int) {
	prog := tea.NewProgram(tui.NewProgressModel(job.Name, total), tea.WithContext(ctx))

	forward := func(data interface{}) {
		p := data.(pipeline.Progress)
		prog.Send(tui.ImageMsg{Index: p.Index, Total: p.Total, ID: p.ID, Values: p.Numbers, Err: p.Err})
	}
	pipe.On(pipeline.EventImageProcessed, forward)
	pipe.On(pipeline.EventImageFailed, forward)

	logging.SetOutput(io.Discard)
	defer logging.SetOutput(os.Stderr)

	go app.Watch(ctx, job, app.DefaultPollInterval,
		func(elapsed int) { prog.Send(tui.ElapsedMsg(elapsed)) },
		func(err error) { prog.Send(tui.DoneMsg{Err: err}) })

	if _, err := prog.Run(); err != nil {
		logging.Warn("progress view failed", "error", err)
	}
}

// resolveImageID accepts either a loaded ID or a bare file name.
func resolveImageID(s *session, name string) string {
	for _, r := range s.pipe.Records() {
		if r.ID == name || r.Name == name {
			return r.ID
		}
	}
	return name
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().BoolVar(&processReprocess, "reprocess", false, "recompute scans that already have output")
	processCmd.Flags().StringVar(&processImage, "image", "", "process only this scan (ID or file name)")
	processCmd.Flags().BoolVar(&processNoTUI, "no-tui", false, "disable the terminal progress view")
}
