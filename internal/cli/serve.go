package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"shelfscan/internal/app"
	"shelfscan/internal/logging"
	"shelfscan/internal/pipeline"
	"shelfscan/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run status and output over HTTP",
	Long: `Serve loads the scans and exposes:

  GET  /status              job liveness and elapsed seconds
  GET  /output              current output as JSON
  POST /process?reprocess=  start a run in the background

Every finished run is saved to today's output file.`,
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

		s.pipe.On(pipeline.EventRunComplete, func(interface{}) {
			path, err := s.save()
			if err != nil {
				logging.Error("output not saved", "error", err)
				return
			}
			logging.Info("output saved", "path", path)
		})

		return server.New(s.pipe, app.NewScheduler()).ListenAndServe(ctx, s.settings.Server.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
