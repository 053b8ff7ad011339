package cli

import (
	"context"
	"fmt"

	"shelfscan/internal/region"

	"github.com/spf13/cobra"
)

var preprocessImage string

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Preview the detected code regions",
	Long: `Preprocess runs region detection only and reports the regions found on
each scan. When paths.save_images is set an annotated preview of every scan
is written there.

If no scan has its own parameters you are asked before defaults are used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openSession(false)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.loadImages(ctx); err != nil {
			return err
		}

		var results []*region.Result
		if preprocessImage != "" {
			if _, err := s.pipe.Select(resolveImageID(s, preprocessImage)); err != nil {
				return err
			}
			res, err := s.pipe.PreprocessSingle(ctx)
			if err != nil {
				return err
			}
			results = append(results, res)
		} else {
			results, err = s.pipe.PreprocessAll(ctx, defaultConfirm())
			if err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		for _, r := range results {
			fmt.Fprintf(out, "%s: %d regions\n", r.ID, len(r.Boxes))
			for i, b := range r.Boxes {
				fmt.Fprintf(out, "  %d  x=%d y=%d w=%d h=%d\n", i, b.X, b.Y, b.Width, b.Height)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(preprocessCmd)
	preprocessCmd.Flags().StringVar(&preprocessImage, "image", "", "preview only this scan (ID or file name)")
}
