package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"shelfscan/internal/config"
	scanimage "shelfscan/internal/image"
	"shelfscan/internal/params"
	"shelfscan/internal/pipeline"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	paramsImage string
	paramsAll   bool
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Show and change detection parameters",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var paramsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the default set, or the set used for one scan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, id, err := paramsTarget()
		if err != nil {
			return err
		}
		if id != "" {
			return printParams(cmd.OutOrStdout(), id, store.Params(id), store.HasOverride(id))
		}
		if err := printParams(cmd.OutOrStdout(), "default", store.Default(), false); err != nil {
			return err
		}
		overrides, _ := store.All()
		for id, p := range overrides {
			if err := printParams(cmd.OutOrStdout(), id, p, true); err != nil {
				return err
			}
		}
		return nil
	},
}

var paramsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the default set, or override it for one scan",
	Long: `Set changes the parameters named by flags and keeps the rest.

Without --image the default set is changed and written to paths.params.
With --image an override is stored for that scan only.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, id, err := paramsTarget()
		if err != nil {
			return err
		}
		base := store.Default()
		if id != "" {
			base = store.Params(id)
		}
		next, err := applyParamFlags(cmd.Flags(), base)
		if err != nil {
			return err
		}

		if id == "" {
			if err := store.SetDefault(next); err != nil {
				return err
			}
		} else {
			if err := store.Set(id, next); err != nil {
				return err
			}
			if err := store.Save(); err != nil {
				return err
			}
		}
		target := id
		if target == "" {
			target = "default"
		}
		return printParams(cmd.OutOrStdout(), target, next, id != "")
	},
}

var paramsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore built-in defaults or drop per-scan overrides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, id, err := paramsTarget()
		if err != nil {
			return err
		}
		switch {
		case paramsAll:
			store.ResetAll()
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All overrides removed")
		case id != "":
			store.Reset(id)
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now uses the default set\n", id)
		default:
			if err := store.ResetDefault(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Default set restored")
		}
		return nil
	},
}

// paramsTarget opens the store and resolves --image to the scan ID the
// pipeline looks overrides up by.
func paramsTarget() (*config.Store, string, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, "", err
	}
	store, err := openStore(settings)
	if err != nil {
		return nil, "", err
	}
	if paramsImage == "" {
		return store, "", nil
	}
	id, err := resolveScanID(store, settings.Paths.Images, paramsImage)
	if err != nil {
		return nil, "", err
	}
	return store, id, nil
}

// resolveScanID maps a scan ID or bare file name to the ID of a scan in
// dir. A name matching no scan but an existing override key resolves to
// itself so stale entries can still be shown and reset.
func resolveScanID(store *config.Store, dir, name string) (string, error) {
	paths, err := scanimage.List(dir)
	if err != nil && !store.HasOverride(name) {
		return "", err
	}
	for _, p := range paths {
		if p == name || filepath.Base(p) == name {
			return p, nil
		}
	}
	if store.HasOverride(name) {
		return name, nil
	}
	return "", fmt.Errorf("%s: %w", name, pipeline.ErrUnknownImage)
}

// paramFlags maps flag names to the fields they change.
var paramFlags = []struct {
	name  string
	usage string
	field func(*params.Set) *int
}{
	{"crop-min-width", "left edge of the crop envelope", func(s *params.Set) *int { return &s.CropMinWidth }},
	{"crop-max-width", "right edge of the crop envelope", func(s *params.Set) *int { return &s.CropMaxWidth }},
	{"crop-min-height", "top edge of the crop envelope", func(s *params.Set) *int { return &s.CropMinHeight }},
	{"crop-max-height", "bottom edge of the crop envelope", func(s *params.Set) *int { return &s.CropMaxHeight }},
	{"digit-min-width", "regions must be wider than this", func(s *params.Set) *int { return &s.DigitMinWidth }},
	{"digit-min-height", "regions must be taller than this", func(s *params.Set) *int { return &s.DigitMinHeight }},
	{"dilation-width", "dilation kernel width", func(s *params.Set) *int { return &s.DilationWidth }},
	{"dilation-height", "dilation kernel height", func(s *params.Set) *int { return &s.DilationHeight }},
}

func applyParamFlags(fs *pflag.FlagSet, base params.Set) (params.Set, error) {
	next := base
	for _, f := range paramFlags {
		if !fs.Changed(f.name) {
			continue
		}
		v, err := fs.GetInt(f.name)
		if err != nil {
			return params.Set{}, err
		}
		*f.field(&next) = v
	}
	if err := next.Validate(); err != nil {
		return params.Set{}, err
	}
	return next, nil
}

func printParams(w io.Writer, label string, p params.Set, custom bool) error {
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return err
	}
	suffix := ""
	if custom {
		suffix = " (override)"
	}
	fmt.Fprintf(w, "%s%s:\n%s\n", label, suffix, data)
	return nil
}

func init() {
	rootCmd.AddCommand(paramsCmd)
	paramsCmd.AddCommand(paramsShowCmd, paramsSetCmd, paramsResetCmd)
	paramsCmd.PersistentFlags().StringVar(&paramsImage, "image", "", "scan ID or file name the command applies to")
	paramsResetCmd.Flags().BoolVar(&paramsAll, "all", false, "drop every per-scan override")
	for _, f := range paramFlags {
		paramsSetCmd.Flags().Int(f.name, 0, f.usage)
	}
}
