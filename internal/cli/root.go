// Package cli implements the shelfscan command tree.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shelfscan/internal/config"
	"shelfscan/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	logLevel  string
	assumeYes bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shelfscan",
	Short: "Read the numeric codes on shelf label scans",
	Long: `shelfscan finds the shelf codes on a directory of scanned labels, reads
each digit with a pretrained classifier and saves one ordered list of numbers
per image as YYYY-MM-DD_Output.json.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logLevel == "" {
			logLevel = "info"
		}
		logging.InitWithLevel(logLevel)
		logging.Debug("Logging initialized", "level", logLevel)
		if f := viper.ConfigFileUsed(); f != "" {
			logging.Debug("Using config file", "path", f)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.shelfscan.yaml or $HOME/.shelfscan.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to every confirmation")
	rootCmd.PersistentFlags().String("images", "", "directory of scans")
	rootCmd.PersistentFlags().String("output-dir", "", "directory for dated output files")
	rootCmd.PersistentFlags().String("model", "", "path to the digit model")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("paths.images", rootCmd.PersistentFlags().Lookup("images"))
	viper.BindPFlag("paths.output", rootCmd.PersistentFlags().Lookup("output-dir"))
	viper.BindPFlag("model.path", rootCmd.PersistentFlags().Lookup("model"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home))
		}
		viper.AddConfigPath("/etc/shelfscan")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".shelfscan")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}

	if logLevel == "" {
		logLevel = viper.GetString("log_level")
	}
}
