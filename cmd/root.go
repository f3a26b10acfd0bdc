package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeeftor/deskpilot/internal/automation"
	"github.com/jeeftor/deskpilot/internal/capture"
	"github.com/jeeftor/deskpilot/internal/engine"
	"github.com/jeeftor/deskpilot/internal/logging"
	"github.com/jeeftor/deskpilot/internal/recognition"
	"github.com/jeeftor/deskpilot/internal/storage"
)

var (
	cfgFile  string
	logLevel string
	dataDir  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deskpilot",
	Short: "DeskPilot runs image-driven desktop automation scripts",
	Long: `DeskPilot executes automation scripts against the desktop: it watches
the screen for template images, clicks and types when they appear, and
repeats scripts on a schedule or a hotkey.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logLevel == "" {
			logLevel = "info"
		}
		logging.InitWithLevel(logLevel)

		logging.Debug("Logging initialized", "level", logLevel)
		logging.Debug("Using data directory", "path", GetDataDir())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.deskpilot.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "directory holding scripts and templates")

	// Bind flags to Viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// DESKPILOT_LOG_LEVEL, DESKPILOT_DATA_DIR, etc.
	viper.SetEnvPrefix("DESKPILOT")
	viper.AutomaticEnv()

	viper.SetDefault("log_level", "info")
	viper.SetDefault("data_dir", defaultDataDir())
	viper.SetDefault("screenshot_dir", "screenshots")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search the working directory, then home, then system config
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath("/etc/deskpilot")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".deskpilot")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// No config file is fine; defaults and env vars cover it
	}

	if logLevel == "" {
		logLevel = viper.GetString("log_level")
	}
	if dataDir == "" {
		dataDir = viper.GetString("data_dir")
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deskpilot"
	}
	return filepath.Join(home, ".deskpilot")
}

// GetDataDir returns the data directory from flag, env var, or config
func GetDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	return viper.GetString("data_dir")
}

// OpenStorage opens the script store under the data directory.
// This centralizes the common pattern used across all commands.
func OpenStorage() (*storage.Service, error) {
	store, err := storage.NewService(GetDataDir())
	if err != nil {
		return nil, fmt.Errorf("opening storage at %s: %v", GetDataDir(), err)
	}
	return store, nil
}

// BuildEngine wires the execution engine with real desktop services
func BuildEngine() (*engine.Engine, *storage.Service, error) {
	store, err := OpenStorage()
	if err != nil {
		return nil, nil, err
	}

	screenshotDir := viper.GetString("screenshot_dir")
	if !filepath.IsAbs(screenshotDir) {
		screenshotDir = filepath.Join(GetDataDir(), screenshotDir)
	}

	eng := engine.New(
		store,
		automation.NewController(),
		recognition.NewService(),
		capture.NewService(screenshotDir),
	)
	return eng, store, nil
}
