package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trs80term/pkg/config"
)

var (
	// Root command flags
	verbose      bool
	settingsPath string
	logFile      string
	profileDir   string

	// Root command
	rootCmd = &cobra.Command{
		Use:   "trs80term",
		Short: "A terminal console for a remote TRS-80 Model III emulator",
		Long: `trs80term shows the 64x16 display of a TRS-80 Model III running on an
emulator server and sends it your keystrokes.

Press F2 inside the console for the control menu (boot, reset, breakpoints,
disks and cassettes) and Ctrl+Q to quit.`,
		Version:           "1.0.0",
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Always show help when root command is called without subcommands
			return cmd.Help()
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all subcommands)
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&settingsPath, "config", "", "settings file (default $"+config.SettingsEnv+")")
	flags.StringVar(&logFile, "log-file", "", "log file (default trs80term-debug.log)")
	flags.StringVar(&profileDir, "profile-dir", "", "directory holding saved profiles")

	// Add subcommands
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(replayCmd)
}

// loadSettings reads the settings file and applies the global flags
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	var (
		settings *config.Settings
		err      error
	)
	if settingsPath != "" {
		settings, err = config.LoadFile(settingsPath)
	} else {
		settings, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-file") {
		settings.LogFile = logFile
	}
	if cmd.Flags().Changed("profile-dir") {
		settings.ProfileDir = profileDir
	}
	return settings, nil
}

// profileManager opens the profile store named by the settings
func profileManager(settings *config.Settings) *config.FileProfileManager {
	return config.NewFileProfileManager(settings.ProfileDir)
}
