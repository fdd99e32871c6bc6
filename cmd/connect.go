package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"trs80term/pkg/app"
	"trs80term/pkg/config"
	"trs80term/pkg/connection"
)

var (
	connectRetry  int
	connectRecord string
	connectFormat string
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect [url|profile]",
	Short: "Connect to an emulator server",
	Long: `Open the console of a TRS-80 emulator server.

The target is a saved profile name or a server address:
  - ws://host:port/ws or wss://host/ws
  - http://host:port (the console socket /ws is added)
  - host:port
  - serial:///dev/ttyUSB0?baud=115200 for a server on a serial line

Without a target the settings file's default_profile is used.

Examples:
  # Connect to a server on this machine
  trs80term connect localhost:8080

  # Retry up to 5 times when the link drops and record the session
  trs80term connect ws://trs80.local/ws --retry 5 --record session.json

  # Connect using a saved profile
  trs80term connect den`,
	Args:    cobra.MaximumNArgs(1),
	Aliases: []string{"open"},
	RunE:    runConnect,
}

func init() {
	connectCmd.Flags().IntVarP(&connectRetry, "retry", "r", 0, "reconnect attempts after the link drops (0 disables)")
	connectCmd.Flags().StringVar(&connectRecord, "record", "", "save the session traffic to this file on exit (.zst compresses)")
	connectCmd.Flags().StringVar(&connectFormat, "format", "", "recording format (plain, timestamped, json)")
}

func runConnect(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	target := settings.DefaultProfile
	if len(args) == 1 {
		target = args[0]
	}
	if target == "" {
		return fmt.Errorf("no server given and no default_profile in the settings")
	}

	endpoint, err := resolveTarget(cmd, target, settings)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("retry") {
		settings.Retry.MaxRetries = connectRetry
	}
	if cmd.Flags().Changed("record") {
		settings.Record = connectRecord
	}
	if cmd.Flags().Changed("format") {
		settings.RecordFormat = connectFormat
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	if verbose {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Connecting to %s...\n", endpoint.URL)
		fmt.Fprintf(out, "  Retries: %d\n", settings.Retry.MaxRetries)
		if settings.Record != "" {
			fmt.Fprintf(out, "  Recording: %s (%s)\n", settings.Record, settings.RecordFormat)
		}
		fmt.Fprintf(out, "  Log: %s\n", settings.LogFile)
	}

	return app.RunInteractive(cmd.Context(), endpoint, settings)
}

// resolveTarget turns a profile name or address into an endpoint. A saved
// profile wins over an address of the same spelling and overlays its
// options on settings.
func resolveTarget(cmd *cobra.Command, target string, settings *config.Settings) (connection.Endpoint, error) {
	profiles := profileManager(settings)
	if profiles.ProfileExists(target) {
		profile, err := profiles.LoadProfile(target)
		if err != nil {
			return connection.Endpoint{}, err
		}
		settings.ApplyProfile(profile)
		if verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "Loading profile '%s'...\n", target)
		}
		return connection.ParseEndpoint(profile.URL)
	}

	endpoint, err := connection.ParseEndpoint(target)
	if err != nil {
		return connection.Endpoint{}, unknownTarget(target, err, profiles)
	}
	return endpoint, nil
}

// unknownTarget explains a target that is neither a profile nor an address
func unknownTarget(target string, cause error, profiles *config.FileProfileManager) error {
	msg := fmt.Sprintf("'%s' is neither a server address nor a saved profile: %v", target, cause)

	infos, _ := profiles.ListProfiles()
	if len(infos) > 0 {
		msg += "\n\nAvailable profiles:"
		for _, info := range infos {
			msg += fmt.Sprintf("\n  - %s (%s)", info.Name, info.Profile.URL)
		}
	}
	return fmt.Errorf("%s", msg)
}
