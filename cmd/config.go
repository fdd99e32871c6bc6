package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trs80term/pkg/app"
	"trs80term/pkg/config"
	"trs80term/pkg/connection"
)

var (
	// Config command flags
	profileRetry       int
	profileRecord      string
	profileFormat      string
	profileDescription string
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage saved server profiles",
	Long: `Manage saved server profiles.

A profile stores a server address with its reconnection and recording
options, so "trs80term connect <name>" reaches it directly. Profiles live in
profiles.json under the profile directory.`,
}

// saveCmd saves a profile
var saveCmd = &cobra.Command{
	Use:   "save <name> <url>",
	Short: "Save a server profile",
	Long: `Save a server address and its options under a name.

Example:
  trs80term config save den ws://trs80.local:8080/ws --retry 5`,
	Args: cobra.ExactArgs(2),
	RunE: runSaveProfile,
}

// loadCmd connects with a profile
var loadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Load a profile and connect",
	Long: `Load a saved profile and immediately open the console.

Example:
  trs80term config load den`,
	Args: cobra.ExactArgs(1),
	RunE: runLoadProfile,
}

// listConfigCmd lists all profiles
var listConfigCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List saved profiles",
	Long:  `Display the saved profiles, optionally only those whose name, address or description contains query.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runListProfiles,
}

// deleteCmd deletes a profile
var deleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Short:   "Delete a saved profile",
	Aliases: []string{"rm", "remove"},
	Args:    cobra.ExactArgs(1),
	RunE:    runDeleteProfile,
}

// showCmd shows details of a profile
var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show details of a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowProfile,
}

var exportCmd = &cobra.Command{
	Use:   "export <name> <file>",
	Short: "Write a profile to a file",
	Long: `Write a profile to a JSON file, or YAML when the file ends in .yaml or .yml.

Example:
  trs80term config export den den.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runExportProfile,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Save a profile from an exported file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportProfile,
}

func init() {
	// Add subcommands to config
	configCmd.AddCommand(saveCmd)
	configCmd.AddCommand(loadCmd)
	configCmd.AddCommand(listConfigCmd)
	configCmd.AddCommand(deleteCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(exportCmd)
	configCmd.AddCommand(importCmd)

	// Add flags for save command
	saveCmd.Flags().IntVarP(&profileRetry, "retry", "r", 0, "reconnect attempts after the link drops")
	saveCmd.Flags().StringVar(&profileRecord, "record", "", "recording file")
	saveCmd.Flags().StringVar(&profileFormat, "format", "", "recording format (plain, timestamped, json)")
	saveCmd.Flags().StringVarP(&profileDescription, "description", "d", "", "description")
}

func runSaveProfile(cmd *cobra.Command, args []string) error {
	name, url := args[0], args[1]

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	// Store the address in its canonical form
	endpoint, err := connection.ParseEndpoint(url)
	if err != nil {
		return err
	}

	profile := config.DefaultProfile()
	profile.URL = endpoint.URL
	profile.Retry = settings.Retry
	profile.Retry.MaxRetries = profileRetry
	profile.Record = profileRecord
	profile.RecordFormat = profileFormat

	profiles := profileManager(settings)
	action := "saved"
	if profiles.ProfileExists(name) {
		action = "updated"
		err = profiles.UpdateProfile(name, profile)
	} else {
		err = profiles.SaveProfile(name, profile)
	}
	if err != nil {
		return fmt.Errorf("error saving profile: %w", err)
	}
	if profileDescription != "" {
		if err := profiles.SetProfileDescription(name, profileDescription); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Profile '%s' %s successfully.\n", name, action)
	fmt.Fprintf(out, "  Server:  %s\n", profile.URL)
	fmt.Fprintf(out, "  Retries: %d\n", profile.Retry.MaxRetries)
	return nil
}

func runLoadProfile(cmd *cobra.Command, args []string) error {
	name := args[0]

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	profile, err := profileManager(settings).LoadProfile(name)
	if err != nil {
		return fmt.Errorf("error loading profile '%s': %w", name, err)
	}
	endpoint, err := connection.ParseEndpoint(profile.URL)
	if err != nil {
		return err
	}
	settings.ApplyProfile(profile)

	fmt.Fprintf(cmd.OutOrStdout(), "Connecting to %s...\n", endpoint.URL)
	return app.RunInteractive(cmd.Context(), endpoint, settings)
}

func runListProfiles(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	profiles := profileManager(settings)
	infos, err := profiles.SearchProfiles(query)
	if err != nil {
		return fmt.Errorf("error listing profiles: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No saved profiles found.")
		fmt.Fprintln(out, "\nUse 'trs80term config save <name> <url>' to save one.")
		return nil
	}

	fmt.Fprintf(out, "Found %d saved profile(s):\n\n", len(infos))

	columns := []int{16, 36, 8, 17}
	fmt.Fprintln(out, tableRow(columns, headerStyle, "NAME", "SERVER", "RETRIES", "LAST USED"))
	for _, info := range infos {
		lastUsed := "Never"
		if !info.LastUsedAt.IsZero() {
			lastUsed = info.LastUsedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintln(out, tableRow(columns, cellStyle,
			info.Name,
			info.Profile.URL,
			fmt.Sprint(info.Profile.Retry.MaxRetries),
			lastUsed))
	}

	fmt.Fprintln(out, dimStyle.Render("\nUse 'trs80term connect <name>' to open a profile."))
	if verbose {
		fmt.Fprintln(out, dimStyle.Render("Profiles are stored in "+profiles.GetConfigPath()))
	}
	return nil
}

func runDeleteProfile(cmd *cobra.Command, args []string) error {
	name := args[0]

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := profileManager(settings).DeleteProfile(name); err != nil {
		return fmt.Errorf("error deleting profile '%s': %w", name, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' deleted successfully.\n", name)
	return nil
}

func runShowProfile(cmd *cobra.Command, args []string) error {
	name := args[0]

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	info, err := profileManager(settings).GetProfile(name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	retry := info.Profile.Retry
	fmt.Fprintln(out, titleStyle.Render("Profile: "+info.Name))
	if info.Description != "" {
		fmt.Fprintln(out, dimStyle.Render(info.Description))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Server:"), info.Profile.URL)
	fmt.Fprintf(out, "%s %d (every %v, x%.1f, at most %v)\n", labelStyle.Render("Retries:"),
		retry.MaxRetries, retry.RetryInterval, retry.BackoffFactor, retry.MaxInterval)
	if info.Profile.Record != "" {
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Recording:"), info.Profile.Record)
	}
	if info.Profile.RecordFormat != "" {
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Format:"), info.Profile.RecordFormat)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Created:"), info.CreatedAt.Format(time.RFC3339))
	lastUsed := "Never"
	if !info.LastUsedAt.IsZero() {
		lastUsed = info.LastUsedAt.Format(time.RFC3339)
	}
	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Last Used:"), lastUsed)
	return nil
}

func runExportProfile(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := profileManager(settings).ExportProfile(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' exported to %s.\n", args[0], args[1])
	return nil
}

func runImportProfile(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	name, err := profileManager(settings).ImportProfile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' imported from %s.\n", name, args[0])
	return nil
}
