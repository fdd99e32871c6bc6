package cmd

import (
	"github.com/spf13/cobra"

	"trs80term/pkg/app"
)

// replayCmd renders a recorded session without a server
var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Show the final screen of a recorded session",
	Long: `Feed the server messages of a JSON recording through the display and
print the screen and indicator lights the session ended with.

Recordings are made with "connect --record file.json" (or file.json.zst).

Example:
  trs80term replay session.json.zst`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Replay(args[0], cmd.OutOrStdout(), nil)
	},
}
