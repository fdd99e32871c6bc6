package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"trs80term/pkg/connection"
	"trs80term/pkg/media"
	"trs80term/pkg/serial"
)

var (
	listDetails bool
	listFormat  string
)

// portLister is swapped in tests
var portLister = serial.GetDetailedPortsList

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List serial ports or a server's media",
	Long: `List the serial ports an emulator server may be attached to, or the
disk and cassette images a server offers.

Without a subcommand the serial ports are listed.`,
	Aliases: []string{"ls"},
	RunE:    runListPorts,
}

var listPortsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	Long: `List all available serial ports on the system. On different platforms:
  - Windows: Lists COM ports
  - Linux: Lists /dev/tty* devices
  - macOS: Lists /dev/cu.* and /dev/tty.* devices

Connect to a server on one with "trs80term connect serial:///dev/ttyUSB0".`,
	Args: cobra.NoArgs,
	RunE: runListPorts,
}

var listMediaCmd = &cobra.Command{
	Use:   "media <url>",
	Short: "List the disk and cassette images on a server",
	Long: `List the disk and cassette images an emulator server offers for the
console's disk and cassette pickers.

Example:
  trs80term list media localhost:8080`,
	Args: cobra.ExactArgs(1),
	RunE: runListMedia,
}

func init() {
	listCmd.AddCommand(listPortsCmd)
	listCmd.AddCommand(listMediaCmd)

	for _, c := range []*cobra.Command{listCmd, listPortsCmd} {
		c.Flags().BoolVarP(&listDetails, "details", "d", false, "show detailed port information")
		c.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table, csv, json)")
	}
}

func runListPorts(cmd *cobra.Command, args []string) error {
	// Get detailed list of available ports
	portInfos, err := portLister()
	if err != nil {
		return fmt.Errorf("error listing ports: %w", err)
	}

	out := cmd.OutOrStdout()

	// Display based on format
	switch listFormat {
	case "csv":
		printPortsCSV(out, portInfos)
	case "json":
		return printPortsJSON(out, portInfos)
	case "table", "":
		printPortsTable(out, portInfos)
	default:
		return fmt.Errorf("unknown format %q (want table, csv or json)", listFormat)
	}
	return nil
}

func printPortsTable(out io.Writer, portInfos []serial.PortInfo) {
	if len(portInfos) == 0 {
		fmt.Fprintln(out, "No serial ports found.")
		return
	}

	fmt.Fprintf(out, "Found %d serial port(s):\n\n", len(portInfos))

	if listDetails {
		columns := []int{20, 6, 6, 30, 16}
		fmt.Fprintln(out, tableRow(columns, headerStyle, "PORT", "VID", "PID", "PRODUCT", "SERIAL"))
		for _, p := range portInfos {
			fmt.Fprintln(out, tableRow(columns, cellStyle, p.Name, p.VID, p.PID, p.Description, p.SerialNumber))
		}
	} else {
		for _, p := range portInfos {
			fmt.Fprintf(out, "  %s\n", p.Name)
		}
	}

	fmt.Fprintln(out, dimStyle.Render("\nUse 'trs80term connect serial://<port>' to connect."))
}

func printPortsCSV(out io.Writer, portInfos []serial.PortInfo) {
	if listDetails {
		fmt.Fprintln(out, "port,vid,pid,product,serial_number")
		for _, p := range portInfos {
			fmt.Fprintf(out, "%s,%s,%s,%s,%s\n", p.Name, p.VID, p.PID, p.Description, p.SerialNumber)
		}
		return
	}

	fmt.Fprintln(out, "port")
	for _, p := range portInfos {
		fmt.Fprintln(out, p.Name)
	}
}

func printPortsJSON(out io.Writer, portInfos []serial.PortInfo) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if listDetails {
		if portInfos == nil {
			portInfos = []serial.PortInfo{}
		}
		return enc.Encode(portInfos)
	}

	names := make([]string, 0, len(portInfos))
	for _, p := range portInfos {
		names = append(names, p.Name)
	}
	return enc.Encode(names)
}

func runListMedia(cmd *cobra.Command, args []string) error {
	endpoint, err := connection.ParseEndpoint(args[0])
	if err != nil {
		return err
	}
	base, err := endpoint.HTTPBase()
	if err != nil {
		return err
	}

	client := media.NewClient(base, nil)
	out := cmd.OutOrStdout()

	for _, kind := range []media.Kind{media.Disks, media.Cassettes} {
		names, err := client.List(cmd.Context(), kind)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s (%d)", kindTitle(kind), len(names))))
		if len(names) == 0 {
			fmt.Fprintln(out, dimStyle.Render("  none"))
		}
		for _, name := range names {
			fmt.Fprintf(out, "  %s\n", name)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func kindTitle(kind media.Kind) string {
	if kind == media.Cassettes {
		return "Cassettes"
	}
	return "Disks"
}
