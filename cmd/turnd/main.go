// Command turnd is a standalone TURN (RFC 5766) relay server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "turnd",
	Short: "TURN relay server",
	Long:  "turnd relays UDP traffic for clients behind NATs using the TURN protocol (RFC 5766).",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the turnd version",
	RunE: func(_ *cobra.Command, _ []string) error {
		fmt.Println(version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
