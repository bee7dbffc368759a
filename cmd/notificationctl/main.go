package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codefionn/notificationd/internal/control"
)

var (
	socketPath string
	userSocket bool
	jsonOutput bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "notificationctl",
	Short: "Query a running notificationd",
	Long: `notificationctl talks to the control socket of a running notificationd.

By default it connects to the system daemon (/run/notificationd.sock).
Use --user for the daemon of the invoking user or --socket for any other path.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Path of the control socket")
	rootCmd.PersistentFlags().BoolVar(&userSocket, "user", false, "Connect to the daemon of the invoking user")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print the raw JSON answer")
}

// resolveSocket picks the socket: --socket, then --user, then the system daemon
func resolveSocket() string {
	if socketPath != "" {
		return socketPath
	}
	if userSocket {
		return control.Address(os.Getuid())
	}
	return control.Address(0)
}

func newClient() (*control.Client, error) {
	path := resolveSocket()
	if !control.IsSocket(path) {
		return nil, fmt.Errorf("no notificationd control socket at %s", path)
	}
	return control.NewClient(path), nil
}
