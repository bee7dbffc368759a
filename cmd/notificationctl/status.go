package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/codefionn/notificationd/internal/consts"
	"github.com/codefionn/notificationd/internal/control"
)

// statusCmd prints the run mode and state of the daemon.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), consts.Timeout5Seconds)
		defer cancel()

		status, err := client.Status(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), status)
		}
		printStatus(cmd.OutOrStdout(), status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printStatus(w io.Writer, status control.Status) {
	switch {
	case status.Server != nil:
		persistence := "disabled"
		if status.Server.Persistent {
			persistence = "enabled"
		}
		fmt.Fprintf(w, "Mode:        server\n")
		fmt.Fprintf(w, "Bind:        %s\n", status.Server.Bind)
		fmt.Fprintf(w, "Connections: %d\n", status.Server.Connections)
		fmt.Fprintf(w, "History:     %s\n", persistence)
	case status.Client != nil:
		state := "disconnected"
		if status.Client.Connected {
			state = "connected"
		}
		fmt.Fprintf(w, "Mode:        client\n")
		fmt.Fprintf(w, "Server:      %s (%s)\n", status.Client.Server, state)
		fmt.Fprintf(w, "Login:       %s\n", status.Client.Login)
		fmt.Fprintf(w, "Consume:     %s\n", onOff(status.Client.Consume))
	default:
		fmt.Fprintln(w, "Mode:        unknown")
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
