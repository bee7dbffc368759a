package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codefionn/notificationd/internal/consts"
	"github.com/codefionn/notificationd/internal/control"
)

// whoCmd lists the authenticated connections of a server.
var whoCmd = &cobra.Command{
	Use:   "who",
	Short: "List logged-in clients",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), consts.Timeout5Seconds)
		defer cancel()

		peers, err := client.Who(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), control.WhoResponse{Clients: peers})
		}
		return printWho(cmd.OutOrStdout(), peers)
	},
}

func init() {
	rootCmd.AddCommand(whoCmd)
}

func printWho(w io.Writer, peers []control.Peer) error {
	if len(peers) == 0 {
		_, err := fmt.Fprintln(w, "No clients logged in")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOGIN\tCONSUME\tADDRESS")
	for _, p := range peers {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Login, onOff(p.Consume), p.Address)
	}
	return tw.Flush()
}
