package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bhandras/warden/client"
)

func newSyncCmd(flags *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <session-id>",
		Short: "Rehydrate bounded session history and print the replayed signals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildClient(flags, false)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			done := make(chan struct{})
			c.OnAny(func(sig client.Signal, payload map[string]any) {
				line, err := json.Marshal(map[string]any{
					"signal":  string(sig),
					"payload": payload,
				})
				if err == nil {
					fmt.Fprintln(out, string(line))
				}
				if sig == client.SignalSyncComplete {
					close(done)
				}
			})

			if err := c.SyncSessionHistory(cmd.Context(), args[0]); err != nil {
				return err
			}
			<-done
			return nil
		},
	}
}
