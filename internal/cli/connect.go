package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bhandras/warden/client"
)

func newConnectCmd(flags *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect to the event stream and print signals as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := buildClient(flags, true)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			c.OnAny(func(sig client.Signal, payload map[string]any) {
				line, err := json.Marshal(map[string]any{
					"signal":  string(sig),
					"payload": payload,
				})
				if err != nil {
					return
				}
				fmt.Fprintln(out, string(line))
			})

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop
			return nil
		},
	}
}
