package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCmd(flags *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List remote sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := buildClient(flags, false)
			if err != nil {
				return err
			}
			defer c.Close()

			sessions, err := c.API().ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range sessions {
				updated := ""
				if s.Time.Updated > 0 {
					updated = time.UnixMilli(s.Time.Updated).Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", s.ID, s.Title, s.Directory, updated)
			}
			return nil
		},
	}
}
