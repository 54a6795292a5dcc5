package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bhandras/warden/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the warden version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.RichVersion())
			return nil
		},
	}
}
