package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bhandras/warden/client"
	"github.com/bhandras/warden/internal/api"
)

func newSendCmd(flags *appFlags) *cobra.Command {
	var (
		agent  string
		model  string
		system string
	)

	cmd := &cobra.Command{
		Use:   "send <session-id> <text>",
		Short: "Send a prompt to a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildClient(flags, false)
			if err != nil {
				return err
			}
			defer c.Close()

			opts := client.SendOptions{Agent: agent, System: system}
			if model != "" {
				ref, err := parseModelRef(model)
				if err != nil {
					return err
				}
				opts.Model = &ref
			}

			sessionID := args[0]
			text := strings.Join(args[1:], " ")
			return c.SendMessage(cmd.Context(), sessionID, text, opts)
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "agent profile to use")
	cmd.Flags().StringVar(&model, "model", "", "model override as provider/model")
	cmd.Flags().StringVar(&system, "system", "", "system prompt override")
	return cmd
}

func parseModelRef(raw string) (api.ModelRef, error) {
	provider, modelID, ok := strings.Cut(raw, "/")
	if !ok || provider == "" || modelID == "" {
		return api.ModelRef{}, fmt.Errorf("invalid model %q, expected provider/model", raw)
	}
	return api.ModelRef{ProviderID: provider, ModelID: modelID}, nil
}
