// Package cli wires the warden command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/bhandras/warden/client"
	"github.com/bhandras/warden/internal/config"
	"github.com/bhandras/warden/internal/logger"
)

// Execute runs the warden root command.
func Execute() error {
	return newRootCmd().Execute()
}

type appFlags struct {
	serverURL string
	password  string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	flags := &appFlags{}

	rootCmd := &cobra.Command{
		Use:           "warden",
		Short:         "warden: session runtime client for a remote agent service",
		Long:          "warden connects to a remote AI-agent session service, tracks per-session state, monitors liveness, recovers stalled sessions, and can rehydrate bounded session history.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&flags.serverURL, "server", "", "server base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flags.password, "password", "", "server password (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log verbosity: trace|debug|info|warn|error")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConnectCmd(flags),
		newSessionsCmd(flags),
		newSendCmd(flags),
		newSyncCmd(flags),
	)

	return rootCmd
}

// buildClient loads configuration, applies flag overrides, and constructs a
// client. autoConnect overrides the configured value; commands that only use
// the REST surface pass false.
func buildClient(flags *appFlags, autoConnect bool) (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.serverURL != "" {
		cfg.ServerURL = flags.serverURL
	}
	if flags.password != "" {
		cfg.Password = flags.password
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	clientCfg := cfg.ClientConfig()
	clientCfg.AutoConnect = autoConnect
	return client.New(clientCfg)
}
