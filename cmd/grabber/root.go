package main

import (
	"github.com/spf13/cobra"

	"github.com/edgard/checkgrabber/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "grabber",
		Short:        "Redeem voucher links posted in Telegram chats across many accounts",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to configuration file")

	load := func() (*config.Config, error) {
		return config.LoadConfig(configPath)
	}

	rootCmd.AddCommand(
		newRunCmd(load),
		newStatsCmd(load),
		newExtractCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(version + "\n"))
			return err
		},
	}
}
