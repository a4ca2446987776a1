package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/leadchat/internal/config"
	"github.com/liliang-cn/leadchat/internal/service"
)

func embedCmd() *cobra.Command {
	var configPath, domain string

	cmd := &cobra.Command{
		Use:   "embed <bot-id>",
		Short: "Print the HTML snippet that installs a bot's widget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if domain == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				domain = cfg.Server.BaseURL
			}
			fmt.Fprintln(cmd.OutOrStdout(), service.EmbedSnippet(domain, args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&domain, "domain", "", "public base URL of the server (default: server.base_url)")

	return cmd
}
