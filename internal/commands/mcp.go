package commands

import (
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/redisctl/internal/api"
	"github.com/dwsmith1983/redisctl/internal/mcpserver"
)

func newMCPCmd(a *app, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol integration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve redisctl tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := mcpserver.New(version, mcpserver.Deps{
				Cloud:      func() (*api.CloudClient, error) { return a.cloudClient() },
				Enterprise: func() (*api.EnterpriseClient, error) { return a.enterpriseClient() },
				Logger:     a.logger(),
			})
			return srv.ServeStdio()
		},
	})
	return cmd
}
