package main

import (
	"github.com/cinderlab/cinder/internal/mcp"
	"github.com/cinderlab/cinder/internal/transport"
	"github.com/spf13/cobra"
)

func newMCPCmd(c *cli) *cobra.Command {
	var (
		useHTTP bool
		addr    string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the project tools over MCP",
		Long:  "mcp serves the project tools on stdio. With --http it serves streamable HTTP on /mcp instead, guarded by the configured bearer token.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if useHTTP {
				if err := c.cfg.RequireMCPToken(); err != nil {
					return err
				}
			}
			a, err := c.openApp()
			if err != nil {
				return err
			}
			server := mcp.NewServer(mcp.Config{
				Services: a.MCPServices(),
				Version:  version,
				Logger:   c.logger.With("component", "mcp"),
			})

			if !useHTTP {
				c.logger.Info("starting stdio transport")
				return mcp.Run(cmd.Context(), server)
			}
			if addr == "" {
				addr = c.cfg.MCP.Addr
			}
			handler := transport.NewHandler(server, transport.AuthMiddleware(c.cfg.MCP.Token))
			return transport.Serve(cmd.Context(), addr, handler, c.logger.With("component", "http"))
		},
	}
	cmd.Flags().BoolVar(&useHTTP, "http", false, "Serve streamable HTTP instead of stdio")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for --http (defaults to mcp.addr)")
	return cmd
}
