package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ironsheep/rangefinder-mcp/internal/log"
	"github.com/ironsheep/rangefinder-mcp/internal/server"
)

func (a *app) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdin/stdout",
		Long: `Run the MCP server. Requests are read from stdin one per line and
responses written to stdout. Configure it in your MCP client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}
}

func (a *app) runServe(cmd *cobra.Command) error {
	server.Version = a.build.Version

	srv, err := server.NewFromConfig(a.cfg)
	if err != nil {
		return err
	}

	log.Info("rangefinder MCP server starting",
		"version", a.build.Version, "commit", a.build.GitCommit,
		"backend", a.cfg.Backend, "template", a.cfg.Template.Path)

	err = srv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	if errors.Is(err, context.Canceled) {
		log.Info("rangefinder MCP server stopped")
		return nil
	}
	return err
}
