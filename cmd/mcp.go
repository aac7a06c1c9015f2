package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/labsync/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pipeline tools over MCP stdio",
	Long:  "Runs an MCP server on stdin/stdout. Logs go to stderr so they never mix with protocol frames.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initPipeline(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.Close()

		h := mcpserver.NewHandlers(env.Store, env.Extraction, env.Design, env.Collector)
		zap.L().Info("starting mcp server", zap.String("version", version))
		return mcpserver.Serve(mcpserver.NewServer(h, version))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
