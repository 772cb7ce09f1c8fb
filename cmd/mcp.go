package cmd

import (
	"github.com/sleepdata/cpapinsight/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the cpapinsight MCP server",
	Long: `Launch an MCP server on stdio that allows AI agents to analyze therapy data via standard tools.

Tool calls never write to the run history.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, source)
	},
}
