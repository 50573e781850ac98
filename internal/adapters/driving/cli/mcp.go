package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ask/internal/adapters/driving/mcp"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search
the knowledge base and ask cited questions.

By default, the server communicates over stdio using JSON-RPC.
Use --port to serve streamable HTTP instead.

Examples:
  # Stdio mode (default)
  sercha-ask mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  sercha-ask mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "sercha-ask": {
        "command": "/path/to/sercha-ask",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ctx := commandContext(cmd)
	var space string
	if defaultSpace != nil {
		if space, err = defaultSpace(ctx); err != nil {
			return fmt.Errorf("resolving default space: %w", err)
		}
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Ask:          askService,
		Search:       searchService,
		Rerank:       rerankService,
		Document:     documentService,
		Spaces:       spaceService,
		DefaultSpace: space,
	})
	if err != nil {
		return err
	}

	if watchPrompts != nil {
		go func() {
			if err := watchPrompts(ctx); err != nil {
				logger.Warn("prompt watcher stopped: %v", err)
			}
		}()
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		// stdout belongs to the protocol only in stdio mode.
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
