package main

import (
	"context"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/auditor-project/auditor/internal/config"
	"github.com/auditor-project/auditor/internal/sqlstore"
	"github.com/auditor-project/auditor/internal/version"
	"github.com/auditor-project/auditor/pkg/mcp/tools"
)

// NewMCPCommand creates the mcp subcommand that starts the MCP server
// exposing AUDITOR's query_records tool over stdio, for AI assistant
// integration.
func NewMCPCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI tool integration",
		Long: `Start an MCP (Model Context Protocol) server exposing a
query_records tool over stdio, backed directly by the relational store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunMCPServer(configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML configuration file (§6.4)")
	return cmd
}

// RunMCPServer opens the store described by configPath and serves the MCP
// tool surface over stdio until the client disconnects.
func RunMCPServer(configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	store, err := sqlstore.Open(context.Background(), cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	provider := tools.NewToolProvider(store)
	defer provider.Close()

	server := provider.NewMCPServer(tools.ServerConfig{
		Name:    "auditor",
		Version: version.Version,
	})

	fmt.Fprintln(os.Stderr, "Starting AUDITOR MCP server...")
	return server.Run(context.Background(), &mcp.StdioTransport{})
}
