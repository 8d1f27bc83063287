package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/auditor-project/auditor/internal/version"
)

func main() {
	cmd := NewAuditorCommand()
	if err := cmd.Execute(); err != nil {
		klog.ErrorS(err, "auditor exited with error")
		os.Exit(1)
	}
}

// NewAuditorCommand creates the root command with subcommands for the
// AUDITOR server (§6.1, §6.5).
func NewAuditorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auditor",
		Short: "AUDITOR - a usage-record accounting service",
		Long: `AUDITOR ingests, stores, queries and archives usage-accounting
records over a fixed HTTP API, backed by a relational store and a
calendar-month Parquet archival pipeline.`,
	}

	klog.InitFlags(nil)

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMCPCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand creates the version subcommand to display build
// information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			fmt.Printf("AUDITOR\n")
			fmt.Printf("  Version:       %s\n", info.Version)
			fmt.Printf("  Git Commit:    %s\n", info.GitCommit)
			fmt.Printf("  Git Tree:      %s\n", info.GitTreeState)
			fmt.Printf("  Build Date:    %s\n", info.BuildDate)
			fmt.Printf("  Go Version:    %s\n", info.GoVersion)
			fmt.Printf("  Go Compiler:   %s\n", info.Compiler)
			fmt.Printf("  Platform:      %s\n", info.Platform)
		},
	}
}
