// Package cmd implements auditorctl, a thin CLI client over the AUDITOR
// HTTP API (query.go) and the embedded queued client (send.go), grounded
// on the teacher's pkg/cmd package layout.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// NewAuditorCtlCommand creates the root command for the auditorctl CLI.
func NewAuditorCtlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auditorctl",
		Short: "Query and send usage records against an AUDITOR server",
		Long: `auditorctl talks to an AUDITOR server's HTTP API. Use "query" to
retrieve records matching a filter, and "send" to durably queue new records
for delivery even while the server is unreachable.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("server", "http://localhost:8080", "Base URL of the AUDITOR server")

	cmd.AddCommand(NewQueryCommand())
	cmd.AddCommand(NewSendCommand())

	return cmd
}

// Execute runs the root command and exits the process on error, mirroring
// the teacher's cmd/kubectl-activity wrapper.
func Execute() {
	if err := NewAuditorCtlCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
