package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/auditor-project/auditor/pkg/client"
	"github.com/auditor-project/auditor/pkg/domain"
)

// SendOptions holds the resolved flag values for the send subcommand.
type SendOptions struct {
	ServerURL    string
	File         string
	DatabasePath string
	Update       bool
}

// NewSendCommand builds the send subcommand, which queues one or more
// records (read as a JSON array from --file or stdin) for durable delivery
// via the embedded queued client (§4.6).
func NewSendCommand() *cobra.Command {
	opts := &SendOptions{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Queue usage records for delivery to an AUDITOR server",
		Long: `Reads a JSON array of records from --file (or stdin when --file is
omitted) and hands each to an embedded queued client, which durably buffers
them on disk and delivers them to the server in the background even if it
is temporarily unreachable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ServerURL, _ = cmd.Flags().GetString("server")
			return runSend(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "Path to a JSON file containing an array of records (defaults to stdin)")
	cmd.Flags().StringVar(&opts.DatabasePath, "queue-db", defaultQueuePath(), "Path to the local queue database")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "Send records as updates instead of inserts")

	return cmd
}

func defaultQueuePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "auditorctl-queue.db"
	}
	return filepath.Join(dir, "auditorctl", "queue.db")
}

func runSend(cmd *cobra.Command, opts *SendOptions) error {
	records, err := readRecords(opts.File)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no records to send")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.DatabasePath), 0o755); err != nil {
		return fmt.Errorf("create queue directory: %w", err)
	}

	c, err := client.New(client.Options{
		DatabasePath:   opts.DatabasePath,
		ServerURL:      opts.ServerURL,
		DrainInterval:  5 * time.Second,
		RequestTimeout: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("open queued client: %w", err)
	}
	defer c.Stop()

	if opts.Update {
		for _, rec := range records {
			if err := c.Update(rec); err != nil {
				return fmt.Errorf("queue update for %s: %w", rec.RecordID.String(), err)
			}
		}
	} else if err := c.BulkAdd(records); err != nil {
		return fmt.Errorf("queue inserts: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "queued %d record(s) for delivery\n", len(records))
	return nil
}

func readRecords(path string) ([]domain.Record, error) {
	var r io.Reader
	if path == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	records := make([]domain.Record, len(raw))
	for i, item := range raw {
		if err := records[i].UnmarshalJSON(item); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
	}
	return records, nil
}
