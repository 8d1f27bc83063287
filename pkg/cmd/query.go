package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/auditor-project/auditor/internal/timeutil"
	"github.com/auditor-project/auditor/pkg/cmd/common"
	"github.com/auditor-project/auditor/pkg/domain"
)

// QueryOptions holds the resolved flag values for the query subcommand.
type QueryOptions struct {
	ServerURL string
	TimeRange common.TimeRangeFlags
	Output    common.OutputFlags
	Limit     common.LimitFlag
	SortBy    string
	SortDir   string
}

// NewQueryCommand builds the query subcommand, which issues GET /records
// against the configured server and prints the matching rows (§4.3).
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List usage records matching a filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ServerURL, _ = cmd.Flags().GetString("server")
			return runQuery(cmd, opts)
		},
	}

	common.AddTimeRangeFlags(cmd, &opts.TimeRange)
	common.AddOutputFlags(cmd, &opts.Output)
	common.AddLimitFlag(cmd, &opts.Limit, 100)
	cmd.Flags().StringVar(&opts.SortBy, "sort-by", "", "Column to sort by: start_time, stop_time, runtime, record_id")
	cmd.Flags().StringVar(&opts.SortDir, "sort-dir", "desc", "Sort direction: asc or desc")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions) error {
	if err := opts.Limit.Validate(); err != nil {
		return err
	}

	values, err := buildQueryValues(opts, time.Now())
	if err != nil {
		return err
	}

	u, err := url.Parse(opts.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid --server URL: %w", err)
	}
	u.Path = "/records"
	u.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, string(body))
	}

	if opts.Output.JSON {
		_, err := cmd.OutOrStdout().Write(append(body, '\n'))
		return err
	}

	records, err := decodeRecords(body)
	if err != nil {
		return err
	}

	printer := common.NewTablePrinter(cmd.OutOrStdout(), opts.Output.NoHeaders)
	if err := printer.PrintTable(recordsTable(records)); err != nil {
		return err
	}
	printer.PrintPaginationInfo(os.Stderr, len(records), opts.Limit.Limit)
	return nil
}

// buildQueryValues translates query flags into the bracket-path URL grammar
// internal/apiserver and pkg/query.Decode expect, resolving relative
// --start-time/--stop-time expressions client-side first.
func buildQueryValues(opts *QueryOptions, now time.Time) (url.Values, error) {
	values := url.Values{}

	if opts.TimeRange.StartTime != "" {
		t, err := timeutil.ParseFlexibleTime(opts.TimeRange.StartTime, now)
		if err != nil {
			return nil, fmt.Errorf("--start-time: %w", err)
		}
		values.Set("stop_time[gte]", t.Format(time.RFC3339))
	}
	if opts.TimeRange.StopTime != "" {
		t, err := timeutil.ParseFlexibleTime(opts.TimeRange.StopTime, now)
		if err != nil {
			return nil, fmt.Errorf("--stop-time: %w", err)
		}
		values.Set("stop_time[lt]", t.Format(time.RFC3339))
	}
	if opts.Limit.Limit > 0 {
		values.Set("limit", strconv.Itoa(opts.Limit.Limit))
	}
	if opts.SortBy != "" {
		dir := opts.SortDir
		if dir == "" {
			dir = "desc"
		}
		values.Set(fmt.Sprintf("sort_by[%s]", dir), opts.SortBy)
	}

	return values, nil
}

func decodeRecords(body []byte) ([]domain.Record, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	records := make([]domain.Record, len(raw))
	for i, item := range raw {
		if err := records[i].UnmarshalJSON(item); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
	}
	return records, nil
}

func recordsTable(records []domain.Record) common.Table {
	t := common.Table{Columns: []string{"RECORD_ID", "START_TIME", "STOP_TIME", "RUNTIME", "COMPONENTS"}}
	for _, rec := range records {
		start, stop, runtime := "-", "-", "-"
		if rec.StartTime != nil {
			start = rec.StartTime.Time().Format(time.RFC3339)
		}
		if rec.StopTime != nil {
			stop = rec.StopTime.Time().Format(time.RFC3339)
		}
		if rec.Runtime != nil {
			runtime = strconv.FormatInt(*rec.Runtime, 10)
		}
		t.Rows = append(t.Rows, []string{
			rec.RecordID.String(),
			start,
			stop,
			runtime,
			strconv.Itoa(len(rec.Components)),
		})
	}
	return t
}
