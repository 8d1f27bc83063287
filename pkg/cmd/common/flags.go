package common

import (
	"fmt"

	"github.com/spf13/cobra"
)

// TimeRangeFlags contains the --start-time/--stop-time flags shared by
// auditorctl's read commands (query.go), accepting the same relative or
// RFC3339 syntax internal/timeutil.ParseFlexibleTime understands.
type TimeRangeFlags struct {
	StartTime string
	StopTime  string
}

// AddTimeRangeFlags adds time range flags to a command. Both flags are
// optional: an empty value leaves that bound out of the query entirely.
func AddTimeRangeFlags(cmd *cobra.Command, flags *TimeRangeFlags) {
	cmd.Flags().StringVar(&flags.StartTime, "start-time", "", "Only records with stop_time at or after this time (relative: 'now-7d' or absolute: RFC3339)")
	cmd.Flags().StringVar(&flags.StopTime, "stop-time", "", "Only records with stop_time before this time (relative: 'now' or absolute: RFC3339)")
}

// OutputFlags contains common output flags.
type OutputFlags struct {
	NoHeaders bool
	JSON      bool
}

// AddOutputFlags adds output flags to a command.
func AddOutputFlags(cmd *cobra.Command, flags *OutputFlags) {
	cmd.Flags().BoolVar(&flags.NoHeaders, "no-headers", false, "Omit table headers")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Print raw JSON records instead of a table")
}

// LimitFlag is the --limit flag shared by read commands (§4.3's Limit
// operator: a result cap, not a pagination cursor — AUDITOR's query API has
// no continuation token).
type LimitFlag struct {
	Limit int
}

// AddLimitFlag adds the limit flag to a command.
func AddLimitFlag(cmd *cobra.Command, flags *LimitFlag, defaultLimit int) {
	cmd.Flags().IntVar(&flags.Limit, "limit", defaultLimit, "Maximum number of records returned")
}

// Validate checks that the limit flag is usable.
func (f *LimitFlag) Validate() error {
	if f.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}
	return nil
}
