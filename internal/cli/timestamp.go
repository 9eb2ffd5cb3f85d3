package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nainya/eventcore/internal/server"
	"github.com/nainya/eventcore/pkg/hlc"
)

// TimestampOptions selects where the inspected timestamp comes from.
type TimestampOptions struct {
	At     string
	Packed uint64
	Decode string
}

// TimestampReport describes one timestamp in all its persisted forms.
type TimestampReport struct {
	LogicalTime       uint64 `json:"logical_time"`
	LogicalCounter    uint64 `json:"logical_counter"`
	Time              string `json:"time"`
	Packed            uint64 `json:"packed"`
	ComparableInteger string `json:"comparable_integer"`
	Wire              string `json:"wire"`
}

// NewTimestampCommand creates the timestamp command.
func NewTimestampCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TimestampOptions{}

	cmd := &cobra.Command{
		Use:   "timestamp",
		Short: "Issue or inspect a hybrid timestamp",
		Long: `Issue a hybrid timestamp from the local clock, or inspect one given in
packed or wire form, and print every persisted form of it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := resolveTimestamp(cmd, opts)
			if err != nil {
				return err
			}
			report, err := NewTimestampReport(ts)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), rootOpts.Format, report)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "issue at this RFC 3339 time instead of now")
	cmd.Flags().Uint64Var(&opts.Packed, "packed", 0, "inspect a packed timestamp")
	cmd.Flags().StringVar(&opts.Decode, "decode", "", "inspect a hex wire-encoded timestamp")
	cmd.MarkFlagsMutuallyExclusive("at", "packed", "decode")

	return cmd
}

func resolveTimestamp(cmd *cobra.Command, opts *TimestampOptions) (hlc.HybridTimestamp, error) {
	switch {
	case cmd.Flags().Changed("packed"):
		return hlc.FromPacked(opts.Packed), nil

	case opts.Decode != "":
		b, err := hex.DecodeString(opts.Decode)
		if err != nil {
			return hlc.HybridTimestamp{}, fmt.Errorf("decode: %w", err)
		}
		return server.DecodeTimestamp(b)
	}

	var provider hlc.PhysicalTimeProvider = hlc.SystemProvider{}
	if opts.At != "" {
		at, err := time.Parse(time.RFC3339Nano, opts.At)
		if err != nil {
			return hlc.HybridTimestamp{}, fmt.Errorf("at: %w", err)
		}
		provider = hlc.NewManualProvider(hlc.FromTime(at))
	}
	clock, err := hlc.NewClock(provider)
	if err != nil {
		return hlc.HybridTimestamp{}, err
	}
	return clock.Update()
}

// NewTimestampReport collects the forms of ts.
func NewTimestampReport(ts hlc.HybridTimestamp) (TimestampReport, error) {
	wire, err := server.EncodeTimestamp(ts)
	if err != nil {
		return TimestampReport{}, err
	}
	return TimestampReport{
		LogicalTime:       ts.LogicalTime,
		LogicalCounter:    ts.LogicalCounter,
		Time:              ts.Time().Format(time.RFC3339Nano),
		Packed:            ts.Timestamp(),
		ComparableInteger: ts.ComparableInteger().String(),
		Wire:              hex.EncodeToString(wire),
	}, nil
}

func writeReport(w io.Writer, format string, r TimestampReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	_, err := fmt.Fprintf(w,
		"logical time:       %d\nlogical counter:    %d\ntime:               %s\npacked:             %d\ncomparable integer: %s\nwire:               %s\n",
		r.LogicalTime, r.LogicalCounter, r.Time, r.Packed, r.ComparableInteger, r.Wire)
	return err
}
