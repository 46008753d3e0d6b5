package cli

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/okian/libero/internal/adapters/eventfile"
	"github.com/okian/libero/internal/domain/recorder"
	"github.com/okian/libero/internal/domain/report"
	"github.com/okian/libero/internal/domain/stats"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Input string
}

// ReplayResult is the outcome of replaying one event file.
type ReplayResult struct {
	MatchID       string            `json:"match_id"`
	Events        int               `json:"events"`
	LastSeq       uint64            `json:"last_seq"`
	Summary       report.Summary    `json:"summary"`
	Sets          []report.SetScore `json:"sets"`
	Deterministic bool              `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an event file and verify determinism",
		Long: `Replay an event file through the recorder twice. Both runs must accept
every event and reach the same ledger, state and statistics.

Exit codes:
  0 - The file replays deterministically
  1 - The file is not a valid ledger, or the runs differ
  2 - Command error (file not found, etc.)

Examples:
  libero replay --in match.jsonl
  libero replay --in match.jsonl --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "in", "i", "", "event file (required)")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	f, err := readEventFile(opts.Input)
	if err != nil {
		return err
	}

	first, err := f.Ledger()
	if err != nil {
		return corruptLedger(err)
	}
	second, err := f.Ledger()
	if err != nil {
		return corruptLedger(err)
	}

	firstStats, err := stats.Aggregate(first.Events())
	if err != nil {
		return WrapExitError(ExitFailure, "aggregation failed", err)
	}
	secondStats, err := stats.Aggregate(second.Events())
	if err != nil {
		return WrapExitError(ExitFailure, "aggregation failed", err)
	}

	result := ReplayResult{
		MatchID: first.Match().ID,
		Events:  first.Len(),
		LastSeq: first.State().LastSeq,
		Summary: report.Summarize(first),
		Sets:    report.SetScores(first),
		Deterministic: reflect.DeepEqual(first.Events(), second.Events()) &&
			reflect.DeepEqual(first.State(), second.State()) &&
			reflect.DeepEqual(firstStats, secondStats),
	}

	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Match %s: %d events, last seq %d\n", result.MatchID, result.Events, result.LastSeq)
		writeSets(w, result.Summary, result.Sets)
		if result.Deterministic {
			fmt.Fprintln(w, "OK: replay is deterministic")
		} else {
			fmt.Fprintln(w, "FAIL: replays differ")
		}
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func readEventFile(path string) (*eventfile.File, error) {
	f, err := eventfile.ReadFile(path)
	if err != nil {
		if errors.Is(err, eventfile.ErrMalformed) || errors.Is(err, eventfile.ErrFormat) || errors.Is(err, eventfile.ErrMissingHeader) {
			return nil, WrapExitError(ExitFailure, "invalid event file", err)
		}
		return nil, WrapExitError(ExitCommandError, "failed to read event file", err)
	}
	return f, nil
}

func corruptLedger(err error) error {
	var corrupt *recorder.CorruptLedgerError
	if errors.As(err, &corrupt) {
		return WrapExitError(ExitFailure, fmt.Sprintf("ledger rejected at seq %d", corrupt.Seq), err)
	}
	return WrapExitError(ExitFailure, "ledger rejected", err)
}
