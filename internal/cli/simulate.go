package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/libero/internal/adapters/eventfile"
	"github.com/okian/libero/internal/domain/scoring"
	"github.com/okian/libero/internal/simulate"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Seed       uint64
	Output     string
	SetTarget  int
	SetsToWin  int
	RosterSize int
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a valid match event file",
		Long: `Play a whole match with a seeded random source and write it as an
event file. The same seed always produces the same file.

Examples:
  libero simulate --seed 42 --out match.jsonl
  libero simulate --seed 7 --set-target 21 --sets-to-win 2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(opts, cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "random seed")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&opts.SetTarget, "set-target", scoring.DefaultSetTarget, "points to win a regular set")
	cmd.Flags().IntVar(&opts.SetsToWin, "sets-to-win", scoring.DefaultSetsToWin, "sets needed to win the match")
	cmd.Flags().IntVar(&opts.RosterSize, "roster-size", 12, "players per team")

	return cmd
}

func runSimulate(opts *SimulateOptions, cmd *cobra.Command) error {
	rules, err := scoring.New(scoring.WithSetTarget(opts.SetTarget), scoring.WithSetsToWin(opts.SetsToWin))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid rules", err)
	}
	l, err := simulate.Match(opts.Seed, rules, simulate.WithRosterSize(opts.RosterSize))
	if err != nil {
		return WrapExitError(ExitFailure, "simulation failed", err)
	}

	w, done, err := createOutput(cmd.OutOrStdout(), opts.Output)
	if err != nil {
		return err
	}
	if err := eventfile.WriteLedger(w, l); err != nil {
		_ = done()
		return WrapExitError(ExitCommandError, "failed to write events", err)
	}
	if err := done(); err != nil {
		return WrapExitError(ExitCommandError, "failed to write events", err)
	}

	if opts.Output != "" && opts.Output != "-" {
		st := l.State()
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d events of match %s (%d-%d) to %s\n",
			l.Len(), l.Match().ID, st.Wins[0], st.Wins[1], opts.Output)
	}
	return nil
}
