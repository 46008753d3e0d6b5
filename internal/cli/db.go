package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/libero/internal/adapters/eventfile"
	"github.com/okian/libero/internal/adapters/repository"
	"github.com/okian/libero/internal/config"
	"github.com/okian/libero/internal/domain/recorder"
	"github.com/okian/libero/pkg/logger"
)

// DBOptions holds the flags shared by the database commands.
type DBOptions struct {
	*RootOptions
	Database string
	Input    string
	Output   string
	MatchID  string
}

func addDBFlag(cmd *cobra.Command, opts *DBOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
}

func openStore(ctx context.Context, path string) (*repository.SQLiteStore, error) {
	st, err := repository.Open(ctx, path, repository.WithLogger(logger.Get().Named("repository")))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func storeError(msg string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return WrapExitError(ExitCommandError, msg, err)
	case errors.Is(err, repository.ErrMatchExists):
		return WrapExitError(ExitCommandError, msg, err)
	}
	return WrapExitError(ExitFailure, msg, err)
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DBOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a match from a YAML roster",
		Long: `Create an empty match in the database from a YAML roster file. Rules
missing from the roster come from the configuration.

Examples:
  libero create --db ./libero.db --roster final.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.LoadFile(ctx, opts.configPath())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			base, err := cfg.Rules()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid scoring rules", err)
			}
			roster, err := eventfile.ReadRosterFile(opts.Input)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read roster", err)
			}
			m, rules, err := roster.Match(base)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid roster", err)
			}

			st, err := openStore(ctx, opts.Database)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.SaveMatch(ctx, m, rules); err != nil {
				return storeError("failed to save match", err)
			}
			return printSaved(cmd, opts.RootOptions, m.ID, 0)
		},
	}

	addDBFlag(cmd, opts)
	cmd.Flags().StringVar(&opts.Input, "roster", "", "YAML roster file (required)")
	_ = cmd.MarkFlagRequired("roster")

	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DBOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an event file into the database",
		Long: `Replay an event file and store the match with its whole ledger in one
transaction. A file that does not replay is refused.

Examples:
  libero import --db ./libero.db --in match.jsonl`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f, err := readEventFile(opts.Input)
			if err != nil {
				return err
			}
			l, err := f.Ledger()
			if err != nil {
				return corruptLedger(err)
			}

			st, err := openStore(ctx, opts.Database)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.SaveMatch(ctx, l.Match(), l.Rules(), l.Events()...); err != nil {
				return storeError("failed to import match", err)
			}
			return printSaved(cmd, opts.RootOptions, l.Match().ID, l.Len())
		},
	}

	addDBFlag(cmd, opts)
	cmd.Flags().StringVarP(&opts.Input, "in", "i", "", "event file (required)")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DBOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a stored match as an event file",
		Long: `Load a match and its ledger from the database, verify that it replays,
and write it as an event file.

Examples:
  libero export --db ./libero.db --match final-2026 --out final.jsonl`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, opts.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			l, err := loadLedger(ctx, st, opts.MatchID)
			if err != nil {
				return err
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
			return nil
		},
	}

	addDBFlag(cmd, opts)
	cmd.Flags().StringVar(&opts.MatchID, "match", "", "match id (required)")
	_ = cmd.MarkFlagRequired("match")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "output file (default stdout)")

	return cmd
}

func loadLedger(ctx context.Context, st repository.Store, id string) (*recorder.Ledger, error) {
	m, rules, err := st.Match(ctx, id)
	if err != nil {
		return nil, storeError("failed to load match", err)
	}
	events, err := st.Events(ctx, id)
	if err != nil {
		return nil, storeError("failed to load events", err)
	}
	l, err := recorder.Load(m, rules, events)
	if err != nil {
		return nil, corruptLedger(err)
	}
	return l, nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DBOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the matches stored in the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, opts.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			matches, err := st.Matches(ctx)
			if err != nil {
				return storeError("failed to list matches", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"matches": matches})
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPLAYED\tTEAMS\tEVENTS")
			for _, m := range matches {
				fmt.Fprintf(tw, "%s\t%s\t%s v %s\t%d\n", m.ID, m.PlayedAt.Format(time.DateOnly), m.Teams[0], m.Teams[1], m.Events)
			}
			return tw.Flush()
		},
	}

	addDBFlag(cmd, opts)

	return cmd
}

func printSaved(cmd *cobra.Command, opts *RootOptions, id string, events int) error {
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"match_id": id, "events": events})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved match %s with %d events\n", id, events)
	return nil
}
