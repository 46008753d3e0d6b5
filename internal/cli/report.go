package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/url"
	"slices"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/report"
	"github.com/okian/libero/internal/domain/stats"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Input     string
	Players   []string
	Types     []string
	Sets      []string
	Phases    []string
	Rotations []string
	Skills    []string
	Events    bool
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a filtered report of an event file",
		Long: `Replay an event file and print statistics over the events that match
every given filter. Filters may be repeated or comma separated.

Examples:
  libero report --in match.jsonl
  libero report --in match.jsonl --set 1,2 --type point --format json
  libero report --in match.jsonl --player p7 --rotation 1 --events
  libero report --in match.jsonl --skill attack,serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "in", "i", "", "event file (required)")
	_ = cmd.MarkFlagRequired("in")
	cmd.Flags().StringSliceVar(&opts.Players, "player", nil, "player ids")
	cmd.Flags().StringSliceVar(&opts.Types, "type", nil, "event types")
	cmd.Flags().StringSliceVar(&opts.Sets, "set", nil, "set numbers")
	cmd.Flags().StringSliceVar(&opts.Phases, "phase", nil, "phase labels")
	cmd.Flags().StringSliceVar(&opts.Rotations, "rotation", nil, "rotation indexes 1-6")
	cmd.Flags().StringSliceVar(&opts.Skills, "skill", nil, "skills of the deciding touch")
	cmd.Flags().BoolVar(&opts.Events, "events", false, "list the selected events in text output")

	return cmd
}

func (o *ReportOptions) filter() (report.Filter, error) {
	q := url.Values{}
	add := func(key string, vs []string) {
		for _, v := range vs {
			q.Add(key, v)
		}
	}
	add("player", o.Players)
	add("type", o.Types)
	add("set", o.Sets)
	add("phase", o.Phases)
	add("rotation", o.Rotations)
	add("skill", o.Skills)
	return report.ParseFilter(q)
}

func runReport(ctx context.Context, opts *ReportOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f, err := opts.filter()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}
	file, err := readEventFile(opts.Input)
	if err != nil {
		return err
	}
	l, err := file.Ledger()
	if err != nil {
		return corruptLedger(err)
	}
	r, err := report.Query(ctx, l, f)
	if err != nil {
		return WrapExitError(ExitFailure, "report failed", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), r)
	}
	writeReport(cmd.OutOrStdout(), l.Match(), r, opts.Events)
	return nil
}

func writeSets(w io.Writer, s report.Summary, sets []report.SetScore) {
	fmt.Fprintf(w, "%s %d - %d %s", s.Teams[0], s.Wins[0], s.Wins[1], s.Teams[1])
	if s.Winner.Valid() {
		fmt.Fprintf(w, " (won by %s)", s.Teams[s.Winner.Index()])
	}
	fmt.Fprintln(w)
	for _, set := range sets {
		state := "open"
		if set.Closed {
			state = "closed"
			if set.Conceded {
				state = "conceded"
			}
		}
		fmt.Fprintf(w, "  %s set: %2d - %-2d %s\n", humanize.Ordinal(set.Number), set.Score[0], set.Score[1], state)
	}
}

func writeReport(w io.Writer, m *model.Match, r report.FilteredReport, listEvents bool) {
	fmt.Fprintf(w, "Match %s", r.MatchID)
	if m.Name != "" {
		fmt.Fprintf(w, " %q", m.Name)
	}
	fmt.Fprintln(w)
	writeSets(w, r.Summary, r.Sets)
	fmt.Fprintf(w, "\n%s of %s events selected\n\n", humanize.Comma(int64(r.Stats.Events)), humanize.Comma(int64(r.Summary.Events)))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYER\tTEAM\tPTS\tERR\tIN\tOUT\tEFF")
	for _, id := range r.Stats.PlayerIDs() {
		line := r.Stats.Players[id]
		name, side := string(id), ""
		if p, ok := m.Player(id); ok {
			name = p.Name
			if p.Number > 0 {
				name = fmt.Sprintf("#%d %s", p.Number, p.Name)
			}
		}
		if s, ok := m.SideOf(id); ok {
			side = s.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%+.3f\n", name, side, line.Points, line.Errors, line.SubsIn, line.SubsOut, line.Efficiency)
	}
	_ = tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEAM\tPTS\tERR\tBREAK\tSIDE-OUT\tSUBS")
	for _, side := range model.Sides() {
		t := r.Stats.Teams[side]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", m.Team(side).Name, t.Points, t.Errors, t.BreakPoints, t.SideOuts, t.Substitutions)
	}
	_ = tw.Flush()

	writeSkills(w, m, r.Stats)

	if !listEvents {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSET\tTYPE\tTEAM\tPLAYER\tROT\tPHASE")
	for _, e := range r.Events {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%d\t%s\n", e.Seq, e.Set, e.Type, e.Team, e.Player, e.Rotation, e.Phase)
	}
	_ = tw.Flush()
}

func writeSkills(w io.Writer, m *model.Match, st stats.Report) {
	if len(st.Skills) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYER\tSKILL\tTOUCHES\tPOS%\tEFF%")
	for _, id := range slices.Sorted(maps.Keys(st.Skills)) {
		name := string(id)
		if p, ok := m.Player(id); ok {
			name = p.Name
		}
		skills := st.Skills[id]
		for _, sk := range slices.Sorted(maps.Keys(skills)) {
			l := skills[sk]
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%+.1f\n", name, sk, l.Touches, l.PositiveRate, l.Efficiency)
		}
	}
	_ = tw.Flush()
}
