package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/procstate/internal/engine"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InstanceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <instance>",
		Short: "Show the current state of an instance",
		Long: `Restore an instance read-only and list its READY and WAITING tasks.

Example:
  procstate show --db ./procstate.db 0192...
  procstate show --db ./procstate.db 0192... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return opts.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				st, err := eng.Status(ctx, args[0])
				if err != nil {
					return f.Fail("failed to show "+args[0], err)
				}
				return f.Success(statusView{Status: st})
			})
		},
	}

	opts.addFlags(cmd)
	return cmd
}

// HistoryEntry is one saved state of an instance.
type HistoryEntry struct {
	Seq       int64  `json:"seq"`
	Operation string `json:"operation"`
	State     string `json:"state"`
}

type historyView struct {
	Instance string         `json:"instance"`
	Entries  []HistoryEntry `json:"entries"`
}

func (v historyView) renderText(w io.Writer) {
	fmt.Fprintf(w, "History of %s:\n", v.Instance)
	for _, e := range v.Entries {
		fmt.Fprintf(w, "  %4d  %-24s %s\n", e.Seq, e.Operation, e.State)
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InstanceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <instance>",
		Short: "List every saved state of an instance",
		Long: `List the snapshots of an instance in the order they were saved,
with the operation that produced each one.

Example:
  procstate history --db ./procstate.db 0192...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return opts.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				snaps, err := eng.History(ctx, args[0])
				if err != nil {
					return f.Fail("failed to read history of "+args[0], err)
				}
				view := historyView{Instance: args[0], Entries: make([]HistoryEntry, 0, len(snaps))}
				for _, s := range snaps {
					view.Entries = append(view.Entries, HistoryEntry{Seq: s.Seq, Operation: s.Operation, State: s.State})
				}
				return f.Success(view)
			})
		},
	}

	opts.addFlags(cmd)
	return cmd
}
