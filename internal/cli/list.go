package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/procstate/internal/engine"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	InstanceOptions
	Active bool
}

// InstanceSummary is one row of the list command.
type InstanceSummary struct {
	ID         string `json:"id"`
	Process    string `json:"process"`
	Definition string `json:"definition"`
	CreatedSeq int64  `json:"created_seq"`
}

type listView []InstanceSummary

func (v listView) renderText(w io.Writer) {
	if len(v) == 0 {
		fmt.Fprintln(w, "No instances.")
		return
	}
	for _, s := range v {
		fmt.Fprintf(w, "%s  %-16s %s\n", s.ID, s.Process, s.Definition)
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{InstanceOptions: InstanceOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List process instances",
		Long: `List the instances in the database in start order.

Example:
  procstate list --db ./procstate.db --active`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return opts.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				insts, err := eng.Instances(ctx, opts.Active)
				if err != nil {
					return f.Fail("failed to list instances", err)
				}
				view := make(listView, 0, len(insts))
				for _, inst := range insts {
					view = append(view, InstanceSummary{
						ID:         inst.ID,
						Process:    inst.Process,
						Definition: inst.Definition,
						CreatedSeq: inst.CreatedSeq,
					})
				}
				return f.Success(view)
			})
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.Active, "active", false, "only instances that have not completed")

	return cmd
}
