package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/procstate/internal/engine"
	"github.com/roach88/procstate/internal/tasks"
)

// CompleteOptions holds flags for the complete command.
type CompleteOptions struct {
	InstanceOptions
	Choice     string
	Attributes []string
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompleteOptions{InstanceOptions: InstanceOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "complete <instance> <task>",
		Short: "Complete a READY task",
		Long: `Complete a READY task of an instance and run the instance to its next wait.

--choice selects the outgoing flow of a following exclusive gateway; it is
stored as the "choice" attribute. --attr sets further attributes; values
are parsed as YAML scalars.

Example:
  procstate complete --db ./procstate.db 0192... Review --choice Yes
  procstate complete --db ./procstate.db 0192... Fill --attr amount=10 --attr note=rush`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(opts, args[0], args[1], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Choice, "choice", "", "value of the choice attribute")
	cmd.Flags().StringArrayVar(&opts.Attributes, "attr", nil, "attribute as key=value (repeatable)")

	return cmd
}

func runComplete(opts *CompleteOptions, id, task string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	attrs, err := parseAssignments(opts.Attributes)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --attr", err)
	}
	if opts.Choice != "" {
		attrs[tasks.ChoiceAttribute] = opts.Choice
	}

	return opts.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
		st, err := eng.Complete(ctx, id, task, attrs)
		if err != nil {
			return f.Fail("failed to complete "+task, err)
		}
		return f.Success(statusView{Status: st})
	})
}
