package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/procstate/internal/engine"
	"github.com/roach88/procstate/internal/workflow"
)

// MessageOptions holds flags for the message command.
type MessageOptions struct {
	InstanceOptions
	Payload []string
}

// NewMessageCommand creates the message command.
func NewMessageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MessageOptions{InstanceOptions: InstanceOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "message <instance> <name>",
		Short: "Deliver a message to an instance",
		Long: `Deliver a named message to every task of the instance waiting for it.

The payload is copied into the attributes of the tasks that accept the
message. Delivering a message nobody waits for is not an error; the
matched count is 0.

Example:
  procstate message --db ./procstate.db 0192... paid --payload amount=10`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessage(opts, args[0], args[1], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringArrayVar(&opts.Payload, "payload", nil, "payload entry as key=value (repeatable)")

	return cmd
}

func runMessage(opts *MessageOptions, id, name string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	payload, err := parseAssignments(opts.Payload)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --payload", err)
	}

	return opts.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
		st, matched, err := eng.Deliver(ctx, id, workflow.Message{Name: name, Payload: payload})
		if err != nil {
			return f.Fail("failed to deliver "+name, err)
		}
		return f.Success(statusView{Status: st, Matched: &matched})
	})
}
