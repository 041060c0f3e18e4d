package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/procstate/internal/engine"
)

// StartOptions holds flags for the start command.
type StartOptions struct {
	InstanceOptions
	Process string
}

// NewStartCommand creates the start command.
func NewStartCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StartOptions{InstanceOptions: InstanceOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "start <definition>",
		Short: "Start a process instance",
		Long: `Start an instance of a process from a YAML or CUE definition file.

The instance runs until every branch waits for a manual task or a message,
then its state is saved under a new instance id.

Example:
  procstate start --db ./procstate.db ./order.yaml --process Order`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVarP(&opts.Process, "process", "p", "", "name of the process to start (required)")
	_ = cmd.MarkFlagRequired("process")

	return cmd
}

func runStart(opts *StartOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	// Instances keep the definition path; make it independent of the cwd.
	abs, err := filepath.Abs(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid definition path", err)
	}

	return opts.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
		st, err := eng.Start(ctx, abs, opts.Process)
		if err != nil {
			return f.Fail("failed to start "+opts.Process, err)
		}
		f.VerboseLog("started %s from %s", st.ID, abs)
		return f.Success(statusView{Status: st})
	})
}
