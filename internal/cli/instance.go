package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/procstate/internal/engine"
	"github.com/roach88/procstate/internal/store"
)

// InstanceOptions holds the flags shared by commands that work on the
// instance database.
type InstanceOptions struct {
	*RootOptions
	Database string
}

func (o *InstanceOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
}

func (o *InstanceOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// withEngine opens the database, runs fn against an engine on top of it
// and closes the database again.
func (o *InstanceOptions) withEngine(cmd *cobra.Command, fn func(context.Context, *engine.Engine) error) error {
	logLevel := slog.LevelWarn
	if o.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(o.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	eng, err := engine.New(ctx, st, engine.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}
	return fn(ctx, eng)
}

// parseAssignments turns key=value pairs into attributes. Values are read
// as YAML scalars, so 10 is an integer, true a boolean and anything else a
// string.
func parseAssignments(pairs []string) (map[string]any, error) {
	attrs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q: expected key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid attribute %q: %w", pair, err)
		}
		if value == nil {
			value = raw
		}
		attrs[key] = value
	}
	return attrs, nil
}

// statusView renders an engine.Status.
type statusView struct {
	engine.Status
	Matched *int `json:"matched,omitempty"`
}

func (v statusView) renderText(w io.Writer) {
	fmt.Fprintf(w, "Instance %s (%s) seq %d\n", v.ID, v.Process, v.Seq)
	fmt.Fprintf(w, "State: %s\n", v.State)
	if v.Matched != nil {
		fmt.Fprintf(w, "Matched: %d\n", *v.Matched)
	}
	if v.Completed {
		fmt.Fprintln(w, "✓ Completed")
		return
	}
	for _, t := range v.Ready {
		line := "  READY   " + qualified(v.Process, t)
		if t.Manual {
			line += " [manual]"
		}
		if len(t.Choices) > 0 {
			line += " choices: " + strings.Join(t.Choices, ", ")
		}
		fmt.Fprintln(w, line)
	}
	for _, t := range v.Waiting {
		fmt.Fprintln(w, "  WAITING "+qualified(v.Process, t))
	}
}

// qualified prefixes tasks of nested workflows with the workflow name.
func qualified(process string, t engine.TaskInfo) string {
	if t.Workflow == "" || t.Workflow == process {
		return t.Name
	}
	return t.Workflow + "/" + t.Name
}
