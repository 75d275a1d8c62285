package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Execute runs the CLI with the provided args and manager.
func Execute(ctx context.Context, args []string, manager Manager, out, errOut io.Writer) int {
	cmd := NewRootCommand(manager, out, errOut)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) || strings.HasPrefix(err.Error(), "unknown command") {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return ExitInvalidUsage
		}
		var runErr *runtimeError
		if !errors.As(err, &runErr) || !runErr.reported {
			fmt.Fprintf(errOut, "Error: %v\n", err)
		}
		return ExitRuntimeError
	}
	return ExitSuccess
}

// NewRootCommand builds the root CLI command tree.
func NewRootCommand(manager Manager, out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "nmrcerm",
		Short:         "Bridge NMR visit metadata to the ARIA registry",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch f := format(cmd); f {
			case FormatText, FormatJSON, FormatYAML:
				return nil
			default:
				return &usageError{err: fmt.Errorf("unknown output format %q", f)}
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.PersistentFlags().StringP("output", "o", FormatText, "output format: text, json or yaml")

	root.AddCommand(newGenerateMetadataCommand(manager))
	root.AddCommand(newSendMetadataCommand(manager))
	root.AddCommand(newProjectCommand(manager))
	root.AddCommand(newVersionCommand(manager))

	return root
}

type usageError struct {
	err error
}

func (u *usageError) Error() string {
	if u.err == nil {
		return "invalid usage"
	}
	return u.err.Error()
}

type runtimeError struct {
	err error
	// reported is set when the error was already written as a result.
	reported bool
}

func (r *runtimeError) Error() string {
	if r.err == nil {
		return "runtime error"
	}
	return r.err.Error()
}

func requireArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &usageError{err: fmt.Errorf("requires %d argument(s), got %d", n, len(args))}
		}
		return nil
	}
}

func requireFlags(cmd *cobra.Command, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	for _, name := range names {
		v, _ := cmd.Flags().GetString(name)
		if v == "" {
			return nil, &usageError{err: fmt.Errorf("--%s is required", name)}
		}
		values[name] = v
	}
	return values, nil
}

func newGenerateMetadataCommand(manager Manager) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-metadata",
		Short: "fetch a visit export from the metadata server",
		Args:  requireArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags, err := requireFlags(cmd, "name", "vid")
			if err != nil {
				return err
			}
			return writeResult(cmd, manager.GenerateMetadata(cmd.Context(), flags["name"], flags["vid"]))
		},
	}
	cmd.Flags().String("name", "", "project name")
	cmd.Flags().String("vid", "", "visit id on the metadata server")
	return cmd
}

func newSendMetadataCommand(manager Manager) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send-metadata",
		Short: "upload the project export to the registry",
		Args:  requireArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags, err := requireFlags(cmd, "name")
			if err != nil {
				return err
			}
			return writeResult(cmd, manager.SendMetadata(cmd.Context(), flags["name"]))
		},
	}
	cmd.Flags().String("name", "", "project name")
	return cmd
}

func newProjectCommand(manager Manager) *cobra.Command {
	project := &cobra.Command{
		Use:   "project",
		Short: "inspect and edit the project table",
	}

	setCmd := &cobra.Command{
		Use:   "set <project> <key> <value>",
		Short: "set a project value",
		Args:  requireArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := manager.SetProject(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return &runtimeError{err: err}
			}
			return writeOutput(cmd, ProjectEntry{Key: args[1], Value: args[2]},
				fmt.Sprintf("project %s updated: %q = %q", args[0], args[1], args[2]))
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <project>",
		Short: "show the current values of a project",
		Args:  requireArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := manager.ShowProject(cmd.Context(), args[0])
			if err != nil {
				return &runtimeError{err: err}
			}
			if format(cmd) != FormatText {
				return writeOutput(cmd, entries, "")
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tVALUE\tUPDATED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Key, e.Value, e.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	project.AddCommand(setCmd, showCmd)
	return project
}

func newVersionCommand(manager Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Args:  requireArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := manager.Version()
			return writeOutput(cmd, v, fmt.Sprintf("nmrcerm %s (commit %s, built %s, %s, %s)",
				v.Version, v.Commit, v.BuildDate, v.GoVersion, v.Platform))
		},
	}
}

func format(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}

// writeResult prints an action result. A failed action becomes a runtime error.
func writeResult(cmd *cobra.Command, result Result) error {
	if format(cmd) == FormatText && !result.Success {
		return &runtimeError{err: errors.New(result.Summary)}
	}
	if err := writeOutput(cmd, result, result.Summary); err != nil {
		return err
	}
	if !result.Success {
		return &runtimeError{err: errors.New(result.Summary), reported: true}
	}
	return nil
}

func writeOutput(cmd *cobra.Command, v any, text string) error {
	out := cmd.OutOrStdout()
	switch format(cmd) {
	case FormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case FormatYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	default:
		if text == "" {
			return nil
		}
		_, err := fmt.Fprintln(out, text)
		return err
	}
}
