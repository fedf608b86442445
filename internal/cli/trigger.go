package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rdialog/internal/engine"
	"github.com/roach88/rdialog/internal/harness"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/store"
)

// TriggerOptions holds flags for the trigger command.
type TriggerOptions struct {
	*RootOptions
	Dialog   string
	Kind     string
	Target   string
	Values   string   // YAML file with values, indexed values, button state and form
	Set      []string // ref=value pairs for string values
	Database string
}

// triggerInput is the --values file layout. It shares the scenario step
// keys so a step can be pasted as-is.
type triggerInput struct {
	Values      map[string]any                    `yaml:"values,omitempty"`
	Indexed     map[string][]harness.IndexedInput `yaml:"indexed,omitempty"`
	ButtonState string                            `yaml:"button_state,omitempty"`
	Form        map[string]any                    `yaml:"form,omitempty"`
}

// NewTriggerCommand creates the trigger command.
func NewTriggerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TriggerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trigger [dialogs-dir]",
		Short: "Run one evaluation pass",
		Long: `Run one evaluation pass of a dialog and print its updates.

Values come from a YAML file (--values) using the scenario step keys
values, indexed, button_state and form, and from --set ref=value pairs.
With --db the pass is recorded in the trace store.

Exit codes:
  0 - Pass completed
  1 - Pass failed unexpectedly
  2 - Request rejected or command error

Examples:
  rdialog trigger ./dialogs --dialog job --kind open
  rdialog trigger ./dialogs --dialog job --kind value --target name --set name=nightly
  rdialog trigger ./dialogs --dialog job --kind button --target job --values press.yaml --db trace.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrigger(cmd.Context(), opts, opts.dialogsDir(args), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dialog, "dialog", "", "dialog name (optional when the directory has one dialog)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "trigger kind (value|open|button)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "changed reference or button handler")
	cmd.Flags().StringVar(&opts.Values, "values", "", "YAML file with request values")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "string value as ref=value (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the pass in this trace store")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

func runTrigger(ctx context.Context, opts *TriggerOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(cmd, opts.RootOptions)

	req, err := opts.request()
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "build request", err)
	}

	engineOpts := []engine.Option{engine.WithLogger(opts.log())}
	if path := opts.database(opts.Database); path != "" {
		st, err := store.Open(path)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "open trace store", err)
		}
		defer st.Close()

		// Continue numbering after the last recorded pass.
		last, err := st.ListPasses(ctx, "", 1)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "read trace store", err)
		}
		var seq int64
		if len(last) > 0 {
			seq = last[0].Seq
		}
		engineOpts = append(engineOpts, engine.WithRecorder(st), engine.WithClock(engine.NewClockAt(seq)))
		formatter.VerboseLog("Recording pass in %s after seq %d", path, seq)
	}

	d, err := openDialog(formatter, dir, opts.Dialog, engineOpts...)
	if err != nil {
		return err
	}

	resp, err := d.Trigger(ctx, req)
	if err != nil {
		if engine.IsRequestError(err) {
			_ = formatter.Error("REJECTED", err.Error(), map[string]string{"pass_id": resp.PassID})
			return WrapExitError(ExitCommandError, "request rejected", err)
		}
		_ = formatter.Error("FATAL", err.Error(), map[string]string{"pass_id": resp.PassID})
		return WrapExitError(ExitFailure, "pass failed", err)
	}

	if formatter.JSON() {
		return formatter.encode(CLIResponse{Status: "ok", Data: resp.Updates, PassID: resp.PassID})
	}

	fmt.Fprintf(formatter.Writer, "Pass %s: %d update(s)\n", resp.PassID, len(resp.Updates))
	for _, u := range resp.Updates {
		fmt.Fprintf(formatter.Writer, "  %s = %s", u.Destination, formatIndexed(u.Values))
		if u.State != "" {
			fmt.Fprintf(formatter.Writer, " [%s]", u.State)
		}
		fmt.Fprintln(formatter.Writer)
	}
	return nil
}

// request builds the engine request from the flags and the values file.
func (o *TriggerOptions) request() (ir.Request, error) {
	var in triggerInput
	if o.Values != "" {
		data, err := os.ReadFile(o.Values)
		if err != nil {
			return ir.Request{}, fmt.Errorf("read values: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&in); err != nil {
			return ir.Request{}, fmt.Errorf("parse values %s: %w", o.Values, err)
		}
	}

	for _, kv := range o.Set {
		ref, value, ok := strings.Cut(kv, "=")
		if !ok || ref == "" {
			return ir.Request{}, fmt.Errorf("--set %q: want ref=value", kv)
		}
		if in.Values == nil {
			in.Values = map[string]any{}
		}
		in.Values[ref] = value
	}

	step := harness.Step{
		Trigger:     o.Kind,
		Target:      o.Target,
		Values:      in.Values,
		Indexed:     in.Indexed,
		ButtonState: in.ButtonState,
		Form:        in.Form,
	}
	return step.Request()
}

// formatIndexed renders values as canonical JSON, one per index tuple.
func formatIndexed(values []ir.IndexedValue) string {
	if len(values) == 1 && len(values[0].Indices) == 0 {
		return canonicalString(values[0].Value)
	}
	parts := make([]string, len(values))
	for i, iv := range values {
		parts[i] = fmt.Sprintf("%v=%s", iv.Indices, canonicalString(iv.Value))
	}
	return strings.Join(parts, " ")
}

func canonicalString(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
