package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Dialog      string // optional - filter to one dialog
	Status      string // optional - ok, fatal or rejected
	TriggerKind string // optional - value, open or button
	Limit    int
	Pass     string // show one pass in full
	Skipping string // list passes that skipped this provider
}

// PassSummary is one line of the pass list.
type PassSummary struct {
	ID       string `json:"id"`
	Dialog   string `json:"dialog"`
	Seq      int64  `json:"seq"`
	Trigger  string `json:"trigger"`
	Status   string `json:"status"`
	Computes int    `json:"computes"`
	Error    string `json:"error,omitempty"`
}

// SkipDetail explains one skipped provider of a pass.
type SkipDetail struct {
	Provider string `json:"provider"`
	Cause    string `json:"cause"`
	Reason   string `json:"reason,omitempty"`
	Failed   bool   `json:"failed,omitempty"`
}

// PassDetail is a full pass trace.
type PassDetail struct {
	PassSummary
	GraphHash      string            `json:"graph_hash"`
	ValuesHash     string            `json:"values_hash"`
	FailedProvider string            `json:"failed_provider,omitempty"`
	Updates        []ir.UpdateResult `json:"updates"`
	Skipped        []SkipDetail      `json:"skipped"`
	EngineVersion  string            `json:"engine_version"`
	IRVersion      string            `json:"ir_version"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded passes",
		Long: `Inspect the passes recorded in a trace store.

Lists the most recent passes in sequence order, shows one pass with its
updates and skipped providers, or finds the passes in which a provider
was skipped.

Examples:
  rdialog trace --db ./trace.db
  rdialog trace --db ./trace.db --dialog job --limit 5
  rdialog trace --db ./trace.db --status fatal
  rdialog trace --db ./trace.db --pass 0192f0c4-...
  rdialog trace --db ./trace.db --skipping namePlaceholder --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the trace store (default from config)")
	cmd.Flags().StringVar(&opts.Dialog, "dialog", "", "only list passes of this dialog")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only list passes with this status (ok|fatal|rejected)")
	cmd.Flags().StringVar(&opts.TriggerKind, "trigger-kind", "", "only list passes of this trigger kind (value|open|button)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of recent passes to list (0 for all)")
	cmd.Flags().StringVar(&opts.Pass, "pass", "", "show one pass in full")
	cmd.Flags().StringVar(&opts.Skipping, "skipping", "", "list passes that skipped or failed this provider")
	cmd.MarkFlagsMutuallyExclusive("pass", "skipping")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(cmd, opts.RootOptions)

	path := opts.database(opts.Database)
	if path == "" {
		_ = formatter.Error(ErrCodeGeneric, "no trace store: pass --db or set database in the config", nil)
		return NewExitError(ExitCommandError, "no trace store configured")
	}
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open trace store", err)
	}
	defer st.Close()

	switch {
	case opts.Pass != "":
		return tracePass(ctx, formatter, st, opts.Pass)
	case opts.Skipping != "":
		return traceSkipping(ctx, formatter, st, opts.Skipping)
	default:
		q := store.Where(map[string]string{
			store.ColDialog:      opts.Dialog,
			store.ColStatus:      opts.Status,
			store.ColTriggerKind: opts.TriggerKind,
		})
		q.Limit = opts.Limit
		return traceList(ctx, formatter, st, q)
	}
}

func traceList(ctx context.Context, formatter *OutputFormatter, st *store.Store, q store.Query) error {
	passes, err := st.QueryPasses(ctx, q)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list passes", err)
	}

	out := make([]PassSummary, len(passes))
	for i, p := range passes {
		out[i] = summarize(p)
	}

	if formatter.JSON() {
		return formatter.Success(out)
	}
	if len(out) == 0 {
		fmt.Fprintln(formatter.Writer, "No passes recorded.")
		return nil
	}
	for _, p := range out {
		fmt.Fprintf(formatter.Writer, "%6d  %-8s  %s  %s  %s (%d compute(s))\n",
			p.Seq, p.Status, p.ID, p.Dialog, p.Trigger, p.Computes)
		if p.Error != "" {
			fmt.Fprintf(formatter.Writer, "        %s\n", p.Error)
		}
	}
	return nil
}

func tracePass(ctx context.Context, formatter *OutputFormatter, st *store.Store, id string) error {
	p, err := st.ReadPass(ctx, id)
	if errors.Is(err, store.ErrPassNotFound) {
		_ = formatter.Error("NOT_FOUND", fmt.Sprintf("pass %s not found", id), nil)
		return WrapExitError(ExitCommandError, "pass not found", err)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read pass", err)
	}

	detail := PassDetail{
		PassSummary:    summarize(p),
		GraphHash:      p.GraphHash,
		ValuesHash:     p.ValuesHash,
		FailedProvider: p.FailedProvider,
		Updates:        p.Updates,
		Skipped:        make([]SkipDetail, len(p.Skips)),
		EngineVersion:  p.EngineVersion,
		IRVersion:      p.IRVersion,
	}
	if detail.Updates == nil {
		detail.Updates = []ir.UpdateResult{}
	}
	for i, s := range p.Skips {
		detail.Skipped[i] = SkipDetail{Provider: s.ProviderID, Cause: s.Cause, Reason: s.Reason, Failed: s.Failed}
	}

	if formatter.JSON() {
		return formatter.Success(detail)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Pass %s (seq %d)\n", detail.ID, detail.Seq)
	fmt.Fprintf(w, "  dialog:  %s (graph %s)\n", detail.Dialog, detail.GraphHash)
	fmt.Fprintf(w, "  trigger: %s\n", detail.Trigger)
	fmt.Fprintf(w, "  status:  %s\n", detail.Status)
	if detail.Error != "" {
		fmt.Fprintf(w, "  error:   %s\n", detail.Error)
	}
	if len(detail.Updates) > 0 {
		fmt.Fprintln(w, "\nUpdates:")
		for _, u := range detail.Updates {
			fmt.Fprintf(w, "  %s = %s", u.Destination, formatIndexed(u.Values))
			if u.State != "" {
				fmt.Fprintf(w, " [%s]", u.State)
			}
			fmt.Fprintln(w)
		}
	}
	if len(detail.Skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped:")
		for _, s := range detail.Skipped {
			if s.Failed {
				fmt.Fprintf(w, "  %s failed: %s\n", s.Provider, s.Reason)
			} else {
				fmt.Fprintf(w, "  %s (after %s)\n", s.Provider, s.Cause)
			}
		}
	}
	return nil
}

func traceSkipping(ctx context.Context, formatter *OutputFormatter, st *store.Store, provider string) error {
	ids, err := st.PassesSkipping(ctx, provider)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to query passes", err)
	}
	if ids == nil {
		ids = []string{}
	}

	if formatter.JSON() {
		return formatter.Success(map[string]any{"provider": provider, "passes": ids})
	}
	if len(ids) == 0 {
		fmt.Fprintf(formatter.Writer, "No passes skipped %s.\n", provider)
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(formatter.Writer, id)
	}
	return nil
}

func summarize(p store.PassRecord) PassSummary {
	return PassSummary{
		ID:       p.ID,
		Dialog:   p.Dialog,
		Seq:      p.Seq,
		Trigger:  p.Trigger.String(),
		Status:   p.Status,
		Computes: p.Computes,
		Error:    p.Error,
	}
}
