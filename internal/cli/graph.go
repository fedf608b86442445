package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rdialog/internal/graph"
	"github.com/roach88/rdialog/internal/ir"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	Dialog      string
	TriggerKind string
	Target      string
	Mermaid     bool
}

// PlanStep is one provider of a resolved plan.
type PlanStep struct {
	Provider string `json:"provider"`
	Emit     bool   `json:"emit"`
}

// PlanResult is a resolved trigger plan.
type PlanResult struct {
	Trigger    string     `json:"trigger"`
	Steps      []PlanStep `json:"steps"`
	References []string   `json:"references"`
}

// GraphResult describes a dialog's dependency graph.
type GraphResult struct {
	Dialog     string      `json:"dialog"`
	Hash       string      `json:"hash"`
	Providers  []string    `json:"providers"`
	References []string    `json:"references"`
	Eager      []string    `json:"eager,omitempty"`
	Plan       *PlanResult `json:"plan,omitempty"`
	Mermaid    string      `json:"mermaid,omitempty"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph [dialogs-dir]",
		Short: "Show a dialog's dependency graph",
		Long: `Show the dependency graph of a dialog, or the plan one trigger resolves to.

Without --trigger-kind the whole graph is listed. With it, the providers
the trigger reaches are listed in evaluation order; support steps feed
the plan without emitting updates.

Examples:
  rdialog graph ./dialogs --dialog job
  rdialog graph ./dialogs --dialog job --trigger-kind value --target name
  rdialog graph ./dialogs --dialog job --trigger-kind open --mermaid`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, opts.dialogsDir(args), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dialog, "dialog", "", "dialog name (optional when the directory has one dialog)")
	cmd.Flags().StringVar(&opts.TriggerKind, "trigger-kind", "", "resolve a plan for this trigger kind (value|open)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "reference changed by a value trigger")
	cmd.Flags().BoolVar(&opts.Mermaid, "mermaid", false, "render as a Mermaid flowchart")

	return cmd
}

func runGraph(opts *GraphOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	d, err := openDialog(formatter, dir, opts.Dialog)
	if err != nil {
		return err
	}
	g := d.Graph()

	var plan *graph.Plan
	if opts.TriggerKind != "" {
		t := ir.Trigger{Kind: ir.TriggerKind(opts.TriggerKind), Target: opts.Target}
		plan, err = d.Plan(t)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("resolve %s", t), err)
		}
	}

	result := GraphResult{
		Dialog:     d.Name(),
		Hash:       g.Hash(),
		References: g.References(),
		Eager:      g.Eager(),
	}
	for _, n := range g.Providers() {
		result.Providers = append(result.Providers, n.ID)
	}
	if plan != nil {
		result.Plan = planResult(plan)
	}
	if opts.Mermaid {
		result.Mermaid = graph.Mermaid(g, plan)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	switch {
	case opts.Mermaid:
		fmt.Fprint(w, result.Mermaid)
	case plan != nil:
		fmt.Fprintf(w, "Plan for %s (%d step(s)):\n", result.Plan.Trigger, len(result.Plan.Steps))
		for i, s := range result.Plan.Steps {
			suffix := ""
			if !s.Emit {
				suffix = " (support)"
			}
			fmt.Fprintf(w, "  %d. %s%s\n", i+1, s.Provider, suffix)
		}
		if len(result.Plan.References) > 0 {
			fmt.Fprintf(w, "Reads: %v\n", result.Plan.References)
		}
	default:
		fmt.Fprintf(w, "Dialog %s (%s)\n", result.Dialog, result.Hash)
		fmt.Fprint(w, g.String())
	}
	return nil
}

func planResult(plan *graph.Plan) *PlanResult {
	pr := &PlanResult{
		Trigger:    plan.Trigger.String(),
		Steps:      make([]PlanStep, len(plan.Steps)),
		References: plan.References,
	}
	for i, s := range plan.Steps {
		pr.Steps[i] = PlanStep{Provider: s.Node.ID, Emit: s.Emit}
	}
	if pr.References == nil {
		pr.References = []string{}
	}
	return pr
}
