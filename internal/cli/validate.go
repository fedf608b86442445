package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rdialog/internal/compiler"
	"github.com/roach88/rdialog/internal/graph"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidationIssue is one problem found in a dialog directory.
type ValidationIssue struct {
	Dialog  string `json:"dialog,omitempty"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds the validation outcome.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Dialogs []string          `json:"dialogs"`
	Errors  []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [dialogs-dir]",
		Short: "Validate CUE dialogs",
		Long: `Validate CUE dialog definitions without running them.

Checks the schema of every dialog, then builds its dependency graph to
find unknown references, duplicate identities and cycles. All problems
are reported, not just the first.

Exit codes:
  0 - All dialogs valid
  1 - One or more dialogs invalid
  2 - Command error (directory not found, no CUE files, ...)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, opts.dialogsDir(args), cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	formatter.VerboseLog("Validating dialogs in %s", dir)

	loaded, errs := compiler.Load(dir)
	if loaded == nil {
		return reportLoadErrors(formatter, errs)
	}

	result := ValidationResult{Valid: true, Dialogs: loaded.Names()}
	for _, err := range errs {
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) {
			result.Errors = append(result.Errors, ValidationIssue{
				Code:    loadErr.Code,
				Message: loadErr.Message,
				Line:    lineOf(loadErr),
			})
			continue
		}
		result.Errors = append(result.Errors, ValidationIssue{Code: ErrCodeGeneric, Message: err.Error()})
	}

	for _, spec := range loaded.Dialogs {
		formatter.VerboseLog("Validating dialog: %s", spec.Name)

		if verrs := compiler.Validate(spec); len(verrs) > 0 {
			for _, v := range verrs {
				result.Errors = append(result.Errors, ValidationIssue{
					Dialog:  spec.Name,
					Code:    v.Code,
					Field:   v.Field,
					Message: v.Message,
					Line:    v.Line,
				})
			}
			continue
		}

		if _, err := compiler.Instantiate(spec); err != nil {
			result.Errors = append(result.Errors, constructionIssues(spec.Name, err)...)
		}
	}

	if len(result.Errors) == 0 {
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "✓ All dialogs valid (%d)\n", len(result.Dialogs))
		return nil
	}

	result.Valid = false
	return outputValidationErrors(formatter, result)
}

// constructionIssues converts graph construction errors of one dialog.
func constructionIssues(dialog string, err error) []ValidationIssue {
	ces := graph.ConstructionErrors(err)
	if len(ces) == 0 {
		return []ValidationIssue{{Dialog: dialog, Code: ErrCodeGeneric, Message: err.Error()}}
	}
	out := make([]ValidationIssue, len(ces))
	for i, ce := range ces {
		out[i] = ValidationIssue{
			Dialog:  dialog,
			Code:    ce.Code,
			Field:   ce.Provider,
			Message: ce.Message,
		}
		if out[i].Field == "" {
			out[i].Field = ce.Reference
		}
	}
	return out
}

func lineOf(err *compiler.LoadError) int {
	if err.Pos.IsValid() {
		return err.Pos.Line()
	}
	return 0
}

// outputValidationErrors reports every issue. Validation failures exit 1.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	fail := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.JSON() {
		first := result.Errors[0]
		if err := formatter.Failure(first.Code, first.Message, result); err != nil {
			return err
		}
		return fail
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range result.Errors {
		if issue.Dialog != "" {
			fmt.Fprintf(formatter.Writer, "dialog %s", issue.Dialog)
			if issue.Line > 0 {
				fmt.Fprintf(formatter.Writer, ", line %d", issue.Line)
			}
			fmt.Fprintln(formatter.Writer)
		} else if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", issue.Line)
		}
		if issue.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", issue.Code, issue.Field, issue.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
		}
	}
	return fail
}
