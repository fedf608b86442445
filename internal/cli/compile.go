package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rdialog/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledDialog is one compiled dialog with its content hash.
type CompiledDialog struct {
	Name string         `json:"name"`
	Hash string         `json:"hash"`
	Spec *ir.DialogSpec `json:"spec"`
}

// CompilationResult holds the compiled dialogs.
type CompilationResult struct {
	Dialogs []CompiledDialog `json:"dialogs"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [dialogs-dir]",
		Short: "Compile CUE dialogs to IR",
		Long: `Compile CUE dialog definitions to their IR form.

Each dialog is printed with its content hash. The hash changes whenever
the definition does, so it identifies the dialog version in traces.

Examples:
  rdialog compile ./dialogs
  rdialog compile ./dialogs -o dialogs.json
  rdialog compile --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, opts.dialogsDir(args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	loaded, err := loadDialogs(formatter, dir)
	if err != nil {
		return err
	}

	result := &CompilationResult{Dialogs: make([]CompiledDialog, 0, len(loaded.Dialogs))}
	for _, spec := range loaded.Dialogs {
		hash, err := ir.DialogHash(*spec)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("hash dialog %q", spec.Name), err)
		}
		result.Dialogs = append(result.Dialogs, CompiledDialog{Name: spec.Name, Hash: hash, Spec: spec})
	}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "write output", err)
		}
		formatter.VerboseLog("Wrote IR to %s", opts.Output)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d dialog(s)\n\n", len(result.Dialogs))
	for _, d := range result.Dialogs {
		st := specStats(d.Spec)
		fmt.Fprintf(formatter.Writer, "  %s: %d field(s), %d provider(s), %d button(s)\n",
			d.Name, st.Fields, st.Providers, st.Buttons)
		fmt.Fprintf(formatter.Writer, "    %s\n", d.Hash)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote IR to %s\n", opts.Output)
	}
	return nil
}

// SpecStats counts the parts of a dialog, nested fields included.
type SpecStats struct {
	Fields    int `json:"fields"`
	Providers int `json:"providers"`
	Buttons   int `json:"buttons"`
}

func specStats(spec *ir.DialogSpec) SpecStats {
	st := SpecStats{Providers: len(spec.Providers)}
	var visit func(fs *ir.FieldSpec)
	visit = func(fs *ir.FieldSpec) {
		st.Fields++
		if fs.Provider != nil {
			st.Providers++
		}
		st.Providers += len(fs.State)
		if fs.Button != nil {
			st.Buttons++
		}
		for i := range fs.Fields {
			visit(&fs.Fields[i])
		}
		if fs.Element != nil {
			visit(fs.Element)
		}
	}
	for i := range spec.Fields {
		visit(&spec.Fields[i])
	}
	return st
}

// writeIRToFile writes the compilation result as indented JSON.
// Canonical JSON is used only for hashing.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
