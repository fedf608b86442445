package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rdialog/internal/compiler"
	"github.com/roach88/rdialog/internal/engine"
	"github.com/roach88/rdialog/internal/ir"
)

// ErrCodeGeneric is used for errors without a more specific code.
const ErrCodeGeneric = "E000"

// loadDialogs compiles the dialogs in dir. Any load or compile error is
// reported through formatter and returned as a command error.
func loadDialogs(formatter *OutputFormatter, dir string) (*compiler.LoadResult, error) {
	formatter.VerboseLog("Loading dialogs from %s", dir)

	result, errs := compiler.Load(dir)
	if len(errs) > 0 {
		return nil, reportLoadErrors(formatter, errs)
	}
	formatter.VerboseLog("Compiled %d dialog(s) from %d CUE file(s)", len(result.Dialogs), result.FileCount)
	return result, nil
}

// reportLoadErrors writes load errors and returns the exit error.
func reportLoadErrors(formatter *OutputFormatter, errs []error) error {
	cliErrs := make([]CLIError, len(errs))
	for i, err := range errs {
		cliErrs[i] = loadCLIError(err)
	}

	if formatter.JSON() {
		if err := formatter.Failure(cliErrs[0].Code, cliErrs[0].Message, cliErrs); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Loading dialogs failed")
		fmt.Fprintln(formatter.Writer)
		for _, err := range errs {
			fmt.Fprintf(formatter.Writer, "  %v\n", err)
		}
	}
	return WrapExitError(ExitCommandError, fmt.Sprintf("loading dialogs failed with %d error(s)", len(errs)), errs[0])
}

func loadCLIError(err error) CLIError {
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return CLIError{Code: loadErr.Code, Message: loadErr.Message}
	}
	return CLIError{Code: ErrCodeGeneric, Message: err.Error()}
}

// pickDialog selects a dialog by name. An empty name is allowed when the
// directory declares exactly one dialog.
func pickDialog(result *compiler.LoadResult, name string) (*ir.DialogSpec, error) {
	if name == "" {
		if len(result.Dialogs) == 1 {
			return result.Dialogs[0], nil
		}
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("--dialog is required: found %s", strings.Join(result.Names(), ", ")))
	}
	spec, ok := result.Dialog(name)
	if !ok {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("dialog %q not found (have %s)", name, strings.Join(result.Names(), ", ")))
	}
	return spec, nil
}

// openDialog loads dir and instantiates one dialog from it.
func openDialog(formatter *OutputFormatter, dir, name string, opts ...engine.Option) (*engine.Dialog, error) {
	result, err := loadDialogs(formatter, dir)
	if err != nil {
		return nil, err
	}
	spec, err := pickDialog(result, name)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return nil, err
	}
	d, err := compiler.Instantiate(spec, opts...)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "instantiate dialog", err)
	}
	return d, nil
}
