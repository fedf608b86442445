package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rdialog/internal/ir"
)

// LoadResult contains the dialogs loaded from a directory.
type LoadResult struct {
	Dialogs   []*ir.DialogSpec
	FileCount int // Number of CUE files found
}

// Dialog returns the dialog named name.
func (r *LoadResult) Dialog(name string) (*ir.DialogSpec, bool) {
	for _, d := range r.Dialogs {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Names returns the dialog names in declaration order.
func (r *LoadResult) Names() []string {
	names := make([]string, len(r.Dialogs))
	for i, d := range r.Dialogs {
		names[i] = d.Name
	}
	return names
}

// Load error codes.
const (
	ErrCodeNotFound    = "E001" // path not found or not a directory
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeBuildFailed = "E005" // CUE build failed
	ErrCodeNoDialogs   = "E006" // no dialog definitions found
	ErrCodeCompile     = "E007" // dialog failed to compile
)

// LoadError represents an error that occurred during loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load loads every CUE file in dir as one instance and compiles each
// `dialog: <name>: {...}` entry. Compile errors are collected, so the
// result may hold some dialogs alongside errors.
func Load(dir string) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("dialog directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing dialog directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{FileCount: len(cueFiles)}
	specs, errs := CompileAll(value)
	result.Dialogs = specs
	if len(specs) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoDialogs, Message: "no dialogs found"})
	}
	return result, errs
}

// CompileAll compiles every entry under the top-level `dialog` struct of v.
func CompileAll(v cue.Value) ([]*ir.DialogSpec, []error) {
	dialogs := v.LookupPath(cue.ParsePath("dialog"))
	if !dialogs.Exists() {
		return nil, nil
	}

	iter, err := dialogs.Fields()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeCompile, Message: fmt.Sprintf("iterating dialogs: %v", err)}}
	}

	var specs []*ir.DialogSpec
	var errs []error
	for iter.Next() {
		spec, err := CompileDialog(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "dialog."+iter.Label()))
			continue
		}
		specs = append(specs, spec)
	}
	return specs, errs
}

// FindCUEFiles returns the .cue files directly inside dir. Subdirectories
// are separate CUE packages and are not loaded.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	if ce, ok := err.(*CompileError); ok {
		return &LoadError{
			Code:    ErrCodeCompile,
			Message: fmt.Sprintf("%s: %s: %s", context, ce.Field, ce.Message),
			Pos:     ce.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeCompile,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
