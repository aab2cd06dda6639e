package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

// Exit codes. Scripts gate on these, so they never change meaning.
const (
	ExitSuccess      = 0 // mappers valid, statement rendered, scenarios passed
	ExitFailure      = 1 // validation, render or scenario failure
	ExitCommandError = 2 // missing paths, rejected mappers, store failures
)

// ExitError carries a process exit code out of a command. The command has
// already reported the problem by the time it returns one.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the ExitError in err's chain, or
// ExitFailure for any other error.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Location points at the mapper definition a problem was found in. Every
// field is optional; config errors carry only the file and line.
type Location struct {
	Resource  string `json:"resource,omitempty"`
	Line      int    `json:"line,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	ID        string `json:"id,omitempty"`
}

// String renders "resource:line (namespace.id)", leaving out what is
// unknown.
func (l *Location) String() string {
	s := l.Resource
	if l.Line > 0 {
		s += ":" + strconv.Itoa(l.Line)
	}
	name := l.Namespace
	if l.ID != "" {
		if name != "" {
			name += "."
		}
		name += l.ID
	}
	switch {
	case s == "":
		return name
	case name != "":
		return s + " (" + name + ")"
	}
	return s
}

// CLIError is one reported problem.
type CLIError struct {
	Code     string    `json:"code"` // E1xx mapper, E2xx config
	Message  string    `json:"message"`
	Location *Location `json:"location,omitempty"`
	Details  any       `json:"details,omitempty"`
}

// CLIResponse is the envelope of every json-format output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`

	// Errors holds every problem when a command reports more than one;
	// Error is then the first of them.
	Errors []CLIError `json:"errors,omitempty"`
}

// OutputFormatter writes command results as text or as a json CLIResponse.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; Writer when nil
	Verbose   bool
}

// newFormatter writes results to the command's stdout and diagnostics to
// its stderr, so json on stdout stays parseable.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Success writes data. Text output prints it with fmt; commands with a
// richer text form write that themselves.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error reports a single problem without a location.
func (f *OutputFormatter) Error(code, message string, details any) error {
	return f.Report(CLIError{Code: code, Message: message, Details: details})
}

// Report writes one problem.
func (f *OutputFormatter) Report(e CLIError) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: &e})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	if e.Location != nil {
		fmt.Fprintf(f.Writer, "  at %s\n", e.Location)
	}
	if f.Verbose && e.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
	}
	return nil
}

// Failure reports a failed run with every problem found. data, when not
// nil, is the partial result shown alongside the errors in json output.
func (f *OutputFormatter) Failure(headline string, data any, errs []CLIError) error {
	if f.isJSON() {
		resp := CLIResponse{Status: "error", Data: data, Errors: errs}
		if len(errs) > 0 {
			resp.Error = &errs[0]
		}
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(f.Writer, "✗ %s\n\n", headline)
	for _, e := range errs {
		fmt.Fprintf(f.Writer, "  %s: %s\n", e.Code, e.Message)
		if e.Location != nil {
			fmt.Fprintf(f.Writer, "    at %s\n", e.Location)
		}
		fmt.Fprintln(f.Writer)
	}
	return nil
}

// VerboseLog writes a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
