package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool       `json:"valid"`
	Files      int        `json:"files"`
	Statements int        `json:"statements"`
	Errors     []CLIError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Check the configuration and every mapper document",
		Long: `Validate the configuration and every mapper document it names.

Unlike compile, validation does not stop at the first rejected document:
every configuration error, document error and unresolved reference is
reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, configPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadMappers(configPath, LoadModeCollectAll, opts.Logger())

	// A missing config file is a command error, not a validation failure.
	if loadResult == nil && len(loadErrors) == 1 {
		if code := classifyError(loadErrors[0]); code == ErrCodeNotFound {
			return outputValidateError(formatter, code, loadErrors[0].Error(), nil)
		}
	}

	result := ValidationResult{Valid: len(loadErrors) == 0}
	if loadResult != nil {
		result.Files = len(loadResult.Files)
		result.Statements = len(loadResult.Loader.Catalog().Statements(""))
		formatter.VerboseLog("Checked %d mapper file(s) from %s", result.Files, configPath)
	}

	if len(loadErrors) > 0 {
		result.Errors = CLIErrors(loadErrors)
		return outputValidationErrors(formatter, result)
	}

	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All mappers valid (%d file(s), %d statement(s))\n", result.Files, result.Statements)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Validation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors reports every problem validation found.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	if err := formatter.Failure("Validation failed", result, result.Errors); err != nil {
		return err
	}
	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
