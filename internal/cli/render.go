package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sqlmapper/internal/ir"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Params string // YAML parameter file, "-" for stdin
}

// RenderedBinding is one placeholder binding of rendered SQL.
type RenderedBinding struct {
	Property string `json:"property"`
	Value    any    `json:"value"`
	Mode     string `json:"mode,omitempty"`
	JDBCType string `json:"jdbc_type,omitempty"`
}

// RenderResult is the output of the render command.
type RenderResult struct {
	Statement string            `json:"statement"`
	Kind      string            `json:"kind"`
	Dynamic   bool              `json:"dynamic"`
	SQL       string            `json:"sql"`
	Bindings  []RenderedBinding `json:"bindings"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <config.cue> <namespace.id>",
		Short: "Render a statement against a parameter object",
		Long: `Compile the mappers and render one statement.

The parameter object is read from a YAML file. A mapping becomes a map
parameter; a scalar answers to every placeholder name.

Examples:
  sqlmapper render app.cue author.findById --params id.yaml
  echo 'ids: [1, 2]' | sqlmapper render app.cue author.search --params -`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Params, "params", "p", "", "YAML file holding the parameter object (- for stdin)")

	return cmd
}

func runRender(opts *RenderOptions, configPath, statement string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	param, err := readParams(opts.Params, cmd.InOrStdin())
	if err != nil {
		return outputCompileError(formatter, ErrCodeParams, err.Error(), nil)
	}

	loadResult, loadErrors := LoadMappers(configPath, LoadModeFailFast, opts.Logger())
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	st, ok := loadResult.Loader.Catalog().Statement(ir.Qualify("", statement))
	if !ok {
		return outputCompileError(formatter, ErrCodeStatement, fmt.Sprintf("statement %s not found", statement), nil)
	}

	bound, err := st.Source.BoundSQL(param)
	if err != nil {
		_ = formatter.Error(classifyError(err), err.Error(), nil)
		// Render failures depend on the parameter, not the command.
		return WrapExitError(ExitFailure, "render failed", err)
	}

	result := RenderResult{
		Statement: st.ID.String(),
		Kind:      string(st.Kind),
		Dynamic:   st.Dynamic,
		SQL:       strings.Join(strings.Fields(bound.SQL), " "),
		Bindings:  make([]RenderedBinding, len(bound.Bindings)),
	}
	for i, b := range bound.Bindings {
		result.Bindings[i] = RenderedBinding{
			Property: b.Property,
			Value:    b.Value,
			Mode:     string(b.Mode),
			JDBCType: b.JDBCType,
		}
	}

	return outputRenderSuccess(formatter, result)
}

// readParams decodes the parameter object. No path means a nil parameter.
func readParams(path string, stdin io.Reader) (any, error) {
	if path == "" {
		return nil, nil
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading params: %w", err)
	}

	var param any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&param); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing params: %w", err)
	}
	return param, nil
}

func outputRenderSuccess(formatter *OutputFormatter, result RenderResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, result.SQL)
	if len(result.Bindings) == 0 {
		return nil
	}
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintln(formatter.Writer, "Bindings:")
	for i, b := range result.Bindings {
		fmt.Fprintf(formatter.Writer, "  %d. %s = %v\n", i+1, b.Property, formatValue(b.Value))
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", x)
	}
	return fmt.Sprint(v)
}
