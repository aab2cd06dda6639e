package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlmapper/internal/catalog"
	"github.com/roach88/sqlmapper/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	DB       string        // snapshot database path
	Watch    bool          // recompile on change
	Debounce time.Duration // quiet period before a watched recompile
}

// NamespaceSummary counts the definitions of one namespace.
type NamespaceSummary struct {
	Name       string `json:"name"`
	ResultMaps int    `json:"result_maps"`
	Statements int    `json:"statements"`

	// Cache is the namespace owning the cache in use, if any.
	Cache string `json:"cache,omitempty"`
}

// CompilationResult summarizes a successful compile.
type CompilationResult struct {
	LoadID     string             `json:"load_id"`
	Files      []string           `json:"files"`
	Namespaces []NamespaceSummary `json:"namespaces"`
	Snapshot   *store.Snapshot    `json:"snapshot,omitempty"`

	// SnapshotCreated is false when an identical snapshot was already
	// stored.
	SnapshotCreated bool `json:"snapshot_created,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <config.cue>",
		Short: "Compile mapper documents into a catalog",
		Long: `Load every mapper document named by the configuration, resolve
cross-document references and report the resulting catalog.

With --db the catalog is stored as a snapshot. Snapshots are content
addressed: compiling unchanged mappers stores nothing new.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Watch {
				return runWatch(cmd.Context(), opts, args[0], cmd)
			}
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "store the compiled catalog in this SQLite database")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "recompile when the config or a mapper changes")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 300*time.Millisecond, "quiet period before recompiling in watch mode")

	return cmd
}

func runCompile(opts *CompileOptions, configPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadMappers(configPath, LoadModeFailFast, opts.Logger())
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	formatter.VerboseLog("Loaded %d mapper file(s) from %s", len(loadResult.Files), configPath)

	cat := loadResult.Loader.Catalog()
	result := &CompilationResult{
		LoadID:     loadResult.Loader.LoadID(),
		Files:      loadResult.Files,
		Namespaces: summarize(cat),
	}

	if opts.DB != "" {
		snap, created, err := writeSnapshot(cmd.Context(), opts.DB, cat, result.LoadID)
		if err != nil {
			return outputCompileError(formatter, ErrCodeStore, fmt.Sprintf("writing snapshot: %v", err), nil)
		}
		result.Snapshot = &snap
		result.SnapshotCreated = created
	}

	return outputCompileSuccess(formatter, result)
}

func summarize(cat *catalog.Catalog) []NamespaceSummary {
	names := cat.Namespaces()
	out := make([]NamespaceSummary, len(names))
	for i, ns := range names {
		out[i] = NamespaceSummary{
			Name:       ns,
			ResultMaps: len(cat.ResultMaps(ns)),
			Statements: len(cat.Statements(ns)),
		}
		if _, ok := cat.Cache(ns); ok {
			out[i].Cache = ns
			if owner, ok := cat.CacheRef(ns); ok {
				out[i].Cache = owner
			}
		}
	}
	return out
}

func writeSnapshot(ctx context.Context, path string, cat *catalog.Catalog, loadID string) (store.Snapshot, bool, error) {
	st, err := store.Open(path)
	if err != nil {
		return store.Snapshot{}, false, err
	}
	defer st.Close()
	return st.WriteSnapshot(ctx, cat, loadID)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	statements := 0
	for _, ns := range result.Namespaces {
		statements += ns.Statements
	}
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d namespace(s), %d statement(s) from %d file(s)\n\n",
		len(result.Namespaces), statements, len(result.Files))

	if len(result.Namespaces) > 0 {
		fmt.Fprintln(formatter.Writer, "Namespaces:")
		for _, ns := range result.Namespaces {
			fmt.Fprintf(formatter.Writer, "  %s: %d statement(s), %d result map(s)",
				ns.Name, ns.Statements, ns.ResultMaps)
			switch {
			case ns.Cache == ns.Name:
				fmt.Fprint(formatter.Writer, ", cache")
			case ns.Cache != "":
				fmt.Fprintf(formatter.Writer, ", cache → %s", ns.Cache)
			}
			fmt.Fprintln(formatter.Writer)
		}
		fmt.Fprintln(formatter.Writer)
	}

	if result.Snapshot != nil {
		state := "stored"
		if !result.SnapshotCreated {
			state = "unchanged"
		}
		fmt.Fprintf(formatter.Writer, "Snapshot %s (seq %d) %s\n", result.Snapshot.ID, result.Snapshot.Seq, state)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors reports the errors that stopped a compile.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if err := formatter.Failure("Compilation failed", nil, CLIErrors(errs)); err != nil {
		return err
	}
	// Rejected mappers are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}
