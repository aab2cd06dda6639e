package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlmapper/internal/ir"
	"github.com/roach88/sqlmapper/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Snapshot  string // snapshot id, latest when empty
	Namespace string // namespace filter
	List      bool   // list snapshots only
	History   string // namespace.id whose history to show
}

// InspectResult is the output of the inspect command.
type InspectResult struct {
	Snapshot   store.Snapshot          `json:"snapshot"`
	Caches     []store.CacheRecord     `json:"caches"`
	ResultMaps []store.ResultMapRecord `json:"result_maps"`
	Statements []store.StatementRecord `json:"statements"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <db>",
		Short: "Show a stored catalog snapshot",
		Long: `Show the statements, result maps and caches of a snapshot written
by compile --db. Without --snapshot the latest snapshot is shown.

Examples:
  sqlmapper inspect mappers.db
  sqlmapper inspect mappers.db --namespace author
  sqlmapper inspect mappers.db --list
  sqlmapper inspect mappers.db --history author.findById`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "snapshot id (default latest)")
	cmd.Flags().StringVarP(&opts.Namespace, "namespace", "n", "", "only show this namespace")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list stored snapshots")
	cmd.Flags().StringVar(&opts.History, "history", "", "show which snapshots changed statement <namespace.id>")

	return cmd
}

func runInspect(opts *InspectOptions, dbPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Opening a missing path would create an empty database.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return outputCompileError(formatter, ErrCodeNotFound, fmt.Sprintf("database not found: %s", dbPath), nil)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return outputCompileError(formatter, ErrCodeStore, fmt.Sprintf("opening database: %v", err), nil)
	}
	defer st.Close()

	ctx := cmd.Context()

	if opts.List {
		snaps, err := st.ListSnapshots(ctx)
		if err != nil {
			return outputCompileError(formatter, ErrCodeStore, err.Error(), nil)
		}
		return outputSnapshotList(formatter, snaps)
	}

	if opts.History != "" {
		id := ir.Qualify("", opts.History)
		if id.Namespace == "" {
			return outputCompileError(formatter, ErrCodeStatement, fmt.Sprintf("history needs <namespace.id>, got %q", opts.History), nil)
		}
		versions, err := st.StatementHistory(ctx, id.Namespace, id.ID)
		if errors.Is(err, store.ErrNotFound) {
			return outputCompileError(formatter, ErrCodeStatement, fmt.Sprintf("statement %s not in any snapshot", id), nil)
		}
		if err != nil {
			return outputCompileError(formatter, ErrCodeStore, err.Error(), nil)
		}
		return outputHistory(formatter, id.String(), versions)
	}

	var snap store.Snapshot
	if opts.Snapshot != "" {
		snap, err = st.Snapshot(ctx, opts.Snapshot)
	} else {
		snap, err = st.LatestSnapshot(ctx)
	}
	if errors.Is(err, store.ErrNotFound) {
		return outputCompileError(formatter, ErrCodeSnapshotEmpty, "no snapshot found", nil)
	}
	if err != nil {
		return outputCompileError(formatter, ErrCodeStore, err.Error(), nil)
	}

	result := InspectResult{Snapshot: snap}
	if result.Statements, err = st.ListStatements(ctx, snap.ID, opts.Namespace); err != nil {
		return outputCompileError(formatter, ErrCodeStore, err.Error(), nil)
	}
	if result.ResultMaps, err = st.ListResultMaps(ctx, snap.ID, opts.Namespace); err != nil {
		return outputCompileError(formatter, ErrCodeStore, err.Error(), nil)
	}
	caches, err := st.ListCaches(ctx, snap.ID)
	if err != nil {
		return outputCompileError(formatter, ErrCodeStore, err.Error(), nil)
	}
	for _, c := range caches {
		if opts.Namespace == "" || c.Namespace == opts.Namespace {
			result.Caches = append(result.Caches, c)
		}
	}

	return outputInspect(formatter, result)
}

func outputSnapshotList(formatter *OutputFormatter, snaps []store.Snapshot) error {
	if formatter.Format == "json" {
		if snaps == nil {
			snaps = []store.Snapshot{}
		}
		return formatter.Success(snaps)
	}

	if len(snaps) == 0 {
		fmt.Fprintln(formatter.Writer, "No snapshots stored.")
		return nil
	}
	for _, s := range snaps {
		fmt.Fprintf(formatter.Writer, "%3d  %s  load %s  %d namespace(s), %d statement(s)\n",
			s.Seq, s.ID, s.LoadID, s.Namespaces, s.Statements)
	}
	return nil
}

func outputHistory(formatter *OutputFormatter, statement string, versions []store.StatementVersion) error {
	if formatter.Format == "json" {
		return formatter.Success(versions)
	}

	fmt.Fprintf(formatter.Writer, "History of %s:\n", statement)
	for _, v := range versions {
		state := "unchanged"
		if v.Changed {
			state = "changed"
		}
		fmt.Fprintf(formatter.Writer, "%3d  %s  %s  %s\n", v.Seq, v.Snapshot, v.Fingerprint, state)
	}
	return nil
}

func outputInspect(formatter *OutputFormatter, result InspectResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	s := result.Snapshot
	fmt.Fprintf(w, "Snapshot %s (seq %d, load %s)\n", s.ID, s.Seq, s.LoadID)
	fmt.Fprintf(w, "  %d namespace(s), %d result map(s), %d statement(s)\n", s.Namespaces, s.ResultMaps, s.Statements)

	if len(result.Caches) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Caches:")
		for _, c := range result.Caches {
			if c.Owner != c.Namespace {
				fmt.Fprintf(w, "  %s → %s\n", c.Namespace, c.Owner)
				continue
			}
			fmt.Fprintf(w, "  %s: %s, size %d\n", c.Namespace, c.Eviction, c.Size)
		}
	}

	if len(result.ResultMaps) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Result maps:")
		for _, rm := range result.ResultMaps {
			fmt.Fprintf(w, "  %s.%s: %s\n", rm.Namespace, rm.ID, rm.Type)
		}
	}

	if len(result.Statements) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Statements:")
		for _, st := range result.Statements {
			fmt.Fprintf(w, "  %s.%s (%s", st.Namespace, st.ID, st.Kind)
			if st.Dynamic {
				fmt.Fprint(w, ", dynamic")
			}
			if len(st.ResultMaps) > 0 {
				fmt.Fprintf(w, ", result maps %s", strings.Join(st.ResultMaps, ", "))
			}
			fmt.Fprintln(w, ")")
			if st.StaticSQL != "" {
				fmt.Fprintf(w, "    %s\n", strings.Join(strings.Fields(st.StaticSQL), " "))
			}
		}
	}
	return nil
}
