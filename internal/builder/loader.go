// Package builder turns mapper documents into catalog definitions.
//
// A Loader processes documents one at a time. Each document is staged in a
// catalog transaction: its namespace, cache, cache-ref, parameter maps,
// result maps, SQL fragments and statements are built, the deferred
// registry is drained, and the transaction commits. A document that fails
// leaves neither catalog entries nor queued items behind. Finish runs the
// final resolution pass and seals the catalog.
package builder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/sqlmapper/internal/catalog"
	"github.com/roach88/sqlmapper/internal/markup"
	"github.com/roach88/sqlmapper/internal/resolve"
	"github.com/roach88/sqlmapper/internal/types"
)

// Loader builds a catalog from a sequence of mapper documents. A Loader is
// not safe for concurrent use.
type Loader struct {
	settings Settings
	types    *types.Registry
	catalog  *catalog.Catalog
	pending  *resolve.Registry
	loadID   string
	logger   *slog.Logger

	documents int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLoadIDGenerator replaces the UUIDv7 load id source.
func WithLoadIDGenerator(g LoadIDGenerator) Option {
	return func(l *Loader) {
		l.loadID = g.Generate()
	}
}

// WithCatalog loads into an existing, unsealed catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(l *Loader) {
		l.catalog = c
	}
}

// WithLogger sends load events to logger instead of slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader returns a Loader. A nil registry uses the built-in aliases.
func NewLoader(settings Settings, reg *types.Registry, opts ...Option) *Loader {
	if reg == nil {
		reg = types.NewRegistry()
	}
	if settings.AutoMapping == "" {
		settings.AutoMapping = DefaultSettings().AutoMapping
	}
	l := &Loader{
		settings: settings,
		types:    reg,
		pending:  resolve.NewRegistry(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.catalog == nil {
		l.catalog = catalog.New()
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.loadID == "" {
		l.loadID = UUIDv7Generator{}.Generate()
	}
	return l
}

// Catalog returns the catalog being built.
func (l *Loader) Catalog() *catalog.Catalog { return l.catalog }

// LoadID returns the id of this load sequence.
func (l *Loader) LoadID() string { return l.loadID }

// Settings returns the settings definitions are compiled with.
func (l *Loader) Settings() Settings { return l.settings }

// Pending returns the number of definitions still waiting on a reference.
func (l *Loader) Pending() int { return l.pending.Len() }

// PendingItems returns the queued definitions of kind.
func (l *Loader) PendingItems(kind resolve.Kind) []resolve.Item {
	return l.pending.Pending(kind)
}

// LoadFile parses and loads the mapper document at path.
func (l *Loader) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mapper: %w", err)
	}
	defer f.Close()
	return l.LoadReader(path, f)
}

// LoadReader parses and loads one mapper document. Variables from the
// settings are substituted while parsing.
func (l *Loader) LoadReader(resource string, r io.Reader) error {
	root, err := markup.Parse(resource, r, l.settings.Variables)
	if err != nil {
		return err
	}
	return l.LoadDocument(resource, root)
}

// LoadDocument builds the definitions of one parsed document and drains
// the deferred registry. On error the document is rolled back.
func (l *Loader) LoadDocument(resource string, root markup.Node) error {
	snap := l.pending.Snapshot()
	tx, err := l.catalog.Begin()
	if err != nil {
		return err
	}

	fail := func(err error) error {
		_ = tx.Rollback()
		l.pending.Restore(snap)
		l.logger.Error("mapper document rejected",
			"load_id", l.loadID,
			"resource", resource,
			"error", err,
		)
		return err
	}

	mb := &mapperBuilder{
		loader:   l,
		tx:       tx,
		resource: resource,
	}
	if err := mb.build(root); err != nil {
		return fail(err)
	}

	resolved, err := l.pending.Drain(tx)
	if err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return fail(err)
	}

	l.documents++
	l.logger.Info("mapper document loaded",
		"load_id", l.loadID,
		"resource", resource,
		"namespace", mb.namespace,
		"resolved", resolved,
		"pending", l.pending.Len(),
	)
	return nil
}

// Finish runs the final resolution pass. Definitions still waiting on a
// reference are reported as *resolve.UnresolvedReferenceError, joined. On
// success the catalog is sealed.
func (l *Loader) Finish() error {
	snap := l.pending.Snapshot()
	tx, err := l.catalog.Begin()
	if err != nil {
		return err
	}

	ferr := l.pending.Finish(tx)
	if ferr != nil && !resolve.IsUnresolved(ferr) {
		_ = tx.Rollback()
		l.pending.Restore(snap)
		return ferr
	}
	// Definitions resolved by the final pass are kept even when others
	// remain unresolved.
	if err := tx.Commit(); err != nil {
		l.pending.Restore(snap)
		return err
	}
	if ferr != nil {
		l.logger.Error("load finished with unresolved references",
			"load_id", l.loadID,
			"documents", l.documents,
			"unresolved", l.pending.Len(),
		)
		return ferr
	}

	l.catalog.Seal()
	l.logger.Info("load finished",
		"load_id", l.loadID,
		"documents", l.documents,
		"namespaces", len(l.catalog.Namespaces()),
		"statements", len(l.catalog.Statements("")),
	)
	return nil
}

// Unresolved splits a Finish error into its UnresolvedReferenceErrors.
func Unresolved(err error) []*resolve.UnresolvedReferenceError {
	var out []*resolve.UnresolvedReferenceError
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			out = append(out, Unresolved(e)...)
		}
		return out
	}
	var ue *resolve.UnresolvedReferenceError
	if errors.As(err, &ue) {
		out = append(out, ue)
	}
	return out
}
