package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sqlmapper/internal/ir"
	"github.com/roach88/sqlmapper/internal/types"
)

// Source is the read side of a compiled catalog.
type Source interface {
	Namespaces() []string
	Namespace(namespace string) (string, bool)
	Cache(namespace string) (*ir.CacheDef, bool)
	ResultMaps(namespace string) []*ir.ResultMap
	Statements(namespace string) []*ir.CompiledStatement
}

// WriteSnapshot stores every definition of src under a content-addressed
// snapshot id. Writing a catalog whose definitions match an existing
// snapshot stores nothing and returns that snapshot with created false.
//
// The whole snapshot is written in one transaction.
func (s *Store) WriteSnapshot(ctx context.Context, src Source, loadID string) (snap Snapshot, created bool, err error) {
	id, err := snapshotID(src)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("write snapshot: %w", err)
	}

	existing, err := s.Snapshot(ctx, id)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Snapshot{}, false, fmt.Errorf("write snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("write snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var seq int64
	if err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots`).Scan(&seq); err != nil {
		return Snapshot{}, false, fmt.Errorf("write snapshot: next seq: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, load_id, seq)
		VALUES (?, ?, ?)
	`, id, loadID, seq); err != nil {
		return Snapshot{}, false, fmt.Errorf("write snapshot: %w", err)
	}

	for _, ns := range src.Namespaces() {
		if err = writeNamespace(ctx, tx, id, src, ns); err != nil {
			return Snapshot{}, false, fmt.Errorf("write snapshot: namespace %s: %w", ns, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return Snapshot{}, false, fmt.Errorf("write snapshot: commit: %w", err)
	}
	snap, err = s.Snapshot(ctx, id)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func writeNamespace(ctx context.Context, tx *sql.Tx, snapshotID string, src Source, ns string) error {
	resource, _ := src.Namespace(ns)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO namespaces (snapshot_id, namespace, resource)
		VALUES (?, ?, ?)
	`, snapshotID, ns, resource); err != nil {
		return fmt.Errorf("insert namespace: %w", err)
	}

	if cache, ok := src.Cache(ns); ok {
		def, err := marshalDefinition(cache.Canonical())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO caches (snapshot_id, namespace, owner, eviction, size, definition, fingerprint)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, snapshotID, ns, cache.Namespace, cache.Eviction, cache.Size, def, cache.Fingerprint); err != nil {
			return fmt.Errorf("insert cache: %w", err)
		}
	}

	for _, rm := range src.ResultMaps(ns) {
		def, err := marshalDefinition(rm.Canonical())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO result_maps (snapshot_id, namespace, id, type, definition, fingerprint)
			VALUES (?, ?, ?, ?, ?, ?)
		`, snapshotID, ns, rm.ID.ID, types.Name(rm.Type), def, rm.Fingerprint); err != nil {
			return fmt.Errorf("insert result map %s: %w", rm.ID, err)
		}
	}

	for _, st := range src.Statements(ns) {
		refs, err := marshalRefs(st.ResultMaps)
		if err != nil {
			return err
		}
		var static sql.NullString
		if text, ok := st.Source.StaticSQL(); ok {
			static = sql.NullString{String: text, Valid: true}
		}
		cache := ""
		if st.Cache != nil {
			cache = st.Cache.Namespace
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO statements
			(snapshot_id, namespace, id, kind, dynamic, static_sql, parameter_type, result_maps, cache, fingerprint)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, snapshotID, ns, st.ID.ID, string(st.Kind), st.Dynamic, static, types.Name(st.ParameterType), refs, cache, st.Fingerprint); err != nil {
			return fmt.Errorf("insert statement %s: %w", st.ID, err)
		}
	}
	return nil
}

// snapshotID hashes the fingerprints of every definition in src.
func snapshotID(src Source) (string, error) {
	namespaces := make([]any, 0)
	for _, ns := range src.Namespaces() {
		resource, _ := src.Namespace(ns)
		obj := map[string]any{
			"namespace": ns,
			"resource":  resource,
		}
		if cache, ok := src.Cache(ns); ok {
			obj["cache"] = cache.Namespace + ":" + cache.Fingerprint
		}
		var maps []string
		for _, rm := range src.ResultMaps(ns) {
			maps = append(maps, rm.ID.ID+":"+rm.Fingerprint)
		}
		var stmts []string
		for _, st := range src.Statements(ns) {
			stmts = append(stmts, st.ID.ID+":"+st.Fingerprint)
		}
		obj["result_maps"] = nonNil(maps)
		obj["statements"] = nonNil(stmts)
		namespaces = append(namespaces, obj)
	}
	return ir.Fingerprint(ir.DomainSnapshot, map[string]any{"namespaces": namespaces})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
