package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot summarizes one stored catalog.
type Snapshot struct {
	ID         string `json:"id"`
	LoadID     string `json:"load_id"`
	Seq        int64  `json:"seq"`
	Namespaces int    `json:"namespaces"`
	ResultMaps int    `json:"result_maps"`
	Statements int    `json:"statements"`
}

// StatementRecord is a stored statement.
type StatementRecord struct {
	Namespace     string   `json:"namespace"`
	ID            string   `json:"id"`
	Kind          string   `json:"kind"`
	Dynamic       bool     `json:"dynamic"`
	StaticSQL     string   `json:"static_sql,omitempty"`
	ParameterType string   `json:"parameter_type,omitempty"`
	ResultMaps    []string `json:"result_maps"`
	Cache         string   `json:"cache,omitempty"`
	Fingerprint   string   `json:"fingerprint"`
}

// ResultMapRecord is a stored result map with its canonical definition.
type ResultMapRecord struct {
	Namespace   string         `json:"namespace"`
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Definition  map[string]any `json:"definition"`
	Fingerprint string         `json:"fingerprint"`
}

// CacheRecord is the cache used by a namespace. Owner differs from
// Namespace when the namespace shares another namespace's cache.
type CacheRecord struct {
	Namespace   string `json:"namespace"`
	Owner       string `json:"owner"`
	Eviction    string `json:"eviction"`
	Size        int    `json:"size"`
	Fingerprint string `json:"fingerprint"`
}

const snapshotColumns = `
	SELECT s.id, s.load_id, s.seq,
		(SELECT COUNT(*) FROM namespaces n WHERE n.snapshot_id = s.id),
		(SELECT COUNT(*) FROM result_maps r WHERE r.snapshot_id = s.id),
		(SELECT COUNT(*) FROM statements t WHERE t.snapshot_id = s.id)
	FROM snapshots s
`

// Snapshot returns the snapshot with the given id, or ErrNotFound.
func (s *Store) Snapshot(ctx context.Context, id string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, snapshotColumns+`WHERE s.id = ?`, id)
	return scanSnapshot(row)
}

// LatestSnapshot returns the snapshot with the highest seq, or ErrNotFound
// when the store is empty.
func (s *Store) LatestSnapshot(ctx context.Context) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, snapshotColumns+`ORDER BY s.seq DESC LIMIT 1`)
	return scanSnapshot(row)
}

// ListSnapshots returns every snapshot in seq order.
func (s *Store) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, snapshotColumns+`ORDER BY s.seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (Snapshot, error) {
	var snap Snapshot
	err := row.Scan(&snap.ID, &snap.LoadID, &snap.Seq, &snap.Namespaces, &snap.ResultMaps, &snap.Statements)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	return snap, nil
}

// ListStatements returns the statements of a snapshot ordered by namespace
// and id. An empty namespace lists every namespace.
func (s *Store) ListStatements(ctx context.Context, snapshotID, namespace string) ([]StatementRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, id, kind, dynamic, static_sql, parameter_type, result_maps, cache, fingerprint
		FROM statements
		WHERE snapshot_id = ? AND (? = '' OR namespace = ?)
		ORDER BY namespace COLLATE BINARY ASC, id COLLATE BINARY ASC
	`, snapshotID, namespace, namespace)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	defer rows.Close()

	records := []StatementRecord{}
	for rows.Next() {
		var (
			rec    StatementRecord
			static sql.NullString
			refs   string
		)
		if err := rows.Scan(&rec.Namespace, &rec.ID, &rec.Kind, &rec.Dynamic, &static, &rec.ParameterType, &refs, &rec.Cache, &rec.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		rec.StaticSQL = static.String
		if rec.ResultMaps, err = unmarshalRefs(refs); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statements: %w", err)
	}
	return records, nil
}

// ListResultMaps returns the result maps of a snapshot ordered by
// namespace and id. An empty namespace lists every namespace.
func (s *Store) ListResultMaps(ctx context.Context, snapshotID, namespace string) ([]ResultMapRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, id, type, definition, fingerprint
		FROM result_maps
		WHERE snapshot_id = ? AND (? = '' OR namespace = ?)
		ORDER BY namespace COLLATE BINARY ASC, id COLLATE BINARY ASC
	`, snapshotID, namespace, namespace)
	if err != nil {
		return nil, fmt.Errorf("query result maps: %w", err)
	}
	defer rows.Close()

	records := []ResultMapRecord{}
	for rows.Next() {
		var (
			rec ResultMapRecord
			def string
		)
		if err := rows.Scan(&rec.Namespace, &rec.ID, &rec.Type, &def, &rec.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan result map: %w", err)
		}
		if rec.Definition, err = unmarshalDefinition(def); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result maps: %w", err)
	}
	return records, nil
}

// ListCaches returns the caches of a snapshot ordered by namespace.
func (s *Store) ListCaches(ctx context.Context, snapshotID string) ([]CacheRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, owner, eviction, size, fingerprint
		FROM caches
		WHERE snapshot_id = ?
		ORDER BY namespace COLLATE BINARY ASC
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query caches: %w", err)
	}
	defer rows.Close()

	records := []CacheRecord{}
	for rows.Next() {
		var rec CacheRecord
		if err := rows.Scan(&rec.Namespace, &rec.Owner, &rec.Eviction, &rec.Size, &rec.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan cache: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate caches: %w", err)
	}
	return records, nil
}

// StatementVersion is a statement as stored in one snapshot.
type StatementVersion struct {
	Snapshot    string `json:"snapshot"`
	Seq         int64  `json:"seq"`
	Fingerprint string `json:"fingerprint"`

	// Changed is true when the definition differs from the previous
	// snapshot holding the statement, and for the first one.
	Changed bool `json:"changed"`
}

// StatementHistory returns the snapshots holding namespace.id in seq
// order. A statement absent from every snapshot yields ErrNotFound.
func (s *Store) StatementHistory(ctx context.Context, namespace, id string) ([]StatementVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.seq, t.fingerprint
		FROM statements t
		JOIN snapshots s ON s.id = t.snapshot_id
		WHERE t.namespace = ? AND t.id = ?
		ORDER BY s.seq ASC
	`, namespace, id)
	if err != nil {
		return nil, fmt.Errorf("query statement history: %w", err)
	}
	defer rows.Close()

	var versions []StatementVersion
	for rows.Next() {
		var v StatementVersion
		if err := rows.Scan(&v.Snapshot, &v.Seq, &v.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan statement history: %w", err)
		}
		n := len(versions)
		v.Changed = n == 0 || versions[n-1].Fingerprint != v.Fingerprint
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statement history: %w", err)
	}
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	return versions, nil
}
