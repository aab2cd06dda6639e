package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roach88/sqlmapper/internal/builder"
	"github.com/roach88/sqlmapper/internal/catalog"
	"github.com/roach88/sqlmapper/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// loadCatalog compiles the given documents, keyed by resource name, into a
// sealed catalog.
func loadCatalog(t *testing.T, docs ...[2]string) *catalog.Catalog {
	t.Helper()
	l := builder.NewLoader(builder.DefaultSettings(), testutil.Registry(),
		builder.WithLoadIDGenerator(testutil.FixedLoadID("load-1")))
	for _, doc := range docs {
		if err := l.LoadReader(doc[0], strings.NewReader(doc[1])); err != nil {
			t.Fatalf("LoadReader(%s) failed: %v", doc[0], err)
		}
	}
	if err := l.Finish(); err != nil {
		t.Fatalf("Finish() failed: %v", err)
	}
	return l.Catalog()
}

func blogCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	return loadCatalog(t,
		[2]string{"author.xml", testutil.AuthorMapper},
		[2]string{"blog.xml", testutil.BlogMapper},
	)
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
