package builder

import (
	"github.com/google/uuid"
)

// LoadIDGenerator produces the id that tags one load sequence in logs and
// snapshots.
type LoadIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 load ids. It is stateless
// and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
