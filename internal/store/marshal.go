package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/sqlmapper/internal/ir"
)

// marshalDefinition converts a definition's canonical form to JSON TEXT.
// Uses RFC 8785 canonical JSON so equal definitions store equal text.
func marshalDefinition(obj map[string]any) (string, error) {
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal definition: %w", err)
	}
	return string(data), nil
}

// marshalRefs converts qualified ids to a canonical JSON array.
func marshalRefs(refs []ir.QualifiedID) (string, error) {
	strs := make([]string, len(refs))
	for i, r := range refs {
		strs[i] = r.String()
	}
	data, err := ir.MarshalCanonical(strs)
	if err != nil {
		return "", fmt.Errorf("marshal refs: %w", err)
	}
	return string(data), nil
}

// unmarshalRefs parses a JSON array written by marshalRefs.
func unmarshalRefs(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return []string{}, nil
	}
	var refs []string
	if err := json.Unmarshal([]byte(data), &refs); err != nil {
		return nil, fmt.Errorf("unmarshal refs: %w", err)
	}
	return refs, nil
}

// unmarshalDefinition parses definition TEXT into a generic object.
// Numbers are kept as json.Number so large sizes survive the round trip.
func unmarshalDefinition(data string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	return obj, nil
}
