package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterminism(t *testing.T) {
	obj := map[string]any{"id": "blog.byId", "entries": []any{"a", "b"}}

	fp1, err := Fingerprint(DomainResultMap, obj)
	require.NoError(t, err)
	fp2, err := Fingerprint(DomainResultMap, map[string]any{"entries": []any{"a", "b"}, "id": "blog.byId"})
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintDomainSeparation(t *testing.T) {
	obj := map[string]any{"id": "x"}

	rm, err := Fingerprint(DomainResultMap, obj)
	require.NoError(t, err)
	st, err := Fingerprint(DomainStatement, obj)
	require.NoError(t, err)

	assert.NotEqual(t, rm, st, "same content under different domains must not collide")
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a, err := Fingerprint(DomainCache, map[string]any{"size": 512})
	require.NoError(t, err)
	b, err := Fingerprint(DomainCache, map[string]any{"size": 1024})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFingerprintError(t *testing.T) {
	_, err := Fingerprint(DomainCache, map[string]any{"ratio": 0.5})
	assert.ErrorContains(t, err, DomainCache)
}
