package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for fingerprints. The version suffix allows the canonical
// form of a definition kind to change without colliding with old hashes.
const (
	DomainResultMap    = "sqlmapper/resultmap/v1"
	DomainStatement    = "sqlmapper/statement/v1"
	DomainCache        = "sqlmapper/cache/v1"
	DomainFragment     = "sqlmapper/fragment/v1"
	DomainParameterMap = "sqlmapper/parametermap/v1"
	DomainSnapshot     = "sqlmapper/snapshot/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps domain and data from running into each other.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the canonical JSON of obj under domain.
func Fingerprint(domain string, obj map[string]any) (string, error) {
	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}
