package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDialog = "rdialog/dialog/v1"
	DomainValues = "rdialog/values/v1"
	DomainGraph  = "rdialog/graph/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DialogHash computes a content hash for a dialog spec.
// Trace records carry it so a pass can be matched to the dialog version
// that produced it.
func DialogHash(spec DialogSpec) (string, error) {
	// DialogSpec holds no maps, so encoding/json output is deterministic.
	data, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("DialogHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDialog, data), nil
}

// ValuesHash computes a content hash for the dependency values of a request.
func ValuesHash(values DependencyValues) (string, error) {
	obj := make(Object, len(values))
	for ref, entries := range values {
		arr := make(Array, len(entries))
		for i, iv := range entries {
			arr[i] = iv.Object()
		}
		obj[ref] = arr
	}

	canonical, err := marshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ValuesHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainValues, canonical), nil
}

// GraphHash computes a content hash for a dependency graph descriptor.
func GraphHash(descriptor Value) (string, error) {
	canonical, err := marshalCanonical(descriptor)
	if err != nil {
		return "", fmt.Errorf("GraphHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// MustDialogHash is like DialogHash but panics on error.
// Use only in tests.
func MustDialogHash(spec DialogSpec) string {
	h, err := DialogHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}
