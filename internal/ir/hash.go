package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with old cache entries.
const (
	DomainStore  = "lumen/ir/v1"
	DomainSource = "lumen/source/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null separator
// prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashCanonical hashes canonical bytes under a domain.
func HashCanonical(domain string, canonical []byte) string {
	return hashWithDomain(domain, canonical)
}

// SourceKey identifies one compilation: the source text, the parse mode and
// a fingerprint of every option that influences the output. It is the cache
// key for compiled units. The source enters as a digest of its raw bytes so
// that text which is not valid UTF-8 still keys exactly.
func SourceKey(source, mode string, options map[string]any) (string, error) {
	obj := map[string]any{
		"source":  hashWithDomain(DomainSource, []byte(source)),
		"mode":    mode,
		"options": options,
		"version": ToolVersion,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SourceKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSource, canonical), nil
}

// StoreHash hashes the canonical serialized form of a store.
func StoreHash(canonical []byte) string {
	return hashWithDomain(DomainStore, canonical)
}
