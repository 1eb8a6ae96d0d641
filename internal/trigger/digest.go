package trigger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRecord separates trigger digests from any other hash of the
// same bytes. The version suffix allows a future algorithm change.
const DomainRecord = "cascbridge/trigger/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes the content hash of a record. Two files carrying the
// same action, timestamp and data share a digest regardless of key order
// or whitespace.
func Digest(r Record) (string, error) {
	data := r.Data
	if data == nil {
		data = map[string]any{}
	}
	canonical, err := MarshalCanonical(map[string]any{
		"action":    r.Action,
		"timestamp": r.Timestamp,
		"data":      data,
	})
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// MustDigest is like Digest but panics on error.
// Use only in tests or when the record came from Parse.
func MustDigest(r Record) string {
	d, err := Digest(r)
	if err != nil {
		panic(err)
	}
	return d
}
