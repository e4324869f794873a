package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/gowebpki/jcs"
)

// ContentID canonicalizes raw with RFC 8785 (JSON Canonicalization
// Scheme) before hashing, so two manifests with the same content but
// different key order hash identically. The teacher hand-rolls the
// same canonicalize-then-hash shape in pkg/canonicalize.JCS/CanonicalHash;
// here the real gowebpki/jcs transform stands in for that hand-rolled
// recursive marshaller.
func ContentID(raw []byte) (string, error) {
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("manifest: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canon)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// unsignedContentID computes the content ID over the envelope with its
// "signature" field removed, since a signature cannot cover its own
// bytes — this is what Sign signs and verifySignature checks against.
func unsignedContentID(decoded any) (string, error) {
	m, ok := decoded.(map[string]any)
	if !ok {
		return "", fmt.Errorf("manifest: envelope is not a JSON object")
	}
	stripped := make(map[string]any, len(m))
	for k, v := range m {
		if k == "signature" {
			continue
		}
		stripped[k] = v
	}
	raw, err := json.Marshal(stripped)
	if err != nil {
		return "", fmt.Errorf("manifest: re-marshal stripped envelope: %w", err)
	}
	return ContentID(raw)
}

// DigestKey returns the fast, non-cryptographic lookup key a manifest
// cache indexes bundles by — xxhash, the same hash pkg/teslahash and
// pkg/history use for payload hashing, chosen for speed rather than
// collision-resistance since ContentID already carries the
// tamper-evident SHA-256.
func DigestKey(raw []byte) uint64 {
	return xxhash.Sum64(raw)
}
