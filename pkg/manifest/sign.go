package manifest

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// manifestClaims carries the bundle's content ID so a verified
// signature is bound to this exact manifest, not just to "a manifest
// signed by this key" — mirroring identity.IdentityClaims embedding
// jwt.RegisteredClaims and adding domain-specific fields.
type manifestClaims struct {
	jwt.RegisteredClaims
	ContentID string `json:"content_id"`
}

// verifySignature checks that token is a valid JWT over contentID,
// signed by one of the given HMAC keys. S3/GCS-origin manifests always
// require a non-empty token; local-path manifests may pass an empty
// token when signing is not required (see Options.RequireSignature).
func verifySignature(token, contentID string, keys [][]byte) error {
	if token == "" {
		return fmt.Errorf("manifest: signature required but absent")
	}
	if len(keys) == 0 {
		return fmt.Errorf("manifest: no verification keys configured")
	}

	var lastErr error
	for _, key := range keys {
		claims := &manifestClaims{}
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return key, nil
		})
		if err != nil {
			lastErr = err
			continue
		}
		if claims.ContentID != contentID {
			lastErr = fmt.Errorf("signature content_id %q does not match bundle %q", claims.ContentID, contentID)
			continue
		}
		return nil
	}
	return fmt.Errorf("manifest: signature verification failed: %w", lastErr)
}

// Sign produces a manifest signature over contentID, for tests and for
// the instrumenter-side tooling that emits signed bundles.
func Sign(contentID string, key []byte) (string, error) {
	claims := manifestClaims{ContentID: contentID}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
