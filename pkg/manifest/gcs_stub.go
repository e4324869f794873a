//go:build !gcp

package manifest

import (
	"context"
	"fmt"
)

// fetchGCS is the default-build stand-in for gcs.go's real
// implementation: gs:// fetches require building with the gcp tag,
// matching the teacher's own GCSStore gating.
func fetchGCS(_ context.Context, uri string) ([]byte, error) {
	return nil, fmt.Errorf("manifest: gs:// fetch requires building with the gcp tag (uri %q)", uri)
}
