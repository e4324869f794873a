//go:build gcp

package manifest

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// fetchGCS mirrors artifacts.GCSStore.Get's bucket/object split. Built
// only under the gcp tag, matching the teacher's own gating of its GCS
// artifact store behind the same tag — the default build stays free of
// the GCS client's dependency weight.
func fetchGCS(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := splitBucketKey(uri, "gs://")
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("manifest: create GCS client: %w", err)
	}
	defer func() { _ = client.Close() }()

	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("manifest: gcs get %s: %w", uri, err)
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}
