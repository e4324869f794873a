// Command tesla-manifest is a thin CLI over pkg/manifest, grounded on
// the teacher's small single-purpose binaries (cmd/bootstrap,
// cmd/helm) that take their arguments from plain os.Args rather than a
// flag-parsing library.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Mindburn-Labs/thintesla/pkg/manifest"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: tesla-manifest <validate|show-hash|verify-signature> <uri> [key]")
	}

	cmd := os.Args[1]
	uri := os.Args[2]
	ctx := context.Background()

	switch cmd {
	case "validate":
		bundle, err := manifest.Load(ctx, uri, manifest.Options{})
		if err != nil {
			log.Fatalf("tesla-manifest: validate failed: %v", err)
		}
		fmt.Printf("OK: %d automata, engine_abi=%s, content_id=%s\n",
			len(bundle.Automata), bundle.EngineABI, bundle.ContentID)

	case "show-hash":
		raw, err := os.ReadFile(uri)
		if err != nil {
			log.Fatalf("tesla-manifest: read %s: %v", uri, err)
		}
		id, err := manifest.ContentID(raw)
		if err != nil {
			log.Fatalf("tesla-manifest: hash: %v", err)
		}
		fmt.Println(id)

	case "verify-signature":
		if len(os.Args) < 4 {
			log.Fatal("Usage: tesla-manifest verify-signature <uri> <key>")
		}
		key := []byte(os.Args[3])
		bundle, err := manifest.Load(ctx, uri, manifest.Options{
			RequireSignature: true,
			VerificationKeys: [][]byte{key},
		})
		if err != nil {
			log.Fatalf("tesla-manifest: signature verification failed: %v", err)
		}
		fmt.Printf("OK: signature verified, content_id=%s\n", bundle.ContentID)

	default:
		log.Fatalf("tesla-manifest: unknown command %q", cmd)
	}
}
