package manifest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/thintesla/pkg/automaton"
)

// Options configures a Load call.
type Options struct {
	// RequireSignature forces signature verification even for a
	// local-path manifest. Remote (s3://, gs://) bundles always require
	// a signature regardless of this flag.
	RequireSignature bool

	// VerificationKeys are the HMAC keys tried, in order, against the
	// bundle's signature.
	VerificationKeys [][]byte
}

// Bundle is a loaded, verified manifest: the automata it describes
// plus the metadata a caller needs to cache or re-verify it.
type Bundle struct {
	ContentID string
	DigestKey uint64
	EngineABI string
	Automata  []*automaton.Automaton
}

// Load fetches the bundle at uri, validates its envelope against the
// description schema, canonicalizes and hashes it for a content ID,
// checks engine_abi compatibility, verifies its signature when
// required, and converts it into live automata — the full pipeline
// SPEC_FULL.md's DOMAIN STACK names for pkg/manifest, each stage a
// fail-closed gate before the next runs.
func Load(ctx context.Context, uri string, opts Options) (*Bundle, error) {
	raw, org, err := fetch(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("manifest: fetch %s: %w", uri, err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("manifest: invalid JSON in %s: %w", uri, err)
	}
	if err := validateEnvelope(generic); err != nil {
		return nil, err
	}

	contentID, err := unsignedContentID(generic)
	if err != nil {
		return nil, err
	}

	var desc Description
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("manifest: decode %s: %w", uri, err)
	}

	if err := checkABICompatible(desc.EngineABI); err != nil {
		return nil, err
	}

	requireSig := opts.RequireSignature || org == originRemote
	if requireSig {
		if err := verifySignature(desc.Signature, contentID, opts.VerificationKeys); err != nil {
			return nil, err
		}
	}

	automata, err := desc.Build()
	if err != nil {
		return nil, err
	}

	return &Bundle{
		ContentID: contentID,
		DigestKey: DigestKey(raw),
		EngineABI: desc.EngineABI,
		Automata:  automata,
	}, nil
}
