// Package source fetches the GraphQL type definitions a generation is built
// from.
//
// A Fetcher returns an Artifact: the raw text plus when and where it was
// retrieved. Drift detection compares Artifact.Content byte for byte; the
// Digest is carried for logs and health output only.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Artifact is one retrieved copy of the type definitions.
type Artifact struct {
	// Content is the raw SDL text exactly as served by the source
	Content string

	// RetrievedAt is when the fetch completed
	RetrievedAt time.Time

	// Source describes where the artifact came from (see Fetcher.Describe)
	Source string

	// Digest is the hex SHA-256 of Content
	Digest string
}

// NewArtifact builds an Artifact and computes its digest.
func NewArtifact(content, source string, retrievedAt time.Time) *Artifact {
	sum := sha256.Sum256([]byte(content))
	return &Artifact{
		Content:     content,
		RetrievedAt: retrievedAt,
		Source:      source,
		Digest:      hex.EncodeToString(sum[:]),
	}
}

// SameContent reports whether a and b carry identical text.
// Two nil artifacts are equal; nil never equals a non-nil artifact.
func SameContent(a, b *Artifact) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Content == b.Content
}

// Size returns the content length in bytes.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Content)
}

// Fetcher retrieves the current artifact from a remote or local source.
//
// Implementations must be safe for concurrent use: the booting generation
// and the live generation's poller may fetch at the same time.
type Fetcher interface {
	// Fetch retrieves the artifact. Failures are returned as *FetchError.
	Fetch(ctx context.Context) (*Artifact, error)

	// Describe returns a short human-readable source descriptor for logs.
	Describe() string
}
