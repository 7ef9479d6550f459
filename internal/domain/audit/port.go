package audit

import (
	"context"
	"time"
)

// Retriever port (knowledge/context collaborator). Implementations must
// degrade: on failure the service continues without context.
type Retriever interface {
	Retrieve(ctx context.Context, text string, topK int) ([]RetrievedContext, error)
}

// VerifyPayload is the composed request for the generative verifier.
type VerifyPayload struct {
	Code           string
	Language       string
	StaticFindings []StaticFinding
	Context        []RetrievedContext
}

// VerifierResult is the schema-validated output of one verifier call.
// Findings that failed validation have already been dropped.
type VerifierResult struct {
	Findings        []VerifierFinding
	Strengths       []string
	Recommendations []string
	Summary         string
}

// Verifier port (generative collaborator). A non-nil error means the call
// failed entirely; malformed output is not an error, it is an empty result.
type Verifier interface {
	Verify(ctx context.Context, payload VerifyPayload) (VerifierResult, error)
}

// Repository port for report history persistence
type Repository interface {
	Save(ctx context.Context, r *SecurityReport) error
	Get(ctx context.Context, id ReportID) (*SecurityReport, error)
	Latest(ctx context.Context, limit int) ([]*SecurityReport, error)
	Summary(ctx context.Context, since time.Time) (int, SeverityCounts, error)
}

// Cache port keyed by a content hash of the scanned code.
type Cache interface {
	Get(ctx context.Context, key string) (*SecurityReport, bool, error)
	Set(ctx context.Context, key string, r *SecurityReport) error
}

// Archiver port (object storage for rendered report artifacts)
type Archiver interface {
	ArchiveReport(ctx context.Context, r *SecurityReport) (string, error)
}
