package interfaces

import "errors"

// Sentinel errors for the failure taxonomy. Services wrap these with
// fmt.Errorf("%w: ...") so callers can classify failures with errors.Is
// while keeping the underlying cause in the chain.
var (
	// ErrEmbeddingUnavailable indicates the embedding backend failed after
	// retries or returned an invalid vector. No partial vector is ever
	// surfaced alongside this error.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrRetrievalUnavailable indicates a retrieval request could not be
	// served (embedding failure or index failure).
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrPlannerContractViolation indicates the planner model produced
	// output that failed parsing or schema validation.
	ErrPlannerContractViolation = errors.New("planner contract violation")

	// ErrSynthesizerContractViolation indicates the synthesizer model
	// produced output that failed parsing, schema validation, or cited
	// sources outside the supplied context.
	ErrSynthesizerContractViolation = errors.New("synthesizer contract violation")

	// ErrModelUnavailable indicates an LLM provider failed after retries
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrDeadlineExceeded indicates the per-request deadline expired before
	// the turn completed.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrDocumentNotFound indicates the requested document does not exist
	ErrDocumentNotFound = errors.New("document not found")

	// ErrKeyNotFound indicates a key/value lookup missed
	ErrKeyNotFound = errors.New("key not found")
)
