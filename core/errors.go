package core

// ErrorKind classifies terminal turn failures surfaced to the caller. A failed
// turn never carries a partial structured response; it carries exactly one of
// these kinds instead.
type ErrorKind string

const (
	// ErrorKindNone indicates a successful turn.
	ErrorKindNone ErrorKind = ""
	// ErrorKindModelUnavailable is reported when transient model errors
	// exhausted the retry budget.
	ErrorKindModelUnavailable ErrorKind = "model_unavailable"
	// ErrorKindModelFatal is reported for non-retryable model failures
	// (invalid credentials, malformed request).
	ErrorKindModelFatal ErrorKind = "model_fatal"
	// ErrorKindSchemaViolation is reported when the model's final payload
	// still violated the response schema after all repair attempts.
	ErrorKindSchemaViolation ErrorKind = "schema_violation"
	// ErrorKindCallBudgetExceeded is reported when a turn exceeded the
	// configured maximum number of model calls.
	ErrorKindCallBudgetExceeded ErrorKind = "call_budget_exceeded"
	// ErrorKindInternal is reported for store or orchestration failures.
	ErrorKindInternal ErrorKind = "internal"
)
