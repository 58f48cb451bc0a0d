package constants

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Batch limits
const (
	// MaxBatchSize caps how many tasks one upsert request may carry
	MaxBatchSize = 50

	// DefaultWaitSeconds is how long a synchronous upsert request waits
	// before being converted into a background job
	DefaultWaitSeconds = 25

	// MaxWaitSeconds bounds the caller-supplied wait to stay under
	// typical reverse-proxy timeouts
	MaxWaitSeconds = 55
)
