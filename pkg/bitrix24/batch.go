package bitrix24

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ainq-io/bitrix24-client/internal/constants"
)

// BatchOperation represents a single call in a batch.
type BatchOperation struct {
	// ID correlates the result with the operation; falls back to Method
	// when empty.
	ID string

	// Method is the logical remote method to call.
	Method string

	// Body is the JSON payload; nil issues a GET.
	Body any

	// Priority is forwarded to the dispatcher when it is enabled.
	Priority int

	// Callback runs as soon as this operation finishes, before Execute
	// returns.
	Callback func(result *BatchResult)
}

// BatchResult represents the result of one batch operation.
type BatchResult struct {
	ID       string
	Method   string
	Success  bool
	Data     json.RawMessage
	Error    error
	Duration time.Duration
}

// BatchExecutor runs many logical calls concurrently through one client.
// The client's own dispatcher still applies its throttle and priority rules,
// so a batch cannot exceed the portal rate limit.
type BatchExecutor struct {
	client      RestClient
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(client RestClient, concurrency int) *BatchExecutor {
	if concurrency <= 0 {
		concurrency = constants.DefaultBatchConcurrency
	}

	return &BatchExecutor{
		client:      client,
		concurrency: concurrency,
		timeout:     constants.DefaultHTTPTimeout,
	}
}

// SetTimeout sets the per-operation timeout.
func (b *BatchExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Execute runs a batch of operations and returns one result per operation,
// in the input order.
func (b *BatchExecutor) Execute(ctx context.Context, operations []BatchOperation) []BatchResult {
	results := make([]BatchResult, len(operations))

	var waitGroup sync.WaitGroup

	semaphore := make(chan struct{}, b.concurrency)

	for index, operation := range operations {
		waitGroup.Add(1)

		go func(index int, operation BatchOperation) {
			defer waitGroup.Done()

			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			opCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			start := time.Now()
			result := b.executeOperation(opCtx, operation)
			result.Duration = time.Since(start)
			results[index] = *result

			if operation.Callback != nil {
				operation.Callback(result)
			}
		}(index, operation)
	}

	waitGroup.Wait()

	return results
}

// executeOperation executes a single operation.
func (b *BatchExecutor) executeOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	result := &BatchResult{
		ID:     operation.ID,
		Method: operation.Method,
	}

	if result.ID == "" {
		result.ID = operation.Method
	}

	data, err := b.client.Do(ctx, Request{
		Method:   operation.Method,
		Body:     operation.Body,
		Priority: operation.Priority,
	})

	result.Success = err == nil
	result.Data = data
	result.Error = err

	return result
}

// ExecuteAndCollect runs a batch and partitions the results into successes
// and failures.
func (b *BatchExecutor) ExecuteAndCollect(ctx context.Context, operations []BatchOperation) (succeeded, failed []BatchResult) {
	return SplitResults(b.Execute(ctx, operations))
}

// SplitResults partitions batch results into successes and failures.
func SplitResults(results []BatchResult) (succeeded, failed []BatchResult) {
	for _, result := range results {
		if result.Success {
			succeeded = append(succeeded, result)
		} else {
			failed = append(failed, result)
		}
	}

	return succeeded, failed
}
