package bitrix24_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// mockRestClient implements bitrix24.RestClient for batch tests.
type mockRestClient struct {
	mu     sync.Mutex
	calls  []bitrix24.Request
	doFunc func(ctx context.Context, req bitrix24.Request) (json.RawMessage, error)
}

func (m *mockRestClient) Do(ctx context.Context, req bitrix24.Request) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.doFunc != nil {
		return m.doFunc(ctx, req)
	}

	return json.RawMessage(`{"result":true}`), nil
}

func (m *mockRestClient) Get(ctx context.Context, method string) (json.RawMessage, error) {
	return m.Do(ctx, bitrix24.Request{Method: method})
}

func (m *mockRestClient) Post(ctx context.Context, method string, body any) (json.RawMessage, error) {
	return m.Do(ctx, bitrix24.Request{Method: method, Body: body})
}

func (m *mockRestClient) Portal() string {
	return "example.bitrix24.com"
}

func (m *mockRestClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.calls)
}

func TestBatchExecutor_Execute(t *testing.T) {
	t.Parallel()

	client := &mockRestClient{
		doFunc: func(ctx context.Context, req bitrix24.Request) (json.RawMessage, error) {
			if req.Method == "crm.lead.get" {
				return nil, &bitrix24.CallError{
					Method:     req.Method,
					StatusCode: 400,
					Err:        bitrix24.ErrRemoteCallFailed,
				}
			}

			return json.RawMessage(`{"result":42}`), nil
		},
	}

	executor := bitrix24.NewBatchExecutor(client, 2)

	results := executor.Execute(context.Background(), []bitrix24.BatchOperation{
		{ID: "first", Method: "crm.lead.add", Body: bitrix24.Entity{"TITLE": "a"}},
		{Method: "crm.lead.get"},
		{ID: "third", Method: "crm.lead.fields"},
	})

	require.Len(t, results, 3)

	assert.Equal(t, "first", results[0].ID)
	assert.True(t, results[0].Success)
	assert.JSONEq(t, `{"result":42}`, string(results[0].Data))
	require.NoError(t, results[0].Error)

	// ID falls back to the method name
	assert.Equal(t, "crm.lead.get", results[1].ID)
	assert.False(t, results[1].Success)
	require.Error(t, results[1].Error)
	assert.True(t, bitrix24.IsRemoteCallFailed(results[1].Error))

	assert.Equal(t, "third", results[2].ID)
	assert.True(t, results[2].Success)

	for _, result := range results {
		assert.GreaterOrEqual(t, result.Duration, time.Duration(0))
	}

	assert.Equal(t, 3, client.callCount())
}

func TestBatchExecutor_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak int64

	client := &mockRestClient{
		doFunc: func(ctx context.Context, req bitrix24.Request) (json.RawMessage, error) {
			current := atomic.AddInt64(&inFlight, 1)
			defer atomic.AddInt64(&inFlight, -1)

			for {
				observed := atomic.LoadInt64(&peak)
				if current <= observed || atomic.CompareAndSwapInt64(&peak, observed, current) {
					break
				}
			}

			time.Sleep(10 * time.Millisecond)

			return json.RawMessage(`{}`), nil
		},
	}

	executor := bitrix24.NewBatchExecutor(client, 2)

	operations := make([]bitrix24.BatchOperation, 8)
	for i := range operations {
		operations[i] = bitrix24.BatchOperation{Method: "crm.lead.fields"}
	}

	results := executor.Execute(context.Background(), operations)

	require.Len(t, results, 8)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestBatchExecutor_Callback(t *testing.T) {
	t.Parallel()

	client := &mockRestClient{}
	executor := bitrix24.NewBatchExecutor(client, 1)

	var mu sync.Mutex

	var seen []string

	executor.Execute(context.Background(), []bitrix24.BatchOperation{
		{
			ID:     "op-1",
			Method: "crm.deal.fields",
			Callback: func(result *bitrix24.BatchResult) {
				mu.Lock()
				seen = append(seen, result.ID)
				mu.Unlock()
			},
		},
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"op-1"}, seen)
}

func TestBatchExecutor_ForwardsPriority(t *testing.T) {
	t.Parallel()

	client := &mockRestClient{}
	executor := bitrix24.NewBatchExecutor(client, 1)

	executor.Execute(context.Background(), []bitrix24.BatchOperation{
		{Method: "crm.lead.fields", Priority: 7},
	})

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.calls, 1)
	assert.Equal(t, 7, client.calls[0].Priority)
}

func TestSplitResults(t *testing.T) {
	t.Parallel()

	results := []bitrix24.BatchResult{
		{ID: "a", Success: true},
		{ID: "b", Success: false},
		{ID: "c", Success: true},
	}

	succeeded, failed := bitrix24.SplitResults(results)

	require.Len(t, succeeded, 2)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].ID)
}
