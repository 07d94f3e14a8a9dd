package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	. "github.com/ainq-io/bitrix24-client/internal/client"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestNew(t *testing.T) {
	t.Parallel()
	t.Run("requires config", func(t *testing.T) {
		t.Parallel()

		_, err := New(context.Background(), nil)
		require.ErrorIs(t, err, bitrix24.ErrConfigRequired)
	})

	t.Run("requires portal", func(t *testing.T) {
		t.Parallel()

		_, err := New(context.Background(), &bitrix24.Config{})
		require.ErrorIs(t, err, bitrix24.ErrPortalRequired)
	})

	t.Run("creates client with access token", func(t *testing.T) {
		t.Parallel()

		config := &bitrix24.Config{
			Portal:      "example.bitrix24.com",
			AccessToken: "test-token",
		}

		client, err := New(context.Background(), config)
		require.NoError(t, err)
		assert.NotNil(t, client)
		assert.Equal(t, "example.bitrix24.com", client.Portal())
	})

	t.Run("creates client with client credentials", func(t *testing.T) {
		t.Parallel()

		config := &bitrix24.Config{
			Portal:       "example.bitrix24.com",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		}

		client, err := New(context.Background(), config)
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("normalizes portal address", func(t *testing.T) {
		t.Parallel()

		config := &bitrix24.Config{Portal: " https://example.bitrix24.com/ "}

		client, err := New(context.Background(), config)
		require.NoError(t, err)
		assert.Equal(t, "example.bitrix24.com", client.Portal())
	})
}

func TestClient_Do(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/rest/crm.lead.fields", request.URL.Path)
		assert.Equal(t, "GET", request.Method)
		assert.Equal(t, "Bearer test-token", request.Header.Get("Authorization"))

		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"result":{"TITLE":{"type":"string"}}}`))
	}))
	defer server.Close()

	config := &bitrix24.Config{
		Portal:      server.URL,
		AccessToken: "test-token",
	}

	client, err := New(context.Background(), config)
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	raw, err := client.Get(context.Background(), "crm.lead.fields")
	require.NoError(t, err)

	resp, err := bitrix24.DecodeResponse(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"TITLE":{"type":"string"}}`, string(resp.Result))
}

func TestClient_PostNilBody(t *testing.T) {
	t.Parallel()

	hits := 0

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		hits++
	}))
	defer server.Close()

	client, err := New(context.Background(), &bitrix24.Config{
		Portal:      server.URL,
		AccessToken: "test-token",
	})
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	_, err = client.Post(context.Background(), "crm.lead.add", nil)
	require.ErrorIs(t, err, bitrix24.ErrNilBody)
	assert.Equal(t, 0, hits)
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	client, err := New(context.Background(), &bitrix24.Config{
		Portal:      "example.bitrix24.com",
		AccessToken: "test-token",
	})
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err = client.Get(context.Background(), "profile")
	require.ErrorIs(t, err, bitrix24.ErrClientClosed)

	_, err = client.Do(context.Background(), bitrix24.Request{Method: "profile"})
	require.ErrorIs(t, err, bitrix24.ErrClientClosed)
}

func TestClient_SerializedDispatch(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		starts []time.Time
	)

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()

		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"result":true}`))
	}))
	defer server.Close()

	throttle := 25 * time.Millisecond

	client, err := New(context.Background(), &bitrix24.Config{
		Portal:           server.URL,
		AccessToken:      "test-token",
		SerializeCalls:   true,
		ThrottleInterval: throttle,
	})
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	var wg sync.WaitGroup

	for range 3 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := client.Get(context.Background(), "profile")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	require.Len(t, starts, 3)

	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, throttle, "calls %d and %d started too close together", i-1, i)
	}
}

func TestClient_DispatchPriority(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		order   []string
		release = make(chan struct{})
	)

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		method := request.URL.Path[len("/rest/"):]
		if method == "slow.call" {
			<-release
		}

		mu.Lock()
		order = append(order, method)
		mu.Unlock()

		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"result":true}`))
	}))
	defer server.Close()

	client, err := New(context.Background(), &bitrix24.Config{
		Portal:      server.URL,
		AccessToken: "test-token",
		MaxPriority: 5,
	})
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	var wg sync.WaitGroup

	submit := func(method string, priority int) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := client.Do(context.Background(), bitrix24.Request{Method: method, Priority: priority})
			assert.NoError(t, err)
		}()
	}

	// Occupy the worker, then queue a low and a high priority call behind it.
	submit("slow.call", 5)
	time.Sleep(20 * time.Millisecond)
	submit("low.call", 0)
	time.Sleep(20 * time.Millisecond)
	submit("high.call", 5)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, []string{"slow.call", "high.call", "low.call"}, order)
}

func TestClient_ResourceClients(t *testing.T) {
	t.Parallel()

	client := NewTestClient("https://example.bitrix24.com")

	assert.NotNil(t, client.Leads())
	assert.NotNil(t, client.Deals())
	assert.NotNil(t, client.Contacts())
}

func TestClient_RawResponsePassthrough(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]any{
			"result": []map[string]any{{"ID": "1"}},
			"total":  1,
			"time":   map[string]any{"duration": 0.02},
		})
	}))
	defer server.Close()

	client, err := New(context.Background(), &bitrix24.Config{
		Portal:      server.URL,
		AccessToken: "test-token",
	})
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	raw, err := client.Post(context.Background(), "crm.lead.list", bitrix24.ListOptions{})
	require.NoError(t, err)

	resp, err := bitrix24.DecodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	require.NotNil(t, resp.Time)
	assert.InDelta(t, 0.02, resp.Time.Duration, 0.001)
}
