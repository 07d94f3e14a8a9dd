package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

func TestEntityClients_CRUD(t *testing.T) {
	RunEntityCRUDTests(t, []EntityCRUDTest{
		{Entity: "lead", Client: func(c *Client) bitrix24.EntityClient { return c.Leads() }},
		{Entity: "deal", Client: func(c *Client) bitrix24.EntityClient { return c.Deals() }},
		{Entity: "contact", Client: func(c *Client) bitrix24.EntityClient { return c.Contacts() }},
	})
}

func TestEntityClient_ListAll(t *testing.T) {
	portal := newTestPortal()
	defer portal.Close()

	portal.handle("crm.lead.list", func(w http.ResponseWriter, r *http.Request) {
		var opts bitrix24.ListOptions
		require.NoError(t, json.NewDecoder(r.Body).Decode(&opts))
		assert.Equal(t, "NEW", opts.Filter["STATUS_ID"])

		switch opts.Start {
		case 0:
			next := 50
			writeListPage(w, []bitrix24.Entity{{"ID": "1"}, {"ID": "2"}}, 5, &next)
		case 50:
			next := 100
			writeListPage(w, []bitrix24.Entity{{"ID": "3"}, {"ID": "4"}}, 5, &next)
		case 100:
			writeListPage(w, []bitrix24.Entity{{"ID": "5"}}, 5, nil)
		default:
			t.Errorf("unexpected start offset %d", opts.Start)
		}
	})

	client := NewTestClient(portal.URL)

	all, err := client.Leads().ListAll(context.Background(), &bitrix24.ListOptions{
		Filter: map[string]any{"STATUS_ID": "NEW"},
	})
	require.NoError(t, err)
	require.Len(t, all, 5)

	id, ok := all[4].ID()
	require.True(t, ok)
	assert.Equal(t, 5, id)
}

func TestEntityClient_FieldsCaching(t *testing.T) {
	t.Run("reuses cached schema", func(t *testing.T) {
		portal := newTestPortal()
		defer portal.Close()

		fetches := 0

		portal.handle("crm.deal.fields", func(w http.ResponseWriter, r *http.Request) {
			fetches++

			writeResult(w, map[string]bitrix24.Field{"STAGE_ID": {Type: "crm_status"}})
		})

		client := NewTestClient(portal.URL)
		ctx := context.Background()

		first, err := client.Deals().Fields(ctx)
		require.NoError(t, err)

		second, err := client.Deals().Fields(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, fetches)
		assert.Equal(t, first, second)
	})

	t.Run("refetches after expiry", func(t *testing.T) {
		portal := newTestPortal()
		defer portal.Close()

		fetches := 0

		portal.handle("crm.deal.fields", func(w http.ResponseWriter, r *http.Request) {
			fetches++

			writeResult(w, map[string]bitrix24.Field{"STAGE_ID": {Type: "crm_status"}})
		})

		client, err := New(context.Background(), &bitrix24.Config{
			Portal:         portal.URL,
			AccessToken:    "test-token",
			FieldsCacheTTL: 10 * time.Millisecond,
		})
		require.NoError(t, err)

		defer func() { _ = client.Close() }()

		ctx := context.Background()

		_, err = client.Deals().Fields(ctx)
		require.NoError(t, err)

		time.Sleep(20 * time.Millisecond)

		_, err = client.Deals().Fields(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, fetches)
	})
}

func TestEntityClient_UpdateRejected(t *testing.T) {
	portal := newTestPortal()
	defer portal.Close()

	portal.handle("crm.contact.update", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, false)
	})

	client := NewTestClient(portal.URL)

	err := client.Contacts().Update(context.Background(), 3, bitrix24.Entity{"NAME": "Ann"})
	require.ErrorIs(t, err, bitrix24.ErrRemoteCallFailed)
	assert.Contains(t, err.Error(), "updating contact")
}

func TestEntityClient_GetError(t *testing.T) {
	portal := newTestPortal()
	defer portal.Close()

	portal.handle("crm.lead.get", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"ERROR_METHOD_NOT_FOUND","error_description":"Method not found!"}`))
	})

	client := NewTestClient(portal.URL)

	_, err := client.Leads().Get(context.Background(), 404)
	require.ErrorIs(t, err, bitrix24.ErrRemoteCallFailed)
	assert.Contains(t, err.Error(), "getting lead")

	var callErr *bitrix24.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "crm.lead.get", callErr.Method)
	assert.Equal(t, http.StatusBadRequest, callErr.StatusCode)
}
