package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	b24http "github.com/ainq-io/bitrix24-client/internal/http"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// NewTestClient creates a new test client bound to baseURL.
func NewTestClient(baseURL string) *Client {
	// Create HTTP client without token manager for testing
	httpClient := b24http.NewClient(baseURL+"/rest", nil)

	client := &Client{
		portal:     strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://"),
		httpClient: httpClient,
		logger:     bitrix24.NewNoopLogger(),
	}

	// Initialize resource clients
	client.initializeResourceClients(&bitrix24.Config{})

	return client
}

// testPortal is an in-process portal endpoint. REST handlers are registered
// per method name and served under /rest/{method}.
type testPortal struct {
	*httptest.Server

	mux *http.ServeMux
}

func newTestPortal() *testPortal {
	mux := http.NewServeMux()

	return &testPortal{Server: httptest.NewServer(mux), mux: mux}
}

func (p *testPortal) handle(method string, handler http.HandlerFunc) {
	p.mux.HandleFunc("/rest/"+method, handler)
}

// writeResult writes the standard response envelope around v.
func writeResult(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": v})
}

// writeListPage writes one listing page. A non-nil next marks the page as
// partial.
func writeListPage(w http.ResponseWriter, items []bitrix24.Entity, total int, next *int) {
	page := map[string]any{"result": items, "total": total}
	if next != nil {
		page["next"] = *next
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

// EntityCRUDTest describes one entity client to exercise through the shared
// CRUD surface.
type EntityCRUDTest struct {
	Entity string
	Client func(*Client) bitrix24.EntityClient
}

// RunEntityCRUDTests runs the full CRUD round-trip against each entity
// client, asserting the crm.{entity}.* method names on the wire.
//
//nolint:funlen // Test functions can be longer for comprehensive testing
func RunEntityCRUDTests(t *testing.T, tests []EntityCRUDTest) {
	t.Helper()

	for _, testCase := range tests {
		t.Run(testCase.Entity, func(t *testing.T) {
			portal := newTestPortal()
			defer portal.Close()

			portal.handle("crm."+testCase.Entity+".add", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "POST", r.Method)

				var body map[string]bitrix24.Entity
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "Roof measurement", body["fields"].StringField("TITLE"))

				writeResult(w, 7)
			})

			portal.handle("crm."+testCase.Entity+".get", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "POST", r.Method)

				var body map[string]int
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, 7, body["id"])

				writeResult(w, bitrix24.Entity{"ID": "7", "TITLE": "Roof measurement"})
			})

			portal.handle("crm."+testCase.Entity+".list", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "POST", r.Method)
				writeListPage(w, []bitrix24.Entity{{"ID": "7"}}, 1, nil)
			})

			portal.handle("crm."+testCase.Entity+".update", func(w http.ResponseWriter, r *http.Request) {
				writeResult(w, true)
			})

			portal.handle("crm."+testCase.Entity+".delete", func(w http.ResponseWriter, r *http.Request) {
				writeResult(w, true)
			})

			portal.handle("crm."+testCase.Entity+".fields", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "GET", r.Method)
				writeResult(w, map[string]bitrix24.Field{
					"TITLE": {Type: "string", IsRequired: true, Title: "Title"},
				})
			})

			client := NewTestClient(portal.URL)
			entity := testCase.Client(client)
			ctx := context.Background()

			id, err := entity.Create(ctx, bitrix24.Entity{"TITLE": "Roof measurement"})
			require.NoError(t, err)
			assert.Equal(t, 7, id)

			record, err := entity.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "Roof measurement", record.StringField("TITLE"))

			page, err := entity.List(ctx, nil)
			require.NoError(t, err)
			assert.Len(t, page.Items, 1)
			assert.Equal(t, 1, page.Total)
			assert.False(t, page.HasMore)

			require.NoError(t, entity.Update(ctx, id, bitrix24.Entity{"TITLE": "Roof replacement"}))
			require.NoError(t, entity.Delete(ctx, id))

			fields, err := entity.Fields(ctx)
			require.NoError(t, err)
			assert.True(t, fields["TITLE"].IsRequired)
		})
	}
}
