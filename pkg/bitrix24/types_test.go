package bitrix24

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_ID(t *testing.T) {
	tests := []struct {
		name     string
		entity   Entity
		expected int
		ok       bool
	}{
		{
			name:     "string id",
			entity:   Entity{"ID": "42"},
			expected: 42,
			ok:       true,
		},
		{
			name:     "numeric id",
			entity:   Entity{"ID": float64(7)},
			expected: 7,
			ok:       true,
		},
		{
			name:   "missing id",
			entity: Entity{"TITLE": "x"},
			ok:     false,
		},
		{
			name:   "unparsable id",
			entity: Entity{"ID": "abc"},
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := tt.entity.ID()
			assert.Equal(t, tt.ok, ok)

			if tt.ok {
				assert.Equal(t, tt.expected, id)
			}
		})
	}
}

func TestEntity_StringField(t *testing.T) {
	entity := Entity{"TITLE": "New lead", "OPPORTUNITY": float64(1000)}

	assert.Equal(t, "New lead", entity.StringField("TITLE"))
	assert.Empty(t, entity.StringField("OPPORTUNITY"))
	assert.Empty(t, entity.StringField("MISSING"))
}

func TestDecodeResponse(t *testing.T) {
	raw := json.RawMessage(`{
		"result": [{"ID": "1"}, {"ID": "2"}],
		"total": 120,
		"next": 50,
		"time": {"start": 1.0, "finish": 2.0, "duration": 1.0}
	}`)

	resp, err := DecodeResponse(raw)
	require.NoError(t, err)

	assert.Equal(t, 120, resp.Total)
	require.NotNil(t, resp.Next)
	assert.Equal(t, 50, *resp.Next)
	require.NotNil(t, resp.Time)
	assert.InDelta(t, 1.0, resp.Time.Duration, 0.001)

	var items []Entity
	require.NoError(t, json.Unmarshal(resp.Result, &items))
	assert.Len(t, items, 2)
}

func TestDecodeResponse_LastPageHasNoNext(t *testing.T) {
	resp, err := DecodeResponse(json.RawMessage(`{"result": [], "total": 3}`))
	require.NoError(t, err)
	assert.Nil(t, resp.Next)
}

func TestDecodeResponse_Invalid(t *testing.T) {
	_, err := DecodeResponse(json.RawMessage(`[not json`))
	require.Error(t, err)
}

func TestListOptions_Marshal(t *testing.T) {
	opts := &ListOptions{
		Select: []string{"ID", "TITLE"},
		Filter: map[string]any{">OPPORTUNITY": 1000},
		Order:  map[string]string{"ID": "DESC"},
		Start:  50,
	}

	data, err := json.Marshal(opts)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"select": ["ID", "TITLE"],
		"filter": {">OPPORTUNITY": 1000},
		"order": {"ID": "DESC"},
		"start": 50
	}`, string(data))
}

func TestListOptions_EmptyOmitsClauses(t *testing.T) {
	data, err := json.Marshal(&ListOptions{})
	require.NoError(t, err)

	assert.JSONEq(t, `{"start": 0}`, string(data))
}
