package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainq-io/bitrix24-client/internal/client"
	"github.com/ainq-io/bitrix24-client/internal/constants"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

func TestProfileName(t *testing.T) {
	tests := []struct {
		name    string
		profile bitrix24.Entity
		want    string
	}{
		{
			name:    "full name",
			profile: bitrix24.Entity{"NAME": "Maria", "LAST_NAME": "Ivanova"},
			want:    "Maria Ivanova",
		},
		{
			name:    "first name only",
			profile: bitrix24.Entity{"NAME": "Maria"},
			want:    "Maria",
		},
		{
			name:    "email fallback",
			profile: bitrix24.Entity{"EMAIL": "maria@example.com"},
			want:    "maria@example.com",
		},
		{
			name:    "id fallback",
			profile: bitrix24.Entity{"ID": "7"},
			want:    "user 7",
		},
		{
			name:    "empty profile",
			profile: bitrix24.Entity{},
			want:    "unknown user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, profileName(tt.profile))
		})
	}
}

func TestEntityClientFor(t *testing.T) {
	c := client.NewTestClient("https://example.bitrix24.com")

	leads, err := entityClientFor(c, "lead")
	require.NoError(t, err)
	assert.Equal(t, c.Leads(), leads)

	deals, err := entityClientFor(c, "deals")
	require.NoError(t, err)
	assert.Equal(t, c.Deals(), deals)

	contacts, err := entityClientFor(c, "contact")
	require.NoError(t, err)
	assert.Equal(t, c.Contacts(), contacts)

	_, err = entityClientFor(c, "")
	require.ErrorIs(t, err, constants.ErrEntityRequired)

	_, err = entityClientFor(c, "invoice")
	require.ErrorIs(t, err, constants.ErrUnknownEntity)
}

func TestSortedKeys(t *testing.T) {
	keys := sortedKeys(map[string]int{"b": 2, "a": 1, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestBoolWord(t *testing.T) {
	assert.Equal(t, "yes", boolWord(true))
	assert.Equal(t, "no", boolWord(false))
}
