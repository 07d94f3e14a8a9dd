package client

import (
	"time"

	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// ContactsClient implements bitrix24.ContactsClient over crm.contact.* methods.
type ContactsClient struct {
	*entityClient
}

// NewContactsClient creates a new contacts client.
func NewContactsClient(rest bitrix24.RestClient, cacheTTL time.Duration) *ContactsClient {
	return &ContactsClient{newEntityClient(rest, "contact", cacheTTL)}
}
