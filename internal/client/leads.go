package client

import (
	"time"

	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// LeadsClient implements bitrix24.LeadsClient over crm.lead.* methods.
type LeadsClient struct {
	*entityClient
}

// NewLeadsClient creates a new leads client.
func NewLeadsClient(rest bitrix24.RestClient, cacheTTL time.Duration) *LeadsClient {
	return &LeadsClient{newEntityClient(rest, "lead", cacheTTL)}
}
