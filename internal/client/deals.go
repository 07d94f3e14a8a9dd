package client

import (
	"time"

	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// DealsClient implements bitrix24.DealsClient over crm.deal.* methods.
type DealsClient struct {
	*entityClient
}

// NewDealsClient creates a new deals client.
func NewDealsClient(rest bitrix24.RestClient, cacheTTL time.Duration) *DealsClient {
	return &DealsClient{newEntityClient(rest, "deal", cacheTTL)}
}
