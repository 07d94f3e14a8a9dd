package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// entityClient implements bitrix24.EntityClient for one CRM entity. The
// concrete clients (leads, deals, contacts) embed it and only differ in the
// entity segment of the method names.
type entityClient struct {
	rest     bitrix24.RestClient
	entity   string
	cacheTTL time.Duration

	cacheMu   sync.RWMutex
	fields    map[string]bitrix24.Field
	fetchedAt time.Time
}

func newEntityClient(rest bitrix24.RestClient, entity string, cacheTTL time.Duration) *entityClient {
	return &entityClient{
		rest:     rest,
		entity:   entity,
		cacheTTL: cacheTTL,
	}
}

// method builds the remote method name, e.g. "crm.lead.get".
func (c *entityClient) method(op string) string {
	return "crm." + c.entity + "." + op
}

// Get implements bitrix24.EntityClient.Get.
func (c *entityClient) Get(ctx context.Context, id int) (bitrix24.Entity, error) {
	raw, err := c.rest.Post(ctx, c.method("get"), map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", c.entity, err)
	}

	resp, err := bitrix24.DecodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", c.entity, err)
	}

	var entity bitrix24.Entity
	if err := json.Unmarshal(resp.Result, &entity); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", c.entity, err)
	}

	return entity, nil
}

// List implements bitrix24.EntityClient.List.
func (c *entityClient) List(ctx context.Context, opts *bitrix24.ListOptions) (*bitrix24.ListResult, error) {
	if opts == nil {
		opts = &bitrix24.ListOptions{}
	}

	raw, err := c.rest.Post(ctx, c.method("list"), opts)
	if err != nil {
		return nil, fmt.Errorf("listing %ss: %w", c.entity, err)
	}

	resp, err := bitrix24.DecodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %s list response: %w", c.entity, err)
	}

	var items []bitrix24.Entity
	if err := json.Unmarshal(resp.Result, &items); err != nil {
		return nil, fmt.Errorf("parsing %s list response: %w", c.entity, err)
	}

	result := &bitrix24.ListResult{
		Items: items,
		Total: resp.Total,
	}

	if resp.Next != nil {
		result.Next = *resp.Next
		result.HasMore = true
	}

	return result, nil
}

// ListAll implements bitrix24.EntityClient.ListAll.
func (c *entityClient) ListAll(ctx context.Context, opts *bitrix24.ListOptions) ([]bitrix24.Entity, error) {
	var page bitrix24.ListOptions
	if opts != nil {
		page = *opts
	}

	var all []bitrix24.Entity

	for {
		result, err := c.List(ctx, &page)
		if err != nil {
			return nil, err
		}

		all = append(all, result.Items...)

		if !result.HasMore {
			return all, nil
		}

		page.Start = result.Next
	}
}

// Create implements bitrix24.EntityClient.Create.
func (c *entityClient) Create(ctx context.Context, fields bitrix24.Entity) (int, error) {
	raw, err := c.rest.Post(ctx, c.method("add"), map[string]any{"fields": fields})
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", c.entity, err)
	}

	resp, err := bitrix24.DecodeResponse(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s response: %w", c.entity, err)
	}

	var id int
	if err := json.Unmarshal(resp.Result, &id); err != nil {
		return 0, fmt.Errorf("parsing %s response: %w", c.entity, err)
	}

	return id, nil
}

// Update implements bitrix24.EntityClient.Update.
func (c *entityClient) Update(ctx context.Context, id int, fields bitrix24.Entity) error {
	raw, err := c.rest.Post(ctx, c.method("update"), map[string]any{"id": id, "fields": fields})
	if err != nil {
		return fmt.Errorf("updating %s: %w", c.entity, err)
	}

	return c.checkMutation(raw, "updating")
}

// Delete implements bitrix24.EntityClient.Delete.
func (c *entityClient) Delete(ctx context.Context, id int) error {
	raw, err := c.rest.Post(ctx, c.method("delete"), map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", c.entity, err)
	}

	return c.checkMutation(raw, "deleting")
}

// checkMutation parses the boolean result of update and delete calls. The
// portal reports a failed mutation with result:false on a 200 response.
func (c *entityClient) checkMutation(raw json.RawMessage, verb string) error {
	resp, err := bitrix24.DecodeResponse(raw)
	if err != nil {
		return fmt.Errorf("parsing %s response: %w", c.entity, err)
	}

	var ok bool
	if err := json.Unmarshal(resp.Result, &ok); err != nil {
		return fmt.Errorf("parsing %s response: %w", c.entity, err)
	}

	if !ok {
		return fmt.Errorf("%s %s: %w", verb, c.entity, bitrix24.ErrRemoteCallFailed)
	}

	return nil
}

// Fields implements bitrix24.EntityClient.Fields. The schema is cached for
// cacheTTL because field definitions change only on portal reconfiguration.
func (c *entityClient) Fields(ctx context.Context) (map[string]bitrix24.Field, error) {
	c.cacheMu.RLock()
	if c.fields != nil && time.Since(c.fetchedAt) < c.cacheTTL {
		fields := c.fields
		c.cacheMu.RUnlock()

		return fields, nil
	}
	c.cacheMu.RUnlock()

	raw, err := c.rest.Get(ctx, c.method("fields"))
	if err != nil {
		return nil, fmt.Errorf("fetching %s fields: %w", c.entity, err)
	}

	resp, err := bitrix24.DecodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %s fields response: %w", c.entity, err)
	}

	var fields map[string]bitrix24.Field
	if err := json.Unmarshal(resp.Result, &fields); err != nil {
		return nil, fmt.Errorf("parsing %s fields response: %w", c.entity, err)
	}

	c.cacheMu.Lock()
	c.fields = fields
	c.fetchedAt = time.Now()
	c.cacheMu.Unlock()

	return fields, nil
}
