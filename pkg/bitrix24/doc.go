// Package bitrix24 provides types, interfaces, and helpers for working with
// a Bitrix24-style portal REST API.
//
// # Overview
//
// The bitrix24 package defines the request pipeline surface (RestClient with
// Get/Post/Do), the CRM entity client interfaces (LeadsClient, DealsClient,
// ContactsClient), the token storage and authorization-code collaborator
// contracts, and the error kinds the pipeline reports. A concrete
// implementation is provided by the b24client package, which wires
// configuration, transport, token lifecycle, and dispatch. Most consumers
// should import b24client to construct a client and then work with the
// interfaces exposed here.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/ainq-io/bitrix24-client/pkg/b24client"
//	  "github.com/ainq-io/bitrix24-client/pkg/bitrix24"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := b24client.New(ctx, &bitrix24.Config{
//	    Portal:       "example.bitrix24.com",
//	    ClientID:     "app.123",
//	    ClientSecret: "secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  leads, err := cli.Leads().List(ctx, &bitrix24.ListOptions{
//	    Filter: map[string]any{"STATUS_ID": "NEW"},
//	  })
//	  if err != nil { log.Fatal(err) }
//	  _ = leads
//	}
//
// # Tokens
//
// The pipeline owns the OAuth token pair. Tokens persist through a pluggable
// TokenStorage (memory, file, NATS KV, Redis, or a chain of them); fresh
// authorization codes come from an AuthorizationCodeProvider when a full
// re-authorization is unavoidable. Access-token expiry is discovered through
// 401 responses, never predicted locally, and concurrent callers share one
// in-flight refresh.
//
// # Errors
//
// Terminal failures are CallError values carrying the logical method name.
// Helpers such as IsRateLimited, IsUnauthorized, and IsMalformed make it easy
// to branch on the common cases.
//
// # Raw calls and batching
//
// Any portal method can be called directly through RestClient.Get/Post, and
// BatchExecutor fans a slice of logical calls through the client with bounded
// concurrency while the dispatcher keeps the portal rate limit intact.
package bitrix24
